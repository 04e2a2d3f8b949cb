package services

import (
	"context"
	"log"
	"time"

	"github.com/go-co-op/gocron/v2"
)

// StartRebroadcastScheduler periodically rebuilds and re-pushes the news
// view. The rebuild is idempotent, so resynced or late subscribers converge
// on the same snapshot even if they missed a finalize-driven push.
func (s *NewsService) StartRebroadcastScheduler(interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}

	sched, _ := gocron.NewScheduler()
	sched.Start()

	_, _ = sched.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() {
			_, news := s.Hub.Subscribers()
			if news == 0 {
				return
			}
			snapshot, err := s.Rebuild(context.Background())
			if err != nil {
				log.Printf("[Scheduler] news rebuild error: %v", err)
				return
			}
			if err := s.Hub.PublishNewsUpdated(snapshot); err != nil {
				log.Printf("[Scheduler] news rebroadcast: %v", err)
			}
		}),
	)
}
