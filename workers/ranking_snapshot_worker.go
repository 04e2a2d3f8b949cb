package workers

import (
	"context"
	"log"
	"time"

	"club-ranking-system/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// RankingSnapshotClient persists the current standings so rating history
// charts can show rank movement over time.
type RankingSnapshotClient struct {
	DB *gorm.DB
}

func NewRankingSnapshotClient(db *gorm.DB) *RankingSnapshotClient {
	return &RankingSnapshotClient{DB: db}
}

// TakeSnapshot writes one (rating, rank) row per player for today, in
// ranking order. A repeat sweep on the same day overwrites the earlier rows,
// so the stored snapshot is always the day's latest.
func (c *RankingSnapshotClient) TakeSnapshot(ctx context.Context) error {
	var players []models.Player
	if err := c.DB.WithContext(ctx).
		Order("rating DESC, name ASC").
		Find(&players).Error; err != nil {
		return err
	}
	if len(players) == 0 {
		return nil
	}

	day := time.Now().UTC().Format("2006-01-02")
	rows := make([]models.RankingSnapshot, 0, len(players))
	for i, p := range players {
		rows = append(rows, models.RankingSnapshot{
			PlayerID: p.ID,
			Day:      day,
			Rating:   p.Rating,
			Rank:     i + 1,
		})
	}

	return c.DB.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "player_id"}, {Name: "day"}},
			DoUpdates: clause.AssignmentColumns([]string{"rating", "rank", "taken_at"}),
		}).
		Create(&rows).Error
}

// PollRankingSnapshots runs TakeSnapshot once immediately and then on every
// tick until the context is cancelled.
func PollRankingSnapshots(ctx context.Context, client *RankingSnapshotClient, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	if err := client.TakeSnapshot(ctx); err != nil {
		log.Printf("[SnapshotWorker] initial snapshot failed: %v", err)
	}

	for {
		select {
		case <-ctx.Done():
			log.Println("Ranking snapshot worker stopped")
			return
		case <-ticker.C:
			if err := client.TakeSnapshot(ctx); err != nil {
				log.Printf("[SnapshotWorker] snapshot failed: %v", err)
			}
		}
	}
}
