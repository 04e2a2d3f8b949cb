package services

import (
	"bufio"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"club-ranking-system/notify"

	"github.com/gofiber/fiber/v2"
)

const sseKeepalive = 15 * time.Second

// SSEService streams hub events to connected clients. Ranking events carry
// no payload (clients re-pull the ranking); news events carry the full
// recomputed snapshot.
type SSEService struct {
	Hub  *notify.Hub
	News *NewsService
}

func NewSSEService(hub *notify.Hub, news *NewsService) *SSEService {
	return &SSEService{Hub: hub, News: news}
}

func setSSEHeaders(c *fiber.Ctx) {
	c.Set("Content-Type", "text/event-stream")
	c.Set("Cache-Control", "no-cache")
	c.Set("Connection", "keep-alive")
	c.Set("X-Accel-Buffering", "no") // nginx
}

// StreamRankingSSE pushes a ranking-changed signal whenever a finalize
// applied a rating update.
func (s *SSEService) StreamRankingSSE(c *fiber.Ctx) error {
	setSSEHeaders(c)

	ctx := c.Context()
	c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		id, events := s.Hub.SubscribeRanking()
		defer s.Hub.Unsubscribe(id)

		keepalive := time.NewTicker(sseKeepalive)
		defer keepalive.Stop()

		// Initial keepalive (comment event)
		w.WriteString(":\n\n")
		w.Flush()

		for {
			select {
			case _, ok := <-events:
				if !ok {
					return
				}
				fmt.Fprint(w, "event: ranking\ndata: {}\n\n")
				if err := w.Flush(); err != nil {
					// Client disconnected
					return
				}
			case <-keepalive.C:
				w.WriteString(":\n\n")
				if err := w.Flush(); err != nil {
					return
				}
			case <-ctx.Done():
				return
			}
		}
	})

	return nil
}

// StreamNewsSSE sends the current news snapshot on connect, then a full
// snapshot on every refresh.
func (s *SSEService) StreamNewsSSE(c *fiber.Ctx) error {
	setSSEHeaders(c)

	initial, err := s.News.Rebuild(c.Context())
	if err != nil {
		log.Printf("SSE news init error: %v", err)
		initial = nil
	}

	ctx := c.Context()
	c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		id, events := s.Hub.SubscribeNews()
		defer s.Hub.Unsubscribe(id)

		keepalive := time.NewTicker(sseKeepalive)
		defer keepalive.Stop()

		if payload, err := json.Marshal(initial); err == nil {
			fmt.Fprintf(w, "event: news\ndata: %s\n\n", payload)
		}
		if err := w.Flush(); err != nil {
			return
		}

		for {
			select {
			case snapshot, ok := <-events:
				if !ok {
					return
				}
				payload, err := json.Marshal(snapshot)
				if err != nil {
					log.Printf("SSE news marshal error: %v", err)
					continue
				}
				fmt.Fprintf(w, "event: news\ndata: %s\n\n", payload)
				if err := w.Flush(); err != nil {
					return
				}
			case <-keepalive.C:
				w.WriteString(":\n\n")
				if err := w.Flush(); err != nil {
					return
				}
			case <-ctx.Done():
				return
			}
		}
	})

	return nil
}
