package notify

import (
	"fmt"
	"sync"

	"club-ranking-system/models"

	"github.com/google/uuid"
)

// subscriber channel depth; a news subscriber that falls this far behind
// has its event dropped and the drop is reported to the publisher.
const subscriberBuffer = 4

// Hub fans finalization events out to connected clients. It keeps no
// persisted subscriber state — subscribers attach for the lifetime of
// their connection and are forgotten on Unsubscribe.
type Hub struct {
	mu          sync.RWMutex
	rankingSubs map[string]chan struct{}
	newsSubs    map[string]chan []models.NewsItem
}

func NewHub() *Hub {
	return &Hub{
		rankingSubs: make(map[string]chan struct{}),
		newsSubs:    make(map[string]chan []models.NewsItem),
	}
}

// SubscribeRanking registers a ranking-changed listener. The signal carries
// no payload: receivers re-pull the full ranking.
func (h *Hub) SubscribeRanking() (string, <-chan struct{}) {
	h.mu.Lock()
	defer h.mu.Unlock()

	id := uuid.NewString()
	ch := make(chan struct{}, 1)
	h.rankingSubs[id] = ch
	return id, ch
}

// SubscribeNews registers a news listener. Every event is the full
// recomputed snapshot, never a delta.
func (h *Hub) SubscribeNews() (string, <-chan []models.NewsItem) {
	h.mu.Lock()
	defer h.mu.Unlock()

	id := uuid.NewString()
	ch := make(chan []models.NewsItem, subscriberBuffer)
	h.newsSubs[id] = ch
	return id, ch
}

// Unsubscribe removes a subscriber from both channels and closes them.
func (h *Hub) Unsubscribe(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if ch, ok := h.rankingSubs[id]; ok {
		delete(h.rankingSubs, id)
		close(ch)
	}
	if ch, ok := h.newsSubs[id]; ok {
		delete(h.newsSubs, id)
		close(ch)
	}
}

// PublishRankingChanged signals every ranking subscriber. A full buffer is
// not an error: the pending signal already tells that subscriber to re-pull.
func (h *Hub) PublishRankingChanged() error {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, ch := range h.rankingSubs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
	return nil
}

// PublishNewsUpdated pushes the full news snapshot to every news subscriber.
// Slow subscribers have the event dropped; the drop count is reported so the
// caller can surface a degraded delivery, but it never fails the publish.
func (h *Hub) PublishNewsUpdated(snapshot []models.NewsItem) error {
	h.mu.RLock()
	defer h.mu.RUnlock()

	dropped := 0
	for _, ch := range h.newsSubs {
		select {
		case ch <- snapshot:
		default:
			dropped++
		}
	}
	if dropped > 0 {
		return fmt.Errorf("news snapshot dropped for %d slow subscriber(s)", dropped)
	}
	return nil
}

// Subscribers reports the current listener counts (ranking, news).
func (h *Hub) Subscribers() (int, int) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rankingSubs), len(h.newsSubs)
}
