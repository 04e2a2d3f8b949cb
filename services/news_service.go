package services

import (
	"context"
	"errors"
	"fmt"

	"club-ranking-system/models"
	"club-ranking-system/notify"

	"github.com/gofiber/fiber/v2"
)

// DefaultNewsLimit is how many recent finished matches feed the news view.
const DefaultNewsLimit = 5

// NewsService is the view refresh coordinator: after a committed finalize it
// recomputes the news projection from scratch and fans the results out.
type NewsService struct {
	Store Store
	Hub   *notify.Hub
	Limit int
}

func NewNewsService(store Store, hub *notify.Hub, limit int) *NewsService {
	if limit <= 0 {
		limit = DefaultNewsLimit
	}
	return &NewsService{Store: store, Hub: hub, Limit: limit}
}

// Rebuild recomputes the full news view: the most recent finished matches
// with non-empty news, newest first (id descending on equal dates). The
// rebuild reads committed state only, so repeated calls with no intervening
// finalize yield identical snapshots.
func (s *NewsService) Rebuild(ctx context.Context) ([]models.NewsItem, error) {
	matches, err := s.Store.GetRecentFinished(ctx, s.Limit)
	if err != nil {
		return nil, fmt.Errorf("news rebuild: %w", err)
	}

	items := make([]models.NewsItem, 0, len(matches))
	for _, m := range matches {
		date := m.UpdatedAt
		if m.PlayedAt != nil {
			date = *m.PlayedAt
		}
		items = append(items, models.NewsItem{Text: m.News, Date: date})
	}
	return items, nil
}

// RefreshAfterFinalize runs once the finalize transaction has committed.
// When ratings moved it signals ranking subscribers first, then always
// rebuilds and pushes the full news snapshot. Delivery problems come back
// as a warning wrapping ErrNotificationDeliveryFailed — committed state is
// never rolled back on their account.
func (s *NewsService) RefreshAfterFinalize(ctx context.Context, ratingApplied bool) (bool, []models.NewsItem, error) {
	var warn error

	if ratingApplied {
		if err := s.Hub.PublishRankingChanged(); err != nil {
			warn = fmt.Errorf("%w: ranking: %v", ErrNotificationDeliveryFailed, err)
		}
	}

	snapshot, err := s.Rebuild(ctx)
	if err != nil {
		return ratingApplied, nil, errors.Join(warn, fmt.Errorf("%w: %v", ErrNotificationDeliveryFailed, err))
	}
	if err := s.Hub.PublishNewsUpdated(snapshot); err != nil {
		warn = errors.Join(warn, fmt.Errorf("%w: news: %v", ErrNotificationDeliveryFailed, err))
	}
	return ratingApplied, snapshot, warn
}

// GetNewsEndpoint returns the current news view.
func (s *NewsService) GetNewsEndpoint(c *fiber.Ctx) error {
	items, err := s.Rebuild(c.Context())
	if err != nil {
		return c.Status(500).JSON(fiber.Map{"error": "failed to build news view"})
	}
	return c.JSON(fiber.Map{"news": items})
}
