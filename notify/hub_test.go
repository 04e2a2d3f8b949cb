package notify

import (
	"testing"
	"time"

	"club-ranking-system/models"
)

func TestNewsSubscriberReceivesSnapshot(t *testing.T) {
	hub := NewHub()
	id, ch := hub.SubscribeNews()
	defer hub.Unsubscribe(id)

	snapshot := []models.NewsItem{{Text: "A beat B", Date: time.Now()}}
	if err := hub.PublishNewsUpdated(snapshot); err != nil {
		t.Fatalf("publish failed: %v", err)
	}

	select {
	case got := <-ch:
		if len(got) != 1 || got[0].Text != "A beat B" {
			t.Fatalf("unexpected snapshot: %+v", got)
		}
	case <-time.After(time.Second):
		t.Fatal("snapshot never delivered")
	}
}

func TestSlowNewsSubscriberReported(t *testing.T) {
	hub := NewHub()
	id, _ := hub.SubscribeNews()
	defer hub.Unsubscribe(id)

	snapshot := []models.NewsItem{{Text: "filler"}}
	for i := 0; i < subscriberBuffer; i++ {
		if err := hub.PublishNewsUpdated(snapshot); err != nil {
			t.Fatalf("publish %d should fit in the buffer: %v", i, err)
		}
	}
	if err := hub.PublishNewsUpdated(snapshot); err == nil {
		t.Fatal("expected a dropped-event report once the buffer is full")
	}
}

func TestRankingSignalCoalesces(t *testing.T) {
	hub := NewHub()
	id, ch := hub.SubscribeRanking()
	defer hub.Unsubscribe(id)

	// Several publishes against a non-draining subscriber coalesce into one
	// pending signal and never report a failure.
	for i := 0; i < 5; i++ {
		if err := hub.PublishRankingChanged(); err != nil {
			t.Fatalf("ranking publish should never fail: %v", err)
		}
	}

	select {
	case <-ch:
	case <-time.After(time.Second):
		t.Fatal("ranking signal never delivered")
	}
	select {
	case <-ch:
		t.Fatal("expected coalesced signals to deliver exactly once")
	default:
	}
}

func TestUnsubscribeClosesChannels(t *testing.T) {
	hub := NewHub()
	id, ch := hub.SubscribeNews()
	hub.Unsubscribe(id)

	if _, ok := <-ch; ok {
		t.Fatal("channel should be closed after unsubscribe")
	}
	ranking, news := hub.Subscribers()
	if ranking != 0 || news != 0 {
		t.Fatalf("expected no subscribers left, got %d/%d", ranking, news)
	}

	// Publishing with no subscribers is a no-op.
	if err := hub.PublishNewsUpdated(nil); err != nil {
		t.Fatalf("publish to empty hub failed: %v", err)
	}
}
