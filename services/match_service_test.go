package services

import (
	"context"
	"errors"
	"sync"
	"testing"

	"club-ranking-system/elo"
	"club-ranking-system/models"
	"club-ranking-system/notify"
)

func newTestEngine(store *fakeStore) (*MatchService, *notify.Hub) {
	hub := notify.NewHub()
	news := NewNewsService(store, hub, DefaultNewsLimit)
	return NewMatchService(nil, store, news, elo.DefaultK), hub
}

func seedMatch(store *fakeStore) {
	store.addPlayer(models.Player{ID: 1, Name: "Anna", Rating: 1500})
	store.addPlayer(models.Player{ID: 2, Name: "Ben", Rating: 1500})
	store.addMatch(models.Match{
		ID: 10,
		Players: []models.MatchPlayer{
			{ID: 101, MatchID: 10, PlayerID: 1},
			{ID: 102, MatchID: 10, PlayerID: 2},
		},
	})
}

func finalizeReq() FinalizeRequest {
	return FinalizeRequest{
		MatchID:  10,
		WinnerID: 1,
		Scores: []PlayerScore{
			{PlayerID: 1, Score: 3},
			{PlayerID: 2, Score: 1},
		},
		News:              "Anna takes the title match",
		ApplyRatingUpdate: true,
	}
}

func TestFinalizeAppliesRatingsAndNews(t *testing.T) {
	store := newFakeStore()
	seedMatch(store)
	engine, _ := newTestEngine(store)

	result, err := engine.Finalize(context.Background(), finalizeReq())
	if err != nil {
		t.Fatalf("finalize failed: %v", err)
	}
	if !result.RatingApplied || result.WinnerDelta != 16 || result.LoserDelta != -16 {
		t.Fatalf("unexpected rating effect: applied=%t deltas=%d/%d",
			result.RatingApplied, result.WinnerDelta, result.LoserDelta)
	}
	if got := store.playerRating(1); got != 1516 {
		t.Fatalf("winner rating = %d, want 1516", got)
	}
	if got := store.playerRating(2); got != 1484 {
		t.Fatalf("loser rating = %d, want 1484", got)
	}

	match := store.storedMatch(10)
	if !match.Finished {
		t.Fatal("match should be finished after finalize")
	}
	for _, mp := range match.Players {
		wantWinner := mp.PlayerID == 1
		if mp.IsWinner != wantWinner {
			t.Fatalf("player %d winner flag = %t, want %t", mp.PlayerID, mp.IsWinner, wantWinner)
		}
		wantScore := 3
		if mp.PlayerID == 2 {
			wantScore = 1
		}
		if mp.Score != wantScore {
			t.Fatalf("player %d score = %d, want %d", mp.PlayerID, mp.Score, wantScore)
		}
	}

	if len(store.history) != 2 {
		t.Fatalf("expected 2 rating history rows, got %d", len(store.history))
	}
	if store.history[0].RatingChange+store.history[1].RatingChange != 0 {
		t.Fatal("rating history rows should be zero-sum")
	}

	if !result.RankingChanged {
		t.Fatal("ranking should be flagged as changed")
	}
	if len(result.NewsSnapshot) != 1 || result.NewsSnapshot[0].Text != "Anna takes the title match" {
		t.Fatalf("unexpected news snapshot: %+v", result.NewsSnapshot)
	}
	if len(result.Warnings) != 0 {
		t.Fatalf("unexpected warnings: %v", result.Warnings)
	}
}

func TestFinalizeWithoutRatingUpdateLeavesRatingsUntouched(t *testing.T) {
	store := newFakeStore()
	seedMatch(store)
	engine, _ := newTestEngine(store)

	req := finalizeReq()
	req.ApplyRatingUpdate = false

	result, err := engine.Finalize(context.Background(), req)
	if err != nil {
		t.Fatalf("finalize failed: %v", err)
	}
	if result.RatingApplied || result.RankingChanged {
		t.Fatal("no rating effect expected")
	}
	if store.playerRating(1) != 1500 || store.playerRating(2) != 1500 {
		t.Fatalf("ratings must stay untouched, got %d/%d",
			store.playerRating(1), store.playerRating(2))
	}
	if len(store.history) != 0 {
		t.Fatalf("no history rows expected, got %d", len(store.history))
	}
	match := store.storedMatch(10)
	if !match.Finished {
		t.Fatal("match should still be marked finished")
	}
}

func TestFinalizeRejectsMissingScore(t *testing.T) {
	store := newFakeStore()
	seedMatch(store)
	engine, _ := newTestEngine(store)

	req := finalizeReq()
	req.Scores = req.Scores[:1] // only the winner's score

	_, err := engine.Finalize(context.Background(), req)
	if !errors.Is(err, ErrMissingScore) {
		t.Fatalf("expected ErrMissingScore, got %v", err)
	}
	if store.storedMatch(10).Finished {
		t.Fatal("match must stay unfinished after a validation failure")
	}
}

func TestFinalizeRejectsUnknownWinner(t *testing.T) {
	store := newFakeStore()
	seedMatch(store)
	engine, _ := newTestEngine(store)

	req := finalizeReq()
	req.WinnerID = 99

	_, err := engine.Finalize(context.Background(), req)
	if !errors.Is(err, ErrInvalidWinner) {
		t.Fatalf("expected ErrInvalidWinner for unknown player, got %v", err)
	}
}

func TestFinalizeRejectsNonParticipantWinner(t *testing.T) {
	store := newFakeStore()
	seedMatch(store)
	store.addPlayer(models.Player{ID: 3, Name: "Cara", Rating: 1600})
	engine, _ := newTestEngine(store)

	req := finalizeReq()
	req.WinnerID = 3

	_, err := engine.Finalize(context.Background(), req)
	if !errors.Is(err, ErrInvalidWinner) {
		t.Fatalf("expected ErrInvalidWinner for non-participant, got %v", err)
	}
	if store.storedMatch(10).Finished {
		t.Fatal("match must stay unfinished")
	}
	if store.playerRating(3) != 1600 {
		t.Fatal("bystander rating must not move")
	}
}

func TestFinalizeMissingMatch(t *testing.T) {
	store := newFakeStore()
	seedMatch(store)
	engine, _ := newTestEngine(store)

	req := finalizeReq()
	req.MatchID = 77

	_, err := engine.Finalize(context.Background(), req)
	if !errors.Is(err, ErrMatchNotFound) {
		t.Fatalf("expected ErrMatchNotFound, got %v", err)
	}
}

func TestConcurrentFinalizeExactlyOneWins(t *testing.T) {
	store := newFakeStore()
	seedMatch(store)
	engine, _ := newTestEngine(store)

	// Hold both finalizations at the match read so each proceeds from the
	// same version, then let them race into the commit.
	var gate sync.WaitGroup
	gate.Add(2)
	store.matchGate = &gate

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = engine.Finalize(context.Background(), finalizeReq())
		}(i)
	}
	wg.Wait()
	store.matchGate = nil

	var conflicts, successes int
	for _, err := range errs {
		switch {
		case err == nil:
			successes++
		case errors.Is(err, ErrConcurrentUpdateConflict):
			conflicts++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if successes != 1 || conflicts != 1 {
		t.Fatalf("want exactly one winner and one conflict, got %d/%d", successes, conflicts)
	}

	// The losing attempt must contribute nothing: the delta is applied once.
	if store.playerRating(1) != 1516 || store.playerRating(2) != 1484 {
		t.Fatalf("ratings double- or under-applied: %d/%d",
			store.playerRating(1), store.playerRating(2))
	}
	if len(store.history) != 2 {
		t.Fatalf("expected exactly one pair of history rows, got %d", len(store.history))
	}
}

func TestFinalizeReportsSlowSubscriberAsWarning(t *testing.T) {
	store := newFakeStore()
	seedMatch(store)
	engine, hub := newTestEngine(store)

	// A news subscriber that never drains: fill its buffer so the
	// finalize-driven push gets dropped.
	id, _ := hub.SubscribeNews()
	defer hub.Unsubscribe(id)
	for {
		if err := hub.PublishNewsUpdated(nil); err != nil {
			break
		}
	}

	result, err := engine.Finalize(context.Background(), finalizeReq())
	if err != nil {
		t.Fatalf("delivery trouble must not fail the finalize: %v", err)
	}
	if len(result.Warnings) == 0 {
		t.Fatal("expected a degraded-delivery warning")
	}
	if !store.storedMatch(10).Finished {
		t.Fatal("match must stay committed despite the warning")
	}
	if store.playerRating(1) != 1516 {
		t.Fatal("rating change must stay committed despite the warning")
	}
}
