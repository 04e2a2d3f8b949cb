package services

import (
	"context"
	"errors"
	"sort"
	"sync"

	"club-ranking-system/models"
)

// fakeStore is an in-memory Store for engine tests. Atomically serializes
// callers on one mutex and rolls the snapshot back when fn fails, mirroring
// the transactional guarantees of the Postgres store.
type fakeStore struct {
	mu      sync.Mutex
	players map[uint]*models.Player
	matches map[uint]*models.Match
	history []models.RatingHistory

	// When set, GetMatch blocks until every racer has read the match, so a
	// test can force two finalizations to proceed from the same version.
	matchGate *sync.WaitGroup
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		players: make(map[uint]*models.Player),
		matches: make(map[uint]*models.Match),
	}
}

func copyPlayer(p *models.Player) *models.Player {
	c := *p
	return &c
}

func copyMatch(m *models.Match) *models.Match {
	c := *m
	c.Players = append([]models.MatchPlayer(nil), m.Players...)
	return &c
}

func (s *fakeStore) addPlayer(p models.Player) {
	s.players[p.ID] = &p
}

func (s *fakeStore) addMatch(m models.Match) {
	if m.Version == 0 {
		m.Version = 1
	}
	s.matches[m.ID] = &m
}

func (s *fakeStore) playerRating(id uint) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.players[id].Rating
}

func (s *fakeStore) storedMatch(id uint) *models.Match {
	s.mu.Lock()
	defer s.mu.Unlock()
	return copyMatch(s.matches[id])
}

func (s *fakeStore) getPlayerLocked(id uint) (*models.Player, error) {
	p, ok := s.players[id]
	if !ok {
		return nil, nil
	}
	return copyPlayer(p), nil
}

func (s *fakeStore) GetPlayer(_ context.Context, id uint) (*models.Player, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getPlayerLocked(id)
}

func (s *fakeStore) GetMatch(_ context.Context, id uint) (*models.Match, error) {
	s.mu.Lock()
	m, ok := s.matches[id]
	var out *models.Match
	if ok {
		out = copyMatch(m)
	}
	gate := s.matchGate
	s.mu.Unlock()

	if out != nil && gate != nil {
		gate.Done()
		gate.Wait()
	}
	return out, nil
}

func (s *fakeStore) persistMatchLocked(m *models.Match) error {
	stored, ok := s.matches[m.ID]
	if !ok {
		return errors.New("persist of unknown match")
	}
	if stored.Version != m.Version {
		return ErrConcurrentUpdateConflict
	}
	c := copyMatch(m)
	c.Version = m.Version + 1
	s.matches[m.ID] = c
	m.Version = c.Version
	return nil
}

func (s *fakeStore) persistRatingLocked(playerID uint, newRating int) error {
	p, ok := s.players[playerID]
	if !ok {
		return errors.New("persist rating for unknown player")
	}
	p.Rating = newRating
	return nil
}

func (s *fakeStore) recentFinishedLocked(limit int) ([]models.Match, error) {
	var out []models.Match
	for _, m := range s.matches {
		if m.Finished && m.News != "" {
			out = append(out, *copyMatch(m))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		di, dj := out[i].PlayedAt, out[j].PlayedAt
		switch {
		case di == nil && dj != nil:
			return false
		case di != nil && dj == nil:
			return true
		case di != nil && dj != nil && !di.Equal(*dj):
			return di.After(*dj)
		}
		return out[i].ID > out[j].ID
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *fakeStore) GetRecentFinished(_ context.Context, limit int) ([]models.Match, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.recentFinishedLocked(limit)
}

func (s *fakeStore) Ranking(_ context.Context) ([]models.Player, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Player
	for _, p := range s.players {
		out = append(out, *copyPlayer(p))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Rating != out[j].Rating {
			return out[i].Rating > out[j].Rating
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

// The non-transactional variants of the remaining writes delegate to the
// locked implementations.

func (s *fakeStore) GetPlayerForUpdate(_ context.Context, id uint) (*models.Player, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getPlayerLocked(id)
}

func (s *fakeStore) PersistMatch(_ context.Context, m *models.Match) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.persistMatchLocked(m)
}

func (s *fakeStore) PersistRating(_ context.Context, playerID uint, newRating int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.persistRatingLocked(playerID, newRating)
}

func (s *fakeStore) RecordRatingHistory(_ context.Context, entries []models.RatingHistory) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = append(s.history, entries...)
	return nil
}

func (s *fakeStore) Atomically(_ context.Context, fn func(tx Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	playerSnap := make(map[uint]*models.Player, len(s.players))
	for id, p := range s.players {
		playerSnap[id] = copyPlayer(p)
	}
	matchSnap := make(map[uint]*models.Match, len(s.matches))
	for id, m := range s.matches {
		matchSnap[id] = copyMatch(m)
	}
	historySnap := append([]models.RatingHistory(nil), s.history...)

	if err := fn(&fakeTx{s}); err != nil {
		s.players = playerSnap
		s.matches = matchSnap
		s.history = historySnap
		return err
	}
	return nil
}

// fakeTx exposes the locked operations to the function running inside
// Atomically, which already holds the store mutex.
type fakeTx struct {
	s *fakeStore
}

func (t *fakeTx) GetPlayer(_ context.Context, id uint) (*models.Player, error) {
	return t.s.getPlayerLocked(id)
}

func (t *fakeTx) GetPlayerForUpdate(_ context.Context, id uint) (*models.Player, error) {
	return t.s.getPlayerLocked(id)
}

func (t *fakeTx) GetMatch(_ context.Context, id uint) (*models.Match, error) {
	m, ok := t.s.matches[id]
	if !ok {
		return nil, nil
	}
	return copyMatch(m), nil
}

func (t *fakeTx) PersistMatch(_ context.Context, m *models.Match) error {
	return t.s.persistMatchLocked(m)
}

func (t *fakeTx) PersistRating(_ context.Context, playerID uint, newRating int) error {
	return t.s.persistRatingLocked(playerID, newRating)
}

func (t *fakeTx) RecordRatingHistory(_ context.Context, entries []models.RatingHistory) error {
	t.s.history = append(t.s.history, entries...)
	return nil
}

func (t *fakeTx) GetRecentFinished(_ context.Context, limit int) ([]models.Match, error) {
	return t.s.recentFinishedLocked(limit)
}

func (t *fakeTx) Ranking(_ context.Context) ([]models.Player, error) {
	return nil, errors.New("ranking not supported inside a transaction")
}

func (t *fakeTx) Atomically(_ context.Context, fn func(tx Store) error) error {
	return fn(t)
}
