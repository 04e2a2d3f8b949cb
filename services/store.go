package services

import (
	"context"
	"errors"

	"club-ranking-system/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Store is the persistence boundary of the finalization workflow. Lookup
// methods return (nil, nil) when the row does not exist; the engine maps
// that to its own error taxonomy.
//
// PersistMatch performs a compare-and-swap on the match's version column:
// the write only lands if the stored version still equals the version the
// caller read, otherwise it fails with ErrConcurrentUpdateConflict.
// GetPlayerForUpdate must only be called inside Atomically; the Postgres
// implementation takes a row lock so rating reads are never stale.
type Store interface {
	GetPlayer(ctx context.Context, id uint) (*models.Player, error)
	GetPlayerForUpdate(ctx context.Context, id uint) (*models.Player, error)
	GetMatch(ctx context.Context, id uint) (*models.Match, error)
	PersistMatch(ctx context.Context, match *models.Match) error
	PersistRating(ctx context.Context, playerID uint, newRating int) error
	RecordRatingHistory(ctx context.Context, entries []models.RatingHistory) error
	GetRecentFinished(ctx context.Context, limit int) ([]models.Match, error)
	Ranking(ctx context.Context) ([]models.Player, error)

	// Atomically runs fn inside one transaction; every Store call made
	// through fn's argument commits or rolls back as a unit.
	Atomically(ctx context.Context, fn func(tx Store) error) error
}

type gormStore struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) Store {
	return &gormStore{db: db}
}

func (s *gormStore) GetPlayer(ctx context.Context, id uint) (*models.Player, error) {
	var player models.Player
	err := s.db.WithContext(ctx).First(&player, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &player, nil
}

func (s *gormStore) GetPlayerForUpdate(ctx context.Context, id uint) (*models.Player, error) {
	var player models.Player
	err := s.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&player, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &player, nil
}

func (s *gormStore) GetMatch(ctx context.Context, id uint) (*models.Match, error) {
	var match models.Match
	err := s.db.WithContext(ctx).
		Preload("Players").
		First(&match, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &match, nil
}

func (s *gormStore) PersistMatch(ctx context.Context, match *models.Match) error {
	readVersion := match.Version
	res := s.db.WithContext(ctx).Model(&models.Match{}).
		Where("id = ? AND version = ?", match.ID, readVersion).
		Updates(map[string]interface{}{
			"finished":     match.Finished,
			"news":         match.News,
			"extra_info1":  match.ExtraInfo1,
			"extra_info2":  match.ExtraInfo2,
			"played_at":    match.PlayedAt,
			"best_of_sets": match.BestOfSets,
			"version":      readVersion + 1,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrConcurrentUpdateConflict
	}
	match.Version = readVersion + 1

	for i := range match.Players {
		mp := &match.Players[i]
		if err := s.db.WithContext(ctx).Model(&models.MatchPlayer{}).
			Where("id = ?", mp.ID).
			Updates(map[string]interface{}{
				"score":     mp.Score,
				"is_winner": mp.IsWinner,
			}).Error; err != nil {
			return err
		}
	}
	return nil
}

func (s *gormStore) PersistRating(ctx context.Context, playerID uint, newRating int) error {
	return s.db.WithContext(ctx).Model(&models.Player{}).
		Where("id = ?", playerID).
		Update("rating", newRating).Error
}

func (s *gormStore) RecordRatingHistory(ctx context.Context, entries []models.RatingHistory) error {
	if len(entries) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).Create(&entries).Error
}

func (s *gormStore) GetRecentFinished(ctx context.Context, limit int) ([]models.Match, error) {
	var matches []models.Match
	err := s.db.WithContext(ctx).
		Where("finished = ? AND news <> ''", true).
		Order("played_at DESC, id DESC").
		Limit(limit).
		Find(&matches).Error
	if err != nil {
		return nil, err
	}
	return matches, nil
}

func (s *gormStore) Ranking(ctx context.Context) ([]models.Player, error) {
	var players []models.Player
	err := s.db.WithContext(ctx).
		Order("rating DESC, name ASC").
		Find(&players).Error
	if err != nil {
		return nil, err
	}
	return players, nil
}

func (s *gormStore) Atomically(ctx context.Context, fn func(tx Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&gormStore{db: tx})
	})
}
