package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"time"

	"club-ranking-system/elo"
	"club-ranking-system/models"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

// MatchService owns the match lifecycle. Finalize is the core workflow:
// validate a declared outcome, apply it, and commit match + rating state as
// one unit before the views are refreshed.
type MatchService struct {
	DB    *gorm.DB
	Store Store
	News  *NewsService
	K     int
}

func NewMatchService(db *gorm.DB, store Store, news *NewsService, kFactor int) *MatchService {
	if kFactor <= 0 {
		kFactor = elo.DefaultK
	}
	return &MatchService{DB: db, Store: store, News: news, K: kFactor}
}

// PlayerScore is one participant's final score in a finalize request.
type PlayerScore struct {
	PlayerID uint `json:"player_id"`
	Score    int  `json:"score"`
}

// FinalizeRequest declares a match outcome. ApplyRatingUpdate is an explicit
// switch: an administrative edit can finalize a match without touching
// ratings, but the caller then owns not double-applying a delta later.
type FinalizeRequest struct {
	MatchID           uint          `json:"match_id"`
	WinnerID          uint          `json:"winner_id"`
	Scores            []PlayerScore `json:"scores"`
	News              string        `json:"news"`
	ExtraInfo1        string        `json:"extra_info1"`
	ExtraInfo2        string        `json:"extra_info2"`
	PlayedAt          *time.Time    `json:"played_at,omitempty"`
	ApplyRatingUpdate bool          `json:"apply_rating_update"`
}

// FinalizedMatch is what a successful finalize hands back: the committed
// match, the rating effect if one was applied, and the refreshed views.
type FinalizedMatch struct {
	Match          models.Match      `json:"match"`
	RatingApplied  bool              `json:"rating_applied"`
	WinnerDelta    int               `json:"winner_delta,omitempty"`
	LoserDelta     int               `json:"loser_delta,omitempty"`
	RankingChanged bool              `json:"ranking_changed"`
	NewsSnapshot   []models.NewsItem `json:"news_snapshot"`
	Warnings       []string          `json:"warnings,omitempty"`
}

// Finalize marks a match complete with a declared winner and optionally
// applies the Elo effect. All validation happens before any mutation; the
// match write and both rating writes commit atomically; a lost race against
// a concurrent finalize of the same match fails with
// ErrConcurrentUpdateConflict and contributes nothing.
func (s *MatchService) Finalize(ctx context.Context, req FinalizeRequest) (*FinalizedMatch, error) {
	winner, err := s.Store.GetPlayer(ctx, req.WinnerID)
	if err != nil {
		return nil, fmt.Errorf("winner lookup: %w", err)
	}
	if winner == nil {
		return nil, ErrInvalidWinner
	}

	match, err := s.Store.GetMatch(ctx, req.MatchID)
	if err != nil {
		return nil, fmt.Errorf("match lookup: %w", err)
	}
	if match == nil {
		return nil, ErrMatchNotFound
	}

	var loserID uint
	isParticipant := false
	for _, mp := range match.Players {
		if mp.PlayerID == req.WinnerID {
			isParticipant = true
		} else {
			loserID = mp.PlayerID
		}
	}
	if !isParticipant {
		return nil, ErrInvalidWinner
	}

	scoreByPlayer := make(map[uint]int, len(req.Scores))
	for _, ps := range req.Scores {
		scoreByPlayer[ps.PlayerID] = ps.Score
	}
	for _, mp := range match.Players {
		if _, ok := scoreByPlayer[mp.PlayerID]; !ok {
			return nil, fmt.Errorf("%w: player %d", ErrMissingScore, mp.PlayerID)
		}
	}

	match.News = req.News
	match.ExtraInfo1 = req.ExtraInfo1
	match.ExtraInfo2 = req.ExtraInfo2
	match.Finished = true
	if req.PlayedAt != nil {
		match.PlayedAt = req.PlayedAt
	} else if match.PlayedAt == nil {
		now := time.Now()
		match.PlayedAt = &now
	}
	for i := range match.Players {
		mp := &match.Players[i]
		mp.Score = scoreByPlayer[mp.PlayerID]
		mp.IsWinner = mp.PlayerID == req.WinnerID
	}

	result := &FinalizedMatch{}
	err = s.Store.Atomically(ctx, func(tx Store) error {
		if err := tx.PersistMatch(ctx, match); err != nil {
			return err
		}
		if !req.ApplyRatingUpdate {
			return nil
		}

		// Lock both participants in id order so two finalizations sharing
		// a player cannot deadlock.
		firstID, secondID := req.WinnerID, loserID
		if secondID < firstID {
			firstID, secondID = secondID, firstID
		}
		first, err := tx.GetPlayerForUpdate(ctx, firstID)
		if err != nil {
			return err
		}
		second, err := tx.GetPlayerForUpdate(ctx, secondID)
		if err != nil {
			return err
		}
		if first == nil || second == nil {
			return fmt.Errorf("participant vanished during finalize of match %d", match.ID)
		}
		winnerPlayer, loserPlayer := first, second
		if winnerPlayer.ID != req.WinnerID {
			winnerPlayer, loserPlayer = second, first
		}

		winnerDelta, loserDelta := elo.RatingChange(winnerPlayer.Rating, loserPlayer.Rating, s.K)
		if err := tx.PersistRating(ctx, winnerPlayer.ID, winnerPlayer.Rating+winnerDelta); err != nil {
			return err
		}
		if err := tx.PersistRating(ctx, loserPlayer.ID, loserPlayer.Rating+loserDelta); err != nil {
			return err
		}
		history := []models.RatingHistory{
			{
				PlayerID:     winnerPlayer.ID,
				MatchID:      match.ID,
				OpponentID:   loserPlayer.ID,
				RatingBefore: winnerPlayer.Rating,
				RatingAfter:  winnerPlayer.Rating + winnerDelta,
				RatingChange: winnerDelta,
			},
			{
				PlayerID:     loserPlayer.ID,
				MatchID:      match.ID,
				OpponentID:   winnerPlayer.ID,
				RatingBefore: loserPlayer.Rating,
				RatingAfter:  loserPlayer.Rating + loserDelta,
				RatingChange: loserDelta,
			},
		}
		if err := tx.RecordRatingHistory(ctx, history); err != nil {
			return err
		}
		result.RatingApplied = true
		result.WinnerDelta = winnerDelta
		result.LoserDelta = loserDelta
		return nil
	})
	if err != nil {
		return nil, err
	}

	result.Match = *match
	rankingChanged, snapshot, warn := s.News.RefreshAfterFinalize(ctx, result.RatingApplied)
	result.RankingChanged = rankingChanged
	result.NewsSnapshot = snapshot
	if warn != nil {
		log.Printf("match %d finalized, degraded notification delivery: %v", match.ID, warn)
		result.Warnings = append(result.Warnings, warn.Error())
	}
	return result, nil
}

// --- HTTP endpoints ---

type createMatchRequest struct {
	Player1ID  uint `json:"player1_id"`
	Player2ID  uint `json:"player2_id"`
	BestOfSets int  `json:"best_of_sets"`
}

// CreateMatchEndpoint registers a new, unfinished match between two
// distinct existing players.
func (s *MatchService) CreateMatchEndpoint(c *fiber.Ctx) error {
	var req createMatchRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid JSON", "details": err.Error()})
	}
	if req.Player1ID == 0 || req.Player2ID == 0 || req.Player1ID == req.Player2ID {
		return c.Status(400).JSON(fiber.Map{"error": "a match needs two distinct players"})
	}

	var count int64
	if err := s.DB.Model(&models.Player{}).
		Where("id IN ?", []uint{req.Player1ID, req.Player2ID}).
		Count(&count).Error; err != nil {
		return c.Status(500).JSON(fiber.Map{"error": "database error"})
	}
	if count != 2 {
		return c.Status(400).JSON(fiber.Map{"error": "both players must exist"})
	}

	bestOf := req.BestOfSets
	if bestOf <= 0 {
		bestOf = 3
	}
	match := models.Match{
		BestOfSets: bestOf,
		Version:    1,
		Players: []models.MatchPlayer{
			{PlayerID: req.Player1ID},
			{PlayerID: req.Player2ID},
		},
	}
	if err := s.DB.Create(&match).Error; err != nil {
		log.Printf("DB error creating match: %v", err)
		return c.Status(500).JSON(fiber.Map{"error": "failed to create match"})
	}
	return c.Status(201).JSON(match)
}

// GetMatchesEndpoint lists matches, newest first. Supports ?finished= and
// limit/offset pagination.
func (s *MatchService) GetMatchesEndpoint(c *fiber.Ctx) error {
	limit, _ := strconv.Atoi(c.Query("limit", "50"))
	offset, _ := strconv.Atoi(c.Query("offset", "0"))
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	query := s.DB.Preload("Players.Player").Order("id DESC").Limit(limit).Offset(offset)
	if finished := c.Query("finished"); finished != "" {
		query = query.Where("finished = ?", finished == "true")
	}

	var matches []models.Match
	if err := query.Find(&matches).Error; err != nil {
		return c.Status(500).JSON(fiber.Map{"error": "database error"})
	}
	return c.JSON(fiber.Map{"matches": matches, "limit": limit, "offset": offset})
}

// GetMatchEndpoint returns one match with both participants.
func (s *MatchService) GetMatchEndpoint(c *fiber.Ctx) error {
	id, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid match id"})
	}

	var match models.Match
	if err := s.DB.Preload("Players.Player").First(&match, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(404).JSON(fiber.Map{"error": "match not found"})
		}
		return c.Status(500).JSON(fiber.Map{"error": "database error"})
	}
	return c.JSON(match)
}

// FinalizeMatchEndpoint drives Finalize and maps its error taxonomy onto
// HTTP statuses. Notification warnings ride along on a 200.
func (s *MatchService) FinalizeMatchEndpoint(c *fiber.Ctx) error {
	id, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid match id"})
	}

	var req FinalizeRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid JSON", "details": err.Error()})
	}
	req.MatchID = uint(id)

	result, err := s.Finalize(c.Context(), req)
	switch {
	case errors.Is(err, ErrMatchNotFound):
		return c.Status(404).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, ErrInvalidWinner), errors.Is(err, ErrMissingScore):
		return c.Status(400).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, ErrConcurrentUpdateConflict):
		return c.Status(409).JSON(fiber.Map{"error": err.Error()})
	case err != nil:
		log.Printf("finalize match %d failed: %v", id, err)
		return c.Status(500).JSON(fiber.Map{"error": "failed to finalize match"})
	}
	return c.JSON(result)
}

// DeleteMatchEndpoint removes an unfinished match and its player rows.
// Finished matches are part of the rating record and cannot be deleted.
func (s *MatchService) DeleteMatchEndpoint(c *fiber.Ctx) error {
	id, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid match id"})
	}

	var match models.Match
	if err := s.DB.First(&match, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(404).JSON(fiber.Map{"error": "match not found"})
		}
		return c.Status(500).JSON(fiber.Map{"error": "database error"})
	}
	if match.Finished {
		return c.Status(409).JSON(fiber.Map{"error": "finished matches cannot be deleted"})
	}

	err = s.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("match_id = ?", match.ID).Delete(&models.MatchPlayer{}).Error; err != nil {
			return err
		}
		return tx.Delete(&match).Error
	})
	if err != nil {
		return c.Status(500).JSON(fiber.Map{"error": "failed to delete match"})
	}
	return c.JSON(fiber.Map{"message": "match deleted"})
}
