package services

import (
	"errors"
	"fmt"
	"log"
	"path/filepath"
	"strconv"
	"strings"

	"club-ranking-system/models"
	"club-ranking-system/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"github.com/gosimple/unidecode"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gorm.io/gorm"
)

// PlayerService handles the club roster and the live ranking view.
type PlayerService struct {
	DB *gorm.DB
}

func NewPlayerService(db *gorm.DB) *PlayerService {
	return &PlayerService{DB: db}
}

// normalizeName collapses whitespace and title-cases lowercase words so a
// roster entry like "jan novák " becomes "Jan Novák". A Caser carries
// internal buffers, so build one per call rather than sharing across requests.
func normalizeName(raw string) string {
	caser := cases.Title(language.Und, cases.NoLower)
	return caser.String(strings.Join(strings.Fields(raw), " "))
}

// deriveInitials folds the name to ASCII and takes the first letter of up
// to three name parts.
func deriveInitials(name string) string {
	var b strings.Builder
	for i, part := range strings.Fields(unidecode.Unidecode(name)) {
		if i == 3 {
			break
		}
		b.WriteByte(part[0])
	}
	return strings.ToUpper(b.String())
}

// uniqueSlug appends a numeric suffix until the slug is free.
func (s *PlayerService) uniqueSlug(name string) (string, error) {
	base := slug.Make(name)
	candidate := base
	for n := 2; ; n++ {
		var count int64
		if err := s.DB.Model(&models.Player{}).Where("slug = ?", candidate).Count(&count).Error; err != nil {
			return "", err
		}
		if count == 0 {
			return candidate, nil
		}
		candidate = fmt.Sprintf("%s-%d", base, n)
	}
}

type playerRequest struct {
	Name     string `json:"name"`
	Initials string `json:"initials"`
}

// CreatePlayerEndpoint registers a new player at the default rating.
func (s *PlayerService) CreatePlayerEndpoint(c *fiber.Ctx) error {
	var req playerRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid JSON", "details": err.Error()})
	}
	name := normalizeName(req.Name)
	if name == "" {
		return c.Status(400).JSON(fiber.Map{"error": "name is required"})
	}

	playerSlug, err := s.uniqueSlug(name)
	if err != nil {
		return c.Status(500).JSON(fiber.Map{"error": "database error"})
	}
	initials := strings.ToUpper(strings.TrimSpace(req.Initials))
	if initials == "" {
		initials = deriveInitials(name)
	}

	player := models.Player{
		Name:     name,
		Initials: initials,
		Slug:     playerSlug,
		Rating:   models.DefaultRating,
	}
	if err := s.DB.Create(&player).Error; err != nil {
		log.Printf("DB error creating player: %v", err)
		return c.Status(500).JSON(fiber.Map{"error": "failed to create player"})
	}
	return c.Status(201).JSON(player)
}

// GetPlayersEndpoint lists the roster alphabetically.
func (s *PlayerService) GetPlayersEndpoint(c *fiber.Ctx) error {
	var players []models.Player
	if err := s.DB.Order("name ASC").Find(&players).Error; err != nil {
		return c.Status(500).JSON(fiber.Map{"error": "database error"})
	}
	return c.JSON(fiber.Map{"players": players})
}

// GetPlayerEndpoint fetches one player by numeric id or slug.
func (s *PlayerService) GetPlayerEndpoint(c *fiber.Ctx) error {
	param := c.Params("id")
	query := s.DB
	if id, err := strconv.ParseUint(param, 10, 32); err == nil {
		query = query.Where("id = ?", id)
	} else {
		query = query.Where("slug = ?", param)
	}

	var player models.Player
	if err := query.First(&player).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(404).JSON(fiber.Map{"error": "player not found"})
		}
		return c.Status(500).JSON(fiber.Map{"error": "database error"})
	}
	return c.JSON(player)
}

// UpdatePlayerEndpoint renames a player. Ratings are not editable here —
// they only move through match finalization.
func (s *PlayerService) UpdatePlayerEndpoint(c *fiber.Ctx) error {
	id, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid player id"})
	}
	var req playerRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid JSON", "details": err.Error()})
	}

	var player models.Player
	if err := s.DB.First(&player, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(404).JSON(fiber.Map{"error": "player not found"})
		}
		return c.Status(500).JSON(fiber.Map{"error": "database error"})
	}

	updates := map[string]interface{}{}
	if name := normalizeName(req.Name); name != "" && name != player.Name {
		updates["name"] = name
	}
	if initials := strings.ToUpper(strings.TrimSpace(req.Initials)); initials != "" {
		updates["initials"] = initials
	}
	if len(updates) > 0 {
		if err := s.DB.Model(&player).Updates(updates).Error; err != nil {
			return c.Status(500).JSON(fiber.Map{"error": "failed to update player"})
		}
	}
	return c.JSON(player)
}

// DeletePlayerEndpoint removes a player with no recorded matches. Players
// referenced by any match stay — their matches are the rating record.
func (s *PlayerService) DeletePlayerEndpoint(c *fiber.Ctx) error {
	id, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid player id"})
	}

	var matchCount int64
	if err := s.DB.Model(&models.MatchPlayer{}).Where("player_id = ?", id).Count(&matchCount).Error; err != nil {
		return c.Status(500).JSON(fiber.Map{"error": "database error"})
	}
	if matchCount > 0 {
		return c.Status(409).JSON(fiber.Map{"error": "player has recorded matches and cannot be deleted"})
	}

	res := s.DB.Delete(&models.Player{}, "id = ?", id)
	if res.Error != nil {
		return c.Status(500).JSON(fiber.Map{"error": "failed to delete player"})
	}
	if res.RowsAffected == 0 {
		return c.Status(404).JSON(fiber.Map{"error": "player not found"})
	}
	return c.JSON(fiber.Map{"message": "player deleted"})
}

var allowedAvatarExt = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".webp": true,
}

// UploadAvatarEndpoint stores a player's avatar on R2 when configured,
// falling back to the local uploads directory otherwise.
func (s *PlayerService) UploadAvatarEndpoint(c *fiber.Ctx) error {
	id, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid player id"})
	}

	var player models.Player
	if err := s.DB.First(&player, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(404).JSON(fiber.Map{"error": "player not found"})
		}
		return c.Status(500).JSON(fiber.Map{"error": "database error"})
	}

	fileHeader, err := c.FormFile("avatar")
	if err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "avatar file is required"})
	}
	ext := strings.ToLower(filepath.Ext(fileHeader.Filename))
	if !allowedAvatarExt[ext] {
		return c.Status(400).JSON(fiber.Map{"error": "avatar must be png, jpg or webp"})
	}

	key := fmt.Sprintf("avatars/%d/%s%s", player.ID, uuid.NewString(), ext)

	var url string
	if utils.R2Enabled() {
		url, err = utils.UploadFileToR2(fileHeader, key)
		if err != nil {
			log.Printf("avatar upload to R2 failed for player %d: %v", player.ID, err)
			return c.Status(500).JSON(fiber.Map{"error": "failed to store avatar"})
		}
	} else {
		destPath := utils.GetUploadPath(key)
		if err := utils.SaveFile(fileHeader, destPath); err != nil {
			log.Printf("local avatar save failed for player %d: %v", player.ID, err)
			return c.Status(500).JSON(fiber.Map{"error": "failed to store avatar"})
		}
		url = "/" + filepath.ToSlash(destPath)
	}

	if err := s.DB.Model(&player).Update("avatar_url", url).Error; err != nil {
		return c.Status(500).JSON(fiber.Map{"error": "failed to save avatar URL"})
	}
	return c.JSON(fiber.Map{"avatar_url": url})
}

// RankedPlayer is one row of the live ranking.
type RankedPlayer struct {
	Rank int `json:"rank"`
	models.Player
}

// GetRankingEndpoint returns the full ranking, best rating first, names
// breaking ties. Subscribers of the ranking-changed stream re-pull this.
func (s *PlayerService) GetRankingEndpoint(c *fiber.Ctx) error {
	var players []models.Player
	if err := s.DB.Order("rating DESC, name ASC").Find(&players).Error; err != nil {
		return c.Status(500).JSON(fiber.Map{"error": "database error"})
	}

	ranked := make([]RankedPlayer, len(players))
	for i, p := range players {
		ranked[i] = RankedPlayer{Rank: i + 1, Player: p}
	}
	return c.JSON(fiber.Map{"ranking": ranked})
}

// GetRatingHistoryEndpoint returns a player's Elo trail, newest first.
func (s *PlayerService) GetRatingHistoryEndpoint(c *fiber.Ctx) error {
	id, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid player id"})
	}

	var history []models.RatingHistory
	if err := s.DB.Where("player_id = ?", id).Order("id DESC").Limit(100).Find(&history).Error; err != nil {
		return c.Status(500).JSON(fiber.Map{"error": "database error"})
	}
	return c.JSON(fiber.Map{"history": history})
}
