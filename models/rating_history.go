package models

import "time"

// RatingHistory is the per-match Elo audit trail. Two rows are written
// inside every rating-affecting finalization, one per participant.
type RatingHistory struct {
	ID           uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	PlayerID     uint      `gorm:"not null;index" json:"player_id"`
	MatchID      uint      `gorm:"not null;index" json:"match_id"`
	OpponentID   uint      `json:"opponent_id"`
	RatingBefore int       `gorm:"not null" json:"rating_before"`
	RatingAfter  int       `gorm:"not null" json:"rating_after"`
	RatingChange int       `gorm:"not null" json:"rating_change"`
	CreatedAt    time.Time `json:"created_at" gorm:"autoCreateTime"`
}

func (RatingHistory) TableName() string {
	return "rating_history"
}
