package models

import "time"

// RankingSnapshot is one player's position on a given day, written by the
// snapshot worker. At most one row per player per day; a later sweep on the
// same day overwrites the earlier one.
type RankingSnapshot struct {
	ID       uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	PlayerID uint      `gorm:"not null;uniqueIndex:idx_snapshot_player_day" json:"player_id"`
	Day      string    `gorm:"not null;size:10;uniqueIndex:idx_snapshot_player_day" json:"day"` // YYYY-MM-DD (UTC)
	Rating   int       `json:"rating"`
	Rank     int       `json:"rank"`
	TakenAt  time.Time `gorm:"autoCreateTime" json:"taken_at"`
}
