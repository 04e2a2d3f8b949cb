package models

import "time"

// Match records a single best-of-N encounter between two players.
// A match owns exactly two MatchPlayer rows, one per participant.
type Match struct {
	ID         uint `gorm:"primaryKey;autoIncrement" json:"id"`
	BestOfSets int  `gorm:"default:3" json:"best_of_sets"`

	// Finished flips false → true exactly once, through finalization.
	Finished bool `gorm:"not null;default:false;index" json:"finished"`

	// Free-text commentary shown in the news feed (empty = no news entry).
	News       string `gorm:"type:text" json:"news"`
	ExtraInfo1 string `gorm:"type:text" json:"extra_info1"`
	ExtraInfo2 string `gorm:"type:text" json:"extra_info2"`

	PlayedAt *time.Time `gorm:"index" json:"played_at,omitempty"`

	// Version backs the optimistic concurrency check on finalization.
	Version int `gorm:"not null;default:1" json:"-"`

	Players []MatchPlayer `gorm:"foreignKey:MatchID;constraint:OnDelete:CASCADE" json:"players"`

	Timestamps
}

// MatchPlayer carries one participant's score and winner flag.
// Owned by its Match and destroyed with it; the Player itself is not.
type MatchPlayer struct {
	ID       uint `gorm:"primaryKey;autoIncrement" json:"id"`
	MatchID  uint `gorm:"not null;index" json:"match_id"`
	PlayerID uint `gorm:"not null;index" json:"player_id"`
	Score    int  `json:"score"`
	IsWinner bool `gorm:"not null;default:false" json:"is_winner"`

	Player Player `gorm:"foreignKey:PlayerID" json:"player,omitempty"`
}

// NewsItem is one entry of the derived news view. Not persisted.
type NewsItem struct {
	Text string    `json:"text"`
	Date time.Time `json:"date"`
}
