package models

// DefaultRating is the Elo rating assigned to a newly registered player.
const DefaultRating = 1500

// Player is a club member taking part in ranked matches.
type Player struct {
	ID        uint   `gorm:"primaryKey;autoIncrement" json:"id"`
	Name      string `gorm:"not null;index" json:"name"`
	Initials  string `gorm:"size:4" json:"initials"`
	Slug      string `gorm:"uniqueIndex;not null" json:"slug"`
	AvatarURL string `json:"avatar_url,omitempty"`

	// Current Elo rating. Mutated only through match finalization.
	Rating int `gorm:"not null;default:1500" json:"rating"`

	Timestamps
}
