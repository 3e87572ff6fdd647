package models

import (
	"time"

	"gorm.io/gorm"
)

// GameSession is one play-through of a room. CurrentRound is 0 until the host
// starts the game and never exceeds TotalRounds.
type GameSession struct {
	ID           string     `json:"id" gorm:"primaryKey;size:36"`
	RoomID       string     `json:"roomId" gorm:"size:36;not null;index"`
	CurrentRound int        `json:"currentRound" gorm:"not null;default:0"`
	TotalRounds  int        `json:"totalRounds" gorm:"not null;default:5"`
	Phase        string     `json:"phase" gorm:"not null;default:'waiting'"`
	StartedAt    *time.Time `json:"startedAt"`
	EndedAt      *time.Time `json:"endedAt"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`

	// Relationships
	Room    Room            `json:"-" gorm:"foreignKey:RoomID"`
	Rounds  []Round         `json:"-" gorm:"foreignKey:SessionID;constraint:OnDelete:CASCADE"`
	Players []PlayerSession `json:"-" gorm:"foreignKey:SessionID;constraint:OnDelete:CASCADE"`
}

func (s *GameSession) BeforeCreate(tx *gorm.DB) error {
	ensureID(&s.ID)
	return nil
}
