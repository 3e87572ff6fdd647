package models

import (
	"time"

	"gorm.io/gorm"
)

const (
	PlayerConnected    = "connected"
	PlayerDisconnected = "disconnected"
)

// PlayerSession is a user's membership in a session. Score only grows.
type PlayerSession struct {
	ID        string     `json:"id" gorm:"primaryKey;size:36"`
	SessionID string     `json:"sessionId" gorm:"size:36;not null;uniqueIndex:idx_player_session_user"`
	UserID    string     `json:"userId" gorm:"size:36;not null;uniqueIndex:idx_player_session_user"`
	Score     int        `json:"score" gorm:"not null;default:0"`
	Status    string     `json:"status" gorm:"not null;default:'connected'"` // connected, disconnected
	JoinedAt  time.Time  `json:"joinedAt"`
	LeftAt    *time.Time `json:"leftAt"`

	// Relationships
	User User `json:"-" gorm:"foreignKey:UserID"`
}

func (p *PlayerSession) BeforeCreate(tx *gorm.DB) error {
	ensureID(&p.ID)
	return nil
}
