package models

import (
	"time"

	"gorm.io/gorm"
)

const (
	RoomStatusWaiting  = "waiting"
	RoomStatusPlaying  = "playing"
	RoomStatusFinished = "finished"
)

type Room struct {
	ID          string    `json:"id" gorm:"primaryKey;size:36"`
	Name        string    `json:"name" gorm:"not null"`
	HostID      string    `json:"hostId" gorm:"size:36;not null;index"`
	MaxPlayers  int       `json:"maxPlayers" gorm:"not null;default:8"`
	TotalRounds int       `json:"totalRounds" gorm:"not null;default:5"`
	TimeLimit   int       `json:"timeLimit" gorm:"not null;default:60"`    // seconds to answer
	Status      string    `json:"status" gorm:"not null;default:'waiting'"` // waiting, playing, finished
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`

	// Relationships
	Host User `json:"-" gorm:"foreignKey:HostID"`
}

func (r *Room) BeforeCreate(tx *gorm.DB) error {
	ensureID(&r.ID)
	return nil
}
