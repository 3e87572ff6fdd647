package models

import (
	"time"

	"gorm.io/gorm"
)

type Round struct {
	ID          string     `json:"id" gorm:"primaryKey;size:36"`
	SessionID   string     `json:"sessionId" gorm:"size:36;not null;uniqueIndex:idx_round_session_number"`
	RoundNumber int        `json:"roundNumber" gorm:"not null;uniqueIndex:idx_round_session_number"`
	QuestionID  string     `json:"questionId" gorm:"size:36;not null;index"`
	TimeLimit   int        `json:"timeLimit" gorm:"not null;default:60"` // seconds
	Status      string     `json:"status" gorm:"not null;default:'waiting'"`
	StartedAt   *time.Time `json:"startedAt"`
	EndedAt     *time.Time `json:"endedAt"`
	CreatedAt   time.Time  `json:"createdAt"`

	// Relationships
	Question Question `json:"-" gorm:"foreignKey:QuestionID"`
	Answers  []Answer `json:"-" gorm:"foreignKey:RoundID;constraint:OnDelete:CASCADE"`
	Votes    []Vote   `json:"-" gorm:"foreignKey:RoundID;constraint:OnDelete:CASCADE"`
}

func (r *Round) BeforeCreate(tx *gorm.DB) error {
	ensureID(&r.ID)
	return nil
}
