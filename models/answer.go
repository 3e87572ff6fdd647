package models

import (
	"time"

	"gorm.io/gorm"
)

// Answer is unique per (round, author).
type Answer struct {
	ID          string    `json:"id" gorm:"primaryKey;size:36"`
	RoundID     string    `json:"roundId" gorm:"size:36;not null;uniqueIndex:idx_answer_round_user"`
	UserID      string    `json:"userId" gorm:"size:36;not null;uniqueIndex:idx_answer_round_user"`
	Content     string    `json:"content" gorm:"not null"`
	SubmittedAt time.Time `json:"submittedAt"`
}

func (a *Answer) BeforeCreate(tx *gorm.DB) error {
	ensureID(&a.ID)
	return nil
}
