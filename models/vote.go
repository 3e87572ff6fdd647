package models

import (
	"time"

	"gorm.io/gorm"
)

// Vote is unique per (round, voter).
type Vote struct {
	ID       string    `json:"id" gorm:"primaryKey;size:36"`
	RoundID  string    `json:"roundId" gorm:"size:36;not null;uniqueIndex:idx_vote_round_voter"`
	VoterID  string    `json:"voterId" gorm:"size:36;not null;uniqueIndex:idx_vote_round_voter"`
	AnswerID string    `json:"answerId" gorm:"size:36;not null;index"`
	VotedAt  time.Time `json:"votedAt"`
}

func (v *Vote) BeforeCreate(tx *gorm.DB) error {
	ensureID(&v.ID)
	return nil
}
