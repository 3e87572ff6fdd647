package models

import (
	"time"

	"gorm.io/gorm"
)

type Question struct {
	ID         string    `json:"id" gorm:"primaryKey;size:36"`
	Content    string    `json:"content" gorm:"not null"`
	Category   string    `json:"category"`
	Difficulty string    `json:"difficulty" gorm:"not null;default:'easy'"`
	CreatedAt  time.Time `json:"createdAt"`
}

func (q *Question) BeforeCreate(tx *gorm.DB) error {
	ensureID(&q.ID)
	return nil
}
