package services

import (
	"context"
	"errors"
	"fmt"
	"math/rand"

	"promptparty/apperr"
	"promptparty/models"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

type QuestionService struct {
	db  *gorm.DB
	log *zap.Logger
	// intn is swapped in tests for deterministic picks.
	intn func(n int) int
}

func NewQuestionService(db *gorm.DB, logger *zap.Logger) *QuestionService {
	return &QuestionService{db: db, log: logger, intn: rand.Intn}
}

var defaultQuestions = []models.Question{
	{Content: "The worst possible name for a cruise ship", Category: "everyday", Difficulty: "easy"},
	{Content: "Something you should never say at a job interview", Category: "work", Difficulty: "easy"},
	{Content: "What a robot would write in its diary after its first day on Earth", Category: "technology", Difficulty: "medium"},
	{Content: "A rejected flavor of ice cream", Category: "food", Difficulty: "easy"},
	{Content: "The real reason dinosaurs went extinct", Category: "history", Difficulty: "medium"},
	{Content: "A terrible superpower to have at a wedding", Category: "fantasy", Difficulty: "easy"},
	{Content: "The first thing aliens would complain about after visiting a supermarket", Category: "space", Difficulty: "medium"},
	{Content: "A surprising downside of being able to rewind time", Category: "fantasy", Difficulty: "hard"},
	{Content: "The most useless invention that would still sell millions", Category: "technology", Difficulty: "medium"},
	{Content: "What your pet is secretly thinking during video calls", Category: "animals", Difficulty: "easy"},
	{Content: "A motivational quote that is actually terrible advice", Category: "everyday", Difficulty: "medium"},
	{Content: "The title of a self-help book written by a cat", Category: "animals", Difficulty: "easy"},
	{Content: "An Olympic sport that should exist but does not", Category: "sports", Difficulty: "medium"},
	{Content: "The worst thing to hear from your pilot mid-flight", Category: "travel", Difficulty: "easy"},
	{Content: "A new law that would make everyone slightly uncomfortable", Category: "society", Difficulty: "hard"},
}

// SeedDefaults fills an empty question table with the built-in pool.
func (s *QuestionService) SeedDefaults(ctx context.Context) (int, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&models.Question{}).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("count questions: %w", err)
	}
	if count > 0 {
		return 0, nil
	}

	seed := make([]models.Question, len(defaultQuestions))
	copy(seed, defaultQuestions)
	if err := s.db.WithContext(ctx).Create(&seed).Error; err != nil {
		return 0, fmt.Errorf("seed questions: %w", err)
	}
	s.log.Info("seeded question pool", zap.Int("count", len(seed)))
	return len(seed), nil
}

// Pick returns a uniformly random question using tx. Questions already used
// in sessionID are skipped when avoidRepeats is set, unless that would leave
// nothing to pick.
func (s *QuestionService) Pick(tx *gorm.DB, sessionID string, avoidRepeats bool) (*models.Question, error) {
	if avoidRepeats {
		used := tx.Model(&models.Round{}).Select("question_id").Where("session_id = ?", sessionID)
		q, err := s.pickFrom(tx.Model(&models.Question{}).Where("id NOT IN (?)", used))
		if err == nil {
			return q, nil
		}
		if !errors.Is(err, apperr.ErrNotFound) {
			return nil, err
		}
	}
	return s.pickFrom(tx.Model(&models.Question{}))
}

func (s *QuestionService) pickFrom(scope *gorm.DB) (*models.Question, error) {
	var count int64
	if err := scope.Session(&gorm.Session{}).Count(&count).Error; err != nil {
		return nil, apperr.Internal("count questions", err)
	}
	if count == 0 {
		return nil, apperr.New(apperr.CodeNotFound, "no questions available")
	}

	var q models.Question
	offset := s.intn(int(count))
	if err := scope.Session(&gorm.Session{}).Order("id").Offset(offset).Limit(1).Take(&q).Error; err != nil {
		return nil, apperr.Internal("load question", err)
	}
	return &q, nil
}
