package services

import (
	"context"
	"testing"

	"promptparty/apperr"
	"promptparty/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestSeedDefaultsRunsOnce(t *testing.T) {
	db := newTestDB(t)
	qs := NewQuestionService(db, zap.NewNop())
	ctx := context.Background()

	n, err := qs.SeedDefaults(ctx)
	require.NoError(t, err)
	assert.Equal(t, len(defaultQuestions), n)

	n, err = qs.SeedDefaults(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	var count int64
	require.NoError(t, db.Model(&models.Question{}).Count(&count).Error)
	assert.Equal(t, int64(len(defaultQuestions)), count)
}

func TestPickEmptyPool(t *testing.T) {
	db := newTestDB(t)
	qs := NewQuestionService(db, zap.NewNop())

	_, err := qs.Pick(db, "s1", false)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	_, err = qs.Pick(db, "s1", true)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestPickUsesOffset(t *testing.T) {
	db := newTestDB(t)
	qs := NewQuestionService(db, zap.NewNop())
	_, err := qs.SeedDefaults(context.Background())
	require.NoError(t, err)

	var ordered []models.Question
	require.NoError(t, db.Order("id").Find(&ordered).Error)

	qs.intn = func(n int) int { return n - 1 }
	q, err := qs.Pick(db, "s1", false)
	require.NoError(t, err)
	assert.Equal(t, ordered[len(ordered)-1].ID, q.ID)
}

func TestPickAvoidsUsedQuestionsUntilExhausted(t *testing.T) {
	db := newTestDB(t)
	qs := NewQuestionService(db, zap.NewNop())
	qs.intn = func(int) int { return 0 }
	ctx := context.Background()

	for _, content := range []string{"first", "second"} {
		require.NoError(t, db.WithContext(ctx).Create(&models.Question{Content: content}).Error)
	}
	var ordered []models.Question
	require.NoError(t, db.Order("id").Find(&ordered).Error)

	sessionID := "session-1"
	require.NoError(t, db.Create(&models.Round{SessionID: sessionID, RoundNumber: 1, QuestionID: ordered[0].ID, Status: "completed"}).Error)

	q, err := qs.Pick(db, sessionID, true)
	require.NoError(t, err)
	assert.Equal(t, ordered[1].ID, q.ID)

	q, err = qs.Pick(db, sessionID, false)
	require.NoError(t, err)
	assert.Equal(t, ordered[0].ID, q.ID, "repeats allowed when not avoiding")

	require.NoError(t, db.Create(&models.Round{SessionID: sessionID, RoundNumber: 2, QuestionID: ordered[1].ID, Status: "completed"}).Error)
	q, err = qs.Pick(db, sessionID, true)
	require.NoError(t, err, "falls back to the full pool")
	assert.Equal(t, ordered[0].ID, q.ID)
}
