package services

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"promptparty/config"
	"promptparty/models"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "game.db")
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(models.All()...))
	return db
}

type notification struct {
	sessionID string
	userID    string
	payload   Payload
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []notification
}

func (r *recordingNotifier) Notify(sessionID, userID string, p Payload) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, notification{sessionID: sessionID, userID: userID, payload: p})
}

func (r *recordingNotifier) count(t MessageType) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.events {
		if e.payload.messageType() == t {
			n++
		}
	}
	return n
}

func (r *recordingNotifier) last(t MessageType) (Payload, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.events) - 1; i >= 0; i-- {
		if r.events[i].payload.messageType() == t {
			return r.events[i].payload, true
		}
	}
	return nil, false
}

type testEnv struct {
	db       *gorm.DB
	games    *GameService
	rooms    *RoomService
	timers   *PhaseTimers
	notifier *recordingNotifier
	users    int
}

func newTestEnv(t *testing.T, tweak ...func(*config.GameConfig)) *testEnv {
	t.Helper()
	cfg := config.DefaultGameConfig()
	for _, fn := range tweak {
		fn(&cfg)
	}

	db := newTestDB(t)
	log := zap.NewNop()
	questions := NewQuestionService(db, log)
	_, err := questions.SeedDefaults(context.Background())
	require.NoError(t, err)

	locks := NewSessionLocks()
	timers := NewPhaseTimers()
	t.Cleanup(timers.Stop)

	games := NewGameService(db, questions, NewStateCache(nil, time.Hour, log), locks, timers, cfg, log)
	notifier := &recordingNotifier{}
	games.SetNotifier(notifier)

	return &testEnv{
		db:       db,
		games:    games,
		rooms:    NewRoomService(db, games, locks, cfg, log),
		timers:   timers,
		notifier: notifier,
	}
}

func (e *testEnv) user(t *testing.T, name string) string {
	t.Helper()
	e.users++
	u := models.User{
		Username:     name,
		Email:        fmt.Sprintf("%s%d@example.com", name, e.users),
		PasswordHash: "x",
	}
	require.NoError(t, e.db.Create(&u).Error)
	return u.ID
}

// session creates a room hosted by host with the given players seated and
// returns the session id.
func (e *testEnv) session(t *testing.T, rounds int, host string, players ...string) string {
	t.Helper()
	ctx := context.Background()
	res, err := e.rooms.CreateRoom(ctx, host, &CreateRoomRequest{Name: "party", TotalRounds: rounds})
	require.NoError(t, err)
	for _, p := range players {
		_, err := e.rooms.Join(ctx, res.Room.ID, p)
		require.NoError(t, err)
	}
	return res.Session.ID
}

func (e *testEnv) state(t *testing.T, sessionID, userID string) *SessionState {
	t.Helper()
	st, err := e.games.GetState(context.Background(), sessionID, userID)
	require.NoError(t, err)
	return st
}

// startAnswering starts the session and opens answering.
func (e *testEnv) startAnswering(t *testing.T, sessionID, host string) {
	t.Helper()
	ctx := context.Background()
	_, err := e.games.StartSession(ctx, sessionID, host)
	require.NoError(t, err)
	_, err = e.games.AdvancePhase(ctx, sessionID, host, "answering")
	require.NoError(t, err)
}

func scoreOf(st *SessionState, userID string) int {
	for _, p := range st.Players {
		if p.UserID == userID {
			return p.Score
		}
	}
	return -1
}
