package services

import (
	"context"
	"testing"

	"promptparty/apperr"
	"promptparty/engine"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateRoomDefaults(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	host := env.user(t, "host")

	res, err := env.rooms.CreateRoom(ctx, host, &CreateRoomRequest{Name: "  friday night  "})
	require.NoError(t, err)
	assert.Equal(t, "friday night", res.Room.Name)
	assert.Equal(t, 8, res.Room.MaxPlayers)
	assert.Equal(t, 5, res.Room.TotalRounds)
	assert.Equal(t, 60, res.Room.TimeLimit)
	assert.Equal(t, 5, res.Session.TotalRounds)
	assert.Equal(t, string(engine.PhaseWaiting), res.Session.Phase)
	assert.Equal(t, host, res.Player.UserID)

	_, err = env.rooms.CreateRoom(ctx, host, &CreateRoomRequest{Name: "   "})
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestGetRoom(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	host := env.user(t, "host")
	res, err := env.rooms.CreateRoom(ctx, host, &CreateRoomRequest{Name: "r", TimeLimit: 30})
	require.NoError(t, err)

	detail, err := env.rooms.GetRoom(ctx, res.Room.ID)
	require.NoError(t, err)
	assert.Equal(t, 30, detail.Room.TimeLimit)
	require.NotNil(t, detail.Session)
	assert.Equal(t, res.Session.ID, detail.Session.ID)

	_, err = env.rooms.GetRoom(ctx, "nope")
	assert.ErrorIs(t, err, apperr.ErrValidation)
}
