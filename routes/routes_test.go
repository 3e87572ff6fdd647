package routes

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"promptparty/apperr"
	"promptparty/handlers"
	"promptparty/services"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type tokens map[string]string

func (t tokens) ValidateToken(token string) (string, error) {
	if id, ok := t[token]; ok {
		return id, nil
	}
	return "", errors.New("bad token")
}

type members map[string]bool

func (m members) IsParticipant(_ context.Context, sessionID, userID string) (bool, error) {
	if sessionID == "bad" {
		return false, apperr.New(apperr.CodeValidation, "invalid session id")
	}
	return m[sessionID+":"+userID], nil
}

func newTestRouter(t *testing.T) (*gin.Engine, *services.Hub) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	hub := services.NewHub(nil, time.Hour, time.Hour, zap.NewNop())
	t.Cleanup(hub.Shutdown)

	r := gin.New()
	SetupRoutes(r, Deps{
		Auth:         handlers.NewAuthHandler(nil),
		Rooms:        handlers.NewRoomHandler(nil),
		Games:        handlers.NewGameHandler(nil),
		Hub:          hub,
		Participants: members{"s1:alice": true},
		Tokens:       tokens{"alice-token": "alice", "bob-token": "bob"},
		Log:          zap.NewNop(),
	})
	return r, hub
}

func TestHealth(t *testing.T) {
	r, _ := newTestRouter(t)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	r, _ := newTestRouter(t)
	for _, path := range []string{"/api/sessions/s1", "/api/auth/profile", "/api/rooms/r1"} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusUnauthorized, w.Code, path)
	}
}

func TestWebsocketGate(t *testing.T) {
	r, _ := newTestRouter(t)

	cases := []struct {
		name   string
		path   string
		status int
	}{
		{name: "no token", path: "/ws/sessions/s1", status: http.StatusUnauthorized},
		{name: "not a member", path: "/ws/sessions/s1?token=bob-token", status: http.StatusForbidden},
		{name: "bad session id", path: "/ws/sessions/bad?token=alice-token", status: http.StatusBadRequest},
		{name: "plain http", path: "/ws/sessions/s1?token=alice-token", status: http.StatusBadRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, tc.path, nil))
			assert.Equal(t, tc.status, w.Code)
		})
	}
}

func TestWebsocketReceivesSessionNotifications(t *testing.T) {
	r, hub := newTestRouter(t)
	srv := httptest.NewServer(r)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/sessions/s1?token=alice-token"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool {
		return len(hub.ConnectedUsers("s1")) == 1
	}, time.Second, 5*time.Millisecond)

	hub.Notify("s1", "", services.AnswerPayload{HasAnswered: true, AnsweredCount: 1, ConnectedPlayers: 1})

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var frame map[string]any
	require.NoError(t, conn.ReadJSON(&frame))
	assert.Equal(t, "answer", frame["type"])
	assert.Equal(t, "s1", frame["sessionId"])

	require.NoError(t, conn.WriteJSON(map[string]string{"type": "leave"}))
	require.Eventually(t, func() bool {
		return len(hub.ConnectedUsers("s1")) == 0
	}, time.Second, 5*time.Millisecond)
}

func TestOriginChecker(t *testing.T) {
	req := func(origin string) *http.Request {
		r := httptest.NewRequest(http.MethodGet, "/ws/sessions/s1", nil)
		if origin != "" {
			r.Header.Set("Origin", origin)
		}
		return r
	}

	open := originChecker(nil)
	assert.True(t, open(req("http://anywhere.test")))

	restricted := originChecker([]string{"http://app.test"})
	assert.True(t, restricted(req("http://app.test")))
	assert.True(t, restricted(req("")))
	assert.False(t, restricted(req("http://evil.test")))
}
