package services

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"promptparty/apperr"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	sendBufferSize = 256
	maxMessageSize = 4096
)

// Conn is the part of *websocket.Conn the hub uses.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	WriteControl(messageType int, data []byte, deadline time.Time) error
	SetReadLimit(limit int64)
	SetWriteDeadline(t time.Time) error
	SetPongHandler(h func(appData string) error)
	Close() error
}

// Presence is what the hub needs from the game: connection bookkeeping and
// the current state for clients that ask for it.
type Presence interface {
	SetPlayerConnection(ctx context.Context, sessionID, userID string, connected bool) error
	GameStatePayload(ctx context.Context, sessionID, userID string) (GameStatePayload, error)
}

// Hub fans notifications out to live connections grouped by session.
// Register and Unregister take the write lock; Broadcast copies the
// recipients under the read lock and sends without holding it.
type Hub struct {
	mu       sync.RWMutex
	clients  map[string]*Client
	sessions map[string]map[*Client]struct{}

	presence Presence
	log      *zap.Logger

	heartbeatInterval time.Duration
	heartbeatTimeout  time.Duration
	now               func() time.Time

	stop      chan struct{}
	done      chan struct{}
	startOnce sync.Once
	stopOnce  sync.Once
}

type Client struct {
	hub       *Hub
	sessionID string
	userID    string
	conn      Conn
	send      chan []byte

	mu       sync.Mutex
	closed   bool
	lastSeen time.Time
}

func NewHub(presence Presence, interval, timeout time.Duration, logger *zap.Logger) *Hub {
	return &Hub{
		clients:           make(map[string]*Client),
		sessions:          make(map[string]map[*Client]struct{}),
		presence:          presence,
		log:               logger,
		heartbeatInterval: interval,
		heartbeatTimeout:  timeout,
		now:               time.Now,
		stop:              make(chan struct{}),
		done:              make(chan struct{}),
	}
}

func clientKey(sessionID, userID string) string {
	return sessionID + ":" + userID
}

// Start launches the heartbeat loop.
func (h *Hub) Start() {
	h.startOnce.Do(func() {
		go h.heartbeatLoop()
	})
}

// Shutdown stops the heartbeat and closes every connection.
func (h *Hub) Shutdown() {
	h.stopOnce.Do(func() {
		close(h.stop)
		h.startOnce.Do(func() { close(h.done) })
		<-h.done

		h.mu.Lock()
		all := make([]*Client, 0, len(h.clients))
		for _, c := range h.clients {
			all = append(all, c)
		}
		h.clients = make(map[string]*Client)
		h.sessions = make(map[string]map[*Client]struct{})
		h.mu.Unlock()

		for _, c := range all {
			c.close()
		}
		h.log.Info("hub stopped", zap.Int("closed_connections", len(all)))
	})
}

// Register stores conn under (sessionID, userID), replacing and closing any
// previous connection with the same key, and announces the join to the
// rest of the session.
func (h *Hub) Register(sessionID, userID string, conn Conn) *Client {
	c := &Client{
		hub:       h,
		sessionID: sessionID,
		userID:    userID,
		conn:      conn,
		send:      make(chan []byte, sendBufferSize),
		lastSeen:  h.now(),
	}

	key := clientKey(sessionID, userID)
	h.mu.Lock()
	prior := h.clients[key]
	if prior != nil {
		delete(h.sessions[sessionID], prior)
	}
	h.clients[key] = c
	if h.sessions[sessionID] == nil {
		h.sessions[sessionID] = make(map[*Client]struct{})
	}
	h.sessions[sessionID][c] = struct{}{}
	h.mu.Unlock()

	if prior != nil {
		prior.close()
		h.log.Debug("replaced connection", zap.String("session_id", sessionID), zap.String("user_id", userID))
	}

	if h.presence != nil {
		if err := h.presence.SetPlayerConnection(context.Background(), sessionID, userID, true); err != nil {
			h.log.Warn("failed to mark player connected", zap.String("session_id", sessionID), zap.String("user_id", userID), zap.Error(err))
		}
	}
	h.broadcastExcept(sessionID, c, NewEnvelope(sessionID, userID, JoinPayload{}))

	h.log.Info("client registered", zap.String("session_id", sessionID), zap.String("user_id", userID))
	return c
}

// Unregister removes c if it is still the registered connection for its key.
// Removing the last connection of a session drops the session entry;
// otherwise the rest of the session is told about the leave.
func (h *Hub) Unregister(c *Client) {
	key := clientKey(c.sessionID, c.userID)

	h.mu.Lock()
	current, ok := h.clients[key]
	removed := ok && current == c
	empty := false
	if removed {
		delete(h.clients, key)
		if set := h.sessions[c.sessionID]; set != nil {
			delete(set, c)
			if len(set) == 0 {
				delete(h.sessions, c.sessionID)
				empty = true
			}
		}
	}
	h.mu.Unlock()

	c.close()
	if !removed {
		return
	}

	if h.presence != nil {
		if err := h.presence.SetPlayerConnection(context.Background(), c.sessionID, c.userID, false); err != nil {
			h.log.Warn("failed to mark player disconnected", zap.String("session_id", c.sessionID), zap.String("user_id", c.userID), zap.Error(err))
		}
		// a reconnect may have registered while the write above was pending
		if h.current(key) != nil {
			if err := h.presence.SetPlayerConnection(context.Background(), c.sessionID, c.userID, true); err != nil {
				h.log.Warn("failed to mark player connected", zap.String("session_id", c.sessionID), zap.String("user_id", c.userID), zap.Error(err))
			}
			return
		}
	}
	if !empty {
		h.Broadcast(c.sessionID, NewEnvelope(c.sessionID, c.userID, LeavePayload{}))
	}
	h.log.Info("client unregistered", zap.String("session_id", c.sessionID), zap.String("user_id", c.userID))
}

func (h *Hub) current(key string) *Client {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.clients[key]
}

// Broadcast sends env to every live connection of the session. A slow or
// broken connection never blocks or aborts delivery to the others.
func (h *Hub) Broadcast(sessionID string, env Envelope) {
	h.broadcastExcept(sessionID, nil, env)
}

// Notify implements Notifier.
func (h *Hub) Notify(sessionID, userID string, p Payload) {
	h.Broadcast(sessionID, NewEnvelope(sessionID, userID, p))
}

func (h *Hub) broadcastExcept(sessionID string, skip *Client, env Envelope) {
	data, err := json.Marshal(env)
	if err != nil {
		h.log.Error("failed to marshal message", zap.String("type", string(env.Type)), zap.Error(err))
		return
	}

	h.mu.RLock()
	targets := make([]*Client, 0, len(h.sessions[sessionID]))
	for c := range h.sessions[sessionID] {
		if c != skip {
			targets = append(targets, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range targets {
		if !c.trySend(data) {
			h.log.Warn("dropped message for slow client",
				zap.String("session_id", sessionID),
				zap.String("user_id", c.userID),
				zap.String("type", string(env.Type)))
		}
	}
}

func (h *Hub) ConnectedUsers(sessionID string) []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	users := make([]string, 0, len(h.sessions[sessionID]))
	for c := range h.sessions[sessionID] {
		users = append(users, c.userID)
	}
	return users
}

func (h *Hub) heartbeatLoop() {
	defer close(h.done)
	ticker := time.NewTicker(h.heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-h.stop:
			return
		case <-ticker.C:
			h.heartbeat()
		}
	}
}

// heartbeat pings every connection and drops those not heard from within
// the timeout.
func (h *Hub) heartbeat() {
	h.mu.RLock()
	all := make([]*Client, 0, len(h.clients))
	for _, c := range h.clients {
		all = append(all, c)
	}
	h.mu.RUnlock()

	now := h.now()
	for _, c := range all {
		if now.Sub(c.seen()) > h.heartbeatTimeout {
			h.log.Info("connection timed out", zap.String("session_id", c.sessionID), zap.String("user_id", c.userID))
			h.Unregister(c)
			continue
		}
		if err := c.conn.WriteControl(websocket.PingMessage, nil, now.Add(writeWait)); err != nil {
			h.log.Debug("ping failed", zap.String("session_id", c.sessionID), zap.String("user_id", c.userID), zap.Error(err))
		}
	}
}

// Serve runs the connection's pumps. It returns once the read side ends.
func (h *Hub) Serve(c *Client) {
	go c.writePump()
	c.readPump()
}

func (c *Client) touch() {
	c.mu.Lock()
	c.lastSeen = c.hub.now()
	c.mu.Unlock()
}

func (c *Client) seen() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastSeen
}

func (c *Client) trySend(data []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

func (c *Client) close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.send)
	c.mu.Unlock()
	_ = c.conn.Close()
}

func (c *Client) readPump() {
	defer c.hub.Unregister(c)

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetPongHandler(func(string) error {
		c.touch()
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.log.Debug("websocket read error", zap.String("user_id", c.userID), zap.Error(err))
			}
			return
		}
		c.touch()
		if !c.handleMessage(message) {
			return
		}
	}
}

func (c *Client) writePump() {
	defer c.conn.Close()

	for message := range c.send {
		_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
			return
		}
	}
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
}

// handleMessage dispatches one client frame. It returns false when the
// connection should end.
func (c *Client) handleMessage(raw []byte) bool {
	var msg inboundMessage
	if err := json.Unmarshal(raw, &msg); err != nil || msg.Type == "" {
		c.replyError(apperr.New(apperr.CodeValidation, "malformed message"))
		return true
	}
	if msg.SessionID != "" && msg.SessionID != c.sessionID {
		c.replyError(apperr.New(apperr.CodeForbidden, "message is for another session"))
		return true
	}

	switch msg.Type {
	case MessageJoin, MessageGameState:
		c.sendState()
	case MessageLeave:
		return false
	default:
		c.replyError(apperr.Newf(apperr.CodeValidation, "unsupported message type %q", msg.Type))
	}
	return true
}

func (c *Client) sendState() {
	if c.hub.presence == nil {
		return
	}
	state, err := c.hub.presence.GameStatePayload(context.Background(), c.sessionID, c.userID)
	if err != nil {
		c.replyError(err)
		return
	}
	c.reply(NewEnvelope(c.sessionID, c.userID, state))
}

func (c *Client) replyError(err error) {
	c.reply(NewEnvelope(c.sessionID, c.userID, ErrorPayload{
		Error: apperr.MessageOf(err),
		Code:  string(apperr.CodeOf(err)),
	}))
}

func (c *Client) reply(env Envelope) {
	data, err := json.Marshal(env)
	if err != nil {
		c.hub.log.Error("failed to marshal reply", zap.Error(err))
		return
	}
	if !c.trySend(data) {
		c.hub.log.Warn("dropped reply for slow client", zap.String("user_id", c.userID))
	}
}
