package services

import (
	"encoding/json"
	"time"

	"promptparty/engine"
)

type MessageType string

const (
	MessageJoin        MessageType = "join"
	MessageLeave       MessageType = "leave"
	MessageAnswer      MessageType = "answer"
	MessageVote        MessageType = "vote"
	MessageGameState   MessageType = "game_state"
	MessageQuestion    MessageType = "question"
	MessageResults     MessageType = "results"
	MessageScoreUpdate MessageType = "score_update"
	MessageError       MessageType = "error"
)

// Payload is implemented only by the message bodies below, so every
// notification the server emits has a known shape.
type Payload interface {
	messageType() MessageType
}

// Envelope is the frame written to live connections. Notifications are
// hints to refetch; Data never carries answer text for answer/vote events.
type Envelope struct {
	Type      MessageType `json:"type"`
	SessionID string      `json:"sessionId"`
	UserID    string      `json:"userId,omitempty"`
	Data      Payload     `json:"data,omitempty"`
	Timestamp int64       `json:"timestamp"`
}

func NewEnvelope(sessionID, userID string, p Payload) Envelope {
	env := Envelope{
		Type:      p.messageType(),
		SessionID: sessionID,
		UserID:    userID,
		Data:      p,
		Timestamp: time.Now().UnixMilli(),
	}
	switch p.(type) {
	case JoinPayload, LeavePayload:
		// presence frames carry only the user id
		env.Data = nil
	}
	return env
}

// inboundMessage is what clients send. Data is decoded per type.
type inboundMessage struct {
	Type      MessageType     `json:"type"`
	SessionID string          `json:"sessionId"`
	UserID    string          `json:"userId,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp int64           `json:"timestamp"`
}

type JoinPayload struct{}

type LeavePayload struct{}

type AnswerPayload struct {
	HasAnswered      bool `json:"hasAnswered"`
	AnsweredCount    int  `json:"answeredCount"`
	ConnectedPlayers int  `json:"connectedPlayers"`
}

type VotePayload struct {
	HasVoted         bool `json:"hasVoted"`
	VotedCount       int  `json:"votedCount"`
	ConnectedPlayers int  `json:"connectedPlayers"`
}

type GameStatePayload struct {
	Phase        engine.Phase `json:"phase"`
	CurrentRound int          `json:"currentRound"`
	TotalRounds  int          `json:"totalRounds"`
	TimeLeft     *int         `json:"timeLeft,omitempty"`
	Players      []PlayerView `json:"players"`
}

type QuestionPayload struct {
	ID          string `json:"id"`
	Content     string `json:"content"`
	Category    string `json:"category,omitempty"`
	TimeLimit   int    `json:"timeLimit"`
	RoundNumber int    `json:"roundNumber"`
}

type AnswerResult struct {
	ID       string `json:"id"`
	UserID   string `json:"userId"`
	Content  string `json:"content"`
	Votes    int    `json:"votes"`
	IsWinner bool   `json:"isWinner"`
}

type RoundWinner struct {
	UserID   string `json:"userId"`
	AnswerID string `json:"answerId"`
	Votes    int    `json:"votes"`
}

type PlayerScore struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
	Score    int    `json:"score"`
	Rank     int    `json:"rank"`
}

type ResultsPayload struct {
	RoundNumber int            `json:"roundNumber"`
	Answers     []AnswerResult `json:"answers"`
	Winner      *RoundWinner   `json:"winner,omitempty"`
	Scores      []PlayerScore  `json:"scores"`
}

type ScoreUpdatePayload struct {
	Scores      []PlayerScore `json:"scores"`
	RoundWinner *RoundWinner  `json:"roundWinner,omitempty"`
}

type ErrorPayload struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

func (JoinPayload) messageType() MessageType        { return MessageJoin }
func (LeavePayload) messageType() MessageType       { return MessageLeave }
func (AnswerPayload) messageType() MessageType      { return MessageAnswer }
func (VotePayload) messageType() MessageType        { return MessageVote }
func (GameStatePayload) messageType() MessageType   { return MessageGameState }
func (QuestionPayload) messageType() MessageType    { return MessageQuestion }
func (ResultsPayload) messageType() MessageType     { return MessageResults }
func (ScoreUpdatePayload) messageType() MessageType { return MessageScoreUpdate }
func (ErrorPayload) messageType() MessageType       { return MessageError }
