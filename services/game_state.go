package services

import (
	"errors"
	"sort"

	"promptparty/apperr"
	"promptparty/engine"
	"promptparty/models"

	"gorm.io/gorm"
)

// SessionState is the full snapshot clients fetch on mount and after every
// notification. It is identical for every participant.
type SessionState struct {
	Session         *models.GameSession `json:"session"`
	Round           *models.Round       `json:"round,omitempty"`
	CurrentQuestion *models.Question    `json:"currentQuestion"`
	Answers         []AnswerView        `json:"answers"`
	Players         []PlayerView        `json:"players"`
}

// AnswerView hides authors and counts until the round reaches results.
type AnswerView struct {
	ID       string `json:"id"`
	Content  string `json:"content"`
	UserID   string `json:"userId,omitempty"`
	Votes    *int   `json:"votes,omitempty"`
	IsWinner bool   `json:"isWinner,omitempty"`
}

type PlayerView struct {
	UserID      string `json:"userId"`
	Username    string `json:"username"`
	Score       int    `json:"score"`
	Status      string `json:"status"`
	HasAnswered bool   `json:"hasAnswered"`
	HasVoted    bool   `json:"hasVoted"`
}

func (s *SessionState) HasPlayer(userID string) bool {
	for _, p := range s.Players {
		if p.UserID == userID {
			return true
		}
	}
	return false
}

func (s *SessionState) GameStatePayload() GameStatePayload {
	return GameStatePayload{
		Phase:        engine.Phase(s.Session.Phase),
		CurrentRound: s.Session.CurrentRound,
		TotalRounds:  s.Session.TotalRounds,
		Players:      s.Players,
	}
}

// loadState reads everything a client needs in one pass over db.
func loadState(db *gorm.DB, sessionID string) (*SessionState, error) {
	var sess models.GameSession
	if err := db.First(&sess, "id = ?", sessionID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.New(apperr.CodeNotFound, "session not found")
		}
		return nil, apperr.Internal("load session", err)
	}

	state := &SessionState{Session: &sess, Answers: []AnswerView{}}

	round, err := findCurrentRound(db, &sess)
	if err != nil {
		return nil, err
	}

	var players []models.PlayerSession
	if err := db.Preload("User").Where("session_id = ?", sess.ID).Order("joined_at").Find(&players).Error; err != nil {
		return nil, apperr.Internal("load players", err)
	}

	answered := map[string]bool{}
	voted := map[string]bool{}
	var answers []models.Answer
	var votes []models.Vote
	if round != nil {
		state.Round = round
		var q models.Question
		if err := db.First(&q, "id = ?", round.QuestionID).Error; err != nil {
			return nil, apperr.Internal("load question", err)
		}
		state.CurrentQuestion = &q

		if err := db.Where("round_id = ?", round.ID).Order("id").Find(&answers).Error; err != nil {
			return nil, apperr.Internal("load answers", err)
		}
		if err := db.Where("round_id = ?", round.ID).Find(&votes).Error; err != nil {
			return nil, apperr.Internal("load votes", err)
		}
		for _, a := range answers {
			answered[a.UserID] = true
		}
		for _, v := range votes {
			voted[v.VoterID] = true
		}
	}

	state.Players = make([]PlayerView, 0, len(players))
	for _, p := range players {
		state.Players = append(state.Players, PlayerView{
			UserID:      p.UserID,
			Username:    p.User.Username,
			Score:       p.Score,
			Status:      p.Status,
			HasAnswered: answered[p.UserID],
			HasVoted:    voted[p.UserID],
		})
	}

	switch engine.Phase(sess.Phase) {
	case engine.PhaseVoting:
		counts := make(map[string]int, len(answers))
		for _, v := range votes {
			counts[v.AnswerID]++
		}
		for _, a := range answers {
			n := counts[a.ID]
			state.Answers = append(state.Answers, AnswerView{
				ID:      a.ID,
				Content: a.Content,
				UserID:  a.UserID,
				Votes:   &n,
			})
		}
	case engine.PhaseResults, engine.PhaseFinished:
		tally := engine.Tally(entriesOf(answers), ballotsOf(votes))
		content := make(map[string]string, len(answers))
		for _, a := range answers {
			content[a.ID] = a.Content
		}
		for _, t := range tally.Answers {
			n := t.Votes
			state.Answers = append(state.Answers, AnswerView{
				ID:       t.AnswerID,
				Content:  content[t.AnswerID],
				UserID:   t.AuthorID,
				Votes:    &n,
				IsWinner: t.IsWinner,
			})
		}
	}

	return state, nil
}

func findCurrentRound(db *gorm.DB, sess *models.GameSession) (*models.Round, error) {
	if sess.CurrentRound == 0 {
		return nil, nil
	}
	var round models.Round
	err := db.Where("session_id = ? AND round_number = ?", sess.ID, sess.CurrentRound).First(&round).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.Newf(apperr.CodeInternal, "round %d of session %s is missing", sess.CurrentRound, sess.ID)
		}
		return nil, apperr.Internal("load round", err)
	}
	return &round, nil
}

func entriesOf(answers []models.Answer) []engine.Entry {
	out := make([]engine.Entry, len(answers))
	for i, a := range answers {
		out[i] = engine.Entry{AnswerID: a.ID, AuthorID: a.UserID}
	}
	return out
}

func ballotsOf(votes []models.Vote) []engine.Ballot {
	out := make([]engine.Ballot, len(votes))
	for i, v := range votes {
		out[i] = engine.Ballot{AnswerID: v.AnswerID}
	}
	return out
}

// rankScores orders players by score; equal scores share a rank.
func rankScores(players []models.PlayerSession) []PlayerScore {
	scores := make([]PlayerScore, len(players))
	for i, p := range players {
		scores[i] = PlayerScore{UserID: p.UserID, Username: p.User.Username, Score: p.Score}
	}
	sort.SliceStable(scores, func(i, j int) bool { return scores[i].Score > scores[j].Score })
	for i := range scores {
		if i > 0 && scores[i].Score == scores[i-1].Score {
			scores[i].Rank = scores[i-1].Rank
		} else {
			scores[i].Rank = i + 1
		}
	}
	return scores
}
