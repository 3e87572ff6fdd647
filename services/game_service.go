package services

import (
	"context"
	"errors"
	"time"

	"promptparty/apperr"
	"promptparty/config"
	"promptparty/engine"
	"promptparty/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Notifier receives fan-out events after a change has been committed.
type Notifier interface {
	Notify(sessionID, userID string, p Payload)
}

type nopNotifier struct{}

func (nopNotifier) Notify(string, string, Payload) {}

// GameService coordinates every change to a game session. Calls for the same
// session are serialized and each call commits as a single transaction;
// different sessions never wait on each other.
type GameService struct {
	db        *gorm.DB
	questions *QuestionService
	cache     *StateCache
	locks     *SessionLocks
	timers    *PhaseTimers
	cfg       config.GameConfig
	log       *zap.Logger
	notifier  Notifier
	loads     singleflight.Group
	now       func() time.Time
}

func NewGameService(
	db *gorm.DB,
	questions *QuestionService,
	cache *StateCache,
	locks *SessionLocks,
	timers *PhaseTimers,
	cfg config.GameConfig,
	logger *zap.Logger,
) *GameService {
	return &GameService{
		db:        db,
		questions: questions,
		cache:     cache,
		locks:     locks,
		timers:    timers,
		cfg:       cfg,
		log:       logger,
		notifier:  nopNotifier{},
		now:       time.Now,
	}
}

// SetNotifier must be called before the service handles traffic.
func (s *GameService) SetNotifier(n Notifier) {
	if n == nil {
		n = nopNotifier{}
	}
	s.notifier = n
}

type StartResult struct {
	Session  *models.GameSession `json:"session"`
	Round    *models.Round       `json:"round"`
	Question *models.Question    `json:"question"`
}

type NextRoundResult struct {
	Session  *models.GameSession `json:"session"`
	Question *models.Question    `json:"question,omitempty"`
}

type outbound struct {
	userID  string
	payload Payload
}

// sessionTx is the unit of work of one coordinator call. Events are queued
// and only published once the transaction has committed.
type sessionTx struct {
	tx   *gorm.DB
	sess *models.GameSession
	now  time.Time
	out  []outbound

	phaseChanged bool
	stateChanged bool
	round        *models.Round
	question     *models.Question
	state        *SessionState
}

func (st *sessionTx) notify(userID string, p Payload) {
	st.out = append(st.out, outbound{userID: userID, payload: p})
}

func validSessionID(sessionID string) error {
	if _, err := uuid.Parse(sessionID); err != nil {
		return apperr.New(apperr.CodeValidation, "invalid session id")
	}
	return nil
}

// withSession runs fn under the session lock inside one transaction with the
// session row loaded. After commit it refreshes the cache, re-arms the phase
// deadline and publishes queued events, still holding the lock so events
// leave in commit order.
func (s *GameService) withSession(ctx context.Context, sessionID string, fn func(st *sessionTx) error) error {
	if err := validSessionID(sessionID); err != nil {
		return err
	}

	unlock := s.locks.Lock(sessionID)
	defer unlock()

	st := &sessionTx{now: s.now().UTC()}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		sess, err := lockSession(tx, sessionID)
		if err != nil {
			return err
		}
		st.tx, st.sess = tx, sess

		if err := fn(st); err != nil {
			return err
		}
		if st.out == nil && !st.phaseChanged && !st.stateChanged {
			return nil
		}
		st.state, err = loadState(tx, sessionID)
		return err
	})
	if err != nil {
		return apperr.Internal("session transaction", err)
	}
	if st.state == nil {
		return nil
	}

	bg := context.WithoutCancel(ctx)
	s.cache.Set(bg, sessionID, st.state)
	if st.phaseChanged {
		s.armDeadline(st.state)
	}
	for _, o := range st.out {
		s.notifier.Notify(sessionID, o.userID, o.payload)
	}
	if st.phaseChanged || st.stateChanged {
		s.notifier.Notify(sessionID, "", s.gameStatePayload(st.state))
	}
	return nil
}

func lockSession(tx *gorm.DB, sessionID string) (*models.GameSession, error) {
	q := tx
	if tx.Dialector.Name() == "postgres" {
		q = tx.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var sess models.GameSession
	if err := q.First(&sess, "id = ?", sessionID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.New(apperr.CodeNotFound, "session not found")
		}
		return nil, apperr.Internal("load session", err)
	}
	return &sess, nil
}

func (st *sessionTx) participant(userID string) (*models.PlayerSession, error) {
	var p models.PlayerSession
	err := st.tx.Where("session_id = ? AND user_id = ?", st.sess.ID, userID).First(&p).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.New(apperr.CodeForbidden, "not a participant of this session")
		}
		return nil, apperr.Internal("load player", err)
	}
	return &p, nil
}

// snapshot re-reads the counts the phase rules depend on.
func (st *sessionTx) snapshot() (engine.Snapshot, *models.Round, error) {
	snap := engine.Snapshot{
		Phase:        engine.Phase(st.sess.Phase),
		CurrentRound: st.sess.CurrentRound,
		TotalRounds:  st.sess.TotalRounds,
	}

	var connected int64
	if err := st.tx.Model(&models.PlayerSession{}).
		Where("session_id = ? AND status = ?", st.sess.ID, models.PlayerConnected).
		Count(&connected).Error; err != nil {
		return snap, nil, apperr.Internal("count players", err)
	}
	snap.ConnectedPlayers = int(connected)

	round, err := findCurrentRound(st.tx, st.sess)
	if err != nil || round == nil {
		return snap, round, err
	}

	var answered, voted int64
	if err := st.tx.Model(&models.Answer{}).Where("round_id = ?", round.ID).Count(&answered).Error; err != nil {
		return snap, nil, apperr.Internal("count answers", err)
	}
	if err := st.tx.Model(&models.Vote{}).Where("round_id = ?", round.ID).Count(&voted).Error; err != nil {
		return snap, nil, apperr.Internal("count votes", err)
	}
	snap.AnsweredCount = int(answered)
	snap.VotedCount = int(voted)
	return snap, round, nil
}

// reconnect marks a player who acts while flagged disconnected as connected
// again, so they count toward the auto-advance threshold.
func (st *sessionTx) reconnect(p *models.PlayerSession) error {
	if p.Status == models.PlayerConnected {
		return nil
	}
	if err := st.tx.Model(p).Updates(map[string]any{"status": models.PlayerConnected, "left_at": nil}).Error; err != nil {
		return apperr.Internal("update player status", err)
	}
	p.Status = models.PlayerConnected
	p.LeftAt = nil
	st.stateChanged = true
	return nil
}

// StartSession moves a waiting session into round 1. Only the room host may
// start it.
func (s *GameService) StartSession(ctx context.Context, sessionID, requesterID string) (*StartResult, error) {
	var result *StartResult
	err := s.withSession(ctx, sessionID, func(st *sessionTx) error {
		var room models.Room
		if err := st.tx.First(&room, "id = ?", st.sess.RoomID).Error; err != nil {
			return apperr.Internal("load room", err)
		}
		if room.HostID != requesterID {
			return apperr.New(apperr.CodeForbidden, "only the host can start the game")
		}

		snap, _, err := st.snapshot()
		if err != nil {
			return err
		}
		d, err := engine.Start(snap)
		if err != nil {
			return err
		}
		if err := s.apply(st, nil, d); err != nil {
			return err
		}
		if err := st.tx.Model(&room).Update("status", models.RoomStatusPlaying).Error; err != nil {
			return apperr.Internal("update room status", err)
		}

		result = &StartResult{Session: st.sess, Round: st.round, Question: st.question}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("session started",
		zap.String("session_id", sessionID),
		zap.String("host_id", requesterID),
		zap.Int("total_rounds", result.Session.TotalRounds))
	return result, nil
}

// SubmitAnswer stores the caller's answer for the current round. When every
// connected player has answered the session moves to voting before the call
// returns.
func (s *GameService) SubmitAnswer(ctx context.Context, sessionID, userID, content string) (*models.Answer, error) {
	clean, err := sanitizeAnswer(content)
	if err != nil {
		return nil, err
	}

	var answer *models.Answer
	err = s.withSession(ctx, sessionID, func(st *sessionTx) error {
		player, err := st.participant(userID)
		if err != nil {
			return err
		}
		snap, round, err := st.snapshot()
		if err != nil {
			return err
		}
		if err := engine.CanAnswer(snap); err != nil {
			return err
		}
		if round == nil {
			return apperr.New(apperr.CodeInvalidState, "no active round")
		}

		var existing int64
		if err := st.tx.Model(&models.Answer{}).
			Where("round_id = ? AND user_id = ?", round.ID, userID).
			Count(&existing).Error; err != nil {
			return apperr.Internal("check answer", err)
		}
		if existing > 0 {
			return apperr.New(apperr.CodeDuplicateSubmission, "already answered this round")
		}
		if err := st.reconnect(player); err != nil {
			return err
		}

		a := models.Answer{RoundID: round.ID, UserID: userID, Content: clean, SubmittedAt: st.now}
		if err := st.tx.Create(&a).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return apperr.New(apperr.CodeDuplicateSubmission, "already answered this round")
			}
			return apperr.Internal("create answer", err)
		}
		answer = &a

		snap, round, err = st.snapshot()
		if err != nil {
			return err
		}
		st.notify(userID, AnswerPayload{
			HasAnswered:      true,
			AnsweredCount:    snap.AnsweredCount,
			ConnectedPlayers: snap.ConnectedPlayers,
		})
		return s.apply(st, round, engine.AfterAnswer(snap))
	})
	if err != nil {
		return nil, err
	}

	s.log.Debug("answer submitted", zap.String("session_id", sessionID), zap.String("user_id", userID))
	return answer, nil
}

// SubmitVote records the caller's vote for an answer of the current round.
// The last expected vote tallies the round and moves to results.
func (s *GameService) SubmitVote(ctx context.Context, sessionID, userID, answerID string) (*models.Vote, error) {
	var vote *models.Vote
	err := s.withSession(ctx, sessionID, func(st *sessionTx) error {
		player, err := st.participant(userID)
		if err != nil {
			return err
		}
		snap, round, err := st.snapshot()
		if err != nil {
			return err
		}
		if err := engine.CanVote(snap); err != nil {
			return err
		}
		if round == nil {
			return apperr.New(apperr.CodeInvalidState, "no active round")
		}

		var existing int64
		if err := st.tx.Model(&models.Vote{}).
			Where("round_id = ? AND voter_id = ?", round.ID, userID).
			Count(&existing).Error; err != nil {
			return apperr.Internal("check vote", err)
		}
		if existing > 0 {
			return apperr.New(apperr.CodeDuplicateSubmission, "already voted this round")
		}

		var target models.Answer
		authorID := ""
		err = st.tx.Where("id = ? AND round_id = ?", answerID, round.ID).First(&target).Error
		switch {
		case err == nil:
			authorID = target.UserID
		case !errors.Is(err, gorm.ErrRecordNotFound):
			return apperr.Internal("load answer", err)
		}
		if err := engine.ValidateVote(engine.VoteCheck{
			VoterID:          userID,
			AuthorID:         authorID,
			ConnectedPlayers: snap.ConnectedPlayers,
		}); err != nil {
			return err
		}
		if err := st.reconnect(player); err != nil {
			return err
		}

		v := models.Vote{RoundID: round.ID, VoterID: userID, AnswerID: target.ID, VotedAt: st.now}
		if err := st.tx.Create(&v).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return apperr.New(apperr.CodeDuplicateSubmission, "already voted this round")
			}
			return apperr.Internal("create vote", err)
		}
		vote = &v

		snap, round, err = st.snapshot()
		if err != nil {
			return err
		}
		st.notify(userID, VotePayload{
			HasVoted:         true,
			VotedCount:       snap.VotedCount,
			ConnectedPlayers: snap.ConnectedPlayers,
		})
		return s.apply(st, round, engine.AfterVote(snap))
	})
	if err != nil {
		return nil, err
	}

	s.log.Debug("vote submitted", zap.String("session_id", sessionID), zap.String("user_id", userID))
	return vote, nil
}

// AdvancePhase forces the session into target regardless of submission
// counts. Entering results this way still tallies the round once.
func (s *GameService) AdvancePhase(ctx context.Context, sessionID, userID, target string) (engine.Phase, error) {
	phase, err := engine.ParsePhase(target)
	if err != nil {
		return "", err
	}

	err = s.withSession(ctx, sessionID, func(st *sessionTx) error {
		if _, err := st.participant(userID); err != nil {
			return err
		}
		snap, round, err := st.snapshot()
		if err != nil {
			return err
		}
		d, err := engine.Advance(snap, phase)
		if err != nil {
			return err
		}
		return s.apply(st, round, d)
	})
	if err != nil {
		return "", err
	}

	s.log.Info("phase advanced",
		zap.String("session_id", sessionID),
		zap.String("user_id", userID),
		zap.String("phase", string(phase)))
	return phase, nil
}

// NextRound leaves results for the next question, or finishes the session
// after the last round.
func (s *GameService) NextRound(ctx context.Context, sessionID, userID string) (*NextRoundResult, error) {
	var result *NextRoundResult
	err := s.withSession(ctx, sessionID, func(st *sessionTx) error {
		if _, err := st.participant(userID); err != nil {
			return err
		}
		snap, round, err := st.snapshot()
		if err != nil {
			return err
		}
		d, err := engine.NextRound(snap)
		if err != nil {
			return err
		}
		if err := s.apply(st, round, d); err != nil {
			return err
		}
		result = &NextRoundResult{Session: st.sess, Question: st.question}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("round advanced",
		zap.String("session_id", sessionID),
		zap.Int("current_round", result.Session.CurrentRound),
		zap.String("phase", result.Session.Phase))
	return result, nil
}

// apply persists a decision. The caller holds the session lock and st.tx.
func (s *GameService) apply(st *sessionTx, round *models.Round, d engine.Decision) error {
	if !d.Changed() && !d.Tally && d.NewRound == 0 && !d.Finish {
		return nil
	}
	sess := st.sess
	updates := map[string]any{"phase": string(d.To)}

	if round != nil {
		if d.Tally && round.Status != string(engine.RoundCompleted) {
			if err := s.tally(st, round); err != nil {
				return err
			}
		}

		status := engine.RoundStatusFor(d.To)
		if d.NewRound > 0 || round.Status == string(engine.RoundCompleted) {
			status = engine.RoundCompleted
		}
		if string(status) != round.Status {
			roundUpdates := map[string]any{"status": string(status)}
			if status == engine.RoundCompleted && round.EndedAt == nil {
				roundUpdates["ended_at"] = st.now
			}
			if err := st.tx.Model(round).Updates(roundUpdates).Error; err != nil {
				return apperr.Internal("update round", err)
			}
			round.Status = string(status)
		}
	}

	if d.NewRound > 0 {
		if err := s.openRound(st, d.NewRound); err != nil {
			return err
		}
		updates["current_round"] = d.NewRound
		sess.CurrentRound = d.NewRound
		if sess.StartedAt == nil {
			updates["started_at"] = st.now
			sess.StartedAt = &st.now
		}
	}

	if d.Finish {
		updates["ended_at"] = st.now
		sess.EndedAt = &st.now
		if err := st.tx.Model(&models.Room{}).Where("id = ?", sess.RoomID).
			Update("status", models.RoomStatusFinished).Error; err != nil {
			return apperr.Internal("update room status", err)
		}
	}

	if err := st.tx.Model(sess).Updates(updates).Error; err != nil {
		return apperr.Internal("update session", err)
	}
	sess.Phase = string(d.To)
	st.phaseChanged = st.phaseChanged || d.Changed() || d.NewRound > 0

	s.log.Debug("phase transition",
		zap.String("session_id", sess.ID),
		zap.String("from", string(d.From)),
		zap.String("to", string(d.To)),
		zap.Int("round", sess.CurrentRound))
	return nil
}

func (s *GameService) openRound(st *sessionTx, number int) error {
	q, err := s.questions.Pick(st.tx, st.sess.ID, s.cfg.AvoidRepeatQuestions)
	if err != nil {
		return err
	}

	timeLimit := int(s.cfg.RoundTimeLimit / time.Second)
	var room models.Room
	if err := st.tx.Select("time_limit").First(&room, "id = ?", st.sess.RoomID).Error; err == nil && room.TimeLimit > 0 {
		timeLimit = room.TimeLimit
	}

	round := models.Round{
		SessionID:   st.sess.ID,
		RoundNumber: number,
		QuestionID:  q.ID,
		TimeLimit:   timeLimit,
		Status:      string(engine.RoundActive),
		StartedAt:   &st.now,
	}
	if err := st.tx.Create(&round).Error; err != nil {
		return apperr.Internal("create round", err)
	}

	st.round, st.question = &round, q
	st.notify("", QuestionPayload{
		ID:          q.ID,
		Content:     q.Content,
		Category:    q.Category,
		TimeLimit:   timeLimit,
		RoundNumber: number,
	})
	return nil
}

// tally credits one point per vote to each answer's author and queues the
// results. It runs at most once per round because apply only calls it while
// the round is not completed.
func (s *GameService) tally(st *sessionTx, round *models.Round) error {
	var answers []models.Answer
	if err := st.tx.Where("round_id = ?", round.ID).Find(&answers).Error; err != nil {
		return apperr.Internal("load answers", err)
	}
	var votes []models.Vote
	if err := st.tx.Where("round_id = ?", round.ID).Find(&votes).Error; err != nil {
		return apperr.Internal("load votes", err)
	}

	res := engine.Tally(entriesOf(answers), ballotsOf(votes))
	for authorID, points := range res.Credits {
		if err := st.tx.Model(&models.PlayerSession{}).
			Where("session_id = ? AND user_id = ?", st.sess.ID, authorID).
			Update("score", gorm.Expr("score + ?", points)).Error; err != nil {
			return apperr.Internal("credit score", err)
		}
	}

	var players []models.PlayerSession
	if err := st.tx.Preload("User").Where("session_id = ?", st.sess.ID).Order("joined_at").Find(&players).Error; err != nil {
		return apperr.Internal("load players", err)
	}
	scores := rankScores(players)

	content := make(map[string]string, len(answers))
	for _, a := range answers {
		content[a.ID] = a.Content
	}
	results := make([]AnswerResult, 0, len(res.Answers))
	var winner *RoundWinner
	for _, t := range res.Answers {
		results = append(results, AnswerResult{
			ID:       t.AnswerID,
			UserID:   t.AuthorID,
			Content:  content[t.AnswerID],
			Votes:    t.Votes,
			IsWinner: t.IsWinner,
		})
		if t.IsWinner && winner == nil {
			winner = &RoundWinner{UserID: t.AuthorID, AnswerID: t.AnswerID, Votes: t.Votes}
		}
	}

	st.notify("", ResultsPayload{RoundNumber: round.RoundNumber, Answers: results, Winner: winner, Scores: scores})
	st.notify("", ScoreUpdatePayload{Scores: scores, RoundWinner: winner})

	s.log.Info("round tallied",
		zap.String("session_id", st.sess.ID),
		zap.Int("round", round.RoundNumber),
		zap.Int("votes", res.Total))
	return nil
}

// GetState returns the full session snapshot for a participant. Concurrent
// misses for one session share a single load.
func (s *GameService) GetState(ctx context.Context, sessionID, userID string) (*SessionState, error) {
	if err := validSessionID(sessionID); err != nil {
		return nil, err
	}

	state, ok := s.cache.Get(ctx, sessionID)
	if !ok {
		v, err, _ := s.loads.Do(sessionID, func() (any, error) {
			// the load is shared by every waiter and outlives its first caller
			shared := context.WithoutCancel(ctx)
			unlock := s.locks.Lock(sessionID)
			defer unlock()
			if cached, ok := s.cache.Get(shared, sessionID); ok {
				return cached, nil
			}
			loaded, err := loadState(s.db.WithContext(shared), sessionID)
			if err != nil {
				return nil, err
			}
			s.cache.Set(shared, sessionID, loaded)
			return loaded, nil
		})
		if err != nil {
			return nil, apperr.Internal("load session state", err)
		}
		state = v.(*SessionState)
	}

	if !state.HasPlayer(userID) {
		return nil, apperr.New(apperr.CodeForbidden, "not a participant of this session")
	}
	return state, nil
}

// GameStatePayload returns the live game_state frame for a participant.
func (s *GameService) GameStatePayload(ctx context.Context, sessionID, userID string) (GameStatePayload, error) {
	state, err := s.GetState(ctx, sessionID, userID)
	if err != nil {
		return GameStatePayload{}, err
	}
	return s.gameStatePayload(state), nil
}

func (s *GameService) gameStatePayload(state *SessionState) GameStatePayload {
	p := state.GameStatePayload()
	if left, ok := s.timers.Remaining(state.Session.ID); ok {
		secs := int(left.Round(time.Second) / time.Second)
		p.TimeLeft = &secs
	}
	return p
}

// AddPlayer puts userID into the session, or marks an existing member
// connected again. New members are only accepted while the session waits.
func (s *GameService) AddPlayer(ctx context.Context, sessionID, userID string, maxPlayers int) (*models.PlayerSession, error) {
	var player *models.PlayerSession
	err := s.withSession(ctx, sessionID, func(st *sessionTx) error {
		var existing models.PlayerSession
		err := st.tx.Where("session_id = ? AND user_id = ?", st.sess.ID, userID).First(&existing).Error
		if err == nil {
			player = &existing
			return st.reconnect(player)
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return apperr.Internal("load player", err)
		}

		if engine.Phase(st.sess.Phase) != engine.PhaseWaiting {
			return apperr.New(apperr.CodeInvalidState, "game already in progress")
		}
		var count int64
		if err := st.tx.Model(&models.PlayerSession{}).Where("session_id = ?", st.sess.ID).Count(&count).Error; err != nil {
			return apperr.Internal("count players", err)
		}
		if maxPlayers > 0 && int(count) >= maxPlayers {
			return apperr.New(apperr.CodeInvalidState, "room is full")
		}

		p := models.PlayerSession{
			SessionID: st.sess.ID,
			UserID:    userID,
			Status:    models.PlayerConnected,
			JoinedAt:  st.now,
		}
		if err := st.tx.Create(&p).Error; err != nil {
			return apperr.Internal("create player", err)
		}
		player = &p
		st.stateChanged = true
		return nil
	})
	if err != nil {
		return nil, err
	}
	return player, nil
}

// SetPlayerConnection records presence changes reported by the hub. It never
// triggers an auto-advance; the next submission re-evaluates the counts.
func (s *GameService) SetPlayerConnection(ctx context.Context, sessionID, userID string, connected bool) error {
	return s.withSession(ctx, sessionID, func(st *sessionTx) error {
		p, err := st.participant(userID)
		if err != nil {
			return err
		}
		status := models.PlayerDisconnected
		var leftAt *time.Time
		if connected {
			status = models.PlayerConnected
		} else {
			leftAt = &st.now
		}
		if p.Status == status {
			return nil
		}
		if err := st.tx.Model(p).Updates(map[string]any{"status": status, "left_at": leftAt}).Error; err != nil {
			return apperr.Internal("update player status", err)
		}
		st.stateChanged = true
		return nil
	})
}

func (s *GameService) IsParticipant(ctx context.Context, sessionID, userID string) (bool, error) {
	if err := validSessionID(sessionID); err != nil {
		return false, err
	}
	var count int64
	err := s.db.WithContext(ctx).Model(&models.PlayerSession{}).
		Where("session_id = ? AND user_id = ?", sessionID, userID).
		Count(&count).Error
	if err != nil {
		return false, apperr.Internal("check participant", err)
	}
	return count > 0, nil
}

// armDeadline replaces the session's phase deadline after a transition.
// Only answering and voting are timed.
func (s *GameService) armDeadline(state *SessionState) {
	sessionID := state.Session.ID
	s.timers.Cancel(sessionID)
	if !s.cfg.PhaseTimersEnabled || state.Round == nil {
		return
	}

	phase := engine.Phase(state.Session.Phase)
	var after time.Duration
	switch phase {
	case engine.PhaseAnswering:
		after = time.Duration(state.Round.TimeLimit) * time.Second
		if after <= 0 {
			after = s.cfg.RoundTimeLimit
		}
	case engine.PhaseVoting:
		after = s.cfg.VotingTimeLimit
	default:
		return
	}

	roundNumber := state.Session.CurrentRound
	s.timers.Schedule(sessionID, after, func() {
		s.expirePhase(sessionID, roundNumber, phase)
	})
}

// expirePhase is the deadline callback. It only acts if the session is still
// in the phase and round it was armed for.
func (s *GameService) expirePhase(sessionID string, roundNumber int, phase engine.Phase) {
	next := engine.PhaseVoting
	if phase == engine.PhaseVoting {
		next = engine.PhaseResults
	}

	err := s.withSession(context.Background(), sessionID, func(st *sessionTx) error {
		if engine.Phase(st.sess.Phase) != phase || st.sess.CurrentRound != roundNumber {
			return nil
		}
		snap, round, err := st.snapshot()
		if err != nil {
			return err
		}
		d, err := engine.Advance(snap, next)
		if err != nil {
			return err
		}
		return s.apply(st, round, d)
	})
	if err != nil {
		s.log.Error("phase deadline failed",
			zap.String("session_id", sessionID),
			zap.String("phase", string(phase)),
			zap.Error(err))
		return
	}
	s.log.Info("phase deadline reached",
		zap.String("session_id", sessionID),
		zap.Int("round", roundNumber),
		zap.String("phase", string(phase)))
}
