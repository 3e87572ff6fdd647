// Package engine holds the game's phase rules. It never touches storage or
// connections: callers load a Snapshot, ask for a decision, then persist it.
package engine

import (
	"promptparty/apperr"
)

type Phase string

const (
	PhaseWaiting   Phase = "waiting"
	PhaseQuestion  Phase = "question"
	PhaseAnswering Phase = "answering"
	PhaseVoting    Phase = "voting"
	PhaseResults   Phase = "results"
	PhaseFinished  Phase = "finished"
)

var phases = []Phase{PhaseWaiting, PhaseQuestion, PhaseAnswering, PhaseVoting, PhaseResults, PhaseFinished}

func ParsePhase(s string) (Phase, error) {
	for _, p := range phases {
		if string(p) == s {
			return p, nil
		}
	}
	return "", apperr.Newf(apperr.CodeValidation, "unknown phase %q", s)
}

func (p Phase) Valid() bool {
	_, err := ParsePhase(string(p))
	return err == nil
}

// InRound reports whether the phase belongs to a running round.
func (p Phase) InRound() bool {
	switch p {
	case PhaseQuestion, PhaseAnswering, PhaseVoting, PhaseResults:
		return true
	}
	return false
}

type RoundStatus string

const (
	RoundWaiting   RoundStatus = "waiting"
	RoundActive    RoundStatus = "active"
	RoundVoting    RoundStatus = "voting"
	RoundCompleted RoundStatus = "completed"
)

// RoundStatusFor maps a session phase onto the status of its current round.
func RoundStatusFor(p Phase) RoundStatus {
	switch p {
	case PhaseQuestion, PhaseAnswering:
		return RoundActive
	case PhaseVoting:
		return RoundVoting
	case PhaseResults, PhaseFinished:
		return RoundCompleted
	default:
		return RoundWaiting
	}
}

// Snapshot is the slice of session state the rules need.
type Snapshot struct {
	Phase            Phase
	CurrentRound     int
	TotalRounds      int
	ConnectedPlayers int
	AnsweredCount    int
	VotedCount       int
}

// Decision describes a transition the caller must persist as one unit.
type Decision struct {
	From Phase
	To   Phase
	// NewRound is the round number to create, 0 when no round starts.
	NewRound int
	// Tally is set when votes of the current round must be counted and
	// credited.
	Tally bool
	// Finish marks the session as ended.
	Finish bool
}

func (d Decision) Changed() bool { return d.From != d.To }

// Start moves a waiting session into round 1.
func Start(s Snapshot) (Decision, error) {
	if s.Phase != PhaseWaiting || s.CurrentRound != 0 {
		return Decision{}, apperr.Newf(apperr.CodeInvalidState, "session already started (phase %s)", s.Phase)
	}
	if s.TotalRounds < 1 {
		return Decision{}, apperr.New(apperr.CodeInvalidState, "session has no rounds configured")
	}
	return Decision{From: s.Phase, To: PhaseQuestion, NewRound: 1}, nil
}

func CanAnswer(s Snapshot) error {
	if s.Phase != PhaseAnswering {
		return apperr.Newf(apperr.CodeInvalidPhase, "answers are not accepted during %s", s.Phase)
	}
	return nil
}

func CanVote(s Snapshot) error {
	if s.Phase != PhaseVoting {
		return apperr.Newf(apperr.CodeInvalidPhase, "votes are not accepted during %s", s.Phase)
	}
	return nil
}

// AfterAnswer is evaluated with counts re-read after an answer was stored.
// With zero connected players nothing advances on its own.
func AfterAnswer(s Snapshot) Decision {
	d := Decision{From: s.Phase, To: s.Phase}
	if s.Phase == PhaseAnswering && s.ConnectedPlayers > 0 && s.AnsweredCount >= s.ConnectedPlayers {
		d.To = PhaseVoting
	}
	return d
}

// AfterVote mirrors AfterAnswer for the voting phase and requests a tally.
func AfterVote(s Snapshot) Decision {
	d := Decision{From: s.Phase, To: s.Phase}
	if s.Phase == PhaseVoting && s.ConnectedPlayers > 0 && s.VotedCount >= s.ConnectedPlayers {
		d.To = PhaseResults
		d.Tally = true
	}
	return d
}

// Advance is the explicit override. It does not look at counts, but it keeps
// the session inside a shape the rest of the rules can handle.
func Advance(s Snapshot, target Phase) (Decision, error) {
	if !target.Valid() {
		return Decision{}, apperr.Newf(apperr.CodeValidation, "unknown phase %q", target)
	}
	d := Decision{From: s.Phase, To: target}
	switch {
	case s.Phase == PhaseFinished:
		return Decision{}, apperr.New(apperr.CodeInvalidState, "session is finished")
	case target == PhaseWaiting && s.Phase != PhaseWaiting:
		return Decision{}, apperr.New(apperr.CodeInvalidState, "session cannot return to waiting")
	case target.InRound() && s.CurrentRound == 0:
		return Decision{}, apperr.New(apperr.CodeInvalidState, "session has not started")
	}
	if target == PhaseResults && s.Phase != PhaseResults {
		d.Tally = true
	}
	if target == PhaseFinished {
		d.Finish = true
	}
	return d, nil
}

// NextRound leaves the results phase for the next question or the end.
func NextRound(s Snapshot) (Decision, error) {
	if s.Phase != PhaseResults {
		return Decision{}, apperr.Newf(apperr.CodeInvalidPhase, "next round is only available from results (phase %s)", s.Phase)
	}
	if s.CurrentRound < s.TotalRounds {
		return Decision{From: s.Phase, To: PhaseQuestion, NewRound: s.CurrentRound + 1}, nil
	}
	return Decision{From: s.Phase, To: PhaseFinished, Finish: true}, nil
}
