package engine

import (
	"errors"
	"testing"

	"promptparty/apperr"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePhase(t *testing.T) {
	for _, p := range phases {
		got, err := ParsePhase(string(p))
		require.NoError(t, err)
		assert.Equal(t, p, got)
	}

	_, err := ParsePhase("lobby")
	assert.True(t, errors.Is(err, apperr.ErrValidation))
}

func TestStart(t *testing.T) {
	d, err := Start(Snapshot{Phase: PhaseWaiting, TotalRounds: 5})
	require.NoError(t, err)
	assert.Equal(t, PhaseQuestion, d.To)
	assert.Equal(t, 1, d.NewRound)

	_, err = Start(Snapshot{Phase: PhaseQuestion, CurrentRound: 1, TotalRounds: 5})
	assert.ErrorIs(t, err, apperr.ErrInvalidState)

	_, err = Start(Snapshot{Phase: PhaseWaiting, TotalRounds: 0})
	assert.ErrorIs(t, err, apperr.ErrInvalidState)
}

func TestSubmissionPhaseGuards(t *testing.T) {
	for _, p := range phases {
		s := Snapshot{Phase: p, CurrentRound: 1, TotalRounds: 3}
		if p == PhaseAnswering {
			assert.NoError(t, CanAnswer(s))
		} else {
			assert.ErrorIs(t, CanAnswer(s), apperr.ErrInvalidPhase, p)
		}
		if p == PhaseVoting {
			assert.NoError(t, CanVote(s))
		} else {
			assert.ErrorIs(t, CanVote(s), apperr.ErrInvalidPhase, p)
		}
	}
}

func TestAutoAdvance(t *testing.T) {
	cases := []struct {
		name string
		snap Snapshot
		vote bool
		want Phase
	}{
		{"answering waits for everyone", Snapshot{Phase: PhaseAnswering, ConnectedPlayers: 3, AnsweredCount: 2}, false, PhaseAnswering},
		{"answering completes", Snapshot{Phase: PhaseAnswering, ConnectedPlayers: 3, AnsweredCount: 3}, false, PhaseVoting},
		{"disconnected players do not block", Snapshot{Phase: PhaseAnswering, ConnectedPlayers: 1, AnsweredCount: 2}, false, PhaseVoting},
		{"nobody connected", Snapshot{Phase: PhaseAnswering, ConnectedPlayers: 0, AnsweredCount: 1}, false, PhaseAnswering},
		{"voting waits", Snapshot{Phase: PhaseVoting, ConnectedPlayers: 2, VotedCount: 1}, true, PhaseVoting},
		{"voting completes", Snapshot{Phase: PhaseVoting, ConnectedPlayers: 2, VotedCount: 2}, true, PhaseResults},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var d Decision
			if tc.vote {
				d = AfterVote(tc.snap)
			} else {
				d = AfterAnswer(tc.snap)
			}
			assert.Equal(t, tc.want, d.To)
			assert.Equal(t, d.To == PhaseResults, d.Tally)
		})
	}
}

func TestAdvance(t *testing.T) {
	started := Snapshot{Phase: PhaseQuestion, CurrentRound: 1, TotalRounds: 2}

	d, err := Advance(started, PhaseAnswering)
	require.NoError(t, err)
	assert.True(t, d.Changed())
	assert.False(t, d.Tally)

	d, err = Advance(Snapshot{Phase: PhaseAnswering, CurrentRound: 1, TotalRounds: 2}, PhaseResults)
	require.NoError(t, err)
	assert.True(t, d.Tally)

	d, err = Advance(Snapshot{Phase: PhaseResults, CurrentRound: 1, TotalRounds: 2}, PhaseResults)
	require.NoError(t, err)
	assert.False(t, d.Tally, "re-entering results must not tally twice")

	d, err = Advance(started, PhaseFinished)
	require.NoError(t, err)
	assert.True(t, d.Finish)

	_, err = Advance(started, Phase("intermission"))
	assert.ErrorIs(t, err, apperr.ErrValidation)

	_, err = Advance(started, PhaseWaiting)
	assert.ErrorIs(t, err, apperr.ErrInvalidState)

	_, err = Advance(Snapshot{Phase: PhaseWaiting, TotalRounds: 2}, PhaseVoting)
	assert.ErrorIs(t, err, apperr.ErrInvalidState)

	_, err = Advance(Snapshot{Phase: PhaseFinished, CurrentRound: 2, TotalRounds: 2}, PhaseQuestion)
	assert.ErrorIs(t, err, apperr.ErrInvalidState)
}

func TestNextRound(t *testing.T) {
	d, err := NextRound(Snapshot{Phase: PhaseResults, CurrentRound: 1, TotalRounds: 3})
	require.NoError(t, err)
	assert.Equal(t, PhaseQuestion, d.To)
	assert.Equal(t, 2, d.NewRound)

	d, err = NextRound(Snapshot{Phase: PhaseResults, CurrentRound: 3, TotalRounds: 3})
	require.NoError(t, err)
	assert.Equal(t, PhaseFinished, d.To)
	assert.True(t, d.Finish)
	assert.Zero(t, d.NewRound)

	_, err = NextRound(Snapshot{Phase: PhaseVoting, CurrentRound: 1, TotalRounds: 3})
	assert.ErrorIs(t, err, apperr.ErrInvalidPhase)
}

func TestRoundBoundsHoldAcrossAGame(t *testing.T) {
	s := Snapshot{Phase: PhaseWaiting, TotalRounds: 3}
	d, err := Start(s)
	require.NoError(t, err)
	s.Phase, s.CurrentRound = d.To, d.NewRound

	for s.Phase != PhaseFinished {
		require.GreaterOrEqual(t, s.CurrentRound, 0)
		require.LessOrEqual(t, s.CurrentRound, s.TotalRounds)

		d, err = Advance(s, PhaseResults)
		require.NoError(t, err)
		s.Phase = d.To

		d, err = NextRound(s)
		require.NoError(t, err)
		s.Phase = d.To
		if d.NewRound > 0 {
			s.CurrentRound = d.NewRound
		}
	}
	assert.Equal(t, 3, s.CurrentRound)
}

func TestRoundStatusFor(t *testing.T) {
	assert.Equal(t, RoundWaiting, RoundStatusFor(PhaseWaiting))
	assert.Equal(t, RoundActive, RoundStatusFor(PhaseQuestion))
	assert.Equal(t, RoundActive, RoundStatusFor(PhaseAnswering))
	assert.Equal(t, RoundVoting, RoundStatusFor(PhaseVoting))
	assert.Equal(t, RoundCompleted, RoundStatusFor(PhaseResults))
	assert.Equal(t, RoundCompleted, RoundStatusFor(PhaseFinished))
}
