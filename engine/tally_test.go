package engine

import (
	"testing"

	"promptparty/apperr"

	"github.com/stretchr/testify/assert"
)

func TestValidateVote(t *testing.T) {
	cases := []struct {
		name  string
		check VoteCheck
		want  error
	}{
		{"other author", VoteCheck{VoterID: "a", AuthorID: "b", ConnectedPlayers: 2}, nil},
		{"self vote with company", VoteCheck{VoterID: "a", AuthorID: "a", ConnectedPlayers: 2}, apperr.ErrSelfVoteForbidden},
		{"self vote alone", VoteCheck{VoterID: "a", AuthorID: "a", ConnectedPlayers: 1}, nil},
		{"target outside round", VoteCheck{VoterID: "a", AuthorID: "", ConnectedPlayers: 2}, apperr.ErrTargetNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateVote(tc.check)
			if tc.want == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

func TestTally(t *testing.T) {
	entries := []Entry{
		{AnswerID: "x", AuthorID: "alice"},
		{AnswerID: "y", AuthorID: "bob"},
		{AnswerID: "z", AuthorID: "carol"},
	}
	ballots := []Ballot{{AnswerID: "y"}, {AnswerID: "x"}, {AnswerID: "y"}, {AnswerID: "x"}}

	res := Tally(entries, ballots)

	assert.Equal(t, len(ballots), res.Total)
	assert.Equal(t, map[string]int{"alice": 2, "bob": 2}, res.Credits)

	winners := 0
	sum := 0
	for _, a := range res.Answers {
		sum += a.Votes
		if a.IsWinner {
			winners++
			assert.Equal(t, 2, a.Votes)
		}
	}
	assert.Equal(t, 2, winners, "ties share the win")
	assert.Equal(t, res.Total, sum)
	assert.Equal(t, "z", res.Answers[2].AnswerID)
}

func TestTallyWithoutVotes(t *testing.T) {
	res := Tally([]Entry{{AnswerID: "x", AuthorID: "alice"}}, nil)
	assert.Zero(t, res.Total)
	assert.Empty(t, res.Credits)
	assert.False(t, res.Answers[0].IsWinner)
}
