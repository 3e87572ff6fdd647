package engine

import (
	"sort"

	"promptparty/apperr"
)

// VoteCheck carries what is known about a vote before it is stored.
type VoteCheck struct {
	VoterID string
	// AuthorID is empty when the target answer is not part of the current
	// round.
	AuthorID         string
	ConnectedPlayers int
}

// ValidateVote applies the target and self-vote rules. Voting for yourself is
// only allowed when you are the sole connected player.
func ValidateVote(v VoteCheck) error {
	if v.AuthorID == "" {
		return apperr.ErrTargetNotFound
	}
	if v.AuthorID == v.VoterID && v.ConnectedPlayers > 1 {
		return apperr.ErrSelfVoteForbidden
	}
	return nil
}

// Ballot is one stored vote reduced to its target.
type Ballot struct {
	AnswerID string
}

// Entry is one answer of the round with its author.
type Entry struct {
	AnswerID string
	AuthorID string
}

type AnswerTally struct {
	AnswerID string
	AuthorID string
	Votes    int
	IsWinner bool
}

type TallyResult struct {
	Answers []AnswerTally
	// Credits is the score increment per author. Authors with no votes are
	// absent.
	Credits map[string]int
	Total   int
}

// Tally counts ballots per answer. Every vote is worth one point to the
// author; ties share the winner flag. Ballots for answers not in entries are
// ignored.
func Tally(entries []Entry, ballots []Ballot) TallyResult {
	counts := make(map[string]int, len(entries))
	for _, b := range ballots {
		counts[b.AnswerID]++
	}

	res := TallyResult{Credits: make(map[string]int)}
	best := 0
	for _, e := range entries {
		n := counts[e.AnswerID]
		res.Answers = append(res.Answers, AnswerTally{AnswerID: e.AnswerID, AuthorID: e.AuthorID, Votes: n})
		res.Total += n
		if n > 0 {
			res.Credits[e.AuthorID] += n
		}
		if n > best {
			best = n
		}
	}
	if best > 0 {
		for i := range res.Answers {
			res.Answers[i].IsWinner = res.Answers[i].Votes == best
		}
	}
	sort.SliceStable(res.Answers, func(i, j int) bool {
		return res.Answers[i].Votes > res.Answers[j].Votes
	})
	return res
}
