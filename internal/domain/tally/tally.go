// Package tally is the availability aggregation engine: a pure function
// from the current candidate and participant sets to per-candidate
// scores and the best-candidate set. It is recomputed from scratch on
// every input change; candidate removal or participant addition shifts
// the whole score vector, so incremental patching is ruled out.
package tally

import (
	"sort"

	"chousei/internal/domain/participant"
	"chousei/internal/domain/poll"
)

// Result holds the score per current candidate and the candidates tied
// at the maximum positive score, ascending by id. BestIDs is empty when
// the maximum is zero: an all-negative or unanswered poll has no
// recommendable date, rather than an arbitrary tie at zero.
type Result struct {
	Scores  map[int]int `json:"scores"`
	BestIDs []int       `json:"bestIds"`
}

// Best scores every candidate currently in the poll. Answers keyed by
// candidates that no longer exist are ignored; candidates nobody has
// answered score zero.
func Best(candidates []poll.Candidate, participants []participant.Participant) Result {
	scores := make(map[int]int, len(candidates))
	for _, c := range candidates {
		scores[c.ID] = 0
	}
	for _, p := range participants {
		for _, c := range candidates {
			scores[c.ID] += p.Answers[c.ID].Weight()
		}
	}

	max := 0
	for _, score := range scores {
		if score > max {
			max = score
		}
	}

	best := []int{}
	if max > 0 {
		for id, score := range scores {
			if score == max {
				best = append(best, id)
			}
		}
		sort.Ints(best)
	}
	return Result{Scores: scores, BestIDs: best}
}
