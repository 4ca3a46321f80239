package brackets

import (
	"errors"
	"math"
	"sort"

	"github.com/bracketlab/tournament-engine/models"
)

var ErrInsufficientParticipants = errors.New("at least 2 participants are required to build a bracket")

// Build produces a seeded single-elimination bracket for the given
// participants. It is a pure function: no storage or network side effects.
//
// The bracket size is the smallest power of two that fits the participant
// count. Participants are ordered by ranking, best first; the top
// bracketSize-N seeds receive round-1 byes (a single-slot match resolved to
// its sole occupant), and the remaining actives are fold-over paired so that
// the strongest remaining seed meets the weakest. Bye winners are propagated
// into round 2 before the bracket is returned, so a bye never needs a live
// submission.
func Build(participants []models.Participant) (models.Bracket, error) {
	n := len(participants)
	if n < 2 {
		return nil, ErrInsufficientParticipants
	}

	totalRounds := int(math.Ceil(math.Log2(float64(n))))
	bracketSize := 1 << uint(totalRounds)
	byeCount := bracketSize - n

	seeded := make([]models.Participant, n)
	copy(seeded, participants)
	sort.SliceStable(seeded, func(i, j int) bool {
		return seedRank(seeded[i]) > seedRank(seeded[j])
	})

	byePlayers := seeded[:byeCount]
	active := seeded[byeCount:]

	round1 := make([]models.Match, bracketSize/2)
	for i := range round1 {
		if i < byeCount {
			id := byePlayers[i].UserID
			round1[i].Player1 = &id
			// Single-slot automatic resolution: the sole occupant wins.
			round1[i].Winner = &id
			continue
		}
		idx := i - byeCount
		p1 := active[idx].UserID
		p2 := active[len(active)-1-idx].UserID
		round1[i].Player1 = &p1
		round1[i].Player2 = &p2
	}

	bracket := make(models.Bracket, 0, totalRounds)
	bracket = append(bracket, models.Round{RoundNumber: 1, Matches: round1})

	for r := 2; r <= totalRounds; r++ {
		matchCount := 1 << uint(totalRounds-r)
		bracket = append(bracket, models.Round{
			RoundNumber: r,
			Matches:     make([]models.Match, matchCount),
		})
	}

	for i := range round1 {
		if round1[i].Winner != nil {
			propagate(bracket, 0, i, *round1[i].Winner)
		}
	}

	return bracket, nil
}

// seedRank orders participants for bye allocation and pairing. A missing
// ranking sorts below every ranked participant.
func seedRank(p models.Participant) int {
	if p.Ranking == nil {
		return math.MinInt
	}
	return *p.Ranking
}

// propagate places the winner of match matchIdx in round roundIdx into its
// designated slot of the next round: match matchIdx/2, slot A for an even
// index, slot B for an odd one. It reports whether a next round existed.
func propagate(b models.Bracket, roundIdx, matchIdx, winner int) bool {
	if roundIdx+1 >= len(b) {
		return false
	}
	next := &b[roundIdx+1].Matches[matchIdx/2]
	if matchIdx%2 == 0 {
		next.Player1 = &winner
	} else {
		next.Player2 = &winner
	}
	return true
}
