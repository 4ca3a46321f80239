package brackets

import (
	"errors"

	"github.com/bracketlab/tournament-engine/models"
)

var (
	ErrNoActiveMatch       = errors.New("submitter is not in a pending match")
	ErrDuplicateSubmission = errors.New("result already submitted for this match")
)

// Outcome tags the effect of a result submission on the bracket.
type Outcome int

const (
	// OutcomeRecorded: the submission was stored (or cancelled out a
	// contradicting one) but the match is still pending.
	OutcomeRecorded Outcome = iota
	// OutcomeMatchResolved: the match gained a winner and the winner was
	// propagated into the next round.
	OutcomeMatchResolved
	// OutcomeBracketComplete: the resolved match was the final, the
	// tournament has a champion.
	OutcomeBracketComplete
)

// Submit records a result for the submitter's current match and advances the
// bracket in place. The submitter's match is the first match, scanning rounds
// then matches in order, that has no winner yet and contains the submitter.
//
// When both occupants have submitted, the match either resolves (one WIN, one
// LOSS) or, if both claim the same code, falls back to the empty submission
// state so both parties must resubmit. The reset is deliberate: identical
// claims are contradictory and neither is trusted.
func Submit(bracket models.Bracket, userID int, result models.Result) (Outcome, error) {
	roundIdx, matchIdx, match := findActiveMatch(bracket, userID)
	if match == nil {
		return OutcomeRecorded, ErrNoActiveMatch
	}

	slot := &match.Submission1
	if match.Player2 != nil && *match.Player2 == userID {
		slot = &match.Submission2
	}
	if *slot != nil {
		return OutcomeRecorded, ErrDuplicateSubmission
	}
	*slot = &result

	if match.SubmissionStatus() != models.SubmissionBoth {
		return OutcomeRecorded, nil
	}

	if *match.Submission1 == *match.Submission2 {
		match.ClearSubmissions()
		return OutcomeRecorded, nil
	}

	winner := *match.Player2
	if *match.Submission1 == models.ResultWin {
		winner = *match.Player1
	}
	match.Winner = &winner

	if !propagate(bracket, roundIdx, matchIdx, winner) {
		return OutcomeBracketComplete, nil
	}
	return OutcomeMatchResolved, nil
}

// findActiveMatch locates the first unresolved match occupied by userID.
func findActiveMatch(bracket models.Bracket, userID int) (int, int, *models.Match) {
	for ri := range bracket {
		for mi := range bracket[ri].Matches {
			m := &bracket[ri].Matches[mi]
			if !m.Resolved() && m.HasPlayer(userID) {
				return ri, mi, m
			}
		}
	}
	return 0, 0, nil
}
