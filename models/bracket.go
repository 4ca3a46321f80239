package models

// Result is a match result code submitted by a participant: 1 claims a win,
// 0 concedes a loss. The numeric values are part of the wire contract.
type Result int

const (
	ResultLoss Result = 0
	ResultWin  Result = 1
)

func (r Result) Valid() bool {
	return r == ResultLoss || r == ResultWin
}

// SubmissionState describes where a match sits in its submission lifecycle.
// A match moves Empty -> OneSubmitted -> Resolved, or falls back to Empty
// when both occupants submit the same result code.
type SubmissionState int

const (
	SubmissionEmpty SubmissionState = iota
	SubmissionOne
	SubmissionBoth
)

// Match is a single bracket pairing. Player slots hold participant user IDs;
// a nil slot is either waiting for a winner from the previous round or a
// permanent bye. Winner is set exactly once, after which the match is terminal.
type Match struct {
	Player1     *int    `json:"player1"`
	Player2     *int    `json:"player2"`
	Submission1 *Result `json:"submission_player1"`
	Submission2 *Result `json:"submission_player2"`
	Winner      *int    `json:"winner"`
}

// HasPlayer reports whether userID occupies either slot of the match.
func (m *Match) HasPlayer(userID int) bool {
	return (m.Player1 != nil && *m.Player1 == userID) ||
		(m.Player2 != nil && *m.Player2 == userID)
}

// IsBye reports whether exactly one slot is occupied.
func (m *Match) IsBye() bool {
	return (m.Player1 == nil) != (m.Player2 == nil)
}

// Resolved reports whether the match is terminal.
func (m *Match) Resolved() bool {
	return m.Winner != nil
}

// SubmissionStatus returns the current submission state of the match.
func (m *Match) SubmissionStatus() SubmissionState {
	switch {
	case m.Submission1 != nil && m.Submission2 != nil:
		return SubmissionBoth
	case m.Submission1 != nil || m.Submission2 != nil:
		return SubmissionOne
	default:
		return SubmissionEmpty
	}
}

// ClearSubmissions resets the match to the empty submission state. Used when
// both occupants claim the same result and must resubmit.
func (m *Match) ClearSubmissions() {
	m.Submission1 = nil
	m.Submission2 = nil
}

// Round is an ordered sequence of matches sharing a round number.
// Round k of a bracket of size S has S / 2^k matches.
type Round struct {
	RoundNumber int     `json:"roundNumber"`
	Matches     []Match `json:"matches"`
}

// Bracket is the full single-elimination structure, round 1 first.
type Bracket []Round

// IsEmpty reports whether the bracket has not been generated yet.
func (b Bracket) IsEmpty() bool {
	return len(b) == 0
}

// Complete reports whether the final round's single match has a winner.
func (b Bracket) Complete() bool {
	if len(b) == 0 {
		return false
	}
	final := b[len(b)-1]
	return len(final.Matches) == 1 && final.Matches[0].Resolved()
}

// ChampionID returns the overall winner's user ID once the bracket is
// complete, or nil.
func (b Bracket) ChampionID() *int {
	if !b.Complete() {
		return nil
	}
	return b[len(b)-1].Matches[0].Winner
}
