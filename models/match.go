package models

import "time"

type MatchStatus string

const (
	MatchPending    MatchStatus = "pending"
	MatchScheduled  MatchStatus = "scheduled"
	MatchInProgress MatchStatus = "in_progress"
	MatchCompleted  MatchStatus = "completed"
	MatchBye        MatchStatus = "bye"
	MatchForfeit    MatchStatus = "forfeit"
	MatchCancelled  MatchStatus = "cancelled"
)

// SetScore is one set of a match. Tiebreak sub-scores are carried alongside
// the game score when the set went to a tiebreak.
type SetScore struct {
	Team1         int  `json:"team1"`
	Team2         int  `json:"team2"`
	TiebreakTeam1 *int `json:"tiebreak_team1,omitempty"`
	TiebreakTeam2 *int `json:"tiebreak_team2,omitempty"`
}

// Match is a single pairing inside a bracket. MatchNumber is unique within
// the bracket and strictly increases round-over-round, which gives the total
// order used to resolve forward links after bulk creation.
type Match struct {
	ID          int        `json:"id" db:"id"`
	BracketID   int        `json:"bracket_id" db:"bracket_id"`
	RoundNumber int        `json:"round_number" db:"round_number"`
	MatchNumber int        `json:"match_number" db:"match_number"`
	RoundName   string     `json:"round_name" db:"round_name"`
	Team1ID     *int       `json:"team1_id,omitempty" db:"team1_id"`
	Team2ID     *int       `json:"team2_id,omitempty" db:"team2_id"`
	ScoreTeam1  *int       `json:"score_team1,omitempty" db:"score_team1"`
	ScoreTeam2  *int       `json:"score_team2,omitempty" db:"score_team2"`
	SetScores   []SetScore `json:"set_scores,omitempty" db:"-"`
	// WinnerTeam is 1 or 2 when the match is decided.
	WinnerTeam        *int        `json:"winner_team,omitempty" db:"winner_team"`
	NextMatchID       *int        `json:"next_match_id,omitempty" db:"next_match_id"`
	NextMatchPosition *int        `json:"next_match_position,omitempty" db:"next_match_position"`
	GroupNumber       *int        `json:"group_number,omitempty" db:"group_number"`
	Status            MatchStatus `json:"status" db:"status"`
	IsBye             bool        `json:"is_bye" db:"is_bye"`
	Version           int         `json:"version" db:"version"`
	SubmittedBy       *string     `json:"submitted_by,omitempty" db:"submitted_by"`
	CreatedAt         time.Time   `json:"created_at" db:"created_at"`
}

// IsKnockout reports whether the match belongs to the knockout phase.
// Group matches always carry a group number.
func (m *Match) IsKnockout() bool {
	return m.GroupNumber == nil
}

// IsTerminal reports whether the match can no longer change state.
func (m *Match) IsTerminal() bool {
	return m.Status == MatchCompleted || m.Status == MatchForfeit || m.Status == MatchCancelled
}

// WinnerTeamID returns the team id of the winner, if decided and present.
func (m *Match) WinnerTeamID() *int {
	if m.WinnerTeam == nil {
		return nil
	}
	if *m.WinnerTeam == 1 {
		return m.Team1ID
	}
	return m.Team2ID
}
