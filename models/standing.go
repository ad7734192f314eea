package models

import "time"

// Standing is a per-team aggregate inside one group (or the whole bracket
// when the format has no groups). Rows are a pure function of the bracket's
// match history: they are fully recomputed, never patched incrementally.
type Standing struct {
	ID              int       `json:"id" db:"id"`
	BracketID       int       `json:"bracket_id" db:"bracket_id"`
	TeamID          *int      `json:"team_id,omitempty" db:"team_id"`
	PlayerID        *int      `json:"player_id,omitempty" db:"player_id"`
	GroupNumber     int       `json:"group_number" db:"group_number"`
	Position        int       `json:"position" db:"position"`
	TotalPoints     int       `json:"total_points" db:"total_points"`
	MatchesPlayed   int       `json:"matches_played" db:"matches_played"`
	MatchesWon      int       `json:"matches_won" db:"matches_won"`
	MatchesLost     int       `json:"matches_lost" db:"matches_lost"`
	GamesWon        int       `json:"games_won" db:"games_won"`
	GamesLost       int       `json:"games_lost" db:"games_lost"`
	PointDifference int       `json:"point_difference" db:"point_difference"`
	RoundReached    *string   `json:"round_reached,omitempty" db:"round_reached"`
	UpdatedAt       time.Time `json:"updated_at" db:"updated_at"`
}

// StandingInput is the write shape for upserting standings.
type StandingInput struct {
	BracketID       int
	TeamID          *int
	GroupNumber     int
	Position        int
	TotalPoints     int
	MatchesPlayed   int
	MatchesWon      int
	MatchesLost     int
	GamesWon        int
	GamesLost       int
	PointDifference int
	RoundReached    *string
}
