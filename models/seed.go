package models

// TeamSeed pairs a team with its seed number (seed 1 = top ranked).
// It only exists during bracket generation and is never persisted.
type TeamSeed struct {
	TeamID int `json:"team_id"`
	Seed   int `json:"seed"`
}

// GeneratedMatch is the storage-free shape a bracket generator emits.
// Matches are keyed by MatchNumber; forward links reference the next match
// by number and are resolved to durable ids after persistence.
type GeneratedMatch struct {
	RoundNumber int
	MatchNumber int
	RoundName   string
	Team1ID     *int
	Team2ID     *int
	GroupNumber *int
	IsBye       bool

	NextMatchNumber   *int
	NextMatchPosition *int
}
