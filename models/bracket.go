package models

import "time"

type BracketFormat string

const (
	FormatKnockout       BracketFormat = "knockout"
	FormatGroupsKnockout BracketFormat = "groups_knockout"
	FormatRoundRobin     BracketFormat = "round_robin"
	FormatAmericano      BracketFormat = "americano"
	FormatMexicano       BracketFormat = "mexicano"
)

type BracketStatus string

const (
	BracketDraft      BracketStatus = "draft"
	BracketPublished  BracketStatus = "published"
	BracketInProgress BracketStatus = "in_progress"
	BracketCompleted  BracketStatus = "completed"
	BracketCancelled  BracketStatus = "cancelled"
)

type SeedingMethod string

const (
	SeedingManual  SeedingMethod = "manual"
	SeedingRanking SeedingMethod = "ranking"
	SeedingRandom  SeedingMethod = "random"
)

// MatchFormat describes how a single match is scored. All fields are
// optional; defaults are 6 games per set, best of 3, tiebreak allowed.
type MatchFormat struct {
	GamesPerSet     *int  `json:"games_per_set,omitempty" db:"games_per_set"`
	SetsToPlay      *int  `json:"sets_to_play,omitempty" db:"sets_to_play"`
	TiebreakAllowed *bool `json:"tiebreak_allowed,omitempty" db:"tiebreak_allowed"`
	// PointsPerSet switches a set to express scoring: first side to reach
	// exactly this many points wins the set.
	PointsPerSet *int `json:"points_per_set,omitempty" db:"points_per_set"`
}

const (
	DefaultGamesPerSet = 6
	DefaultSetsToPlay  = 3
)

// Resolved returns the format with defaults applied.
func (f *MatchFormat) Resolved() (gamesPerSet, setsToPlay int, tiebreakAllowed bool, pointsPerSet *int) {
	gamesPerSet = DefaultGamesPerSet
	setsToPlay = DefaultSetsToPlay
	tiebreakAllowed = true
	if f == nil {
		return
	}
	if f.GamesPerSet != nil && *f.GamesPerSet > 0 {
		gamesPerSet = *f.GamesPerSet
	}
	if f.SetsToPlay != nil && *f.SetsToPlay > 0 {
		setsToPlay = *f.SetsToPlay
	}
	if f.TiebreakAllowed != nil {
		tiebreakAllowed = *f.TiebreakAllowed
	}
	pointsPerSet = f.PointsPerSet
	return
}

// BracketConfig holds the group-stage and knockout configuration. It is
// mutable only while no match of the bracket has started.
type BracketConfig struct {
	GroupCount        int          `json:"group_count,omitempty"`
	TeamsPerGroup     int          `json:"teams_per_group,omitempty"`
	AdvancingPerGroup int          `json:"advancing_per_group,omitempty"`
	WildcardCount     int          `json:"wildcard_count,omitempty"`
	MatchFormat       *MatchFormat `json:"match_format,omitempty"`
}

// Bracket is the root aggregate: one per (tournament, category).
type Bracket struct {
	ID            int           `json:"id" db:"id"`
	TournamentID  int           `json:"tournament_id" db:"tournament_id"`
	CategoryID    int           `json:"category_id" db:"category_id"`
	Format        BracketFormat `json:"format" db:"format"`
	Status        BracketStatus `json:"status" db:"status"`
	SeedingMethod SeedingMethod `json:"seeding_method" db:"seeding_method"`
	Config        BracketConfig `json:"config" db:"-"`
	CreatedAt     time.Time     `json:"created_at" db:"created_at"`

	// Optional linked data, populated by services.
	Matches   []Match    `json:"matches,omitempty" db:"-"`
	Standings []Standing `json:"standings,omitempty" db:"-"`
}

// ValidBracketStatusTransition reports whether status can move from current
// to next. Equal statuses are always allowed (idempotent updates).
func ValidBracketStatusTransition(current, next BracketStatus) bool {
	if current == next {
		return true
	}
	allowed := map[BracketStatus][]BracketStatus{
		BracketDraft:      {BracketPublished, BracketCancelled},
		BracketPublished:  {BracketInProgress, BracketCancelled},
		BracketInProgress: {BracketCompleted, BracketCancelled},
		BracketCompleted:  {},
		BracketCancelled:  {},
	}
	for _, s := range allowed[current] {
		if next == s {
			return true
		}
	}
	return false
}
