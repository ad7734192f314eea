package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/padelops/bracket-engine/models"
)

func completedGroupMatch(team1, team2, winner, group int, sets ...models.SetScore) *models.Match {
	t1, t2, g, w := team1, team2, group, winner
	return &models.Match{
		Team1ID:     &t1,
		Team2ID:     &t2,
		WinnerTeam:  &w,
		GroupNumber: &g,
		Status:      models.MatchCompleted,
		SetScores:   sets,
	}
}

func TestComputeStandingsGroupTable(t *testing.T) {
	// Group 1: team 10 beats everyone, 11 beats 12.
	matches := []*models.Match{
		completedGroupMatch(10, 11, 1, 1, models.SetScore{Team1: 6, Team2: 2}, models.SetScore{Team1: 6, Team2: 3}),
		completedGroupMatch(10, 12, 1, 1, models.SetScore{Team1: 6, Team2: 0}, models.SetScore{Team1: 6, Team2: 1}),
		completedGroupMatch(11, 12, 1, 1, models.SetScore{Team1: 6, Team2: 4}, models.SetScore{Team1: 6, Team2: 4}),
	}

	standings := ComputeStandings(7, matches, true)
	require.Len(t, standings, 3)

	assert.Equal(t, 10, *standings[0].TeamID)
	assert.Equal(t, 1, standings[0].Position)
	assert.Equal(t, 2, standings[0].TotalPoints)
	assert.Equal(t, 2, standings[0].MatchesWon)
	assert.Equal(t, 24, standings[0].GamesWon)
	assert.Equal(t, 6, standings[0].GamesLost)

	assert.Equal(t, 11, *standings[1].TeamID)
	assert.Equal(t, 2, standings[1].Position)
	assert.Equal(t, 1, standings[1].TotalPoints)

	assert.Equal(t, 12, *standings[2].TeamID)
	assert.Equal(t, 3, standings[2].Position)
	assert.Equal(t, 0, standings[2].TotalPoints)
	assert.Equal(t, 2, standings[2].MatchesLost)

	for _, st := range standings {
		assert.Equal(t, 7, st.BracketID)
		assert.Equal(t, 1, st.GroupNumber)
	}
}

func TestComputeStandingsGameDifferenceBreaksTies(t *testing.T) {
	// Circular results: 1 beats 2, 2 beats 3, 3 beats 1. Everyone has one
	// point; game difference decides.
	matches := []*models.Match{
		completedGroupMatch(1, 2, 1, 1, models.SetScore{Team1: 6, Team2: 0}, models.SetScore{Team1: 6, Team2: 0}),
		completedGroupMatch(2, 3, 1, 1, models.SetScore{Team1: 6, Team2: 4}, models.SetScore{Team1: 6, Team2: 4}),
		completedGroupMatch(3, 1, 1, 1, models.SetScore{Team1: 6, Team2: 4}, models.SetScore{Team1: 6, Team2: 4}),
	}

	standings := ComputeStandings(1, matches, true)
	require.Len(t, standings, 3)

	// Game difference: team1 +8, team3 0, team2 -8.
	assert.Equal(t, 1, *standings[0].TeamID)
	assert.Equal(t, 3, *standings[1].TeamID)
	assert.Equal(t, 2, *standings[2].TeamID)
}

func TestComputeStandingsSkipsPendingAndCountsForfeits(t *testing.T) {
	g := 1
	t1, t2 := 5, 6
	w := 1
	pending := &models.Match{Team1ID: &t1, Team2ID: &t2, GroupNumber: &g, Status: models.MatchPending}
	forfeit := &models.Match{Team1ID: &t1, Team2ID: &t2, GroupNumber: &g, Status: models.MatchForfeit, WinnerTeam: &w}

	standings := ComputeStandings(1, []*models.Match{pending, forfeit}, true)
	require.Len(t, standings, 2)

	assert.Equal(t, 5, *standings[0].TeamID)
	assert.Equal(t, 1, standings[0].TotalPoints)
	assert.Equal(t, 1, standings[0].MatchesPlayed)
	assert.Equal(t, 0, standings[0].GamesWon, "forfeits bring no games")
	assert.Equal(t, 1, standings[1].MatchesLost)
}

func TestComputeStandingsFlatModeTracksRoundReached(t *testing.T) {
	t1, t2 := 1, 2
	w := 1
	semifinal := &models.Match{
		Team1ID: &t1, Team2ID: &t2, WinnerTeam: &w,
		RoundNumber: 2, RoundName: "Semifinals",
		Status:    models.MatchCompleted,
		SetScores: []models.SetScore{{Team1: 6, Team2: 3}, {Team1: 6, Team2: 3}},
	}

	standings := ComputeStandings(1, []*models.Match{semifinal}, false)
	require.Len(t, standings, 2)

	for _, st := range standings {
		assert.Equal(t, 0, st.GroupNumber)
		require.NotNil(t, st.RoundReached)
		assert.Equal(t, "Semifinals", *st.RoundReached)
	}
}

func TestComputeStandingsGroupedIgnoresKnockout(t *testing.T) {
	t1, t2 := 1, 2
	w := 1
	knockout := &models.Match{
		Team1ID: &t1, Team2ID: &t2, WinnerTeam: &w,
		RoundNumber: 2, Status: models.MatchCompleted,
	}

	standings := ComputeStandings(1, []*models.Match{knockout}, true)
	assert.Empty(t, standings)
}
