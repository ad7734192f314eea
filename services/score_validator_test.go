package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/padelops/bracket-engine/models"
)

func intPtr(v int) *int    { return &v }
func boolPtr(v bool) *bool { return &v }

func TestValidateScoreClassic(t *testing.T) {
	testCases := []struct {
		name       string
		sets       []models.SetScore
		wantWinner int
		wantSets   [2]int
		wantErr    bool
	}{
		{
			name:       "straight sets",
			sets:       []models.SetScore{{Team1: 6, Team2: 2}, {Team1: 6, Team2: 3}},
			wantWinner: 1,
			wantSets:   [2]int{2, 0},
		},
		{
			name: "three sets with tiebreak decider",
			sets: []models.SetScore{
				{Team1: 6, Team2: 2},
				{Team1: 3, Team2: 6},
				{Team1: 7, Team2: 6, TiebreakTeam1: intPtr(7), TiebreakTeam2: intPtr(5)},
			},
			wantWinner: 1,
			wantSets:   [2]int{2, 1},
		},
		{
			name:       "extended set 7-5",
			sets:       []models.SetScore{{Team1: 7, Team2: 5}, {Team1: 5, Team2: 7}, {Team1: 6, Team2: 0}},
			wantWinner: 1,
			wantSets:   [2]int{2, 1},
		},
		{
			name:       "team2 wins",
			sets:       []models.SetScore{{Team1: 2, Team2: 6}, {Team1: 4, Team2: 6}},
			wantWinner: 2,
			wantSets:   [2]int{0, 2},
		},
		{
			name:    "6-6 is never a finished set",
			sets:    []models.SetScore{{Team1: 6, Team2: 6}},
			wantErr: true,
		},
		{
			name:    "6-5 is not a finished set",
			sets:    []models.SetScore{{Team1: 6, Team2: 5}, {Team1: 6, Team2: 0}},
			wantErr: true,
		},
		{
			name:    "tiebreak set without tiebreak score",
			sets:    []models.SetScore{{Team1: 7, Team2: 6}, {Team1: 6, Team2: 0}},
			wantErr: true,
		},
		{
			name: "tiebreak below 7 points",
			sets: []models.SetScore{
				{Team1: 7, Team2: 6, TiebreakTeam1: intPtr(5), TiebreakTeam2: intPtr(3)},
				{Team1: 6, Team2: 0},
			},
			wantErr: true,
		},
		{
			name: "tiebreak margin below 2",
			sets: []models.SetScore{
				{Team1: 7, Team2: 6, TiebreakTeam1: intPtr(7), TiebreakTeam2: intPtr(6)},
				{Team1: 6, Team2: 0},
			},
			wantErr: true,
		},
		{
			name:    "incomplete match",
			sets:    []models.SetScore{{Team1: 6, Team2: 2}},
			wantErr: true,
		},
		{
			name: "extra set after the match is decided",
			sets: []models.SetScore{
				{Team1: 6, Team2: 2}, {Team1: 6, Team2: 2}, {Team1: 6, Team2: 2},
			},
			wantErr: true,
		},
		{
			name:    "negative games",
			sets:    []models.SetScore{{Team1: 6, Team2: -1}, {Team1: 6, Team2: 0}},
			wantErr: true,
		},
		{
			name:    "no sets",
			sets:    nil,
			wantErr: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			result, err := ValidateScore(tc.sets, nil)
			if tc.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrScoreInvalid)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.wantWinner, result.WinnerTeam)
			assert.Equal(t, tc.wantSets[0], result.SetsTeam1)
			assert.Equal(t, tc.wantSets[1], result.SetsTeam2)
		})
	}
}

func TestValidateScoreTiebreakDisabled(t *testing.T) {
	format := &models.MatchFormat{TiebreakAllowed: boolPtr(false)}

	// Without tiebreaks an 8-6 or 7-6 set is invalid.
	_, err := ValidateScore([]models.SetScore{{Team1: 7, Team2: 5}, {Team1: 6, Team2: 0}}, format)
	assert.ErrorIs(t, err, ErrScoreInvalid)

	_, err = ValidateScore([]models.SetScore{
		{Team1: 7, Team2: 6, TiebreakTeam1: intPtr(7), TiebreakTeam2: intPtr(3)},
		{Team1: 6, Team2: 0},
	}, format)
	assert.ErrorIs(t, err, ErrScoreInvalid)

	result, err := ValidateScore([]models.SetScore{{Team1: 6, Team2: 4}, {Team1: 6, Team2: 4}}, format)
	require.NoError(t, err)
	assert.Equal(t, 1, result.WinnerTeam)
}

func TestValidateScoreExpress(t *testing.T) {
	// Express format: a single set to exactly 8 points.
	format := &models.MatchFormat{PointsPerSet: intPtr(8), SetsToPlay: intPtr(1)}

	testCases := []struct {
		name       string
		set        models.SetScore
		wantWinner int
		wantErr    bool
	}{
		{name: "valid 8-5", set: models.SetScore{Team1: 8, Team2: 5}, wantWinner: 1},
		{name: "valid 3-8", set: models.SetScore{Team1: 3, Team2: 8}, wantWinner: 2},
		{name: "both at target", set: models.SetScore{Team1: 8, Team2: 8}, wantErr: true},
		{name: "overshoot", set: models.SetScore{Team1: 9, Team2: 5}, wantErr: true},
		{name: "nobody reached target", set: models.SetScore{Team1: 7, Team2: 5}, wantErr: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			result, err := ValidateScore([]models.SetScore{tc.set}, format)
			if tc.wantErr {
				assert.ErrorIs(t, err, ErrScoreInvalid)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.wantWinner, result.WinnerTeam)
		})
	}
}

func TestValidateScoreCustomGamesPerSet(t *testing.T) {
	// Short sets to 4 games, single set.
	format := &models.MatchFormat{GamesPerSet: intPtr(4), SetsToPlay: intPtr(1)}

	result, err := ValidateScore([]models.SetScore{{Team1: 4, Team2: 2}}, format)
	require.NoError(t, err)
	assert.Equal(t, 1, result.WinnerTeam)

	_, err = ValidateScore([]models.SetScore{{Team1: 4, Team2: 3}}, format)
	assert.ErrorIs(t, err, ErrScoreInvalid)

	result, err = ValidateScore([]models.SetScore{
		{Team1: 5, Team2: 4, TiebreakTeam1: intPtr(7), TiebreakTeam2: intPtr(4)},
	}, format)
	require.NoError(t, err)
	assert.Equal(t, 1, result.WinnerTeam)
}
