package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/padelops/bracket-engine/models"
)

type progressionFixture struct {
	brackets  *fakeBracketRepo
	matches   *fakeMatchRepo
	standings *fakeStandingRepo
	teams     *fakeTeamRepo
	audit     *fakeAuditRepo
	archiver  *fakeArchiver
	service   ProgressionService
}

func newProgressionFixture() *progressionFixture {
	f := &progressionFixture{
		brackets:  newFakeBracketRepo(),
		matches:   newFakeMatchRepo(),
		standings: newFakeStandingRepo(),
		teams:     &fakeTeamRepo{uids: map[int][]string{}, allowScores: true},
		audit:     &fakeAuditRepo{},
		archiver:  &fakeArchiver{},
	}
	f.service = NewProgressionService(f.brackets, f.matches, f.standings, f.teams, f.audit, f.archiver, testHub(), testLogger())
	return f
}

// seedKnockout persists a 4-team knockout: two semifinals feeding a final.
func (f *progressionFixture) seedKnockout(t *testing.T) (*models.Bracket, []*models.Match) {
	t.Helper()
	ctx := context.Background()

	bracket := &models.Bracket{TournamentID: 1, CategoryID: 1, Format: models.FormatKnockout, Status: models.BracketInProgress}
	require.NoError(t, f.brackets.Create(ctx, nil, bracket))

	one, two, three, four := 1, 2, 3, 4
	generated := []models.GeneratedMatch{
		{RoundNumber: 1, MatchNumber: 1, RoundName: "Semifinals", Team1ID: &one, Team2ID: &four},
		{RoundNumber: 1, MatchNumber: 2, RoundName: "Semifinals", Team1ID: &two, Team2ID: &three},
		{RoundNumber: 2, MatchNumber: 3, RoundName: "Final"},
	}
	created, err := f.matches.CreateMatches(ctx, nil, bracket.ID, generated)
	require.NoError(t, err)

	pos1, pos2 := 1, 2
	require.NoError(t, f.matches.UpdateNextMatchID(ctx, nil, created[0].ID, &created[2].ID, &pos1))
	require.NoError(t, f.matches.UpdateNextMatchID(ctx, nil, created[1].ID, &created[2].ID, &pos2))
	return bracket, created
}

func straightSets() []models.SetScore {
	return []models.SetScore{{Team1: 6, Team2: 2}, {Team1: 6, Team2: 3}}
}

func TestUpdateScoreCompletesAndAdvances(t *testing.T) {
	f := newProgressionFixture()
	_, matches := f.seedKnockout(t)
	ctx := context.Background()

	updated, err := f.service.UpdateScore(ctx, matches[0].ID, ScoreSubmission{Sets: straightSets()})
	require.NoError(t, err)
	assert.Equal(t, models.MatchCompleted, updated.Status)
	require.NotNil(t, updated.WinnerTeam)
	assert.Equal(t, 1, *updated.WinnerTeam)
	assert.Equal(t, 2, *updated.ScoreTeam1)
	assert.Equal(t, 0, *updated.ScoreTeam2)
	assert.Equal(t, 2, updated.Version)

	final, err := f.matches.GetByID(ctx, matches[2].ID)
	require.NoError(t, err)
	require.NotNil(t, final.Team1ID)
	assert.Equal(t, 1, *final.Team1ID, "semifinal winner fills the final's first slot")

	assert.Contains(t, f.audit.actions(), "match.update_score")
}

func TestUpdateScoreVersionConflict(t *testing.T) {
	f := newProgressionFixture()
	_, matches := f.seedKnockout(t)
	ctx := context.Background()

	stale := 99
	_, err := f.service.UpdateScore(ctx, matches[0].ID, ScoreSubmission{Sets: straightSets(), ExpectedVersion: &stale})
	assert.ErrorIs(t, err, ErrVersionConflict)

	current := 1
	_, err = f.service.UpdateScore(ctx, matches[0].ID, ScoreSubmission{Sets: straightSets(), ExpectedVersion: &current})
	assert.NoError(t, err)
}

func TestUpdateScoreRejectsIncompleteSlots(t *testing.T) {
	f := newProgressionFixture()
	_, matches := f.seedKnockout(t)

	_, err := f.service.UpdateScore(context.Background(), matches[2].ID, ScoreSubmission{Sets: straightSets()})
	assert.ErrorIs(t, err, ErrMatchTeamsIncomplete)
}

func TestUpdateScoreRejectsInvalidScore(t *testing.T) {
	f := newProgressionFixture()
	_, matches := f.seedKnockout(t)

	_, err := f.service.UpdateScore(context.Background(), matches[0].ID, ScoreSubmission{
		Sets: []models.SetScore{{Team1: 6, Team2: 6}},
	})
	assert.ErrorIs(t, err, ErrScoreInvalid)
}

func TestUpdateScoreRescoreBlockedAfterDownstreamResult(t *testing.T) {
	f := newProgressionFixture()
	_, matches := f.seedKnockout(t)
	ctx := context.Background()

	_, err := f.service.UpdateScore(ctx, matches[0].ID, ScoreSubmission{Sets: straightSets()})
	require.NoError(t, err)
	_, err = f.service.UpdateScore(ctx, matches[1].ID, ScoreSubmission{Sets: straightSets()})
	require.NoError(t, err)
	_, err = f.service.UpdateScore(ctx, matches[2].ID, ScoreSubmission{Sets: straightSets()})
	require.NoError(t, err)

	// The final has a result now; correcting a semifinal is no longer safe.
	_, err = f.service.UpdateScore(ctx, matches[0].ID, ScoreSubmission{
		Sets: []models.SetScore{{Team1: 2, Team2: 6}, {Team1: 3, Team2: 6}},
	})
	assert.ErrorIs(t, err, ErrDownstreamPlayed)
}

func TestUpdateScoreCompletesBracketAndArchives(t *testing.T) {
	f := newProgressionFixture()
	bracket, matches := f.seedKnockout(t)
	ctx := context.Background()

	for _, id := range []int{matches[0].ID, matches[1].ID, matches[2].ID} {
		_, err := f.service.UpdateScore(ctx, id, ScoreSubmission{Sets: straightSets()})
		require.NoError(t, err)
	}

	stored, err := f.brackets.GetByID(ctx, bracket.ID)
	require.NoError(t, err)
	assert.Equal(t, models.BracketCompleted, stored.Status)

	require.Len(t, f.archiver.snapshots, 1)
	assert.Equal(t, bracket.ID, f.archiver.snapshots[0].Bracket.ID)
	assert.Len(t, f.archiver.snapshots[0].Matches, 3)
}

func TestUpdateScorePlayerPath(t *testing.T) {
	f := newProgressionFixture()
	_, matches := f.seedKnockout(t)
	ctx := context.Background()
	f.teams.uids = map[int][]string{1: {"uid-a", "uid-b"}, 4: {"uid-c"}}

	t.Run("policy disabled", func(t *testing.T) {
		f.teams.allowScores = false
		uid := "uid-a"
		_, err := f.service.UpdateScore(ctx, matches[0].ID, ScoreSubmission{Sets: straightSets(), SubmittedByUID: &uid})
		assert.ErrorIs(t, err, ErrPlayerScoresDisabled)
		f.teams.allowScores = true
	})

	t.Run("submitter not on either roster", func(t *testing.T) {
		uid := "uid-x"
		_, err := f.service.UpdateScore(ctx, matches[0].ID, ScoreSubmission{Sets: straightSets(), SubmittedByUID: &uid})
		assert.ErrorIs(t, err, ErrSubmitterNotOnRoster)
	})

	t.Run("roster member accepted", func(t *testing.T) {
		uid := "uid-c"
		updated, err := f.service.UpdateScore(ctx, matches[0].ID, ScoreSubmission{Sets: straightSets(), SubmittedByUID: &uid})
		require.NoError(t, err)
		require.NotNil(t, updated.SubmittedBy)
		assert.Equal(t, "uid-c", *updated.SubmittedBy)
	})
}

func TestResetScoreReversesAdvancement(t *testing.T) {
	f := newProgressionFixture()
	_, matches := f.seedKnockout(t)
	ctx := context.Background()

	_, err := f.service.UpdateScore(ctx, matches[0].ID, ScoreSubmission{Sets: straightSets()})
	require.NoError(t, err)

	reset, err := f.service.ResetScore(ctx, matches[0].ID)
	require.NoError(t, err)
	assert.Equal(t, models.MatchPending, reset.Status)
	assert.Nil(t, reset.WinnerTeam)
	assert.Nil(t, reset.SetScores)

	final, err := f.matches.GetByID(ctx, matches[2].ID)
	require.NoError(t, err)
	assert.Nil(t, final.Team1ID, "advanced team is pulled back out of the final")
}

func TestResetScoreBlockedByDownstreamResult(t *testing.T) {
	f := newProgressionFixture()
	_, matches := f.seedKnockout(t)
	ctx := context.Background()

	for _, id := range []int{matches[0].ID, matches[1].ID, matches[2].ID} {
		_, err := f.service.UpdateScore(ctx, id, ScoreSubmission{Sets: straightSets()})
		require.NoError(t, err)
	}

	_, err := f.service.ResetScore(ctx, matches[0].ID)
	assert.ErrorIs(t, err, ErrDownstreamPlayed)
}

func TestResetScoreReopensCompletedBracket(t *testing.T) {
	f := newProgressionFixture()
	bracket, matches := f.seedKnockout(t)
	ctx := context.Background()

	for _, id := range []int{matches[0].ID, matches[1].ID, matches[2].ID} {
		_, err := f.service.UpdateScore(ctx, id, ScoreSubmission{Sets: straightSets()})
		require.NoError(t, err)
	}

	_, err := f.service.ResetScore(ctx, matches[2].ID)
	require.NoError(t, err)

	stored, err := f.brackets.GetByID(ctx, bracket.ID)
	require.NoError(t, err)
	assert.Equal(t, models.BracketInProgress, stored.Status)
}

func TestAdvanceWinnerRequiresDecision(t *testing.T) {
	f := newProgressionFixture()
	_, matches := f.seedKnockout(t)

	_, err := f.service.AdvanceWinner(context.Background(), matches[0].ID)
	assert.ErrorIs(t, err, ErrMatchNotDecided)
}

func TestWithdrawTeamForfeitsOpenMatches(t *testing.T) {
	f := newProgressionFixture()
	bracket, matches := f.seedKnockout(t)
	ctx := context.Background()

	require.NoError(t, f.service.WithdrawTeam(ctx, bracket.ID, 4))

	semifinal, err := f.matches.GetByID(ctx, matches[0].ID)
	require.NoError(t, err)
	assert.Equal(t, models.MatchForfeit, semifinal.Status)
	require.NotNil(t, semifinal.WinnerTeam)
	assert.Equal(t, 1, *semifinal.WinnerTeam, "the opponent wins the forfeit")

	final, err := f.matches.GetByID(ctx, matches[2].ID)
	require.NoError(t, err)
	require.NotNil(t, final.Team1ID)
	assert.Equal(t, 1, *final.Team1ID)

	assert.Contains(t, f.audit.actions(), "team.withdraw")
}

func TestWithdrawTeamWithEmptyOpponentSlot(t *testing.T) {
	f := newProgressionFixture()
	bracket, matches := f.seedKnockout(t)
	ctx := context.Background()

	// Put team 2 into the final while its opponent slot is still open, then
	// withdraw it. The forfeit completes but advances nothing.
	_, err := f.service.UpdateScore(ctx, matches[1].ID, ScoreSubmission{Sets: straightSets()})
	require.NoError(t, err)

	require.NoError(t, f.service.WithdrawTeam(ctx, bracket.ID, 2))

	final, err := f.matches.GetByID(ctx, matches[2].ID)
	require.NoError(t, err)
	assert.Equal(t, models.MatchForfeit, final.Status)
	assert.Nil(t, final.Team1ID)
}

func (f *progressionFixture) seedGroupStage(t *testing.T) (*models.Bracket, []*models.Match) {
	t.Helper()
	ctx := context.Background()

	bracket := &models.Bracket{TournamentID: 1, CategoryID: 1, Format: models.FormatGroupsKnockout, Status: models.BracketInProgress}
	require.NoError(t, f.brackets.Create(ctx, nil, bracket))

	one, two, three, four, g := 1, 2, 3, 4, 1
	generated := []models.GeneratedMatch{
		{RoundNumber: 1, MatchNumber: 1, RoundName: "Group A", Team1ID: &one, Team2ID: &two, GroupNumber: &g},
		{RoundNumber: 1, MatchNumber: 2, RoundName: "Group A", Team1ID: &three, Team2ID: &four, GroupNumber: &g},
	}
	created, err := f.matches.CreateMatches(ctx, nil, bracket.ID, generated)
	require.NoError(t, err)
	return bracket, created
}

func TestSwapTeamsInGroups(t *testing.T) {
	f := newProgressionFixture()
	bracket, matches := f.seedGroupStage(t)
	ctx := context.Background()

	require.NoError(t, f.service.SwapTeamsInGroups(ctx, bracket.ID, 2, 3))

	first, err := f.matches.GetByID(ctx, matches[0].ID)
	require.NoError(t, err)
	assert.Equal(t, 3, *first.Team2ID)

	second, err := f.matches.GetByID(ctx, matches[1].ID)
	require.NoError(t, err)
	assert.Equal(t, 2, *second.Team1ID)
}

func TestSwapTeamsRejectedWhenMatchStarted(t *testing.T) {
	f := newProgressionFixture()
	bracket, matches := f.seedGroupStage(t)
	ctx := context.Background()

	_, err := f.service.UpdateScore(ctx, matches[0].ID, ScoreSubmission{Sets: straightSets()})
	require.NoError(t, err)

	err = f.service.SwapTeamsInGroups(ctx, bracket.ID, 2, 3)
	assert.ErrorIs(t, err, ErrMatchAlreadyStarted)
}

func TestSwapTeamsRejectedAfterKnockoutExists(t *testing.T) {
	f := newProgressionFixture()
	bracket, _ := f.seedGroupStage(t)
	ctx := context.Background()

	// Add a knockout placeholder to the same bracket.
	_, err := f.matches.CreateMatches(ctx, nil, bracket.ID, []models.GeneratedMatch{
		{RoundNumber: 2, MatchNumber: 3, RoundName: "Final"},
	})
	require.NoError(t, err)

	err = f.service.SwapTeamsInGroups(ctx, bracket.ID, 2, 3)
	assert.ErrorIs(t, err, ErrKnockoutAlreadyExists)
}

func TestUpdateBracketStatusTransitions(t *testing.T) {
	f := newProgressionFixture()
	ctx := context.Background()

	bracket := &models.Bracket{TournamentID: 1, CategoryID: 1, Format: models.FormatKnockout, Status: models.BracketDraft}
	require.NoError(t, f.brackets.Create(ctx, nil, bracket))

	updated, err := f.service.UpdateBracketStatus(ctx, bracket.ID, models.BracketPublished)
	require.NoError(t, err)
	assert.Equal(t, models.BracketPublished, updated.Status)

	// Draft cannot jump straight to completed.
	_, err = f.service.UpdateBracketStatus(ctx, bracket.ID, models.BracketDraft)
	assert.ErrorIs(t, err, ErrStateConflict)

	_, err = f.service.UpdateBracketStatus(ctx, bracket.ID, models.BracketInProgress)
	require.NoError(t, err)
	_, err = f.service.UpdateBracketStatus(ctx, bracket.ID, models.BracketCompleted)
	require.NoError(t, err)

	assert.Len(t, f.archiver.snapshots, 1, "completing via status change archives the bracket")
}

func TestStandingsRefreshedAfterScore(t *testing.T) {
	f := newProgressionFixture()
	bracket, matches := f.seedGroupStage(t)
	ctx := context.Background()

	_, err := f.service.UpdateScore(ctx, matches[0].ID, ScoreSubmission{Sets: straightSets()})
	require.NoError(t, err)

	rows, err := f.standings.ListByBracket(ctx, bracket.ID)
	require.NoError(t, err)
	require.Len(t, rows, 4, "all four group teams have a row")

	assert.Equal(t, 1, *rows[0].TeamID)
	assert.Equal(t, 1, rows[0].TotalPoints)
	assert.Equal(t, 12, rows[0].GamesWon)
}