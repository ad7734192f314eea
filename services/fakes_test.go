package services

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"

	"github.com/padelops/bracket-engine/brackets"
	"github.com/padelops/bracket-engine/models"
	"github.com/padelops/bracket-engine/repositories"
	"github.com/padelops/bracket-engine/storage"
)

// In-memory repository fakes mirroring the postgres semantics closely
// enough for service-level tests.

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testHub() *brackets.Hub {
	return brackets.NewHub(testLogger())
}

type fakeBracketRepo struct {
	nextID   int
	brackets map[int]*models.Bracket

	failCreate bool
}

func newFakeBracketRepo() *fakeBracketRepo {
	return &fakeBracketRepo{nextID: 1, brackets: map[int]*models.Bracket{}}
}

func (r *fakeBracketRepo) Create(ctx context.Context, exec repositories.SQLExecutor, bracket *models.Bracket) error {
	if r.failCreate {
		return fmt.Errorf("create failed")
	}
	for _, b := range r.brackets {
		if b.TournamentID == bracket.TournamentID && b.CategoryID == bracket.CategoryID {
			return repositories.ErrBracketConflict
		}
	}
	bracket.ID = r.nextID
	r.nextID++
	stored := *bracket
	r.brackets[bracket.ID] = &stored
	return nil
}

func (r *fakeBracketRepo) GetByID(ctx context.Context, id int) (*models.Bracket, error) {
	b, ok := r.brackets[id]
	if !ok {
		return nil, repositories.ErrBracketNotFound
	}
	copied := *b
	return &copied, nil
}

func (r *fakeBracketRepo) GetByTournamentAndCategory(ctx context.Context, tournamentID, categoryID int) (*models.Bracket, error) {
	for _, b := range r.brackets {
		if b.TournamentID == tournamentID && b.CategoryID == categoryID {
			copied := *b
			return &copied, nil
		}
	}
	return nil, repositories.ErrBracketNotFound
}

func (r *fakeBracketRepo) ListByTournament(ctx context.Context, tournamentID int) ([]*models.Bracket, error) {
	var out []*models.Bracket
	for _, b := range r.brackets {
		if b.TournamentID == tournamentID {
			copied := *b
			out = append(out, &copied)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CategoryID < out[j].CategoryID })
	return out, nil
}

func (r *fakeBracketRepo) UpdateDefinition(ctx context.Context, id int, format models.BracketFormat, seedingMethod models.SeedingMethod, config models.BracketConfig) error {
	b, ok := r.brackets[id]
	if !ok {
		return repositories.ErrBracketNotFound
	}
	b.Format = format
	b.SeedingMethod = seedingMethod
	b.Config = config
	return nil
}

func (r *fakeBracketRepo) UpdateStatus(ctx context.Context, id int, status models.BracketStatus) error {
	b, ok := r.brackets[id]
	if !ok {
		return repositories.ErrBracketNotFound
	}
	b.Status = status
	return nil
}

func (r *fakeBracketRepo) Delete(ctx context.Context, id int) error {
	if _, ok := r.brackets[id]; !ok {
		return repositories.ErrBracketNotFound
	}
	delete(r.brackets, id)
	return nil
}

type fakeMatchRepo struct {
	nextID  int
	matches map[int]*models.Match

	failCreate bool
}

func newFakeMatchRepo() *fakeMatchRepo {
	return &fakeMatchRepo{nextID: 1, matches: map[int]*models.Match{}}
}

func (r *fakeMatchRepo) CreateMatches(ctx context.Context, exec repositories.SQLExecutor, bracketID int, generated []models.GeneratedMatch) ([]*models.Match, error) {
	if r.failCreate {
		return nil, fmt.Errorf("insert failed")
	}
	created := make([]*models.Match, 0, len(generated))
	for _, gm := range generated {
		status := models.MatchPending
		if gm.IsBye {
			status = models.MatchBye
		}
		m := &models.Match{
			ID:          r.nextID,
			BracketID:   bracketID,
			RoundNumber: gm.RoundNumber,
			MatchNumber: gm.MatchNumber,
			RoundName:   gm.RoundName,
			Team1ID:     gm.Team1ID,
			Team2ID:     gm.Team2ID,
			GroupNumber: gm.GroupNumber,
			Status:      status,
			IsBye:       gm.IsBye,
			Version:     1,
		}
		r.nextID++
		r.matches[m.ID] = m
		created = append(created, m)
	}
	return created, nil
}

func (r *fakeMatchRepo) UpdateNextMatchID(ctx context.Context, exec repositories.SQLExecutor, matchID int, nextMatchID, nextMatchPosition *int) error {
	m, ok := r.matches[matchID]
	if !ok {
		return repositories.ErrMatchNotFound
	}
	m.NextMatchID = nextMatchID
	m.NextMatchPosition = nextMatchPosition
	return nil
}

func (r *fakeMatchRepo) GetByID(ctx context.Context, id int) (*models.Match, error) {
	m, ok := r.matches[id]
	if !ok {
		return nil, repositories.ErrMatchNotFound
	}
	return m, nil
}

func (r *fakeMatchRepo) ListByBracket(ctx context.Context, bracketID int) ([]*models.Match, error) {
	var out []*models.Match
	for _, m := range r.matches {
		if m.BracketID == bracketID {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].MatchNumber < out[j].MatchNumber })
	return out, nil
}

func (r *fakeMatchRepo) ListForTeam(ctx context.Context, bracketID, teamID int, statuses []models.MatchStatus) ([]*models.Match, error) {
	all, _ := r.ListByBracket(ctx, bracketID)
	var out []*models.Match
	for _, m := range all {
		involved := (m.Team1ID != nil && *m.Team1ID == teamID) || (m.Team2ID != nil && *m.Team2ID == teamID)
		if !involved {
			continue
		}
		if len(statuses) == 0 {
			out = append(out, m)
			continue
		}
		for _, s := range statuses {
			if m.Status == s {
				out = append(out, m)
				break
			}
		}
	}
	return out, nil
}

func (r *fakeMatchRepo) DeleteByBracketID(ctx context.Context, exec repositories.SQLExecutor, bracketID int) error {
	for id, m := range r.matches {
		if m.BracketID == bracketID {
			delete(r.matches, id)
		}
	}
	return nil
}

func (r *fakeMatchRepo) DeleteByIDs(ctx context.Context, ids []int) error {
	for _, id := range ids {
		delete(r.matches, id)
	}
	return nil
}

func (r *fakeMatchRepo) advance(m *models.Match) *models.Match {
	if m.NextMatchID == nil || m.NextMatchPosition == nil {
		return nil
	}
	winnerID := m.WinnerTeamID()
	if winnerID == nil {
		return nil
	}
	next, ok := r.matches[*m.NextMatchID]
	if !ok {
		return nil
	}
	id := *winnerID
	if *m.NextMatchPosition == 1 {
		next.Team1ID = &id
	} else {
		next.Team2ID = &id
	}
	return next
}

func (r *fakeMatchRepo) UpdateScoreAndAdvance(ctx context.Context, matchID, scoreTeam1, scoreTeam2 int, sets []models.SetScore, winnerTeam int, status models.MatchStatus, expectedVersion *int, submittedBy *string) (*models.Match, *models.Match, error) {
	m, ok := r.matches[matchID]
	if !ok {
		return nil, nil, repositories.ErrMatchNotFound
	}
	if expectedVersion != nil && *expectedVersion != m.Version {
		return nil, nil, repositories.ErrMatchVersionConflict
	}
	m.ScoreTeam1 = &scoreTeam1
	m.ScoreTeam2 = &scoreTeam2
	m.SetScores = sets
	w := winnerTeam
	m.WinnerTeam = &w
	m.Status = status
	m.SubmittedBy = submittedBy
	m.Version++
	return m, r.advance(m), nil
}

func (r *fakeMatchRepo) ResetScoreAtomic(ctx context.Context, matchID int) (*models.Match, error) {
	m, ok := r.matches[matchID]
	if !ok {
		return nil, repositories.ErrMatchNotFound
	}
	if m.NextMatchID != nil && m.NextMatchPosition != nil {
		if winnerID := m.WinnerTeamID(); winnerID != nil {
			if next, ok := r.matches[*m.NextMatchID]; ok {
				if *m.NextMatchPosition == 1 && next.Team1ID != nil && *next.Team1ID == *winnerID {
					next.Team1ID = nil
				}
				if *m.NextMatchPosition == 2 && next.Team2ID != nil && *next.Team2ID == *winnerID {
					next.Team2ID = nil
				}
			}
		}
	}
	m.ScoreTeam1 = nil
	m.ScoreTeam2 = nil
	m.SetScores = nil
	m.WinnerTeam = nil
	m.SubmittedBy = nil
	m.Status = models.MatchPending
	m.Version++
	return m, nil
}

func (r *fakeMatchRepo) AdvanceWinner(ctx context.Context, matchID int) (*models.Match, error) {
	m, ok := r.matches[matchID]
	if !ok {
		return nil, repositories.ErrMatchNotFound
	}
	return r.advance(m), nil
}

func (r *fakeMatchRepo) ResolveByeAndAdvance(ctx context.Context, matchID int) (*models.Match, *models.Match, error) {
	m, ok := r.matches[matchID]
	if !ok {
		return nil, nil, repositories.ErrMatchNotFound
	}
	winnerTeam := 1
	if m.Team1ID == nil {
		if m.Team2ID == nil {
			return nil, nil, repositories.ErrMatchMissingTeam
		}
		winnerTeam = 2
	}
	zero := 0
	m.ScoreTeam1 = &zero
	m.ScoreTeam2 = &zero
	m.WinnerTeam = &winnerTeam
	m.Status = models.MatchCompleted
	m.Version++
	return m, r.advance(m), nil
}

func (r *fakeMatchRepo) SwapTeamsInGroups(ctx context.Context, bracketID, team1ID, team2ID int) error {
	for _, m := range r.matches {
		if m.BracketID != bracketID || m.GroupNumber == nil {
			continue
		}
		for _, slot := range []**int{&m.Team1ID, &m.Team2ID} {
			if *slot == nil {
				continue
			}
			switch **slot {
			case team1ID:
				id := team2ID
				*slot = &id
			case team2ID:
				id := team1ID
				*slot = &id
			}
		}
	}
	return nil
}

type fakeStandingRepo struct {
	rows map[int][]models.StandingInput
}

func newFakeStandingRepo() *fakeStandingRepo {
	return &fakeStandingRepo{rows: map[int][]models.StandingInput{}}
}

func (r *fakeStandingRepo) Upsert(ctx context.Context, exec repositories.SQLExecutor, standings []models.StandingInput) error {
	for _, s := range standings {
		replaced := false
		for i, existing := range r.rows[s.BracketID] {
			if *existing.TeamID == *s.TeamID && existing.GroupNumber == s.GroupNumber {
				r.rows[s.BracketID][i] = s
				replaced = true
				break
			}
		}
		if !replaced {
			r.rows[s.BracketID] = append(r.rows[s.BracketID], s)
		}
	}
	return nil
}

func (r *fakeStandingRepo) ListByBracket(ctx context.Context, bracketID int) ([]*models.Standing, error) {
	rows := append([]models.StandingInput(nil), r.rows[bracketID]...)
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].GroupNumber != rows[j].GroupNumber {
			return rows[i].GroupNumber < rows[j].GroupNumber
		}
		return rows[i].Position < rows[j].Position
	})
	out := make([]*models.Standing, 0, len(rows))
	for _, s := range rows {
		out = append(out, &models.Standing{
			BracketID:       s.BracketID,
			TeamID:          s.TeamID,
			GroupNumber:     s.GroupNumber,
			Position:        s.Position,
			TotalPoints:     s.TotalPoints,
			MatchesPlayed:   s.MatchesPlayed,
			MatchesWon:      s.MatchesWon,
			MatchesLost:     s.MatchesLost,
			GamesWon:        s.GamesWon,
			GamesLost:       s.GamesLost,
			PointDifference: s.PointDifference,
			RoundReached:    s.RoundReached,
		})
	}
	return out, nil
}

func (r *fakeStandingRepo) DeleteByBracket(ctx context.Context, exec repositories.SQLExecutor, bracketID int) error {
	delete(r.rows, bracketID)
	return nil
}

type fakeTeamRepo struct {
	uids         map[int][]string
	allowScores  bool
	policyErrors bool
}

func (r *fakeTeamRepo) GetPlayerUIDs(ctx context.Context, teamID int) ([]string, error) {
	uids, ok := r.uids[teamID]
	if !ok {
		return nil, repositories.ErrTeamNotFound
	}
	return uids, nil
}

func (r *fakeTeamRepo) TournamentAllowsPlayerScores(ctx context.Context, tournamentID int) (bool, error) {
	if r.policyErrors {
		return false, fmt.Errorf("tournament lookup failed")
	}
	return r.allowScores, nil
}

type auditEntry struct {
	entityType string
	entityID   int
	action     string
}

type fakeAuditRepo struct {
	entries []auditEntry
}

func (r *fakeAuditRepo) Log(ctx context.Context, entityType string, entityID int, action string, actorID *string, metadata map[string]interface{}) error {
	r.entries = append(r.entries, auditEntry{entityType: entityType, entityID: entityID, action: action})
	return nil
}

func (r *fakeAuditRepo) actions() []string {
	out := make([]string, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e.action)
	}
	return out
}

type fakeArchiver struct {
	snapshots []storage.BracketSnapshot
	failWith  error
}

func (a *fakeArchiver) ArchiveBracket(ctx context.Context, snapshot storage.BracketSnapshot) (string, error) {
	if a.failWith != nil {
		return "", a.failWith
	}
	a.snapshots = append(a.snapshots, snapshot)
	return fmt.Sprintf("https://cdn.test/brackets/%d.json", snapshot.Bracket.ID), nil
}
