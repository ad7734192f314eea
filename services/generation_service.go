package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/padelops/bracket-engine/brackets"
	"github.com/padelops/bracket-engine/models"
	"github.com/padelops/bracket-engine/repositories"
)

// GenerationService creates and regenerates knockout brackets and group
// stages, and promotes finished groups into a knockout phase.
type GenerationService interface {
	GenerateKnockout(ctx context.Context, tournamentID, categoryID int, seedingMethod models.SeedingMethod, teamIDs []int) (*models.Bracket, error)
	GenerateGroupStage(ctx context.Context, tournamentID, categoryID int, groups [][]int, config models.BracketConfig) (*models.Bracket, error)
	GenerateGroupStageAuto(ctx context.Context, tournamentID, categoryID int, teamIDs []int, config models.BracketConfig) (*models.Bracket, error)
	GenerateKnockoutFromGroups(ctx context.Context, tournamentID, categoryID int) (*models.Bracket, error)
	DeleteKnockoutPhase(ctx context.Context, tournamentID, categoryID int) error
}

type generationService struct {
	bracketRepo  repositories.BracketRepository
	matchRepo    repositories.MatchRepository
	standingRepo repositories.StandingRepository
	auditRepo    repositories.AuditRepository
	hub          *brackets.Hub
	logger       *slog.Logger

	singleElim  *brackets.SingleEliminationGenerator
	roundRobin  *brackets.RoundRobinGenerator
	antiRematch *brackets.AntiRematchPlacer
}

func NewGenerationService(
	bracketRepo repositories.BracketRepository,
	matchRepo repositories.MatchRepository,
	standingRepo repositories.StandingRepository,
	auditRepo repositories.AuditRepository,
	hub *brackets.Hub,
	logger *slog.Logger,
) GenerationService {
	return &generationService{
		bracketRepo:  bracketRepo,
		matchRepo:    matchRepo,
		standingRepo: standingRepo,
		auditRepo:    auditRepo,
		hub:          hub,
		logger:       logger,
		singleElim:   brackets.NewSingleEliminationGenerator(),
		roundRobin:   brackets.NewRoundRobinGenerator(),
		antiRematch:  brackets.NewAntiRematchPlacer(),
	}
}

const defaultAdvancingPerGroup = 2

func (s *generationService) GenerateKnockout(ctx context.Context, tournamentID, categoryID int, seedingMethod models.SeedingMethod, teamIDs []int) (*models.Bracket, error) {
	if len(teamIDs) < brackets.MinKnockoutTeams || len(teamIDs) > brackets.MaxBracketTeams {
		return nil, ErrTeamCountInvalid
	}

	bracket, created, err := s.prepareBracket(ctx, tournamentID, categoryID, models.FormatKnockout, seedingMethod, models.BracketConfig{})
	if err != nil {
		return nil, err
	}

	// Seed order is the input order: caller ranks, we place.
	seeds := make([]models.TeamSeed, len(teamIDs))
	for i, teamID := range teamIDs {
		seeds[i] = models.TeamSeed{TeamID: teamID, Seed: i + 1}
	}

	generated, err := s.singleElim.Generate(seeds, 1, 1)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	matches, err := s.persistAndLink(ctx, bracket, created, generated)
	if err != nil {
		return nil, err
	}
	if err := s.resolveByes(ctx, matches); err != nil {
		return nil, err
	}

	s.audit(ctx, bracket.ID, "bracket.generate_knockout", map[string]interface{}{
		"teams": len(teamIDs), "matches": len(matches),
	})
	s.hub.BroadcastBracket(bracket.ID, brackets.EventBracketUpdated, bracket)
	return bracket, nil
}

func (s *generationService) GenerateGroupStage(ctx context.Context, tournamentID, categoryID int, groups [][]int, config models.BracketConfig) (*models.Bracket, error) {
	if len(groups) < 1 || len(groups) > brackets.MaxGroups {
		return nil, ErrGroupCountInvalid
	}
	total := 0
	for _, g := range groups {
		if len(g) < 2 {
			return nil, ErrGroupTooSmall
		}
		total += len(g)
	}
	if total > brackets.MaxBracketTeams {
		return nil, ErrTeamCountInvalid
	}
	if err := validateMatchFormat(config.MatchFormat); err != nil {
		return nil, err
	}
	config.GroupCount = len(groups)

	bracket, created, err := s.prepareBracket(ctx, tournamentID, categoryID, models.FormatGroupsKnockout, models.SeedingManual, config)
	if err != nil {
		return nil, err
	}

	generated := make([]models.GeneratedMatch, 0)
	nextNumber := 1
	for i, teamIDs := range groups {
		groupMatches, genErr := s.roundRobin.Generate(teamIDs, i+1, nextNumber)
		if genErr != nil {
			return nil, fmt.Errorf("%w: %v", ErrValidation, genErr)
		}
		generated = append(generated, groupMatches...)
		nextNumber += len(groupMatches)
	}

	matches, err := s.persistAndLink(ctx, bracket, created, generated)
	if err != nil {
		return nil, err
	}

	// Seed zeroed standings so every team shows up before a ball is hit.
	standings := make([]models.StandingInput, 0, total)
	for i, teamIDs := range groups {
		for pos, teamID := range teamIDs {
			id := teamID
			standings = append(standings, models.StandingInput{
				BracketID:   bracket.ID,
				TeamID:      &id,
				GroupNumber: i + 1,
				Position:    pos + 1,
			})
		}
	}
	if err := s.standingRepo.Upsert(ctx, nil, standings); err != nil {
		return nil, fmt.Errorf("%w: failed to seed standings: %v", ErrPersistence, err)
	}

	s.audit(ctx, bracket.ID, "bracket.generate_groups", map[string]interface{}{
		"groups": len(groups), "teams": total, "matches": len(matches),
	})
	s.hub.BroadcastBracket(bracket.ID, brackets.EventBracketUpdated, bracket)
	return bracket, nil
}

func (s *generationService) GenerateGroupStageAuto(ctx context.Context, tournamentID, categoryID int, teamIDs []int, config models.BracketConfig) (*models.Bracket, error) {
	sizes, err := groupFormation(len(teamIDs), config)
	if err != nil {
		return nil, err
	}
	groups := snakeSeed(teamIDs, sizes)
	return s.GenerateGroupStage(ctx, tournamentID, categoryID, groups, config)
}

// groupFormation picks group sizes minimizing size variance using groups of
// 3 and 4 only, unless the config fixes an explicit layout.
func groupFormation(teamCount int, config models.BracketConfig) ([]int, error) {
	if config.GroupCount > 0 && config.TeamsPerGroup > 0 {
		if config.GroupCount > brackets.MaxGroups {
			return nil, ErrGroupCountInvalid
		}
		if config.GroupCount*config.TeamsPerGroup != teamCount {
			return nil, fmt.Errorf("%w: %d teams do not fill %d groups of %d", ErrValidation, teamCount, config.GroupCount, config.TeamsPerGroup)
		}
		sizes := make([]int, config.GroupCount)
		for i := range sizes {
			sizes[i] = config.TeamsPerGroup
		}
		return sizes, nil
	}

	switch {
	case teamCount < 4:
		return nil, ErrTooFewTeamsForGroups
	case teamCount == 4:
		return []int{4}, nil
	case teamCount == 5:
		return []int{5}, nil
	}

	groupsOf4 := 0
	switch teamCount % 3 {
	case 1:
		groupsOf4 = 1
	case 2:
		groupsOf4 = 2
	}
	groupsOf3 := (teamCount - groupsOf4*4) / 3

	sizes := make([]int, 0, groupsOf4+groupsOf3)
	for i := 0; i < groupsOf4; i++ {
		sizes = append(sizes, 4)
	}
	for i := 0; i < groupsOf3; i++ {
		sizes = append(sizes, 3)
	}
	return sizes, nil
}

// snakeSeed distributes teams (in input rank order) across groups in
// alternating left-to-right and right-to-left passes, skipping groups that
// already reached their target size.
func snakeSeed(teamIDs []int, sizes []int) [][]int {
	groups := make([][]int, len(sizes))
	for i, size := range sizes {
		groups[i] = make([]int, 0, size)
	}

	idx := 0
	leftToRight := true
	for idx < len(teamIDs) {
		placed := false
		if leftToRight {
			for g := 0; g < len(groups) && idx < len(teamIDs); g++ {
				if len(groups[g]) < sizes[g] {
					groups[g] = append(groups[g], teamIDs[idx])
					idx++
					placed = true
				}
			}
		} else {
			for g := len(groups) - 1; g >= 0 && idx < len(teamIDs); g-- {
				if len(groups[g]) < sizes[g] {
					groups[g] = append(groups[g], teamIDs[idx])
					idx++
					placed = true
				}
			}
		}
		leftToRight = !leftToRight
		if !placed {
			break
		}
	}
	return groups
}

func (s *generationService) GenerateKnockoutFromGroups(ctx context.Context, tournamentID, categoryID int) (*models.Bracket, error) {
	bracket, err := s.getBracket(ctx, tournamentID, categoryID)
	if err != nil {
		return nil, err
	}

	matches, err := s.matchRepo.ListByBracket(ctx, bracket.ID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	maxNumber := 0
	for _, m := range matches {
		if m.IsKnockout() {
			return nil, ErrKnockoutAlreadyExists
		}
		if m.Status != models.MatchCompleted && m.Status != models.MatchForfeit {
			return nil, ErrGroupsNotFinished
		}
		if m.MatchNumber > maxNumber {
			maxNumber = m.MatchNumber
		}
	}
	if len(matches) == 0 {
		return nil, ErrGroupsNotFinished
	}

	// Standings may be stale relative to match history; recompute before
	// deciding who qualifies.
	standings := ComputeStandings(bracket.ID, matches, true)
	if err := s.standingRepo.Upsert(ctx, nil, standings); err != nil {
		return nil, fmt.Errorf("%w: failed to refresh standings: %v", ErrPersistence, err)
	}

	seeds, originGroup := qualifiers(standings, bracket.Config)
	if len(seeds) < brackets.MinKnockoutTeams {
		return nil, fmt.Errorf("%w: only %d teams qualify for the knockout phase", ErrValidation, len(seeds))
	}

	placed := s.antiRematch.Place(seeds, originGroup)

	generated, err := s.singleElim.Generate(placed, maxNumber+1, 2)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	created, err := s.persistAndLink(ctx, bracket, false, generated)
	if err != nil {
		return nil, err
	}
	if err := s.resolveByes(ctx, created); err != nil {
		return nil, err
	}

	s.audit(ctx, bracket.ID, "bracket.generate_knockout_from_groups", map[string]interface{}{
		"qualifiers": len(seeds), "matches": len(created),
	})
	s.hub.BroadcastBracket(bracket.ID, brackets.EventBracketUpdated, bracket)
	return bracket, nil
}

// qualifiers ranks advancing teams tier by tier: all group winners first,
// then all runners-up, and so on, each tier ordered by points, game
// difference and games won. Wildcards extend the field with the best teams
// from the first non-advancing position.
func qualifiers(standings []models.StandingInput, config models.BracketConfig) ([]models.TeamSeed, map[int]int) {
	advancing := config.AdvancingPerGroup
	if advancing <= 0 {
		advancing = defaultAdvancingPerGroup
	}

	byPosition := make(map[int][]models.StandingInput)
	for _, st := range standings {
		byPosition[st.Position] = append(byPosition[st.Position], st)
	}

	rankTier := func(tier []models.StandingInput) {
		sort.Slice(tier, func(i, j int) bool {
			a, b := tier[i], tier[j]
			return lessByRank(a.TotalPoints, a.PointDifference, a.GamesWon, *a.TeamID,
				b.TotalPoints, b.PointDifference, b.GamesWon, *b.TeamID)
		})
	}

	seeds := make([]models.TeamSeed, 0)
	originGroup := make(map[int]int)
	appendTier := func(tier []models.StandingInput, limit int) {
		rankTier(tier)
		if limit > 0 && limit < len(tier) {
			tier = tier[:limit]
		}
		for _, st := range tier {
			seeds = append(seeds, models.TeamSeed{TeamID: *st.TeamID, Seed: len(seeds) + 1})
			originGroup[*st.TeamID] = st.GroupNumber
		}
	}

	for pos := 1; pos <= advancing; pos++ {
		appendTier(byPosition[pos], 0)
	}
	if config.WildcardCount > 0 {
		appendTier(byPosition[advancing+1], config.WildcardCount)
	}
	return seeds, originGroup
}

func (s *generationService) DeleteKnockoutPhase(ctx context.Context, tournamentID, categoryID int) error {
	bracket, err := s.getBracket(ctx, tournamentID, categoryID)
	if err != nil {
		return err
	}
	matches, err := s.matchRepo.ListByBracket(ctx, bracket.ID)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	knockoutIDs := make([]int, 0)
	for _, m := range matches {
		if !m.IsKnockout() {
			continue
		}
		if m.Status == models.MatchInProgress || m.Status == models.MatchCompleted {
			return ErrKnockoutStarted
		}
		knockoutIDs = append(knockoutIDs, m.ID)
	}
	if err := s.matchRepo.DeleteByIDs(ctx, knockoutIDs); err != nil {
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	s.audit(ctx, bracket.ID, "bracket.delete_knockout", map[string]interface{}{"deleted": len(knockoutIDs)})
	s.hub.BroadcastBracket(bracket.ID, brackets.EventBracketUpdated, bracket)
	return nil
}

// --- shared plumbing ---

func (s *generationService) getBracket(ctx context.Context, tournamentID, categoryID int) (*models.Bracket, error) {
	bracket, err := s.bracketRepo.GetByTournamentAndCategory(ctx, tournamentID, categoryID)
	if err != nil {
		if errors.Is(err, repositories.ErrBracketNotFound) {
			return nil, ErrBracketNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	return bracket, nil
}

// prepareBracket reuses the unique (tournament, category) bracket when it
// exists, wiping its matches for regeneration; otherwise it creates one.
func (s *generationService) prepareBracket(ctx context.Context, tournamentID, categoryID int, format models.BracketFormat, seedingMethod models.SeedingMethod, config models.BracketConfig) (*models.Bracket, bool, error) {
	existing, err := s.bracketRepo.GetByTournamentAndCategory(ctx, tournamentID, categoryID)
	if err != nil && !errors.Is(err, repositories.ErrBracketNotFound) {
		return nil, false, fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	if existing != nil {
		if err := s.matchRepo.DeleteByBracketID(ctx, nil, existing.ID); err != nil {
			return nil, false, fmt.Errorf("%w: failed to clear matches: %v", ErrPersistence, err)
		}
		if err := s.standingRepo.DeleteByBracket(ctx, nil, existing.ID); err != nil {
			return nil, false, fmt.Errorf("%w: failed to clear standings: %v", ErrPersistence, err)
		}
		existing.Format = format
		existing.SeedingMethod = seedingMethod
		existing.Config = config
		if err := s.bracketRepo.UpdateDefinition(ctx, existing.ID, format, seedingMethod, config); err != nil {
			return nil, false, fmt.Errorf("%w: %v", ErrPersistence, err)
		}
		return existing, false, nil
	}

	bracket := &models.Bracket{
		TournamentID:  tournamentID,
		CategoryID:    categoryID,
		Format:        format,
		Status:        models.BracketDraft,
		SeedingMethod: seedingMethod,
		Config:        config,
	}
	if err := s.bracketRepo.Create(ctx, nil, bracket); err != nil {
		return nil, false, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	return bracket, true, nil
}

// persistAndLink bulk-creates the generated matches, then resolves the
// number-keyed forward links into durable match ids. If persistence fails
// for a bracket created in this operation, the bracket is rolled back.
func (s *generationService) persistAndLink(ctx context.Context, bracket *models.Bracket, createdBracket bool, generated []models.GeneratedMatch) ([]*models.Match, error) {
	matches, err := s.matchRepo.CreateMatches(ctx, nil, bracket.ID, generated)
	if err != nil {
		s.compensate(ctx, bracket, createdBracket)
		return nil, fmt.Errorf("%w: failed to create matches: %v", ErrPersistence, err)
	}

	idByNumber := make(map[int]int, len(matches))
	for _, m := range matches {
		idByNumber[m.MatchNumber] = m.ID
	}
	for i, gm := range generated {
		if gm.NextMatchNumber == nil {
			continue
		}
		nextID, ok := idByNumber[*gm.NextMatchNumber]
		if !ok {
			s.compensate(ctx, bracket, createdBracket)
			return nil, fmt.Errorf("%w: generated link targets unknown match %d", ErrPersistence, *gm.NextMatchNumber)
		}
		if err := s.matchRepo.UpdateNextMatchID(ctx, nil, matches[i].ID, &nextID, gm.NextMatchPosition); err != nil {
			s.compensate(ctx, bracket, createdBracket)
			return nil, fmt.Errorf("%w: failed to link matches: %v", ErrPersistence, err)
		}
		matches[i].NextMatchID = &nextID
		matches[i].NextMatchPosition = gm.NextMatchPosition
	}
	return matches, nil
}

func (s *generationService) compensate(ctx context.Context, bracket *models.Bracket, createdBracket bool) {
	if !createdBracket {
		return
	}
	if err := s.bracketRepo.Delete(ctx, bracket.ID); err != nil {
		s.logger.Error("compensation failed: could not delete bracket",
			slog.Int("bracket_id", bracket.ID), slog.Any("error", err))
	}
}

// resolveByes completes every bye match immediately and advances the
// present team, following chains until nothing is left to resolve.
func (s *generationService) resolveByes(ctx context.Context, matches []*models.Match) error {
	for _, m := range matches {
		if m.Status != models.MatchBye {
			continue
		}
		updated, _, err := s.matchRepo.ResolveByeAndAdvance(ctx, m.ID)
		if err != nil {
			return fmt.Errorf("%w: failed to resolve bye match %d: %v", ErrPersistence, m.ID, err)
		}
		*m = *updated
	}
	return nil
}

func (s *generationService) audit(ctx context.Context, bracketID int, action string, metadata map[string]interface{}) {
	if err := s.auditRepo.Log(ctx, "bracket", bracketID, action, nil, metadata); err != nil {
		s.logger.Warn("audit log write failed", slog.String("action", action), slog.Any("error", err))
	}
}

func validateMatchFormat(f *models.MatchFormat) error {
	if f == nil {
		return nil
	}
	if f.SetsToPlay != nil && (*f.SetsToPlay < 1 || *f.SetsToPlay > 5) {
		return fmt.Errorf("%w: sets to play must be between 1 and 5", ErrMatchFormatInvalid)
	}
	if f.GamesPerSet != nil && *f.GamesPerSet < 1 {
		return fmt.Errorf("%w: games per set must be positive", ErrMatchFormatInvalid)
	}
	if f.PointsPerSet != nil && *f.PointsPerSet < 1 {
		return fmt.Errorf("%w: points per set must be positive", ErrMatchFormatInvalid)
	}
	return nil
}
