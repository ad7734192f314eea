package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/padelops/bracket-engine/brackets"
	"github.com/padelops/bracket-engine/models"
	"github.com/padelops/bracket-engine/repositories"
	"github.com/padelops/bracket-engine/storage"
)

// ScoreSubmission carries a set-by-set score for one match. SubmittedByUID
// switches on the player path, which is authorized against the rosters and
// the tournament's player-score policy.
type ScoreSubmission struct {
	Sets            []models.SetScore
	ExpectedVersion *int
	SubmittedByUID  *string
}

// ProgressionService mutates live brackets: scores, resets, withdrawals,
// swaps and status moves. Every mutation recomputes standings from match
// history and pushes the change to websocket watchers.
type ProgressionService interface {
	UpdateScore(ctx context.Context, matchID int, submission ScoreSubmission) (*models.Match, error)
	ResetScore(ctx context.Context, matchID int) (*models.Match, error)
	AdvanceWinner(ctx context.Context, matchID int) (*models.Match, error)
	WithdrawTeam(ctx context.Context, bracketID, teamID int) error
	SwapTeamsInGroups(ctx context.Context, bracketID, team1ID, team2ID int) error
	UpdateBracketStatus(ctx context.Context, bracketID int, status models.BracketStatus) (*models.Bracket, error)
}

type progressionService struct {
	bracketRepo  repositories.BracketRepository
	matchRepo    repositories.MatchRepository
	standingRepo repositories.StandingRepository
	teamRepo     repositories.TeamRepository
	auditRepo    repositories.AuditRepository
	archiver     storage.SnapshotArchiver
	hub          *brackets.Hub
	logger       *slog.Logger
}

func NewProgressionService(
	bracketRepo repositories.BracketRepository,
	matchRepo repositories.MatchRepository,
	standingRepo repositories.StandingRepository,
	teamRepo repositories.TeamRepository,
	auditRepo repositories.AuditRepository,
	archiver storage.SnapshotArchiver,
	hub *brackets.Hub,
	logger *slog.Logger,
) ProgressionService {
	return &progressionService{
		bracketRepo:  bracketRepo,
		matchRepo:    matchRepo,
		standingRepo: standingRepo,
		teamRepo:     teamRepo,
		auditRepo:    auditRepo,
		archiver:     archiver,
		hub:          hub,
		logger:       logger,
	}
}

func (s *progressionService) UpdateScore(ctx context.Context, matchID int, submission ScoreSubmission) (*models.Match, error) {
	match, err := s.getMatch(ctx, matchID)
	if err != nil {
		return nil, err
	}
	bracket, err := s.getBracket(ctx, match.BracketID)
	if err != nil {
		return nil, err
	}

	if match.Team1ID == nil || match.Team2ID == nil {
		return nil, ErrMatchTeamsIncomplete
	}
	if match.Status == models.MatchCancelled || match.Status == models.MatchForfeit {
		return nil, fmt.Errorf("%w: match is %s", ErrStateConflict, match.Status)
	}
	// Rescoring a completed match is a correction; it is only safe while the
	// downstream match has no result of its own.
	if match.Status == models.MatchCompleted && match.NextMatchID != nil {
		next, nextErr := s.getMatch(ctx, *match.NextMatchID)
		if nextErr != nil {
			return nil, nextErr
		}
		if next.WinnerTeam != nil {
			return nil, ErrDownstreamPlayed
		}
	}

	if submission.SubmittedByUID != nil {
		if err := s.authorizePlayer(ctx, bracket.TournamentID, match, *submission.SubmittedByUID); err != nil {
			return nil, err
		}
	}

	result, err := ValidateScore(submission.Sets, bracket.Config.MatchFormat)
	if err != nil {
		return nil, err
	}

	updated, advanced, err := s.matchRepo.UpdateScoreAndAdvance(ctx,
		matchID, result.SetsTeam1, result.SetsTeam2, submission.Sets,
		result.WinnerTeam, models.MatchCompleted,
		submission.ExpectedVersion, submission.SubmittedByUID)
	if err != nil {
		return nil, s.mapRepoError(err)
	}

	matches := s.afterMutation(ctx, bracket, "match.update_score", submission.SubmittedByUID, map[string]interface{}{
		"match_id": matchID, "winner_team": result.WinnerTeam,
	})
	s.hub.BroadcastBracket(bracket.ID, brackets.EventMatchUpdated, updated)
	if advanced != nil {
		s.hub.BroadcastBracket(bracket.ID, brackets.EventMatchUpdated, advanced)
	}
	s.maybeCompleteBracket(ctx, bracket, matches)
	return updated, nil
}

func (s *progressionService) ResetScore(ctx context.Context, matchID int) (*models.Match, error) {
	match, err := s.getMatch(ctx, matchID)
	if err != nil {
		return nil, err
	}
	bracket, err := s.getBracket(ctx, match.BracketID)
	if err != nil {
		return nil, err
	}

	if match.NextMatchID != nil {
		next, nextErr := s.getMatch(ctx, *match.NextMatchID)
		if nextErr != nil {
			return nil, nextErr
		}
		if next.WinnerTeam != nil {
			return nil, ErrDownstreamPlayed
		}
	}

	updated, err := s.matchRepo.ResetScoreAtomic(ctx, matchID)
	if err != nil {
		return nil, s.mapRepoError(err)
	}

	// Reopening a match reopens a finished bracket.
	if bracket.Status == models.BracketCompleted {
		if statusErr := s.bracketRepo.UpdateStatus(ctx, bracket.ID, models.BracketInProgress); statusErr != nil {
			s.logger.Warn("failed to reopen bracket after reset",
				slog.Int("bracket_id", bracket.ID), slog.Any("error", statusErr))
		}
	}

	s.afterMutation(ctx, bracket, "match.reset_score", nil, map[string]interface{}{"match_id": matchID})
	s.hub.BroadcastBracket(bracket.ID, brackets.EventMatchUpdated, updated)
	return updated, nil
}

func (s *progressionService) AdvanceWinner(ctx context.Context, matchID int) (*models.Match, error) {
	match, err := s.getMatch(ctx, matchID)
	if err != nil {
		return nil, err
	}
	if match.WinnerTeam == nil {
		return nil, ErrMatchNotDecided
	}

	advanced, err := s.matchRepo.AdvanceWinner(ctx, matchID)
	if err != nil {
		return nil, s.mapRepoError(err)
	}
	if advanced != nil {
		s.hub.BroadcastBracket(match.BracketID, brackets.EventMatchUpdated, advanced)
	}
	s.audit(ctx, "match", matchID, "match.advance_winner", nil, nil)
	return advanced, nil
}

func (s *progressionService) WithdrawTeam(ctx context.Context, bracketID, teamID int) error {
	bracket, err := s.getBracket(ctx, bracketID)
	if err != nil {
		return err
	}

	open, err := s.matchRepo.ListForTeam(ctx, bracketID, teamID,
		[]models.MatchStatus{models.MatchPending, models.MatchScheduled})
	if err != nil {
		return s.mapRepoError(err)
	}

	for _, m := range open {
		// The remaining side wins by forfeit. A match with no opponent yet
		// still forfeits; the empty slot simply advances nothing.
		winnerTeam := 1
		if m.Team1ID != nil && *m.Team1ID == teamID {
			winnerTeam = 2
		}
		if _, _, err := s.matchRepo.UpdateScoreAndAdvance(ctx,
			m.ID, 0, 0, nil, winnerTeam, models.MatchForfeit, nil, nil); err != nil {
			return s.mapRepoError(err)
		}
	}

	matches := s.afterMutation(ctx, bracket, "team.withdraw", nil, map[string]interface{}{
		"team_id": teamID, "forfeited_matches": len(open),
	})
	s.hub.BroadcastBracket(bracket.ID, brackets.EventBracketUpdated, bracket)
	s.maybeCompleteBracket(ctx, bracket, matches)
	return nil
}

func (s *progressionService) SwapTeamsInGroups(ctx context.Context, bracketID, team1ID, team2ID int) error {
	bracket, err := s.getBracket(ctx, bracketID)
	if err != nil {
		return err
	}
	matches, err := s.matchRepo.ListByBracket(ctx, bracketID)
	if err != nil {
		return s.mapRepoError(err)
	}

	for _, m := range matches {
		if m.IsKnockout() {
			return ErrKnockoutAlreadyExists
		}
		involved := (m.Team1ID != nil && (*m.Team1ID == team1ID || *m.Team1ID == team2ID)) ||
			(m.Team2ID != nil && (*m.Team2ID == team1ID || *m.Team2ID == team2ID))
		if involved && m.Status != models.MatchPending && m.Status != models.MatchScheduled {
			return ErrMatchAlreadyStarted
		}
	}

	if err := s.matchRepo.SwapTeamsInGroups(ctx, bracketID, team1ID, team2ID); err != nil {
		return s.mapRepoError(err)
	}

	s.afterMutation(ctx, bracket, "bracket.swap_teams", nil, map[string]interface{}{
		"team1_id": team1ID, "team2_id": team2ID,
	})
	s.hub.BroadcastBracket(bracket.ID, brackets.EventBracketUpdated, bracket)
	return nil
}

func (s *progressionService) UpdateBracketStatus(ctx context.Context, bracketID int, status models.BracketStatus) (*models.Bracket, error) {
	bracket, err := s.getBracket(ctx, bracketID)
	if err != nil {
		return nil, err
	}
	if !models.ValidBracketStatusTransition(bracket.Status, status) {
		return nil, fmt.Errorf("%w: cannot move bracket from %s to %s", ErrStateConflict, bracket.Status, status)
	}
	if err := s.bracketRepo.UpdateStatus(ctx, bracketID, status); err != nil {
		return nil, s.mapRepoError(err)
	}
	bracket.Status = status

	if status == models.BracketCompleted {
		s.archiveSnapshot(ctx, bracket)
	}
	s.audit(ctx, "bracket", bracketID, "bracket.update_status", nil, map[string]interface{}{"status": status})
	s.hub.BroadcastBracket(bracket.ID, brackets.EventBracketUpdated, bracket)
	return bracket, nil
}

// --- internals ---

// authorizePlayer checks the tournament policy and that the submitter plays
// in the match.
func (s *progressionService) authorizePlayer(ctx context.Context, tournamentID int, match *models.Match, uid string) error {
	allowed, err := s.teamRepo.TournamentAllowsPlayerScores(ctx, tournamentID)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	if !allowed {
		return ErrPlayerScoresDisabled
	}

	for _, teamID := range []*int{match.Team1ID, match.Team2ID} {
		if teamID == nil {
			continue
		}
		uids, err := s.teamRepo.GetPlayerUIDs(ctx, *teamID)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrPersistence, err)
		}
		for _, u := range uids {
			if u == uid {
				return nil
			}
		}
	}
	return ErrSubmitterNotOnRoster
}

// afterMutation recomputes standings from the full match history, writes the
// audit trail and pushes the fresh standings to watchers. It returns the
// listed matches so callers can reuse them. Standings rows are replaced
// wholesale so that swaps and withdrawals leave nothing stale behind.
func (s *progressionService) afterMutation(ctx context.Context, bracket *models.Bracket, action string, actorUID *string, metadata map[string]interface{}) []*models.Match {
	matches, err := s.matchRepo.ListByBracket(ctx, bracket.ID)
	if err != nil {
		s.logger.Error("standings refresh: failed to list matches",
			slog.Int("bracket_id", bracket.ID), slog.Any("error", err))
		return nil
	}

	grouped := bracket.Format == models.FormatGroupsKnockout
	standings := ComputeStandings(bracket.ID, matches, grouped)
	if err := s.standingRepo.DeleteByBracket(ctx, nil, bracket.ID); err != nil {
		s.logger.Error("standings refresh: failed to clear old rows",
			slog.Int("bracket_id", bracket.ID), slog.Any("error", err))
	} else if err := s.standingRepo.Upsert(ctx, nil, standings); err != nil {
		s.logger.Error("standings refresh: failed to write rows",
			slog.Int("bracket_id", bracket.ID), slog.Any("error", err))
	}

	s.audit(ctx, "bracket", bracket.ID, action, actorUID, metadata)
	s.hub.BroadcastBracket(bracket.ID, brackets.EventStandings, standings)
	return matches
}

// maybeCompleteBracket finishes the bracket once every match is terminal.
// Status moves here are driven by play, not by the transition table.
func (s *progressionService) maybeCompleteBracket(ctx context.Context, bracket *models.Bracket, matches []*models.Match) {
	if len(matches) == 0 || bracket.Status == models.BracketCompleted || bracket.Status == models.BracketCancelled {
		return
	}
	for _, m := range matches {
		if !m.IsTerminal() {
			return
		}
	}

	if err := s.bracketRepo.UpdateStatus(ctx, bracket.ID, models.BracketCompleted); err != nil {
		s.logger.Error("failed to complete bracket",
			slog.Int("bracket_id", bracket.ID), slog.Any("error", err))
		return
	}
	bracket.Status = models.BracketCompleted
	s.logger.Info("bracket completed", slog.Int("bracket_id", bracket.ID))

	s.archiveSnapshot(ctx, bracket)
	s.audit(ctx, "bracket", bracket.ID, "bracket.completed", nil, nil)
	s.hub.BroadcastBracket(bracket.ID, brackets.EventBracketUpdated, bracket)
}

// archiveSnapshot is best effort: a storage outage must not fail the match
// operation that finished the bracket.
func (s *progressionService) archiveSnapshot(ctx context.Context, bracket *models.Bracket) {
	if s.archiver == nil {
		return
	}
	matches, err := s.matchRepo.ListByBracket(ctx, bracket.ID)
	if err != nil {
		s.logger.Error("snapshot: failed to list matches", slog.Int("bracket_id", bracket.ID), slog.Any("error", err))
		return
	}
	standings, err := s.standingRepo.ListByBracket(ctx, bracket.ID)
	if err != nil {
		s.logger.Error("snapshot: failed to list standings", slog.Int("bracket_id", bracket.ID), slog.Any("error", err))
		return
	}

	location, err := s.archiver.ArchiveBracket(ctx, storage.BracketSnapshot{
		Bracket:    bracket,
		Matches:    matches,
		Standings:  standings,
		ArchivedAt: time.Now().UTC(),
	})
	if err != nil {
		s.logger.Error("snapshot: upload failed", slog.Int("bracket_id", bracket.ID), slog.Any("error", err))
		return
	}
	s.logger.Info("bracket snapshot archived", slog.Int("bracket_id", bracket.ID), slog.String("location", location))
}

func (s *progressionService) getMatch(ctx context.Context, matchID int) (*models.Match, error) {
	match, err := s.matchRepo.GetByID(ctx, matchID)
	if err != nil {
		return nil, s.mapRepoError(err)
	}
	return match, nil
}

func (s *progressionService) getBracket(ctx context.Context, bracketID int) (*models.Bracket, error) {
	bracket, err := s.bracketRepo.GetByID(ctx, bracketID)
	if err != nil {
		return nil, s.mapRepoError(err)
	}
	return bracket, nil
}

func (s *progressionService) mapRepoError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repositories.ErrMatchNotFound):
		return ErrMatchNotFound
	case errors.Is(err, repositories.ErrBracketNotFound):
		return ErrBracketNotFound
	case errors.Is(err, repositories.ErrMatchVersionConflict):
		return fmt.Errorf("%w: %v", ErrVersionConflict, err)
	default:
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}
}

func (s *progressionService) audit(ctx context.Context, entityType string, entityID int, action string, actorUID *string, metadata map[string]interface{}) {
	if err := s.auditRepo.Log(ctx, entityType, entityID, action, actorUID, metadata); err != nil {
		s.logger.Warn("audit log write failed", slog.String("action", action), slog.Any("error", err))
	}
}
