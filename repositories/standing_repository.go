package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/padelops/bracket-engine/models"
)

var ErrStandingNotFound = errors.New("standing not found")

type StandingRepository interface {
	Upsert(ctx context.Context, exec SQLExecutor, standings []models.StandingInput) error
	ListByBracket(ctx context.Context, bracketID int) ([]*models.Standing, error)
	DeleteByBracket(ctx context.Context, exec SQLExecutor, bracketID int) error
}

type postgresStandingRepository struct {
	db *sql.DB
}

func NewPostgresStandingRepository(db *sql.DB) StandingRepository {
	return &postgresStandingRepository{db: db}
}

func (r *postgresStandingRepository) executor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

// Upsert replaces each (bracket, team, group) row wholesale. Standings are a
// pure recompute from match history, so overwriting is always safe.
func (r *postgresStandingRepository) Upsert(ctx context.Context, exec SQLExecutor, standings []models.StandingInput) error {
	if len(standings) == 0 {
		return nil
	}
	executor := r.executor(exec)
	query := `
		INSERT INTO standings
			(bracket_id, team_id, group_number, position, total_points, matches_played,
			 matches_won, matches_lost, games_won, games_lost, point_difference, round_reached, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (bracket_id, team_id, group_number) DO UPDATE SET
			position = EXCLUDED.position,
			total_points = EXCLUDED.total_points,
			matches_played = EXCLUDED.matches_played,
			matches_won = EXCLUDED.matches_won,
			matches_lost = EXCLUDED.matches_lost,
			games_won = EXCLUDED.games_won,
			games_lost = EXCLUDED.games_lost,
			point_difference = EXCLUDED.point_difference,
			round_reached = EXCLUDED.round_reached,
			updated_at = EXCLUDED.updated_at`

	now := time.Now()
	for _, s := range standings {
		_, err := executor.ExecContext(ctx, query,
			s.BracketID, s.TeamID, s.GroupNumber, s.Position, s.TotalPoints,
			s.MatchesPlayed, s.MatchesWon, s.MatchesLost, s.GamesWon, s.GamesLost,
			s.PointDifference, s.RoundReached, now,
		)
		if err != nil {
			return fmt.Errorf("failed to upsert standing for bracket %d group %d: %w", s.BracketID, s.GroupNumber, err)
		}
	}
	return nil
}

func (r *postgresStandingRepository) ListByBracket(ctx context.Context, bracketID int) ([]*models.Standing, error) {
	query := `
		SELECT id, bracket_id, team_id, player_id, group_number, position, total_points,
		       matches_played, matches_won, matches_lost, games_won, games_lost,
		       point_difference, round_reached, updated_at
		FROM standings
		WHERE bracket_id = $1
		ORDER BY group_number ASC, position ASC`

	rows, err := r.db.QueryContext(ctx, query, bracketID)
	if err != nil {
		return nil, fmt.Errorf("failed to query standings for bracket %d: %w", bracketID, err)
	}
	defer rows.Close()

	standings := make([]*models.Standing, 0)
	for rows.Next() {
		var s models.Standing
		if scanErr := rows.Scan(
			&s.ID, &s.BracketID, &s.TeamID, &s.PlayerID, &s.GroupNumber, &s.Position,
			&s.TotalPoints, &s.MatchesPlayed, &s.MatchesWon, &s.MatchesLost,
			&s.GamesWon, &s.GamesLost, &s.PointDifference, &s.RoundReached, &s.UpdatedAt,
		); scanErr != nil {
			return nil, fmt.Errorf("failed to scan standing row: %w", scanErr)
		}
		standings = append(standings, &s)
	}
	return standings, rows.Err()
}

func (r *postgresStandingRepository) DeleteByBracket(ctx context.Context, exec SQLExecutor, bracketID int) error {
	_, err := r.executor(exec).ExecContext(ctx, `DELETE FROM standings WHERE bracket_id = $1`, bracketID)
	return err
}
