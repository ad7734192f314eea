package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
)

var ErrTeamNotFound = errors.New("team not found")

// TeamRepository fronts the tables owned by the registration subsystem.
// The engine only needs authorization lookups from them.
type TeamRepository interface {
	GetPlayerUIDs(ctx context.Context, teamID int) ([]string, error)
	TournamentAllowsPlayerScores(ctx context.Context, tournamentID int) (bool, error)
}

type postgresTeamRepository struct {
	db *sql.DB
}

func NewPostgresTeamRepository(db *sql.DB) TeamRepository {
	return &postgresTeamRepository{db: db}
}

func (r *postgresTeamRepository) GetPlayerUIDs(ctx context.Context, teamID int) ([]string, error) {
	var uids pq.StringArray
	query := `SELECT player_uids FROM teams WHERE id = $1`
	if err := r.db.QueryRowContext(ctx, query, teamID).Scan(&uids); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTeamNotFound
		}
		return nil, fmt.Errorf("failed to load player uids for team %d: %w", teamID, err)
	}
	return uids, nil
}

func (r *postgresTeamRepository) TournamentAllowsPlayerScores(ctx context.Context, tournamentID int) (bool, error) {
	var allowed bool
	query := `SELECT allow_player_scores FROM tournaments WHERE id = $1`
	if err := r.db.QueryRowContext(ctx, query, tournamentID).Scan(&allowed); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, fmt.Errorf("tournament %d not found", tournamentID)
		}
		return false, fmt.Errorf("failed to load player-score policy for tournament %d: %w", tournamentID, err)
	}
	return allowed, nil
}
