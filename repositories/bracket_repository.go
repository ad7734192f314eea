package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/padelops/bracket-engine/models"
)

var (
	ErrBracketNotFound  = errors.New("bracket not found")
	ErrBracketConflict  = errors.New("bracket already exists for this tournament and category")
	ErrBracketReference = errors.New("bracket references an unknown tournament or category")
)

type BracketRepository interface {
	Create(ctx context.Context, exec SQLExecutor, bracket *models.Bracket) error
	GetByID(ctx context.Context, id int) (*models.Bracket, error)
	GetByTournamentAndCategory(ctx context.Context, tournamentID, categoryID int) (*models.Bracket, error)
	ListByTournament(ctx context.Context, tournamentID int) ([]*models.Bracket, error)
	UpdateDefinition(ctx context.Context, id int, format models.BracketFormat, seedingMethod models.SeedingMethod, config models.BracketConfig) error
	UpdateStatus(ctx context.Context, id int, status models.BracketStatus) error
	Delete(ctx context.Context, id int) error
}

type postgresBracketRepository struct {
	db *sql.DB
}

func NewPostgresBracketRepository(db *sql.DB) BracketRepository {
	return &postgresBracketRepository{db: db}
}

func (r *postgresBracketRepository) executor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

func (r *postgresBracketRepository) Create(ctx context.Context, exec SQLExecutor, bracket *models.Bracket) error {
	configJSON, err := json.Marshal(bracket.Config)
	if err != nil {
		return fmt.Errorf("failed to marshal bracket config: %w", err)
	}

	query := `
		INSERT INTO brackets (tournament_id, category_id, format, status, seeding_method, config)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at`

	err = r.executor(exec).QueryRowContext(ctx, query,
		bracket.TournamentID, bracket.CategoryID, bracket.Format,
		bracket.Status, bracket.SeedingMethod, configJSON,
	).Scan(&bracket.ID, &bracket.CreatedAt)
	return r.mapError(err)
}

func (r *postgresBracketRepository) scanBracket(row interface{ Scan(...interface{}) error }) (*models.Bracket, error) {
	var b models.Bracket
	var configJSON []byte
	err := row.Scan(
		&b.ID, &b.TournamentID, &b.CategoryID, &b.Format, &b.Status,
		&b.SeedingMethod, &configJSON, &b.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrBracketNotFound
		}
		return nil, err
	}
	if len(configJSON) > 0 {
		if err := json.Unmarshal(configJSON, &b.Config); err != nil {
			return nil, fmt.Errorf("failed to unmarshal config for bracket %d: %w", b.ID, err)
		}
	}
	return &b, nil
}

const bracketColumns = `id, tournament_id, category_id, format, status, seeding_method, config, created_at`

func (r *postgresBracketRepository) GetByID(ctx context.Context, id int) (*models.Bracket, error) {
	query := `SELECT ` + bracketColumns + ` FROM brackets WHERE id = $1`
	return r.scanBracket(r.db.QueryRowContext(ctx, query, id))
}

func (r *postgresBracketRepository) GetByTournamentAndCategory(ctx context.Context, tournamentID, categoryID int) (*models.Bracket, error) {
	query := `SELECT ` + bracketColumns + ` FROM brackets WHERE tournament_id = $1 AND category_id = $2`
	return r.scanBracket(r.db.QueryRowContext(ctx, query, tournamentID, categoryID))
}

func (r *postgresBracketRepository) ListByTournament(ctx context.Context, tournamentID int) ([]*models.Bracket, error) {
	query := `SELECT ` + bracketColumns + ` FROM brackets WHERE tournament_id = $1 ORDER BY category_id ASC`
	rows, err := r.db.QueryContext(ctx, query, tournamentID)
	if err != nil {
		return nil, fmt.Errorf("failed to query brackets for tournament %d: %w", tournamentID, err)
	}
	defer rows.Close()

	brackets := make([]*models.Bracket, 0)
	for rows.Next() {
		b, scanErr := r.scanBracket(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		brackets = append(brackets, b)
	}
	return brackets, rows.Err()
}

// UpdateDefinition rewrites format, seeding method and config together.
// Regeneration may change all three at once, so they are never persisted
// separately.
func (r *postgresBracketRepository) UpdateDefinition(ctx context.Context, id int, format models.BracketFormat, seedingMethod models.SeedingMethod, config models.BracketConfig) error {
	configJSON, err := json.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal bracket config: %w", err)
	}
	result, err := r.db.ExecContext(ctx,
		`UPDATE brackets SET format = $1, seeding_method = $2, config = $3 WHERE id = $4`,
		format, seedingMethod, configJSON, id)
	if err != nil {
		return err
	}
	return checkAffectedRows(result, ErrBracketNotFound)
}

func (r *postgresBracketRepository) UpdateStatus(ctx context.Context, id int, status models.BracketStatus) error {
	result, err := r.db.ExecContext(ctx, `UPDATE brackets SET status = $1 WHERE id = $2`, status, id)
	if err != nil {
		return err
	}
	return checkAffectedRows(result, ErrBracketNotFound)
}

func (r *postgresBracketRepository) Delete(ctx context.Context, id int) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM brackets WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return checkAffectedRows(result, ErrBracketNotFound)
}

func (r *postgresBracketRepository) mapError(err error) error {
	if err == nil {
		return nil
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Constraint {
		case "brackets_tournament_id_category_id_key":
			return ErrBracketConflict
		case "brackets_tournament_id_fkey", "brackets_category_id_fkey":
			return ErrBracketReference
		}
	}
	return err
}
