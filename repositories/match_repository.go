package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/lib/pq"

	"github.com/padelops/bracket-engine/models"
)

var (
	ErrMatchNotFound        = errors.New("match not found")
	ErrMatchVersionConflict = errors.New("match was modified concurrently")
	ErrMatchMissingTeam     = errors.New("match has no team to advance")
	ErrMatchBracketInvalid  = errors.New("match bracket conflict or invalid")
)

type MatchRepository interface {
	CreateMatches(ctx context.Context, exec SQLExecutor, bracketID int, generated []models.GeneratedMatch) ([]*models.Match, error)
	UpdateNextMatchID(ctx context.Context, exec SQLExecutor, matchID int, nextMatchID, nextMatchPosition *int) error
	GetByID(ctx context.Context, id int) (*models.Match, error)
	ListByBracket(ctx context.Context, bracketID int) ([]*models.Match, error)
	ListForTeam(ctx context.Context, bracketID, teamID int, statuses []models.MatchStatus) ([]*models.Match, error)
	DeleteByBracketID(ctx context.Context, exec SQLExecutor, bracketID int) error
	DeleteByIDs(ctx context.Context, ids []int) error

	// Atomic compound operations. Each owns its own transaction so callers
	// never read-modify-write across the repository boundary.
	UpdateScoreAndAdvance(ctx context.Context, matchID, scoreTeam1, scoreTeam2 int, sets []models.SetScore, winnerTeam int, status models.MatchStatus, expectedVersion *int, submittedBy *string) (updated, advanced *models.Match, err error)
	ResetScoreAtomic(ctx context.Context, matchID int) (*models.Match, error)
	AdvanceWinner(ctx context.Context, matchID int) (*models.Match, error)
	ResolveByeAndAdvance(ctx context.Context, matchID int) (updated, advanced *models.Match, err error)
	SwapTeamsInGroups(ctx context.Context, bracketID, team1ID, team2ID int) error
}

type postgresMatchRepository struct {
	db *sql.DB
}

func NewPostgresMatchRepository(db *sql.DB) MatchRepository {
	return &postgresMatchRepository{db: db}
}

const matchColumns = `id, bracket_id, round_number, match_number, round_name, team1_id, team2_id,
	score_team1, score_team2, set_scores, winner_team, next_match_id, next_match_position,
	group_number, status, is_bye, version, submitted_by, created_at`

func (r *postgresMatchRepository) executor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

func scanMatch(row interface{ Scan(...interface{}) error }) (*models.Match, error) {
	var m models.Match
	var setsJSON []byte
	err := row.Scan(
		&m.ID, &m.BracketID, &m.RoundNumber, &m.MatchNumber, &m.RoundName,
		&m.Team1ID, &m.Team2ID, &m.ScoreTeam1, &m.ScoreTeam2, &setsJSON,
		&m.WinnerTeam, &m.NextMatchID, &m.NextMatchPosition, &m.GroupNumber,
		&m.Status, &m.IsBye, &m.Version, &m.SubmittedBy, &m.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrMatchNotFound
		}
		return nil, err
	}
	if len(setsJSON) > 0 {
		if err := json.Unmarshal(setsJSON, &m.SetScores); err != nil {
			return nil, fmt.Errorf("failed to unmarshal set scores for match %d: %w", m.ID, err)
		}
	}
	return &m, nil
}

func (r *postgresMatchRepository) CreateMatches(ctx context.Context, exec SQLExecutor, bracketID int, generated []models.GeneratedMatch) ([]*models.Match, error) {
	executor := r.executor(exec)
	query := `
		INSERT INTO matches
			(bracket_id, round_number, match_number, round_name, team1_id, team2_id,
			 group_number, status, is_bye, version)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, 1)
		RETURNING ` + matchColumns

	created := make([]*models.Match, 0, len(generated))
	for _, gm := range generated {
		status := models.MatchPending
		if gm.IsBye {
			status = models.MatchBye
		}
		row := executor.QueryRowContext(ctx, query,
			bracketID, gm.RoundNumber, gm.MatchNumber, gm.RoundName,
			gm.Team1ID, gm.Team2ID, gm.GroupNumber, status, gm.IsBye,
		)
		m, err := scanMatch(row)
		if err != nil {
			return nil, r.mapError(fmt.Errorf("failed to create match %d: %w", gm.MatchNumber, err))
		}
		created = append(created, m)
	}
	return created, nil
}

func (r *postgresMatchRepository) UpdateNextMatchID(ctx context.Context, exec SQLExecutor, matchID int, nextMatchID, nextMatchPosition *int) error {
	query := `UPDATE matches SET next_match_id = $1, next_match_position = $2 WHERE id = $3`
	result, err := r.executor(exec).ExecContext(ctx, query, nextMatchID, nextMatchPosition, matchID)
	if err != nil {
		return fmt.Errorf("failed to link match %d: %w", matchID, err)
	}
	return checkAffectedRows(result, ErrMatchNotFound)
}

func (r *postgresMatchRepository) GetByID(ctx context.Context, id int) (*models.Match, error) {
	query := `SELECT ` + matchColumns + ` FROM matches WHERE id = $1`
	return scanMatch(r.db.QueryRowContext(ctx, query, id))
}

func (r *postgresMatchRepository) ListByBracket(ctx context.Context, bracketID int) ([]*models.Match, error) {
	query := `SELECT ` + matchColumns + ` FROM matches WHERE bracket_id = $1 ORDER BY match_number ASC`
	return r.queryMatches(ctx, query, bracketID)
}

func (r *postgresMatchRepository) ListForTeam(ctx context.Context, bracketID, teamID int, statuses []models.MatchStatus) ([]*models.Match, error) {
	var queryBuilder strings.Builder
	queryBuilder.WriteString(`SELECT ` + matchColumns + ` FROM matches WHERE bracket_id = $1 AND (team1_id = $2 OR team2_id = $2)`)
	args := []interface{}{bracketID, teamID}
	if len(statuses) > 0 {
		placeholders := make([]string, len(statuses))
		for i, s := range statuses {
			args = append(args, s)
			placeholders[i] = "$" + strconv.Itoa(len(args))
		}
		queryBuilder.WriteString(" AND status IN (" + strings.Join(placeholders, ", ") + ")")
	}
	queryBuilder.WriteString(" ORDER BY match_number ASC")
	return r.queryMatches(ctx, queryBuilder.String(), args...)
}

func (r *postgresMatchRepository) queryMatches(ctx context.Context, query string, args ...interface{}) ([]*models.Match, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query matches: %w", err)
	}
	defer rows.Close()

	matches := make([]*models.Match, 0)
	for rows.Next() {
		m, scanErr := scanMatch(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		matches = append(matches, m)
	}
	return matches, rows.Err()
}

func (r *postgresMatchRepository) DeleteByBracketID(ctx context.Context, exec SQLExecutor, bracketID int) error {
	_, err := r.executor(exec).ExecContext(ctx, `DELETE FROM matches WHERE bracket_id = $1`, bracketID)
	return err
}

func (r *postgresMatchRepository) DeleteByIDs(ctx context.Context, ids []int) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := r.db.ExecContext(ctx, `DELETE FROM matches WHERE id = ANY($1)`, pq.Array(ids))
	return err
}

// lockMatch loads a match row FOR UPDATE inside tx.
func lockMatch(ctx context.Context, tx *sql.Tx, matchID int) (*models.Match, error) {
	query := `SELECT ` + matchColumns + ` FROM matches WHERE id = $1 FOR UPDATE`
	return scanMatch(tx.QueryRowContext(ctx, query, matchID))
}

// advanceInto writes the winner's team id into the linked slot of the next
// match and returns the refreshed next match.
func advanceInto(ctx context.Context, tx *sql.Tx, m *models.Match) (*models.Match, error) {
	if m.NextMatchID == nil || m.NextMatchPosition == nil {
		return nil, nil
	}
	// A forfeit decided before the opponent slot was filled has no team to
	// push forward; the slot stays open.
	winnerID := m.WinnerTeamID()
	if winnerID == nil {
		return nil, nil
	}
	column := "team1_id"
	if *m.NextMatchPosition == 2 {
		column = "team2_id"
	}
	query := `UPDATE matches SET ` + column + ` = $1 WHERE id = $2`
	if _, err := tx.ExecContext(ctx, query, winnerID, *m.NextMatchID); err != nil {
		return nil, fmt.Errorf("failed to advance winner of match %d: %w", m.ID, err)
	}
	return scanMatch(tx.QueryRowContext(ctx, `SELECT `+matchColumns+` FROM matches WHERE id = $1`, *m.NextMatchID))
}

func (r *postgresMatchRepository) UpdateScoreAndAdvance(ctx context.Context, matchID, scoreTeam1, scoreTeam2 int, sets []models.SetScore, winnerTeam int, status models.MatchStatus, expectedVersion *int, submittedBy *string) (*models.Match, *models.Match, error) {
	var updated, advanced *models.Match
	err := withTx(ctx, r.db, func(tx *sql.Tx) error {
		current, err := lockMatch(ctx, tx, matchID)
		if err != nil {
			return err
		}
		if expectedVersion != nil && *expectedVersion != current.Version {
			return ErrMatchVersionConflict
		}

		setsJSON, err := json.Marshal(sets)
		if err != nil {
			return fmt.Errorf("failed to marshal set scores: %w", err)
		}
		query := `
			UPDATE matches
			SET score_team1 = $1, score_team2 = $2, set_scores = $3, winner_team = $4,
			    status = $5, submitted_by = $6, version = version + 1
			WHERE id = $7
			RETURNING ` + matchColumns
		updated, err = scanMatch(tx.QueryRowContext(ctx, query,
			scoreTeam1, scoreTeam2, setsJSON, winnerTeam, status, submittedBy, matchID))
		if err != nil {
			return err
		}

		advanced, err = advanceInto(ctx, tx, updated)
		return err
	})
	if err != nil {
		return nil, nil, err
	}
	return updated, advanced, nil
}

func (r *postgresMatchRepository) ResetScoreAtomic(ctx context.Context, matchID int) (*models.Match, error) {
	var updated *models.Match
	err := withTx(ctx, r.db, func(tx *sql.Tx) error {
		current, err := lockMatch(ctx, tx, matchID)
		if err != nil {
			return err
		}

		// Reverse the downstream advancement before clearing the winner.
		if current.NextMatchID != nil && current.NextMatchPosition != nil {
			if winnerID := current.WinnerTeamID(); winnerID != nil {
				column := "team1_id"
				if *current.NextMatchPosition == 2 {
					column = "team2_id"
				}
				query := `UPDATE matches SET ` + column + ` = NULL WHERE id = $1 AND ` + column + ` = $2`
				if _, err := tx.ExecContext(ctx, query, *current.NextMatchID, *winnerID); err != nil {
					return fmt.Errorf("failed to reverse advancement from match %d: %w", matchID, err)
				}
			}
		}

		query := `
			UPDATE matches
			SET score_team1 = NULL, score_team2 = NULL, set_scores = NULL, winner_team = NULL,
			    status = $1, submitted_by = NULL, version = version + 1
			WHERE id = $2
			RETURNING ` + matchColumns
		updated, err = scanMatch(tx.QueryRowContext(ctx, query, models.MatchPending, matchID))
		return err
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (r *postgresMatchRepository) AdvanceWinner(ctx context.Context, matchID int) (*models.Match, error) {
	var advanced *models.Match
	err := withTx(ctx, r.db, func(tx *sql.Tx) error {
		current, err := lockMatch(ctx, tx, matchID)
		if err != nil {
			return err
		}
		advanced, err = advanceInto(ctx, tx, current)
		return err
	})
	if err != nil {
		return nil, err
	}
	return advanced, nil
}

func (r *postgresMatchRepository) ResolveByeAndAdvance(ctx context.Context, matchID int) (*models.Match, *models.Match, error) {
	var updated, advanced *models.Match
	err := withTx(ctx, r.db, func(tx *sql.Tx) error {
		current, err := lockMatch(ctx, tx, matchID)
		if err != nil {
			return err
		}
		winnerTeam := 1
		if current.Team1ID == nil {
			if current.Team2ID == nil {
				return ErrMatchMissingTeam
			}
			winnerTeam = 2
		}

		// The present team wins 0-0 with no sets recorded.
		query := `
			UPDATE matches
			SET score_team1 = 0, score_team2 = 0, winner_team = $1, status = $2, version = version + 1
			WHERE id = $3
			RETURNING ` + matchColumns
		updated, err = scanMatch(tx.QueryRowContext(ctx, query, winnerTeam, models.MatchCompleted, matchID))
		if err != nil {
			return err
		}

		advanced, err = advanceInto(ctx, tx, updated)
		return err
	})
	if err != nil {
		return nil, nil, err
	}
	return updated, advanced, nil
}

func (r *postgresMatchRepository) SwapTeamsInGroups(ctx context.Context, bracketID, team1ID, team2ID int) error {
	// Single statement, so the exchange is atomic without an explicit tx.
	query := `
		UPDATE matches
		SET team1_id = CASE team1_id WHEN $2 THEN $3 WHEN $3 THEN $2 ELSE team1_id END,
		    team2_id = CASE team2_id WHEN $2 THEN $3 WHEN $3 THEN $2 ELSE team2_id END
		WHERE bracket_id = $1 AND group_number IS NOT NULL`
	_, err := r.db.ExecContext(ctx, query, bracketID, team1ID, team2ID)
	return err
}

func (r *postgresMatchRepository) mapError(err error) error {
	if err == nil {
		return nil
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Constraint {
		case "matches_bracket_id_fkey":
			return ErrMatchBracketInvalid
		}
	}
	return err
}
