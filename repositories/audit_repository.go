package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
)

// AuditRepository is the append-only sink for mutating operations. Writes
// are best-effort from the caller's point of view: a failed audit insert
// must not undo the operation it records.
type AuditRepository interface {
	Log(ctx context.Context, entityType string, entityID int, action string, actorID *string, metadata map[string]interface{}) error
}

type postgresAuditRepository struct {
	db *sql.DB
}

func NewPostgresAuditRepository(db *sql.DB) AuditRepository {
	return &postgresAuditRepository{db: db}
}

func (r *postgresAuditRepository) Log(ctx context.Context, entityType string, entityID int, action string, actorID *string, metadata map[string]interface{}) error {
	var metadataJSON []byte
	if metadata != nil {
		var err error
		metadataJSON, err = json.Marshal(metadata)
		if err != nil {
			return fmt.Errorf("failed to marshal audit metadata: %w", err)
		}
	}
	query := `
		INSERT INTO audit_events (entity_type, entity_id, action, actor_id, metadata)
		VALUES ($1, $2, $3, $4, $5)`
	if _, err := r.db.ExecContext(ctx, query, entityType, entityID, action, actorID, metadataJSON); err != nil {
		return fmt.Errorf("failed to append audit event: %w", err)
	}
	return nil
}
