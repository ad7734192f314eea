package models

import "time"

// AuditEvent is one append-only record of a mutating operation.
type AuditEvent struct {
	ID         int                    `json:"id" db:"id"`
	EntityType string                 `json:"entity_type" db:"entity_type"`
	EntityID   int                    `json:"entity_id" db:"entity_id"`
	Action     string                 `json:"action" db:"action"`
	ActorID    *string                `json:"actor_id,omitempty" db:"actor_id"`
	Metadata   map[string]interface{} `json:"metadata,omitempty" db:"-"`
	CreatedAt  time.Time              `json:"created_at" db:"created_at"`
}
