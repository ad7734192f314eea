package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/padelops/bracket-engine/models"
)

// BracketSnapshot is the immutable record archived when a bracket finishes.
type BracketSnapshot struct {
	Bracket    *models.Bracket    `json:"bracket"`
	Matches    []*models.Match    `json:"matches"`
	Standings  []*models.Standing `json:"standings"`
	ArchivedAt time.Time          `json:"archived_at"`
}

// SnapshotArchiver writes completed-bracket snapshots to the object store.
type SnapshotArchiver interface {
	ArchiveBracket(ctx context.Context, snapshot BracketSnapshot) (string, error)
}

type snapshotArchiver struct {
	uploader FileUploader
}

func NewSnapshotArchiver(uploader FileUploader) SnapshotArchiver {
	return &snapshotArchiver{uploader: uploader}
}

func (a *snapshotArchiver) ArchiveBracket(ctx context.Context, snapshot BracketSnapshot) (string, error) {
	if snapshot.Bracket == nil {
		return "", fmt.Errorf("snapshot has no bracket")
	}
	if snapshot.ArchivedAt.IsZero() {
		snapshot.ArchivedAt = time.Now().UTC()
	}

	payload, err := json.Marshal(snapshot)
	if err != nil {
		return "", fmt.Errorf("failed to marshal bracket snapshot: %w", err)
	}

	key := fmt.Sprintf("brackets/%d/%d/bracket-%d.json",
		snapshot.Bracket.TournamentID, snapshot.Bracket.CategoryID, snapshot.Bracket.ID)
	result, err := a.uploader.Upload(ctx, key, "application/json", bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	return result.Location, nil
}
