// Package cache holds the latest poll cycle snapshot for the presentation
// layer. Nothing here is an archive: only the most recent cycle is kept.
package cache

import (
	"context"

	"salesflow/models"
)

// Store keeps the most recent snapshot.
type Store interface {
	Save(ctx context.Context, snap models.Snapshot) error
	// Latest reports false when no snapshot has been saved yet.
	Latest(ctx context.Context) (models.Snapshot, bool, error)
	Health(ctx context.Context) error
	Close() error
}
