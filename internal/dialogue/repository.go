// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package dialogue manages per-user conversation state: a TTL and
// size-bounded in-memory cache over a durable repository, with periodic
// background eviction. The repository is the sole durability boundary;
// losing the cache is always recoverable.
package dialogue

import (
	"context"
	"errors"

	"github.com/pdiddy/scholar-nlu/pkg/types"
)

// ErrNotFound reports that no context row exists for the user.
var ErrNotFound = errors.New("context not found")

// Repository persists user contexts keyed by user_id.
type Repository interface {
	// Init prepares the backing schema. Idempotent.
	Init(ctx context.Context) error

	// Get loads the latest row for the user, or ErrNotFound.
	Get(ctx context.Context, userID int64) (*types.UserContext, error)

	// Upsert writes the context under its user_id, replacing any prior row.
	Upsert(ctx context.Context, uctx *types.UserContext) error

	// Close releases the repository's resources.
	Close() error
}
