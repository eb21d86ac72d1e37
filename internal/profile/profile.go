// Package profile defines the Profile Store port: the document store of user
// records keyed by identity id, with merge writes and live queries.
package profile

import (
	"context"

	"clocklayer/internal/profile/models"
	id "clocklayer/pkg/domain"
)

// Store is implemented by the memory and postgres adapters.
type Store interface {
	// Get returns sentinel.ErrNotFound when no record exists.
	Get(ctx context.Context, id id.IdentityID) (*models.UserRecord, error)
	// MergeWrite creates the record if absent and applies patch with
	// UserRecord.Apply semantics.
	MergeWrite(ctx context.Context, id id.IdentityID, patch models.Patch) (*models.UserRecord, error)
	Find(ctx context.Context, filter models.Filter) ([]*models.UserRecord, error)
	// Subscribe delivers the current snapshot, then a fresh snapshot after
	// every change that may affect filter, until ctx ends or Close is called.
	Subscribe(ctx context.Context, filter models.Filter, fn func(models.Snapshot)) (Subscription, error)
}

// Subscription is a scoped live-query handle.
type Subscription interface {
	Close() error
}
