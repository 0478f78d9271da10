// Package state persists one resource record per (namespace, kind).
package state

import (
	"context"

	"github.com/savaki/gamelift-backend/internal/resource"
)

// Store is the durable record of which resources exist. Every write replaces
// a whole record; a reader never observes a partially written one.
type Store interface {
	// Get returns the record for kind, or nil when none exists.
	Get(ctx context.Context, namespace string, kind resource.Kind) (*resource.Record, error)

	// Put replaces the record for record.Kind.
	Put(ctx context.Context, record *resource.Record) error

	// Remove deletes the record for kind. Removing an absent record is not an error.
	Remove(ctx context.Context, namespace string, kind resource.Kind) error

	// List returns every record in namespace.
	List(ctx context.Context, namespace string) ([]*resource.Record, error)
}

// Load returns the namespace as a snapshot.
func Load(ctx context.Context, store Store, namespace string) (resource.Snapshot, error) {
	records, err := store.List(ctx, namespace)
	if err != nil {
		return nil, err
	}
	return resource.NewSnapshot(records), nil
}
