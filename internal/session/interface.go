package session

import "context"

// Store persists interview records.
type Store interface {
	// Create stores a new record with Version set to 1.
	Create(ctx context.Context, rec *Record) error

	// Get returns nil, nil when the record does not exist.
	Get(ctx context.Context, id string) (*Record, error)

	// Update persists rec if rec.Version matches the stored version, then increments
	// Version and refreshes UpdatedAt.
	// Returns ErrVersionConflict on a version mismatch and ErrNotFound when absent.
	Update(ctx context.Context, rec *Record) error

	Delete(ctx context.Context, id string) error

	Close() error
}
