package reading

import "context"

// Store defines the persistence operations over the readings table
type Store interface {
	// List returns the readings owned by userID, newest first
	List(ctx context.Context, userID string) ([]*Reading, error)

	// Create persists a reading whose ID and CreatedAt are already assigned
	Create(ctx context.Context, reading *Reading) error

	// Update replaces the meter number and value of the reading with the given id.
	// Returns ErrNotFound when no row matches.
	Update(ctx context.Context, id, meterNumber string, value int64) (*Reading, error)

	// Delete removes the reading with the given id. Deleting a missing id is not an error.
	Delete(ctx context.Context, id string) error

	// Close releases the underlying connection pool or file handle
	Close() error
}

// UnconfiguredStore is used when no connection string was supplied; every call fails
// with ErrNotConfigured so the condition surfaces per request as a server error.
type UnconfiguredStore struct{}

func (UnconfiguredStore) List(context.Context, string) ([]*Reading, error) {
	return nil, ErrNotConfigured
}

func (UnconfiguredStore) Create(context.Context, *Reading) error {
	return ErrNotConfigured
}

func (UnconfiguredStore) Update(context.Context, string, string, int64) (*Reading, error) {
	return nil, ErrNotConfigured
}

func (UnconfiguredStore) Delete(context.Context, string) error {
	return ErrNotConfigured
}

func (UnconfiguredStore) Close() error {
	return nil
}
