package storage

import (
	"context"

	"github.com/google/uuid"
)

// LaunchStore provides access to launches.
type LaunchStore interface {
	// Insert adds a launch. Returns ErrDuplicateKey if the id exists.
	Insert(ctx context.Context, r *LaunchRecord) error

	// GetByID returns ErrNotFound if the launch does not exist.
	GetByID(ctx context.Context, id uuid.UUID) (*LaunchRecord, error)

	// List returns up to limit launches, newest first. limit <= 0 means all.
	List(ctx context.Context, limit int) ([]*LaunchRecord, error)

	// UpdateStatus returns ErrNotFound if the launch does not exist.
	UpdateStatus(ctx context.Context, id uuid.UUID, status LaunchStatus) error
}

// WalletStore provides access to bundle wallets.
type WalletStore interface {
	// InsertBulk adds wallets atomically. Fails entire batch on any duplicate.
	InsertBulk(ctx context.Context, wallets []*WalletRecord) error

	// GetByLaunchID returns the wallets of a launch ordered by index.
	GetByLaunchID(ctx context.Context, launchID uuid.UUID) ([]*WalletRecord, error)
}

// PositionStore provides access to planned buys.
type PositionStore interface {
	InsertBulk(ctx context.Context, positions []*PositionRecord) error
	GetByLaunchID(ctx context.Context, launchID uuid.UUID) ([]*PositionRecord, error)
}

// Stores bundles the repositories a launcher writes to.
type Stores struct {
	Launches  LaunchStore
	Wallets   WalletStore
	Positions PositionStore
}
