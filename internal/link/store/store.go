package store

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/aussiebroadwan/minelink/internal/link/domain"
)

var (
	ErrNotFound = errors.New("store: not found")
	// ErrConflict reports that a save would give two different principals the
	// same external identity. The driver's unique constraint is the
	// authoritative arbiter; callers map this to a business rejection.
	ErrConflict = errors.New("store: external identity already bound")
	// ErrInvalidProfile reports a profile snapshot that is not well-formed
	// JSON. Malformed input is rejected before persistence, not at read time.
	ErrInvalidProfile = errors.New("store: profile snapshot is not valid JSON")
)

// Store is the root data access interface. Concrete drivers (sqlite,
// postgres) implement this; the backend is a startup-time configuration
// decision. All operations must be safe for concurrent invocation; the
// driver's native transactional guarantees are relied upon rather than an
// application-level lock.
type Store interface {
	Bindings() Bindings

	ApplyMigrations() error

	// Close releases the underlying connection or pool.
	Close() error

	// Ping verifies the database connection is still alive.
	Ping(ctx context.Context) error

	// Driver names the backend ("sqlite", "postgres") for status reporting.
	Driver() string
}

// SaveParams carries everything needed to create or refresh a binding.
type SaveParams struct {
	PrincipalID     uuid.UUID
	DisplayName     string
	ExternalID      string
	AccessToken     string
	RefreshToken    string
	ExpiresIn       int64 // seconds; <= 0 means the token never expires
	ProfileSnapshot []byte
}

type Bindings interface {
	// Save upserts by principal. Re-binding the same principal overwrites the
	// mutable fields and bumps updated_at while preserving created_at.
	// Returns ErrConflict when the external id belongs to a different
	// principal, ErrInvalidProfile when the snapshot is not valid JSON.
	Save(ctx context.Context, p SaveParams) error

	Get(ctx context.Context, principalID uuid.UUID) (domain.Binding, error)
	GetByExternalID(ctx context.Context, externalID string) (domain.Binding, error)

	IsPrincipalBound(ctx context.Context, principalID uuid.UUID) (bool, error)
	IsExternalIDBound(ctx context.Context, externalID string) (bool, error)

	// Delete removes the binding and reports whether a row existed.
	Delete(ctx context.Context, principalID uuid.UUID) (bool, error)

	// List returns a page of bindings ordered by created_at descending.
	// Pages start at 1; a page beyond the available rows is empty, not an
	// error.
	List(ctx context.Context, page, pageSize int) ([]domain.Binding, error)

	// Count returns the total number of bindings.
	Count(ctx context.Context) (int64, error)

	// UpdateTokens replaces the cached tokens and recomputes the expiry.
	// Reports whether a binding existed.
	UpdateTokens(ctx context.Context, principalID uuid.UUID, accessToken, refreshToken string, expiresIn int64) (bool, error)

	// UpdateDisplayName sets the last-seen name. Reports whether a binding
	// existed.
	UpdateDisplayName(ctx context.Context, principalID uuid.UUID, displayName string) (bool, error)
}
