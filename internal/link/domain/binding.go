package domain

import (
	"time"

	"github.com/google/uuid"
)

// Binding is the persisted link between a player and an external identity.
// At most one binding exists per player and per external subject; the store
// enforces both via unique constraints.
type Binding struct {
	ID              string    // ULID
	PrincipalID     uuid.UUID // player UUID, unique
	DisplayName     string    // last-seen player name
	ExternalID      string    // provider subject identifier, unique
	AccessToken     string    // opaque, may be empty
	RefreshToken    string    // opaque, may be empty
	TokenExpiresAt  *time.Time // nil means non-expiring
	ProfileSnapshot []byte    // userinfo document as returned by the provider
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// TokenExpired reports whether the cached access token has passed its expiry.
// Bindings without an expiry never expire.
func (b Binding) TokenExpired(now time.Time) bool {
	if b.TokenExpiresAt == nil {
		return false
	}
	return now.After(*b.TokenExpiresAt)
}
