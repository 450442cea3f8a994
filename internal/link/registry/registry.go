// Package registry holds the in-flight authorization handshakes. Entries are
// keyed by an unguessable state token and consumed exactly once, which is the
// CSRF defense for the callback endpoint.
package registry

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/aussiebroadwan/minelink/internal/link/domain"
	"github.com/aussiebroadwan/minelink/pkg/cryptox"
)

// DefaultTTL is how long an issued state token stays redeemable.
const DefaultTTL = 10 * time.Minute

// Registry is safe for concurrent use. It is constructed once and injected
// into the service; there is no package-level state.
type Registry struct {
	mu      sync.Mutex
	pending map[string]domain.PendingAuthorization
	ttl     time.Duration
	now     func() time.Time
}

func New(ttl time.Duration) *Registry {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Registry{
		pending: make(map[string]domain.PendingAuthorization),
		ttl:     ttl,
		now:     time.Now,
	}
}

// WithClock overrides the time source. Tests use this to control expiry.
func (r *Registry) WithClock(now func() time.Time) *Registry {
	r.now = now
	return r
}

// Begin mints a state token, registers the pending authorization and sweeps
// any entries past their TTL while the lock is held.
func (r *Registry) Begin(principalID uuid.UUID, displayName string) (string, error) {
	state, err := cryptox.GenerateToken(cryptox.TokenSize128)
	if err != nil {
		return "", err
	}

	now := r.now()

	r.mu.Lock()
	defer r.mu.Unlock()

	for token, entry := range r.pending {
		if entry.Expired(now, r.ttl) {
			delete(r.pending, token)
		}
	}

	r.pending[state] = domain.PendingAuthorization{
		StateToken:  state,
		PrincipalID: principalID,
		DisplayName: displayName,
		IssuedAt:    now,
	}

	return state, nil
}

// Consume atomically looks up and removes the entry for state, so two
// concurrent callbacks presenting the same token cannot both succeed.
// Expired-but-unswept entries are treated as absent.
func (r *Registry) Consume(state string) (domain.PendingAuthorization, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.pending[state]
	if !ok {
		return domain.PendingAuthorization{}, false
	}
	delete(r.pending, state)

	if entry.Expired(r.now(), r.ttl) {
		return domain.PendingAuthorization{}, false
	}
	return entry, true
}

// PendingCount returns the number of unswept entries, expired or not.
func (r *Registry) PendingCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pending)
}
