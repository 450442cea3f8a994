package domain

import (
	"time"

	"github.com/google/uuid"
)

// PendingAuthorization tracks an in-flight authorization handshake. It lives
// only in memory and is consumed exactly once, either by the matching
// callback or by the expiry sweep.
type PendingAuthorization struct {
	StateToken  string
	PrincipalID uuid.UUID
	DisplayName string // captured at Begin so the callback needs no host round-trip
	IssuedAt    time.Time
}

// Expired reports whether the entry has outlived ttl relative to now. The
// boundary itself is expired: an entry issued at T is gone from T+ttl onward.
func (p PendingAuthorization) Expired(now time.Time, ttl time.Duration) bool {
	return now.Sub(p.IssuedAt) >= ttl
}
