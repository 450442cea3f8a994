package service

import (
	"errors"
	"fmt"
)

// RejectKind names the terminal rejection states of the callback flow.
// Every kind maps to exactly one HTTP status and user-facing message; no
// step is retried automatically. A rejected flow is restarted by a fresh
// BeginAuthorization.
type RejectKind string

const (
	RejectMethodNotAllowed     RejectKind = "method_not_allowed"
	RejectMalformedCallback    RejectKind = "malformed_callback"
	RejectProviderDenied       RejectKind = "provider_denied"
	RejectInvalidOrExpiredState RejectKind = "invalid_or_expired_state"
	RejectTokenExchangeFailed  RejectKind = "token_exchange_failed"
	RejectProfileFetchFailed   RejectKind = "profile_fetch_failed"
	RejectMissingIdentityField RejectKind = "missing_identity_field"
	RejectIdentityAlreadyBound RejectKind = "identity_already_bound"
	RejectStorageError         RejectKind = "storage_error"
)

// RejectError is the only error type CompleteCallback returns. Provider and
// storage errors are converted at this boundary; they never propagate raw
// past the service.
type RejectError struct {
	Kind   RejectKind
	Reason string // human-readable, safe to show the remote browser
	cause  error
}

func (e *RejectError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("callback rejected (%s): %s: %v", e.Kind, e.Reason, e.cause)
	}
	return fmt.Sprintf("callback rejected (%s): %s", e.Kind, e.Reason)
}

func (e *RejectError) Unwrap() error { return e.cause }

func reject(kind RejectKind, reason string, cause error) *RejectError {
	return &RejectError{Kind: kind, Reason: reason, cause: cause}
}

// AsReject extracts a RejectError, if err is one.
func AsReject(err error) (*RejectError, bool) {
	var re *RejectError
	if errors.As(err, &re) {
		return re, true
	}
	return nil, false
}

// ErrNoRefreshToken reports a refresh attempt against a binding that never
// received a refresh token from the provider.
var ErrNoRefreshToken = errors.New("service: binding has no refresh token")
