package provider

import (
	"context"
	"fmt"
)

// ErrorKind classifies provider failures.
type ErrorKind string

const (
	// KindTransport covers network failures, timeouts and unreadable bodies.
	KindTransport ErrorKind = "transport"
	// KindDenied means the provider refused the request and said why
	// (an OAuth2 error payload, e.g. invalid_grant or access_denied).
	KindDenied ErrorKind = "denied"
	// KindMalformedResponse means the provider answered with something that
	// is neither a token nor an OAuth2 error.
	KindMalformedResponse ErrorKind = "malformed_response"
)

// Error is the only error type returned by Provider implementations.
type Error struct {
	Kind        ErrorKind
	Code        string // OAuth2 error code, when Kind is KindDenied
	Description string
	cause       error
}

func (e *Error) Error() string {
	switch {
	case e.Code != "":
		return fmt.Sprintf("provider: %s: %s (%s)", e.Kind, e.Code, e.Description)
	case e.cause != nil:
		return fmt.Sprintf("provider: %s: %v", e.Kind, e.cause)
	default:
		return fmt.Sprintf("provider: %s: %s", e.Kind, e.Description)
	}
}

func (e *Error) Unwrap() error { return e.cause }

func transportErr(err error) *Error {
	return &Error{Kind: KindTransport, cause: err}
}

// TokenResponse is the transient result of a token-endpoint call. It is
// mapped into binding fields by the service and never persisted as-is.
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
	ExpiresIn    int64  `json:"expires_in"`
	TokenType    string `json:"token_type"`
}

// Provider executes the OAuth2 operations against a configured identity
// provider. Implementations must be safe for concurrent use; additional
// providers are added as new implementations selected by configuration.
type Provider interface {
	// AuthorizationURL builds the provider's authorization endpoint URL for
	// the given state token. Pure function of configuration and state.
	AuthorizationURL(state string) string

	// ExchangeCode performs the authorization-code grant.
	ExchangeCode(ctx context.Context, code string) (*TokenResponse, error)

	// FetchProfile retrieves the userinfo document with a bearer token. The
	// raw response body is returned alongside the parsed form so callers can
	// persist the document exactly as the provider sent it.
	FetchProfile(ctx context.Context, accessToken string) (Profile, []byte, error)

	// Refresh performs the refresh-token grant. It is exposed as a
	// capability only; nothing in the service calls it on a schedule.
	Refresh(ctx context.Context, refreshToken string) (*TokenResponse, error)
}
