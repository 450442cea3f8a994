package linksdk

import "time"

// BeginLinkRequest starts an authorization handshake for a player.
type BeginLinkRequest struct {
	PrincipalID string `json:"principal_id" example:"3b9f0a46-6fd1-4f3e-9d38-1c2f4f8a9b21"`
	DisplayName string `json:"display_name" example:"Steve"`
}

// BeginLinkResponse carries the provider URL the player must open.
type BeginLinkResponse struct {
	AuthorizationURL string `json:"authorization_url"`
	ExpiresInSeconds int    `json:"expires_in_seconds" example:"600"`
}

// BindingSummary is the host-facing view of a completed binding. Tokens and
// the raw profile snapshot never leave the service.
type BindingSummary struct {
	PrincipalID string            `json:"principal_id"`
	DisplayName string            `json:"display_name"`
	ExternalID  string            `json:"external_id"`
	Username    string            `json:"username,omitempty"`
	Email       string            `json:"email,omitempty"`
	Custom      map[string]string `json:"custom,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
}

// ListBindingsResponse is one page of bindings, newest first.
type ListBindingsResponse struct {
	Bindings []BindingSummary `json:"bindings"`
	Page     int              `json:"page"`
	PageSize int              `json:"page_size"`
	Total    int64            `json:"total"`
}

// UpdateDisplayNameRequest records a player's current name.
type UpdateDisplayNameRequest struct {
	DisplayName string `json:"display_name"`
}

// StatusResponse is the admin status snapshot.
type StatusResponse struct {
	Database              string `json:"database"`
	PendingAuthorizations int    `json:"pending_authorizations"`
	BoundPlayers          int64  `json:"bound_players"`
}

// HealthChecks reports the state of critical dependencies.
type HealthChecks struct {
	Database string `json:"database"`
}

// HealthResponse is returned by the livez and readyz probes.
type HealthResponse struct {
	Status  string        `json:"status"`
	Uptime  string        `json:"uptime"`
	Version string        `json:"version"`
	Checks  *HealthChecks `json:"checks,omitempty"`
}

// ErrorResponse is the JSON error body for host API endpoints.
type ErrorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description,omitempty"`
}
