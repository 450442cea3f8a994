// Package notify delivers binding outcomes back to the host's session
// channel. The host (the game-server plugin) owns message formatting and the
// main-thread handoff; this side only pushes a structured event.
package notify

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
)

// Message describes the terminal outcome of a binding attempt for one
// principal's session.
type Message struct {
	PrincipalID uuid.UUID `json:"principal_id"`
	Success     bool      `json:"success"`
	Username    string    `json:"username,omitempty"` // extracted display name
	Email       string    `json:"email,omitempty"`
	Reason      string    `json:"reason,omitempty"` // populated on failure
}

// Notifier delivers a message to the principal's session. Implementations
// must not block the caller; the service invokes Notify from its own
// goroutine after the callback reaches a terminal state.
type Notifier interface {
	Notify(ctx context.Context, msg Message)
}

// LogNotifier is the fallback when no host webhook is configured. Outcomes
// still land in the logs so operators can trace binding attempts.
type LogNotifier struct {
	Logger *slog.Logger
}

func (n *LogNotifier) Notify(_ context.Context, msg Message) {
	logger := n.Logger
	if logger == nil {
		logger = slog.Default()
	}

	if msg.Success {
		logger.Info("binding notification",
			"principal_id", msg.PrincipalID,
			"username", msg.Username,
		)
		return
	}
	logger.Warn("binding failure notification",
		"principal_id", msg.PrincipalID,
		"reason", msg.Reason,
	)
}
