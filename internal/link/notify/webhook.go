package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"
)

// WebhookNotifier POSTs the message as JSON to the host's notification URL.
// Delivery is best-effort: a failed POST is logged and dropped, never
// retried. The host can always query the binding state directly.
type WebhookNotifier struct {
	URL        string
	HTTPClient *http.Client
	Logger     *slog.Logger
}

func NewWebhookNotifier(url string, logger *slog.Logger) *WebhookNotifier {
	return &WebhookNotifier{
		URL:        url,
		HTTPClient: &http.Client{Timeout: 5 * time.Second},
		Logger:     logger,
	}
}

func (n *WebhookNotifier) Notify(ctx context.Context, msg Message) {
	body, err := json.Marshal(msg)
	if err != nil {
		n.Logger.Error("failed to encode notification", "error", err)
		return
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.URL, bytes.NewReader(body))
	if err != nil {
		n.Logger.Error("failed to build notification request", "error", err)
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.HTTPClient.Do(req)
	if err != nil {
		n.Logger.Warn("notification delivery failed",
			"principal_id", msg.PrincipalID,
			"error", err,
		)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		n.Logger.Warn("notification rejected by host",
			"principal_id", msg.PrincipalID,
			"status", resp.StatusCode,
		)
	}
}
