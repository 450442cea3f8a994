package http

import (
	"net/http"

	"github.com/aussiebroadwan/minelink/internal/link/service"
	"github.com/aussiebroadwan/minelink/pkg/slogx"
)

// CallbackHandler terminates the provider redirect. It owns request-shape
// validation (method, query parameters); everything after a valid
// (code, state) pair is the service's state machine.
type CallbackHandler struct {
	LinkService *service.LinkService
}

// ServeHTTP handles the OAuth2 redirect from the identity provider.
//
//	@Summary		OAuth2 callback endpoint
//	@Description	Terminates the provider redirect at the end of the authorization code flow.
//	@Description	Renders a human-readable HTML page telling the player whether their account
//	@Description	was linked. Every outcome is a terminal page; there are no further redirects.
//	@Tags			Callback
//	@Produce		html
//	@Param			code	query		string	false	"Authorization code issued by the provider"
//	@Param			state	query		string	false	"State token minted at link begin"
//	@Param			error	query		string	false	"Provider error code when the user denied access"
//	@Success		200		{string}	string	"Account linked"
//	@Failure		400		{string}	string	"Denied, expired, malformed or already bound"
//	@Failure		405		{string}	string	"Non-GET request"
//	@Failure		500		{string}	string	"Storage or internal failure"
//	@Router			/callback [get]
func (h *CallbackHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	if r.Method != http.MethodGet {
		renderResult(w, r, http.StatusMethodNotAllowed, pageData{
			Title:   "Method not allowed",
			Message: "This endpoint only accepts the provider's browser redirect.",
		})
		return
	}

	q := r.URL.Query()

	// The provider reports user denial and its own errors via an error
	// query parameter instead of a code.
	if errCode := q.Get("error"); errCode != "" {
		log.Warn("provider returned error", "code", errCode, "description", q.Get("error_description"))
		renderResult(w, r, http.StatusBadRequest, pageData{
			Title:   "Authorization declined",
			Message: "The identity provider did not authorize this request. You can close this page and try again from the game.",
		})
		return
	}

	code := q.Get("code")
	state := q.Get("state")
	if code == "" || state == "" {
		log.Warn("malformed callback", "has_code", code != "", "has_state", state != "")
		renderResult(w, r, http.StatusBadRequest, pageData{
			Title:   "Invalid request",
			Message: "The callback is missing required parameters. Please start the linking process again from the game.",
		})
		return
	}

	result, err := h.LinkService.CompleteCallback(ctx, code, state)
	if err != nil {
		re, ok := service.AsReject(err)
		if !ok {
			log.Error("callback failed", "error", err)
			renderResult(w, r, http.StatusInternalServerError, pageData{
				Title:   "Something went wrong",
				Message: "An unexpected error occurred. Please try again later.",
			})
			return
		}

		status := http.StatusBadRequest
		if re.Kind == service.RejectStorageError {
			status = http.StatusInternalServerError
		}
		renderResult(w, r, status, pageData{
			Title:   "Linking failed",
			Message: re.Reason,
		})
		return
	}

	renderResult(w, r, http.StatusOK, pageData{
		Success: true,
		Title:   "Account linked",
		Message: "Welcome, " + displayOrFallback(result.Username, result.DisplayName) + "! Your account is now linked. You can close this page and return to the game.",
	})
}

func displayOrFallback(username, fallback string) string {
	if username != "" {
		return username
	}
	return fallback
}
