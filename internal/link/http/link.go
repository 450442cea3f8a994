package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/aussiebroadwan/minelink/internal/link/service"
	"github.com/aussiebroadwan/minelink/internal/link/store"
	"github.com/aussiebroadwan/minelink/pkg/httpx"
	"github.com/aussiebroadwan/minelink/pkg/linksdk"
	"github.com/aussiebroadwan/minelink/pkg/slogx"
)

// LinkHandler serves the authenticated host API for managing bindings.
type LinkHandler struct {
	LinkService *service.LinkService
	PendingTTL  time.Duration
}

func writeError(w http.ResponseWriter, status int, code, desc string) {
	httpx.WriteJSON(w, status, linksdk.ErrorResponse{
		Error:            code,
		ErrorDescription: desc,
	})
}

func principalFromPath(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue("principal_id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, linksdk.ErrorCodeInvalidRequest, "principal_id must be a UUID")
		return uuid.Nil, false
	}
	return id, true
}

func toSummary(s *service.BindingSummary) linksdk.BindingSummary {
	return linksdk.BindingSummary{
		PrincipalID: s.PrincipalID.String(),
		DisplayName: s.DisplayName,
		ExternalID:  s.ExternalID,
		Username:    s.Username,
		Email:       s.Email,
		Custom:      s.Custom,
		CreatedAt:   s.CreatedAt,
	}
}

// HandleBegin starts an authorization handshake for a player.
//
//	@Summary		Begin account linking
//	@Description	Mints a single-use state token for the player and returns the provider
//	@Description	authorization URL they must open in a browser. The URL is valid until the
//	@Description	pending authorization expires.
//	@Tags			Link
//	@Accept			json
//	@Produce		json
//	@Param			request	body		linksdk.BeginLinkRequest	true	"Player identity"
//	@Success		200		{object}	linksdk.BeginLinkResponse	"Authorization URL"
//	@Failure		400		{object}	linksdk.ErrorResponse		"Invalid request body"
//	@Failure		401		{object}	linksdk.ErrorResponse		"Missing or invalid token"
//	@Security		BearerAuth
//	@Router			/v1/link/begin [post]
func (h *LinkHandler) HandleBegin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	var req linksdk.BeginLinkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, linksdk.ErrorCodeInvalidRequest, "request body must be JSON")
		return
	}

	principalID, err := uuid.Parse(req.PrincipalID)
	if err != nil {
		writeError(w, http.StatusBadRequest, linksdk.ErrorCodeInvalidRequest, "principal_id must be a UUID")
		return
	}

	authURL, err := h.LinkService.BeginAuthorization(ctx, principalID, req.DisplayName)
	if err != nil {
		log.Error("failed to begin authorization", "error", err)
		writeError(w, http.StatusInternalServerError, linksdk.ErrorCodeServerError, "failed to start authorization")
		return
	}

	httpx.WriteJSON(w, http.StatusOK, linksdk.BeginLinkResponse{
		AuthorizationURL: authURL,
		ExpiresInSeconds: int(h.PendingTTL.Seconds()),
	})
}

// HandleGet returns the binding summary for a principal.
//
//	@Summary		Get a player's binding
//	@Tags			Link
//	@Produce		json
//	@Param			principal_id	path		string	true	"Player UUID"
//	@Success		200				{object}	linksdk.BindingSummary
//	@Failure		404				{object}	linksdk.ErrorResponse	"Player is not linked"
//	@Security		BearerAuth
//	@Router			/v1/link/{principal_id} [get]
func (h *LinkHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	principalID, ok := principalFromPath(w, r)
	if !ok {
		return
	}

	summary, err := h.LinkService.Summary(ctx, principalID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, linksdk.ErrorCodeNotFound, "player is not linked")
			return
		}
		slogx.FromContext(ctx).Error("failed to load binding", "error", err)
		writeError(w, http.StatusInternalServerError, linksdk.ErrorCodeServerError, "failed to load binding")
		return
	}

	httpx.WriteJSON(w, http.StatusOK, toSummary(summary))
}

// HandleUnbind removes a player's binding.
//
//	@Summary		Unlink a player
//	@Tags			Link
//	@Produce		json
//	@Param			principal_id	path	string	true	"Player UUID"
//	@Success		204				"Binding removed"
//	@Failure		404				{object}	linksdk.ErrorResponse	"Player is not linked"
//	@Security		BearerAuth
//	@Router			/v1/link/{principal_id} [delete]
func (h *LinkHandler) HandleUnbind(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	principalID, ok := principalFromPath(w, r)
	if !ok {
		return
	}

	removed, err := h.LinkService.Unbind(ctx, principalID)
	if err != nil {
		slogx.FromContext(ctx).Error("failed to remove binding", "error", err)
		writeError(w, http.StatusInternalServerError, linksdk.ErrorCodeServerError, "failed to remove binding")
		return
	}
	if !removed {
		writeError(w, http.StatusNotFound, linksdk.ErrorCodeNotFound, "player is not linked")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// HandleList returns one page of bindings, newest first.
//
//	@Summary		List bindings
//	@Tags			Link
//	@Produce		json
//	@Param			page		query		int	false	"Page number, 1-based"	default(1)
//	@Param			page_size	query		int	false	"Page size"				default(10)
//	@Success		200			{object}	linksdk.ListBindingsResponse
//	@Security		BearerAuth
//	@Router			/v1/link [get]
func (h *LinkHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	pageSize, _ := strconv.Atoi(r.URL.Query().Get("page_size"))
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 10
	}

	summaries, err := h.LinkService.List(ctx, page, pageSize)
	if err != nil {
		slogx.FromContext(ctx).Error("failed to list bindings", "error", err)
		writeError(w, http.StatusInternalServerError, linksdk.ErrorCodeServerError, "failed to list bindings")
		return
	}

	status, err := h.LinkService.Status(ctx)
	if err != nil {
		slogx.FromContext(ctx).Error("failed to count bindings", "error", err)
		writeError(w, http.StatusInternalServerError, linksdk.ErrorCodeServerError, "failed to list bindings")
		return
	}

	resp := linksdk.ListBindingsResponse{
		Bindings: make([]linksdk.BindingSummary, 0, len(summaries)),
		Page:     page,
		PageSize: pageSize,
		Total:    status.BoundPlayers,
	}
	for _, s := range summaries {
		resp.Bindings = append(resp.Bindings, toSummary(s))
	}

	httpx.WriteJSON(w, http.StatusOK, resp)
}

// HandleDisplayName records a player's current name against their binding.
//
//	@Summary		Update display name
//	@Tags			Link
//	@Accept			json
//	@Produce		json
//	@Param			principal_id	path	string								true	"Player UUID"
//	@Param			request			body	linksdk.UpdateDisplayNameRequest	true	"New display name"
//	@Success		204				"Display name updated"
//	@Failure		404				{object}	linksdk.ErrorResponse	"Player is not linked"
//	@Security		BearerAuth
//	@Router			/v1/link/{principal_id}/display-name [put]
func (h *LinkHandler) HandleDisplayName(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	principalID, ok := principalFromPath(w, r)
	if !ok {
		return
	}

	var req linksdk.UpdateDisplayNameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.DisplayName == "" {
		writeError(w, http.StatusBadRequest, linksdk.ErrorCodeInvalidRequest, "display_name is required")
		return
	}

	updated, err := h.LinkService.UpdateDisplayName(ctx, principalID, req.DisplayName)
	if err != nil {
		slogx.FromContext(ctx).Error("failed to update display name", "error", err)
		writeError(w, http.StatusInternalServerError, linksdk.ErrorCodeServerError, "failed to update display name")
		return
	}
	if !updated {
		writeError(w, http.StatusNotFound, linksdk.ErrorCodeNotFound, "player is not linked")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// HandleRefresh runs a refresh-token grant for the player and stores the new
// tokens.
//
//	@Summary		Refresh a player's provider tokens
//	@Tags			Link
//	@Produce		json
//	@Param			principal_id	path	string	true	"Player UUID"
//	@Success		204				"Tokens refreshed"
//	@Failure		404				{object}	linksdk.ErrorResponse	"Player is not linked"
//	@Failure		409				{object}	linksdk.ErrorResponse	"Binding has no refresh token"
//	@Failure		502				{object}	linksdk.ErrorResponse	"Provider rejected the refresh"
//	@Security		BearerAuth
//	@Router			/v1/link/{principal_id}/refresh [post]
func (h *LinkHandler) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	principalID, ok := principalFromPath(w, r)
	if !ok {
		return
	}

	err := h.LinkService.RefreshTokens(ctx, principalID)
	switch {
	case err == nil:
		w.WriteHeader(http.StatusNoContent)
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, linksdk.ErrorCodeNotFound, "player is not linked")
	case errors.Is(err, service.ErrNoRefreshToken):
		writeError(w, http.StatusConflict, linksdk.ErrorCodeConflict, "the provider did not issue a refresh token for this binding")
	default:
		slogx.FromContext(ctx).Warn("token refresh failed", "principal_id", principalID, "error", err)
		writeError(w, http.StatusBadGateway, linksdk.ErrorCodeServerError, "the identity provider rejected the refresh")
	}
}

// HandleStatus reports the service status snapshot.
//
//	@Summary		Service status
//	@Tags			Link
//	@Produce		json
//	@Success		200	{object}	linksdk.StatusResponse
//	@Security		BearerAuth
//	@Router			/v1/link/status [get]
func (h *LinkHandler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	status, err := h.LinkService.Status(ctx)
	if err != nil {
		slogx.FromContext(ctx).Error("failed to collect status", "error", err)
		writeError(w, http.StatusInternalServerError, linksdk.ErrorCodeServerError, "failed to collect status")
		return
	}

	httpx.WriteJSON(w, http.StatusOK, linksdk.StatusResponse{
		Database:              status.Database,
		PendingAuthorizations: status.PendingAuthorizations,
		BoundPlayers:          status.BoundPlayers,
	})
}
