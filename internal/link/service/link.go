package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/aussiebroadwan/minelink/internal/link/domain"
	"github.com/aussiebroadwan/minelink/internal/link/notify"
	"github.com/aussiebroadwan/minelink/internal/link/provider"
	"github.com/aussiebroadwan/minelink/internal/link/registry"
	"github.com/aussiebroadwan/minelink/internal/link/store"
	"github.com/aussiebroadwan/minelink/pkg/slogx"
)

// CustomField is an administrator-configured extraction from the profile
// document, surfaced in binding summaries.
type CustomField struct {
	Name string
	Path string // dotted path into the userinfo document
}

// FieldConfig tells the service where identity data lives inside the
// provider's profile document.
type FieldConfig struct {
	IDField       string // external subject identifier, required in profiles
	UsernameField string
	EmailField    string
	Custom        []CustomField
}

// Defaults fills unset paths with the conventional userinfo keys.
func (f FieldConfig) Defaults() FieldConfig {
	if f.IDField == "" {
		f.IDField = "id"
	}
	if f.UsernameField == "" {
		f.UsernameField = "name"
	}
	if f.EmailField == "" {
		f.EmailField = "email"
	}
	return f
}

// LinkService orchestrates the authorization handshake end to end: it mints
// state tokens, drives the callback state machine and owns every mutation of
// the binding store.
type LinkService struct {
	Store    store.Store
	Provider provider.Provider
	Registry *registry.Registry
	Notifier notify.Notifier
	Fields   FieldConfig
}

// BindResult is the outcome of a successfully completed callback.
type BindResult struct {
	PrincipalID uuid.UUID
	DisplayName string
	ExternalID  string
	Username    string // extracted via FieldConfig.UsernameField
	Email       string
}

// BindingSummary is the host-facing view of a binding. Tokens and the raw
// profile snapshot stay inside the service.
type BindingSummary struct {
	PrincipalID uuid.UUID         `json:"principal_id"`
	DisplayName string            `json:"display_name"`
	ExternalID  string            `json:"external_id"`
	Username    string            `json:"username,omitempty"`
	Email       string            `json:"email,omitempty"`
	Custom      map[string]string `json:"custom,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
}

// Status is a snapshot for the admin status surface.
type Status struct {
	Database              string `json:"database"`
	PendingAuthorizations int    `json:"pending_authorizations"`
	BoundPlayers          int64  `json:"bound_players"`
}

// BeginAuthorization mints a single-use state token for the principal and
// returns the provider URL the player should open in a browser.
func (s *LinkService) BeginAuthorization(ctx context.Context, principalID uuid.UUID, displayName string) (string, error) {
	state, err := s.Registry.Begin(principalID, displayName)
	if err != nil {
		return "", err
	}

	slogx.FromContext(ctx).Info("authorization started",
		"principal_id", principalID,
		"display_name", displayName,
	)

	return s.Provider.AuthorizationURL(state), nil
}

// CompleteCallback drives the callback from a validated (code, state) pair to
// a terminal outcome. The caller has already handled method and query-shape
// validation. Any returned error is a *RejectError; on either outcome the
// principal's session is notified asynchronously once the state token was
// valid.
func (s *LinkService) CompleteCallback(ctx context.Context, code, state string) (*BindResult, error) {
	log := slogx.FromContext(ctx)

	pending, ok := s.Registry.Consume(state)
	if !ok {
		log.Warn("callback with unknown or expired state")
		return nil, reject(RejectInvalidOrExpiredState, "authorization request is unknown or has expired, please start again", nil)
	}

	result, err := s.completeFor(ctx, pending, code)
	if err != nil {
		if re, ok := AsReject(err); ok {
			s.notifyAsync(notify.Message{
				PrincipalID: pending.PrincipalID,
				Success:     false,
				Reason:      re.Reason,
			})
		}
		return nil, err
	}

	s.notifyAsync(notify.Message{
		PrincipalID: result.PrincipalID,
		Success:     true,
		Username:    result.Username,
		Email:       result.Email,
	})
	return result, nil
}

func (s *LinkService) completeFor(ctx context.Context, pending domain.PendingAuthorization, code string) (*BindResult, error) {
	log := slogx.FromContext(ctx)
	fields := s.Fields.Defaults()

	tokens, err := s.Provider.ExchangeCode(ctx, code)
	if err != nil {
		log.Warn("token exchange failed", "principal_id", pending.PrincipalID, "error", err)
		return nil, reject(RejectTokenExchangeFailed, "could not obtain an access token from the identity provider", err)
	}

	profile, rawProfile, err := s.Provider.FetchProfile(ctx, tokens.AccessToken)
	if err != nil {
		log.Warn("profile fetch failed", "principal_id", pending.PrincipalID, "error", err)
		return nil, reject(RejectProfileFetchFailed, "could not fetch your profile from the identity provider", err)
	}

	if !profile.Has(fields.IDField) {
		log.Warn("profile missing identity field",
			"principal_id", pending.PrincipalID,
			"field", fields.IDField,
		)
		return nil, reject(RejectMissingIdentityField, "the identity provider did not return an account identifier", nil)
	}
	externalID := profile.Extract(fields.IDField, "")

	// Pre-check before persisting. This is an optimization for a clean
	// error message; the store's unique constraint is the real arbiter
	// when two principals race for the same identity.
	existing, err := s.Store.Bindings().GetByExternalID(ctx, externalID)
	switch {
	case err == nil:
		if existing.PrincipalID != pending.PrincipalID {
			log.Warn("external identity already bound",
				"principal_id", pending.PrincipalID,
				"bound_to", existing.PrincipalID,
			)
			return nil, reject(RejectIdentityAlreadyBound, "this account is already linked to another player", nil)
		}
	case errors.Is(err, store.ErrNotFound):
		// First binding for this identity.
	default:
		log.Error("binding lookup failed", "error", err)
		return nil, reject(RejectStorageError, "a storage error occurred, please try again later", err)
	}

	// The snapshot is the provider's response body as received, not a
	// re-marshal of the parsed form.
	err = s.Store.Bindings().Save(ctx, store.SaveParams{
		PrincipalID:     pending.PrincipalID,
		DisplayName:     pending.DisplayName,
		ExternalID:      externalID,
		AccessToken:     tokens.AccessToken,
		RefreshToken:    tokens.RefreshToken,
		ExpiresIn:       tokens.ExpiresIn,
		ProfileSnapshot: rawProfile,
	})
	if err != nil {
		if errors.Is(err, store.ErrConflict) {
			// Lost the race between the pre-check and the insert.
			return nil, reject(RejectIdentityAlreadyBound, "this account is already linked to another player", err)
		}
		log.Error("binding save failed", "principal_id", pending.PrincipalID, "error", err)
		return nil, reject(RejectStorageError, "a storage error occurred, please try again later", err)
	}

	result := &BindResult{
		PrincipalID: pending.PrincipalID,
		DisplayName: pending.DisplayName,
		ExternalID:  externalID,
		Username:    profile.Extract(fields.UsernameField, ""),
		Email:       profile.Extract(fields.EmailField, ""),
	}

	log.Info("binding completed",
		"principal_id", result.PrincipalID,
		"external_id", result.ExternalID,
	)
	return result, nil
}

// IsBound reports whether the principal currently has a binding.
func (s *LinkService) IsBound(ctx context.Context, principalID uuid.UUID) (bool, error) {
	return s.Store.Bindings().IsPrincipalBound(ctx, principalID)
}

// Summary returns the host-facing view of a principal's binding, or
// store.ErrNotFound when unbound.
func (s *LinkService) Summary(ctx context.Context, principalID uuid.UUID) (*BindingSummary, error) {
	binding, err := s.Store.Bindings().Get(ctx, principalID)
	if err != nil {
		return nil, err
	}
	return s.summarize(binding), nil
}

func (s *LinkService) summarize(binding domain.Binding) *BindingSummary {
	fields := s.Fields.Defaults()

	summary := &BindingSummary{
		PrincipalID: binding.PrincipalID,
		DisplayName: binding.DisplayName,
		ExternalID:  binding.ExternalID,
		CreatedAt:   binding.CreatedAt,
	}

	profile, err := provider.ParseProfile(binding.ProfileSnapshot)
	if err != nil {
		// Snapshots are validated on write; an unreadable one only costs
		// the extracted fields.
		return summary
	}

	summary.Username = profile.Extract(fields.UsernameField, "")
	summary.Email = profile.Extract(fields.EmailField, "")

	if len(fields.Custom) > 0 {
		summary.Custom = make(map[string]string, len(fields.Custom))
		for _, f := range fields.Custom {
			summary.Custom[f.Name] = profile.Extract(f.Path, "")
		}
	}
	return summary
}

// Unbind removes the principal's binding and reports whether one existed.
func (s *LinkService) Unbind(ctx context.Context, principalID uuid.UUID) (bool, error) {
	removed, err := s.Store.Bindings().Delete(ctx, principalID)
	if err != nil {
		return false, err
	}
	if removed {
		slogx.FromContext(ctx).Info("binding removed", "principal_id", principalID)
	}
	return removed, nil
}

// List returns a page of binding summaries, newest first.
func (s *LinkService) List(ctx context.Context, page, pageSize int) ([]*BindingSummary, error) {
	bindings, err := s.Store.Bindings().List(ctx, page, pageSize)
	if err != nil {
		return nil, err
	}

	summaries := make([]*BindingSummary, 0, len(bindings))
	for _, b := range bindings {
		summaries = append(summaries, s.summarize(b))
	}
	return summaries, nil
}

// UpdateDisplayName records the principal's current name. Reports whether a
// binding existed.
func (s *LinkService) UpdateDisplayName(ctx context.Context, principalID uuid.UUID, displayName string) (bool, error) {
	return s.Store.Bindings().UpdateDisplayName(ctx, principalID, displayName)
}

// RefreshTokens performs an on-demand refresh-token grant for the principal
// and persists the new tokens. There is no background renewal; the host
// decides when a refresh is worth attempting.
func (s *LinkService) RefreshTokens(ctx context.Context, principalID uuid.UUID) error {
	binding, err := s.Store.Bindings().Get(ctx, principalID)
	if err != nil {
		return err
	}
	if binding.RefreshToken == "" {
		return ErrNoRefreshToken
	}

	tokens, err := s.Provider.Refresh(ctx, binding.RefreshToken)
	if err != nil {
		return err
	}

	// Providers may omit refresh_token from the refresh response, in which
	// case the previous one remains valid.
	refreshToken := tokens.RefreshToken
	if refreshToken == "" {
		refreshToken = binding.RefreshToken
	}

	updated, err := s.Store.Bindings().UpdateTokens(ctx, principalID, tokens.AccessToken, refreshToken, tokens.ExpiresIn)
	if err != nil {
		return err
	}
	if !updated {
		// Unbound between the read and the write; treat as gone.
		return store.ErrNotFound
	}

	slogx.FromContext(ctx).Info("tokens refreshed", "principal_id", principalID)
	return nil
}

// Status reports the storage driver, in-flight handshakes and bound total.
func (s *LinkService) Status(ctx context.Context) (*Status, error) {
	count, err := s.Store.Bindings().Count(ctx)
	if err != nil {
		return nil, err
	}
	return &Status{
		Database:              s.Store.Driver(),
		PendingAuthorizations: s.Registry.PendingCount(),
		BoundPlayers:          count,
	}, nil
}

func (s *LinkService) notifyAsync(msg notify.Message) {
	if s.Notifier == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s.Notifier.Notify(ctx, msg)
	}()
}
