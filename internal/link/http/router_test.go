package http

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/aussiebroadwan/minelink/pkg/httpx"
	"github.com/aussiebroadwan/minelink/pkg/linksdk"
)

var testSecret = []byte("test-api-secret")

func newTestRouter(t *testing.T) *Router {
	t.Helper()

	svc := newTestLinkService(t, linkedProvider())
	r := NewRouter(testSecret, "/callback", "test", 10*time.Minute, svc.Store, slog.Default())
	r.LinkService = svc
	r.ApplyRoutes()
	return r
}

func mintToken(t *testing.T, scope string) string {
	t.Helper()

	now := time.Now()
	claims := httpx.APIClaims{
		Scope: scope,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "test-host",
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Minute)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(testSecret)
	require.NoError(t, err)
	return token
}

func doJSON(t *testing.T, r *Router, method, target, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(buf)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, target, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestAPIRequiresToken(t *testing.T) {
	r := newTestRouter(t)

	rec := doJSON(t, r, http.MethodPost, "/v1/link/begin", "", linksdk.BeginLinkRequest{})
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = doJSON(t, r, http.MethodGet, "/v1/link/"+uuid.NewString(), "garbage-token", nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAdminEndpointsRequireScope(t *testing.T) {
	r := newTestRouter(t)
	token := mintToken(t, "") // authenticated but unscoped

	rec := doJSON(t, r, http.MethodGet, "/v1/link", token, nil)
	require.Equal(t, http.StatusForbidden, rec.Code)

	rec = doJSON(t, r, http.MethodGet, "/v1/link/status", token, nil)
	require.Equal(t, http.StatusForbidden, rec.Code)
}

func TestSDKAgainstRouter(t *testing.T) {
	r := newTestRouter(t)
	srv := httptest.NewServer(r)
	defer srv.Close()

	ctx := context.Background()
	admin := linksdk.NewClient(srv.URL, "console", testSecret, "link:admin")
	principal := uuid.NewString()

	begin, err := admin.BeginLink(ctx, principal, "Steve")
	require.NoError(t, err)
	require.NotEmpty(t, begin.AuthorizationURL)

	// The scoped client can reach the admin surfaces.
	status, err := admin.Status(ctx)
	require.NoError(t, err)
	require.Equal(t, "sqlite", status.Database)
	require.Equal(t, 1, status.PendingAuthorizations)

	list, err := admin.ListBindings(ctx, 1, 10)
	require.NoError(t, err)
	require.Empty(t, list.Bindings)

	// An unscoped client can manage its own player but not list or inspect.
	host := linksdk.NewClient(srv.URL, "game-server", testSecret)

	_, err = host.GetBinding(ctx, principal)
	var apiErr *linksdk.APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, http.StatusNotFound, apiErr.StatusCode)

	_, err = host.ListBindings(ctx, 1, 10)
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, http.StatusForbidden, apiErr.StatusCode)

	_, err = host.Status(ctx)
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, http.StatusForbidden, apiErr.StatusCode)
}

func TestBeginValidation(t *testing.T) {
	r := newTestRouter(t)
	token := mintToken(t, "")

	rec := doJSON(t, r, http.MethodPost, "/v1/link/begin", token, linksdk.BeginLinkRequest{
		PrincipalID: "not-a-uuid",
		DisplayName: "Steve",
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var er linksdk.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &er))
	require.Equal(t, linksdk.ErrorCodeInvalidRequest, er.Error)
}

func TestBeginAndGetFlow(t *testing.T) {
	r := newTestRouter(t)
	token := mintToken(t, "")
	principal := uuid.New()

	rec := doJSON(t, r, http.MethodPost, "/v1/link/begin", token, linksdk.BeginLinkRequest{
		PrincipalID: principal.String(),
		DisplayName: "Steve",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var begin linksdk.BeginLinkResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &begin))
	require.Contains(t, begin.AuthorizationURL, "state=")
	require.Equal(t, 600, begin.ExpiresInSeconds)

	// Not linked yet.
	rec = doJSON(t, r, http.MethodGet, "/v1/link/"+principal.String(), token, nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetUnbindAndListFlow(t *testing.T) {
	r := newTestRouter(t)
	token := mintToken(t, "link:admin")
	principal := uuid.New()

	// Complete a binding through the callback.
	state := beginState(t, r.LinkService, principal)
	cb := httptest.NewRequest(http.MethodGet, "/callback?code=abc&state="+state, nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, cb)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, r, http.MethodGet, "/v1/link/"+principal.String(), token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var summary linksdk.BindingSummary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &summary))
	require.Equal(t, principal.String(), summary.PrincipalID)
	require.Equal(t, "ext-1", summary.ExternalID)
	require.Equal(t, "steve", summary.Username)

	rec = doJSON(t, r, http.MethodGet, "/v1/link?page=1&page_size=10", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var list linksdk.ListBindingsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list.Bindings, 1)
	require.EqualValues(t, 1, list.Total)

	rec = doJSON(t, r, http.MethodGet, "/v1/link/status", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var status linksdk.StatusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	require.Equal(t, "sqlite", status.Database)
	require.EqualValues(t, 1, status.BoundPlayers)

	rec = doJSON(t, r, http.MethodDelete, "/v1/link/"+principal.String(), token, nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = doJSON(t, r, http.MethodDelete, "/v1/link/"+principal.String(), token, nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUpdateDisplayName(t *testing.T) {
	r := newTestRouter(t)
	token := mintToken(t, "")
	principal := uuid.New()

	state := beginState(t, r.LinkService, principal)
	cb := httptest.NewRequest(http.MethodGet, "/callback?code=abc&state="+state, nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, cb)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, r, http.MethodPut, "/v1/link/"+principal.String()+"/display-name", token,
		linksdk.UpdateDisplayNameRequest{DisplayName: "Herobrine"})
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = doJSON(t, r, http.MethodPut, "/v1/link/"+principal.String()+"/display-name", token,
		linksdk.UpdateDisplayNameRequest{})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, r, http.MethodGet, "/v1/link/"+principal.String(), token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var summary linksdk.BindingSummary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &summary))
	require.Equal(t, "Herobrine", summary.DisplayName)
}

func TestHealthEndpoints(t *testing.T) {
	r := newTestRouter(t)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/livez", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var health linksdk.HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &health))
	require.Equal(t, "ok", health.Status)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &health))
	require.NotNil(t, health.Checks)
	require.Equal(t, "ok", health.Checks.Database)
}
