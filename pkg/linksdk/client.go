package linksdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/aussiebroadwan/minelink/pkg/httpx"
)

// Client is a host-side client for the link service API. The host (game
// server plugin, console tooling) signs its own HS256 tokens with the shared
// API secret, so there is no token endpoint to talk to.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client

	secret  []byte
	subject string
	scope   string
}

// NewClient creates a link service client that signs requests with the shared
// API secret. Subject identifies the caller in logs and rate limit keys.
// Scopes are baked into every minted token; admin surfaces (ListBindings,
// Status) need "link:admin".
func NewClient(baseURL, subject string, secret []byte, scopes ...string) *Client {
	return &Client{
		BaseURL: strings.TrimSuffix(baseURL, "/"),
		HTTPClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		secret:  secret,
		subject: subject,
		scope:   strings.Join(scopes, " "),
	}
}

// mintToken signs a short-lived access token for a single API call.
func (c *Client) mintToken() (string, error) {
	now := time.Now()
	claims := httpx.APIClaims{
		Scope: c.scope,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   c.subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Minute)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
}

func (c *Client) doJSON(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		buf, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		body = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	token, err := c.mintToken()
	if err != nil {
		return fmt.Errorf("failed to sign api token: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return errorFromResponse(resp)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}

// BeginLink starts an authorization handshake and returns the URL the player
// should open in a browser.
func (c *Client) BeginLink(ctx context.Context, principalID, displayName string) (*BeginLinkResponse, error) {
	var out BeginLinkResponse
	err := c.doJSON(ctx, http.MethodPost, "/v1/link/begin", BeginLinkRequest{
		PrincipalID: principalID,
		DisplayName: displayName,
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// GetBinding fetches the binding summary for a principal. Returns an
// *APIError with status 404 when the principal is unbound.
func (c *Client) GetBinding(ctx context.Context, principalID string) (*BindingSummary, error) {
	var out BindingSummary
	if err := c.doJSON(ctx, http.MethodGet, "/v1/link/"+url.PathEscape(principalID), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Unbind removes a principal's binding.
func (c *Client) Unbind(ctx context.Context, principalID string) error {
	return c.doJSON(ctx, http.MethodDelete, "/v1/link/"+url.PathEscape(principalID), nil, nil)
}

// ListBindings fetches one page of bindings, newest first.
func (c *Client) ListBindings(ctx context.Context, page, pageSize int) (*ListBindingsResponse, error) {
	q := url.Values{}
	if page > 0 {
		q.Set("page", strconv.Itoa(page))
	}
	if pageSize > 0 {
		q.Set("page_size", strconv.Itoa(pageSize))
	}
	path := "/v1/link"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var out ListBindingsResponse
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateDisplayName records a player's current name against their binding.
func (c *Client) UpdateDisplayName(ctx context.Context, principalID, displayName string) error {
	return c.doJSON(ctx, http.MethodPut, "/v1/link/"+url.PathEscape(principalID)+"/display-name",
		UpdateDisplayNameRequest{DisplayName: displayName}, nil)
}

// RefreshTokens asks the service to run a refresh grant for the principal.
func (c *Client) RefreshTokens(ctx context.Context, principalID string) error {
	return c.doJSON(ctx, http.MethodPost, "/v1/link/"+url.PathEscape(principalID)+"/refresh", nil, nil)
}

// Status fetches the admin status snapshot.
func (c *Client) Status(ctx context.Context) (*StatusResponse, error) {
	var out StatusResponse
	if err := c.doJSON(ctx, http.MethodGet, "/v1/link/status", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
