package provider

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// DefaultTimeout bounds every call to the identity provider.
const DefaultTimeout = 15 * time.Second

// Config carries the endpoints and credentials of a generic OAuth2 provider.
type Config struct {
	AuthorizeURL string
	TokenURL     string
	UserInfoURL  string
	ClientID     string
	ClientSecret string
	RedirectURI  string
	Scope        string // optional, space-delimited
	Timeout      time.Duration
}

// Generic implements Provider for any standard OAuth2 authorization-code
// provider.
type Generic struct {
	cfg        Config
	httpClient *http.Client
}

var _ Provider = (*Generic)(nil)

// NewGeneric creates a provider client with a bounded request timeout.
func NewGeneric(cfg Config) *Generic {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Generic{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (g *Generic) AuthorizationURL(state string) string {
	q := url.Values{
		"response_type": {"code"},
		"client_id":     {g.cfg.ClientID},
		"redirect_uri":  {g.cfg.RedirectURI},
		"state":         {state},
	}
	if g.cfg.Scope != "" {
		q.Set("scope", g.cfg.Scope)
	}

	sep := "?"
	if strings.Contains(g.cfg.AuthorizeURL, "?") {
		sep = "&"
	}
	return g.cfg.AuthorizeURL + sep + q.Encode()
}

func (g *Generic) ExchangeCode(ctx context.Context, code string) (*TokenResponse, error) {
	data := url.Values{
		"grant_type":    {"authorization_code"},
		"code":          {code},
		"client_id":     {g.cfg.ClientID},
		"client_secret": {g.cfg.ClientSecret},
		"redirect_uri":  {g.cfg.RedirectURI},
	}
	return g.requestToken(ctx, data)
}

func (g *Generic) Refresh(ctx context.Context, refreshToken string) (*TokenResponse, error) {
	data := url.Values{
		"grant_type":    {"refresh_token"},
		"refresh_token": {refreshToken},
		"client_id":     {g.cfg.ClientID},
		"client_secret": {g.cfg.ClientSecret},
	}

	resp, err := g.requestToken(ctx, data)
	if err != nil {
		return nil, err
	}
	// Providers may omit the refresh token on rotation; keep the old one.
	if resp.RefreshToken == "" {
		resp.RefreshToken = refreshToken
	}
	return resp, nil
}

func (g *Generic) FetchProfile(ctx context.Context, accessToken string) (Profile, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.cfg.UserInfoURL, nil)
	if err != nil {
		return nil, nil, transportErr(err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/json")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, nil, transportErr(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, transportErr(err)
	}

	profile, err := ParseProfile(body)
	if err != nil {
		return nil, nil, transportErr(err)
	}
	return profile, body, nil
}

// requestToken posts a form-encoded grant request and interprets the body.
// The body is parsed regardless of HTTP status: many providers return OAuth2
// error payloads with non-200 codes and those must surface as KindDenied,
// not as a transport failure.
func (g *Generic) requestToken(ctx context.Context, data url.Values) (*TokenResponse, error) {
	req, err := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		g.cfg.TokenURL,
		strings.NewReader(data.Encode()),
	)
	if err != nil {
		return nil, transportErr(err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, transportErr(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, transportErr(err)
	}

	var payload struct {
		AccessToken      string `json:"access_token"`
		RefreshToken     string `json:"refresh_token"`
		ExpiresIn        *int64 `json:"expires_in"`
		TokenType        string `json:"token_type"`
		Error            string `json:"error"`
		ErrorDescription string `json:"error_description"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, transportErr(err)
	}

	switch {
	case payload.AccessToken != "":
		out := &TokenResponse{
			AccessToken:  payload.AccessToken,
			RefreshToken: payload.RefreshToken,
			ExpiresIn:    3600,
			TokenType:    "Bearer",
		}
		if payload.ExpiresIn != nil {
			out.ExpiresIn = *payload.ExpiresIn
		}
		if payload.TokenType != "" {
			out.TokenType = payload.TokenType
		}
		return out, nil

	case payload.Error != "":
		desc := payload.ErrorDescription
		if desc == "" {
			desc = "unknown error"
		}
		return nil, &Error{Kind: KindDenied, Code: payload.Error, Description: desc}

	default:
		return nil, &Error{Kind: KindMalformedResponse, Description: "token response missing access_token and error"}
	}
}
