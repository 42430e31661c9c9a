// Package google talks to the Google OAuth, Sheets and Drive REST APIs on
// behalf of portal accounts and the shared admin account.
package google

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/scukconnect/clientportal/internal/server/config"
	"github.com/scukconnect/clientportal/internal/server/oauthtokens"
)

const (
	defaultAuthEndpoint  = "https://accounts.google.com/o/oauth2/auth"
	defaultTokenEndpoint = "https://oauth2.googleapis.com/token"

	defaultExpiresIn = 3600 * time.Second
)

// DefaultScopes are the scopes the portal asks for: read/write sheet access
// plus file upload to Drive.
var DefaultScopes = []string{
	"https://www.googleapis.com/auth/spreadsheets",
	"https://www.googleapis.com/auth/drive.file",
}

// OAuthError is a structured error response from the token endpoint, e.g.
// {"error": "invalid_scope", "error_description": "..."}.
type OAuthError struct {
	StatusCode  int
	Code        string `json:"error"`
	Description string `json:"error_description"`
}

func (e *OAuthError) Error() string {
	if e.Description != "" {
		return fmt.Sprintf("oauth error %s: %s", e.Code, e.Description)
	}
	return fmt.Sprintf("oauth error %s (http %d)", e.Code, e.StatusCode)
}

type OAuthConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURI  string
	Scopes       []string

	authEndpoint  string
	tokenEndpoint string
	client        *http.Client
}

func NewOAuthConfig(cfg *config.Config) *OAuthConfig {
	return &OAuthConfig{
		ClientID:      cfg.GoogleClientID,
		ClientSecret:  cfg.GoogleClientSecret,
		RedirectURI:   cfg.GoogleRedirectURI,
		Scopes:        DefaultScopes,
		authEndpoint:  defaultAuthEndpoint,
		tokenEndpoint: defaultTokenEndpoint,
		client:        &http.Client{Timeout: 30 * time.Second},
	}
}

// NewStaticOAuthConfig builds a config from explicit credentials with an
// optional token-endpoint override (empty keeps the Google endpoint).
func NewStaticOAuthConfig(clientID, clientSecret, redirectURI, tokenEndpoint string) *OAuthConfig {
	if tokenEndpoint == "" {
		tokenEndpoint = defaultTokenEndpoint
	}
	return &OAuthConfig{
		ClientID:      clientID,
		ClientSecret:  clientSecret,
		RedirectURI:   redirectURI,
		Scopes:        DefaultScopes,
		authEndpoint:  defaultAuthEndpoint,
		tokenEndpoint: tokenEndpoint,
		client:        &http.Client{Timeout: 30 * time.Second},
	}
}

// Configured reports whether OAuth client credentials are set.
func (c *OAuthConfig) Configured() bool {
	return strings.TrimSpace(c.ClientID) != "" && strings.TrimSpace(c.ClientSecret) != ""
}

// AuthorizationURL builds the consent-screen URL for the given state value.
// Offline access with forced consent so a refresh token is always issued.
func (c *OAuthConfig) AuthorizationURL(state string) string {
	q := url.Values{}
	q.Set("response_type", "code")
	q.Set("client_id", c.ClientID)
	q.Set("redirect_uri", c.RedirectURI)
	q.Set("scope", strings.Join(c.Scopes, " "))
	q.Set("access_type", "offline")
	q.Set("include_granted_scopes", "true")
	q.Set("prompt", "consent")
	q.Set("state", state)
	return c.authEndpoint + "?" + q.Encode()
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	Scope        string `json:"scope"`
	ExpiresIn    int    `json:"expires_in"`
}

// ExchangeCode trades an authorization code for tokens via a direct form
// POST to the token endpoint. Google may grant more scopes than requested;
// whatever it returns is stored as-is.
func (c *OAuthConfig) ExchangeCode(ctx context.Context, code string) (*oauthtokens.Token, error) {
	form := url.Values{}
	form.Set("code", code)
	form.Set("client_id", c.ClientID)
	form.Set("client_secret", c.ClientSecret)
	form.Set("redirect_uri", c.RedirectURI)
	form.Set("grant_type", "authorization_code")

	return c.postToken(ctx, form)
}

// RefreshToken obtains a fresh access token. Google does not return the
// refresh token again, so the caller keeps the stored one.
func (c *OAuthConfig) RefreshToken(ctx context.Context, refreshToken string) (*oauthtokens.Token, error) {
	form := url.Values{}
	form.Set("refresh_token", refreshToken)
	form.Set("client_id", c.ClientID)
	form.Set("client_secret", c.ClientSecret)
	form.Set("grant_type", "refresh_token")

	return c.postToken(ctx, form)
}

func (c *OAuthConfig) postToken(ctx context.Context, form url.Values) (*oauthtokens.Token, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.tokenEndpoint,
		strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("error creating token request: %v", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("error requesting token endpoint: %v", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("error reading token response: %v", err)
	}

	if resp.StatusCode != http.StatusOK {
		oaErr := &OAuthError{StatusCode: resp.StatusCode}
		if err := json.Unmarshal(body, oaErr); err != nil || oaErr.Code == "" {
			oaErr.Code = http.StatusText(resp.StatusCode)
		}
		return nil, oaErr
	}

	var tr tokenResponse
	if err := json.Unmarshal(body, &tr); err != nil {
		return nil, fmt.Errorf("error decoding token response: %v", err)
	}
	if tr.AccessToken == "" {
		return nil, fmt.Errorf("no access token in response")
	}

	expiresIn := defaultExpiresIn
	if tr.ExpiresIn > 0 {
		expiresIn = time.Duration(tr.ExpiresIn) * time.Second
	}
	scope := tr.Scope
	if scope == "" {
		scope = strings.Join(c.Scopes, " ")
	}

	return &oauthtokens.Token{
		AccessToken:  tr.AccessToken,
		RefreshToken: tr.RefreshToken,
		TokenType:    tr.TokenType,
		Scope:        scope,
		ExpiresAt:    time.Now().Add(expiresIn),
	}, nil
}
