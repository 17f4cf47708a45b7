package google

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

// DefaultTokenLifetime is assumed when the provider omits expires_in.
const DefaultTokenLifetime = time.Hour

// Config configures the OAuth client.
type Config struct {
	ClientID     string
	ClientSecret string
	// TokenURL overrides the Google token endpoint (tests, emulators).
	TokenURL string
	Scopes   []string
	// HTTPClient is used for token endpoint calls. Defaults to a client with a 30s timeout.
	HTTPClient *http.Client
}

// Token is the result of a successful code or refresh exchange.
type Token struct {
	AccessToken string
	// RefreshToken is empty when the provider did not issue a new one.
	RefreshToken string
	ExpiresAt    time.Time
	Scope        string
}

// ProviderError is a rejection from the identity provider's token endpoint.
type ProviderError struct {
	StatusCode int    // HTTP status of the token endpoint, 0 for transport failures
	Code       string // OAuth error code, e.g. invalid_grant
	Body       string // raw response body
	Err        error
}

func (e *ProviderError) Error() string {
	if e.Body != "" {
		return e.Body
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return fmt.Sprintf("token endpoint returned status %d", e.StatusCode)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// Client performs server-to-server token exchanges with the identity provider.
type Client struct {
	conf       oauth2.Config
	httpClient *http.Client
	now        func() time.Time
}

// NewClient creates a Client. Client credentials are sent in the request
// body, never in a header.
func NewClient(cfg Config) *Client {
	endpoint := google.Endpoint
	if cfg.TokenURL != "" {
		endpoint.TokenURL = cfg.TokenURL
	}
	endpoint.AuthStyle = oauth2.AuthStyleInParams

	scopes := cfg.Scopes
	if len(scopes) == 0 {
		scopes = DefaultOAuthScopes
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}

	return &Client{
		conf: oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			Endpoint:     endpoint,
			Scopes:       scopes,
		},
		httpClient: httpClient,
		now:        time.Now,
	}
}

// AuthCodeURL returns the consent URL the browser is sent to. Offline
// access and forced consent make the provider issue a refresh token.
func (c *Client) AuthCodeURL(state, redirectURI string) string {
	conf := c.conf
	conf.RedirectURL = redirectURI
	return conf.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce)
}

// Exchange trades an authorization code for tokens
// (grant_type=authorization_code).
func (c *Client) Exchange(ctx context.Context, code, redirectURI string) (*Token, error) {
	conf := c.conf
	conf.RedirectURL = redirectURI

	tok, err := conf.Exchange(c.withHTTPClient(ctx), code)
	if err != nil {
		return nil, providerError(err)
	}
	return c.convert(tok, ""), nil
}

// Refresh mints a new access token from a refresh token
// (grant_type=refresh_token).
func (c *Client) Refresh(ctx context.Context, refreshToken string) (*Token, error) {
	if refreshToken == "" {
		return nil, &ProviderError{Err: errors.New("no refresh token stored")}
	}

	// an empty access token forces the token source to refresh
	ts := c.conf.TokenSource(c.withHTTPClient(ctx), &oauth2.Token{RefreshToken: refreshToken})
	tok, err := ts.Token()
	if err != nil {
		return nil, providerError(err)
	}
	return c.convert(tok, refreshToken), nil
}

func (c *Client) withHTTPClient(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)
}

// convert maps an oauth2 token. oauth2 carries the previous refresh token
// forward when the response has none; that case is reported as empty.
func (c *Client) convert(tok *oauth2.Token, previousRefresh string) *Token {
	expiresAt := tok.Expiry
	if expiresAt.IsZero() {
		expiresAt = c.now().Add(DefaultTokenLifetime)
	}

	refresh := tok.RefreshToken
	if refresh == previousRefresh {
		refresh = ""
	}

	var scope string
	if s, ok := tok.Extra("scope").(string); ok {
		scope = strings.TrimSpace(s)
	}

	return &Token{
		AccessToken:  tok.AccessToken,
		RefreshToken: refresh,
		ExpiresAt:    expiresAt,
		Scope:        scope,
	}
}

func providerError(err error) *ProviderError {
	var rErr *oauth2.RetrieveError
	if errors.As(err, &rErr) {
		pe := &ProviderError{Code: rErr.ErrorCode, Body: strings.TrimSpace(string(rErr.Body)), Err: err}
		if rErr.Response != nil {
			pe.StatusCode = rErr.Response.StatusCode
		}
		return pe
	}
	return &ProviderError{Err: err}
}
