// Package auth validates the bearer credential presented by callers of the
// dispatch endpoint and resolves it to a user identity. The identity comes
// from the credential alone; user ids supplied in request bodies are never
// trusted.
package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/lawconnect/lawconnect/internal/apperr"
)

var (
	// ErrMissingToken is returned when the request carries no Authorization header.
	ErrMissingToken = errors.New("missing authorization header")
	// ErrMalformedHeader is returned when the Authorization header is not a Bearer credential.
	ErrMalformedHeader = errors.New("invalid authorization header format")
	// ErrInvalidToken is returned when the credential is rejected.
	ErrInvalidToken = errors.New("invalid token")
)

// Identity is the authenticated caller.
type Identity struct {
	UserID string
	Email  string
}

// Authenticator resolves a bearer credential to an Identity.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*Identity, error)
}

// BearerToken extracts the credential from an "Authorization: Bearer <token>" header.
func BearerToken(r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", ErrMissingToken
	}

	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return "", ErrMalformedHeader
	}
	token := strings.TrimSpace(parts[1])
	if token == "" {
		return "", ErrMalformedHeader
	}
	return token, nil
}

// FromRequest authenticates r with a. Every failure is an Authentication error.
func FromRequest(ctx context.Context, a Authenticator, r *http.Request) (*Identity, error) {
	token, err := BearerToken(r)
	if err != nil {
		return nil, apperr.Authentication(err.Error(), err)
	}

	id, err := a.Authenticate(ctx, token)
	if err != nil {
		return nil, apperr.Authentication("invalid or expired credential", err)
	}
	if id.UserID == "" {
		return nil, apperr.Authentication("credential carries no user", ErrInvalidToken)
	}
	return id, nil
}

type contextKey string

const identityContextKey contextKey = "identity"

// ContextWithIdentity returns a copy of ctx carrying id.
func ContextWithIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, identityContextKey, id)
}

// IdentityFromContext returns the identity stored by ContextWithIdentity.
func IdentityFromContext(ctx context.Context) (*Identity, bool) {
	id, ok := ctx.Value(identityContextKey).(*Identity)
	return id, ok && id != nil
}

// Options selects and configures an Authenticator.
type Options struct {
	JWTSecret   string
	UserInfoURL string
	APIKey      string
	HTTPClient  *http.Client
}

// New returns a JWTAuthenticator when a secret is configured and a
// RemoteAuthenticator otherwise.
func New(opts Options) (Authenticator, error) {
	if opts.JWTSecret != "" {
		return NewJWTAuthenticator(opts.JWTSecret)
	}
	if opts.UserInfoURL != "" {
		return NewRemoteAuthenticator(opts.UserInfoURL, opts.APIKey, opts.HTTPClient), nil
	}
	return nil, errors.New("no bearer authentication configured: set a jwt secret or a userinfo url")
}
