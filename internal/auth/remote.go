package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// RemoteAuthenticator validates a bearer credential by presenting it to the
// identity provider's user endpoint.
type RemoteAuthenticator struct {
	userInfoURL string
	apiKey      string
	client      *http.Client
}

// NewRemoteAuthenticator creates a RemoteAuthenticator. apiKey, when set, is
// sent in the apikey header. A nil client defaults to a 10s timeout.
func NewRemoteAuthenticator(userInfoURL, apiKey string, client *http.Client) *RemoteAuthenticator {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &RemoteAuthenticator{userInfoURL: userInfoURL, apiKey: apiKey, client: client}
}

type userInfo struct {
	ID    string `json:"id"`
	Sub   string `json:"sub"`
	Email string `json:"email"`
}

// Authenticate implements Authenticator.
func (a *RemoteAuthenticator) Authenticate(ctx context.Context, token string) (*Identity, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.userInfoURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create userinfo request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if a.apiKey != "" {
		req.Header.Set("apikey", a.apiKey)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("userinfo request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("%w: userinfo returned status %d", ErrInvalidToken, resp.StatusCode)
	}

	var info userInfo
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&info); err != nil {
		return nil, fmt.Errorf("failed to decode userinfo: %w", err)
	}

	id := info.ID
	if id == "" {
		id = info.Sub
	}
	if id == "" {
		return nil, fmt.Errorf("%w: userinfo has no user id", ErrInvalidToken)
	}
	return &Identity{UserID: id, Email: info.Email}, nil
}
