package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func userInfoServer(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		if r.Header.Get("Authorization") != "Bearer good" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		assert.Equal(t, "anon-key", r.Header.Get("apikey"))
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestRemoteAuthenticator(t *testing.T) {
	srv := userInfoServer(t, http.StatusOK, `{"id":"user-123","email":"abogada@estudio.es","role":"authenticated"}`)
	a := NewRemoteAuthenticator(srv.URL, "anon-key", srv.Client())

	id, err := a.Authenticate(context.Background(), "good")
	require.NoError(t, err)
	assert.Equal(t, "user-123", id.UserID)
	assert.Equal(t, "abogada@estudio.es", id.Email)
}

func TestRemoteAuthenticator_SubFallback(t *testing.T) {
	srv := userInfoServer(t, http.StatusOK, `{"sub":"google-sub","email":"a@b.com"}`)
	a := NewRemoteAuthenticator(srv.URL, "anon-key", srv.Client())

	id, err := a.Authenticate(context.Background(), "good")
	require.NoError(t, err)
	assert.Equal(t, "google-sub", id.UserID)
}

func TestRemoteAuthenticator_Rejected(t *testing.T) {
	srv := userInfoServer(t, http.StatusOK, `{"id":"user-123"}`)
	a := NewRemoteAuthenticator(srv.URL, "anon-key", srv.Client())

	_, err := a.Authenticate(context.Background(), "bad")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestRemoteAuthenticator_NoUserID(t *testing.T) {
	srv := userInfoServer(t, http.StatusOK, `{"email":"a@b.com"}`)
	a := NewRemoteAuthenticator(srv.URL, "anon-key", srv.Client())

	_, err := a.Authenticate(context.Background(), "good")
	assert.ErrorIs(t, err, ErrInvalidToken)
}
