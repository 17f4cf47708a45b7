package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type pingFunc func(context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

func getHealth(t *testing.T, h http.Handler, path string) (int, HealthResponse) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	var body HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return rec.Code, body
}

func TestHealth_Liveness(t *testing.T) {
	h := NewHealthChecker(nil)
	code, body := getHealth(t, h.LivenessHandler(), "/healthz")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, healthStatusOK, body.Status)
}

func TestHealth_Readiness(t *testing.T) {
	var storeErr error
	sc := NewServerContext(context.Background(), pingFunc(func(context.Context) error { return storeErr }))
	h := NewHealthChecker(sc)

	code, body := getHealth(t, h.ReadinessHandler(), "/readyz")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, healthStatusOK, body.Checks["store"])

	storeErr = errors.New("connection refused")
	code, body = getHealth(t, h.ReadinessHandler(), "/readyz")
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, healthStatusUnavailable, body.Checks["store"])

	storeErr = nil
	h.SetReady(false)
	code, body = getHealth(t, h.ReadinessHandler(), "/readyz")
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, healthStatusNotReady, body.Checks["ready"])

	h.SetReady(true)
	require.NoError(t, sc.Shutdown())
	code, body = getHealth(t, h.ReadinessHandler(), "/readyz")
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, healthStatusShuttingDown, body.Checks["shutdown"])
	assert.Error(t, sc.Context().Err())
}

func TestServerContext_ShutdownIdempotent(t *testing.T) {
	sc := NewServerContext(context.Background(), nil)
	assert.False(t, sc.IsShutdown())
	assert.NoError(t, sc.PingStore(context.Background()))
	require.NoError(t, sc.Shutdown())
	require.NoError(t, sc.Shutdown())
	assert.True(t, sc.IsShutdown())
}

func TestHealth_RegisteredOnAPIHandler(t *testing.T) {
	h := newTestServer(t, &fakeTokens{}, &fakeDispatcher{}, func(o *Options) {
		o.Health = NewHealthChecker(nil)
	})
	code, _ := getHealth(t, h, "/healthz")
	assert.Equal(t, http.StatusOK, code)
}
