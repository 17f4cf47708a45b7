package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusMapping(t *testing.T) {
	tests := []struct {
		name string
		err  *Error
		want int
	}{
		{"validation", Validation("missing"), http.StatusBadRequest},
		{"authentication", Authentication("no bearer", nil), http.StatusUnauthorized},
		{"not found", NotFound("cliente not found"), http.StatusNotFound},
		{"precondition", Precondition("not connected", nil), http.StatusBadRequest},
		{"provider exchange", ProviderExchange(`{"error":"invalid_grant"}`, nil), http.StatusBadRequest},
		{"delivery", Delivery("rejected", nil), http.StatusInternalServerError},
		{"persistence", Persistence("write failed", nil), http.StatusInternalServerError},
		{"internal", Internal("boom", nil), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Status)
		})
	}
}

func TestError_WrapsCause(t *testing.T) {
	cause := errors.New("connection refused")
	err := Persistence("failed to store tokens", cause)

	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "persistence_error")
	assert.Contains(t, err.Error(), "connection refused")
}

func TestFrom(t *testing.T) {
	assert.Nil(t, From(nil))

	wrapped := fmt.Errorf("dispatch: %w", NotFound("cliente not found"))
	e := From(wrapped)
	require.NotNil(t, e)
	assert.Equal(t, KindNotFound, e.Kind)
	assert.Equal(t, "cliente not found", e.Message)

	e = From(errors.New("plain"))
	assert.Equal(t, KindInternal, e.Kind)
	assert.Equal(t, http.StatusInternalServerError, e.Status)
}

func TestKindOf(t *testing.T) {
	err := fmt.Errorf("outer: %w", Delivery("rejected", nil))
	assert.Equal(t, KindDelivery, KindOf(err))
	assert.Equal(t, KindInternal, KindOf(errors.New("plain")))
	assert.Equal(t, Kind(""), KindOf(nil))
}

func TestErrorsIs_MatchesKind(t *testing.T) {
	err := Validation("recipient has no email on file")
	assert.ErrorIs(t, err, &Error{Kind: KindValidation})
	assert.ErrorIs(t, err, &Error{Kind: KindValidation, Message: "recipient has no email on file"})
	assert.NotErrorIs(t, err, &Error{Kind: KindNotFound})
}
