package logging

import (
	"bytes"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAttributeHelpers(t *testing.T) {
	tests := []struct {
		name    string
		attr    slog.Attr
		wantKey string
		wantVal string
	}{
		{"operation", Operation("oauth.exchange"), KeyOperation, "oauth.exchange"},
		{"endpoint", Endpoint("/email/send"), KeyEndpoint, "/email/send"},
		{"status", Status(StatusSuccess), KeyStatus, "success"},
		{"request id", RequestID("abc"), KeyRequestID, "abc"},
		{"recipient", RecipientDomain("ana@estudio.es"), KeyRecipient, "estudio.es"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantKey, tt.attr.Key)
			assert.Equal(t, tt.wantVal, tt.attr.Value.String())
		})
	}
}

func TestErr(t *testing.T) {
	attr := Err(errors.New("boom"))
	assert.Equal(t, KeyError, attr.Key)
	assert.Equal(t, "boom", attr.Value.String())

	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	logger.Info("request finished", Err(nil))
	assert.NotContains(t, buf.String(), `"`+KeyError+`"`)
	assert.Contains(t, buf.String(), `"msg":"request finished"`)
}

func TestAnonymizeID(t *testing.T) {
	a := AnonymizeID("user", "u-123")
	b := AnonymizeID("user", "u-123")
	c := AnonymizeID("user", "u-124")

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.True(t, strings.HasPrefix(a, "user:"))
	assert.NotContains(t, a, "u-123")
	assert.Len(t, a, len("user:")+16)
	assert.Empty(t, AnonymizeID("user", ""))
}

func TestAnonymizeEmail_CaseInsensitive(t *testing.T) {
	assert.Equal(t, AnonymizeEmail("Ana@Estudio.es"), AnonymizeEmail(" ana@estudio.es "))
	assert.Empty(t, AnonymizeEmail(""))
}

func TestUserHashAndCliente(t *testing.T) {
	attr := UserHash("user-1")
	assert.Equal(t, KeyUserHash, attr.Key)
	assert.NotContains(t, attr.Value.String(), "user-1")

	attr = Cliente("c1")
	assert.Equal(t, KeyCliente, attr.Key)
	assert.True(t, strings.HasPrefix(attr.Value.String(), "cliente:"))
}

func TestSanitizeToken(t *testing.T) {
	assert.Equal(t, "<empty>", SanitizeToken(""))
	assert.Equal(t, "[token:12 chars]", SanitizeToken("ya29.secret!"))
	assert.NotContains(t, SanitizeToken("ya29.secret!"), "ya29")
}

func TestExtractDomain(t *testing.T) {
	tests := []struct {
		email string
		want  string
	}{
		{"x@y.com", "y.com"},
		{"", ""},
		{"not-an-email", ""},
		{"a@b@c", ""},
		{"ana@", ""},
		{" Ana@Estudio.ES ", "estudio.es"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ExtractDomain(tt.email), tt.email)
	}
}

func TestWithOperationAndEndpoint(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	WithEndpoint(WithOperation(logger, "oauth.refresh"), "/oauth/refresh").Info("done")

	assert.Contains(t, buf.String(), "operation=oauth.refresh")
	assert.Contains(t, buf.String(), "endpoint=/oauth/refresh")
}
