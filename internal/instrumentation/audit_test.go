package instrumentation

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/lawconnect/lawconnect/internal/apperr"
	"github.com/lawconnect/lawconnect/internal/logging"
)

const (
	testUserID    = "7f1c2d3e-user"
	testClienteID = "c1"
	testRecipient = "x@y.com"
)

func attrMap(attrs []slog.Attr) map[string]string {
	m := make(map[string]string, len(attrs))
	for _, a := range attrs {
		m[a.Key] = a.Value.String()
	}
	return m
}

func TestAuditEvent_CompleteSuccess(t *testing.T) {
	e := NewAuditEvent(AuditOperationDispatch).
		WithUser(testUserID).
		WithCliente(testClienteID).
		WithRecipient(testRecipient).
		WithMode(ModeImmediate).
		WithReminder("r-1").
		Complete(nil)

	if !e.Success {
		t.Error("Success should be true")
	}
	if e.Status() != StatusSuccess {
		t.Errorf("Status() = %q, want %q", e.Status(), StatusSuccess)
	}
	if e.ErrorKind != "" || e.Error != "" {
		t.Errorf("unexpected error fields: %q %q", e.ErrorKind, e.Error)
	}
	if e.Duration < 0 {
		t.Errorf("Duration = %v, want >= 0", e.Duration)
	}
}

func TestAuditEvent_CompleteWithClassifiedError(t *testing.T) {
	e := NewAuditEvent(AuditOperationDispatch).
		Complete(apperr.Delivery("gmail rejected the message", errors.New("raw 400")))

	if e.Success {
		t.Error("Success should be false")
	}
	if e.ErrorKind != string(apperr.KindDelivery) {
		t.Errorf("ErrorKind = %q, want %q", e.ErrorKind, apperr.KindDelivery)
	}
	if e.Error != "gmail rejected the message" {
		t.Errorf("Error = %q", e.Error)
	}
}

func TestAuditEvent_CompleteWithPlainError(t *testing.T) {
	e := NewAuditEvent(AuditOperationRefresh).Complete(errors.New("boom"))

	if e.ErrorKind != string(apperr.KindInternal) {
		t.Errorf("ErrorKind = %q, want %q", e.ErrorKind, apperr.KindInternal)
	}
	if e.Status() != StatusError {
		t.Errorf("Status() = %q, want %q", e.Status(), StatusError)
	}
}

func TestAuditEvent_LogAttrsHashIdentifiers(t *testing.T) {
	e := NewAuditEvent(AuditOperationDispatch).
		WithUser(testUserID).
		WithCliente(testClienteID).
		WithRecipient(testRecipient).
		WithMode(ModeDeferred).
		Complete(nil)

	m := attrMap(e.LogAttrs())

	if m["operation"] != AuditOperationDispatch {
		t.Errorf("operation = %q", m["operation"])
	}
	if !strings.HasPrefix(m["user_hash"], "user:") {
		t.Errorf("user_hash = %q, want user: prefix", m["user_hash"])
	}
	if !strings.HasPrefix(m["cliente"], "cliente:") {
		t.Errorf("cliente = %q, want cliente: prefix", m["cliente"])
	}
	if m["recipient_domain"] != "y.com" {
		t.Errorf("recipient_domain = %q, want y.com", m["recipient_domain"])
	}
	if m["recipient_hash"] != logging.AnonymizeEmail("X@Y.com") {
		t.Errorf("recipient_hash = %q, want case-insensitive hash of the address", m["recipient_hash"])
	}
	if m["mode"] != ModeDeferred {
		t.Errorf("mode = %q", m["mode"])
	}
	for k, v := range m {
		if strings.Contains(v, testUserID) || strings.Contains(v, testRecipient) {
			t.Errorf("attribute %s leaks raw identifier: %q", k, v)
		}
	}
}

func TestAuditEvent_LogAuditAttrsIncludeRawIdentifiers(t *testing.T) {
	e := NewAuditEvent(AuditOperationExchange).
		WithUser(testUserID).
		WithRecipient(testRecipient).
		Complete(nil)
	e.TraceID = "abc123"
	e.SpanID = "span789"

	m := attrMap(e.LogAuditAttrs())

	if m["user_id"] != testUserID {
		t.Errorf("user_id = %q, want %q", m["user_id"], testUserID)
	}
	if m["recipient"] != testRecipient {
		t.Errorf("recipient = %q, want %q", m["recipient"], testRecipient)
	}
	if m["trace_id"] != "abc123" || m["span_id"] != "span789" {
		t.Errorf("trace context = %q/%q", m["trace_id"], m["span_id"])
	}
}

func TestAuditEvent_WithSpanContext_NoSpan(t *testing.T) {
	e := NewAuditEvent("test").WithSpanContext(context.Background())

	if e.TraceID != "" || e.SpanID != "" {
		t.Errorf("expected empty trace context, got %q/%q", e.TraceID, e.SpanID)
	}
}

func TestAuditLogger_Log(t *testing.T) {
	var buf bytes.Buffer
	al := NewAuditLogger(slog.New(slog.NewTextHandler(&buf, nil)))

	al.Log(context.Background(), NewAuditEvent(AuditOperationExchange).WithUser(testUserID).Complete(nil))
	al.Log(context.Background(), NewAuditEvent(AuditOperationRefresh).WithUser(testUserID).
		Complete(apperr.ProviderExchange("invalid_grant", nil)))

	out := buf.String()
	if !strings.Contains(out, "level=INFO msg=audit_event") {
		t.Errorf("missing success line in %q", out)
	}
	if !strings.Contains(out, "level=WARN msg=audit_event_failed") {
		t.Errorf("missing failure line in %q", out)
	}
	if !strings.Contains(out, "component=audit") {
		t.Errorf("missing component attribute in %q", out)
	}
	if strings.Contains(out, testUserID) {
		t.Errorf("raw user id logged without IncludePII: %q", out)
	}
}

func TestAuditLogger_IncludePII(t *testing.T) {
	var buf bytes.Buffer
	al := NewAuditLoggerWithConfig(slog.New(slog.NewTextHandler(&buf, nil)),
		AuditLoggingConfig{Enabled: true, IncludePII: true})

	al.Log(context.Background(), NewAuditEvent(AuditOperationExchange).WithUser(testUserID).Complete(nil))

	if !strings.Contains(buf.String(), "user_id="+testUserID) {
		t.Errorf("expected raw user id, got %q", buf.String())
	}
}

func TestAuditLogger_Disabled(t *testing.T) {
	var buf bytes.Buffer
	al := NewAuditLoggerWithConfig(slog.New(slog.NewTextHandler(&buf, nil)), AuditLoggingConfig{Enabled: false})

	al.Log(context.Background(), NewAuditEvent(AuditOperationExchange).Complete(nil))

	if buf.Len() != 0 {
		t.Errorf("expected no output, got %q", buf.String())
	}

	var nilLogger *AuditLogger
	nilLogger.Log(context.Background(), NewAuditEvent(AuditOperationExchange).Complete(nil))
}
