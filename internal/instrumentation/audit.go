package instrumentation

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/lawconnect/lawconnect/internal/apperr"
	"github.com/lawconnect/lawconnect/internal/logging"
)

// Audit operations.
const (
	AuditOperationExchange = "oauth.exchange"
	AuditOperationRefresh  = "oauth.refresh"
	AuditOperationDispatch = "email.dispatch"
)

// AuditEvent captures one caller-visible operation for the audit trail:
// a token exchange, a token refresh or an email dispatch, successful or not.
//
// UserID, ClienteID and Recipient are PII. LogAttrs hashes them;
// LogAuditAttrs does not.
type AuditEvent struct {
	Operation string

	UserID    string
	ClienteID string
	Recipient string

	// Dispatch only
	Mode       string // immediate or deferred
	ReminderID string

	StartTime time.Time
	Duration  time.Duration
	Success   bool
	ErrorKind string
	Error     string

	TraceID string
	SpanID  string
}

// NewAuditEvent creates an event with timing started.
// Call Complete when the operation finishes.
func NewAuditEvent(operation string) *AuditEvent {
	return &AuditEvent{
		Operation: operation,
		StartTime: time.Now(),
	}
}

func (e *AuditEvent) WithUser(userID string) *AuditEvent {
	e.UserID = userID
	return e
}

func (e *AuditEvent) WithCliente(clienteID string) *AuditEvent {
	e.ClienteID = clienteID
	return e
}

func (e *AuditEvent) WithRecipient(email string) *AuditEvent {
	e.Recipient = email
	return e
}

func (e *AuditEvent) WithMode(mode string) *AuditEvent {
	e.Mode = mode
	return e
}

func (e *AuditEvent) WithReminder(id string) *AuditEvent {
	e.ReminderID = id
	return e
}

// WithSpanContext copies trace and span ids from the span in ctx.
func (e *AuditEvent) WithSpanContext(ctx context.Context) *AuditEvent {
	sc := trace.SpanFromContext(ctx).SpanContext()
	if sc.IsValid() {
		e.TraceID = sc.TraceID().String()
		e.SpanID = sc.SpanID().String()
	}
	return e
}

// Complete records the duration and outcome. A nil err marks success.
func (e *AuditEvent) Complete(err error) *AuditEvent {
	e.Duration = time.Since(e.StartTime)
	e.Success = err == nil
	if err != nil {
		ae := apperr.From(err)
		e.ErrorKind = string(ae.Kind)
		e.Error = ae.Message
	}
	return e
}

// Status returns "success" or "error".
func (e *AuditEvent) Status() string {
	if e.Success {
		return StatusSuccess
	}
	return StatusError
}

// RecipientDomain returns the domain of the recipient address.
func (e *AuditEvent) RecipientDomain() string {
	return logging.ExtractDomain(e.Recipient)
}

// LogAttrs returns attributes with identifiers hashed. The recipient is
// logged as its domain plus a hash, so repeated sends to one address correlate.
func (e *AuditEvent) LogAttrs() []slog.Attr {
	attrs := []slog.Attr{
		slog.String("operation", e.Operation),
		slog.String("user_hash", logging.AnonymizeID("user", e.UserID)),
		slog.Duration("duration", e.Duration),
		slog.Bool("success", e.Success),
	}
	if e.ClienteID != "" {
		attrs = append(attrs, slog.String("cliente", logging.AnonymizeID("cliente", e.ClienteID)))
	}
	if e.Recipient != "" {
		attrs = append(attrs,
			slog.String("recipient_domain", e.RecipientDomain()),
			slog.String("recipient_hash", logging.AnonymizeEmail(e.Recipient)))
	}
	return e.appendCommon(attrs)
}

// LogAuditAttrs returns attributes with raw identifiers. Only use it for
// audit streams with restricted access.
func (e *AuditEvent) LogAuditAttrs() []slog.Attr {
	attrs := []slog.Attr{
		slog.String("operation", e.Operation),
		slog.String("user_id", e.UserID),
		slog.Duration("duration", e.Duration),
		slog.Bool("success", e.Success),
	}
	if e.ClienteID != "" {
		attrs = append(attrs, slog.String("cliente_id", e.ClienteID))
	}
	if e.Recipient != "" {
		attrs = append(attrs, slog.String("recipient", e.Recipient))
	}
	attrs = e.appendCommon(attrs)
	if e.SpanID != "" {
		attrs = append(attrs, slog.String("span_id", e.SpanID))
	}
	return attrs
}

func (e *AuditEvent) appendCommon(attrs []slog.Attr) []slog.Attr {
	if e.Mode != "" {
		attrs = append(attrs, slog.String("mode", e.Mode))
	}
	if e.ReminderID != "" {
		attrs = append(attrs, slog.String("reminder_id", e.ReminderID))
	}
	if e.TraceID != "" {
		attrs = append(attrs, slog.String("trace_id", e.TraceID))
	}
	if e.ErrorKind != "" {
		attrs = append(attrs, slog.String("error_kind", e.ErrorKind))
	}
	if e.Error != "" {
		attrs = append(attrs, slog.String("error", e.Error))
	}
	return attrs
}

// AuditLogger writes AuditEvents to a slog.Logger.
type AuditLogger struct {
	logger     *slog.Logger
	includePII bool
	enabled    bool
}

// NewAuditLogger creates an enabled AuditLogger that hashes identifiers.
func NewAuditLogger(logger *slog.Logger) *AuditLogger {
	return NewAuditLoggerWithConfig(logger, AuditLoggingConfig{Enabled: true})
}

// NewAuditLoggerWithConfig creates a new AuditLogger with the given configuration.
func NewAuditLoggerWithConfig(logger *slog.Logger, config AuditLoggingConfig) *AuditLogger {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuditLogger{
		logger:     logger.With(slog.String("component", "audit")),
		includePII: config.IncludePII,
		enabled:    config.Enabled,
	}
}

// Log writes e at INFO on success and WARN on failure. A nil AuditLogger is a no-op.
func (al *AuditLogger) Log(ctx context.Context, e *AuditEvent) {
	if al == nil || !al.enabled || e == nil {
		return
	}

	var attrs []slog.Attr
	if al.includePII {
		attrs = e.LogAuditAttrs()
	} else {
		attrs = e.LogAttrs()
	}

	if e.Success {
		al.logger.LogAttrs(ctx, slog.LevelInfo, "audit_event", attrs...)
	} else {
		al.logger.LogAttrs(ctx, slog.LevelWarn, "audit_event_failed", attrs...)
	}
}
