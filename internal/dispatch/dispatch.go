// Package dispatch implements the email dispatch flow: it resolves the
// recipient cliente, obtains a fresh access token, and either delivers the
// message through the mail API right away or defers it, recording exactly
// one reminder for every request that succeeds.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/lawconnect/lawconnect/internal/apperr"
	"github.com/lawconnect/lawconnect/internal/gmail"
	"github.com/lawconnect/lawconnect/internal/instrumentation"
	"github.com/lawconnect/lawconnect/internal/logging"
	"github.com/lawconnect/lawconnect/internal/store"
	"github.com/lawconnect/lawconnect/internal/tokens"
)

// Response messages.
const (
	MsgSent      = "Email enviado correctamente"
	MsgScheduled = "Recordatorio programado correctamente"
)

// ErrMailRequiresCalendar means the user has no provider credential. Mail
// rides on the calendar grant, so sending requires the calendar integration.
var ErrMailRequiresCalendar = errors.New("calendar/mail integration not connected")

// TokenSource yields a usable access token for a user.
type TokenSource interface {
	EnsureFresh(ctx context.Context, userID string) (string, error)
}

// ScopedStore opens a store accessor bound to one user.
type ScopedStore interface {
	Scoped(userID string) store.Scoped
}

// Request is a dispatch request from an authenticated user.
type Request struct {
	ClienteID string
	Subject   string
	Message   string
	// ScheduledFor defers delivery when it is later than now.
	ScheduledFor *time.Time
}

// Result is the outcome of a successful dispatch.
type Result struct {
	Reminder *store.Reminder
	Mode     string
	Message  string
}

// Config configures a Service.
type Config struct {
	Store   ScopedStore
	Tokens  TokenSource
	Sender  gmail.Sender
	From    string
	Metrics *instrumentation.Metrics
	Audit   *instrumentation.AuditLogger
	Logger  *slog.Logger
	Now     func() time.Time
}

// Service runs dispatch requests.
type Service struct {
	store   ScopedStore
	tokens  TokenSource
	sender  gmail.Sender
	from    string
	metrics *instrumentation.Metrics
	audit   *instrumentation.AuditLogger
	logger  *slog.Logger
	now     func() time.Time
}

// New creates a Service.
func New(cfg Config) *Service {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Service{
		store:   cfg.Store,
		tokens:  cfg.Tokens,
		sender:  cfg.Sender,
		from:    cfg.From,
		metrics: cfg.Metrics,
		audit:   cfg.Audit,
		logger:  logger.With(slog.String("component", "dispatch")),
		now:     now,
	}
}

// Dispatch sends or defers req on behalf of userID. userID must come from
// the authenticated credential.
func (s *Service) Dispatch(ctx context.Context, userID string, req Request) (res *Result, err error) {
	event := instrumentation.NewAuditEvent(instrumentation.AuditOperationDispatch).
		WithUser(userID).
		WithCliente(req.ClienteID)
	mode := instrumentation.ModeUnknown
	defer func() {
		event.WithMode(mode)
		if res != nil {
			event.WithReminder(res.Reminder.ID)
		}
		s.audit.Log(ctx, event.WithSpanContext(ctx).Complete(err))
		s.metrics.RecordDispatch(ctx, mode, string(apperr.KindOf(err)))
	}()

	if req.ClienteID == "" || strings.TrimSpace(req.Subject) == "" || strings.TrimSpace(req.Message) == "" {
		return nil, apperr.Validation(tokens.MsgMissingParams)
	}

	logger := s.logger.With(logging.UserHash(userID), logging.Cliente(req.ClienteID))
	scoped := s.store.Scoped(userID)

	cliente, err := scoped.GetCliente(ctx, req.ClienteID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperr.NotFound("cliente not found")
	}
	if err != nil {
		return nil, apperr.Persistence("failed to load cliente", err)
	}
	recipient := strings.TrimSpace(cliente.Email)
	if recipient == "" {
		return nil, apperr.Validation("recipient has no email on file")
	}
	event.WithRecipient(recipient)

	// Deferred reminders are delivered later from the stored fields, so both
	// modes reject a message the mail API could not carry.
	msg := &gmail.Message{From: s.from, To: recipient, Subject: req.Subject, Body: req.Message}
	if err := msg.Validate(); err != nil {
		return nil, apperr.Validation(err.Error())
	}

	accessToken, err := s.tokens.EnsureFresh(ctx, userID)
	if errors.Is(err, tokens.ErrNotConnected) {
		return nil, apperr.Precondition(ErrMailRequiresCalendar.Error(), ErrMailRequiresCalendar)
	}
	if err != nil {
		return nil, apperr.From(err)
	}

	now := s.now()
	reminder := &store.Reminder{
		ClienteID:      cliente.ID,
		Subject:        req.Subject,
		Message:        req.Message,
		RecipientEmail: recipient,
	}

	if req.ScheduledFor != nil && req.ScheduledFor.After(now) {
		mode = instrumentation.ModeDeferred
		reminder.Status = store.ReminderPending
		reminder.ScheduledFor = *req.ScheduledFor
		if err := s.record(ctx, scoped, reminder); err != nil {
			return nil, err
		}
		logger.InfoContext(ctx, "reminder scheduled", slog.Time("scheduled_for", reminder.ScheduledFor))
		return &Result{Reminder: reminder, Mode: mode, Message: MsgScheduled}, nil
	}

	mode = instrumentation.ModeImmediate
	messageID, err := s.send(ctx, accessToken, msg)
	if err != nil {
		logger.WarnContext(ctx, "mail API rejected message", logging.RecipientDomain(recipient), logging.Err(err))
		return nil, apperr.Delivery(fmt.Sprintf("failed to send email: %s", err.Error()), err)
	}

	sentAt := now
	reminder.Status = store.ReminderSent
	reminder.ScheduledFor = now
	reminder.SentAt = &sentAt
	if err := s.record(ctx, scoped, reminder); err != nil {
		logger.ErrorContext(ctx, "email delivered but reminder not recorded",
			slog.String("message_id", messageID), logging.Err(err))
		return nil, err
	}

	logger.InfoContext(ctx, "email sent",
		slog.String("message_id", messageID),
		logging.RecipientDomain(recipient))
	return &Result{Reminder: reminder, Mode: mode, Message: MsgSent}, nil
}

func (s *Service) send(ctx context.Context, accessToken string, msg *gmail.Message) (string, error) {
	ctx, span := instrumentation.StartMailSpan(ctx)
	defer span.End()

	start := time.Now()
	id, err := s.sender.Send(ctx, accessToken, msg)
	status := instrumentation.StatusSuccess
	if err != nil {
		status = instrumentation.StatusError
		instrumentation.SetSpanError(span, err)
	} else {
		instrumentation.SetSpanSuccess(span)
	}
	s.metrics.RecordMailSend(ctx, status, msg.To, time.Since(start))
	return id, err
}

func (s *Service) record(ctx context.Context, scoped store.Scoped, r *store.Reminder) error {
	if err := scoped.InsertReminder(ctx, r); err != nil {
		return apperr.Persistence("failed to record reminder", err)
	}
	s.metrics.RecordReminderCreated(ctx, string(r.Status))
	return nil
}

// ParseScheduledFor parses the optional scheduledFor field. RFC 3339 is
// accepted, as is a zone-less "2006-01-02T15:04[:05]" local datetime, read as UTC.
func ParseScheduledFor(raw string) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02T15:04"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return &t, nil
		}
	}
	return nil, apperr.Validation("scheduledFor must be an RFC 3339 timestamp")
}
