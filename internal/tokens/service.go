package tokens

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/lawconnect/lawconnect/internal/apperr"
	"github.com/lawconnect/lawconnect/internal/google"
	"github.com/lawconnect/lawconnect/internal/instrumentation"
	"github.com/lawconnect/lawconnect/internal/logging"
	"github.com/lawconnect/lawconnect/internal/store"
)

// MsgMissingParams is returned when a required request field is empty.
const MsgMissingParams = "Faltan parámetros requeridos"

// ErrNotConnected is returned by EnsureFresh when the user never completed
// the OAuth exchange.
var ErrNotConnected = errors.New("no oauth tokens stored for user")

// Provider is the identity provider's token endpoint.
type Provider interface {
	Exchange(ctx context.Context, code, redirectURI string) (*google.Token, error)
	Refresh(ctx context.Context, refreshToken string) (*google.Token, error)
}

// ExchangeRequest is the input of Exchange.
type ExchangeRequest struct {
	Code        string
	UserID      string
	RedirectURI string
}

// AccessToken is a usable access token and its expiry.
type AccessToken struct {
	Token     string
	ExpiresAt time.Time
}

// Config configures a Service.
type Config struct {
	Store    store.Privileged
	Provider Provider
	Metrics  *instrumentation.Metrics
	Audit    *instrumentation.AuditLogger
	Logger   *slog.Logger
	// Now overrides the clock (tests).
	Now func() time.Time
}

// Service exchanges and refreshes provider tokens.
type Service struct {
	store    store.Privileged
	provider Provider
	metrics  *instrumentation.Metrics
	audit    *instrumentation.AuditLogger
	logger   *slog.Logger
	now      func() time.Time
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
		store:    cfg.Store,
		provider: cfg.Provider,
		metrics:  cfg.Metrics,
		audit:    cfg.Audit,
		logger:   logger.With(slog.String("component", "tokens")),
		now:      now,
	}
}

// Exchange trades a one-time authorization code for tokens and upserts them
// for req.UserID. Nothing is persisted when the provider rejects the code.
func (s *Service) Exchange(ctx context.Context, req ExchangeRequest) (err error) {
	event := instrumentation.NewAuditEvent(instrumentation.AuditOperationExchange).WithUser(req.UserID)
	defer func() { s.audit.Log(ctx, event.WithSpanContext(ctx).Complete(err)) }()

	if req.Code == "" || req.UserID == "" || req.RedirectURI == "" {
		return apperr.Validation(MsgMissingParams)
	}

	tok, err := s.callProvider(ctx, instrumentation.OperationExchange, func(ctx context.Context) (*google.Token, error) {
		return s.provider.Exchange(ctx, req.Code, req.RedirectURI)
	})
	if err != nil {
		return err
	}

	rec := &store.TokenRecord{
		UserID:       req.UserID,
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		ExpiresAt:    tok.ExpiresAt,
		Scope:        tok.Scope,
	}
	if err := s.store.UpsertToken(ctx, rec); err != nil {
		s.logger.ErrorContext(ctx, "failed to store tokens",
			logging.Operation(instrumentation.OperationExchange),
			logging.UserHash(req.UserID),
			logging.Err(err))
		return apperr.Persistence("failed to store tokens", err)
	}

	if tok.RefreshToken == "" {
		s.logger.WarnContext(ctx, "provider issued no refresh token",
			logging.UserHash(req.UserID))
	}
	s.logger.InfoContext(ctx, "tokens stored",
		logging.Operation(instrumentation.OperationExchange),
		logging.UserHash(req.UserID),
		slog.Time("expires_at", tok.ExpiresAt))
	return nil
}

// Refresh mints a new access token for userID and persists it. Unlike
// EnsureFresh, a failure to persist the new token is returned to the caller.
func (s *Service) Refresh(ctx context.Context, userID string) (*AccessToken, error) {
	if userID == "" {
		return nil, apperr.Validation(MsgMissingParams)
	}

	rec, err := s.store.GetToken(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperr.NotFound("no tokens stored for user")
	}
	if err != nil {
		return nil, apperr.Persistence("failed to read tokens", err)
	}

	tok, err := s.refresh(ctx, rec)
	if err != nil {
		return nil, err
	}

	if err := s.persistRefresh(ctx, userID, tok); err != nil {
		return nil, apperr.Persistence("failed to store refreshed token", err)
	}
	return &AccessToken{Token: tok.AccessToken, ExpiresAt: tok.ExpiresAt}, nil
}

// EnsureFresh returns a usable access token for userID, refreshing inline
// when the stored one has expired. It returns ErrNotConnected when no
// credential exists. If the refreshed token cannot be persisted the failure
// is logged and the fresh token is still returned.
func (s *Service) EnsureFresh(ctx context.Context, userID string) (string, error) {
	rec, err := s.store.GetToken(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return "", ErrNotConnected
	}
	if err != nil {
		return "", apperr.Persistence("failed to read tokens", err)
	}

	if !rec.Expired(s.now()) {
		return rec.AccessToken, nil
	}

	s.logger.DebugContext(ctx, "access token expired, refreshing inline",
		logging.UserHash(userID),
		slog.Time("expires_at", rec.ExpiresAt))

	tok, err := s.refresh(ctx, rec)
	if err != nil {
		return "", err
	}

	if err := s.persistRefresh(ctx, userID, tok); err != nil {
		s.logger.WarnContext(ctx, "failed to persist refreshed token, continuing with fresh token",
			logging.UserHash(userID),
			logging.Err(err))
	}
	return tok.AccessToken, nil
}

func (s *Service) refresh(ctx context.Context, rec *store.TokenRecord) (tok *google.Token, err error) {
	event := instrumentation.NewAuditEvent(instrumentation.AuditOperationRefresh).WithUser(rec.UserID)
	defer func() { s.audit.Log(ctx, event.WithSpanContext(ctx).Complete(err)) }()

	return s.callProvider(ctx, instrumentation.OperationRefresh, func(ctx context.Context) (*google.Token, error) {
		return s.provider.Refresh(ctx, rec.RefreshToken)
	})
}

func (s *Service) persistRefresh(ctx context.Context, userID string, tok *google.Token) error {
	return s.store.UpdateAccessToken(ctx, userID, store.TokenUpdate{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		ExpiresAt:    tok.ExpiresAt,
	})
}

// callProvider wraps a token endpoint call with a span and metrics and
// classifies its failure as a ProviderExchange error.
func (s *Service) callProvider(ctx context.Context, operation string, call func(context.Context) (*google.Token, error)) (*google.Token, error) {
	ctx, span := instrumentation.StartProviderSpan(ctx, operation)
	defer span.End()

	start := time.Now()
	tok, err := call(ctx)
	duration := time.Since(start)

	if err != nil {
		s.metrics.RecordProviderTokenOperation(ctx, operation, providerResult(err), duration)
		instrumentation.SetSpanError(span, err)
		s.logger.WarnContext(ctx, "token endpoint rejected request",
			logging.Operation(operation),
			logging.Err(err))
		return nil, apperr.ProviderExchange(fmt.Sprintf("token %s failed: %s", operation, err.Error()), err)
	}

	s.metrics.RecordProviderTokenOperation(ctx, operation, instrumentation.ProviderResultSuccess, duration)
	instrumentation.SetSpanSuccess(span)
	s.logger.DebugContext(ctx, "token endpoint call succeeded",
		logging.Operation(operation),
		slog.String("access_token", logging.SanitizeToken(tok.AccessToken)),
		slog.String("refresh_token", logging.SanitizeToken(tok.RefreshToken)),
		slog.Time("expires_at", tok.ExpiresAt),
		slog.Duration(logging.KeyDuration, duration))
	return tok, nil
}

func providerResult(err error) string {
	var pe *google.ProviderError
	if errors.As(err, &pe) && pe.StatusCode >= 400 && pe.StatusCode < 500 {
		return instrumentation.ProviderResultRejected
	}
	return instrumentation.ProviderResultError
}
