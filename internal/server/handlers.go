package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/lawconnect/lawconnect/internal/apperr"
	"github.com/lawconnect/lawconnect/internal/auth"
	"github.com/lawconnect/lawconnect/internal/dispatch"
	"github.com/lawconnect/lawconnect/internal/logging"
	"github.com/lawconnect/lawconnect/internal/tokens"
)

// MsgTokensStored is returned by a successful exchange.
const MsgTokensStored = "Tokens guardados correctamente"

// TokenService is the OAuth side of the server.
type TokenService interface {
	Exchange(ctx context.Context, req tokens.ExchangeRequest) error
	Refresh(ctx context.Context, userID string) (*tokens.AccessToken, error)
}

// Dispatcher runs email dispatch requests.
type Dispatcher interface {
	Dispatch(ctx context.Context, userID string, req dispatch.Request) (*dispatch.Result, error)
}

type exchangeRequest struct {
	Code        string `json:"code"`
	UserID      string `json:"userId"`
	RedirectURI string `json:"redirectUri"`
}

type refreshRequest struct {
	UserID string `json:"userId"`
}

type sendRequest struct {
	ClienteID    string  `json:"clienteId"`
	Subject      string  `json:"subject"`
	Message      string  `json:"message"`
	ScheduledFor *string `json:"scheduledFor"`
}

func (s *Server) handleExchange(w http.ResponseWriter, r *http.Request) {
	var req exchangeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.fail(w, r, err)
		return
	}

	err := s.tokens.Exchange(r.Context(), tokens.ExchangeRequest{
		Code:        req.Code,
		UserID:      req.UserID,
		RedirectURI: req.RedirectURI,
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, successResponse{Success: true, Message: MsgTokensStored})
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.fail(w, r, err)
		return
	}

	tok, err := s.tokens.Refresh(r.Context(), req.UserID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, successResponse{
		Success:     true,
		AccessToken: tok.Token,
		ExpiresAt:   tok.ExpiresAt.UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleSend(w http.ResponseWriter, r *http.Request) {
	id, err := auth.FromRequest(r.Context(), s.authenticator, r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	ctx := auth.ContextWithIdentity(r.Context(), id)

	var req sendRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.fail(w, r, err)
		return
	}

	dreq := dispatch.Request{ClienteID: req.ClienteID, Subject: req.Subject, Message: req.Message}
	if req.ScheduledFor != nil {
		if dreq.ScheduledFor, err = dispatch.ParseScheduledFor(*req.ScheduledFor); err != nil {
			s.fail(w, r, err)
			return
		}
	}

	res, err := s.dispatcher.Dispatch(ctx, id.UserID, dreq)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, successResponse{Success: true, Message: res.Message})
}

// fail logs err at a level matching its class and writes the error response.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	e := apperr.From(err)
	level := slog.LevelInfo
	if e.Status >= http.StatusInternalServerError {
		level = slog.LevelError
	}
	s.logger.Log(r.Context(), level, "request failed",
		logging.Endpoint(r.URL.Path),
		slog.String("kind", string(e.Kind)),
		slog.Int("status", e.Status),
		logging.Err(err))
	writeError(w, e)
}
