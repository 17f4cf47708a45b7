package logging

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strings"
)

// Attribute keys shared by every package that logs.
const (
	KeyOperation = "operation"
	KeyEndpoint  = "endpoint"
	KeyUserHash  = "user_hash"
	KeyCliente   = "cliente"
	KeyRecipient = "recipient_domain"
	KeyDuration  = "duration"
	KeyStatus    = "status"
	KeyError     = "error"
	KeyRequestID = "request_id"
)

// Status values for consistent logging.
// Duplicated from the instrumentation package, which imports logging.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// WithOperation returns a logger with the operation attribute set.
func WithOperation(logger *slog.Logger, operation string) *slog.Logger {
	return logger.With(slog.String(KeyOperation, operation))
}

// WithEndpoint returns a logger with the HTTP endpoint attribute set.
func WithEndpoint(logger *slog.Logger, endpoint string) *slog.Logger {
	return logger.With(slog.String(KeyEndpoint, endpoint))
}

// Operation returns a slog attribute for the operation name.
func Operation(op string) slog.Attr {
	return slog.String(KeyOperation, op)
}

// Endpoint returns a slog attribute for the HTTP endpoint path.
func Endpoint(path string) slog.Attr {
	return slog.String(KeyEndpoint, path)
}

// Status returns a slog attribute for the status.
func Status(status string) slog.Attr {
	return slog.String(KeyStatus, status)
}

// RequestID returns a slog attribute for the request correlation id.
func RequestID(id string) slog.Attr {
	return slog.String(KeyRequestID, id)
}

// Err returns a slog attribute for an error.
// A nil error yields an empty group, which slog omits from output.
//
//	logger.Info("operation", logging.Err(err))  // safe even if err is nil
func Err(err error) slog.Attr {
	if err == nil {
		return slog.Group("")
	}
	return slog.String(KeyError, err.Error())
}

// AnonymizeID returns a hashed representation of an identifier so that log
// lines can be correlated without exposing the raw value.
func AnonymizeID(prefix, id string) string {
	if id == "" {
		return ""
	}
	hash := sha256.Sum256([]byte(id))
	return prefix + ":" + hex.EncodeToString(hash[:8])
}

// AnonymizeEmail returns a hashed representation of an email for logging purposes.
func AnonymizeEmail(email string) string {
	return AnonymizeID("email", strings.ToLower(strings.TrimSpace(email)))
}

// UserHash returns a slog attribute with the anonymized user id.
//
//	logger.Info("tokens stored", logging.UserHash(userID))
func UserHash(userID string) slog.Attr {
	return slog.String(KeyUserHash, AnonymizeID("user", userID))
}

// Cliente returns a slog attribute with the anonymized cliente id.
func Cliente(clienteID string) slog.Attr {
	return slog.String(KeyCliente, AnonymizeID("cliente", clienteID))
}

// SanitizeToken returns a masked version of a token for logging.
// Only the length is kept; even a prefix can aid an attacker.
func SanitizeToken(token string) string {
	if token == "" {
		return "<empty>"
	}
	return fmt.Sprintf("[token:%d chars]", len(token))
}

// ExtractDomain returns the lower-cased domain of an email address, or ""
// when the address has no single '@' followed by a domain.
func ExtractDomain(email string) string {
	parts := strings.Split(strings.TrimSpace(email), "@")
	if len(parts) != 2 || parts[1] == "" {
		return ""
	}
	return strings.ToLower(parts[1])
}

// RecipientDomain returns a low-cardinality attribute for a recipient address.
func RecipientDomain(email string) slog.Attr {
	return slog.String(KeyRecipient, ExtractDomain(email))
}
