// Package store persists OAuth credentials, cliente contacts and reminder
// records in the relational store.
//
// Access is split into two capabilities. A Scoped accessor is bound to one
// authenticated user and is subject to row-level ownership checks; it serves
// every user-facing read and write. A Privileged accessor bypasses those
// checks and only ever touches the oauth_tokens table.
package store

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// ErrNotFound is returned when a row does not exist or is not owned by the caller.
var ErrNotFound = errors.New("not found")

// TokenRecord is a user's OAuth credential set with the identity provider.
type TokenRecord struct {
	UserID       string    `json:"user_id"`
	AccessToken  string    `json:"-"`
	RefreshToken string    `json:"-"`
	ExpiresAt    time.Time `json:"expires_at"`
	Scope        string    `json:"scope"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Expired reports whether the access token is no longer usable at now.
func (r *TokenRecord) Expired(now time.Time) bool {
	return !r.ExpiresAt.After(now)
}

// TokenUpdate carries the result of a refresh. An empty RefreshToken keeps the stored one.
type TokenUpdate struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
}

// ReminderStatus is the delivery state of a reminder.
type ReminderStatus string

const (
	ReminderPending ReminderStatus = "pending"
	ReminderSent    ReminderStatus = "sent"
)

// Reminder is the persisted outcome of one dispatch request.
type Reminder struct {
	ID             string         `json:"id"`
	UserID         string         `json:"user_id"`
	ClienteID      string         `json:"cliente_id"`
	Subject        string         `json:"subject"`
	Message        string         `json:"message"`
	RecipientEmail string         `json:"recipient_email"`
	ScheduledFor   time.Time      `json:"scheduled_for"`
	SentAt         *time.Time     `json:"sent_at"`
	Status         ReminderStatus `json:"status"`
	CreatedAt      time.Time      `json:"created_at"`
}

// Cliente is the contact information of a client of the practice.
type Cliente struct {
	ID     string `json:"id"`
	UserID string `json:"user_id"`
	Nombre string `json:"nombre"`
	Email  string `json:"email"`
}

// Scoped is row-level-secured access bound to a single user.
type Scoped interface {
	// GetCliente returns the cliente only if it belongs to the bound user.
	GetCliente(ctx context.Context, clienteID string) (*Cliente, error)
	// InsertReminder stores r owned by the bound user, assigning ID and CreatedAt when empty.
	InsertReminder(ctx context.Context, r *Reminder) error
}

// Privileged is elevated access to the token table.
type Privileged interface {
	// UpsertToken inserts or replaces the record for rec.UserID.
	// An empty refresh token never replaces a stored one.
	UpsertToken(ctx context.Context, rec *TokenRecord) error
	GetToken(ctx context.Context, userID string) (*TokenRecord, error)
	// UpdateAccessToken applies a refresh result in place, preserving scope.
	UpdateAccessToken(ctx context.Context, userID string, update TokenUpdate) error
}

// Store opens both capabilities over one backend.
type Store interface {
	Scoped(userID string) Scoped
	Privileged() Privileged
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
	// SetLogger replaces the logger used for backend diagnostics.
	SetLogger(logger *slog.Logger)
}
