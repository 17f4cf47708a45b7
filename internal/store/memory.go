package store

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/lawconnect/lawconnect/internal/logging"
)

// Memory is an in-process Store used in tests and local development.
// Ownership checks mirror the row-level policies of the SQL backends.
type Memory struct {
	mu        sync.RWMutex
	tokens    map[string]*TokenRecord
	clientes  map[string]*Cliente
	reminders []*Reminder
	now       func() time.Time
	logger    *slog.Logger
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		tokens:   make(map[string]*TokenRecord),
		clientes: make(map[string]*Cliente),
		now:      time.Now,
		logger:   slog.Default(),
	}
}

// SetLogger sets a custom logger for the store
func (m *Memory) SetLogger(logger *slog.Logger) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.logger = logger
}

// PutCliente stores or replaces a cliente contact.
func (m *Memory) PutCliente(c Cliente) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clientes[c.ID] = &c
}

// Reminders returns a copy of every stored reminder in insertion order.
func (m *Memory) Reminders() []Reminder {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Reminder, 0, len(m.reminders))
	for _, r := range m.reminders {
		out = append(out, *r)
	}
	return out
}

func (m *Memory) Scoped(userID string) Scoped { return &memoryScoped{m: m, userID: userID} }
func (m *Memory) Privileged() Privileged      { return (*memoryPrivileged)(m) }
func (m *Memory) Migrate(context.Context) error {
	return nil
}
func (m *Memory) Ping(context.Context) error { return nil }
func (m *Memory) Close() error               { return nil }

type memoryPrivileged Memory

func (p *memoryPrivileged) UpsertToken(_ context.Context, rec *TokenRecord) error {
	if rec == nil || rec.UserID == "" {
		return fmt.Errorf("token record requires a user id")
	}

	m := (*Memory)(p)
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	stored := *rec
	stored.CreatedAt, stored.UpdatedAt = now, now
	if existing, ok := m.tokens[rec.UserID]; ok {
		stored.CreatedAt = existing.CreatedAt
		if stored.RefreshToken == "" {
			stored.RefreshToken = existing.RefreshToken
		}
	}
	m.tokens[rec.UserID] = &stored
	m.logger.Debug("Stored token record", logging.UserHash(rec.UserID), "expires_at", rec.ExpiresAt)
	return nil
}

func (p *memoryPrivileged) GetToken(_ context.Context, userID string) (*TokenRecord, error) {
	m := (*Memory)(p)
	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, ok := m.tokens[userID]
	if !ok {
		return nil, ErrNotFound
	}
	out := *rec
	return &out, nil
}

func (p *memoryPrivileged) UpdateAccessToken(_ context.Context, userID string, update TokenUpdate) error {
	m := (*Memory)(p)
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.tokens[userID]
	if !ok {
		return ErrNotFound
	}
	rec.AccessToken = update.AccessToken
	rec.ExpiresAt = update.ExpiresAt
	if update.RefreshToken != "" {
		rec.RefreshToken = update.RefreshToken
	}
	rec.UpdatedAt = m.now()
	return nil
}

type memoryScoped struct {
	m      *Memory
	userID string
}

func (s *memoryScoped) GetCliente(_ context.Context, clienteID string) (*Cliente, error) {
	s.m.mu.RLock()
	defer s.m.mu.RUnlock()

	c, ok := s.m.clientes[clienteID]
	if !ok || c.UserID != s.userID {
		return nil, ErrNotFound
	}
	out := *c
	return &out, nil
}

func (s *memoryScoped) InsertReminder(_ context.Context, r *Reminder) error {
	if err := prepareReminder(r, s.userID, s.m.now()); err != nil {
		return err
	}

	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	stored := *r
	s.m.reminders = append(s.m.reminders, &stored)
	return nil
}

// prepareReminder fills defaults and checks the status invariants shared by all backends.
func prepareReminder(r *Reminder, userID string, now time.Time) error {
	if r == nil {
		return fmt.Errorf("reminder cannot be nil")
	}
	if userID == "" {
		return fmt.Errorf("scoped accessor has no user")
	}
	r.UserID = userID
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = now
	}

	switch r.Status {
	case ReminderSent:
		if r.SentAt == nil {
			return fmt.Errorf("sent reminder requires sent_at")
		}
	case ReminderPending:
		if r.SentAt != nil {
			return fmt.Errorf("pending reminder cannot have sent_at")
		}
	default:
		return fmt.Errorf("invalid reminder status %q", r.Status)
	}
	return nil
}
