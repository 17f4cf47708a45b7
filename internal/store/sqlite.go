package store

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"time"

	_ "modernc.org/sqlite"
)

//go:embed schema/sqlite.sql
var sqliteSchema string

// SQLite is a single-file Store for local development and tests.
// Ownership is enforced in every scoped query.
type SQLite struct {
	db     *sql.DB
	now    func() time.Time
	logger *slog.Logger
}

// OpenSQLite opens (or creates) the database at path and applies the schema.
// Use ":memory:" for a throwaway database.
func OpenSQLite(ctx context.Context, path string) (*SQLite, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// one connection keeps ":memory:" databases alive and serializes writers
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	s := &SQLite{db: db, now: time.Now, logger: slog.Default()}
	if err := s.Migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return s, nil
}

// SetLogger sets a custom logger for the store
func (s *SQLite) SetLogger(logger *slog.Logger) {
	s.logger = logger
}

// DB exposes the underlying handle for administrative tasks.
func (s *SQLite) DB() *sql.DB { return s.db }

func (s *SQLite) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, sqliteSchema)
	return err
}

func (s *SQLite) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }
func (s *SQLite) Close() error                   { return s.db.Close() }

func (s *SQLite) Scoped(userID string) Scoped { return &sqliteScoped{s: s, userID: userID} }
func (s *SQLite) Privileged() Privileged      { return (*sqlitePrivileged)(s) }

type sqlitePrivileged SQLite

func (p *sqlitePrivileged) UpsertToken(ctx context.Context, rec *TokenRecord) error {
	if rec == nil || rec.UserID == "" {
		return fmt.Errorf("token record requires a user id")
	}
	now := p.now().UnixMilli()

	_, err := p.db.ExecContext(ctx, `
		INSERT INTO oauth_tokens (user_id, access_token, refresh_token, expires_at, scope, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (user_id) DO UPDATE SET
			access_token  = excluded.access_token,
			refresh_token = COALESCE(NULLIF(excluded.refresh_token, ''), oauth_tokens.refresh_token),
			expires_at    = excluded.expires_at,
			scope         = excluded.scope,
			updated_at    = excluded.updated_at
	`, rec.UserID, rec.AccessToken, rec.RefreshToken, rec.ExpiresAt.UnixMilli(), rec.Scope, now, now)
	if err != nil {
		return fmt.Errorf("upsert token: %w", err)
	}
	return nil
}

func (p *sqlitePrivileged) GetToken(ctx context.Context, userID string) (*TokenRecord, error) {
	var rec TokenRecord
	var expiresAt, createdAt, updatedAt int64

	err := p.db.QueryRowContext(ctx, `
		SELECT user_id, access_token, refresh_token, expires_at, scope, created_at, updated_at
		FROM oauth_tokens
		WHERE user_id = ?
	`, userID).Scan(&rec.UserID, &rec.AccessToken, &rec.RefreshToken, &expiresAt, &rec.Scope, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get token: %w", err)
	}

	rec.ExpiresAt = time.UnixMilli(expiresAt)
	rec.CreatedAt = time.UnixMilli(createdAt)
	rec.UpdatedAt = time.UnixMilli(updatedAt)
	return &rec, nil
}

func (p *sqlitePrivileged) UpdateAccessToken(ctx context.Context, userID string, update TokenUpdate) error {
	res, err := p.db.ExecContext(ctx, `
		UPDATE oauth_tokens SET
			access_token  = ?,
			expires_at    = ?,
			refresh_token = COALESCE(NULLIF(?, ''), refresh_token),
			updated_at    = ?
		WHERE user_id = ?
	`, update.AccessToken, update.ExpiresAt.UnixMilli(), update.RefreshToken, p.now().UnixMilli(), userID)
	if err != nil {
		return fmt.Errorf("update access token: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update access token: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

type sqliteScoped struct {
	s      *SQLite
	userID string
}

func (sc *sqliteScoped) GetCliente(ctx context.Context, clienteID string) (*Cliente, error) {
	var c Cliente
	var email sql.NullString

	err := sc.s.db.QueryRowContext(ctx, `
		SELECT id, user_id, nombre, email
		FROM clientes
		WHERE id = ? AND user_id = ?
	`, clienteID, sc.userID).Scan(&c.ID, &c.UserID, &c.Nombre, &email)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get cliente: %w", err)
	}
	c.Email = email.String
	return &c, nil
}

func (sc *sqliteScoped) InsertReminder(ctx context.Context, r *Reminder) error {
	if err := prepareReminder(r, sc.userID, sc.s.now()); err != nil {
		return err
	}

	var sentAt sql.NullInt64
	if r.SentAt != nil {
		sentAt = sql.NullInt64{Int64: r.SentAt.UnixMilli(), Valid: true}
	}

	_, err := sc.s.db.ExecContext(ctx, `
		INSERT INTO recordatorios
			(id, user_id, cliente_id, subject, message, recipient_email, scheduled_for, sent_at, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, r.ID, r.UserID, r.ClienteID, r.Subject, r.Message, r.RecipientEmail,
		r.ScheduledFor.UnixMilli(), sentAt, string(r.Status), r.CreatedAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("insert reminder: %w", err)
	}
	return nil
}

// InsertCliente stores a cliente contact. Used for seeding local databases.
func (s *SQLite) InsertCliente(ctx context.Context, c Cliente) error {
	var email any
	if c.Email != "" {
		email = c.Email
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO clientes (id, user_id, nombre, email) VALUES (?, ?, ?, ?)
	`, c.ID, c.UserID, c.Nombre, email)
	if err != nil {
		return fmt.Errorf("insert cliente: %w", err)
	}
	return nil
}

// ListReminders returns the reminders owned by userID, oldest first.
func (s *SQLite) ListReminders(ctx context.Context, userID string) ([]Reminder, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, cliente_id, subject, message, recipient_email, scheduled_for, sent_at, status, created_at
		FROM recordatorios
		WHERE user_id = ?
		ORDER BY created_at, id
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("list reminders: %w", err)
	}
	defer rows.Close()

	var out []Reminder
	for rows.Next() {
		var r Reminder
		var scheduledFor, createdAt int64
		var sentAt sql.NullInt64
		var status string
		if err := rows.Scan(&r.ID, &r.UserID, &r.ClienteID, &r.Subject, &r.Message, &r.RecipientEmail,
			&scheduledFor, &sentAt, &status, &createdAt); err != nil {
			return nil, err
		}
		r.ScheduledFor = time.UnixMilli(scheduledFor)
		r.CreatedAt = time.UnixMilli(createdAt)
		r.Status = ReminderStatus(status)
		if sentAt.Valid {
			t := time.UnixMilli(sentAt.Int64)
			r.SentAt = &t
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
