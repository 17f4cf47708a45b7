package store

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lawconnect/lawconnect/internal/logging"
)

//go:embed schema/postgres.sql
var postgresSchema string

// scopedRole is the database role row-level policies are written against.
const scopedRole = "authenticated"

// PostgresConfig configures the two connection pools of a Postgres store.
type PostgresConfig struct {
	// URL is used as-is for scoped access.
	URL string
	// PrivilegedUser and PrivilegedCredential replace the URL's credentials
	// for the privileged pool.
	PrivilegedUser       string
	PrivilegedCredential string
}

// Postgres is the production Store backed by a hosted Postgres database
// with row-level security.
type Postgres struct {
	scoped     *pgxpool.Pool
	privileged *pgxpool.Pool
	logger     *slog.Logger
}

// OpenPostgres connects both pools and verifies them with a ping.
func OpenPostgres(ctx context.Context, cfg PostgresConfig) (*Postgres, error) {
	scoped, err := pgxpool.New(ctx, cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to create scoped pool: %w", err)
	}

	privCfg, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		scoped.Close()
		return nil, fmt.Errorf("failed to parse store url: %w", err)
	}
	if cfg.PrivilegedUser != "" {
		privCfg.ConnConfig.User = cfg.PrivilegedUser
	}
	privCfg.ConnConfig.Password = cfg.PrivilegedCredential

	privileged, err := pgxpool.NewWithConfig(ctx, privCfg)
	if err != nil {
		scoped.Close()
		return nil, fmt.Errorf("failed to create privileged pool: %w", err)
	}

	p := &Postgres{scoped: scoped, privileged: privileged, logger: slog.Default()}
	if err := p.Ping(ctx); err != nil {
		p.Close()
		return nil, err
	}
	return p, nil
}

// SetLogger sets a custom logger for the store
func (p *Postgres) SetLogger(logger *slog.Logger) {
	p.logger = logger
}

// Migrate applies the embedded schema through the privileged pool and makes
// the scoped login a member of the policy role, which SET LOCAL ROLE requires.
func (p *Postgres) Migrate(ctx context.Context) error {
	if _, err := p.privileged.Exec(ctx, postgresSchema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return p.grantScopedRole(ctx, p.scoped.Config().ConnConfig.User)
}

func (p *Postgres) grantScopedRole(ctx context.Context, login string) error {
	var member bool
	err := p.privileged.QueryRow(ctx, "SELECT pg_has_role($1, $2, 'MEMBER')", login, scopedRole).Scan(&member)
	if err != nil {
		return fmt.Errorf("check %s membership: %w", scopedRole, describePgError(err))
	}
	if member {
		return nil
	}

	stmt := grantRoleStatement(scopedRole, login)
	if _, err := p.privileged.Exec(ctx, stmt); err != nil {
		return fmt.Errorf("%s failed, run it as a database administrator: %w", stmt, describePgError(err))
	}
	p.logger.Info("granted scoped role", slog.String("role", scopedRole), slog.String("login", login))
	return nil
}

func grantRoleStatement(role, login string) string {
	return "GRANT " + pgx.Identifier{role}.Sanitize() + " TO " + pgx.Identifier{login}.Sanitize()
}

func (p *Postgres) Ping(ctx context.Context) error {
	if err := p.scoped.Ping(ctx); err != nil {
		return fmt.Errorf("scoped pool ping failed: %w", err)
	}
	if err := p.privileged.Ping(ctx); err != nil {
		return fmt.Errorf("privileged pool ping failed: %w", err)
	}
	return nil
}

func (p *Postgres) Close() error {
	p.scoped.Close()
	p.privileged.Close()
	return nil
}

func (p *Postgres) Scoped(userID string) Scoped { return &pgScoped{pool: p.scoped, userID: userID, now: time.Now} }
func (p *Postgres) Privileged() Privileged      { return &pgPrivileged{pool: p.privileged, logger: p.logger} }

type pgPrivileged struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

func (p *pgPrivileged) UpsertToken(ctx context.Context, rec *TokenRecord) error {
	if rec == nil || rec.UserID == "" {
		return fmt.Errorf("token record requires a user id")
	}

	_, err := p.pool.Exec(ctx, `
		INSERT INTO oauth_tokens (user_id, access_token, refresh_token, expires_at, scope, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, now(), now())
		ON CONFLICT (user_id) DO UPDATE SET
			access_token  = EXCLUDED.access_token,
			refresh_token = COALESCE(NULLIF(EXCLUDED.refresh_token, ''), oauth_tokens.refresh_token),
			expires_at    = EXCLUDED.expires_at,
			scope         = EXCLUDED.scope,
			updated_at    = now()
	`, rec.UserID, rec.AccessToken, rec.RefreshToken, rec.ExpiresAt, rec.Scope)
	if err != nil {
		return fmt.Errorf("upsert token: %w", describePgError(err))
	}
	p.logger.Debug("Upserted token record", logging.UserHash(rec.UserID))
	return nil
}

func (p *pgPrivileged) GetToken(ctx context.Context, userID string) (*TokenRecord, error) {
	var rec TokenRecord
	err := p.pool.QueryRow(ctx, `
		SELECT user_id, access_token, refresh_token, expires_at, scope, created_at, updated_at
		FROM oauth_tokens
		WHERE user_id = $1
	`, userID).Scan(&rec.UserID, &rec.AccessToken, &rec.RefreshToken, &rec.ExpiresAt, &rec.Scope, &rec.CreatedAt, &rec.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get token: %w", describePgError(err))
	}
	return &rec, nil
}

func (p *pgPrivileged) UpdateAccessToken(ctx context.Context, userID string, update TokenUpdate) error {
	tag, err := p.pool.Exec(ctx, `
		UPDATE oauth_tokens SET
			access_token  = $2,
			expires_at    = $3,
			refresh_token = COALESCE(NULLIF($4, ''), refresh_token),
			updated_at    = now()
		WHERE user_id = $1
	`, userID, update.AccessToken, update.ExpiresAt, update.RefreshToken)
	if err != nil {
		return fmt.Errorf("update access token: %w", describePgError(err))
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

type pgScoped struct {
	pool   *pgxpool.Pool
	userID string
	now    func() time.Time
}

// withUser runs fn in a transaction that carries the user's claims and
// switches to the row-level-secured role for its duration.
func (s *pgScoped) withUser(ctx context.Context, fn func(tx pgx.Tx) error) error {
	if s.userID == "" {
		return fmt.Errorf("scoped accessor has no user")
	}
	claims, err := json.Marshal(map[string]string{"sub": s.userID, "role": scopedRole})
	if err != nil {
		return err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", describePgError(err))
	}
	defer tx.Rollback(ctx) //nolint:errcheck // no-op after commit

	if _, err := tx.Exec(ctx, "SELECT set_config('request.jwt.claims', $1, true)", string(claims)); err != nil {
		return fmt.Errorf("set claims: %w", describePgError(err))
	}
	if _, err := tx.Exec(ctx, "SET LOCAL ROLE "+scopedRole); err != nil {
		return fmt.Errorf("set role: %w", describePgError(err))
	}
	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (s *pgScoped) GetCliente(ctx context.Context, clienteID string) (*Cliente, error) {
	var c Cliente
	err := s.withUser(ctx, func(tx pgx.Tx) error {
		var email *string
		err := tx.QueryRow(ctx, `
			SELECT id, user_id, nombre, email
			FROM clientes
			WHERE id = $1 AND user_id = $2
		`, clienteID, s.userID).Scan(&c.ID, &c.UserID, &c.Nombre, &email)
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("get cliente: %w", describePgError(err))
		}
		if email != nil {
			c.Email = *email
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *pgScoped) InsertReminder(ctx context.Context, r *Reminder) error {
	if err := prepareReminder(r, s.userID, s.now()); err != nil {
		return err
	}
	return s.withUser(ctx, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO recordatorios
				(id, user_id, cliente_id, subject, message, recipient_email, scheduled_for, sent_at, status, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		`, r.ID, r.UserID, r.ClienteID, r.Subject, r.Message, r.RecipientEmail,
			r.ScheduledFor, r.SentAt, string(r.Status), r.CreatedAt)
		if err != nil {
			return fmt.Errorf("insert reminder: %w", describePgError(err))
		}
		return nil
	})
}

// describePgError adds the SQLSTATE to server-side errors.
func describePgError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505":
			return fmt.Errorf("duplicate key (%s): %w", pgErr.ConstraintName, err)
		case "23503":
			return fmt.Errorf("foreign key violation (%s): %w", pgErr.ConstraintName, err)
		case "42501":
			return fmt.Errorf("row-level security denied access: %w", err)
		}
		return fmt.Errorf("sqlstate %s: %w", pgErr.Code, err)
	}
	return err
}
