package store

import (
	"context"
	"fmt"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// openTestPostgres connects to TEST_DATABASE_URL or skips.
// Migrate grants the URL's user membership in the authenticated role.
func openTestPostgres(t *testing.T) *Postgres {
	t.Helper()

	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("Skipping test: TEST_DATABASE_URL not set")
	}

	ctx := context.Background()
	p, err := OpenPostgres(ctx, PostgresConfig{
		URL:                  url,
		PrivilegedUser:       os.Getenv("TEST_DATABASE_PRIVILEGED_USER"),
		PrivilegedCredential: os.Getenv("TEST_DATABASE_PRIVILEGED_CREDENTIAL"),
	})
	if err != nil {
		t.Skipf("Skipping test: database not available: %v", err)
	}
	require.NoError(t, p.Migrate(ctx))
	t.Cleanup(func() { p.Close() })
	return p
}

func TestGrantRoleStatement(t *testing.T) {
	assert.Equal(t, `GRANT "authenticated" TO "lawconnect_app"`, grantRoleStatement(scopedRole, "lawconnect_app"))
	assert.Equal(t, `GRANT "authenticated" TO "odd""user"`, grantRoleStatement(scopedRole, `odd"user`))
}

func TestPostgres_MigrateGrantsScopedRole(t *testing.T) {
	p := openTestPostgres(t)
	ctx := context.Background()

	var member bool
	login := p.scoped.Config().ConnConfig.User
	require.NoError(t, p.privileged.QueryRow(ctx, "SELECT pg_has_role($1, $2, 'MEMBER')", login, scopedRole).Scan(&member))
	assert.True(t, member)

	// a scoped query only succeeds once the login may switch into the role
	_, err := p.Scoped("nobody").GetCliente(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPostgres_Contract(t *testing.T) {
	runStoreContract(t, func(t *testing.T) testBackend {
		p := openTestPostgres(t)
		// isolate runs by prefixing every id
		prefix := uuid.NewString()[:8]
		return testBackend{
			Store: &prefixedStore{Store: p, prefix: prefix},
			seed: func(t *testing.T, c Cliente) {
				var email any
				if c.Email != "" {
					email = c.Email
				}
				_, err := p.privileged.Exec(context.Background(),
					"INSERT INTO clientes (id, user_id, nombre, email) VALUES ($1, $2, $3, $4)",
					prefix+c.ID, prefix+c.UserID, c.Nombre, email)
				require.NoError(t, err)
			},
		}
	})
}

// prefixedStore namespaces user and cliente ids so contract runs do not collide.
type prefixedStore struct {
	Store
	prefix string
}

func (p *prefixedStore) Scoped(userID string) Scoped {
	return &prefixedScoped{next: p.Store.Scoped(p.prefix + userID), prefix: p.prefix}
}

func (p *prefixedStore) Privileged() Privileged {
	return &prefixedPrivileged{next: p.Store.Privileged(), prefix: p.prefix}
}

type prefixedScoped struct {
	next   Scoped
	prefix string
}

func (s *prefixedScoped) GetCliente(ctx context.Context, id string) (*Cliente, error) {
	return s.next.GetCliente(ctx, s.prefix+id)
}

func (s *prefixedScoped) InsertReminder(ctx context.Context, r *Reminder) error {
	r.ClienteID = s.prefix + r.ClienteID
	err := s.next.InsertReminder(ctx, r)
	if err == nil {
		r.UserID = r.UserID[len(s.prefix):]
	}
	return err
}

type prefixedPrivileged struct {
	next   Privileged
	prefix string
}

func (p *prefixedPrivileged) UpsertToken(ctx context.Context, rec *TokenRecord) error {
	cp := *rec
	cp.UserID = p.prefix + rec.UserID
	return p.next.UpsertToken(ctx, &cp)
}

func (p *prefixedPrivileged) GetToken(ctx context.Context, userID string) (*TokenRecord, error) {
	return p.next.GetToken(ctx, p.prefix+userID)
}

func (p *prefixedPrivileged) UpdateAccessToken(ctx context.Context, userID string, u TokenUpdate) error {
	return p.next.UpdateAccessToken(ctx, p.prefix+userID, u)
}

func TestDescribePgError_PassesThroughPlainErrors(t *testing.T) {
	err := fmt.Errorf("dial tcp: refused")
	require.Equal(t, err, describePgError(err))
}
