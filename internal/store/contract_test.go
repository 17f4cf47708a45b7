package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testBackend is a Store plus a way to seed clientes, which the Store
// interface does not expose.
type testBackend struct {
	Store
	seed func(t *testing.T, c Cliente)
}

func runStoreContract(t *testing.T, open func(t *testing.T) testBackend) {
	ctx := context.Background()
	expires := time.Now().Add(time.Hour).Truncate(time.Millisecond)

	t.Run("upsert keeps one record per user", func(t *testing.T) {
		s := open(t)
		priv := s.Privileged()

		require.NoError(t, priv.UpsertToken(ctx, &TokenRecord{
			UserID: "user-1", AccessToken: "a1", RefreshToken: "r1", ExpiresAt: expires, Scope: "calendar",
		}))
		require.NoError(t, priv.UpsertToken(ctx, &TokenRecord{
			UserID: "user-1", AccessToken: "a2", RefreshToken: "r2", ExpiresAt: expires.Add(time.Hour), Scope: "calendar gmail.send",
		}))

		rec, err := priv.GetToken(ctx, "user-1")
		require.NoError(t, err)
		assert.Equal(t, "a2", rec.AccessToken)
		assert.Equal(t, "r2", rec.RefreshToken)
		assert.Equal(t, "calendar gmail.send", rec.Scope)
		assert.True(t, rec.ExpiresAt.Equal(expires.Add(time.Hour)))
	})

	t.Run("upsert without refresh token keeps the stored one", func(t *testing.T) {
		s := open(t)
		priv := s.Privileged()

		require.NoError(t, priv.UpsertToken(ctx, &TokenRecord{UserID: "user-1", AccessToken: "a1", RefreshToken: "R", ExpiresAt: expires}))
		require.NoError(t, priv.UpsertToken(ctx, &TokenRecord{UserID: "user-1", AccessToken: "a2", ExpiresAt: expires}))

		rec, err := priv.GetToken(ctx, "user-1")
		require.NoError(t, err)
		assert.Equal(t, "a2", rec.AccessToken)
		assert.Equal(t, "R", rec.RefreshToken)
	})

	t.Run("get missing token", func(t *testing.T) {
		s := open(t)
		_, err := s.Privileged().GetToken(ctx, "nobody")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("update access token preserves refresh token and scope", func(t *testing.T) {
		s := open(t)
		priv := s.Privileged()
		require.NoError(t, priv.UpsertToken(ctx, &TokenRecord{
			UserID: "user-1", AccessToken: "old", RefreshToken: "R", ExpiresAt: expires, Scope: "calendar",
		}))

		newExpiry := expires.Add(2 * time.Hour)
		require.NoError(t, priv.UpdateAccessToken(ctx, "user-1", TokenUpdate{AccessToken: "new", ExpiresAt: newExpiry}))

		rec, err := priv.GetToken(ctx, "user-1")
		require.NoError(t, err)
		assert.Equal(t, "new", rec.AccessToken)
		assert.Equal(t, "R", rec.RefreshToken)
		assert.Equal(t, "calendar", rec.Scope)
		assert.True(t, rec.ExpiresAt.Equal(newExpiry))

		require.NoError(t, priv.UpdateAccessToken(ctx, "user-1", TokenUpdate{AccessToken: "newer", RefreshToken: "R2", ExpiresAt: newExpiry}))
		rec, err = priv.GetToken(ctx, "user-1")
		require.NoError(t, err)
		assert.Equal(t, "R2", rec.RefreshToken)
	})

	t.Run("update missing token", func(t *testing.T) {
		s := open(t)
		err := s.Privileged().UpdateAccessToken(ctx, "nobody", TokenUpdate{AccessToken: "x", ExpiresAt: expires})
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("scoped cliente lookup enforces ownership", func(t *testing.T) {
		s := open(t)
		s.seed(t, Cliente{ID: "c1", UserID: "user-1", Nombre: "Ana", Email: "x@y.com"})
		s.seed(t, Cliente{ID: "c2", UserID: "user-1", Nombre: "Sin correo"})

		c, err := s.Scoped("user-1").GetCliente(ctx, "c1")
		require.NoError(t, err)
		assert.Equal(t, "x@y.com", c.Email)
		assert.Equal(t, "Ana", c.Nombre)

		c, err = s.Scoped("user-1").GetCliente(ctx, "c2")
		require.NoError(t, err)
		assert.Empty(t, c.Email)

		_, err = s.Scoped("user-2").GetCliente(ctx, "c1")
		assert.ErrorIs(t, err, ErrNotFound)

		_, err = s.Scoped("user-1").GetCliente(ctx, "missing")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("insert reminders", func(t *testing.T) {
		s := open(t)
		s.seed(t, Cliente{ID: "c1", UserID: "user-1", Email: "x@y.com"})
		scoped := s.Scoped("user-1")

		sentAt := time.Now()
		sent := &Reminder{
			UserID:         "spoofed",
			ClienteID:      "c1",
			Subject:        "Hola",
			Message:        "Aviso",
			RecipientEmail: "x@y.com",
			ScheduledFor:   sentAt,
			SentAt:         &sentAt,
			Status:         ReminderSent,
		}
		require.NoError(t, scoped.InsertReminder(ctx, sent))
		assert.NotEmpty(t, sent.ID)
		assert.Equal(t, "user-1", sent.UserID)
		assert.False(t, sent.CreatedAt.IsZero())

		pending := &Reminder{
			ClienteID:      "c1",
			Subject:        "Audiencia",
			Message:        "Mañana",
			RecipientEmail: "x@y.com",
			ScheduledFor:   time.Now().Add(24 * time.Hour),
			Status:         ReminderPending,
		}
		require.NoError(t, scoped.InsertReminder(ctx, pending))
		assert.NotEqual(t, sent.ID, pending.ID)
	})

	t.Run("reminder status invariants", func(t *testing.T) {
		s := open(t)
		s.seed(t, Cliente{ID: "c1", UserID: "user-1", Email: "x@y.com"})
		scoped := s.Scoped("user-1")
		now := time.Now()

		err := scoped.InsertReminder(ctx, &Reminder{ClienteID: "c1", Status: ReminderSent, ScheduledFor: now})
		assert.Error(t, err)

		err = scoped.InsertReminder(ctx, &Reminder{ClienteID: "c1", Status: ReminderPending, ScheduledFor: now, SentAt: &now})
		assert.Error(t, err)

		err = scoped.InsertReminder(ctx, &Reminder{ClienteID: "c1", Status: "failed", ScheduledFor: now})
		assert.Error(t, err)
	})
}

func TestTokenRecord_Expired(t *testing.T) {
	now := time.Now()
	assert.True(t, (&TokenRecord{ExpiresAt: now}).Expired(now))
	assert.True(t, (&TokenRecord{ExpiresAt: now.Add(-time.Second)}).Expired(now))
	assert.False(t, (&TokenRecord{ExpiresAt: now.Add(time.Second)}).Expired(now))
}
