package store

import (
	"context"
	"fmt"
	"strings"
)

// Options selects and configures a backend.
type Options struct {
	// URL picks the backend by scheme: postgres://, sqlite://<path> or memory://.
	URL                  string
	PrivilegedUser       string
	PrivilegedCredential string
	// EncryptionKey enables AES-256-GCM encryption of tokens at rest when set.
	EncryptionKey []byte
}

// Open creates the Store described by opts.
func Open(ctx context.Context, opts Options) (Store, error) {
	enc, err := NewTokenEncryption(opts.EncryptionKey)
	if err != nil {
		return nil, err
	}

	scheme, _, ok := strings.Cut(opts.URL, "://")
	if !ok {
		return nil, fmt.Errorf("invalid store url: missing scheme")
	}

	var s Store
	switch scheme {
	case "postgres", "postgresql":
		s, err = OpenPostgres(ctx, PostgresConfig{
			URL:                  opts.URL,
			PrivilegedUser:       opts.PrivilegedUser,
			PrivilegedCredential: opts.PrivilegedCredential,
		})
	case "sqlite":
		s, err = OpenSQLite(ctx, sqlitePath(opts.URL))
	case "memory":
		s = NewMemory()
	default:
		return nil, fmt.Errorf("unsupported store scheme %q", scheme)
	}
	if err != nil {
		return nil, err
	}

	if enc.Enabled() {
		return &encryptedStore{Store: s, enc: enc}, nil
	}
	return s, nil
}

// sqlitePath turns sqlite:///abs/path, sqlite://rel/path and sqlite://:memory: into a file path.
func sqlitePath(raw string) string {
	return strings.TrimPrefix(raw, "sqlite://")
}

type encryptedStore struct {
	Store
	enc *TokenEncryption
}

func (e *encryptedStore) Privileged() Privileged {
	return EncryptedPrivileged(e.Store.Privileged(), e.enc)
}
