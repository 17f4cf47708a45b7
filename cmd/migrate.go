package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lawconnect/lawconnect/internal/config"
	"github.com/lawconnect/lawconnect/internal/store"
)

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		Long: `Create or update the tables used for provider tokens, clientes and
reminders in the store named by DATABASE_URL.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger, err := newLogger(cmd, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			st, err := openStore(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer st.Close()

			if err := st.Migrate(cmd.Context()); err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}
			logger.Info("migrations applied")
			return nil
		},
	}
}

// openStore opens the configured store, enabling token encryption at rest
// when a key is set.
func openStore(ctx context.Context, cfg *config.Config) (store.Store, error) {
	var key []byte
	if cfg.TokenEncryptionKey != "" {
		var err error
		key, err = store.EncryptionKeyFromBase64(cfg.TokenEncryptionKey)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", config.EnvTokenEncryptionKey, err)
		}
	}
	st, err := store.Open(ctx, store.Options{
		URL:                  cfg.StoreURL,
		PrivilegedUser:       cfg.StorePrivilegedUser,
		PrivilegedCredential: cfg.StorePrivilegedCredential,
		EncryptionKey:        key,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}
	return st, nil
}
