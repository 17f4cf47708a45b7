package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lawconnect/lawconnect/internal/config"
	"github.com/lawconnect/lawconnect/internal/store"
)

func newGenKeyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "gen-key",
		Short: "Generate a token encryption key",
		Long: `Print a random base64 AES-256 key for ` + config.EnvTokenEncryptionKey + `.

Keep the key stable: tokens stored under one key cannot be read with another.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			key, err := store.GenerateEncryptionKey()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), store.EncryptionKeyToBase64(key))
			return nil
		},
	}
}
