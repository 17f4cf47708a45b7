package cmd

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/lawconnect/lawconnect/internal/config"
	"github.com/lawconnect/lawconnect/internal/google"
)

func newAuthURLCmd() *cobra.Command {
	var (
		redirectURI string
		state       string
	)

	cmd := &cobra.Command{
		Use:   "auth-url",
		Short: "Print the Google consent URL",
		Long: `Print the Google consent URL a lawyer opens to connect their calendar and
mail. The authorization code returned to --redirect-uri is then posted to
/oauth/exchange together with the same redirect URI.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if redirectURI == "" {
				return errors.New("--redirect-uri is required")
			}
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if cfg.ProviderClientID == "" {
				return fmt.Errorf("%s is required", config.EnvClientID)
			}
			if state == "" {
				state = uuid.NewString()
			}
			client := google.NewClient(google.Config{ClientID: cfg.ProviderClientID, ClientSecret: cfg.ProviderClientSecret})
			fmt.Fprintln(cmd.OutOrStdout(), client.AuthCodeURL(state, redirectURI))
			return nil
		},
	}

	cmd.Flags().StringVar(&redirectURI, "redirect-uri", "", "Redirect URI registered with the OAuth client")
	cmd.Flags().StringVar(&state, "state", "", "Opaque state value (default: random)")
	return cmd
}
