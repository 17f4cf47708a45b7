package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

// rootCmd represents the base command for the lawconnect application
var rootCmd = &cobra.Command{
	Use:   "lawconnect",
	Short: "OAuth token and email dispatch backend for LawConnect",
	Long: `lawconnect runs the backend endpoints of the LawConnect practice manager:
exchanging and refreshing Google OAuth tokens on behalf of lawyers and
sending or scheduling client reminder emails through the Gmail API.`,
	SilenceUsage: true,
}

// version will be set by main
var version = "dev"

// SetVersion sets the version for the root command
func SetVersion(v string) {
	version = v
	rootCmd.Version = v
}

// Execute is the main entry point for the CLI application
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "lawconnect version %s\n" .Version}}`)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().Bool("debug", false, "Enable debug logging")
	rootCmd.PersistentFlags().String("log-format", "json", "Log format: json or text")

	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newMigrateCmd())
	rootCmd.AddCommand(newAuthURLCmd())
	rootCmd.AddCommand(newGenKeyCmd())
	rootCmd.AddCommand(newVersionCmd())
}
