// Package cli provides the command-line interface for draftsmith.
package cli

import (
	"github.com/spf13/cobra"

	"draftsmith/internal/client"
	"draftsmith/internal/config"
)

var (
	// Version is set at build time.
	Version = "0.1.0"

	// Global flags
	serverURL string
	verbose   bool

	cfg       config.Config
	apiClient *client.Client
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "draftsmith",
	Short: "Structured content generation for document fields",
	Long: `Draftsmith generates content for structured documents: plain text,
rich documents validated against a node grammar, images, speech and video.

Each document field carries a generation instruction (prompt template,
model, settings); the server resolves the instruction, renders the prompt
from the live document and dispatches to the configured provider.`,
	Version: Version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "version" || cmd.Name() == "help" {
			return nil
		}
		cfg = config.Load()
		endpoint := serverURL
		if endpoint == "" {
			endpoint = cfg.ServerURL
		}
		apiClient = client.New(endpoint, cfg.APIToken)
		return nil
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "", "server URL (default from DRAFTSMITH_SERVER_URL)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
