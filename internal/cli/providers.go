package cli

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var providersCmd = &cobra.Command{
	Use:   "providers",
	Short: "List configured generation providers",
	Args:  cobra.NoArgs,
	RunE:  runProviders,
}

var providersSetKeyCmd = &cobra.Command{
	Use:   "set-key <provider-id>",
	Short: "Store a provider API key",
	Long: `Store a provider API key. The key is read from the terminal without
echo and encrypted by the server before it is persisted.

Examples:
  draftsmith providers set-key openai
  draftsmith providers set-key elevenlabs`,
	Args: cobra.ExactArgs(1),
	RunE: runSetKey,
}

func init() {
	providersCmd.AddCommand(providersSetKeyCmd)
	rootCmd.AddCommand(providersCmd)
}

func runProviders(cmd *cobra.Command, args []string) error {
	providers, err := apiClient.ListProviders(context.Background())
	if err != nil {
		return fmt.Errorf("list providers: %w", err)
	}

	if len(providers) == 0 {
		fmt.Println("No providers configured")
		return nil
	}

	for _, p := range providers {
		state := "disabled"
		if p.Enabled {
			state = "enabled"
		}
		key := "no key"
		if p.HasKey {
			key = "key set"
		}
		fmt.Printf("%s (%s, %s, %s)\n", p.ID, p.Kind, state, key)
		for _, m := range p.Models {
			marker := " "
			if m.Enabled {
				marker = "*"
			}
			fmt.Printf("  %s %-14s %-10s %s\n", marker, m.ID, m.UseCase, m.Name)
		}
	}

	return nil
}

func runSetKey(cmd *cobra.Command, args []string) error {
	providerID := args[0]

	fmt.Printf("API key for %s: ", providerID)
	raw, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Println()
	if err != nil {
		return fmt.Errorf("read key: %w", err)
	}
	key := strings.TrimSpace(string(raw))
	if key == "" {
		return fmt.Errorf("empty key")
	}

	if err := apiClient.SetProviderKey(context.Background(), providerID, key); err != nil {
		return fmt.Errorf("set key: %w", err)
	}
	fmt.Printf("Key for %s updated\n", providerID)
	return nil
}
