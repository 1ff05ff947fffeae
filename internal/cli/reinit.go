package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var reinitCmd = &cobra.Command{
	Use:   "reinit",
	Short: "Recompute schema paths and seed missing instructions",
	Long: `Recompute the schema path index for every configured document type,
seed default instructions for paths that have none and reload the
provider registry. Safe to run repeatedly: existing instructions are
never overwritten.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		result, err := apiClient.Reinit(context.Background())
		if err != nil {
			return fmt.Errorf("reinit: %w", err)
		}
		fmt.Printf("Reinitialized %d document types, %d instructions created\n",
			result.DocumentTypes, result.Created)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(reinitCmd)
}
