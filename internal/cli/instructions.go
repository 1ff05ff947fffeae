package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var instructionsCmd = &cobra.Command{
	Use:   "instructions <document-type>",
	Short: "List generation instructions for a document type",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		list, err := apiClient.ListInstructions(context.Background(), args[0])
		if err != nil {
			return fmt.Errorf("list instructions: %w", err)
		}
		if len(list) == 0 {
			fmt.Println("No instructions found, run 'draftsmith reinit' to seed defaults")
			return nil
		}

		fmt.Printf("%-24s %-14s %-12s %s\n", "PATH", "TYPE", "MODEL", "STATE")
		fmt.Println("------------------------------------------------------------------")
		for _, in := range list {
			state := "enabled"
			if in.Disabled {
				state = "disabled"
			}
			fmt.Printf("%-24s %-14s %-12s %s\n", in.SchemaPath, in.FieldType, in.ModelID, state)
			if verbose {
				fmt.Printf("  id: %s\n  template: %s\n", in.ID, in.Template)
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(instructionsCmd)
}
