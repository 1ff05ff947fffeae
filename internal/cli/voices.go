package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var voicesCmd = &cobra.Command{
	Use:   "voices <provider-id>",
	Short: "List the voice catalogue of a speech provider",
	Long: `Fetch the available voices of a speech provider using the server's
stored credential.

Examples:
  draftsmith voices elevenlabs`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		voices, err := apiClient.FetchVoices(context.Background(), args[0])
		if err != nil {
			return fmt.Errorf("fetch voices: %w", err)
		}
		if len(voices) == 0 {
			fmt.Println("No voices found")
			return nil
		}
		for _, v := range voices {
			line := fmt.Sprintf("%-24s %s", v.ID, v.Name)
			if v.Category != "" {
				line += fmt.Sprintf(" (%s)", v.Category)
			}
			fmt.Println(line)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(voicesCmd)
}
