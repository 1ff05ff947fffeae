package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/spf13/cobra"

	"draftsmith/internal/client"
)

var (
	generateDocFile  string
	generateOptions  []string
	generateApply    bool
	generateStream   bool
	generateOutput   string
	generateInstruct string
	generateWatch    bool
)

var generateCmd = &cobra.Command{
	Use:   "generate <document-type> <path>",
	Short: "Generate content for one document field",
	Long: `Generate content for a document field using its configured instruction.

The document context is read from a JSON file; generated text and objects
are printed to stdout, binary results are written next to the document.

Examples:
  draftsmith generate post title --document post.json
  draftsmith generate post body --document post.json --stream
  draftsmith generate post hero --document post.json -o hero.png
  draftsmith generate post trailer --document post.json --watch`,
	Args: cobra.ExactArgs(2),
	RunE: runGenerate,
}

func init() {
	generateCmd.Flags().StringVarP(&generateDocFile, "document", "d", "", "JSON file with the live document")
	generateCmd.Flags().StringSliceVar(&generateOptions, "option", nil, "generation option as key=value (repeatable)")
	generateCmd.Flags().BoolVar(&generateApply, "apply", false, "write the generated value back into the printed document")
	generateCmd.Flags().BoolVar(&generateStream, "stream", false, "stream text output as it is generated")
	generateCmd.Flags().StringVarP(&generateOutput, "output", "o", "", "write binary results to this file")
	generateCmd.Flags().StringVar(&generateInstruct, "instruction", "", "instruction ID, bypassing the path lookup")
	generateCmd.Flags().BoolVar(&generateWatch, "watch", false, "watch deferred jobs until they finish")
	rootCmd.AddCommand(generateCmd)
}

func runGenerate(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	input := client.GenerateInput{
		DocumentType:  args[0],
		Path:          args[1],
		InstructionID: generateInstruct,
		Apply:         generateApply,
	}

	if generateDocFile != "" {
		data, err := os.ReadFile(generateDocFile)
		if err != nil {
			return fmt.Errorf("read document: %w", err)
		}
		if err := json.Unmarshal(data, &input.Document); err != nil {
			return fmt.Errorf("parse document: %w", err)
		}
	}

	if len(generateOptions) > 0 {
		input.Options = map[string]any{}
		for _, opt := range generateOptions {
			key, value, found := strings.Cut(opt, "=")
			if !found {
				return fmt.Errorf("invalid option %q, expected key=value", opt)
			}
			input.Options[key] = value
		}
	}

	if generateStream {
		result, err := apiClient.GenerateStream(ctx, input, func(chunk string) error {
			fmt.Print(chunk)
			return nil
		})
		if err != nil {
			return err
		}
		fmt.Println()
		if result != nil && result.Kind != "text" {
			return printResult(ctx, result)
		}
		return nil
	}

	result, err := apiClient.Generate(ctx, input)
	if err != nil {
		return err
	}
	return printResult(ctx, result)
}

func printResult(ctx context.Context, result *client.GenerateResult) error {
	switch result.Kind {
	case "text":
		fmt.Println(result.Text)

	case "object":
		out := any(result.Object)
		if result.Document != nil {
			out = result.Document
		}
		data, err := json.MarshalIndent(out, "", "  ")
		if err != nil {
			return fmt.Errorf("marshal result: %w", err)
		}
		fmt.Println(string(data))
		return nil

	case "file":
		return saveFile(result.File)

	case "job":
		fmt.Printf("Job %s queued (%s/%s)\n", result.Job.ID, result.Job.Provider, result.Job.Model)
		if generateWatch {
			return RunJobProgress(apiClient, result.Job)
		}
		fmt.Printf("Use 'draftsmith jobs %s' to check status.\n", result.Job.ID)
		return nil
	}

	if result.Kind == "text" && result.Document != nil {
		data, err := json.MarshalIndent(result.Document, "", "  ")
		if err != nil {
			return fmt.Errorf("marshal document: %w", err)
		}
		fmt.Println(string(data))
	}
	return nil
}

func saveFile(file *client.GeneratedFile) error {
	if file == nil {
		return fmt.Errorf("no file in response")
	}

	path := generateOutput
	if path == "" {
		path = file.Name
	}
	if path == "" {
		path = "generated" + extensionForData(file)
	}

	if err := os.WriteFile(path, file.Data, 0o644); err != nil {
		return fmt.Errorf("write file: %w", err)
	}
	fmt.Printf("Wrote %s (%d bytes, %s)\n", path, len(file.Data), file.MimeType)
	return nil
}

// extensionForData picks a file extension from the declared mime type, or
// sniffs the bytes when the server did not set one.
func extensionForData(file *client.GeneratedFile) string {
	if file.MimeType != "" {
		if mt := mimetype.Lookup(file.MimeType); mt != nil && mt.Extension() != "" {
			return mt.Extension()
		}
	}
	if mt := mimetype.Detect(file.Data); mt.Extension() != "" {
		return mt.Extension()
	}
	return ".bin"
}
