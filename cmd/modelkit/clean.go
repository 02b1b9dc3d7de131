package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/agent-tools/modelkit/internal/api"
)

var (
	cleanFormat          string
	cleanKeepCoordinates bool
)

var cleanCmd = &cobra.Command{
	Use:   "clean [input] [output]",
	Short: "Normalize annotated OCR output",
	Long: `Normalize the grounding markup emitted by document OCR models.

Reads from stdin when input is omitted or "-", writes to stdout when output
is omitted or "-".

--format structure emits titles, tables, paragraphs and full_text. Each title
is an object {level, text}, e.g. {"level": 1, "text": "Report"}, rather than
the [1, "Report"] pair used by the DeepSeek-OCR Python formatter.

Examples:
  modelkit clean page.raw.md page.md
  modelkit clean page.raw.md --format text
  cat page.raw.md | modelkit clean --format structure -o json`,
	Args: cobra.MaximumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		var (
			data []byte
			err  error
		)
		if len(args) == 0 || args[0] == "-" {
			data, err = io.ReadAll(cmd.InOrStdin())
		} else {
			data, err = os.ReadFile(args[0])
		}
		if err != nil {
			return fmt.Errorf("read input: %w", err)
		}

		out, err := render(string(data), cleanFormat, cleanKeepCoordinates)
		if err != nil {
			return err
		}

		var outPath string
		if len(args) == 2 {
			outPath = args[1]
		}
		return api.WriteText(outPath, out)
	},
}

func init() {
	cleanCmd.Flags().StringVar(&cleanFormat, "format", formatMarkdown, formatUsage)
	cleanCmd.Flags().BoolVar(&cleanKeepCoordinates, "keep-coordinates", false, "keep detection coordinates as inline code")
}
