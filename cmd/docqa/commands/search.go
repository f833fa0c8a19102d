package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/docqa-ai/docqa-go/internal/config"
	"github.com/docqa-ai/docqa-go/internal/logging"
)

// NewSearchCmd constructs the `docqa search` command, which prints the raw
// similarity hits for a query without composing an answer. Useful for
// inspecting what the retriever would hand to the composer.
func NewSearchCmd() *cobra.Command {
	var topK int

	cmd := &cobra.Command{
		Use:   "search [query]",
		Short: "Search the index and print the matching passages",
		Long: `Run a similarity search against the index and print the scored passages,
best match first. No answer is composed — this shows the raw retrieval.

Examples:
  docqa search "battery replacement"
  docqa search --top-k 10 "warranty"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := logging.New()
			ctx = logging.WithLogger(ctx, log)

			cfg := config.Resolve()
			eng, _, closeEngine, err := buildEngine(ctx, cfg, log)
			if err != nil {
				return fmt.Errorf("search: %w", err)
			}
			defer closeEngine()

			query := strings.Join(args, " ")
			result, err := eng.Search(ctx, query, topK)
			if err != nil {
				return fmt.Errorf("search: %w", err)
			}

			if result.Empty() {
				fmt.Println("no matches")
				return nil
			}

			for i, hit := range result.Entries {
				fmt.Printf("%2d. [%.3f] %s, page %d\n    %s\n",
					i+1, hit.Score, hit.Entry.DocumentID, hit.Entry.Page, preview(hit.Entry.Text))
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&topK, "top-k", "k", 0, "Number of passages to return (default from config)")

	return cmd
}

// preview compresses a chunk to a single short display line.
func preview(text string) string {
	line := strings.Join(strings.Fields(text), " ")
	const max = 120
	runes := []rune(line)
	if len(runes) <= max {
		return line
	}
	return string(runes[:max]) + "..."
}
