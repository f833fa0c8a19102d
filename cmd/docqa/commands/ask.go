package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/docqa-ai/docqa-go/internal/config"
	"github.com/docqa-ai/docqa-go/internal/logging"
)

// NewAskCmd constructs the `docqa ask` command, which answers a single
// natural language question from the indexed corpus and prints the result.
func NewAskCmd() *cobra.Command {
	var topK int

	cmd := &cobra.Command{
		Use:   "ask [question]",
		Short: "Ask a question about your indexed documents",
		Long: `Ask a natural language question and get an answer grounded in the indexed
documents, with page citations.

Questions the corpus does not cover are declined with the closest covered
topics offered as hints instead of a fabricated answer.

Examples:
  docqa ask "what is the operating temperature range?"
  docqa ask --top-k 10 "how do I replace the battery?"
  ANSWER_PROVIDER=llm MODEL_PROVIDER=ollama docqa ask "what does the warranty cover?"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := logging.New()
			ctx = logging.WithLogger(ctx, log)

			cfg := config.Resolve()
			eng, _, closeEngine, err := buildEngine(ctx, cfg, log)
			if err != nil {
				return fmt.Errorf("ask: %w", err)
			}
			defer closeEngine()

			question := strings.Join(args, " ")
			answer, err := eng.Ask(ctx, question, topK)
			if err != nil {
				return fmt.Errorf("ask: %w", err)
			}

			fmt.Println(answer.Text)
			if len(answer.Citations) > 0 {
				fmt.Println("\nSources:")
				for _, c := range answer.Citations {
					fmt.Printf("  - %s, page %d\n", c.Document, c.Page)
				}
			}
			if len(answer.Suggestions) > 0 {
				fmt.Println()
				for _, s := range answer.Suggestions {
					fmt.Printf("  - %s\n", s)
				}
			}
			fmt.Printf("\nconfidence: %.2f  provenance: %s\n", answer.Confidence, answer.Provenance)
			return nil
		},
	}

	cmd.Flags().IntVarP(&topK, "top-k", "k", 0, "Number of passages to retrieve (default from config)")

	return cmd
}
