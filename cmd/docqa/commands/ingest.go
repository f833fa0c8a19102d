package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/docqa-ai/docqa-go/internal/config"
	"github.com/docqa-ai/docqa-go/internal/engine"
	"github.com/docqa-ai/docqa-go/internal/logging"
)

// NewIngestCmd constructs the `docqa ingest` command, which loads one or
// more documents, chunks and embeds them, and adds them to the index.
func NewIngestCmd() *cobra.Command {
	var replace bool

	cmd := &cobra.Command{
		Use:   "ingest [file ...]",
		Short: "Ingest PDF or text documents into the index",
		Long: `Extract text from PDF, .txt, or .md files, split it into overlapping
page-scoped chunks, embed each chunk, and add the vectors to the index.

With the local backend the index artifact is persisted after each document,
so a crash between documents never loses what was already ingested.
Re-ingesting a file appends by default; --replace removes the file's previous
entries first.

Relevant environment variables:
  EMBEDDING_PROVIDER    Embedding backend: ollama, openai, azure (default: ollama)
  DOCQA_INDEX_BACKEND   Index backend: local, qdrant (default: local)
  DOCQA_INDEX_PATH      Local index artifact path (default: ~/.docqa/index.db)
  QDRANT_HOST et al.    Qdrant connection settings for the qdrant backend

Examples:
  docqa ingest manual.pdf
  docqa ingest --replace manual.pdf
  docqa ingest docs/*.md notes.txt`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := logging.New()
			ctx = logging.WithLogger(ctx, log)

			cfg := config.Resolve()
			if replace {
				cfg.Ingest.OnDuplicate = string(engine.DuplicateReplace)
			}

			eng, _, closeEngine, err := buildEngine(ctx, cfg, log)
			if err != nil {
				return fmt.Errorf("ingest: %w", err)
			}
			defer closeEngine()

			for _, path := range args {
				stats, err := eng.Ingest(ctx, path)
				if err != nil {
					return fmt.Errorf("ingest: %w", err)
				}
				fmt.Printf("%s: %d pages, %d chunks (%s)\n",
					stats.Document, stats.Pages, stats.Chunks, stats.Duration.Round(time.Millisecond))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&replace, "replace", false, "Remove the document's previous entries before adding the new ones")

	return cmd
}
