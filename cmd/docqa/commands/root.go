// Package commands defines all Cobra CLI commands for the docqa binary.
package commands

import (
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/docqa-ai/docqa-go/internal/audit"
	"github.com/docqa-ai/docqa-go/internal/config"
	"github.com/docqa-ai/docqa-go/internal/logging"
)

// configPath holds the --config flag value for YAML config file override.
var configPath string

// loadedConfigPath stores the resolved config file path for audit logging.
var loadedConfigPath string

// NewRootCmd constructs the root Cobra command that all subcommands attach to.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "docqa",
		Short: "docqa — question answering over your own documents",
		Long: `docqa ingests PDF and text documents into a local vector index and answers
natural language questions grounded exclusively in that indexed content.

Answers cite the source pages they were drawn from; questions the corpus does
not cover are declined rather than guessed at.

Embedding and answer backends are selected via environment variables
(EMBEDDING_PROVIDER, ANSWER_PROVIDER, MODEL_PROVIDER) or a YAML config file
(~/.docqa/config.yaml). See 'docqa --help' for available commands.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			// Layer a local .env file into the environment, if present.
			// Real env vars always win.
			_ = godotenv.Load()

			log := logging.New()

			// Load YAML config (env vars always override YAML values).
			path, err := config.Load(configPath, log)
			if err != nil {
				return err
			}
			loadedConfigPath = path

			// Emit structured audit log for every command invocation.
			audit.LogCommandStart(log, cmd.Name(), loadedConfigPath)

			return nil
		},
	}

	root.PersistentFlags().StringVar(&configPath, "config", "", "Path to YAML config file (default: ~/.docqa/config.yaml)")

	root.AddCommand(
		NewAskCmd(),
		NewSearchCmd(),
		NewIngestCmd(),
		NewServeCmd(),
		NewVersionCmd(),
	)

	return root
}
