package commands

import (
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/cloudwego/eino/callbacks"
	"github.com/spf13/cobra"

	"github.com/docqa-ai/docqa-go/internal/config"
	"github.com/docqa-ai/docqa-go/internal/logging"
	"github.com/docqa-ai/docqa-go/internal/server"
	"github.com/docqa-ai/docqa-go/internal/tracing"
)

// NewServeCmd constructs the `docqa serve` command, which starts the HTTP
// server exposing ingest, ask, search, and health endpoints.
func NewServeCmd() *cobra.Command {
	var host string
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the docqa HTTP server",
		Long: `Start the docqa HTTP server.

Endpoints:
  POST /api/ask      Answer a question from the indexed documents
  GET  /api/search   Raw similarity search without answer composition
  POST /api/ingest   Ingest a server-local document
  GET  /api/health   Liveness plus index status
  GET  /api/ready    Dependency readiness probes
  GET  /metrics      Prometheus metrics

Set DOCQA_API_KEY to require Bearer authentication on the /api routes.

Examples:
  docqa serve
  docqa serve --port 9090
  ANSWER_PROVIDER=llm MODEL_PROVIDER=openai docqa serve`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			cfg := config.Resolve()
			log := logging.NewWithOptions(cfg.Logging.Level, cfg.Logging.Format)
			ctx = logging.WithLogger(ctx, log)

			log.Info("serve starting",
				slog.String("index_backend", cfg.Index.Backend),
				slog.String("answer_provider", cfg.Answer.Provider),
			)

			// Setup Langfuse tracing — opt-in, no-op if keys are absent.
			handler, flush, ok := tracing.Setup(tracing.Config{
				Host:      cfg.Tracing.Host,
				PublicKey: cfg.Tracing.PublicKey,
				SecretKey: cfg.Tracing.SecretKey,
			})
			if ok {
				callbacks.AppendGlobalHandlers(handler)
				defer flush()
				log.Info("langfuse tracing enabled")
			} else {
				log.Info("langfuse tracing disabled", slog.String("reason", "tracing keys not configured"))
			}

			eng, pingers, closeEngine, err := buildEngine(ctx, cfg, log)
			if err != nil {
				return fmt.Errorf("serve: %w", err)
			}
			defer closeEngine()

			if cmd.Flags().Changed("host") || cfg.Server.Host == "" {
				cfg.Server.Host = host
			}
			if cmd.Flags().Changed("port") || cfg.Server.Port == 0 {
				cfg.Server.Port = port
			}

			srv, err := server.New(eng, &server.Config{
				Host:    cfg.Server.Host,
				Port:    cfg.Server.Port,
				Logger:  log,
				Pingers: pingers,
				APIKey:  cfg.Server.APIKey,
			})
			if err != nil {
				return fmt.Errorf("serve: failed to create server: %w", err)
			}

			return srv.Start(ctx)
		},
	}

	cmd.Flags().StringVar(&host, "host", "127.0.0.1", "Host address to bind to")
	cmd.Flags().IntVarP(&port, "port", "p", 8080, "TCP port to listen on")

	return cmd
}
