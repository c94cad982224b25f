package commands

import (
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/54b3r/chartchat-go/internal/logging"
	"github.com/54b3r/chartchat-go/internal/server"
)

// NewServeCmd constructs the `chartchat serve` command, which starts the
// HTTP API for interactive use.
func NewServeCmd() *cobra.Command {
	var host string
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the chartchat HTTP server",
		Long: `Start the chartchat HTTP server.

The server exposes a REST API for chatting against the catalog, plus
health, readiness, status and Prometheus metrics endpoints.

Examples:
  chartchat serve
  chartchat serve --port 9090
  CHARTCHAT_SERVER_API_KEY=secret chartchat serve --host 0.0.0.0`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			log := rootLog
			ctx = logging.WithLogger(ctx, log)

			cfg := loadedCfg
			if cmd.Flags().Changed("host") {
				cfg.Server.Host = host
			}
			if cmd.Flags().Changed("port") {
				cfg.Server.Port = port
			}

			a, err := buildAssistant(cfg, log)
			if err != nil {
				return fmt.Errorf("serve: %w", err)
			}
			defer a.Close()

			if err := a.conv.Start(ctx); err != nil {
				return fmt.Errorf("serve: %w", err)
			}

			pingers := []server.Pinger{
				server.NewAPIPinger(cfg.API.BaseURL, cfg.API.APIKey),
				server.NewStorePinger(a.store),
			}

			srv, err := server.New(a.conv, a.service, &server.Config{
				Host:    cfg.Server.Host,
				Port:    cfg.Server.Port,
				Logger:  logging.WithComponent(log, "server"),
				Pingers: pingers,
				APIKey:  cfg.Server.APIKey,
			})
			if err != nil {
				return fmt.Errorf("serve: failed to create server: %w", err)
			}

			log.Info("serve starting",
				slog.String("host", cfg.Server.Host),
				slog.Int("port", cfg.Server.Port),
				slog.String("session", a.session),
			)
			return srv.Start(ctx)
		},
	}

	cmd.Flags().StringVar(&host, "host", "0.0.0.0", "Host address to bind to")
	cmd.Flags().IntVarP(&port, "port", "p", 8080, "TCP port to listen on")

	return cmd
}
