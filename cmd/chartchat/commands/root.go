// Package commands defines all Cobra CLI commands for the chartchat binary.
package commands

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/54b3r/chartchat-go/internal/audit"
	"github.com/54b3r/chartchat-go/internal/config"
	"github.com/54b3r/chartchat-go/internal/logging"
)

// configPath holds the --config flag value for YAML config file override.
var configPath string

// loadedCfg is the merged configuration (defaults → YAML → env) produced by
// the root command's PersistentPreRunE. Subcommands read it instead of
// re-loading.
var loadedCfg config.Config

// loadedConfigPath stores the resolved config file path for audit logging.
var loadedConfigPath string

// rootLog is the process logger, rebuilt once the config's logging section
// is known.
var rootLog *slog.Logger

// NewRootCmd constructs the root Cobra command that all subcommands attach to.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "chartchat",
		Short: "chartchat — a grounded chat assistant over a rated album catalog",
		Long: `chartchat answers questions about a fixed catalog of rated albums.

Every answer is grounded in retrieved catalog data: queries are enriched
with the matching album entries, and draft answers are re-checked against
the catalog before they reach you, so scores are quoted exactly as rated.

The model endpoint is configured via environment variables or a YAML
config file (~/.chartchat/config.yaml).
See 'chartchat --help' for available commands.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			log := logging.New()

			// Load YAML config (env vars always override YAML values).
			cfg, path, err := config.Load(configPath, log)
			if err != nil {
				return err
			}
			loadedCfg = cfg
			loadedConfigPath = path

			// The config file may set a logging level/format the bootstrap
			// logger did not know about. Rebuild once with the merged values.
			if os.Getenv("LOG_LEVEL") == "" && cfg.Logging.Level != "" {
				os.Setenv("LOG_LEVEL", cfg.Logging.Level)
			}
			if os.Getenv("LOG_FORMAT") == "" && cfg.Logging.Format != "" {
				os.Setenv("LOG_FORMAT", cfg.Logging.Format)
			}
			rootLog = logging.New()
			slog.SetDefault(rootLog)

			// Emit structured audit log for every command invocation.
			audit.LogCommandStart(rootLog, cmd.Name(), loadedConfigPath)

			return nil
		},
	}

	root.PersistentFlags().StringVar(&configPath, "config", "", "Path to YAML config file (default: ~/.chartchat/config.yaml)")

	root.AddCommand(
		NewAskCmd(),
		NewChatCmd(),
		NewServeCmd(),
		NewIngestCmd(),
		NewStatusCmd(),
		NewResetCmd(),
		NewVersionCmd(),
	)

	return root
}
