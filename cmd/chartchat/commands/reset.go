package commands

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/54b3r/chartchat-go/internal/store"
)

// NewResetCmd constructs the `chartchat reset` command, which clears the
// persisted history of a session.
func NewResetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reset",
		Short: "Clear the persisted history of the configured session",
		Long: `Delete all stored messages for the configured session.

The next chat or serve run starts that session fresh with a new greeting.

Examples:
  chartchat reset
  CHARTCHAT_SESSION=listening-club chartchat reset`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := loadedCfg

			if cfg.History.DBPath == "disabled" {
				return fmt.Errorf("reset: history persistence is disabled")
			}
			if cfg.History.Session == "" {
				return fmt.Errorf("reset: no session configured (set CHARTCHAT_SESSION or history.session)")
			}

			dbPath := cfg.History.DBPath
			if dbPath == "" {
				p, err := store.DefaultDBPath()
				if err != nil {
					return fmt.Errorf("reset: resolve history DB path: %w", err)
				}
				dbPath = p
			}

			sessions, err := store.Open(dbPath)
			if err != nil {
				return fmt.Errorf("reset: open history store %s: %w", dbPath, err)
			}
			defer sessions.Close()

			if err := sessions.Clear(cmd.Context(), cfg.History.Session); err != nil {
				return fmt.Errorf("reset: clear session: %w", err)
			}

			rootLog.Info("session history cleared",
				slog.String("session", cfg.History.Session),
				slog.String("path", dbPath),
			)
			fmt.Printf("session %q cleared\n", cfg.History.Session)
			return nil
		},
	}
}
