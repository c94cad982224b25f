package commands

import (
	"bufio"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/54b3r/chartchat-go/internal/logging"
	"github.com/54b3r/chartchat-go/internal/store"
)

// NewChatCmd constructs the `chartchat chat` command, an interactive
// terminal session against the catalog assistant.
func NewChatCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Start an interactive chat session",
		Long: `Start an interactive chat session in the terminal.

History is restored from the session store when one exists, so a session
continues where it left off. Type /reset to start over, /quit to leave.

Examples:
  chartchat chat
  CHARTCHAT_SESSION=listening-club chartchat chat`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			ctx = logging.WithLogger(ctx, rootLog)

			a, err := buildAssistant(loadedCfg, rootLog)
			if err != nil {
				return fmt.Errorf("chat: %w", err)
			}
			defer a.Close()

			if err := a.conv.Start(ctx); err != nil {
				return fmt.Errorf("chat: %w", err)
			}
			for _, m := range a.conv.Messages() {
				printMessage(m)
			}

			scanner := bufio.NewScanner(os.Stdin)
			for {
				fmt.Print("you> ")
				if !scanner.Scan() {
					fmt.Println()
					return scanner.Err()
				}
				line := strings.TrimSpace(scanner.Text())

				switch line {
				case "":
					continue
				case "/quit", "/exit":
					return nil
				case "/reset":
					if err := a.conv.Reset(ctx); err != nil {
						fmt.Fprintf(os.Stderr, "reset failed: %v\n", err)
						continue
					}
					for _, m := range a.conv.Messages() {
						printMessage(m)
					}
					continue
				}

				reply, err := a.conv.SendMessage(ctx, line)
				if err != nil {
					if ctx.Err() != nil {
						return nil
					}
					fmt.Fprintf(os.Stderr, "error: %v\n", err)
					continue
				}
				printMessage(reply)
			}
		},
	}

	return cmd
}

// printMessage renders one message with a role prefix.
func printMessage(m store.Message) {
	prefix := "chartchat"
	if m.Role == store.RoleUser {
		prefix = "you"
	}
	fmt.Printf("%s> %s\n", prefix, m.Content)
}
