package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/54b3r/chartchat-go/internal/logging"
)

// NewAskCmd constructs the `chartchat ask` command, which sends a single
// question through the full enrich → generate → validate pipeline and prints
// the grounded answer to stdout.
func NewAskCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ask [question]",
		Short: "Ask a single question about the rated catalog",
		Long: `Ask one question and print the answer.

The question is enriched with matching catalog entries before generation,
and the draft answer is re-checked against the catalog so every quoted
score matches the rated value exactly.

Examples:
  chartchat ask "what score did Mit K get?"
  chartchat ask "which Kraftklub album ranked highest?"
  chartchat ask "how did their scores develop over the years?"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := logging.WithLogger(cmd.Context(), rootLog)

			a, err := buildAssistant(loadedCfg, rootLog)
			if err != nil {
				return fmt.Errorf("ask: %w", err)
			}
			defer a.Close()

			question := strings.Join(args, " ")
			reply, err := a.conv.SendMessage(ctx, question)
			if err != nil {
				return fmt.Errorf("ask: %w", err)
			}

			fmt.Println(reply.Content)
			return nil
		},
	}

	return cmd
}
