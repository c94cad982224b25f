package commands

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/54b3r/chartchat-go/internal/catalog"
	"github.com/54b3r/chartchat-go/internal/ingestion"
	"github.com/54b3r/chartchat-go/internal/llm"
	"github.com/54b3r/chartchat-go/internal/logging"
)

// NewIngestCmd constructs the `chartchat ingest` command, which embeds the
// catalog and writes the record set the serve and ask commands load.
func NewIngestCmd() *cobra.Command {
	var out string
	var batchSize int

	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Embed the catalog into the vector record set",
		Long: `Embed every catalog entry and write the embedding record set to disk.

Run this once after the catalog changes. The other commands load the
written file at startup; semantic retrieval stays disabled until it exists.

Examples:
  chartchat ingest
  chartchat ingest --out data/embeddings.json
  CHARTCHAT_EMBEDDING_MODEL=text-embedding-3-large chartchat ingest`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := logging.WithLogger(cmd.Context(), rootLog)
			log := rootLog
			cfg := loadedCfg

			if out == "" {
				out = cfg.Data.EmbeddingsPath
			}

			cat, err := catalog.LoadFile(cfg.Data.CatalogPath)
			if err != nil {
				return fmt.Errorf("ingest: load catalog %s: %w", cfg.Data.CatalogPath, err)
			}
			log.Info("catalog loaded",
				slog.String("path", cfg.Data.CatalogPath),
				slog.Int("entries", cat.Size()),
			)

			embedder := llm.NewEmbeddingClient(
				llm.Config{BaseURL: cfg.API.BaseURL, APIKey: cfg.API.APIKey},
				cfg.API.EmbeddingModel,
			)

			pipeline, err := ingestion.NewPipeline(embedder, ingestion.Config{BatchSize: batchSize})
			if err != nil {
				return fmt.Errorf("ingest: %w", err)
			}

			if err := pipeline.WriteFile(ctx, cat, out, func(msg string) {
				log.Info(msg)
			}); err != nil {
				return fmt.Errorf("ingest: %w", err)
			}

			log.Info("ingestion complete",
				slog.String("out", out),
				slog.Int("entries", cat.Size()),
				slog.String("model", cfg.API.EmbeddingModel),
			)
			return nil
		},
	}

	cmd.Flags().StringVarP(&out, "out", "o", "", "Output path for the embedding record set (default: config embeddings path)")
	cmd.Flags().IntVarP(&batchSize, "batch-size", "b", 0, "Entries per embedding API call (default: 100)")

	return cmd
}
