package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/54b3r/chartchat-go/internal/catalog"
	"github.com/54b3r/chartchat-go/internal/vectorstore"
)

// NewStatusCmd constructs the `chartchat status` command, which reports the
// state of the local data files without touching the model API.
func NewStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show catalog and embedding store status",
		Long: `Inspect the configured data files and report what a session would see.

Checks the catalog and the embedding record set; no model API calls are
made. A missing embeddings file means semantic retrieval is disabled and
sessions fall back to exact substring search.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := loadedCfg

			if loadedConfigPath != "" {
				fmt.Printf("config:      %s\n", loadedConfigPath)
			} else {
				fmt.Println("config:      (defaults + env)")
			}

			cat, err := catalog.LoadFile(cfg.Data.CatalogPath)
			if err != nil {
				return fmt.Errorf("status: load catalog %s: %w", cfg.Data.CatalogPath, err)
			}
			fmt.Printf("catalog:     %s\n", cfg.Data.CatalogPath)
			fmt.Println(cat.Overview())

			vs := vectorstore.New()
			if err := vs.LoadFile(cfg.Data.EmbeddingsPath); err != nil {
				fmt.Printf("embeddings:  not loaded (%v)\n", err)
				fmt.Println("retrieval:   exact substring search only — run 'chartchat ingest'")
				return nil
			}
			fmt.Printf("embeddings:  %d records, dimension %d (%s)\n",
				vs.Size(), vs.Dimension(), cfg.Data.EmbeddingsPath)

			mode := "semantic"
			if cfg.Retrieval.UseHybrid {
				mode = "hybrid"
			}
			fmt.Printf("retrieval:   %s, top-k %d\n", mode, cfg.Retrieval.TopK)
			if vs.Size() != cat.Size() {
				fmt.Printf("warning:     embedding count differs from catalog size — re-run 'chartchat ingest'\n")
			}
			return nil
		},
	}
}
