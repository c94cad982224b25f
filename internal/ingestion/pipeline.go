// Package ingestion implements the embedding precomputation pipeline. It
// turns every catalog entry into a short descriptive text, embeds the texts
// in batches, and writes the resulting record set as the JSON file the vector
// store bulk-loads at startup. This pipeline is invoked by the
// `chartchat ingest` CLI command.
package ingestion

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/54b3r/chartchat-go/internal/catalog"
	"github.com/54b3r/chartchat-go/internal/vectorstore"
)

// defaultBatchSize is how many entry texts go into one embedding request.
const defaultBatchSize = 100

// BatchEmbedder converts a batch of texts into embedding vectors, one per
// input text in order.
type BatchEmbedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float64, error)
}

// Config holds the configuration for the ingestion pipeline.
type Config struct {
	// BatchSize is the number of texts per embedding request. Defaults to
	// 100 if zero.
	BatchSize int
}

// Pipeline orchestrates the describe → embed → write flow over a catalog.
type Pipeline struct {
	// embedder converts entry texts into dense vector embeddings.
	embedder BatchEmbedder
	// cfg holds the resolved pipeline configuration.
	cfg Config
}

// NewPipeline constructs a Pipeline from the provided dependencies.
func NewPipeline(embedder BatchEmbedder, cfg Config) (*Pipeline, error) {
	if embedder == nil {
		return nil, fmt.Errorf("ingestion: embedder must not be nil")
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaultBatchSize
	}
	return &Pipeline{embedder: embedder, cfg: cfg}, nil
}

// EntryText is the canonical text embedded for one catalog entry. The same
// shape is used at query time, so the embedding space stays consistent
// between ingestion and retrieval.
func EntryText(e catalog.Entry) string {
	var sb strings.Builder
	sb.WriteString(e.Group)
	sb.WriteString(" - ")
	sb.WriteString(e.Item)
	if e.Year > 0 {
		fmt.Fprintf(&sb, " (%d)", e.Year)
	}
	score := e.ScoreText
	if score == "" {
		score = fmt.Sprintf("%.2f", e.Score)
	}
	fmt.Fprintf(&sb, " - score: %s", score)
	return sb.String()
}

// Run embeds every catalog entry and returns the record set in catalog
// order. Progress is reported via the optional progress callback.
func (p *Pipeline) Run(ctx context.Context, cat *catalog.Catalog, progress func(msg string)) ([]vectorstore.Record, error) {
	if progress == nil {
		progress = func(string) {}
	}

	entries := cat.Entries()
	records := make([]vectorstore.Record, 0, len(entries))

	for start := 0; start < len(entries); start += p.cfg.BatchSize {
		end := start + p.cfg.BatchSize
		if end > len(entries) {
			end = len(entries)
		}
		batch := entries[start:end]

		texts := make([]string, len(batch))
		for i, e := range batch {
			texts[i] = EntryText(e)
		}

		progress(fmt.Sprintf("embedding entries %d-%d of %d", start+1, end, len(entries)))
		vectors, err := p.embedder.EmbedBatch(ctx, texts)
		if err != nil {
			return nil, fmt.Errorf("ingestion: embed batch %d-%d: %w", start+1, end, err)
		}

		for i, e := range batch {
			records = append(records, vectorstore.Record{
				Entry:  e,
				Vector: vectors[i],
				Index:  start + i,
			})
		}
	}

	progress(fmt.Sprintf("embedded %d entries", len(records)))
	return records, nil
}

// WriteFile runs the pipeline and writes the record set as indented JSON to
// path, in the format vectorstore.Store.LoadFile reads back.
func (p *Pipeline) WriteFile(ctx context.Context, cat *catalog.Catalog, path string, progress func(msg string)) error {
	records, err := p.Run(ctx, cat, progress)
	if err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("ingestion: create %s: %w", path, err)
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(records); err != nil {
		return fmt.Errorf("ingestion: write %s: %w", path, err)
	}
	return nil
}
