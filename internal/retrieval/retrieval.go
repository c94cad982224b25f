// Package retrieval turns a raw user question into an annotated query backed
// by catalog facts. It embeds the query (with an exact-string cache), runs
// hybrid retrieval combining exact substring search with embedding
// similarity, force-includes every entry of any group named literally in the
// query, and produces the structured fact block the conversation layer hands
// to the generation model.
//
// Every failure in this package degrades instead of blocking: an unloaded
// vector store or a failing embedding service falls back to exact search, and
// an empty result set leaves the query untouched.
package retrieval

import (
	"context"
	"fmt"

	gocache "github.com/patrickmn/go-cache"

	"github.com/54b3r/chartchat-go/internal/catalog"
	"github.com/54b3r/chartchat-go/internal/mention"
	"github.com/54b3r/chartchat-go/internal/similarity"
	"github.com/54b3r/chartchat-go/internal/vectorstore"
)

// Match types carried on retrieval results.
const (
	// MatchExact marks a case-insensitive substring hit on group or item name.
	MatchExact = "exact"
	// MatchSemantic marks an embedding-similarity hit.
	MatchSemantic = "semantic"
	// MatchGroupExplicit marks an entry force-included because its group was
	// named literally in the query.
	MatchGroupExplicit = "group-explicit"
)

// Similarity floors. Hybrid retrieval filters harder because exact matches
// already cover the easy cases.
const (
	minSimilaritySemantic = 0.3
	minSimilarityHybrid   = 0.4
)

// Result is one retrieved catalog entry with its provenance.
type Result struct {
	// Entry is the matched catalog entry.
	Entry catalog.Entry
	// Similarity is in [0,1]; exact and group-explicit matches carry 1.0.
	Similarity float64
	// MatchType is MatchExact, MatchSemantic or MatchGroupExplicit.
	MatchType string
}

// Embedder converts one text into its embedding vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float64, error)
}

// Service runs the retrieval pipeline. All collaborators are injected at
// construction and owned for the session lifetime.
type Service struct {
	embedder  Embedder
	store     *vectorstore.Store
	catalog   *catalog.Catalog
	extractor *mention.Extractor
	// cache maps the exact query string to its embedding. Entries never
	// expire; the cache lives as long as the session.
	cache *gocache.Cache
}

// NewService constructs a Service over the given collaborators.
func NewService(embedder Embedder, store *vectorstore.Store, cat *catalog.Catalog, extractor *mention.Extractor) *Service {
	return &Service{
		embedder:  embedder,
		store:     store,
		catalog:   cat,
		extractor: extractor,
		cache:     gocache.New(gocache.NoExpiration, 0),
	}
}

// EmbedQuery returns the embedding for query, serving repeats from the
// in-process cache keyed by the exact query string.
func (s *Service) EmbedQuery(ctx context.Context, query string) ([]float64, error) {
	if cached, ok := s.cache.Get(query); ok {
		return cached.([]float64), nil
	}

	vector, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("retrieval: embed query: %w", err)
	}
	s.cache.Set(query, vector, gocache.NoExpiration)
	return vector, nil
}

// CachedQueries returns the number of query embeddings held in the cache.
func (s *Service) CachedQueries() int {
	return s.cache.ItemCount()
}

// ExactSearch returns up to topK entries whose group or item name contains
// the query as a case-insensitive substring, each with similarity 1.0.
func (s *Service) ExactSearch(query string, topK int) []Result {
	hits := s.catalog.SearchSubstring(query)
	if topK > 0 && len(hits) > topK {
		hits = hits[:topK]
	}
	results := make([]Result, 0, len(hits))
	for _, e := range hits {
		results = append(results, Result{Entry: e, Similarity: 1.0, MatchType: MatchExact})
	}
	return results
}

// SemanticRetrieve ranks the vector store against the embedded query and
// returns up to topK results above the semantic similarity floor. Returns
// vectorstore.ErrUninitialized when no embeddings are loaded.
func (s *Service) SemanticRetrieve(ctx context.Context, query string, topK int) ([]Result, error) {
	return s.semantic(ctx, query, topK, minSimilaritySemantic)
}

func (s *Service) semantic(ctx context.Context, query string, topK int, minSim float64) ([]Result, error) {
	records, err := s.store.All()
	if err != nil {
		return nil, err
	}

	vector, err := s.EmbedQuery(ctx, query)
	if err != nil {
		return nil, err
	}

	vectors := make([][]float64, len(records))
	for i, r := range records {
		vectors[i] = r.Vector
	}

	matches := similarity.Rank(vector, vectors, topK, minSim)
	results := make([]Result, 0, len(matches))
	for _, m := range matches {
		results = append(results, Result{
			Entry:      records[m.Index].Entry,
			Similarity: m.Similarity,
			MatchType:  MatchSemantic,
		})
	}
	return results, nil
}

// HybridRetrieve merges exact substring matches with semantic matches. Exact
// matches sort first, semantic matches follow in similarity order, and no two
// results share a (group, item, year) key. When the store is unloaded or the
// embedding call fails, the result degrades to exact matches alone.
func (s *Service) HybridRetrieve(ctx context.Context, query string, topK int) []Result {
	exact := s.ExactSearch(query, topK)

	// Request extra semantic candidates so dedup against exact hits does not
	// starve the final set.
	semantic, err := s.semantic(ctx, query, 2*topK, minSimilarityHybrid)
	if err != nil {
		return exact
	}

	seen := make(map[string]struct{}, len(exact)+len(semantic))
	merged := make([]Result, 0, len(exact)+len(semantic))
	for _, r := range exact {
		key := r.Entry.Key()
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		merged = append(merged, r)
	}
	for _, r := range semantic {
		key := r.Entry.Key()
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		merged = append(merged, r)
	}

	if topK > 0 && len(merged) > topK {
		merged = merged[:topK]
	}
	return merged
}

// Enriched is the retrieval service's answer for one query: the text to send
// to the model plus the structured fact segment backing it. Segment is nil
// when retrieval produced nothing, in which case Query is the original input.
type Enriched struct {
	// Query is the original user question, unmodified.
	Query string
	// Segment is the fact block to inject alongside the query, nil when
	// retrieval found nothing.
	Segment *FactBlock
}

// EnrichQuery runs retrieval for query and builds the fact segment. Groups
// named literally in the query contribute all of their entries regardless of
// topK. useHybrid selects hybrid retrieval; otherwise semantic-only (falling
// back to exact search when semantic retrieval is unavailable).
func (s *Service) EnrichQuery(ctx context.Context, query string, topK int, useHybrid bool) Enriched {
	var results []Result
	if useHybrid {
		results = s.HybridRetrieve(ctx, query, topK)
	} else {
		var err error
		results, err = s.SemanticRetrieve(ctx, query, topK)
		if err != nil {
			results = s.ExactSearch(query, topK)
		}
	}

	// Group-explicit expansion: every entry of every group the query names
	// literally, deduplicated against what retrieval already found.
	seen := make(map[string]struct{}, len(results))
	for _, r := range results {
		seen[r.Entry.Key()] = struct{}{}
	}
	for _, group := range s.extractor.Extract(query) {
		for _, e := range s.catalog.EntriesForGroup(group) {
			key := e.Key()
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			results = append(results, Result{Entry: e, Similarity: 1.0, MatchType: MatchGroupExplicit})
		}
	}

	if len(results) == 0 {
		return Enriched{Query: query}
	}
	return Enriched{Query: query, Segment: NewFactBlock(results)}
}

// Status describes the retrieval service's readiness for the status surfaces.
type Status struct {
	// StoreInitialized reports whether embeddings are loaded.
	StoreInitialized bool `json:"store_initialized"`
	// StoreSize is the number of loaded embedding records.
	StoreSize int `json:"store_size"`
	// CatalogSize is the number of catalog entries.
	CatalogSize int `json:"catalog_size"`
	// CachedQueries is the number of cached query embeddings.
	CachedQueries int `json:"cached_queries"`
}

// Status reports the current readiness snapshot.
func (s *Service) Status() Status {
	return Status{
		StoreInitialized: s.store.Initialized(),
		StoreSize:        s.store.Size(),
		CatalogSize:      s.catalog.Size(),
		CachedQueries:    s.cache.ItemCount(),
	}
}
