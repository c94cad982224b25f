package retrieval

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/54b3r/chartchat-go/internal/catalog"
	"github.com/54b3r/chartchat-go/internal/mention"
	"github.com/54b3r/chartchat-go/internal/vectorstore"
)

// fakeEmbedder returns a fixed vector and counts calls. When fail is set
// every call errors.
type fakeEmbedder struct {
	vector []float64
	calls  int
	fail   bool
}

func (f *fakeEmbedder) Embed(_ context.Context, _ string) ([]float64, error) {
	f.calls++
	if f.fail {
		return nil, errors.New("embedding service down")
	}
	return f.vector, nil
}

func testCatalog() *catalog.Catalog {
	return catalog.New([]catalog.Entry{
		{Group: "Kraftklub", Item: "Mit K", Year: 2012, Rank: 1, Score: 3.40, ScoreText: "3.40"},
		{Group: "Kraftklub", Item: "In Schwarz", Year: 2014, Rank: 2, Score: 3.05, ScoreText: "3.05"},
		{Group: "Kraftklub", Item: "Keine Nacht", Year: 2017, Rank: 1, Score: 3.60, ScoreText: "3.60"},
		{Group: "Beyoncé", Item: "Lemonade", Year: 2016, Rank: 1, Score: 4.10, ScoreText: "4.10"},
	})
}

func loadedStore(t *testing.T) *vectorstore.Store {
	t.Helper()
	s := vectorstore.New()
	src := `[
		{"entry":{"group":"Kraftklub","item":"Mit K","year":2012,"rank":1,"score":3.40},"vector":[1,0,0]},
		{"entry":{"group":"Kraftklub","item":"In Schwarz","year":2014,"rank":2,"score":3.05},"vector":[0.9,0.1,0]},
		{"entry":{"group":"Beyoncé","item":"Lemonade","year":2016,"rank":1,"score":4.10},"vector":[0,1,0]}
	]`
	if err := s.Load(strings.NewReader(src)); err != nil {
		t.Fatalf("load store: %v", err)
	}
	return s
}

func newTestService(t *testing.T, emb Embedder, store *vectorstore.Store) *Service {
	t.Helper()
	cat := testCatalog()
	return NewService(emb, store, cat, mention.NewExtractor(cat.Groups(), nil))
}

func Test_Service_EmbedQueryCaches(t *testing.T) {
	t.Parallel()
	emb := &fakeEmbedder{vector: []float64{1, 0, 0}}
	svc := newTestService(t, emb, vectorstore.New())

	for i := 0; i < 3; i++ {
		if _, err := svc.EmbedQuery(context.Background(), "same query"); err != nil {
			t.Fatalf("embed: %v", err)
		}
	}
	if emb.calls != 1 {
		t.Errorf("want 1 upstream call, got %d", emb.calls)
	}
	if svc.CachedQueries() != 1 {
		t.Errorf("want 1 cached query, got %d", svc.CachedQueries())
	}
}

func Test_Service_HybridFallsBackWhenStoreUnloaded(t *testing.T) {
	t.Parallel()
	svc := newTestService(t, &fakeEmbedder{vector: []float64{1, 0, 0}}, vectorstore.New())

	results := svc.HybridRetrieve(context.Background(), "Kraftklub", 10)
	if len(results) != 3 {
		t.Fatalf("want 3 exact matches, got %d", len(results))
	}
	for _, r := range results {
		if r.MatchType != MatchExact || r.Similarity != 1.0 {
			t.Errorf("fallback result: %+v", r)
		}
	}
}

func Test_Service_HybridFallsBackWhenEmbeddingFails(t *testing.T) {
	t.Parallel()
	svc := newTestService(t, &fakeEmbedder{fail: true}, loadedStore(t))

	results := svc.HybridRetrieve(context.Background(), "Lemonade", 10)
	if len(results) != 1 || results[0].MatchType != MatchExact {
		t.Fatalf("want exact-only fallback, got %+v", results)
	}
}

func Test_Service_HybridDeduplicatesAndOrders(t *testing.T) {
	t.Parallel()
	// Query vector is closest to Mit K, which is also an exact match.
	svc := newTestService(t, &fakeEmbedder{vector: []float64{1, 0, 0}}, loadedStore(t))

	results := svc.HybridRetrieve(context.Background(), "Mit K", 10)

	seen := make(map[string]struct{})
	for _, r := range results {
		key := r.Entry.Key()
		if _, dup := seen[key]; dup {
			t.Errorf("duplicate key %q in results", key)
		}
		seen[key] = struct{}{}
	}

	if results[0].MatchType != MatchExact {
		t.Errorf("exact matches must sort first, got %s", results[0].MatchType)
	}
	lastSim := 2.0
	for _, r := range results {
		if r.MatchType != MatchSemantic {
			continue
		}
		if r.Similarity > lastSim {
			t.Errorf("semantic matches not sorted by similarity: %v", results)
		}
		lastSim = r.Similarity
	}
}

func Test_Service_HybridRespectsTopK(t *testing.T) {
	t.Parallel()
	svc := newTestService(t, &fakeEmbedder{vector: []float64{1, 0, 0}}, loadedStore(t))

	if results := svc.HybridRetrieve(context.Background(), "Kraftklub", 2); len(results) > 2 {
		t.Errorf("topK exceeded: %d results", len(results))
	}
}

func Test_Service_EnrichExpandsExplicitGroups(t *testing.T) {
	t.Parallel()
	svc := newTestService(t, &fakeEmbedder{vector: []float64{1, 0, 0}}, loadedStore(t))

	// topK 1 is smaller than Kraftklub's three entries; the group being
	// named literally must force all of them in anyway.
	enriched := svc.EnrichQuery(context.Background(), "How has Kraftklub developed?", 1, true)
	if enriched.Segment == nil {
		t.Fatal("want a fact segment")
	}

	kraftklub := 0
	for _, r := range enriched.Segment.Results {
		if r.Entry.Group == "Kraftklub" {
			kraftklub++
		}
	}
	if kraftklub != 3 {
		t.Errorf("want all 3 Kraftklub entries, got %d", kraftklub)
	}
	if enriched.Query != "How has Kraftklub developed?" {
		t.Errorf("original query must be preserved, got %q", enriched.Query)
	}
}

func Test_Service_EnrichEmptyResultLeavesQueryBare(t *testing.T) {
	t.Parallel()
	svc := newTestService(t, &fakeEmbedder{fail: true}, vectorstore.New())

	enriched := svc.EnrichQuery(context.Background(), "what is the weather", 5, true)
	if enriched.Segment != nil {
		t.Errorf("want nil segment, got %+v", enriched.Segment)
	}
	if enriched.Query != "what is the weather" {
		t.Errorf("query changed: %q", enriched.Query)
	}
}

func Test_FactBlock_RenderSortsAndPreservesScores(t *testing.T) {
	t.Parallel()
	cat := testCatalog()
	results := []Result{
		{Entry: cat.Entries()[2], Similarity: 1.0, MatchType: MatchGroupExplicit}, // 2017
		{Entry: cat.Entries()[0], Similarity: 1.0, MatchType: MatchExact},         // 2012
	}

	block := NewFactBlock(results)
	if block.Results[0].Entry.Year != 2012 {
		t.Errorf("entries not sorted by year: first is %d", block.Results[0].Entry.Year)
	}

	rendered := block.Render()
	if !strings.Contains(rendered, "| Kraftklub | Mit K | 2012 | 1 | 3.40 |") {
		t.Errorf("table row missing or score reformatted:\n%s", rendered)
	}
	if !strings.Contains(rendered, "rising") {
		t.Errorf("trend statement missing (3.40 -> 3.60):\n%s", rendered)
	}

	// The fidelity constraint must appear in several phrasings.
	phrasings := []string{
		"Do not invent, estimate or round",
		"copied character-for-character",
		"never round or approximate",
	}
	for _, p := range phrasings {
		if !strings.Contains(rendered, p) {
			t.Errorf("missing constraint phrasing %q", p)
		}
	}
}

func Test_FactBlock_ReminderCapsEntries(t *testing.T) {
	t.Parallel()
	var results []Result
	for _, e := range testCatalog().Entries() {
		results = append(results, Result{Entry: e, Similarity: 1.0, MatchType: MatchExact})
		results = append(results, Result{Entry: catalog.Entry{
			Group: e.Group, Item: e.Item + " II", Year: e.Year + 1, Score: e.Score, ScoreText: e.ScoreText,
		}, Similarity: 1.0, MatchType: MatchExact})
		results = append(results, Result{Entry: catalog.Entry{
			Group: e.Group, Item: e.Item + " III", Year: e.Year + 2, Score: e.Score, ScoreText: e.ScoreText,
		}, Similarity: 1.0, MatchType: MatchExact})
	}

	reminder := NewFactBlock(results).Reminder()
	if !strings.Contains(reminder, "and 4 more in the table") {
		t.Errorf("overflow note missing: %q", reminder)
	}
	if !strings.Contains(reminder, "exact numbers only") {
		t.Errorf("constraint missing: %q", reminder)
	}
}
