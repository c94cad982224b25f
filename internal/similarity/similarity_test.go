package similarity

import (
	"errors"
	"math"
	"testing"
)

// almostEqual reports whether two floats are equal within a small tolerance.
func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func Test_Cosine_SelfSimilarityIsOne(t *testing.T) {
	t.Parallel()
	v := []float64{0.3, -1.2, 4.5, 0.01}

	sim, err := Cosine(v, v)
	if err != nil {
		t.Fatalf("cosine: %v", err)
	}
	if !almostEqual(sim, 1.0) {
		t.Errorf("self similarity: want 1.0, got %v", sim)
	}
}

func Test_Cosine_Symmetric(t *testing.T) {
	t.Parallel()
	a := []float64{1, 2, 3}
	b := []float64{-2, 0.5, 7}

	ab, err := Cosine(a, b)
	if err != nil {
		t.Fatalf("cosine(a,b): %v", err)
	}
	ba, err := Cosine(b, a)
	if err != nil {
		t.Fatalf("cosine(b,a): %v", err)
	}
	if !almostEqual(ab, ba) {
		t.Errorf("symmetry: sim(a,b)=%v, sim(b,a)=%v", ab, ba)
	}
}

func Test_Cosine_DimensionMismatch(t *testing.T) {
	t.Parallel()

	_, err := Cosine([]float64{1, 2}, []float64{1, 2, 3})
	var dimErr *DimensionError
	if !errors.As(err, &dimErr) {
		t.Fatalf("want *DimensionError, got %v", err)
	}
	if dimErr.LenA != 2 || dimErr.LenB != 3 {
		t.Errorf("dimension error lengths: got %d/%d", dimErr.LenA, dimErr.LenB)
	}
}

func Test_Cosine_ZeroNormReturnsZero(t *testing.T) {
	t.Parallel()

	sim, err := Cosine([]float64{0, 0, 0}, []float64{1, 2, 3})
	if err != nil {
		t.Fatalf("cosine: %v", err)
	}
	if sim != 0 {
		t.Errorf("zero-norm similarity: want 0, got %v", sim)
	}
}

func Test_Rank_RespectsTopKAndMinSimilarity(t *testing.T) {
	t.Parallel()
	query := []float64{1, 0}
	vectors := [][]float64{
		{1, 0},      // sim 1.0
		{0.9, 0.1},  // high
		{0, 1},      // sim 0.0 — filtered
		{0.7, 0.7},  // ~0.7
		{-1, 0},     // negative — filtered
		{0.99, 0.2}, // high
	}

	matches := Rank(query, vectors, 2, 0.5)
	if len(matches) > 2 {
		t.Fatalf("topK violated: got %d matches", len(matches))
	}
	for _, m := range matches {
		if m.Similarity < 0.5 {
			t.Errorf("minSimilarity violated: index %d has %v", m.Index, m.Similarity)
		}
	}
	if matches[0].Index != 0 {
		t.Errorf("best match: want index 0, got %d", matches[0].Index)
	}
}

func Test_Rank_SortedDescending(t *testing.T) {
	t.Parallel()
	query := []float64{1, 0}
	vectors := [][]float64{{0.5, 0.5}, {1, 0}, {0.9, 0.1}}

	matches := Rank(query, vectors, 10, 0)
	for i := 1; i < len(matches); i++ {
		if matches[i].Similarity > matches[i-1].Similarity {
			t.Fatalf("not sorted descending at %d: %v > %v", i, matches[i].Similarity, matches[i-1].Similarity)
		}
	}
}

func Test_Rank_SkipsMismatchedVectors(t *testing.T) {
	t.Parallel()
	query := []float64{1, 0}
	vectors := [][]float64{{1, 0}, {1, 0, 0}, {0.8, 0.2}}

	matches := Rank(query, vectors, 10, 0)
	for _, m := range matches {
		if m.Index == 1 {
			t.Errorf("mismatched vector at index 1 was not skipped")
		}
	}
	if len(matches) != 2 {
		t.Errorf("want 2 matches, got %d", len(matches))
	}
}

func Test_Rank_EmptyInputs(t *testing.T) {
	t.Parallel()

	if got := Rank(nil, [][]float64{{1}}, 5, 0); got != nil {
		t.Errorf("nil query: want nil, got %v", got)
	}
	if got := Rank([]float64{1}, nil, 5, 0); got != nil {
		t.Errorf("nil vectors: want nil, got %v", got)
	}
	if got := Rank([]float64{1}, [][]float64{{1}}, 0, 0); got != nil {
		t.Errorf("topK=0: want nil, got %v", got)
	}
}
