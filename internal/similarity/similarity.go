// Package similarity implements cosine similarity and top-k ranking over
// dense vectors. It is a pure package with no I/O: the retrieval layer feeds
// it the query embedding and the stored vectors and maps the returned indices
// back onto catalog entries.
package similarity

import (
	"fmt"
	"math"
	"sort"
)

// DimensionError is returned by Cosine when the two vectors have different
// lengths. Embeddings for a given model have a fixed dimensionality, so a
// mismatch indicates corrupted or mixed-model data rather than a soft miss.
type DimensionError struct {
	// LenA is the length of the first vector.
	LenA int
	// LenB is the length of the second vector.
	LenB int
}

// Error implements the error interface.
func (e *DimensionError) Error() string {
	return fmt.Sprintf("similarity: vectors must have equal length: %d vs %d", e.LenA, e.LenB)
}

// Cosine returns the cosine similarity of a and b.
// It returns a *DimensionError if the vectors differ in length.
// If either vector has zero norm the similarity is 0 — this guards the
// divide-by-zero without treating an all-zero embedding as an error.
func Cosine(a, b []float64) (float64, error) {
	if len(a) != len(b) {
		return 0, &DimensionError{LenA: len(a), LenB: len(b)}
	}

	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}

	denom := math.Sqrt(normA) * math.Sqrt(normB)
	if denom == 0 {
		return 0, nil
	}
	return dot / denom, nil
}

// Match pairs a vector's position in the input slice with its similarity to
// the query. Index refers to the vectors slice passed to Rank, not to any
// catalog identifier.
type Match struct {
	// Index is the position of the matched vector in the input slice.
	Index int
	// Similarity is the cosine similarity to the query, in [0, 1] for
	// non-negative embeddings.
	Similarity float64
}

// Rank computes the similarity of every vector to query, sorts descending by
// similarity, drops matches below minSimilarity, and truncates to topK.
// Vectors whose dimensionality does not match the query are skipped rather
// than failing the whole ranking. Ties keep the stable order of the input;
// no secondary sort key is applied.
func Rank(query []float64, vectors [][]float64, topK int, minSimilarity float64) []Match {
	if len(query) == 0 || len(vectors) == 0 || topK <= 0 {
		return nil
	}

	matches := make([]Match, 0, len(vectors))
	for i, v := range vectors {
		sim, err := Cosine(query, v)
		if err != nil {
			continue
		}
		if sim < minSimilarity {
			continue
		}
		matches = append(matches, Match{Index: i, Similarity: sim})
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Similarity > matches[j].Similarity
	})

	if len(matches) > topK {
		matches = matches[:topK]
	}
	return matches
}
