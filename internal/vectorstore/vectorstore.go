// Package vectorstore holds the precomputed entry embeddings the retrieval
// service searches over. The store is bulk-loaded once from the ingestion
// output and read-only afterwards; a load replaces the whole record set
// atomically. An unloaded store is a soft failure — retrieval degrades to
// exact text search instead of erroring out.
package vectorstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/54b3r/chartchat-go/internal/catalog"
)

// ErrUninitialized is returned by operations that need embeddings before any
// record set has been loaded. Callers treat it as a degraded state, not a
// fatal one.
var ErrUninitialized = errors.New("vectorstore: no records loaded")

// Record pairs a catalog entry with its embedding vector. Index is the
// record's position in the ingestion output and doubles as the entry's stable
// identity during retrieval dedup.
type Record struct {
	// Entry is the rated catalog entry this vector was computed from.
	Entry catalog.Entry `json:"entry"`
	// Vector is the embedding of the entry's ingestion text.
	Vector []float64 `json:"vector"`
	// Index is the record's position in the loaded set.
	Index int `json:"index"`
}

// Store is the in-memory record set. Safe for concurrent use: loads take the
// write lock and replace everything, reads share the read lock.
type Store struct {
	mu      sync.RWMutex
	records []Record
	dim     int
}

// New returns an empty, uninitialized store.
func New() *Store {
	return &Store{}
}

// Load decodes a JSON array of records from r and replaces the store's
// contents. All vectors must share one dimension; a mixed-dimension file is
// rejected and the previous contents are kept.
func (s *Store) Load(r io.Reader) error {
	var records []Record
	if err := json.NewDecoder(r).Decode(&records); err != nil {
		return fmt.Errorf("vectorstore: decode records: %w", err)
	}
	if len(records) == 0 {
		return fmt.Errorf("vectorstore: source contains no records")
	}

	dim := len(records[0].Vector)
	if dim == 0 {
		return fmt.Errorf("vectorstore: record 0 has an empty vector")
	}
	for i, rec := range records {
		if len(rec.Vector) != dim {
			return fmt.Errorf("vectorstore: record %d has dimension %d, want %d", i, len(rec.Vector), dim)
		}
		records[i].Index = i
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = records
	s.dim = dim
	return nil
}

// LoadFile loads the record set from a JSON file on disk.
func (s *Store) LoadFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("vectorstore: open %s: %w", path, err)
	}
	defer f.Close()
	return s.Load(f)
}

// All returns the full record set in index order, or ErrUninitialized when
// nothing has been loaded. Callers must not mutate the returned slice.
func (s *Store) All() ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.records) == 0 {
		return nil, ErrUninitialized
	}
	return s.records, nil
}

// Initialized reports whether a record set has been loaded.
func (s *Store) Initialized() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records) > 0
}

// Size returns the number of loaded records, 0 when uninitialized.
func (s *Store) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// Dimension returns the shared vector dimension, 0 when uninitialized.
func (s *Store) Dimension() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dim
}
