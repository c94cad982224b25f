// Package catalog holds the static set of rated album entries the assistant
// answers from. The catalog is loaded once at startup from a JSON export and
// is read-only afterwards; every score the assistant surfaces must come from
// this data, never from the model's memory.
package catalog

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
)

// Entry is a single rated album record. Group and Item are never empty for a
// valid entry. Year and Rank use 0 to mean "unknown" — the source data leaves
// both blank for some early entries.
type Entry struct {
	// Group is the band or artist name, original casing.
	Group string `json:"group"`
	// Item is the album title.
	Item string `json:"item"`
	// Year is the release year, 0 if unknown.
	Year int `json:"year"`
	// Rank is the chart position in its review round, 0 if unknown.
	Rank int `json:"rank"`
	// Score is the review score on the fixed 0–5 scale (higher is better).
	Score float64 `json:"score"`
	// ScoreText is the exact score literal from the source JSON. Surfaced
	// scores must be byte-for-byte copies of the data, so the formatting
	// layer prints this instead of re-formatting Score.
	ScoreText string `json:"-"`
}

// UnmarshalJSON decodes an entry while capturing the raw score literal into
// ScoreText, so "3.10" is never re-printed as "3.1".
func (e *Entry) UnmarshalJSON(data []byte) error {
	var raw struct {
		Group string      `json:"group"`
		Item  string      `json:"item"`
		Year  int         `json:"year"`
		Rank  int         `json:"rank"`
		Score json.Number `json:"score"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("catalog: decode entry: %w", err)
	}

	score, err := raw.Score.Float64()
	if err != nil {
		return fmt.Errorf("catalog: entry %q/%q has non-numeric score %q: %w", raw.Group, raw.Item, raw.Score, err)
	}

	e.Group = raw.Group
	e.Item = raw.Item
	e.Year = raw.Year
	e.Rank = raw.Rank
	e.Score = score
	e.ScoreText = raw.Score.String()
	return nil
}

// MarshalJSON encodes an entry re-emitting the captured score literal, so a
// load/write round trip keeps scores byte-for-byte identical.
func (e Entry) MarshalJSON() ([]byte, error) {
	score := json.RawMessage(e.ScoreText)
	if e.ScoreText == "" || !json.Valid(score) {
		raw, err := json.Marshal(e.Score)
		if err != nil {
			return nil, fmt.Errorf("catalog: encode score: %w", err)
		}
		score = raw
	}
	return json.Marshal(struct {
		Group string          `json:"group"`
		Item  string          `json:"item"`
		Year  int             `json:"year"`
		Rank  int             `json:"rank"`
		Score json.RawMessage `json:"score"`
	}{e.Group, e.Item, e.Year, e.Rank, score})
}

// Key returns the deduplication key for this entry: group, item and year.
// Retrieval guarantees no two results share a key.
func (e Entry) Key() string {
	return fmt.Sprintf("%s|%s|%d", e.Group, e.Item, e.Year)
}

// Catalog is the immutable entry set plus lookup indexes built at load time.
type Catalog struct {
	// entries is the full ordered entry list as loaded.
	entries []Entry
	// groups is every distinct group name in first-seen order, original casing.
	groups []string
	// byGroup maps the lower-cased group name to its entries, in load order.
	byGroup map[string][]Entry
}

// New builds a Catalog from the given entries. Entries with an empty group or
// item are dropped — the source export occasionally carries placeholder rows.
func New(entries []Entry) *Catalog {
	c := &Catalog{byGroup: make(map[string][]Entry)}
	for _, e := range entries {
		if e.Group == "" || e.Item == "" {
			continue
		}
		c.entries = append(c.entries, e)
		key := strings.ToLower(e.Group)
		if _, seen := c.byGroup[key]; !seen {
			c.groups = append(c.groups, e.Group)
		}
		c.byGroup[key] = append(c.byGroup[key], e)
	}
	return c
}

// Load reads a JSON array of entries from r and builds a Catalog.
func Load(r io.Reader) (*Catalog, error) {
	var entries []Entry
	if err := json.NewDecoder(r).Decode(&entries); err != nil {
		return nil, fmt.Errorf("catalog: decode: %w", err)
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("catalog: source contains no entries")
	}
	return New(entries), nil
}

// LoadFile reads the catalog from a JSON file on disk.
func LoadFile(path string) (*Catalog, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("catalog: open %s: %w", path, err)
	}
	defer f.Close()
	return Load(f)
}

// Entries returns the full entry list in load order. Callers must not mutate
// the returned slice.
func (c *Catalog) Entries() []Entry {
	return c.entries
}

// Size returns the number of entries.
func (c *Catalog) Size() int {
	return len(c.entries)
}

// Groups returns every distinct group name in first-seen order with original
// casing. Used to seed the mention extractor.
func (c *Catalog) Groups() []string {
	return c.groups
}

// EntriesForGroup returns all entries whose group name equals name under
// case-insensitive comparison, in load order. Returns nil for unknown groups.
func (c *Catalog) EntriesForGroup(name string) []Entry {
	return c.byGroup[strings.ToLower(name)]
}

// SearchSubstring returns every entry whose group or item name contains the
// query as a case-insensitive substring, in load order.
func (c *Catalog) SearchSubstring(query string) []Entry {
	q := strings.ToLower(query)
	if q == "" {
		return nil
	}
	var out []Entry
	for _, e := range c.entries {
		if strings.Contains(strings.ToLower(e.Group), q) || strings.Contains(strings.ToLower(e.Item), q) {
			out = append(out, e)
		}
	}
	return out
}

// SortByYear returns a copy of entries sorted by year ascending. Entries with
// an unknown year (0) sort first. The sort is stable so same-year entries
// keep their input order.
func SortByYear(entries []Entry) []Entry {
	sorted := make([]Entry, len(entries))
	copy(sorted, entries)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Year < sorted[j].Year
	})
	return sorted
}
