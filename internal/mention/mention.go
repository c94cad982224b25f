// Package mention detects catalog group names inside free text. Matching is
// case-insensitive and diacritic-insensitive ("Beyoncé" matches "beyonce")
// and only fires on whole words, so a group named "The" never matches the
// "The" inside "Theory". A configurable stop-word set suppresses group names
// like "The" that are too common to be meaningful mentions on their own.
//
// Both the retrieval service (group-explicit expansion) and the conversation
// controller (draft-answer validation) share this package.
package mention

import (
	"bufio"
	"fmt"
	"os"
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// normalizer lower-cases and strips combining diacritical marks: the text is
// decomposed (NFD), marks are removed, then recomposed (NFC).
var normalizer = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Normalize returns s lower-cased with combining diacritical marks removed.
// "Beyoncé" becomes "beyonce", "Café" becomes "cafe". The function is pure
// and deterministic; if the transform chain fails on malformed input the
// lower-cased original is returned unchanged.
func Normalize(s string) string {
	lowered := strings.ToLower(s)
	stripped, _, err := transform.String(normalizer, lowered)
	if err != nil {
		return lowered
	}
	return stripped
}

// pattern pairs a group's original-casing name with its compiled whole-word
// matcher over normalized text.
type pattern struct {
	// name is the group name with original casing, as returned to callers.
	name string
	// re matches the normalized name on word boundaries.
	re *regexp.Regexp
}

// Extractor matches known group names inside free text.
type Extractor struct {
	// patterns holds one compiled matcher per non-stop-worded group,
	// in the order the groups were provided.
	patterns []pattern
}

// NewExtractor builds an Extractor for the given group names. Names whose
// normalized form appears in stopwords are skipped entirely; duplicate
// normalized names keep only their first occurrence.
func NewExtractor(groups []string, stopwords []string) *Extractor {
	stop := make(map[string]struct{}, len(stopwords))
	for _, w := range stopwords {
		stop[Normalize(w)] = struct{}{}
	}

	e := &Extractor{}
	seen := make(map[string]struct{}, len(groups))
	for _, g := range groups {
		n := Normalize(g)
		if n == "" {
			continue
		}
		if _, dup := seen[n]; dup {
			continue
		}
		seen[n] = struct{}{}
		if _, skip := stop[n]; skip {
			continue
		}
		re, err := regexp.Compile(`\b` + regexp.QuoteMeta(n) + `\b`)
		if err != nil {
			// unreachable: QuoteMeta escapes every metacharacter
			continue
		}
		e.patterns = append(e.patterns, pattern{name: g, re: re})
	}
	return e
}

// Extract returns the original-casing names of every known group mentioned in
// text as a whole word, de-duplicated, in the order the groups were
// registered. Returns nil when nothing matches.
func (e *Extractor) Extract(text string) []string {
	if text == "" || len(e.patterns) == 0 {
		return nil
	}

	normalized := Normalize(text)
	var out []string
	for _, p := range e.patterns {
		if p.re.MatchString(normalized) {
			out = append(out, p.name)
		}
	}
	return out
}

// LoadStopwords reads a stop-word list from path: one word per line, blank
// lines and lines starting with '#' ignored. A missing file is not an error —
// the caller degrades to an empty set.
func LoadStopwords(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("mention: open stopwords %s: %w", path, err)
	}
	defer f.Close()

	var words []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		words = append(words, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("mention: read stopwords %s: %w", path, err)
	}
	return words, nil
}
