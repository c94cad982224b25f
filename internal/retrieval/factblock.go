package retrieval

import (
	"fmt"
	"sort"
	"strings"

	"github.com/54b3r/chartchat-go/internal/catalog"
)

// reminderLimit bounds how many entries the short end-of-prompt reminder
// restates. The full table already lists everything; the reminder exists to
// keep the constraint in the model's most recent context.
const reminderLimit = 8

// FactBlock is the structured fact segment produced by EnrichQuery. It is
// passed to the conversation layer as a value, never re-parsed out of
// concatenated prompt text.
type FactBlock struct {
	// Results is the retained result set sorted by year ascending, no two
	// sharing a (group, item, year) key.
	Results []Result
}

// NewFactBlock builds a FactBlock over results, sorted by year ascending.
// The sort is stable so same-year results keep their retrieval order.
func NewFactBlock(results []Result) *FactBlock {
	sorted := make([]Result, len(results))
	copy(sorted, results)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Entry.Year < sorted[j].Entry.Year
	})
	return &FactBlock{Results: sorted}
}

// Entries returns the block's catalog entries in year order.
func (b *FactBlock) Entries() []catalog.Entry {
	entries := make([]catalog.Entry, len(b.Results))
	for i, r := range b.Results {
		entries[i] = r.Entry
	}
	return entries
}

// scoreText prints the entry's score exactly as it appears in the source
// data. Entries built in code without a captured literal fall back to two
// decimals.
func scoreText(e catalog.Entry) string {
	if e.ScoreText != "" {
		return e.ScoreText
	}
	return fmt.Sprintf("%.2f", e.Score)
}

func yearText(e catalog.Entry) string {
	if e.Year == 0 {
		return "unknown"
	}
	return fmt.Sprintf("%d", e.Year)
}

// Render produces the full annotated fact block injected into the user turn.
// The numeric-fidelity constraint is deliberately restated in several
// phrasings and positions; models routinely ignore a single instruction.
func (b *FactBlock) Render() string {
	var sb strings.Builder

	sb.WriteString("VERIFIED CATALOG DATA — this table is the only source of truth for this answer.\n")
	sb.WriteString("Use only the entries below. Do not invent, estimate or round any number.\n\n")

	sb.WriteString("| Group | Album | Year | Rank | Score |\n")
	sb.WriteString("|---|---|---|---|---|\n")
	for _, r := range b.Results {
		e := r.Entry
		fmt.Fprintf(&sb, "| %s | %s | %s | %d | %s |\n", e.Group, e.Item, yearText(e), e.Rank, scoreText(e))
	}

	sb.WriteString("\nIn plain words, the verified facts are:\n")
	for _, r := range b.Results {
		e := r.Entry
		fmt.Fprintf(&sb, "- %s — \"%s\" (%s) was rated exactly %s.\n", e.Group, e.Item, yearText(e), scoreText(e))
	}

	if len(b.Results) > 0 {
		first := b.Results[0].Entry
		last := b.Results[len(b.Results)-1].Entry
		sb.WriteString("\n")
		fmt.Fprintf(&sb, "Example of correct usage: \"%s's '%s' was rated %s.\" (the number is copied from the table)\n", first.Group, first.Item, scoreText(first))
		fmt.Fprintf(&sb, "Example of INCORRECT usage: \"%s's '%s' was rated about %.0f.\" (never round or approximate a score)\n", last.Group, last.Item, last.Score)
	}

	if stmt := b.trendStatement(); stmt != "" {
		sb.WriteString("\n")
		sb.WriteString(stmt)
		sb.WriteString("\n")
	}

	sb.WriteString("\nRules for your answer:\n")
	sb.WriteString("1. Every score you state must be copied character-for-character from the table above.\n")
	sb.WriteString("2. Do not mention any album or group that is absent from the table.\n")
	sb.WriteString("3. If the table does not answer the question, say the catalog has no data for it — do not guess.\n")
	sb.WriteString("4. All scores use a 0-5 scale where higher is better; never present them on any other scale.\n")

	return sb.String()
}

// trendStatement returns a one-line score-development summary, or "" when the
// block covers at most one entry or a single year.
func (b *FactBlock) trendStatement() string {
	if len(b.Results) < 2 {
		return ""
	}
	entries := b.Entries()
	if entries[0].Year == entries[len(entries)-1].Year {
		return ""
	}

	sum := catalog.Summarize(entries)
	return fmt.Sprintf("Score development across these entries: %s (from %s in %s to %s in %s).",
		sum.Trend,
		scoreText(sum.Entries[0]), yearText(sum.Entries[0]),
		scoreText(sum.Entries[sum.Count-1]), yearText(sum.Entries[sum.Count-1]))
}

// Reminder is the short restatement appended after the user's question. It
// repeats the scores for up to reminderLimit entries and closes with the
// fidelity constraint one more time.
func (b *FactBlock) Reminder() string {
	var sb strings.Builder
	sb.WriteString("Reminder — verified scores: ")

	limit := len(b.Results)
	if limit > reminderLimit {
		limit = reminderLimit
	}
	parts := make([]string, 0, limit)
	for _, r := range b.Results[:limit] {
		e := r.Entry
		parts = append(parts, fmt.Sprintf("%s \"%s\" = %s", e.Group, e.Item, scoreText(e)))
	}
	sb.WriteString(strings.Join(parts, "; "))
	if len(b.Results) > limit {
		fmt.Fprintf(&sb, " (and %d more in the table)", len(b.Results)-limit)
	}
	sb.WriteString(". Answer with these exact numbers only.")
	return sb.String()
}

// SystemBlock is the framing line prepended to the system prompt when a fact
// block is present for the turn.
func (b *FactBlock) SystemBlock() string {
	return fmt.Sprintf("The user's message includes a table of %d verified catalog entries. Treat that table as the only source of numeric facts for this turn.", len(b.Results))
}
