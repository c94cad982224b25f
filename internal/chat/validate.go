package chat

import (
	"context"
	"fmt"
	"strings"

	"github.com/54b3r/chartchat-go/internal/catalog"
	"github.com/54b3r/chartchat-go/internal/llm"
)

// validationTemperature is the sampling temperature for the correction call.
// Low, because the validator must restate given numbers, not get creative.
const validationTemperature = 0.3

// OutcomeKind classifies what the validation pass did with a draft answer.
type OutcomeKind int

const (
	// OutcomeUnchanged means no correction was needed or possible (no
	// catalog groups mentioned, or none with entries). No model call was
	// made, or the model returned the draft verbatim.
	OutcomeUnchanged OutcomeKind = iota
	// OutcomeCorrected means the validation model produced a replacement
	// answer grounded in catalog entries.
	OutcomeCorrected
	// OutcomeFailed means the validation call failed; the caller keeps the
	// unvalidated draft.
	OutcomeFailed
)

// ValidationOutcome is the result of validating one draft answer.
type ValidationOutcome struct {
	// Kind says what happened.
	Kind OutcomeKind
	// Text is the corrected answer when Kind is OutcomeCorrected.
	Text string
	// Err is the validation failure when Kind is OutcomeFailed.
	Err error
}

// validateAndCorrect re-grounds a draft answer: it extracts catalog-group
// mentions from the draft, looks up every mentioned group's entries, and asks
// the validation model to regenerate the answer using exactly those numbers.
// Groups without catalog entries are dropped; with no groups left the draft
// passes through unchanged.
func (c *Conversation) validateAndCorrect(ctx context.Context, draft, originalQuery string) ValidationOutcome {
	mentioned := c.extractor.Extract(draft)
	if len(mentioned) == 0 {
		return ValidationOutcome{Kind: OutcomeUnchanged}
	}

	type groupFacts struct {
		name    string
		summary catalog.TrendSummary
	}
	var groups []groupFacts
	for _, name := range mentioned {
		entries := c.catalog.EntriesForGroup(name)
		if len(entries) == 0 {
			continue
		}
		groups = append(groups, groupFacts{name: name, summary: catalog.Summarize(entries)})
	}
	if len(groups) == 0 {
		return ValidationOutcome{Kind: OutcomeUnchanged}
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "The user asked: %q\n\n", originalQuery)
	sb.WriteString("Answer this question using ONLY the verified catalog data below.\n\n")
	for _, g := range groups {
		s := g.summary
		fmt.Fprintf(&sb, "%s — %d rated albums, first score %s, latest score %s, trend %s:\n",
			g.name, s.Count, entryScore(s.Entries[0]), entryScore(s.Entries[s.Count-1]), s.Trend)
		for _, e := range s.Entries {
			fmt.Fprintf(&sb, "  - \"%s\" (%s), rank %d, score %s\n", e.Item, entryYear(e), e.Rank, entryScore(e))
		}
		sb.WriteString("\n")
	}
	sb.WriteString("Write a complete, standalone answer to the user's question using exactly these numbers. ")
	sb.WriteString("Do not mention that you are correcting or revising a previous answer, and do not add any meta-commentary.")

	sampling := c.opts.Sampling
	sampling.Temperature = validationTemperature

	corrected, err := c.completer.Complete(ctx, c.opts.ValidationModel, []llm.ChatMessage{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: sb.String()},
	}, sampling)
	if err != nil {
		return ValidationOutcome{Kind: OutcomeFailed, Err: err}
	}
	if corrected == "" || corrected == draft {
		return ValidationOutcome{Kind: OutcomeUnchanged}
	}
	return ValidationOutcome{Kind: OutcomeCorrected, Text: corrected}
}

// entryScore prints an entry's score exactly as it appears in the source
// data, falling back to two decimals for entries built in code.
func entryScore(e catalog.Entry) string {
	if e.ScoreText != "" {
		return e.ScoreText
	}
	return fmt.Sprintf("%.2f", e.Score)
}

func entryYear(e catalog.Entry) string {
	if e.Year == 0 {
		return "year unknown"
	}
	return fmt.Sprintf("%d", e.Year)
}
