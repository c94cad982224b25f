package catalog

// Trend classifies how a group's scores developed between its earliest and
// latest rated entry.
type Trend string

const (
	// TrendRising means the latest score exceeds the earliest by more than 0.1.
	TrendRising Trend = "rising"
	// TrendFalling means the latest score is more than 0.1 below the earliest.
	TrendFalling Trend = "falling"
	// TrendStable means the scores moved by at most 0.1 in either direction.
	TrendStable Trend = "stable"
)

// trendEpsilon is the dead zone around "no change": score movements of 0.1 or
// less in either direction are classified as stable.
const trendEpsilon = 0.1

// TrendSummary is the derived (never stored) per-group score development used
// by the validation pass and the context trend statement.
type TrendSummary struct {
	// Entries is the group's entry list sorted by year ascending.
	Entries []Entry
	// FirstScore is the score of the earliest entry.
	FirstScore float64
	// LastScore is the score of the latest entry.
	LastScore float64
	// Trend is the classification of LastScore relative to FirstScore.
	Trend Trend
	// Count is the number of entries.
	Count int
}

// Summarize sorts entries by year and classifies the first-to-last score
// movement. Returns a zero summary when entries is empty.
func Summarize(entries []Entry) TrendSummary {
	if len(entries) == 0 {
		return TrendSummary{}
	}

	sorted := SortByYear(entries)
	first := sorted[0].Score
	last := sorted[len(sorted)-1].Score

	trend := TrendStable
	switch {
	case last > first+trendEpsilon:
		trend = TrendRising
	case last < first-trendEpsilon:
		trend = TrendFalling
	}

	return TrendSummary{
		Entries:    sorted,
		FirstScore: first,
		LastScore:  last,
		Trend:      trend,
		Count:      len(sorted),
	}
}
