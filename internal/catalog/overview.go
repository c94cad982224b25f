package catalog

import (
	"fmt"
	"sort"
	"strings"
)

// GroupStats is an aggregate over one group's entries, used by the overview.
type GroupStats struct {
	// Group is the group name, original casing.
	Group string
	// Count is the number of rated entries.
	Count int
	// Average is the mean score across the group's entries.
	Average float64
	// Best is the highest score.
	Best float64
	// Worst is the lowest score.
	Worst float64
}

// Overview summarises the whole catalog: totals, year span, score spread and
// per-group averages sorted best-first. It backs the status command and gives
// operators a quick sanity check that the right export was loaded.
func (c *Catalog) Overview() string {
	if len(c.entries) == 0 {
		return "catalog is empty"
	}

	minYear, maxYear := 0, 0
	minScore, maxScore, sum := c.entries[0].Score, c.entries[0].Score, 0.0
	for _, e := range c.entries {
		if e.Year > 0 {
			if minYear == 0 || e.Year < minYear {
				minYear = e.Year
			}
			if e.Year > maxYear {
				maxYear = e.Year
			}
		}
		if e.Score < minScore {
			minScore = e.Score
		}
		if e.Score > maxScore {
			maxScore = e.Score
		}
		sum += e.Score
	}

	stats := c.GroupOverview()

	var sb strings.Builder
	fmt.Fprintf(&sb, "%d entries across %d groups", len(c.entries), len(c.groups))
	if minYear > 0 {
		fmt.Fprintf(&sb, ", %d-%d", minYear, maxYear)
	}
	fmt.Fprintf(&sb, "\nscores: min %.2f, avg %.2f, max %.2f\n", minScore, sum/float64(len(c.entries)), maxScore)

	top := stats
	if len(top) > 10 {
		top = top[:10]
	}
	sb.WriteString("top groups by average score:\n")
	for i, s := range top {
		fmt.Fprintf(&sb, "  %2d. %s: %d entries, avg %.2f (best %.2f, worst %.2f)\n",
			i+1, s.Group, s.Count, s.Average, s.Best, s.Worst)
	}
	return sb.String()
}

// GroupOverview returns per-group aggregates sorted by average score
// descending, ties broken by group name for deterministic output.
func (c *Catalog) GroupOverview() []GroupStats {
	stats := make([]GroupStats, 0, len(c.groups))
	for _, g := range c.groups {
		entries := c.EntriesForGroup(g)
		if len(entries) == 0 {
			continue
		}
		s := GroupStats{Group: g, Count: len(entries), Best: entries[0].Score, Worst: entries[0].Score}
		sum := 0.0
		for _, e := range entries {
			if e.Score > s.Best {
				s.Best = e.Score
			}
			if e.Score < s.Worst {
				s.Worst = e.Score
			}
			sum += e.Score
		}
		s.Average = sum / float64(len(entries))
		stats = append(stats, s)
	}

	sort.Slice(stats, func(i, j int) bool {
		if stats[i].Average != stats[j].Average {
			return stats[i].Average > stats[j].Average
		}
		return stats[i].Group < stats[j].Group
	})
	return stats
}
