package regime_classifier

import (
	"fmt"
	"io"
	"strings"

	"github.com/dustin/go-humanize"

	"marketregime/internal/domain/regime"
)

// Summarize computes the smoothed regime distribution and the average streak
// length per regime. Rows without a smoothed label count toward the total but
// belong to no regime.
func Summarize(table *regime.Table) regime.Summary {
	summary := regime.Summary{
		Total:       table.Len(),
		Counts:      make(map[regime.Label]int, 3),
		Percent:     make(map[regime.Label]float64, 3),
		AvgDuration: make(map[regime.Label]float64, 3),
	}
	if summary.Total == 0 {
		return summary
	}

	labeled := false
	for _, row := range table.Rows {
		if row.Regime.Valid() {
			summary.Counts[row.Regime]++
			labeled = true
		}
	}
	if !labeled {
		return summary
	}

	for _, l := range regime.Labels() {
		summary.Percent[l] = 100.0 * float64(summary.Counts[l]) / float64(summary.Total)
	}

	summary.Streaks = streaks(table.Rows)

	totals := make(map[regime.Label]int, 3)
	runs := make(map[regime.Label]int, 3)
	for _, s := range summary.Streaks {
		totals[s.Regime] += s.Length
		runs[s.Regime]++
	}
	for _, l := range regime.Labels() {
		if runs[l] > 0 {
			summary.AvgDuration[l] = float64(totals[l]) / float64(runs[l])
		} else {
			summary.AvgDuration[l] = 0
		}
	}

	return summary
}

// streaks splits rows into maximal runs of equal smoothed regime
func streaks(rows []regime.Row) []regime.Streak {
	var out []regime.Streak
	for i, row := range rows {
		if len(out) > 0 && out[len(out)-1].Regime == row.Regime {
			out[len(out)-1].Length++
			continue
		}
		out = append(out, regime.Streak{Regime: row.Regime, Start: i, Length: 1})
	}
	return out
}

// WriteReport prints the distribution and average duration blocks
func WriteReport(w io.Writer, summary regime.Summary) error {
	var b strings.Builder

	if summary.Empty() {
		b.WriteString("No regime data to summarize.\n")
		_, err := io.WriteString(w, b.String())
		return err
	}

	b.WriteString("\nRegime distribution:\n")
	for _, l := range regime.Labels() {
		fmt.Fprintf(&b, "  %-8s: %6s (%5.1f%%)\n", l, humanize.Comma(int64(summary.Counts[l])), summary.Percent[l])
	}

	b.WriteString("\nAverage duration (bars):\n")
	for _, l := range regime.Labels() {
		fmt.Fprintf(&b, "  %-8s: %6.1f\n", l, summary.AvgDuration[l])
	}
	b.WriteString("\n")

	_, err := io.WriteString(w, b.String())
	return err
}
