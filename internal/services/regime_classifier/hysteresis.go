package regime_classifier

import (
	"math"

	"marketregime/internal/domain/regime"
)

// Smooth suppresses short-lived label flips.
//
// The pass starts from raw[0] and keeps the current label until a different
// label val appears at i. The switch is accepted only if val fills at least
// ceil(minBars*ratio) of raw[i : i+minBars]; otherwise the current label is
// emitted again and val is treated as noise.
//
// The window looks ahead, so the result is for offline use only: a bar's
// smoothed label depends on up to minBars-1 later bars.
//
// Near the end of the series the window is truncated but the threshold is
// still derived from the nominal minBars, which makes late switches harder to
// confirm. Callers comparing against stored results depend on this exact rule.
//
// Missing (empty) labels count as Sideways.
func Smooth(raw []regime.Label, minBars int, ratio float64) []regime.Label {
	labels := make([]regime.Label, len(raw))
	for i, l := range raw {
		labels[i] = l.OrSideways()
	}

	out := make([]regime.Label, len(labels))
	if len(labels) == 0 {
		return out
	}

	threshold := confirmationThreshold(minBars, ratio)

	current := labels[0]
	out[0] = current

	for i := 1; i < len(labels); i++ {
		val := labels[i]
		if val != current && confirmed(labels, i, minBars, val, threshold) {
			current = val
		}
		out[i] = current
	}

	return out
}

// confirmationThreshold is ceil(minBars*ratio)
func confirmationThreshold(minBars int, ratio float64) int {
	return int(math.Ceil(float64(minBars) * ratio))
}

// confirmed counts val in labels[start : start+minBars], truncated at the end
func confirmed(labels []regime.Label, start, minBars int, val regime.Label, threshold int) bool {
	end := start + minBars
	if end > len(labels) {
		end = len(labels)
	}
	if end < start {
		end = start
	}

	count := 0
	for _, l := range labels[start:end] {
		if l == val {
			count++
		}
	}
	return count >= threshold
}
