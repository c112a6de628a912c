package regime_classifier

import (
	"math"
	"sort"

	"github.com/markcheno/go-talib"

	"marketregime/internal/domain/regime"
)

// Features holds the rolling features of a bar history, aligned to its index.
// Positions without enough history are NaN.
type Features struct {
	SMAShort   []float64
	SMALong    []float64
	SlopeShort []float64
	ATR        []float64
}

// ComputeFeatures derives the moving averages, the short average slope and the
// ATR from the high, low and close columns.
func ComputeFeatures(high, low, close []float64, params regime.Params) Features {
	smaShort := rollingMean(close, params.SMAShortWindow)

	return Features{
		SMAShort:   smaShort,
		SMALong:    rollingMean(close, params.SMALongWindow),
		SlopeShort: slope(smaShort, params.SlopeLookback),
		ATR:        ewmMean(trueRange(high, low, close), 1/float64(params.ATRLength), params.ATRLength),
	}
}

// rollingMean is the trailing arithmetic mean over window values. A position
// gets a value only when the full window is available and holds no NaN.
func rollingMean(values []float64, window int) []float64 {
	out := nanSlice(len(values))
	if window < 1 {
		return out
	}

	// talib.Sma keeps a running sum, so one NaN would poison every later value.
	// Run it per NaN-free segment instead; no valid window crosses a gap.
	start := 0
	for start < len(values) {
		for start < len(values) && math.IsNaN(values[start]) {
			start++
		}
		end := start
		for end < len(values) && !math.IsNaN(values[end]) {
			end++
		}
		if end-start >= window {
			sma := talib.Sma(values[start:end], window)
			copy(out[start+window-1:end], sma[window-1:])
		}
		start = end
	}

	return out
}

// slope is the change of series over lookback bars, per bar
func slope(series []float64, lookback int) []float64 {
	out := nanSlice(len(series))
	if lookback < 1 {
		return out
	}

	mom := talib.Mom(series, lookback)
	for i := lookback; i < len(series); i++ {
		// NaN endpoints propagate through the subtraction
		out[i] = mom[i] / float64(lookback)
	}
	return out
}

// trueRange is max(high-low, |high-prevClose|, |low-prevClose|), ignoring
// undefined terms. The first bar has no previous close and reduces to high-low.
func trueRange(high, low, close []float64) []float64 {
	n := len(close)
	if n == 0 {
		return []float64{}
	}

	tr := talib.TRange(high, low, close)
	tr[0] = high[0] - low[0]

	for i := 1; i < n; i++ {
		if !math.IsNaN(tr[i]) {
			continue
		}
		prev := close[i-1]
		tr[i] = nanMax(high[i]-low[i], math.Abs(high[i]-prev), math.Abs(low[i]-prev))
	}
	return tr
}

// ewmMean is an exponentially weighted mean with decay alpha and no bias
// adjustment: mean = alpha*x + (1-alpha)*mean. Missing observations keep the
// previous mean and age its weight. A position is defined once minPeriods
// observations have been seen.
func ewmMean(values []float64, alpha float64, minPeriods int) []float64 {
	out := nanSlice(len(values))
	if len(values) == 0 {
		return out
	}

	oldWtFactor := 1 - alpha
	newWt := alpha
	oldWt := 1.0

	weighted := values[0]
	nobs := 0
	if !math.IsNaN(weighted) {
		nobs = 1
	}
	if nobs >= minPeriods {
		out[0] = weighted
	}

	for i := 1; i < len(values); i++ {
		cur := values[i]
		isObservation := !math.IsNaN(cur)
		if isObservation {
			nobs++
		}

		if !math.IsNaN(weighted) {
			oldWt *= oldWtFactor
			if isObservation {
				// constant series stay exact
				if weighted != cur {
					weighted = oldWt*weighted + newWt*cur
					weighted /= oldWt + newWt
				}
				oldWt = 1
			}
		} else if isObservation {
			weighted = cur
		}

		if nobs >= minPeriods {
			out[i] = weighted
		}
	}

	return out
}

// resolveEpsilon returns the caller's epsilon, or fraction * median(close)
// when the caller passed 0.
func resolveEpsilon(close []float64, epsilon, fraction float64) float64 {
	if epsilon != 0 {
		return epsilon
	}
	return fraction * median(close)
}

// median of the defined values; the mean of the two middle values for an
// even count, NaN when nothing is defined.
func median(values []float64) float64 {
	valid := definedSorted(values)
	n := len(valid)
	if n == 0 {
		return math.NaN()
	}
	if n%2 == 1 {
		return valid[n/2]
	}
	return (valid[n/2-1] + valid[n/2]) / 2
}

// definedSorted copies the non-NaN values in ascending order
func definedSorted(values []float64) []float64 {
	valid := make([]float64, 0, len(values))
	for _, v := range values {
		if !math.IsNaN(v) {
			valid = append(valid, v)
		}
	}
	sort.Float64s(valid)
	return valid
}

func nanMax(values ...float64) float64 {
	result := math.NaN()
	for _, v := range values {
		if math.IsNaN(v) {
			continue
		}
		if math.IsNaN(result) || v > result {
			result = v
		}
	}
	return result
}

func nanSlice(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}
