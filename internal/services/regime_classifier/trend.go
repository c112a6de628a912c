package regime_classifier

import (
	"math"

	"marketregime/internal/domain/regime"
)

// ClassifyTrend labels one bar.
//
// Bull needs close and the short average above the long average with the short
// average rising faster than epsilon per bar; Bear is the mirror image. Any
// undefined input gives Sideways.
func ClassifyTrend(close, smaShort, smaLong, slopeShort, epsilon float64) regime.Label {
	if math.IsNaN(close) || math.IsNaN(smaShort) || math.IsNaN(smaLong) || math.IsNaN(slopeShort) {
		return regime.Sideways
	}

	if close > smaLong && smaShort > smaLong && slopeShort > epsilon {
		return regime.Bull
	}
	if close < smaLong && smaShort < smaLong && slopeShort < -epsilon {
		return regime.Bear
	}
	return regime.Sideways
}

// classifyTrendSeries applies ClassifyTrend row by row
func classifyTrendSeries(close []float64, f Features, epsilon float64) []regime.Label {
	labels := make([]regime.Label, len(close))
	for i := range close {
		labels[i] = ClassifyTrend(close[i], f.SMAShort[i], f.SMALong[i], f.SlopeShort[i], epsilon)
	}
	return labels
}
