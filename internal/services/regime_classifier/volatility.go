package regime_classifier

import (
	"math"

	"marketregime/internal/domain/regime"
)

// VolatilityBuckets is the per-bar volatility tier plus the cut points used
type VolatilityBuckets struct {
	Buckets []regime.VolBucket
	LowThr  float64
	HighThr float64
}

// BucketVolatility splits bars into Low/Med/High by whole-series ATR quantiles.
//
// The thresholds are computed once over every defined ATR value, so the
// calibration is in-sample. Undefined ATR maps to Med and ties at a threshold
// go to the extreme bucket. When no ATR is defined anywhere both thresholds
// are NaN and every bucket is VolUndefined.
func BucketVolatility(atr []float64, qLow, qHigh float64) VolatilityBuckets {
	buckets := make([]regime.VolBucket, len(atr))

	valid := definedSorted(atr)
	if len(valid) == 0 {
		return VolatilityBuckets{
			Buckets: buckets,
			LowThr:  math.NaN(),
			HighThr: math.NaN(),
		}
	}

	lowThr := quantile(valid, qLow)
	highThr := quantile(valid, qHigh)

	for i, x := range atr {
		buckets[i] = bucket(x, lowThr, highThr)
	}

	return VolatilityBuckets{
		Buckets: buckets,
		LowThr:  lowThr,
		HighThr: highThr,
	}
}

func bucket(x, lowThr, highThr float64) regime.VolBucket {
	switch {
	case math.IsNaN(x):
		return regime.VolMed
	case x <= lowThr:
		return regime.VolLow
	case x >= highThr:
		return regime.VolHigh
	default:
		return regime.VolMed
	}
}

// quantile of an ascending, NaN-free slice with linear interpolation between
// the two closest ranks (virtual index (n-1)*q).
func quantile(sorted []float64, q float64) float64 {
	n := len(sorted)
	if n == 0 {
		return math.NaN()
	}

	h := float64(n-1) * q
	lo := int(math.Floor(h))
	if lo < 0 {
		lo = 0
	}
	if lo >= n-1 {
		return sorted[n-1]
	}

	return lerp(sorted[lo], sorted[lo+1], h-float64(lo))
}

// lerp interpolates from the nearer end so results stay monotone in t
func lerp(a, b, t float64) float64 {
	diff := b - a
	if t >= 0.5 {
		return b - diff*(1-t)
	}
	return a + diff*t
}
