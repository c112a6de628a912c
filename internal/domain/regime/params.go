package regime

import (
	"math"

	"marketregime/pkg/errors"
)

// Params is the full parameter set of one classification call
type Params struct {
	SMAShortWindow      int     `json:"sma_short_window"`
	SMALongWindow       int     `json:"sma_long_window"`
	SlopeLookback       int     `json:"slope_lookback"`
	SlopeEpsilon        float64 `json:"slope_epsilon"` // 0 = derive from the median close
	ATRLength           int     `json:"atr_length"`
	MinConfirmationBars int     `json:"min_confirmation_bars"`
	VolQuantileLow      float64 `json:"vol_quantile_low"`
	VolQuantileHigh     float64 `json:"vol_quantile_high"`

	// ConfirmationRatio is the share of the confirmation window that must carry
	// the candidate label for a switch to be accepted
	ConfirmationRatio float64 `json:"confirmation_ratio"`

	// AutoEpsilonFraction scales the median close when SlopeEpsilon is 0
	AutoEpsilonFraction float64 `json:"auto_epsilon_fraction"`
}

// DefaultParams returns the stock parameter set
func DefaultParams() Params {
	return Params{
		SMAShortWindow:      50,
		SMALongWindow:       200,
		SlopeLookback:       3,
		SlopeEpsilon:        0.0,
		ATRLength:           14,
		MinConfirmationBars: 10,
		VolQuantileLow:      0.3,
		VolQuantileHigh:     0.7,
		ConfirmationRatio:   0.6,
		AutoEpsilonFraction: 0.0002,
	}
}

// Validate reports every out-of-range field
func (p Params) Validate() error {
	var errs errors.MultiError

	positive := []struct {
		field string
		value int
	}{
		{"sma_short_window", p.SMAShortWindow},
		{"sma_long_window", p.SMALongWindow},
		{"slope_lookback", p.SlopeLookback},
		{"atr_length", p.ATRLength},
		{"min_confirmation_bars", p.MinConfirmationBars},
	}
	for _, f := range positive {
		if f.value < 1 {
			errs.Add(errors.NewValidationError(f.field, "must be at least 1", f.value))
		}
	}

	if math.IsNaN(p.SlopeEpsilon) || p.SlopeEpsilon < 0 {
		errs.Add(errors.NewValidationError("slope_epsilon", "must be >= 0 (0 selects the automatic value)", p.SlopeEpsilon))
	}
	if !inUnitInterval(p.VolQuantileLow) {
		errs.Add(errors.NewValidationError("vol_quantile_low", "must be within [0, 1]", p.VolQuantileLow))
	}
	if !inUnitInterval(p.VolQuantileHigh) {
		errs.Add(errors.NewValidationError("vol_quantile_high", "must be within [0, 1]", p.VolQuantileHigh))
	}
	if p.VolQuantileLow > p.VolQuantileHigh {
		errs.Add(errors.NewValidationError("vol_quantile_low", "must not exceed vol_quantile_high", p.VolQuantileLow))
	}
	if math.IsNaN(p.ConfirmationRatio) || p.ConfirmationRatio <= 0 || p.ConfirmationRatio > 1 {
		errs.Add(errors.NewValidationError("confirmation_ratio", "must be within (0, 1]", p.ConfirmationRatio))
	}
	if math.IsNaN(p.AutoEpsilonFraction) || p.AutoEpsilonFraction < 0 {
		errs.Add(errors.NewValidationError("auto_epsilon_fraction", "must be >= 0", p.AutoEpsilonFraction))
	}

	return errs.ToError()
}

func inUnitInterval(v float64) bool {
	return !math.IsNaN(v) && v >= 0 && v <= 1
}
