package regime_classifier

import (
	"time"

	"marketregime/internal/domain/market_data"
	"marketregime/internal/domain/regime"
	"marketregime/pkg/errors"
	"marketregime/pkg/logger"
)

// Classifier turns a bar history into a regime table.
//
// It holds only its parameters and logger, so one Classifier may serve
// concurrent calls; every call allocates its own intermediate state.
type Classifier struct {
	params regime.Params
	log    *logger.Logger
}

// New creates a classifier after validating params
func New(params regime.Params, log *logger.Logger) (*Classifier, error) {
	if err := params.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid classifier params")
	}
	if log == nil {
		log = logger.Get()
	}

	return &Classifier{
		params: params,
		log:    log.With("component", "regime_classifier"),
	}, nil
}

// Params returns the parameter set
func (c *Classifier) Params() regime.Params {
	return c.params
}

// Classify classifies typed bars
func (c *Classifier) Classify(bars []market_data.Bar) (*regime.Table, error) {
	return c.ClassifyFrame(FrameFromBars(bars))
}

// ClassifyFrame validates the frame schema and runs features, volatility
// buckets, raw trend labels, smoothing, code projection and threshold
// annotation in that order. The frame is not modified.
func (c *Classifier) ClassifyFrame(frame Frame) (*regime.Table, error) {
	if err := frame.Validate(); err != nil {
		return nil, err
	}

	start := time.Now()
	p := c.params

	open := frame.column(ColumnOpen)
	high := frame.column(ColumnHigh)
	low := frame.column(ColumnLow)
	closes := frame.column(ColumnClose)
	volume := frame.column(ColumnVolume)

	features := ComputeFeatures(high, low, closes, p)
	epsilon := resolveEpsilon(closes, p.SlopeEpsilon, p.AutoEpsilonFraction)

	vol := BucketVolatility(features.ATR, p.VolQuantileLow, p.VolQuantileHigh)
	raw := classifyTrendSeries(closes, features, epsilon)
	smoothed := Smooth(raw, p.MinConfirmationBars, p.ConfirmationRatio)

	rows := make([]regime.Row, frame.Len())
	for i := range rows {
		bucket := vol.Buckets[i]
		if !bucket.Valid() {
			bucket = regime.VolMed
		}

		rows[i] = regime.Row{
			Timestamp:  frame.Index[i],
			Open:       open[i],
			High:       high[i],
			Low:        low[i],
			Close:      closes[i],
			Volume:     volume[i],
			SMAShort:   features.SMAShort[i],
			SMALong:    features.SMALong[i],
			SlopeShort: features.SlopeShort[i],
			ATR:        features.ATR[i],
			VolBucket:  bucket,
			RegimeRaw:  raw[i],
			Regime:     smoothed[i],
			RegimeCode: smoothed[i].Code(),
			ATRLowThr:  vol.LowThr,
			ATRHighThr: vol.HighThr,
		}
	}

	table := &regime.Table{
		Rows:         rows,
		Params:       p,
		SlopeEpsilon: epsilon,
		ATRLowThr:    vol.LowThr,
		ATRHighThr:   vol.HighThr,
	}

	c.log.Debugw("Regime classification complete",
		"bars", len(rows),
		"slope_epsilon", epsilon,
		"atr_low_thr", vol.LowThr,
		"atr_high_thr", vol.HighThr,
		"took", time.Since(start),
	)

	return table, nil
}
