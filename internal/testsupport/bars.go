package testsupport

import (
	"math"
	"time"

	"marketregime/internal/domain/market_data"
)

type shape int

const (
	shapeRising shape = iota
	shapeFalling
	shapeConstant
	shapeOscillating
)

// BarSeriesFixture builds synthetic bar histories with a known regime
// Default: 260 hourly bars rising by 1 from 100, high/low 1 away from close
type BarSeriesFixture struct {
	start     time.Time
	step      time.Duration
	base      float64
	length    int
	spread    float64
	volume    float64
	shape     shape
	slope     float64
	amplitude float64
	period    int
}

// NewBarSeriesFixture creates the default rising series
func NewBarSeriesFixture() *BarSeriesFixture {
	return &BarSeriesFixture{
		start:  time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		step:   time.Hour,
		base:   100,
		length: 260,
		spread: 1,
		volume: 1000,
		shape:  shapeRising,
		slope:  1,
	}
}

// WithStart sets the first timestamp
func (f *BarSeriesFixture) WithStart(t time.Time) *BarSeriesFixture {
	f.start = t
	return f
}

// WithTimeframe sets the bar spacing from a timeframe such as "15m" or "1d"
func (f *BarSeriesFixture) WithTimeframe(timeframe string) *BarSeriesFixture {
	f.step = TimeframeDuration(timeframe)
	return f
}

// WithBase sets the first close
func (f *BarSeriesFixture) WithBase(price float64) *BarSeriesFixture {
	f.base = price
	return f
}

// WithLength sets the number of bars
func (f *BarSeriesFixture) WithLength(n int) *BarSeriesFixture {
	f.length = n
	return f
}

// WithSpread sets the distance of high and low from close
func (f *BarSeriesFixture) WithSpread(spread float64) *BarSeriesFixture {
	f.spread = spread
	return f
}

// Rising makes close grow by step per bar
func (f *BarSeriesFixture) Rising(step float64) *BarSeriesFixture {
	f.shape, f.slope = shapeRising, step
	return f
}

// Falling makes close shrink by step per bar
func (f *BarSeriesFixture) Falling(step float64) *BarSeriesFixture {
	f.shape, f.slope = shapeFalling, step
	return f
}

// Constant keeps close at the base price
func (f *BarSeriesFixture) Constant() *BarSeriesFixture {
	f.shape = shapeConstant
	return f
}

// Oscillating moves close along a sine wave around the base price
func (f *BarSeriesFixture) Oscillating(amplitude float64, period int) *BarSeriesFixture {
	f.shape, f.amplitude, f.period = shapeOscillating, amplitude, period
	return f
}

// Build returns the series in ascending time order
func (f *BarSeriesFixture) Build() []market_data.Bar {
	bars := make([]market_data.Bar, f.length)
	prev := f.close(0)
	for i := range bars {
		c := f.close(i)
		bars[i] = market_data.Bar{
			Timestamp: f.start.Add(time.Duration(i) * f.step),
			Open:      prev,
			High:      math.Max(prev, c) + f.spread,
			Low:       math.Min(prev, c) - f.spread,
			Close:     c,
			Volume:    f.volume,
		}
		prev = c
	}
	return bars
}

func (f *BarSeriesFixture) close(i int) float64 {
	switch f.shape {
	case shapeFalling:
		return f.base - f.slope*float64(i)
	case shapeConstant:
		return f.base
	case shapeOscillating:
		if f.period <= 0 {
			return f.base
		}
		return f.base + f.amplitude*math.Sin(2*math.Pi*float64(i)/float64(f.period))
	default:
		return f.base + f.slope*float64(i)
	}
}

// TimeframeDuration converts a timeframe label to its bar length, one hour
// for unknown labels
func TimeframeDuration(timeframe string) time.Duration {
	switch timeframe {
	case "1m":
		return time.Minute
	case "5m":
		return 5 * time.Minute
	case "15m":
		return 15 * time.Minute
	case "30m":
		return 30 * time.Minute
	case "1h":
		return time.Hour
	case "4h":
		return 4 * time.Hour
	case "1d":
		return 24 * time.Hour
	case "1w":
		return 7 * 24 * time.Hour
	default:
		return time.Hour
	}
}
