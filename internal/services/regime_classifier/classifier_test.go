package regime_classifier

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"marketregime/internal/domain/market_data"
	"marketregime/internal/domain/regime"
	"marketregime/pkg/errors"
	"marketregime/pkg/logger"
)

var testStart = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// makeBars builds hourly bars with high/low spread around closeAt(i)
func makeBars(n int, spread float64, closeAt func(i int) float64) []market_data.Bar {
	bars := make([]market_data.Bar, n)
	for i := range bars {
		c := closeAt(i)
		bars[i] = market_data.Bar{
			Timestamp: testStart.Add(time.Duration(i) * time.Hour),
			Open:      c,
			High:      c + spread,
			Low:       c - spread,
			Close:     c,
			Volume:    1000,
		}
	}
	return bars
}

func newTestClassifier(t *testing.T, params regime.Params) *Classifier {
	t.Helper()
	c, err := New(params, logger.Nop())
	require.NoError(t, err)
	return c
}

// sameFloat treats two NaNs as equal
func sameFloat(a, b float64) bool {
	return a == b || (math.IsNaN(a) && math.IsNaN(b))
}

func TestNew_InvalidParams(t *testing.T) {
	params := regime.DefaultParams()
	params.SMAShortWindow = 0
	params.VolQuantileLow = 0.9

	c, err := New(params, logger.Nop())

	require.Error(t, err)
	assert.Nil(t, c)
	assert.True(t, errors.Is(err, errors.ErrInvalidInput))

	var vErr *errors.ValidationError
	require.True(t, errors.As(err, &vErr))
	assert.Equal(t, "sma_short_window", vErr.Field)
}

func TestClassify_RisingSeries(t *testing.T) {
	c := newTestClassifier(t, regime.DefaultParams())
	bars := makeBars(260, 1, func(i int) float64 { return 100 + float64(i) })

	table, err := c.Classify(bars)
	require.NoError(t, err)
	require.Equal(t, 260, table.Len())

	for i, row := range table.Rows {
		if i < 199 {
			assert.Equal(t, regime.Sideways, row.Regime, "index %d", i)
			assert.Equal(t, 0, row.RegimeCode, "index %d", i)
			assert.True(t, math.IsNaN(row.SMALong), "index %d", i)
		} else {
			assert.Equal(t, regime.Bull, row.Regime, "index %d", i)
			assert.Equal(t, 1, row.RegimeCode, "index %d", i)
		}
	}

	assert.InDelta(t, 0.0002*229.5, table.SlopeEpsilon, 1e-12)

	transitions := table.Transitions()
	require.Len(t, transitions, 1)
	assert.Equal(t, 199, transitions[0].Index)
	assert.Equal(t, regime.Sideways, transitions[0].From)
	assert.Equal(t, regime.Bull, transitions[0].To)
}

func TestClassify_FallingSeries(t *testing.T) {
	c := newTestClassifier(t, regime.DefaultParams())
	bars := makeBars(260, 1, func(i int) float64 { return 500 - float64(i) })

	table, err := c.Classify(bars)
	require.NoError(t, err)

	assert.Equal(t, regime.Sideways, table.Rows[198].Regime)
	assert.Equal(t, regime.Bear, table.Rows[199].Regime)
	assert.Equal(t, -1, table.Rows[259].RegimeCode)
}

func TestClassify_ExplicitEpsilonSuppressesTrend(t *testing.T) {
	params := regime.DefaultParams()
	params.SlopeEpsilon = 5
	c := newTestClassifier(t, params)
	bars := makeBars(260, 1, func(i int) float64 { return 100 + float64(i) })

	table, err := c.Classify(bars)
	require.NoError(t, err)

	assert.Equal(t, 5.0, table.SlopeEpsilon)
	for _, row := range table.Rows {
		assert.Equal(t, regime.Sideways, row.Regime)
	}
}

func TestClassify_ConstantClose(t *testing.T) {
	c := newTestClassifier(t, regime.DefaultParams())
	bars := makeBars(300, 0.5, func(int) float64 { return 100 })

	table, err := c.Classify(bars)
	require.NoError(t, err)

	for _, row := range table.Rows {
		assert.Equal(t, regime.Sideways, row.RegimeRaw)
		assert.Equal(t, regime.Sideways, row.Regime)
		assert.Equal(t, 0, row.RegimeCode)
	}
}

func TestClassify_ZeroVolatility(t *testing.T) {
	c := newTestClassifier(t, regime.DefaultParams())
	bars := makeBars(50, 0, func(int) float64 { return 100 })

	table, err := c.Classify(bars)
	require.NoError(t, err)

	assert.Equal(t, 0.0, table.ATRLowThr)
	assert.Equal(t, 0.0, table.ATRHighThr)
	for i, row := range table.Rows {
		if i < 13 {
			assert.True(t, math.IsNaN(row.ATR), "index %d", i)
			assert.Equal(t, regime.VolMed, row.VolBucket, "index %d", i)
		} else {
			assert.Equal(t, 0.0, row.ATR, "index %d", i)
			assert.Equal(t, regime.VolLow, row.VolBucket, "index %d", i)
		}
	}
}

func TestClassify_ShortHistory(t *testing.T) {
	c := newTestClassifier(t, regime.DefaultParams())
	bars := makeBars(150, 1, func(i int) float64 { return 100 + float64(i) })

	table, err := c.Classify(bars)
	require.NoError(t, err)
	require.Equal(t, 150, table.Len())

	for _, row := range table.Rows {
		assert.True(t, math.IsNaN(row.SMALong))
		assert.Equal(t, regime.Sideways, row.RegimeRaw)
		assert.Equal(t, regime.Sideways, row.Regime)
	}
}

func TestClassify_TooShortForATR(t *testing.T) {
	c := newTestClassifier(t, regime.DefaultParams())
	bars := makeBars(5, 1, func(i int) float64 { return 100 + float64(i) })

	table, err := c.Classify(bars)
	require.NoError(t, err)

	assert.True(t, math.IsNaN(table.ATRLowThr))
	assert.True(t, math.IsNaN(table.ATRHighThr))
	for _, row := range table.Rows {
		assert.Equal(t, regime.VolMed, row.VolBucket)
		assert.True(t, math.IsNaN(row.ATRLowThr))
	}
}

func TestClassify_Empty(t *testing.T) {
	c := newTestClassifier(t, regime.DefaultParams())

	table, err := c.Classify(nil)
	require.NoError(t, err)

	assert.Equal(t, 0, table.Len())
	assert.True(t, math.IsNaN(table.ATRLowThr))
	assert.True(t, math.IsNaN(table.ATRHighThr))
	assert.Empty(t, table.Transitions())
}

func TestClassify_Invariants(t *testing.T) {
	c := newTestClassifier(t, regime.DefaultParams())
	bars := makeBars(600, 2, func(i int) float64 {
		return 1000 + 80*math.Sin(float64(i)/40) + 15*math.Sin(float64(i)/3)
	})

	table, err := c.Classify(bars)
	require.NoError(t, err)
	require.Equal(t, len(bars), table.Len())

	assert.LessOrEqual(t, table.ATRLowThr, table.ATRHighThr)
	for i, row := range table.Rows {
		assert.Equal(t, bars[i].Timestamp, row.Timestamp, "order preserved")
		assert.Equal(t, bars[i].Close, row.Close)
		assert.Contains(t, []int{-1, 0, 1}, row.RegimeCode)
		assert.Equal(t, row.Regime.Code(), row.RegimeCode)
		assert.True(t, row.VolBucket.Valid())
		assert.True(t, sameFloat(table.ATRLowThr, row.ATRLowThr))
		assert.True(t, sameFloat(table.ATRHighThr, row.ATRHighThr))
	}
}

func TestClassify_Deterministic(t *testing.T) {
	c := newTestClassifier(t, regime.DefaultParams())
	bars := makeBars(400, 3, func(i int) float64 {
		return 200 + 30*math.Sin(float64(i)/25) + float64(i%7)
	})

	first, err := c.Classify(bars)
	require.NoError(t, err)
	second, err := c.Classify(bars)
	require.NoError(t, err)

	require.Equal(t, first.Len(), second.Len())
	for i := range first.Rows {
		a, b := first.Rows[i], second.Rows[i]
		assert.Equal(t, a.RegimeRaw, b.RegimeRaw)
		assert.Equal(t, a.Regime, b.Regime)
		assert.Equal(t, a.VolBucket, b.VolBucket)
		assert.True(t, sameFloat(a.SMAShort, b.SMAShort))
		assert.True(t, sameFloat(a.SMALong, b.SMALong))
		assert.True(t, sameFloat(a.SlopeShort, b.SlopeShort))
		assert.True(t, sameFloat(a.ATR, b.ATR))
	}
}

func TestClassifyFrame_DoesNotMutateInput(t *testing.T) {
	c := newTestClassifier(t, regime.DefaultParams())
	frame := FrameFromBars(makeBars(250, 1, func(i int) float64 { return 50 + float64(i%20) }))

	before := make(map[string][]float64, len(frame.Columns))
	for name, col := range frame.Columns {
		before[name] = append([]float64(nil), col...)
	}

	_, err := c.ClassifyFrame(frame)
	require.NoError(t, err)

	assert.Equal(t, before, frame.Columns)
	assert.Len(t, frame.Columns, 5, "no columns added")
}

func TestClassifyFrame_MissingColumns(t *testing.T) {
	c := newTestClassifier(t, regime.DefaultParams())
	frame := Frame{
		Index: []time.Time{testStart, testStart.Add(time.Hour)},
		Columns: map[string][]float64{
			ColumnOpen:  {1, 2},
			ColumnClose: {1, 2},
		},
	}

	table, err := c.ClassifyFrame(frame)

	require.Error(t, err)
	assert.Nil(t, table)
	assert.True(t, errors.Is(err, errors.ErrSchema))

	var schemaErr *errors.SchemaError
	require.True(t, errors.As(err, &schemaErr))
	assert.Equal(t, []string{ColumnHigh, ColumnLow}, schemaErr.Missing)
	assert.Contains(t, err.Error(), "high")
	assert.Contains(t, err.Error(), "low")
}

func TestClassifyFrame_LengthMismatch(t *testing.T) {
	c := newTestClassifier(t, regime.DefaultParams())
	frame := FrameFromBars(makeBars(3, 1, func(i int) float64 { return 10 }))
	frame.Columns[ColumnVolume] = []float64{1}

	_, err := c.ClassifyFrame(frame)

	var schemaErr *errors.SchemaError
	require.True(t, errors.As(err, &schemaErr))
	assert.Empty(t, schemaErr.Missing)
	assert.Equal(t, []string{ColumnVolume}, schemaErr.Mismatched)
}

func TestClassifyFrame_OptionalVolume(t *testing.T) {
	c := newTestClassifier(t, regime.DefaultParams())
	frame := FrameFromBars(makeBars(20, 1, func(i int) float64 { return 10 }))
	delete(frame.Columns, ColumnVolume)

	table, err := c.ClassifyFrame(frame)
	require.NoError(t, err)

	for _, row := range table.Rows {
		assert.True(t, math.IsNaN(row.Volume))
	}
}
