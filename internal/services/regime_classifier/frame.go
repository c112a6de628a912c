package regime_classifier

import (
	"time"

	"marketregime/internal/domain/market_data"
	"marketregime/pkg/errors"
)

// Column names understood by the classifier
const (
	ColumnOpen   = "open"
	ColumnHigh   = "high"
	ColumnLow    = "low"
	ColumnClose  = "close"
	ColumnVolume = "volume"
)

// RequiredColumns are the columns every input frame must carry
func RequiredColumns() []string {
	return []string{ColumnOpen, ColumnHigh, ColumnLow, ColumnClose}
}

// Frame is a column-oriented bar history: one timestamp index and named
// float columns of the same length. Columns other than OHLC and volume are
// ignored.
type Frame struct {
	Index   []time.Time
	Columns map[string][]float64
}

// FrameFromBars converts typed bars into a frame
func FrameFromBars(bars []market_data.Bar) Frame {
	n := len(bars)
	index := make([]time.Time, n)
	cols := map[string][]float64{
		ColumnOpen:   make([]float64, n),
		ColumnHigh:   make([]float64, n),
		ColumnLow:    make([]float64, n),
		ColumnClose:  make([]float64, n),
		ColumnVolume: make([]float64, n),
	}

	for i, b := range bars {
		index[i] = b.Timestamp
		cols[ColumnOpen][i] = b.Open
		cols[ColumnHigh][i] = b.High
		cols[ColumnLow][i] = b.Low
		cols[ColumnClose][i] = b.Close
		cols[ColumnVolume][i] = b.Volume
	}

	return Frame{Index: index, Columns: cols}
}

// Len returns the number of rows
func (f Frame) Len() int {
	return len(f.Index)
}

// Validate returns a *errors.SchemaError naming every missing OHLC column
// and every column whose length differs from the index.
func (f Frame) Validate() error {
	var missing, mismatched []string

	for _, name := range RequiredColumns() {
		if _, ok := f.Columns[name]; !ok {
			missing = append(missing, name)
		}
	}
	for name, col := range f.Columns {
		if len(col) != len(f.Index) {
			mismatched = append(mismatched, name)
		}
	}

	schemaErr := errors.NewSchemaError(missing, mismatched)
	if schemaErr.HasIssues() {
		return schemaErr
	}
	return nil
}

// column returns a copy of a column, or NaNs when it is absent
func (f Frame) column(name string) []float64 {
	col, ok := f.Columns[name]
	if !ok {
		return nanSlice(len(f.Index))
	}
	out := make([]float64, len(col))
	copy(out, col)
	return out
}
