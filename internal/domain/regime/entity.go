package regime

import "time"

// Label is the trend state of a bar
type Label string

const (
	Bull     Label = "Bull"
	Bear     Label = "Bear"
	Sideways Label = "Sideways"
)

// Labels returns the regimes in report order
func Labels() []Label {
	return []Label{Bull, Sideways, Bear}
}

// Valid checks if label is one of Bull, Bear, Sideways
func (l Label) Valid() bool {
	switch l {
	case Bull, Bear, Sideways:
		return true
	}
	return false
}

// OrSideways maps a missing or unknown label to Sideways
func (l Label) OrSideways() Label {
	if l.Valid() {
		return l
	}
	return Sideways
}

// Code projects the label to Bull=1, Sideways=0, Bear=-1
func (l Label) Code() int {
	switch l {
	case Bull:
		return 1
	case Bear:
		return -1
	}
	return 0
}

// String returns string representation
func (l Label) String() string {
	return string(l)
}

// VolBucket is the volatility tier of a bar
type VolBucket string

const (
	VolLow  VolBucket = "Low"
	VolMed  VolBucket = "Med"
	VolHigh VolBucket = "High"

	// VolUndefined is produced only when no ATR value exists in the whole series
	VolUndefined VolBucket = ""
)

// Valid checks if the bucket is Low, Med or High
func (v VolBucket) Valid() bool {
	switch v {
	case VolLow, VolMed, VolHigh:
		return true
	}
	return false
}

// String returns string representation
func (v VolBucket) String() string {
	return string(v)
}

// Row is one input bar augmented with its features and labels.
// Undefined floats are NaN.
type Row struct {
	Timestamp time.Time `json:"timestamp"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    float64   `json:"volume"`

	SMAShort   float64 `json:"sma_short"`
	SMALong    float64 `json:"sma_long"`
	SlopeShort float64 `json:"slope_short"`
	ATR        float64 `json:"atr"`

	VolBucket  VolBucket `json:"vol_bucket"`
	RegimeRaw  Label     `json:"regime_raw"`
	Regime     Label     `json:"regime"`
	RegimeCode int       `json:"regime_code"`

	ATRLowThr  float64 `json:"atr_low_thr"`
	ATRHighThr float64 `json:"atr_high_thr"`
}

// Table is the classified bar history. It is built fresh by every
// classification call and never modified afterwards.
type Table struct {
	Rows []Row

	// Params used to build the table
	Params Params

	// SlopeEpsilon is the flatness tolerance actually applied (resolved when Params.SlopeEpsilon is 0)
	SlopeEpsilon float64

	// ATRLowThr and ATRHighThr are the quantile cut points, NaN when no ATR is defined
	ATRLowThr  float64
	ATRHighThr float64
}

// Len returns the number of rows
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Rows)
}

// Last returns the final row
func (t *Table) Last() (Row, bool) {
	if t.Len() == 0 {
		return Row{}, false
	}
	return t.Rows[len(t.Rows)-1], true
}

// Transition marks a change of the smoothed regime between two consecutive rows
type Transition struct {
	Index     int       `json:"index"`
	Timestamp time.Time `json:"timestamp"`
	From      Label     `json:"from"`
	To        Label     `json:"to"`
}

// Transitions lists every index where the smoothed regime differs from the previous row
func (t *Table) Transitions() []Transition {
	var out []Transition
	for i := 1; i < t.Len(); i++ {
		prev, cur := t.Rows[i-1].Regime, t.Rows[i].Regime
		if prev != cur {
			out = append(out, Transition{
				Index:     i,
				Timestamp: t.Rows[i].Timestamp,
				From:      prev,
				To:        cur,
			})
		}
	}
	return out
}
