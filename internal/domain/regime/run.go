package regime

import (
	"math"
	"time"

	"github.com/google/uuid"
)

// Run records one classification call over one instrument
type Run struct {
	ID           uuid.UUID `db:"id" json:"id"`
	Symbol       string    `db:"symbol" json:"symbol"`
	Timeframe    string    `db:"timeframe" json:"timeframe"`
	Bars         int       `db:"bars" json:"bars"`
	FirstBar     time.Time `db:"first_bar" json:"first_bar"`
	LastBar      time.Time `db:"last_bar" json:"last_bar"`
	Params       Params    `db:"-" json:"params"`
	SlopeEpsilon float64   `db:"slope_epsilon" json:"slope_epsilon"`
	ATRLowThr    float64   `db:"atr_low_thr" json:"atr_low_thr"`
	ATRHighThr   float64   `db:"atr_high_thr" json:"atr_high_thr"`
	BullBars     int       `db:"bull_bars" json:"bull_bars"`
	BearBars     int       `db:"bear_bars" json:"bear_bars"`
	SidewaysBars int       `db:"sideways_bars" json:"sideways_bars"`
	Transitions  int       `db:"transitions" json:"transitions"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

// NewRun describes a finished table
func NewRun(symbol, timeframe string, table *Table, summary Summary, now time.Time) *Run {
	run := &Run{
		ID:           uuid.New(),
		Symbol:       symbol,
		Timeframe:    timeframe,
		Bars:         table.Len(),
		Params:       table.Params,
		SlopeEpsilon: table.SlopeEpsilon,
		ATRLowThr:    table.ATRLowThr,
		ATRHighThr:   table.ATRHighThr,
		BullBars:     summary.Counts[Bull],
		BearBars:     summary.Counts[Bear],
		SidewaysBars: summary.Counts[Sideways],
		Transitions:  len(table.Transitions()),
		CreatedAt:    now.UTC(),
	}
	if table.Len() > 0 {
		run.FirstBar = table.Rows[0].Timestamp
		run.LastBar = table.Rows[table.Len()-1].Timestamp
	}
	return run
}

// Snapshot is the latest smoothed state of an instrument, cached for
// consumers such as a trading strategy
type Snapshot struct {
	RunID      uuid.UUID `json:"run_id"`
	Symbol     string    `json:"symbol"`
	Timeframe  string    `json:"timeframe"`
	Timestamp  time.Time `json:"timestamp"`
	Regime     Label     `json:"regime"`
	RegimeCode int       `json:"regime_code"`
	VolBucket  VolBucket `json:"vol_bucket"`
	Close      *float64  `json:"close"` // nil when the close is undefined
}

// NewSnapshot describes the final row of a run
func NewSnapshot(run *Run, row Row) *Snapshot {
	return &Snapshot{
		RunID:      run.ID,
		Symbol:     run.Symbol,
		Timeframe:  run.Timeframe,
		Timestamp:  row.Timestamp,
		Regime:     row.Regime,
		RegimeCode: row.RegimeCode,
		VolBucket:  row.VolBucket,
		Close:      defined(row.Close),
	}
}

// ChangeEvent is published for every smoothed regime transition
type ChangeEvent struct {
	RunID      uuid.UUID `json:"run_id"`
	Symbol     string    `json:"symbol"`
	Timeframe  string    `json:"timeframe"`
	Timestamp  time.Time `json:"timestamp"`
	From       Label     `json:"from"`
	To         Label     `json:"to"`
	RegimeCode int       `json:"regime_code"`
	VolBucket  VolBucket `json:"vol_bucket"`
	Close      *float64  `json:"close"`
}

// NewChangeEvents builds one event per smoothed transition of the table
func NewChangeEvents(run *Run, table *Table) []ChangeEvent {
	transitions := table.Transitions()
	events := make([]ChangeEvent, 0, len(transitions))
	for _, tr := range transitions {
		row := table.Rows[tr.Index]
		events = append(events, ChangeEvent{
			RunID:      run.ID,
			Symbol:     run.Symbol,
			Timeframe:  run.Timeframe,
			Timestamp:  tr.Timestamp,
			From:       tr.From,
			To:         tr.To,
			RegimeCode: tr.To.Code(),
			VolBucket:  row.VolBucket,
			Close:      defined(row.Close),
		})
	}
	return events
}

func defined(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}
