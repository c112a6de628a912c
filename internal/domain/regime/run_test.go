package regime

import (
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func eventTable() *Table {
	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	rows := []Row{
		{Timestamp: start, Close: 10, VolBucket: VolMed, Regime: Sideways, RegimeCode: 0},
		{Timestamp: start.Add(time.Hour), Close: 11, VolBucket: VolHigh, Regime: Bull, RegimeCode: 1},
		{Timestamp: start.Add(2 * time.Hour), Close: math.NaN(), VolBucket: VolLow, Regime: Bear, RegimeCode: -1},
	}
	return &Table{Rows: rows, Params: DefaultParams()}
}

func TestNewChangeEvents(t *testing.T) {
	table := eventTable()
	run := NewRun("BTCUSDT", "1h", table, Summary{}, time.Now())

	events := NewChangeEvents(run, table)

	require.Len(t, events, 2)
	assert.Equal(t, run.ID, events[0].RunID)
	assert.Equal(t, Sideways, events[0].From)
	assert.Equal(t, Bull, events[0].To)
	assert.Equal(t, 1, events[0].RegimeCode)
	assert.Equal(t, VolHigh, events[0].VolBucket)
	require.NotNil(t, events[0].Close)
	assert.Equal(t, 11.0, *events[0].Close)

	assert.Equal(t, -1, events[1].RegimeCode)
	assert.Nil(t, events[1].Close, "undefined close is omitted")

	_, err := json.Marshal(events)
	assert.NoError(t, err)
}

func TestNewChangeEvents_NoTransitions(t *testing.T) {
	table := &Table{Rows: []Row{{Regime: Bull}, {Regime: Bull}}}
	run := NewRun("BTCUSDT", "1h", table, Summary{}, time.Now())

	assert.Empty(t, NewChangeEvents(run, table))
}

func TestNewSnapshot(t *testing.T) {
	table := eventTable()
	run := NewRun("ETHUSDT", "4h", table, Summary{}, time.Now())
	last, ok := table.Last()
	require.True(t, ok)

	snap := NewSnapshot(run, last)

	assert.Equal(t, run.ID, snap.RunID)
	assert.Equal(t, "ETHUSDT", snap.Symbol)
	assert.Equal(t, "4h", snap.Timeframe)
	assert.Equal(t, Bear, snap.Regime)
	assert.Equal(t, VolLow, snap.VolBucket)
	assert.Nil(t, snap.Close)

	data, err := json.Marshal(snap)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"close":null`)
}
