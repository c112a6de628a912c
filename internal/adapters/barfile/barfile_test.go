package barfile

import (
	"bytes"
	"context"
	"encoding/csv"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"marketregime/internal/domain/market_data"
	"marketregime/internal/domain/regime"
	"marketregime/pkg/errors"
)

func TestReadBars_DescendingDecimalComma(t *testing.T) {
	input := strings.Join([]string{
		"datetime;open;high;low;close;volume",
		"02/01/2024 10:00;1,5;2,0;1,0;1,75;100",
		"01/01/2024 10:00;1.001,5;1.002;1.000;1.001;50",
	}, "\n")

	bars, err := ReadBars(strings.NewReader(input), Options{Delimiter: ';', DecimalComma: true})
	require.NoError(t, err)
	require.Len(t, bars, 2)

	assert.Equal(t, time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC), bars[0].Timestamp)
	assert.Equal(t, 1001.5, bars[0].Open)
	assert.Equal(t, 1002.0, bars[0].High)
	assert.Equal(t, time.Date(2024, 1, 2, 10, 0, 0, 0, time.UTC), bars[1].Timestamp)
	assert.Equal(t, 1.75, bars[1].Close)
	assert.Equal(t, 100.0, bars[1].Volume)
}

func TestReadBars_LayoutsAndAliases(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  time.Time
	}{
		{"rfc3339", "Timestamp,Open,High,Low,Close\n2024-05-01T12:00:00Z,1,2,0.5,1.5", time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)},
		{"iso with space", "time,open,high,low,close\n2024-05-01 12:30:00,1,2,0.5,1.5", time.Date(2024, 5, 1, 12, 30, 0, 0, time.UTC)},
		{"date only", "date,open,high,low,close\n2024-05-01,1,2,0.5,1.5", time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)},
		{"unix seconds", "open_time,open,high,low,close\n1714564800,1,2,0.5,1.5", time.Unix(1714564800, 0).UTC()},
		{"unix millis", "open_time,open,high,low,close\n1714564800000,1,2,0.5,1.5", time.Unix(1714564800, 0).UTC()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bars, err := ReadBars(strings.NewReader(tt.input), Options{})
			require.NoError(t, err)
			require.Len(t, bars, 1)
			assert.True(t, tt.want.Equal(bars[0].Timestamp), "got %s", bars[0].Timestamp)
			assert.True(t, math.IsNaN(bars[0].Volume), "volume column absent")
		})
	}
}

func TestReadBars_ForcedLayout(t *testing.T) {
	input := "datetime,open,high,low,close\n01/02/2024 10:00,1,2,0.5,1.5"

	bars, err := ReadBars(strings.NewReader(input), Options{TimeLayout: "01/02/2006 15:04"})
	require.NoError(t, err)
	assert.Equal(t, time.January, bars[0].Timestamp.Month())
	assert.Equal(t, 2, bars[0].Timestamp.Day())

	_, err = ReadBars(strings.NewReader(input), Options{TimeLayout: time.RFC3339})
	assert.True(t, errors.Is(err, errors.ErrInvalidInput))
}

func TestReadBars_EmptyCellIsNaN(t *testing.T) {
	input := "datetime,open,high,low,close,volume\n2024-05-01,1,,0.5,1.5,"

	bars, err := ReadBars(strings.NewReader(input), Options{})
	require.NoError(t, err)
	assert.True(t, math.IsNaN(bars[0].High))
	assert.True(t, math.IsNaN(bars[0].Volume))
}

func TestReadBars_MissingColumns(t *testing.T) {
	_, err := ReadBars(strings.NewReader("datetime,open,close\n2024-05-01,1,2"), Options{})

	var schemaErr *errors.SchemaError
	require.True(t, errors.As(err, &schemaErr))
	assert.Equal(t, []string{"high", "low"}, schemaErr.Missing)
}

func TestReadBars_MissingTimeColumn(t *testing.T) {
	_, err := ReadBars(strings.NewReader("open,high,low,close\n1,2,0.5,1.5"), Options{})

	var schemaErr *errors.SchemaError
	require.True(t, errors.As(err, &schemaErr))
	assert.Equal(t, []string{"datetime"}, schemaErr.Missing)
}

func TestReadBars_EmptyInput(t *testing.T) {
	_, err := ReadBars(strings.NewReader(""), Options{})

	assert.True(t, errors.Is(err, errors.ErrSchema))
}

func TestReadBars_HeaderOnly(t *testing.T) {
	bars, err := ReadBars(strings.NewReader("datetime,open,high,low,close\n"), Options{})

	require.NoError(t, err)
	assert.Empty(t, bars)
}

func TestReadBars_DuplicateTimestamp(t *testing.T) {
	input := "datetime,open,high,low,close\n2024-05-01,1,2,0.5,1.5\n2024-05-01,1,2,0.5,1.5"

	_, err := ReadBars(strings.NewReader(input), Options{})

	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrInvalidInput))
	assert.Contains(t, err.Error(), "duplicate timestamp")
}

func TestReadBars_BadNumber(t *testing.T) {
	input := "datetime,open,high,low,close\n2024-05-01,abc,2,0.5,1.5"

	_, err := ReadBars(strings.NewReader(input), Options{})

	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrInvalidInput))
	assert.Contains(t, err.Error(), "line 2")
}

func TestWriteTable(t *testing.T) {
	ts := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	nan := math.NaN()
	table := &regime.Table{
		Rows: []regime.Row{{
			Timestamp:  ts,
			Open:       1,
			High:       2,
			Low:        0.5,
			Close:      1.25,
			Volume:     nan,
			SMAShort:   nan,
			SMALong:    nan,
			SlopeShort: nan,
			ATR:        0.75,
			VolBucket:  regime.VolMed,
			RegimeRaw:  regime.Sideways,
			Regime:     regime.Bull,
			RegimeCode: 1,
			ATRLowThr:  0.5,
			ATRHighThr: 1,
		}},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteTable(&buf, table))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, TableHeader, records[0])
	assert.Equal(t, []string{
		"2024-05-01T00:00:00Z", "1", "2", "0.5", "1.25", "",
		"", "", "", "0.75",
		"Med", "Sideways", "Bull", "1",
		"0.5", "1",
	}, records[1])
}

func TestWriteTable_ReadBack(t *testing.T) {
	ts := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	table := &regime.Table{Rows: []regime.Row{
		{Timestamp: ts, Open: 1, High: 2, Low: 0.5, Close: 1.5, Volume: 10},
		{Timestamp: ts.Add(time.Hour), Open: 1.5, High: 2.5, Low: 1, Close: 2, Volume: 20},
	}}

	var buf bytes.Buffer
	require.NoError(t, WriteTable(&buf, table))

	bars, err := ReadBars(&buf, Options{})
	require.NoError(t, err)
	require.Len(t, bars, 2)
	assert.Equal(t, market_data.Bar{Timestamp: ts.Add(time.Hour), Open: 1.5, High: 2.5, Low: 1, Close: 2, Volume: 20}, bars[1])
}

func TestRepository_GetBars(t *testing.T) {
	dir := t.TempDir()
	content := strings.Join([]string{
		"datetime,open,high,low,close,volume",
		"2024-05-01 00:00,1,2,0.5,1.5,1",
		"2024-05-01 01:00,1,2,0.5,1.5,2",
		"2024-05-01 02:00,1,2,0.5,1.5,3",
		"2024-05-01 03:00,1,2,0.5,1.5,4",
	}, "\n")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "EURUSD_1h.csv"), []byte(content), 0o644))

	repo := NewRepository(dir, Options{})
	ctx := context.Background()
	start := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

	all, err := repo.GetBars(ctx, market_data.BarQuery{Symbol: "EURUSD", Timeframe: "1h"})
	require.NoError(t, err)
	assert.Len(t, all, 4)

	ranged, err := repo.GetBars(ctx, market_data.BarQuery{
		Symbol:    "EURUSD",
		Timeframe: "1h",
		StartTime: start.Add(time.Hour),
		EndTime:   start.Add(2 * time.Hour),
	})
	require.NoError(t, err)
	require.Len(t, ranged, 2)
	assert.Equal(t, 2.0, ranged[0].Volume)
	assert.Equal(t, 3.0, ranged[1].Volume)

	limited, err := repo.GetBars(ctx, market_data.BarQuery{Symbol: "EURUSD", Timeframe: "1h", Limit: 1})
	require.NoError(t, err)
	require.Len(t, limited, 1)
	assert.Equal(t, 4.0, limited[0].Volume)

	_, err = repo.GetBars(ctx, market_data.BarQuery{Symbol: "GBPUSD", Timeframe: "1h"})
	assert.True(t, errors.Is(err, errors.ErrNotFound))
}

func TestFileRepository(t *testing.T) {
	path := filepath.Join(t.TempDir(), "export.csv")
	content := "datetime,open,high,low,close\n2024-05-01,1,2,0.5,1.5\n2024-05-02,1,2,0.5,1.75"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	repo := NewFileRepository(path, Options{})
	assert.Equal(t, path, repo.Path("ANY", "1d"))

	bars, err := repo.GetBars(context.Background(), market_data.BarQuery{Symbol: "ANY", Timeframe: "1d"})
	require.NoError(t, err)
	require.Len(t, bars, 2)
	assert.Equal(t, 1.75, bars[1].Close)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = repo.GetBars(ctx, market_data.BarQuery{})
	assert.ErrorIs(t, err, context.Canceled)
}
