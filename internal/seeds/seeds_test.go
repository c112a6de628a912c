package seeds_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"marketregime/internal/adapters/barfile"
	"marketregime/internal/domain/market_data"
	"marketregime/internal/seeds"
	"marketregime/internal/seeds/dev"
	seedtest "marketregime/internal/seeds/test"
	"marketregime/pkg/errors"
	"marketregime/pkg/logger"
)

type stored struct {
	exchange, symbol, timeframe string
	bars                        []market_data.Bar
}

type recordingWriter struct {
	calls []stored
	err   error
}

func (w *recordingWriter) StoreBars(_ context.Context, exchange, symbol, timeframe string, bars []market_data.Bar) error {
	if w.err != nil {
		return w.err
	}
	w.calls = append(w.calls, stored{exchange, symbol, timeframe, bars})
	return nil
}

func TestSeeder_InsertAlignsToEnd(t *testing.T) {
	w := &recordingWriter{}
	end := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	s := seeds.New(w, "binance", logger.Nop()).WithEnd(end)

	err := s.Insert(context.Background(), "BTCUSDT", "4h", s.Series().WithLength(10))

	require.NoError(t, err)
	require.Len(t, w.calls, 1)
	call := w.calls[0]
	assert.Equal(t, "binance", call.exchange)
	assert.Equal(t, "BTCUSDT", call.symbol)
	assert.Equal(t, "4h", call.timeframe)
	require.Len(t, call.bars, 10)
	assert.Equal(t, end, call.bars[9].Timestamp)
	assert.Equal(t, end.Add(-36*time.Hour), call.bars[0].Timestamp)
	assert.Equal(t, 10, s.Inserted())
}

func TestSeeder_InsertErrors(t *testing.T) {
	s := seeds.New(&recordingWriter{}, "binance", logger.Nop())
	err := s.Insert(context.Background(), "BTCUSDT", "1h", s.Series().WithLength(0))
	assert.True(t, errors.Is(err, errors.ErrInvalidInput))

	failing := seeds.New(&recordingWriter{err: errors.ErrUnavailable}, "binance", logger.Nop())
	err = failing.Insert(context.Background(), "BTCUSDT", "1h", failing.Series())
	assert.True(t, errors.Is(err, errors.ErrUnavailable))
	assert.Contains(t, err.Error(), "seed BTCUSDT 1h")
	assert.Zero(t, failing.Inserted())
}

func TestSeedSets(t *testing.T) {
	w := &recordingWriter{}
	s := seeds.New(w, "binance", logger.Nop())
	ctx := context.Background()

	for _, fn := range []seeds.Func{dev.SeedTrending, dev.SeedRanging, seedtest.SeedBars} {
		require.NoError(t, fn(ctx, s))
	}

	var names []string
	for _, c := range w.calls {
		names = append(names, c.symbol+"_"+c.timeframe)
	}
	assert.Equal(t, []string{"BTCUSDT_1h", "ETHUSDT_1h", "BTCUSDT_1d", "SOLUSDT_1h", "USDCUSDT_1h", "TESTUSDT_1h"}, names)
	assert.Equal(t, 720+720+400+720+300+260, s.Inserted())
}

func TestParseFileName(t *testing.T) {
	tests := []struct {
		name      string
		symbol    string
		timeframe string
		ok        bool
	}{
		{"BTCUSDT_1h.csv", "BTCUSDT", "1h", true},
		{"BTC_USDT_15m.csv", "BTC_USDT", "15m", true},
		{"BTCUSDT.csv", "", "", false},
		{"_1h.csv", "", "", false},
		{"BTCUSDT_.csv", "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			symbol, timeframe, ok := seeds.ParseFileName(tt.name)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.symbol, symbol)
			assert.Equal(t, tt.timeframe, timeframe)
		})
	}
}

func TestImportDir(t *testing.T) {
	dir := t.TempDir()
	csv := "timestamp,open,high,low,close,volume\n" +
		"2024-01-01 00:00:00,1,2,0.5,1.5,10\n" +
		"2024-01-01 01:00:00,1.5,2.5,1,2,12\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "ETHUSDT_1h.csv"), []byte(csv), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.csv"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "README.txt"), []byte("x"), 0o644))

	w := &recordingWriter{}
	imported, err := seeds.ImportDir(context.Background(), w, "bybit", dir, barfile.Options{}, logger.Nop())

	require.NoError(t, err)
	require.Len(t, imported, 1)
	assert.Equal(t, "ETHUSDT", imported[0].Symbol)
	assert.Equal(t, 2, imported[0].Bars)
	require.Len(t, w.calls, 1)
	assert.Equal(t, "bybit", w.calls[0].exchange)
	assert.Equal(t, 2.0, w.calls[0].bars[1].Close)
}

func TestImportDir_MissingDir(t *testing.T) {
	_, err := seeds.ImportDir(context.Background(), &recordingWriter{}, "binance",
		filepath.Join(t.TempDir(), "missing"), barfile.Options{}, logger.Nop())

	assert.True(t, errors.Is(err, errors.ErrNotFound))
}
