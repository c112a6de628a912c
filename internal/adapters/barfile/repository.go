package barfile

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"marketregime/internal/domain/market_data"
	"marketregime/pkg/errors"
)

// Compile-time check
var _ market_data.Repository = (*Repository)(nil)

// Repository serves bar histories from CSV files named {symbol}_{timeframe}.csv
// inside one directory, or from a single file for every instrument.
type Repository struct {
	dir  string
	file string
	opts Options
}

// NewRepository creates a file-backed bar repository
func NewRepository(dir string, opts Options) *Repository {
	return &Repository{dir: dir, opts: opts}
}

// NewFileRepository serves the same file whatever instrument is queried
func NewFileRepository(path string, opts Options) *Repository {
	return &Repository{file: path, opts: opts}
}

// Path returns the file that holds symbol/timeframe
func (r *Repository) Path(symbol, timeframe string) string {
	if r.file != "" {
		return r.file
	}
	return filepath.Join(r.dir, fmt.Sprintf("%s_%s.csv", symbol, timeframe))
}

// GetBars loads the file for the query's instrument and applies its time
// range and limit. A limit keeps the most recent bars.
func (r *Repository) GetBars(ctx context.Context, query market_data.BarQuery) ([]market_data.Bar, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	bars, err := LoadFile(r.Path(query.Symbol, query.Timeframe), r.opts)
	if err != nil {
		return nil, err
	}

	return applyQuery(bars, query), nil
}

// LoadFile reads one bar file
func LoadFile(path string, opts Options) ([]market_data.Bar, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrapf(errors.ErrNotFound, "bar file %s", path)
		}
		return nil, errors.Wrapf(err, "open bar file %s", path)
	}
	defer f.Close()

	bars, err := ReadBars(f, opts)
	if err != nil {
		return nil, errors.Wrapf(err, "parse bar file %s", path)
	}
	return bars, nil
}

// applyQuery filters ascending bars by [StartTime, EndTime] and keeps the last Limit
func applyQuery(bars []market_data.Bar, query market_data.BarQuery) []market_data.Bar {
	from := 0
	if !query.StartTime.IsZero() {
		from = sort.Search(len(bars), func(i int) bool {
			return !bars[i].Timestamp.Before(query.StartTime)
		})
	}
	to := len(bars)
	if !query.EndTime.IsZero() {
		to = sort.Search(len(bars), func(i int) bool {
			return bars[i].Timestamp.After(query.EndTime)
		})
	}
	if to < from {
		to = from
	}

	out := bars[from:to]
	if query.Limit > 0 && len(out) > query.Limit {
		out = out[len(out)-query.Limit:]
	}
	return out
}
