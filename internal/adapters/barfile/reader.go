package barfile

import (
	"encoding/csv"
	"io"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"marketregime/internal/domain/market_data"
	"marketregime/pkg/errors"
)

// Options control how a bar file is parsed
type Options struct {
	// Delimiter separates fields; ',' when zero
	Delimiter rune
	// DecimalComma reads "1,5" as 1.5 (the delimiter must then differ from ',' or values be quoted)
	DecimalComma bool
	// TimeLayout forces a single timestamp layout; when empty the known layouts are tried in order
	TimeLayout string
	// Location is applied to timestamps without a zone; UTC when nil
	Location *time.Location
}

// timestamp column aliases, first match wins
var timeColumns = []string{"datetime", "timestamp", "time", "date", "open_time"}

var requiredColumns = []string{"open", "high", "low", "close"}

// layouts tried when Options.TimeLayout is empty
var layouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02T15:04:05",
	"02/01/2006 15:04",
	"02/01/2006 15:04:05",
	"2006.01.02 15:04",
	"2006-01-02",
	"02/01/2006",
}

// ReadBars parses a header-led CSV of OHLC bars.
//
// Header names are matched case-insensitively. One timestamp column and the
// open, high, low and close columns are required; volume is optional and NaN
// when absent. Empty cells are NaN. Rows are returned in ascending time order
// regardless of file order; duplicate timestamps are rejected.
func ReadBars(r io.Reader, opts Options) ([]market_data.Bar, error) {
	cr := csv.NewReader(r)
	cr.Comma = ','
	if opts.Delimiter != 0 {
		cr.Comma = opts.Delimiter
	}
	cr.TrimLeadingSpace = true
	cr.ReuseRecord = true

	header, err := cr.Read()
	if err == io.EOF {
		return nil, errors.NewSchemaError(append([]string{"datetime"}, requiredColumns...), nil)
	}
	if err != nil {
		return nil, errors.Wrap(err, "read header")
	}

	idx, err := indexColumns(header)
	if err != nil {
		return nil, err
	}

	loc := opts.Location
	if loc == nil {
		loc = time.UTC
	}

	var bars []market_data.Bar
	line := 1
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, errors.Wrapf(err, "read line %d", line)
		}

		bar, err := parseRecord(record, idx, opts, loc)
		if err != nil {
			return nil, errors.Wrapf(err, "line %d", line)
		}
		bars = append(bars, bar)
	}

	sort.SliceStable(bars, func(i, j int) bool {
		return bars[i].Timestamp.Before(bars[j].Timestamp)
	})
	for i := 1; i < len(bars); i++ {
		if bars[i].Timestamp.Equal(bars[i-1].Timestamp) {
			return nil, errors.Wrapf(errors.ErrInvalidInput, "duplicate timestamp %s", bars[i].Timestamp.Format(time.RFC3339))
		}
	}

	return bars, nil
}

type columnIndex struct {
	time, open, high, low, close, volume int
}

func indexColumns(header []string) (columnIndex, error) {
	pos := make(map[string]int, len(header))
	for i, h := range header {
		name := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		if _, seen := pos[name]; !seen {
			pos[name] = i
		}
	}

	idx := columnIndex{time: -1, volume: -1}
	for _, name := range timeColumns {
		if i, ok := pos[name]; ok {
			idx.time = i
			break
		}
	}

	var missing []string
	if idx.time < 0 {
		missing = append(missing, "datetime")
	}
	lookup := func(name string) int {
		i, ok := pos[name]
		if !ok {
			missing = append(missing, name)
			return -1
		}
		return i
	}
	idx.open = lookup("open")
	idx.high = lookup("high")
	idx.low = lookup("low")
	idx.close = lookup("close")
	if i, ok := pos["volume"]; ok {
		idx.volume = i
	}

	if len(missing) > 0 {
		return idx, errors.NewSchemaError(missing, nil)
	}
	return idx, nil
}

func parseRecord(record []string, idx columnIndex, opts Options, loc *time.Location) (market_data.Bar, error) {
	field := func(i int) string {
		if i < 0 || i >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[i])
	}

	ts, err := parseTime(field(idx.time), opts.TimeLayout, loc)
	if err != nil {
		return market_data.Bar{}, err
	}

	bar := market_data.Bar{Timestamp: ts}
	targets := []struct {
		col int
		dst *float64
	}{
		{idx.open, &bar.Open},
		{idx.high, &bar.High},
		{idx.low, &bar.Low},
		{idx.close, &bar.Close},
		{idx.volume, &bar.Volume},
	}
	for _, t := range targets {
		v, err := parseNumber(field(t.col), opts.DecimalComma)
		if err != nil {
			return market_data.Bar{}, err
		}
		*t.dst = v
	}

	return bar, nil
}

// parseNumber reads a decimal cell; empty or NaN cells are NaN
func parseNumber(s string, decimalComma bool) (float64, error) {
	if s == "" || strings.EqualFold(s, "nan") {
		return math.NaN(), nil
	}
	if decimalComma {
		s = strings.ReplaceAll(s, ".", "")
		s = strings.Replace(s, ",", ".", 1)
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, errors.Wrapf(errors.ErrInvalidInput, "invalid number %q", s)
	}
	f, _ := d.Float64()
	return f, nil
}

func parseTime(s, layout string, loc *time.Location) (time.Time, error) {
	if s == "" {
		return time.Time{}, errors.Wrap(errors.ErrInvalidInput, "empty timestamp")
	}

	if layout != "" {
		ts, err := time.ParseInLocation(layout, s, loc)
		if err != nil {
			return time.Time{}, errors.Wrapf(errors.ErrInvalidInput, "timestamp %q does not match layout %q", s, layout)
		}
		return ts.UTC(), nil
	}

	if unix, err := strconv.ParseInt(s, 10, 64); err == nil {
		// millisecond epochs are common in exchange exports
		if unix > 1e11 {
			return time.UnixMilli(unix).UTC(), nil
		}
		return time.Unix(unix, 0).UTC(), nil
	}

	for _, l := range layouts {
		if ts, err := time.ParseInLocation(l, s, loc); err == nil {
			return ts.UTC(), nil
		}
	}
	return time.Time{}, errors.Wrapf(errors.ErrInvalidInput, "unknown timestamp format %q", s)
}
