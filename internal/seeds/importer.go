package seeds

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"marketregime/internal/adapters/barfile"
	"marketregime/internal/domain/market_data"
	"marketregime/pkg/errors"
	"marketregime/pkg/logger"
)

// ImportedFile describes one imported bar file
type ImportedFile struct {
	Path      string
	Symbol    string
	Timeframe string
	Bars      int
}

// ImportDir stores every {symbol}_{timeframe}.csv file of dir. Files whose
// name does not follow the pattern are skipped; the first failing file stops
// the import.
func ImportDir(
	ctx context.Context,
	writer market_data.Writer,
	exchange string,
	dir string,
	opts barfile.Options,
	log *logger.Logger,
) ([]ImportedFile, error) {
	if _, err := os.Stat(dir); err != nil {
		return nil, errors.Wrapf(errors.ErrNotFound, "import dir %s", dir)
	}

	paths, err := filepath.Glob(filepath.Join(dir, "*.csv"))
	if err != nil {
		return nil, errors.Wrap(err, "list csv files")
	}
	sort.Strings(paths)

	var imported []ImportedFile
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return imported, err
		}

		symbol, timeframe, ok := ParseFileName(filepath.Base(path))
		if !ok {
			log.Warnw("Skipping file with unexpected name", "path", path)
			continue
		}

		bars, err := barfile.LoadFile(path, opts)
		if err != nil {
			return imported, err
		}
		if err := writer.StoreBars(ctx, exchange, symbol, timeframe, bars); err != nil {
			return imported, errors.Wrapf(err, "import %s", path)
		}

		log.Infow("Imported bar file", "path", path, "symbol", symbol, "timeframe", timeframe, "bars", len(bars))
		imported = append(imported, ImportedFile{Path: path, Symbol: symbol, Timeframe: timeframe, Bars: len(bars)})
	}

	return imported, nil
}

// ParseFileName splits "BTCUSDT_1h.csv" into symbol and timeframe. The
// timeframe is the part after the last underscore.
func ParseFileName(name string) (symbol, timeframe string, ok bool) {
	base := strings.TrimSuffix(name, filepath.Ext(name))
	i := strings.LastIndex(base, "_")
	if i <= 0 || i == len(base)-1 {
		return "", "", false
	}
	return base[:i], base[i+1:], true
}
