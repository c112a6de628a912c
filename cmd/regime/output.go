package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"marketregime/internal/adapters/barfile"
	"marketregime/internal/services/regime_classifier"
	"marketregime/internal/workers/analysis"
	"marketregime/pkg/errors"
	"marketregime/pkg/logger"
)

// output prints the report of every result and optionally saves its table
type output struct {
	mu    sync.Mutex
	w     io.Writer
	dir   string
	quiet bool
	log   *logger.Logger
}

func (o *output) write(res analysis.Result) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if res.Table == nil {
		return
	}

	if !o.quiet {
		w := o.w
		if w == nil {
			w = os.Stdout
		}
		fmt.Fprintf(w, "\n== %s %s (%d bars) ==\n", res.Symbol, res.Timeframe, res.Table.Len())
		if err := regime_classifier.WriteReport(w, res.Summary); err != nil {
			o.log.Warnw("Failed to print report", "symbol", res.Symbol, "error", err)
		}
	}

	if o.dir == "" {
		return
	}
	path, err := o.saveTable(res)
	if err != nil {
		o.log.Errorw("Failed to write regime table", "symbol", res.Symbol, "timeframe", res.Timeframe, "error", err)
		return
	}
	o.log.Infow("Regime table written", "path", path)
}

func (o *output) saveTable(res analysis.Result) (string, error) {
	if err := os.MkdirAll(o.dir, 0o755); err != nil {
		return "", errors.Wrap(err, "create output dir")
	}

	path := filepath.Join(o.dir, fmt.Sprintf("%s_%s_regime.csv", res.Symbol, res.Timeframe))
	f, err := os.Create(path)
	if err != nil {
		return "", errors.Wrap(err, "create output file")
	}

	if err := barfile.WriteTable(f, res.Table); err != nil {
		f.Close()
		return "", err
	}
	return path, errors.Wrap(f.Close(), "close output file")
}
