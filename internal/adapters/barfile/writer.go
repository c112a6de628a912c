package barfile

import (
	"encoding/csv"
	"io"
	"math"
	"strconv"
	"time"

	"marketregime/internal/domain/regime"
	"marketregime/pkg/errors"
)

// TableHeader is the column order of WriteTable
var TableHeader = []string{
	"timestamp", "open", "high", "low", "close", "volume",
	"sma_short", "sma_long", "slope_short", "atr",
	"vol_bucket", "regime_raw", "regime", "regime_code",
	"atr_low_thr", "atr_high_thr",
}

// WriteTable writes the classified table as CSV. NaN values become empty cells.
func WriteTable(w io.Writer, table *regime.Table) error {
	cw := csv.NewWriter(w)

	if err := cw.Write(TableHeader); err != nil {
		return errors.Wrap(err, "write csv header")
	}

	record := make([]string, len(TableHeader))
	for i := 0; i < table.Len(); i++ {
		row := table.Rows[i]
		record = record[:0]
		record = append(record,
			row.Timestamp.UTC().Format(time.RFC3339),
			formatFloat(row.Open),
			formatFloat(row.High),
			formatFloat(row.Low),
			formatFloat(row.Close),
			formatFloat(row.Volume),
			formatFloat(row.SMAShort),
			formatFloat(row.SMALong),
			formatFloat(row.SlopeShort),
			formatFloat(row.ATR),
			row.VolBucket.String(),
			row.RegimeRaw.String(),
			row.Regime.String(),
			strconv.Itoa(row.RegimeCode),
			formatFloat(row.ATRLowThr),
			formatFloat(row.ATRHighThr),
		)
		if err := cw.Write(record); err != nil {
			return errors.Wrapf(err, "write csv row %d", i)
		}
	}

	cw.Flush()
	return errors.Wrap(cw.Error(), "flush csv")
}

func formatFloat(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return ""
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}
