package clickhouse

import (
	"context"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/google/uuid"

	"marketregime/internal/domain/regime"
	"marketregime/pkg/errors"
)

// Compile-time check
var _ regime.Repository = (*RegimeRepository)(nil)

// RegimeRepository implements regime.Repository for ClickHouse
type RegimeRepository struct {
	conn driver.Conn
}

// NewRegimeRepository creates a new regime repository
func NewRegimeRepository(conn driver.Conn) *RegimeRepository {
	return &RegimeRepository{conn: conn}
}

const insertRegimeBars = `
	INSERT INTO market_regime_bars (
		run_id, symbol, timeframe, timestamp, close,
		sma_short, sma_long, slope_short, atr,
		vol_bucket, regime_raw, regime, regime_code,
		atr_low_thr, atr_high_thr
	)
`

// StoreRows writes every row of the table in one batch. Undefined features
// are stored as NaN.
func (r *RegimeRepository) StoreRows(ctx context.Context, run *regime.Run, table *regime.Table) error {
	if table.Len() == 0 {
		return nil
	}

	batch, err := r.conn.PrepareBatch(ctx, insertRegimeBars)
	if err != nil {
		return errors.Wrap(err, "failed to prepare batch")
	}

	for _, row := range table.Rows {
		err := batch.Append(
			run.ID, run.Symbol, run.Timeframe, row.Timestamp, row.Close,
			row.SMAShort, row.SMALong, row.SlopeShort, row.ATR,
			row.VolBucket.String(), row.RegimeRaw.String(), row.Regime.String(), int8(row.RegimeCode),
			row.ATRLowThr, row.ATRHighThr,
		)
		if err != nil {
			_ = batch.Abort()
			return errors.Wrap(err, "failed to append regime row")
		}
	}

	if err := batch.Send(); err != nil {
		return errors.Wrap(err, "failed to store regime rows")
	}
	return nil
}

// GetRunRows reads back the rows stored for one run in time order
func (r *RegimeRepository) GetRunRows(ctx context.Context, runID uuid.UUID) ([]regime.Row, error) {
	query := `
		SELECT
			timestamp, close, sma_short, sma_long, slope_short, atr,
			vol_bucket, regime_raw, regime, regime_code, atr_low_thr, atr_high_thr
		FROM market_regime_bars
		WHERE run_id = ?
		ORDER BY timestamp
	`

	rows, err := r.conn.Query(ctx, query, runID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get regime rows")
	}
	defer rows.Close()

	var out []regime.Row
	for rows.Next() {
		var (
			row                       regime.Row
			bucket, rawStr, regimeStr string
			code                      int8
		)

		err := rows.Scan(
			&row.Timestamp, &row.Close, &row.SMAShort, &row.SMALong, &row.SlopeShort, &row.ATR,
			&bucket, &rawStr, &regimeStr, &code, &row.ATRLowThr, &row.ATRHighThr,
		)
		if err != nil {
			return nil, errors.Wrap(err, "failed to scan regime row")
		}

		row.VolBucket = regime.VolBucket(bucket)
		row.RegimeRaw = regime.Label(rawStr)
		row.Regime = regime.Label(regimeStr)
		row.RegimeCode = int(code)
		out = append(out, row)
	}

	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to iterate regime rows")
	}

	return out, nil
}
