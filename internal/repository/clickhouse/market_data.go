package clickhouse

import (
	"context"
	"fmt"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"marketregime/internal/domain/market_data"
	"marketregime/pkg/errors"
)

// Compile-time checks
var (
	_ market_data.Repository = (*MarketDataRepository)(nil)
	_ market_data.Writer     = (*MarketDataRepository)(nil)
)

// MarketDataRepository implements market_data.Repository using ClickHouse
type MarketDataRepository struct {
	conn driver.Conn
}

// NewMarketDataRepository creates a new market data repository
func NewMarketDataRepository(conn driver.Conn) *MarketDataRepository {
	return &MarketDataRepository{conn: conn}
}

// GetBars reads candles from the ohlcv table. The newest Limit candles are
// selected and returned oldest first.
func (r *MarketDataRepository) GetBars(ctx context.Context, query market_data.BarQuery) ([]market_data.Bar, error) {
	sql, args := buildBarsQuery(query)

	var bars []market_data.Bar
	if err := r.conn.Select(ctx, &bars, sql, args...); err != nil {
		return nil, errors.Wrapf(err, "failed to get bars for %s %s", query.Symbol, query.Timeframe)
	}

	for i, j := 0, len(bars)-1; i < j; i, j = i+1, j-1 {
		bars[i], bars[j] = bars[j], bars[i]
	}
	return bars, nil
}

const insertBars = `
	INSERT INTO ohlcv (
		exchange, symbol, timeframe, open_time,
		open, high, low, close, volume
	)
`

// StoreBars inserts candles in one batch
func (r *MarketDataRepository) StoreBars(ctx context.Context, exchange, symbol, timeframe string, bars []market_data.Bar) error {
	if len(bars) == 0 {
		return nil
	}

	batch, err := r.conn.PrepareBatch(ctx, insertBars)
	if err != nil {
		return errors.Wrap(err, "failed to prepare batch")
	}

	for _, bar := range bars {
		err := batch.Append(
			exchange, symbol, timeframe, bar.Timestamp,
			bar.Open, bar.High, bar.Low, bar.Close, bar.Volume,
		)
		if err != nil {
			_ = batch.Abort()
			return errors.Wrap(err, "failed to append bar")
		}
	}

	if err := batch.Send(); err != nil {
		return errors.Wrapf(err, "failed to store bars for %s %s", symbol, timeframe)
	}
	return nil
}

func buildBarsQuery(query market_data.BarQuery) (string, []interface{}) {
	sql := `
		SELECT open_time, open, high, low, close, volume
		FROM ohlcv
		WHERE symbol = ? AND timeframe = ?`

	args := []interface{}{query.Symbol, query.Timeframe}

	if query.Exchange != "" {
		sql += ` AND exchange = ?`
		args = append(args, query.Exchange)
	}

	if !query.StartTime.IsZero() {
		sql += ` AND open_time >= ?`
		args = append(args, query.StartTime)
	}

	if !query.EndTime.IsZero() {
		sql += ` AND open_time <= ?`
		args = append(args, query.EndTime)
	}

	sql += ` ORDER BY open_time DESC`

	if query.Limit > 0 {
		sql += fmt.Sprintf(` LIMIT %d`, query.Limit)
	}

	return sql, args
}
