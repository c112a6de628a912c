package market_data

import (
	"context"
)

// Repository is a source of bar histories.
// Implementations return bars ordered by strictly increasing timestamp.
type Repository interface {
	GetBars(ctx context.Context, query BarQuery) ([]Bar, error)
}

// Writer stores bar histories, e.g. when importing CSV files or seeding a database
type Writer interface {
	StoreBars(ctx context.Context, exchange, symbol, timeframe string, bars []Bar) error
}
