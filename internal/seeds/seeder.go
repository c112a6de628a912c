package seeds

import (
	"context"
	"time"

	"marketregime/internal/domain/market_data"
	"marketregime/internal/testsupport"
	"marketregime/pkg/errors"
	"marketregime/pkg/logger"
)

// Func seeds one group of bar histories
type Func func(ctx context.Context, s *Seeder) error

// Seeder writes synthetic bar histories through a market data writer. Every
// series ends at the same instant so instruments line up when classified.
type Seeder struct {
	writer   market_data.Writer
	exchange string
	end      time.Time
	log      *logger.Logger
	inserted int
}

// New creates a seeder whose series end at the last full hour before now
func New(writer market_data.Writer, exchange string, log *logger.Logger) *Seeder {
	if log == nil {
		log = logger.Get()
	}
	return &Seeder{
		writer:   writer,
		exchange: exchange,
		end:      time.Now().UTC().Truncate(time.Hour),
		log:      log.With("component", "seeder"),
	}
}

// WithEnd fixes the timestamp of the last bar of every series
func (s *Seeder) WithEnd(end time.Time) *Seeder {
	s.end = end.UTC()
	return s
}

// Series starts a fixture for one instrument
func (s *Seeder) Series() *testsupport.BarSeriesFixture {
	return testsupport.NewBarSeriesFixture()
}

// Insert builds the fixture for timeframe, aligns it to end at the seeder's
// end time and stores it
func (s *Seeder) Insert(ctx context.Context, symbol, timeframe string, fixture *testsupport.BarSeriesFixture) error {
	bars := fixture.WithTimeframe(timeframe).Build()
	if len(bars) == 0 {
		return errors.Wrapf(errors.ErrInvalidInput, "empty series for %s %s", symbol, timeframe)
	}

	shift := s.end.Sub(bars[len(bars)-1].Timestamp)
	for i := range bars {
		bars[i].Timestamp = bars[i].Timestamp.Add(shift)
	}

	if err := s.writer.StoreBars(ctx, s.exchange, symbol, timeframe, bars); err != nil {
		return errors.Wrapf(err, "seed %s %s", symbol, timeframe)
	}

	s.inserted += len(bars)
	s.log.Infow("Seeded bars",
		"symbol", symbol,
		"timeframe", timeframe,
		"bars", len(bars),
		"from", bars[0].Timestamp,
		"to", bars[len(bars)-1].Timestamp,
	)
	return nil
}

// Inserted returns the number of bars stored so far
func (s *Seeder) Inserted() int {
	return s.inserted
}
