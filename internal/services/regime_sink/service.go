package regime_sink

import (
	"context"
	"time"

	"marketregime/internal/domain/regime"
	"marketregime/internal/metrics"
	"marketregime/pkg/errors"
	"marketregime/pkg/logger"
)

// Sink names used in logs and metrics
const (
	SinkClickHouse = "clickhouse"
	SinkPostgres   = "postgres"
	SinkRedis      = "redis"
	SinkKafka      = "kafka"
)

// Service hands one classified table to every configured sink.
// Nil ports are skipped, so a run with no sinks only records metrics.
type Service struct {
	rows      regime.Repository
	runs      regime.RunRepository
	cache     regime.Cache
	publisher regime.Publisher
	log       *logger.Logger
	now       func() time.Time
}

// Option configures the service
type Option func(*Service)

// WithRowRepository stores every classified row
func WithRowRepository(repo regime.Repository) Option {
	return func(s *Service) { s.rows = repo }
}

// WithRunRepository stores one record per run
func WithRunRepository(repo regime.RunRepository) Option {
	return func(s *Service) { s.runs = repo }
}

// WithCache keeps the latest snapshot per instrument
func WithCache(cache regime.Cache) Option {
	return func(s *Service) { s.cache = cache }
}

// WithPublisher emits smoothed regime transitions
func WithPublisher(publisher regime.Publisher) Option {
	return func(s *Service) { s.publisher = publisher }
}

// WithClock overrides the run timestamp source
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService creates a new sink service
func NewService(log *logger.Logger, opts ...Option) *Service {
	if log == nil {
		log = logger.Get()
	}

	s := &Service{
		log: log.With("component", "regime_sink"),
		now: time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Sinks lists the configured sink names
func (s *Service) Sinks() []string {
	var names []string
	if s.rows != nil {
		names = append(names, SinkClickHouse)
	}
	if s.runs != nil {
		names = append(names, SinkPostgres)
	}
	if s.cache != nil {
		names = append(names, SinkRedis)
	}
	if s.publisher != nil {
		names = append(names, SinkKafka)
	}
	return names
}

// Store writes the table to every configured sink. A failing sink does not
// stop the others; all failures are returned together. The run describing
// the table is returned even when some sink failed.
func (s *Service) Store(
	ctx context.Context,
	symbol, timeframe string,
	table *regime.Table,
	summary regime.Summary,
) (*regime.Run, error) {
	run := regime.NewRun(symbol, timeframe, table, summary, s.now())
	metrics.RecordTable(symbol, timeframe, table, summary)

	var errs errors.MultiError

	if s.rows != nil && table.Len() > 0 {
		errs.Add(s.write(SinkClickHouse, run, func() error {
			return s.rows.StoreRows(ctx, run, table)
		}))
	}

	if s.runs != nil {
		errs.Add(s.write(SinkPostgres, run, func() error {
			return s.runs.StoreRun(ctx, run)
		}))
	}

	if last, ok := table.Last(); ok && s.cache != nil {
		errs.Add(s.write(SinkRedis, run, func() error {
			return s.cache.SetLatest(ctx, regime.NewSnapshot(run, last))
		}))
	}

	if events := regime.NewChangeEvents(run, table); len(events) > 0 && s.publisher != nil {
		errs.Add(s.write(SinkKafka, run, func() error {
			return s.publisher.PublishChanges(ctx, events)
		}))
	}

	s.log.Infow("Regime run stored",
		"run_id", run.ID,
		"symbol", symbol,
		"timeframe", timeframe,
		"bars", run.Bars,
		"transitions", run.Transitions,
		"failed_sinks", len(errs.Errors),
	)

	return run, errs.ToError()
}

func (s *Service) write(sink string, run *regime.Run, fn func() error) error {
	err := fn()
	metrics.RecordSinkWrite(sink, err)
	if err != nil {
		s.log.Errorw("Sink write failed",
			"sink", sink,
			"run_id", run.ID,
			"symbol", run.Symbol,
			"error", err,
		)
		return errors.Wrapf(err, "%s sink", sink)
	}
	return nil
}
