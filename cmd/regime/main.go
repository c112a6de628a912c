package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"
	"unicode/utf8"

	"marketregime/internal/adapters/barfile"
	"marketregime/internal/adapters/clickhouse"
	"marketregime/internal/adapters/config"
	"marketregime/internal/adapters/errors/noop"
	"marketregime/internal/adapters/errors/sentry"
	"marketregime/internal/adapters/kafka"
	"marketregime/internal/adapters/postgres"
	"marketregime/internal/adapters/retry"
	redisadapter "marketregime/internal/adapters/redis"
	"marketregime/internal/api"
	"marketregime/internal/api/health"
	"marketregime/internal/domain/market_data"
	"marketregime/internal/domain/regime"
	"marketregime/internal/events"
	"marketregime/internal/metrics"
	chrepo "marketregime/internal/repository/clickhouse"
	pgrepo "marketregime/internal/repository/postgres"
	redisrepo "marketregime/internal/repository/redis"
	"marketregime/internal/services/regime_classifier"
	"marketregime/internal/services/regime_sink"
	"marketregime/internal/workers"
	"marketregime/internal/workers/analysis"
	"marketregime/pkg/errors"
	"marketregime/pkg/logger"
)

// version is set at build time with -ldflags "-X main.version=..."
var version = "dev"

// cliFlags override the environment configuration for one invocation
type cliFlags struct {
	source    string
	dir       string
	file      string
	symbols   string
	timeframe string
	outDir    string
	interval  time.Duration
	watch     bool
	quiet     bool
}

func parseFlags() cliFlags {
	var f cliFlags
	flag.StringVar(&f.source, "source", "", "Bar source: csv or clickhouse (default INPUT_SOURCE)")
	flag.StringVar(&f.dir, "dir", "", "Directory with {symbol}_{timeframe}.csv files (default INPUT_DIR)")
	flag.StringVar(&f.file, "file", "", "Single CSV file to classify; the symbol defaults to the file name")
	flag.StringVar(&f.symbols, "symbols", "", "Comma-separated symbols (default INPUT_SYMBOLS)")
	flag.StringVar(&f.timeframe, "timeframe", "", "Timeframe (default INPUT_TIMEFRAME)")
	flag.StringVar(&f.outDir, "out", "", "Write the classified table of every instrument as CSV into this directory")
	flag.DurationVar(&f.interval, "interval", 0, "Re-run every interval until interrupted (0 runs once)")
	flag.BoolVar(&f.watch, "watch", false, "Print regime changes from Kafka instead of classifying")
	flag.BoolVar(&f.quiet, "quiet", false, "Do not print the summary report")
	flag.Parse()
	return f
}

func main() {
	os.Exit(run())
}

func run() int {
	flags := parseFlags()

	// Load configuration
	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		return 2
	}
	applyFlags(cfg, flags)

	// Initialize logger
	if err := initLogger(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "failed to init logger: %v\n", err)
		return 2
	}
	defer logger.Sync()

	log := logger.Get()
	log.Infof("Starting %s %s in %s mode", cfg.App.Name, version, cfg.App.Env)

	// Initialize error tracker
	errorTracker := initErrorTracker(cfg, log)
	logger.SetErrorTracker(errorTracker)
	defer flushErrorTracker(errorTracker, log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if flags.watch {
		return watchChanges(ctx, cfg, log)
	}

	b, err := initBackends(ctx, cfg, log)
	if err != nil {
		log.ErrorWithContext(ctx, err, map[string]string{"stage": "init"})
		return 1
	}
	defer b.Close(log)

	source, err := initBarSource(cfg, flags, b)
	if err != nil {
		log.Errorw("Failed to initialize bar source", "error", err)
		return 2
	}

	classifier, err := regime_classifier.New(cfg.Classifier.Params(), log)
	if err != nil {
		log.Errorw("Invalid classifier parameters", "error", err)
		return 2
	}

	sink := initSink(cfg, b, log)

	instruments := buildInstruments(cfg, flags)
	detector := analysis.NewRegimeDetector(source, classifier, sink, analysis.RegimeDetectorConfig{
		Exchange:    cfg.Input.Exchange,
		Instruments: instruments,
		Lookback:    cfg.Input.Lookback,
		Limit:       cfg.Input.Limit,
		Concurrency: cfg.Workers.Concurrency,
		Timeout:     cfg.Workers.Timeout,
		Interval:    flags.interval,
		Enabled:     true,
	})

	out := &output{dir: flags.outDir, quiet: flags.quiet, log: log}
	detector.OnResult(func(res analysis.Result) {
		if res.Err != nil {
			tags := map[string]string{"symbol": res.Symbol, "timeframe": res.Timeframe}
			_ = errorTracker.CaptureError(sentry.WithSymbol(ctx, res.Symbol), res.Err, tags)
		}
		out.write(res)
	})

	if cfg.Metrics.Enabled {
		if err := metrics.RegisterBackendCollector(metrics.NewBackendCollector(log, b.healthChecks())); err != nil {
			log.Warnw("Failed to register backend collector", "error", err)
		}
	}

	worker := &reportingWorker{RegimeDetector: detector, after: func() { writeMetrics(cfg, log) }}

	log.Infow("Classifying instruments",
		"instruments", len(instruments),
		"source", cfg.Input.Source,
		"sinks", sink.Sinks(),
		"concurrency", cfg.Workers.Concurrency,
	)

	if flags.interval <= 0 {
		if err := worker.Run(ctx); err != nil {
			log.Errorw("Regime run finished with errors", "error", err)
			return 1
		}
		return 0
	}

	scheduler := workers.NewScheduler()
	scheduler.RegisterWorker(worker)
	if err := scheduler.Start(ctx); err != nil {
		log.Errorw("Failed to start scheduler", "error", err)
		return 1
	}

	var server *api.Server
	if cfg.Metrics.Listen != "" {
		handler := health.New(log, b.healthChecks(), []health.WorkerReporter{detector}, cfg.App.Name, version)
		server = api.NewServer(api.ServerConfig{
			Addr:        cfg.Metrics.Listen,
			ServiceName: cfg.App.Name,
			Version:     version,
		}, handler, log)
		go func() {
			if err := server.Start(); err != nil {
				log.Errorw("HTTP server failed", "error", err)
			}
		}()
	}

	<-ctx.Done()
	log.Info("Shutting down...")

	if server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Warnw("HTTP server shutdown failed", "error", err)
		}
		cancel()
	}

	if err := scheduler.Stop(); err != nil {
		log.Warnw("Scheduler stopped uncleanly", "error", err)
	}
	log.Info("Shutdown complete")
	return 0
}

// loadConfig loads application configuration from environment
func loadConfig() (*config.Config, error) {
	return config.Load()
}

// applyFlags lets command line flags override the environment
func applyFlags(cfg *config.Config, f cliFlags) {
	if f.source != "" {
		cfg.Input.Source = f.source
	}
	if f.dir != "" {
		cfg.Input.Dir = f.dir
	}
	if f.file != "" {
		cfg.Input.Source = "csv"
	}
	if f.symbols != "" {
		cfg.Input.Symbols = splitList(f.symbols)
	}
	if f.timeframe != "" {
		cfg.Input.Timeframe = f.timeframe
	}
}

// initLogger initializes structured logging
func initLogger(cfg *config.Config) error {
	return logger.Init(cfg.App.LogLevel, cfg.App.Env)
}

// initErrorTracker initializes error tracking (Sentry or no-op)
func initErrorTracker(cfg *config.Config, log *logger.Logger) errors.Tracker {
	if !cfg.ErrorTracking.Enabled || cfg.ErrorTracking.SentryDSN == "" {
		log.Debug("Error tracking disabled")
		return noop.New()
	}

	tracker, err := sentry.New(cfg.ErrorTracking.SentryDSN, cfg.ErrorTracking.Environment, version)
	if err != nil {
		log.Warnf("Failed to initialize Sentry: %v", err)
		return noop.New()
	}

	log.Info("Error tracking initialized (Sentry)")
	return tracker
}

func flushErrorTracker(tracker errors.Tracker, log *logger.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := tracker.Flush(ctx); err != nil {
		log.Warnf("Failed to flush error tracker: %v", err)
	}
}

// backends holds the connections of every enabled storage group
type backends struct {
	clickhouse *clickhouse.Client
	postgres   *postgres.Client
	redis      *redisadapter.Client
	producer   *kafka.Producer
}

// initBackends connects to every enabled backend, retrying transient
// failures. ClickHouse is also connected when it is the bar source.
func initBackends(ctx context.Context, cfg *config.Config, log *logger.Logger) (*backends, error) {
	b := &backends{}
	retrier := retry.New(retry.Config{
		MaxRetries:   cfg.Workers.ConnectRetries,
		InitialDelay: 500 * time.Millisecond,
		MaxDelay:     5 * time.Second,
	})

	connect := func(name string, fn func(ctx context.Context) error) error {
		err := retrier.Do(ctx, func(ctx context.Context) error {
			attemptCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
			defer cancel()
			if err := fn(attemptCtx); err != nil {
				log.Warnw("Backend connection failed", "backend", name, "error", err)
				return err
			}
			return nil
		})
		if err != nil {
			b.Close(log)
			return errors.Wrap(err, name)
		}
		return nil
	}

	if cfg.ClickHouse.Enabled || cfg.Input.Source == "clickhouse" {
		err := connect("clickhouse", func(ctx context.Context) (err error) {
			b.clickhouse, err = clickhouse.NewClient(ctx, cfg.ClickHouse)
			return err
		})
		if err != nil {
			return nil, err
		}
		log.Infow("Connected to ClickHouse", "host", cfg.ClickHouse.Host, "database", cfg.ClickHouse.Database)
	}

	if cfg.Postgres.Enabled {
		err := connect("postgres", func(ctx context.Context) (err error) {
			b.postgres, err = postgres.NewClient(ctx, cfg.Postgres)
			return err
		})
		if err != nil {
			return nil, err
		}
		log.Infow("Connected to PostgreSQL", "host", cfg.Postgres.Host, "database", cfg.Postgres.Database)
	}

	if cfg.Redis.Enabled {
		err := connect("redis", func(ctx context.Context) (err error) {
			b.redis, err = redisadapter.NewClient(ctx, cfg.Redis)
			return err
		})
		if err != nil {
			return nil, err
		}
		log.Infow("Connected to Redis", "addr", cfg.Redis.Addr())
	}

	if cfg.Kafka.Enabled {
		b.producer = kafka.NewProducer(kafka.ProducerConfig{Brokers: cfg.Kafka.Brokers})
	}

	return b, nil
}

// Close releases every open connection
func (b *backends) Close(log *logger.Logger) {
	closers := map[string]func() error{}
	if b.clickhouse != nil {
		closers["clickhouse"] = b.clickhouse.Close
	}
	if b.postgres != nil {
		closers["postgres"] = b.postgres.Close
	}
	if b.redis != nil {
		closers["redis"] = b.redis.Close
	}
	if b.producer != nil {
		closers["kafka"] = b.producer.Close
	}

	for name, closeFn := range closers {
		if err := closeFn(); err != nil {
			log.Warnw("Failed to close backend", "backend", name, "error", err)
		}
	}
}

func (b *backends) healthChecks() map[string]metrics.HealthCheck {
	checks := map[string]metrics.HealthCheck{}
	if b.clickhouse != nil {
		checks["clickhouse"] = b.clickhouse.Health
	}
	if b.postgres != nil {
		checks["postgres"] = b.postgres.Health
	}
	if b.redis != nil {
		checks["redis"] = b.redis.Health
	}
	return checks
}

// initBarSource selects CSV files or the ClickHouse ohlcv table
func initBarSource(cfg *config.Config, f cliFlags, b *backends) (market_data.Repository, error) {
	switch cfg.Input.Source {
	case "csv":
		opts, err := csvOptions(cfg.Input)
		if err != nil {
			return nil, err
		}
		if f.file != "" {
			return barfile.NewFileRepository(f.file, opts), nil
		}
		return barfile.NewRepository(cfg.Input.Dir, opts), nil
	case "clickhouse":
		return chrepo.NewMarketDataRepository(b.clickhouse.Conn()), nil
	default:
		return nil, errors.Wrapf(errors.ErrInvalidInput, "unknown input source %q", cfg.Input.Source)
	}
}

func csvOptions(in config.InputConfig) (barfile.Options, error) {
	opts := barfile.Options{
		DecimalComma: in.DecimalComma,
		TimeLayout:   in.TimeLayout,
	}
	if in.Delimiter != "" {
		if utf8.RuneCountInString(in.Delimiter) != 1 {
			return opts, errors.Wrapf(errors.ErrInvalidInput, "delimiter must be one character, got %q", in.Delimiter)
		}
		opts.Delimiter, _ = utf8.DecodeRuneInString(in.Delimiter)
	}
	return opts, nil
}

// initSink wires every enabled storage group into the sink service
func initSink(cfg *config.Config, b *backends, log *logger.Logger) *regime_sink.Service {
	var opts []regime_sink.Option

	if b.clickhouse != nil && cfg.ClickHouse.Enabled {
		opts = append(opts, regime_sink.WithRowRepository(chrepo.NewRegimeRepository(b.clickhouse.Conn())))
	}
	if b.postgres != nil {
		opts = append(opts, regime_sink.WithRunRepository(pgrepo.NewRunRepository(b.postgres.DB())))
	}
	if b.redis != nil {
		opts = append(opts, regime_sink.WithCache(redisrepo.NewSnapshotRepository(b.redis.Client(), cfg.Redis.TTL)))
	}
	if b.producer != nil {
		opts = append(opts, regime_sink.WithPublisher(events.NewRegimePublisher(b.producer, cfg.Kafka.Topic, log)))
	}

	return regime_sink.NewService(log, opts...)
}

func buildInstruments(cfg *config.Config, f cliFlags) []analysis.Instrument {
	symbols := cfg.Input.Symbols
	if len(symbols) == 0 && f.file != "" {
		base := filepath.Base(f.file)
		symbols = []string{strings.TrimSuffix(base, filepath.Ext(base))}
	}

	instruments := make([]analysis.Instrument, 0, len(symbols))
	for _, s := range symbols {
		instruments = append(instruments, analysis.Instrument{Symbol: s, Timeframe: cfg.Input.Timeframe})
	}
	return instruments
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// reportingWorker runs a hook after every detector iteration
type reportingWorker struct {
	*analysis.RegimeDetector
	after func()
}

func (w *reportingWorker) Run(ctx context.Context) error {
	defer w.after()
	return w.RegimeDetector.Run(ctx)
}

func writeMetrics(cfg *config.Config, log *logger.Logger) {
	if !cfg.Metrics.Enabled {
		return
	}
	if err := metrics.WriteTextfile(cfg.Metrics.Textfile); err != nil {
		log.Warnw("Failed to write metrics textfile", "path", cfg.Metrics.Textfile, "error", err)
	}
}

// watchChanges prints regime changes published by other runs until interrupted
func watchChanges(ctx context.Context, cfg *config.Config, log *logger.Logger) int {
	consumer := kafka.NewConsumer(kafka.ConsumerConfig{
		Brokers: cfg.Kafka.Brokers,
		GroupID: cfg.App.Name + "-watch",
		Topic:   cfg.Kafka.Topic,
	})
	defer consumer.Close()

	err := consumer.ConsumeChanges(ctx, func(_ context.Context, event regime.ChangeEvent) error {
		_, err := fmt.Fprintln(os.Stdout, formatChange(event))
		return err
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		log.Errorw("Watch stopped", "error", err)
		return 1
	}
	return 0
}

func formatChange(e regime.ChangeEvent) string {
	price := "n/a"
	if e.Close != nil {
		price = fmt.Sprintf("%g", *e.Close)
	}
	return fmt.Sprintf("%s %s %s %s -> %s (vol %s, close %s)",
		e.Timestamp.Format(time.RFC3339), e.Symbol, e.Timeframe, e.From, e.To, e.VolBucket, price)
}
