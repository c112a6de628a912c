package analysis

import (
	"context"
	"sync"
	"time"

	"marketregime/internal/domain/market_data"
	"marketregime/internal/domain/regime"
	"marketregime/internal/metrics"
	"marketregime/internal/services/regime_classifier"
	"marketregime/internal/services/regime_sink"
	"marketregime/internal/workers"
	"marketregime/pkg/errors"
)

// Instrument is one symbol/timeframe pair to classify
type Instrument struct {
	Symbol    string
	Timeframe string
}

// Result is the outcome of classifying one instrument. Table is set whenever
// classification succeeded, even if storing it failed.
type Result struct {
	Instrument
	Table   *regime.Table
	Summary regime.Summary
	Run     *regime.Run
	Err     error
}

// RegimeDetectorConfig configures a RegimeDetector
type RegimeDetectorConfig struct {
	Exchange    string
	Instruments []Instrument
	Lookback    time.Duration // 0 loads the full history
	Limit       int           // 0 means no limit; otherwise keeps the latest bars
	Concurrency int
	Timeout     time.Duration // per instrument
	Interval    time.Duration
	Enabled     bool
}

// RegimeDetector loads, classifies and stores every configured instrument.
// Each instrument gets a fresh classification call, so instruments run
// concurrently without coordination.
type RegimeDetector struct {
	*workers.BaseWorker
	mdRepo     market_data.Repository
	classifier *regime_classifier.Classifier
	sink       *regime_sink.Service
	cfg        RegimeDetectorConfig
	onResult   func(Result)
	now        func() time.Time
}

// NewRegimeDetector creates a new regime detector worker
func NewRegimeDetector(
	mdRepo market_data.Repository,
	classifier *regime_classifier.Classifier,
	sink *regime_sink.Service,
	cfg RegimeDetectorConfig,
) *RegimeDetector {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	return &RegimeDetector{
		BaseWorker: workers.NewBaseWorker("regime_detector", cfg.Interval, cfg.Enabled),
		mdRepo:     mdRepo,
		classifier: classifier,
		sink:       sink,
		cfg:        cfg,
		now:        time.Now,
	}
}

// OnResult registers a callback invoked from Run for every result, in
// instrument order
func (rd *RegimeDetector) OnResult(fn func(Result)) {
	rd.onResult = fn
}

// Run executes one iteration of regime detection
func (rd *RegimeDetector) Run(ctx context.Context) error {
	start := time.Now()

	results := rd.DetectAll(ctx)

	var errs errors.MultiError
	for _, res := range results {
		if rd.onResult != nil {
			rd.onResult(res)
		}
		if res.Err != nil {
			errs.Add(errors.Wrapf(res.Err, "%s %s", res.Symbol, res.Timeframe))
		}
	}

	err := errs.ToError()
	rd.Record(err, time.Since(start))
	return err
}

// DetectAll classifies every instrument with at most Concurrency in flight and
// returns the results in instrument order
func (rd *RegimeDetector) DetectAll(ctx context.Context) []Result {
	if len(rd.cfg.Instruments) == 0 {
		rd.Log().Warn("No instruments configured for regime detection")
		return nil
	}

	results := make([]Result, len(rd.cfg.Instruments))
	sem := make(chan struct{}, rd.cfg.Concurrency)
	var wg sync.WaitGroup

	for i, inst := range rd.cfg.Instruments {
		select {
		case <-ctx.Done():
			results[i] = Result{Instrument: inst, Err: ctx.Err()}
			continue
		case sem <- struct{}{}:
		}

		wg.Add(1)
		go func(i int, inst Instrument) {
			defer wg.Done()
			defer func() { <-sem }()
			results[i] = rd.Detect(ctx, inst)
		}(i, inst)
	}

	wg.Wait()
	return results
}

// Detect runs load, classify and store for one instrument
func (rd *RegimeDetector) Detect(ctx context.Context, inst Instrument) (res Result) {
	res.Instrument = inst
	defer func() {
		metrics.RecordRun(inst.Symbol, inst.Timeframe, res.Err)
	}()

	if rd.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, rd.cfg.Timeout)
		defer cancel()
	}

	stage := time.Now()
	bars, err := rd.mdRepo.GetBars(ctx, rd.query(inst))
	metrics.RecordStage("load", time.Since(stage))
	if err != nil {
		res.Err = errors.Wrap(err, "failed to load bars")
		rd.Log().Errorw("Failed to load bars", "symbol", inst.Symbol, "timeframe", inst.Timeframe, "error", err)
		return res
	}

	stage = time.Now()
	table, err := rd.classifier.Classify(bars)
	metrics.RecordStage("classify", time.Since(stage))
	if err != nil {
		res.Err = errors.Wrap(err, "failed to classify")
		rd.Log().Errorw("Failed to classify", "symbol", inst.Symbol, "timeframe", inst.Timeframe, "error", err)
		return res
	}
	res.Table = table
	res.Summary = regime_classifier.Summarize(table)

	if last, ok := table.Last(); ok {
		rd.Log().Infow("Regime detected",
			"symbol", inst.Symbol,
			"timeframe", inst.Timeframe,
			"bars", table.Len(),
			"regime", last.Regime,
			"vol_bucket", last.VolBucket,
		)
	}

	if rd.sink == nil {
		return res
	}

	stage = time.Now()
	res.Run, res.Err = rd.sink.Store(ctx, inst.Symbol, inst.Timeframe, table, res.Summary)
	metrics.RecordStage("store", time.Since(stage))
	if res.Err != nil {
		res.Err = errors.Wrap(res.Err, "failed to store regime")
	}
	return res
}

func (rd *RegimeDetector) query(inst Instrument) market_data.BarQuery {
	q := market_data.BarQuery{
		Exchange:  rd.cfg.Exchange,
		Symbol:    inst.Symbol,
		Timeframe: inst.Timeframe,
		Limit:     rd.cfg.Limit,
	}
	if rd.cfg.Lookback > 0 {
		q.StartTime = rd.now().Add(-rd.cfg.Lookback)
	}
	return q
}
