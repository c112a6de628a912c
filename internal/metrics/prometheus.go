package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"marketregime/internal/domain/regime"
)

// Registry holds every metric of the process. It is written to a node
// exporter text file at the end of a run instead of being scraped.
var Registry = prometheus.NewRegistry()

var (
	// Run metrics
	Runs = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "marketregime_runs_total",
			Help: "Total number of classification runs",
		},
		[]string{"symbol", "timeframe", "status"}, // status: success|error
	)

	StageDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "marketregime_stage_duration_seconds",
			Help:    "Duration of one run stage in seconds",
			Buckets: []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 5, 30},
		},
		[]string{"stage"}, // stage: load|classify|store
	)

	LastRun = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "marketregime_last_run_timestamp",
			Help: "Unix timestamp of the last successful run",
		},
		[]string{"symbol", "timeframe"},
	)

	// Regime metrics
	RegimeBars = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "marketregime_regime_bars",
			Help: "Bars per smoothed regime in the last run",
		},
		[]string{"symbol", "timeframe", "regime"},
	)

	CurrentRegime = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "marketregime_current_regime",
			Help: "Regime code of the last bar (1=Bull, 0=Sideways, -1=Bear)",
		},
		[]string{"symbol", "timeframe"},
	)

	Transitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "marketregime_transitions_total",
			Help: "Smoothed regime transitions seen",
		},
		[]string{"symbol", "timeframe", "from", "to"},
	)

	// Sink metrics
	SinkWrites = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "marketregime_sink_writes_total",
			Help: "Writes to result sinks",
		},
		[]string{"sink", "status"}, // sink: clickhouse|postgres|redis|kafka
	)
)

func init() {
	Registry.MustRegister(
		Runs,
		StageDuration,
		LastRun,
		RegimeBars,
		CurrentRegime,
		Transitions,
		SinkWrites,
	)
}

// WriteTextfile writes the registry in the text exposition format
func WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, Registry)
}

// RecordRun records the outcome of one instrument run
func RecordRun(symbol, timeframe string, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}

	Runs.WithLabelValues(symbol, timeframe, status).Inc()
	if err == nil {
		LastRun.WithLabelValues(symbol, timeframe).SetToCurrentTime()
	}
}

// RecordStage records the duration of one stage
func RecordStage(stage string, duration time.Duration) {
	StageDuration.WithLabelValues(stage).Observe(duration.Seconds())
}

// RecordTable records the regime distribution and transitions of a table
func RecordTable(symbol, timeframe string, table *regime.Table, summary regime.Summary) {
	for _, l := range regime.Labels() {
		RegimeBars.WithLabelValues(symbol, timeframe, l.String()).Set(float64(summary.Counts[l]))
	}

	if last, ok := table.Last(); ok {
		CurrentRegime.WithLabelValues(symbol, timeframe).Set(float64(last.RegimeCode))
	}

	for _, tr := range table.Transitions() {
		Transitions.WithLabelValues(symbol, timeframe, tr.From.String(), tr.To.String()).Inc()
	}
}

// RecordSinkWrite records one write to a result sink
func RecordSinkWrite(sink string, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}

	SinkWrites.WithLabelValues(sink, status).Inc()
}
