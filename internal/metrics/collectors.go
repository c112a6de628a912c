package metrics

import (
	"context"
	"sort"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"marketregime/pkg/logger"
)

// HealthCheck pings one backend
type HealthCheck func(ctx context.Context) error

// BackendCollector reports whether each configured backend answers a ping at
// collection time
type BackendCollector struct {
	log     *logger.Logger
	checks  map[string]HealthCheck
	timeout time.Duration

	up *prometheus.Desc
}

// NewBackendCollector creates a collector over named health checks
func NewBackendCollector(log *logger.Logger, checks map[string]HealthCheck) *BackendCollector {
	return &BackendCollector{
		log:     log,
		checks:  checks,
		timeout: 5 * time.Second,

		up: prometheus.NewDesc(
			"marketregime_backend_up",
			"Whether the backend answered a ping (1) or not (0)",
			[]string{"backend"}, nil,
		),
	}
}

// Describe implements prometheus.Collector
func (c *BackendCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.up
}

// Collect implements prometheus.Collector
func (c *BackendCollector) Collect(ch chan<- prometheus.Metric) {
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	names := make([]string, 0, len(c.checks))
	for name := range c.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		value := 1.0
		if err := c.checks[name](ctx); err != nil {
			c.log.Warnw("Backend health check failed", "backend", name, "error", err)
			value = 0
		}

		ch <- prometheus.MustNewConstMetric(
			c.up,
			prometheus.GaugeValue,
			value,
			name,
		)
	}
}

// RegisterBackendCollector registers the collector with Registry
func RegisterBackendCollector(collector *BackendCollector) error {
	return Registry.Register(collector)
}
