package health

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"time"

	"marketregime/internal/metrics"
	"marketregime/internal/workers"
	"marketregime/pkg/logger"
)

// WorkerReporter exposes the run counters of a scheduled worker
type WorkerReporter interface {
	Name() string
	Enabled() bool
	Health() workers.WorkerHealth
}

// Handler provides health check endpoints for the scheduled mode
type Handler struct {
	log         *logger.Logger
	checks      map[string]metrics.HealthCheck
	workers     []WorkerReporter
	startTime   time.Time
	serviceName string
	version     string
}

// New creates a new health check handler. checks maps a backend name to its
// ping; workers are reported with their run counters.
func New(
	log *logger.Logger,
	checks map[string]metrics.HealthCheck,
	ws []WorkerReporter,
	serviceName string,
	version string,
) *Handler {
	return &Handler{
		log:         log,
		checks:      checks,
		workers:     ws,
		startTime:   time.Now(),
		serviceName: serviceName,
		version:     version,
	}
}

// HealthStatus represents the overall health status
type HealthStatus struct {
	Status    string                     `json:"status"` // "healthy", "degraded", "unhealthy"
	Service   string                     `json:"service"`
	Version   string                     `json:"version"`
	Uptime    string                     `json:"uptime"`
	Timestamp string                     `json:"timestamp"`
	Checks    map[string]ComponentHealth `json:"checks"`
	Workers   []WorkerStatus             `json:"workers,omitempty"`
}

// ComponentHealth represents health of a single component
type ComponentHealth struct {
	Status       string `json:"status"`
	ResponseTime string `json:"response_time,omitempty"`
	Error        string `json:"error,omitempty"`
}

// WorkerStatus reports the counters of one scheduled worker
type WorkerStatus struct {
	Name       string `json:"name"`
	Enabled    bool   `json:"enabled"`
	RunCount   int64  `json:"run_count"`
	ErrorCount int64  `json:"error_count"`
	LastRun    string `json:"last_run,omitempty"`
	LastError  string `json:"last_error,omitempty"`
}

// HandleLiveness returns 200 OK if service is running
func (h *Handler) HandleLiveness(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "alive"})
}

// HandleReadiness returns 200 only when every backend answers
func (h *Handler) HandleReadiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := h.status(ctx)
	healthy, _ := countHealthy(status.Checks)

	statusCode := http.StatusOK
	if healthy < len(status.Checks) {
		status.Status = "unhealthy"
		statusCode = http.StatusServiceUnavailable
		h.log.Warnw("Readiness check failed", "checks", status.Checks)
	}

	writeJSON(w, statusCode, status)
}

// HandleHealth returns detailed health status. Some failing backends make the
// service degraded, all failing make it unhealthy.
func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	status := h.status(ctx)
	healthy, total := countHealthy(status.Checks)

	statusCode := http.StatusOK
	if total > 0 && healthy == 0 {
		status.Status = "unhealthy"
		statusCode = http.StatusServiceUnavailable
	} else if healthy < total {
		status.Status = "degraded"
	}

	writeJSON(w, statusCode, status)
}

func (h *Handler) status(ctx context.Context) HealthStatus {
	checks := make(map[string]ComponentHealth, len(h.checks))
	for name, check := range h.checks {
		checks[name] = h.checkComponent(ctx, name, check)
	}

	status := HealthStatus{
		Status:    "healthy",
		Service:   h.serviceName,
		Version:   h.version,
		Uptime:    time.Since(h.startTime).String(),
		Timestamp: time.Now().Format(time.RFC3339),
		Checks:    checks,
	}

	for _, w := range h.workers {
		wh := w.Health()
		ws := WorkerStatus{
			Name:       w.Name(),
			Enabled:    w.Enabled(),
			RunCount:   wh.RunCount,
			ErrorCount: wh.ErrorCount,
		}
		if wh.LastError != nil {
			ws.LastError = wh.LastError.Error()
		}
		if !wh.LastRun.IsZero() {
			ws.LastRun = wh.LastRun.Format(time.RFC3339)
		}
		status.Workers = append(status.Workers, ws)
	}
	sort.Slice(status.Workers, func(i, j int) bool { return status.Workers[i].Name < status.Workers[j].Name })

	return status
}

// checkComponent pings one backend
func (h *Handler) checkComponent(ctx context.Context, name string, check metrics.HealthCheck) ComponentHealth {
	start := time.Now()
	err := check(ctx)
	elapsed := time.Since(start)

	if err != nil {
		h.log.Errorw("Health check failed", "backend", name, "error", err, "elapsed", elapsed)
		return ComponentHealth{
			Status:       "unhealthy",
			ResponseTime: elapsed.String(),
			Error:        err.Error(),
		}
	}

	return ComponentHealth{
		Status:       "healthy",
		ResponseTime: elapsed.String(),
	}
}

func countHealthy(checks map[string]ComponentHealth) (healthy, total int) {
	for _, c := range checks {
		total++
		if c.Status == "healthy" {
			healthy++
		}
	}
	return healthy, total
}

func writeJSON(w http.ResponseWriter, statusCode int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(v)
}
