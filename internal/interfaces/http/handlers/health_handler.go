package handlers

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/propsage/compval/internal/infrastructure/monitoring/logging"
	"github.com/propsage/compval/pkg/types/common"
)

// HealthChecker probes one dependency. Check returns nil when the
// dependency can serve traffic.
type HealthChecker interface {
	Name() string
	Check(ctx context.Context) error
}

// CheckerFunc adapts a plain function into a HealthChecker.
type CheckerFunc struct {
	CheckerName string
	Fn          func(ctx context.Context) error
}

func (c CheckerFunc) Name() string                    { return c.CheckerName }
func (c CheckerFunc) Check(ctx context.Context) error { return c.Fn(ctx) }

// readinessTimeout bounds how long one readiness probe may spend across
// all dependency checks.
const readinessTimeout = 5 * time.Second

// HealthReporter receives the outcome of each dependency check, for the
// health gauge. Optional.
type HealthReporter func(component string, healthy bool)

// HealthHandler serves the liveness and readiness probes.
type HealthHandler struct {
	checkers []HealthChecker
	version  string
	startAt  time.Time
	report   HealthReporter
	logger   logging.Logger
}

func NewHealthHandler(version string, checkers []HealthChecker, report HealthReporter, logger logging.Logger) *HealthHandler {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &HealthHandler{
		checkers: checkers,
		version:  version,
		startAt:  time.Now(),
		report:   report,
		logger:   logger,
	}
}

// livenessBody is the /healthz payload.
type livenessBody struct {
	Status        common.HealthStatus `json:"status"`
	Version       string              `json:"version"`
	UptimeSeconds int64               `json:"uptime_seconds"`
}

// Liveness always reports healthy: the process is up and serving. A
// failing dependency is a readiness concern, not a liveness one.
func (h *HealthHandler) Liveness(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, livenessBody{
		Status:        common.HealthHealthy,
		Version:       h.version,
		UptimeSeconds: int64(time.Since(h.startAt).Seconds()),
	})
}

// componentResult is one dependency's readiness outcome.
type componentResult struct {
	Status    common.HealthStatus `json:"status"`
	LatencyMS int64               `json:"latency_ms"`
	Error     string              `json:"error,omitempty"`
}

type readinessBody struct {
	Status     common.HealthStatus        `json:"status"`
	Version    string                     `json:"version"`
	Components map[string]componentResult `json:"components"`
}

// Readiness probes every dependency concurrently and answers 503 when
// any of them is down.
func (h *HealthHandler) Readiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
	defer cancel()

	body := readinessBody{
		Status:     common.HealthHealthy,
		Version:    h.version,
		Components: make(map[string]componentResult, len(h.checkers)),
	}

	var mu sync.Mutex
	var wg sync.WaitGroup
	for _, checker := range h.checkers {
		wg.Add(1)
		go func(c HealthChecker) {
			defer wg.Done()
			start := time.Now()
			err := c.Check(ctx)
			result := componentResult{
				Status:    common.HealthHealthy,
				LatencyMS: time.Since(start).Milliseconds(),
			}
			if err != nil {
				result.Status = common.HealthUnhealthy
				result.Error = err.Error()
				h.logger.Warn("readiness check failed",
					logging.String("component", c.Name()), logging.Err(err))
			}
			if h.report != nil {
				h.report(c.Name(), err == nil)
			}
			mu.Lock()
			body.Components[c.Name()] = result
			if err != nil {
				body.Status = common.HealthUnhealthy
			}
			mu.Unlock()
		}(checker)
	}
	wg.Wait()

	status := http.StatusOK
	if body.Status != common.HealthHealthy {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, body)
}
