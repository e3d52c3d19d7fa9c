package handlers

import (
	"context"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
)

// readyTimeout bounds the whole readiness probe. Qdrant and the database
// are probed in parallel so one slow dependency does not hide the others.
const readyTimeout = 5 * time.Second

// PingCheck is one dependency probed by /ready: the database, the session
// store, Qdrant or the query cache.
type PingCheck struct {
	name string
	ping func(ctx context.Context) error
}

func NewPingCheck(name string, ping func(ctx context.Context) error) PingCheck {
	return PingCheck{name: name, ping: ping}
}

// HealthStatus is the body of /health and /ready.
type HealthStatus struct {
	Status    string                 `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Checks    map[string]CheckResult `json:"checks,omitempty"`
}

// CheckResult is "pass" or "fail" with the probe latency.
type CheckResult struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Latency string `json:"latency,omitempty"`
}

// HealthHandler serves the probes used by the container orchestrator.
type HealthHandler struct {
	logger *zap.Logger

	mu     sync.RWMutex
	checks []PingCheck
}

func NewHealthHandler(logger *zap.Logger) *HealthHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HealthHandler{logger: logger}
}

func (h *HealthHandler) RegisterCheck(check PingCheck) {
	h.mu.Lock()
	h.checks = append(h.checks, check)
	h.mu.Unlock()
}

// HandleHealth answers as long as the process serves HTTP.
// @Summary Liveness probe
// @Tags health
// @Produce json
// @Success 200 {object} HealthStatus
// @Router /health [get]
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, HealthStatus{Status: "healthy", Timestamp: time.Now()})
}

// HandleReady answers 503 unless every dependency responds.
// @Summary Readiness probe
// @Tags health
// @Produce json
// @Success 200 {object} HealthStatus
// @Failure 503 {object} HealthStatus
// @Router /ready [get]
func (h *HealthHandler) HandleReady(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	checks := append([]PingCheck(nil), h.checks...)
	h.mu.RUnlock()

	ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
	defer cancel()

	results := make([]CheckResult, len(checks))
	var wg sync.WaitGroup
	for i, c := range checks {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = h.probe(ctx, c)
		}()
	}
	wg.Wait()

	status := HealthStatus{Status: "healthy", Timestamp: time.Now(), Checks: make(map[string]CheckResult, len(checks))}
	code := http.StatusOK
	for i, c := range checks {
		status.Checks[c.name] = results[i]
		if results[i].Status != "pass" {
			status.Status = "unhealthy"
			code = http.StatusServiceUnavailable
		}
	}
	WriteJSON(w, code, status)
}

func (h *HealthHandler) probe(ctx context.Context, c PingCheck) CheckResult {
	start := time.Now()
	err := c.ping(ctx)
	took := time.Since(start)
	if err != nil {
		h.logger.Warn("readiness check failed", zap.String("check", c.name), zap.Duration("latency", took), zap.Error(err))
		return CheckResult{Status: "fail", Message: err.Error(), Latency: took.String()}
	}
	return CheckResult{Status: "pass", Latency: took.String()}
}

// HandleVersion reports the build stamped in by the linker.
// @Summary Build version
// @Tags health
// @Produce json
// @Success 200 {object} map[string]string
// @Router /version [get]
func (h *HealthHandler) HandleVersion(version, buildTime, gitCommit string) http.HandlerFunc {
	info := map[string]string{"version": version, "build_time": buildTime, "git_commit": gitCommit}
	return func(w http.ResponseWriter, r *http.Request) {
		WriteSuccess(w, info)
	}
}
