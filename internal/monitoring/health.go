package monitoring

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/daracheol/lingotutor/pkg/health"
	"github.com/daracheol/lingotutor/pkg/logger"
)

// Health status constants
const (
	statusHealthy   = "healthy"
	statusUnhealthy = "unhealthy"
	statusReady     = "ready"
	statusNotReady  = "not_ready"
)

// HealthMonitor manages health checks and the monitoring endpoints.
type HealthMonitor struct {
	checker   *health.Checker
	stats     *Stats
	log       logger.Logger
	version   string
	startTime time.Time
}

// ConnectorHealthCheck represents a connector that can report readiness.
type ConnectorHealthCheck interface {
	Ready() error
}

// Config holds configuration for the health monitor.
type Config struct {
	Logger            logger.Logger
	Stats             *Stats
	Version           string
	TelegramConnector ConnectorHealthCheck
	Timeout           time.Duration
	FailureThreshold  int
}

// NewHealthMonitor creates a health monitor with configured checks.
func NewHealthMonitor(cfg Config) *HealthMonitor {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	failureThreshold := cfg.FailureThreshold
	if failureThreshold == 0 {
		failureThreshold = 3
	}

	checker := health.New(
		health.WithLogger(cfg.Logger),
		health.WithTimeout(timeout),
		health.WithFailureThreshold(failureThreshold),
	)

	// Process is alive if the check can run at all.
	checker.AddLivenessCheck(health.NewCheckFunc("process", func(ctx context.Context) error {
		return nil
	}))

	if cfg.TelegramConnector != nil {
		checker.AddReadinessCheck(health.NewCheckFunc("telegram_connector", func(ctx context.Context) error {
			return cfg.TelegramConnector.Ready()
		}))
	}

	return &HealthMonitor{
		checker:   checker,
		stats:     cfg.Stats,
		log:       cfg.Logger,
		version:   cfg.Version,
		startTime: time.Now(),
	}
}

// LivenessHandler serves GET /health/live for liveness probes.
func (hm *HealthMonitor) LivenessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status, err := hm.checker.CheckLiveness(r.Context())

		response := map[string]interface{}{
			"status":    statusHealthy,
			"timestamp": time.Now().UTC().Format(time.RFC3339),
			"uptime":    time.Since(hm.startTime).String(),
			"checks":    status.Checks,
		}

		w.Header().Set("Content-Type", "application/json")

		if err != nil {
			response["status"] = statusUnhealthy
			response["error"] = err.Error()
			w.WriteHeader(http.StatusServiceUnavailable)
			hm.log.Error("Liveness check failed", logger.ErrorField(err))
		} else {
			w.WriteHeader(http.StatusOK)
		}

		_ = json.NewEncoder(w).Encode(response)
	}
}

// ReadinessHandler serves GET /health/ready for readiness probes.
func (hm *HealthMonitor) ReadinessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status, err := hm.checker.CheckReadiness(r.Context())

		response := map[string]interface{}{
			"status":    statusReady,
			"timestamp": time.Now().UTC().Format(time.RFC3339),
			"checks":    status.Checks,
		}

		w.Header().Set("Content-Type", "application/json")

		if err != nil {
			response["status"] = statusNotReady
			response["error"] = err.Error()
			w.WriteHeader(http.StatusServiceUnavailable)
			hm.log.Error("Readiness check failed", logger.ErrorField(err))
		} else {
			w.WriteHeader(http.StatusOK)
		}

		_ = json.NewEncoder(w).Encode(response)
	}
}

// HealthHandler serves GET /health with combined liveness and readiness
// plus the activity counters.
func (hm *HealthMonitor) HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		livenessStatus, livenessErr := hm.checker.CheckLiveness(r.Context())
		readinessStatus, readinessErr := hm.checker.CheckReadiness(r.Context())

		response := map[string]interface{}{
			"status":    statusHealthy,
			"timestamp": time.Now().UTC().Format(time.RFC3339),
			"uptime":    time.Since(hm.startTime).String(),
			"version":   hm.version,
			"liveness": map[string]interface{}{
				"status": statusHealthy,
				"checks": livenessStatus.Checks,
			},
			"readiness": map[string]interface{}{
				"status": statusReady,
				"checks": readinessStatus.Checks,
			},
		}
		if hm.stats != nil {
			response["stats"] = hm.stats.Snapshot()
		}

		w.Header().Set("Content-Type", "application/json")

		overallHealthy := true
		if livenessErr != nil {
			response["liveness"].(map[string]interface{})["status"] = statusUnhealthy
			response["liveness"].(map[string]interface{})["error"] = livenessErr.Error()
			overallHealthy = false
		}
		if readinessErr != nil {
			response["readiness"].(map[string]interface{})["status"] = statusNotReady
			response["readiness"].(map[string]interface{})["error"] = readinessErr.Error()
			overallHealthy = false
		}

		if !overallHealthy {
			response["status"] = statusUnhealthy
			w.WriteHeader(http.StatusServiceUnavailable)
		} else {
			w.WriteHeader(http.StatusOK)
		}

		_ = json.NewEncoder(w).Encode(response)
	}
}

// StatsHandler serves GET /stats with the raw activity counters.
func (hm *HealthMonitor) StatsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if hm.stats == nil {
			w.WriteHeader(http.StatusNotFound)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": "stats not enabled"})
			return
		}
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(hm.stats.Snapshot())
	}
}

// StartPeriodicLogging logs the activity counters at the given
// interval until the context is cancelled.
func (hm *HealthMonitor) StartPeriodicLogging(ctx context.Context, interval time.Duration) {
	if hm.stats == nil || interval <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				snap := hm.stats.Snapshot()
				hm.log.Info("Service health",
					logger.Int64Field("active_users", snap.ActiveUsers),
					logger.Int64Field("total_messages", snap.TotalMessages),
					logger.Int64Field("failed_turns", snap.FailedTurns),
					logger.Int64Field("files_stored", snap.FilesStored),
					logger.StringField("uptime", snap.Uptime))
			}
		}
	}()
}
