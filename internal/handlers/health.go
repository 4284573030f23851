package handlers

import (
	"net/http"
	"time"

	domain "github.com/machikado-app/api/internal/domain"
	"github.com/machikado-app/api/internal/services"
)

const (
	defaultHealthServiceName = "machikado-api"
	defaultHealthVersion     = "dev"

	// Liveness answers with this literal; readiness reuses the domain
	// health statuses instead.
	healthzStatusOK = "OK"
)

// HealthHandlers serves the unauthenticated liveness and readiness endpoints.
type HealthHandlers struct {
	system      services.SystemService
	build       services.BuildInfo
	serviceName string
	clock       func() time.Time
}

// HealthOption customises HealthHandlers construction.
type HealthOption func(*HealthHandlers)

// WithHealthSystemService wires the readiness probe through the system service.
func WithHealthSystemService(system services.SystemService) HealthOption {
	return func(h *HealthHandlers) {
		h.system = system
	}
}

// WithHealthBuildInfo sets the build metadata reported by /healthz.
func WithHealthBuildInfo(build services.BuildInfo) HealthOption {
	return func(h *HealthHandlers) {
		h.build = build
	}
}

// WithHealthServiceName overrides the service name reported by /healthz.
func WithHealthServiceName(name string) HealthOption {
	return func(h *HealthHandlers) {
		if name != "" {
			h.serviceName = name
		}
	}
}

// WithHealthClock overrides the time source, primarily for tests.
func WithHealthClock(clock func() time.Time) HealthOption {
	return func(h *HealthHandlers) {
		if clock != nil {
			h.clock = clock
		}
	}
}

// NewHealthHandlers constructs handlers for /healthz and /readyz.
func NewHealthHandlers(opts ...HealthOption) *HealthHandlers {
	h := &HealthHandlers{
		serviceName: defaultHealthServiceName,
		clock:       time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	if h.build.StartedAt.IsZero() {
		h.build.StartedAt = h.clock()
	}
	if h.build.Version == "" {
		h.build.Version = defaultHealthVersion
	}
	return h
}

// Healthz answers liveness probes without touching any dependency.
func (h *HealthHandlers) Healthz(w http.ResponseWriter, r *http.Request) {
	now := h.clock().UTC()
	payload := map[string]any{
		"status":    healthzStatusOK,
		"timestamp": now.Format(time.RFC3339),
		"service":   h.serviceName,
		"version":   h.build.Version,
		"uptime":    now.Sub(h.build.StartedAt).String(),
	}
	if h.build.CommitSHA != "" {
		payload["commit"] = h.build.CommitSHA
	}
	if h.build.Environment != "" {
		payload["environment"] = h.build.Environment
	}
	writeJSONResponse(w, http.StatusOK, payload)
}

// Readyz runs dependency probes through the system service. Without a system
// service it degrades to the liveness answer.
func (h *HealthHandlers) Readyz(w http.ResponseWriter, r *http.Request) {
	if h.system == nil {
		h.Healthz(w, r)
		return
	}

	report, err := h.system.HealthReport(r.Context())
	if err != nil {
		writeJSONResponse(w, http.StatusServiceUnavailable, map[string]any{
			"status":    domain.HealthStatusError,
			"timestamp": h.clock().UTC().Format(time.RFC3339),
			"service":   h.serviceName,
			"error":     "health report unavailable",
		})
		return
	}

	status := http.StatusOK
	if report.Status == domain.HealthStatusError {
		status = http.StatusServiceUnavailable
	}

	checks := make(map[string]any, len(report.Checks))
	for name, check := range report.Checks {
		entry := map[string]any{"status": check.Status}
		if check.Detail != "" {
			entry["detail"] = check.Detail
		}
		if check.Error != "" {
			entry["error"] = check.Error
		}
		if check.Latency > 0 {
			entry["latencyMs"] = check.Latency.Milliseconds()
		}
		checks[name] = entry
	}

	payload := map[string]any{
		"status":    report.Status,
		"timestamp": report.GeneratedAt.UTC().Format(time.RFC3339),
		"service":   h.serviceName,
		"checks":    checks,
	}
	if report.Version != "" {
		payload["version"] = report.Version
	}

	writeJSONResponse(w, status, payload)
}
