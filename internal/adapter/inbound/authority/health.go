package authority

import (
	"encoding/json"
	"fmt"
	"net/http"
	"runtime"

	"github.com/Sentinel-Gate/sessionguard/internal/adapter/outbound/memory"
)

// HealthResponse is the JSON response from the /health endpoint.
type HealthResponse struct {
	Status  string            `json:"status"`            // "healthy" or "unhealthy"
	Checks  map[string]string `json:"checks"`            // Component check results
	Version string            `json:"version,omitempty"` // Optional version info
}

// HealthChecker verifies component health.
type HealthChecker struct {
	rateLimiter *memory.RateLimiter
	revocations *memory.RevocationList
	version     string
}

// NewHealthChecker creates a HealthChecker. Pass nil for components that
// aren't available.
func NewHealthChecker(rateLimiter *memory.RateLimiter, revocations *memory.RevocationList, version string) *HealthChecker {
	return &HealthChecker{
		rateLimiter: rateLimiter,
		revocations: revocations,
		version:     version,
	}
}

// Check performs health checks on all components.
func (h *HealthChecker) Check() HealthResponse {
	checks := make(map[string]string)

	if h.rateLimiter != nil {
		checks["rate_limiter"] = fmt.Sprintf("ok: %d keys", h.rateLimiter.Size())
	} else {
		checks["rate_limiter"] = "not configured"
	}

	if h.revocations != nil {
		checks["revocations"] = fmt.Sprintf("ok: %d revoked", h.revocations.Size())
	} else {
		checks["revocations"] = "not configured"
	}

	checks["goroutines"] = fmt.Sprintf("%d", runtime.NumGoroutine())

	return HealthResponse{
		Status:  "healthy",
		Checks:  checks,
		Version: h.version,
	}
}

// Handler returns an HTTP handler for the health endpoint.
func (h *HealthChecker) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		health := h.Check()

		w.Header().Set("Content-Type", "application/json")
		if health.Status != "healthy" {
			w.WriteHeader(http.StatusServiceUnavailable)
		} else {
			w.WriteHeader(http.StatusOK)
		}

		_ = json.NewEncoder(w).Encode(health)
	})
}
