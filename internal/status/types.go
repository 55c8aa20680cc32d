// Package status provides the HTTP surface for a running guardian.
//
// Architecture:
//   - Server exposes health, the latest sensor snapshot, usage counts and
//     the configured completion sources
//   - Inspector checks local runtimes (Ollama, vLLM) for health and loaded models
package status

import (
	"time"

	"github.com/aceteam-ai/guardian/internal/sensors"
)

// HealthResponse is the response for /health endpoint.
type HealthResponse struct {
	Status     string `json:"status"` // "ok", "degraded", "unhealthy"
	Version    string `json:"version"`
	Monitoring bool   `json:"monitoring"`
}

// SnapshotResponse is the response for /snapshot endpoint.
type SnapshotResponse struct {
	Version  string            `json:"version"`
	Cached   bool              `json:"cached"`
	Summary  string            `json:"summary"`
	Snapshot *sensors.Snapshot `json:"snapshot"`
}

// UsageResponse is the response for /usage endpoint.
type UsageResponse struct {
	Version   string           `json:"version"`
	Timestamp time.Time        `json:"timestamp"`
	Session   map[string]int64 `json:"session"`            // successes since process start
	Lifetime  map[string]int64 `json:"lifetime,omitempty"` // successes recorded in the usage store
}

// SourceInfo describes one completion source in the configured chain.
type SourceInfo struct {
	Name     string   `json:"name"`
	Kind     string   `json:"kind"`
	Position int      `json:"position"`
	Endpoint string   `json:"endpoint,omitempty"`
	Model    string   `json:"model,omitempty"`
	Health   string   `json:"health"` // "ok", "degraded", "unhealthy", "unknown"
	Models   []string `json:"models,omitempty"`
}

// HealthStatus constants for health checks.
const (
	HealthStatusOK        = "ok"
	HealthStatusDegraded  = "degraded"
	HealthStatusUnhealthy = "unhealthy"
	HealthStatusUnknown   = "unknown"
)

// StatusVersion is the current version of the status payload format.
const StatusVersion = "1.0"
