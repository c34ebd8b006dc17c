package models

// HealthState is the coarse availability signal a unit reports before its
// analysis pipeline runs.
type HealthState string

const (
	HealthHealthy   HealthState = "healthy"
	HealthDegraded  HealthState = "degraded"
	HealthUnhealthy HealthState = "unhealthy"
)

// HealthStatus is the result of a unit's health check, the first step of
// every analysis pipeline.
type HealthStatus struct {
	Status    HealthState `json:"status"`
	LatencyMs int64       `json:"latency_ms"`
	Error     string      `json:"error,omitempty"`
}
