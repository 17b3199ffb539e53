// Package models - API response types and error envelopes.
//
// All endpoints return JSON. Errors share one envelope with a
// machine-readable code; health responses share one component map.
package models

import (
	"time"
)

// ErrorResponse is the JSON envelope for every non-2xx response.
type ErrorResponse struct {
	Error     string            `json:"error"`                // Always "error"
	Message   string            `json:"message"`              // Human-readable description
	Code      string            `json:"code,omitempty"`       // Machine-readable error code
	Details   map[string]string `json:"details,omitempty"`    // Field-specific details
	Timestamp time.Time         `json:"timestamp"`            // When the error occurred
	RequestID string            `json:"request_id,omitempty"` // Correlation id, when known
}

// StatusResponse is the liveness body: exactly {"status":"ok"}.
type StatusResponse struct {
	Status string `json:"status"`
}

type HealthCheckResponse struct {
	Status     string                     `json:"status"`
	Timestamp  time.Time                  `json:"timestamp"`
	Version    string                     `json:"version,omitempty"`
	Uptime     string                     `json:"uptime,omitempty"`
	Components map[string]ComponentHealth `json:"components,omitempty"`
	Metrics    map[string]interface{}     `json:"metrics,omitempty"`
}

type ComponentHealth struct {
	Status    string    `json:"status"`
	Message   string    `json:"message,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Health status values
const (
	StatusOK        = "ok"
	StatusHealthy   = "healthy"
	StatusUnhealthy = "unhealthy"
	StatusDegraded  = "degraded"
)

// Error codes
const (
	ErrorCodeNotFound           = "NOT_FOUND"            // 404
	ErrorCodeBadRequest         = "BAD_REQUEST"          // 400
	ErrorCodeInvalidRequest     = "INVALID_REQUEST"      // 400
	ErrorCodeInternalError      = "INTERNAL_ERROR"       // 500
	ErrorCodeServiceUnavailable = "SERVICE_UNAVAILABLE"  // 503
	ErrorCodeRateLimitExceeded  = "RATE_LIMIT_EXCEEDED"  // 429
)

func NewErrorResponse(message string, code string) *ErrorResponse {
	return &ErrorResponse{
		Error:     "error",
		Message:   message,
		Code:      code,
		Timestamp: time.Now(),
	}
}

func NewHealthCheckResponse(status string) *HealthCheckResponse {
	return &HealthCheckResponse{
		Status:     status,
		Timestamp:  time.Now(),
		Components: make(map[string]ComponentHealth),
		Metrics:    make(map[string]interface{}),
	}
}

// AddComponent records a component's health. An unhealthy component marks the
// whole response degraded unless it is already unhealthy.
func (h *HealthCheckResponse) AddComponent(name, status, message string) {
	h.Components[name] = ComponentHealth{
		Status:    status,
		Message:   message,
		Timestamp: time.Now(),
	}
	if status == StatusUnhealthy && h.Status == StatusHealthy {
		h.Status = StatusDegraded
	}
}

func (h *HealthCheckResponse) AddMetric(name string, value interface{}) {
	h.Metrics[name] = value
}
