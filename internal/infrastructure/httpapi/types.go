package httpapi

import "time"

const (
	ErrCodeInvalidRequest     = "INVALID_REQUEST"
	ErrCodeNotFound           = "NOT_FOUND"
	ErrCodeInternalError      = "INTERNAL_ERROR"
	ErrCodeServiceUnavailable = "SERVICE_UNAVAILABLE"
	ErrCodeConflict           = "CONFLICT"
)

// CheckResponse is returned by the check endpoints.
type CheckResponse struct {
	Runnable   bool                   `json:"runnable"`
	PipelineID string                 `json:"pipeline_id"`
	Kind       string                 `json:"kind,omitempty"`
	Validator  string                 `json:"validator,omitempty"`
	Message    string                 `json:"message,omitempty"`
	Context    map[string]interface{} `json:"context,omitempty"`
}

// StartRequestBody is the optional body of the start endpoint.
type StartRequestBody struct {
	Trigger      string `json:"trigger,omitempty"`
	DelaySeconds int    `json:"delay_seconds,omitempty"`
}

// StartResponse acknowledges a queued start request. Once admitted, the
// execution is recorded under RequestID.
type StartResponse struct {
	RequestID  string    `json:"request_id"`
	PipelineID string    `json:"pipeline_id"`
	EnqueuedAt time.Time `json:"enqueued_at"`
}

// ValidatorsResponse lists the configured chain.
type ValidatorsResponse struct {
	Validators []string `json:"validators"`
}

// HealthResponse is returned by /healthz. Worker is "running" or "paused"
// when a worker is attached.
type HealthResponse struct {
	Status    string    `json:"status"`
	Worker    string    `json:"worker,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// LockRequest is the body of PUT /v1/locks.
type LockRequest struct {
	Scope  string `json:"scope"`
	Target string `json:"target"`
	Owner  string `json:"owner"`
	Reason string `json:"reason,omitempty"`
}

// LockResponse describes a held lock.
type LockResponse struct {
	Scope      string    `json:"scope"`
	Target     string    `json:"target"`
	Owner      string    `json:"owner"`
	Reason     string    `json:"reason,omitempty"`
	AcquiredAt time.Time `json:"acquired_at,omitempty"`
}

// WorkerResponse reports whether the worker polls the start queue.
type WorkerResponse struct {
	Enabled bool `json:"enabled"`
}

// ErrorResponse is the body of every non-2xx response other than a rejection.
type ErrorResponse struct {
	Code      string                 `json:"code"`
	Message   string                 `json:"message"`
	Details   map[string]interface{} `json:"details,omitempty"`
	RequestID string                 `json:"request_id,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}
