package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/alexisbeaulieu97/pipegate/internal/application/scheduler"
	"github.com/alexisbeaulieu97/pipegate/internal/config"
	"github.com/alexisbeaulieu97/pipegate/internal/domain/pipeline"
	"github.com/alexisbeaulieu97/pipegate/internal/ports"
)

const maxBodyBytes = 1 << 20

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{Status: "ok", Timestamp: s.now().UTC()}
	if s.worker != nil {
		resp.Worker = "paused"
		if s.worker.Enabled() {
			resp.Worker = "running"
		}
	}
	respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleValidators(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, ValidatorsResponse{Validators: s.gate.Validators()})
}

func (s *Server) handleCheckDefinition(w http.ResponseWriter, r *http.Request) {
	def, err := config.DecodePipelineJSON(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		s.writeError(w, r, http.StatusBadRequest, ErrCodeInvalidRequest, err.Error(), nil)
		return
	}
	s.check(w, r, config.ToDomain(*def))
}

func (s *Server) handleCheckStored(w http.ResponseWriter, r *http.Request) {
	p, ok := s.loadPipeline(w, r)
	if !ok {
		return
	}
	s.check(w, r, *p)
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	if s.queue == nil {
		s.writeError(w, r, http.StatusServiceUnavailable, ErrCodeServiceUnavailable, "start queue is not configured", nil)
		return
	}

	var body StartRequestBody
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&body); err != nil && !errors.Is(err, io.EOF) {
		s.writeError(w, r, http.StatusBadRequest, ErrCodeInvalidRequest, fmt.Sprintf("invalid start request: %v", err), nil)
		return
	}
	if body.DelaySeconds < 0 {
		s.writeError(w, r, http.StatusBadRequest, ErrCodeInvalidRequest, "delay_seconds must be non-negative", nil)
		return
	}

	p, ok := s.loadPipeline(w, r)
	if !ok {
		return
	}

	// X-Request-Id only correlates logs; clients may reuse it across starts.
	req, err := s.queue.Push(scheduler.StartRequest{
		ID:         uuid.NewString(),
		PipelineID: p.ID,
		Trigger:    body.Trigger,
	}, time.Duration(body.DelaySeconds)*time.Second)
	if err != nil {
		s.internalError(w, r, err)
		return
	}

	respondJSON(w, http.StatusAccepted, StartResponse{
		RequestID:  req.ID,
		PipelineID: req.PipelineID,
		EnqueuedAt: req.EnqueuedAt,
	})
}

func (s *Server) handleCompleteExecution(w http.ResponseWriter, r *http.Request) {
	if s.executions == nil {
		s.writeError(w, r, http.StatusServiceUnavailable, ErrCodeServiceUnavailable, "execution store is not configured", nil)
		return
	}

	pipelineID := chi.URLParam(r, "id")
	executionID := chi.URLParam(r, "executionID")
	if err := s.executions.MarkCompleted(r.Context(), pipelineID, executionID); err != nil {
		if isNotFound(err) {
			s.writeError(w, r, http.StatusNotFound, ErrCodeNotFound,
				fmt.Sprintf("execution %s of pipeline %s is not running", executionID, pipelineID), nil)
			return
		}
		s.internalError(w, r, err)
		return
	}
	if s.logger != nil {
		s.logger.Info(r.Context(), "execution completed", "pipeline_id", pipelineID, "execution_id", executionID)
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleAcquireLock(w http.ResponseWriter, r *http.Request) {
	if s.locks == nil {
		s.writeError(w, r, http.StatusServiceUnavailable, ErrCodeServiceUnavailable, "lock store is not configured", nil)
		return
	}

	var body LockRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&body); err != nil {
		s.writeError(w, r, http.StatusBadRequest, ErrCodeInvalidRequest, fmt.Sprintf("invalid lock request: %v", err), nil)
		return
	}
	scope, ok := parseLockScope(body.Scope)
	if !ok || body.Target == "" || body.Owner == "" {
		s.writeError(w, r, http.StatusBadRequest, ErrCodeInvalidRequest,
			"scope must be application or pipeline, and target and owner are required", nil)
		return
	}

	lock := ports.Lock{Scope: scope, Target: body.Target, Owner: body.Owner, Reason: body.Reason}
	if err := s.locks.Acquire(r.Context(), lock); err != nil {
		if errors.Is(err, ports.ErrLockConflict) {
			s.writeError(w, r, http.StatusConflict, ErrCodeConflict, err.Error(), nil)
			return
		}
		s.internalError(w, r, err)
		return
	}

	held, err := s.locks.ActiveLock(r.Context(), lockApplication(lock), lockPipeline(lock))
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	resp := LockResponse{Scope: body.Scope, Target: body.Target, Owner: body.Owner, Reason: body.Reason}
	if held != nil {
		resp.AcquiredAt = held.AcquiredAt
	}
	respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleReleaseLock(w http.ResponseWriter, r *http.Request) {
	if s.locks == nil {
		s.writeError(w, r, http.StatusServiceUnavailable, ErrCodeServiceUnavailable, "lock store is not configured", nil)
		return
	}

	scope, ok := parseLockScope(chi.URLParam(r, "scope"))
	if !ok {
		s.writeError(w, r, http.StatusBadRequest, ErrCodeInvalidRequest, "scope must be application or pipeline", nil)
		return
	}
	target := chi.URLParam(r, "target")
	if err := s.locks.Release(r.Context(), scope, target); err != nil {
		if isNotFound(err) {
			s.writeError(w, r, http.StatusNotFound, ErrCodeNotFound, fmt.Sprintf("%s %s is not locked", scope, target), nil)
			return
		}
		s.internalError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleWorkerToggle(enabled bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.worker == nil {
			s.writeError(w, r, http.StatusServiceUnavailable, ErrCodeServiceUnavailable, "worker is not configured", nil)
			return
		}
		s.worker.SetEnabled(enabled)
		respondJSON(w, http.StatusOK, WorkerResponse{Enabled: s.worker.Enabled()})
	}
}

func parseLockScope(raw string) (ports.LockScope, bool) {
	switch scope := ports.LockScope(raw); scope {
	case ports.LockScopeApplication, ports.LockScopePipeline:
		return scope, true
	default:
		return "", false
	}
}

func lockApplication(lock ports.Lock) string {
	if lock.Scope == ports.LockScopeApplication {
		return lock.Target
	}
	return ""
}

func lockPipeline(lock ports.Lock) string {
	if lock.Scope == ports.LockScopePipeline {
		return lock.Target
	}
	return ""
}

func (s *Server) loadPipeline(w http.ResponseWriter, r *http.Request) (*pipeline.Pipeline, bool) {
	id := chi.URLParam(r, "id")
	if s.pipelines == nil {
		s.writeError(w, r, http.StatusNotFound, ErrCodeNotFound, fmt.Sprintf("pipeline %s not found", id), nil)
		return nil, false
	}

	p, err := s.pipelines.Get(r.Context(), id)
	if err != nil {
		if isNotFound(err) {
			s.writeError(w, r, http.StatusNotFound, ErrCodeNotFound, fmt.Sprintf("pipeline %s not found", id), nil)
			return nil, false
		}
		s.internalError(w, r, err)
		return nil, false
	}
	return p, true
}

// check maps the gate outcome onto HTTP: 200 runnable, 412 rejected,
// 503 cancelled, 500 for any other error.
func (s *Server) check(w http.ResponseWriter, r *http.Request, p pipeline.Pipeline) {
	err := s.gate.CheckRunnable(r.Context(), p)
	if err == nil {
		respondJSON(w, http.StatusOK, CheckResponse{Runnable: true, PipelineID: p.ID})
		return
	}

	if failure, ok := pipeline.AsValidationFailure(err); ok {
		respondJSON(w, http.StatusPreconditionFailed, CheckResponse{
			Runnable:   false,
			PipelineID: p.ID,
			Kind:       string(failure.Kind),
			Validator:  failure.Validator,
			Message:    failure.Message,
			Context:    failure.Context,
		})
		return
	}

	var domainErr *pipeline.DomainError
	if errors.As(err, &domainErr) && domainErr.Code == pipeline.ErrCodeCancelled {
		s.writeError(w, r, http.StatusServiceUnavailable, ErrCodeServiceUnavailable, "check cancelled", nil)
		return
	}

	s.internalError(w, r, err)
}

func (s *Server) internalError(w http.ResponseWriter, r *http.Request, err error) {
	if s.logger != nil {
		s.logger.Error(r.Context(), "request failed", "path", r.URL.Path, "error", err)
	}
	s.writeError(w, r, http.StatusInternalServerError, ErrCodeInternalError, err.Error(), nil)
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, status int, code, message string, details map[string]interface{}) {
	respondJSON(w, status, ErrorResponse{
		Code:      code,
		Message:   message,
		Details:   details,
		RequestID: requestID(r),
		Timestamp: s.now().UTC(),
	})
}

func respondJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
