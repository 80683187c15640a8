package server

import (
	"bytes"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"mime"
	"net/http"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"resumerank/internal/errors"
	"resumerank/internal/intake"
	"resumerank/internal/results"
)

// multipartMemory is how much of a multipart body is held in memory before
// spilling to temporary files
const multipartMemory = 32 << 20

// healthHandler reports service health including the upload circuit breaker
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	response := map[string]any{
		"status":          "healthy",
		"service":         "resumerank",
		"version":         s.Version,
		"circuit_breaker": s.Breaker.GetStats(),
	}

	status := http.StatusOK
	if !s.Breaker.IsHealthy() {
		response["status"] = "degraded"
		status = http.StatusServiceUnavailable
	}
	s.writeJSON(w, status, response)
}

// statsHandler provides session and server statistics
func (s *Server) statsHandler(w http.ResponseWriter, r *http.Request) {
	response := map[string]any{
		"service": "resumerank",
		"version": s.Version,
		"session": s.Session.Stats(),
		"server": map[string]any{
			"max_request_size_bytes": s.MaxRequestSize,
			"api_keys_configured":    s.keyCount(),
		},
	}

	if s.RateLimiter != nil {
		response["rate_limiting"] = s.RateLimiter.GetStats()
	} else {
		response["rate_limiting"] = map[string]any{"enabled": false}
	}

	if s.RateLimit != nil {
		response["rate_limit_config"] = map[string]any{
			"enabled":          s.RateLimit.Enabled,
			"requests_per_min": s.RateLimit.RequestsPerMin,
			"burst_capacity":   s.RateLimit.BurstCapacity,
			"by_ip":            s.RateLimit.ByIP,
			"by_api_key":       s.RateLimit.ByAPIKey,
		}
	}

	if s.keyWatcher != nil {
		response["api_key_watcher"] = s.keyWatcher.Status()
	}

	s.writeJSON(w, http.StatusOK, response)
}

func (s *Server) queueHandler(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, QueueResponse{
		Items: s.Session.Snapshot(),
		Stats: s.Session.Stats(),
	})
}

// addFilesHandler queues every "resumes" part of a multipart upload
func (s *Server) addFilesHandler(w http.ResponseWriter, r *http.Request) {
	_, span := s.Observability.Tracer("resumerank.api").Start(r.Context(), "api.queue.add")
	defer span.End()

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		span.RecordError(err)
		var maxBytesErr *http.MaxBytesError
		if stderrors.As(err, &maxBytesErr) || (s.MaxRequestSize > 0 && r.ContentLength > s.MaxRequestSize) {
			writeErrorResponse(w, "Request too large",
				fmt.Sprintf("request body too large (limit is %d bytes)", s.MaxRequestSize), http.StatusRequestEntityTooLarge)
			return
		}
		writeErrorResponse(w, "Invalid request body", "multipart/form-data with resumes files required", http.StatusBadRequest)
		return
	}

	headers := r.MultipartForm.File["resumes"]
	if len(headers) == 0 {
		writeErrorResponse(w, "No files", "Please select at least one resume file", http.StatusBadRequest)
		return
	}

	sources := make([]intake.Source, 0, len(headers))
	for _, fh := range headers {
		src, err := intake.NewMultipartSource(fh, s.AppConfig.Queue.MaxFileSize)
		if err != nil {
			span.RecordError(err)
			s.Logger.LogError(err, "Failed to read uploaded part", "file", fh.Filename)
			writeErrorResponse(w, "Invalid request body", err.Error(), http.StatusBadRequest)
			return
		}
		sources = append(sources, src)
	}

	report := s.Session.AddFiles(sources)
	span.SetAttributes(
		attribute.Int("files.offered", len(sources)),
		attribute.Int("files.added", len(report.Added)),
		attribute.Int("files.skipped", len(report.Skipped)),
		attribute.Int("files.rejected", len(report.Rejected)),
	)

	s.writeJSON(w, http.StatusOK, report)
}

func (s *Server) clearQueueHandler(w http.ResponseWriter, r *http.Request) {
	if s.Session.Stats().Running {
		s.writeAppError(w, errors.NewStateError(errors.ErrCodeCycleInProgress, "An analysis is already in progress", nil))
		return
	}
	s.Session.ClearQueue()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) removeItemHandler(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, ok := s.Session.Get(id); !ok {
		s.writeAppError(w, errors.NewValidationError(errors.ErrCodeItemNotFound, "No such queue item", nil).WithContext("id", id))
		return
	}
	if err := s.Session.Remove(id); err != nil {
		s.writeAppError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// submitHandler runs a full cycle and answers with the ranked summary. The
// request context bounds the drain, so a disconnecting client cancels
// uploads that have not started yet.
func (s *Server) submitHandler(w http.ResponseWriter, r *http.Request) {
	ctx, span := s.Observability.Tracer("resumerank.api").Start(r.Context(), "api.submit")
	defer span.End()

	var req SubmitRequest
	if err := parseJSONRequest(r, &req); err != nil {
		span.RecordError(err)
		span.SetAttributes(attribute.String("error.type", "validation"))
		writeErrorResponse(w, "Invalid request body", err.Error(), http.StatusBadRequest)
		return
	}

	summary, err := s.Session.Submit(ctx, req.JobDescription)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, errors.MessageOf(err))
		s.writeAppError(w, err)
		return
	}

	span.SetAttributes(
		attribute.Int("resumes.total", summary.Total),
		attribute.Int("resumes.successful", summary.Succeeded),
		attribute.Int("resumes.failed", summary.Failed),
	)
	s.writeJSON(w, http.StatusOK, summary)
}

func (s *Server) resultsHandler(w http.ResponseWriter, r *http.Request) {
	summary, ok := s.Session.LastSummary()
	if !ok {
		writeErrorResponse(w, "No results", "No analysis has completed yet", http.StatusNotFound)
		return
	}
	s.writeJSON(w, http.StatusOK, summary)
}

// compareHandler weighs one ranked candidate against the top list
// (?scope=top) or against every other candidate (default)
func (s *Server) compareHandler(w http.ResponseWriter, r *http.Request) {
	summary, ok := s.Session.LastSummary()
	if !ok {
		writeErrorResponse(w, "No results", "No analysis has completed yet", http.StatusNotFound)
		return
	}

	scope := r.URL.Query().Get("scope")
	if scope != "" && scope != results.ScopeTop && scope != results.ScopeAll {
		writeErrorResponse(w, "Invalid scope", "scope must be 'top' or 'all'", http.StatusBadRequest)
		return
	}

	comparison, err := results.Compare(summary, r.PathValue("id"), scope == results.ScopeTop)
	if err != nil {
		s.writeAppError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, comparison)
}

func (s *Server) resetHandler(w http.ResponseWriter, r *http.Request) {
	if s.Session.Stats().Running {
		s.writeAppError(w, errors.NewStateError(errors.ErrCodeCycleInProgress, "An analysis is already in progress", nil))
		return
	}
	s.Session.Reset()
	w.WriteHeader(http.StatusNoContent)
}

// statusFor maps an application error onto an HTTP status
func statusFor(err error) int {
	switch errors.CodeOf(err) {
	case errors.ErrCodeItemNotFound:
		return http.StatusNotFound
	case errors.ErrCodeCycleInProgress, errors.ErrCodeItemNotRemovable:
		return http.StatusConflict
	case errors.ErrCodeAllUploadsFailed:
		return http.StatusBadGateway
	}

	var appErr *errors.AppError
	if stderrors.As(err, &appErr) {
		switch appErr.Type {
		case errors.ErrorTypeValidation:
			return http.StatusBadRequest
		case errors.ErrorTypeState:
			return http.StatusConflict
		case errors.ErrorTypeNetwork, errors.ErrorTypeServer:
			return http.StatusBadGateway
		}
	}
	return http.StatusInternalServerError
}

func (s *Server) writeAppError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.Logger.LogError(err, "Request failed")
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if encErr := json.NewEncoder(w).Encode(ErrorResponse{
		Error: errors.MessageOf(err),
		Code:  errors.CodeOf(err),
	}); encErr != nil {
		s.Logger.LogError(encErr, "Failed to encode error response")
	}
}

// writeJSON encodes v before any header is sent, so an unencodable value
// becomes a 500 instead of a truncated success
func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(v); err != nil {
		s.Logger.LogError(err, "Failed to encode response")
		writeErrorResponse(w, "Internal server error", "Failed to encode response", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(buf.Bytes()); err != nil {
		s.Logger.Debug("Failed to write response", "error", err)
	}
}

// parseJSONRequest parses JSON request body into the provided struct
func parseJSONRequest(r *http.Request, v any) error {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "application/json" {
		return fmt.Errorf("content-type must be application/json")
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		var maxBytesErr *http.MaxBytesError
		if stderrors.As(err, &maxBytesErr) {
			return fmt.Errorf("request body too large (limit is %d bytes)", maxBytesErr.Limit)
		}
		return fmt.Errorf("failed to read request body: %w", err)
	}

	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("failed to parse JSON: %w", err)
	}
	return nil
}

// writeErrorResponse writes a standardized error response
func writeErrorResponse(w http.ResponseWriter, error, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	response := ErrorResponse{
		Error:   error,
		Message: message,
	}
	if err := json.NewEncoder(w).Encode(response); err != nil {
		http.Error(w, "Failed to encode error response", http.StatusInternalServerError)
	}
}
