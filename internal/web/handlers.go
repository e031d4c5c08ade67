package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/JonMunkholm/gtingest/internal/ingest"
	"github.com/JonMunkholm/gtingest/internal/logging"
)

// maxRequestBody bounds the ingest request body.
const maxRequestBody = 1 << 20

// healthCheckTimeout bounds each dependency probe.
const healthCheckTimeout = 2 * time.Second

// IngestRequest names the objects to process. An empty list processes every
// object the source holds.
type IngestRequest struct {
	Keys []string `json:"keys"`
}

// IngestFailure is returned with status 500 when at least one file failed.
type IngestFailure struct {
	Error  string             `json:"error"`
	Code   string             `json:"code"`
	Result ingest.BatchResult `json:"result"`
}

// handleIngest runs a batch synchronously and returns its BatchResult.
func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	var req IngestRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody))
	if err := dec.Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		respondError(w, r, fmt.Errorf("%w: %v", ErrBadRequest, err), http.StatusBadRequest)
		return
	}

	if !s.running.TryLock() {
		respondError(w, r, ErrBatchRunning, http.StatusConflict)
		return
	}
	defer s.running.Unlock()

	ctx, cancel := context.WithTimeout(r.Context(), s.opts.BatchTimeout)
	defer cancel()

	logger := logging.WithFields(r.Context(), "keys", len(req.Keys))
	logger.Info("ingest requested")

	result, err := s.opts.Pipeline.RunBatch(ctx, s.opts.Source, req.Keys)
	if err != nil {
		logger.Error("batch failed", "batch_id", result.BatchID, "failed_files", result.FailedFiles, "error", err)
		writeJSON(w, r, http.StatusInternalServerError, IngestFailure{
			Error:  err.Error(),
			Code:   "batch_failed",
			Result: result,
		})
		return
	}

	writeJSON(w, r, http.StatusOK, result)
}

// handleListSources lists the object keys a batch without keys would process.
func (s *Server) handleListSources(w http.ResponseWriter, r *http.Request) {
	keys, err := s.opts.Source.List(r.Context())
	if err != nil {
		respondError(w, r, fmt.Errorf("list source objects: %w", err), http.StatusBadGateway)
		return
	}
	if keys == nil {
		keys = []string{}
	}
	writeJSON(w, r, http.StatusOK, map[string]any{"keys": keys})
}

// handleHealth runs every dependency check and reports 503 if any failed.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := http.StatusOK
	checks := make(map[string]string, len(s.opts.Checks))

	for name, check := range s.opts.Checks {
		ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
		err := check(ctx)
		cancel()

		if err != nil {
			checks[name] = err.Error()
			status = http.StatusServiceUnavailable
			continue
		}
		checks[name] = "ok"
	}

	overall := "ok"
	if status != http.StatusOK {
		overall = "degraded"
	}
	writeJSON(w, r, status, map[string]any{"status": overall, "checks": checks})
}
