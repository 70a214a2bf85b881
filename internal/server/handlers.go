package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"sasbridge/internal/runner"
	"sasbridge/internal/task"
)

type errorBody struct {
	Error string `json:"error"`
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn("Failed to encode response", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, errorBody{Error: msg})
}

// decodeBody reads a size-capped JSON body into v. On failure it writes the
// error response and returns false.
func (s *Server) decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, s.config.MaxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			s.writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
		} else {
			s.writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		}
		return false
	}
	return true
}

// runError maps runner errors to HTTP responses.
func (s *Server) runError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, runner.ErrNotFound):
		s.writeError(w, http.StatusNotFound, "unknown run")
	case errors.Is(err, runner.ErrNotRunning):
		s.writeError(w, http.StatusConflict, "run is not running")
	default:
		s.writeError(w, http.StatusInternalServerError, err.Error())
	}
}

// taskError maps task service errors to HTTP responses.
func (s *Server) taskError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, task.ErrInvalidPayload):
		s.writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, task.ErrNotFound):
		s.writeError(w, http.StatusNotFound, "unknown task")
	default:
		s.writeError(w, http.StatusInternalServerError, err.Error())
	}
}

type runRequest struct {
	Code string `json:"code"`
}

type runStarted struct {
	ID string `json:"id"`
}

func (s *Server) handleRunStart(w http.ResponseWriter, r *http.Request) {
	var req runRequest
	if !s.decodeBody(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Code) == "" {
		s.writeError(w, http.StatusBadRequest, "code is required")
		return
	}

	id, _, err := s.runner.Save(req.Code)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	// The run must outlive this request, so it is started on a background
	// context. Its lifetime is bounded by the runner timeout and the stop
	// endpoint.
	if err := s.runner.Start(context.Background(), id); err != nil {
		s.runError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, runStarted{ID: id})
}

func (s *Server) handleRunStatus(w http.ResponseWriter, r *http.Request) {
	info, err := s.runner.Status(r.PathValue("id"))
	if err != nil {
		s.runError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, info)
}

type logsResponse struct {
	ID      string            `json:"id"`
	Status  runner.Status     `json:"status"`
	Entries []runner.LogEntry `json:"entries"`
	Next    int               `json:"next"`
}

func (s *Server) handleRunLogs(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	after := 0
	if raw := r.URL.Query().Get("after"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			s.writeError(w, http.StatusBadRequest, "after must be a non-negative integer")
			return
		}
		after = n
	}

	info, err := s.runner.Status(id)
	if err != nil {
		s.runError(w, err)
		return
	}
	entries, next, err := s.runner.Logs(id, after)
	if err != nil {
		s.runError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, logsResponse{
		ID:      id,
		Status:  info.Status,
		Entries: entries,
		Next:    next,
	})
}

func (s *Server) handleRunStop(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.runner.Stop(id); err != nil {
		s.runError(w, err)
		return
	}
	info, err := s.runner.Status(id)
	if err != nil {
		s.runError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, info)
}

type taskAccepted struct {
	ID    string     `json:"id"`
	State task.State `json:"state"`
}

func (s *Server) acceptTask(w http.ResponseWriter, t *task.Task, err error) {
	if err != nil {
		s.taskError(w, err)
		return
	}
	s.writeJSON(w, http.StatusAccepted, taskAccepted{ID: t.ID, State: t.State})
}

type analyzeCodeRequest struct {
	Code     string `json:"code"`
	FileName string `json:"fileName"`
}

func (s *Server) handleAnalyzeCode(w http.ResponseWriter, r *http.Request) {
	var req analyzeCodeRequest
	if !s.decodeBody(w, r, &req) {
		return
	}
	t, err := s.tasks.SubmitCode(req.Code, req.FileName)
	s.acceptTask(w, t, err)
}

type analyzeFileRequest struct {
	Path string `json:"path"`
}

func (s *Server) handleAnalyzeFile(w http.ResponseWriter, r *http.Request) {
	var req analyzeFileRequest
	if !s.decodeBody(w, r, &req) {
		return
	}
	t, err := s.tasks.SubmitFile(req.Path)
	s.acceptTask(w, t, err)
}

type analyzeDirectoryRequest struct {
	Dir string `json:"dir"`
}

func (s *Server) handleAnalyzeDirectory(w http.ResponseWriter, r *http.Request) {
	var req analyzeDirectoryRequest
	if !s.decodeBody(w, r, &req) {
		return
	}
	t, err := s.tasks.SubmitDirectory(req.Dir)
	s.acceptTask(w, t, err)
}

func (s *Server) handleTaskGet(w http.ResponseWriter, r *http.Request) {
	t, err := s.tasks.Get(r.PathValue("id"))
	if err != nil {
		s.taskError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, t)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
