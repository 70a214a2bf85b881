package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"sasbridge/internal/runner"
)

// handleRunStream streams a run's log entries as server-sent events: one
// `data:` event per log entry, comment heartbeats while idle, and a terminal
// `event: status` carrying the final run info. A client disconnect ends the
// stream but never the run.
func (s *Server) handleRunStream(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	done, err := s.runner.Done(id)
	if err != nil {
		s.runError(w, err)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		s.writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	poll := time.NewTicker(s.config.PollInterval)
	defer poll.Stop()
	heartbeat := time.NewTicker(s.config.Heartbeat)
	defer heartbeat.Stop()

	after := 0
	flushEntries := func() error {
		entries, next, err := s.runner.Logs(id, after)
		if err != nil {
			return err
		}
		for _, entry := range entries {
			data, err := json.Marshal(entry)
			if err != nil {
				return err
			}
			if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
				return err
			}
		}
		if len(entries) > 0 {
			after = next
			flusher.Flush()
		}
		return nil
	}

	for {
		select {
		case <-r.Context().Done():
			// Client went away; the run keeps going.
			return
		case <-done:
			if err := flushEntries(); err != nil {
				return
			}
			s.writeStatusEvent(w, flusher, id)
			return
		case <-heartbeat.C:
			if _, err := fmt.Fprint(w, ": heartbeat\n\n"); err != nil {
				return
			}
			flusher.Flush()
		case <-poll.C:
			if err := flushEntries(); err != nil {
				return
			}
		}
	}
}

func (s *Server) writeStatusEvent(w http.ResponseWriter, flusher http.Flusher, id string) {
	info, err := s.runner.Status(id)
	if err != nil {
		if !errors.Is(err, runner.ErrNotFound) {
			s.logger.Warn("Failed to load final run status", zap.String("id", id), zap.Error(err))
		}
		return
	}
	data, err := json.Marshal(info)
	if err != nil {
		return
	}
	if _, err := fmt.Fprintf(w, "event: status\ndata: %s\n\n", data); err != nil {
		return
	}
	flusher.Flush()
}
