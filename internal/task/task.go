// Package task runs analysis jobs through a persistent queue: submissions
// are deduplicated by fingerprint, recorded in SQLite, and executed by a
// bounded worker pool. Queued work survives a restart.
package task

import (
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/cespare/xxhash/v2"
)

var (
	ErrNotFound       = errors.New("task not found")
	ErrInvalidPayload = errors.New("invalid task payload")
)

// Kind identifies what a task analyzes.
type Kind string

const (
	KindAnalyzeCode      Kind = "analyze-code"
	KindAnalyzeFile      Kind = "analyze-file"
	KindAnalyzeDirectory Kind = "analyze-directory"
)

// State is the lifecycle state of a task.
type State string

const (
	StateQueued    State = "queued"
	StateRunning   State = "running"
	StateSucceeded State = "succeeded"
	StateFailed    State = "failed"
)

// Terminal reports whether the state is final.
func (s State) Terminal() bool {
	return s == StateSucceeded || s == StateFailed
}

// Task is one analysis job. Result holds the serialized analysis once the
// task has succeeded; Error holds the failure message once it has failed.
type Task struct {
	ID          string          `json:"id"`
	Kind        Kind            `json:"kind"`
	State       State           `json:"state"`
	Payload     string          `json:"-"`
	Fingerprint string          `json:"-"`
	Result      json.RawMessage `json:"result,omitempty"`
	Error       string          `json:"error,omitempty"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}

// fingerprint identifies a submission by its kind and payload, so resubmitting
// the same work can return the task already covering it.
func fingerprint(kind Kind, payload []byte) string {
	h := xxhash.New()
	_, _ = h.WriteString(string(kind))
	_, _ = h.Write(payload)
	return strconv.FormatUint(h.Sum64(), 16)
}
