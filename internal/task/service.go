package task

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Config tunes the task service.
type Config struct {
	// Path of the SQLite task database
	DBPath string

	// Maximum tasks executing at once
	Workers int

	// Token budget per chunk in chunking analyses
	MaxTokenSize int
}

// DefaultConfig returns the default service configuration.
func DefaultConfig() Config {
	return Config{
		DBPath:       ".sasbridge/tasks.db",
		Workers:      4,
		MaxTokenSize: 1000,
	}
}

// Service accepts, persists, and executes analysis tasks.
type Service struct {
	config Config
	store  *Store
	logger *zap.Logger

	// slots is a semaphore bounding concurrent executions.
	slots chan struct{}

	// submitMu serializes the fingerprint check against the insert.
	submitMu sync.Mutex

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a service with the default configuration.
func New(logger *zap.Logger) (*Service, error) {
	return NewWithConfig(DefaultConfig(), logger)
}

// NewWithConfig opens the task database and requeues any work left pending
// by an earlier process. Zero config fields fall back to defaults; a nil
// logger is replaced with a no-op one.
func NewWithConfig(config Config, logger *zap.Logger) (*Service, error) {
	defaults := DefaultConfig()
	if config.DBPath == "" {
		config.DBPath = defaults.DBPath
	}
	if config.Workers <= 0 {
		config.Workers = defaults.Workers
	}
	if config.MaxTokenSize <= 0 {
		config.MaxTokenSize = defaults.MaxTokenSize
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	store, err := NewStore(config.DBPath)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Service{
		config: config,
		store:  store,
		logger: logger,
		slots:  make(chan struct{}, config.Workers),
		ctx:    ctx,
		cancel: cancel,
	}
	if err := s.recoverPending(); err != nil {
		cancel()
		store.Close()
		return nil, err
	}
	return s, nil
}

// recoverPending requeues tasks a previous process left queued or running.
func (s *Service) recoverPending() error {
	pending, err := s.store.pending()
	if err != nil {
		return err
	}
	for _, t := range pending {
		if t.State == StateRunning {
			if err := s.store.setState(t.ID, StateQueued); err != nil {
				return err
			}
			t.State = StateQueued
		}
		s.dispatch(t)
	}
	if len(pending) > 0 {
		s.logger.Info("Recovered pending tasks", zap.Int("count", len(pending)))
	}
	return nil
}

// SubmitCode enqueues an analyze-code task over the given source text.
func (s *Service) SubmitCode(code, fileName string) (*Task, error) {
	if strings.TrimSpace(code) == "" {
		return nil, fmt.Errorf("%w: code is required", ErrInvalidPayload)
	}
	payload, err := json.Marshal(CodePayload{Code: code, FileName: fileName})
	if err != nil {
		return nil, err
	}
	return s.Submit(KindAnalyzeCode, payload)
}

// SubmitFile enqueues an analyze-file task for the file at path.
func (s *Service) SubmitFile(path string) (*Task, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("%w: path is required", ErrInvalidPayload)
	}
	payload, err := json.Marshal(FilePayload{Path: path})
	if err != nil {
		return nil, err
	}
	return s.Submit(KindAnalyzeFile, payload)
}

// SubmitDirectory enqueues an analyze-directory task for dir.
func (s *Service) SubmitDirectory(dir string) (*Task, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, fmt.Errorf("%w: dir is required", ErrInvalidPayload)
	}
	payload, err := json.Marshal(DirectoryPayload{Dir: dir})
	if err != nil {
		return nil, err
	}
	return s.Submit(KindAnalyzeDirectory, payload)
}

// Submit records a task and hands it to the pool. If a non-failed task with
// the same fingerprint already exists it is returned instead of enqueuing a
// duplicate.
func (s *Service) Submit(kind Kind, payload []byte) (*Task, error) {
	switch kind {
	case KindAnalyzeCode, KindAnalyzeFile, KindAnalyzeDirectory:
	default:
		return nil, fmt.Errorf("unknown task kind %q", kind)
	}

	fp := fingerprint(kind, payload)

	s.submitMu.Lock()
	defer s.submitMu.Unlock()

	existing, err := s.store.byFingerprint(fp)
	if err == nil {
		s.logger.Debug("Task deduplicated",
			zap.String("id", existing.ID),
			zap.String("fingerprint", fp))
		return existing, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	now := time.Now()
	t := &Task{
		ID:          uuid.New().String(),
		Kind:        kind,
		State:       StateQueued,
		Payload:     string(payload),
		Fingerprint: fp,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.store.insert(t); err != nil {
		return nil, err
	}

	s.logger.Info("Task submitted", zap.String("id", t.ID), zap.String("kind", string(kind)))
	s.dispatch(t)
	return t, nil
}

// Get returns the task with the given ID.
func (s *Service) Get(id string) (*Task, error) {
	return s.store.get(id)
}

// Close stops accepting slot claims, waits for in-flight tasks, and closes
// the store. Tasks still queued stay queued and are requeued on next start.
func (s *Service) Close() error {
	s.cancel()
	s.wg.Wait()
	return s.store.Close()
}

func (s *Service) dispatch(t *Task) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		select {
		case s.slots <- struct{}{}:
		case <-s.ctx.Done():
			// Never claimed: the task stays queued for the next start.
			return
		}
		defer func() { <-s.slots }()
		s.execute(t)
	}()
}

func (s *Service) execute(t *Task) {
	if err := s.store.setState(t.ID, StateRunning); err != nil {
		s.logger.Error("Failed to mark task running", zap.String("id", t.ID), zap.Error(err))
		return
	}
	s.logger.Info("Task started", zap.String("id", t.ID), zap.String("kind", string(t.Kind)))

	result, runErr := s.run(s.ctx, t)
	if runErr != nil {
		if err := s.store.finish(t.ID, StateFailed, nil, runErr.Error()); err != nil {
			s.logger.Error("Failed to record task failure", zap.String("id", t.ID), zap.Error(err))
		}
		s.logger.Warn("Task failed", zap.String("id", t.ID), zap.Error(runErr))
		return
	}

	raw, err := json.Marshal(result)
	if err != nil {
		err = fmt.Errorf("failed to encode result: %w", err)
		if ferr := s.store.finish(t.ID, StateFailed, nil, err.Error()); ferr != nil {
			s.logger.Error("Failed to record task failure", zap.String("id", t.ID), zap.Error(ferr))
		}
		s.logger.Warn("Task failed", zap.String("id", t.ID), zap.Error(err))
		return
	}
	if err := s.store.finish(t.ID, StateSucceeded, raw, ""); err != nil {
		s.logger.Error("Failed to record task result", zap.String("id", t.ID), zap.Error(err))
		return
	}
	s.logger.Info("Task finished", zap.String("id", t.ID), zap.String("kind", string(t.Kind)))
}

func (s *Service) run(ctx context.Context, t *Task) (any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	switch t.Kind {
	case KindAnalyzeCode:
		var p CodePayload
		if err := json.Unmarshal([]byte(t.Payload), &p); err != nil {
			return nil, fmt.Errorf("failed to decode payload: %w", err)
		}
		label := p.FileName
		if label == "" {
			label = "code"
		}
		return AnalyzeCode(p.Code, label, s.config.MaxTokenSize), nil

	case KindAnalyzeFile:
		var p FilePayload
		if err := json.Unmarshal([]byte(t.Payload), &p); err != nil {
			return nil, fmt.Errorf("failed to decode payload: %w", err)
		}
		return AnalyzeFile(p.Path, s.config.MaxTokenSize)

	case KindAnalyzeDirectory:
		var p DirectoryPayload
		if err := json.Unmarshal([]byte(t.Payload), &p); err != nil {
			return nil, fmt.Errorf("failed to decode payload: %w", err)
		}
		return AnalyzeDirectory(ctx, p.Dir, s.config.MaxTokenSize)
	}
	return nil, fmt.Errorf("unknown task kind %q", t.Kind)
}
