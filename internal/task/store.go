package task

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// Store persists task records in SQLite.
type Store struct {
	db *sql.DB
}

// NewStore opens (creating if needed) the task database at path.
func NewStore(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	// WAL plus synchronous=NORMAL keeps writes fast while WAL covers crash
	// recovery; busy_timeout rides out a concurrent writer.
	for _, pragma := range []string{
		"PRAGMA busy_timeout = 5000",
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to apply %s: %w", pragma, err)
		}
	}

	store := &Store{db: db}
	if err := store.initialize(); err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

// initialize creates the required tables.
func (s *Store) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS tasks (
		id TEXT PRIMARY KEY,
		kind TEXT NOT NULL,
		payload TEXT NOT NULL,
		fingerprint TEXT NOT NULL,
		state TEXT NOT NULL,
		result TEXT NOT NULL DEFAULT '',
		error TEXT NOT NULL DEFAULT '',
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_tasks_fingerprint ON tasks(fingerprint);
	CREATE INDEX IF NOT EXISTS idx_tasks_state ON tasks(state);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create tables: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) insert(t *Task) error {
	_, err := s.db.Exec(
		`INSERT INTO tasks (id, kind, payload, fingerprint, state, result, error, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, string(t.Kind), t.Payload, t.Fingerprint, string(t.State),
		string(t.Result), t.Error, t.CreatedAt, t.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert task: %w", err)
	}
	return nil
}

func (s *Store) get(id string) (*Task, error) {
	row := s.db.QueryRow(
		`SELECT id, kind, payload, fingerprint, state, result, error, created_at, updated_at
		 FROM tasks WHERE id = ?`, id)
	return scanTask(row)
}

// byFingerprint returns the newest non-failed task with the given
// fingerprint. Failed tasks do not satisfy a resubmission.
func (s *Store) byFingerprint(fp string) (*Task, error) {
	row := s.db.QueryRow(
		`SELECT id, kind, payload, fingerprint, state, result, error, created_at, updated_at
		 FROM tasks WHERE fingerprint = ? AND state != ? ORDER BY created_at DESC LIMIT 1`,
		fp, string(StateFailed))
	return scanTask(row)
}

// pending returns queued and running tasks in submission order.
func (s *Store) pending() ([]*Task, error) {
	rows, err := s.db.Query(
		`SELECT id, kind, payload, fingerprint, state, result, error, created_at, updated_at
		 FROM tasks WHERE state IN (?, ?) ORDER BY created_at`,
		string(StateQueued), string(StateRunning))
	if err != nil {
		return nil, fmt.Errorf("failed to query pending tasks: %w", err)
	}
	defer rows.Close()

	var out []*Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read pending tasks: %w", err)
	}
	return out, nil
}

func (s *Store) setState(id string, state State) error {
	res, err := s.db.Exec(
		`UPDATE tasks SET state = ?, updated_at = ? WHERE id = ?`,
		string(state), time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to update task state: %w", err)
	}
	return requireRow(res)
}

// finish records the terminal state together with the result or error text.
func (s *Store) finish(id string, state State, result []byte, errMsg string) error {
	res, err := s.db.Exec(
		`UPDATE tasks SET state = ?, result = ?, error = ?, updated_at = ? WHERE id = ?`,
		string(state), string(result), errMsg, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to finish task: %w", err)
	}
	return requireRow(res)
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(row rowScanner) (*Task, error) {
	var t Task
	var kind, state, result string
	err := row.Scan(&t.ID, &kind, &t.Payload, &t.Fingerprint, &state,
		&result, &t.Error, &t.CreatedAt, &t.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan task: %w", err)
	}
	t.Kind = Kind(kind)
	t.State = State(state)
	if result != "" {
		t.Result = []byte(result)
	}
	return &t, nil
}
