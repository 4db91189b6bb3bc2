// Package state records check runs and their diagnostics in SQLite.
package state

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // registers the "sqlite" driver
)

// MemoryPath opens a private in-memory database.
const MemoryPath = ":memory:"

var (
	// ErrNotOpen is returned by every operation before Open.
	ErrNotOpen = errors.New("database not opened")
	// ErrRunNotFound is returned for unknown run IDs.
	ErrRunNotFound = errors.New("run not found")
)

// RunStatus is the lifecycle state of a check run.
type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
)

// Run is one recorded check.
type Run struct {
	ID            string     `json:"id"`
	StartedAt     time.Time  `json:"started_at"`
	CompletedAt   *time.Time `json:"completed_at,omitempty"`
	Status        RunStatus  `json:"status"`
	AliasCount    int        `json:"alias_count"`
	CircularCount int        `json:"circular_count"`
	Error         string     `json:"error,omitempty"`
}

// Duration returns how long the run took, or zero while it is running.
func (r *Run) Duration() time.Duration {
	if r.CompletedAt == nil {
		return 0
	}
	return r.CompletedAt.Sub(r.StartedAt)
}

// DiagnosticRecord is a persisted diagnostic.
type DiagnosticRecord struct {
	RunID string   `json:"run_id"`
	Alias string   `json:"alias"`
	Code  string   `json:"code"`
	Cycle []string `json:"cycle"`
	File  string   `json:"file"`
	Line  int      `json:"line"`
}

// SQLiteStore persists runs using SQLite.
type SQLiteStore struct {
	db     *sql.DB
	path   string
	logger *slog.Logger
	now    func() time.Time
}

// NewSQLiteStore creates a store. A nil logger discards output.
func NewSQLiteStore(logger *slog.Logger) *SQLiteStore {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &SQLiteStore{
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// NewWithDB wraps an already opened database.
func NewWithDB(db *sql.DB, logger *slog.Logger) *SQLiteStore {
	s := NewSQLiteStore(logger)
	s.db = db
	return s
}

// Open opens (creating if needed) the database at path.
// Use MemoryPath for an in-memory database.
func (s *SQLiteStore) Open(path string) error {
	var dsn string
	if path == MemoryPath {
		dsn = ":memory:?_pragma=foreign_keys(1)"
	} else {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return fmt.Errorf("failed to create state directory: %w", err)
			}
		}
		dsn = fmt.Sprintf("file:%s?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return fmt.Errorf("failed to open sqlite database: %w", err)
	}
	if path == MemoryPath {
		// Each connection would otherwise see its own empty database.
		db.SetMaxOpenConns(1)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping sqlite database: %w", err)
	}

	s.logger.Debug("opened state database", slog.String("path", path))
	s.db = db
	s.path = path
	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

// Path returns the path passed to Open.
func (s *SQLiteStore) Path() string {
	return s.path
}

func generateID() string {
	return uuid.New().String()
}

// storedTimeLayout is fixed width so that stored timestamps sort lexically.
const storedTimeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(storedTimeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid timestamp %q: %w", s, err)
	}
	return t, nil
}
