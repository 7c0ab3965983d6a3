package monitor

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/aretw0/colloquy/internal/logging"
	"github.com/aretw0/colloquy/pkg/ports"
)

//go:embed schema.sql
var schemaSQL string

// SQLite keeps a durable log of recognition calls.
type SQLite struct {
	db     *sql.DB
	logger *slog.Logger
}

// SQLiteOption configures a SQLite monitor.
type SQLiteOption func(*SQLite)

// WithSQLiteLogger sets the logger used to report write failures.
func WithSQLiteLogger(l *slog.Logger) SQLiteOption {
	return func(s *SQLite) {
		s.logger = l
	}
}

// OpenSQLite creates or opens the analytics database at path. Use ":memory:"
// for a throwaway log.
func OpenSQLite(path string, opts ...SQLiteOption) (*SQLite, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open analytics database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to analytics database: %w", err)
	}

	// SQLite supports a single writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply analytics schema: %w", err)
	}

	s := &SQLite{db: db, logger: logging.NewNop()}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Observe appends rec to the log. Write failures are logged, never returned.
func (s *SQLite) Observe(ctx context.Context, rec ports.RecognitionRecord) {
	var errText sql.NullString
	if rec.Err != nil {
		errText = sql.NullString{String: rec.Err.Error(), Valid: true}
	}
	ts := rec.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	_, err := s.db.ExecContext(context.WithoutCancel(ctx), `
		INSERT INTO recognitions
			(recorded_at, session_id, state, input, processed, intent, confidence, latency_us, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		ts.UnixNano(), rec.SessionID, rec.State, rec.Input, rec.Processed,
		rec.Event, rec.Confidence, rec.Latency.Microseconds(), errText,
	)
	if err != nil {
		s.logger.Warn("Failed to record recognition", "session_id", rec.SessionID, "err", err)
	}
}

// IntentSummary aggregates the log for one intent.
type IntentSummary struct {
	Intent            string
	Count             int
	AverageConfidence float64
	Errors            int
}

// Summary aggregates the log per intent, most frequent first. Failed calls
// are grouped under the empty intent name.
func (s *SQLite) Summary(ctx context.Context) ([]IntentSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT intent, COUNT(*), COALESCE(AVG(confidence), 0), COUNT(error)
		FROM recognitions
		GROUP BY intent
		ORDER BY COUNT(*) DESC, intent ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query analytics: %w", err)
	}
	defer rows.Close()

	var out []IntentSummary
	for rows.Next() {
		var sum IntentSummary
		if err := rows.Scan(&sum.Intent, &sum.Count, &sum.AverageConfidence, &sum.Errors); err != nil {
			return nil, fmt.Errorf("failed to scan analytics row: %w", err)
		}
		out = append(out, sum)
	}
	return out, rows.Err()
}

// Inputs returns the raw inputs recorded for intent, oldest first. It is
// mostly useful to review what ended in the fallback intent.
func (s *SQLite) Inputs(ctx context.Context, intent string, limit int) ([]string, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT input FROM recognitions WHERE intent = ? ORDER BY id ASC LIMIT ?`, intent, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query analytics: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var in string
		if err := rows.Scan(&in); err != nil {
			return nil, err
		}
		out = append(out, in)
	}
	return out, rows.Err()
}

// Close closes the database.
func (s *SQLite) Close() error {
	return s.db.Close()
}

var _ ports.Monitor = (*SQLite)(nil)
