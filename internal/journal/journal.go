// Package journal keeps a Postgres record of every dispatched partner call
package journal

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq" // PostgreSQL driver

	"github.com/alexbotov/pokepay-go/internal/logging"
	"github.com/alexbotov/pokepay-go/pkg/pokepay"
)

// DefaultLimit caps Recent when the filter sets no limit
const DefaultLimit = 100

// Entry is one journaled call. Request and reply bodies are never stored.
type Entry struct {
	ID            string    `json:"id"`
	PartnerCallID string    `json:"partner_call_id"`
	Operation     string    `json:"operation"`
	Method        string    `json:"method"`
	Path          string    `json:"path"`
	StatusCode    int       `json:"status_code"`
	OK            bool      `json:"ok"`
	ErrorKind     string    `json:"error_kind,omitempty"`
	Error         string    `json:"error,omitempty"`
	StartedAt     time.Time `json:"started_at"`
	ElapsedMS     int64     `json:"elapsed_ms"`
}

// EntryFromRecord converts a client call record
func EntryFromRecord(rec pokepay.CallRecord) *Entry {
	e := &Entry{
		ID:            uuid.New().String(),
		PartnerCallID: rec.PartnerCallID,
		Operation:     rec.Operation,
		Method:        string(rec.Method),
		Path:          rec.Path,
		StatusCode:    rec.StatusCode,
		OK:            rec.OK,
		StartedAt:     rec.StartedAt.UTC(),
		ElapsedMS:     rec.Elapsed.Milliseconds(),
	}
	if rec.Err != nil {
		e.ErrorKind = pokepay.ErrorKind(rec.Err)
		e.Error = rec.Err.Error()
	}
	return e
}

// Store writes and reads journal entries
type Store struct {
	db      *sql.DB
	logger  *slog.Logger
	timeout time.Duration
}

// Open connects to Postgres and verifies the connection
func Open(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return New(db, nil), nil
}

// New wraps an existing connection pool
func New(db *sql.DB, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{db: db, logger: logger, timeout: 5 * time.Second}
}

// Close closes the connection pool
func (s *Store) Close() error {
	return s.db.Close()
}

// Migrate creates the journal table and its indexes
func (s *Store) Migrate(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS partner_calls (
		id UUID PRIMARY KEY,
		partner_call_id UUID NOT NULL,
		operation VARCHAR(255) NOT NULL,
		method VARCHAR(10) NOT NULL,
		path TEXT NOT NULL,
		status_code INTEGER NOT NULL DEFAULT 0,
		ok BOOLEAN NOT NULL DEFAULT FALSE,
		error_kind VARCHAR(50) NOT NULL DEFAULT '',
		error TEXT NOT NULL DEFAULT '',
		started_at TIMESTAMPTZ NOT NULL,
		elapsed_ms BIGINT NOT NULL DEFAULT 0
	);

	CREATE UNIQUE INDEX IF NOT EXISTS idx_partner_calls_call_id ON partner_calls(partner_call_id);
	CREATE INDEX IF NOT EXISTS idx_partner_calls_started ON partner_calls(started_at);
	CREATE INDEX IF NOT EXISTS idx_partner_calls_operation ON partner_calls(operation);
	`

	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to migrate journal: %w", err)
	}
	return nil
}

// Reset drops the journal table
func (s *Store) Reset(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DROP TABLE IF EXISTS partner_calls`); err != nil {
		return fmt.Errorf("failed to drop journal: %w", err)
	}
	return nil
}

// Record inserts one entry
func (s *Store) Record(ctx context.Context, e *Entry) error {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	if e.StartedAt.IsZero() {
		e.StartedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO partner_calls (id, partner_call_id, operation, method, path, status_code, ok, error_kind, error, started_at, elapsed_ms)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`, e.ID, e.PartnerCallID, e.Operation, e.Method, e.Path, e.StatusCode, e.OK,
		e.ErrorKind, e.Error, e.StartedAt, e.ElapsedMS)
	if err != nil {
		return fmt.Errorf("failed to record call %s: %w", e.PartnerCallID, err)
	}
	return nil
}

// ObserveCall journals rec. Write failures are logged and never reach the
// caller.
func (s *Store) ObserveCall(rec pokepay.CallRecord) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	if err := s.Record(ctx, EntryFromRecord(rec)); err != nil {
		s.logger.Warn("journal write failed", logging.CallID(rec.PartnerCallID), logging.Error(err))
	}
}

// Filter selects journal entries
type Filter struct {
	Operation string
	ErrorKind string
	// FailedOnly keeps non-2xx results and calls that returned an error
	FailedOnly bool
	From       time.Time
	To         time.Time
	Limit      int
}

// Recent returns entries newest first
func (s *Store) Recent(ctx context.Context, filter *Filter) ([]*Entry, error) {
	query, args := buildQuery(filter)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query journal: %w", err)
	}
	defer rows.Close()

	var entries []*Entry
	for rows.Next() {
		var e Entry
		err := rows.Scan(&e.ID, &e.PartnerCallID, &e.Operation, &e.Method, &e.Path,
			&e.StatusCode, &e.OK, &e.ErrorKind, &e.Error, &e.StartedAt, &e.ElapsedMS)
		if err != nil {
			return nil, fmt.Errorf("failed to scan journal row: %w", err)
		}
		entries = append(entries, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read journal rows: %w", err)
	}

	return entries, nil
}

func buildQuery(filter *Filter) (string, []any) {
	query := `SELECT id, partner_call_id, operation, method, path, status_code, ok, error_kind, error, started_at, elapsed_ms
			  FROM partner_calls WHERE 1=1`
	args := []any{}
	paramIdx := 1

	if filter != nil {
		if filter.Operation != "" {
			query += fmt.Sprintf(" AND operation = $%d", paramIdx)
			args = append(args, filter.Operation)
			paramIdx++
		}
		if filter.ErrorKind != "" {
			query += fmt.Sprintf(" AND error_kind = $%d", paramIdx)
			args = append(args, filter.ErrorKind)
			paramIdx++
		}
		if filter.FailedOnly {
			query += " AND (ok = FALSE OR error_kind <> '')"
		}
		if !filter.From.IsZero() {
			query += fmt.Sprintf(" AND started_at >= $%d", paramIdx)
			args = append(args, filter.From)
			paramIdx++
		}
		if !filter.To.IsZero() {
			query += fmt.Sprintf(" AND started_at <= $%d", paramIdx)
			args = append(args, filter.To)
			paramIdx++
		}
	}

	query += " ORDER BY started_at DESC"

	limit := DefaultLimit
	if filter != nil && filter.Limit > 0 {
		limit = filter.Limit
	}
	query += fmt.Sprintf(" LIMIT $%d", paramIdx)
	args = append(args, limit)

	return query, args
}
