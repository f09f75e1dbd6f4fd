package execution

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	_ "github.com/lib/pq" // Postgres driver, registered for database/sql
)

// PostgresSink persists audit records to a single append-only table. It is
// optional: the server falls back to the in-memory RingBuffer alone when
// ALGO_AUDIT_DSN is unset.
type PostgresSink struct {
	db *sql.DB
}

const createTableSQL = `
CREATE TABLE IF NOT EXISTS execution_audit_log (
	task_id      TEXT NOT NULL,
	request_id   TEXT NOT NULL,
	algorithm    TEXT NOT NULL,
	version      TEXT NOT NULL,
	status       TEXT NOT NULL,
	worker_pid   INTEGER,
	error_kind   TEXT,
	error_detail TEXT,
	started_at   TIMESTAMPTZ NOT NULL,
	ended_at     TIMESTAMPTZ NOT NULL,
	metadata     JSONB,
	PRIMARY KEY (task_id)
)`

// NewPostgresSink opens dsn and ensures the audit table exists.
func NewPostgresSink(dsn string) (*PostgresSink, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres audit sink: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping postgres audit sink: %w", err)
	}
	if _, err := db.Exec(createTableSQL); err != nil {
		return nil, fmt.Errorf("create audit table: %w", err)
	}
	return &PostgresSink{db: db}, nil
}

// Write inserts rec, ignoring a duplicate task_id (the result listener only
// ever publishes a terminal event once per task, per spec.md §3's "exactly
// one Result" invariant, but a replayed write should not be fatal).
func (s *PostgresSink) Write(ctx context.Context, rec Record) error {
	var metadata []byte
	if rec.Metadata != nil {
		var err error
		metadata, err = json.Marshal(rec.Metadata)
		if err != nil {
			return fmt.Errorf("marshal audit metadata: %w", err)
		}
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO execution_audit_log
			(task_id, request_id, algorithm, version, status, worker_pid, error_kind, error_detail, started_at, ended_at, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (task_id) DO NOTHING`,
		rec.TaskID, rec.RequestID, rec.Algorithm, rec.Version, rec.Status,
		rec.WorkerPID, rec.ErrorKind, rec.ErrorDetail, rec.StartedAt, rec.EndedAt, metadata,
	)
	if err != nil {
		return fmt.Errorf("insert audit record: %w", err)
	}
	return nil
}

// Close releases the underlying database handle.
func (s *PostgresSink) Close() error {
	return s.db.Close()
}
