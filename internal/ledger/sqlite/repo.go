// Package sqlite implements a SQLite-backed ledger.Repository using
// database/sql and the pure-Go modernc.org/sqlite driver.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"csvingest/internal/ledger"
)

const schema = `CREATE TABLE IF NOT EXISTS ingest_runs (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	job         TEXT    NOT NULL,
	source      TEXT    NOT NULL,
	started_at  TEXT    NOT NULL,
	duration_ms INTEGER NOT NULL,
	strategy    TEXT    NOT NULL,
	compression TEXT    NOT NULL,
	charset     TEXT    NOT NULL,
	row_count   INTEGER NOT NULL,
	headers     TEXT    NOT NULL,
	fingerprint TEXT    NOT NULL,
	checksum    INTEGER NOT NULL,
	verified    INTEGER NOT NULL,
	error       TEXT    NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS ingest_runs_job_id ON ingest_runs (job, id);`

// Config holds SQLite ledger configuration.
type Config struct {
	// DSN is a SQLite connection string or file path, e.g.:
	//   "file:runs.db?_pragma=busy_timeout(5000)"
	//   ":memory:"
	DSN string
}

// Repository is a SQLite-backed ledger.
type Repository struct {
	db *sql.DB
}

// NewRepository opens the database, creates the runs table if needed and
// returns a Repository plus a Close function for cleanup.
func NewRepository(ctx context.Context, cfg Config) (*Repository, func(), error) {
	if strings.TrimSpace(cfg.DSN) == "" {
		return nil, nil, fmt.Errorf("sqlite: DSN must not be empty")
	}

	db, err := sql.Open("sqlite", cfg.DSN)
	if err != nil {
		return nil, nil, fmt.Errorf("sqlite: open: %w", err)
	}
	// A single connection keeps ":memory:" databases alive and serializes
	// writers, which is all a ledger needs.
	db.SetMaxOpenConns(1)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("sqlite: ping: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("sqlite: create schema: %w", err)
	}

	return &Repository{db: db}, func() { db.Close() }, nil
}

// Record implements ledger.Repository.
func (r *Repository) Record(ctx context.Context, run ledger.Run) error {
	headers, err := json.Marshal(run.Headers)
	if err != nil {
		return fmt.Errorf("sqlite: encode headers: %w", err)
	}
	verified := 0
	if run.Verified {
		verified = 1
	}
	_, err = r.db.ExecContext(ctx, `INSERT INTO ingest_runs
		(job, source, started_at, duration_ms, strategy, compression, charset,
		 row_count, headers, fingerprint, checksum, verified, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.Job, run.Source, run.StartedAt.UTC().Format(time.RFC3339Nano),
		run.Duration.Milliseconds(), run.Strategy, run.Compression, run.Charset,
		run.Rows, string(headers), run.Fingerprint, int64(run.Checksum), verified, run.Error,
	)
	if err != nil {
		return fmt.Errorf("sqlite: insert run: %w", err)
	}
	return nil
}

// LastFingerprint implements ledger.Repository.
func (r *Repository) LastFingerprint(ctx context.Context, job string) (string, bool, error) {
	var fp string
	err := r.db.QueryRowContext(ctx,
		`SELECT fingerprint FROM ingest_runs WHERE job = ? AND error = '' ORDER BY id DESC LIMIT 1`,
		job,
	).Scan(&fp)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("sqlite: last fingerprint: %w", err)
	}
	return fp, true, nil
}

// Runs returns the recorded runs of job, oldest first.
func (r *Repository) Runs(ctx context.Context, job string) ([]ledger.Run, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT job, source, started_at, duration_ms, strategy,
		compression, charset, row_count, headers, fingerprint, checksum, verified, error
		FROM ingest_runs WHERE job = ? ORDER BY id`, job)
	if err != nil {
		return nil, fmt.Errorf("sqlite: query runs: %w", err)
	}
	defer rows.Close()

	var out []ledger.Run
	for rows.Next() {
		var (
			run      ledger.Run
			started  string
			durMS    int64
			headers  string
			checksum int64
		)
		if err := rows.Scan(&run.Job, &run.Source, &started, &durMS, &run.Strategy,
			&run.Compression, &run.Charset, &run.Rows, &headers, &run.Fingerprint,
			&checksum, &run.Verified, &run.Error); err != nil {
			return nil, fmt.Errorf("sqlite: scan run: %w", err)
		}
		if run.StartedAt, err = time.Parse(time.RFC3339Nano, started); err != nil {
			return nil, fmt.Errorf("sqlite: parse started_at: %w", err)
		}
		if err := json.Unmarshal([]byte(headers), &run.Headers); err != nil {
			return nil, fmt.Errorf("sqlite: decode headers: %w", err)
		}
		run.Duration = time.Duration(durMS) * time.Millisecond
		run.Checksum = uint32(checksum)
		out = append(out, run)
	}
	return out, rows.Err()
}
