// Package postgres implements a Postgres-backed ledger.Repository using a
// pgx v5 connection pool.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"csvingest/internal/ledger"
)

// DefaultTable is used when Config.Table is empty.
const DefaultTable = "public.ingest_runs"

// Config holds Postgres ledger configuration.
type Config struct {
	DSN   string // connection string for pgxpool
	Table string // fully qualified table name; DefaultTable when empty
}

// Repository is a Postgres-backed ledger.
type Repository struct {
	pool  *pgxpool.Pool
	table string
}

// NewRepository connects, creates the runs table if needed and returns a
// Repository plus a Close function for cleanup.
func NewRepository(ctx context.Context, cfg Config) (*Repository, func(), error) {
	if strings.TrimSpace(cfg.DSN) == "" {
		return nil, nil, fmt.Errorf("postgres: DSN must not be empty")
	}
	table := cfg.Table
	if table == "" {
		table = DefaultTable
	}

	pool, err := pgxpool.New(ctx, cfg.DSN)
	if err != nil {
		return nil, nil, fmt.Errorf("pgxpool: %w", err)
	}
	r := &Repository{pool: pool, table: pgFQN(table)}
	if _, err := pool.Exec(ctx, createTableSQL(r.table)); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("postgres: create ledger table: %w", err)
	}
	return r, func() { pool.Close() }, nil
}

func createTableSQL(fqTable string) string {
	return fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	id          BIGSERIAL PRIMARY KEY,
	job         TEXT        NOT NULL,
	source      TEXT        NOT NULL,
	started_at  TIMESTAMPTZ NOT NULL,
	duration_ms BIGINT      NOT NULL,
	strategy    TEXT        NOT NULL,
	compression TEXT        NOT NULL,
	charset     TEXT        NOT NULL,
	row_count   BIGINT      NOT NULL,
	headers     TEXT[]      NOT NULL,
	fingerprint TEXT        NOT NULL,
	checksum    BIGINT      NOT NULL,
	verified    BOOLEAN     NOT NULL,
	error       TEXT        NOT NULL DEFAULT ''
)`, fqTable)
}

// Record implements ledger.Repository.
func (r *Repository) Record(ctx context.Context, run ledger.Run) error {
	headers := run.Headers
	if headers == nil {
		headers = []string{}
	}
	_, err := r.pool.Exec(ctx, fmt.Sprintf(`INSERT INTO %s
		(job, source, started_at, duration_ms, strategy, compression, charset,
		 row_count, headers, fingerprint, checksum, verified, error)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`, r.table),
		run.Job, run.Source, run.StartedAt, run.Duration.Milliseconds(), run.Strategy,
		run.Compression, run.Charset, run.Rows, headers, run.Fingerprint,
		int64(run.Checksum), run.Verified, run.Error,
	)
	if err != nil {
		return fmt.Errorf("postgres: insert run: %w", err)
	}
	return nil
}

// LastFingerprint implements ledger.Repository.
func (r *Repository) LastFingerprint(ctx context.Context, job string) (string, bool, error) {
	var fp string
	err := r.pool.QueryRow(ctx, fmt.Sprintf(
		`SELECT fingerprint FROM %s WHERE job = $1 AND error = '' ORDER BY id DESC LIMIT 1`, r.table),
		job,
	).Scan(&fp)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("postgres: last fingerprint: %w", err)
	}
	return fp, true, nil
}

// pgIdent quotes a single identifier.
func pgIdent(s string) string {
	return pgx.Identifier{s}.Sanitize()
}

// pgFQN quotes a possibly schema-qualified table name.
func pgFQN(name string) string {
	parts := strings.Split(name, ".")
	for i, p := range parts {
		parts[i] = pgIdent(p)
	}
	return strings.Join(parts, ".")
}
