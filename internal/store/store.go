// Package store optionally persists scan findings to PostgreSQL via
// pgx/v5, so a CI pipeline can diff findings between runs instead of only
// ever seeing the latest scan. It is never required for a scan to
// produce results: the in-memory pkg/analysis.Analysis is authoritative,
// and a caller with no --db-dsn never touches this package.
//
// The idempotent "CREATE TABLE IF NOT EXISTS" bootstrap in ApplyDDL
// mirrors this module's schema-migration ancestry's own DDL-application
// step, repurposed here for two small tables instead of a generated
// authorization schema.
package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pthm/rbacflow/pkg/report"
)

const ddl = `
CREATE TABLE IF NOT EXISTS rbacflow_runs (
	id BIGSERIAL PRIMARY KEY,
	policy_path TEXT NOT NULL,
	started_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS rbacflow_findings (
	id BIGSERIAL PRIMARY KEY,
	run_id BIGINT NOT NULL REFERENCES rbacflow_runs(id) ON DELETE CASCADE,
	kind TEXT NOT NULL,
	entry TEXT NOT NULL,
	entry2 TEXT NOT NULL DEFAULT '',
	target TEXT NOT NULL DEFAULT '',
	intermediate TEXT NOT NULL DEFAULT '',
	object TEXT NOT NULL DEFAULT '',
	state TEXT NOT NULL DEFAULT ''
);
`

// Store is a thin wrapper over a pgxpool.Pool. The zero value is not
// usable; construct with Open.
type Store struct {
	pool *pgxpool.Pool
}

// Open connects to dsn and returns a Store. Callers must Close it.
func Open(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("store: connect: %w", err)
	}
	return &Store{pool: pool}, nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() {
	s.pool.Close()
}

// ApplyDDL creates the rbacflow_runs/rbacflow_findings tables if they do
// not already exist.
func (s *Store) ApplyDDL(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("store: apply ddl: %w", err)
	}
	return nil
}

// SaveRun records one scan run and its findings, returning the new run
// id.
func (s *Store) SaveRun(ctx context.Context, policyPath string, findings []report.Finding) (int64, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("store: begin: %w", err)
	}
	defer tx.Rollback(ctx)

	var runID int64
	if err := tx.QueryRow(ctx,
		`INSERT INTO rbacflow_runs (policy_path) VALUES ($1) RETURNING id`,
		policyPath,
	).Scan(&runID); err != nil {
		return 0, fmt.Errorf("store: insert run: %w", err)
	}

	for _, f := range findings {
		if _, err := tx.Exec(ctx,
			`INSERT INTO rbacflow_findings
				(run_id, kind, entry, entry2, target, intermediate, object, state)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			runID, string(f.Kind), f.Entry, f.Entry2, f.Target, f.Intermediate, f.Object, f.State,
		); err != nil {
			return 0, fmt.Errorf("store: insert finding: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("store: commit: %w", err)
	}
	return runID, nil
}

// FindingsSince returns every finding recorded for runs with id > afterRun,
// letting a caller compute what is new since a previous scan.
func (s *Store) FindingsSince(ctx context.Context, afterRun int64) ([]report.Finding, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT kind, entry, entry2, target, intermediate, object, state
		 FROM rbacflow_findings WHERE run_id > $1 ORDER BY id`,
		afterRun,
	)
	if err != nil {
		return nil, fmt.Errorf("store: query findings: %w", err)
	}
	defer rows.Close()

	var out []report.Finding
	for rows.Next() {
		var f report.Finding
		var kind string
		if err := rows.Scan(&kind, &f.Entry, &f.Entry2, &f.Target, &f.Intermediate, &f.Object, &f.State); err != nil {
			return nil, fmt.Errorf("store: scan finding: %w", err)
		}
		f.Kind = report.Kind(kind)
		out = append(out, f)
	}
	return out, rows.Err()
}
