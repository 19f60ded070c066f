package store

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/valuation-cli/internal/db"
	"github.com/sells-group/valuation-cli/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}
	pgxCfg.MaxConns = 10
	pgxCfg.MinConns = 2
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// Pool returns the underlying database pool for subsystems that need
// direct query access (e.g., bulk batch imports).
func (s *PostgresStore) Pool() db.Pool {
	return s.pool
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS runs (
	id         TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	address    TEXT NOT NULL,
	request    JSONB NOT NULL,
	status     TEXT NOT NULL DEFAULT 'running',
	bundle     JSONB,
	error      TEXT,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
CREATE INDEX IF NOT EXISTS idx_runs_address ON runs(address);
CREATE INDEX IF NOT EXISTS idx_runs_created_at ON runs(created_at DESC);

CREATE TABLE IF NOT EXISTS run_comparables (
	run_id      TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
	address     TEXT NOT NULL,
	bedrooms    INT,
	bathrooms   DOUBLE PRECISION,
	square_feet INT,
	sale_price  BIGINT,
	sale_date   TEXT,
	listing_url TEXT,
	provenance  TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_run_comparables_run ON run_comparables(run_id);
`

var comparableColumns = []string{
	"run_id", "address", "bedrooms", "bathrooms",
	"square_feet", "sale_price", "sale_date", "listing_url", "provenance",
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) CreateRun(ctx context.Context, req model.EnrichmentRequest) (*Run, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	reqJSON, err := json.Marshal(req)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: marshal request")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO runs (id, address, request, status, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6)`,
		id, req.Address, reqJSON, string(RunStatusRunning), now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert run")
	}

	return &Run{
		ID:        id,
		Request:   req,
		Status:    RunStatusRunning,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func (s *PostgresStore) CompleteRun(ctx context.Context, runID string, bundle *model.EnrichmentBundle) error {
	bundleJSON, err := json.Marshal(bundle)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal bundle")
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE runs SET bundle = $1, status = $2, updated_at = $3 WHERE id = $4`,
		bundleJSON, string(RunStatusComplete), time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: complete run %s", runID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("postgres: run %s not found", runID)
	}

	return s.replaceComparables(ctx, runID, bundle)
}

// replaceComparables flattens the bundle's comparables into run_comparables
// so they can be queried without unpacking the bundle JSON. Re-completing a
// run replaces its rows.
func (s *PostgresStore) replaceComparables(ctx context.Context, runID string, bundle *model.EnrichmentBundle) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM run_comparables WHERE run_id = $1`, runID); err != nil {
		return eris.Wrapf(err, "postgres: clear comparables for run %s", runID)
	}
	if bundle == nil || len(bundle.Comparables) == 0 {
		return nil
	}

	rows := make([][]any, 0, len(bundle.Comparables))
	for _, c := range bundle.Comparables {
		rows = append(rows, []any{
			runID, c.Address, c.Bedrooms, c.Bathrooms,
			c.SquareFeet, c.SalePrice, c.SaleDate, c.ListingURL, string(c.Provenance),
		})
	}
	if _, err := db.CopyInto(ctx, s.pool, "run_comparables", comparableColumns, rows); err != nil {
		return eris.Wrapf(err, "postgres: copy comparables for run %s", runID)
	}
	return nil
}

func (s *PostgresStore) FailRun(ctx context.Context, runID string, cause string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE runs SET error = $1, status = $2, updated_at = $3 WHERE id = $4`,
		cause, string(RunStatusFailed), time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: fail run %s", runID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("postgres: run %s not found", runID)
	}
	return nil
}

func (s *PostgresStore) GetRun(ctx context.Context, runID string) (*Run, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, request, status, bundle, error, created_at, updated_at FROM runs WHERE id = $1`,
		runID,
	)
	r, err := scanPgRun(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return r, err
}

func (s *PostgresStore) ListRuns(ctx context.Context, filter RunFilter) ([]Run, error) {
	query := `SELECT id, request, status, bundle, error, created_at, updated_at FROM runs WHERE 1=1`
	var args []any
	arg := func(v any) string {
		args = append(args, v)
		return "$" + strconv.Itoa(len(args))
	}

	if filter.Status != "" {
		query += ` AND status = ` + arg(string(filter.Status))
	}
	if filter.Address != "" {
		query += ` AND address = ` + arg(filter.Address)
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ` + arg(limit)

	if filter.Offset > 0 {
		query += ` OFFSET ` + arg(filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list runs")
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		r, err := scanPgRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *r)
	}
	return runs, eris.Wrap(rows.Err(), "postgres: list runs iterate")
}

func scanPgRun(row pgx.Row) (*Run, error) {
	var r Run
	var reqJSON []byte
	var status string
	var bundleJSON []byte
	var errMsg *string

	if err := row.Scan(&r.ID, &reqJSON, &status, &bundleJSON, &errMsg, &r.CreatedAt, &r.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, eris.Wrap(err, "postgres: scan run")
	}

	r.Status = RunStatus(status)
	if err := json.Unmarshal(reqJSON, &r.Request); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal request")
	}
	if len(bundleJSON) > 0 {
		var b model.EnrichmentBundle
		if err := json.Unmarshal(bundleJSON, &b); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal bundle")
		}
		r.Bundle = &b
	}
	if errMsg != nil {
		r.Error = *errMsg
	}
	return &r, nil
}
