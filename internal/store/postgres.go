package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/clv-cli/internal/clv"
	"github.com/sells-group/clv-cli/internal/db"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool db.Pool
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}
	pgxCfg.MaxConns = 4
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
	return &PostgresStore{pool: pool}, nil
}

// NewPostgresWithPool wraps an existing pool; used by tests.
func NewPostgresWithPool(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS prediction_runs (
	id           TEXT PRIMARY KEY,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
	cutoff       TIMESTAMPTZ NOT NULL,
	horizon_days DOUBLE PRECISION NOT NULL,
	customers    INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS predictions (
	run_id                   TEXT NOT NULL REFERENCES prediction_runs(id),
	customer_id              BIGINT NOT NULL,
	frequency                DOUBLE PRECISION NOT NULL,
	recency                  DOUBLE PRECISION NOT NULL,
	age                      DOUBLE PRECISION NOT NULL,
	monetary_value           DOUBLE PRECISION NOT NULL,
	predicted_purchases      DOUBLE PRECISION NOT NULL,
	predicted_monetary_value DOUBLE PRECISION NOT NULL,
	predicted_clv            DOUBLE PRECISION NOT NULL,
	PRIMARY KEY (run_id, customer_id)
);

CREATE INDEX IF NOT EXISTS idx_predictions_run_clv ON predictions(run_id, predicted_clv DESC);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) SaveRun(ctx context.Context, run Run, records []clv.PredictionRecord) error {
	if run.ID == "" {
		run.ID = uuid.New().String()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: begin")
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx,
		`INSERT INTO prediction_runs (id, created_at, cutoff, horizon_days, customers) VALUES ($1, $2, $3, $4, $5)`,
		run.ID, run.CreatedAt, run.Cutoff.UTC(), run.HorizonDays, len(records),
	)
	if err != nil {
		return eris.Wrap(err, "postgres: insert run")
	}

	for _, r := range records {
		_, err := tx.Exec(ctx,
			`INSERT INTO predictions (run_id, customer_id, frequency, recency, age, monetary_value,
				predicted_purchases, predicted_monetary_value, predicted_clv)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			run.ID, r.CustomerID, r.Frequency, r.Recency, r.Age, r.MonetaryValue,
			r.PredictedPurchases, r.PredictedMonetaryValue, r.PredictedCLV,
		)
		if err != nil {
			return eris.Wrapf(err, "postgres: insert prediction for customer %d", r.CustomerID)
		}
	}

	return eris.Wrap(tx.Commit(ctx), "postgres: commit")
}

func (s *PostgresStore) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.pool.Query(ctx,
		`SELECT id, created_at, cutoff, horizon_days, customers
		 FROM prediction_runs ORDER BY created_at DESC LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list runs")
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		if err := rows.Scan(&r.ID, &r.CreatedAt, &r.Cutoff, &r.HorizonDays, &r.Customers); err != nil {
			return nil, eris.Wrap(err, "postgres: scan run")
		}
		runs = append(runs, r)
	}
	return runs, eris.Wrap(rows.Err(), "postgres: list runs iterate")
}
