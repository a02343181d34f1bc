package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/clv-cli/internal/clv"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS prediction_runs (
	id           TEXT PRIMARY KEY,
	created_at   DATETIME NOT NULL,
	cutoff       DATETIME NOT NULL,
	horizon_days REAL NOT NULL,
	customers    INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS predictions (
	run_id                   TEXT NOT NULL REFERENCES prediction_runs(id),
	customer_id              INTEGER NOT NULL,
	frequency                REAL NOT NULL,
	recency                  REAL NOT NULL,
	age                      REAL NOT NULL,
	monetary_value           REAL NOT NULL,
	predicted_purchases      REAL NOT NULL,
	predicted_monetary_value REAL NOT NULL,
	predicted_clv            REAL NOT NULL,
	PRIMARY KEY (run_id, customer_id)
);

CREATE INDEX IF NOT EXISTS idx_predictions_run_clv ON predictions(run_id, predicted_clv DESC);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) SaveRun(ctx context.Context, run Run, records []clv.PredictionRecord) error {
	if run.ID == "" {
		run.ID = uuid.New().String()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin")
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO prediction_runs (id, created_at, cutoff, horizon_days, customers) VALUES (?, ?, ?, ?, ?)`,
		run.ID, run.CreatedAt, run.Cutoff.UTC(), run.HorizonDays, len(records),
	)
	if err != nil {
		return eris.Wrap(err, "sqlite: insert run")
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO predictions (run_id, customer_id, frequency, recency, age, monetary_value,
			predicted_purchases, predicted_monetary_value, predicted_clv)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return eris.Wrap(err, "sqlite: prepare insert prediction")
	}
	defer stmt.Close()

	for _, r := range records {
		_, err := stmt.ExecContext(ctx,
			run.ID, r.CustomerID, r.Frequency, r.Recency, r.Age, r.MonetaryValue,
			r.PredictedPurchases, r.PredictedMonetaryValue, r.PredictedCLV,
		)
		if err != nil {
			return eris.Wrapf(err, "sqlite: insert prediction for customer %d", r.CustomerID)
		}
	}

	return eris.Wrap(tx.Commit(), "sqlite: commit")
}

func (s *SQLiteStore) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, created_at, cutoff, horizon_days, customers
		 FROM prediction_runs ORDER BY created_at DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		if err := rows.Scan(&r.ID, &r.CreatedAt, &r.Cutoff, &r.HorizonDays, &r.Customers); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan run")
		}
		runs = append(runs, r)
	}
	return runs, eris.Wrap(rows.Err(), "sqlite: list runs iterate")
}
