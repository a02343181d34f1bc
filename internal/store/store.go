// Package store persists prediction runs and their per-customer records.
package store

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/clv-cli/internal/clv"
)

// Run describes one persisted prediction run.
type Run struct {
	ID          string
	CreatedAt   time.Time
	Cutoff      time.Time
	HorizonDays float64
	Customers   int
}

// Store defines the persistence interface for prediction runs.
type Store interface {
	// SaveRun persists the run row and all of its prediction records
	// atomically.
	SaveRun(ctx context.Context, run Run, records []clv.PredictionRecord) error
	// ListRuns returns the most recent runs, newest first.
	ListRuns(ctx context.Context, limit int) ([]Run, error)

	Migrate(ctx context.Context) error
	Close() error
}

// Open creates a Store for the configured driver.
func Open(ctx context.Context, driver, dsn string) (Store, error) {
	switch driver {
	case "sqlite":
		return NewSQLite(dsn)
	case "postgres":
		return NewPostgres(ctx, dsn)
	default:
		return nil, eris.Errorf("store: unsupported driver %q", driver)
	}
}
