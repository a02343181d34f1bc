package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chtemp(t *testing.T) {
	t.Helper()
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })
}

func TestLoadDefaults(t *testing.T) {
	chtemp(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "auto", cfg.Input.Format)
	assert.InDelta(t, 6.0, cfg.Horizon.Months, 0.001)
	assert.InDelta(t, 0.1, cfg.BGNBD.Penalizer, 0.001)
	assert.Equal(t, 10000, cfg.BGNBD.MaxIterations)
	assert.InDelta(t, 0.1, cfg.GammaGamma.Penalizer, 0.001)
	assert.Equal(t, "clv_predictions.csv", cfg.Output.Path)
	assert.Equal(t, 10, cfg.Output.TopN)
	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "clv.db", cfg.Store.Path)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoadFromYAML(t *testing.T) {
	chtemp(t)

	yaml := `
input:
  path: transactions.xlsx
  format: xlsx
horizon:
  months: 12
bgnbd:
  penalizer: 0.01
store:
  driver: postgres
  database_url: postgres://localhost/clv
log:
  level: debug
  format: console
`
	dir, _ := os.Getwd()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "transactions.xlsx", cfg.Input.Path)
	assert.Equal(t, "xlsx", cfg.Input.Format)
	assert.InDelta(t, 12.0, cfg.Horizon.Months, 0.001)
	assert.InDelta(t, 0.01, cfg.BGNBD.Penalizer, 0.001)
	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "debug", cfg.Log.Level)
	// Defaults still apply for unset values
	assert.InDelta(t, 0.1, cfg.GammaGamma.Penalizer, 0.001)
	assert.Equal(t, 10, cfg.Output.TopN)
}

func TestStoreDSN(t *testing.T) {
	t.Parallel()
	sqlite := StoreConfig{Driver: "sqlite", Path: "clv.db", DatabaseURL: "ignored"}
	assert.Equal(t, "clv.db", sqlite.DSN())

	pg := StoreConfig{Driver: "postgres", DatabaseURL: "postgres://localhost/clv"}
	assert.Equal(t, "postgres://localhost/clv", pg.DSN())
}

func TestInitLoggerBadLevel(t *testing.T) {
	err := InitLogger(LogConfig{Level: "chatty", Format: "json"})
	require.Error(t, err)
}

func TestInitLoggerConsole(t *testing.T) {
	require.NoError(t, InitLogger(LogConfig{Level: "debug", Format: "console"}))
}
