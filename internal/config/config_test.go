package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	t.Setenv("CONFIG_PATH", path)
}

func TestLoadAppliesDefaults(t *testing.T) {
	writeConfig(t, `
app:
  name: attendance-import
database:
  host: localhost
  port: 3306
  user: root
  name: attendance
redis:
  host: localhost
  port: 6379
`)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 10, cfg.Import.BatchSize)
	assert.Equal(t, 2, cfg.Import.Workers)
	assert.Equal(t, 2, cfg.Enrollment.Workers)
	assert.Equal(t, 20, cfg.Enrollment.FailureDetailLimit)
	assert.Equal(t, ":dlq", cfg.Redis.DLQSuffix)
	assert.Equal(t, "localhost:6379", cfg.RedisAddr())
}

func TestLoadExplicitValuesWin(t *testing.T) {
	writeConfig(t, `
import:
  batch_size: 25
  workers: 4
enrollment:
  failure_detail_limit: 5
`)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 25, cfg.Import.BatchSize)
	assert.Equal(t, 4, cfg.Import.Workers)
	assert.Equal(t, 5, cfg.Enrollment.FailureDetailLimit)
}

func TestLoadMissingFile(t *testing.T) {
	t.Setenv("CONFIG_PATH", filepath.Join(t.TempDir(), "missing.yaml"))
	_, err := Load()
	assert.Error(t, err)
}

func TestDatabaseDSN(t *testing.T) {
	cfg := &Config{}
	cfg.Database = DatabaseConfig{
		Host: "db", Port: 3306, User: "app", Password: "secret",
		Name: "attendance", Charset: "utf8mb4", ParseTime: true, Loc: "UTC",
	}

	assert.Equal(t,
		"app:secret@tcp(db:3306)/attendance?charset=utf8mb4&parseTime=true&loc=UTC",
		cfg.DatabaseDSN())
}
