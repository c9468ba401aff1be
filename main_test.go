package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tidb-pool/model"
	"tidb-pool/service"
)

const unreachableDocument = `
[tidb]
host = "127.0.0.1"
port = 1
username = "root"
password = "secret"
databaseName = "test_db"

[tidb.pool_options]
maxConnections = 10
minConnections = 1
acquireTimeout = 2
idleTimeout = 300
maxLifetime = 1800
isLazy = true
`

func writeDocument(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetArgs(args)
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestConfigCommandRedactsPassword(t *testing.T) {
	path := writeDocument(t, "pool.toml", unreachableDocument)

	out, err := run(t, "--config", path, "config")
	require.NoError(t, err)
	assert.Contains(t, out, "[REDACTED]")
	assert.NotContains(t, out, "secret")
	assert.Contains(t, out, "databaseName = 'test_db'")

	out, err = run(t, "--config", path, "config", "--format", "yaml")
	require.NoError(t, err)
	assert.Contains(t, out, "databaseName: test_db")
	assert.NotContains(t, out, "secret")
}

func TestConfigCommandUnknownFormat(t *testing.T) {
	path := writeDocument(t, "pool.toml", unreachableDocument)

	_, err := run(t, "--config", path, "config", "--format", "ini")
	assert.ErrorContains(t, err, "unknown output format")
}

func TestConfigCommandInvalidDocument(t *testing.T) {
	path := writeDocument(t, "pool.toml", "[tidb]\nhost = \"127.0.0.1\"\n")

	_, err := run(t, "--config", path, "config")
	assert.ErrorIs(t, err, model.ErrInvalidConfig)
}

func TestCheckCommandUnreachable(t *testing.T) {
	path := writeDocument(t, "pool.yaml", `
tidb:
  host: 127.0.0.1
  port: 1
  username: root
  password: secret
  databaseName: test_db
  pool_options:
    maxConnections: 10
    minConnections: 1
    acquireTimeout: 2
    idleTimeout: 300
    maxLifetime: 1800
    isLazy: true
`)

	out, err := run(t, "--config", path, "--log-level", "error", "check")
	require.Error(t, err)
	assert.ErrorIs(t, err, service.ErrAcquire)
	assert.NotContains(t, err.Error(), "secret")
	assert.Empty(t, out)
}

func TestCheckCommandLogsToFile(t *testing.T) {
	path := writeDocument(t, "pool.toml", unreachableDocument)
	logFile := filepath.Join(t.TempDir(), "tidbpool.log")

	_, err := run(t, "--config", path, "--log-format", "json", "--log-output", "file", "--log-file", logFile, "check")
	require.Error(t, err)

	data, err := os.ReadFile(logFile)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"initializing connection pool to TiDB"`)
	assert.Contains(t, string(data), `"addr":"127.0.0.1:1"`)
	assert.NotContains(t, string(data), "secret")
}

func TestCheckCommandInvalidLogOutput(t *testing.T) {
	path := writeDocument(t, "pool.toml", unreachableDocument)

	_, err := run(t, "--config", path, "--log-output", "file", "check")
	assert.ErrorContains(t, err, "build logger")

	_, err = run(t, "--config", path, "--log-output", "syslog", "check")
	assert.ErrorContains(t, err, "unknown log output")
}

func TestPrintPoolMetrics(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	db.SetMaxOpenConns(7)

	var out bytes.Buffer
	require.NoError(t, printPoolMetrics(&out, collectors.NewDBStatsCollector(db, "test_db")))
	assert.Contains(t, out.String(), "go_sql_max_open_connections 7")
	assert.Contains(t, out.String(), "go_sql_open_connections 0")
}
