package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"ffietl/internal/config"
	"ffietl/internal/storage"
)

const export = "../../internal/ffi/testdata/export.xml"

func withConfig(t *testing.T, body string) {
	t.Helper()
	t.Setenv(config.EnvDSN, "")
	logger = zap.NewNop()
	path := filepath.Join(t.TempDir(), "pipeline.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	cfgPath = path
	t.Cleanup(func() {
		cfgPath, forceFlag, strictFlag = "", false, false
	})
}

func sqliteConfig(dsn string) string {
	return fmt.Sprintf(`{"job":"cli","source":{"files":[%q]},"storage":{"kind":"sqlite","dsn":%q}}`, export, dsn)
}

func countRows(t *testing.T, dsn, table string) int64 {
	t.Helper()
	ctx := context.Background()
	conn, err := storage.Open(ctx, storage.Config{Kind: "sqlite", DSN: dsn})
	require.NoError(t, err)
	defer conn.Close(ctx)
	rows, err := conn.Query(ctx, `SELECT COUNT(*) FROM "`+table+`"`)
	require.NoError(t, err)
	return rows[0][0].(int64)
}

func TestRunWritesSQLite(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "ffi.db")
	withConfig(t, sqliteConfig(dsn))

	require.NoError(t, runRun(&cobra.Command{}, nil))
	assert.Equal(t, int64(1), countRows(t, dsn, "plot"))

	// A second run finds the document in file_info.
	require.NoError(t, runRun(&cobra.Command{}, nil))
	assert.Equal(t, int64(1), countRows(t, dsn, "file_info"))

	forceFlag = true
	require.NoError(t, runRun(&cobra.Command{}, nil))
	assert.Equal(t, int64(2), countRows(t, dsn, "file_info"))
}

func TestRunStrictFailsIncompleteExport(t *testing.T) {
	withConfig(t, sqliteConfig(filepath.Join(t.TempDir(), "ffi.db")))
	strictFlag = true

	err := runRun(&cobra.Command{}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "required record type missing")
}

func TestRunReportsStorageErrors(t *testing.T) {
	withConfig(t, sqliteConfig("ignored.db"))
	orig := openStorage
	defer func() { openStorage = orig }()
	openStorage = func(context.Context, storage.Config) (storage.Conn, error) {
		return nil, errors.New("connection refused")
	}

	err := runRun(&cobra.Command{}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "open storage: connection refused")
}

func TestRunRejectsInvalidConfig(t *testing.T) {
	withConfig(t, `{"source":{"dir":"/tmp"},"storage":{"kind":"oracle","dsn":"x"}}`)
	err := runRun(&cobra.Command{}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "configuration is invalid")
}

func TestValidateCommand(t *testing.T) {
	withConfig(t, sqliteConfig("x.db"))
	var out bytes.Buffer
	validateCmd.SetOut(&out)
	defer validateCmd.SetOut(nil)

	require.NoError(t, validateCmd.RunE(validateCmd, nil))
	assert.Contains(t, out.String(), "configuration is valid")
}

func TestDumpCommand(t *testing.T) {
	logger = zap.NewNop()
	dumpOut = t.TempDir()

	require.NoError(t, runDump(&cobra.Command{}, []string{export}))
	assert.FileExists(t, filepath.Join(dumpOut, "export", "MacroPlot.csv"))
	assert.FileExists(t, filepath.Join(dumpOut, "export", "output_event_detail.csv"))

	assert.Error(t, runDump(&cobra.Command{}, []string{"missing.xml"}))
}

func TestSetupMetricsFallsBackToNop(t *testing.T) {
	log := zap.NewNop()
	for _, m := range []config.Metrics{
		{Backend: "none"},
		{Backend: "graphite"},
		{Backend: "pushgateway"}, // no URL
		{Backend: "datadog"},     // no address
	} {
		closeFn, err := setupMetrics("cli", m, log)
		require.NoError(t, err, m.Backend)
		require.NotNil(t, closeFn)
		closeFn()
	}
}
