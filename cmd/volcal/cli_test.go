package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"volcal/internal/config"
)

func writeTestConfig(t *testing.T) string {
	t.Helper()

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := fmt.Sprintf("timezone: UTC\nweek_start: sunday\nmax_rows: 3\ndatabase: %s\ncache_dir: %s\n",
		filepath.Join(dir, "events.db"), filepath.Join(dir, "cache"))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

// run executes the root command with fresh flag values.
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()

	configPath, logLevel = "", ""
	layoutMonth = ""
	snapshotMonth, snapshotOut, snapshotURL = "", "", ""
	addName, addStart, addEnd, addTarget, addLocation, addDescription = "", "", "", "", "", ""

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestAddAndLayout(t *testing.T) {
	cfgPath := writeTestConfig(t)

	adds := [][]string{
		{"--name", "Park cleanup", "--start", "2025-03-01", "--end", "2025-03-03"},
		{"--name", "Food drive", "--start", "2025-03-01", "--end", "2025-04-05", "--target", "food-drive"},
		{"--name", "Shelter shift", "--start", "2025-03-02"},
		{"--name", "Tutoring", "--start", "2025-03-02"},
	}
	for _, a := range adds {
		out, err := run(t, append([]string{"add", "--config", cfgPath}, a...)...)
		require.NoError(t, err)
		assert.NotEmpty(t, strings.TrimSpace(out))
	}

	out, err := run(t, "layout", "--config", cfgPath, "--log-level", "error", "--month", "2025-03")
	require.NoError(t, err)

	assert.Contains(t, out, "2025-03  grid 2025-02-23 .. 2025-04-05")
	assert.Contains(t, out, "ROW")
	assert.Contains(t, out, "Park cleanup")
	assert.Contains(t, out, "food-drive")
	assert.Contains(t, out, "Shelter shift")
	assert.Contains(t, out, "overflow (1):")

	overflow := out[strings.Index(out, "overflow"):]
	assert.Contains(t, overflow, "7-7")
	assert.Contains(t, overflow, "Tutoring")
}

func TestAdd_Invalid(t *testing.T) {
	cfgPath := writeTestConfig(t)

	_, err := run(t, "add", "--config", cfgPath, "--name", "x", "--start", "03/01/2025")
	assert.ErrorContains(t, err, "invalid --start")

	_, err = run(t, "add", "--config", cfgPath, "--name", "x", "--start", "2025-03-05", "--end", "2025-03-01")
	assert.ErrorContains(t, err, "cannot be before")
}

func TestLayout_InvalidMonth(t *testing.T) {
	cfgPath := writeTestConfig(t)
	_, err := run(t, "layout", "--config", cfgPath, "--month", "2025-3")
	assert.ErrorContains(t, err, "invalid --month")
}

func TestInvalidLogLevel(t *testing.T) {
	cfgPath := writeTestConfig(t)
	_, err := run(t, "layout", "--config", cfgPath, "--log-level", "chatty")
	assert.Error(t, err)
}

func TestParseMonth(t *testing.T) {
	now := time.Date(2025, time.March, 31, 23, 0, 0, 0, time.UTC)
	tokyo := time.FixedZone("JST", 9*3600)

	m, err := parseMonth("", now, tokyo)
	require.NoError(t, err)
	assert.Equal(t, time.April, m.Month())

	m, err = parseMonth("2024-02", now, time.UTC)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC), m)
}

func TestBaseURL(t *testing.T) {
	cfg := config.DefaultConfig()
	assert.Equal(t, "http://127.0.0.1:8080", baseURL(cfg))

	cfg.Listen = ":9090"
	assert.Equal(t, "http://127.0.0.1:9090", baseURL(cfg))

	cfg.Listen = "0.0.0.0:80"
	cfg.BasicAuth = &config.BasicAuthConfig{Username: "admin", Password: "pw"}
	assert.Equal(t, "http://admin:pw@127.0.0.1:80", baseURL(cfg))
}

func TestPreviewJob_WaitsForServer(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Preview.Path = filepath.Join(t.TempDir(), "preview.png")
	job := previewJob(&app{cfg: cfg}, make(chan struct{}))

	ctx, cancel := context.WithTimeout(t.Context(), 50*time.Millisecond)
	defer cancel()

	err := job(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.NoFileExists(t, cfg.Preview.Path)
}
