package config

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	base := t.TempDir()
	s, err := Load(base)
	require.NoError(t, err)

	d := Default()
	assert.Equal(t, d.RootMarkers, s.RootMarkers)
	assert.Equal(t, 5, s.MaxPerTurn)
	assert.Equal(t, 0.82, s.MergeThreshold)
	assert.True(t, s.SpoolEnabled)
	assert.True(t, s.IncludeGlobal)
	assert.False(t, s.RemoteEnabled)
	assert.Equal(t, 12, s.MaxRecall)
	assert.Equal(t, 5000, s.RemoteMaxChars)
	assert.Equal(t, "gpt-4o-mini", s.RemoteModel)
	assert.Equal(t, filepath.Join(base, "mem.sqlite3"), s.Paths.DB)
	assert.Equal(t, int64(5000), s.BusyTimeout().Milliseconds())
}

func TestLoadEnv(t *testing.T) {
	t.Setenv("CODEX_MEM_ROOT_MARKERS", ".git, go.mod ,")
	t.Setenv("CODEX_MEM_REMOTE", "yes")
	t.Setenv("CODEX_MEM_ALLOW", "/work/*")
	t.Setenv("CODEX_MEM_DENY", "/work/secret*,/tmp/*")
	t.Setenv("CODEX_MEM_MAX_PER_TURN", "3")
	t.Setenv("CODEX_MEM_MERGE_THRESHOLD", "0.9")
	t.Setenv("CODEX_MEM_SPOOL_ENABLED", "0")
	t.Setenv("CODEX_MEM_INCLUDE_GLOBAL", "off")
	t.Setenv("CODEX_MEM_REDACT_PATTERNS", `corp-[0-9]+`)

	s, err := Load(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, []string{".git", "go.mod"}, s.RootMarkers)
	assert.True(t, s.RemoteEnabled)
	assert.Equal(t, []string{"/work/*"}, s.Allow)
	assert.Equal(t, []string{"/work/secret*", "/tmp/*"}, s.Deny)
	assert.Equal(t, 3, s.MaxPerTurn)
	assert.Equal(t, 0.9, s.MergeThreshold)
	assert.False(t, s.SpoolEnabled)
	assert.False(t, s.IncludeGlobal)
	assert.Equal(t, []string{"corp-[0-9]+"}, s.RedactPatterns)
}

func TestLoadConfigFile(t *testing.T) {
	base := t.TempDir()
	content := `
root_markers = [".hg", ".git"]
max_recall = 20
deny = ["/tmp/*"]
log_level = "debug"
`
	require.NoError(t, os.WriteFile(filepath.Join(base, "config.toml"), []byte(content), 0o644))
	t.Setenv("CODEX_MEM_MAX_RECALL", "30")

	s, err := Load(base)
	require.NoError(t, err)
	assert.Equal(t, []string{".hg", ".git"}, s.RootMarkers)
	assert.Equal(t, []string{"/tmp/*"}, s.Deny)
	assert.Equal(t, "debug", s.LogLevel)
	// Environment wins over the file.
	assert.Equal(t, 30, s.MaxRecall)
}

func TestLoadInvalid(t *testing.T) {
	tests := map[string][2]string{
		"threshold too high": {"CODEX_MEM_MERGE_THRESHOLD", "1.5"},
		"threshold zero":     {"CODEX_MEM_MERGE_THRESHOLD", "0"},
		"threshold garbage":  {"CODEX_MEM_MERGE_THRESHOLD", "high"},
		"max per turn":       {"CODEX_MEM_MAX_PER_TURN", "0"},
		"max per turn text":  {"CODEX_MEM_MAX_PER_TURN", "five"},
		"max recall":         {"CODEX_MEM_MAX_RECALL", "-1"},
		"bad glob":           {"CODEX_MEM_DENY", "/work/[abc"},
		"bad level":          {"CODEX_MEM_LOG_LEVEL", "loud"},
	}
	for name, kv := range tests {
		t.Run(name, func(t *testing.T) {
			t.Setenv(kv[0], kv[1])
			_, err := Load(t.TempDir())
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidConfig)
		})
	}
}

func TestTOML(t *testing.T) {
	s := Default()
	s.Deny = []string{"/tmp/*"}
	out, err := s.TOML()
	require.NoError(t, err)
	assert.Contains(t, out, `merge_threshold = 0.82`)
	assert.Contains(t, out, `deny = ["/tmp/*"]`)
	assert.NotContains(t, out, "Paths")
}

func TestParseLevel(t *testing.T) {
	lvl, err := ParseLevel("DEBUG")
	require.NoError(t, err)
	assert.Equal(t, slog.LevelDebug, lvl)

	lvl, err = ParseLevel("")
	require.NoError(t, err)
	assert.Equal(t, slog.LevelInfo, lvl)

	_, err = ParseLevel("verbose")
	assert.Error(t, err)
}

func TestSetupLoggerWithWriters(t *testing.T) {
	var stderr, file bytes.Buffer
	logger := SetupLoggerWithWriters(&stderr, &file, slog.LevelInfo)
	logger.Info("turn spooled", "thread_id", "t1")
	logger.Debug("hidden")

	assert.Contains(t, stderr.String(), "turn spooled")
	assert.NotContains(t, stderr.String(), "hidden")

	var parsed map[string]any
	require.NoError(t, json.Unmarshal(file.Bytes(), &parsed))
	assert.Equal(t, "turn spooled", parsed["msg"])
	assert.Equal(t, "t1", parsed["thread_id"])
}

func TestSetupLoggerFile(t *testing.T) {
	var stderr bytes.Buffer
	logFile := filepath.Join(t.TempDir(), "logs", "codex-mem.log")
	logger, cleanup := SetupLogger(logFile, slog.LevelInfo, &stderr)
	logger.Warn("db locked")
	require.NoError(t, cleanup())

	data, err := os.ReadFile(logFile)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(data), `"msg":"db locked"`))
}
