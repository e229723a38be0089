package project

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func realDir(t *testing.T) string {
	t.Helper()
	dir, err := filepath.EvalSymlinks(t.TempDir())
	require.NoError(t, err)
	return dir
}

func TestDetectRoot(t *testing.T) {
	root := realDir(t)
	require.NoError(t, os.Mkdir(filepath.Join(root, ".git"), 0o755))
	deep := filepath.Join(root, "src", "pkg")
	require.NoError(t, os.MkdirAll(deep, 0o755))

	assert.Equal(t, root, DetectRoot(deep, []string{".git"}))
	assert.Equal(t, root, DetectRoot(root, []string{".git"}))
	assert.Equal(t, "", DetectRoot(deep, nil))
	assert.Equal(t, "", DetectRoot("", []string{".git"}))
}

func TestDetectRootAnyMarker(t *testing.T) {
	root := realDir(t)
	sub := filepath.Join(root, "service")
	require.NoError(t, os.MkdirAll(sub, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(sub, "go.mod"), []byte("module x\n"), 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(root, ".git"), 0o755))

	// The nearest directory holding any marker wins.
	assert.Equal(t, sub, DetectRoot(filepath.Join(sub, "cmd"), []string{".git", "go.mod"}))
	assert.Equal(t, root, DetectRoot(filepath.Join(sub, "cmd"), []string{".git"}))
}

func TestDetectRootNone(t *testing.T) {
	dir := realDir(t)
	assert.Equal(t, "", DetectRoot(dir, []string{"definitely-not-a-marker-file"}))
}

func TestLayout(t *testing.T) {
	t.Setenv("CODEX_MEM_HOME", "/data/mem")
	p := Layout("")
	assert.Equal(t, "/data/mem", p.Base)
	assert.Equal(t, "/data/mem/mem.sqlite3", p.DB)
	assert.Equal(t, "/data/mem/notify_spool.jsonl", p.Spool)
	assert.Equal(t, "/data/mem/codex-mem.log", p.Log)

	assert.Equal(t, "/other/mem.sqlite3", Layout("/other").DB)
}

func TestBaseDirFallbacks(t *testing.T) {
	t.Setenv("CODEX_MEM_HOME", "")
	t.Setenv("CODEX_HOME", "/opt/codex")
	assert.Equal(t, "/opt/codex/mem", BaseDir())

	t.Setenv("CODEX_HOME", "")
	home, err := os.UserHomeDir()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, ".codex", "mem"), BaseDir())
}

func TestEnsure(t *testing.T) {
	p := Layout(filepath.Join(t.TempDir(), "a", "b"))
	require.NoError(t, p.Ensure())
	info, err := os.Stat(p.Base)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}
