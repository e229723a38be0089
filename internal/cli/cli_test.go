package cli

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rcliao/codex-mem/internal/config"
	"github.com/rcliao/codex-mem/internal/ingest"
	"github.com/rcliao/codex-mem/internal/model"
	"github.com/rcliao/codex-mem/internal/store"
)

func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	cmd.PersistentFlags().VisitAll(reset)
	cmd.Flags().VisitAll(reset)
	for _, c := range cmd.Commands() {
		resetFlags(c)
	}
}

func execute(t *testing.T, args ...string) string {
	t.Helper()
	resetFlags(RootCmd)
	t.Cleanup(func() { resetFlags(RootCmd) })

	var out bytes.Buffer
	RootCmd.SetOut(&out)
	RootCmd.SetArgs(args)
	require.NoError(t, RootCmd.Execute())
	return out.String()
}

func projectDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(dir, ".git"), 0o755))
	return dir
}

func TestAddSearchForget(t *testing.T) {
	home := t.TempDir()
	proj := projectDir(t)

	out := execute(t, "--home", home, "add", "--cwd", proj, "--kind", "pitfall", "--tags", "db, sqlite", "Avoid long transactions in sqlite.")
	assert.Contains(t, out, "Added memory")

	out = execute(t, "--home", home, "--format", "json", "search", "--cwd", proj, "transactions")
	var results []store.SearchResult
	require.NoError(t, json.Unmarshal([]byte(out), &results))
	require.Len(t, results, 1)
	m := results[0].Memory
	assert.Equal(t, model.KindPitfall, m.Kind)
	assert.Equal(t, []string{"db", "sqlite"}, m.Tags)
	require.NotNil(t, m.ProjectRoot)

	out = execute(t, "--home", home, "search", "--cwd", proj, "transactions")
	assert.Contains(t, out, m.ID)
	assert.Contains(t, out, "(pitfall)")

	out = execute(t, "--home", home, "forget", m.ID)
	assert.Contains(t, out, "Deleted")

	out = execute(t, "--home", home, "--format", "json", "search", "--cwd", proj, "transactions")
	assert.JSONEq(t, "[]", out)
}

func TestUpdateAndShow(t *testing.T) {
	home := t.TempDir()

	execute(t, "--home", home, "add", "--global", "--kind", "fact", "Service listens on 8080.")
	out := execute(t, "--home", home, "--format", "json", "list", "--all")
	var memories []model.Memory
	require.NoError(t, json.Unmarshal([]byte(out), &memories))
	require.Len(t, memories, 1)
	id := memories[0].ID
	assert.Nil(t, memories[0].ProjectRoot)

	execute(t, "--home", home, "update", id, "--text", "Service listens on 9090.", "--pin", "--importance", "5")

	out = execute(t, "--home", home, "--format", "json", "show", id)
	var shown struct {
		Memory     model.Memory     `json:"memory"`
		SourceTurn *store.TurnRecord `json:"source_turn"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &shown))
	assert.Equal(t, "Service listens on 9090.", shown.Memory.Text)
	assert.True(t, shown.Memory.Pinned)
	assert.Equal(t, 5, shown.Memory.Importance)
	assert.Nil(t, shown.SourceTurn)
}

func TestNotifyAndRecall(t *testing.T) {
	home := t.TempDir()
	proj := projectDir(t)

	payload, err := json.Marshal(map[string]any{
		"thread-id":              "th",
		"turn-id":                "tu",
		"cwd":                    proj,
		"input-messages":         []string{"how should I format code?"},
		"last-assistant-message": "Always run gofmt before committing.",
	})
	require.NoError(t, err)

	out := execute(t, "--home", home, "--format", "json", "notify", string(payload))
	assert.Contains(t, out, `"outcome": "accepted"`)

	out = execute(t, "--home", home, "recall", "--cwd", proj, "gofmt please")
	assert.Contains(t, out, "### Relevant memories")
	assert.Contains(t, out, "#### preference")
	assert.Contains(t, out, "Always run gofmt before committing.")

	out = execute(t, "--home", home, "--format", "json", "notify", string(payload))
	assert.Contains(t, out, `"outcome": "deduped"`)

	out = execute(t, "--home", home, "stats")
	assert.Contains(t, out, "turns     1")
}

func TestIngestPayloadSpoolsWhenDatabaseLocked(t *testing.T) {
	ctx := context.Background()
	settings, err := config.Load(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, settings.Paths.Ensure())
	settings.BusyTimeoutMS = 50
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	st, err := openStore(settings)
	require.NoError(t, err)
	require.NoError(t, st.Close())

	holder, err := sql.Open("sqlite", settings.Paths.DB+"?_pragma=locking_mode(exclusive)")
	require.NoError(t, err)
	holder.SetMaxOpenConns(1)
	_, err = holder.Exec("CREATE TABLE lock_holder (x INTEGER)")
	require.NoError(t, err)

	payload := map[string]any{
		"thread-id":              "th",
		"turn-id":                "tu",
		"cwd":                    projectDir(t),
		"input-messages":         []string{"token?"},
		"last-assistant-message": "Always rotate sk-abcdefghijklmnopqrstuvwxyz0123456789 monthly.",
	}
	res, err := ingestPayload(ctx, settings, logger, payload)
	require.NoError(t, err)
	assert.Equal(t, ingest.OutcomeSpooled, res.Outcome)

	data, err := os.ReadFile(settings.Paths.Spool)
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(string(data), "\n"))
	assert.NotContains(t, string(data), "sk-abcdefghijklmnopqrstuvwxyz0123456789")

	require.NoError(t, holder.Close())
	out := execute(t, "--home", settings.Paths.Base, "--format", "json", "reconcile")
	assert.JSONEq(t, `{"success":1,"failures":0}`, out)
}

func TestInvalidRedactPatternIsLogged(t *testing.T) {
	home := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(home, "config.toml"), []byte("redact_patterns = [\"(unclosed\"]\n"), 0o644))

	execute(t, "--home", home, "add", "--global", "Staging runs on port 8443.")
	logData, err := os.ReadFile(filepath.Join(home, "codex-mem.log"))
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(string(logData), "skipping redaction pattern"))

	out := execute(t, "--home", home, "--format", "json", "list", "--all")
	var memories []model.Memory
	require.NoError(t, json.Unmarshal([]byte(out), &memories))
	require.Len(t, memories, 1)

	execute(t, "--home", home, "update", memories[0].ID, "--text", "Staging runs on port 9443.")
	logData, err = os.ReadFile(filepath.Join(home, "codex-mem.log"))
	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(string(logData), "skipping redaction pattern"))
}

func TestReconcileEmpty(t *testing.T) {
	out := execute(t, "--home", t.TempDir(), "--format", "json", "reconcile")
	assert.JSONEq(t, `{"success":0,"failures":0}`, out)
}

func TestExportImportRoundTrip(t *testing.T) {
	src := t.TempDir()
	execute(t, "--home", src, "add", "--global", "--kind", "decision", "--pin", "We will ship weekly.")
	execute(t, "--home", src, "add", "--global", "--kind", "todo", "TODO write release notes.")

	for _, format := range []string{"json", "yaml"} {
		t.Run(format, func(t *testing.T) {
			dump := execute(t, "--home", src, "export", "--as", format)
			file := filepath.Join(t.TempDir(), "memories."+format)
			require.NoError(t, os.WriteFile(file, []byte(dump), 0o644))

			dst := t.TempDir()
			out := execute(t, "--home", dst, "import", file)
			assert.Contains(t, out, "Imported 2 memories")

			out = execute(t, "--home", dst, "--format", "json", "list", "--all")
			var memories []model.Memory
			require.NoError(t, json.Unmarshal([]byte(out), &memories))
			require.Len(t, memories, 2)
			assert.Equal(t, "We will ship weekly.", memories[0].Text, "pinned first")
			assert.True(t, memories[0].Pinned)
		})
	}
}

func TestWriteExportMarkdown(t *testing.T) {
	var buf bytes.Buffer
	err := writeExport(&buf, "markdown", []model.Memory{
		{ID: "01A", Kind: model.KindFact, Text: "Uses sqlite.", Timestamp: time.Now()},
		{ID: "01B", Kind: model.KindTodo, Text: "TODO add docs."},
	})
	require.NoError(t, err)
	assert.Equal(t, "# Memories\n- [fact] Uses sqlite. (id:01A)\n- [todo] TODO add docs. (id:01B)\n", buf.String())

	assert.Error(t, writeExport(&buf, "csv", nil))
}

func TestDecodeImport(t *testing.T) {
	memories, err := decodeImport([]byte(`[{"kind":"fact","text":"a","importance":2,"project_root":null,"tags":["x"]}]`), "")
	require.NoError(t, err)
	require.Len(t, memories, 1)
	assert.Equal(t, []string{"x"}, memories[0].Tags)

	memories, err = decodeImport([]byte("- kind: todo\n  text: b\n  project_root: /p\n"), "yml")
	require.NoError(t, err)
	require.Len(t, memories, 1)
	require.NotNil(t, memories[0].ProjectRoot)
	assert.Equal(t, "/p", *memories[0].ProjectRoot)

	_, err = decodeImport([]byte("x"), "xml")
	assert.Error(t, err)
}

func TestCodexSnippet(t *testing.T) {
	snippet, err := codexSnippet("/usr/local/bin/codex-mem")
	require.NoError(t, err)

	var cfg codexConfig
	_, err = toml.Decode(snippet, &cfg)
	require.NoError(t, err)
	assert.Equal(t, []string{"/usr/local/bin/codex-mem", "notify"}, cfg.Notify)
	assert.Equal(t, []string{"serve"}, cfg.MCPServers["codex_mem"].Args)

	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(snippet), 0o644))
	assert.NoError(t, checkCodexConfig(path))
}

func TestCheckCodexConfig(t *testing.T) {
	dir := t.TempDir()

	err := checkCodexConfig(filepath.Join(dir, "missing.toml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")

	path := filepath.Join(dir, "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("model = \"o3\"\nnotify = [\"codex-mem\", \"notify\"]\n"), 0o644))
	err = checkCodexConfig(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mcp_servers")
	assert.NotContains(t, err.Error(), "notify or")

	require.NoError(t, os.WriteFile(path, []byte("notify = [\n"), 0o644))
	assert.Error(t, checkCodexConfig(path))
}

func TestSplitTags(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, splitTags(" a, ,b,"))
	assert.Nil(t, splitTags(""))
	assert.True(t, strings.HasPrefix(RootCmd.Use, "codex-mem"))
}
