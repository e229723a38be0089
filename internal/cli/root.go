// Package cli implements the codex-mem CLI commands.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rcliao/codex-mem/internal/config"
	"github.com/rcliao/codex-mem/internal/extract"
	"github.com/rcliao/codex-mem/internal/ingest"
	"github.com/rcliao/codex-mem/internal/project"
	"github.com/rcliao/codex-mem/internal/redact"
	"github.com/rcliao/codex-mem/internal/spool"
	"github.com/rcliao/codex-mem/internal/store"
)

// Version is set at build time.
var Version = "dev"

var (
	homeDir    string
	formatFlag string
)

// RootCmd is the top-level command.
var RootCmd = &cobra.Command{
	Use:   "codex-mem",
	Short: "Project-scoped memory for Codex",
	Long: `codex-mem captures Codex turns through the notify hook, extracts short
memories from them and serves them back to the agent over MCP.

Data lives in $CODEX_MEM_HOME (default ~/.codex/mem).`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	RootCmd.PersistentFlags().StringVar(&homeDir, "home", "", "Data directory (default: $CODEX_MEM_HOME or ~/.codex/mem)")
	RootCmd.PersistentFlags().StringVarP(&formatFlag, "format", "f", "text", "Output format: text or json")
}

// loadSettings resolves settings and creates the data directory.
func loadSettings() *config.Settings {
	s, err := config.Load(homeDir)
	if err != nil {
		exitErr("load settings", err)
	}
	if err := s.Paths.Ensure(); err != nil {
		exitErr("create data dir", err)
	}
	return s
}

func openStore(s *config.Settings) (*store.SQLiteStore, error) {
	return store.NewSQLiteStore(s.Paths.DB,
		store.WithMergeThreshold(s.MergeThreshold),
		store.WithBusyTimeout(s.BusyTimeout()),
	)
}

// newLogger logs to stderr and the log file under the data directory.
func newLogger(s *config.Settings) (*slog.Logger, func() error) {
	level, err := config.ParseLevel(s.LogLevel)
	if err != nil {
		level = slog.LevelInfo
	}
	return config.SetupLogger(s.Paths.Log, level, os.Stderr)
}

// newRedactor builds the redactor from the default and configured patterns.
// Invalid configured patterns are logged and skipped.
func newRedactor(s *config.Settings, logger *slog.Logger) *redact.Redactor {
	redactor, errs := redact.New(s.RedactPatterns)
	for _, err := range errs {
		logger.Warn("skipping redaction pattern", "error", err)
	}
	return redactor
}

// newPipeline wires the ingestion pipeline from settings.
func newPipeline(s *config.Settings, st ingest.Store, logger *slog.Logger) (*ingest.Pipeline, error) {
	redactor := newRedactor(s, logger)
	filter, err := ingest.NewScopeFilter(s.Allow, s.Deny)
	if err != nil {
		return nil, err
	}

	var completer extract.Completer
	if s.RemoteEnabled {
		completer = extract.NewOpenAICompleter(os.Getenv("OPENAI_API_KEY"), os.Getenv("OPENAI_BASE_URL"), s.RemoteModel)
	}

	return ingest.New(st, spool.New(s.Paths.Spool),
		ingest.WithRedactor(redactor),
		ingest.WithExtractor(extract.Select(s.RemoteEnabled, completer, s.RemoteMaxChars, logger)),
		ingest.WithScopeFilter(filter),
		ingest.WithRootMarkers(s.RootMarkers),
		ingest.WithMaxPerTurn(s.MaxPerTurn),
		ingest.WithSpoolEnabled(s.SpoolEnabled),
		ingest.WithLogger(logger),
	), nil
}

// projectRoot resolves the project root for cwd, or the working directory
// when cwd is empty.
func projectRoot(s *config.Settings, cwd string) string {
	if cwd == "" {
		cwd, _ = os.Getwd()
	}
	return project.DetectRoot(cwd, s.RootMarkers)
}

func jsonOutput() bool {
	return strings.EqualFold(formatFlag, "json")
}

func printJSON(w io.Writer, v any) {
	b, _ := json.MarshalIndent(v, "", "  ")
	fmt.Fprintln(w, string(b))
}

func splitTags(s string) []string {
	var tags []string
	for _, t := range strings.Split(s, ",") {
		if t = strings.TrimSpace(t); t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}

func exitErr(msg string, err error) {
	fmt.Fprintf(os.Stderr, "error: %s: %v\n", msg, err)
	os.Exit(1)
}
