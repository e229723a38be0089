package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/spf13/cobra"

	"github.com/rcliao/codex-mem/internal/project"
	"github.com/rcliao/codex-mem/internal/spool"
)

func init() {
	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check codex-mem health",
		Run:   runDoctor,
	}

	RootCmd.AddCommand(cmd)
}

type check struct {
	name   string
	err    error
	detail string
}

func runDoctor(cmd *cobra.Command, args []string) {
	settings := loadSettings()
	var checks []check

	s, err := openStore(settings)
	if err == nil {
		err = s.Ping(cmd.Context())
		s.Close()
	}
	checks = append(checks, check{name: "database", err: err, detail: settings.Paths.DB})

	pending, err := spool.New(settings.Paths.Spool).Count()
	c := check{name: "spool", err: err, detail: fmt.Sprintf("%d pending", pending)}
	if err == nil && pending > 0 {
		c.err = fmt.Errorf("%d spooled turns, run codex-mem reconcile", pending)
	}
	checks = append(checks, c)

	codexConfig := filepath.Join(project.CodexHome(), "config.toml")
	checks = append(checks, check{name: "codex config", err: checkCodexConfig(codexConfig), detail: codexConfig})

	if settings.RemoteEnabled && os.Getenv("OPENAI_API_KEY") == "" {
		checks = append(checks, check{name: "remote extraction", err: fmt.Errorf("OPENAI_API_KEY is not set, falling back to rules")})
	}

	out := cmd.OutOrStdout()
	failed := 0
	for _, c := range checks {
		line := fmt.Sprintf("  %s %s", mark(c.err == nil), c.name)
		if c.detail != "" {
			line += " " + dimStyle.Render(c.detail)
		}
		fmt.Fprintln(out, line)
		if c.err != nil {
			failed++
			fmt.Fprintf(out, "      %s\n", c.err)
		}
	}
	if failed > 0 {
		fmt.Fprintf(out, "Doctor found %d issue(s).\n", failed)
		os.Exit(1)
	}
	fmt.Fprintln(out, "codex-mem looks OK.")
}

// checkCodexConfig verifies that the Codex config wires the notify hook and
// the MCP server.
func checkCodexConfig(path string) error {
	var cfg map[string]any
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%s not found; add the notify and mcp_servers entries printed by codex-mem init", path)
		}
		return fmt.Errorf("parse %s: %w", path, err)
	}

	var missing []string
	if !notifyWired(cfg["notify"]) {
		missing = append(missing, "notify")
	}
	servers, _ := cfg["mcp_servers"].(map[string]any)
	if !serverWired(servers) {
		missing = append(missing, "mcp_servers")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%s has no codex-mem %s entry", path, strings.Join(missing, " or "))
	}
	return nil
}

func notifyWired(v any) bool {
	args, _ := v.([]any)
	for _, a := range args {
		if s, ok := a.(string); ok && strings.Contains(s, "codex-mem") {
			return true
		}
	}
	return false
}

func serverWired(servers map[string]any) bool {
	for name, v := range servers {
		if strings.Contains(strings.ReplaceAll(name, "_", "-"), "codex-mem") {
			return true
		}
		entry, _ := v.(map[string]any)
		if cmd, ok := entry["command"].(string); ok && strings.Contains(cmd, "codex-mem") {
			return true
		}
	}
	return false
}
