package cli

import (
	"bytes"
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create the database and print the Codex config snippet",
		Long:  "Create the data directory and database, then print the notify hook and MCP server entries to paste into ~/.codex/config.toml.",
		Run:   runInit,
	}

	RootCmd.AddCommand(cmd)
}

type codexMCPServer struct {
	Command           string   `toml:"command"`
	Args              []string `toml:"args"`
	StartupTimeoutSec float64  `toml:"startup_timeout_sec"`
	ToolTimeoutSec    float64  `toml:"tool_timeout_sec"`
}

type codexConfig struct {
	Notify     []string                  `toml:"notify"`
	MCPServers map[string]codexMCPServer `toml:"mcp_servers"`
}

// codexSnippet renders the config.toml entries that wire exe into Codex.
func codexSnippet(exe string) (string, error) {
	cfg := codexConfig{
		Notify: []string{exe, "notify"},
		MCPServers: map[string]codexMCPServer{
			"codex_mem": {
				Command:           exe,
				Args:              []string{"serve"},
				StartupTimeoutSec: 10,
				ToolTimeoutSec:    60,
			},
		},
	}
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func runInit(cmd *cobra.Command, args []string) {
	settings := loadSettings()
	s, err := openStore(settings)
	if err != nil {
		exitErr("open store", err)
	}
	s.Close()

	exe, err := os.Executable()
	if err != nil {
		exe = "codex-mem"
	}
	snippet, err := codexSnippet(exe)
	if err != nil {
		exitErr("render config", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s Initialized codex-mem at %s\n", mark(true), settings.Paths.Base)
	fmt.Fprintln(out, dimStyle.Render("Paste this into ~/.codex/config.toml:"))
	fmt.Fprintln(out)
	fmt.Fprint(out, snippet)
}
