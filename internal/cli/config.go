package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Print the effective settings",
		Long:  "Print the settings after applying config.toml and CODEX_MEM_* environment variables. The output is valid config.toml.",
		Run:   runConfig,
	}

	RootCmd.AddCommand(cmd)
}

func runConfig(cmd *cobra.Command, args []string) {
	settings := loadSettings()

	out := cmd.OutOrStdout()
	if jsonOutput() {
		printJSON(out, settings)
		return
	}
	text, err := settings.TOML()
	if err != nil {
		exitErr("config", err)
	}
	fmt.Fprintf(out, "# %s\n", settings.Paths.Base)
	fmt.Fprint(out, text)
}
