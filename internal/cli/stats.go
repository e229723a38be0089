package cli

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show database statistics",
		Run:   runStats,
	}

	RootCmd.AddCommand(cmd)
}

func runStats(cmd *cobra.Command, args []string) {
	settings := loadSettings()
	s, err := openStore(settings)
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	stats, err := s.Stats(cmd.Context())
	if err != nil {
		exitErr("stats", err)
	}

	out := cmd.OutOrStdout()
	if jsonOutput() {
		printJSON(out, stats)
		return
	}

	fmt.Fprintln(out, headerStyle.Render("codex-mem"), dimStyle.Render(stats.DBPath))
	fmt.Fprintf(out, "  size      %s\n", humanize.Bytes(uint64(stats.DBSizeBytes)))
	fmt.Fprintf(out, "  turns     %d\n", stats.TotalTurns)
	fmt.Fprintf(out, "  memories  %d live, %d total\n", stats.ActiveMemories, stats.TotalMemories)
	if stats.LastTurnAt != nil {
		fmt.Fprintf(out, "  last turn %s\n", humanize.Time(*stats.LastTurnAt))
	}
	if len(stats.Counts) == 0 {
		return
	}
	fmt.Fprintln(out, headerStyle.Render("By kind and scope"))
	for _, c := range stats.Counts {
		scope := "global"
		if c.ProjectRoot != nil {
			scope = *c.ProjectRoot
		}
		fmt.Fprintf(out, "  %5d  %s %s\n", c.Count, kindStyle.Render(fmt.Sprintf("%-10s", c.Kind)), dimStyle.Render(scope))
	}
}
