package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Replay spooled turns",
		Long: `Re-ingest every turn in the spool, then clear it. Entries that fail again
are counted and dropped, not spooled a second time.`,
		Run: runReconcile,
	}

	cmd.Flags().String("spool", "", "Spool file (default: notify_spool.jsonl in the data directory)")

	RootCmd.AddCommand(cmd)
}

func runReconcile(cmd *cobra.Command, args []string) {
	spoolPath, _ := cmd.Flags().GetString("spool")

	settings := loadSettings()
	if spoolPath != "" {
		settings.Paths.Spool = spoolPath
	}
	logger, closeLog := newLogger(settings)
	defer closeLog()

	s, err := openStore(settings)
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	p, err := newPipeline(settings, s, logger)
	if err != nil {
		exitErr("reconcile", err)
	}
	res, err := p.Replay(cmd.Context())
	if err != nil {
		exitErr("reconcile", err)
	}

	out := cmd.OutOrStdout()
	if jsonOutput() {
		printJSON(out, res)
		return
	}
	fmt.Fprintf(out, "%s Replayed %d turns, %d failed\n", mark(res.Failures == 0), res.Success, res.Failures)
}
