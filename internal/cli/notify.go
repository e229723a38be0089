package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/rcliao/codex-mem/internal/config"
	"github.com/rcliao/codex-mem/internal/ingest"
)

func init() {
	cmd := &cobra.Command{
		Use:   "notify <json-payload>",
		Short: "Ingest one Codex turn (notify hook)",
		Long: `Ingest one Codex turn. Codex calls this as its notify hook with the turn
payload as the last argument. Exits non-zero unless the turn was stored or
was already recorded.`,
		Args: cobra.MinimumNArgs(1),
		Run:  runNotify,
	}

	RootCmd.AddCommand(cmd)
}

func runNotify(cmd *cobra.Command, args []string) {
	settings := loadSettings()
	logger, closeLog := newLogger(settings)
	defer closeLog()

	var payload map[string]any
	if err := json.Unmarshal([]byte(args[len(args)-1]), &payload); err != nil {
		logger.Error("invalid JSON payload", "error", err)
		closeLog()
		exitErr("notify", fmt.Errorf("invalid JSON payload: %w", err))
	}

	res, err := ingestPayload(cmd.Context(), settings, logger, payload)
	if err != nil {
		closeLog()
		exitErr("notify", err)
	}

	if jsonOutput() {
		printJSON(cmd.OutOrStdout(), res)
	}
	if !res.Success() {
		closeLog()
		os.Exit(1)
	}
}

// ingestPayload runs one payload through the pipeline. When the store cannot
// be opened the pipeline runs without one and Defer spools the turn if the
// failure is transient.
func ingestPayload(ctx context.Context, settings *config.Settings, logger *slog.Logger, payload map[string]any) (ingest.Result, error) {
	var st ingest.Store
	s, openErr := openStore(settings)
	if openErr != nil {
		logger.Error("open store failed", "error", openErr, "db", settings.Paths.DB)
	} else {
		defer s.Close()
		st = s
	}

	p, err := newPipeline(settings, st, logger)
	if err != nil {
		return ingest.Result{}, err
	}

	var res ingest.Result
	if openErr != nil {
		res, err = p.Defer(payload, openErr)
	} else {
		res, err = p.Ingest(ctx, payload)
	}
	if err != nil {
		logger.Error("ingest failed", "error", err)
	}
	return res, err
}
