package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/rcliao/codex-mem/internal/mcpserver"
)

func init() {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the MCP server on stdio",
		Run:   runServe,
	}

	RootCmd.AddCommand(cmd)
}

func runServe(cmd *cobra.Command, args []string) {
	settings := loadSettings()
	logger, closeLog := newLogger(settings)
	defer closeLog()

	s, err := openStore(settings)
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := mcpserver.New(mcpserver.Config{
		Store:         s,
		Version:       Version,
		RootMarkers:   settings.RootMarkers,
		IncludeGlobal: settings.IncludeGlobal,
		MaxRecall:     settings.MaxRecall,
		Redact:        newRedactor(settings, logger).Redact,
		Logger:        logger,
	})
	if err := srv.Run(ctx); err != nil && ctx.Err() == nil && err != context.Canceled {
		logger.Error("MCP server stopped", "error", err)
		exitErr("serve", err)
	}
	logger.Info("MCP server stopped")
}
