// Package mcpserver exposes the memory store as MCP tools over stdio.
package mcpserver

import (
	"context"
	"io"
	"log/slog"
	"os"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/rcliao/codex-mem/internal/model"
	"github.com/rcliao/codex-mem/internal/project"
	"github.com/rcliao/codex-mem/internal/redact"
	"github.com/rcliao/codex-mem/internal/store"
)

// Store is the subset of the memory store the tools call.
type Store interface {
	AddMemory(ctx context.Context, c model.Candidate, projectRoot, sourceTurnID string) (string, error)
	Search(ctx context.Context, p store.SearchParams) ([]store.SearchResult, error)
	Recall(ctx context.Context, p store.RecallParams) (*store.ContextPack, error)
	SoftDelete(ctx context.Context, id string) (bool, error)
	UpdateMemory(ctx context.Context, id string, p store.UpdateParams) (bool, error)
	Stats(ctx context.Context) (*store.Stats, error)
}

// Config holds the server's dependencies.
type Config struct {
	Store   Store
	Version string

	// RootMarkers identify project roots when resolving a tool's cwd.
	RootMarkers []string
	// IncludeGlobal is the default for tools that search.
	IncludeGlobal bool
	// MaxRecall caps mem_recall results when the caller gives no limit.
	MaxRecall int
	// Cwd is used when a tool call names no directory. Defaults to the
	// process working directory.
	Cwd string
	// Redact scrubs secrets from text written through mem_add and
	// mem_update. Defaults to the built-in patterns.
	Redact func(string) string

	Logger *slog.Logger
}

// Server wraps the MCP server with its tools registered.
type Server struct {
	cfg    Config
	mcp    *mcp.Server
	logger *slog.Logger
}

// New creates a server with every memory tool registered.
func New(cfg Config) *Server {
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if cfg.Cwd == "" {
		cfg.Cwd, _ = os.Getwd()
	}
	if len(cfg.RootMarkers) == 0 {
		cfg.RootMarkers = project.DefaultRootMarkers
	}
	if cfg.MaxRecall <= 0 {
		cfg.MaxRecall = store.DefaultRecallLimit
	}
	if cfg.Redact == nil {
		cfg.Redact = redact.Text
	}
	if cfg.Version == "" {
		cfg.Version = "dev"
	}

	s := &Server{
		cfg: cfg,
		mcp: mcp.NewServer(&mcp.Implementation{
			Name:    "codex-mem",
			Version: cfg.Version,
		}, nil),
		logger: cfg.Logger,
	}
	s.mcp.AddReceivingMiddleware(loggingMiddleware(s.logger))
	s.registerTools()
	return s
}

// Run serves on stdio until the client disconnects or ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	s.logger.Info("starting MCP server", "transport", "stdio")
	return s.mcp.Run(ctx, &mcp.StdioTransport{})
}

// MCPServer returns the underlying server.
func (s *Server) MCPServer() *mcp.Server {
	return s.mcp
}

// projectRoot resolves the scope for a tool call. An explicit cwd wins over
// the server's own.
func (s *Server) projectRoot(cwd string) string {
	if cwd == "" {
		cwd = s.cfg.Cwd
	}
	return project.DetectRoot(cwd, s.cfg.RootMarkers)
}

func (s *Server) includeGlobal(v *bool) bool {
	if v == nil {
		return s.cfg.IncludeGlobal
	}
	return *v
}
