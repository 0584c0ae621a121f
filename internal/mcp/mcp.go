// Package mcp provides the candy MCP server, registering all tools and
// publishing model instructions.
package mcp

import (
	"context"
	_ "embed"
	"net/url"
	"sync"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rs/zerolog"

	"github.com/deixis/candy"
	"github.com/deixis/candy/internal/config"
	"github.com/deixis/candy/internal/report"
	"github.com/deixis/candy/internal/workflow"
)

//go:embed instructions.md
var Instructions string

// handler holds shared dependencies for all tool handlers.
type handler struct {
	mu     sync.RWMutex
	engine *workflow.Engine
	store  report.Store
	log    zerolog.Logger
}

// NewServer creates an MCP server with all candy tools registered. Runs
// start in workspace unless a tool call names another directory.
func NewServer(cfg *config.Config, store report.Store, workspace string, log zerolog.Logger) *mcp.Server {
	h := &handler{
		engine: &workflow.Engine{
			Config: cfg,
			Store:  store,
			Dir:    workspace,
		},
		store: store,
		log:   log,
	}

	opts := &mcp.ServerOptions{
		Instructions: Instructions,
		Capabilities: &mcp.ServerCapabilities{
			Tools: &mcp.ToolCapabilities{ListChanged: false},
		},
		InitializedHandler: func(ctx context.Context, req *mcp.InitializedRequest) {
			h.updateWorkspaceFromRoots(ctx, req.Session)
		},
	}
	s := mcp.NewServer(&mcp.Implementation{Name: "candy", Version: candy.Version}, opts)

	mcp.AddTool(s, &mcp.Tool{
		Name: "candy_run",
		Description: `Run a shell command and capture every line it prints to stdout and stderr.

The command is split on single spaces; there is no shell quoting, piping or globbing.
Set stop_on to a regular expression to stop reading at the first matching line
(the process still runs to completion). A non-zero exit status is always reported
as a failure. Results are stored for drill-down via candy_inspect.`,
	}, h.runHandler)

	mcp.AddTool(s, &mcp.Tool{
		Name: "candy_inspect",
		Description: `Read the captured output of a previous candy_run.

Use the run_id from the candy_run result. Optionally restrict to one stream
(stdout or stderr) and filter lines with a regular expression pattern.`,
	}, h.inspectHandler)

	mcp.AddTool(s, &mcp.Tool{
		Name:        "candy_history",
		Description: "List recent runs, most recent first, with their status.",
	}, h.historyHandler)

	mcp.AddTool(s, &mcp.Tool{
		Name: "candy_version",
		Description: `Check the version a command reports (e.g. "rustc --version") against a semver
constraint (e.g. "^1.70", ">= 2.0, < 3"). An empty constraint only reports the version.`,
	}, h.versionHandler)

	return s
}

// updateWorkspaceFromRoots queries the client for MCP roots and moves the
// engine to the first file root, reloading its config.
// This is called during session initialization, before any tool calls.
func (h *handler) updateWorkspaceFromRoots(ctx context.Context, session *mcp.ServerSession) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	roots, err := session.ListRoots(ctx, &mcp.ListRootsParams{})
	if err != nil {
		return
	}
	if len(roots.Roots) == 0 {
		return
	}

	u, err := url.Parse(roots.Roots[0].URI)
	if err != nil || u.Scheme != "file" {
		return
	}
	workspace := u.Path

	loaded, err := config.Load(workspace)
	if err != nil {
		h.log.Warn().Err(err).Str("workspace", workspace).Msg("ignoring workspace config")
		return
	}

	h.mu.Lock()
	h.engine = &workflow.Engine{
		Config: loaded.Config,
		Store:  h.store,
		Dir:    workspace,
	}
	h.mu.Unlock()
	h.log.Info().Str("workspace", workspace).Msg("workspace updated from roots")
}

func (h *handler) currentEngine() *workflow.Engine {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.engine
}

// textResult is a helper to build a text-only tool result.
func textResult(text string) (*mcp.CallToolResult, any, error) {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
	}, nil, nil
}

// errorResult is a helper to build an error tool result.
func errorResult(text string) (*mcp.CallToolResult, any, error) {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
		IsError: true,
	}, nil, nil
}
