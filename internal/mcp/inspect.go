package mcp

import (
	"context"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/deixis/candy/internal/report"
)

type inspectParams struct {
	RunID   string `json:"run_id" jsonschema:"the run ID from a candy_run result"`
	Stream  string `json:"stream,omitempty" jsonschema:"stdout or stderr; both when empty"`
	Pattern string `json:"pattern,omitempty" jsonschema:"regular expression; only matching lines are returned"`
}

func (h *handler) inspectHandler(ctx context.Context, req *mcp.CallToolRequest, params inspectParams) (*mcp.CallToolResult, any, error) {
	if params.RunID == "" {
		return errorResult("run_id is required")
	}

	rec, err := h.store.Load(params.RunID)
	if err != nil {
		return errorResult(fmt.Sprintf("Failed to load run %s: %v", params.RunID, err))
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Run: %s (%s)\n", rec.ID, rec.Kind)
	fmt.Fprintf(&b, "Command: %s\n\n", rec.Command)

	if params.Pattern != "" {
		matches, err := report.Grep(rec, params.Stream, params.Pattern)
		if err != nil {
			return errorResult(err.Error())
		}
		if len(matches) == 0 {
			fmt.Fprintf(&b, "No lines match %q.\n", params.Pattern)
			return textResult(b.String())
		}
		for _, m := range matches {
			fmt.Fprintln(&b, m)
		}
		return textResult(b.String())
	}

	streams := []string{report.Stdout, report.Stderr}
	if params.Stream != "" {
		streams = []string{params.Stream}
	}
	for _, s := range streams {
		lines, err := report.Lines(rec, s)
		if err != nil {
			return errorResult(err.Error())
		}
		fmt.Fprintf(&b, "%s (%d lines):\n", s, len(lines))
		for i, l := range lines {
			fmt.Fprintf(&b, "%6d  %s\n", i+1, l)
		}
	}
	return textResult(b.String())
}

type historyParams struct {
	Limit int `json:"limit,omitempty" jsonschema:"maximum number of runs to list (default 10)"`
}

func (h *handler) historyHandler(ctx context.Context, req *mcp.CallToolRequest, params historyParams) (*mcp.CallToolResult, any, error) {
	limit := params.Limit
	if limit <= 0 {
		limit = 10
	}
	recs, err := h.store.List(limit)
	if err != nil {
		return errorResult(fmt.Sprintf("Failed to list runs: %v", err))
	}
	if len(recs) == 0 {
		return textResult("No runs recorded.")
	}

	var b strings.Builder
	for _, r := range recs {
		fmt.Fprintf(&b, "%s  %s  %-12s  %s\n", r.ID, r.Started.Format("2006-01-02 15:04:05"), r.Kind, r.Command)
	}
	return textResult(b.String())
}
