package mcp

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/deixis/candy/internal/report"
	"github.com/deixis/candy/internal/workflow"
)

// defaultTail is the number of lines per stream shown in a run result.
const defaultTail = 20

type runParams struct {
	Command string            `json:"command" jsonschema:"command line to run, words separated by single spaces (e.g. cargo build --release)"`
	StopOn  string            `json:"stop_on,omitempty" jsonschema:"regular expression; stop reading output at the first matching line"`
	Dir     string            `json:"dir,omitempty" jsonschema:"working directory, absolute or relative to the workspace"`
	Env     map[string]string `json:"env,omitempty" jsonschema:"extra environment variables"`
	Tail    int               `json:"tail,omitempty" jsonschema:"lines per stream to include in the result (default 20)"`
}

func (h *handler) runHandler(ctx context.Context, req *mcp.CallToolRequest, params runParams) (*mcp.CallToolResult, any, error) {
	if params.Command == "" {
		return errorResult("command is required")
	}
	var stopOn *regexp.Regexp
	if params.StopOn != "" {
		re, err := regexp.Compile(params.StopOn)
		if err != nil {
			return errorResult(fmt.Sprintf("Invalid stop_on pattern: %v", err))
		}
		stopOn = re
	}

	ctx = h.log.WithContext(ctx)
	rec, err := h.currentEngine().Run(ctx, workflow.Request{
		Command: params.Command,
		Dir:     params.Dir,
		Env:     params.Env,
		StopOn:  stopOn,
	})
	if rec == nil {
		return errorResult(err.Error())
	}

	tail := params.Tail
	if tail <= 0 {
		tail = defaultTail
	}
	text := formatRun(rec, tail)
	if err != nil {
		return errorResult(text)
	}
	return textResult(text)
}

// formatRun renders a record header followed by the last lines of each stream.
func formatRun(rec *report.Record, tail int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Run: %s\n", rec.ID)
	fmt.Fprintf(&b, "Command: %s\n", rec.Command)
	fmt.Fprintf(&b, "Status: %s\n", status(rec))
	fmt.Fprintf(&b, "Lines: %d stdout, %d stderr", len(rec.Stdout), len(rec.Stderr))
	if rec.Discarded > 0 {
		fmt.Fprintf(&b, ", %d discarded", rec.Discarded)
	}
	fmt.Fprintf(&b, " (%s)\n", rec.Duration.Round(time.Millisecond))

	writeTail(&b, report.Stdout, rec.Stdout, tail)
	writeTail(&b, report.Stderr, rec.Stderr, tail)

	if len(rec.Stdout)+len(rec.Stderr) > 0 {
		fmt.Fprintf(&b, "\nUse candy_inspect with run_id %s to read or search all lines.\n", rec.ID)
	}
	return b.String()
}

func status(rec *report.Record) string {
	switch rec.Kind {
	case report.EarlyReturn:
		return fmt.Sprintf("early_return (matched: %s)", rec.Value)
	case report.Failed:
		return fmt.Sprintf("FAIL (exit status %d)", rec.ExitCode)
	case report.Errored:
		return "ERROR: " + rec.Error
	default:
		return "complete"
	}
}

func writeTail(b *strings.Builder, stream string, lines []string, n int) {
	if len(lines) == 0 {
		return
	}
	start := 0
	if len(lines) > n {
		start = len(lines) - n
	}
	fmt.Fprintln(b)
	if start > 0 {
		fmt.Fprintf(b, "%s (last %d of %d):\n", stream, n, len(lines))
	} else {
		fmt.Fprintf(b, "%s:\n", stream)
	}
	for _, l := range lines[start:] {
		fmt.Fprintf(b, "    %s\n", l)
	}
}
