package mcp

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

type versionParams struct {
	Command    string `json:"command" jsonschema:"command that prints a version (e.g. rustc --version)"`
	Constraint string `json:"constraint,omitempty" jsonschema:"semver constraint the version must satisfy (e.g. ^1.70)"`
}

func (h *handler) versionHandler(ctx context.Context, req *mcp.CallToolRequest, params versionParams) (*mcp.CallToolResult, any, error) {
	if params.Command == "" {
		return errorResult("command is required")
	}
	res, err := h.currentEngine().Version(h.log.WithContext(ctx), params.Command, params.Constraint)
	if err != nil {
		return errorResult(err.Error())
	}
	text := fmt.Sprintf("%s: %s\n", res.Command, res.Version)
	if params.Constraint != "" {
		text += fmt.Sprintf("Satisfies %s\n", params.Constraint)
	}
	return textResult(text)
}
