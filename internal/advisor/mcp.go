package advisor

import (
	"fmt"

	"github.com/franalgaba/grimoire-sub002/internal/ir"
	"github.com/mark3labs/mcp-go/mcp"
)

// BuildMCPTool constructs an mcp.Tool descriptor from an advisory step's
// `mcp` argument map (SPEC_FULL §4.H). It is a pure, forward-compatible
// extension point: the returned Tool is logged into the ledger's
// advisory_started event for external inspection and is never invoked by
// the executor, grounded on the teacher pack's
// pkg/ecosystem/mcp/server.go `mcp.NewTool(name, mcp.WithDescription(...),
// mcp.WithString(...))` registration pattern.
func BuildMCPTool(adv ir.Advisory, fields map[string]any) mcp.Tool {
	name, _ := fields["name"].(string)
	if name == "" {
		name = adv.Advisor
	}
	desc, _ := fields["description"].(string)
	if desc == "" {
		desc = fmt.Sprintf("advisor %q MCP descriptor", adv.Advisor)
	}

	opts := []mcp.ToolOption{mcp.WithDescription(desc)}
	if params, ok := fields["params"].(map[string]any); ok {
		for pname, pdesc := range params {
			d, _ := pdesc.(string)
			opts = append(opts, mcp.WithString(pname, mcp.Description(d)))
		}
	}
	return mcp.NewTool(name, opts...)
}
