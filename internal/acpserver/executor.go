package acpserver

import (
	"context"
	"encoding/json"

	"github.com/swissarmyhammer/agentcore/internal/capability"
	"github.com/swissarmyhammer/agentcore/internal/formatter"
	"github.com/swissarmyhammer/agentcore/internal/mcp"
	"github.com/swissarmyhammer/agentcore/internal/session"
	"github.com/swissarmyhammer/agentcore/internal/tool"
)

// ToolRegistryExecutor adapts the local tool.Registry to the
// orchestrator.ToolExecutor interface, so the same built-in tools the
// HTTP server uses (bash, read, edit, grep, ...) also
// back session/prompt tool calls over the ACP stdio transport. A call to
// a name neither the registry nor a connected MCP server knows falls
// through with an error, letting the orchestrator report ToolCallFailed
// rather than panicking.
//
// Gate, ClientFS, and ClientTerminal back the outbound half of the
// capability gate (§4.4): when the stdio transport wires them (see
// serve.go), tool calls that touch the filesystem or a shell first
// consult the session's negotiated CapabilitySet and, when the client
// declared the matching capability, delegate to it over the ACP
// connection instead of touching local disk/processes directly. Left
// nil (HTTP transport — no client duplex channel to delegate to) tools
// execute locally.
type ToolRegistryExecutor struct {
	Registry       *tool.Registry
	WorkDir        string
	Store          *session.Store
	Gate           *capability.Gate
	ClientFS       tool.ClientFS
	ClientTerminal tool.ClientTerminal
	Formatter      *formatter.Manager

	// MCP, when non-nil, backs tool names the local registry doesn't
	// recognize: Client.Tools() prefixes every remote tool with its
	// server name (§3 "available_tools grows as servers connect"), so a
	// registry miss is tried against it before giving up.
	MCP *mcp.Client
}

// Execute runs one tool call to completion. It never executes
// speculatively: by the time the orchestrator calls this, the permission
// engine has already resolved the call to Execute=true (§1 Non-goals).
func (e *ToolRegistryExecutor) Execute(ctx context.Context, sessionID, callID, name string, rawInput map[string]any) (any, error) {
	input, err := json.Marshal(rawInput)
	if err != nil {
		return nil, err
	}

	t, ok := e.Registry.Get(name)
	if !ok {
		if e.MCP != nil {
			return e.executeMCP(ctx, name, input)
		}
		return nil, &unknownToolError{name: name}
	}

	toolCtx := &tool.Context{
		SessionID:      sessionID,
		CallID:         callID,
		WorkDir:        e.WorkDir,
		AbortCh:        ctx.Done(),
		Gate:           e.Gate,
		ClientFS:       e.ClientFS,
		ClientTerminal: e.ClientTerminal,
		Formatter:      e.Formatter,
	}
	if e.Store != nil {
		if sess, err := e.Store.Get(sessionID); err == nil && sess.ClientCapabilities != nil {
			toolCtx.ClientCapabilities = *sess.ClientCapabilities
		}
	}

	result, err := t.Execute(ctx, input, toolCtx)
	if err != nil {
		return nil, err
	}
	if result.Error != nil {
		return result, result.Error
	}
	return result, nil
}

func (e *ToolRegistryExecutor) executeMCP(ctx context.Context, name string, input json.RawMessage) (any, error) {
	output, err := e.MCP.ExecuteTool(ctx, name, input)
	if err != nil {
		return nil, err
	}
	return &tool.Result{Title: name, Output: output}, nil
}

type unknownToolError struct{ name string }

func (e *unknownToolError) Error() string { return "unknown tool: " + e.name }
