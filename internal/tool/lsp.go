package tool

import (
	"context"
	"encoding/json"
	"fmt"

	einotool "github.com/cloudwego/eino/components/tool"
	"github.com/swissarmyhammer/agentcore/internal/lsp"
)

const lspDescription = `Queries a language server for information about source code.

Usage:
- operation selects what to ask the server: hover, definition, references,
  document_symbol, or workspace_symbol
- filePath is required for hover, definition, references, and document_symbol
- line and character (0-indexed) are required for hover, definition, references
- query is required for workspace_symbol
- The language server is chosen from the file's extension; unsupported
  extensions return an error rather than falling back to a default server`

// LSPTool exposes internal/lsp's synchronous navigation operations as a
// single dispatching tool, mirroring how BashTool and the other
// multi-operation teacher tools route on one discriminator field instead
// of registering one tool per verb.
type LSPTool struct {
	client *lsp.Client
}

// LSPInput is the input for the lsp tool.
type LSPInput struct {
	Operation string `json:"operation"`
	FilePath  string `json:"filePath,omitempty"`
	Line      int    `json:"line,omitempty"`
	Character int    `json:"character,omitempty"`
	Query     string `json:"query,omitempty"`
}

// NewLSPTool creates a new lsp tool backed by client.
func NewLSPTool(client *lsp.Client) *LSPTool {
	return &LSPTool{client: client}
}

func (t *LSPTool) ID() string          { return "lsp" }
func (t *LSPTool) Description() string { return lspDescription }

func (t *LSPTool) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"operation": {
				"type": "string",
				"enum": ["hover", "definition", "references", "document_symbol", "workspace_symbol"],
				"description": "Which language server query to run"
			},
			"filePath": {
				"type": "string",
				"description": "Absolute path to the source file"
			},
			"line": {
				"type": "integer",
				"description": "0-indexed line number"
			},
			"character": {
				"type": "integer",
				"description": "0-indexed character offset"
			},
			"query": {
				"type": "string",
				"description": "Symbol name fragment to search for (workspace_symbol only)"
			}
		},
		"required": ["operation"]
	}`)
}

func (t *LSPTool) Execute(ctx context.Context, input json.RawMessage, toolCtx *Context) (*Result, error) {
	if t.client == nil || t.client.IsDisabled() {
		return nil, fmt.Errorf("lsp: no language server configured")
	}

	var params LSPInput
	if err := json.Unmarshal(input, &params); err != nil {
		return nil, fmt.Errorf("invalid input: %w", err)
	}

	switch params.Operation {
	case "hover":
		result, err := t.client.Hover(ctx, params.FilePath, params.Line, params.Character)
		if err != nil {
			return nil, err
		}
		if result == nil {
			return &Result{Title: "hover", Output: "(no hover information)"}, nil
		}
		return &Result{Title: "hover", Output: result.Contents}, nil

	case "definition":
		locs, err := t.client.Definition(ctx, params.FilePath, params.Line, params.Character)
		if err != nil {
			return nil, err
		}
		return lspLocationResult("definition", locs)

	case "references":
		locs, err := t.client.References(ctx, params.FilePath, params.Line, params.Character, true)
		if err != nil {
			return nil, err
		}
		return lspLocationResult("references", locs)

	case "document_symbol":
		symbols, err := t.client.DocumentSymbol(ctx, params.FilePath)
		if err != nil {
			return nil, err
		}
		return lspSymbolResult("document_symbol", symbols)

	case "workspace_symbol":
		if params.Query == "" {
			return nil, fmt.Errorf("workspace_symbol requires a query")
		}
		symbols, err := t.client.WorkspaceSymbol(ctx, params.Query)
		if err != nil {
			return nil, err
		}
		return lspSymbolResult("workspace_symbol", symbols)

	default:
		return nil, fmt.Errorf("unknown lsp operation: %s", params.Operation)
	}
}

func lspLocationResult(title string, locs []lsp.SymbolLocation) (*Result, error) {
	out, err := json.MarshalIndent(locs, "", "  ")
	if err != nil {
		return nil, err
	}
	return &Result{
		Title:    title,
		Output:   string(out),
		Metadata: map[string]any{"count": len(locs)},
	}, nil
}

func lspSymbolResult(title string, symbols []lsp.Symbol) (*Result, error) {
	out, err := json.MarshalIndent(symbols, "", "  ")
	if err != nil {
		return nil, err
	}
	return &Result{
		Title:    title,
		Output:   string(out),
		Metadata: map[string]any{"count": len(symbols)},
	}, nil
}

func (t *LSPTool) EinoTool() einotool.InvokableTool {
	return &einoToolWrapper{tool: t}
}
