package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	einotool "github.com/cloudwego/eino/components/tool"
	"github.com/swissarmyhammer/agentcore/internal/event"
	"github.com/swissarmyhammer/agentcore/internal/logging"
)

const writeDescription = `Writes content to a file on the local filesystem.

Usage:
- The file_path parameter must be an absolute path
- This tool will overwrite existing files
- Parent directories will be created if they don't exist
- ALWAYS prefer editing existing files over creating new ones`

// WriteTool implements file writing.
type WriteTool struct {
	workDir string
}

// WriteInput represents the input for the write tool.
// SDK compatible: uses camelCase field names to match TypeScript.
type WriteInput struct {
	FilePath string `json:"filePath"`
	Content  string `json:"content"`
}

// NewWriteTool creates a new write tool.
func NewWriteTool(workDir string) *WriteTool {
	return &WriteTool{workDir: workDir}
}

func (t *WriteTool) ID() string          { return "Write" }
func (t *WriteTool) Description() string { return writeDescription }

func (t *WriteTool) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"filePath": {
				"type": "string",
				"description": "The absolute path to the file to write"
			},
			"content": {
				"type": "string",
				"description": "The content to write to the file"
			}
		},
		"required": ["filePath", "content"]
	}`)
}

func (t *WriteTool) Execute(ctx context.Context, input json.RawMessage, toolCtx *Context) (*Result, error) {
	var params WriteInput
	if err := json.Unmarshal(input, &params); err != nil {
		return nil, fmt.Errorf("invalid input: %w", err)
	}

	if toolCtx != nil && toolCtx.ClientFS != nil {
		if err := toolCtx.Gate.RequireClientCapability(toolCtx.ClientCapabilities, "fs.write_text_file"); err != nil {
			return nil, err
		}
		if err := toolCtx.ClientFS.WriteTextFile(ctx, toolCtx.SessionID, params.FilePath, params.Content); err != nil {
			return nil, fmt.Errorf("writing %s via client: %w", params.FilePath, err)
		}
	} else {
		// Ensure parent directory exists
		dir := filepath.Dir(params.FilePath)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}

		// Write file
		if err := os.WriteFile(params.FilePath, []byte(params.Content), 0644); err != nil {
			return nil, fmt.Errorf("failed to write file: %w", err)
		}
		runFormatter(ctx, toolCtx, params.FilePath)
	}

	// Publish file edited event (SDK compatible: just file path)
	if toolCtx != nil && toolCtx.SessionID != "" {
		event.Publish(event.Event{
			Type: event.FileEdited,
			Data: event.FileEditedData{
				File: params.FilePath,
			},
		})
	}

	return &Result{
		Title: fmt.Sprintf("Wrote %s", filepath.Base(params.FilePath)),
		Output: fmt.Sprintf("Successfully wrote %d bytes to %s",
			len(params.Content), params.FilePath),
		Metadata: map[string]any{
			"file":  params.FilePath,
			"bytes": len(params.Content),
		},
	}, nil
}

func (t *WriteTool) EinoTool() einotool.InvokableTool {
	return &einoToolWrapper{tool: t}
}

// runFormatter applies toolCtx.Formatter to a file this tool just wrote
// to local disk. It is a no-op when no formatter is configured, and
// failures are logged rather than surfaced: a failing formatter (missing
// binary, syntax error mid-edit) shouldn't fail the write/edit that
// already succeeded.
func runFormatter(ctx context.Context, toolCtx *Context, path string) {
	if toolCtx == nil || toolCtx.Formatter == nil {
		return
	}
	if result, err := toolCtx.Formatter.Format(ctx, path); err != nil {
		logging.Warn().Err(err).Str("file", path).Msg("formatting file after write")
	} else if result.Changed {
		logging.Debug().Str("file", path).Str("formatter", result.Formatter).Msg("formatted file after write")
	}
}
