package acpserver

import (
	"context"
	"encoding/json"

	"github.com/swissarmyhammer/agentcore/pkg/acp"
)

// ClientFS issues fs/read_text_file and fs/write_text_file calls to the
// ACP client over a stdio Conn (§4.4, §6.1). It implements
// internal/tool.ClientFS.
type ClientFS struct {
	conn *Conn
}

// NewClientFS wraps conn for outbound fs/* delegation.
func NewClientFS(conn *Conn) *ClientFS {
	return &ClientFS{conn: conn}
}

// ReadTextFile issues fs/read_text_file and returns the client's content.
func (f *ClientFS) ReadTextFile(ctx context.Context, sessionID, path string) (string, error) {
	raw, err := f.conn.Call(ctx, "fs/read_text_file", acp.ReadTextFileParams{SessionID: sessionID, Path: path})
	if err != nil {
		return "", err
	}
	var result acp.ReadTextFileResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return "", err
	}
	return result.Content, nil
}

// WriteTextFile issues fs/write_text_file.
func (f *ClientFS) WriteTextFile(ctx context.Context, sessionID, path, content string) error {
	_, err := f.conn.Call(ctx, "fs/write_text_file", acp.WriteTextFileParams{
		SessionID: sessionID,
		Path:      path,
		Content:   content,
	})
	return err
}

// ClientTerminal issues terminal/create calls to the ACP client (§4.4,
// §6.1). It implements internal/tool.ClientTerminal.
type ClientTerminal struct {
	conn *Conn
}

// NewClientTerminal wraps conn for outbound terminal/create delegation.
func NewClientTerminal(conn *Conn) *ClientTerminal {
	return &ClientTerminal{conn: conn}
}

// CreateTerminal issues terminal/create and returns the client-assigned
// terminal id.
func (t *ClientTerminal) CreateTerminal(ctx context.Context, sessionID, cwd, command string, args []string) (string, error) {
	raw, err := t.conn.Call(ctx, "terminal/create", acp.CreateTerminalParams{
		SessionID: sessionID,
		Command:   command,
		Args:      args,
		Cwd:       cwd,
	})
	if err != nil {
		return "", err
	}
	var result acp.CreateTerminalResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return "", err
	}
	return result.TerminalID, nil
}
