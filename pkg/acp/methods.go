package acp

import "encoding/json"

// InitializeParams is the payload of the initialize request.
type InitializeParams struct {
	ProtocolVersion    string        `json:"protocolVersion"`
	ClientCapabilities CapabilitySet `json:"clientCapabilities"`
}

// InitializeResult is the agent's reply to initialize.
type InitializeResult struct {
	ProtocolVersion   string        `json:"protocolVersion"`
	AgentCapabilities CapabilitySet `json:"agentCapabilities"`
}

// NewSessionParams is the payload of session/new.
type NewSessionParams struct {
	Cwd                string        `json:"cwd"`
	ClientCapabilities CapabilitySet `json:"clientCapabilities"`
}

// NewSessionResult is the agent's reply to session/new.
type NewSessionResult struct {
	SessionID string `json:"sessionId"`
}

// LoadSessionParams is the payload of session/load.
type LoadSessionParams struct {
	SessionID          string        `json:"sessionId"`
	ClientCapabilities CapabilitySet `json:"clientCapabilities"`
}

// LoadSessionResult is the agent's reply to session/load.
type LoadSessionResult struct {
	SessionID string `json:"sessionId"`
}

// PromptParams is the payload of session/prompt.
type PromptParams struct {
	SessionID string            `json:"sessionId"`
	Prompt    []json.RawMessage `json:"prompt"`
}

// CancelParams is the payload of the session/cancel notification.
type CancelParams struct {
	SessionID string `json:"sessionId"`
}

// SetModeParams is the payload of session/set_mode.
type SetModeParams struct {
	SessionID string `json:"sessionId"`
	ModeID    string `json:"modeId"`
}

// ReadTextFileParams is the payload of an agent-issued fs/read_text_file call.
type ReadTextFileParams struct {
	SessionID string `json:"sessionId"`
	Path      string `json:"path"`
}

// ReadTextFileResult is the client's reply to fs/read_text_file.
type ReadTextFileResult struct {
	Content string `json:"content"`
}

// WriteTextFileParams is the payload of an agent-issued fs/write_text_file call.
type WriteTextFileParams struct {
	SessionID string `json:"sessionId"`
	Path      string `json:"path"`
	Content   string `json:"content"`
}

// CreateTerminalParams is the payload of an agent-issued terminal/create call.
type CreateTerminalParams struct {
	SessionID string   `json:"sessionId"`
	Command   string   `json:"command"`
	Args      []string `json:"args,omitempty"`
	Cwd       string   `json:"cwd,omitempty"`
}

// CreateTerminalResult is the client's reply to terminal/create.
type CreateTerminalResult struct {
	TerminalID string `json:"terminalId"`
}

// RequestPermissionParams is the payload of an agent-issued request_permission call.
type RequestPermissionParams struct {
	SessionID string          `json:"sessionId"`
	ToolCall  *ToolCallUpdate `json:"toolCall"`
	Options   []PermissionKind `json:"options"`
}

// RequestPermissionResult is the client's reply to request_permission.
type RequestPermissionResult struct {
	Outcome   PermissionKind `json:"outcome"`
	Cancelled bool           `json:"cancelled,omitempty"`
}
