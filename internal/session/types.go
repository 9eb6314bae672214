package session

import (
	"time"

	"github.com/swissarmyhammer/agentcore/pkg/acp"
)

// Message is one turn of conversation history. Role mirrors the tagged
// variant of §3: System, User, Assistant, or Tool. Tool messages carry
// the id of the ToolCall they answer.
type Message struct {
	Role       Role      `json:"role"`
	Content    string    `json:"content"`
	ToolCallID string    `json:"toolCallID,omitempty"`
	ToolName   string    `json:"toolName,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// Role is the tagged-variant discriminator for a Message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// ToolDescriptor identifies one tool an MCP server (or the built-in
// registry) has made available to a session.
type ToolDescriptor struct {
	Name string       `json:"name"`
	Kind acp.ToolKind `json:"kind"`
}

// CompactionRecord is an append-only entry describing one compaction
// pass: how many messages were summarized and to how many tokens.
type CompactionRecord struct {
	OriginalTokens   int       `json:"originalTokens"`
	CompressedTokens int       `json:"compressedTokens"`
	Timestamp        time.Time `json:"timestamp"`
}

// Session is the unit of conversation state owned by the Store (§3).
// Callers never hold a *Session directly across a mutation; they get a
// snapshot clone from Get or submit a closure to Update.
type Session struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	Messages []Message `json:"messages"`

	// WorkspaceDir is the absolute, Git-rooted cwd the session was
	// created against (required by session/new, §1 Non-goals).
	WorkspaceDir string `json:"workspaceDir"`

	// ProjectID identifies the Git worktree this session's workspace
	// belongs to, independent of which subdirectory WorkspaceDir names —
	// sibling sessions opened against the same repository share one.
	ProjectID string `json:"projectId,omitempty"`

	ClientCapabilities *acp.CapabilitySet `json:"clientCapabilities,omitempty"`

	AvailableTools map[string]ToolDescriptor `json:"availableTools,omitempty"`

	// TurnRequestCount is reset to 0 at the start of each new prompt turn
	// and incremented before each LLM request within that turn.
	TurnRequestCount int `json:"turnRequestCount"`

	CurrentMode string `json:"currentMode,omitempty"`

	TranscriptPath string `json:"transcriptPath,omitempty"`

	CompactionHistory []CompactionRecord `json:"compactionHistory,omitempty"`
}

// Clone returns a deep copy suitable for handing to a caller as a
// snapshot: mutating it never affects the Store's copy.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	clone := *s
	clone.Messages = append([]Message(nil), s.Messages...)
	if s.ClientCapabilities != nil {
		caps := *s.ClientCapabilities
		clone.ClientCapabilities = &caps
	}
	if s.AvailableTools != nil {
		clone.AvailableTools = make(map[string]ToolDescriptor, len(s.AvailableTools))
		for k, v := range s.AvailableTools {
			clone.AvailableTools[k] = v
		}
	}
	clone.CompactionHistory = append([]CompactionRecord(nil), s.CompactionHistory...)
	return &clone
}

// Config controls session creation defaults, sourced from the runtime's
// configuration (max_turn_requests, auto-save threshold, session TTL).
type Config struct {
	WorkspaceDir   string
	ProjectID      string
	Capabilities   *acp.CapabilitySet
	TranscriptPath string
	AvailableTools map[string]ToolDescriptor
}
