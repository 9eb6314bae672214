// Package orchestrator drives one ACP prompt turn end to end: it
// validates the inbound content, enforces the per-session turn budget,
// streams the backend's response, demultiplexes it into protocol
// notifications, and terminates with a stop reason (§4.2). It is the
// one place that wires together the session store, capability gate,
// cancellation registry, plan manager, permission engine, and LLM
// stream adapter — each of which stays ignorant of the others.
package orchestrator

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/eino/schema"

	"github.com/swissarmyhammer/agentcore/internal/cancel"
	"github.com/swissarmyhammer/agentcore/internal/capability"
	"github.com/swissarmyhammer/agentcore/internal/llmstream"
	"github.com/swissarmyhammer/agentcore/internal/logging"
	"github.com/swissarmyhammer/agentcore/internal/permission"
	"github.com/swissarmyhammer/agentcore/internal/planmgr"
	"github.com/swissarmyhammer/agentcore/internal/session"
	"github.com/swissarmyhammer/agentcore/pkg/acp"
)

// Notifier delivers a session/update notification to the client.
// Send failures are logged, never fatal to the turn (§4.2.4 "best-effort
// notify").
type Notifier interface {
	Notify(update acp.SessionUpdate) error
}

// ToolExecutor actually runs a tool call once consent has been granted.
// The orchestrator never executes a tool speculatively before consent
// (§1 Non-goals).
type ToolExecutor interface {
	Execute(ctx context.Context, sessionID, callID, name string, rawInput map[string]any) (output any, err error)
}

// Config bounds one turn's resource usage.
type Config struct {
	MaxTurnRequests int
}

// Orchestrator executes prompt turns.
type Orchestrator struct {
	store  *session.Store
	cancel *cancel.Registry
	gate   *capability.Gate
	plans  *planmgr.Manager
	perm   *permission.Engine
	notify Notifier
	query  llmstream.Query
	exec   ToolExecutor
	cfg    Config
}

// New builds an Orchestrator. exec may be nil if tool calls should
// never be executed locally (e.g. a client that runs its own tools).
func New(store *session.Store, cancelReg *cancel.Registry, gate *capability.Gate, plans *planmgr.Manager, perm *permission.Engine, notify Notifier, query llmstream.Query, exec ToolExecutor, cfg Config) *Orchestrator {
	return &Orchestrator{
		store: store, cancel: cancelReg, gate: gate, plans: plans,
		perm: perm, notify: notify, query: query, exec: exec, cfg: cfg,
	}
}

// Prompt executes one session/prompt call (§4.2).
func (o *Orchestrator) Prompt(ctx context.Context, sessionID string, blocks []acp.ContentBlock) (*acp.PromptResponse, error) {
	sess, err := o.store.Get(sessionID)
	if err != nil {
		return nil, acp.New(acp.ErrInvalidSessionID, "unknown session: "+sessionID, map[string]any{"sessionId": sessionID})
	}

	caps := acp.CapabilitySet{}
	if sess.ClientCapabilities != nil {
		caps = *sess.ClientCapabilities
	}
	if err := o.gate.ValidateContentBlocks(caps, blocks); err != nil {
		return nil, err
	}

	promptText, _ := flattenContent(blocks)

	turnCount := 0
	if err := o.store.Update(sessionID, func(s *session.Session) {
		s.TurnRequestCount++
		turnCount = s.TurnRequestCount
	}); err != nil {
		return nil, err
	}
	if o.cfg.MaxTurnRequests > 0 && turnCount > o.cfg.MaxTurnRequests {
		return &acp.PromptResponse{
			StopReason: acp.StopMaxTurnRequests,
			Meta: map[string]any{
				"turn_requests":     turnCount,
				"max_turn_requests": o.cfg.MaxTurnRequests,
				"session_id":        sessionID,
			},
		}, nil
	}

	_ = o.store.AppendMessage(sessionID, session.Message{Role: session.RoleUser, Content: promptText, Timestamp: time.Now()})

	streamCtx := buildContext(sess.Messages)
	stream, err := o.query(ctx, promptText, streamCtx)
	if err != nil {
		return nil, acp.New(acp.ErrNetworkError, "opening model stream: "+err.Error(), nil)
	}
	defer stream.Close()

	return o.runLoop(ctx, sessionID, stream)
}

func (o *Orchestrator) runLoop(ctx context.Context, sessionID string, stream *llmstream.Stream) (*acp.PromptResponse, error) {
	var finalStop string
	chunkCount := 0

	for {
		if o.cancel.IsCancelled(sessionID) {
			o.cancel.ResetForNewTurn(sessionID)
			return &acp.PromptResponse{
				StopReason: acp.StopCancelled,
				Meta:       map[string]any{"cancelled_during_streaming": true, "streaming": true},
			}, nil
		}

		ev, err := stream.Next()
		if err == llmstream.ErrStreamClosed {
			break
		}
		if err != nil {
			return nil, err
		}

		o.handleEvent(ctx, sessionID, ev, &finalStop, &chunkCount)
	}

	if o.cancel.IsCancelled(sessionID) {
		o.cancel.ResetForNewTurn(sessionID)
		return &acp.PromptResponse{
			StopReason: acp.StopCancelled,
			Meta:       map[string]any{"cancelled_after_streaming": true, "streaming": true},
		}, nil
	}

	// §9 open-question resolution: coalesce the per-chunk Assistant
	// messages stored during a normally-completed turn into one message
	// equal to their concatenation byte-for-byte.
	if chunkCount > 1 {
		if err := o.store.CoalesceTrailingAssistant(sessionID, chunkCount); err != nil {
			logging.Warn().Err(err).Str("sessionId", sessionID).Msg("coalescing streamed assistant chunks")
		}
	}

	stopReason := acp.MapBackendStopReason(finalStop)

	return &acp.PromptResponse{
		StopReason: stopReason,
		Meta:       map[string]any{"streaming": true},
	}, nil
}

// handleEvent demultiplexes one backend stream event into protocol
// notifications. Refusal classification is deliberately absent: every
// text chunk is forwarded as it arrives (§4.2.3 "streaming mode leaves
// [refusal classification] to the consumer").
func (o *Orchestrator) handleEvent(ctx context.Context, sessionID string, ev *llmstream.ModelEvent, finalStop *string, chunkCount *int) {
	switch {
	case ev.ToolCall != nil:
		o.handleToolCall(ctx, sessionID, ev.ToolCall)
	case ev.ToolResult != nil:
		o.notifySafe(acp.SessionUpdate{
			SessionID: sessionID,
			Kind:      acp.UpdateToolCallUpdate,
			ToolCallUpdate: &acp.ToolCallUpdate{
				ID:     ev.ToolResult.ToolCallID,
				Status: acp.ToolCallCompleted,
				Output: ev.ToolResult.Output,
			},
		})
	case ev.Content != "":
		*chunkCount++
		_ = o.store.AppendMessage(sessionID, session.Message{
			Role:      session.RoleAssistant,
			Content:   ev.Content,
			Timestamp: time.Now(),
		})
		o.notifySafe(acp.SessionUpdate{
			SessionID:    sessionID,
			Kind:         acp.UpdateAgentMessageChunk,
			ContentBlock: acp.TextContent{Text: ev.Content},
		})
	}
	if ev.StopReason != "" {
		*finalStop = ev.StopReason
	}
}

func (o *Orchestrator) handleToolCall(ctx context.Context, sessionID string, info *llmstream.ToolCallInfo) {
	call := acp.ToolCall{
		ID:       info.ID,
		Name:     info.Name,
		Kind:     acp.InferToolKind(info.Name),
		RawInput: info.RawInput,
		Status:   acp.ToolCallPending,
	}
	o.notifySafe(acp.SessionUpdate{SessionID: sessionID, Kind: acp.UpdateToolCall, ToolCall: &call})

	if info.Name == "TodoWrite" {
		entries := planmgr.FromRawInput(info.RawInput)
		plan := o.plans.Update(sessionID, entries)
		o.notifySafe(acp.SessionUpdate{SessionID: sessionID, Kind: acp.UpdatePlan, Plan: &plan})
	}

	decision := o.perm.Resolve(ctx, sessionID, call)
	o.notifySafe(acp.SessionUpdate{SessionID: sessionID, Kind: acp.UpdateToolCallUpdate, ToolCallUpdate: &decision.Update})

	if !decision.Execute || o.exec == nil {
		return
	}

	output, err := o.exec.Execute(ctx, sessionID, call.ID, call.Name, call.RawInput)
	update := acp.ToolCallUpdate{ID: call.ID, Status: acp.ToolCallCompleted, Output: output}
	if err != nil {
		update.Status = acp.ToolCallFailed
		update.Error = err.Error()
	}
	_ = o.store.AppendMessage(sessionID, session.Message{
		Role:       session.RoleTool,
		Content:    fmt.Sprint(output),
		ToolCallID: call.ID,
		ToolName:   call.Name,
		Timestamp:  time.Now(),
	})
	o.notifySafe(acp.SessionUpdate{SessionID: sessionID, Kind: acp.UpdateToolCallUpdate, ToolCallUpdate: &update})
}

func (o *Orchestrator) notifySafe(update acp.SessionUpdate) {
	if o.notify == nil {
		return
	}
	if err := o.notify.Notify(update); err != nil {
		logging.Warn().Err(err).Str("sessionId", update.SessionID).Str("kind", string(update.Kind)).
			Msg("session/update notification failed")
	}
}

// flattenContent renders ContentBlocks into one prompt string plus
// whether any binary content was present (§4.2.1 step 2).
func flattenContent(blocks []acp.ContentBlock) (string, bool) {
	var sb strings.Builder
	hasBinary := false
	for i, b := range blocks {
		if i > 0 {
			sb.WriteString("\n")
		}
		switch v := b.(type) {
		case acp.TextContent:
			sb.WriteString(v.Text)
		case acp.ImageContent:
			hasBinary = true
			ref := v.URI
			if ref == "" {
				ref = "embedded data"
			}
			sb.WriteString(fmt.Sprintf("[Image content: %s (%s)]", v.MimeType, ref))
		case acp.AudioContent:
			hasBinary = true
			sb.WriteString(fmt.Sprintf("[Audio content: %s (embedded data)]", v.MimeType))
		case acp.ResourceContent:
			hasBinary = true
			sb.WriteString("[Embedded Resource]")
		case acp.ResourceLinkContent:
			sb.WriteString(fmt.Sprintf("[Resource Link: %s]", v.URI))
		default:
			logging.Warn().Msg("skipping unknown content block variant")
		}
	}
	return sb.String(), hasBinary
}

// buildContext projects a session's prior messages into eino's message
// shape for the LLM adapter (§4.2.2 "session_context is a read-only
// projection").
func buildContext(messages []session.Message) []*schema.Message {
	out := make([]*schema.Message, 0, len(messages))
	for _, m := range messages {
		role := schema.Assistant
		switch m.Role {
		case session.RoleUser:
			role = schema.User
		case session.RoleSystem:
			role = schema.System
		case session.RoleTool:
			role = schema.Tool
		}
		out = append(out, &schema.Message{Role: role, Content: m.Content})
	}
	return out
}
