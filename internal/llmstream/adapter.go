// Package llmstream hides the concrete LLM backend (an eino ChatModel,
// reached through internal/provider) behind a uniform lazy sequence of
// ModelEvents. The backend itself — the child process or HTTP client
// actually talking to Claude/OpenAI/Ark — is an external collaborator
// per the runtime's scope; this package is the in-scope adapter boundary.
package llmstream

import (
	"context"
	"encoding/json"
	"errors"
	"io"

	"github.com/cloudwego/eino/schema"
	"github.com/swissarmyhammer/agentcore/internal/provider"
	"github.com/swissarmyhammer/agentcore/pkg/acp"
)

// ModelEvent is one element of the lazy sequence a query yields. Exactly
// one of the fields is meaningfully populated per event, mirroring the
// backend chunk shape of §4.2.2.
type ModelEvent struct {
	Content    string
	ToolCall   *ToolCallInfo
	ToolResult *ToolResult
	StopReason string
}

// ToolCallInfo is the tool-call half of a ModelEvent.
type ToolCallInfo struct {
	ID       string
	Name     string
	RawInput map[string]any
}

// ToolResult is the tool-result half of a ModelEvent, for backends that
// stream a synthetic tool message back (most don't; this runtime's own
// tool executor instead feeds results back in as the next turn's
// context, but the adapter still demuxes the shape if a backend sends it).
type ToolResult struct {
	ToolCallID string
	Output     any
}

// Query is the adapter contract: given a prompt and read-only session
// context, produce a single-consumer, forward-only stream of
// ModelEvents. Restartable only by calling Query again.
type Query func(ctx context.Context, promptText string, context []*schema.Message) (*Stream, error)

// Stream is a single-consumer sequence of ModelEvents.
type Stream struct {
	inner *provider.CompletionStream
}

// NewStream wraps a provider completion stream.
func NewStream(inner *provider.CompletionStream) *Stream {
	return &Stream{inner: inner}
}

// ErrStreamClosed is returned by Next once the backend stream has ended.
var ErrStreamClosed = errors.New("llmstream: stream closed")

// Next demarshals the next backend chunk into a ModelEvent. A malformed
// chunk is never surfaced as a partial event: decode errors are wrapped
// as a ConverterError and terminate the stream (§4.5).
func (s *Stream) Next() (*ModelEvent, error) {
	msg, err := s.inner.Recv()
	if err == io.EOF {
		return nil, ErrStreamClosed
	}
	if err != nil {
		return nil, acp.New(acp.ErrConverterError, "demarshalling model chunk: "+err.Error(), nil)
	}
	return convert(msg), nil
}

// Close releases the underlying backend stream.
func (s *Stream) Close() {
	s.inner.Close()
}

func convert(msg *schema.Message) *ModelEvent {
	ev := &ModelEvent{Content: msg.Content}
	if len(msg.ToolCalls) > 0 {
		tc := msg.ToolCalls[0]
		ev.ToolCall = &ToolCallInfo{
			ID:       tc.ID,
			Name:     tc.Function.Name,
			RawInput: decodeArguments(tc.Function.Arguments),
		}
	}
	if msg.Role == schema.Tool {
		ev.ToolResult = &ToolResult{ToolCallID: msg.ToolCallID, Output: msg.Content}
	}
	if msg.ResponseMeta != nil {
		ev.StopReason = msg.ResponseMeta.FinishReason
	}
	return ev
}

func decodeArguments(raw string) map[string]any {
	var m map[string]any
	if raw == "" {
		return m
	}
	_ = json.Unmarshal([]byte(raw), &m)
	return m
}
