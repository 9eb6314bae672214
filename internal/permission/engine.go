package permission

import (
	"context"
	"sync"

	"github.com/swissarmyhammer/agentcore/internal/logging"
	"github.com/swissarmyhammer/agentcore/pkg/acp"
)

// PolicyOutcome is the result of evaluating policy for a tool call,
// before any stored preference or client consent is consulted (§4.3).
type PolicyOutcome string

const (
	PolicyAllowed        PolicyOutcome = "allowed"
	PolicyDenied         PolicyOutcome = "denied"
	PolicyRequireConsent PolicyOutcome = "require_consent"
)

// PolicyEvaluation is what a Policy returns for one proposed tool call.
type PolicyEvaluation struct {
	Outcome PolicyOutcome
	Reason  string
	Options []acp.PermissionKind
}

// Policy evaluates the configured rule set for a tool call. Pure: no
// I/O beyond reading in-memory policy (§4.3).
type Policy interface {
	Evaluate(toolName string, rawInput map[string]any) PolicyEvaluation
}

// PolicyFunc adapts a plain function to the Policy interface.
type PolicyFunc func(toolName string, rawInput map[string]any) PolicyEvaluation

func (f PolicyFunc) Evaluate(toolName string, rawInput map[string]any) PolicyEvaluation {
	return f(toolName, rawInput)
}

// AlwaysAskPolicy is the default policy: every tool call not already
// covered by a persisted preference requires consent.
var AlwaysAskPolicy = PolicyFunc(func(string, map[string]any) PolicyEvaluation {
	return PolicyEvaluation{
		Outcome: PolicyRequireConsent,
		Options: []acp.PermissionKind{acp.AllowOnce, acp.AllowAlways, acp.RejectOnce, acp.RejectAlways},
	}
})

// ConsentRequester issues request_permission to the client and blocks
// until the turn-suspending RPC response arrives (§4.3 "Concurrency").
// A nil Engine.requester means headless mode: consent-required calls
// are treated as denied (§4.3).
type ConsentRequester interface {
	RequestPermission(ctx context.Context, sessionID string, update acp.ToolCallUpdate, options []acp.PermissionKind) (kind acp.PermissionKind, cancelled bool, err error)
}

// Engine is the Tool Permission Engine (§4.3): it evaluates policy,
// consults and persists per-tool preferences, and drives the
// request_permission consent flow for calls the policy can't decide
// on its own.
type Engine struct {
	policy    Policy
	requester ConsentRequester
	doomLoop  *DoomLoopDetector

	mu    sync.RWMutex
	prefs map[string]acp.PermissionKind // tool_name -> preference, process-wide
}

// NewEngine builds an Engine. requester may be nil for headless mode.
func NewEngine(policy Policy, requester ConsentRequester) *Engine {
	if policy == nil {
		policy = AlwaysAskPolicy
	}
	return &Engine{
		policy:    policy,
		requester: requester,
		doomLoop:  NewDoomLoopDetector(),
		prefs:     make(map[string]acp.PermissionKind),
	}
}

// Decision is the outcome of Resolve: whether the call may execute, and
// the ToolCallUpdate to notify the client with either way.
type Decision struct {
	Execute bool
	Update  acp.ToolCallUpdate
}

// Resolve drives the full consent flow for one tool call (§4.3
// "Consent flow"):
//  1. A persisted AllowAlways/RejectAlways preference short-circuits.
//  2. A persisted *Once preference is unexpected (warn) and falls
//     through to asking again.
//  3. Otherwise policy.Evaluate decides, issuing request_permission
//     through the ConsentRequester when it returns RequireConsent.
func (e *Engine) Resolve(ctx context.Context, sessionID string, call acp.ToolCall) Decision {
	// §4.3 "NEW, supplemented from teacher": a repeated identical call
	// short-circuits before the preference lookup, so a doom loop can't
	// hide behind an already-persisted AllowAlways.
	if e.doomLoop.Check(sessionID, call.Name, call.RawInput) {
		logging.Warn().Str("tool", call.Name).Str("sessionId", sessionID).
			Msg("repeated identical tool call detected; denying without consulting client")
		return Decision{Execute: false, Update: acp.ToolCallUpdate{ID: call.ID, Status: acp.ToolCallFailed, Error: "repeated_identical_call"}}
	}

	if kind, ok := e.getPreference(call.Name); ok {
		switch kind {
		case acp.AllowAlways:
			return Decision{Execute: true, Update: acp.ToolCallUpdate{ID: call.ID, Status: acp.ToolCallRunning}}
		case acp.RejectAlways:
			return Decision{Execute: false, Update: acp.ToolCallUpdate{ID: call.ID, Status: acp.ToolCallCancelled}}
		default:
			logging.Warn().Str("tool", call.Name).Str("preference", string(kind)).
				Msg("unexpected *_once preference persisted; asking again")
		}
	}

	eval := e.policy.Evaluate(call.Name, call.RawInput)
	switch eval.Outcome {
	case PolicyAllowed:
		return Decision{Execute: true, Update: acp.ToolCallUpdate{ID: call.ID, Status: acp.ToolCallRunning}}
	case PolicyDenied:
		return Decision{Execute: false, Update: acp.ToolCallUpdate{ID: call.ID, Status: acp.ToolCallFailed, Error: eval.Reason}}
	default:
		return e.requestConsent(ctx, sessionID, call, eval.Options)
	}
}

func (e *Engine) requestConsent(ctx context.Context, sessionID string, call acp.ToolCall, options []acp.PermissionKind) Decision {
	if e.requester == nil {
		logging.Warn().Str("tool", call.Name).Msg("no client connection for request_permission; denying (headless)")
		return Decision{Execute: false, Update: acp.ToolCallUpdate{ID: call.ID, Status: acp.ToolCallCancelled}}
	}

	pendingUpdate := acp.ToolCallUpdate{ID: call.ID, Status: acp.ToolCallPending}
	kind, cancelled, err := e.requester.RequestPermission(ctx, sessionID, pendingUpdate, options)
	if err != nil {
		logging.Warn().Err(err).Str("tool", call.Name).Msg("request_permission failed")
		return Decision{Execute: false, Update: acp.ToolCallUpdate{ID: call.ID, Status: acp.ToolCallFailed, Error: err.Error()}}
	}
	if cancelled {
		return Decision{Execute: false, Update: acp.ToolCallUpdate{ID: call.ID, Status: acp.ToolCallCancelled}}
	}

	if kind.IsAlways() {
		e.setPreference(call.Name, kind)
	}

	if kind.IsAllow() {
		return Decision{Execute: true, Update: acp.ToolCallUpdate{ID: call.ID, Status: acp.ToolCallRunning}}
	}
	return Decision{Execute: false, Update: acp.ToolCallUpdate{ID: call.ID, Status: acp.ToolCallCancelled}}
}

func (e *Engine) getPreference(toolName string) (acp.PermissionKind, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	kind, ok := e.prefs[toolName]
	return kind, ok
}

// setPreference is a no-op (§8 "round-trip and idempotence") when the
// tool already carries the same preference.
func (e *Engine) setPreference(toolName string, kind acp.PermissionKind) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.prefs[toolName] == kind {
		return
	}
	e.prefs[toolName] = kind
}

// Preference exposes the current persisted preference for a tool, for
// diagnostics and tests.
func (e *Engine) Preference(toolName string) (acp.PermissionKind, bool) {
	return e.getPreference(toolName)
}
