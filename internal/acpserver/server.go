package acpserver

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/swissarmyhammer/agentcore/internal/cancel"
	"github.com/swissarmyhammer/agentcore/internal/capability"
	"github.com/swissarmyhammer/agentcore/internal/command"
	"github.com/swissarmyhammer/agentcore/internal/llmstream"
	"github.com/swissarmyhammer/agentcore/internal/logging"
	"github.com/swissarmyhammer/agentcore/internal/orchestrator"
	"github.com/swissarmyhammer/agentcore/internal/permission"
	"github.com/swissarmyhammer/agentcore/internal/planmgr"
	"github.com/swissarmyhammer/agentcore/internal/session"
	"github.com/swissarmyhammer/agentcore/pkg/acp"
)

// Server is the method dispatch table for one ACP connection. It wires
// the session store, capability gate, cancellation registry, plan
// manager, permission engine, and prompt-turn orchestrator together,
// implementing both orchestrator.Notifier (for session/update) and
// permission.ConsentRequester (for request_permission). The dispatch
// logic itself (dispatch/handle*) never touches the transport directly —
// only Run, Notify, and RequestPermission are transport-specific — so
// the same Server backs both the stdio loop (conn non-nil) and the
// `serve http` SSE transport (conn nil, notifyFn/permissionFn supplied
// by internal/server instead; see NewHTTPServer).
type Server struct {
	conn      *Conn
	store     *session.Store
	cancelReg *cancel.Registry
	gate      *capability.Gate
	plans     *planmgr.Manager
	perm      *permission.Engine
	orch      *orchestrator.Orchestrator
	agentCaps acp.CapabilitySet

	// availableTools is handed to every session created on this
	// connection as its initial AvailableTools set (§3): the local
	// registry's tools plus whatever any connected MCP servers expose.
	availableTools map[string]session.ToolDescriptor

	// cmds expands "/name args" prompt text into its configured template
	// before the orchestrator ever sees it (nil disables expansion).
	cmds *command.Executor

	notifyFn     func(acp.SessionUpdate) error
	permissionFn func(ctx context.Context, sessionID string, update acp.ToolCallUpdate, options []acp.PermissionKind) (acp.PermissionKind, bool, error)
}

// NewServer wires one stdio ACP connection's components. toolExec may be
// nil when the client is expected to run its own tools (exec is passed
// straight through to orchestrator.New).
func NewServer(
	conn *Conn,
	store *session.Store,
	cancelReg *cancel.Registry,
	plans *planmgr.Manager,
	query llmstream.Query,
	toolExec orchestrator.ToolExecutor,
	policy permission.Policy,
	agentCaps acp.CapabilitySet,
	cfg orchestrator.Config,
	availableTools map[string]session.ToolDescriptor,
	cmds *command.Executor,
) *Server {
	s := &Server{
		conn:           conn,
		store:          store,
		cancelReg:      cancelReg,
		gate:           capability.New(),
		plans:          plans,
		agentCaps:      agentCaps,
		availableTools: availableTools,
		cmds:           cmds,
	}
	s.notifyFn = func(u acp.SessionUpdate) error {
		n, err := acp.NewNotification("session/update", u)
		if err != nil {
			return err
		}
		return s.conn.SendNotification(n)
	}
	s.permissionFn = func(ctx context.Context, sessionID string, update acp.ToolCallUpdate, options []acp.PermissionKind) (acp.PermissionKind, bool, error) {
		params := acp.RequestPermissionParams{SessionID: sessionID, ToolCall: &update, Options: options}
		raw, err := s.conn.Call(ctx, "request_permission", params)
		if err != nil {
			return "", false, err
		}
		var result acp.RequestPermissionResult
		if err := json.Unmarshal(raw, &result); err != nil {
			return "", false, err
		}
		return result.Outcome, result.Cancelled, nil
	}
	s.perm = permission.NewEngine(policy, s)
	s.orch = orchestrator.New(store, cancelReg, s.gate, plans, s.perm, s, query, toolExec, cfg)
	return s
}

// NewHTTPServer wires the same dispatch table for the `serve http`
// transport (§6.1): notify broadcasts over the caller-supplied SSE
// publisher instead of a stdio Conn. Interactive request_permission has
// no duplex channel over plain HTTP, so permissionFn is required and is
// typically a policy that denies rather than blocks (internal/server
// supplies one backed by the same doublestar-pattern defaults used by
// the stdio transport, documented in DESIGN.md).
func NewHTTPServer(
	store *session.Store,
	cancelReg *cancel.Registry,
	plans *planmgr.Manager,
	query llmstream.Query,
	toolExec orchestrator.ToolExecutor,
	policy permission.Policy,
	agentCaps acp.CapabilitySet,
	cfg orchestrator.Config,
	availableTools map[string]session.ToolDescriptor,
	cmds *command.Executor,
	notifyFn func(acp.SessionUpdate) error,
	permissionFn func(ctx context.Context, sessionID string, update acp.ToolCallUpdate, options []acp.PermissionKind) (acp.PermissionKind, bool, error),
) *Server {
	s := &Server{
		store:          store,
		cancelReg:      cancelReg,
		gate:           capability.New(),
		plans:          plans,
		agentCaps:      agentCaps,
		availableTools: availableTools,
		cmds:           cmds,
		notifyFn:       notifyFn,
		permissionFn:   permissionFn,
	}
	s.perm = permission.NewEngine(policy, s)
	s.orch = orchestrator.New(store, cancelReg, s.gate, plans, s.perm, s, query, toolExec, cfg)
	return s
}

// Dispatch routes one already-decoded JSON-RPC method/params pair
// through the same handling the stdio loop uses, letting the HTTP
// transport reuse it verbatim for POST /rpc.
func (s *Server) Dispatch(ctx context.Context, method string, params json.RawMessage) (any, error) {
	return s.dispatch(ctx, method, params)
}

// HandleCancel implements the session/cancel notification for
// transports that don't route it through handleNotification (the HTTP
// transport has no inbound notification channel, only a DELETE-style
// cancel endpoint).
func (s *Server) HandleCancel(sessionID string) {
	s.cancelReg.Cancel(sessionID)
}

// Run drives the connection until the transport closes: requests are
// dispatched on their own goroutine so a long-running session/prompt
// never blocks the read loop from observing a session/cancel
// notification that arrives while it streams (§5 "Cancellation").
func (s *Server) Run(ctx context.Context) error {
	return s.conn.ReadLoop(
		func(id json.RawMessage, method string, params json.RawMessage) {
			go s.handleRequest(ctx, id, method, params)
		},
		func(method string, params json.RawMessage) {
			s.handleNotification(method, params)
		},
	)
}

// Notify implements orchestrator.Notifier by emitting a session/update
// notification over whichever transport this Server was constructed
// with.
func (s *Server) Notify(update acp.SessionUpdate) error {
	return s.notifyFn(update)
}

// RequestPermission implements permission.ConsentRequester. Over stdio
// this issues the outbound request_permission call and blocks until the
// client answers (§4.3 "Concurrency": this suspends the turn at the
// orchestrator's awaiting goroutine, not the read loop); over HTTP it
// delegates to whatever policy internal/server supplied.
func (s *Server) RequestPermission(ctx context.Context, sessionID string, update acp.ToolCallUpdate, options []acp.PermissionKind) (acp.PermissionKind, bool, error) {
	return s.permissionFn(ctx, sessionID, update, options)
}

func (s *Server) handleRequest(ctx context.Context, id json.RawMessage, method string, params json.RawMessage) {
	result, err := s.dispatch(ctx, method, params)

	var resp *acp.Response
	if err != nil {
		resp = acp.NewErrorResponse(id, acp.AsError(err))
	} else if resp, err = acp.NewResultResponse(id, result); err != nil {
		resp = acp.NewErrorResponse(id, acp.AsError(err))
	}

	if err := s.conn.SendResponse(resp); err != nil {
		logging.Warn().Err(err).Str("method", method).Msg("sending JSON-RPC response failed")
	}
}

func (s *Server) handleNotification(method string, params json.RawMessage) {
	switch method {
	case "session/cancel":
		var p acp.CancelParams
		if err := json.Unmarshal(params, &p); err != nil {
			logging.Warn().Err(err).Msg("malformed session/cancel notification")
			return
		}
		s.cancelReg.Cancel(p.SessionID)
	default:
		logging.Warn().Str("method", method).Msg("unhandled inbound notification")
	}
}

func (s *Server) dispatch(ctx context.Context, method string, params json.RawMessage) (any, error) {
	switch method {
	case "initialize":
		return s.handleInitialize(params)
	case "session/new":
		return s.handleNewSession(params)
	case "session/load":
		return s.handleLoadSession(params)
	case "session/prompt":
		return s.handlePrompt(ctx, params)
	case "session/set_mode":
		return s.handleSetMode(params)
	default:
		return nil, acp.New(acp.ErrMalformedRequest, "unknown method: "+method, map[string]any{"method": method})
	}
}

func (s *Server) handleInitialize(params json.RawMessage) (*acp.InitializeResult, error) {
	var p acp.InitializeParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, acp.New(acp.ErrMalformedRequest, "malformed initialize params: "+err.Error(), nil)
	}
	if p.ProtocolVersion != "" && p.ProtocolVersion != acp.ProtocolVersion {
		return nil, acp.New(acp.ErrTransportNotSupported,
			"unsupported protocol version: "+p.ProtocolVersion, map[string]any{"protocolVersion": p.ProtocolVersion})
	}
	return &acp.InitializeResult{ProtocolVersion: acp.ProtocolVersion, AgentCapabilities: s.agentCaps}, nil
}

func (s *Server) handleNewSession(params json.RawMessage) (*acp.NewSessionResult, error) {
	var p acp.NewSessionParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, acp.New(acp.ErrMalformedRequest, "malformed session/new params: "+err.Error(), nil)
	}
	proj, err := ValidateWorkspace(p.Cwd)
	if err != nil {
		return nil, err
	}

	caps := p.ClientCapabilities
	sess, err := s.store.Create(session.Config{
		WorkspaceDir:   p.Cwd,
		ProjectID:      proj.ID,
		Capabilities:   &caps,
		AvailableTools: s.availableTools,
	})
	if err != nil {
		return nil, acp.New(acp.ErrStorageFailure, "creating session: "+err.Error(), nil)
	}
	return &acp.NewSessionResult{SessionID: sess.ID}, nil
}

func (s *Server) handleLoadSession(params json.RawMessage) (*acp.LoadSessionResult, error) {
	var p acp.LoadSessionParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, acp.New(acp.ErrMalformedRequest, "malformed session/load params: "+err.Error(), nil)
	}
	if err := s.gate.RequireLoadSession(p.ClientCapabilities); err != nil {
		return nil, err
	}

	sess, err := s.store.Get(p.SessionID)
	if err != nil {
		return nil, acp.New(acp.ErrSessionNotFoundParam, "session not found: "+p.SessionID, map[string]any{"sessionId": p.SessionID})
	}

	// Replay history as notifications (§6.1 "replays history as
	// notifications") before the caller can issue a prompt against it.
	for _, m := range sess.Messages {
		if m.Role != session.RoleAssistant {
			continue
		}
		if err := s.Notify(acp.SessionUpdate{
			SessionID:    sess.ID,
			Kind:         acp.UpdateAgentMessageChunk,
			ContentBlock: acp.TextContent{Text: m.Content},
		}); err != nil {
			logging.Warn().Err(err).Str("sessionId", sess.ID).Msg("replaying history during session/load")
		}
	}

	return &acp.LoadSessionResult{SessionID: sess.ID}, nil
}

func (s *Server) handlePrompt(ctx context.Context, params json.RawMessage) (*acp.PromptResponse, error) {
	var p acp.PromptParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, acp.New(acp.ErrMalformedRequest, "malformed session/prompt params: "+err.Error(), nil)
	}

	blocks := make([]acp.ContentBlock, 0, len(p.Prompt))
	for _, raw := range p.Prompt {
		b, err := acp.UnmarshalContentBlock(raw)
		if err != nil {
			return nil, acp.New(acp.ErrInvalidParameterType, "malformed content block: "+err.Error(), nil)
		}
		blocks = append(blocks, b)
	}

	s.expandCommands(blocks)
	return s.orch.Prompt(ctx, p.SessionID, blocks)
}

// expandCommands rewrites any leading "/name args" text block in place
// into its configured command template, so "/review please check auth.go"
// reaches the orchestrator as the expanded prompt rather than literal
// slash syntax. Unknown command names and non-text leading blocks pass
// through unchanged.
func (s *Server) expandCommands(blocks []acp.ContentBlock) {
	if s.cmds == nil || len(blocks) == 0 {
		return
	}
	text, ok := blocks[0].(acp.TextContent)
	if !ok || !strings.HasPrefix(text.Text, "/") {
		return
	}

	rest := strings.TrimPrefix(text.Text, "/")
	name, args, _ := strings.Cut(rest, " ")
	if _, ok := s.cmds.Get(name); !ok {
		return
	}

	result, err := s.cmds.Execute(context.Background(), name, args)
	if err != nil {
		logging.Warn().Err(err).Str("command", name).Msg("expanding slash command")
		return
	}
	blocks[0] = acp.TextContent{Text: result.Prompt}
}

func (s *Server) handleSetMode(params json.RawMessage) (map[string]any, error) {
	var p acp.SetModeParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, acp.New(acp.ErrMalformedRequest, "malformed session/set_mode params: "+err.Error(), nil)
	}

	if err := s.store.Update(p.SessionID, func(sess *session.Session) {
		sess.CurrentMode = p.ModeID
	}); err != nil {
		return nil, acp.New(acp.ErrSessionNotFoundParam, "session not found: "+p.SessionID, map[string]any{"sessionId": p.SessionID})
	}
	return map[string]any{}, nil
}
