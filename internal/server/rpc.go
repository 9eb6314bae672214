package server

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/swissarmyhammer/agentcore/internal/logging"
	"github.com/swissarmyhammer/agentcore/pkg/acp"
)

func (s *Server) setupRoutes() {
	s.router.Post("/rpc", s.handleRPC)
	s.router.Delete("/sessions/{sessionID}/cancel", s.handleCancel)
	s.router.Get("/sessions/{sessionID}/events", s.sessionEvents)
	s.router.Get("/healthz", s.handleHealthz)

	s.router.Post("/sessions/{sessionID}/share", s.handleShare)
	s.router.Delete("/sessions/{sessionID}/share", s.handleUnshare)
	s.router.Get("/share/{token}", s.handleGetShare)

	s.router.Post("/client-tools", s.handleRegisterClientTools)
	s.router.Delete("/client-tools/{clientID}", s.handleUnregisterClientTools)
	s.router.Post("/client-tools/results/{requestID}", s.handleSubmitClientToolResult)
}

// handleRPC decodes one JSON-RPC 2.0 request and dispatches it through
// the same method table the stdio transport uses.
func (s *Server) handleRPC(w http.ResponseWriter, r *http.Request) {
	var req acp.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeRPCError(w, nil, acp.AsError(acp.New(acp.ErrMalformedRequest, "malformed JSON-RPC body: "+err.Error(), nil)))
		return
	}

	result, err := s.acp.Dispatch(r.Context(), req.Method, req.Params)
	if err != nil {
		writeRPCError(w, req.ID, acp.AsError(err))
		return
	}

	resp, err := acp.NewResultResponse(req.ID, result)
	if err != nil {
		writeRPCError(w, req.ID, acp.AsError(err))
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleCancel is the HTTP equivalent of the stdio session/cancel
// notification: there's no inbound notification channel over plain
// HTTP, so cancellation is a DELETE instead.
func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	s.acp.HandleCancel(sessionID)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeRPCError(w http.ResponseWriter, id json.RawMessage, rpcErr *acp.RPCError) {
	writeJSON(w, http.StatusOK, acp.NewErrorResponse(id, rpcErr))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Warn().Err(err).Msg("writing JSON response")
	}
}

// NewAutoDenyRequester builds the permission decision function used by
// the HTTP transport: since a plain request/response cycle has no
// channel to suspend on while the user answers, every tool call that
// would otherwise require interactive consent is denied rather than
// left hanging. Clients that need interactive request_permission
// prompts use the stdio transport instead (SPEC_FULL.md §6.1).
func NewAutoDenyRequester() func(ctx context.Context, sessionID string, update acp.ToolCallUpdate, options []acp.PermissionKind) (acp.PermissionKind, bool, error) {
	return func(_ context.Context, sessionID string, _ acp.ToolCallUpdate, options []acp.PermissionKind) (acp.PermissionKind, bool, error) {
		for _, o := range options {
			if o == acp.RejectOnce || o == acp.RejectAlways {
				logging.Warn().Str("sessionId", sessionID).Msg("auto-denying tool call over HTTP transport: no interactive channel")
				return o, false, nil
			}
		}
		return acp.RejectOnce, false, nil
	}
}
