package server

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/swissarmyhammer/agentcore/internal/clienttool"
)

// registerToolsRequest is the body of POST /client-tools.
type registerToolsRequest struct {
	ClientID string                      `json:"clientID"`
	Tools    []clienttool.ToolDefinition `json:"tools"`
}

// handleRegisterClientTools lets a connected client declare tools the
// agent can call back into over this same HTTP transport (distinct from
// a tool the agent already runs locally or against an MCP server).
func (s *Server) handleRegisterClientTools(w http.ResponseWriter, r *http.Request) {
	var req registerToolsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "malformed request body"})
		return
	}
	if req.ClientID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "clientID is required"})
		return
	}

	registered := s.clientTools.Register(req.ClientID, req.Tools)
	writeJSON(w, http.StatusOK, map[string]any{"registered": registered})
}

// unregisterToolsRequest is the body of DELETE /client-tools/{clientID}.
// An empty ToolIDs list unregisters everything for that client.
type unregisterToolsRequest struct {
	ToolIDs []string `json:"toolIDs,omitempty"`
}

func (s *Server) handleUnregisterClientTools(w http.ResponseWriter, r *http.Request) {
	clientID := chi.URLParam(r, "clientID")

	var req unregisterToolsRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "malformed request body"})
			return
		}
	}

	unregistered := s.clientTools.Unregister(clientID, req.ToolIDs)
	writeJSON(w, http.StatusOK, map[string]any{"unregistered": unregistered})
}

// submitResultRequest is the body of POST
// /client-tools/results/{requestID}: a client answering an
// ExecutionRequest the agent dispatched against one of its tools.
func (s *Server) handleSubmitClientToolResult(w http.ResponseWriter, r *http.Request) {
	requestID := chi.URLParam(r, "requestID")

	var resp clienttool.ToolResponse
	if err := json.NewDecoder(r.Body).Decode(&resp); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "malformed request body"})
		return
	}

	if !s.clientTools.SubmitResult(requestID, resp) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "no pending request with that id"})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
