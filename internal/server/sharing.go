package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/swissarmyhammer/agentcore/internal/sharing"
)

// shareRequest is the body of POST /sessions/{id}/share.
type shareRequest struct {
	ExpiresInSeconds int  `json:"expiresInSeconds,omitempty"`
	MaxViews         int  `json:"maxViews,omitempty"`
	Public           bool `json:"public,omitempty"`
}

// handleShare creates or updates a share link for a session. The
// session must exist on this server's store -- sharing a session id
// nobody created would hand out a token for nothing.
func (s *Server) handleShare(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	if _, err := s.store.Get(sessionID); err != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "session not found"})
		return
	}

	var req shareRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "malformed request body"})
			return
		}
	}

	opts := &sharing.ShareOptions{
		MaxViews: req.MaxViews,
		Public:   req.Public,
	}
	if req.ExpiresInSeconds > 0 {
		opts.ExpiresIn = time.Duration(req.ExpiresInSeconds) * time.Second
	}

	info, err := s.shares.Share(sessionID, opts)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, info)
}

// handleUnshare revokes a session's share link.
func (s *Server) handleUnshare(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	if err := s.shares.Unshare(sessionID); err != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleGetShare resolves a share token, recording a view. Expired or
// view-exhausted tokens read as not found rather than exposing their
// former session id.
func (s *Server) handleGetShare(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")
	info, err := s.shares.GetByToken(token)
	if err != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "share not found or expired"})
		return
	}
	if err := s.shares.RecordView(token); err != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "share not found or expired"})
		return
	}
	writeJSON(w, http.StatusOK, info)
}
