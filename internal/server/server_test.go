package server_test

import (
	"bytes"
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/swissarmyhammer/agentcore/internal/cancel"
	"github.com/swissarmyhammer/agentcore/internal/orchestrator"
	"github.com/swissarmyhammer/agentcore/internal/permission"
	"github.com/swissarmyhammer/agentcore/internal/planmgr"
	"github.com/swissarmyhammer/agentcore/internal/server"
	"github.com/swissarmyhammer/agentcore/internal/session"
	"github.com/swissarmyhammer/agentcore/internal/storage"
	"github.com/swissarmyhammer/agentcore/pkg/acp"
)

func newTestServer(t *testing.T) *server.Server {
	t.Helper()
	store := session.NewStore(storage.New(t.TempDir()), 256, 1)
	cancelReg := cancel.NewRegistry()
	plans := planmgr.New()

	return server.New(
		server.DefaultConfig(),
		store,
		cancelReg,
		plans,
		nil, // no LLM backend needed to exercise transport-level routing
		nil,
		permission.AlwaysAskPolicy,
		acp.CapabilitySet{},
		orchestrator.Config{MaxTurnRequests: 10},
		nil,
		nil,
	)
}

func TestHealthz(t *testing.T) {
	srv := newTestServer(t)
	req := httptest.NewRequest("GET", "/healthz", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	assert.Equal(t, 200, rec.Code)
}

func TestRPCInitialize(t *testing.T) {
	srv := newTestServer(t)

	body, err := json.Marshal(acp.Request{
		JSONRPC: "2.0",
		ID:      json.RawMessage(`1`),
		Method:  "initialize",
		Params:  json.RawMessage(`{"protocolVersion":"V1"}`),
	})
	require.NoError(t, err)

	req := httptest.NewRequest("POST", "/rpc", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	require.Equal(t, 200, rec.Code)

	var resp acp.Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Nil(t, resp.Error)

	var result acp.InitializeResult
	require.NoError(t, json.Unmarshal(resp.Result, &result))
	assert.Equal(t, acp.ProtocolVersion, result.ProtocolVersion)
}

func TestRPCUnknownMethod(t *testing.T) {
	srv := newTestServer(t)

	body, err := json.Marshal(acp.Request{JSONRPC: "2.0", ID: json.RawMessage(`2`), Method: "nope"})
	require.NoError(t, err)

	req := httptest.NewRequest("POST", "/rpc", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	require.Equal(t, 200, rec.Code)
	var resp acp.Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotNil(t, resp.Error)
	assert.Equal(t, -32602, resp.Error.Code)
}

func TestSessionCancelEndpoint(t *testing.T) {
	srv := newTestServer(t)
	req := httptest.NewRequest("DELETE", "/sessions/sess-1/cancel", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	assert.Equal(t, 204, rec.Code)
}
