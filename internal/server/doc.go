// Package server implements the `serve http --port` diagnostic transport
// (SPEC_FULL.md §6.1): the same JSON-RPC 2.0 methods the stdio transport
// speaks, exposed over HTTP as a single POST /rpc endpoint plus a
// GET /sessions/{sessionID}/events SSE stream for session/update
// notifications. It is a secondary transport — stdio remains the
// primary one — adapted from the teacher's chi-based REST API server,
// whose route tree spoke a bespoke CRUD shape rather than ACP's
// JSON-RPC method names (see DESIGN.md for what was dropped).
package server
