// Package acpserver implements the ACP stdio transport: a line-delimited
// JSON-RPC 2.0 connection, the method dispatch table for inbound requests
// and notifications, and the outbound calls (fs/*, terminal/create,
// request_permission) the agent issues back to the client.
package acpserver

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"sync/atomic"

	"github.com/swissarmyhammer/agentcore/pkg/acp"
)

// envelope is the superset shape needed to classify one inbound line as a
// request, a notification, or a response to an outbound call, before
// committing to any one of those concrete types.
type envelope struct {
	ID     json.RawMessage `json:"id,omitempty"`
	Method string          `json:"method,omitempty"`
	Params json.RawMessage `json:"params,omitempty"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  *acp.RPCError   `json:"error,omitempty"`
}

// Conn is one stdio JSON-RPC connection: single reader goroutine,
// mutex-guarded writer, and a table of pending outbound calls awaiting
// their correlated response.
type Conn struct {
	scanner *bufio.Scanner
	writer  io.Writer

	writeMu sync.Mutex

	pendingMu sync.Mutex
	pending   map[string]chan envelope

	nextID int64
}

// NewConn wraps r/w as a Conn. r is scanned line by line; lines over 1MB
// are rejected rather than silently truncated.
func NewConn(r io.Reader, w io.Writer) *Conn {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	return &Conn{
		scanner: scanner,
		writer:  w,
		pending: make(map[string]chan envelope),
	}
}

func (c *Conn) writeLine(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	data = append(data, '\n')
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_, err = c.writer.Write(data)
	return err
}

// SendResponse writes a JSON-RPC response line.
func (c *Conn) SendResponse(resp *acp.Response) error {
	return c.writeLine(resp)
}

// SendNotification writes a JSON-RPC notification line.
func (c *Conn) SendNotification(n *acp.Notification) error {
	return c.writeLine(n)
}

// Call issues an outbound request to the client and blocks until the
// correlated response arrives or ctx is cancelled.
func (c *Conn) Call(ctx context.Context, method string, params any) (json.RawMessage, error) {
	id := fmt.Sprintf("srv-%d", atomic.AddInt64(&c.nextID, 1))
	idRaw, _ := json.Marshal(id)

	req, err := acp.NewRequest(idRaw, method, params)
	if err != nil {
		return nil, err
	}

	ch := make(chan envelope, 1)
	c.pendingMu.Lock()
	c.pending[id] = ch
	c.pendingMu.Unlock()
	defer func() {
		c.pendingMu.Lock()
		delete(c.pending, id)
		c.pendingMu.Unlock()
	}()

	if err := c.writeLine(req); err != nil {
		return nil, err
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case env := <-ch:
		if env.Error != nil {
			return nil, fmt.Errorf("%s: %s", method, env.Error.Message)
		}
		return env.Result, nil
	}
}

func (c *Conn) resolve(env envelope) {
	var id string
	if err := json.Unmarshal(env.ID, &id); err != nil {
		return
	}
	c.pendingMu.Lock()
	ch, ok := c.pending[id]
	c.pendingMu.Unlock()
	if ok {
		ch <- env
	}
}

// ReadLoop scans lines until EOF, classifying and dispatching each one.
// Responses to outbound Calls are resolved inline; requests and
// notifications are handed to the provided handler.
func (c *Conn) ReadLoop(handleRequest func(id json.RawMessage, method string, params json.RawMessage), handleNotification func(method string, params json.RawMessage)) error {
	for c.scanner.Scan() {
		line := c.scanner.Bytes()
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}
		var env envelope
		if err := json.Unmarshal(line, &env); err != nil {
			continue
		}

		switch {
		case env.Method == "" && (env.Result != nil || env.Error != nil):
			c.resolve(env)
		case len(env.ID) > 0:
			handleRequest(env.ID, env.Method, env.Params)
		default:
			handleNotification(env.Method, env.Params)
		}
	}
	return c.scanner.Err()
}
