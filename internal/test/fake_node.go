package test

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/dream-factory-code/go-tolar/internal/ledger"
)

// Handler answers one JSON-RPC method of a FakeNode. A returned error is
// handed to the caller unchanged.
type Handler func(params []json.RawMessage) (any, error)

// Call is one recorded round trip.
type Call struct {
	Method string
	Params []json.RawMessage
}

// FakeNode is an in-memory node.Caller that records every call.
type FakeNode struct {
	t        *testing.T
	mu       sync.Mutex
	handlers map[string]Handler
	calls    []Call
}

func NewFakeNode(t *testing.T) *FakeNode {
	t.Helper()

	return &FakeNode{t: t, handlers: make(map[string]Handler)}
}

// Handle registers h for method, replacing any previous handler.
func (f *FakeNode) Handle(method string, h Handler) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.handlers[method] = h
}

// Returns registers a handler answering method with result.
func (f *FakeNode) Returns(method string, result any) {
	f.Handle(method, func(_ []json.RawMessage) (any, error) {
		return result, nil
	})
}

func (f *FakeNode) Call(ctx context.Context, result any, method string, params ...any) error {
	if err := ctx.Err(); err != nil {
		return &ledger.NodeCommunicationError{Method: method, Err: err}
	}

	raw := make([]json.RawMessage, 0, len(params))
	for _, p := range params {
		b, err := json.Marshal(p)
		if err != nil {
			f.t.Fatalf("failed to marshal %s params: %v", method, err)
		}
		raw = append(raw, b)
	}

	f.mu.Lock()
	f.calls = append(f.calls, Call{Method: method, Params: raw})
	h, ok := f.handlers[method]
	f.mu.Unlock()

	if !ok {
		return &ledger.ProtocolError{Method: method, Code: -32601, Message: "the method " + method + " does not exist/is not available"}
	}

	out, err := h(raw)
	if err != nil {
		return err
	}

	if result == nil {
		return nil
	}

	b, err := json.Marshal(out)
	if err != nil {
		f.t.Fatalf("failed to marshal %s result: %v", method, err)
	}

	if err := json.Unmarshal(b, result); err != nil {
		return &ledger.NodeCommunicationError{Method: method, Err: err}
	}

	return nil
}

// Calls returns the recorded calls of method, or all calls for "".
func (f *FakeNode) Calls(method string) []Call {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := []Call{}
	for _, c := range f.calls {
		if method == "" || c.Method == method {
			out = append(out, c)
		}
	}

	return out
}

// Count returns how often method was called.
func (f *FakeNode) Count(method string) int {
	return len(f.Calls(method))
}

// Methods returns the called methods in order.
func (f *FakeNode) Methods() []string {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([]string, 0, len(f.calls))
	for _, c := range f.calls {
		out = append(out, c.Method)
	}

	return out
}

// Param decodes parameter i of a recorded call into v.
func (c Call) Param(t *testing.T, i int, v any) {
	t.Helper()

	if i >= len(c.Params) {
		t.Fatalf("%s has %d params, wanted index %d", c.Method, len(c.Params), i)
	}

	if err := json.Unmarshal(c.Params[i], v); err != nil {
		t.Fatalf("failed to decode %s param %d: %v", c.Method, i, err)
	}
}
