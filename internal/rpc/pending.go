// ABOUTME: Pending request table mapping request ids to one-shot completion callbacks
// ABOUTME: Id allocation and insertion share one critical section; take removes exactly once

package rpc

import (
	"encoding/json"
	"sync"

	"github.com/juju/clock"

	"github.com/mauromedda/print-go/internal/protocol"
)

// Result is the outcome of a request: Value on success, Err otherwise.
// Exactly one of the two is non-nil.
type Result struct {
	Value json.RawMessage
	Err   json.RawMessage
}

// IsErr reports whether the request failed.
func (r Result) IsErr() bool { return r.Err != nil }

// AsError decodes the error payload. A payload that is not a wire error
// object is carried verbatim in Message.
func (r Result) AsError() *protocol.Error {
	if r.Err == nil {
		return nil
	}
	var e protocol.Error
	if err := json.Unmarshal(r.Err, &e); err != nil || (e.Code == 0 && e.Message == "") {
		return &protocol.Error{Code: protocol.CodeInternal, Message: string(r.Err)}
	}
	return &e
}

func errResult(e *protocol.Error) Result {
	raw, err := json.Marshal(e)
	if err != nil {
		raw = json.RawMessage(`{"code":-32603,"message":"unencodable error"}`)
	}
	return Result{Err: raw}
}

// Callback receives the result of one request. It is invoked exactly once,
// from the reader goroutine, a timeout timer, or Close.
type Callback func(Result)

type pendingCall struct {
	method string
	cb     Callback
	timer  clock.Timer
}

func (p *pendingCall) stop() {
	if p.timer != nil {
		p.timer.Stop()
	}
}

type pendingTable struct {
	mu     sync.Mutex
	nextID uint64
	calls  map[uint64]*pendingCall
}

func newPendingTable() *pendingTable {
	return &pendingTable{calls: make(map[uint64]*pendingCall)}
}

// add allocates the next id and registers cb under it. arm, when non-nil,
// starts the timeout timer for the new id; it must not block.
func (t *pendingTable) add(method string, cb Callback, arm func(id uint64) clock.Timer) uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	id := t.nextID
	t.nextID++
	call := &pendingCall{method: method, cb: cb}
	if arm != nil {
		call.timer = arm(id)
	}
	t.calls[id] = call
	return id
}

// take removes and returns the call registered under id.
func (t *pendingTable) take(id uint64) (*pendingCall, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	call, ok := t.calls[id]
	if ok {
		delete(t.calls, id)
	}
	return call, ok
}

// drain removes every call.
func (t *pendingTable) drain() []*pendingCall {
	t.mu.Lock()
	defer t.mu.Unlock()
	calls := make([]*pendingCall, 0, len(t.calls))
	for id, call := range t.calls {
		calls = append(calls, call)
		delete(t.calls, id)
	}
	return calls
}

func (t *pendingTable) len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.calls)
}
