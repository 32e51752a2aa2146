// ABOUTME: Asynchronous RPC client bridging the application to the editing-core engine
// ABOUTME: Serialized writes, id-correlated callbacks, and a reader goroutine feeding typed operations

package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/juju/clock"

	"github.com/mauromedda/print-go/internal/engine"
	"github.com/mauromedda/print-go/internal/eventbus"
	"github.com/mauromedda/print-go/internal/log"
	"github.com/mauromedda/print-go/internal/ops"
	"github.com/mauromedda/print-go/internal/protocol"
	"github.com/mauromedda/print-go/internal/transport"
)

var logger = log.Named("rpc")

const (
	defaultRequestTimeout = 30 * time.Second
	defaultCloseTimeout   = 2 * time.Second
	defaultBuffer         = 256
)

var (
	// ErrClosed is returned by sends after Close or after the connection is lost.
	ErrClosed = errors.New("rpc client closed")
	// ErrEngineGone is the error recorded when the engine ends the stream on its own.
	ErrEngineGone = errors.New("lost connection to core engine")
)

// ConnState is the client lifecycle: Running until the reader exits, then
// Closed (we asked for it) or Lost (the engine went away or I/O failed).
type ConnState int

const (
	StateRunning ConnState = iota
	StateClosed
	StateLost
)

func (s ConnState) String() string {
	switch s {
	case StateRunning:
		return "running"
	case StateClosed:
		return "closed"
	case StateLost:
		return "lost"
	default:
		return fmt.Sprintf("ConnState(%d)", int(s))
	}
}

// ConnEvent is published on every state transition.
type ConnEvent struct {
	State ConnState
	Err   error
}

// Option configures a Client.
type Option func(*options)

type options struct {
	requestTimeout time.Duration
	closeTimeout   time.Duration
	clock          clock.Clock
	buffer         int
}

// WithRequestTimeout bounds how long a request waits for its response.
// Zero disables the timeout.
func WithRequestTimeout(d time.Duration) Option {
	return func(o *options) { o.requestTimeout = d }
}

// WithCloseTimeout bounds how long Close waits for the reader goroutine.
func WithCloseTimeout(d time.Duration) Option {
	return func(o *options) { o.closeTimeout = d }
}

// WithClock sets the clock used for request timeouts.
func WithClock(c clock.Clock) Option {
	return func(o *options) { o.clock = c }
}

// WithBuffer sets the capacity of the operation channel.
func WithBuffer(n int) Option {
	return func(o *options) { o.buffer = n }
}

// Client owns the client→engine writer, the reader goroutine, and the table
// of in-flight requests.
type Client struct {
	opts options

	wmu sync.Mutex
	w   *transport.LineWriter
	r   *transport.LineReader

	pending *pendingTable

	out          chan ops.Operation
	stop         chan struct{}
	released     chan struct{}
	releaseOnce  sync.Once
	closing      atomic.Bool
	closeOnce    sync.Once
	closeErr     error
	done         chan struct{}
	engineHandle *engine.Handle

	stateMu sync.Mutex
	state   ConnState
	err     error
	events  *eventbus.Bus[ConnEvent]
}

// New wires an in-process duplex, starts runner on the engine side, and
// starts the reader goroutine. The returned channel carries notifications
// and requests from the engine in arrival order; it is closed when the
// reader exits.
func New(ctx context.Context, runner engine.Runner, opts ...Option) (*Client, <-chan ops.Operation, error) {
	clientEnd, engineEnd := transport.NewDuplex()
	h, err := engine.Start(ctx, runner, engineEnd)
	if err != nil {
		return nil, nil, fmt.Errorf("starting engine: %w", err)
	}
	c, out := NewWithStreams(clientEnd.In, clientEnd.Out, opts...)
	c.engineHandle = h
	return c, out, nil
}

// NewWithStreams builds a client over arbitrary streams: r carries lines
// from the engine, w carries lines to it.
func NewWithStreams(r io.Reader, w io.WriteCloser, opts ...Option) (*Client, <-chan ops.Operation) {
	o := options{
		requestTimeout: defaultRequestTimeout,
		closeTimeout:   defaultCloseTimeout,
		clock:          clock.WallClock,
		buffer:         defaultBuffer,
	}
	for _, opt := range opts {
		opt(&o)
	}

	c := &Client{
		opts:     o,
		w:        transport.NewLineWriter(w),
		r:        transport.NewLineReader(r),
		pending:  newPendingTable(),
		out:      make(chan ops.Operation, o.buffer),
		stop:     make(chan struct{}),
		released: make(chan struct{}),
		done:     make(chan struct{}),
		state:    StateRunning,
		events:   eventbus.New[ConnEvent](),
	}
	c.events.Publish(ConnEvent{State: StateRunning})

	go c.readLoop()
	return c, c.out
}

// SendNotification writes one notification. Concurrent senders are
// serialized; each message is flushed before the next one starts.
func (c *Client) SendNotification(method string, params any) error {
	line, err := protocol.EncodeNotification(method, params)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", method, err)
	}
	return c.write(method, line)
}

// SendRequest registers cb under a fresh id and writes the request. cb runs
// exactly once: with the response, with a timeout error, or with a
// connection-closed error. If the write fails while cb is still pending, cb is
// discarded and the error returned. If the reader already failed cb with a
// connection-closed error, SendRequest returns the id and a nil error so the
// caller sees a single outcome.
func (c *Client) SendRequest(method string, params any, cb Callback) (uint64, error) {
	if cb == nil {
		cb = func(Result) {}
	}
	if c.State() != StateRunning {
		return 0, ErrClosed
	}

	var arm func(uint64) clock.Timer
	if c.opts.requestTimeout > 0 {
		arm = func(id uint64) clock.Timer {
			return c.opts.clock.AfterFunc(c.opts.requestTimeout, func() { c.expire(id) })
		}
	}
	id := c.pending.add(method, cb, arm)
	if c.State() != StateRunning {
		return c.abandon(id, ErrClosed)
	}

	line, err := protocol.EncodeRequest(id, method, params)
	if err == nil {
		err = c.write(method, line)
	}
	if err != nil {
		return c.abandon(id, err)
	}
	return id, nil
}

// abandon withdraws a request that could not be sent. When the entry is gone
// its callback has already run, and err is swallowed.
func (c *Client) abandon(id uint64, err error) (uint64, error) {
	call, ok := c.pending.take(id)
	if !ok {
		return id, nil
	}
	call.stop()
	return 0, err
}

// Call sends a request and waits for its result. Cancelling ctx abandons the
// wait; the callback still completes once in the background.
func (c *Client) Call(ctx context.Context, method string, params any) (json.RawMessage, error) {
	ch := make(chan Result, 1)
	if _, err := c.SendRequest(method, params, func(r Result) { ch <- r }); err != nil {
		return nil, err
	}
	select {
	case res := <-ch:
		if res.IsErr() {
			return nil, fmt.Errorf("%s: %w", method, res.AsError())
		}
		return res.Value, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Respond answers an inbound request from the engine.
func (c *Client) Respond(id uint64, result any) error {
	line, err := protocol.EncodeResponse(id, result)
	if err != nil {
		return fmt.Errorf("encoding response %d: %w", id, err)
	}
	return c.write("response", line)
}

// RespondError answers an inbound request with an error object.
func (c *Client) RespondError(id uint64, e *protocol.Error) error {
	line, err := protocol.EncodeErrorResponse(id, e)
	if err != nil {
		return err
	}
	return c.write("error response", line)
}

// write sends one encoded line under the writer lock.
func (c *Client) write(what string, line []byte) error {
	err := c.writeLocked(line)
	if err == nil {
		logger.Debug("core <-- %s", bytes.TrimRight(line, "\n"))
		return nil
	}
	if errors.Is(err, transport.ErrWriterClosed) || c.closing.Load() {
		return fmt.Errorf("writing %s: %w", what, ErrClosed)
	}
	c.markLost(err)
	return fmt.Errorf("writing %s: %w", what, err)
}

func (c *Client) writeLocked(line []byte) error {
	c.wmu.Lock()
	defer c.wmu.Unlock()
	if _, err := c.w.Write(line); err != nil {
		return err
	}
	return c.w.Flush()
}

// expire fails a request whose response did not arrive in time.
func (c *Client) expire(id uint64) {
	call, ok := c.pending.take(id)
	if !ok {
		return
	}
	logger.Warn("request %d (%s) timed out after %s", id, call.method, c.opts.requestTimeout)
	call.cb(errResult(protocol.NewTimeoutError(call.method)))
}

func (c *Client) readLoop() {
	var readErr error
	defer func() { c.finish(readErr) }()

	for {
		line, err := c.r.ReadLine()
		if err != nil {
			if err != io.EOF {
				readErr = err
			}
			return
		}
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}
		logger.Debug("core --> %s", line)

		msg, err := protocol.Decode(line)
		if err != nil {
			logger.Warn("dropping line: %v", err)
			continue
		}
		switch m := msg.(type) {
		case *protocol.Response:
			c.handleResponse(m)
		case *protocol.Request:
			c.handleRequest(m)
		case *protocol.Notification:
			c.handleNotification(m)
		}
	}
}

func (c *Client) handleResponse(resp *protocol.Response) {
	call, ok := c.pending.take(resp.ID)
	if !ok {
		logger.Debug("response for unknown request id %d dropped", resp.ID)
		return
	}
	call.stop()
	if resp.IsErr() {
		call.cb(Result{Err: resp.Error})
		return
	}
	call.cb(Result{Value: resp.Result})
}

func (c *Client) handleRequest(req *protocol.Request) {
	op, err := ops.DecodeRequest(req.ID, req.Method, req.Params)
	if err != nil {
		rpcErr := protocol.NewInvalidParamsError(err.Error())
		if errors.Is(err, ops.ErrUnsupportedRequest) {
			rpcErr = protocol.NewMethodNotFoundError(req.Method)
		}
		logger.Warn("rejecting request %d: %v", req.ID, err)
		if err := c.RespondError(req.ID, rpcErr); err != nil {
			logger.Warn("replying to request %d: %v", req.ID, err)
		}
		return
	}
	c.deliver(op)
}

func (c *Client) handleNotification(n *protocol.Notification) {
	op, err := ops.Decode(n.Method, n.Params)
	if err != nil {
		logger.Warn("dropping notification: %v", err)
		return
	}
	if _, ok := op.(ops.Unrecognized); ok {
		logger.Debug("unrecognized notification %q", n.Method)
	}
	c.deliver(op)
}

// deliver blocks until the consumer takes op, so inbound order is kept.
// After ReleaseOperations or Close operations are discarded.
func (c *Client) deliver(op ops.Operation) {
	select {
	case <-c.released:
		logger.Debug("operation %s discarded: consumer released", op.Method())
		return
	default:
	}
	select {
	case c.out <- op:
	case <-c.released:
		logger.Debug("operation %s discarded: consumer released", op.Method())
	case <-c.stop:
		logger.Debug("operation %s discarded: client closing", op.Method())
	}
}

// finish runs once when the reader goroutine exits.
func (c *Client) finish(readErr error) {
	close(c.out)

	// State first: SendRequest rechecks it after inserting, so nothing is
	// left in the table once it has been drained.
	switch {
	case c.closing.Load():
		c.setState(StateClosed, nil)
	case readErr != nil:
		c.setState(StateLost, fmt.Errorf("%w: %v", ErrEngineGone, readErr))
	default:
		c.setState(StateLost, ErrEngineGone)
	}

	for _, call := range c.pending.drain() {
		call.stop()
		call.cb(errResult(protocol.NewConnectionClosedError()))
	}
	close(c.done)
}

func (c *Client) markLost(err error) {
	c.setState(StateLost, fmt.Errorf("%w: %v", ErrEngineGone, err))
}

// setState moves out of Running once; later transitions are ignored.
func (c *Client) setState(s ConnState, err error) {
	c.stateMu.Lock()
	if c.state != StateRunning {
		c.stateMu.Unlock()
		return
	}
	c.state = s
	c.err = err
	c.stateMu.Unlock()

	if s == StateLost {
		logger.Error("%v", err)
	}
	c.events.Publish(ConnEvent{State: s, Err: err})
}

// State returns the current connection state.
func (c *Client) State() ConnState {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()
	return c.state
}

// Err returns why the connection was lost, or nil.
func (c *Client) Err() error {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()
	return c.err
}

// Events publishes connection state transitions.
func (c *Client) Events() *eventbus.Bus[ConnEvent] { return c.events }

// Done is closed when the reader goroutine has exited.
func (c *Client) Done() <-chan struct{} { return c.done }

// Pending returns the number of requests awaiting a response.
func (c *Client) Pending() int { return c.pending.len() }

// ReleaseOperations tells the client nobody reads the operation channel any
// more. Later operations are logged and discarded instead of blocking the
// reader.
func (c *Client) ReleaseOperations() {
	c.releaseOnce.Do(func() { close(c.released) })
}

// Close closes the writer so the engine sees end of stream, then joins the
// reader goroutine. If the reader does not finish within the close timeout
// its stream is closed to unblock it; if that does not help it is abandoned.
// Pending requests complete with a connection-closed error.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		c.closing.Store(true)
		close(c.stop)

		c.wmu.Lock()
		c.closeErr = c.w.Close()
		c.wmu.Unlock()

		if !c.join(c.opts.closeTimeout) {
			logger.Warn("reader still running after %s; closing its stream", c.opts.closeTimeout)
			_ = c.r.Close()
			if !c.join(c.opts.closeTimeout) {
				logger.Warn("abandoning reader goroutine")
			}
		}

		if c.engineHandle != nil {
			select {
			case <-c.engineHandle.Done():
			case <-time.After(c.opts.closeTimeout):
				logger.Warn("abandoning engine goroutine")
			}
		}
	})
	return c.closeErr
}

func (c *Client) join(timeout time.Duration) bool {
	select {
	case <-c.done:
		return true
	case <-time.After(timeout):
		return false
	}
}
