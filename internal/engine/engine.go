// ABOUTME: Runs an editing-core engine on its own goroutine against one transport endpoint
// ABOUTME: Closes the engine's streams when it returns so the client reader sees end of stream

package engine

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/mauromedda/print-go/internal/log"
	"github.com/mauromedda/print-go/internal/transport"
)

var logger = log.Named("engine")

// Runner is an engine loop: it consumes protocol lines from in and writes
// protocol lines to out until in reaches end of stream or ctx ends.
type Runner interface {
	Run(ctx context.Context, in io.Reader, out io.WriteCloser) error
}

// RunnerFunc adapts a function to Runner.
type RunnerFunc func(ctx context.Context, in io.Reader, out io.WriteCloser) error

// Run calls f.
func (f RunnerFunc) Run(ctx context.Context, in io.Reader, out io.WriteCloser) error {
	return f(ctx, in, out)
}

// Handle tracks a running engine goroutine.
type Handle struct {
	done chan struct{}
	err  error
}

// Start runs r on a new goroutine wired to the engine side of a duplex.
// When r returns, both streams of end are closed.
func Start(ctx context.Context, r Runner, end transport.End) (*Handle, error) {
	if r == nil {
		return nil, errors.New("engine: nil runner")
	}
	h := &Handle{done: make(chan struct{})}
	go func() {
		defer close(h.done)
		defer end.In.Close()
		defer end.Out.Close()

		err := r.Run(ctx, end.In, end.Out)
		if err != nil && !errors.Is(err, context.Canceled) {
			logger.Warn("engine loop exited: %v", err)
			h.err = fmt.Errorf("engine loop: %w", err)
			return
		}
		logger.Debug("engine loop exited")
	}()
	return h, nil
}

// Done is closed when the engine goroutine has returned.
func (h *Handle) Done() <-chan struct{} { return h.done }

// Wait blocks until the engine goroutine returns and reports its error.
func (h *Handle) Wait() error {
	<-h.done
	return h.err
}
