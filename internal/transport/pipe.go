// ABOUTME: In-process byte pipe with an unbounded internal buffer
// ABOUTME: Writers never wait for readers; readers block until data arrives or the pipe closes

package transport

import (
	"bytes"
	"io"
	"sync"
)

// pipe is the shared state behind a PipeReader/PipeWriter pair.
// Unlike io.Pipe, a Write returns as soon as the bytes are buffered, so two
// peers that write to each other from their read loops cannot deadlock.
type pipe struct {
	mu      sync.Mutex
	cond    *sync.Cond
	buf     bytes.Buffer
	wclosed bool
	werr    error
	rclosed bool
}

// NewPipe returns the two halves of a buffered in-process pipe.
func NewPipe() (*PipeReader, *PipeWriter) {
	p := &pipe{}
	p.cond = sync.NewCond(&p.mu)
	return &PipeReader{p: p}, &PipeWriter{p: p}
}

func (p *pipe) write(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.wclosed || p.rclosed {
		return 0, io.ErrClosedPipe
	}
	n, _ := p.buf.Write(b)
	p.cond.Broadcast()
	return n, nil
}

func (p *pipe) read(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for p.buf.Len() == 0 && !p.wclosed && !p.rclosed {
		p.cond.Wait()
	}
	if p.rclosed {
		return 0, io.ErrClosedPipe
	}
	if p.buf.Len() > 0 {
		return p.buf.Read(b)
	}
	if p.werr != nil {
		return 0, p.werr
	}
	return 0, io.EOF
}

func (p *pipe) closeWrite(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.wclosed {
		return
	}
	p.wclosed = true
	p.werr = err
	p.cond.Broadcast()
}

func (p *pipe) closeRead() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.rclosed = true
	p.buf.Reset()
	p.cond.Broadcast()
}

// PipeReader is the read half of a pipe.
type PipeReader struct{ p *pipe }

// Read blocks until data is available. Once the writer is closed and the
// buffer drained it returns io.EOF (or the error given to CloseWithError).
func (r *PipeReader) Read(b []byte) (int, error) { return r.p.read(b) }

// Close abandons the read side: pending and future reads return
// io.ErrClosedPipe and writes start failing.
func (r *PipeReader) Close() error {
	r.p.closeRead()
	return nil
}

// PipeWriter is the write half of a pipe.
type PipeWriter struct{ p *pipe }

// Write appends b to the pipe buffer.
func (w *PipeWriter) Write(b []byte) (int, error) { return w.p.write(b) }

// Close signals end of stream to the reader after it drains the buffer.
func (w *PipeWriter) Close() error {
	w.p.closeWrite(nil)
	return nil
}

// CloseWithError makes the reader return err instead of io.EOF.
func (w *PipeWriter) CloseWithError(err error) error {
	w.p.closeWrite(err)
	return nil
}
