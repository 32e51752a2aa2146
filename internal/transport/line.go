// ABOUTME: Line framing over byte streams: buffered LineWriter and sentinel-aware LineReader
// ABOUTME: NewDuplex wires two pipes into client and engine endpoints

package transport

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"sync"
)

const maxLineSize = 10 * 1024 * 1024 // 10MB

// ExitSentinel is an application-level close signal. A reader that sees it
// reports end of stream even though the underlying pipe stays open.
const ExitSentinel = `{"method":"command","params":{"method":"exit"}}`

// IsExitSentinel reports whether line is the exit command, ignoring
// whitespace and key order.
func IsExitSentinel(line []byte) bool {
	line = bytes.TrimSpace(line)
	if !bytes.Contains(line, []byte(`"exit"`)) {
		return false
	}
	var msg struct {
		Method string `json:"method"`
		Params struct {
			Method string `json:"method"`
		} `json:"params"`
		ID *json.RawMessage `json:"id"`
	}
	if err := json.Unmarshal(line, &msg); err != nil {
		return false
	}
	return msg.ID == nil && msg.Method == "command" && msg.Params.Method == "exit"
}

// LineReader yields one newline-terminated line per call.
type LineReader struct {
	src     io.Reader
	scanner *bufio.Scanner
	eof     bool
}

// NewLineReader wraps r. Lines longer than 10MB fail with bufio.ErrTooLong.
func NewLineReader(r io.Reader) *LineReader {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	return &LineReader{src: r, scanner: scanner}
}

// ReadLine blocks for the next line and returns a copy of it without the
// newline. It returns io.EOF at end of stream or after the exit sentinel;
// the EOF is sticky.
func (r *LineReader) ReadLine() ([]byte, error) {
	if r.eof {
		return nil, io.EOF
	}
	if !r.scanner.Scan() {
		r.eof = true
		if err := r.scanner.Err(); err != nil {
			return nil, err
		}
		return nil, io.EOF
	}
	line := r.scanner.Bytes()
	if IsExitSentinel(line) {
		r.eof = true
		return nil, io.EOF
	}
	return append([]byte(nil), line...), nil
}

// Close closes the underlying reader if it supports closing. A blocked
// ReadLine on a PipeReader returns io.ErrClosedPipe.
func (r *LineReader) Close() error {
	if c, ok := r.src.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// ErrWriterClosed is returned by writes after Close.
var ErrWriterClosed = errors.New("line writer closed")

// LineWriter buffers bytes until Flush.
type LineWriter struct {
	mu     sync.Mutex
	dst    io.WriteCloser
	buf    *bufio.Writer
	closed bool
}

// NewLineWriter wraps w.
func NewLineWriter(w io.WriteCloser) *LineWriter {
	return &LineWriter{dst: w, buf: bufio.NewWriter(w)}
}

// Write appends b to the buffer.
func (w *LineWriter) Write(b []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return 0, ErrWriterClosed
	}
	return w.buf.Write(b)
}

// Flush pushes buffered bytes to the stream.
func (w *LineWriter) Flush() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return ErrWriterClosed
	}
	return w.buf.Flush()
}

// Close flushes what is buffered and closes the stream; the paired reader
// sees io.EOF once it drains.
func (w *LineWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	w.closed = true
	flushErr := w.buf.Flush()
	closeErr := w.dst.Close()
	if flushErr != nil {
		return flushErr
	}
	return closeErr
}

// End is one side of a duplex channel: Out carries bytes to the peer and
// In carries what the peer writes. Wrap them with NewLineReader and
// NewLineWriter for framed access.
type End struct {
	In  io.ReadCloser
	Out io.WriteCloser
}

// Close closes the outbound stream, which is how an endpoint asks its peer's
// read loop to finish.
func (e End) Close() error {
	return e.Out.Close()
}

// NewDuplex builds two pipes (client→engine and engine→client) and returns
// the endpoint for each side.
func NewDuplex() (client, engine End) {
	toEngineR, toEngineW := NewPipe()
	toClientR, toClientW := NewPipe()
	client = End{In: toClientR, Out: toEngineW}
	engine = End{In: toEngineR, Out: toClientW}
	return client, engine
}
