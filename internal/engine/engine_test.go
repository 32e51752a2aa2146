// ABOUTME: Tests for the engine runner goroutine and the external process runner
// ABOUTME: Uses in-process duplex pipes; the exec test drives `cat` as an echo engine

package engine

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"io"
	"os/exec"
	"strings"
	"testing"
	"time"

	pilog "github.com/mauromedda/print-go/internal/log"
	"github.com/mauromedda/print-go/internal/transport"
)

func TestStartNilRunner(t *testing.T) {
	_, engineEnd := transport.NewDuplex()
	if _, err := Start(context.Background(), nil, engineEnd); err == nil {
		t.Fatal("expected error for nil runner")
	}
}

func TestStartClosesStreamsOnReturn(t *testing.T) {
	clientEnd, engineEnd := transport.NewDuplex()

	echo := RunnerFunc(func(_ context.Context, in io.Reader, out io.WriteCloser) error {
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			if _, err := out.Write(append(scanner.Bytes(), '\n')); err != nil {
				return err
			}
		}
		return scanner.Err()
	})

	h, err := Start(context.Background(), echo, engineEnd)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	w := transport.NewLineWriter(clientEnd.Out)
	r := transport.NewLineReader(clientEnd.In)
	_, _ = w.Write([]byte(`{"method":"ping","params":null}` + "\n"))
	_ = w.Flush()

	line, err := r.ReadLine()
	if err != nil || string(line) != `{"method":"ping","params":null}` {
		t.Fatalf("ReadLine = %q, %v", line, err)
	}

	_ = w.Close()
	select {
	case <-h.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("engine did not exit after client closed its writer")
	}
	if err := h.Wait(); err != nil {
		t.Errorf("Wait: %v", err)
	}
	if _, err := r.ReadLine(); err != io.EOF {
		t.Errorf("client read after engine exit err = %v; want io.EOF", err)
	}
}

func TestStartReportsRunnerError(t *testing.T) {
	_, engineEnd := transport.NewDuplex()
	boom := errors.New("boom")
	h, err := Start(context.Background(), RunnerFunc(func(context.Context, io.Reader, io.WriteCloser) error {
		return boom
	}), engineEnd)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := h.Wait(); !errors.Is(err, boom) {
		t.Errorf("Wait = %v; want boom", err)
	}
}

func TestExecEcho(t *testing.T) {
	if _, err := exec.LookPath("cat"); err != nil {
		t.Skip("cat not available")
	}
	clientEnd, engineEnd := transport.NewDuplex()
	h, err := Start(context.Background(), Exec{Command: "cat"}, engineEnd)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	w := transport.NewLineWriter(clientEnd.Out)
	r := transport.NewLineReader(clientEnd.In)
	_, _ = w.Write([]byte(`{"method":"alert","params":{"msg":"hi"}}` + "\n"))
	_ = w.Flush()

	line, err := r.ReadLine()
	if err != nil || string(line) != `{"method":"alert","params":{"msg":"hi"}}` {
		t.Fatalf("ReadLine = %q, %v", line, err)
	}

	_ = w.Close()
	select {
	case <-h.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("cat did not exit after stdin closed")
	}
}

func TestExecMissingBinary(t *testing.T) {
	_, engineEnd := transport.NewDuplex()
	h, err := Start(context.Background(), Exec{Command: "/nonexistent/print-go-engine"}, engineEnd)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := h.Wait(); err == nil {
		t.Error("expected error for missing engine binary")
	}
}

type discardCloser struct{ io.Writer }

func (discardCloser) Close() error { return nil }

func TestExecLogsStderrBeforeReturning(t *testing.T) {
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
	var buf bytes.Buffer
	prev := pilog.GetLevel()
	pilog.SetOutput(&buf)
	pilog.SetLevel(pilog.LevelDebug)
	t.Cleanup(func() {
		pilog.SetOutput(nil)
		pilog.SetLevel(prev)
	})

	script := "for i in 1 2 3 4 5; do echo line-$i >&2; done; echo final-line >&2"
	err := Exec{Command: "sh", Args: []string{"-c", script}}.Run(
		context.Background(), strings.NewReader(""), discardCloser{io.Discard})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	logged := buf.String()
	for _, want := range []string{"line-1", "line-5", "final-line"} {
		if !strings.Contains(logged, want) {
			t.Errorf("log missing %q:\n%s", want, logged)
		}
	}
}
