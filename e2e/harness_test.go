// ABOUTME: E2E harness: builds the print-go binary once and drives it through a PTY
// ABOUTME: Provides expectStringTimeout, sendKeys, sendCtrl and waitExit helpers

package e2e

import (
	"bytes"
	"flag"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/creack/pty"
)

var binPath string

func TestMain(m *testing.M) {
	flag.Parse()
	if testing.Short() {
		os.Exit(m.Run())
	}

	dir, err := os.MkdirTemp("", "print-go-e2e")
	if err != nil {
		fmt.Fprintf(os.Stderr, "creating temp dir: %v\n", err)
		os.Exit(1)
	}
	binPath = filepath.Join(dir, "print-go")
	build := exec.Command("go", "build", "-o", binPath, "../cmd/print-go")
	build.Stdout = os.Stderr
	build.Stderr = os.Stderr
	if err := build.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "building print-go: %v\n", err)
		_ = os.RemoveAll(dir)
		os.Exit(1)
	}

	code := m.Run()
	_ = os.RemoveAll(dir)
	os.Exit(code)
}

var ansiRe = regexp.MustCompile(`\x1b\[[0-9;?]*[ -/]*[@-~]|\x1b\][^\x07\x1b]*(\x07|\x1b\\)|\x1b[()][0-9A-Za-z]`)

func stripANSI(s string) string {
	return ansiRe.ReplaceAllString(s, "")
}

// ptySession is one running binary attached to a pseudo-terminal.
type ptySession struct {
	cmd  *exec.Cmd
	pty  *os.File
	exit chan error

	mu  sync.Mutex
	out bytes.Buffer
}

// testEnv returns an environment whose HOME is an empty temp dir, so state
// and settings never touch the real user files.
func testEnv(t *testing.T) []string {
	t.Helper()
	return append(os.Environ(), "HOME="+t.TempDir(), "TERM=xterm-256color", "COLORFGBG=15;0")
}

// startPrint launches print-go in a 100x24 PTY.
func startPrint(t *testing.T, args ...string) *ptySession {
	t.Helper()

	cmd := exec.Command(binPath, args...)
	cmd.Env = testEnv(t)
	f, err := pty.StartWithSize(cmd, &pty.Winsize{Rows: 24, Cols: 100})
	if err != nil {
		t.Fatalf("starting print-go: %v", err)
	}

	s := &ptySession{cmd: cmd, pty: f, exit: make(chan error, 1)}
	go func() {
		buf := make([]byte, 4096)
		for {
			n, err := f.Read(buf)
			if n > 0 {
				s.mu.Lock()
				s.out.Write(buf[:n])
				s.mu.Unlock()
			}
			if err != nil {
				return
			}
		}
	}()
	go func() { s.exit <- cmd.Wait() }()
	return s
}

func (s *ptySession) screen() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return stripANSI(s.out.String())
}

func (s *ptySession) expectStringTimeout(t *testing.T, want string, timeout time.Duration) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if strings.Contains(s.screen(), want) {
			return
		}
		time.Sleep(50 * time.Millisecond)
	}
	t.Fatalf("timed out after %s waiting for %q; output:\n%s", timeout, want, s.screen())
}

func (s *ptySession) sendKeys(t *testing.T, keys string) {
	t.Helper()
	if _, err := io.WriteString(s.pty, keys); err != nil {
		t.Fatalf("writing keys: %v", err)
	}
	time.Sleep(50 * time.Millisecond)
}

// sendCtrl sends Ctrl+<c>, c in 'a'..'z'.
func (s *ptySession) sendCtrl(t *testing.T, c byte) {
	t.Helper()
	s.sendKeys(t, string([]byte{c - 'a' + 1}))
}

// command types a ':' command line and presses enter.
func (s *ptySession) command(t *testing.T, line string) {
	t.Helper()
	s.sendKeys(t, ":")
	s.sendKeys(t, line)
	s.sendKeys(t, "\r")
}

func (s *ptySession) waitExit(t *testing.T, timeout time.Duration) {
	t.Helper()
	select {
	case err := <-s.exit:
		if err != nil {
			t.Fatalf("print-go exited with %v; output:\n%s", err, s.screen())
		}
	case <-time.After(timeout):
		t.Fatalf("print-go did not exit within %s; output:\n%s", timeout, s.screen())
	}
}

func (s *ptySession) close() {
	_ = s.cmd.Process.Kill()
	_ = s.pty.Close()
}

// writeFile creates name under a temp dir with content and returns its path.
func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}
