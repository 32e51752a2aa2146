// ABOUTME: Runner that spawns an external engine process speaking the protocol on stdin/stdout
// ABOUTME: Stderr lines are forwarded to the log; the process is killed when ctx is cancelled

package engine

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os/exec"
	"sync"
)

// Exec runs an external engine binary (for example xi-core) wired to the
// transport streams.
type Exec struct {
	Command string
	Args    []string
	Env     []string
}

// Run starts the process and waits for it to exit.
func (e Exec) Run(ctx context.Context, in io.Reader, out io.WriteCloser) error {
	cmd := exec.CommandContext(ctx, e.Command, e.Args...)
	if len(e.Env) > 0 {
		cmd.Env = e.Env
	}
	cmd.Stdout = out

	// Copy stdin ourselves: exec's own copier would keep Wait blocked on a
	// read from the client pipe after the process has already exited.
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("creating stdin pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("creating stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("starting engine %q: %w", e.Command, err)
	}

	go func() {
		_, _ = io.Copy(stdin, in)
		_ = stdin.Close()
	}()

	// Wait closes the stderr pipe, so the scanner must drain it first.
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		scanner := bufio.NewScanner(stderr)
		for scanner.Scan() {
			logger.Debug("%s: %s", e.Command, scanner.Text())
		}
	}()
	wg.Wait()

	if err := cmd.Wait(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("engine %q: %w", e.Command, err)
	}
	return nil
}
