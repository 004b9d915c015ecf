// Package process runs an external simulator binary once per job. The
// program text is written to the child's stdin, the configuration blob is
// passed as the final argument, stderr lines are forwarded as progress logs
// and stdout is the raw response.
package process

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/seantiz/qdevice/internal/backend"
)

// Name is the registry name of the process executor.
const Name = "process"

// waitDelay bounds how long Run waits for stdio after the child is killed.
const waitDelay = 2 * time.Second

// ErrNoCommand is returned by Init when no simulator command is configured.
var ErrNoCommand = errors.New("process: no simulator command configured")

// Executor invokes a simulator binary for every request.
type Executor struct {
	command []string
	env     []string
	timeout time.Duration

	path string
}

// New creates a process executor. command is the binary followed by its
// fixed arguments. timeout bounds a single run; zero means no bound.
func New(command []string, env []string, timeout time.Duration) *Executor {
	return &Executor{
		command: append([]string(nil), command...),
		env:     append([]string(nil), env...),
		timeout: timeout,
	}
}

// Init resolves the simulator binary on PATH.
func (e *Executor) Init(_ context.Context) error {
	if len(e.command) == 0 || e.command[0] == "" {
		return ErrNoCommand
	}
	path, err := exec.LookPath(e.command[0])
	if err != nil {
		return fmt.Errorf("process: resolve %q: %w", e.command[0], err)
	}
	e.path = path
	return nil
}

// Execute implements backend.Executor.
func (e *Executor) Execute(ctx context.Context, req backend.Request) (backend.Result, error) {
	if e.path == "" {
		if err := e.Init(ctx); err != nil {
			return backend.Result{}, err
		}
	}
	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	args := append(append([]string(nil), e.command[1:]...), req.Config.JSON())
	cmd := exec.CommandContext(ctx, e.path, args...)
	cmd.Env = append(os.Environ(), e.env...)
	cmd.Stdin = strings.NewReader(req.Program)

	var stdout bytes.Buffer
	stderr := &lineWriter{fn: req.LogWriter}
	cmd.Stdout = &stdout
	cmd.Stderr = stderr
	cmd.WaitDelay = waitDelay

	start := time.Now()
	waitErr := cmd.Run()
	lines := stderr.flush()
	dur := int(time.Since(start).Milliseconds())
	if waitErr != nil {
		if ctx.Err() != nil {
			return backend.Result{}, fmt.Errorf("process: %w", ctx.Err())
		}
		msg := waitErr.Error()
		if len(lines) > 0 {
			msg += ": " + lines[len(lines)-1]
		}
		return backend.Result{}, fmt.Errorf("process: simulator failed: %s", msg)
	}

	return backend.Result{
		Output:     stdout.String(),
		DurationMS: dur,
		LogLines:   lines,
	}, nil
}

// lineWriter splits the child's stderr into lines and hands each one to fn.
// exec copies stderr from a single goroutine, so no locking is needed.
type lineWriter struct {
	fn    func(string)
	buf   []byte
	lines []string
}

func (w *lineWriter) Write(p []byte) (int, error) {
	w.buf = append(w.buf, p...)
	for {
		i := bytes.IndexByte(w.buf, '\n')
		if i < 0 {
			return len(p), nil
		}
		w.emit(string(bytes.TrimRight(w.buf[:i], "\r")))
		w.buf = w.buf[i+1:]
	}
}

func (w *lineWriter) emit(line string) {
	w.lines = append(w.lines, line)
	if w.fn != nil {
		w.fn(line)
	}
}

// flush emits any unterminated trailing line and returns all lines seen.
func (w *lineWriter) flush() []string {
	if len(w.buf) > 0 {
		w.emit(string(w.buf))
		w.buf = nil
	}
	return w.lines
}

// Capabilities implements backend.Executor.
func (e *Executor) Capabilities() backend.Capabilities {
	return backend.Capabilities{
		Name:             Name,
		SupportedFormats: []string{"qasm2"},
	}
}

// Close implements backend.Executor.
func (e *Executor) Close() error { return nil }
