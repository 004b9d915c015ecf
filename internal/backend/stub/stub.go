// Package stub provides a deterministic executor that tracks computational
// basis states only. It understands qreg declarations and the x, cx and swap
// gates of a QASM2 program and reports every shot on the resulting bitstring.
// It is used by tests, the test server and as the default executor.
package stub

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/seantiz/qdevice/internal/backend"
)

// Name is the registry name of the stub executor.
const Name = "stub"

// Executor is a deterministic basis-state executor.
type Executor struct {
	delay   time.Duration
	initErr error
	calls   atomic.Int64
}

// Option configures an Executor.
type Option func(*Executor)

// WithDelay makes every Execute call take at least d.
func WithDelay(d time.Duration) Option {
	return func(e *Executor) { e.delay = d }
}

// WithInitError makes Init fail with err.
func WithInitError(err error) Option {
	return func(e *Executor) { e.initErr = err }
}

// New creates a stub executor.
func New(opts ...Option) *Executor {
	e := &Executor{}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Init implements backend.Executor.
func (e *Executor) Init(_ context.Context) error {
	return e.initErr
}

// Calls returns how many times Execute has been invoked.
func (e *Executor) Calls() int64 {
	return e.calls.Load()
}

// Execute implements backend.Executor.
func (e *Executor) Execute(ctx context.Context, req backend.Request) (backend.Result, error) {
	e.calls.Add(1)
	start := time.Now()

	if e.delay > 0 {
		select {
		case <-time.After(e.delay):
		case <-ctx.Done():
			return backend.Result{}, ctx.Err()
		}
	}

	bits, err := Simulate(req.Program, int(req.Config.Qubits))
	if err != nil {
		return backend.Result{}, err
	}
	if req.LogWriter != nil {
		req.LogWriter(fmt.Sprintf("stub: %d qubits, %d shots", len(bits), req.Config.Shots))
	}

	dur := time.Since(start)
	out := fmt.Sprintf(`{"counts": {"%s": %d}, "time_taken": %.6f}`, bits, req.Config.Shots, dur.Seconds())
	return backend.Result{Output: out, DurationMS: int(dur.Milliseconds())}, nil
}

// Capabilities implements backend.Executor.
func (e *Executor) Capabilities() backend.Capabilities {
	return backend.Capabilities{
		Name:             Name,
		SupportedFormats: []string{"qasm2"},
		MaxQubits:        1024,
	}
}

// Close implements backend.Executor.
func (e *Executor) Close() error { return nil }

// Simulate applies the program to the all-zero basis state and returns the
// final bitstring with qubit 0 rightmost. The width is the total size of the
// declared registers, or qubits when the program declares none.
func Simulate(program string, qubits int) (string, error) {
	regs := make(map[string]int)
	width := 0
	var state []bool

	for _, stmt := range strings.Split(program, ";") {
		stmt = stripComment(strings.TrimSpace(stmt))
		if stmt == "" {
			continue
		}
		fields := strings.Fields(stmt)
		op, rest := fields[0], strings.Join(fields[1:], "")
		switch strings.ToLower(op) {
		case "qreg":
			name, size, err := parseRef(rest)
			if err != nil {
				return "", err
			}
			regs[name] = width
			width += size
			state = append(state, make([]bool, size)...)
		case "x", "cx", "swap":
			if state == nil {
				if qubits <= 0 {
					return "", fmt.Errorf("stub: %s before any qreg declaration", op)
				}
				regs[""] = 0
				width = qubits
				state = make([]bool, qubits)
			}
			idx, err := resolveArgs(regs, width, rest)
			if err != nil {
				return "", err
			}
			if err := apply(state, strings.ToLower(op), idx); err != nil {
				return "", err
			}
		}
	}

	if state == nil {
		if qubits < 0 {
			qubits = 0
		}
		state = make([]bool, qubits)
	}

	var b strings.Builder
	b.Grow(len(state))
	for i := len(state) - 1; i >= 0; i-- {
		if state[i] {
			b.WriteByte('1')
		} else {
			b.WriteByte('0')
		}
	}
	return b.String(), nil
}

func apply(state []bool, op string, idx []int) error {
	switch op {
	case "x":
		if len(idx) != 1 {
			return fmt.Errorf("stub: x takes 1 operand, got %d", len(idx))
		}
		state[idx[0]] = !state[idx[0]]
	case "cx":
		if len(idx) != 2 {
			return fmt.Errorf("stub: cx takes 2 operands, got %d", len(idx))
		}
		if state[idx[0]] {
			state[idx[1]] = !state[idx[1]]
		}
	case "swap":
		if len(idx) != 2 {
			return fmt.Errorf("stub: swap takes 2 operands, got %d", len(idx))
		}
		state[idx[0]], state[idx[1]] = state[idx[1]], state[idx[0]]
	}
	return nil
}

func resolveArgs(regs map[string]int, width int, args string) ([]int, error) {
	var out []int
	for _, a := range strings.Split(args, ",") {
		name, i, err := parseRef(a)
		if err != nil {
			return nil, err
		}
		off, ok := regs[name]
		if !ok {
			// Programs without a qreg address a single implicit register.
			off, ok = regs[""]
		}
		if !ok {
			return nil, fmt.Errorf("stub: undeclared register %q", name)
		}
		if off+i >= width {
			return nil, fmt.Errorf("stub: qubit %s[%d] out of range", name, i)
		}
		out = append(out, off+i)
	}
	return out, nil
}

// parseRef splits "q[3]" into its register name and index.
func parseRef(s string) (string, int, error) {
	s = strings.TrimSpace(s)
	open := strings.IndexByte(s, '[')
	if open <= 0 || !strings.HasSuffix(s, "]") {
		return "", 0, fmt.Errorf("stub: bad operand %q", s)
	}
	n, err := strconv.Atoi(s[open+1 : len(s)-1])
	if err != nil || n < 0 {
		return "", 0, fmt.Errorf("stub: bad index in %q", s)
	}
	return s[:open], n, nil
}

func stripComment(s string) string {
	for {
		i := strings.Index(s, "//")
		if i < 0 {
			return strings.TrimSpace(s)
		}
		nl := strings.IndexByte(s[i:], '\n')
		if nl < 0 {
			return strings.TrimSpace(s[:i])
		}
		s = s[:i] + s[i+nl:]
	}
}
