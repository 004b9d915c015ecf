// Package remote drives an executor agent over a stream connection using
// length-prefixed JSON frames. Agents are reachable over TCP, Unix sockets,
// AF_VSOCK, or a Firecracker host-side vsock bridge.
package remote

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/seantiz/qdevice/internal/backend"
)

// Name is the registry name of the remote executor.
const Name = "remote"

// Executor forwards every request to an executor agent, one connection per
// request.
type Executor struct {
	addr    Address
	timeout time.Duration
}

// New creates a remote executor for the agent at addr. timeout bounds each
// request including the dial; zero means no bound beyond the caller's context.
func New(addr Address, timeout time.Duration) *Executor {
	return &Executor{addr: addr, timeout: timeout}
}

// Init asks the agent to initialize its local executor.
func (e *Executor) Init(ctx context.Context) error {
	resp, err := e.do(ctx, Request{Op: OpInit}, nil)
	if err != nil {
		return fmt.Errorf("init agent %s: %w", e.addr, err)
	}
	if resp.Error != "" {
		return fmt.Errorf("init agent %s: %s", e.addr, resp.Error)
	}
	return nil
}

// Execute implements backend.Executor.
func (e *Executor) Execute(ctx context.Context, req backend.Request) (backend.Result, error) {
	var lines []string
	logWriter := func(line string) {
		lines = append(lines, line)
		if req.LogWriter != nil {
			req.LogWriter(line)
		}
	}

	resp, err := e.do(ctx, Request{
		Op:      OpExecute,
		JobID:   req.JobID,
		Format:  req.Format,
		Program: req.Program,
		Config:  req.Config,
	}, logWriter)
	if err != nil {
		return backend.Result{}, err
	}
	if resp.Error != "" {
		return backend.Result{}, errors.New(resp.Error)
	}
	return backend.Result{
		Output:     resp.Output,
		DurationMS: resp.DurationMS,
		LogLines:   lines,
	}, nil
}

func (e *Executor) do(ctx context.Context, req Request, logWriter func(string)) (Response, error) {
	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	start := time.Now()
	outcome := outcomeFailed
	defer func() {
		requestDuration.Observe(time.Since(start).Seconds())
		requestsTotal.WithLabelValues(req.Op, outcome).Inc()
	}()

	c, err := Dial(ctx, e.addr)
	if err != nil {
		return Response{}, err
	}
	defer c.Close()

	resp, err := c.Do(req, logWriter)
	if err != nil {
		return Response{}, err
	}
	if resp.Error == "" {
		outcome = outcomeOK
	}
	return resp, nil
}

// Capabilities implements backend.Executor.
func (e *Executor) Capabilities() backend.Capabilities {
	return backend.Capabilities{
		Name:             Name,
		SupportedFormats: []string{"qasm2"},
		Remote:           true,
	}
}

// Close implements backend.Executor.
func (e *Executor) Close() error { return nil }
