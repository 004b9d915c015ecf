// Package agent implements the executor agent: a small server that accepts
// framed requests from a device over TCP, Unix sockets or vsock, runs them
// on a local executor, and streams log lines and the final response back.
package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/seantiz/qdevice/internal/backend"
	"github.com/seantiz/qdevice/internal/backend/remote"
)

// DefaultRequestTimeout bounds a single execute request when the agent is
// created without an explicit timeout.
const DefaultRequestTimeout = 5 * time.Minute

// Agent serves executor requests on a listener. The local executor is not
// reentrant, so requests are executed one at a time.
type Agent struct {
	listener net.Listener
	executor backend.Executor
	logger   *slog.Logger
	timeout  time.Duration

	execMu sync.Mutex
	wg     sync.WaitGroup
}

// New creates an agent serving requests from l on executor e.
func New(l net.Listener, e backend.Executor, logger *slog.Logger, timeout time.Duration) *Agent {
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}
	return &Agent{
		listener: l,
		executor: e,
		logger:   logger,
		timeout:  timeout,
	}
}

// Serve accepts connections until ctx is done or the listener fails. It
// waits for in-flight connections before returning.
func (a *Agent) Serve(ctx context.Context) error {
	stop := context.AfterFunc(ctx, func() { a.listener.Close() })
	defer stop()
	defer a.wg.Wait()

	for {
		conn, err := a.listener.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			return fmt.Errorf("accept: %w", err)
		}
		a.wg.Go(func() {
			a.handleConnection(ctx, conn)
		})
	}
}

// handleConnection processes a single request on conn.
func (a *Agent) handleConnection(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	var req remote.Request
	if err := remote.ReadMessage(conn, &req); err != nil {
		a.logger.Warn("read request", "error", err)
		a.sendResult(conn, remote.Response{Error: fmt.Sprintf("read request: %v", err)})
		return
	}

	var resp remote.Response
	switch req.Op {
	case remote.OpInit:
		resp = a.initExecutor(ctx)
	case remote.OpExecute:
		resp = a.execute(ctx, conn, &req)
	default:
		resp = remote.Response{Error: fmt.Sprintf("unsupported op: %q", req.Op)}
	}
	a.sendResult(conn, resp)
}

func (a *Agent) initExecutor(ctx context.Context) remote.Response {
	a.execMu.Lock()
	defer a.execMu.Unlock()

	if err := a.executor.Init(ctx); err != nil {
		a.logger.Error("executor init failed", "error", err)
		return remote.Response{Error: err.Error()}
	}
	return remote.Response{}
}

// execute runs req on the local executor, streaming log lines to conn.
func (a *Agent) execute(ctx context.Context, conn net.Conn, req *remote.Request) remote.Response {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	a.execMu.Lock()
	defer a.execMu.Unlock()

	logWriter := func(line string) {
		if err := remote.WriteMessage(conn, &remote.Message{Type: remote.MsgTypeLog, Line: line}); err != nil {
			a.logger.Warn("write log line", "job_id", req.JobID, "error", err)
		}
	}

	start := time.Now()
	res, err := a.executor.Execute(ctx, backend.Request{
		JobID:     req.JobID,
		Format:    req.Format,
		Program:   req.Program,
		Config:    req.Config,
		LogWriter: logWriter,
	})
	if err != nil {
		errMsg := err.Error()
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			errMsg = fmt.Sprintf("timeout after %s", a.timeout)
		}
		a.logger.Error("execute failed", "job_id", req.JobID, "error", errMsg)
		return remote.Response{Error: errMsg}
	}

	dur := res.DurationMS
	if dur == 0 {
		dur = int(time.Since(start).Milliseconds())
	}
	a.logger.Debug("execute finished", "job_id", req.JobID, "duration_ms", dur)
	return remote.Response{Output: res.Output, DurationMS: dur}
}

// sendResult sends the final Response wrapped in a Message.
func (a *Agent) sendResult(conn net.Conn, resp remote.Response) {
	msg := remote.Message{
		Type:     remote.MsgTypeResult,
		Response: &resp,
	}
	if err := remote.WriteMessage(conn, &msg); err != nil {
		a.logger.Warn("write result", "error", err)
	}
}
