package remote

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net"
	"strings"
	"time"

	"github.com/mdlayher/vsock"
)

// Retry defaults for agent connection establishment.
const (
	dialMaxRetries  = 5
	dialBaseBackoff = 100 * time.Millisecond
)

// Conn wraps one connection to an executor agent. Each Conn carries a single
// request and is used by a single goroutine.
type Conn struct {
	conn   net.Conn
	reader io.Reader // buffered reader preserving any bytes read ahead during handshake
}

// Dial connects to the agent at addr, retrying with exponential backoff.
func Dial(ctx context.Context, addr Address) (*Conn, error) {
	var lastErr error
	backoff := dialBaseBackoff

	for attempt := range dialMaxRetries {
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("dial agent: %w", ctx.Err())
		default:
		}

		c, err := dialOnce(ctx, addr)
		if err != nil {
			lastErr = err
			if attempt < dialMaxRetries-1 {
				dialRetries.Inc()
				select {
				case <-time.After(backoff):
				case <-ctx.Done():
					return nil, fmt.Errorf("dial agent: %w", ctx.Err())
				}
				backoff *= 2
			}
			continue
		}

		// Set overall deadline from context if present.
		if deadline, ok := ctx.Deadline(); ok {
			if err := c.conn.SetDeadline(deadline); err != nil {
				c.conn.Close()
				return nil, fmt.Errorf("set deadline: %w", err)
			}
		}
		return c, nil
	}

	return nil, fmt.Errorf("dial agent %s after %d attempts: %w", addr, dialMaxRetries, lastErr)
}

func dialOnce(ctx context.Context, addr Address) (*Conn, error) {
	switch addr.Scheme {
	case SchemeTCP, SchemeUnix:
		target := addr.Host
		if addr.Scheme == SchemeUnix {
			target = addr.Path
		}
		var d net.Dialer
		conn, err := d.DialContext(ctx, addr.Scheme, target)
		if err != nil {
			return nil, fmt.Errorf("connect to %s: %w", addr, err)
		}
		return &Conn{conn: conn, reader: conn}, nil
	case SchemeVsock:
		conn, err := vsock.Dial(addr.CID, addr.Port, nil)
		if err != nil {
			return nil, fmt.Errorf("connect to %s: %w", addr, err)
		}
		return &Conn{conn: conn, reader: conn}, nil
	case SchemeFirecracker:
		return dialFirecrackerUDS(ctx, addr.Path, addr.Port)
	default:
		return nil, fmt.Errorf("unsupported scheme %q", addr.Scheme)
	}
}

// dialFirecrackerUDS connects to Firecracker's host-side vsock socket and
// sends the CONNECT handshake. Protocol: send "CONNECT <port>\n", receive
// "OK <host_port>\n". The buffered reader is kept for all subsequent reads.
func dialFirecrackerUDS(ctx context.Context, udsPath string, port uint32) (*Conn, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "unix", udsPath)
	if err != nil {
		return nil, fmt.Errorf("connect to UDS %s: %w", udsPath, err)
	}

	if _, err := fmt.Fprintf(conn, "CONNECT %d\n", port); err != nil {
		conn.Close()
		return nil, fmt.Errorf("send CONNECT: %w", err)
	}

	reader := bufio.NewReader(conn)
	response, err := reader.ReadString('\n')
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("read CONNECT response: %w", err)
	}

	response = strings.TrimSpace(response)
	if !strings.HasPrefix(response, "OK ") {
		conn.Close()
		return nil, fmt.Errorf("vsock CONNECT failed: %s", response)
	}
	return &Conn{conn: conn, reader: reader}, nil
}

// Do sends req and reads back streamed log lines and the final response.
// Each log line is passed to logWriter as it arrives.
func (c *Conn) Do(req Request, logWriter func(string)) (Response, error) {
	if err := WriteMessage(c.conn, &req); err != nil {
		return Response{}, fmt.Errorf("send %s request: %w", req.Op, err)
	}
	for {
		var msg Message
		if err := ReadMessage(c.reader, &msg); err != nil {
			return Response{}, fmt.Errorf("read agent message: %w", err)
		}

		switch msg.Type {
		case MsgTypeLog:
			if logWriter != nil {
				logWriter(msg.Line)
			}
		case MsgTypeResult:
			if msg.Response == nil {
				return Response{}, fmt.Errorf("received result message with nil response")
			}
			return *msg.Response, nil
		default:
			return Response{}, fmt.Errorf("unknown message type: %q", msg.Type)
		}
	}
}

// Close closes the underlying connection.
func (c *Conn) Close() error {
	return c.conn.Close()
}
