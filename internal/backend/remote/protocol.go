package remote

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"

	"github.com/seantiz/qdevice/internal/backend"
)

// MaxMessageSize is the maximum allowed frame payload (16 MiB).
const MaxMessageSize = 16 << 20

// Host to agent operations.
const (
	OpInit    = "init"
	OpExecute = "execute"
)

// Request is the frame sent from the device to an executor agent.
type Request struct {
	Op      string            `json:"op"`
	JobID   int64             `json:"job_id,omitempty"`
	Format  string            `json:"format,omitempty"`
	Program string            `json:"program,omitempty"`
	Config  backend.RunConfig `json:"config"`
}

// Response is the final outcome of one request.
type Response struct {
	Output     string `json:"output"`
	Error      string `json:"error,omitempty"`
	DurationMS int    `json:"duration_ms"`
}

// Agent to host message types.
const (
	MsgTypeLog    = "log"
	MsgTypeResult = "result"
)

// Message is the envelope for all agent to host frames. While a program
// runs the agent sends log lines with Type="log"; it finishes with exactly
// one Type="result" message.
type Message struct {
	Type     string    `json:"type"`
	Line     string    `json:"line,omitempty"`
	Response *Response `json:"response,omitempty"`
}

// WriteMessage writes a length-prefixed JSON message to w.
// The frame format is: 4-byte big-endian length prefix followed by the JSON payload.
func WriteMessage(w io.Writer, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}
	if len(data) > MaxMessageSize {
		return fmt.Errorf("message size %d exceeds maximum %d", len(data), MaxMessageSize)
	}

	frame := make([]byte, 4+len(data))
	binary.BigEndian.PutUint32(frame, uint32(len(data)))
	copy(frame[4:], data)
	if _, err := w.Write(frame); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	return nil
}

// ReadMessage reads a length-prefixed JSON message from r and decodes it into v.
func ReadMessage(r io.Reader, v any) error {
	var length uint32
	if err := binary.Read(r, binary.BigEndian, &length); err != nil {
		return fmt.Errorf("read length prefix: %w", err)
	}

	if length > MaxMessageSize {
		return fmt.Errorf("message size %d exceeds maximum %d", length, MaxMessageSize)
	}

	data := make([]byte, length)
	if _, err := io.ReadFull(r, data); err != nil {
		return fmt.Errorf("read payload: %w", err)
	}

	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("unmarshal message: %w", err)
	}
	return nil
}
