package backend

import "context"

// Executor is the interface every job executor must implement. The engine
// invokes it from a single worker goroutine, so implementations need not be
// reentrant.
type Executor interface {
	// Init prepares the executor. It is called once by the worker before any
	// job is serviced; an error leaves the device offline.
	Init(ctx context.Context) error

	// Execute runs one program synchronously and returns the executor's raw
	// response text.
	Execute(ctx context.Context, req Request) (Result, error)

	// Capabilities reports what this executor supports.
	Capabilities() Capabilities

	// Close releases any resources held by the executor.
	Close() error
}

// Request describes one program execution.
type Request struct {
	JobID   int64     `json:"job_id"`
	Format  string    `json:"format"`
	Program string    `json:"program"`
	Config  RunConfig `json:"config"`

	// LogWriter is an optional callback that executors invoke to emit
	// progress lines while the program runs.
	LogWriter func(line string) `json:"-"`
}

// Result holds the executor's response for one request.
type Result struct {
	Output     string   `json:"output"`
	DurationMS int      `json:"duration_ms"`
	LogLines   []string `json:"log_lines,omitempty"`
}

// Capabilities describes what an executor supports.
type Capabilities struct {
	Name             string   `json:"name"`
	SupportedFormats []string `json:"supported_formats"`
	MaxQubits        int      `json:"max_qubits"`
	Remote           bool     `json:"remote"`
}
