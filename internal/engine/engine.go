package engine

import (
	"log/slog"
	"sync"
	"sync/atomic"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/seantiz/qdevice/internal/backend"
	"github.com/seantiz/qdevice/internal/model"
)

// Device identity reported through device properties.
const (
	DefaultDeviceName = "qdevice"
	DeviceVersion     = "0.0.1"
	LibraryVersion    = "0.0.1"
)

// DefaultQubits is the qubit count of a freshly allocated session.
const DefaultQubits = 64

const tracerName = "github.com/seantiz/qdevice/internal/engine"

// Engine owns the device state: the pending queue, the job currently
// executing, the device status and the worker goroutine. One Engine serves
// the whole process; every operation takes it explicitly.
type Engine struct {
	executor backend.Executor
	logger   *slog.Logger
	broker   *Broker
	recorder Recorder
	auth     Authenticator
	tracer   trace.Tracer

	deviceName    string
	defaultQubits int32

	nextID atomic.Int64

	// mu guards every field below and all mutable fields of every Job.
	mu         sync.Mutex
	work       *sync.Cond // broadcast when pending grows or a stop begins or ends
	pending    jobQueue
	current    *Job
	executing  bool // the worker is inside an executor call
	status     model.DeviceStatus
	running    bool
	stopping   bool // a Stop is in progress; Start waits for it
	workerDone chan struct{}
	recStop    chan struct{}
	recDone    chan struct{}
	initErr    error

	// recMu guards recs, the terminal records not yet handed to the
	// recorder. recWake nudges the record goroutine.
	recMu   sync.Mutex
	recs    []model.JobRecord
	recWake chan struct{}

	// doneMu guards doneCh, which is closed and replaced every time a job
	// reaches a terminal status. It is independent of mu so that waiters
	// never contend with submitters.
	doneMu sync.Mutex
	doneCh chan struct{}
}

// Option configures an Engine.
type Option func(*Engine)

// WithRecorder installs a hook that receives every terminal job record.
func WithRecorder(r Recorder) Option {
	return func(e *Engine) { e.recorder = r }
}

// WithAuthenticator installs a credential check run by InitSession.
func WithAuthenticator(a Authenticator) Option {
	return func(e *Engine) { e.auth = a }
}

// WithTracerProvider sets the tracer provider for execution spans. The
// global provider is used by default.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(e *Engine) { e.tracer = tp.Tracer(tracerName) }
}

// WithDeviceName sets the name reported by the Name device property.
func WithDeviceName(name string) Option {
	return func(e *Engine) {
		if name != "" {
			e.deviceName = name
		}
	}
}

// WithDefaultQubits sets the qubit count of new sessions.
func WithDefaultQubits(n int32) Option {
	return func(e *Engine) {
		if n > 0 {
			e.defaultQubits = n
		}
	}
}

// New creates an engine that executes jobs on exec. The engine starts
// Offline; call Start to launch the worker.
func New(exec backend.Executor, logger *slog.Logger, opts ...Option) *Engine {
	e := &Engine{
		executor:      exec,
		logger:        logger,
		broker:        NewBroker(),
		tracer:        otel.GetTracerProvider().Tracer(tracerName),
		deviceName:    DefaultDeviceName,
		defaultQubits: DefaultQubits,
		status:        model.DeviceOffline,
		doneCh:        make(chan struct{}),
		recWake:       make(chan struct{}, 1),
	}
	e.work = sync.NewCond(&e.mu)
	for _, o := range opts {
		o(e)
	}
	deviceStatusGauge.Set(float64(e.status))
	return e
}

// Broker returns the engine's job event broker.
func (e *Engine) Broker() *Broker {
	return e.broker
}

// Executor returns the executor the worker drives.
func (e *Engine) Executor() backend.Executor {
	return e.executor
}

// DeviceStatus returns the current device status.
func (e *Engine) DeviceStatus() model.DeviceStatus {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.status
}

// Snapshot is a consistent view of the device state.
type Snapshot struct {
	Name       string             `json:"name"`
	Version    string             `json:"version"`
	Status     model.DeviceStatus `json:"status"`
	Pending    int                `json:"pending"`
	CurrentJob int64              `json:"current_job,omitempty"`
	Executor   string             `json:"executor"`
	InitError  string             `json:"init_error,omitempty"`
}

// Snapshot returns the device state under the registry lock.
func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()

	s := Snapshot{
		Name:     e.deviceName,
		Version:  DeviceVersion,
		Status:   e.status,
		Pending:  e.pending.Len(),
		Executor: e.executor.Capabilities().Name,
	}
	if e.current != nil {
		s.CurrentJob = e.current.id
	}
	if e.initErr != nil {
		s.InitError = e.initErr.Error()
	}
	return s
}

// setStatusLocked records a device status change. Callers hold e.mu.
func (e *Engine) setStatusLocked(s model.DeviceStatus) {
	if e.status == s {
		return
	}
	e.status = s
	deviceStatusGauge.Set(float64(s))
}

// refreshStatusLocked recomputes the device status from the queue and the
// worker: Busy while an executor call is in flight or jobs are pending, Idle
// otherwise. A canceled job keeps the device Busy until its call returns.
// Callers hold e.mu and the worker must be running.
func (e *Engine) refreshStatusLocked() {
	if e.executing || e.pending.Len() > 0 {
		e.setStatusLocked(model.DeviceBusy)
		return
	}
	e.setStatusLocked(model.DeviceIdle)
}
