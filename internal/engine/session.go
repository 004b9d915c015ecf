package engine

import (
	"context"
	"sync"

	"github.com/seantiz/qdevice/internal/backend"
	"github.com/seantiz/qdevice/internal/model"
)

// Session is a client-scoped configuration context from which jobs are
// created. Its defaults are settable only while it is Allocated.
type Session struct {
	id string

	mu       sync.Mutex
	status   model.SessionStatus
	token    string
	defaults backend.RunConfig
	freed    bool
}

// ID returns the session's handle.
func (s *Session) ID() string { return s.id }

// SessionInfo is a snapshot of a session for outer layers.
type SessionInfo struct {
	ID       string              `json:"id"`
	Status   model.SessionStatus `json:"status"`
	Defaults backend.RunConfig   `json:"defaults"`
}

// Info returns a snapshot of the session. The token is never included.
func (s *Session) Info() SessionInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	return SessionInfo{ID: s.id, Status: s.status, Defaults: s.defaults}
}

// AllocSession returns a new Allocated session with default configuration.
func (e *Engine) AllocSession() *Session {
	return &Session{
		id:     model.NewHandle(),
		status: model.SessionAllocated,
		defaults: backend.RunConfig{
			Shots:  1,
			Qubits: e.defaultQubits,
		},
	}
}

// InitSession moves s to Initialized. It fails with ErrBadState while the
// device is Offline, in Error or in Maintenance, or when s was freed.
func (e *Engine) InitSession(ctx context.Context, s *Session) error {
	if s == nil {
		return invalidf("nil session")
	}
	if st := e.DeviceStatus(); !st.Available() {
		return badStatef("device is %s", st)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.freed {
		return badStatef("session %s was freed", s.id)
	}
	if s.status == model.SessionInitialized {
		return nil
	}
	if e.auth != nil {
		if err := e.auth.Authenticate(ctx, s.token); err != nil {
			return invalidf("session %s: credentials rejected: %v", s.id, err)
		}
	}
	s.status = model.SessionInitialized
	return nil
}

// FreeSession releases s. Jobs already created from it are unaffected.
func (e *Engine) FreeSession(s *Session) {
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.freed = true
}

// CreateJob creates a job from an Initialized session. The job takes the
// next process-wide id and a copy of the session's defaults.
func (e *Engine) CreateJob(s *Session) (*Job, error) {
	if s == nil {
		return nil, invalidf("nil session")
	}

	s.mu.Lock()
	if s.freed || s.status != model.SessionInitialized {
		status := s.status
		freed := s.freed
		s.mu.Unlock()
		if freed {
			return nil, badStatef("session %s was freed", s.id)
		}
		return nil, badStatef("session %s is %s", s.id, status)
	}
	cfg := s.defaults
	s.mu.Unlock()

	j := &Job{
		id:        e.nextID.Add(1),
		sessionID: s.id,
		format:    model.FormatQASM2,
		cfg:       cfg,
		status:    model.JobCreated,
		heapIndex: -1,
		createdAt: now(),
	}
	return j, nil
}
