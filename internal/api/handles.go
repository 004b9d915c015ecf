package api

import (
	"fmt"
	"net/http"
	"strconv"
	"sync"

	"github.com/go-chi/chi/v5"

	"github.com/seantiz/qdevice/internal/engine"
)

// handleTable maps the identifiers clients see to engine objects. Sessions
// are keyed by their ULID handle and jobs by their numeric id.
type handleTable struct {
	mu       sync.RWMutex
	sessions map[string]*engine.Session
	jobs     map[int64]*engine.Job
}

func newHandleTable() *handleTable {
	return &handleTable{
		sessions: make(map[string]*engine.Session),
		jobs:     make(map[int64]*engine.Job),
	}
}

func (h *handleTable) addSession(s *engine.Session) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.sessions[s.ID()] = s
}

func (h *handleTable) session(id string) (*engine.Session, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	s, ok := h.sessions[id]
	return s, ok
}

func (h *handleTable) removeSession(id string) (*engine.Session, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	s, ok := h.sessions[id]
	delete(h.sessions, id)
	return s, ok
}

func (h *handleTable) addJob(j *engine.Job) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.jobs[j.ID()] = j
}

func (h *handleTable) job(id int64) (*engine.Job, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	j, ok := h.jobs[id]
	return j, ok
}

func (h *handleTable) removeJob(id int64) (*engine.Job, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	j, ok := h.jobs[id]
	delete(h.jobs, id)
	return j, ok
}

// sessionFromRequest resolves the {sid} URL parameter, writing 404 when it is
// unknown.
func (s *Server) sessionFromRequest(w http.ResponseWriter, r *http.Request) (*engine.Session, bool) {
	id := chi.URLParam(r, "sid")
	sess, ok := s.handles.session(id)
	if !ok {
		s.writeError(w, http.StatusNotFound, fmt.Sprintf("%v: session %q", errUnknownHandle, id))
		return nil, false
	}
	return sess, true
}

// jobFromRequest resolves the {id} URL parameter, writing 404 when it is
// unknown.
func (s *Server) jobFromRequest(w http.ResponseWriter, r *http.Request) (*engine.Job, bool) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid job id %q", raw))
		return nil, false
	}
	j, ok := s.handles.job(id)
	if !ok {
		s.writeError(w, http.StatusNotFound, fmt.Sprintf("%v: job %d", errUnknownHandle, id))
		return nil, false
	}
	return j, true
}
