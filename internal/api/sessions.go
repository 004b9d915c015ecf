package api

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/seantiz/qdevice/internal/model"
)

func (s *Server) handleAllocSession(w http.ResponseWriter, _ *http.Request) {
	sess := s.engine.AllocSession()
	s.handles.addSession(sess)
	s.logger.Debug("session allocated", "session_id", sess.ID())
	s.writeJSON(w, http.StatusCreated, sess.Info())
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.sessionFromRequest(w, r)
	if !ok {
		return
	}
	s.writeJSON(w, http.StatusOK, sess.Info())
}

func (s *Server) handleSetSessionParam(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.sessionFromRequest(w, r)
	if !ok {
		return
	}

	name := chi.URLParam(r, "name")
	p, err := model.ParseSessionParam(name)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	value, err := decodeParam(r, false)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := s.engine.SetSessionParameter(sess, p, value); err != nil {
		s.writeEngineError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, sess.Info())
}

func (s *Server) handleInitSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.sessionFromRequest(w, r)
	if !ok {
		return
	}
	if err := s.engine.InitSession(r.Context(), sess); err != nil {
		s.writeEngineError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, sess.Info())
}

func (s *Server) handleFreeSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.handles.removeSession(chi.URLParam(r, "sid"))
	if !ok {
		s.writeError(w, http.StatusNotFound, "session not found")
		return
	}
	s.engine.FreeSession(sess)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleQueryDeviceProperty(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.sessionFromRequest(w, r)
	if !ok {
		return
	}

	name := chi.URLParam(r, "prop")
	p, err := model.ParseDeviceProperty(name)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	b, err := readProperty(func(dst []byte) (int, error) {
		return s.engine.QueryDeviceProperty(sess, p, dst)
	})
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	s.writeProperty(w, name, deviceKinds[p], b)
}

func (s *Server) handleQuerySiteProperty(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.sessionFromRequest(w, r)
	if !ok {
		return
	}

	site, err := strconv.ParseUint(chi.URLParam(r, "site"), 10, 64)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid site %q", chi.URLParam(r, "site")))
		return
	}
	name := chi.URLParam(r, "prop")
	p, err := model.ParseSiteProperty(name)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	b, err := readProperty(func(dst []byte) (int, error) {
		return s.engine.QuerySiteProperty(sess, site, p, dst)
	})
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	// Every served site property is an 8-byte integer.
	s.writeProperty(w, name, kindUint64, b)
}

func (s *Server) handleCreateJob(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.sessionFromRequest(w, r)
	if !ok {
		return
	}

	j, err := s.engine.CreateJob(sess)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	s.handles.addJob(j)

	info, err := s.engine.Describe(j)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	s.logger.Debug("job created", "job_id", j.ID(), "session_id", sess.ID())
	s.writeJSON(w, http.StatusCreated, info)
}

// writeProperty renders raw property bytes and writes them as JSON.
func (s *Server) writeProperty(w http.ResponseWriter, name string, kind propertyKind, b []byte) {
	v, err := renderProperty(kind, b)
	if err != nil {
		s.logger.Error("render property", "property", name, "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to render property")
		return
	}
	s.writeJSON(w, http.StatusOK, propertyResponse{Name: name, Size: len(b), Value: v})
}
