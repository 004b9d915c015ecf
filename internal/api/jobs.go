package api

import (
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/seantiz/qdevice/internal/histogram"
	"github.com/seantiz/qdevice/internal/model"
)

// maxTimeoutMS is the largest wait budget that fits in a time.Duration.
const maxTimeoutMS = math.MaxInt64 / int64(time.Millisecond)

// resultsResponse is the JSON response for GET /v1/jobs/{id}/results.
type resultsResponse struct {
	JobID  int64                `json:"job_id"`
	Keys   []string             `json:"keys"`
	Counts *histogram.Histogram `json:"counts"`
	Total  uint64               `json:"total"`
}

func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	j, ok := s.jobFromRequest(w, r)
	if !ok {
		return
	}
	info, err := s.engine.Describe(j)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, info)
}

func (s *Server) handleSetJobParam(w http.ResponseWriter, r *http.Request) {
	j, ok := s.jobFromRequest(w, r)
	if !ok {
		return
	}

	p, err := model.ParseJobParam(chi.URLParam(r, "name"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	value, err := decodeParam(r, p == model.JobProgramFormat)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := s.engine.SetJobParameter(j, p, value); err != nil {
		s.writeEngineError(w, err)
		return
	}
	info, err := s.engine.Describe(j)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, info)
}

func (s *Server) handleQueryJobProperty(w http.ResponseWriter, r *http.Request) {
	j, ok := s.jobFromRequest(w, r)
	if !ok {
		return
	}

	name := chi.URLParam(r, "prop")
	p, err := model.ParseJobProperty(name)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	b, err := readProperty(func(dst []byte) (int, error) {
		return s.engine.QueryJobProperty(j, p, dst)
	})
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	s.writeProperty(w, name, jobKinds[p], b)
}

func (s *Server) handleSubmitJob(w http.ResponseWriter, r *http.Request) {
	j, ok := s.jobFromRequest(w, r)
	if !ok {
		return
	}
	if err := s.engine.Submit(j); err != nil {
		s.writeEngineError(w, err)
		return
	}
	info, err := s.engine.Describe(j)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	s.writeJSON(w, http.StatusAccepted, info)
}

func (s *Server) handleCancelJob(w http.ResponseWriter, r *http.Request) {
	j, ok := s.jobFromRequest(w, r)
	if !ok {
		return
	}
	if err := s.engine.Cancel(j); err != nil {
		s.writeEngineError(w, err)
		return
	}
	info, err := s.engine.Describe(j)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, info)
}

// handleWaitJob blocks until the job is done, the timeout_ms budget runs
// out or the client goes away. A missing or zero timeout waits indefinitely.
func (s *Server) handleWaitJob(w http.ResponseWriter, r *http.Request) {
	j, ok := s.jobFromRequest(w, r)
	if !ok {
		return
	}

	var timeout time.Duration
	if v := r.URL.Query().Get("timeout_ms"); v != "" {
		ms, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, "timeout_ms must be an integer")
			return
		}
		if ms > maxTimeoutMS {
			s.writeError(w, http.StatusBadRequest, "timeout_ms is too large")
			return
		}
		timeout = time.Duration(ms) * time.Millisecond
	}

	// Waits may outlast the server write timeout.
	rc := http.NewResponseController(w)
	if err := rc.SetWriteDeadline(time.Time{}); err != nil {
		s.logger.Debug("clear write deadline for wait", "error", err)
	}

	if err := s.engine.Wait(r.Context(), j, timeout); err != nil {
		s.writeEngineError(w, err)
		return
	}
	info, err := s.engine.Describe(j)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, info)
}

// handleGetResults serves the histogram as JSON, or with ?kind= the raw
// bytes of one result view.
func (s *Server) handleGetResults(w http.ResponseWriter, r *http.Request) {
	j, ok := s.jobFromRequest(w, r)
	if !ok {
		return
	}

	if name := r.URL.Query().Get("kind"); name != "" {
		kind, err := model.ParseResultKind(name)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		b, err := readProperty(func(dst []byte) (int, error) {
			return s.engine.GetResults(j, kind, dst)
		})
		if err != nil {
			s.writeEngineError(w, err)
			return
		}
		w.Header().Set("Content-Type", "application/octet-stream")
		w.Header().Set("Content-Length", strconv.Itoa(len(b)))
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write(b); err != nil {
			s.logger.Debug("write results", "job_id", j.ID(), "error", err)
		}
		return
	}

	h, err := s.engine.Histogram(j)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, resultsResponse{
		JobID:  j.ID(),
		Keys:   h.Keys(),
		Counts: h,
		Total:  h.Total(),
	})
}

func (s *Server) handleFreeJob(w http.ResponseWriter, r *http.Request) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid job id")
		return
	}
	j, ok := s.handles.removeJob(id)
	if !ok {
		s.writeError(w, http.StatusNotFound, "job not found")
		return
	}
	s.engine.Free(j)
	w.WriteHeader(http.StatusNoContent)
}
