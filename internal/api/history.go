package api

import (
	"errors"
	"net/http"

	"github.com/seantiz/qdevice/internal/model"
)

const (
	defaultHistoryLimit = 20
	maxHistoryLimit     = 100
)

// historyResponse is the JSON response for GET /v1/history.
type historyResponse struct {
	Records []*model.JobRecord `json:"records"`
	Total   int                `json:"total"`
	Limit   int                `json:"limit"`
	Offset  int                `json:"offset"`
}

var errNoStore = errors.New("job history is not configured")

func (s *Server) handleGetStats(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		s.writeError(w, http.StatusServiceUnavailable, errNoStore.Error())
		return
	}

	stats, err := s.store.GetHistoryStats(r.Context())
	if err != nil {
		s.logger.Error("get history stats", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to get stats")
		return
	}
	s.writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleListHistory(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		s.writeError(w, http.StatusServiceUnavailable, errNoStore.Error())
		return
	}

	limit := parseIntQuery(r, "limit", defaultHistoryLimit)
	offset := parseIntQuery(r, "offset", 0)
	if limit < 1 {
		limit = defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}
	if offset < 0 {
		offset = 0
	}

	records, total, err := s.store.ListHistory(r.Context(), limit, offset)
	if err != nil {
		s.logger.Error("list history", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to list history")
		return
	}
	if records == nil {
		records = []*model.JobRecord{}
	}

	s.writeJSON(w, http.StatusOK, historyResponse{
		Records: records,
		Total:   total,
		Limit:   limit,
		Offset:  offset,
	})
}
