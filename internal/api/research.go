package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/insightai/insight/internal/domain"
	"github.com/insightai/insight/internal/research"
)

const maxBodyBytes = 64 << 10

// researchRequest accepts any JSON type so non-string fields can be
// rejected with a precise message.
type researchRequest struct {
	Query any `json:"query"`
	URL   any `json:"url"`
	Mode  any `json:"mode"`
}

// handleResearch handles POST /research.
func (s *Server) handleResearch(w http.ResponseWriter, r *http.Request) {
	var body researchRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}

	query, ok := body.Query.(string)
	if !ok || query == "" {
		writeError(w, http.StatusBadRequest, "Query is required")
		return
	}
	url, ok := optionalString(body.URL)
	if !ok {
		writeError(w, http.StatusBadRequest, "url must be a string")
		return
	}
	rawMode, ok := optionalString(body.Mode)
	if !ok {
		writeError(w, http.StatusBadRequest, "mode must be a string")
		return
	}

	var mode domain.Mode
	if rawMode != "" {
		m, err := domain.ParseMode(rawMode)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		mode = m
	}

	res, err := s.research.Dispatch(r.Context(), research.Request{Query: query, URL: url, Mode: mode})
	if err != nil {
		var verr *research.ValidationError
		switch {
		case errors.Is(err, domain.ErrEmptyQuery):
			writeError(w, http.StatusBadRequest, "Query is required")
		case errors.As(err, &verr):
			writeError(w, http.StatusBadRequest, verr.Error())
		default:
			s.log.Error("research dispatch failed", "error", err)
			writeError(w, http.StatusInternalServerError, "Failed to process research request")
		}
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// handleResearchStatus handles GET /research. Always 200; session problems
// are reported in the body.
func (s *Server) handleResearchStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.research.Status(r.Context()))
}

// handleHistory handles GET /research/history?limit=N.
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeError(w, http.StatusNotFound, domain.ErrHistoryDisabled.Error())
		return
	}
	limit, err := queryInt(r, "limit", 20)
	if err != nil {
		writeError(w, http.StatusBadRequest, "limit must be a positive integer")
		return
	}

	results, err := s.history.RecentResults(r.Context(), limit)
	if err != nil {
		s.log.Error("history query failed", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to read research history")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": results})
}

// handleHistoryItem handles GET /research/history/{id}.
func (s *Server) handleHistoryItem(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeError(w, http.StatusNotFound, domain.ErrHistoryDisabled.Error())
		return
	}
	id := chi.URLParam(r, "id")

	res, err := s.history.GetResult(r.Context(), id)
	switch {
	case errors.Is(err, domain.ErrResultNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case err != nil:
		s.log.Error("history lookup failed", "dispatch_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to read research history")
	default:
		writeJSON(w, http.StatusOK, res)
	}
}

// optionalString accepts an absent/null value or a string.
func optionalString(v any) (string, bool) {
	if v == nil {
		return "", true
	}
	s, ok := v.(string)
	return s, ok
}

// queryInt reads a positive integer query parameter.
func queryInt(r *http.Request, key string, fallback int) (int, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 0, errors.New("invalid " + key)
	}
	return n, nil
}
