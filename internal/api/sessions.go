package api

import (
	"net/http"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"

	"github.com/insightai/insight/internal/domain"
)

type sessionResponse struct {
	Session    domain.SessionCheck `json:"session"`
	Nodes      []string            `json:"nodes"`
	NodesError string              `json:"nodesError,omitempty"`
}

// handleSession handles GET /sessions/{id}: validity probe plus the
// session's reserved nodes.
func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	id, ok := s.sessionParam(w, r)
	if !ok {
		return
	}

	resp := sessionResponse{
		Session: s.sessions.VerifySession(r.Context(), id),
		Nodes:   []string{},
	}
	resp.Session.ID = id
	if resp.Session.Valid {
		nodes, err := s.sessions.EphemeralNodes(r.Context(), id)
		if err != nil {
			resp.NodesError = err.Error()
		} else if nodes != nil {
			resp.Nodes = nodes
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleSessionTasks handles GET /sessions/{id}/tasks?limit=N, newest first.
func (s *Server) handleSessionTasks(w http.ResponseWriter, r *http.Request) {
	id, ok := s.sessionParam(w, r)
	if !ok {
		return
	}
	limit, err := queryInt(r, "limit", 20)
	if err != nil {
		writeError(w, http.StatusBadRequest, "limit must be a positive integer")
		return
	}

	tasks, err := s.sessions.TasksBySession(r.Context(), id)
	if err != nil {
		s.log.Warn("list session tasks failed", "session_id", id, "error", err)
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}

	out := make([]domain.Task, 0, min(limit, len(tasks)))
	for i := len(tasks) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, tasks[i])
	}
	writeJSON(w, http.StatusOK, map[string]any{"sessionId": id, "tasks": out})
}

// handleSessionsByOwner handles GET /sessions?owner=0x...: every session
// created by that address.
func (s *Server) handleSessionsByOwner(w http.ResponseWriter, r *http.Request) {
	if s.sessions == nil {
		writeError(w, http.StatusServiceUnavailable, domain.ErrLedgerUnavailable.Error())
		return
	}
	owner := r.URL.Query().Get("owner")
	if !common.IsHexAddress(owner) {
		writeError(w, http.StatusBadRequest, "owner must be a hex address")
		return
	}

	sessions, err := s.sessions.SessionsByOwner(r.Context(), common.HexToAddress(owner))
	if err != nil {
		s.log.Warn("list owner sessions failed", "owner", owner, "error", err)
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	if sessions == nil {
		sessions = []domain.Session{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"owner": common.HexToAddress(owner).Hex(), "sessions": sessions})
}

func (s *Server) sessionParam(w http.ResponseWriter, r *http.Request) (uint64, bool) {
	if s.sessions == nil {
		writeError(w, http.StatusServiceUnavailable, domain.ErrLedgerUnavailable.Error())
		return 0, false
	}
	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "session id must be an unsigned integer")
		return 0, false
	}
	return id, true
}
