package httpapi

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/riftlabs/controlplane/internal/regimeval"
)

// errorResponse is the standard error envelope for every non-2xx response.
type errorResponse struct {
	Error     string    `json:"error"`
	Message   string    `json:"message"`
	Code      string    `json:"code"`
	RequestID string    `json:"request_id"`
	Timestamp time.Time `json:"timestamp"`
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, data any) {
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		http.Error(w, `{"error":"json_encoding_failed"}`, http.StatusInternalServerError)
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	requestID, _ := r.Context().Value(requestIDKey{}).(string)
	if requestID == "" {
		requestID = "unknown"
	}
	s.writeJSON(w, status, errorResponse{
		Error:     http.StatusText(status),
		Message:   message,
		Code:      code,
		RequestID: requestID,
		Timestamp: time.Now().UTC(),
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	body := map[string]any{
		"status": "ok",
		"flags":  s.flags.Snapshot(),
	}
	s.writeJSON(w, http.StatusOK, body)
}

func (s *Server) handlePositions(w http.ResponseWriter, r *http.Request) {
	positions, err := s.query.OpenPositions()
	if err != nil {
		s.writeError(w, r, http.StatusInternalServerError, "read_failed", err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"positions": positions})
}

func (s *Server) handleProposals(w http.ResponseWriter, r *http.Request) {
	// The proposal directory is keyed by ID with no top-level index file;
	// listing all proposals requires the caller to already know IDs from
	// governance_events.jsonl. This endpoint reports that redirection
	// rather than scanning the filesystem for every subdirectory, since a
	// proposal ID is only ever learned from the event log or from a prior
	// governance run's own response.
	s.writeJSON(w, http.StatusOK, map[string]any{
		"message": "proposal IDs are listed in the governance event log; fetch a specific proposal via /proposals/{id}",
	})
}

func (s *Server) handleProposal(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	files, err := s.query.ProposalFiles(id)
	if err != nil {
		s.writeError(w, r, http.StatusInternalServerError, "read_failed", err.Error())
		return
	}
	if len(files) == 0 {
		s.writeError(w, r, http.StatusNotFound, "proposal_not_found", "no artifacts found for proposal "+id)
		return
	}

	artifacts := map[string]json.RawMessage{}
	for _, name := range files {
		var raw json.RawMessage
		if err := s.query.ReadProposalArtifact(id, name, &raw); err != nil {
			s.writeError(w, r, http.StatusInternalServerError, "read_failed", err.Error())
			return
		}
		artifacts[name] = raw
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"proposal_id": id, "artifacts": artifacts})
}

func (s *Server) handleRegimeLatest(w http.ResponseWriter, r *http.Request) {
	run, ok, err := regimeval.LatestRunState(s.query.Layout)
	if err != nil {
		s.writeError(w, r, http.StatusInternalServerError, "read_failed", err.Error())
		return
	}
	if !ok {
		s.writeError(w, r, http.StatusNotFound, "no_regime_run", "no regime validation has completed yet")
		return
	}
	s.writeJSON(w, http.StatusOK, run)
}

func (s *Server) handleUniverse(w http.ResponseWriter, r *http.Request) {
	symbols, err := s.query.ActiveUniverse()
	if err != nil {
		s.writeError(w, r, http.StatusInternalServerError, "read_failed", err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"symbols": symbols})
}

func (s *Server) handleSchedulerStatus(w http.ResponseWriter, r *http.Request) {
	if s.sched == nil {
		s.writeError(w, r, http.StatusServiceUnavailable, "scheduler_unavailable", "no scheduler is attached to this process")
		return
	}
	statuses, err := s.sched.Status(time.Now())
	if err != nil {
		s.writeError(w, r, http.StatusInternalServerError, "read_failed", err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"tasks": statuses})
}

func (s *Server) handleNotFound(w http.ResponseWriter, r *http.Request) {
	s.writeError(w, r, http.StatusNotFound, "endpoint_not_found", "the requested endpoint does not exist")
}
