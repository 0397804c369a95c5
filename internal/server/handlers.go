package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/hyperjump/kotae/internal/assistant"
	"github.com/hyperjump/kotae/internal/compose"
	"github.com/hyperjump/kotae/internal/models"
	"github.com/hyperjump/kotae/internal/retrieval"
	"go.uber.org/zap"
)

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	var req models.AskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	s.logger.Debug("ask request", zap.String("query", req.Query), zap.String("mode", req.Mode))
	answer, err := s.svc.Ask(r.Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, assistant.ErrInvalidRequest), errors.Is(err, assistant.ErrModeUnavailable):
			s.respondError(w, http.StatusBadRequest, err.Error())
		case answer == nil:
			s.respondError(w, http.StatusInternalServerError, assistant.UnavailableMessage)
		default:
			s.respondJSON(w, answerStatusCode(err), answer)
		}
		return
	}
	s.respondJSON(w, http.StatusOK, answer)
}

// answerStatusCode maps an internal failure behind an unavailable answer to an HTTP status.
func answerStatusCode(err error) int {
	var ce *compose.CompositionError
	switch {
	case errors.As(err, &ce):
		return http.StatusBadGateway
	case errors.Is(err, retrieval.ErrNotReady):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

type retrieveRequest struct {
	Query string `json:"query"`
	Limit int    `json:"limit,omitempty"`
}

type retrieveResponse struct {
	Match      models.MatchResult   `json:"match"`
	Candidates []models.MatchResult `json:"candidates,omitempty"`
}

func (s *Server) handleRetrieve(w http.ResponseWriter, r *http.Request) {
	var req retrieveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	match, err := s.svc.Retrieve(r.Context(), req.Query)
	if err != nil {
		s.respondRetrievalError(w, err)
		return
	}
	resp := retrieveResponse{Match: match}
	if req.Limit > 0 {
		resp.Candidates, err = s.svc.Engine().Candidates(r.Context(), req.Query, req.Limit)
		if err != nil {
			s.respondRetrievalError(w, err)
			return
		}
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) respondRetrievalError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, retrieval.ErrEmptyQuery):
		s.respondError(w, http.StatusBadRequest, "query cannot be empty")
	case errors.Is(err, retrieval.ErrNotReady):
		s.respondError(w, http.StatusServiceUnavailable, err.Error())
	default:
		s.logger.Error("retrieve failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
	}
}

func (s *Server) handleReload(w http.ResponseWriter, r *http.Request) {
	n, err := s.svc.Reload(r.Context())
	if err != nil {
		s.respondError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"status": "reloaded", "records": n})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, s.svc.Status(r.Context()))
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
