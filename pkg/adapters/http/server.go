// Package http exposes the orchestrator as a JSON API over chi.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/cadenzahq/cadenza"
	"github.com/cadenzahq/cadenza/pkg/domain"
)

// maxMessageBytes bounds an inbound turn body.
const maxMessageBytes = 64 << 10

// Orchestrator is the slice of the cadenza facade the handler needs.
type Orchestrator interface {
	Turn(ctx context.Context, sessionID, input string) (cadenza.TurnResult, error)
	State(ctx context.Context, sessionID string) (*domain.State, error)
	EndSession(ctx context.Context, sessionID string) error
	Sessions(ctx context.Context) ([]string, error)
	InstallPending(ctx context.Context, sessionID string, payload any) error
}

// Server carries the handler's dependencies.
type Server struct {
	orc    Orchestrator
	logger *slog.Logger
}

// TurnRequest is the POST turn body.
type TurnRequest struct {
	Message string `json:"message"`
}

// TurnResponse is the turn outcome returned to the client.
type TurnResponse struct {
	Reply     string `json:"reply"`
	Suspended bool   `json:"suspended"`
}

// NewHandler builds the HTTP routes over the orchestrator.
func NewHandler(orc Orchestrator, logger *slog.Logger) http.Handler {
	s := &Server{orc: orc, logger: logger}

	r := chi.NewRouter()
	r.Get("/health", s.health)
	r.Route("/sessions", func(r chi.Router) {
		r.Get("/", s.listSessions)
		r.Route("/{sessionID}", func(r chi.Router) {
			r.Get("/", s.getSession)
			r.Delete("/", s.deleteSession)
			r.Post("/turns", s.postTurn)
			r.Post("/pending", s.postPending)
		})
	})
	return enableCORS(r)
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) listSessions(w http.ResponseWriter, r *http.Request) {
	ids, err := s.orc.Sessions(r.Context())
	if err != nil {
		s.fail(w, "list sessions", err)
		return
	}
	if ids == nil {
		ids = []string{}
	}
	writeJSON(w, http.StatusOK, map[string][]string{"sessions": ids})
}

func (s *Server) getSession(w http.ResponseWriter, r *http.Request) {
	state, err := s.orc.State(r.Context(), chi.URLParam(r, "sessionID"))
	if errors.Is(err, domain.ErrSessionNotFound) {
		http.Error(w, "session not found", http.StatusNotFound)
		return
	}
	if err != nil {
		s.fail(w, "load session", err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

func (s *Server) deleteSession(w http.ResponseWriter, r *http.Request) {
	if err := s.orc.EndSession(r.Context(), chi.URLParam(r, "sessionID")); err != nil {
		s.fail(w, "delete session", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) postTurn(w http.ResponseWriter, r *http.Request) {
	var body TurnRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxMessageBytes)).Decode(&body); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		s.logger.Warn("turn: invalid request body", "err", err)
		return
	}
	if body.Message == "" {
		http.Error(w, "message is required", http.StatusBadRequest)
		return
	}

	result, err := s.orc.Turn(r.Context(), chi.URLParam(r, "sessionID"), body.Message)
	if err != nil {
		s.fail(w, "turn", err)
		return
	}
	writeJSON(w, http.StatusOK, TurnResponse{Reply: result.Reply, Suspended: result.Suspended})
}

func (s *Server) postPending(w http.ResponseWriter, r *http.Request) {
	var payload any
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxMessageBytes)).Decode(&payload); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	sessionID := chi.URLParam(r, "sessionID")
	err := s.orc.InstallPending(r.Context(), sessionID, payload)
	if errors.Is(err, domain.ErrSessionNotFound) {
		http.Error(w, "session not found", http.StatusNotFound)
		return
	}
	var violation *domain.StateInvariantViolation
	if errors.As(err, &violation) {
		http.Error(w, violation.Error(), http.StatusConflict)
		return
	}
	if err != nil {
		http.Error(w, fmt.Sprintf("invalid approval payload: %v", err), http.StatusBadRequest)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) fail(w http.ResponseWriter, op string, err error) {
	s.logger.Error(op+" failed", "err", err)
	http.Error(w, fmt.Sprintf("%s error: %v", op, err), http.StatusInternalServerError)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("response encode failed", "err", err)
	}
}
