package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/cortex-community/cortex-engine/internal/challenge"
	"github.com/cortex-community/cortex-engine/internal/chat"
	"github.com/cortex-community/cortex-engine/internal/models"
	"github.com/cortex-community/cortex-engine/internal/points"
)

// Response helpers

type apiResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *apiError   `json:"error,omitempty"`
}

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	resp := apiResponse{
		Success: status >= 200 && status < 300,
		Data:    data,
	}

	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	resp := apiResponse{
		Success: false,
		Error: &apiError{
			Code:    code,
			Message: message,
		},
	}

	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("failed to encode error response", "error", err)
	}
}

// Health handlers

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if err := s.repo.Ping(r.Context()); err != nil {
		respondError(w, http.StatusServiceUnavailable, "not_ready", "service not ready")
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{
		"status": "ready",
	})
}

// Interaction webhook

func (s *Server) handleInteraction(w http.ResponseWriter, r *http.Request) {
	var event chat.InteractionEvent
	if err := json.NewDecoder(r.Body).Decode(&event); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	if event.ActorID == "" {
		respondError(w, http.StatusBadRequest, "validation_error", "actor_id is required")
		return
	}

	ack := s.dispatcher.Dispatch(r.Context(), event)
	respondJSON(w, http.StatusOK, ack)
}

// Challenge handlers

func (s *Server) handleActivateChallenge(w http.ResponseWriter, r *http.Request) {
	var req models.CreateChallengeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	ch, err := s.lifecycle.Activate(r.Context(), req)
	if err != nil {
		if errors.Is(err, challenge.ErrChallengeActive) {
			respondError(w, http.StatusConflict, "challenge_open", "another challenge is still open")
			return
		}
		respondError(w, http.StatusBadRequest, "validation_error", err.Error())
		return
	}

	respondJSON(w, http.StatusCreated, ch)
}

func (s *Server) handleGetChallenge(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	ch, err := s.repo.GetChallenge(r.Context(), id)
	if err != nil {
		slog.Error("failed to get challenge", "error", err, "id", id)
		respondError(w, http.StatusInternalServerError, "internal_error", "failed to get challenge")
		return
	}
	if ch == nil {
		respondError(w, http.StatusNotFound, "not_found", "challenge not found")
		return
	}

	respondJSON(w, http.StatusOK, ch)
}

func (s *Server) handleListChallenges(w http.ResponseWriter, r *http.Request) {
	challenges, err := s.repo.ListChallenges(r.Context())
	if err != nil {
		slog.Error("failed to list challenges", "error", err)
		respondError(w, http.StatusInternalServerError, "internal_error", "failed to list challenges")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"challenges": challenges,
		"total":      len(challenges),
	})
}

func (s *Server) handleCloseChallenge(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := s.lifecycle.Close(r.Context(), id); err != nil {
		if errors.Is(err, challenge.ErrInvalidState) {
			respondError(w, http.StatusConflict, "invalid_state", "challenge is not active")
			return
		}
		// Partial channel failures: the transition committed, report them
		slog.Error("challenge close finished with failures", "error", err, "id", id)
		respondJSON(w, http.StatusOK, map[string]string{
			"message": "challenge closed with channel failures",
			"detail":  err.Error(),
		})
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{
		"message": "challenge closed",
	})
}

func (s *Server) handleFinishChallenge(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := s.lifecycle.Finish(r.Context(), id); err != nil {
		if errors.Is(err, challenge.ErrChallengeActive) {
			respondError(w, http.StatusConflict, "challenge_active", "close the challenge before finishing it")
			return
		}
		if errors.Is(err, challenge.ErrInvalidState) {
			respondError(w, http.StatusConflict, "invalid_state", "challenge is not awaiting grading")
			return
		}
		slog.Error("challenge finish finished with failures", "error", err, "id", id)
		respondJSON(w, http.StatusOK, map[string]string{
			"message": "challenge finished with channel failures",
			"detail":  err.Error(),
		})
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{
		"message": "challenge finished",
	})
}

// Points handlers

func (s *Server) handleGetPoints(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	balance, err := s.points.Get(r.Context(), id)
	if err != nil {
		slog.Error("failed to get balance", "error", err, "user_id", id)
		respondError(w, http.StatusInternalServerError, "internal_error", "failed to get balance")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"user_id": id,
		"points":  balance,
	})
}

func (s *Server) handleSetPoints(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req struct {
		Points int `json:"points"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	if err := s.points.Set(r.Context(), id, req.Points); err != nil {
		if errors.Is(err, points.ErrInvalidAmount) {
			respondError(w, http.StatusBadRequest, "validation_error", "points must not be negative")
			return
		}
		slog.Error("failed to set balance", "error", err, "user_id", id)
		respondError(w, http.StatusInternalServerError, "internal_error", "failed to set balance")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"user_id": id,
		"points":  req.Points,
	})
}

func (s *Server) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	limit := 10
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 {
			limit = l
		}
	}

	top, err := s.points.Leaderboard(r.Context(), limit)
	if err != nil {
		slog.Error("failed to load leaderboard", "error", err)
		respondError(w, http.StatusInternalServerError, "internal_error", "failed to load leaderboard")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"members": top,
		"total":   len(top),
	})
}
