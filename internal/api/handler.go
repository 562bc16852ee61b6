// Package api provides the HTTP surface of the trip planning service.
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ashureev/tripflow/internal/identity"
	"github.com/ashureev/tripflow/internal/planner"
	"github.com/ashureev/tripflow/internal/store"
)

// maxRequestBodySize caps request bodies; trip planning inputs are short.
const maxRequestBodySize = 1 << 20 // 1 MiB

// Handler serves the planning API.
type Handler struct {
	engine *planner.Engine
	cache  store.Cache
}

// NewHandler creates a new Handler.
func NewHandler(engine *planner.Engine, cache store.Cache) *Handler {
	return &Handler{engine: engine, cache: cache}
}

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error": "failed to encode response"}`, http.StatusInternalServerError)
	}
}

// Error writes a JSON error response.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]string{"error": message})
}

// RegisterRoutes registers the planning routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/plan-trip", h.PlanTrip)
	r.Post("/continue-conversation", h.PlanTrip)
	r.Get("/get-session", h.GetSession)
	r.Get("/get-messages", h.GetMessages)
	r.Post("/reset-session", h.ResetSession)
	r.Get("/health", h.Health)
}

type turnRequest struct {
	UserInput string `json:"user_input"`
	SessionID string `json:"session_id"`
}

type resetRequest struct {
	SessionID string `json:"session_id"`
}

// PlanTrip runs one conversation turn. POST /plan-trip and
// POST /continue-conversation share this handler; the original surface
// exposes both names for the same operation.
func (h *Handler) PlanTrip(w http.ResponseWriter, r *http.Request) {
	var req turnRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.UserInput == "" {
		Error(w, http.StatusBadRequest, "user_input is required")
		return
	}
	sessionID := identity.SanitizeSessionID(req.SessionID)

	st, err := h.engine.SubmitTurn(r.Context(), sessionID, req.UserInput)
	if err != nil {
		slog.Error("Turn failed", "session_id", sessionID, "error", err)
		writeTurnError(w, err)
		return
	}
	JSON(w, http.StatusOK, st)
}

// GetSession returns the persisted state for a session.
func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	sessionID := identity.SanitizeSessionID(r.URL.Query().Get("session_id"))

	st, err := h.engine.GetSession(r.Context(), sessionID)
	if err != nil {
		slog.Error("Session lookup failed", "session_id", sessionID, "error", err)
		Error(w, http.StatusInternalServerError, "failed to load session")
		return
	}
	if st == nil {
		Error(w, http.StatusNotFound, "session not found")
		return
	}
	JSON(w, http.StatusOK, st)
}

// GetMessages returns the session transcript.
func (h *Handler) GetMessages(w http.ResponseWriter, r *http.Request) {
	sessionID := identity.SanitizeSessionID(r.URL.Query().Get("session_id"))

	messages, err := h.engine.Messages(r.Context(), sessionID)
	if err != nil {
		slog.Error("Message lookup failed", "session_id", sessionID, "error", err)
		Error(w, http.StatusInternalServerError, "failed to load messages")
		return
	}
	JSON(w, http.StatusOK, map[string]interface{}{
		"session_id": sessionID,
		"messages":   messages,
	})
}

// ResetSession removes all stored state for a session.
func (h *Handler) ResetSession(w http.ResponseWriter, r *http.Request) {
	var req resetRequest
	if !decodeBody(w, r, &req) {
		return
	}
	sessionID := identity.SanitizeSessionID(req.SessionID)

	if err := h.engine.ResetSession(r.Context(), sessionID); err != nil {
		slog.Error("Session reset failed", "session_id", sessionID, "error", err)
		Error(w, http.StatusInternalServerError, "failed to reset session")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Health reports liveness and store connectivity.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if err := h.cache.Ping(r.Context()); err != nil {
		slog.Error("Store health check failed", "error", err)
		JSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "degraded",
			"store":  "unreachable",
		})
		return
	}
	JSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			Error(w, http.StatusRequestEntityTooLarge, "request body too large")
			return false
		}
		Error(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

// writeTurnError maps engine error classes onto HTTP statuses.
func writeTurnError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, planner.ErrTurnTimeout):
		Error(w, http.StatusGatewayTimeout, "the request took too long to process")
	case errors.Is(err, planner.ErrGenerationUnavailable):
		Error(w, http.StatusServiceUnavailable, "the planning service is temporarily unavailable")
	case errors.Is(err, planner.ErrStorage):
		Error(w, http.StatusInternalServerError, "failed to persist the conversation")
	default:
		Error(w, http.StatusInternalServerError, "internal server error")
	}
}
