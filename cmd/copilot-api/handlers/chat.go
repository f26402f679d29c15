// Package handlers provides HTTP handlers for the copilot API.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/Avinash-blip/Final-AI-CoPilot/internal/answer"
	"github.com/Avinash-blip/Final-AI-CoPilot/internal/database"
	"github.com/Avinash-blip/Final-AI-CoPilot/internal/observability"
	"github.com/Avinash-blip/Final-AI-CoPilot/internal/sqlgen"
)

// ChatHandler answers natural-language questions about the trips dataset.
type ChatHandler struct {
	logger  *observability.Logger
	service *answer.Service
}

// NewChatHandler creates a new chat handler.
func NewChatHandler(logger *observability.Logger, service *answer.Service) *ChatHandler {
	return &ChatHandler{logger: logger, service: service}
}

// ChatRequestDTO is the API request for a chat turn.
type ChatRequestDTO struct {
	Message string               `json:"message"`
	History []sqlgen.HistoryItem `json:"history"`
}

// ErrorDTO is the API error body.
type ErrorDTO struct {
	Error   string `json:"error"`
	Kind    string `json:"kind,omitempty"`
	Details string `json:"details,omitempty"`
}

// Chat handles POST /api/v1/chat.
func (h *ChatHandler) Chat(w http.ResponseWriter, r *http.Request) {
	requestID := chimiddleware.GetReqID(r.Context())
	if requestID == "" {
		requestID = uuid.NewString()
	}
	ctx := observability.ContextWithRequestID(r.Context(), requestID)
	logger := h.logger.WithContext(ctx)

	var req ChatRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, ErrorDTO{Error: "Invalid request body"})
		return
	}

	if strings.TrimSpace(req.Message) == "" {
		writeError(w, http.StatusBadRequest, ErrorDTO{Error: "Message cannot be empty"})
		return
	}

	logger.Info().Str("question", req.Message).Msg("Received question")

	resp, err := h.service.Answer(ctx, req.Message, req.History)
	if err != nil {
		h.writeAnswerError(w, logger, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		logger.Error().Err(err).Msg("Failed to encode response")
	}
}

func (h *ChatHandler) writeAnswerError(w http.ResponseWriter, logger *observability.Logger, err error) {
	var queryErr *database.QueryError
	switch {
	case errors.As(err, &queryErr):
		logger.Error().Err(err).Str("kind", string(queryErr.Kind)).Msg("Query failed")
		writeError(w, http.StatusInternalServerError, ErrorDTO{
			Error:   "Query execution failed",
			Kind:    string(queryErr.Kind),
			Details: queryErr.Reason,
		})
	case errors.Is(err, sqlgen.ErrNoFallback):
		logger.Error().Err(err).Msg("SQL generation exhausted")
		writeError(w, http.StatusInternalServerError, ErrorDTO{
			Error:   "Failed to understand the question",
			Details: err.Error(),
		})
	default:
		logger.Error().Err(err).Msg("Chat request failed")
		writeError(w, http.StatusInternalServerError, ErrorDTO{
			Error:   "Internal server error",
			Details: err.Error(),
		})
	}
}

func writeError(w http.ResponseWriter, status int, body ErrorDTO) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
