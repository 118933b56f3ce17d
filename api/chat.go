package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/hostline/concierge/internal/agent"
	"github.com/hostline/concierge/internal/log"
)

// Responder runs one chat cycle. Implemented by *agent.Agent.
type Responder interface {
	Respond(ctx context.Context, chatID, message string) (*agent.Reply, error)
}

// ChatRequest is the POST /api/chat body.
type ChatRequest struct {
	ChatID  string `json:"chatId"`
	Message string `json:"message"`
}

// ChatResponse mirrors the reply delivered to the messaging channel.
// Success is false when the text is the fallback rather than a
// generated answer.
type ChatResponse struct {
	Response  string   `json:"response"`
	ChatID    string   `json:"chatId"`
	ModelUsed string   `json:"modelUsed"`
	ToolsUsed []string `json:"toolsUsed"`
	Success   bool     `json:"success"`
}

// ChatHandler serves the chat endpoint.
type ChatHandler struct {
	responder Responder
	logger    log.Logger
}

// NewChatHandler creates a chat handler.
func NewChatHandler(responder Responder, logger log.Logger) *ChatHandler {
	return &ChatHandler{responder: responder, logger: logger}
}

// RegisterRoutes registers chat routes on the given mux.
func (h *ChatHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/chat", h.handleChat)
}

func (h *ChatHandler) handleChat(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, h.logger, http.StatusBadRequest, "invalid_request", "request body must be JSON")
		return
	}
	if req.ChatID == "" || req.Message == "" {
		writeError(w, h.logger, http.StatusBadRequest, "invalid_request", "chatId and message are required")
		return
	}

	reply, err := h.responder.Respond(r.Context(), req.ChatID, req.Message)
	if err != nil {
		if errors.Is(err, agent.ErrInvalidInput) {
			writeError(w, h.logger, http.StatusBadRequest, "invalid_request", err.Error())
			return
		}
		h.logger.Error("chat cycle failed", "chat_id", req.ChatID, "error", err)
		writeError(w, h.logger, http.StatusInternalServerError, "internal_error", "could not process message")
		return
	}

	toolsUsed := reply.ToolsUsed
	if toolsUsed == nil {
		toolsUsed = []string{}
	}
	writeJSON(w, h.logger, http.StatusOK, ChatResponse{
		Response:  reply.Text,
		ChatID:    reply.ChatID,
		ModelUsed: reply.ModelUsed,
		ToolsUsed: toolsUsed,
		Success:   reply.Success,
	})
}
