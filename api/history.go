package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/hostline/concierge/internal/log"
	"github.com/hostline/concierge/internal/memory"
)

// defaultHistoryLimit applies when no limit query parameter is given.
const defaultHistoryLimit = 20

// HistoryStore reads and clears chat history. Implemented by
// *memory.Store.
type HistoryStore interface {
	Window(ctx context.Context, chatID string, maxTurns int) ([]memory.Turn, error)
	Clear(ctx context.Context, chatID string) error
	Summary(ctx context.Context, chatID string) (memory.Summary, error)
}

// HistoryTurn is one turn in the history response.
type HistoryTurn struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Sequence  int64     `json:"sequence"`
	CreatedAt time.Time `json:"createdAt"`
}

// HistoryResponse is the GET history body.
type HistoryResponse struct {
	ChatID string        `json:"chatId"`
	Turns  []HistoryTurn `json:"turns"`
	Total  int64         `json:"total"`
}

// HistoryHandler serves chat history endpoints.
type HistoryHandler struct {
	store  HistoryStore
	logger log.Logger
}

// NewHistoryHandler creates a history handler.
func NewHistoryHandler(store HistoryStore, logger log.Logger) *HistoryHandler {
	return &HistoryHandler{store: store, logger: logger}
}

// RegisterRoutes registers history routes on the given mux.
func (h *HistoryHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/chats/{chatID}/history", h.handleGet)
	mux.HandleFunc("DELETE /api/chats/{chatID}/history", h.handleClear)
}

func (h *HistoryHandler) handleGet(w http.ResponseWriter, r *http.Request) {
	chatID := r.PathValue("chatID")

	limit := defaultHistoryLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, h.logger, http.StatusBadRequest, "invalid_request", "limit must be a positive integer")
			return
		}
		limit = n
	}

	turns, err := h.store.Window(r.Context(), chatID, limit)
	if err != nil {
		h.handleStoreError(w, chatID, err)
		return
	}
	sum, err := h.store.Summary(r.Context(), chatID)
	if err != nil {
		h.handleStoreError(w, chatID, err)
		return
	}

	resp := HistoryResponse{ChatID: chatID, Turns: make([]HistoryTurn, 0, len(turns)), Total: sum.Turns}
	for _, t := range turns {
		resp.Turns = append(resp.Turns, HistoryTurn{
			Role:      string(t.Role),
			Content:   t.Content,
			Sequence:  t.Sequence,
			CreatedAt: t.CreatedAt,
		})
	}
	writeJSON(w, h.logger, http.StatusOK, resp)
}

func (h *HistoryHandler) handleClear(w http.ResponseWriter, r *http.Request) {
	chatID := r.PathValue("chatID")
	if err := h.store.Clear(r.Context(), chatID); err != nil {
		h.handleStoreError(w, chatID, err)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, map[string]string{
		"chatId": chatID,
		"status": "cleared",
	})
}

func (h *HistoryHandler) handleStoreError(w http.ResponseWriter, chatID string, err error) {
	if errors.Is(err, memory.ErrInvalidInput) {
		writeError(w, h.logger, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	h.logger.Error("history operation failed", "chat_id", chatID, "error", err)
	writeError(w, h.logger, http.StatusInternalServerError, "internal_error", "history unavailable")
}
