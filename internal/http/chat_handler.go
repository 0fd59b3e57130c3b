package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"chousei/internal/platform/apperr"
	"chousei/internal/worker"
)

type sendMessageRequest struct {
	Name string `json:"name"`
	Text string `json:"text"`
}

func (h *Handler) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	pollID := chi.URLParam(r, "id")

	var req sendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errorResponse(w, apperr.BadRequest("invalid_input", "invalid body", err))
		return
	}

	ident := h.identity(w, r)
	id, err := h.chatSvc.Send(r.Context(), ident, pollID, req.Name, req.Text)
	if err != nil {
		errorResponse(w, err)
		return
	}

	h.emit(worker.Event{Type: worker.EventMessagePosted, PollID: pollID})
	writeJSON(w, http.StatusCreated, map[string]string{"id": id})
}

func (h *Handler) handleDeleteMessage(w http.ResponseWriter, r *http.Request) {
	pollID := chi.URLParam(r, "id")
	messageID := chi.URLParam(r, "mid")

	ident := h.identity(w, r)
	if err := h.chatSvc.Delete(r.Context(), ident, pollID, messageID); err != nil {
		errorResponse(w, err)
		return
	}

	h.emit(worker.Event{Type: worker.EventMessageDeleted, PollID: pollID})
	w.WriteHeader(http.StatusNoContent)
}
