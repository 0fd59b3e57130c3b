package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"chousei/internal/domain/participant"
	"chousei/internal/platform/apperr"
	"chousei/internal/worker"
)

type submitResponseRequest struct {
	Name    string            `json:"name"`
	Comment string            `json:"comment"`
	Answers map[string]string `json:"answers"`
}

// @Summary     Submit an availability response
// @Tags        participants
// @Accept      json
// @Param       id       path      string                 true  "Poll ID"
// @Param       request  body      submitResponseRequest  true  "Response payload"
// @Success     201      {object}  map[string]string
// @Failure     400      {object}  map[string]string  "missing name or incomplete answers"
// @Failure     404      {object}  map[string]string  "poll not found"
// @Failure     502      {object}  map[string]string  "store declined the write"
// @Router      /api/v1/polls/{id}/participants [post]
func (h *Handler) handleSubmitResponse(w http.ResponseWriter, r *http.Request) {
	pollID := chi.URLParam(r, "id")

	var req submitResponseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errorResponse(w, apperr.BadRequest("invalid_input", "invalid body", err))
		return
	}

	answers := make(participant.Answers, len(req.Answers))
	for key, symbol := range req.Answers {
		candidateID, err := strconv.Atoi(key)
		if err != nil {
			errorResponse(w, apperr.BadRequest("invalid_input", "answer keys must be candidate ids", err))
			return
		}
		vote, err := participant.ParseVote(symbol)
		if err != nil {
			errorResponse(w, apperr.BadRequest("invalid_vote", "vote must be o, t or x", err))
			return
		}
		answers[candidateID] = vote
	}

	ident := h.identity(w, r)
	id, err := h.partSvc.Submit(r.Context(), ident, pollID, req.Name, req.Comment, answers)
	if err != nil {
		errorResponse(w, err)
		return
	}

	h.emit(worker.Event{Type: worker.EventResponseSubmitted, PollID: pollID})
	writeJSON(w, http.StatusCreated, map[string]string{"id": id})
}
