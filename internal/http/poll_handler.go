package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"chousei/internal/domain/chat"
	"chousei/internal/domain/participant"
	"chousei/internal/domain/poll"
	"chousei/internal/domain/tally"
	"chousei/internal/identity"
	"chousei/internal/platform/apperr"
	"chousei/internal/worker"
)

type createPollRequest struct {
	Title      string   `json:"title"`
	Detail     string   `json:"detail"`
	Candidates []string `json:"candidates"`
}

type addCandidateRequest struct {
	Label string `json:"label"`
}

type setFeeRequest struct {
	Fee *int `json:"fee"`
}

type setPaidRequest struct {
	Paid bool `json:"paid"`
}

type pollSnapshotResponse struct {
	Poll         poll.Poll                 `json:"poll"`
	Participants []participant.Participant `json:"participants"`
	Messages     []chat.Message            `json:"messages"`
	Tally        tally.Result              `json:"tally"`
	ClientID     string                    `json:"client_id"`
}

// @Summary     Create a poll
// @Tags        polls
// @Accept      json
// @Param       request  body      createPollRequest  true  "Poll payload"
// @Success     201      {object}  map[string]string
// @Failure     400      {object}  map[string]string  "missing title or candidates"
// @Router      /api/v1/polls [post]
func (h *Handler) handleCreatePoll(w http.ResponseWriter, r *http.Request) {
	var req createPollRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errorResponse(w, apperr.BadRequest("invalid_input", "invalid body", err))
		return
	}

	id, err := h.pollSvc.Create(r.Context(), req.Title, req.Detail, req.Candidates)
	if err != nil {
		errorResponse(w, err)
		return
	}

	h.emit(worker.Event{Type: worker.EventPollCreated, PollID: id})
	writeJSON(w, http.StatusCreated, map[string]string{"id": id})
}

// @Summary     Poll snapshot with aggregation
// @Tags        polls
// @Produce     json
// @Param       id   path      string  true  "Poll ID"
// @Success     200  {object}  pollSnapshotResponse
// @Failure     404  {object}  map[string]string  "poll not found"
// @Router      /api/v1/polls/{id} [get]
func (h *Handler) handleGetPoll(w http.ResponseWriter, r *http.Request) {
	pollID := chi.URLParam(r, "id")

	p, err := h.pollSvc.Get(r.Context(), pollID)
	if err != nil {
		errorResponse(w, err)
		return
	}

	partDocs, err := h.store.Query(r.Context(), poll.ParticipantsPath(pollID), "created_at")
	if err != nil {
		errorResponse(w, err)
		return
	}
	msgDocs, err := h.store.Query(r.Context(), poll.MessagesPath(pollID), "created_at")
	if err != nil {
		errorResponse(w, err)
		return
	}

	participants := participant.FromDocuments(partDocs)
	messages := chat.FromDocuments(msgDocs)

	ident := h.identity(w, r)
	clientID, _ := ident.ClientID()
	_ = ident.RecordVisit(pollID, p.Title)

	writeJSON(w, http.StatusOK, pollSnapshotResponse{
		Poll:         p,
		Participants: participants,
		Messages:     messages,
		Tally:        tally.Best(p.Candidates, participants),
		ClientID:     clientID,
	})
}

func (h *Handler) handleAddCandidate(w http.ResponseWriter, r *http.Request) {
	pollID := chi.URLParam(r, "id")

	var req addCandidateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errorResponse(w, apperr.BadRequest("invalid_input", "invalid body", err))
		return
	}

	c, err := h.pollSvc.AddCandidate(r.Context(), pollID, req.Label)
	if err != nil {
		errorResponse(w, err)
		return
	}

	h.emit(worker.Event{Type: worker.EventCandidateAdded, PollID: pollID})
	writeJSON(w, http.StatusCreated, map[string]any{"candidate": c})
}

// Removal is destructive: votes for the candidate vanish from view. The
// workflow requires explicit confirmation, carried as ?confirm=true.
func (h *Handler) handleRemoveCandidate(w http.ResponseWriter, r *http.Request) {
	pollID := chi.URLParam(r, "id")

	candidateID, err := strconv.Atoi(chi.URLParam(r, "cid"))
	if err != nil {
		errorResponse(w, apperr.BadRequest("invalid_input", "invalid candidate id", err))
		return
	}
	if poll.RemoveRequiresConfirmation && r.URL.Query().Get("confirm") != "true" {
		errorResponse(w, apperr.BadRequest("confirmation_required", "candidate removal must be confirmed", nil))
		return
	}

	if err := h.pollSvc.RemoveCandidate(r.Context(), pollID, candidateID); err != nil {
		errorResponse(w, err)
		return
	}

	h.emit(worker.Event{Type: worker.EventCandidateRemoved, PollID: pollID})
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleSetFee(w http.ResponseWriter, r *http.Request) {
	pollID := chi.URLParam(r, "id")

	var req setFeeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errorResponse(w, apperr.BadRequest("invalid_input", "invalid body", err))
		return
	}

	if err := h.pollSvc.SetFee(r.Context(), pollID, req.Fee); err != nil {
		errorResponse(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleSetPaid(w http.ResponseWriter, r *http.Request) {
	pollID := chi.URLParam(r, "id")
	participantID := chi.URLParam(r, "pid")

	var req setPaidRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errorResponse(w, apperr.BadRequest("invalid_input", "invalid body", err))
		return
	}

	if err := h.pollSvc.SetPaid(r.Context(), pollID, participantID, req.Paid); err != nil {
		errorResponse(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleRecentPolls(w http.ResponseWriter, r *http.Request) {
	ident := h.identity(w, r)
	visits := ident.RecentPolls()
	if visits == nil {
		visits = []identity.Visit{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"history": visits})
}
