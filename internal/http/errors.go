package api

import (
	"errors"
	"net/http"

	"chousei/internal/domain/chat"
	"chousei/internal/domain/participant"
	"chousei/internal/domain/poll"
	"chousei/internal/platform/apperr"
	"chousei/internal/store"
)

func errorResponse(w http.ResponseWriter, err error) {
	appErr := mapError(err)
	writeJSON(w, appErr.StatusCode(), map[string]string{
		"error":   appErr.Code,
		"message": appErr.Message,
	})
}

func mapError(err error) *apperr.AppError {
	if err == nil {
		return apperr.Internal("internal_error", "internal server error", nil)
	}

	var appErr *apperr.AppError
	if errors.As(err, &appErr) {
		return appErr
	}

	switch {
	case errors.Is(err, poll.ErrTitleRequired):
		return apperr.BadRequest("title_required", "title is required", err)
	case errors.Is(err, poll.ErrNoCandidates):
		return apperr.BadRequest("candidates_required", "at least one candidate is required", err)
	case errors.Is(err, poll.ErrLabelRequired):
		return apperr.BadRequest("label_required", "candidate label is required", err)
	case errors.Is(err, poll.ErrNegativeFee):
		return apperr.BadRequest("invalid_fee", "fee must not be negative", err)
	case errors.Is(err, participant.ErrNameRequired):
		return apperr.BadRequest("name_required", "name is required", err)
	case errors.Is(err, participant.ErrIncompleteAnswers):
		return apperr.BadRequest("incomplete_answers", "every candidate needs an answer", err)
	case errors.Is(err, participant.ErrInvalidVote):
		return apperr.BadRequest("invalid_vote", "vote must be o, t or x", err)
	case errors.Is(err, chat.ErrTextRequired):
		return apperr.BadRequest("text_required", "message text is required", err)
	case errors.Is(err, chat.ErrNameRequired):
		return apperr.BadRequest("name_required", "sender name is required", err)
	case errors.Is(err, chat.ErrNotSender):
		return apperr.Forbidden("not_sender", "only the sender may delete a message", err)
	case errors.Is(err, poll.ErrNotFound):
		return apperr.NotFound("poll_not_found", "poll not found", err)
	case errors.Is(err, poll.ErrCandidateNotFound):
		return apperr.NotFound("candidate_not_found", "candidate not found", err)
	case errors.Is(err, chat.ErrNotFound):
		return apperr.NotFound("message_not_found", "message not found", err)
	case errors.Is(err, store.ErrNotFound):
		return apperr.NotFound("not_found", "resource not found", err)
	case errors.Is(err, store.ErrRejected):
		return apperr.WriteRejected("write_rejected", "the store declined the write; retry with the same input", err)
	default:
		return apperr.Internal("internal_error", http.StatusText(http.StatusInternalServerError), err)
	}
}
