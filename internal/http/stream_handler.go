package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"chousei/internal/domain/chat"
	"chousei/internal/domain/participant"
	"chousei/internal/domain/poll"
	"chousei/internal/domain/tally"
	"chousei/internal/live"
	"chousei/internal/metrics"
	"chousei/internal/platform/apperr"
)

type snapshotDTO struct {
	PollID       string                    `json:"poll_id"`
	Poll         *poll.Poll                `json:"poll,omitempty"`
	NotFound     bool                      `json:"not_found"`
	Participants []participant.Participant `json:"participants"`
	Messages     []chat.Message            `json:"messages"`
	Tally        tally.Result              `json:"tally"`
	Errors       map[string]string         `json:"errors,omitempty"`
	ClientID     string                    `json:"client_id"`
}

// handleEvents streams synchronizer snapshots over SSE. One synchronizer
// per connected viewer; closing the connection releases all three store
// subscriptions.
func (h *Handler) handleEvents(w http.ResponseWriter, r *http.Request) {
	pollID := chi.URLParam(r, "id")

	flusher, ok := w.(http.Flusher)
	if !ok {
		errorResponse(w, apperr.Internal("streaming_unsupported", "response writer cannot stream", nil))
		return
	}

	ident := h.identity(w, r)
	clientID, _ := ident.ClientID()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	sync := live.New(h.store, pollID)
	defer sync.Close()

	metrics.SubscriptionOpened("sse")
	defer metrics.SubscriptionClosed("sse")

	for {
		select {
		case <-r.Context().Done():
			return
		case snap := <-sync.Updates():
			data, err := json.Marshal(toSnapshotDTO(snap, clientID))
			if err != nil {
				continue
			}
			if _, err := fmt.Fprintf(w, "event: snapshot\ndata: %s\n\n", data); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

func toSnapshotDTO(snap live.Snapshot, clientID string) snapshotDTO {
	dto := snapshotDTO{
		PollID:       snap.PollID,
		Poll:         snap.Poll,
		NotFound:     snap.NotFound,
		Participants: snap.Participants,
		Messages:     snap.Messages,
		Tally:        snap.Tally,
		ClientID:     clientID,
	}
	if dto.Participants == nil {
		dto.Participants = []participant.Participant{}
	}
	if dto.Messages == nil {
		dto.Messages = []chat.Message{}
	}

	errs := map[string]string{}
	if snap.Errs.Poll != nil {
		errs["poll"] = snap.Errs.Poll.Error()
	}
	if snap.Errs.Participants != nil {
		errs["participants"] = snap.Errs.Participants.Error()
	}
	if snap.Errs.Messages != nil {
		errs["messages"] = snap.Errs.Messages.Error()
	}
	if len(errs) > 0 {
		dto.Errors = errs
	}
	return dto
}
