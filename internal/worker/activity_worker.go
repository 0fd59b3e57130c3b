package worker

import (
	"context"
	"log/slog"

	"chousei/internal/metrics"
)

type EventType string

const (
	EventPollCreated       EventType = "poll_created"
	EventResponseSubmitted EventType = "response_submitted"
	EventCandidateAdded    EventType = "candidate_added"
	EventCandidateRemoved  EventType = "candidate_removed"
	EventMessagePosted     EventType = "message_posted"
	EventMessageDeleted    EventType = "message_deleted"
)

// Event is a fire-and-forget notification of a completed workflow
// mutation. Producers drop events rather than block on a full channel.
type Event struct {
	Type   EventType
	PollID string
}

// ActivityWorker drains workflow events off a channel for logging and
// metrics, keeping that work off the request path.
type ActivityWorker struct {
	Ch  <-chan Event
	Log *slog.Logger
}

func NewActivityWorker(ch <-chan Event, log *slog.Logger) *ActivityWorker {
	if log == nil {
		log = slog.Default()
	}
	return &ActivityWorker{Ch: ch, Log: log}
}

func (w *ActivityWorker) Run(ctx context.Context) {
	w.Log.Info("activity worker started")
	for {
		select {
		case <-ctx.Done():
			w.Log.Info("activity worker stopped")
			return
		case ev := <-w.Ch:
			metrics.IncEvent(string(ev.Type))
			w.Log.Info("activity",
				"type", string(ev.Type),
				"poll_id", ev.PollID,
			)
		}
	}
}
