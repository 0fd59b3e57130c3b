// Package live keeps one viewer's in-memory picture of a poll consistent
// with the shared, concurrently mutated documents. It holds the latest
// snapshot of the poll document and the participants and messages
// collections, and re-derives the aggregation result whenever poll or
// participant state changes.
package live

import (
	"sync"

	"chousei/internal/domain/chat"
	"chousei/internal/domain/participant"
	"chousei/internal/domain/poll"
	"chousei/internal/domain/tally"
	"chousei/internal/store"
)

// Snapshot is one consistent view of a poll. NotFound is terminal for
// the view: the poll id never resolved or the document was deleted.
// A non-nil stream error means that slice of state is no longer fresh.
type Snapshot struct {
	PollID       string
	Poll         *poll.Poll
	NotFound     bool
	Participants []participant.Participant
	Messages     []chat.Message
	Tally        tally.Result
	Errs         StreamErrors
}

// StreamErrors records per-stream subscription failures. Consumers must
// stop assuming freshness of the corresponding state.
type StreamErrors struct {
	Poll         error
	Participants error
	Messages     error
}

type eventKind int

const (
	evPoll eventKind = iota
	evParticipants
	evMessages
)

type event struct {
	kind eventKind
	doc  store.DocSnapshot
	docs []store.Document
	err  error
}

// Synchronizer owns three live subscriptions for a single poll. All
// snapshot application and tally recomputation happens on one goroutine:
// snapshots are always replaced whole and derived values recomputed,
// never merged incrementally, so duplicate or out-of-order deliveries
// (including echoes of this client's own writes) are harmless.
type Synchronizer struct {
	pollID    string
	events    chan event
	updates   chan Snapshot
	done      chan struct{}
	closeOnce sync.Once
	subs      []*store.Subscription
}

func New(st store.Store, pollID string) *Synchronizer {
	s := &Synchronizer{
		pollID:  pollID,
		events:  make(chan event, 16),
		updates: make(chan Snapshot, 1),
		done:    make(chan struct{}),
	}
	go s.loop()

	s.subs = []*store.Subscription{
		st.SubscribeDoc(poll.DocPath(pollID), func(snap store.DocSnapshot, err error) {
			s.send(event{kind: evPoll, doc: snap, err: err})
		}),
		st.SubscribeCollection(poll.ParticipantsPath(pollID), "created_at", func(docs []store.Document, err error) {
			s.send(event{kind: evParticipants, docs: docs, err: err})
		}),
		st.SubscribeCollection(poll.MessagesPath(pollID), "created_at", func(docs []store.Document, err error) {
			s.send(event{kind: evMessages, docs: docs, err: err})
		}),
	}
	return s
}

// Updates delivers consistent snapshots, latest-wins: a consumer that
// falls behind skips intermediate states but never sees an older one
// after a newer one.
func (s *Synchronizer) Updates() <-chan Snapshot {
	return s.updates
}

// Close releases all three subscriptions and stops the loop. Safe to
// call any number of times.
func (s *Synchronizer) Close() {
	s.closeOnce.Do(func() {
		for _, sub := range s.subs {
			sub.Unsubscribe()
		}
		close(s.done)
	})
}

func (s *Synchronizer) send(ev event) {
	select {
	case s.events <- ev:
	case <-s.done:
	}
}

func (s *Synchronizer) loop() {
	state := Snapshot{PollID: s.pollID}
	for {
		select {
		case <-s.done:
			return
		case ev := <-s.events:
			s.apply(&state, ev)
			if ev.kind != evMessages {
				state.Tally = tally.Best(candidates(state.Poll), state.Participants)
			}
			s.publish(state)
		}
	}
}

func (s *Synchronizer) apply(state *Snapshot, ev event) {
	switch ev.kind {
	case evPoll:
		// NotFound latches: a poll that never resolved or was deleted
		// stays gone for this view even if a document reappears at the
		// same path.
		if state.NotFound {
			return
		}
		if ev.err != nil {
			state.Errs.Poll = ev.err
			return
		}
		state.Errs.Poll = nil
		if !ev.doc.Exists {
			state.Poll = nil
			state.NotFound = true
			return
		}
		p, err := poll.FromDocument(ev.doc.Document)
		if err != nil {
			state.Errs.Poll = err
			return
		}
		state.Poll = &p
	case evParticipants:
		if ev.err != nil {
			state.Errs.Participants = ev.err
			return
		}
		state.Errs.Participants = nil
		state.Participants = participant.FromDocuments(ev.docs)
	case evMessages:
		if ev.err != nil {
			state.Errs.Messages = ev.err
			return
		}
		state.Errs.Messages = nil
		state.Messages = chat.FromDocuments(ev.docs)
	}
}

func (s *Synchronizer) publish(snap Snapshot) {
	for {
		select {
		case s.updates <- snap:
			return
		default:
			select {
			case <-s.updates:
			default:
			}
		}
	}
}

func candidates(p *poll.Poll) []poll.Candidate {
	if p == nil {
		return nil
	}
	return p.Candidates
}
