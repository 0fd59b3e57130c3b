// Package store defines the real-time document store the poll engine
// reads and writes through. Any backend with at-least-once snapshot
// delivery and last-write-wins field merging satisfies it; documents are
// schemaless field maps addressed by "collection/id" paths.
package store

import (
	"context"
	"errors"
	"sync"
	"time"
)

var (
	// ErrNotFound is returned when a path does not resolve to a document.
	ErrNotFound = errors.New("store: document not found")
	// ErrRejected is returned when the backend declined a write
	// (permission rules, quota). The operation may be retried as-is.
	ErrRejected = errors.New("store: write rejected")
)

// ServerTimestamp is a sentinel field value. The store replaces it with
// its own receipt time, so racing clients are ordered by when the store
// accepted their write, not by their local clocks.
var ServerTimestamp = serverTimestamp{}

type serverTimestamp struct{}

// IsServerTimestamp reports whether a field value is the sentinel a
// backend must replace with its receipt time.
func IsServerTimestamp(v any) bool {
	_, ok := v.(serverTimestamp)
	return ok
}

// Document is one stored document: its id and the full field map as of
// the snapshot it was read from.
type Document struct {
	ID     string
	Fields map[string]any
}

// DocSnapshot is a point-in-time view of a single document path.
// Exists is false when the document has been deleted or never created.
type DocSnapshot struct {
	Document
	Exists bool
}

// DocHandler receives full replacement snapshots of one document. A
// non-nil err means the stream itself failed; no further snapshots will
// be delivered on this subscription.
type DocHandler func(snap DocSnapshot, err error)

// ListHandler receives full replacement snapshots of one collection,
// ordered ascending by the subscribed field. Error semantics match
// DocHandler.
type ListHandler func(docs []Document, err error)

type Store interface {
	// Create adds a document to collection with a generated id.
	// ServerTimestamp field values are resolved to the store's receipt time.
	Create(ctx context.Context, collection string, fields map[string]any) (string, error)

	// Get reads one document. A missing document is not an error: the
	// snapshot comes back with Exists == false.
	Get(ctx context.Context, path string) (DocSnapshot, error)

	// Update replaces the given fields on an existing document. Whole
	// fields are overwritten; whoever writes last to a field wins.
	Update(ctx context.Context, path string, fields map[string]any) error

	Delete(ctx context.Context, path string) error

	// Query reads a collection ordered ascending by one field.
	Query(ctx context.Context, collection, orderBy string) ([]Document, error)

	// SubscribeDoc delivers the current snapshot of path immediately and
	// a replacement snapshot on every subsequent change, until the
	// returned subscription is released.
	SubscribeDoc(path string, h DocHandler) *Subscription

	// SubscribeCollection is the collection counterpart of SubscribeDoc,
	// ordered ascending by orderBy.
	SubscribeCollection(collection, orderBy string, h ListHandler) *Subscription
}

// Subscription is a handle on one live stream. Unsubscribe is safe to
// call any number of times; only the first call tears anything down.
type Subscription struct {
	once sync.Once
	stop func()
}

func NewSubscription(stop func()) *Subscription {
	return &Subscription{stop: stop}
}

func (s *Subscription) Unsubscribe() {
	if s == nil {
		return
	}
	s.once.Do(func() {
		if s.stop != nil {
			s.stop()
		}
	})
}

// FieldTime reads a timestamp field that backends represent either
// natively or as an RFC 3339 string (jsonb round-trips do the latter).
func FieldTime(v any) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, true
	case string:
		parsed, err := time.Parse(time.RFC3339Nano, t)
		if err != nil {
			return time.Time{}, false
		}
		return parsed, true
	default:
		return time.Time{}, false
	}
}
