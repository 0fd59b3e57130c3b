// Package memory is an in-process implementation of the store contract.
// It backs the dev server and every test that needs live snapshot
// delivery without a database.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"chousei/internal/store"
)

type Store struct {
	mu      sync.Mutex
	cols    map[string]map[string]map[string]any
	docSubs map[uint64]*docSub
	colSubs map[uint64]*colSub
	nextSub uint64
	lastTS  time.Time
}

func New() *Store {
	return &Store{
		cols:    make(map[string]map[string]map[string]any),
		docSubs: make(map[uint64]*docSub),
		colSubs: make(map[uint64]*colSub),
	}
}

func (s *Store) Create(ctx context.Context, collection string, fields map[string]any) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	s.mu.Lock()
	id := uuid.NewString()
	doc := cloneFields(fields)
	now := s.tick()
	for k, v := range doc {
		if store.IsServerTimestamp(v) {
			doc[k] = now
		}
	}
	if s.cols[collection] == nil {
		s.cols[collection] = make(map[string]map[string]any)
	}
	s.cols[collection][id] = doc
	s.notifyLocked(collection, id)
	s.mu.Unlock()

	return id, nil
}

func (s *Store) Get(ctx context.Context, path string) (store.DocSnapshot, error) {
	if err := ctx.Err(); err != nil {
		return store.DocSnapshot{}, err
	}
	collection, id, ok := splitPath(path)
	if !ok {
		return store.DocSnapshot{}, store.ErrNotFound
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.docSnapshotLocked(collection, id), nil
}

func (s *Store) Update(ctx context.Context, path string, fields map[string]any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	collection, id, ok := splitPath(path)
	if !ok {
		return store.ErrNotFound
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.cols[collection][id]
	if !ok {
		return store.ErrNotFound
	}
	now := s.tick()
	for k, v := range cloneFields(fields) {
		if store.IsServerTimestamp(v) {
			v = now
		}
		doc[k] = v
	}
	s.notifyLocked(collection, id)
	return nil
}

func (s *Store) Delete(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	collection, id, ok := splitPath(path)
	if !ok {
		return store.ErrNotFound
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.cols[collection][id]; !ok {
		return store.ErrNotFound
	}
	delete(s.cols[collection], id)
	s.notifyLocked(collection, id)
	return nil
}

func (s *Store) Query(ctx context.Context, collection, orderBy string) ([]store.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queryLocked(collection, orderBy), nil
}

func (s *Store) SubscribeDoc(path string, h store.DocHandler) *store.Subscription {
	sub := &docSub{
		path:    path,
		handler: h,
		ch:      make(chan store.DocSnapshot, 1),
		done:    make(chan struct{}),
	}

	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.docSubs[id] = sub
	// Initial snapshot is pushed under the lock so a racing write cannot
	// slip in between and be overwritten by the stale initial state.
	if collection, docID, ok := splitPath(path); ok {
		sub.push(s.docSnapshotLocked(collection, docID))
	} else {
		sub.push(store.DocSnapshot{})
	}
	s.mu.Unlock()

	go sub.run()

	return store.NewSubscription(func() {
		s.mu.Lock()
		delete(s.docSubs, id)
		s.mu.Unlock()
		close(sub.done)
	})
}

func (s *Store) SubscribeCollection(collection, orderBy string, h store.ListHandler) *store.Subscription {
	sub := &colSub{
		collection: collection,
		orderBy:    orderBy,
		handler:    h,
		ch:         make(chan []store.Document, 1),
		done:       make(chan struct{}),
	}

	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.colSubs[id] = sub
	sub.push(s.queryLocked(collection, orderBy))
	s.mu.Unlock()

	go sub.run()

	return store.NewSubscription(func() {
		s.mu.Lock()
		delete(s.colSubs, id)
		s.mu.Unlock()
		close(sub.done)
	})
}

// tick returns a server timestamp that is strictly greater than every
// previously issued one, so ascending-order queries are stable even for
// writes landing within the clock's resolution.
func (s *Store) tick() time.Time {
	now := time.Now().UTC()
	if !now.After(s.lastTS) {
		now = s.lastTS.Add(time.Microsecond)
	}
	s.lastTS = now
	return now
}

func (s *Store) docSnapshotLocked(collection, id string) store.DocSnapshot {
	doc, ok := s.cols[collection][id]
	if !ok {
		return store.DocSnapshot{Document: store.Document{ID: id}}
	}
	return store.DocSnapshot{
		Document: store.Document{ID: id, Fields: cloneFields(doc)},
		Exists:   true,
	}
}

func (s *Store) queryLocked(collection, orderBy string) []store.Document {
	docs := make([]store.Document, 0, len(s.cols[collection]))
	for id, fields := range s.cols[collection] {
		docs = append(docs, store.Document{ID: id, Fields: cloneFields(fields)})
	}
	sort.Slice(docs, func(i, j int) bool {
		return fieldLess(docs[i].Fields[orderBy], docs[j].Fields[orderBy])
	})
	return docs
}

// notifyLocked fans the new state out to every matching subscription.
// Snapshots are built under the lock, delivery happens on each
// subscription's own goroutine so no handler can block a writer.
func (s *Store) notifyLocked(collection, id string) {
	path := collection + "/" + id
	for _, sub := range s.docSubs {
		if sub.path == path {
			sub.push(s.docSnapshotLocked(collection, id))
		}
	}
	for _, sub := range s.colSubs {
		if sub.collection == collection {
			sub.push(s.queryLocked(collection, sub.orderBy))
		}
	}
}

type docSub struct {
	path    string
	handler store.DocHandler
	ch      chan store.DocSnapshot
	done    chan struct{}
}

// push replaces any undelivered snapshot with the newer one. A slow
// consumer sees fewer snapshots, never stale ones.
func (d *docSub) push(snap store.DocSnapshot) {
	for {
		select {
		case d.ch <- snap:
			return
		default:
			select {
			case <-d.ch:
			default:
			}
		}
	}
}

func (d *docSub) run() {
	for {
		select {
		case <-d.done:
			return
		case snap := <-d.ch:
			d.handler(snap, nil)
		}
	}
}

type colSub struct {
	collection string
	orderBy    string
	handler    store.ListHandler
	ch         chan []store.Document
	done       chan struct{}
}

func (c *colSub) push(docs []store.Document) {
	for {
		select {
		case c.ch <- docs:
			return
		default:
			select {
			case <-c.ch:
			default:
			}
		}
	}
}

func (c *colSub) run() {
	for {
		select {
		case <-c.done:
			return
		case docs := <-c.ch:
			c.handler(docs, nil)
		}
	}
}

func splitPath(path string) (collection, id string, ok bool) {
	i := strings.LastIndex(path, "/")
	if i <= 0 || i == len(path)-1 {
		return "", "", false
	}
	return path[:i], path[i+1:], true
}

func fieldLess(a, b any) bool {
	ta, aok := store.FieldTime(a)
	tb, bok := store.FieldTime(b)
	if aok && bok {
		return ta.Before(tb)
	}
	sa, aok := a.(string)
	sb, bok := b.(string)
	if aok && bok {
		return sa < sb
	}
	fa, aok := toFloat(a)
	fb, bok := toFloat(b)
	if aok && bok {
		return fa < fb
	}
	// Missing field sorts first, matching ascending-nulls-first stores.
	return a == nil && b != nil
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}

func cloneFields(fields map[string]any) map[string]any {
	if fields == nil {
		return map[string]any{}
	}
	out := make(map[string]any, len(fields))
	for k, v := range fields {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return cloneFields(t)
	case map[string]string:
		m := make(map[string]string, len(t))
		for k, s := range t {
			m[k] = s
		}
		return m
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = cloneValue(e)
		}
		return out
	default:
		return v
	}
}
