// Package postgres implements the store contract on a single jsonb
// documents table. Field updates merge with ||, which gives exactly the
// whole-field last-write-wins semantics the engine is designed around.
// Change delivery rides LISTEN/NOTIFY: a trigger announces the touched
// collection and a dedicated connection re-reads and fans out fresh
// snapshots.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"chousei/internal/retry"
	"chousei/internal/store"
)

const notifyChannel = "chousei_documents"

type Store struct {
	db  *sql.DB
	dsn string
	log *slog.Logger

	mu      sync.Mutex
	docSubs map[uint64]*docSub
	colSubs map[uint64]*colSub
	nextSub uint64

	ctx    context.Context
	tasks  chan func(context.Context)
	cancel context.CancelFunc
}

// New ensures the schema and starts the change listener. The listener
// uses its own raw pgx connection; queries go through the shared pool.
func New(ctx context.Context, db *sql.DB, dsn string, log *slog.Logger) (*Store, error) {
	if log == nil {
		log = slog.Default()
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	runCtx, cancel := context.WithCancel(context.Background())
	s := &Store{
		db:      db,
		dsn:     dsn,
		log:     log,
		docSubs: make(map[uint64]*docSub),
		colSubs: make(map[uint64]*colSub),
		ctx:     runCtx,
		tasks:   make(chan func(context.Context), 256),
		cancel:  cancel,
	}
	go s.broadcaster(runCtx)
	go s.listen(runCtx)
	return s, nil
}

// Close stops the change listener and broadcaster. Open subscriptions
// stop receiving snapshots; releasing them stays the caller's job.
func (s *Store) Close() {
	s.cancel()
}

func (s *Store) Create(ctx context.Context, collection string, fields map[string]any) (string, error) {
	body, tsKeys, err := encodeFields(fields)
	if err != nil {
		return "", fmt.Errorf("encode fields: %w", err)
	}

	id := uuid.NewString()
	_, err = s.db.ExecContext(ctx, `
        INSERT INTO documents (collection, id, fields)
        VALUES ($1, $2, $3::jsonb || COALESCE(
            (SELECT jsonb_object_agg(k, to_jsonb(now())) FROM unnest($4::text[]) AS k),
            '{}'::jsonb))
    `, collection, id, body, tsKeys)
	if err != nil {
		return "", writeError(err)
	}

	s.announce(ctx, collection)
	return id, nil
}

func (s *Store) Get(ctx context.Context, path string) (store.DocSnapshot, error) {
	collection, id, ok := splitPath(path)
	if !ok {
		return store.DocSnapshot{}, store.ErrNotFound
	}

	var body []byte
	err := s.db.QueryRowContext(ctx, `
        SELECT fields FROM documents WHERE collection = $1 AND id = $2
    `, collection, id).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return store.DocSnapshot{Document: store.Document{ID: id}}, nil
	}
	if err != nil {
		return store.DocSnapshot{}, err
	}

	fields, err := decodeFields(body)
	if err != nil {
		return store.DocSnapshot{}, err
	}
	return store.DocSnapshot{
		Document: store.Document{ID: id, Fields: fields},
		Exists:   true,
	}, nil
}

func (s *Store) Update(ctx context.Context, path string, fields map[string]any) error {
	collection, id, ok := splitPath(path)
	if !ok {
		return store.ErrNotFound
	}
	body, tsKeys, err := encodeFields(fields)
	if err != nil {
		return fmt.Errorf("encode fields: %w", err)
	}

	res, err := s.db.ExecContext(ctx, `
        UPDATE documents
        SET fields = fields || $3::jsonb || COALESCE(
            (SELECT jsonb_object_agg(k, to_jsonb(now())) FROM unnest($4::text[]) AS k),
            '{}'::jsonb)
        WHERE collection = $1 AND id = $2
    `, collection, id, body, tsKeys)
	if err != nil {
		return writeError(err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return store.ErrNotFound
	}

	s.announce(ctx, collection)
	return nil
}

func (s *Store) Delete(ctx context.Context, path string) error {
	collection, id, ok := splitPath(path)
	if !ok {
		return store.ErrNotFound
	}

	res, err := s.db.ExecContext(ctx, `
        DELETE FROM documents WHERE collection = $1 AND id = $2
    `, collection, id)
	if err != nil {
		return writeError(err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return store.ErrNotFound
	}

	s.announce(ctx, collection)
	return nil
}

func (s *Store) Query(ctx context.Context, collection, orderBy string) ([]store.Document, error) {
	rows, err := s.db.QueryContext(ctx, `
        SELECT id, fields FROM documents
        WHERE collection = $1
        ORDER BY fields->>$2 ASC NULLS FIRST, created_at ASC
    `, collection, orderBy)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []store.Document
	for rows.Next() {
		var id string
		var body []byte
		if err := rows.Scan(&id, &body); err != nil {
			return nil, err
		}
		fields, err := decodeFields(body)
		if err != nil {
			return nil, err
		}
		docs = append(docs, store.Document{ID: id, Fields: fields})
	}
	return docs, rows.Err()
}

func (s *Store) SubscribeDoc(path string, h store.DocHandler) *store.Subscription {
	collection, _, _ := splitPath(path)
	sub := &docSub{
		path:       path,
		collection: collection,
		handler:    h,
		ch:         make(chan docItem, 1),
		done:       make(chan struct{}),
	}

	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.docSubs[id] = sub
	s.mu.Unlock()

	go sub.run()
	// The initial snapshot goes through the broadcaster like every other
	// push. Reading it here would let a racing write's fresh snapshot be
	// followed by this older one.
	s.enqueue(s.ctx, func(ctx context.Context) {
		snap, err := s.Get(ctx, path)
		sub.push(docItem{snap: snap, err: err})
	})

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
		ch:         make(chan listItem, 1),
		done:       make(chan struct{}),
	}

	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.colSubs[id] = sub
	s.mu.Unlock()

	go sub.run()
	s.enqueue(s.ctx, func(ctx context.Context) {
		docs, err := s.Query(ctx, collection, orderBy)
		sub.push(listItem{docs: docs, err: err})
	})

	return store.NewSubscription(func() {
		s.mu.Lock()
		delete(s.colSubs, id)
		s.mu.Unlock()
		close(sub.done)
	})
}

// announce queues a local refresh so this client's own write echoes back
// through its subscriptions even when the notify connection is down.
// The trigger-driven notification delivers the same state again;
// consumers are duplicate-safe by contract.
func (s *Store) announce(ctx context.Context, collection string) {
	s.enqueue(ctx, func(taskCtx context.Context) {
		s.refresh(taskCtx, collection)
	})
}

func (s *Store) enqueue(ctx context.Context, task func(context.Context)) {
	select {
	case s.tasks <- task:
	case <-ctx.Done():
	case <-s.ctx.Done():
	}
}

// broadcaster serializes all snapshot fan-out, initial snapshots
// included, so a subscription never observes an older snapshot after a
// newer one.
func (s *Store) broadcaster(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case task := <-s.tasks:
			task(ctx)
		}
	}
}

func (s *Store) refresh(ctx context.Context, collection string) {
	s.mu.Lock()
	docTargets := make([]*docSub, 0, len(s.docSubs))
	for _, sub := range s.docSubs {
		if collection == "" || sub.collection == collection {
			docTargets = append(docTargets, sub)
		}
	}
	colTargets := make([]*colSub, 0, len(s.colSubs))
	for _, sub := range s.colSubs {
		if collection == "" || sub.collection == collection {
			colTargets = append(colTargets, sub)
		}
	}
	s.mu.Unlock()

	for _, sub := range docTargets {
		snap, err := s.Get(ctx, sub.path)
		sub.push(docItem{snap: snap, err: err})
	}
	for _, sub := range colTargets {
		docs, err := s.Query(ctx, sub.collection, sub.orderBy)
		sub.push(listItem{docs: docs, err: err})
	}
}

// listen holds the LISTEN connection, reconnecting with backoff. If the
// connection cannot be re-established the failure is pushed to every
// open subscription as a stream error.
func (s *Store) listen(ctx context.Context) {
	err := retry.DoWithRetry(ctx, 6, time.Second, func() error {
		return s.listenOnce(ctx)
	})
	if err == nil || ctx.Err() != nil {
		return
	}
	s.log.Error("change listener failed", "err", err)
	s.failSubscriptions(fmt.Errorf("change feed lost: %w", err))
}

func (s *Store) listenOnce(ctx context.Context) error {
	conn, err := pgx.Connect(ctx, s.dsn)
	if err != nil {
		return err
	}
	defer conn.Close(context.Background())

	if _, err := conn.Exec(ctx, "LISTEN "+notifyChannel); err != nil {
		return err
	}
	// Refresh everything after (re)connecting: notifications may have
	// been missed while disconnected.
	s.announce(ctx, "")

	for {
		notification, err := conn.WaitForNotification(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		s.announce(ctx, notification.Payload)
	}
}

func (s *Store) failSubscriptions(err error) {
	s.mu.Lock()
	docTargets := make([]*docSub, 0, len(s.docSubs))
	for _, sub := range s.docSubs {
		docTargets = append(docTargets, sub)
	}
	colTargets := make([]*colSub, 0, len(s.colSubs))
	for _, sub := range s.colSubs {
		colTargets = append(colTargets, sub)
	}
	s.mu.Unlock()

	for _, sub := range docTargets {
		sub.push(docItem{err: err})
	}
	for _, sub := range colTargets {
		sub.push(listItem{err: err})
	}
}

type docItem struct {
	snap store.DocSnapshot
	err  error
}

type docSub struct {
	path       string
	collection string
	handler    store.DocHandler
	ch         chan docItem
	done       chan struct{}
}

func (d *docSub) push(item docItem) {
	for {
		select {
		case d.ch <- item:
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
		case item := <-d.ch:
			d.handler(item.snap, item.err)
			if item.err != nil {
				return
			}
		}
	}
}

type listItem struct {
	docs []store.Document
	err  error
}

type colSub struct {
	collection string
	orderBy    string
	handler    store.ListHandler
	ch         chan listItem
	done       chan struct{}
}

func (c *colSub) push(item listItem) {
	for {
		select {
		case c.ch <- item:
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
		case item := <-c.ch:
			c.handler(item.docs, item.err)
			if item.err != nil {
				return
			}
		}
	}
}

func encodeFields(fields map[string]any) ([]byte, []string, error) {
	plain := make(map[string]any, len(fields))
	tsKeys := []string{}
	for k, v := range fields {
		if store.IsServerTimestamp(v) {
			tsKeys = append(tsKeys, k)
			continue
		}
		plain[k] = v
	}
	body, err := json.Marshal(plain)
	return body, tsKeys, err
}

func decodeFields(body []byte) (map[string]any, error) {
	fields := map[string]any{}
	if err := json.Unmarshal(body, &fields); err != nil {
		return nil, fmt.Errorf("decode fields: %w", err)
	}
	return fields, nil
}

// writeError maps permission failures onto the rejected-write category;
// anything else stays a transport error for the workflow layer to wrap.
func writeError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "42501" {
		return fmt.Errorf("%w: %v", store.ErrRejected, err)
	}
	return err
}

func splitPath(path string) (collection, id string, ok bool) {
	i := strings.LastIndex(path, "/")
	if i <= 0 || i == len(path)-1 {
		return "", "", false
	}
	return path[:i], path[i+1:], true
}
