package postgres

import (
	"context"
	"sync"
	"testing"
	"time"

	"chousei/internal/store"
)

func newTestStore(ctx context.Context) *Store {
	return &Store{
		docSubs: make(map[uint64]*docSub),
		colSubs: make(map[uint64]*colSub),
		ctx:     ctx,
		tasks:   make(chan func(context.Context), 16),
	}
}

func TestBroadcasterRunsTasksInOrder(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s := newTestStore(ctx)
	go s.broadcaster(ctx)

	const n = 10
	var mu sync.Mutex
	var order []int
	done := make(chan struct{})

	for i := 0; i < n; i++ {
		i := i
		s.enqueue(ctx, func(context.Context) {
			mu.Lock()
			order = append(order, i)
			if len(order) == n {
				close(done)
			}
			mu.Unlock()
		})
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for tasks")
	}

	mu.Lock()
	defer mu.Unlock()
	for i, got := range order {
		if got != i {
			t.Fatalf("task %d ran at position %d: %v", got, i, order)
		}
	}
}

// The initial snapshot must be queued behind the broadcaster, not read
// and pushed directly by the subscribing goroutine: a direct push could
// land after a fresher snapshot the broadcaster already delivered.
func TestInitialSnapshotWaitsForBroadcaster(t *testing.T) {
	s := newTestStore(context.Background())

	delivered := make(chan struct{}, 1)
	sub := s.SubscribeDoc("polls/x", func(store.DocSnapshot, error) {
		delivered <- struct{}{}
	})
	defer sub.Unsubscribe()

	select {
	case <-delivered:
		t.Fatal("initial snapshot bypassed the broadcaster")
	case <-time.After(50 * time.Millisecond):
	}
	if got := len(s.tasks); got != 1 {
		t.Fatalf("queued tasks = %d, want 1", got)
	}
}

func TestInitialCollectionSnapshotWaitsForBroadcaster(t *testing.T) {
	s := newTestStore(context.Background())

	delivered := make(chan struct{}, 1)
	sub := s.SubscribeCollection("polls/x/participants", "created_at", func([]store.Document, error) {
		delivered <- struct{}{}
	})
	defer sub.Unsubscribe()

	select {
	case <-delivered:
		t.Fatal("initial snapshot bypassed the broadcaster")
	case <-time.After(50 * time.Millisecond):
	}
	if got := len(s.tasks); got != 1 {
		t.Fatalf("queued tasks = %d, want 1", got)
	}
}

func TestEnqueueStopsWhenStoreClosed(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	s := newTestStore(ctx)
	s.tasks = make(chan func(context.Context)) // unbuffered, nobody draining
	cancel()

	done := make(chan struct{})
	go func() {
		s.enqueue(context.Background(), func(context.Context) {})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("enqueue blocked after store shutdown")
	}
}
