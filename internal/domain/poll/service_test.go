package poll_test

import (
	"context"
	"errors"
	"testing"

	"chousei/internal/domain/poll"
	"chousei/internal/store"
	"chousei/internal/store/memory"
)

func newService(t *testing.T) (*poll.Service, *memory.Store) {
	t.Helper()
	st := memory.New()
	return poll.NewService(st), st
}

func TestCreateValidation(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	cases := []struct {
		name   string
		title  string
		labels []string
		want   error
	}{
		{"missing title", "", []string{"Mon"}, poll.ErrTitleRequired},
		{"no candidates", "Offsite", nil, poll.ErrNoCandidates},
		{"blank label", "Offsite", []string{"Mon", ""}, poll.ErrLabelRequired},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := svc.Create(ctx, tc.title, "", tc.labels); !errors.Is(err, tc.want) {
				t.Fatalf("got %v, want %v", err, tc.want)
			}
		})
	}
}

func TestCreateAssignsSequentialIDs(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	id, err := svc.Create(ctx, "Offsite", "pick a day", []string{"Mon", "Tue", "Wed"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	p, err := svc.Get(ctx, id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if p.Title != "Offsite" || p.Detail != "pick a day" {
		t.Fatalf("unexpected poll %+v", p)
	}
	if p.Fee != nil {
		t.Fatalf("fee should start unset, got %v", *p.Fee)
	}
	for i, c := range p.Candidates {
		if c.ID != i {
			t.Fatalf("candidate %d has id %d", i, c.ID)
		}
	}
}

func TestGetMissingPoll(t *testing.T) {
	svc, _ := newService(t)
	if _, err := svc.Get(context.Background(), "nope"); !errors.Is(err, poll.ErrNotFound) {
		t.Fatalf("got %v, want ErrNotFound", err)
	}
}

func TestCandidateIDsNeverReused(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	id, err := svc.Create(ctx, "Offsite", "", []string{"Mon", "Tue", "Wed"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	// Remove the highest id, then add: the new id must still advance past
	// every id that ever existed among the survivors.
	if err := svc.RemoveCandidate(ctx, id, 1); err != nil {
		t.Fatalf("remove: %v", err)
	}
	c, err := svc.AddCandidate(ctx, id, "Thu")
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if c.ID != 3 {
		t.Fatalf("new candidate id = %d, want 3", c.ID)
	}

	p, err := svc.Get(ctx, id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	seen := map[int]bool{}
	for _, c := range p.Candidates {
		if seen[c.ID] {
			t.Fatalf("duplicate candidate id %d", c.ID)
		}
		seen[c.ID] = true
	}
	if !seen[0] || !seen[2] || !seen[3] || seen[1] {
		t.Fatalf("unexpected candidate set %+v", p.Candidates)
	}
}

func TestRemoveCandidateMissing(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	id, err := svc.Create(ctx, "Offsite", "", []string{"Mon"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := svc.RemoveCandidate(ctx, id, 42); !errors.Is(err, poll.ErrCandidateNotFound) {
		t.Fatalf("got %v, want ErrCandidateNotFound", err)
	}
}

func TestSetFeeAndClear(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	id, err := svc.Create(ctx, "Offsite", "", []string{"Mon"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	neg := -1
	if err := svc.SetFee(ctx, id, &neg); !errors.Is(err, poll.ErrNegativeFee) {
		t.Fatalf("got %v, want ErrNegativeFee", err)
	}

	fee := 500
	if err := svc.SetFee(ctx, id, &fee); err != nil {
		t.Fatalf("set fee: %v", err)
	}
	p, err := svc.Get(ctx, id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if p.Fee == nil || *p.Fee != 500 {
		t.Fatalf("fee = %v, want 500", p.Fee)
	}

	if err := svc.SetFee(ctx, id, nil); err != nil {
		t.Fatalf("clear fee: %v", err)
	}
	p, err = svc.Get(ctx, id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if p.Fee != nil {
		t.Fatalf("fee should be cleared, got %v", *p.Fee)
	}
}

func TestSetPaidMissingParticipant(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	id, err := svc.Create(ctx, "Offsite", "", []string{"Mon"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	err = svc.SetPaid(ctx, id, "ghost", true)
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("got %v, want store.ErrNotFound", err)
	}
}

func TestSetPaidToggles(t *testing.T) {
	svc, st := newService(t)
	ctx := context.Background()

	id, err := svc.Create(ctx, "Offsite", "", []string{"Mon"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	pid, err := st.Create(ctx, poll.ParticipantsPath(id), map[string]any{
		"name": "Kana", "answers": map[string]any{"0": "o"}, "hasPaid": false,
	})
	if err != nil {
		t.Fatalf("seed participant: %v", err)
	}

	if err := svc.SetPaid(ctx, id, pid, true); err != nil {
		t.Fatalf("set paid: %v", err)
	}
	snap, err := st.Get(ctx, poll.ParticipantsPath(id)+"/"+pid)
	if err != nil {
		t.Fatalf("get participant: %v", err)
	}
	if paid, _ := snap.Fields["hasPaid"].(bool); !paid {
		t.Fatalf("hasPaid not set: %v", snap.Fields)
	}
}

// rejectingStore simulates a backend refusing writes while reads still work.
type rejectingStore struct {
	store.Store
}

func (rejectingStore) Create(context.Context, string, map[string]any) (string, error) {
	return "", store.ErrRejected
}

func (rejectingStore) Update(context.Context, string, map[string]any) error {
	return store.ErrRejected
}

func TestWriteRejectionIsCategorized(t *testing.T) {
	svc := poll.NewService(rejectingStore{Store: memory.New()})
	ctx := context.Background()

	_, err := svc.Create(ctx, "Offsite", "", []string{"Mon"})
	if !errors.Is(err, store.ErrRejected) {
		t.Fatalf("got %v, want store.ErrRejected", err)
	}
	if errors.Is(err, poll.ErrTitleRequired) || errors.Is(err, poll.ErrNoCandidates) {
		t.Fatalf("rejected write must not look like validation: %v", err)
	}
}
