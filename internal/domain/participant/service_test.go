package participant_test

import (
	"context"
	"errors"
	"testing"

	"chousei/internal/domain/participant"
	"chousei/internal/domain/poll"
	"chousei/internal/identity"
	"chousei/internal/store"
	"chousei/internal/store/memory"
)

func setup(t *testing.T) (*participant.Service, *poll.Service, *memory.Store, string) {
	t.Helper()
	st := memory.New()
	polls := poll.NewService(st)
	id, err := polls.Create(context.Background(), "Offsite", "", []string{"Mon", "Tue"})
	if err != nil {
		t.Fatalf("create poll: %v", err)
	}
	return participant.NewService(polls, st), polls, st, id
}

func countResponses(t *testing.T, st *memory.Store, pollID string) int {
	t.Helper()
	docs, err := st.Query(context.Background(), poll.ParticipantsPath(pollID), "created_at")
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	return len(docs)
}

func TestSubmitValidResponse(t *testing.T) {
	svc, _, st, pollID := setup(t)
	ident := identity.NewManager(identity.NewMapStore())

	id, err := svc.Submit(context.Background(), ident, pollID, "  Kana ", "late ok", participant.Answers{
		0: participant.VoteYes,
		1: participant.VoteMaybe,
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if id == "" {
		t.Fatal("expected response id")
	}

	docs, err := st.Query(context.Background(), poll.ParticipantsPath(pollID), "created_at")
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	parts := participant.FromDocuments(docs)
	if len(parts) != 1 {
		t.Fatalf("got %d responses, want 1", len(parts))
	}
	got := parts[0]
	if got.Name != "Kana" {
		t.Fatalf("name = %q, want trimmed %q", got.Name, "Kana")
	}
	if got.Comment != "late ok" {
		t.Fatalf("comment = %q", got.Comment)
	}
	if got.Answers[0] != participant.VoteYes || got.Answers[1] != participant.VoteMaybe {
		t.Fatalf("answers did not round-trip: %v", got.Answers)
	}
	if got.HasPaid {
		t.Fatal("hasPaid must start false")
	}

	if name, ok := ident.RememberedName(); !ok || name != "Kana" {
		t.Fatalf("remembered name = %q, %v", name, ok)
	}
}

func TestSubmitRequiresName(t *testing.T) {
	svc, _, st, pollID := setup(t)

	_, err := svc.Submit(context.Background(), nil, pollID, "   ", "", participant.Answers{
		0: participant.VoteYes,
		1: participant.VoteYes,
	})
	if !errors.Is(err, participant.ErrNameRequired) {
		t.Fatalf("got %v, want ErrNameRequired", err)
	}
	if n := countResponses(t, st, pollID); n != 0 {
		t.Fatalf("rejected submission wrote %d docs", n)
	}
}

func TestSubmitRejectsIncompleteAnswers(t *testing.T) {
	svc, _, st, pollID := setup(t)
	kv := identity.NewMapStore()
	ident := identity.NewManager(kv)
	if err := ident.RememberName("Old Name"); err != nil {
		t.Fatalf("seed name: %v", err)
	}

	_, err := svc.Submit(context.Background(), ident, pollID, "Kana", "", participant.Answers{
		0: participant.VoteYes,
	})
	if !errors.Is(err, participant.ErrIncompleteAnswers) {
		t.Fatalf("got %v, want ErrIncompleteAnswers", err)
	}
	if n := countResponses(t, st, pollID); n != 0 {
		t.Fatalf("rejected submission wrote %d docs", n)
	}
	if name, _ := ident.RememberedName(); name != "Old Name" {
		t.Fatalf("remembered name changed to %q on failure", name)
	}
}

func TestSubmitRejectsInvalidVote(t *testing.T) {
	svc, _, _, pollID := setup(t)

	_, err := svc.Submit(context.Background(), nil, pollID, "Kana", "", participant.Answers{
		0: participant.VoteYes,
		1: participant.Vote("y"),
	})
	if !errors.Is(err, participant.ErrInvalidVote) {
		t.Fatalf("got %v, want ErrInvalidVote", err)
	}
}

func TestSubmitToleratesStaleAnswerKeys(t *testing.T) {
	svc, polls, _, pollID := setup(t)

	// Candidate 7 never existed; extra keys from a stale form are ignored
	// as long as every live candidate is covered.
	_, err := svc.Submit(context.Background(), nil, pollID, "Kana", "", participant.Answers{
		0: participant.VoteYes,
		1: participant.VoteNo,
		7: participant.VoteYes,
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	if _, err := polls.Get(context.Background(), pollID); err != nil {
		t.Fatalf("get: %v", err)
	}
}

func TestSubmitUnknownPoll(t *testing.T) {
	svc, _, _, _ := setup(t)

	_, err := svc.Submit(context.Background(), nil, "ghost", "Kana", "", participant.Answers{0: participant.VoteYes})
	if !errors.Is(err, poll.ErrNotFound) {
		t.Fatalf("got %v, want poll.ErrNotFound", err)
	}
}

type rejectingStore struct {
	store.Store
}

func (rejectingStore) Create(context.Context, string, map[string]any) (string, error) {
	return "", errors.New("backend unavailable")
}

func TestSubmitWriteFailureKeepsName(t *testing.T) {
	st := memory.New()
	polls := poll.NewService(st)
	pollID, err := polls.Create(context.Background(), "Offsite", "", []string{"Mon"})
	if err != nil {
		t.Fatalf("create poll: %v", err)
	}
	svc := participant.NewService(polls, rejectingStore{Store: st})

	ident := identity.NewManager(identity.NewMapStore())
	_, err = svc.Submit(context.Background(), ident, pollID, "Kana", "", participant.Answers{0: participant.VoteYes})
	if !errors.Is(err, store.ErrRejected) {
		t.Fatalf("got %v, want store.ErrRejected", err)
	}
	if errors.Is(err, participant.ErrNameRequired) || errors.Is(err, participant.ErrIncompleteAnswers) {
		t.Fatalf("write failure must not look like validation: %v", err)
	}
	if name, ok := ident.RememberedName(); ok {
		t.Fatalf("name %q remembered despite failed write", name)
	}
}

func TestParseVote(t *testing.T) {
	for symbol, want := range map[string]participant.Vote{
		"o": participant.VoteYes,
		"t": participant.VoteMaybe,
		"x": participant.VoteNo,
	} {
		got, err := participant.ParseVote(symbol)
		if err != nil || got != want {
			t.Fatalf("ParseVote(%q) = %v, %v", symbol, got, err)
		}
	}
	if _, err := participant.ParseVote("maybe"); !errors.Is(err, participant.ErrInvalidVote) {
		t.Fatalf("got %v, want ErrInvalidVote", err)
	}
}

func TestVoteWeights(t *testing.T) {
	weights := map[participant.Vote]int{
		participant.VoteYes:   2,
		participant.VoteMaybe: 1,
		participant.VoteNo:    0,
		participant.Vote(""):  0,
	}
	for vote, want := range weights {
		if got := vote.Weight(); got != want {
			t.Fatalf("Weight(%q) = %d, want %d", vote, got, want)
		}
	}
}
