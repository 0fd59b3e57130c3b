package participant

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"chousei/internal/domain/poll"
	"chousei/internal/identity"
	"chousei/internal/store"
)

var (
	ErrNameRequired = errors.New("name required")
	// ErrIncompleteAnswers enforces the all-or-nothing rule: a response
	// must carry a vote for every candidate currently in the poll.
	ErrIncompleteAnswers = errors.New("answers must cover every candidate")
	ErrInvalidVote       = errors.New("invalid vote symbol")
)

// Service is the response submission workflow.
type Service struct {
	polls *poll.Service
	store store.Store
}

func NewService(polls *poll.Service, st store.Store) *Service {
	return &Service{polls: polls, store: st}
}

// Submit validates and writes one participant's response. Validation
// failures reject locally before any write. On a successful write the
// caller's remembered name is updated through ident; on a rejected write
// it is left untouched so the form can be retried as typed.
func (s *Service) Submit(ctx context.Context, ident *identity.Manager, pollID, name, comment string, answers Answers) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", ErrNameRequired
	}

	p, err := s.polls.Get(ctx, pollID)
	if err != nil {
		return "", err
	}
	if err := validateAnswers(p.Candidates, answers); err != nil {
		return "", err
	}

	entry := Participant{Name: name, Comment: comment, Answers: answers}
	id, err := s.store.Create(ctx, poll.ParticipantsPath(pollID), entry.fields())
	if err != nil {
		if errors.Is(err, store.ErrRejected) {
			return "", fmt.Errorf("submit response: %w", err)
		}
		return "", fmt.Errorf("submit response: %w: %w", store.ErrRejected, err)
	}

	if ident != nil {
		_ = ident.RememberName(name)
	}
	return id, nil
}

func validateAnswers(candidates []poll.Candidate, answers Answers) error {
	for _, c := range candidates {
		vote, ok := answers[c.ID]
		if !ok {
			return fmt.Errorf("%w: candidate %d unanswered", ErrIncompleteAnswers, c.ID)
		}
		if !vote.Valid() {
			return fmt.Errorf("%w: candidate %d", ErrInvalidVote, c.ID)
		}
	}
	return nil
}
