package poll

import (
	"context"
	"errors"
	"fmt"

	"chousei/internal/store"
)

var (
	ErrTitleRequired     = errors.New("title required")
	ErrNoCandidates      = errors.New("poll must have at least one candidate")
	ErrLabelRequired     = errors.New("candidate label required")
	ErrNegativeFee       = errors.New("fee must not be negative")
	ErrNotFound          = errors.New("poll not found")
	ErrCandidateNotFound = errors.New("candidate not found")
)

// RemoveRequiresConfirmation is part of the removal contract: deleting a
// candidate throws away votes, so every caller must obtain destructive
// confirmation before invoking RemoveCandidate.
const RemoveRequiresConfirmation = true

// Service is the candidate administration workflow. Candidate mutations
// are whole-array read-modify-writes: the store has no atomic
// array-append, so two administrators editing at the same instant race
// and the last document write wins. That window is accepted, not masked;
// a single organizer is the expected case.
type Service struct {
	store store.Store
}

func NewService(st store.Store) *Service {
	return &Service{store: st}
}

// Create publishes a new poll. Candidate ids start at 0 in submission
// order; fee starts unset.
func (s *Service) Create(ctx context.Context, title, detail string, labels []string) (string, error) {
	if title == "" {
		return "", ErrTitleRequired
	}
	if len(labels) == 0 {
		return "", ErrNoCandidates
	}

	candidates := make([]Candidate, 0, len(labels))
	for i, label := range labels {
		if label == "" {
			return "", ErrLabelRequired
		}
		candidates = append(candidates, Candidate{ID: i, Label: label})
	}

	p := Poll{Title: title, Detail: detail, Candidates: candidates}
	id, err := s.store.Create(ctx, Collection, p.Fields())
	if err != nil {
		return "", writeFailed("create poll", err)
	}
	return id, nil
}

func (s *Service) Get(ctx context.Context, id string) (Poll, error) {
	snap, err := s.store.Get(ctx, DocPath(id))
	if err != nil {
		return Poll{}, fmt.Errorf("get poll: %w", err)
	}
	if !snap.Exists {
		return Poll{}, ErrNotFound
	}
	return FromDocument(snap.Document)
}

func (s *Service) AddCandidate(ctx context.Context, pollID, label string) (Candidate, error) {
	if label == "" {
		return Candidate{}, ErrLabelRequired
	}

	p, err := s.Get(ctx, pollID)
	if err != nil {
		return Candidate{}, err
	}

	c := Candidate{ID: NextCandidateID(p.Candidates), Label: label}
	next := append(append([]Candidate{}, p.Candidates...), c)
	if err := s.updateCandidates(ctx, pollID, next); err != nil {
		return Candidate{}, err
	}
	return c, nil
}

// RemoveCandidate rewrites the candidate array without the target id.
// Callers must honor RemoveRequiresConfirmation first.
func (s *Service) RemoveCandidate(ctx context.Context, pollID string, candidateID int) error {
	p, err := s.Get(ctx, pollID)
	if err != nil {
		return err
	}

	next := make([]Candidate, 0, len(p.Candidates))
	found := false
	for _, c := range p.Candidates {
		if c.ID == candidateID {
			found = true
			continue
		}
		next = append(next, c)
	}
	if !found {
		return ErrCandidateNotFound
	}
	return s.updateCandidates(ctx, pollID, next)
}

// SetFee sets or clears the per-head fee. nil clears it back to unset.
func (s *Service) SetFee(ctx context.Context, pollID string, fee *int) error {
	if fee != nil && *fee < 0 {
		return ErrNegativeFee
	}
	if _, err := s.Get(ctx, pollID); err != nil {
		return err
	}

	var value any
	if fee != nil {
		value = *fee
	}
	if err := s.store.Update(ctx, DocPath(pollID), map[string]any{"fee": value}); err != nil {
		return writeFailed("set fee", err)
	}
	return nil
}

// SetPaid toggles one participant's paid flag. Single-field update on a
// single document, so it does not share the candidate-array race.
func (s *Service) SetPaid(ctx context.Context, pollID, participantID string, paid bool) error {
	path := ParticipantsPath(pollID) + "/" + participantID
	err := s.store.Update(ctx, path, map[string]any{"hasPaid": paid})
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("set paid: %w", err)
	}
	if err != nil {
		return writeFailed("set paid", err)
	}
	return nil
}

func (s *Service) updateCandidates(ctx context.Context, pollID string, candidates []Candidate) error {
	err := s.store.Update(ctx, DocPath(pollID), map[string]any{
		"candidates": candidatesField(candidates),
	})
	if err != nil {
		return writeFailed("update candidates", err)
	}
	return nil
}

// writeFailed folds any store write failure into the rejected-write
// category, keeping it distinguishable from validation failures.
func writeFailed(op string, err error) error {
	if errors.Is(err, store.ErrRejected) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%s: %w: %w", op, store.ErrRejected, err)
}
