// Package chat appends and removes short messages on a poll's board,
// attributing each message to the posting client's identity.
package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"chousei/internal/domain/poll"
	"chousei/internal/identity"
	"chousei/internal/store"
)

var (
	ErrTextRequired = errors.New("message text required")
	ErrNameRequired = errors.New("sender name required")
	ErrNotFound     = errors.New("message not found")
	// ErrNotSender guards deletion: only the client whose identity posted
	// a message may remove it. Advisory only; a deployment's store rules
	// must enforce it for real.
	ErrNotSender = errors.New("message belongs to another sender")
)

type Message struct {
	ID         string    `json:"id"`
	Text       string    `json:"text"`
	SenderName string    `json:"senderName"`
	SenderID   string    `json:"senderId"`
	CreatedAt  time.Time `json:"created_at"`
}

func FromDocument(doc store.Document) Message {
	m := Message{ID: doc.ID}
	m.Text, _ = doc.Fields["text"].(string)
	m.SenderName, _ = doc.Fields["senderName"].(string)
	m.SenderID, _ = doc.Fields["senderId"].(string)
	if ts, ok := store.FieldTime(doc.Fields["created_at"]); ok {
		m.CreatedAt = ts
	}
	return m
}

func FromDocuments(docs []store.Document) []Message {
	out := make([]Message, 0, len(docs))
	for _, doc := range docs {
		out = append(out, FromDocument(doc))
	}
	return out
}

func DocPath(pollID, messageID string) string {
	return poll.MessagesPath(pollID) + "/" + messageID
}

type Service struct {
	store store.Store
}

func NewService(st store.Store) *Service {
	return &Service{store: st}
}

// Send posts a message. The sender name resolves to the explicit name
// when given, else the shared remembered name; with neither the send is
// rejected locally. The resolved name is remembered only after the write
// succeeds.
func (s *Service) Send(ctx context.Context, ident *identity.Manager, pollID, senderName, text string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", ErrTextRequired
	}

	sender := strings.TrimSpace(senderName)
	if sender == "" {
		if remembered, ok := ident.RememberedName(); ok {
			sender = remembered
		}
	}
	if sender == "" {
		return "", ErrNameRequired
	}

	clientID, err := ident.ClientID()
	if err != nil {
		return "", fmt.Errorf("send message: %w", err)
	}

	id, err := s.store.Create(ctx, poll.MessagesPath(pollID), map[string]any{
		"text":       text,
		"senderName": sender,
		"senderId":   clientID,
		"created_at": store.ServerTimestamp,
	})
	if err != nil {
		if errors.Is(err, store.ErrRejected) {
			return "", fmt.Errorf("send message: %w", err)
		}
		return "", fmt.Errorf("send message: %w: %w", store.ErrRejected, err)
	}

	_ = ident.RememberName(sender)
	return id, nil
}

// Delete removes one of the caller's own messages.
func (s *Service) Delete(ctx context.Context, ident *identity.Manager, pollID, messageID string) error {
	snap, err := s.store.Get(ctx, DocPath(pollID, messageID))
	if err != nil {
		return fmt.Errorf("delete message: %w", err)
	}
	if !snap.Exists {
		return ErrNotFound
	}

	clientID, err := ident.ClientID()
	if err != nil {
		return fmt.Errorf("delete message: %w", err)
	}
	if FromDocument(snap.Document).SenderID != clientID {
		return ErrNotSender
	}

	if err := s.store.Delete(ctx, DocPath(pollID, messageID)); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrNotFound
		}
		if errors.Is(err, store.ErrRejected) {
			return fmt.Errorf("delete message: %w", err)
		}
		return fmt.Errorf("delete message: %w: %w", store.ErrRejected, err)
	}
	return nil
}
