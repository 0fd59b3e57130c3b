package chat_test

import (
	"context"
	"errors"
	"testing"

	"chousei/internal/domain/chat"
	"chousei/internal/domain/poll"
	"chousei/internal/identity"
	"chousei/internal/store/memory"
)

func newIdent() *identity.Manager {
	return identity.NewManager(identity.NewMapStore())
}

func TestSendAndReadBack(t *testing.T) {
	st := memory.New()
	svc := chat.NewService(st)
	ident := newIdent()

	id, err := svc.Send(context.Background(), ident, "p1", "Kana", "see you there")
	if err != nil {
		t.Fatalf("send: %v", err)
	}

	docs, err := st.Query(context.Background(), poll.MessagesPath("p1"), "created_at")
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	msgs := chat.FromDocuments(docs)
	if len(msgs) != 1 {
		t.Fatalf("got %d messages, want 1", len(msgs))
	}
	m := msgs[0]
	if m.ID != id || m.Text != "see you there" || m.SenderName != "Kana" {
		t.Fatalf("unexpected message %+v", m)
	}

	clientID, err := ident.ClientID()
	if err != nil {
		t.Fatalf("client id: %v", err)
	}
	if m.SenderID != clientID {
		t.Fatalf("senderId = %q, want caller's %q", m.SenderID, clientID)
	}
}

func TestSendRequiresText(t *testing.T) {
	svc := chat.NewService(memory.New())
	if _, err := svc.Send(context.Background(), newIdent(), "p1", "Kana", "   "); !errors.Is(err, chat.ErrTextRequired) {
		t.Fatalf("got %v, want ErrTextRequired", err)
	}
}

func TestSendFallsBackToRememberedName(t *testing.T) {
	svc := chat.NewService(memory.New())
	ident := newIdent()

	// No name anywhere: rejected.
	if _, err := svc.Send(context.Background(), ident, "p1", "", "hi"); !errors.Is(err, chat.ErrNameRequired) {
		t.Fatalf("got %v, want ErrNameRequired", err)
	}

	if err := ident.RememberName("Kana"); err != nil {
		t.Fatalf("remember: %v", err)
	}

	st := memory.New()
	svc = chat.NewService(st)
	if _, err := svc.Send(context.Background(), ident, "p1", "", "hi"); err != nil {
		t.Fatalf("send: %v", err)
	}
	docs, _ := st.Query(context.Background(), poll.MessagesPath("p1"), "created_at")
	msgs := chat.FromDocuments(docs)
	if len(msgs) != 1 || msgs[0].SenderName != "Kana" {
		t.Fatalf("fallback name not applied: %+v", msgs)
	}
}

func TestSendRemembersExplicitName(t *testing.T) {
	svc := chat.NewService(memory.New())
	ident := newIdent()

	if _, err := svc.Send(context.Background(), ident, "p1", "Ren", "hi"); err != nil {
		t.Fatalf("send: %v", err)
	}
	if name, ok := ident.RememberedName(); !ok || name != "Ren" {
		t.Fatalf("remembered name = %q, %v", name, ok)
	}
}

func TestDeleteOwnMessage(t *testing.T) {
	st := memory.New()
	svc := chat.NewService(st)
	ident := newIdent()

	id, err := svc.Send(context.Background(), ident, "p1", "Kana", "oops")
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if err := svc.Delete(context.Background(), ident, "p1", id); err != nil {
		t.Fatalf("delete: %v", err)
	}
	docs, _ := st.Query(context.Background(), poll.MessagesPath("p1"), "created_at")
	if len(docs) != 0 {
		t.Fatalf("message still present: %v", docs)
	}
}

func TestDeleteForeignMessageRefused(t *testing.T) {
	st := memory.New()
	svc := chat.NewService(st)
	author := newIdent()
	other := newIdent()

	id, err := svc.Send(context.Background(), author, "p1", "Kana", "mine")
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if err := svc.Delete(context.Background(), other, "p1", id); !errors.Is(err, chat.ErrNotSender) {
		t.Fatalf("got %v, want ErrNotSender", err)
	}
	docs, _ := st.Query(context.Background(), poll.MessagesPath("p1"), "created_at")
	if len(docs) != 1 {
		t.Fatal("foreign delete must not remove the message")
	}
}

func TestDeleteMissingMessage(t *testing.T) {
	svc := chat.NewService(memory.New())
	if err := svc.Delete(context.Background(), newIdent(), "p1", "ghost"); !errors.Is(err, chat.ErrNotFound) {
		t.Fatalf("got %v, want ErrNotFound", err)
	}
}
