package worker

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/Jason-Fu-git/CoTalk-Backend/internal/app/registry"
	"github.com/Jason-Fu-git/CoTalk-Backend/internal/core/domain"
	"github.com/Jason-Fu-git/CoTalk-Backend/internal/core/services"
)

type passTx struct{}

func (passTx) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type stubUsers struct {
	names map[int64]string
}

func (r *stubUsers) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	name, ok := r.names[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	return &domain.User{ID: id, Name: name}, nil
}

func (r *stubUsers) Create(ctx context.Context, u *domain.User) error           { return nil }
func (r *stubUsers) GetByName(ctx context.Context, n string) (*domain.User, error) {
	return nil, domain.ErrUserNotFound
}
func (r *stubUsers) NameExists(ctx context.Context, n string) (bool, error) { return false, nil }
func (r *stubUsers) Update(ctx context.Context, u *domain.User) error       { return nil }
func (r *stubUsers) Delete(ctx context.Context, id int64) error             { return nil }

type stubMessages struct {
	created []domain.Message
	next    int64
}

func (r *stubMessages) Create(ctx context.Context, m *domain.Message) error {
	r.next++
	m.ID = r.next
	r.created = append(r.created, *m)
	return nil
}

func (r *stubMessages) GetByID(ctx context.Context, id int64) (*domain.Message, error) {
	return nil, domain.ErrMessageNotFound
}
func (r *stubMessages) Delete(ctx context.Context, id int64) error        { return nil }
func (r *stubMessages) DeleteByChat(ctx context.Context, id int64) error  { return nil }
func (r *stubMessages) MarkRead(ctx context.Context, msgID, userID int64, at time.Time) (bool, error) {
	return false, nil
}
func (r *stubMessages) Hide(ctx context.Context, msgID, userID int64) error { return nil }
func (r *stubMessages) ListByChat(ctx context.Context, chatID int64, f domain.MessageFilter) ([]domain.Message, error) {
	return nil, nil
}

type stubNotifs struct{}

func (stubNotifs) Create(ctx context.Context, n *domain.Notification) error { return nil }
func (stubNotifs) ListByReceiver(ctx context.Context, id int64, u bool) ([]domain.Notification, error) {
	return nil, nil
}
func (stubNotifs) MarkRead(ctx context.Context, id, rid int64) error { return nil }
func (stubNotifs) Delete(ctx context.Context, id, rid int64) error   { return nil }

type stubQueue struct {
	acked   []string
	deleted []string
}

func (q *stubQueue) PublishToStream(ctx context.Context, topic string, payload []byte) error {
	return nil
}
func (q *stubQueue) SubscribeToStream(ctx context.Context, topic, group string, h func(context.Context, string, []byte) error) error {
	return nil
}
func (q *stubQueue) AcknowledgeMessage(ctx context.Context, topic, group, id string) error {
	q.acked = append(q.acked, id)
	return nil
}
func (q *stubQueue) DeleteMessage(ctx context.Context, topic, id string) error {
	q.deleted = append(q.deleted, id)
	return nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newWorkerFixture(names map[int64]string) (*SystemWorker, *stubMessages, *stubQueue) {
	log := testLogger()
	hub := registry.NewRegistry()
	dispatcher := services.NewDispatcher(log, hub, stubNotifs{})
	messages := &stubMessages{}
	queue := &stubQueue{}
	w := NewSystemWorker(log, queue, &stubUsers{names: names}, messages, dispatcher, passTx{}, "g")
	return w, messages, queue
}

func TestProcessEntryPersistsSystemMessage(t *testing.T) {
	w, messages, queue := newWorkerFixture(map[int64]string{1: "alice", 2: "bob"})
	raw, _ := json.Marshal(domain.SystemEntry{
		ChatID: 5, ActorID: 1, SubjectID: 2, Action: domain.SystemKick,
	})
	if err := w.ProcessEntry(context.Background(), "1-0", raw); err != nil {
		t.Fatalf("process: %v", err)
	}
	if len(messages.created) != 1 {
		t.Fatalf("expected 1 message, got %d", len(messages.created))
	}
	msg := messages.created[0]
	if msg.SenderID != domain.SystemUserID || !msg.IsSystem || msg.Type != domain.MessageSystem {
		t.Fatalf("not a system message: %+v", msg)
	}
	if msg.ChatID != 5 {
		t.Fatalf("wrong chat: %d", msg.ChatID)
	}
	if msg.Text != "alice kicked bob out of the chat." {
		t.Fatalf("wrong text: %q", msg.Text)
	}
	if len(queue.acked) != 1 || len(queue.deleted) != 1 {
		t.Fatal("entry must be acked and trimmed after success")
	}
}

func TestProcessEntryRenderings(t *testing.T) {
	cases := []struct {
		entry domain.SystemEntry
		want  string
	}{
		{domain.SystemEntry{ChatID: 5, ActorID: 1, Action: domain.SystemJoin}, "alice joined the chat."},
		{domain.SystemEntry{ChatID: 5, ActorID: 1, Action: domain.SystemWithdraw}, "alice withdrew a message."},
		{domain.SystemEntry{ChatID: 5, ActorID: 1, Action: domain.SystemLeave}, "alice left the chat."},
		{domain.SystemEntry{ChatID: 5, ActorID: 1, SubjectID: 2, Action: domain.SystemPrivilege, Role: domain.RoleAdmin},
			"alice changed bob's privilege to admin."},
	}
	for _, tc := range cases {
		w, messages, _ := newWorkerFixture(map[int64]string{1: "alice", 2: "bob"})
		raw, _ := json.Marshal(tc.entry)
		if err := w.ProcessEntry(context.Background(), "1-0", raw); err != nil {
			t.Fatalf("process %s: %v", tc.entry.Action, err)
		}
		if got := messages.created[0].Text; got != tc.want {
			t.Fatalf("action %s: text %q, want %q", tc.entry.Action, got, tc.want)
		}
	}
}

func TestProcessEntryMalformedDropped(t *testing.T) {
	w, messages, queue := newWorkerFixture(nil)
	if err := w.ProcessEntry(context.Background(), "2-0", []byte("{garbage")); err != nil {
		t.Fatalf("malformed entry must be discarded without error, got %v", err)
	}
	if len(messages.created) != 0 {
		t.Fatal("malformed entry must not persist a message")
	}
	if len(queue.acked) != 1 || len(queue.deleted) != 1 {
		t.Fatal("malformed entry must still be acked and trimmed")
	}
}

func TestProcessEntryUnknownUserLeftPending(t *testing.T) {
	w, _, queue := newWorkerFixture(nil)
	raw, _ := json.Marshal(domain.SystemEntry{ChatID: 5, ActorID: 99, Action: domain.SystemJoin})
	if err := w.ProcessEntry(context.Background(), "3-0", raw); err == nil {
		t.Fatal("unresolvable actor must keep the entry pending")
	}
	if len(queue.acked) != 0 {
		t.Fatal("failed entry must not be acked")
	}
}
