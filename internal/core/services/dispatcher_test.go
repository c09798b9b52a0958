package services

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/Jason-Fu-git/CoTalk-Backend/internal/app/registry"
	"github.com/Jason-Fu-git/CoTalk-Backend/internal/core/domain"
)

func TestSendDirectDeliversLive(t *testing.T) {
	hub := registry.NewRegistry()
	notifs := newMemNotifs()
	d := NewDispatcher(testLogger(), hub, notifs)

	c := newFakeClient("c1", 7)
	if err := hub.Register(c); err != nil {
		t.Fatalf("register: %v", err)
	}
	env := domain.ManagementEvent(domain.StatusMakeInvitation, 3, 11, true)
	res, err := d.SendDirect(context.Background(), 7, env)
	if err != nil {
		t.Fatalf("send direct: %v", err)
	}
	if res != Delivered {
		t.Fatalf("expected Delivered, got %v", res)
	}
	if c.sentCount() != 1 {
		t.Fatalf("expected 1 push, got %d", c.sentCount())
	}
	var got domain.Envelope
	if err := json.Unmarshal(c.lastSent(), &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.Type != domain.EventChatManagement || got.Status != domain.StatusMakeInvitation {
		t.Fatalf("wrong envelope: %+v", got)
	}
	if list, _ := notifs.ListByReceiver(context.Background(), 7, false); len(list) != 0 {
		t.Fatalf("live delivery must not persist, got %d notifications", len(list))
	}
}

func TestSendDirectPersistsOffline(t *testing.T) {
	hub := registry.NewRegistry()
	notifs := newMemNotifs()
	d := NewDispatcher(testLogger(), hub, notifs)

	env := domain.FriendEvent(domain.StatusMakeRequest, 3, false)
	res, err := d.SendDirect(context.Background(), 9, env)
	if err != nil {
		t.Fatalf("send direct: %v", err)
	}
	if res != Persisted {
		t.Fatalf("expected Persisted, got %v", res)
	}
	list, _ := notifs.ListByReceiver(context.Background(), 9, false)
	if len(list) != 1 {
		t.Fatalf("expected 1 notification, got %d", len(list))
	}
	n := list[0]
	if n.SenderID != 3 || n.ReceiverID != 9 || n.IsRead {
		t.Fatalf("wrong notification: %+v", n)
	}
	// Stored content is byte-identical to a live push.
	if string(n.Content) != string(env.Encode()) {
		t.Fatalf("content mismatch: %s", n.Content)
	}
}

func TestSendToGroupNoOfflineFallback(t *testing.T) {
	hub := registry.NewRegistry()
	notifs := newMemNotifs()
	d := NewDispatcher(testLogger(), hub, notifs)

	online := newFakeClient("c1", 1)
	if err := hub.Register(online); err != nil {
		t.Fatalf("register: %v", err)
	}
	hub.Subscribe(5, online)
	// User 2 is a chat member but offline: not registered, not subscribed.

	env := domain.MessageEvent(domain.StatusSendMessage, 1, 5, 42, testTime())
	d.SendToGroup(context.Background(), 5, env)

	if online.sentCount() != 1 {
		t.Fatalf("expected 1 push to online member, got %d", online.sentCount())
	}
	if list, _ := notifs.ListByReceiver(context.Background(), 2, false); len(list) != 0 {
		t.Fatalf("group broadcast must not persist for offline members")
	}
}
