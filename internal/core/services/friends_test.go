package services

import (
	"context"
	"errors"
	"testing"

	"github.com/Jason-Fu-git/CoTalk-Backend/internal/app/registry"
	"github.com/Jason-Fu-git/CoTalk-Backend/internal/core/domain"
)

type friendFixture struct {
	svc      *FriendService
	users    *memUsers
	chats    *memChats
	members  *memMembers
	messages *memMessages
	friends  *memFriends
	notifs   *memNotifs
	hub      *registry.Registry
}

func newFriendFixture() *friendFixture {
	users := newMemUsers()
	members := newMemMembers()
	chats := newMemChats(members)
	messages := newMemMessages()
	friends := newMemFriends()
	notifs := newMemNotifs()
	hub := registry.NewRegistry()
	log := testLogger()
	dispatcher := NewDispatcher(log, hub, notifs)
	svc := NewFriendService(log, friends, users, chats, members, messages, dispatcher, hub, passTx{})
	return &friendFixture{
		svc: svc, users: users, chats: chats, members: members,
		messages: messages, friends: friends, notifs: notifs, hub: hub,
	}
}

func TestFriendRequestAndAccept(t *testing.T) {
	f := newFriendFixture()
	a := f.users.add("alice")
	b := f.users.add("bob")

	status, err := f.svc.Apply(context.Background(), a.ID, b.ID, true)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if status != domain.StatusMakeRequest {
		t.Fatalf("expected make request, got %q", status)
	}
	row, err := f.friends.Get(context.Background(), a.ID, b.ID)
	if err != nil || row.Approved {
		t.Fatalf("pending row wrong: %+v err=%v", row, err)
	}

	status, err = f.svc.Apply(context.Background(), b.ID, a.ID, true)
	if err != nil {
		t.Fatalf("accept: %v", err)
	}
	if status != domain.StatusAcceptRequest {
		t.Fatalf("expected accept request, got %q", status)
	}
	for _, pair := range [][2]int64{{a.ID, b.ID}, {b.ID, a.ID}} {
		row, err := f.friends.Get(context.Background(), pair[0], pair[1])
		if err != nil || !row.Approved {
			t.Fatalf("row %v not approved: %+v err=%v", pair, row, err)
		}
	}
	// Mutual approval materializes the private chat with both members.
	chat, err := f.chats.FindPrivateChat(context.Background(), a.ID, b.ID)
	if err != nil {
		t.Fatalf("private chat missing: %v", err)
	}
	if !chat.IsPrivate {
		t.Fatal("chat must be private")
	}
	requester, _ := f.members.Get(context.Background(), a.ID, chat.ID)
	if requester.Role != domain.RoleOwner {
		t.Fatalf("requester must own the private chat, got %s", requester.Role)
	}

	if _, err := f.svc.Apply(context.Background(), a.ID, b.ID, true); !errors.Is(err, domain.ErrAlreadyFriends) {
		t.Fatalf("expected ErrAlreadyFriends, got %v", err)
	}
	ids, _ := f.friends.ListFriendIDs(context.Background(), a.ID)
	if len(ids) != 1 || ids[0] != b.ID {
		t.Fatalf("friend listing wrong: %v", ids)
	}
}

func TestFriendReject(t *testing.T) {
	f := newFriendFixture()
	a := f.users.add("alice")
	b := f.users.add("bob")

	if _, err := f.svc.Apply(context.Background(), a.ID, b.ID, true); err != nil {
		t.Fatalf("request: %v", err)
	}
	status, err := f.svc.Apply(context.Background(), b.ID, a.ID, false)
	if err != nil {
		t.Fatalf("reject: %v", err)
	}
	if status != domain.StatusRejectRequest {
		t.Fatalf("expected reject request, got %q", status)
	}
	if _, err := f.friends.Get(context.Background(), a.ID, b.ID); !errors.Is(err, domain.ErrFriendshipNotFound) {
		t.Fatal("rejected request must leave no row")
	}
	// A rejected requester can start over.
	if status, err := f.svc.Apply(context.Background(), a.ID, b.ID, true); err != nil || status != domain.StatusMakeRequest {
		t.Fatalf("re-request after rejection: status=%q err=%v", status, err)
	}
}

func TestFriendCancelOwnRequest(t *testing.T) {
	f := newFriendFixture()
	a := f.users.add("alice")
	b := f.users.add("bob")

	if _, err := f.svc.Apply(context.Background(), a.ID, b.ID, true); err != nil {
		t.Fatalf("request: %v", err)
	}
	before := len(f.notifs.m)
	status, err := f.svc.Apply(context.Background(), a.ID, b.ID, false)
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if status != "" {
		t.Fatalf("cancel must not name an event, got %q", status)
	}
	if len(f.notifs.m) != before {
		t.Fatal("cancel must not dispatch an event")
	}
}

func TestUnfriendTearsDownPrivateChat(t *testing.T) {
	f := newFriendFixture()
	a := f.users.add("alice")
	b := f.users.add("bob")
	if _, err := f.svc.Apply(context.Background(), a.ID, b.ID, true); err != nil {
		t.Fatalf("request: %v", err)
	}
	if _, err := f.svc.Apply(context.Background(), b.ID, a.ID, true); err != nil {
		t.Fatalf("accept: %v", err)
	}
	chat, err := f.chats.FindPrivateChat(context.Background(), a.ID, b.ID)
	if err != nil {
		t.Fatalf("private chat missing: %v", err)
	}
	msg := &domain.Message{SenderID: a.ID, ChatID: chat.ID, Text: "hi", Type: domain.MessageText}
	_ = f.messages.Create(context.Background(), msg)

	status, err := f.svc.Apply(context.Background(), a.ID, b.ID, false)
	if err != nil {
		t.Fatalf("unfriend: %v", err)
	}
	if status != domain.StatusDeleteFriend {
		t.Fatalf("expected delete, got %q", status)
	}
	if _, err := f.chats.GetByID(context.Background(), chat.ID); !errors.Is(err, domain.ErrChatNotFound) {
		t.Fatal("private chat must be deleted with the friendship")
	}
	if _, err := f.messages.GetByID(context.Background(), msg.ID); !errors.Is(err, domain.ErrMessageNotFound) {
		t.Fatal("private chat history must be deleted")
	}
	for _, pair := range [][2]int64{{a.ID, b.ID}, {b.ID, a.ID}} {
		if _, err := f.friends.Get(context.Background(), pair[0], pair[1]); !errors.Is(err, domain.ErrFriendshipNotFound) {
			t.Fatalf("row %v must be deleted", pair)
		}
	}
}

func TestFriendSelfRequestRefused(t *testing.T) {
	f := newFriendFixture()
	a := f.users.add("alice")
	if _, err := f.svc.Apply(context.Background(), a.ID, a.ID, true); err == nil {
		t.Fatal("self friendship must be refused")
	}
}
