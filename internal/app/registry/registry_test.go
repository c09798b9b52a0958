package registry

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/Jason-Fu-git/CoTalk-Backend/internal/core/domain"
)

type stubClient struct {
	id     string
	userID int64
}

func (c *stubClient) ID() string                               { return c.id }
func (c *stubClient) UserID() int64                            { return c.userID }
func (c *stubClient) Send(ctx context.Context, b []byte) error { return nil }
func (c *stubClient) Close()                                   {}

func TestRegisterRejectsSecondConnection(t *testing.T) {
	r := NewRegistry()
	first := &stubClient{id: "a", userID: 1}
	second := &stubClient{id: "b", userID: 1}

	if err := r.Register(first); err != nil {
		t.Fatalf("first register: %v", err)
	}
	if err := r.Register(second); !errors.Is(err, domain.ErrAlreadyConnected) {
		t.Fatalf("expected ErrAlreadyConnected, got %v", err)
	}
	got, ok := r.Lookup(1)
	if !ok || got.ID() != "a" {
		t.Fatal("existing session must win")
	}
}

func TestRegisterConcurrentSingleWinner(t *testing.T) {
	r := NewRegistry()
	const n = 64
	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			c := &stubClient{id: fmt.Sprintf("c%d", i), userID: 7}
			if err := r.Register(c); err == nil {
				wins.Add(1)
			}
		}(i)
	}
	wg.Wait()
	if wins.Load() != 1 {
		t.Fatalf("expected exactly 1 winner, got %d", wins.Load())
	}
}

func TestUnregisterOnlyEvictsOwnConnection(t *testing.T) {
	r := NewRegistry()
	live := &stubClient{id: "live", userID: 1}
	loser := &stubClient{id: "loser", userID: 1}

	if err := r.Register(live); err != nil {
		t.Fatalf("register: %v", err)
	}
	// A rejected duplicate cleaning up after itself must not evict the
	// live session.
	r.Unregister(loser)
	if _, ok := r.Lookup(1); !ok {
		t.Fatal("live session was evicted by a stale unregister")
	}
	r.Unregister(live)
	if _, ok := r.Lookup(1); ok {
		t.Fatal("live session still present after its own unregister")
	}
}

func TestUnregisterDetachesFromAllGroups(t *testing.T) {
	r := NewRegistry()
	c := &stubClient{id: "a", userID: 1}
	if err := r.Register(c); err != nil {
		t.Fatalf("register: %v", err)
	}
	r.Subscribe(10, c)
	r.Subscribe(20, c)
	if len(r.MembersOf(10)) != 1 || len(r.MembersOf(20)) != 1 {
		t.Fatal("subscriptions missing")
	}
	r.Unregister(c)
	if len(r.MembersOf(10)) != 0 || len(r.MembersOf(20)) != 0 {
		t.Fatal("unregister must detach from every group")
	}
}

func TestSubscribeIdempotent(t *testing.T) {
	r := NewRegistry()
	c := &stubClient{id: "a", userID: 1}
	r.Subscribe(10, c)
	r.Subscribe(10, c)
	if got := len(r.MembersOf(10)); got != 1 {
		t.Fatalf("duplicate subscribe must collapse, got %d members", got)
	}
	r.Unsubscribe(10, c)
	r.Unsubscribe(10, c)
	if got := len(r.MembersOf(10)); got != 0 {
		t.Fatalf("unsubscribe must be idempotent, got %d members", got)
	}
}

func TestOnMembershipChange(t *testing.T) {
	r := NewRegistry()
	c := &stubClient{id: "a", userID: 1}
	if err := r.Register(c); err != nil {
		t.Fatalf("register: %v", err)
	}
	r.OnMembershipChange(1, 10, true)
	if len(r.MembersOf(10)) != 1 {
		t.Fatal("join must attach the live connection")
	}
	r.OnMembershipChange(1, 10, false)
	if len(r.MembersOf(10)) != 0 {
		t.Fatal("removal must detach the live connection")
	}
	// Without a live connection the transition is a no-op.
	r.OnMembershipChange(2, 10, true)
	if len(r.MembersOf(10)) != 0 {
		t.Fatal("offline user must not be attached")
	}
}
