package registry

import (
	"sync"

	"github.com/Jason-Fu-git/CoTalk-Backend/internal/core/contracts"
	"github.com/Jason-Fu-git/CoTalk-Backend/internal/core/domain"
)

// Registry is the in-memory connection registry and group membership
// router. conns holds at most one client per user id; groups maps a chat
// id to the clients subscribed to it; subs is the reverse index used to
// detach a connection from every group on unregister.
type Registry struct {
	mu     sync.RWMutex
	conns  map[int64]contracts.Client
	groups map[int64]map[string]contracts.Client
	subs   map[string]map[int64]struct{}
}

func NewRegistry() *Registry {
	return &Registry{
		conns:  make(map[int64]contracts.Client),
		groups: make(map[int64]map[string]contracts.Client),
		subs:   make(map[string]map[int64]struct{}),
	}
}

// Register admits a connection under the one-connection-per-user rule.
// Check and insert happen under one critical section so two concurrent
// handshakes for the same user cannot both win.
func (r *Registry) Register(c contracts.Client) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.conns[c.UserID()]; ok {
		return domain.ErrAlreadyConnected
	}
	r.conns[c.UserID()] = c
	return nil
}

// Unregister removes the connection and all its group subscriptions.
// Only the currently registered connection for the user is removed, so a
// rejected duplicate handshake cannot evict the live session.
func (r *Registry) Unregister(c contracts.Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cur, ok := r.conns[c.UserID()]; ok && cur.ID() == c.ID() {
		delete(r.conns, c.UserID())
	}
	for chatID := range r.subs[c.ID()] {
		r.detach(chatID, c)
	}
	delete(r.subs, c.ID())
}

func (r *Registry) Lookup(userID int64) (contracts.Client, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.conns[userID]
	return c, ok
}

func (r *Registry) Subscribe(chatID int64, c contracts.Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.attach(chatID, c)
}

func (r *Registry) Unsubscribe(chatID int64, c contracts.Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.detach(chatID, c)
	if set := r.subs[c.ID()]; set != nil {
		delete(set, chatID)
	}
}

// MembersOf snapshots the group so callers can push outside the lock.
func (r *Registry) MembersOf(chatID int64) []contracts.Client {
	r.mu.RLock()
	defer r.mu.RUnlock()
	members := make([]contracts.Client, 0, len(r.groups[chatID]))
	for _, c := range r.groups[chatID] {
		members = append(members, c)
	}
	return members
}

// OnMembershipChange attaches or detaches the user's live connection
// when their approved membership in a chat transitions. Without a live
// connection it is a no-op; the subscription set is recomputed at the
// next connect anyway.
func (r *Registry) OnMembershipChange(userID, chatID int64, joined bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.conns[userID]
	if !ok {
		return
	}
	if joined {
		r.attach(chatID, c)
	} else {
		r.detach(chatID, c)
		if set := r.subs[c.ID()]; set != nil {
			delete(set, chatID)
		}
	}
}

// attach and detach assume r.mu is held.

func (r *Registry) attach(chatID int64, c contracts.Client) {
	if r.groups[chatID] == nil {
		r.groups[chatID] = make(map[string]contracts.Client)
	}
	r.groups[chatID][c.ID()] = c
	if r.subs[c.ID()] == nil {
		r.subs[c.ID()] = make(map[int64]struct{})
	}
	r.subs[c.ID()][chatID] = struct{}{}
}

func (r *Registry) detach(chatID int64, c contracts.Client) {
	if g := r.groups[chatID]; g != nil {
		delete(g, c.ID())
		if len(g) == 0 {
			delete(r.groups, chatID)
		}
	}
}
