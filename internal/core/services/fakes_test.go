package services

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/Jason-Fu-git/CoTalk-Backend/internal/core/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testTime() time.Time {
	return time.Date(2025, 3, 14, 12, 0, 0, 0, time.UTC)
}

// passTx runs the function directly; the fakes have no transactions.
type passTx struct{}

func (passTx) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type memUsers struct {
	m    map[int64]*domain.User
	next int64
}

func newMemUsers() *memUsers { return &memUsers{m: make(map[int64]*domain.User)} }

func (r *memUsers) add(name string) *domain.User {
	u := &domain.User{Name: name, Password: "pw", RegisterTime: time.Now()}
	_ = r.Create(context.Background(), u)
	return u
}

func (r *memUsers) Create(ctx context.Context, u *domain.User) error {
	r.next++
	u.ID = r.next
	cp := *u
	r.m[u.ID] = &cp
	return nil
}

func (r *memUsers) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	u, ok := r.m[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func (r *memUsers) GetByName(ctx context.Context, name string) (*domain.User, error) {
	for _, u := range r.m {
		if u.Name == name {
			cp := *u
			return &cp, nil
		}
	}
	return nil, domain.ErrUserNotFound
}

func (r *memUsers) NameExists(ctx context.Context, name string) (bool, error) {
	_, err := r.GetByName(ctx, name)
	return err == nil, nil
}

func (r *memUsers) Update(ctx context.Context, u *domain.User) error {
	if _, ok := r.m[u.ID]; !ok {
		return domain.ErrUserNotFound
	}
	cp := *u
	r.m[u.ID] = &cp
	return nil
}

func (r *memUsers) Delete(ctx context.Context, id int64) error {
	if _, ok := r.m[id]; !ok {
		return domain.ErrUserNotFound
	}
	delete(r.m, id)
	return nil
}

type memChats struct {
	m       map[int64]*domain.Chat
	members *memMembers
	next    int64
}

func newMemChats(members *memMembers) *memChats {
	return &memChats{m: make(map[int64]*domain.Chat), members: members}
}

func (r *memChats) Create(ctx context.Context, c *domain.Chat) error {
	r.next++
	c.ID = r.next
	cp := *c
	r.m[c.ID] = &cp
	return nil
}

func (r *memChats) GetByID(ctx context.Context, id int64) (*domain.Chat, error) {
	c, ok := r.m[id]
	if !ok {
		return nil, domain.ErrChatNotFound
	}
	cp := *c
	return &cp, nil
}

func (r *memChats) NameExists(ctx context.Context, name string) (bool, error) {
	for _, c := range r.m {
		if !c.IsPrivate && c.Name == name {
			return true, nil
		}
	}
	return false, nil
}

func (r *memChats) Delete(ctx context.Context, id int64) error {
	if _, ok := r.m[id]; !ok {
		return domain.ErrChatNotFound
	}
	delete(r.m, id)
	return nil
}

func (r *memChats) FindPrivateChat(ctx context.Context, userID, friendID int64) (*domain.Chat, error) {
	for id, c := range r.m {
		if !c.IsPrivate {
			continue
		}
		a, errA := r.members.Get(ctx, userID, id)
		b, errB := r.members.Get(ctx, friendID, id)
		if errA == nil && errB == nil && a.Approved && b.Approved {
			cp := *c
			return &cp, nil
		}
	}
	return nil, domain.ErrChatNotFound
}

type memberKey struct{ userID, chatID int64 }

type memMembers struct {
	m map[memberKey]*domain.Membership
}

func newMemMembers() *memMembers { return &memMembers{m: make(map[memberKey]*domain.Membership)} }

func (r *memMembers) put(userID, chatID int64, role domain.Role, approved bool, at time.Time) {
	r.m[memberKey{userID, chatID}] = &domain.Membership{
		UserID: userID, ChatID: chatID, Role: role, Approved: approved, UpdateTime: at,
	}
}

func (r *memMembers) Get(ctx context.Context, userID, chatID int64) (*domain.Membership, error) {
	m, ok := r.m[memberKey{userID, chatID}]
	if !ok {
		return nil, domain.ErrMembershipNotFound
	}
	cp := *m
	return &cp, nil
}

func (r *memMembers) Create(ctx context.Context, m *domain.Membership) error {
	cp := *m
	r.m[memberKey{m.UserID, m.ChatID}] = &cp
	return nil
}

func (r *memMembers) Update(ctx context.Context, m *domain.Membership) error {
	if _, ok := r.m[memberKey{m.UserID, m.ChatID}]; !ok {
		return domain.ErrMembershipNotFound
	}
	cp := *m
	r.m[memberKey{m.UserID, m.ChatID}] = &cp
	return nil
}

func (r *memMembers) Delete(ctx context.Context, userID, chatID int64) error {
	if _, ok := r.m[memberKey{userID, chatID}]; !ok {
		return domain.ErrMembershipNotFound
	}
	delete(r.m, memberKey{userID, chatID})
	return nil
}

func (r *memMembers) DeleteByChat(ctx context.Context, chatID int64) error {
	for k := range r.m {
		if k.chatID == chatID {
			delete(r.m, k)
		}
	}
	return nil
}

func (r *memMembers) ListByChat(ctx context.Context, chatID int64, approvedOnly bool) ([]domain.Membership, error) {
	var out []domain.Membership
	for k, m := range r.m {
		if k.chatID == chatID && (m.Approved || !approvedOnly) {
			out = append(out, *m)
		}
	}
	return out, nil
}

func (r *memMembers) ListChatIDs(ctx context.Context, userID int64) ([]int64, error) {
	var out []int64
	for k, m := range r.m {
		if k.userID == userID && m.Approved {
			out = append(out, k.chatID)
		}
	}
	return out, nil
}

func (r *memMembers) CountByRole(ctx context.Context, chatID int64, role domain.Role) (int, error) {
	count := 0
	for k, m := range r.m {
		if k.chatID == chatID && m.Role == role && m.Approved {
			count++
		}
	}
	return count, nil
}

func (r *memMembers) SeniorByRole(ctx context.Context, chatID int64, role domain.Role) (*domain.Membership, error) {
	var senior *domain.Membership
	for k, m := range r.m {
		if k.chatID != chatID || m.Role != role || !m.Approved {
			continue
		}
		if senior == nil || m.UpdateTime.Before(senior.UpdateTime) {
			senior = m
		}
	}
	if senior == nil {
		return nil, domain.ErrMembershipNotFound
	}
	cp := *senior
	return &cp, nil
}

type memMessages struct {
	m    map[int64]*domain.Message
	next int64
}

func newMemMessages() *memMessages { return &memMessages{m: make(map[int64]*domain.Message)} }

func (r *memMessages) Create(ctx context.Context, m *domain.Message) error {
	r.next++
	m.ID = r.next
	cp := *m
	cp.ReadBy = append([]int64(nil), m.ReadBy...)
	r.m[m.ID] = &cp
	return nil
}

func (r *memMessages) GetByID(ctx context.Context, id int64) (*domain.Message, error) {
	m, ok := r.m[id]
	if !ok {
		return nil, domain.ErrMessageNotFound
	}
	cp := *m
	cp.ReadBy = append([]int64(nil), m.ReadBy...)
	cp.HiddenFor = append([]int64(nil), m.HiddenFor...)
	return &cp, nil
}

func (r *memMessages) Delete(ctx context.Context, id int64) error {
	if _, ok := r.m[id]; !ok {
		return domain.ErrMessageNotFound
	}
	delete(r.m, id)
	return nil
}

func (r *memMessages) DeleteByChat(ctx context.Context, chatID int64) error {
	for id, m := range r.m {
		if m.ChatID == chatID {
			delete(r.m, id)
		}
	}
	return nil
}

func (r *memMessages) MarkRead(ctx context.Context, msgID, userID int64, at time.Time) (bool, error) {
	m, ok := r.m[msgID]
	if !ok {
		return false, domain.ErrMessageNotFound
	}
	for _, id := range m.ReadBy {
		if id == userID {
			return false, nil
		}
	}
	m.ReadBy = append(m.ReadBy, userID)
	m.UpdateTime = at
	return true, nil
}

func (r *memMessages) Hide(ctx context.Context, msgID, userID int64) error {
	m, ok := r.m[msgID]
	if !ok {
		return domain.ErrMessageNotFound
	}
	for _, id := range m.HiddenFor {
		if id == userID {
			return nil
		}
	}
	m.HiddenFor = append(m.HiddenFor, userID)
	return nil
}

func (r *memMessages) ListByChat(ctx context.Context, chatID int64, f domain.MessageFilter) ([]domain.Message, error) {
	var out []domain.Message
	for _, m := range r.m {
		if m.ChatID != chatID {
			continue
		}
		hidden := false
		for _, id := range m.HiddenFor {
			if id == f.HideFor {
				hidden = true
			}
		}
		if hidden {
			continue
		}
		if f.SenderID != 0 && m.SenderID != f.SenderID {
			continue
		}
		out = append(out, *m)
	}
	return out, nil
}

type friendKey struct{ userID, friendID int64 }

type memFriends struct {
	m map[friendKey]*domain.Friendship
}

func newMemFriends() *memFriends { return &memFriends{m: make(map[friendKey]*domain.Friendship)} }

func (r *memFriends) Get(ctx context.Context, userID, friendID int64) (*domain.Friendship, error) {
	f, ok := r.m[friendKey{userID, friendID}]
	if !ok {
		return nil, domain.ErrFriendshipNotFound
	}
	cp := *f
	return &cp, nil
}

func (r *memFriends) Create(ctx context.Context, f *domain.Friendship) error {
	cp := *f
	r.m[friendKey{f.UserID, f.FriendID}] = &cp
	return nil
}

func (r *memFriends) Update(ctx context.Context, f *domain.Friendship) error {
	if _, ok := r.m[friendKey{f.UserID, f.FriendID}]; !ok {
		return domain.ErrFriendshipNotFound
	}
	cp := *f
	r.m[friendKey{f.UserID, f.FriendID}] = &cp
	return nil
}

func (r *memFriends) Delete(ctx context.Context, userID, friendID int64) error {
	if _, ok := r.m[friendKey{userID, friendID}]; !ok {
		return domain.ErrFriendshipNotFound
	}
	delete(r.m, friendKey{userID, friendID})
	return nil
}

func (r *memFriends) ListFriendIDs(ctx context.Context, userID int64) ([]int64, error) {
	var out []int64
	for k, f := range r.m {
		if k.userID != userID || !f.Approved {
			continue
		}
		back, ok := r.m[friendKey{k.friendID, k.userID}]
		if ok && back.Approved {
			out = append(out, k.friendID)
		}
	}
	return out, nil
}

type memNotifs struct {
	m    map[int64]*domain.Notification
	next int64
}

func newMemNotifs() *memNotifs { return &memNotifs{m: make(map[int64]*domain.Notification)} }

func (r *memNotifs) Create(ctx context.Context, n *domain.Notification) error {
	r.next++
	n.ID = r.next
	cp := *n
	cp.Content = append([]byte(nil), n.Content...)
	r.m[n.ID] = &cp
	return nil
}

func (r *memNotifs) ListByReceiver(ctx context.Context, receiverID int64, unreadOnly bool) ([]domain.Notification, error) {
	var out []domain.Notification
	for _, n := range r.m {
		if n.ReceiverID == receiverID && (!n.IsRead || !unreadOnly) {
			out = append(out, *n)
		}
	}
	return out, nil
}

func (r *memNotifs) MarkRead(ctx context.Context, id, receiverID int64) error {
	n, ok := r.m[id]
	if !ok || n.ReceiverID != receiverID {
		return domain.ErrNotificationNotFound
	}
	n.IsRead = true
	return nil
}

func (r *memNotifs) Delete(ctx context.Context, id, receiverID int64) error {
	n, ok := r.m[id]
	if !ok || n.ReceiverID != receiverID {
		return domain.ErrNotificationNotFound
	}
	delete(r.m, id)
	return nil
}

// fakeClient records everything pushed to it.
type fakeClient struct {
	mu     sync.Mutex
	id     string
	userID int64
	sent   [][]byte
	closed bool
}

func newFakeClient(id string, userID int64) *fakeClient {
	return &fakeClient{id: id, userID: userID}
}

func (c *fakeClient) ID() string    { return c.id }
func (c *fakeClient) UserID() int64 { return c.userID }

func (c *fakeClient) Send(ctx context.Context, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, append([]byte(nil), data...))
	return nil
}

func (c *fakeClient) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
}

func (c *fakeClient) sentCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.sent)
}

func (c *fakeClient) lastSent() []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.sent) == 0 {
		return nil
	}
	return c.sent[len(c.sent)-1]
}

// fakePresence is a static online set.
type fakePresence struct {
	online []int64
	err    error
}

func (p *fakePresence) UpdateOnlineStatus(ctx context.Context, userID int64, ttl time.Duration) error {
	return p.err
}

func (p *fakePresence) OnlineUsers(ctx context.Context) ([]int64, error) {
	return p.online, p.err
}

func (p *fakePresence) ClearUser(ctx context.Context, userID int64) error {
	return p.err
}

// fakeQueue records published entries per topic.
type fakeQueue struct {
	mu      sync.Mutex
	entries map[string][][]byte
}

func newFakeQueue() *fakeQueue { return &fakeQueue{entries: make(map[string][][]byte)} }

func (q *fakeQueue) PublishToStream(ctx context.Context, topic string, payload []byte) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.entries[topic] = append(q.entries[topic], append([]byte(nil), payload...))
	return nil
}

func (q *fakeQueue) SubscribeToStream(ctx context.Context, topic, conGroup string, handler func(ctx context.Context, entryID string, data []byte) error) error {
	return nil
}

func (q *fakeQueue) AcknowledgeMessage(ctx context.Context, topic, conGroup, entryID string) error {
	return nil
}

func (q *fakeQueue) DeleteMessage(ctx context.Context, topic, entryID string) error {
	return nil
}

func (q *fakeQueue) published(topic string) [][]byte {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.entries[topic]
}
