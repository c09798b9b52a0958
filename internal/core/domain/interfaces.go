package domain

import (
	"context"
	"time"
)

// UserRepository handles account persistence.
type UserRepository interface {
	Create(ctx context.Context, u *User) error
	GetByID(ctx context.Context, id int64) (*User, error)
	GetByName(ctx context.Context, name string) (*User, error)
	NameExists(ctx context.Context, name string) (bool, error)
	Update(ctx context.Context, u *User) error
	Delete(ctx context.Context, id int64) error
}

// ChatRepository handles chat lifecycle.
type ChatRepository interface {
	Create(ctx context.Context, c *Chat) error
	GetByID(ctx context.Context, id int64) (*Chat, error)
	NameExists(ctx context.Context, name string) (bool, error)
	Delete(ctx context.Context, id int64) error
	// FindPrivateChat locates the private 2-person chat both users are
	// approved members of, or returns ErrChatNotFound.
	FindPrivateChat(ctx context.Context, userID, friendID int64) (*Chat, error)
}

// MembershipRepository is the authoritative chat-membership relation the
// router and the state machines consult.
type MembershipRepository interface {
	Get(ctx context.Context, userID, chatID int64) (*Membership, error)
	Create(ctx context.Context, m *Membership) error
	Update(ctx context.Context, m *Membership) error
	Delete(ctx context.Context, userID, chatID int64) error
	DeleteByChat(ctx context.Context, chatID int64) error
	ListByChat(ctx context.Context, chatID int64, approvedOnly bool) ([]Membership, error)
	// ListChatIDs returns every chat the user holds an approved
	// membership in; this is what connection subscriptions are
	// recomputed from at connect time.
	ListChatIDs(ctx context.Context, userID int64) ([]int64, error)
	CountByRole(ctx context.Context, chatID int64, role Role) (int, error)
	// SeniorByRole returns the longest-standing approved membership with
	// the given role, or ErrMembershipNotFound.
	SeniorByRole(ctx context.Context, chatID int64, role Role) (*Membership, error)
}

// MessageFilter narrows a history query. Zero values mean no filter.
type MessageFilter struct {
	HideFor  int64
	Text     string
	SenderID int64
	Before   time.Time
	After    time.Time
}

// MessageRepository handles message persistence and the read/hidden sets.
type MessageRepository interface {
	Create(ctx context.Context, m *Message) error
	GetByID(ctx context.Context, id int64) (*Message, error)
	Delete(ctx context.Context, id int64) error
	DeleteByChat(ctx context.Context, chatID int64) error
	// MarkRead adds the user to the read set and bumps update_time;
	// it reports false when the user had already read the message.
	MarkRead(ctx context.Context, msgID, userID int64, at time.Time) (bool, error)
	Hide(ctx context.Context, msgID, userID int64) error
	ListByChat(ctx context.Context, chatID int64, f MessageFilter) ([]Message, error)
}

// FriendshipRepository stores the directed friendship rows.
type FriendshipRepository interface {
	Get(ctx context.Context, userID, friendID int64) (*Friendship, error)
	Create(ctx context.Context, f *Friendship) error
	Update(ctx context.Context, f *Friendship) error
	Delete(ctx context.Context, userID, friendID int64) error
	ListFriendIDs(ctx context.Context, userID int64) ([]int64, error)
}

// NotificationRepository is the durable fallback store for direct events.
type NotificationRepository interface {
	Create(ctx context.Context, n *Notification) error
	ListByReceiver(ctx context.Context, receiverID int64, unreadOnly bool) ([]Notification, error)
	MarkRead(ctx context.Context, id, receiverID int64) error
	Delete(ctx context.Context, id, receiverID int64) error
}
