package domain

import "time"

// SystemUserID is the reserved sender id for system messages
// (join/kick/privilege/withdraw records written into chat history).
const SystemUserID int64 = 0

const (
	MaxNameLength    = 50
	MaxEmailLength   = 100
	MaxMessageLength = 500
)

// User is the persisted account identity.
type User struct {
	ID           int64
	Name         string
	Password     string
	Email        string
	RegisterTime time.Time
	LoginTime    time.Time
}

// Chat is a conversation entity. Private chats are the 2-person chats
// created on mutual friendship approval; their lifecycle is bound to the
// friendship, so they cannot be left or deleted directly.
type Chat struct {
	ID         int64
	Name       string
	IsPrivate  bool
	CreateTime time.Time
}

// Role is the membership privilege level inside a chat.
type Role string

const (
	RoleOwner  Role = "owner"
	RoleAdmin  Role = "admin"
	RoleMember Role = "member"
)

// AdminLimit caps the number of admins per chat.
const AdminLimit = 3

// Membership links a user to a chat. An unapproved row is a pending
// invitation awaiting the user's accept/reject. There is exactly one row
// per (user, chat) pair and exactly one owner per non-empty chat.
type Membership struct {
	UserID     int64
	ChatID     int64
	Role       Role
	Approved   bool
	UpdateTime time.Time
}

// MessageType classifies message content.
type MessageType string

const (
	MessageText        MessageType = "text"
	MessageGroupNotice MessageType = "group_notice"
	MessageImage       MessageType = "image"
	MessageAudio       MessageType = "audio"
	MessageVideo       MessageType = "video"
	MessageOther       MessageType = "other"
	MessageSystem      MessageType = "system"
)

// Message is a chat entry. ReadBy grows monotonically; HiddenFor is the
// per-user soft delete and never affects other members' view. ReplyTo is
// -1 when the message replies to nothing.
type Message struct {
	ID         int64
	SenderID   int64
	ChatID     int64
	Text       string
	Type       MessageType
	CreateTime time.Time
	UpdateTime time.Time
	ReadBy     []int64
	HiddenFor  []int64
	ReplyTo    int64
	IsSystem   bool
}

// Friendship is one directed row of the symmetric pair. A mutual
// friendship holds two approved rows (A→B and B→A); a single unapproved
// row (A→B) is A's pending request to B.
type Friendship struct {
	UserID     int64
	FriendID   int64
	Approved   bool
	UpdateTime time.Time
}

// Notification is the durable fallback for direct events aimed at users
// without a live connection. Content is the serialized event envelope,
// byte-identical to what a live push would have carried.
type Notification struct {
	ID         int64
	SenderID   int64
	ReceiverID int64
	Content    []byte
	CreateTime time.Time
	IsRead     bool
}
