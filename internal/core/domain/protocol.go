package domain

import (
	"encoding/json"
	"time"
)

// Event types pushed over a connection or persisted as notifications.
type EventType string

const (
	EventChatManagement EventType = "chat.management"
	EventChatMessage    EventType = "chat.message"
	EventFriendRequest  EventType = "user.friend.request"
)

// EventStatus is the action-specific sub-tag of an envelope.
type EventStatus string

const (
	StatusMakeInvitation  EventStatus = "make invitation"
	StatusJoinChat        EventStatus = "join chat"
	StatusKickedOut       EventStatus = "kicked out"
	StatusChangeToMember  EventStatus = "change to member"
	StatusChangeToAdmin   EventStatus = "change to admin"
	StatusChangeToOwner   EventStatus = "change to owner"
	StatusSendMessage     EventStatus = "send message"
	StatusReadMessage     EventStatus = "read message"
	StatusWithdrawMessage EventStatus = "withdraw message"
	StatusMakeRequest     EventStatus = "make request"
	StatusAcceptRequest   EventStatus = "accept request"
	StatusRejectRequest   EventStatus = "reject request"
	StatusDeleteFriend    EventStatus = "delete"
)

// Envelope is the canonical event record. The same wire bytes are used
// whether the event is pushed over a live connection or stored as a
// notification's content, so a client reconstructs identical state from
// either path.
type Envelope struct {
	Type       EventType   `json:"type"`
	Status     EventStatus `json:"status"`
	ActorID    int64       `json:"user_id"`
	ChatID     int64       `json:"chat_id,omitempty"`
	MsgID      int64       `json:"msg_id,omitempty"`
	UpdateTime float64     `json:"update_time,omitempty"`
	IsApproved *bool       `json:"is_approved,omitempty"`
}

// Encode is the single serialization used by both delivery paths.
func (e Envelope) Encode() []byte {
	data, _ := json.Marshal(e)
	return data
}

// ManagementEvent builds a chat.management envelope.
func ManagementEvent(status EventStatus, actorID, chatID int64, approved bool) Envelope {
	return Envelope{
		Type:       EventChatManagement,
		Status:     status,
		ActorID:    actorID,
		ChatID:     chatID,
		IsApproved: &approved,
	}
}

// MessageEvent builds a chat.message envelope.
func MessageEvent(status EventStatus, actorID, chatID, msgID int64, updateTime time.Time) Envelope {
	return Envelope{
		Type:       EventChatMessage,
		Status:     status,
		ActorID:    actorID,
		ChatID:     chatID,
		MsgID:      msgID,
		UpdateTime: UnixSeconds(updateTime),
	}
}

// FriendEvent builds a user.friend.request envelope.
func FriendEvent(status EventStatus, actorID int64, approved bool) Envelope {
	return Envelope{
		Type:       EventFriendRequest,
		Status:     status,
		ActorID:    actorID,
		IsApproved: &approved,
	}
}

// UnixSeconds renders a timestamp the way the wire protocol expects:
// fractional seconds since the epoch.
func UnixSeconds(t time.Time) float64 {
	return float64(t.UnixMilli()) / 1000
}

// SystemAction names a state change that must be recorded as a system
// message in the chat's history.
type SystemAction string

const (
	SystemJoin      SystemAction = "join"
	SystemKick      SystemAction = "kick"
	SystemPrivilege SystemAction = "privilege"
	SystemWithdraw  SystemAction = "withdraw"
	SystemLeave     SystemAction = "leave"
)

// SystemEntry is the payload published to the system-message feed by the
// domain workflows and consumed by the worker.
type SystemEntry struct {
	ChatID    int64        `json:"chat_id"`
	ActorID   int64        `json:"actor_id"`
	SubjectID int64        `json:"subject_id,omitempty"`
	Action    SystemAction `json:"action"`
	Role      Role         `json:"role,omitempty"`
}
