package contracts

import (
	"context"
	"time"
)

// PresenceStore tracks which users are online with TTL-based entries.
type PresenceStore interface {
	// UpdateOnlineStatus refreshes the user's heartbeat; a user is online
	// while their last heartbeat is younger than the inactivity threshold.
	UpdateOnlineStatus(ctx context.Context, userID int64, ttl time.Duration) error
	// OnlineUsers returns the ids of users with a fresh heartbeat.
	OnlineUsers(ctx context.Context) ([]int64, error)
	// ClearUser drops the user's presence entry on disconnect.
	ClearUser(ctx context.Context, userID int64) error
}
