package contracts

import "context"

// Client is the minimal surface the registry needs to talk to one
// websocket connection.
type Client interface {
	ID() string
	UserID() int64
	Send(ctx context.Context, data []byte) error
	Close()
}

// Registry tracks the single live connection per user and the per-chat
// broadcast groups those connections are subscribed to.
type Registry interface {
	// Register admits a connection. It fails with
	// domain.ErrAlreadyConnected when the user already holds a live
	// connection; the existing session wins.
	Register(c Client) error
	// Unregister removes the connection and every group subscription it
	// holds. Removing an unknown connection is a no-op.
	Unregister(c Client)
	// Lookup returns the live connection for a user, if any.
	Lookup(userID int64) (Client, bool)

	// Subscribe and Unsubscribe are idempotent.
	Subscribe(chatID int64, c Client)
	Unsubscribe(chatID int64, c Client)
	// MembersOf snapshots the connections currently subscribed to a chat.
	MembersOf(chatID int64) []Client
	// OnMembershipChange keeps routing consistent when a user's approved
	// membership in a chat transitions while they are connected. It must
	// be called synchronously with the membership mutation.
	OnMembershipChange(userID, chatID int64, joined bool)
}
