package contracts

import "context"

// AsyncWorker consumes the system-message feed: each entry is persisted
// as a system message in the chat's history and broadcast to the chat's
// live connections.
type AsyncWorker interface {
	// Run starts the consumer loop and blocks until ctx is done.
	Run(ctx context.Context) error
	// ProcessEntry handles a single feed entry, then acknowledges and
	// trims it from the stream.
	ProcessEntry(ctx context.Context, entryID string, raw []byte) error
}
