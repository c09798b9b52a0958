package contracts

import "context"

// EventQueue is the durable stream the domain workflows publish system
// entries to and the worker consumes from.
type EventQueue interface {
	// Producer side
	PublishToStream(ctx context.Context, topic string, payload []byte) error
	// Consumer side; the handler is invoked once per entry read from the
	// consumer group.
	SubscribeToStream(ctx context.Context, topic string, conGroup string, handler func(ctx context.Context, entryID string, data []byte) error) error
	// AcknowledgeMessage removes the entry from the group's pending list.
	AcknowledgeMessage(ctx context.Context, topic, conGroup, entryID string) error
	// DeleteMessage trims the processed entry from the stream.
	DeleteMessage(ctx context.Context, topic, entryID string) error
}
