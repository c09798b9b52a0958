package services

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/Jason-Fu-git/CoTalk-Backend/internal/core/contracts"
	"github.com/Jason-Fu-git/CoTalk-Backend/internal/core/domain"
)

// SystemFeedTopic is the stream the domain workflows publish system
// entries to and the worker consumes from.
const SystemFeedTopic = "system"

// SystemFeed publishes system-message entries. The worker persists each
// entry as a system message in the chat's history and broadcasts it, so
// the record survives even when nobody in the chat is connected.
type SystemFeed struct {
	queue contracts.EventQueue
	log   *slog.Logger
}

func NewSystemFeed(log *slog.Logger, queue contracts.EventQueue) *SystemFeed {
	return &SystemFeed{queue: queue, log: log}
}

func (f *SystemFeed) Record(ctx context.Context, entry domain.SystemEntry) {
	raw, _ := json.Marshal(entry)
	if err := f.queue.PublishToStream(ctx, SystemFeedTopic, raw); err != nil {
		// The mutation is already committed; losing the system record is
		// logged, not rolled back.
		f.log.ErrorContext(ctx, "feed - record - publish failed",
			"chat_id", entry.ChatID, "action", entry.Action, "err", err)
	}
}
