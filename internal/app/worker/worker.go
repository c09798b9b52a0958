package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/Jason-Fu-git/CoTalk-Backend/internal/core/contracts"
	"github.com/Jason-Fu-git/CoTalk-Backend/internal/core/domain"
	"github.com/Jason-Fu-git/CoTalk-Backend/internal/core/services"
)

// SystemWorker consumes the system-message feed. Each entry is rendered
// to a human-readable line, persisted as a system message in the chat's
// history, and broadcast to the chat's live connections. Persistence
// happens here rather than in the workflows so a record survives even
// when nobody in the chat is connected.
type SystemWorker struct {
	log        *slog.Logger
	queue      contracts.EventQueue
	users      domain.UserRepository
	messages   domain.MessageRepository
	dispatcher *services.Dispatcher
	txManager  services.TxRunner
	group      string
}

func NewSystemWorker(
	log *slog.Logger,
	queue contracts.EventQueue,
	users domain.UserRepository,
	messages domain.MessageRepository,
	dispatcher *services.Dispatcher,
	txManager services.TxRunner,
	group string,
) *SystemWorker {
	return &SystemWorker{
		log:        log,
		queue:      queue,
		users:      users,
		messages:   messages,
		dispatcher: dispatcher,
		txManager:  txManager,
		group:      group,
	}
}

// Run subscribes to the feed and blocks until ctx is done.
func (w *SystemWorker) Run(ctx context.Context) error {
	err := w.queue.SubscribeToStream(ctx, services.SystemFeedTopic, w.group, w.ProcessEntry)
	if err != nil {
		return fmt.Errorf("subscribe to system feed: %w", err)
	}
	w.log.InfoContext(ctx, "worker - running", "group", w.group)
	<-ctx.Done()
	return nil
}

// ProcessEntry persists and broadcasts one feed entry, then acknowledges
// and trims it. Returning an error leaves the entry pending for replay.
func (w *SystemWorker) ProcessEntry(ctx context.Context, entryID string, raw []byte) error {
	var entry domain.SystemEntry
	if err := json.Unmarshal(raw, &entry); err != nil {
		// Malformed entries can never succeed; drop them.
		w.log.ErrorContext(ctx, "worker - malformed entry", "entry_id", entryID, "err", err)
		return w.discard(ctx, entryID)
	}
	text, err := w.render(ctx, entry)
	if err != nil {
		return err
	}
	now := time.Now()
	msg := &domain.Message{
		SenderID:   domain.SystemUserID,
		ChatID:     entry.ChatID,
		Text:       text,
		Type:       domain.MessageSystem,
		CreateTime: now,
		UpdateTime: now,
		ReplyTo:    -1,
		IsSystem:   true,
	}
	err = w.txManager.WithTx(ctx, func(txCtx context.Context) error {
		return w.messages.Create(txCtx, msg)
	})
	if err != nil {
		return fmt.Errorf("persist system message: %w", err)
	}
	w.dispatcher.SendToGroup(ctx, entry.ChatID,
		domain.MessageEvent(domain.StatusSendMessage, domain.SystemUserID, entry.ChatID, msg.ID, now))
	return w.discard(ctx, entryID)
}

func (w *SystemWorker) discard(ctx context.Context, entryID string) error {
	if err := w.queue.AcknowledgeMessage(ctx, services.SystemFeedTopic, w.group, entryID); err != nil {
		return err
	}
	return w.queue.DeleteMessage(ctx, services.SystemFeedTopic, entryID)
}

// render resolves user names and formats the history line for an entry.
func (w *SystemWorker) render(ctx context.Context, entry domain.SystemEntry) (string, error) {
	actor, err := w.users.GetByID(ctx, entry.ActorID)
	if err != nil {
		return "", fmt.Errorf("resolve actor %d: %w", entry.ActorID, err)
	}
	switch entry.Action {
	case domain.SystemJoin:
		return fmt.Sprintf("%s joined the chat.", actor.Name), nil
	case domain.SystemKick:
		subject, err := w.users.GetByID(ctx, entry.SubjectID)
		if err != nil {
			return "", fmt.Errorf("resolve subject %d: %w", entry.SubjectID, err)
		}
		return fmt.Sprintf("%s kicked %s out of the chat.", actor.Name, subject.Name), nil
	case domain.SystemPrivilege:
		subject, err := w.users.GetByID(ctx, entry.SubjectID)
		if err != nil {
			return "", fmt.Errorf("resolve subject %d: %w", entry.SubjectID, err)
		}
		return fmt.Sprintf("%s changed %s's privilege to %s.", actor.Name, subject.Name, entry.Role), nil
	case domain.SystemWithdraw:
		return fmt.Sprintf("%s withdrew a message.", actor.Name), nil
	case domain.SystemLeave:
		return fmt.Sprintf("%s left the chat.", actor.Name), nil
	default:
		return "", fmt.Errorf("unknown system action %q", entry.Action)
	}
}
