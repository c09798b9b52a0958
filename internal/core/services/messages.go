package services

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/Jason-Fu-git/CoTalk-Backend/internal/core/domain"
)

// MessageService owns the message lifecycle: send, read receipts,
// withdrawal and the per-user hide. Reads and receipts are broadcast to
// the chat group; offline members reconstruct them from history.
type MessageService struct {
	log        *slog.Logger
	messages   domain.MessageRepository
	members    domain.MembershipRepository
	chats      domain.ChatRepository
	dispatcher *Dispatcher
	feed       *SystemFeed
	txManager  TxRunner

	withdrawWindow time.Duration
	now            func() time.Time
}

func NewMessageService(
	log *slog.Logger,
	messages domain.MessageRepository,
	members domain.MembershipRepository,
	chats domain.ChatRepository,
	dispatcher *Dispatcher,
	feed *SystemFeed,
	txManager TxRunner,
	withdrawWindow time.Duration,
) *MessageService {
	return &MessageService{
		log:            log,
		messages:       messages,
		members:        members,
		chats:          chats,
		dispatcher:     dispatcher,
		feed:           feed,
		txManager:      txManager,
		withdrawWindow: withdrawWindow,
		now:            time.Now,
	}
}

func (s *MessageService) requireMember(ctx context.Context, userID, chatID int64) (*domain.Membership, error) {
	m, err := s.members.Get(ctx, userID, chatID)
	if err != nil {
		return nil, err
	}
	if !m.Approved {
		return nil, domain.ErrNotMember
	}
	return m, nil
}

// Send persists a message and broadcasts a `send message` event to the
// chat group. The sender starts in the read set.
func (s *MessageService) Send(
	ctx context.Context,
	senderID, chatID int64,
	text string,
	msgType domain.MessageType,
	replyTo int64,
) (*domain.Message, error) {
	ctx, span := tracer.Start(ctx, "MessageService.Send", trace.WithAttributes(
		attribute.Int64("chat_id", chatID),
		attribute.Int64("sender_id", senderID),
	))
	defer span.End()
	if len(text) == 0 || len(text) > domain.MaxMessageLength {
		return nil, domain.ErrInvalidMessage
	}
	switch msgType {
	case "":
		msgType = domain.MessageText
	case domain.MessageText, domain.MessageGroupNotice, domain.MessageImage,
		domain.MessageAudio, domain.MessageVideo, domain.MessageOther:
	default:
		// Covers unknown strings and the system type, which only the
		// worker may produce.
		return nil, domain.ErrInvalidMessage
	}
	m, err := s.requireMember(ctx, senderID, chatID)
	if err != nil {
		return nil, err
	}
	if msgType == domain.MessageGroupNotice && m.Role == domain.RoleMember {
		return nil, domain.ErrNoPrivilege
	}
	var msg *domain.Message
	err = s.txManager.WithTx(ctx, func(txCtx context.Context) error {
		if replyTo > 0 {
			parent, err := s.messages.GetByID(txCtx, replyTo)
			if err != nil {
				return err
			}
			if parent.ChatID != chatID {
				return domain.ErrMessageNotFound
			}
		} else {
			replyTo = -1
		}
		now := s.now()
		msg = &domain.Message{
			SenderID:   senderID,
			ChatID:     chatID,
			Text:       text,
			Type:       msgType,
			CreateTime: now,
			UpdateTime: now,
			ReadBy:     []int64{senderID},
			ReplyTo:    replyTo,
		}
		return s.messages.Create(txCtx, msg)
	})
	if err != nil {
		span.RecordError(err)
		s.log.ErrorContext(ctx, "messages - send - failed", "chat_id", chatID, "sender_id", senderID, "err", err)
		return nil, err
	}
	s.dispatcher.SendToGroup(ctx, chatID,
		domain.MessageEvent(domain.StatusSendMessage, senderID, chatID, msg.ID, msg.UpdateTime))
	s.log.InfoContext(ctx, "messages - send - success", "chat_id", chatID, "msg_id", msg.ID)
	return msg, nil
}

// Get returns a message the caller may see: they must be a member of the
// chat and must not have hidden the message.
func (s *MessageService) Get(ctx context.Context, userID, msgID int64) (*domain.Message, error) {
	msg, err := s.messages.GetByID(ctx, msgID)
	if err != nil {
		return nil, err
	}
	if _, err := s.requireMember(ctx, userID, msg.ChatID); err != nil {
		return nil, err
	}
	for _, id := range msg.HiddenFor {
		if id == userID {
			return nil, domain.ErrMessageHidden
		}
	}
	return msg, nil
}

// MarkRead adds the caller to the message's read set. The receipt is
// broadcast only on the first transition; repeat reads are silent, so
// the read set only ever grows and never re-announces.
func (s *MessageService) MarkRead(ctx context.Context, userID, msgID int64) error {
	ctx, span := tracer.Start(ctx, "MessageService.MarkRead", trace.WithAttributes(
		attribute.Int64("msg_id", msgID),
		attribute.Int64("user_id", userID),
	))
	defer span.End()
	msg, err := s.messages.GetByID(ctx, msgID)
	if err != nil {
		return err
	}
	if _, err := s.requireMember(ctx, userID, msg.ChatID); err != nil {
		return err
	}
	at := s.now()
	changed, err := s.messages.MarkRead(ctx, msgID, userID, at)
	if err != nil {
		span.RecordError(err)
		return err
	}
	if !changed {
		return nil
	}
	s.dispatcher.SendToGroup(ctx, msg.ChatID,
		domain.MessageEvent(domain.StatusReadMessage, userID, msg.ChatID, msgID, at))
	return nil
}

// Withdraw deletes the caller's own message for everyone, allowed only
// while now <= create_time + window. A withdrawal record goes to the
// system feed and the removal is broadcast to the group.
func (s *MessageService) Withdraw(ctx context.Context, userID, msgID int64) error {
	ctx, span := tracer.Start(ctx, "MessageService.Withdraw", trace.WithAttributes(
		attribute.Int64("msg_id", msgID),
		attribute.Int64("user_id", userID),
	))
	defer span.End()
	var chatID int64
	err := s.txManager.WithTx(ctx, func(txCtx context.Context) error {
		msg, err := s.messages.GetByID(txCtx, msgID)
		if err != nil {
			return err
		}
		if msg.SenderID != userID {
			return domain.ErrNotSender
		}
		if s.now().After(msg.CreateTime.Add(s.withdrawWindow)) {
			return domain.ErrWithdrawExpired
		}
		chatID = msg.ChatID
		return s.messages.Delete(txCtx, msgID)
	})
	if err != nil {
		span.RecordError(err)
		return err
	}
	s.feed.Record(ctx, domain.SystemEntry{ChatID: chatID, ActorID: userID, Action: domain.SystemWithdraw})
	s.dispatcher.SendToGroup(ctx, chatID,
		domain.MessageEvent(domain.StatusWithdrawMessage, userID, chatID, msgID, s.now()))
	s.log.InfoContext(ctx, "messages - withdraw - success", "chat_id", chatID, "msg_id", msgID)
	return nil
}

// Hide removes the message from the caller's own view only. No events,
// no system record; other members are unaffected.
func (s *MessageService) Hide(ctx context.Context, userID, msgID int64) error {
	msg, err := s.messages.GetByID(ctx, msgID)
	if err != nil {
		return err
	}
	if _, err := s.requireMember(ctx, userID, msg.ChatID); err != nil {
		return err
	}
	return s.messages.Hide(ctx, msgID, userID)
}

// History lists the chat's messages visible to the caller, newest last,
// with optional text/sender/time filters.
func (s *MessageService) History(ctx context.Context, userID, chatID int64, f domain.MessageFilter) ([]domain.Message, error) {
	if _, err := s.chats.GetByID(ctx, chatID); err != nil {
		return nil, err
	}
	if _, err := s.requireMember(ctx, userID, chatID); err != nil {
		return nil, err
	}
	f.HideFor = userID
	return s.messages.ListByChat(ctx, chatID, f)
}
