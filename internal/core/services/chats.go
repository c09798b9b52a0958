package services

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/Jason-Fu-git/CoTalk-Backend/internal/core/contracts"
	"github.com/Jason-Fu-git/CoTalk-Backend/internal/core/domain"
)

// ChatService owns chat creation and the read-side queries (detail,
// member listing). Membership transitions live in MembershipService.
type ChatService struct {
	log        *slog.Logger
	chats      domain.ChatRepository
	members    domain.MembershipRepository
	users      domain.UserRepository
	presence   contracts.PresenceStore
	dispatcher *Dispatcher
	txManager  TxRunner
}

func NewChatService(
	log *slog.Logger,
	chats domain.ChatRepository,
	members domain.MembershipRepository,
	users domain.UserRepository,
	presence contracts.PresenceStore,
	dispatcher *Dispatcher,
	txManager TxRunner,
) *ChatService {
	return &ChatService{
		log:        log,
		chats:      chats,
		members:    members,
		users:      users,
		presence:   presence,
		dispatcher: dispatcher,
		txManager:  txManager,
	}
}

// Create makes a chat with the creator as owner and sends an invitation
// to every listed member. Invitations are direct events: delivered live
// or persisted as notifications, per member.
func (s *ChatService) Create(ctx context.Context, ownerID int64, name string, memberIDs []int64) (*domain.Chat, error) {
	ctx, span := tracer.Start(ctx, "ChatService.Create", trace.WithAttributes(
		attribute.Int64("owner_id", ownerID),
	))
	defer span.End()
	if !validName(name) {
		return nil, domain.ErrInvalidName
	}
	if _, err := s.users.GetByID(ctx, ownerID); err != nil {
		return nil, err
	}
	var chat *domain.Chat
	var invited []int64
	err := s.txManager.WithTx(ctx, func(txCtx context.Context) error {
		exists, err := s.chats.NameExists(txCtx, name)
		if err != nil {
			return err
		}
		if exists {
			return domain.ErrNameConflict
		}
		now := time.Now()
		chat = &domain.Chat{Name: name, IsPrivate: false, CreateTime: now}
		if err := s.chats.Create(txCtx, chat); err != nil {
			return err
		}
		owner := &domain.Membership{
			UserID:     ownerID,
			ChatID:     chat.ID,
			Role:       domain.RoleOwner,
			Approved:   true,
			UpdateTime: now,
		}
		if err := s.members.Create(txCtx, owner); err != nil {
			return err
		}
		for _, memberID := range memberIDs {
			if memberID == ownerID {
				continue
			}
			if _, err := s.users.GetByID(txCtx, memberID); err != nil {
				return err
			}
			m := &domain.Membership{
				UserID:     memberID,
				ChatID:     chat.ID,
				Role:       domain.RoleMember,
				Approved:   false,
				UpdateTime: now,
			}
			if err := s.members.Create(txCtx, m); err != nil {
				return err
			}
			invited = append(invited, memberID)
		}
		return nil
	})
	if err != nil {
		span.RecordError(err)
		if !errors.Is(err, domain.ErrNameConflict) {
			s.log.ErrorContext(ctx, "chats - create - failed", "owner_id", ownerID, "err", err)
		}
		return nil, err
	}
	for _, memberID := range invited {
		env := domain.ManagementEvent(domain.StatusMakeInvitation, ownerID, chat.ID, true)
		if _, err := s.dispatcher.SendDirect(ctx, memberID, env); err != nil {
			s.log.ErrorContext(ctx, "chats - create - invitation dispatch failed",
				"chat_id", chat.ID, "member_id", memberID, "err", err)
		}
	}
	s.log.InfoContext(ctx, "chats - create - success", "chat_id", chat.ID, "owner_id", ownerID, "invited", len(invited))
	return chat, nil
}

// ChatDetail is the read model for a single chat.
type ChatDetail struct {
	Chat        *domain.Chat
	OwnerID     int64
	MemberCount int
	OnlineCount int
}

func (s *ChatService) Detail(ctx context.Context, chatID int64) (*ChatDetail, error) {
	chat, err := s.chats.GetByID(ctx, chatID)
	if err != nil {
		return nil, err
	}
	memberships, err := s.members.ListByChat(ctx, chatID, true)
	if err != nil {
		return nil, err
	}
	detail := &ChatDetail{Chat: chat, MemberCount: len(memberships)}
	memberSet := make(map[int64]struct{}, len(memberships))
	for _, m := range memberships {
		memberSet[m.UserID] = struct{}{}
		if m.Role == domain.RoleOwner {
			detail.OwnerID = m.UserID
		}
	}
	online, err := s.presence.OnlineUsers(ctx)
	if err != nil {
		// Presence is advisory; the detail view degrades to zero online.
		s.log.WarnContext(ctx, "chats - detail - presence unavailable", "chat_id", chatID, "err", err)
		return detail, nil
	}
	for _, id := range online {
		if _, ok := memberSet[id]; ok {
			detail.OnlineCount++
		}
	}
	return detail, nil
}

// Member is one row of the member listing.
type Member struct {
	User *domain.User
	Role domain.Role
}

// Members lists the approved members of a chat. The caller must hold a
// membership row (approved or pending) in the chat.
func (s *ChatService) Members(ctx context.Context, actorID, chatID int64) ([]Member, error) {
	if _, err := s.chats.GetByID(ctx, chatID); err != nil {
		return nil, err
	}
	if _, err := s.members.Get(ctx, actorID, chatID); err != nil {
		return nil, err
	}
	memberships, err := s.members.ListByChat(ctx, chatID, true)
	if err != nil {
		return nil, err
	}
	out := make([]Member, 0, len(memberships))
	for _, m := range memberships {
		user, err := s.users.GetByID(ctx, m.UserID)
		if err != nil {
			return nil, err
		}
		out = append(out, Member{User: user, Role: m.Role})
	}
	return out, nil
}
