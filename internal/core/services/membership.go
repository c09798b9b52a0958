package services

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/Jason-Fu-git/CoTalk-Backend/internal/core/contracts"
	"github.com/Jason-Fu-git/CoTalk-Backend/internal/core/domain"
)

// MembershipService is the chat membership/privilege state machine:
// invite, accept, reject, kick, privilege change and leave. Every
// transition validates before mutating, keeps the router in sync with
// the committed membership, and dispatches the corresponding event.
type MembershipService struct {
	log        *slog.Logger
	chats      domain.ChatRepository
	members    domain.MembershipRepository
	users      domain.UserRepository
	messages   domain.MessageRepository
	dispatcher *Dispatcher
	registry   contracts.Registry
	feed       *SystemFeed
	txManager  TxRunner
}

func NewMembershipService(
	log *slog.Logger,
	chats domain.ChatRepository,
	members domain.MembershipRepository,
	users domain.UserRepository,
	messages domain.MessageRepository,
	dispatcher *Dispatcher,
	registry contracts.Registry,
	feed *SystemFeed,
	txManager TxRunner,
) *MembershipService {
	return &MembershipService{
		log:        log,
		chats:      chats,
		members:    members,
		users:      users,
		messages:   messages,
		dispatcher: dispatcher,
		registry:   registry,
		feed:       feed,
		txManager:  txManager,
	}
}

// privileged reports whether the membership may manage other members.
func privileged(m *domain.Membership) bool {
	return m.Approved && m.Role != domain.RoleMember
}

// Invite creates a pending membership for a non-member and sends a
// `make invitation` event directly to the invitee.
func (s *MembershipService) Invite(ctx context.Context, actorID, chatID, memberID int64) error {
	ctx, span := tracer.Start(ctx, "MembershipService.Invite", trace.WithAttributes(
		attribute.Int64("chat_id", chatID),
		attribute.Int64("actor_id", actorID),
		attribute.Int64("member_id", memberID),
	))
	defer span.End()
	if _, err := s.chats.GetByID(ctx, chatID); err != nil {
		return err
	}
	if _, err := s.users.GetByID(ctx, memberID); err != nil {
		return err
	}
	err := s.txManager.WithTx(ctx, func(txCtx context.Context) error {
		actor, err := s.members.Get(txCtx, actorID, chatID)
		if err != nil {
			return err
		}
		if !privileged(actor) {
			return domain.ErrNoPrivilege
		}
		existing, err := s.members.Get(txCtx, memberID, chatID)
		if err == nil {
			if existing.Approved {
				return domain.ErrAlreadyMember
			}
			return domain.ErrAlreadyInvited
		}
		if !errors.Is(err, domain.ErrMembershipNotFound) {
			return err
		}
		m := &domain.Membership{
			UserID:     memberID,
			ChatID:     chatID,
			Role:       domain.RoleMember,
			Approved:   false,
			UpdateTime: time.Now(),
		}
		return s.members.Create(txCtx, m)
	})
	if err != nil {
		span.RecordError(err)
		return err
	}
	env := domain.ManagementEvent(domain.StatusMakeInvitation, actorID, chatID, true)
	if _, err := s.dispatcher.SendDirect(ctx, memberID, env); err != nil {
		s.log.ErrorContext(ctx, "membership - invite - dispatch failed",
			"chat_id", chatID, "member_id", memberID, "err", err)
	}
	s.log.InfoContext(ctx, "membership - invite - success", "chat_id", chatID, "member_id", memberID)
	return nil
}

// Accept approves the caller's pending invitation. The router is
// subscribed synchronously with the approval, a join record goes to the
// system feed, and the join is broadcast to the chat group.
func (s *MembershipService) Accept(ctx context.Context, userID, chatID int64) error {
	ctx, span := tracer.Start(ctx, "MembershipService.Accept", trace.WithAttributes(
		attribute.Int64("chat_id", chatID),
		attribute.Int64("user_id", userID),
	))
	defer span.End()
	err := s.txManager.WithTx(ctx, func(txCtx context.Context) error {
		m, err := s.members.Get(txCtx, userID, chatID)
		if err != nil {
			return err
		}
		if m.Approved {
			return domain.ErrAlreadyMember
		}
		m.Approved = true
		m.UpdateTime = time.Now()
		return s.members.Update(txCtx, m)
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "accept failed")
		return err
	}
	s.registry.OnMembershipChange(userID, chatID, true)
	s.feed.Record(ctx, domain.SystemEntry{ChatID: chatID, ActorID: userID, Action: domain.SystemJoin})
	s.dispatcher.SendToGroup(ctx, chatID, domain.ManagementEvent(domain.StatusJoinChat, userID, chatID, true))
	s.log.InfoContext(ctx, "membership - accept - success", "chat_id", chatID, "user_id", userID)
	return nil
}

// Reject deletes the caller's pending invitation. No broadcast.
func (s *MembershipService) Reject(ctx context.Context, userID, chatID int64) error {
	err := s.txManager.WithTx(ctx, func(txCtx context.Context) error {
		m, err := s.members.Get(txCtx, userID, chatID)
		if err != nil {
			return err
		}
		if m.Approved {
			return domain.ErrAlreadyMember
		}
		return s.members.Delete(txCtx, userID, chatID)
	})
	if err != nil {
		return err
	}
	s.log.InfoContext(ctx, "membership - reject - success", "chat_id", chatID, "user_id", userID)
	return nil
}

// Kick removes an approved member. The owner cannot be kicked and the
// actor needs management privilege; kicking yourself is a leave, not a
// kick.
func (s *MembershipService) Kick(ctx context.Context, actorID, chatID, memberID int64) error {
	ctx, span := tracer.Start(ctx, "MembershipService.Kick", trace.WithAttributes(
		attribute.Int64("chat_id", chatID),
		attribute.Int64("actor_id", actorID),
		attribute.Int64("member_id", memberID),
	))
	defer span.End()
	if actorID == memberID {
		return domain.ErrNoPrivilege
	}
	err := s.txManager.WithTx(ctx, func(txCtx context.Context) error {
		actor, err := s.members.Get(txCtx, actorID, chatID)
		if err != nil {
			return err
		}
		if !privileged(actor) {
			return domain.ErrNoPrivilege
		}
		target, err := s.members.Get(txCtx, memberID, chatID)
		if err != nil {
			return err
		}
		if !target.Approved {
			return domain.ErrNotMember
		}
		if target.Role == domain.RoleOwner {
			return domain.ErrNoPrivilege
		}
		return s.members.Delete(txCtx, memberID, chatID)
	})
	if err != nil {
		span.RecordError(err)
		return err
	}
	s.registry.OnMembershipChange(memberID, chatID, false)
	s.feed.Record(ctx, domain.SystemEntry{
		ChatID:    chatID,
		ActorID:   actorID,
		SubjectID: memberID,
		Action:    domain.SystemKick,
	})
	env := domain.ManagementEvent(domain.StatusKickedOut, actorID, chatID, false)
	if _, err := s.dispatcher.SendDirect(ctx, memberID, env); err != nil {
		s.log.ErrorContext(ctx, "membership - kick - dispatch failed",
			"chat_id", chatID, "member_id", memberID, "err", err)
	}
	s.log.InfoContext(ctx, "membership - kick - success", "chat_id", chatID, "member_id", memberID)
	return nil
}

// ChangeRole moves a member between member/admin/owner. Only the owner
// appoints admins (capped) or hands over ownership; owner and admins may
// demote admins back to member. The owner's own role only changes via
// handover, which swaps both rows in one transaction so the chat never
// observes zero or two owners.
func (s *MembershipService) ChangeRole(ctx context.Context, actorID, chatID, memberID int64, to domain.Role) error {
	ctx, span := tracer.Start(ctx, "MembershipService.ChangeRole", trace.WithAttributes(
		attribute.Int64("chat_id", chatID),
		attribute.Int64("actor_id", actorID),
		attribute.Int64("member_id", memberID),
		attribute.String("change_to", string(to)),
	))
	defer span.End()
	var status domain.EventStatus
	switch to {
	case domain.RoleMember:
		status = domain.StatusChangeToMember
	case domain.RoleAdmin:
		status = domain.StatusChangeToAdmin
	case domain.RoleOwner:
		status = domain.StatusChangeToOwner
	default:
		return domain.ErrNoPrivilege
	}
	err := s.txManager.WithTx(ctx, func(txCtx context.Context) error {
		actor, err := s.members.Get(txCtx, actorID, chatID)
		if err != nil {
			return err
		}
		target, err := s.members.Get(txCtx, memberID, chatID)
		if err != nil {
			return err
		}
		if !actor.Approved || !target.Approved {
			return domain.ErrNotMember
		}
		if target.Role == domain.RoleOwner {
			// The owner's role is immutable except via explicit handover.
			return domain.ErrNoPrivilege
		}
		now := time.Now()
		switch to {
		case domain.RoleMember:
			if actor.Role != domain.RoleOwner && actor.Role != domain.RoleAdmin {
				return domain.ErrNoPrivilege
			}
		case domain.RoleAdmin:
			if actor.Role != domain.RoleOwner {
				return domain.ErrNoPrivilege
			}
			count, err := s.members.CountByRole(txCtx, chatID, domain.RoleAdmin)
			if err != nil {
				return err
			}
			if count >= domain.AdminLimit {
				return domain.ErrAdminLimit
			}
		case domain.RoleOwner:
			if actor.Role != domain.RoleOwner {
				return domain.ErrNoPrivilege
			}
			actor.Role = domain.RoleMember
			actor.UpdateTime = now
			if err := s.members.Update(txCtx, actor); err != nil {
				return err
			}
		}
		target.Role = to
		target.UpdateTime = now
		return s.members.Update(txCtx, target)
	})
	if err != nil {
		span.RecordError(err)
		return err
	}
	s.feed.Record(ctx, domain.SystemEntry{
		ChatID:    chatID,
		ActorID:   actorID,
		SubjectID: memberID,
		Action:    domain.SystemPrivilege,
		Role:      to,
	})
	env := domain.ManagementEvent(status, actorID, chatID, true)
	if _, err := s.dispatcher.SendDirect(ctx, memberID, env); err != nil {
		s.log.ErrorContext(ctx, "membership - change role - dispatch failed",
			"chat_id", chatID, "member_id", memberID, "err", err)
	}
	s.log.InfoContext(ctx, "membership - change role - success",
		"chat_id", chatID, "member_id", memberID, "change_to", to)
	return nil
}

// Leave removes the caller's approved membership. When the owner leaves,
// the senior admin (or, absent admins, the longest-standing member) is
// promoted in the same transaction; the chat is deleted when the last
// member leaves. Private chats only disappear with their friendship.
func (s *MembershipService) Leave(ctx context.Context, userID, chatID int64) error {
	ctx, span := tracer.Start(ctx, "MembershipService.Leave", trace.WithAttributes(
		attribute.Int64("chat_id", chatID),
		attribute.Int64("user_id", userID),
	))
	defer span.End()
	chat, err := s.chats.GetByID(ctx, chatID)
	if err != nil {
		return err
	}
	if chat.IsPrivate {
		return domain.ErrPrivateChat
	}
	var chatDeleted bool
	err = s.txManager.WithTx(ctx, func(txCtx context.Context) error {
		m, err := s.members.Get(txCtx, userID, chatID)
		if err != nil {
			return err
		}
		if !m.Approved {
			return domain.ErrNotMember
		}
		if err := s.members.Delete(txCtx, userID, chatID); err != nil {
			return err
		}
		remaining, err := s.members.ListByChat(txCtx, chatID, true)
		if err != nil {
			return err
		}
		if len(remaining) == 0 {
			if err := s.messages.DeleteByChat(txCtx, chatID); err != nil {
				return err
			}
			if err := s.members.DeleteByChat(txCtx, chatID); err != nil {
				return err
			}
			if err := s.chats.Delete(txCtx, chatID); err != nil {
				return err
			}
			chatDeleted = true
			return nil
		}
		if m.Role == domain.RoleOwner {
			return s.promoteSuccessor(txCtx, chatID)
		}
		return nil
	})
	if err != nil {
		span.RecordError(err)
		return err
	}
	s.registry.OnMembershipChange(userID, chatID, false)
	if !chatDeleted {
		s.feed.Record(ctx, domain.SystemEntry{ChatID: chatID, ActorID: userID, Action: domain.SystemLeave})
	}
	s.log.InfoContext(ctx, "membership - leave - success",
		"chat_id", chatID, "user_id", userID, "chat_deleted", chatDeleted)
	return nil
}

// promoteSuccessor runs inside the leave transaction after the owner's
// row is gone, so the owner-uniqueness invariant holds at commit.
func (s *MembershipService) promoteSuccessor(ctx context.Context, chatID int64) error {
	successor, err := s.members.SeniorByRole(ctx, chatID, domain.RoleAdmin)
	if errors.Is(err, domain.ErrMembershipNotFound) {
		successor, err = s.members.SeniorByRole(ctx, chatID, domain.RoleMember)
	}
	if err != nil {
		return err
	}
	successor.Role = domain.RoleOwner
	successor.UpdateTime = time.Now()
	return s.members.Update(ctx, successor)
}
