package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/Jason-Fu-git/CoTalk-Backend/internal/core/contracts"
	"github.com/Jason-Fu-git/CoTalk-Backend/internal/core/domain"
)

// FriendService runs the friendship state machine over directed row
// pairs. Apply folds request/accept/reject/unfriend/cancel into a
// single call: the action taken depends on the current state and the
// caller's approve flag, mirroring how the client drives the flow.
type FriendService struct {
	log        *slog.Logger
	friends    domain.FriendshipRepository
	users      domain.UserRepository
	chats      domain.ChatRepository
	members    domain.MembershipRepository
	messages   domain.MessageRepository
	dispatcher *Dispatcher
	registry   contracts.Registry
	txManager  TxRunner
}

func NewFriendService(
	log *slog.Logger,
	friends domain.FriendshipRepository,
	users domain.UserRepository,
	chats domain.ChatRepository,
	members domain.MembershipRepository,
	messages domain.MessageRepository,
	dispatcher *Dispatcher,
	registry contracts.Registry,
	txManager TxRunner,
) *FriendService {
	return &FriendService{
		log:        log,
		friends:    friends,
		users:      users,
		chats:      chats,
		members:    members,
		messages:   messages,
		dispatcher: dispatcher,
		registry:   registry,
		txManager:  txManager,
	}
}

// Apply advances the friendship between userID and friendID.
//
//	approve=true,  no relation          -> make request (pending row user->friend)
//	approve=true,  incoming pending     -> accept (both rows approved, private chat created)
//	approve=false, incoming pending     -> reject (pending row deleted)
//	approve=false, own pending          -> cancel (pending row deleted, no event)
//	approve=false, friends              -> unfriend (both rows and the private chat deleted)
//
// The returned status names the action taken; it is empty for a cancel.
func (s *FriendService) Apply(ctx context.Context, userID, friendID int64, approve bool) (domain.EventStatus, error) {
	ctx, span := tracer.Start(ctx, "FriendService.Apply", trace.WithAttributes(
		attribute.Int64("user_id", userID),
		attribute.Int64("friend_id", friendID),
		attribute.Bool("approve", approve),
	))
	defer span.End()
	if userID == friendID {
		return "", domain.ErrFriendshipNotFound
	}
	if _, err := s.users.GetByID(ctx, friendID); err != nil {
		return "", err
	}
	var status domain.EventStatus
	var chatID int64
	err := s.txManager.WithTx(ctx, func(txCtx context.Context) error {
		outgoing, outErr := s.friends.Get(txCtx, userID, friendID)
		if outErr != nil && !errors.Is(outErr, domain.ErrFriendshipNotFound) {
			return outErr
		}
		incoming, inErr := s.friends.Get(txCtx, friendID, userID)
		if inErr != nil && !errors.Is(inErr, domain.ErrFriendshipNotFound) {
			return inErr
		}
		mutual := outErr == nil && inErr == nil && outgoing.Approved && incoming.Approved
		switch {
		case approve && mutual:
			return domain.ErrAlreadyFriends
		case approve && inErr == nil && !incoming.Approved:
			status = domain.StatusAcceptRequest
			return s.accept(txCtx, userID, friendID, incoming, &chatID)
		case approve && outErr == nil:
			return domain.ErrAlreadyInvited
		case approve:
			status = domain.StatusMakeRequest
			return s.friends.Create(txCtx, &domain.Friendship{
				UserID:     userID,
				FriendID:   friendID,
				Approved:   false,
				UpdateTime: time.Now(),
			})
		case mutual:
			status = domain.StatusDeleteFriend
			return s.unfriend(txCtx, userID, friendID, &chatID)
		case inErr == nil && !incoming.Approved:
			status = domain.StatusRejectRequest
			return s.friends.Delete(txCtx, friendID, userID)
		case outErr == nil && !outgoing.Approved:
			// Cancel of the caller's own pending request. No event.
			return s.friends.Delete(txCtx, userID, friendID)
		default:
			return domain.ErrFriendshipNotFound
		}
	})
	if err != nil {
		span.RecordError(err)
		return "", err
	}
	s.afterApply(ctx, userID, friendID, status, chatID)
	s.log.InfoContext(ctx, "friends - apply - success",
		"user_id", userID, "friend_id", friendID, "action", status)
	return status, nil
}

// accept approves both rows and materializes the private chat. The
// requester becomes the chat owner, the accepter a plain member; the
// pair is wired so FindPrivateChat resolves it for the unfriend path.
func (s *FriendService) accept(ctx context.Context, userID, friendID int64, incoming *domain.Friendship, chatID *int64) error {
	now := time.Now()
	incoming.Approved = true
	incoming.UpdateTime = now
	if err := s.friends.Update(ctx, incoming); err != nil {
		return err
	}
	if err := s.friends.Create(ctx, &domain.Friendship{
		UserID:     userID,
		FriendID:   friendID,
		Approved:   true,
		UpdateTime: now,
	}); err != nil {
		return err
	}
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	friend, err := s.users.GetByID(ctx, friendID)
	if err != nil {
		return err
	}
	chat := &domain.Chat{
		Name:       fmt.Sprintf("%s & %s", friend.Name, user.Name),
		IsPrivate:  true,
		CreateTime: now,
	}
	if err := s.chats.Create(ctx, chat); err != nil {
		return err
	}
	*chatID = chat.ID
	for _, m := range []*domain.Membership{
		{UserID: friendID, ChatID: chat.ID, Role: domain.RoleOwner, Approved: true, UpdateTime: now},
		{UserID: userID, ChatID: chat.ID, Role: domain.RoleMember, Approved: true, UpdateTime: now},
	} {
		if err := s.members.Create(ctx, m); err != nil {
			return err
		}
	}
	return nil
}

// unfriend deletes both directed rows and tears down the private chat
// with its history.
func (s *FriendService) unfriend(ctx context.Context, userID, friendID int64, chatID *int64) error {
	if err := s.friends.Delete(ctx, userID, friendID); err != nil {
		return err
	}
	if err := s.friends.Delete(ctx, friendID, userID); err != nil {
		return err
	}
	chat, err := s.chats.FindPrivateChat(ctx, userID, friendID)
	if errors.Is(err, domain.ErrChatNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	*chatID = chat.ID
	if err := s.messages.DeleteByChat(ctx, chat.ID); err != nil {
		return err
	}
	if err := s.members.DeleteByChat(ctx, chat.ID); err != nil {
		return err
	}
	return s.chats.Delete(ctx, chat.ID)
}

// afterApply does the post-commit side effects: router sync and the
// friend event to the other side.
func (s *FriendService) afterApply(ctx context.Context, userID, friendID int64, status domain.EventStatus, chatID int64) {
	switch status {
	case domain.StatusAcceptRequest:
		if chatID != 0 {
			s.registry.OnMembershipChange(userID, chatID, true)
			s.registry.OnMembershipChange(friendID, chatID, true)
		}
	case domain.StatusDeleteFriend:
		if chatID != 0 {
			s.registry.OnMembershipChange(userID, chatID, false)
			s.registry.OnMembershipChange(friendID, chatID, false)
		}
	case "":
		return
	}
	approved := status == domain.StatusAcceptRequest
	env := domain.FriendEvent(status, userID, approved)
	if _, err := s.dispatcher.SendDirect(ctx, friendID, env); err != nil {
		s.log.ErrorContext(ctx, "friends - apply - dispatch failed",
			"friend_id", friendID, "action", status, "err", err)
	}
}

// List returns the caller's mutual friends.
func (s *FriendService) List(ctx context.Context, userID int64) ([]domain.User, error) {
	ids, err := s.friends.ListFriendIDs(ctx, userID)
	if err != nil {
		return nil, err
	}
	out := make([]domain.User, 0, len(ids))
	for _, id := range ids {
		user, err := s.users.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		out = append(out, *user)
	}
	return out, nil
}
