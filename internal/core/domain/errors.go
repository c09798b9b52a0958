package domain

import "errors"

var (
	ErrUserNotFound         = errors.New("user not found")
	ErrChatNotFound         = errors.New("chat not found")
	ErrMessageNotFound      = errors.New("message not found")
	ErrMembershipNotFound   = errors.New("membership not found")
	ErrFriendshipNotFound   = errors.New("friendship not found")
	ErrNotificationNotFound = errors.New("notification not found")

	ErrWrongPassword = errors.New("wrong password")
	ErrNoPrivilege   = errors.New("no management privilege")
	ErrNotMember     = errors.New("user is not an approved chat member")
	ErrNotSender     = errors.New("user is not the sender of the message")
	ErrMessageHidden = errors.New("message is hidden for the user")

	ErrNameConflict   = errors.New("name conflict")
	ErrAlreadyMember  = errors.New("user is already a chat member")
	ErrAlreadyInvited = errors.New("user already has a pending invitation")
	ErrAlreadyFriends = errors.New("users are already friends")

	ErrAdminLimit       = errors.New("admin limit reached")
	ErrWithdrawExpired  = errors.New("withdrawal window expired")
	ErrPrivateChat      = errors.New("operation not allowed on a private chat")
	ErrAlreadyConnected = errors.New("user already connected")

	ErrInvalidName    = errors.New("invalid user name")
	ErrInvalidEmail   = errors.New("invalid email address")
	ErrInvalidMessage = errors.New("invalid message")
)
