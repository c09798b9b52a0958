package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/Jason-Fu-git/CoTalk-Backend/internal/core/domain"
	"github.com/Jason-Fu-git/CoTalk-Backend/pkg/middleware"
)

func requestLogger(r *http.Request) *slog.Logger {
	if log, ok := r.Context().Value(middleware.LoggerKey).(*slog.Logger); ok {
		return log
	}
	return slog.Default()
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps domain sentinels onto HTTP statuses. Anything
// unrecognized is a 500 with a generic body.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	msg := "internal error"
	switch {
	case errors.Is(err, domain.ErrUserNotFound),
		errors.Is(err, domain.ErrChatNotFound),
		errors.Is(err, domain.ErrMessageNotFound),
		errors.Is(err, domain.ErrMembershipNotFound),
		errors.Is(err, domain.ErrFriendshipNotFound),
		errors.Is(err, domain.ErrNotificationNotFound),
		errors.Is(err, domain.ErrMessageHidden):
		status, msg = http.StatusNotFound, err.Error()
	case errors.Is(err, domain.ErrWrongPassword):
		status, msg = http.StatusUnauthorized, err.Error()
	case errors.Is(err, domain.ErrNoPrivilege),
		errors.Is(err, domain.ErrNotMember),
		errors.Is(err, domain.ErrNotSender):
		status, msg = http.StatusForbidden, err.Error()
	case errors.Is(err, domain.ErrNameConflict),
		errors.Is(err, domain.ErrAlreadyMember),
		errors.Is(err, domain.ErrAlreadyInvited),
		errors.Is(err, domain.ErrAlreadyFriends),
		errors.Is(err, domain.ErrAlreadyConnected):
		status, msg = http.StatusConflict, err.Error()
	case errors.Is(err, domain.ErrWithdrawExpired),
		errors.Is(err, domain.ErrAdminLimit),
		errors.Is(err, domain.ErrPrivateChat):
		status, msg = http.StatusPreconditionFailed, err.Error()
	case errors.Is(err, domain.ErrInvalidName),
		errors.Is(err, domain.ErrInvalidEmail),
		errors.Is(err, domain.ErrInvalidMessage):
		status, msg = http.StatusBadRequest, err.Error()
	}
	writeJSON(w, status, map[string]string{"error": msg})
}

func badRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, map[string]string{"error": msg})
}

// pathID parses the named path wildcard as an int64.
func pathID(r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue(name), 10, 64)
	return id, err == nil && id > 0
}

// authedUser returns the user id the auth middleware injected.
func authedUser(w http.ResponseWriter, r *http.Request) (int64, bool) {
	userID, ok := middleware.UserID(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "authorization required"})
	}
	return userID, ok
}

func userView(u *domain.User) map[string]any {
	return map[string]any{
		"user_id":       u.ID,
		"user_name":     u.Name,
		"user_email":    u.Email,
		"register_time": domain.UnixSeconds(u.RegisterTime),
		"login_time":    domain.UnixSeconds(u.LoginTime),
	}
}

func messageView(m *domain.Message) map[string]any {
	readBy := m.ReadBy
	if readBy == nil {
		readBy = []int64{}
	}
	return map[string]any{
		"msg_id":      m.ID,
		"sender_id":   m.SenderID,
		"chat_id":     m.ChatID,
		"msg_text":    m.Text,
		"msg_type":    m.Type,
		"create_time": domain.UnixSeconds(m.CreateTime),
		"update_time": domain.UnixSeconds(m.UpdateTime),
		"read_users":  readBy,
		"reply_to":    m.ReplyTo,
		"is_system":   m.IsSystem,
	}
}
