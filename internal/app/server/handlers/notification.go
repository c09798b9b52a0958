package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/Jason-Fu-git/CoTalk-Backend/internal/core/domain"
	"github.com/Jason-Fu-git/CoTalk-Backend/internal/core/services"
)

type NotificationHandler struct {
	notifSvc *services.NotificationService
}

func NewNotificationHandler(n *services.NotificationService) *NotificationHandler {
	return &NotificationHandler{notifSvc: n}
}

// List returns the caller's stored notifications. Content is the event
// envelope as it would have arrived over the websocket.
func (h *NotificationHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := authedUser(w, r)
	if !ok {
		return
	}
	unreadOnly := r.URL.Query().Get("unread_only") == "true"
	notifs, err := h.notifSvc.List(r.Context(), userID, unreadOnly)
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]map[string]any, 0, len(notifs))
	for _, n := range notifs {
		out = append(out, map[string]any{
			"notification_id": n.ID,
			"sender_id":       n.SenderID,
			"content":         json.RawMessage(n.Content),
			"create_time":     domain.UnixSeconds(n.CreateTime),
			"is_read":         n.IsRead,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"notifications": out})
}

func (h *NotificationHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	userID, ok := authedUser(w, r)
	if !ok {
		return
	}
	id, ok := pathID(r, "id")
	if !ok {
		badRequest(w, "invalid notification id")
		return
	}
	if err := h.notifSvc.MarkRead(r.Context(), userID, id); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "read"})
}

func (h *NotificationHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, ok := authedUser(w, r)
	if !ok {
		return
	}
	id, ok := pathID(r, "id")
	if !ok {
		badRequest(w, "invalid notification id")
		return
	}
	if err := h.notifSvc.Delete(r.Context(), userID, id); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "deleted"})
}
