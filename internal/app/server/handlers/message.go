package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/Jason-Fu-git/CoTalk-Backend/internal/core/domain"
	"github.com/Jason-Fu-git/CoTalk-Backend/internal/core/services"
)

type MessageHandler struct {
	msgSvc *services.MessageService
}

func NewMessageHandler(m *services.MessageService) *MessageHandler {
	return &MessageHandler{msgSvc: m}
}

func (h *MessageHandler) Send(w http.ResponseWriter, r *http.Request) {
	log := requestLogger(r)
	userID, ok := authedUser(w, r)
	if !ok {
		return
	}
	var req struct {
		ChatID  int64              `json:"chat_id"`
		Text    string             `json:"msg_text"`
		Type    domain.MessageType `json:"msg_type"`
		ReplyTo int64              `json:"reply_to"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid request")
		return
	}
	msg, err := h.msgSvc.Send(r.Context(), userID, req.ChatID, req.Text, req.Type, req.ReplyTo)
	if err != nil {
		log.WarnContext(r.Context(), "message handler - send failed",
			"chat_id", req.ChatID, "user_id", userID, "err", err)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, messageView(msg))
}

func (h *MessageHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID, ok := authedUser(w, r)
	if !ok {
		return
	}
	msgID, ok := pathID(r, "id")
	if !ok {
		badRequest(w, "invalid message id")
		return
	}
	msg, err := h.msgSvc.Get(r.Context(), userID, msgID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, messageView(msg))
}

// MarkRead adds the caller to the message's read set.
func (h *MessageHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	userID, ok := authedUser(w, r)
	if !ok {
		return
	}
	msgID, ok := pathID(r, "id")
	if !ok {
		badRequest(w, "invalid message id")
		return
	}
	if err := h.msgSvc.MarkRead(r.Context(), userID, msgID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "read"})
}

// Delete withdraws the message for everyone when is_remove is set, and
// hides it from the caller's own view otherwise.
func (h *MessageHandler) Delete(w http.ResponseWriter, r *http.Request) {
	log := requestLogger(r)
	userID, ok := authedUser(w, r)
	if !ok {
		return
	}
	msgID, ok := pathID(r, "id")
	if !ok {
		badRequest(w, "invalid message id")
		return
	}
	withdraw := r.URL.Query().Get("is_remove") == "true"
	var err error
	if withdraw {
		err = h.msgSvc.Withdraw(r.Context(), userID, msgID)
	} else {
		err = h.msgSvc.Hide(r.Context(), userID, msgID)
	}
	if err != nil {
		log.WarnContext(r.Context(), "message handler - delete failed",
			"msg_id", msgID, "withdraw", withdraw, "err", err)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "deleted"})
}
