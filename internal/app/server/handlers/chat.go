package handlers

import (
	"encoding/json"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/Jason-Fu-git/CoTalk-Backend/internal/core/domain"
	"github.com/Jason-Fu-git/CoTalk-Backend/internal/core/services"
)

type ChatHandler struct {
	chatSvc   *services.ChatService
	memberSvc *services.MembershipService
	msgSvc    *services.MessageService
}

func NewChatHandler(
	c *services.ChatService,
	m *services.MembershipService,
	msg *services.MessageService,
) *ChatHandler {
	return &ChatHandler{chatSvc: c, memberSvc: m, msgSvc: msg}
}

func (h *ChatHandler) Create(w http.ResponseWriter, r *http.Request) {
	log := requestLogger(r)
	userID, ok := authedUser(w, r)
	if !ok {
		return
	}
	var req struct {
		Name      string  `json:"chat_name"`
		MemberIDs []int64 `json:"member_ids"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid request")
		return
	}
	chat, err := h.chatSvc.Create(r.Context(), userID, req.Name, req.MemberIDs)
	if err != nil {
		log.WarnContext(r.Context(), "chat handler - create failed", "user_id", userID, "err", err)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"chat_id":     chat.ID,
		"chat_name":   chat.Name,
		"create_time": domain.UnixSeconds(chat.CreateTime),
	})
}

func (h *ChatHandler) Detail(w http.ResponseWriter, r *http.Request) {
	if _, ok := authedUser(w, r); !ok {
		return
	}
	chatID, ok := pathID(r, "id")
	if !ok {
		badRequest(w, "invalid chat id")
		return
	}
	detail, err := h.chatSvc.Detail(r.Context(), chatID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"chat_id":      detail.Chat.ID,
		"chat_name":    detail.Chat.Name,
		"is_private":   detail.Chat.IsPrivate,
		"owner_id":     detail.OwnerID,
		"member_count": detail.MemberCount,
		"online_count": detail.OnlineCount,
		"create_time":  domain.UnixSeconds(detail.Chat.CreateTime),
	})
}

func (h *ChatHandler) Members(w http.ResponseWriter, r *http.Request) {
	userID, ok := authedUser(w, r)
	if !ok {
		return
	}
	chatID, ok := pathID(r, "id")
	if !ok {
		badRequest(w, "invalid chat id")
		return
	}
	members, err := h.chatSvc.Members(r.Context(), userID, chatID)
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]map[string]any, 0, len(members))
	for _, m := range members {
		v := userView(m.User)
		v["role"] = m.Role
		out = append(out, v)
	}
	writeJSON(w, http.StatusOK, map[string]any{"members": out})
}

// Manage multiplexes the membership transitions on the members route:
// invite, accept, reject and kick. Privilege changes have their own
// management route.
func (h *ChatHandler) Manage(w http.ResponseWriter, r *http.Request) {
	log := requestLogger(r)
	userID, ok := authedUser(w, r)
	if !ok {
		return
	}
	chatID, ok := pathID(r, "id")
	if !ok {
		badRequest(w, "invalid chat id")
		return
	}
	var req struct {
		Action   string `json:"action"`
		MemberID int64  `json:"member_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid request")
		return
	}
	var err error
	switch req.Action {
	case "invite":
		err = h.memberSvc.Invite(r.Context(), userID, chatID, req.MemberID)
	case "accept":
		err = h.memberSvc.Accept(r.Context(), userID, chatID)
	case "reject":
		err = h.memberSvc.Reject(r.Context(), userID, chatID)
	case "kick":
		err = h.memberSvc.Kick(r.Context(), userID, chatID, req.MemberID)
	default:
		badRequest(w, "unknown action")
		return
	}
	if err != nil {
		log.WarnContext(r.Context(), "chat handler - manage failed",
			"chat_id", chatID, "action", req.Action, "err", err)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "ok"})
}

// ChangePrivilege moves a member between member/admin/owner.
func (h *ChatHandler) ChangePrivilege(w http.ResponseWriter, r *http.Request) {
	log := requestLogger(r)
	userID, ok := authedUser(w, r)
	if !ok {
		return
	}
	chatID, ok := pathID(r, "id")
	if !ok {
		badRequest(w, "invalid chat id")
		return
	}
	var req struct {
		MemberID int64       `json:"member_id"`
		Role     domain.Role `json:"role"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid request")
		return
	}
	if err := h.memberSvc.ChangeRole(r.Context(), userID, chatID, req.MemberID, req.Role); err != nil {
		log.WarnContext(r.Context(), "chat handler - change privilege failed",
			"chat_id", chatID, "member_id", req.MemberID, "err", err)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "ok"})
}

func (h *ChatHandler) Leave(w http.ResponseWriter, r *http.Request) {
	userID, ok := authedUser(w, r)
	if !ok {
		return
	}
	chatID, ok := pathID(r, "id")
	if !ok {
		badRequest(w, "invalid chat id")
		return
	}
	if err := h.memberSvc.Leave(r.Context(), userID, chatID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "left"})
}

// History serves the chat's messages with optional text/sender/time
// filters carried in the query string; times are fractional epoch
// seconds like everywhere else on the wire.
func (h *ChatHandler) History(w http.ResponseWriter, r *http.Request) {
	userID, ok := authedUser(w, r)
	if !ok {
		return
	}
	chatID, ok := pathID(r, "id")
	if !ok {
		badRequest(w, "invalid chat id")
		return
	}
	f := domain.MessageFilter{Text: r.URL.Query().Get("text")}
	if v := r.URL.Query().Get("sender_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			badRequest(w, "invalid sender id")
			return
		}
		f.SenderID = id
	}
	var err error
	if f.Before, err = queryTime(r, "before"); err != nil {
		badRequest(w, "invalid before timestamp")
		return
	}
	if f.After, err = queryTime(r, "after"); err != nil {
		badRequest(w, "invalid after timestamp")
		return
	}
	msgs, err := h.msgSvc.History(r.Context(), userID, chatID, f)
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]map[string]any, 0, len(msgs))
	for i := range msgs {
		out = append(out, messageView(&msgs[i]))
	}
	writeJSON(w, http.StatusOK, map[string]any{"messages": out})
}

func queryTime(r *http.Request, name string) (time.Time, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return time.Time{}, nil
	}
	secs, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return time.Time{}, err
	}
	return time.UnixMilli(int64(math.Round(secs * 1000))), nil
}
