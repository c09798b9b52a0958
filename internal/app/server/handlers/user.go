package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/Jason-Fu-git/CoTalk-Backend/internal/core/services"
)

type UserHandler struct {
	userSvc   *services.UserService
	friendSvc *services.FriendService
}

func NewUserHandler(u *services.UserService, f *services.FriendService) *UserHandler {
	return &UserHandler{userSvc: u, friendSvc: f}
}

func (h *UserHandler) Get(w http.ResponseWriter, r *http.Request) {
	if _, ok := authedUser(w, r); !ok {
		return
	}
	id, ok := pathID(r, "id")
	if !ok {
		badRequest(w, "invalid user id")
		return
	}
	user, err := h.userSvc.Get(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, userView(user))
}

// ownPath ensures the {id} in the path is the authenticated user; the
// profile and friend routes only ever operate on the caller's own state.
func ownPath(w http.ResponseWriter, r *http.Request) (int64, bool) {
	userID, ok := authedUser(w, r)
	if !ok {
		return 0, false
	}
	id, ok := pathID(r, "id")
	if !ok {
		badRequest(w, "invalid user id")
		return 0, false
	}
	if id != userID {
		writeJSON(w, http.StatusForbidden, map[string]string{"error": "not your account"})
		return 0, false
	}
	return userID, true
}

func (h *UserHandler) Update(w http.ResponseWriter, r *http.Request) {
	userID, ok := ownPath(w, r)
	if !ok {
		return
	}
	var req struct {
		Name     *string `json:"user_name"`
		Password *string `json:"password"`
		Email    *string `json:"user_email"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid request")
		return
	}
	upd := services.ProfileUpdate{Name: req.Name, Password: req.Password, Email: req.Email}
	if err := h.userSvc.Update(r.Context(), userID, upd); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "updated"})
}

func (h *UserHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, ok := ownPath(w, r)
	if !ok {
		return
	}
	if err := h.userSvc.Delete(r.Context(), userID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "deleted"})
}

func (h *UserHandler) ListFriends(w http.ResponseWriter, r *http.Request) {
	userID, ok := ownPath(w, r)
	if !ok {
		return
	}
	friends, err := h.friendSvc.List(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]map[string]any, 0, len(friends))
	for i := range friends {
		out = append(out, userView(&friends[i]))
	}
	writeJSON(w, http.StatusOK, map[string]any{"friends": out})
}

// ApplyFriend drives the whole friendship flow with one endpoint: the
// action taken depends on the current state and the approve flag.
func (h *UserHandler) ApplyFriend(w http.ResponseWriter, r *http.Request) {
	log := requestLogger(r)
	userID, ok := ownPath(w, r)
	if !ok {
		return
	}
	var req struct {
		FriendID int64 `json:"friend_id"`
		Approve  bool  `json:"is_approved"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid request")
		return
	}
	if req.FriendID <= 0 {
		badRequest(w, "invalid friend id")
		return
	}
	status, err := h.friendSvc.Apply(r.Context(), userID, req.FriendID, req.Approve)
	if err != nil {
		log.WarnContext(r.Context(), "user handler - friend apply failed",
			"user_id", userID, "friend_id", req.FriendID, "err", err)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": string(status)})
}
