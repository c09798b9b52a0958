package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/Jason-Fu-git/CoTalk-Backend/internal/core/services"
)

type AuthHandler struct {
	userSvc  *services.UserService
	tokenSvc *services.TokenService
}

func NewAuthHandler(u *services.UserService, t *services.TokenService) *AuthHandler {
	return &AuthHandler{userSvc: u, tokenSvc: t}
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	log := requestLogger(r)
	var req struct {
		Name     string `json:"user_name"`
		Password string `json:"password"`
		Email    string `json:"user_email"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid request")
		return
	}
	user, err := h.userSvc.Register(r.Context(), req.Name, req.Password, req.Email)
	if err != nil {
		log.ErrorContext(r.Context(), "auth handler - register failed", "user_name", req.Name, "err", err)
		writeError(w, err)
		return
	}
	token, err := h.tokenSvc.GenerateToken(user.ID)
	if err != nil {
		log.ErrorContext(r.Context(), "auth handler - generate token failed", "user_id", user.ID, "err", err)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"token": token,
		"user":  userView(user),
	})
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	log := requestLogger(r)
	var req struct {
		Name     string `json:"user_name"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid request")
		return
	}
	user, err := h.userSvc.Login(r.Context(), req.Name, req.Password)
	if err != nil {
		log.WarnContext(r.Context(), "auth handler - login failed", "user_name", req.Name, "err", err)
		writeError(w, err)
		return
	}
	token, err := h.tokenSvc.GenerateToken(user.ID)
	if err != nil {
		log.ErrorContext(r.Context(), "auth handler - generate token failed", "user_id", user.ID, "err", err)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"token": token,
		"user":  userView(user),
	})
}
