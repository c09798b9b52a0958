package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/Jason-Fu-git/CoTalk-Backend/internal/app/server/handlers"
	"github.com/Jason-Fu-git/CoTalk-Backend/internal/core/services"
	"github.com/Jason-Fu-git/CoTalk-Backend/pkg/middleware"
)

type Server struct {
	mux      *http.ServeMux
	addr     string
	log      *slog.Logger
	tokenSvc *services.TokenService

	authHandler  *handlers.AuthHandler
	userHandler  *handlers.UserHandler
	chatHandler  *handlers.ChatHandler
	msgHandler   *handlers.MessageHandler
	notifHandler *handlers.NotificationHandler
	wsHandler    *handlers.WSHandler

	httpServer *http.Server
}

func NewServer(
	addr string,
	log *slog.Logger,
	tokenSvc *services.TokenService,
	authHandler *handlers.AuthHandler,
	userHandler *handlers.UserHandler,
	chatHandler *handlers.ChatHandler,
	msgHandler *handlers.MessageHandler,
	notifHandler *handlers.NotificationHandler,
	wsHandler *handlers.WSHandler,
) *Server {
	s := &Server{
		mux:          http.NewServeMux(),
		addr:         addr,
		log:          log,
		tokenSvc:     tokenSvc,
		authHandler:  authHandler,
		userHandler:  userHandler,
		chatHandler:  chatHandler,
		msgHandler:   msgHandler,
		notifHandler: notifHandler,
		wsHandler:    wsHandler,
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	auth := middleware.AuthMiddleware(s.tokenSvc)
	protected := func(h http.HandlerFunc) http.Handler {
		return auth(h)
	}

	// Public routes
	s.mux.HandleFunc("POST /api/users/register", s.authHandler.Register)
	s.mux.HandleFunc("POST /api/users/login", s.authHandler.Login)

	// Account and friends
	s.mux.Handle("GET /api/users/{id}", protected(s.userHandler.Get))
	s.mux.Handle("PUT /api/users/{id}", protected(s.userHandler.Update))
	s.mux.Handle("DELETE /api/users/{id}", protected(s.userHandler.Delete))
	s.mux.Handle("GET /api/users/{id}/friends", protected(s.userHandler.ListFriends))
	s.mux.Handle("PUT /api/users/{id}/friends", protected(s.userHandler.ApplyFriend))

	// Chats
	s.mux.Handle("POST /api/chats", protected(s.chatHandler.Create))
	s.mux.Handle("GET /api/chats/{id}", protected(s.chatHandler.Detail))
	s.mux.Handle("GET /api/chats/{id}/members", protected(s.chatHandler.Members))
	s.mux.Handle("PUT /api/chats/{id}/members", protected(s.chatHandler.Manage))
	s.mux.Handle("PUT /api/chats/{id}/management", protected(s.chatHandler.ChangePrivilege))
	s.mux.Handle("DELETE /api/chats/{id}/members", protected(s.chatHandler.Leave))
	s.mux.Handle("GET /api/chats/{id}/messages", protected(s.chatHandler.History))

	// Messages
	s.mux.Handle("POST /api/messages", protected(s.msgHandler.Send))
	s.mux.Handle("GET /api/messages/{id}", protected(s.msgHandler.Get))
	s.mux.Handle("PUT /api/messages/{id}", protected(s.msgHandler.MarkRead))
	s.mux.Handle("DELETE /api/messages/{id}", protected(s.msgHandler.Delete))

	// Notifications
	s.mux.Handle("GET /api/notifications", protected(s.notifHandler.List))
	s.mux.Handle("PUT /api/notifications/{id}", protected(s.notifHandler.MarkRead))
	s.mux.Handle("DELETE /api/notifications/{id}", protected(s.notifHandler.Delete))

	// Realtime
	s.mux.Handle("GET /ws", protected(s.wsHandler.Handler))
}

func (s *Server) Start() error {
	chain := middleware.RequestLogger(s.log)(
		middleware.TracerMiddleware("cotalk")(s.mux))
	s.httpServer = &http.Server{
		Addr:        s.addr,
		Handler:     chain,
		ReadTimeout: 15 * time.Second,
		// No WriteTimeout: websocket sessions outlive any sane value.
	}
	s.log.Info("server starting", "addr", s.addr)
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}
