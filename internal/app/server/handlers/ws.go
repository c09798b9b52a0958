package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/Jason-Fu-git/CoTalk-Backend/internal/app/server/ws"
	"github.com/Jason-Fu-git/CoTalk-Backend/internal/core/contracts"
	"github.com/Jason-Fu-git/CoTalk-Backend/internal/core/domain"
)

type WSHandler struct {
	hub      contracts.Registry
	members  domain.MembershipRepository
	presence contracts.PresenceStore

	heartbeatInterval time.Duration
	presenceTTL       time.Duration
}

func NewWSHandler(
	hub contracts.Registry,
	members domain.MembershipRepository,
	presence contracts.PresenceStore,
	heartbeatInterval, presenceTTL time.Duration,
) *WSHandler {
	return &WSHandler{
		hub:               hub,
		members:           members,
		presence:          presence,
		heartbeatInterval: heartbeatInterval,
		presenceTTL:       presenceTTL,
	}
}

// Handler upgrades the request and runs the connection's lifetime: at
// most one connection per user, subscriptions recomputed from approved
// memberships at connect, presence heartbeats while alive, full cleanup
// on exit.
func (s *WSHandler) Handler(w http.ResponseWriter, r *http.Request) {
	log := requestLogger(r)
	span := trace.SpanFromContext(r.Context())
	userID, ok := authedUser(w, r)
	if !ok {
		return
	}
	span.SetAttributes(attribute.Int64("user.id", userID))
	sessionCtx := context.WithoutCancel(r.Context())
	ctx, cancel := context.WithCancel(sessionCtx)
	var upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			return true // tighten later
		},
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.ErrorContext(r.Context(), "ws handler - upgrade failed", "err", err)
		cancel()
		return
	}
	defer conn.Close()
	conn.SetCloseHandler(func(code int, text string) error {
		log.Info("ws handler - ws closed", "user_id", userID)
		cancel()
		return nil
	})
	socket := ws.NewWebSocket(ctx, conn)
	client := ws.NewClient(ctx, socket, userID)
	if err := s.hub.Register(client); err != nil {
		if errors.Is(err, domain.ErrAlreadyConnected) {
			// The existing session wins; refuse the newcomer.
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "already connected"),
				time.Now().Add(time.Second))
		}
		log.WarnContext(r.Context(), "ws handler - register refused", "user_id", userID, "err", err)
		client.Close()
		cancel()
		return
	}
	defer s.hub.Unregister(client)
	defer client.Close()
	chatIDs, err := s.members.ListChatIDs(ctx, userID)
	if err != nil {
		log.ErrorContext(r.Context(), "ws handler - list chats failed", "user_id", userID, "err", err)
		cancel()
		return
	}
	for _, chatID := range chatIDs {
		s.hub.Subscribe(chatID, client)
	}
	log.InfoContext(r.Context(), "ws handler - connection established",
		"user_id", userID, "chats", len(chatIDs))
	go s.heartbeat(ctx, userID)
	defer func() {
		if err := s.presence.ClearUser(sessionCtx, userID); err != nil {
			log.Warn("ws handler - clear presence failed", "user_id", userID, "err", err)
		}
	}()
	socket.ReadLoop(func(data []byte) {
		// Inbound frames only refresh presence; state changes go through
		// the HTTP API.
		_ = s.presence.UpdateOnlineStatus(ctx, userID, s.presenceTTL)
	})
	cancel()
}

func (s *WSHandler) heartbeat(ctx context.Context, userID int64) {
	_ = s.presence.UpdateOnlineStatus(ctx, userID, s.presenceTTL)
	ticker := time.NewTicker(s.heartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_ = s.presence.UpdateOnlineStatus(ctx, userID, s.presenceTTL)
		}
	}
}
