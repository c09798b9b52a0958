package main

import (
	"context"
	"database/sql"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Jason-Fu-git/CoTalk-Backend/internal/app/registry"
	"github.com/Jason-Fu-git/CoTalk-Backend/internal/app/server"
	"github.com/Jason-Fu-git/CoTalk-Backend/internal/app/server/handlers"
	"github.com/Jason-Fu-git/CoTalk-Backend/internal/app/worker"
	"github.com/Jason-Fu-git/CoTalk-Backend/internal/config"
	"github.com/Jason-Fu-git/CoTalk-Backend/internal/core/services"
	"github.com/Jason-Fu-git/CoTalk-Backend/internal/platform/logger"
	"github.com/Jason-Fu-git/CoTalk-Backend/internal/platform/telemetry"
	"github.com/Jason-Fu-git/CoTalk-Backend/internal/plugins/postgres"
	redisPlugin "github.com/Jason-Fu-git/CoTalk-Backend/internal/plugins/redis"
)

func main() {
	// Context
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Config
	cfg := config.Load()

	// Logger
	log := logger.NewLogger(*cfg)
	log.Info("starting application")

	otelShutdown, err := telemetry.InitTelemetry(ctx, *cfg)
	if err != nil {
		log.Error("failed to initialize telemetry", "err", err)
	}
	defer func() {
		log.Info("flushing telemetry...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := otelShutdown(shutdownCtx); err != nil {
			log.Error("telemetry shutdown failed", "err", err)
		}
	}()

	// Infra
	var pdb *sql.DB
	if pdb, err = postgres.New(ctx, *cfg.Postgres); err != nil {
		log.Error("postgres connection failed", "err", err)
		return
	}
	log.Info("postgres connected")
	var rdb *redis.Client
	if rdb, err = redisPlugin.NewRedisClient(ctx, *cfg.Redis); err != nil {
		log.Error("redis connection failed", "url", cfg.Redis.URL)
		return
	}
	log.Info("redis connected")

	// Adapters
	userRepo := postgres.NewUserRepo(pdb)
	chatRepo := postgres.NewChatRepo(pdb)
	memberRepo := postgres.NewMembershipRepo(pdb)
	msgRepo := postgres.NewMessageRepo(pdb)
	friendRepo := postgres.NewFriendshipRepo(pdb)
	notifRepo := postgres.NewNotificationRepo(pdb)
	presStore := redisPlugin.NewRedisPresenceStore(rdb, cfg.Chat.PresenceTTL)
	queue := redisPlugin.NewRedisEventQueue(rdb, log)

	// Core services
	hub := registry.NewRegistry()
	txManager := services.NewTxManager(pdb)
	dispatcher := services.NewDispatcher(log, hub, notifRepo)
	feed := services.NewSystemFeed(log, queue)
	tokenSvc := services.NewTokenService(cfg.Auth.Secret, cfg.Auth.TokenTTL)
	userSvc := services.NewUserService(log, userRepo, txManager)
	chatSvc := services.NewChatService(log, chatRepo, memberRepo, userRepo, presStore, dispatcher, txManager)
	memberSvc := services.NewMembershipService(log, chatRepo, memberRepo, userRepo, msgRepo, dispatcher, hub, feed, txManager)
	msgSvc := services.NewMessageService(log, msgRepo, memberRepo, chatRepo, dispatcher, feed, txManager, cfg.Chat.WithdrawWindow)
	friendSvc := services.NewFriendService(log, friendRepo, userRepo, chatRepo, memberRepo, msgRepo, dispatcher, hub, txManager)
	notifSvc := services.NewNotificationService(log, notifRepo)

	// System-message worker
	wrkr := worker.NewSystemWorker(log, queue, userRepo, msgRepo, dispatcher, txManager, cfg.Worker.SystemGroup)
	go func() {
		if err := wrkr.Run(ctx); err != nil {
			log.Error("system worker stopped", "err", err)
		}
	}()

	// Server
	srv := server.NewServer(
		cfg.Service.Addr,
		log,
		tokenSvc,
		handlers.NewAuthHandler(userSvc, tokenSvc),
		handlers.NewUserHandler(userSvc, friendSvc),
		handlers.NewChatHandler(chatSvc, memberSvc, msgSvc),
		handlers.NewMessageHandler(msgSvc),
		handlers.NewNotificationHandler(notifSvc),
		handlers.NewWSHandler(hub, memberRepo, presStore, cfg.Chat.HeartbeatInterval, cfg.Chat.PresenceTTL),
	)
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("server shutdown failed", "err", err)
		}
	}()
	if err := srv.Start(); err != nil {
		log.Error("server stopped", "err", err)
	}
}
