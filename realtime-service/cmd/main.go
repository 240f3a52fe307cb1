package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/weiawesome/wes-gig-live/pkg/database"
	"github.com/weiawesome/wes-gig-live/pkg/jwt"
	pkglog "github.com/weiawesome/wes-gig-live/pkg/log"
	"github.com/weiawesome/wes-gig-live/pkg/middleware"
	"github.com/weiawesome/wes-gig-live/pkg/pubsub"
	"github.com/weiawesome/wes-gig-live/pkg/storage"
	"github.com/weiawesome/wes-gig-live/realtime-service/internal/auth"
	"github.com/weiawesome/wes-gig-live/realtime-service/internal/cache"
	"github.com/weiawesome/wes-gig-live/realtime-service/internal/config"
	"github.com/weiawesome/wes-gig-live/realtime-service/internal/domain"
	"github.com/weiawesome/wes-gig-live/realtime-service/internal/handler"
	"github.com/weiawesome/wes-gig-live/realtime-service/internal/hub"
	"github.com/weiawesome/wes-gig-live/realtime-service/internal/repository"
	"github.com/weiawesome/wes-gig-live/realtime-service/internal/service"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		l := pkglog.L()
		l.Fatal().Err(err).Msg("failed to load config")
	}

	// Initialize structured logger
	hostname, _ := os.Hostname()
	pkglog.Init(pkglog.Config{
		Level:       cfg.Log.Level,
		Pretty:      cfg.Log.Pretty,
		ServiceName: "realtime-service",
		Instance:    hostname,
	})
	logger := pkglog.L()

	// Connect to database using GORM
	db, err := database.New(&cfg.Database)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer database.Close(db)

	if err := database.AutoMigrate(db, domain.Models()...); err != nil {
		logger.Fatal().Err(err).Msg("failed to auto-migrate")
	}
	logger.Info().Str("driver", cfg.Database.Driver).Msg("database migration completed")

	// Sender summary cache
	var summaryCache cache.SummaryCache = cache.NoopCache{}
	if cfg.Redis.Address != "" {
		redisCache, err := cache.NewRedisSummaryCache(cfg.Redis, cfg.Cache.Prefix)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect to redis")
		}
		summaryCache = redisCache
		logger.Info().Str("address", cfg.Redis.Address).Msg("redis cache connected")
	}
	defer summaryCache.Close()

	// Domain event publisher
	publisher, err := pubsub.NewPublisher(cfg.Events)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create event publisher")
	}
	defer publisher.Close()
	logger.Info().Str("driver", cfg.Events.Driver).Msg("event publisher ready")

	// Attachment storage
	store, err := storage.New(context.Background(), cfg.Storage)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize storage")
	}

	// Tokens are issued by the marketplace API; this service only verifies them.
	tokens, err := jwt.NewManager(cfg.JWT.Secret, cfg.JWT.Issuer, 0, jwt.WithLeeway(cfg.JWT.Leeway))
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create token manager")
	}

	// Repositories
	users := repository.NewGormUserRepository(db)
	conversationRepo := repository.NewGormConversationRepository(db)
	messageRepo := repository.NewGormMessageRepository(db)
	notificationRepo := repository.NewGormNotificationRepository(db)

	resolver := auth.NewResolver(tokens, users)
	wsHub := hub.NewHub(hub.NewRegistry())

	// Services
	gate := service.NewRoomGate(repository.NewConversationThreadStore(db), repository.NewTaskThreadStore(db))
	directory := service.NewUserDirectory(users, summaryCache, cfg.Cache.TTL)
	notificationSvc := service.NewNotificationService(notificationRepo, wsHub, publisher, cfg.Chat)
	conversationSvc := service.NewConversationService(conversationRepo, messageRepo, users, gate, directory, publisher, cfg.Chat)
	chatSvc := service.NewChatService(wsHub, gate, directory, conversationSvc, notificationSvc, publisher, cfg.Chat)
	attachmentSvc := service.NewAttachmentService(store, cfg.Chat.MaxUploadSize, cfg.Storage.URLTTL)

	httpHandler := handler.NewHandler(handler.Services{
		Chat:          chatSvc,
		Conversations: conversationSvc,
		Notifications: notificationSvc,
		Attachments:   attachmentSvc,
		Emitter:       wsHub,
		Presence:      wsHub.Registry(),
	}, middleware.NewAuthMiddleware(resolver), cfg.Internal.Token)
	wsHandler := handler.NewWSHandler(wsHub, chatSvc, resolver, cfg.WebSocket)

	// Setup Gin router
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(pkglog.GinMiddleware(logger, cfg.WebSocket.Path))

	if local, ok := store.(*storage.LocalStorage); ok {
		r.Static(local.PublicPrefix(), local.BasePath())
	}

	httpHandler.RegisterRoutes(r)
	wsHandler.RegisterRoutes(r)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:        addr,
		Handler:     r,
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	go func() {
		logger.Info().Str("addr", addr).Str("ws_path", cfg.WebSocket.Path).Msg("realtime-service starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down realtime-service")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	// Hijacked websocket connections are not tracked by Shutdown.
	wsHub.Close()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server forced to shutdown")
	}

	logger.Info().Msg("realtime-service stopped")
}
