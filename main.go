package main

import (
	"context"
	"log"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"social-service/internal/chat"
	"social-service/internal/comments"
	"social-service/internal/config"
	"social-service/internal/db"
	"social-service/internal/events"
	"social-service/internal/handlers"
	"social-service/internal/middleware"
	"social-service/internal/observability"
	"social-service/internal/presence"
	"social-service/internal/ratelimit"
	"social-service/internal/secretkey"
	"social-service/internal/store"
	"social-service/internal/telemetry"
	"social-service/internal/ws"
)

func main() {
	cfg := config.Load()

	shutdownTracing, err := telemetry.SetupTracing(context.Background(), cfg.OTLPAddr, "social-service", cfg.Environment)
	if err != nil {
		log.Fatalf("failed to set up tracing: %v", err)
	}
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			log.Printf("tracing shutdown: %v", err)
		}
	}()

	database, err := db.Connect(cfg.DatabaseDSN)
	if err != nil {
		log.Fatalf("failed to connect to db: %v", err)
	}
	defer database.Close()

	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer rdb.Close()
	limiter := ratelimit.NewLimiter(ratelimit.NewRedisStore(rdb))

	publisher := events.NewPublisher(cfg.AMQPURL, cfg.Exchange)
	defer publisher.Close()
	audit := telemetry.NewAuditEmitter(publisher, "audit.social", "social-service", cfg.Environment)

	mgr := store.NewManager(database)
	tracker := presence.NewTracker()

	chatSvc := chat.NewChatService(mgr, tracker)
	commentSvc := comments.NewCommentService(mgr, limiter)
	keySvc := secretkey.NewKeyService(mgr)

	hub := ws.NewHub(publisher)

	conversationHandler := handlers.NewConversationHandler(chatSvc, hub, audit)
	commentHandler := handlers.NewCommentHandler(commentSvc, audit)
	keyHandler := handlers.NewKeyHandler(keySvc, audit)
	conversationWS := ws.NewConversationHandler(hub, keySvc, chatSvc, publisher)

	router := gin.Default()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware("social-service"))
	router.Use(observability.HTTPMetricsMiddleware())

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	auth := middleware.Auth(db.NewTokenValidator(database))

	router.GET("/conversations", auth, conversationHandler.ListConversations)
	router.POST("/conversations/private", auth, conversationHandler.StartPrivate)
	router.POST("/conversations/groups", auth, conversationHandler.CreateGroup)
	router.POST("/conversations/:conversation_id/invite", auth, conversationHandler.Invite)
	router.GET("/conversations/:conversation_id/messages", auth, conversationHandler.ListMessages)
	router.POST("/conversations/:conversation_id/messages", auth, conversationHandler.PostMessage)
	router.DELETE("/conversations/:conversation_id/members/me", auth, conversationHandler.Leave)
	router.DELETE("/conversations/:conversation_id", auth, conversationHandler.Delete)
	router.POST("/conversations/:conversation_id/ws-key", auth, keyHandler.WsKey)
	router.GET("/users/search", auth, conversationHandler.SearchUsers)

	router.POST("/posts/:post_id/comments", auth, commentHandler.Create)
	router.POST("/posts/:post_id/comments/batch", auth, commentHandler.BatchCreate)
	router.GET("/posts/:post_id/comments", auth, commentHandler.Tree)
	router.GET("/posts/:post_id/status", auth, commentHandler.PostStatus)
	router.DELETE("/posts/:post_id", auth, commentHandler.DeletePost)
	router.DELETE("/comments/:comment_id", auth, commentHandler.DeleteComment)
	router.POST("/reactions", auth, commentHandler.React)

	router.POST("/keys/temp", auth, keyHandler.GenerateTemp)
	router.POST("/keys/temp/use", auth, keyHandler.UseTemp)

	router.GET("/ws/conversations/:conversation_id", conversationWS.Handle)

	go func() {
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()
		for range ticker.C {
			n, err := keySvc.CleanupExpiredTempKeys(context.Background())
			if err != nil {
				log.Printf("temp key cleanup: %v", err)
			} else if n > 0 {
				log.Printf("removed %d expired temp keys", n)
			}
		}
	}()

	if err := router.Run(":" + cfg.Port); err != nil {
		log.Fatalf("server error: %v", err)
	}
}
