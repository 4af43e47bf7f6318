// Command chat-store is the HTTP and websocket backend the chat client talks to.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"

	"chat-client/internal/config"
	"chat-client/internal/db"
	"chat-client/internal/handlers"
	"chat-client/internal/logger"
	"chat-client/internal/middleware"
	"chat-client/internal/observability"
	"chat-client/internal/rabbitmq"
	"chat-client/internal/repositories"
	"chat-client/internal/telemetry"
	"chat-client/internal/ws"
)

func main() {
	cfg, err := config.Load(".")
	if err != nil {
		logger.Log.Fatal("load config", zap.Error(err))
	}
	logger.Init(cfg.LogLevel, cfg.LogJSON)
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := observability.InitTracing(ctx, observability.TracingConfig{
		ServiceName:  cfg.ServiceName,
		Environment:  cfg.Environment,
		OTLPEndpoint: cfg.OTLPEndpoint,
	})
	if err != nil {
		logger.Log.Fatal("init tracing", zap.Error(err))
	}

	database, err := db.Connect(cfg.DBDSN)
	if err != nil {
		logger.Log.Fatal("failed to connect to db", zap.Error(err))
	}
	defer database.Close()

	publisher := rabbitmq.NewPublisher(cfg.AMQPURL, cfg.AMQPExchange)
	defer publisher.Close()
	observability.SetPublisher(publisher)
	logger.Info("publisher ready", zap.String("mode", rabbitmq.PublisherMode(publisher)), zap.String("noop_reason", rabbitmq.PublisherNoopReason(publisher)))
	audit := telemetry.NewAuditEmitter(publisher, "audit."+cfg.ServiceName, cfg.ServiceName, cfg.Environment)

	messageRepo := repositories.NewMessageRepo(database)
	conversationRepo := repositories.NewConversationRepo(database)
	resourceRepo := repositories.NewResourceRepo(database)

	hub := ws.NewHub()

	messageHandler := handlers.NewMessageHandler(messageRepo, resourceRepo, hub, publisher, audit)
	conversationHandler := handlers.NewConversationHandler(conversationRepo, hub, publisher)
	resourceHandler := handlers.NewResourceHandler(resourceRepo, audit)
	userWS := ws.NewUserWebSocketHandler(hub)

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	// middlewares
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware(cfg.ServiceName))
	router.Use(middleware.RequestID())
	router.Use(middleware.Identity())
	router.Use(middleware.Logger())
	router.Use(observability.HTTPMetricsMiddleware())

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/healthz", func(c *gin.Context) {
		if err := database.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "db unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := router.Group("/", middleware.RateLimit(cfg.RateLimitRPS, cfg.RateLimitBurst))
	api.GET("/messages", messageHandler.List)
	api.POST("/messages", messageHandler.Create)
	api.GET("/messages/:id", messageHandler.Get)
	api.PATCH("/messages/:id", messageHandler.Patch)
	api.DELETE("/messages/:id", messageHandler.Delete)

	api.GET("/conversations", conversationHandler.List)
	api.GET("/conversations/:id", conversationHandler.Get)
	api.PATCH("/conversations/:id", conversationHandler.Patch)
	api.DELETE("/conversations/:id", conversationHandler.Delete)

	resourceHandler.Register(api)

	router.GET("/ws/users/:user_id", userWS.Handle)
	handlers.RegisterDebugRoutes(router, audit, cfg.DebugRoutes)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.Info("server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Log.Fatal("server error", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		logger.Error("tracer shutdown", zap.Error(err))
	}
}
