package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/ShreyaJV11/support-chatbot/internal/api/handlers"
	"github.com/ShreyaJV11/support-chatbot/internal/audit"
	"github.com/ShreyaJV11/support-chatbot/internal/bootstrap"
	"github.com/ShreyaJV11/support-chatbot/internal/chat"
	"github.com/ShreyaJV11/support-chatbot/internal/escalation"
	"github.com/ShreyaJV11/support-chatbot/internal/kb"
	"github.com/ShreyaJV11/support-chatbot/internal/matching"
	"github.com/ShreyaJV11/support-chatbot/internal/metrics"
	"github.com/ShreyaJV11/support-chatbot/internal/middleware/auth"
	"github.com/ShreyaJV11/support-chatbot/internal/middleware/ratelimit"
	"github.com/ShreyaJV11/support-chatbot/internal/middleware/security"
	"github.com/ShreyaJV11/support-chatbot/internal/middleware/validation"
	"github.com/ShreyaJV11/support-chatbot/pkg/config"
	appLogger "github.com/ShreyaJV11/support-chatbot/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	err = appLogger.Init(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.OutputPath)
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer appLogger.Sync()

	appLogger.Info("Starting support chatbot API server")

	metrics.Init()

	stores, err := bootstrap.Open(context.Background(), cfg)
	if err != nil {
		appLogger.Fatal("Failed to open backends", zap.Error(err))
	}
	defer stores.Close()

	embedder := bootstrap.Embedder(cfg, stores.Redis)

	threshold, err := matching.NewThreshold(cfg.Matching.Threshold)
	if err != nil {
		appLogger.Fatal("Invalid confidence threshold", zap.Error(err))
	}

	matcher := bootstrap.Matcher(cfg, stores, embedder, threshold)

	creator := escalation.NewCreator(
		bootstrap.TicketSystem(cfg),
		escalation.WithTimeout(time.Duration(cfg.Ticketing.TimeoutSec)*time.Second),
	)

	auditSink := audit.NewSink(stores.Store, 256, 2)
	defer auditSink.Close()

	chatEngine := chat.NewEngine(
		matcher,
		bootstrap.Sessions(cfg, stores.Redis),
		stores.Store,
		creator,
		auditSink,
		chat.Options{MaxQuestionLength: cfg.Chat.MaxQuestionLength},
	)

	indexer := kb.NewIndexer(stores.Store, embedder, stores.Sink)

	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:    cfg.Server.BodyLimit,
	})

	rateLimiter := ratelimit.New(ratelimit.Config{
		MaxRequestsPerMinute: cfg.RateLimit.RequestsPerMinute,
		Burst:                cfg.RateLimit.Burst,
		Logger:               appLogger.GetLogger(),
	})
	defer rateLimiter.Stop()

	app.Use(recover.New())
	app.Use(logger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: cfg.Server.AllowOrigins,
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
		AllowMethods: "GET, POST, PUT, OPTIONS",
	}))
	app.Use(security.HeadersMiddleware(security.HeadersConfig{
		WidgetOrigins: widgetOrigins(cfg.Server.AllowOrigins),
		IsDevelopment: cfg.Logging.Format != "json",
	}))

	chatHandler := handlers.NewChatHandler(chatEngine, stores.Store)
	adminHandler := handlers.NewAdminHandler(threshold, indexer, stores.Store)
	wsHandler := handlers.NewWebSocketHandler(chatEngine)

	deps := map[string]handlers.Pinger{"storage": stores.Store}
	if stores.Redis != nil {
		deps["redis"] = stores.Redis
	}
	breakers := map[string]handlers.BreakerReporter{}
	if b, ok := embedder.(handlers.BreakerReporter); ok {
		breakers["embedding"] = b
	}
	healthHandler := handlers.NewHealthHandler(deps, breakers)

	app.Get("/metrics", metrics.MetricsHandler())

	api := app.Group("/api/v1")
	api.Get("/health", healthHandler.Health)
	api.Get("/ready", healthHandler.Ready)

	validate := validation.Middleware(validation.Config{Logger: appLogger.GetLogger()})

	chatRoutes := api.Group("/chat", rateLimiter.Middleware())
	chatRoutes.Post("/", validate, chatHandler.HandleChat)
	chatRoutes.Get("/history", chatHandler.GetHistory)

	api.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	api.Get("/ws/chat", rateLimiter.Middleware(), websocket.New(wsHandler.HandleConnection))

	admin := api.Group("/admin", auth.AdminMiddleware(cfg.Admin.JWTSecret))
	admin.Get("/threshold", adminHandler.GetThreshold)
	admin.Put("/threshold", validate, adminHandler.UpdateThreshold)
	admin.Get("/kb/entries", adminHandler.ListEntries)
	admin.Get("/kb/entries/:id", adminHandler.GetEntry)
	admin.Post("/kb/entries", validate, adminHandler.ImportEntries)
	admin.Post("/kb/reindex", adminHandler.Reindex)
	admin.Get("/unanswered", adminHandler.ListUnanswered)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	appLogger.Info("Server starting",
		zap.String("address", addr),
		zap.String("matching_mode", cfg.Matching.Mode),
		zap.Float64("threshold", threshold.Load()),
	)

	go func() {
		if err := app.Listen(addr); err != nil {
			appLogger.Fatal("Server failed to start", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	appLogger.Info("Server shutting down gracefully...")
	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		appLogger.Error("Server shutdown failed", zap.Error(err))
	}
	appLogger.Info("Server stopped")
}

func widgetOrigins(allowOrigins string) []string {
	if allowOrigins == "" || allowOrigins == "*" {
		return nil
	}
	var origins []string
	for _, o := range strings.Split(allowOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	return origins
}
