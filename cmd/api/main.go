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
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"go.uber.org/zap"

	"github.com/amitsahu0611/chatbot-sub001/internal/answer"
	"github.com/amitsahu0611/chatbot-sub001/internal/api/handlers"
	"github.com/amitsahu0611/chatbot-sub001/internal/cache/redis"
	"github.com/amitsahu0611/chatbot-sub001/internal/ingestion"
	"github.com/amitsahu0611/chatbot-sub001/internal/leads"
	"github.com/amitsahu0611/chatbot-sub001/internal/llm"
	"github.com/amitsahu0611/chatbot-sub001/internal/matcher"
	"github.com/amitsahu0611/chatbot-sub001/internal/metrics"
	"github.com/amitsahu0611/chatbot-sub001/internal/middleware/ratelimit"
	"github.com/amitsahu0611/chatbot-sub001/internal/middleware/security"
	"github.com/amitsahu0611/chatbot-sub001/internal/middleware/validation"
	"github.com/amitsahu0611/chatbot-sub001/internal/query"
	"github.com/amitsahu0611/chatbot-sub001/internal/session"
	"github.com/amitsahu0611/chatbot-sub001/internal/storage"
	"github.com/amitsahu0611/chatbot-sub001/internal/unanswered"
	"github.com/amitsahu0611/chatbot-sub001/pkg/config"
	appLogger "github.com/amitsahu0611/chatbot-sub001/pkg/logger"
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

	appLogger.Info("Starting support chat API server")

	metrics.Init()

	store, err := storage.Open(cfg)
	if err != nil {
		appLogger.Fatal("Failed to open storage", zap.Error(err))
	}
	defer store.Close()

	var generator answer.Generator
	if cfg.LLM.Enabled {
		generator = llm.NewClient(cfg.LLM)
		appLogger.Info("Answer generator enabled", zap.String("model", cfg.LLM.Model))
	}

	var cache *redis.Client
	if cfg.Redis.Enabled {
		cache, err = redis.NewClient(cfg.Redis)
		if err != nil {
			appLogger.Warn("Redis unavailable, match cache disabled", zap.Error(err))
			cache = nil
		} else {
			defer cache.Close()
		}
	}

	processor := ingestion.NewProcessor(store, nil)
	tracker := unanswered.NewTracker(store, processor, unanswered.Config{
		ScanWindow:          cfg.Unanswered.ScanWindow,
		SimilarityThreshold: cfg.Unanswered.SimilarityThreshold,
	}, nil)

	sessions := session.NewManager(store, leads.NewEngine(store, nil), session.Config{
		Duration:      cfg.SessionDuration(),
		MaxDuration:   cfg.MaxSessionDuration(),
		SlidingExpiry: cfg.Session.SlidingExpiry,
	}, nil)

	opts := []query.Option{}
	if cache != nil {
		opts = append(opts, query.WithCache(cache))
		tracker.OnKnowledgeChange = func(tenantID int64) {
			ctx, cancel := context.WithTimeout(context.Background(), cfg.StorageTimeout())
			defer cancel()
			if err := cache.InvalidateTenant(ctx, tenantID); err != nil {
				appLogger.Warn("Failed to invalidate match cache", zap.Int64("tenant_id", tenantID), zap.Error(err))
			}
		}
	}

	queryEngine := query.NewEngine(
		store,
		matcher.NewTieredMatcher(store),
		answer.NewSynthesizer(generator),
		tracker,
		sessions,
		query.Limits{
			DefaultLimit:      cfg.Search.DefaultLimit,
			MaxLimit:          cfg.Search.MaxLimit,
			MaxQueryLength:    cfg.Search.MaxQueryLength,
			SuggestionLimit:   cfg.Search.SuggestionLimit,
			SideEffectTimeout: cfg.StorageTimeout(),
		},
		opts...,
	)

	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:    cfg.Server.BodyLimit,
		ProxyHeader:  cfg.Server.ProxyHeader,
	})

	limiter := ratelimit.New(ratelimit.Config{
		MaxRequestsPerMinute: cfg.RateLimit.RequestsPerMinute,
		Logger:               appLogger.GetLogger(),
	})
	defer limiter.Stop()

	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(logger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: strings.Join(cfg.Server.AllowedOrigins, ","),
		AllowHeaders: "Origin, Content-Type, Accept, X-Session-Token, X-Admin-Token",
		AllowMethods: "GET, POST, PUT, DELETE, OPTIONS",
	}))
	app.Use(security.HeadersMiddleware(security.HeadersConfig{
		AllowedOrigins: cfg.Server.AllowedOrigins,
		IsDevelopment:  cfg.Server.IsDevelopment,
	}))
	app.Get("/metrics", metrics.MetricsHandler())

	app.Use(handlers.APIPrefix, limiter.Middleware())
	app.Use(validation.Middleware(validation.Config{
		MaxQueryLength: cfg.Search.MaxQueryLength,
		TenantPaths:    handlers.TenantPaths,
		Logger:         appLogger.GetLogger(),
	}))

	deps := map[string]handlers.Pinger{"storage": store}
	if cache != nil {
		deps["redis"] = cache
	}

	handlers.Mount(app, handlers.Set{
		Search:     handlers.NewSearchHandler(queryEngine),
		Session:    handlers.NewSessionHandler(sessions),
		Unanswered: handlers.NewUnansweredHandler(tracker),
		WebSocket:  handlers.NewWebSocketHandler(queryEngine),
		Health:     handlers.NewHealthHandler(deps),
		AdminToken: cfg.Server.AdminToken,
	})

	ctx, stop := context.WithCancel(context.Background())
	defer stop()
	if interval := time.Duration(cfg.Session.SweepIntervalSec) * time.Second; interval > 0 {
		go sessions.RunSweeper(ctx, interval)
	}

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	appLogger.Info("Server starting", zap.String("address", addr))

	go func() {
		if err := app.Listen(addr); err != nil {
			appLogger.Fatal("Server failed to start", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	appLogger.Info("Server shutting down gracefully...")
	stop()
	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		appLogger.Warn("Shutdown did not complete cleanly", zap.Error(err))
	}
	appLogger.Info("Server stopped")
}
