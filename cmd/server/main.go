package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"atendai/internal/config"
	"atendai/internal/database"
	"atendai/internal/handlers"
	"atendai/internal/jobs"
	"atendai/internal/logging"
	"atendai/internal/services"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/joho/godotenv"
)

func main() {
	logging.Init()

	// Load .env file if it exists (ignore errors in production)
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("❌ Invalid configuration: %v", err)
	}

	metrics := services.InitMetrics()

	// Durable conversation store (MySQL). Optional: without it the memory
	// cache runs purely in-memory and write-through is disabled.
	var store services.ConversationStore
	var db *database.DB
	if cfg.DatabaseURL != "" {
		var err error
		db, err = database.New(cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("❌ Failed to connect to MySQL: %v", err)
		}
		defer db.Close()

		if err := db.Initialize(); err != nil {
			log.Fatalf("❌ Failed to initialize conversation store: %v", err)
		}
		store = services.NewConversationStoreService(db, cfg.MaxMessagesPerContext)
	} else {
		log.Println("⚠️ DATABASE_URL not set, running without durable conversation store")
	}

	// Account-side query services (MongoDB). Optional: enrichment degrades
	// to conversation-only output without them.
	var users services.UserDirectory
	var subscriptions services.SubscriptionQuery
	var tickets services.TicketQuery
	var interactions services.InteractionQuery
	if cfg.MongoURI != "" {
		mongodb, err := database.NewMongoDB(cfg.MongoURI)
		if err != nil {
			log.Fatalf("❌ Failed to connect to MongoDB: %v", err)
		}
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			mongodb.Close(ctx)
		}()

		users = services.NewUserDirectoryService(mongodb)
		subscriptions = services.NewSubscriptionQueryService(mongodb)
		support := services.NewSupportQueryService(mongodb)
		tickets = support
		interactions = support
	} else {
		log.Println("⚠️ MONGODB_URI not set, enrichment runs conversation-only")
	}

	// Live session store (Redis). Optional.
	var sessions services.SessionStore
	if cfg.RedisURL != "" {
		sessionStore, err := services.NewSessionStoreService(cfg.RedisURL)
		if err != nil {
			log.Printf("⚠️ Redis unavailable, session enrichment disabled: %v", err)
		} else {
			sessions = sessionStore
			defer sessionStore.Close()
		}
	}

	cache, err := services.NewContextCacheService(store, services.CacheConfig{
		MaxSize:               cfg.CacheMaxSize,
		TTL:                   cfg.CacheTTL,
		SweepInterval:         cfg.CacheSweepInterval,
		MaxMessagesPerContext: cfg.MaxMessagesPerContext,
		SummaryThreshold:      cfg.SummaryThreshold,
	}, metrics)
	if err != nil {
		log.Fatalf("❌ Failed to initialize context cache: %v", err)
	}
	metrics.ObserveCache(cache)

	memory := services.NewConversationMemoryService(cache, store, nil, cfg.PersistMessages, metrics)
	enrichment := services.NewContextEnrichmentService(memory, users, subscriptions,
		tickets, interactions, sessions, cfg.EnrichmentFetchTimeout, metrics)

	// Background jobs
	scheduler := jobs.NewJobScheduler()
	if db != nil {
		scheduler.Register("interaction-retention", jobs.NewRetentionCleanupJob(db, cfg.InteractionRetentionDays))
	}
	scheduler.Start()

	app := fiber.New(fiber.Config{
		AppName:      "AtendAI Context Service v1.0",
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
		BodyLimit:    1 * 1024 * 1024,
	})

	app.Use(recover.New())
	app.Use(logger.New())

	prometheus := fiberprometheus.New("atendai")
	prometheus.RegisterAt(app, "/metrics")
	app.Use(prometheus.Middleware)
	log.Println("📊 Prometheus metrics endpoint enabled at /metrics")

	allowedOrigins := os.Getenv("ALLOWED_ORIGINS")
	if allowedOrigins == "" {
		allowedOrigins = "http://localhost:5173,http://localhost:3000"
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins: allowedOrigins,
		AllowMethods: "GET,POST,DELETE,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept,Authorization",
	}))

	healthHandler := handlers.NewHealthHandler(memory)
	contextHandler := handlers.NewContextHandler(memory, enrichment)

	app.Get("/health", healthHandler.Handle)

	api := app.Group("/api")
	api.Get("/jobs", func(c *fiber.Ctx) error {
		return c.JSON(scheduler.GetStatus())
	})
	api.Get("/context/stats", contextHandler.GetCacheStats)
	api.Get("/context/:phone", contextHandler.GetContext)
	api.Post("/context/:phone/messages", contextHandler.AddMessage)
	api.Get("/context/:phone/enriched", contextHandler.GetEnrichedContext)
	api.Get("/context/:phone/llm", contextHandler.GenerateLLMContext)
	api.Get("/context/:phone/history", contextHandler.GetFormattedHistory)
	api.Get("/context/:phone/summary", contextHandler.GetConversationSummary)
	api.Get("/context/:phone/topics", contextHandler.GetTopics)
	api.Delete("/context/:phone", contextHandler.ClearContext)

	// Handle graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		log.Println("\n🛑 Shutting down server...")

		scheduler.Stop()
		cache.Shutdown()

		if err := app.Shutdown(); err != nil {
			log.Printf("⚠️ Error shutting down server: %v", err)
		}
	}()

	log.Printf("🚀 AtendAI context service listening on :%s", cfg.Port)
	if err := app.Listen(":" + cfg.Port); err != nil {
		log.Fatalf("❌ Failed to start server: %v", err)
	}
}
