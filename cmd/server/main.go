package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/joho/godotenv"

	"github.com/developia-II/feedback-board-backend/internal/config"
	"github.com/developia-II/feedback-board-backend/internal/handlers"
	"github.com/developia-II/feedback-board-backend/internal/realtime"
	"github.com/developia-II/feedback-board-backend/internal/repository"
	"github.com/developia-II/feedback-board-backend/internal/services"
	"github.com/developia-II/feedback-board-backend/utils"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Invalid configuration", "error", err)
		os.Exit(1)
	}

	log := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize storage
	store, err := repository.Open(ctx, cfg.Storage, cfg.DSN(), cfg.DBName)
	if err != nil {
		log.Error("Failed to open storage", "storage", cfg.Storage, "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := store.Close(context.Background()); err != nil {
			log.Error("Failed to close storage", "error", err)
		}
	}()

	// Realtime fan-out
	hub := realtime.Default.GetOrInit()
	defer hub.Shutdown()

	var publisher realtime.Publisher = realtime.NewHubPublisher(realtime.Default)
	if cfg.RedisURL != "" {
		rdb, err := connectRedis(ctx, cfg.RedisURL)
		if err != nil {
			log.Error("Failed to connect to redis", "error", err)
			os.Exit(1)
		}
		defer rdb.Close()

		publisher = realtime.NewRedisPublisher(rdb, realtime.DefaultRedisChannel)
		go func() {
			err := realtime.RelayFromRedis(ctx, rdb, realtime.DefaultRedisChannel, realtime.Default, log, nil)
			if err != nil {
				log.Error("Redis relay stopped", "error", err)
			}
		}()
	}

	// Services
	feedbackService := services.NewFeedbackService(store.Feedbacks, publisher, log)

	var summaryService *services.SummaryService
	if cfg.FeatureSummaries {
		var chat services.ChatClient
		if ai := services.NewOpenAIService(services.OpenAIConfig{
			APIKey:  cfg.OpenAIAPIKey,
			BaseURL: cfg.OpenAIBaseURL,
			Model:   cfg.OpenAIModel,
		}); ai != nil {
			chat = ai
		}
		summaryService = services.NewSummaryService(store.Feedbacks, chat, cfg.SummaryMaxItems, log)
		log.Info("Summaries enabled", "llm", chat != nil, "model", cfg.OpenAIModel)
	}

	// Create Fiber app
	app := fiber.New(handlers.FiberConfig())

	// Middleware
	app.Use(recover.New())
	app.Use(logger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: cfg.FrontendURL,
		AllowHeaders: "Origin, Content-Type, Accept",
		AllowMethods: "GET, POST",
	}))
	app.Use(limiter.New(limiter.Config{
		Max:        cfg.RateLimitMax,
		Expiration: 1 * time.Minute,
		LimitReached: func(c *fiber.Ctx) error {
			return utils.ErrorResponse(c, fiber.StatusTooManyRequests, "Too many requests")
		},
	}))

	// Routes
	handlers.New(handlers.Options{
		Feedbacks: feedbackService,
		Events:    store.Events,
		Summaries: summaryService,
		Registry:  realtime.Default,
		Logger:    log,
	}).Routes(app)

	// Start server
	go func() {
		log.Info("Server starting", "port", cfg.Port, "storage", cfg.Storage, "redis", cfg.RedisURL != "")
		if err := app.Listen(":" + cfg.Port); err != nil {
			log.Error("Server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("Shutting down")

	// Close sockets first so hijacked connections do not hold up shutdown.
	hub.Shutdown()
	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		log.Error("Server shutdown error", "error", err)
	}
}

func connectRedis(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	rdb := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, err
	}
	return rdb, nil
}
