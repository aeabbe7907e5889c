package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/clonedigital/postpilot/internal/activity"
	"github.com/clonedigital/postpilot/internal/bot"
	"github.com/clonedigital/postpilot/internal/config"
	"github.com/clonedigital/postpilot/internal/feedsync"
	"github.com/clonedigital/postpilot/internal/fetcher"
	"github.com/clonedigital/postpilot/internal/gemini"
	"github.com/clonedigital/postpilot/internal/generator"
	"github.com/clonedigital/postpilot/internal/publisher"
	"github.com/clonedigital/postpilot/internal/ratelimit"
	"github.com/clonedigital/postpilot/internal/scheduler"
	"github.com/clonedigital/postpilot/internal/server"
	"github.com/clonedigital/postpilot/internal/store"
	"github.com/clonedigital/postpilot/internal/twitter"
)

func main() {
	// Load environment variables from .env file if it exists
	if err := godotenv.Load(); err != nil {
		logrus.Info("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Set up logging
	logrus.SetLevel(logrus.InfoLevel)
	if cfg.Debug {
		logrus.SetLevel(logrus.DebugLevel)
	}
	logrus.SetFormatter(&logrus.JSONFormatter{})

	logrus.Info("Starting postpilot")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	cancel()
	if err != nil {
		logrus.Fatalf("Failed to connect to Postgres: %v", err)
	}
	defer pool.Close()

	db := store.NewPostgres(pool)
	recorder := activity.NewRecorder(db)

	// A shared Redis counter keeps rate limits consistent across
	// instances; a single instance runs fine on the in-memory one.
	var limiter ratelimit.Limiter = ratelimit.NewMemoryLimiter()
	if cfg.RedisAddr != "" {
		limiter = ratelimit.NewRedisLimiter(cfg.RedisAddr)
		logrus.Infof("Using Redis rate limiter at %s", cfg.RedisAddr)
	}

	safeFetcher := fetcher.New(cfg.FetchTimeout)
	geminiClient := gemini.NewClient(cfg.GeminiAPIKey)

	generatorSvc := generator.NewService(db, geminiClient, safeFetcher, limiter, recorder, cfg)
	syncSvc := feedsync.NewService(db, safeFetcher, limiter, recorder, cfg)

	var publishSvc *publisher.Service
	if cfg.TwitterConfigured() {
		twitterClient := twitter.NewClient(twitter.Credentials{
			ConsumerKey:       cfg.TwitterAPIKey,
			ConsumerSecret:    cfg.TwitterAPIKeySecret,
			AccessToken:       cfg.TwitterAccessToken,
			AccessTokenSecret: cfg.TwitterAccessTokenSecret,
		})
		publishSvc = publisher.NewService(db, twitterClient, limiter, recorder, cfg)
	} else {
		logrus.Warn("Twitter credentials not set; publish and fetch-tweets are disabled")
	}

	var botSvc *bot.Service
	if cfg.TelegramBotToken != "" {
		botSvc, err = bot.NewService(db, bot.NewClient(cfg.TelegramBotToken), limiter, recorder, cfg)
		if err != nil {
			logrus.Fatalf("Failed to initialize Telegram bot: %v", err)
		}
		generatorSvc.SetNotifier(botSvc)
		syncSvc.SetNotifier(botSvc)
		if publishSvc != nil {
			publishSvc.SetNotifier(botSvc)
		}
	} else {
		logrus.Info("Telegram bot token not set; moderation bot disabled")
	}

	if cfg.EnableScheduler && publishSvc != nil {
		schedulerSvc := scheduler.NewService(db, publishSvc, syncSvc, cfg)
		if err := schedulerSvc.Start(); err != nil {
			logrus.Fatalf("Failed to start scheduler: %v", err)
		}
		defer schedulerSvc.Stop()
	}

	var botHandler server.BotHandler
	if botSvc != nil {
		botHandler = botSvc
	}
	var pub server.Publisher
	if publishSvc != nil {
		pub = publishSvc
	}
	srv := server.New(cfg, generatorSvc, pub, syncSvc, botHandler)

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      srv.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logrus.Infof("HTTP server starting on port %s", cfg.Port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logrus.Fatalf("HTTP server failed: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logrus.Info("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logrus.Errorf("Server forced to shutdown: %v", err)
	}

	logrus.Info("Server exited")
}
