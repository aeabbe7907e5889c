// Package server exposes the pipeline operations over HTTP for the
// dashboard and receives the Telegram webhook.
package server

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/clonedigital/postpilot/internal/bot"
	"github.com/clonedigital/postpilot/internal/config"
	"github.com/clonedigital/postpilot/internal/feedsync"
	"github.com/clonedigital/postpilot/internal/generator"
	"github.com/clonedigital/postpilot/internal/models"
	"github.com/clonedigital/postpilot/internal/publisher"
	"github.com/clonedigital/postpilot/internal/twitter"
)

// Generator is the generation surface used by the HTTP layer.
type Generator interface {
	Generate(ctx context.Context, userID uuid.UUID, req generator.Request) ([]*models.Post, error)
}

// Publisher is the publish/timeline surface used by the HTTP layer.
type Publisher interface {
	Publish(ctx context.Context, userID, postID uuid.UUID) (*twitter.CreateResult, error)
	FetchTweets(ctx context.Context, userID, personaID uuid.UUID) (*publisher.FetchResult, error)
}

// Syncer is the feed sync surface used by the HTTP layer.
type Syncer interface {
	Sync(ctx context.Context, userID, sourceID uuid.UUID) (*feedsync.Result, error)
}

// BotHandler processes Telegram webhook updates.
type BotHandler interface {
	HandleUpdate(ctx context.Context, update *bot.Update) error
}

// Server routes HTTP requests to the pipeline services.
type Server struct {
	cfg       *config.Config
	generator Generator
	publisher Publisher
	syncer    Syncer
	bot       BotHandler // nil when the Telegram bot is not configured
	router    *mux.Router
}

// New creates the HTTP server. bot may be nil.
func New(cfg *config.Config, g Generator, p Publisher, s Syncer, b BotHandler) *Server {
	srv := &Server{cfg: cfg, generator: g, publisher: p, syncer: s, bot: b}
	srv.routes()
	return srv
}

func (s *Server) routes() {
	r := mux.NewRouter()
	r.Use(loggingMiddleware)
	r.Use(corsMiddleware(s.cfg.AllowedOrigins))

	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/generate", s.handleGenerate).Methods(http.MethodPost, http.MethodOptions)
	api.HandleFunc("/publish", s.handlePublish).Methods(http.MethodPost, http.MethodOptions)
	api.HandleFunc("/sync", s.handleSync).Methods(http.MethodPost, http.MethodOptions)
	api.HandleFunc("/fetch-tweets", s.handleFetchTweets).Methods(http.MethodPost, http.MethodOptions)

	r.HandleFunc("/webhook/telegram", s.handleTelegramWebhook).Methods(http.MethodPost)

	s.router = r
}

// Handler returns the configured router.
func (s *Server) Handler() http.Handler {
	return s.router
}
