package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// RateLimitBudget is a policy constant: at most MaxRequests operations
// per key within Window.
type RateLimitBudget struct {
	MaxRequests int
	Window      time.Duration
}

// Config holds all configuration for the application
type Config struct {
	// Server configuration
	Port           string
	Debug          bool
	AllowedOrigins []string

	// Storage configuration
	DatabaseURL string
	RedisAddr   string // optional; enables the shared rate-limit counter

	// Twitter OAuth 1.0a credentials
	TwitterAPIKey            string
	TwitterAPIKeySecret      string
	TwitterAccessToken       string
	TwitterAccessTokenSecret string

	// Gemini configuration
	GeminiAPIKey string
	GeminiModel  string

	// Telegram moderation bot
	TelegramBotToken       string
	TelegramWebhookSecret  string
	TelegramAllowedChatIDs []string
	TelegramOwnerUserID    string

	// Trending-topics feed used as optional generation context
	TrendsURL string

	// Platform constraints
	CharacterLimit int

	// Outbound fetch timeout
	FetchTimeout time.Duration

	// Rate limit budgets per operation class
	GenerateLimit    RateLimitBudget
	PublishLimit     RateLimitBudget
	SyncLimit        RateLimitBudget
	FetchTweetsLimit RateLimitBudget
	BotLimit         RateLimitBudget

	// Scheduler configuration
	EnableScheduler bool
	PublishSchedule string // cron expression for due scheduled posts
	SyncSchedule    string // cron expression for periodic feed sync
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		Port:           getEnv("PORT", "8080"),
		Debug:          getBoolEnv("DEBUG", false),
		AllowedOrigins: getSliceEnv("ALLOWED_ORIGINS", nil),

		DatabaseURL: getEnv("DATABASE_URL", ""),
		RedisAddr:   getEnv("REDIS_ADDR", ""),

		TwitterAPIKey:            getEnv("TWITTER_API_KEY", ""),
		TwitterAPIKeySecret:      getEnv("TWITTER_API_KEY_SECRET", ""),
		TwitterAccessToken:       getEnv("TWITTER_ACCESS_TOKEN", ""),
		TwitterAccessTokenSecret: getEnv("TWITTER_ACCESS_TOKEN_SECRET", ""),

		GeminiAPIKey: getEnv("GEMINI_API_KEY", ""),
		GeminiModel:  getEnv("GEMINI_MODEL", "gemini-2.0-flash"),

		TelegramBotToken:       getEnv("TELEGRAM_BOT_TOKEN", ""),
		TelegramWebhookSecret:  getEnv("TELEGRAM_WEBHOOK_SECRET", ""),
		TelegramAllowedChatIDs: getSliceEnv("TELEGRAM_ALLOWED_CHAT_IDS", nil),
		TelegramOwnerUserID:    getEnv("TELEGRAM_OWNER_USER_ID", ""),

		TrendsURL: getEnv("TRENDS_URL", "https://trends.google.com/trending/rss?geo=US"),

		CharacterLimit: getIntEnv("CHARACTER_LIMIT", 280),
		FetchTimeout:   time.Duration(getIntEnv("FETCH_TIMEOUT_SECONDS", 30)) * time.Second,

		GenerateLimit:    budgetEnv("RATE_LIMIT_GENERATE", 10, 60),
		PublishLimit:     budgetEnv("RATE_LIMIT_PUBLISH", 30, 900),
		SyncLimit:        budgetEnv("RATE_LIMIT_SYNC", 20, 60),
		FetchTweetsLimit: budgetEnv("RATE_LIMIT_FETCH_TWEETS", 5, 3600),
		BotLimit:         budgetEnv("RATE_LIMIT_BOT", 30, 60),

		EnableScheduler: getBoolEnv("ENABLE_SCHEDULER", true),
		PublishSchedule: getEnv("PUBLISH_SCHEDULE", "0 */5 * * * *"),
		SyncSchedule:    getEnv("SYNC_SCHEDULE", "0 0 * * * *"),
	}

	// Validate required configuration
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	// Twitter credentials are all-or-nothing: a partial set produces
	// signatures the API rejects with no useful diagnostics.
	twitterVars := []string{
		c.TwitterAPIKey, c.TwitterAPIKeySecret,
		c.TwitterAccessToken, c.TwitterAccessTokenSecret,
	}
	set := 0
	for _, v := range twitterVars {
		if v != "" {
			set++
		}
	}
	if set != 0 && set != len(twitterVars) {
		return fmt.Errorf("TWITTER_API_KEY, TWITTER_API_KEY_SECRET, TWITTER_ACCESS_TOKEN and TWITTER_ACCESS_TOKEN_SECRET must be set together")
	}

	if c.TelegramBotToken != "" && c.TelegramWebhookSecret == "" {
		return fmt.Errorf("TELEGRAM_WEBHOOK_SECRET is required when TELEGRAM_BOT_TOKEN is set")
	}

	if c.CharacterLimit <= 0 {
		return fmt.Errorf("CHARACTER_LIMIT must be positive")
	}

	return nil
}

// TwitterConfigured reports whether the publish/fetch credentials are set.
func (c *Config) TwitterConfigured() bool {
	return c.TwitterAPIKey != "" && c.TwitterAPIKeySecret != "" &&
		c.TwitterAccessToken != "" && c.TwitterAccessTokenSecret != ""
}

func budgetEnv(prefix string, defaultMax, defaultWindowSeconds int) RateLimitBudget {
	return RateLimitBudget{
		MaxRequests: getIntEnv(prefix+"_MAX", defaultMax),
		Window:      time.Duration(getIntEnv(prefix+"_WINDOW_SECONDS", defaultWindowSeconds)) * time.Second,
	}
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getSliceEnv(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		return parts
	}
	return defaultValue
}
