// Package generator turns persona context into draft posts via the AI
// model and stores them for moderation.
package generator

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/clonedigital/postpilot/internal/activity"
	"github.com/clonedigital/postpilot/internal/apperr"
	"github.com/clonedigital/postpilot/internal/config"
	"github.com/clonedigital/postpilot/internal/feed"
	"github.com/clonedigital/postpilot/internal/gemini"
	"github.com/clonedigital/postpilot/internal/models"
	"github.com/clonedigital/postpilot/internal/ratelimit"
	"github.com/clonedigital/postpilot/internal/store"
)

const (
	defaultCount = 3
	maxCount     = 10

	// How many recent posts are compared against for duplicates.
	dedupWindow = 50

	// Context block sizes.
	topStyleTweets    = 5
	recentStyleTweets = 5
	maxFeedArticles   = 5
	maxTrends         = 5
)

// TextGenerator produces raw model output for a prompt.
type TextGenerator interface {
	GenerateContent(ctx context.Context, model, prompt string) (string, error)
}

// Fetcher retrieves the optional trending-topics feed.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) ([]byte, error)
}

// Notifier announces new drafts to the moderation channel.
type Notifier interface {
	NotifyGenerated(ctx context.Context, personaName string, posts []*models.Post)
}

// Service generates draft posts.
type Service struct {
	store    store.Store
	ai       TextGenerator
	fetcher  Fetcher
	limiter  ratelimit.Limiter
	recorder *activity.Recorder
	notifier Notifier
	cfg      *config.Config
}

// NewService creates a generator service.
func NewService(s store.Store, ai TextGenerator, f Fetcher, l ratelimit.Limiter, r *activity.Recorder, cfg *config.Config) *Service {
	return &Service{store: s, ai: ai, fetcher: f, limiter: l, recorder: r, cfg: cfg}
}

// SetNotifier attaches the optional moderation-channel notifier.
func (s *Service) SetNotifier(n Notifier) { s.notifier = n }

// Request describes one generation call.
type Request struct {
	PersonaID     uuid.UUID
	Topic         string
	Count         int
	SourceID      *uuid.UUID
	Model         string
	UseTweetStyle bool
}

// Generate produces up to req.Count draft posts for the persona and
// stores them as pending. It returns the stored posts.
func (s *Service) Generate(ctx context.Context, userID uuid.UUID, req Request) ([]*models.Post, error) {
	limit := s.limiter.Allow(ctx, "generate:"+userID.String(), s.cfg.GenerateLimit.MaxRequests, s.cfg.GenerateLimit.Window)
	if !limit.Allowed {
		return nil, apperr.RateLimited(limit.RetryAfter)
	}

	count := req.Count
	if count == 0 {
		count = defaultCount
	}
	if count < 1 || count > maxCount {
		return nil, apperr.InvalidInput(fmt.Sprintf("count must be between 1 and %d", maxCount))
	}

	model := req.Model
	if model == "" || !gemini.IsSupportedModel(model) {
		model = s.cfg.GeminiModel
	}

	persona, err := s.store.GetPersona(ctx, req.PersonaID)
	if err != nil || persona.UserID != userID {
		return nil, apperr.NotFound("persona not found")
	}

	var source *models.Source
	if req.SourceID != nil {
		source, err = s.store.GetSource(ctx, *req.SourceID)
		if err != nil || source.PersonaID != persona.ID {
			return nil, apperr.NotFound("source not found")
		}
	}

	recent, err := s.store.ListRecentPosts(ctx, persona.ID, dedupWindow)
	if err != nil {
		return nil, fmt.Errorf("load recent posts: %w", err)
	}

	prompt := s.buildPrompt(ctx, persona, req, source, count)

	raw, err := s.ai.GenerateContent(ctx, model, prompt)
	if err != nil {
		return nil, err
	}

	candidates, ok := gemini.ExtractPosts(raw)
	if !ok {
		return nil, apperr.NoValidOutput("the model did not return a usable list of posts")
	}

	posts := s.filterCandidates(candidates, recent, count, model, persona.ID, source)
	if len(posts) == 0 {
		return nil, apperr.NoValidOutput("all generated posts were empty, too long or duplicates")
	}

	if err := s.store.InsertPosts(ctx, posts); err != nil {
		return nil, fmt.Errorf("store generated posts: %w", err)
	}

	s.recorder.Record(ctx, userID, persona.ID, models.ActivityAIGenerated,
		fmt.Sprintf("Generated %d draft posts for %s", len(posts), persona.Name))
	if s.notifier != nil {
		s.notifier.NotifyGenerated(ctx, persona.Name, posts)
	}

	return posts, nil
}

// filterCandidates sanitizes the model output and drops entries that are
// empty, exceed the platform limit or repeat recent content.
func (s *Service) filterCandidates(candidates []models.GeneratedPost, recent []models.Post, count int, model string, personaID uuid.UUID, source *models.Source) []*models.Post {
	seen := make(map[string]bool, len(recent))
	for _, p := range recent {
		seen[normalizeContent(p.Content)] = true
	}

	label := fmt.Sprintf("Gemini AI (%s)", model)
	var sourceID *uuid.UUID
	if source != nil {
		label = "Gemini AI + " + source.Name
		sourceID = &source.ID
	}

	var posts []*models.Post
	for _, c := range candidates {
		content := gemini.Sanitize(c.Content)
		if content == "" {
			continue
		}
		if utf8.RuneCountInString(content) > s.cfg.CharacterLimit {
			logrus.Debugf("Dropping generated post over %d characters", s.cfg.CharacterLimit)
			continue
		}
		key := normalizeContent(content)
		if seen[key] {
			continue
		}
		seen[key] = true

		posts = append(posts, &models.Post{
			ID:          uuid.New(),
			PersonaID:   personaID,
			Content:     content,
			Status:      models.PostStatusPending,
			Origin:      models.OriginAI,
			OriginLabel: label,
			SourceID:    sourceID,
			Hashtags:    c.Hashtags,
			CreatedAt:   time.Now(),
		})
		if len(posts) == count {
			break
		}
	}
	return posts
}

func (s *Service) buildPrompt(ctx context.Context, persona *models.Persona, req Request, source *models.Source, count int) string {
	var b strings.Builder

	fmt.Fprintf(&b, "You are %s (%s), writing posts for Twitter/X.\n", persona.Name, persona.Handle)
	if persona.Tone != "" {
		fmt.Fprintf(&b, "Tone of voice: %s.\n", persona.Tone)
	}
	if len(persona.Topics) > 0 {
		fmt.Fprintf(&b, "Usual topics: %s.\n", strings.Join(persona.Topics, ", "))
	}

	if req.UseTweetStyle {
		if tweets := s.styleTweets(ctx, persona.ID); len(tweets) > 0 {
			b.WriteString("\nMatch the writing style of these real posts by the same author:\n")
			for _, t := range tweets {
				fmt.Fprintf(&b, "- %s\n", t.Text)
			}
		}
	}

	if articles, err := s.store.ListFeedPosts(ctx, persona.ID, req.SourceID, maxFeedArticles); err == nil && len(articles) > 0 {
		heading := "\nRecent articles you may draw on:\n"
		if source != nil {
			heading = fmt.Sprintf("\nRecent articles from %s you may draw on:\n", source.Name)
		}
		b.WriteString(heading)
		for _, a := range articles {
			fmt.Fprintf(&b, "- %s\n", a.Content)
		}
	}

	if trends := s.fetchTrends(ctx); len(trends) > 0 {
		b.WriteString("\nCurrently trending topics:\n")
		for _, trend := range trends {
			fmt.Fprintf(&b, "- %s\n", trend)
		}
	}

	if req.Topic != "" {
		fmt.Fprintf(&b, "\nWrite about: %s\n", req.Topic)
	}

	fmt.Fprintf(&b, "\nWrite %d distinct posts of at most %d characters each.\n", count, s.cfg.CharacterLimit)
	b.WriteString(`Respond with only a JSON array: [{"content": "...", "hashtags": ["..."]}]`)

	return b.String()
}

// styleTweets merges the persona's most-liked and most recent cached
// tweets, deduplicated, for voice imitation.
func (s *Service) styleTweets(ctx context.Context, personaID uuid.UUID) []models.CachedTweet {
	top, err := s.store.ListCachedTweets(ctx, personaID, topStyleTweets)
	if err != nil {
		logrus.Debugf("Style context (top tweets) unavailable: %v", err)
	}
	recent, err := s.store.ListRecentCachedTweets(ctx, personaID, recentStyleTweets)
	if err != nil {
		logrus.Debugf("Style context (recent tweets) unavailable: %v", err)
	}

	seen := make(map[string]bool, len(top)+len(recent))
	var merged []models.CachedTweet
	for _, t := range append(top, recent...) {
		if seen[t.TweetID] {
			continue
		}
		seen[t.TweetID] = true
		merged = append(merged, t)
	}
	return merged
}

// fetchTrends pulls the trending-topics feed. It is pure context, so
// any failure just means the prompt goes out without it.
func (s *Service) fetchTrends(ctx context.Context) []string {
	if s.cfg.TrendsURL == "" || s.fetcher == nil {
		return nil
	}
	body, err := s.fetcher.Fetch(ctx, s.cfg.TrendsURL)
	if err != nil {
		logrus.Debugf("Trends fetch failed: %v", err)
		return nil
	}
	items := feed.Parse(string(body), maxTrends)
	trends := make([]string, 0, len(items))
	for _, item := range items {
		trends = append(trends, item.Title)
	}
	return trends
}

func normalizeContent(content string) string {
	return strings.ToLower(strings.TrimSpace(content))
}
