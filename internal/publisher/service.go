// Package publisher pushes approved posts to the platform and caches
// persona timelines for voice context.
package publisher

import (
	"context"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/clonedigital/postpilot/internal/activity"
	"github.com/clonedigital/postpilot/internal/apperr"
	"github.com/clonedigital/postpilot/internal/config"
	"github.com/clonedigital/postpilot/internal/models"
	"github.com/clonedigital/postpilot/internal/ratelimit"
	"github.com/clonedigital/postpilot/internal/store"
	"github.com/clonedigital/postpilot/internal/twitter"
)

// How many cached tweets are kept per persona.
const tweetCacheSize = 500

// Platform is the publish/timeline surface of the platform client.
type Platform interface {
	CreateTweet(ctx context.Context, text string) (*twitter.CreateResult, error)
	UserTweets(ctx context.Context, twitterUserID, sinceID string) ([]twitter.Tweet, error)
}

// Notifier announces published posts to the moderation channel.
type Notifier interface {
	NotifyPublished(ctx context.Context, post *models.Post, tweetURL string)
}

// Service publishes posts and syncs timelines.
type Service struct {
	store    store.Store
	platform Platform
	limiter  ratelimit.Limiter
	recorder *activity.Recorder
	notifier Notifier
	cfg      *config.Config
}

// NewService creates a publisher service.
func NewService(s store.Store, p Platform, l ratelimit.Limiter, r *activity.Recorder, cfg *config.Config) *Service {
	return &Service{store: s, platform: p, limiter: l, recorder: r, cfg: cfg}
}

// SetNotifier attaches the optional moderation-channel notifier.
func (s *Service) SetNotifier(n Notifier) { s.notifier = n }

// Publish sends the post to the platform and marks it published. All
// preconditions are checked before the outbound call so an invalid post
// never consumes platform quota.
func (s *Service) Publish(ctx context.Context, userID, postID uuid.UUID) (*twitter.CreateResult, error) {
	limit := s.limiter.Allow(ctx, "publish:"+userID.String(), s.cfg.PublishLimit.MaxRequests, s.cfg.PublishLimit.Window)
	if !limit.Allowed {
		return nil, apperr.RateLimited(limit.RetryAfter)
	}

	post, err := s.store.GetPost(ctx, postID)
	if err != nil {
		return nil, apperr.NotFound("post not found")
	}
	persona, err := s.store.GetPersona(ctx, post.PersonaID)
	if err != nil || persona.UserID != userID {
		return nil, apperr.NotFound("post not found")
	}

	if post.Status != models.PostStatusApproved && post.Status != models.PostStatusScheduled {
		return nil, apperr.InvalidState(fmt.Sprintf("post is %s; only approved or scheduled posts can be published", post.Status))
	}
	if post.Content == "" {
		return nil, apperr.InvalidState("post has no content")
	}
	if utf8.RuneCountInString(post.Content) > s.cfg.CharacterLimit {
		return nil, apperr.InvalidState(fmt.Sprintf("post exceeds the %d character limit", s.cfg.CharacterLimit))
	}

	result, err := s.platform.CreateTweet(ctx, post.Content)
	if err != nil {
		return nil, err
	}

	if err := s.store.MarkPostPublished(ctx, post.ID, result.TweetID, time.Now()); err != nil {
		// The tweet is out; surface the bookkeeping failure rather than
		// pretending the publish failed.
		logrus.Errorf("Post %s published as %s but could not be marked: %v", post.ID, result.TweetID, err)
		return result, fmt.Errorf("mark post published: %w", err)
	}

	s.recorder.Record(ctx, userID, persona.ID, models.ActivityPostPublished,
		fmt.Sprintf("Published post %s as %s", post.ShortID(), result.TweetID))
	if s.notifier != nil {
		s.notifier.NotifyPublished(ctx, post, result.TweetURL)
	}

	return result, nil
}

// FetchResult summarizes one timeline sync.
type FetchResult struct {
	Fetched int `json:"fetched"`
	Stored  int `json:"stored"`
}

// FetchTweets pulls the persona's recent timeline into the cache,
// starting after the newest tweet already cached.
func (s *Service) FetchTweets(ctx context.Context, userID, personaID uuid.UUID) (*FetchResult, error) {
	limit := s.limiter.Allow(ctx, "fetch-tweets:"+userID.String(), s.cfg.FetchTweetsLimit.MaxRequests, s.cfg.FetchTweetsLimit.Window)
	if !limit.Allowed {
		return nil, apperr.RateLimited(limit.RetryAfter)
	}

	persona, err := s.store.GetPersona(ctx, personaID)
	if err != nil || persona.UserID != userID {
		return nil, apperr.NotFound("persona not found")
	}
	if persona.TwitterUserID == "" {
		return nil, apperr.InvalidState("persona has no linked Twitter account")
	}

	sinceID, err := s.store.LatestCachedTweetID(ctx, persona.ID)
	if err != nil {
		return nil, fmt.Errorf("latest cached tweet: %w", err)
	}

	tweets, err := s.platform.UserTweets(ctx, persona.TwitterUserID, sinceID)
	if err != nil {
		return nil, err
	}

	cached := make([]models.CachedTweet, 0, len(tweets))
	for _, t := range tweets {
		cached = append(cached, models.CachedTweet{
			ID:           uuid.New(),
			PersonaID:    persona.ID,
			TweetID:      t.ID,
			Text:         t.Text,
			TweetedAt:    t.CreatedAt,
			LikeCount:    t.LikeCount,
			RetweetCount: t.RetweetCount,
		})
	}

	stored, err := s.store.UpsertCachedTweets(ctx, cached)
	if err != nil {
		return nil, fmt.Errorf("cache tweets: %w", err)
	}

	if err := s.store.PruneCachedTweets(ctx, persona.ID, tweetCacheSize); err != nil {
		logrus.Warnf("Failed to prune tweet cache for persona %s: %v", persona.ID, err)
	}
	if err := s.store.UpdatePersonaFetchTime(ctx, persona.ID, time.Now()); err != nil {
		logrus.Warnf("Failed to update fetch time for persona %s: %v", persona.ID, err)
	}

	return &FetchResult{Fetched: len(tweets), Stored: stored}, nil
}
