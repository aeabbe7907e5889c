// Package feedsync pulls RSS/Atom sources and stores new entries as
// pending feed posts.
package feedsync

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/clonedigital/postpilot/internal/activity"
	"github.com/clonedigital/postpilot/internal/apperr"
	"github.com/clonedigital/postpilot/internal/config"
	"github.com/clonedigital/postpilot/internal/feed"
	"github.com/clonedigital/postpilot/internal/models"
	"github.com/clonedigital/postpilot/internal/ratelimit"
	"github.com/clonedigital/postpilot/internal/store"
)

const (
	// At most this many feed items are parsed per sync.
	maxProcessed = 10
	// At most this many new posts are inserted per sync.
	maxInserted = 5
	// How many stored feed posts are fingerprinted for duplicate
	// detection.
	historyWindow = 50
)

// Fetcher retrieves a feed document. The production implementation
// rejects unsafe URLs before any network I/O.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) ([]byte, error)
}

// Notifier announces new feed entries to the moderation channel.
type Notifier interface {
	NotifySynced(ctx context.Context, sourceName string, count int)
}

// Service syncs feed sources.
type Service struct {
	store    store.Store
	fetcher  Fetcher
	limiter  ratelimit.Limiter
	recorder *activity.Recorder
	notifier Notifier
	cfg      *config.Config
}

// NewService creates a feed sync service.
func NewService(s store.Store, f Fetcher, l ratelimit.Limiter, r *activity.Recorder, cfg *config.Config) *Service {
	return &Service{store: s, fetcher: f, limiter: l, recorder: r, cfg: cfg}
}

// SetNotifier attaches the optional moderation-channel notifier.
func (s *Service) SetNotifier(n Notifier) { s.notifier = n }

// Result summarizes one sync run.
type Result struct {
	Processed int `json:"processed"`
	Synced    int `json:"synced"`
}

// Sync fetches the source's feed and stores entries not seen before.
// Fetch and parse failures flip the source to the error state; a
// successful run restores it to active and stamps the sync time.
func (s *Service) Sync(ctx context.Context, userID, sourceID uuid.UUID) (*Result, error) {
	limit := s.limiter.Allow(ctx, "sync:"+userID.String(), s.cfg.SyncLimit.MaxRequests, s.cfg.SyncLimit.Window)
	if !limit.Allowed {
		return nil, apperr.RateLimited(limit.RetryAfter)
	}

	source, err := s.store.GetSource(ctx, sourceID)
	if err != nil {
		return nil, apperr.NotFound("source not found")
	}
	persona, err := s.store.GetPersona(ctx, source.PersonaID)
	if err != nil || persona.UserID != userID {
		return nil, apperr.NotFound("source not found")
	}

	body, err := s.fetcher.Fetch(ctx, source.URL)
	if err != nil {
		if markErr := s.store.MarkSourceError(ctx, source.ID, err.Error()); markErr != nil {
			logrus.Warnf("Failed to mark source %s as errored: %v", source.ID, markErr)
		}
		return nil, err
	}

	items := feed.Parse(string(body), maxProcessed)

	history, err := s.store.ListFeedPosts(ctx, persona.ID, &source.ID, historyWindow)
	if err != nil {
		return nil, fmt.Errorf("load feed history: %w", err)
	}
	seen := make(map[string]bool, len(history))
	for _, p := range history {
		seen[feed.Fingerprint(p.Content)] = true
	}

	var posts []*models.Post
	for _, item := range items {
		content := feed.ShapeContent(item)
		fp := feed.Fingerprint(content)
		if seen[fp] {
			continue
		}
		seen[fp] = true

		posts = append(posts, &models.Post{
			ID:          uuid.New(),
			PersonaID:   persona.ID,
			Content:     content,
			Status:      models.PostStatusPending,
			Origin:      models.OriginFeed,
			OriginLabel: source.Name,
			SourceID:    &source.ID,
			CreatedAt:   time.Now(),
		})
		if len(posts) == maxInserted {
			break
		}
	}

	if err := s.store.InsertPosts(ctx, posts); err != nil {
		return nil, fmt.Errorf("store feed posts: %w", err)
	}

	if err := s.store.MarkSourceSynced(ctx, source.ID, len(posts), time.Now()); err != nil {
		return nil, fmt.Errorf("mark source synced: %w", err)
	}

	if len(posts) > 0 {
		s.recorder.Record(ctx, userID, persona.ID, models.ActivitySourceSynced,
			fmt.Sprintf("Synced %d new entries from %s", len(posts), source.Name))
		if s.notifier != nil {
			s.notifier.NotifySynced(ctx, source.Name, len(posts))
		}
	}

	return &Result{Processed: len(items), Synced: len(posts)}, nil
}
