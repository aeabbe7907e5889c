package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/clonedigital/postpilot/internal/models"
)

// Memory is an in-memory Store. It backs tests and single-node
// development setups without a database.
type Memory struct {
	mu sync.Mutex

	personas   map[uuid.UUID]*models.Persona
	posts      map[uuid.UUID]*models.Post
	sources    map[uuid.UUID]*models.Source
	tweets     map[uuid.UUID]*models.CachedTweet
	Activities []models.Activity
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		personas: make(map[uuid.UUID]*models.Persona),
		posts:    make(map[uuid.UUID]*models.Post),
		sources:  make(map[uuid.UUID]*models.Source),
		tweets:   make(map[uuid.UUID]*models.CachedTweet),
	}
}

// AddPersona seeds a persona.
func (m *Memory) AddPersona(p models.Persona) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.personas[p.ID] = &p
}

// AddSource seeds a source.
func (m *Memory) AddSource(src models.Source) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sources[src.ID] = &src
}

// AddPost seeds a post.
func (m *Memory) AddPost(p models.Post) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.posts[p.ID] = &p
}

func (m *Memory) GetPersona(_ context.Context, id uuid.UUID) (*models.Persona, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.personas[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *Memory) UpdatePersonaFetchTime(_ context.Context, id uuid.UUID, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.personas[id]
	if !ok {
		return ErrNotFound
	}
	p.LastTweetFetchAt = &at
	return nil
}

func (m *Memory) GetPost(_ context.Context, id uuid.UUID) (*models.Post, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.posts[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *Memory) InsertPosts(_ context.Context, posts []*models.Post) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range posts {
		cp := *p
		m.posts[p.ID] = &cp
	}
	return nil
}

func (m *Memory) listPosts(match func(*models.Post) bool, limit int) []models.Post {
	var posts []models.Post
	for _, p := range m.posts {
		if match(p) {
			posts = append(posts, *p)
		}
	}
	sort.Slice(posts, func(i, j int) bool {
		return posts[i].CreatedAt.After(posts[j].CreatedAt)
	})
	if limit > 0 && len(posts) > limit {
		posts = posts[:limit]
	}
	return posts
}

func (m *Memory) ListRecentPosts(_ context.Context, personaID uuid.UUID, limit int) ([]models.Post, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.listPosts(func(p *models.Post) bool {
		return p.PersonaID == personaID
	}, limit), nil
}

func (m *Memory) ListFeedPosts(_ context.Context, personaID uuid.UUID, sourceID *uuid.UUID, limit int) ([]models.Post, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.listPosts(func(p *models.Post) bool {
		if p.PersonaID != personaID || p.Origin != models.OriginFeed {
			return false
		}
		if sourceID != nil {
			return p.SourceID != nil && *p.SourceID == *sourceID
		}
		return true
	}, limit), nil
}

func (m *Memory) ListPendingPosts(_ context.Context, userID uuid.UUID, limit int) ([]models.Post, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.listPosts(func(p *models.Post) bool {
		return p.Status == models.PostStatusPending && m.ownedBy(p, userID)
	}, limit), nil
}

func (m *Memory) ListDueScheduledPosts(_ context.Context, now time.Time) ([]models.Post, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.listPosts(func(p *models.Post) bool {
		return p.Status == models.PostStatusScheduled && p.ScheduledAt != nil && !p.ScheduledAt.After(now)
	}, 0), nil
}

func (m *Memory) MatchPendingPost(_ context.Context, userID uuid.UUID, shortID string) (*models.Post, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.posts {
		if p.Status != models.PostStatusPending || !m.ownedBy(p, userID) {
			continue
		}
		if strings.HasPrefix(p.ID.String(), shortID) {
			cp := *p
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (m *Memory) TransitionPost(_ context.Context, id uuid.UUID, from, to models.PostStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.posts[id]
	if !ok || p.Status != from {
		return ErrNotFound
	}
	p.Status = to
	return nil
}

func (m *Memory) MarkPostPublished(_ context.Context, id uuid.UUID, tweetID string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.posts[id]
	if !ok {
		return ErrNotFound
	}
	p.Status = models.PostStatusPublished
	p.TwitterPostID = tweetID
	p.PublishedAt = &at
	return nil
}

func (m *Memory) GetSource(_ context.Context, id uuid.UUID) (*models.Source, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	src, ok := m.sources[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *src
	return &cp, nil
}

func (m *Memory) ListActiveSources(_ context.Context) ([]models.Source, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var sources []models.Source
	for _, src := range m.sources {
		if src.Status == models.SourceStatusActive {
			sources = append(sources, *src)
		}
	}
	sort.Slice(sources, func(i, j int) bool {
		return sources[i].CreatedAt.Before(sources[j].CreatedAt)
	})
	return sources, nil
}

func (m *Memory) MarkSourceSynced(_ context.Context, id uuid.UUID, inserted int, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	src, ok := m.sources[id]
	if !ok {
		return ErrNotFound
	}
	src.Status = models.SourceStatusActive
	src.LastSyncAt = &at
	src.ArticleCount += inserted
	src.ErrorMessage = ""
	return nil
}

func (m *Memory) MarkSourceError(_ context.Context, id uuid.UUID, message string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	src, ok := m.sources[id]
	if !ok {
		return ErrNotFound
	}
	src.Status = models.SourceStatusError
	src.ErrorMessage = message
	return nil
}

func (m *Memory) ListCachedTweets(_ context.Context, personaID uuid.UUID, limit int) ([]models.CachedTweet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var tweets []models.CachedTweet
	for _, t := range m.tweets {
		if t.PersonaID == personaID {
			tweets = append(tweets, *t)
		}
	}
	sort.Slice(tweets, func(i, j int) bool {
		if tweets[i].LikeCount != tweets[j].LikeCount {
			return tweets[i].LikeCount > tweets[j].LikeCount
		}
		return tweets[i].TweetedAt.After(tweets[j].TweetedAt)
	})
	if limit > 0 && len(tweets) > limit {
		tweets = tweets[:limit]
	}
	return tweets, nil
}

func (m *Memory) ListRecentCachedTweets(_ context.Context, personaID uuid.UUID, limit int) ([]models.CachedTweet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var tweets []models.CachedTweet
	for _, t := range m.tweets {
		if t.PersonaID == personaID {
			tweets = append(tweets, *t)
		}
	}
	sort.Slice(tweets, func(i, j int) bool {
		return tweets[i].TweetedAt.After(tweets[j].TweetedAt)
	})
	if limit > 0 && len(tweets) > limit {
		tweets = tweets[:limit]
	}
	return tweets, nil
}

func (m *Memory) LatestCachedTweetID(_ context.Context, personaID uuid.UUID) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var latest *models.CachedTweet
	for _, t := range m.tweets {
		if t.PersonaID != personaID {
			continue
		}
		if latest == nil || t.TweetedAt.After(latest.TweetedAt) {
			latest = t
		}
	}
	if latest == nil {
		return "", nil
	}
	return latest.TweetID, nil
}

func (m *Memory) UpsertCachedTweets(_ context.Context, tweets []models.CachedTweet) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored := 0
	for _, t := range tweets {
		replaced := false
		for id, existing := range m.tweets {
			if existing.PersonaID == t.PersonaID && existing.TweetID == t.TweetID {
				cp := t
				cp.ID = existing.ID
				m.tweets[id] = &cp
				replaced = true
				break
			}
		}
		if !replaced {
			cp := t
			m.tweets[t.ID] = &cp
		}
		stored++
	}
	return stored, nil
}

func (m *Memory) PruneCachedTweets(_ context.Context, personaID uuid.UUID, keep int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	var tweets []*models.CachedTweet
	for _, t := range m.tweets {
		if t.PersonaID == personaID {
			tweets = append(tweets, t)
		}
	}
	if len(tweets) <= keep {
		return nil
	}
	sort.Slice(tweets, func(i, j int) bool {
		return tweets[i].TweetedAt.After(tweets[j].TweetedAt)
	})
	for _, t := range tweets[keep:] {
		delete(m.tweets, t.ID)
	}
	return nil
}

func (m *Memory) InsertActivity(_ context.Context, activity *models.Activity) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Activities = append(m.Activities, *activity)
	return nil
}

// ownedBy reports whether the post's persona belongs to userID.
// Callers must hold the lock.
func (m *Memory) ownedBy(p *models.Post, userID uuid.UUID) bool {
	persona, ok := m.personas[p.PersonaID]
	return ok && persona.UserID == userID
}
