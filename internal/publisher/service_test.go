package publisher

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clonedigital/postpilot/internal/activity"
	"github.com/clonedigital/postpilot/internal/apperr"
	"github.com/clonedigital/postpilot/internal/config"
	"github.com/clonedigital/postpilot/internal/models"
	"github.com/clonedigital/postpilot/internal/ratelimit"
	"github.com/clonedigital/postpilot/internal/store"
	"github.com/clonedigital/postpilot/internal/twitter"
)

type stubPlatform struct {
	createCalls int
	createErr   error
	tweetID     string

	tweets      []twitter.Tweet
	tweetsErr   error
	gotUserID   string
	gotSinceID  string
	tweetsCalls int
}

func (p *stubPlatform) CreateTweet(_ context.Context, _ string) (*twitter.CreateResult, error) {
	p.createCalls++
	if p.createErr != nil {
		return nil, p.createErr
	}
	return &twitter.CreateResult{TweetID: p.tweetID, TweetURL: "https://twitter.com/i/status/" + p.tweetID}, nil
}

func (p *stubPlatform) UserTweets(_ context.Context, twitterUserID, sinceID string) ([]twitter.Tweet, error) {
	p.tweetsCalls++
	p.gotUserID = twitterUserID
	p.gotSinceID = sinceID
	return p.tweets, p.tweetsErr
}

func testConfig() *config.Config {
	return &config.Config{
		CharacterLimit:   280,
		PublishLimit:     config.RateLimitBudget{MaxRequests: 30, Window: 15 * time.Minute},
		FetchTweetsLimit: config.RateLimitBudget{MaxRequests: 5, Window: time.Hour},
	}
}

type fixture struct {
	svc      *Service
	store    *store.Memory
	platform *stubPlatform
	userID   uuid.UUID
	persona  models.Persona
}

func newFixture(t *testing.T, platform *stubPlatform) *fixture {
	t.Helper()
	mem := store.NewMemory()
	userID := uuid.New()
	persona := models.Persona{
		ID:            uuid.New(),
		UserID:        userID,
		Name:          "Ada",
		Handle:        "@ada",
		TwitterUserID: "42",
		CreatedAt:     time.Now(),
	}
	mem.AddPersona(persona)

	svc := NewService(mem, platform, ratelimit.NewMemoryLimiter(), activity.NewRecorder(mem), testConfig())
	return &fixture{svc: svc, store: mem, platform: platform, userID: userID, persona: persona}
}

func (f *fixture) addPost(content string, status models.PostStatus) models.Post {
	post := models.Post{
		ID:        uuid.New(),
		PersonaID: f.persona.ID,
		Content:   content,
		Status:    status,
		Origin:    models.OriginAI,
		CreatedAt: time.Now(),
	}
	f.store.AddPost(post)
	return post
}

func TestService_Publish(t *testing.T) {
	platform := &stubPlatform{tweetID: "9001"}
	f := newFixture(t, platform)
	post := f.addPost("ship it", models.PostStatusApproved)

	result, err := f.svc.Publish(context.Background(), f.userID, post.ID)
	require.NoError(t, err)
	assert.Equal(t, "9001", result.TweetID)

	stored, err := f.store.GetPost(context.Background(), post.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PostStatusPublished, stored.Status)
	assert.Equal(t, "9001", stored.TwitterPostID)
	assert.NotNil(t, stored.PublishedAt)

	require.Len(t, f.store.Activities, 1)
	assert.Equal(t, models.ActivityPostPublished, f.store.Activities[0].Type)
}

func TestService_Publish_ScheduledPostAllowed(t *testing.T) {
	platform := &stubPlatform{tweetID: "9002"}
	f := newFixture(t, platform)
	post := f.addPost("on schedule", models.PostStatusScheduled)

	_, err := f.svc.Publish(context.Background(), f.userID, post.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, platform.createCalls)
}

func TestService_Publish_PreconditionsBlockPlatformCall(t *testing.T) {
	tests := []struct {
		name         string
		post         func(f *fixture) models.Post
		userID       func(f *fixture) uuid.UUID
		expectedKind apperr.Kind
	}{
		{
			name:         "Pending post",
			post:         func(f *fixture) models.Post { return f.addPost("draft", models.PostStatusPending) },
			userID:       func(f *fixture) uuid.UUID { return f.userID },
			expectedKind: apperr.KindInvalidState,
		},
		{
			name:         "Already published",
			post:         func(f *fixture) models.Post { return f.addPost("done", models.PostStatusPublished) },
			userID:       func(f *fixture) uuid.UUID { return f.userID },
			expectedKind: apperr.KindInvalidState,
		},
		{
			name:         "Empty content",
			post:         func(f *fixture) models.Post { return f.addPost("", models.PostStatusApproved) },
			userID:       func(f *fixture) uuid.UUID { return f.userID },
			expectedKind: apperr.KindInvalidState,
		},
		{
			name: "Over character limit",
			post: func(f *fixture) models.Post {
				return f.addPost(strings.Repeat("x", 281), models.PostStatusApproved)
			},
			userID:       func(f *fixture) uuid.UUID { return f.userID },
			expectedKind: apperr.KindInvalidState,
		},
		{
			name:         "Not the owner",
			post:         func(f *fixture) models.Post { return f.addPost("mine", models.PostStatusApproved) },
			userID:       func(f *fixture) uuid.UUID { return uuid.New() },
			expectedKind: apperr.KindNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			platform := &stubPlatform{tweetID: "9000"}
			f := newFixture(t, platform)
			post := tt.post(f)

			_, err := f.svc.Publish(context.Background(), tt.userID(f), post.ID)
			require.Error(t, err)
			assert.Equal(t, tt.expectedKind, apperr.KindOf(err))
			assert.Zero(t, platform.createCalls, "platform must not be called when preconditions fail")
		})
	}
}

func TestService_Publish_UnknownPost(t *testing.T) {
	platform := &stubPlatform{}
	f := newFixture(t, platform)

	_, err := f.svc.Publish(context.Background(), f.userID, uuid.New())
	require.Error(t, err)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
	assert.Zero(t, platform.createCalls)
}

func TestService_Publish_PlatformErrorPropagates(t *testing.T) {
	platform := &stubPlatform{createErr: apperr.Forbidden("Twitter rejected the post", "duplicate content")}
	f := newFixture(t, platform)
	post := f.addPost("dup", models.PostStatusApproved)

	_, err := f.svc.Publish(context.Background(), f.userID, post.ID)
	require.Error(t, err)
	assert.Equal(t, apperr.KindForbidden, apperr.KindOf(err))

	stored, err := f.store.GetPost(context.Background(), post.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PostStatusApproved, stored.Status, "a failed publish must not change the post")
}

func TestService_FetchTweets(t *testing.T) {
	now := time.Now()
	platform := &stubPlatform{tweets: []twitter.Tweet{
		{ID: "1002", Text: "newer", CreatedAt: now, LikeCount: 7},
		{ID: "1001", Text: "older", CreatedAt: now.Add(-time.Hour), LikeCount: 2},
	}}
	f := newFixture(t, platform)

	result, err := f.svc.FetchTweets(context.Background(), f.userID, f.persona.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Fetched)
	assert.Equal(t, 2, result.Stored)
	assert.Equal(t, "42", platform.gotUserID)
	assert.Empty(t, platform.gotSinceID)

	persona, err := f.store.GetPersona(context.Background(), f.persona.ID)
	require.NoError(t, err)
	assert.NotNil(t, persona.LastTweetFetchAt)
}

func TestService_FetchTweets_UsesSinceID(t *testing.T) {
	platform := &stubPlatform{}
	f := newFixture(t, platform)

	_, err := f.store.UpsertCachedTweets(context.Background(), []models.CachedTweet{{
		ID:        uuid.New(),
		PersonaID: f.persona.ID,
		TweetID:   "999",
		Text:      "cached",
		TweetedAt: time.Now(),
	}})
	require.NoError(t, err)

	result, err := f.svc.FetchTweets(context.Background(), f.userID, f.persona.ID)
	require.NoError(t, err)
	assert.Equal(t, "999", platform.gotSinceID)
	assert.Zero(t, result.Fetched)
}

func TestService_FetchTweets_NoLinkedAccount(t *testing.T) {
	platform := &stubPlatform{}
	f := newFixture(t, platform)

	unlinked := models.Persona{ID: uuid.New(), UserID: f.userID, Name: "Bo", Handle: "@bo", CreatedAt: time.Now()}
	f.store.AddPersona(unlinked)

	_, err := f.svc.FetchTweets(context.Background(), f.userID, unlinked.ID)
	require.Error(t, err)
	assert.Equal(t, apperr.KindInvalidState, apperr.KindOf(err))
	assert.Zero(t, platform.tweetsCalls)
}

func TestService_FetchTweets_RateLimited(t *testing.T) {
	platform := &stubPlatform{}
	f := newFixture(t, platform)

	for i := 0; i < 5; i++ {
		_, err := f.svc.FetchTweets(context.Background(), f.userID, f.persona.ID)
		require.NoError(t, err)
	}

	_, err := f.svc.FetchTweets(context.Background(), f.userID, f.persona.ID)
	require.Error(t, err)
	assert.Equal(t, apperr.KindRateLimited, apperr.KindOf(err))
}
