package feedsync

import (
	"context"
	"fmt"
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
)

type stubFetcher struct {
	body   string
	err    error
	gotURL string
}

func (s *stubFetcher) Fetch(_ context.Context, rawURL string) ([]byte, error) {
	s.gotURL = rawURL
	if s.err != nil {
		return nil, s.err
	}
	return []byte(s.body), nil
}

func testConfig() *config.Config {
	return &config.Config{
		CharacterLimit: 280,
		SyncLimit:      config.RateLimitBudget{MaxRequests: 20, Window: time.Minute},
	}
}

type fixture struct {
	svc     *Service
	store   *store.Memory
	fetcher *stubFetcher
	userID  uuid.UUID
	persona models.Persona
	source  models.Source
}

func newFixture(t *testing.T, fetcher *stubFetcher) *fixture {
	t.Helper()
	mem := store.NewMemory()
	userID := uuid.New()
	persona := models.Persona{ID: uuid.New(), UserID: userID, Name: "Ada", Handle: "@ada", CreatedAt: time.Now()}
	mem.AddPersona(persona)

	source := models.Source{
		ID:        uuid.New(),
		PersonaID: persona.ID,
		Name:      "Go Blog",
		URL:       "https://go.dev/blog/feed.atom",
		Status:    models.SourceStatusActive,
		CreatedAt: time.Now(),
	}
	mem.AddSource(source)

	svc := NewService(mem, fetcher, ratelimit.NewMemoryLimiter(), activity.NewRecorder(mem), testConfig())
	return &fixture{svc: svc, store: mem, fetcher: fetcher, userID: userID, persona: persona, source: source}
}

func rssDoc(items ...[2]string) string {
	doc := "<rss><channel>"
	for _, it := range items {
		doc += fmt.Sprintf("<item><title>%s</title><description>%s</description></item>", it[0], it[1])
	}
	return doc + "</channel></rss>"
}

func TestService_Sync(t *testing.T) {
	fetcher := &stubFetcher{body: rssDoc(
		[2]string{"Go 1.24 released", "Faster maps and smaller binaries"},
		[2]string{"Profile-guided optimization", "PGO is now on by default"},
	)}
	f := newFixture(t, fetcher)

	result, err := f.svc.Sync(context.Background(), f.userID, f.source.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Processed)
	assert.Equal(t, 2, result.Synced)
	assert.Equal(t, f.source.URL, fetcher.gotURL)

	posts, err := f.store.ListFeedPosts(context.Background(), f.persona.ID, &f.source.ID, 10)
	require.NoError(t, err)
	require.Len(t, posts, 2)
	for _, p := range posts {
		assert.Equal(t, models.PostStatusPending, p.Status)
		assert.Equal(t, models.OriginFeed, p.Origin)
		assert.Equal(t, "Go Blog", p.OriginLabel)
	}

	src, err := f.store.GetSource(context.Background(), f.source.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SourceStatusActive, src.Status)
	assert.Equal(t, 2, src.ArticleCount)
	assert.NotNil(t, src.LastSyncAt)

	require.Len(t, f.store.Activities, 1)
	assert.Equal(t, models.ActivitySourceSynced, f.store.Activities[0].Type)
}

func TestService_Sync_SecondRunIsIdempotent(t *testing.T) {
	fetcher := &stubFetcher{body: rssDoc([2]string{"Same entry", "Same description"})}
	f := newFixture(t, fetcher)

	first, err := f.svc.Sync(context.Background(), f.userID, f.source.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, first.Synced)

	second, err := f.svc.Sync(context.Background(), f.userID, f.source.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, second.Processed)
	assert.Zero(t, second.Synced)

	src, err := f.store.GetSource(context.Background(), f.source.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, src.ArticleCount, "article count must not grow on re-sync")
}

func TestService_Sync_CapsInsertedEntries(t *testing.T) {
	var items [][2]string
	for i := 0; i < 8; i++ {
		items = append(items, [2]string{fmt.Sprintf("Entry %d", i), "body"})
	}
	fetcher := &stubFetcher{body: rssDoc(items...)}
	f := newFixture(t, fetcher)

	result, err := f.svc.Sync(context.Background(), f.userID, f.source.ID)
	require.NoError(t, err)
	assert.Equal(t, 8, result.Processed)
	assert.Equal(t, 5, result.Synced)
}

func TestService_Sync_FetchFailureMarksSource(t *testing.T) {
	fetcher := &stubFetcher{err: apperr.Upstream("fetch failed", "HTTP 503")}
	f := newFixture(t, fetcher)

	_, err := f.svc.Sync(context.Background(), f.userID, f.source.ID)
	require.Error(t, err)
	assert.Equal(t, apperr.KindUpstream, apperr.KindOf(err))

	src, err := f.store.GetSource(context.Background(), f.source.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SourceStatusError, src.Status)
	assert.Contains(t, src.ErrorMessage, "503")
}

func TestService_Sync_BlockedURLMarksSource(t *testing.T) {
	fetcher := &stubFetcher{err: apperr.BlockedURL("localhost is not allowed")}
	f := newFixture(t, fetcher)

	_, err := f.svc.Sync(context.Background(), f.userID, f.source.ID)
	require.Error(t, err)
	assert.Equal(t, apperr.KindBlockedURL, apperr.KindOf(err))

	src, err := f.store.GetSource(context.Background(), f.source.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SourceStatusError, src.Status)
}

func TestService_Sync_RecoversFromErrorState(t *testing.T) {
	fetcher := &stubFetcher{err: apperr.Upstream("fetch failed", "timeout")}
	f := newFixture(t, fetcher)

	_, err := f.svc.Sync(context.Background(), f.userID, f.source.ID)
	require.Error(t, err)

	fetcher.err = nil
	fetcher.body = rssDoc([2]string{"Back online", "The feed recovered"})

	result, err := f.svc.Sync(context.Background(), f.userID, f.source.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Synced)

	src, err := f.store.GetSource(context.Background(), f.source.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SourceStatusActive, src.Status)
	assert.Empty(t, src.ErrorMessage)
}

func TestService_Sync_Ownership(t *testing.T) {
	fetcher := &stubFetcher{body: rssDoc([2]string{"x", "y"})}
	f := newFixture(t, fetcher)

	_, err := f.svc.Sync(context.Background(), uuid.New(), f.source.ID)
	require.Error(t, err)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}

func TestService_Sync_UnknownSource(t *testing.T) {
	f := newFixture(t, &stubFetcher{})

	_, err := f.svc.Sync(context.Background(), f.userID, uuid.New())
	require.Error(t, err)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}

func TestService_Sync_RateLimited(t *testing.T) {
	fetcher := &stubFetcher{body: rssDoc()}
	mem := store.NewMemory()
	userID := uuid.New()
	persona := models.Persona{ID: uuid.New(), UserID: userID, Name: "Ada", Handle: "@ada", CreatedAt: time.Now()}
	mem.AddPersona(persona)
	source := models.Source{ID: uuid.New(), PersonaID: persona.ID, Name: "Feed", URL: "https://example.com/rss", Status: models.SourceStatusActive, CreatedAt: time.Now()}
	mem.AddSource(source)

	cfg := testConfig()
	cfg.SyncLimit = config.RateLimitBudget{MaxRequests: 1, Window: time.Minute}
	svc := NewService(mem, fetcher, ratelimit.NewMemoryLimiter(), activity.NewRecorder(mem), cfg)

	_, err := svc.Sync(context.Background(), userID, source.ID)
	require.NoError(t, err)

	_, err = svc.Sync(context.Background(), userID, source.ID)
	require.Error(t, err)
	assert.Equal(t, apperr.KindRateLimited, apperr.KindOf(err))
}
