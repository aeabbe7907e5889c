package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clonedigital/postpilot/internal/models"
)

// Postgres implements Store on a pgx connection pool.
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres creates a Postgres store.
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

const personaColumns = "id, user_id, name, handle, tone, topics, twitter_user_id, last_tweet_fetch_at, created_at"

func (s *Postgres) GetPersona(ctx context.Context, id uuid.UUID) (*models.Persona, error) {
	query := fmt.Sprintf("SELECT %s FROM personas WHERE id = $1", personaColumns)

	var p models.Persona
	err := s.pool.QueryRow(ctx, query, id).Scan(
		&p.ID, &p.UserID, &p.Name, &p.Handle, &p.Tone, &p.Topics,
		&p.TwitterUserID, &p.LastTweetFetchAt, &p.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get persona: %w", err)
	}
	return &p, nil
}

func (s *Postgres) UpdatePersonaFetchTime(ctx context.Context, id uuid.UUID, at time.Time) error {
	tag, err := s.pool.Exec(ctx,
		"UPDATE personas SET last_tweet_fetch_at = $2 WHERE id = $1", id, at)
	if err != nil {
		return fmt.Errorf("update persona fetch time: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

const postColumns = "id, persona_id, content, status, origin, origin_label, source_id, hashtags, twitter_post_id, scheduled_at, published_at, created_at"

func scanPost(row pgx.Row) (*models.Post, error) {
	var p models.Post
	err := row.Scan(
		&p.ID, &p.PersonaID, &p.Content, &p.Status, &p.Origin, &p.OriginLabel,
		&p.SourceID, &p.Hashtags, &p.TwitterPostID, &p.ScheduledAt, &p.PublishedAt, &p.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *Postgres) GetPost(ctx context.Context, id uuid.UUID) (*models.Post, error) {
	query := fmt.Sprintf("SELECT %s FROM posts WHERE id = $1", postColumns)

	post, err := scanPost(s.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get post: %w", err)
	}
	return post, nil
}

func (s *Postgres) InsertPosts(ctx context.Context, posts []*models.Post) error {
	if len(posts) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, p := range posts {
		batch.Queue(`
			INSERT INTO posts (id, persona_id, content, status, origin, origin_label, source_id, hashtags, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			p.ID, p.PersonaID, p.Content, p.Status, p.Origin, p.OriginLabel, p.SourceID, p.Hashtags, p.CreatedAt,
		)
	}

	results := s.pool.SendBatch(ctx, batch)
	defer results.Close()
	for range posts {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("insert posts: %w", err)
		}
	}
	return nil
}

func (s *Postgres) queryPosts(ctx context.Context, query string, args ...any) ([]models.Post, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list posts: %w", err)
	}
	defer rows.Close()

	var posts []models.Post
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return nil, fmt.Errorf("scan post: %w", err)
		}
		posts = append(posts, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list posts: %w", err)
	}
	return posts, nil
}

func (s *Postgres) ListRecentPosts(ctx context.Context, personaID uuid.UUID, limit int) ([]models.Post, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM posts
		WHERE persona_id = $1
		ORDER BY created_at DESC
		LIMIT $2`, postColumns)
	return s.queryPosts(ctx, query, personaID, limit)
}

func (s *Postgres) ListFeedPosts(ctx context.Context, personaID uuid.UUID, sourceID *uuid.UUID, limit int) ([]models.Post, error) {
	if sourceID != nil {
		query := fmt.Sprintf(`
			SELECT %s FROM posts
			WHERE persona_id = $1 AND origin = $2 AND source_id = $3
			ORDER BY created_at DESC
			LIMIT $4`, postColumns)
		return s.queryPosts(ctx, query, personaID, models.OriginFeed, *sourceID, limit)
	}
	query := fmt.Sprintf(`
		SELECT %s FROM posts
		WHERE persona_id = $1 AND origin = $2
		ORDER BY created_at DESC
		LIMIT $3`, postColumns)
	return s.queryPosts(ctx, query, personaID, models.OriginFeed, limit)
}

func (s *Postgres) ListPendingPosts(ctx context.Context, userID uuid.UUID, limit int) ([]models.Post, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM posts p
		WHERE p.status = $1
		  AND p.persona_id IN (SELECT id FROM personas WHERE user_id = $2)
		ORDER BY p.created_at DESC
		LIMIT $3`, prefixedPostColumns("p"))
	return s.queryPosts(ctx, query, models.PostStatusPending, userID, limit)
}

func (s *Postgres) ListDueScheduledPosts(ctx context.Context, now time.Time) ([]models.Post, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM posts
		WHERE status = $1 AND scheduled_at IS NOT NULL AND scheduled_at <= $2
		ORDER BY scheduled_at ASC`, postColumns)
	return s.queryPosts(ctx, query, models.PostStatusScheduled, now)
}

func (s *Postgres) MatchPendingPost(ctx context.Context, userID uuid.UUID, shortID string) (*models.Post, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM posts p
		WHERE p.status = $1
		  AND p.persona_id IN (SELECT id FROM personas WHERE user_id = $2)
		  AND p.id::text LIKE $3 || '%%'
		LIMIT 1`, prefixedPostColumns("p"))

	post, err := scanPost(s.pool.QueryRow(ctx, query, models.PostStatusPending, userID, shortID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("match pending post: %w", err)
	}
	return post, nil
}

func (s *Postgres) TransitionPost(ctx context.Context, id uuid.UUID, from, to models.PostStatus) error {
	tag, err := s.pool.Exec(ctx,
		"UPDATE posts SET status = $3 WHERE id = $1 AND status = $2", id, from, to)
	if err != nil {
		return fmt.Errorf("transition post: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Postgres) MarkPostPublished(ctx context.Context, id uuid.UUID, tweetID string, at time.Time) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE posts
		SET status = $2, twitter_post_id = $3, published_at = $4
		WHERE id = $1`, id, models.PostStatusPublished, tweetID, at)
	if err != nil {
		return fmt.Errorf("mark post published: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

const sourceColumns = "id, persona_id, name, url, category, status, last_sync_at, article_count, error_message, created_at"

func scanSource(row pgx.Row) (*models.Source, error) {
	var src models.Source
	err := row.Scan(
		&src.ID, &src.PersonaID, &src.Name, &src.URL, &src.Category,
		&src.Status, &src.LastSyncAt, &src.ArticleCount, &src.ErrorMessage, &src.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &src, nil
}

func (s *Postgres) GetSource(ctx context.Context, id uuid.UUID) (*models.Source, error) {
	query := fmt.Sprintf("SELECT %s FROM sources WHERE id = $1", sourceColumns)

	src, err := scanSource(s.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get source: %w", err)
	}
	return src, nil
}

func (s *Postgres) ListActiveSources(ctx context.Context) ([]models.Source, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM sources
		WHERE status = $1
		ORDER BY created_at ASC`, sourceColumns)

	rows, err := s.pool.Query(ctx, query, models.SourceStatusActive)
	if err != nil {
		return nil, fmt.Errorf("list sources: %w", err)
	}
	defer rows.Close()

	var sources []models.Source
	for rows.Next() {
		src, err := scanSource(rows)
		if err != nil {
			return nil, fmt.Errorf("scan source: %w", err)
		}
		sources = append(sources, *src)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list sources: %w", err)
	}
	return sources, nil
}

func (s *Postgres) MarkSourceSynced(ctx context.Context, id uuid.UUID, inserted int, at time.Time) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE sources
		SET status = $2, last_sync_at = $3, article_count = article_count + $4, error_message = ''
		WHERE id = $1`, id, models.SourceStatusActive, at, inserted)
	if err != nil {
		return fmt.Errorf("mark source synced: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Postgres) MarkSourceError(ctx context.Context, id uuid.UUID, message string) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE sources
		SET status = $2, error_message = $3
		WHERE id = $1`, id, models.SourceStatusError, message)
	if err != nil {
		return fmt.Errorf("mark source error: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

const tweetColumns = "id, persona_id, tweet_id, text, tweeted_at, like_count, retweet_count"

func (s *Postgres) ListCachedTweets(ctx context.Context, personaID uuid.UUID, limit int) ([]models.CachedTweet, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM cached_tweets
		WHERE persona_id = $1
		ORDER BY like_count DESC, tweeted_at DESC
		LIMIT $2`, tweetColumns)

	rows, err := s.pool.Query(ctx, query, personaID, limit)
	if err != nil {
		return nil, fmt.Errorf("list cached tweets: %w", err)
	}
	defer rows.Close()

	var tweets []models.CachedTweet
	for rows.Next() {
		var t models.CachedTweet
		err := rows.Scan(&t.ID, &t.PersonaID, &t.TweetID, &t.Text, &t.TweetedAt, &t.LikeCount, &t.RetweetCount)
		if err != nil {
			return nil, fmt.Errorf("scan cached tweet: %w", err)
		}
		tweets = append(tweets, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list cached tweets: %w", err)
	}
	return tweets, nil
}

func (s *Postgres) ListRecentCachedTweets(ctx context.Context, personaID uuid.UUID, limit int) ([]models.CachedTweet, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM cached_tweets
		WHERE persona_id = $1
		ORDER BY tweeted_at DESC
		LIMIT $2`, tweetColumns)

	rows, err := s.pool.Query(ctx, query, personaID, limit)
	if err != nil {
		return nil, fmt.Errorf("list cached tweets: %w", err)
	}
	defer rows.Close()

	var tweets []models.CachedTweet
	for rows.Next() {
		var t models.CachedTweet
		err := rows.Scan(&t.ID, &t.PersonaID, &t.TweetID, &t.Text, &t.TweetedAt, &t.LikeCount, &t.RetweetCount)
		if err != nil {
			return nil, fmt.Errorf("scan cached tweet: %w", err)
		}
		tweets = append(tweets, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list cached tweets: %w", err)
	}
	return tweets, nil
}

func (s *Postgres) LatestCachedTweetID(ctx context.Context, personaID uuid.UUID) (string, error) {
	var tweetID string
	err := s.pool.QueryRow(ctx, `
		SELECT tweet_id FROM cached_tweets
		WHERE persona_id = $1
		ORDER BY tweeted_at DESC
		LIMIT 1`, personaID).Scan(&tweetID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", nil
		}
		return "", fmt.Errorf("latest cached tweet: %w", err)
	}
	return tweetID, nil
}

func (s *Postgres) UpsertCachedTweets(ctx context.Context, tweets []models.CachedTweet) (int, error) {
	if len(tweets) == 0 {
		return 0, nil
	}

	batch := &pgx.Batch{}
	for _, t := range tweets {
		batch.Queue(`
			INSERT INTO cached_tweets (id, persona_id, tweet_id, text, tweeted_at, like_count, retweet_count)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			ON CONFLICT (persona_id, tweet_id) DO UPDATE
			SET text = EXCLUDED.text, like_count = EXCLUDED.like_count, retweet_count = EXCLUDED.retweet_count`,
			t.ID, t.PersonaID, t.TweetID, t.Text, t.TweetedAt, t.LikeCount, t.RetweetCount,
		)
	}

	results := s.pool.SendBatch(ctx, batch)
	defer results.Close()

	stored := 0
	for range tweets {
		tag, err := results.Exec()
		if err != nil {
			return stored, fmt.Errorf("upsert cached tweets: %w", err)
		}
		stored += int(tag.RowsAffected())
	}
	return stored, nil
}

func (s *Postgres) PruneCachedTweets(ctx context.Context, personaID uuid.UUID, keep int) error {
	_, err := s.pool.Exec(ctx, `
		DELETE FROM cached_tweets
		WHERE persona_id = $1 AND id NOT IN (
			SELECT id FROM cached_tweets
			WHERE persona_id = $1
			ORDER BY tweeted_at DESC
			LIMIT $2
		)`, personaID, keep)
	if err != nil {
		return fmt.Errorf("prune cached tweets: %w", err)
	}
	return nil
}

func (s *Postgres) InsertActivity(ctx context.Context, activity *models.Activity) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO activities (id, user_id, persona_id, type, description, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		activity.ID, activity.UserID, activity.PersonaID, activity.Type, activity.Description, activity.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert activity: %w", err)
	}
	return nil
}

func prefixedPostColumns(alias string) string {
	return alias + ".id, " + alias + ".persona_id, " + alias + ".content, " + alias + ".status, " +
		alias + ".origin, " + alias + ".origin_label, " + alias + ".source_id, " + alias + ".hashtags, " +
		alias + ".twitter_post_id, " + alias + ".scheduled_at, " + alias + ".published_at, " + alias + ".created_at"
}
