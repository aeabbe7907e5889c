package models

import (
	"time"

	"github.com/google/uuid"
)

// PostStatus is the lifecycle state of a post.
type PostStatus string

const (
	PostStatusPending   PostStatus = "pending"
	PostStatusApproved  PostStatus = "approved"
	PostStatusRejected  PostStatus = "rejected"
	PostStatusScheduled PostStatus = "scheduled"
	PostStatusPublished PostStatus = "published"
)

// PostOrigin identifies where a post's content came from.
type PostOrigin string

const (
	OriginAI     PostOrigin = "ai"
	OriginFeed   PostOrigin = "feed"
	OriginManual PostOrigin = "manual"
)

// SourceStatus is the health state of a feed source.
type SourceStatus string

const (
	SourceStatusActive SourceStatus = "active"
	SourceStatusPaused SourceStatus = "paused"
	SourceStatusError  SourceStatus = "error"
)

// Persona is an authoring identity. Personas are created through the
// dashboard and are read-only to the pipeline.
type Persona struct {
	ID               uuid.UUID  `json:"id"`
	UserID           uuid.UUID  `json:"user_id"`
	Name             string     `json:"name"`
	Handle           string     `json:"handle"`
	Tone             string     `json:"tone"`
	Topics           []string   `json:"topics"`
	TwitterUserID    string     `json:"twitter_user_id,omitempty"`
	LastTweetFetchAt *time.Time `json:"last_tweet_fetch_at,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
}

// Post is a unit of content moving through the approval lifecycle:
// pending -> approved|rejected, approved -> scheduled -> published.
type Post struct {
	ID            uuid.UUID  `json:"id"`
	PersonaID     uuid.UUID  `json:"persona_id"`
	Content       string     `json:"content"`
	Status        PostStatus `json:"status"`
	Origin        PostOrigin `json:"origin"`
	OriginLabel   string     `json:"origin_label,omitempty"`
	SourceID      *uuid.UUID `json:"source_id,omitempty"`
	Hashtags      []string   `json:"hashtags"`
	TwitterPostID string     `json:"twitter_post_id,omitempty"`
	ScheduledAt   *time.Time `json:"scheduled_at,omitempty"`
	PublishedAt   *time.Time `json:"published_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

// ShortID returns the 8-character ID prefix used by the moderation bot.
func (p Post) ShortID() string {
	s := p.ID.String()
	if len(s) < 8 {
		return s
	}
	return s[:8]
}

// Source is an external RSS/Atom feed polled for new content.
type Source struct {
	ID           uuid.UUID    `json:"id"`
	PersonaID    uuid.UUID    `json:"persona_id"`
	Name         string       `json:"name"`
	URL          string       `json:"url"`
	Category     string       `json:"category,omitempty"`
	Status       SourceStatus `json:"status"`
	LastSyncAt   *time.Time   `json:"last_sync_at,omitempty"`
	ArticleCount int          `json:"article_count"`
	ErrorMessage string       `json:"error_message,omitempty"`
	CreatedAt    time.Time    `json:"created_at"`
}

// CachedTweet is a timeline item cached for voice-imitation context.
type CachedTweet struct {
	ID           uuid.UUID `json:"id"`
	PersonaID    uuid.UUID `json:"persona_id"`
	TweetID      string    `json:"tweet_id"`
	Text         string    `json:"text"`
	TweetedAt    time.Time `json:"tweeted_at"`
	LikeCount    int       `json:"like_count"`
	RetweetCount int       `json:"retweet_count"`
}

// Activity is an append-only log entry recorded as a best-effort side
// effect of every successful pipeline action.
type Activity struct {
	ID          uuid.UUID `json:"id"`
	UserID      uuid.UUID `json:"user_id"`
	PersonaID   uuid.UUID `json:"persona_id"`
	Type        string    `json:"type"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
}

// Activity types.
const (
	ActivityAIGenerated   = "ai_generated"
	ActivityPostPublished = "post_published"
	ActivityPostApproved  = "post_approved"
	ActivityPostRejected  = "post_rejected"
	ActivitySourceSynced  = "source_synced"
)

// GeneratedPost is one candidate returned by the AI model.
type GeneratedPost struct {
	Content  string   `json:"content"`
	Hashtags []string `json:"hashtags"`
}
