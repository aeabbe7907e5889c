// Package store persists personas, posts, sources, cached tweets and
// activity entries.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/clonedigital/postpilot/internal/models"
)

// ErrNotFound is returned when a record does not exist, or when a
// conditional update matched no row.
var ErrNotFound = errors.New("record not found")

// Store is the persistence surface used by the pipeline services.
type Store interface {
	// Personas.
	GetPersona(ctx context.Context, id uuid.UUID) (*models.Persona, error)
	UpdatePersonaFetchTime(ctx context.Context, id uuid.UUID, at time.Time) error

	// Posts.
	GetPost(ctx context.Context, id uuid.UUID) (*models.Post, error)
	InsertPosts(ctx context.Context, posts []*models.Post) error
	ListRecentPosts(ctx context.Context, personaID uuid.UUID, limit int) ([]models.Post, error)
	ListFeedPosts(ctx context.Context, personaID uuid.UUID, sourceID *uuid.UUID, limit int) ([]models.Post, error)
	ListPendingPosts(ctx context.Context, userID uuid.UUID, limit int) ([]models.Post, error)
	ListDueScheduledPosts(ctx context.Context, now time.Time) ([]models.Post, error)
	// MatchPendingPost resolves an 8-character ID prefix to a pending
	// post owned by userID. Returns ErrNotFound when nothing matches,
	// including the case where the post was already moderated.
	MatchPendingPost(ctx context.Context, userID uuid.UUID, shortID string) (*models.Post, error)
	// TransitionPost moves a post from one status to another. The
	// update is conditional on the current status so two moderators
	// racing on the same post cannot both win; the loser gets
	// ErrNotFound.
	TransitionPost(ctx context.Context, id uuid.UUID, from, to models.PostStatus) error
	MarkPostPublished(ctx context.Context, id uuid.UUID, tweetID string, at time.Time) error

	// Sources.
	GetSource(ctx context.Context, id uuid.UUID) (*models.Source, error)
	ListActiveSources(ctx context.Context) ([]models.Source, error)
	MarkSourceSynced(ctx context.Context, id uuid.UUID, inserted int, at time.Time) error
	MarkSourceError(ctx context.Context, id uuid.UUID, message string) error

	// Cached tweets. ListCachedTweets orders by like count,
	// ListRecentCachedTweets by tweet time.
	ListCachedTweets(ctx context.Context, personaID uuid.UUID, limit int) ([]models.CachedTweet, error)
	ListRecentCachedTweets(ctx context.Context, personaID uuid.UUID, limit int) ([]models.CachedTweet, error)
	LatestCachedTweetID(ctx context.Context, personaID uuid.UUID) (string, error)
	UpsertCachedTweets(ctx context.Context, tweets []models.CachedTweet) (int, error)
	PruneCachedTweets(ctx context.Context, personaID uuid.UUID, keep int) error

	// Activity log.
	InsertActivity(ctx context.Context, activity *models.Activity) error
}
