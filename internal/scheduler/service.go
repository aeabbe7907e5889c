// Package scheduler drives the automated parts of the pipeline:
// publishing due scheduled posts and periodically syncing feed sources.
package scheduler

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/clonedigital/postpilot/internal/config"
	"github.com/clonedigital/postpilot/internal/feedsync"
	"github.com/clonedigital/postpilot/internal/store"
	"github.com/clonedigital/postpilot/internal/twitter"
)

const runTimeout = 2 * time.Minute

// Publisher publishes one post on behalf of its owner.
type Publisher interface {
	Publish(ctx context.Context, userID, postID uuid.UUID) (*twitter.CreateResult, error)
}

// Syncer syncs one source on behalf of its owner.
type Syncer interface {
	Sync(ctx context.Context, userID, sourceID uuid.UUID) (*feedsync.Result, error)
}

// Service runs the cron jobs.
type Service struct {
	cron      *cron.Cron
	store     store.Store
	publisher Publisher
	syncer    Syncer
	cfg       *config.Config
}

// NewService creates the scheduler. Schedules use the six-field cron
// format with a seconds column.
func NewService(s store.Store, p Publisher, sy Syncer, cfg *config.Config) *Service {
	return &Service{
		cron:      cron.New(cron.WithSeconds()),
		store:     s,
		publisher: p,
		syncer:    sy,
		cfg:       cfg,
	}
}

// Start registers the jobs and starts the cron loop.
func (s *Service) Start() error {
	if _, err := s.cron.AddFunc(s.cfg.PublishSchedule, s.publishDuePosts); err != nil {
		return err
	}
	if _, err := s.cron.AddFunc(s.cfg.SyncSchedule, s.syncActiveSources); err != nil {
		return err
	}
	s.cron.Start()
	logrus.Infof("Scheduler started (publish %q, sync %q)", s.cfg.PublishSchedule, s.cfg.SyncSchedule)
	return nil
}

// Stop halts the cron loop and waits for running jobs.
func (s *Service) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	logrus.Info("Scheduler stopped")
}

// publishDuePosts publishes every scheduled post whose time has come.
// Failures are logged per post; one bad post must not block the rest.
func (s *Service) publishDuePosts() {
	ctx, cancel := context.WithTimeout(context.Background(), runTimeout)
	defer cancel()

	posts, err := s.store.ListDueScheduledPosts(ctx, time.Now())
	if err != nil {
		logrus.Errorf("Scheduler: failed to list due posts: %v", err)
		return
	}

	for _, post := range posts {
		persona, err := s.store.GetPersona(ctx, post.PersonaID)
		if err != nil {
			logrus.Errorf("Scheduler: persona %s for post %s: %v", post.PersonaID, post.ShortID(), err)
			continue
		}
		if _, err := s.publisher.Publish(ctx, persona.UserID, post.ID); err != nil {
			logrus.Errorf("Scheduler: publish post %s: %v", post.ShortID(), err)
			continue
		}
		logrus.Infof("Scheduler: published due post %s", post.ShortID())
	}
}

// syncActiveSources runs a sync for every active source.
func (s *Service) syncActiveSources() {
	ctx, cancel := context.WithTimeout(context.Background(), runTimeout)
	defer cancel()

	sources, err := s.store.ListActiveSources(ctx)
	if err != nil {
		logrus.Errorf("Scheduler: failed to list sources: %v", err)
		return
	}

	for _, source := range sources {
		persona, err := s.store.GetPersona(ctx, source.PersonaID)
		if err != nil {
			logrus.Errorf("Scheduler: persona %s for source %s: %v", source.PersonaID, source.Name, err)
			continue
		}
		result, err := s.syncer.Sync(ctx, persona.UserID, source.ID)
		if err != nil {
			logrus.Errorf("Scheduler: sync source %s: %v", source.Name, err)
			continue
		}
		if result.Synced > 0 {
			logrus.Infof("Scheduler: synced %d new entries from %s", result.Synced, source.Name)
		}
	}
}
