// Package activity records best-effort audit entries for pipeline
// actions. A failed write is logged and swallowed so it never fails the
// action that produced it.
package activity

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/clonedigital/postpilot/internal/models"
	"github.com/clonedigital/postpilot/internal/store"
)

// Recorder writes activity entries.
type Recorder struct {
	store store.Store
}

// NewRecorder creates a Recorder.
func NewRecorder(s store.Store) *Recorder {
	return &Recorder{store: s}
}

// Record appends an activity entry. Errors are logged, not returned.
func (r *Recorder) Record(ctx context.Context, userID, personaID uuid.UUID, activityType, description string) {
	entry := &models.Activity{
		ID:          uuid.New(),
		UserID:      userID,
		PersonaID:   personaID,
		Type:        activityType,
		Description: description,
		CreatedAt:   time.Now(),
	}
	if err := r.store.InsertActivity(ctx, entry); err != nil {
		logrus.Warnf("Failed to record %s activity: %v", activityType, err)
	}
}
