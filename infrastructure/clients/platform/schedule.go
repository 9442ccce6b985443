package platform

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/FanzCEO/GirlFanz-sub003/domain/model"
	"github.com/FanzCEO/GirlFanz-sub003/domain/repository"
	"github.com/FanzCEO/GirlFanz-sub003/infrastructure/logger"
)

// NewScheduledPost assigns a random 128-bit id to the post and hands it to the
// queue. Adapters keep no timers; the queue's consumer publishes it later.
// A nil queue only yields the id.
func NewScheduledPost(ctx context.Context, q repository.IScheduleQueue, p model.Platform, payload *model.ContentPayload, at time.Time) (*model.ScheduledPost, error) {
	if payload == nil {
		return nil, errors.New("schedule: payload is required")
	}
	if at.IsZero() {
		return nil, errors.New("schedule: time is required")
	}
	post := &model.ScheduledPost{
		ID:          uuid.NewString(),
		CreatorID:   payload.CreatorID,
		Platform:    p,
		Payload:     *payload,
		ScheduledAt: at.UTC(),
		Status:      model.ScheduledPostStatusQueued,
		CreatedAt:   time.Now().UTC(),
	}
	if q == nil {
		logger.GetLogger().WithField("platform", p).WithField("schedule_id", post.ID).Warn("no schedule queue configured, id issued without hand-off")
		return post, nil
	}
	if err := q.Enqueue(ctx, post); err != nil {
		return nil, fmt.Errorf("schedule: enqueue: %w", err)
	}
	return post, nil
}

// DanglingState describes remote state left behind by a publish that failed
// after an earlier step succeeded.
type DanglingState struct {
	Platform model.Platform
	Step     string
	RemoteID string
	Cause    error
}

// Compensator is invoked with dangling state so cleanup can be added later.
type Compensator interface {
	Compensate(ctx context.Context, s DanglingState)
}

// LogCompensator records dangling state and attempts no cleanup.
type LogCompensator struct{}

func (LogCompensator) Compensate(_ context.Context, s DanglingState) {
	entry := logger.GetLogger().
		WithField("platform", s.Platform).
		WithField("step", s.Step).
		WithField("remote_id", s.RemoteID)
	if s.Cause != nil {
		entry = entry.WithError(s.Cause)
	}
	entry.Warn("publish left dangling remote state")
}

// CloneRecommendations returns a fresh copy so callers can't mutate a default table.
func CloneRecommendations(in []model.PostingTimeRecommendation) []model.PostingTimeRecommendation {
	out := make([]model.PostingTimeRecommendation, len(in))
	copy(out, in)
	return out
}

// SortRecommendations orders by score descending, then day and hour ascending.
func SortRecommendations(recs []model.PostingTimeRecommendation) {
	sort.SliceStable(recs, func(i, j int) bool {
		if recs[i].Score != recs[j].Score {
			return recs[i].Score > recs[j].Score
		}
		if recs[i].DayOfWeek != recs[j].DayOfWeek {
			return recs[i].DayOfWeek < recs[j].DayOfWeek
		}
		return recs[i].Hour < recs[j].Hour
	})
}

// CloneTags returns a fresh copy of a default tag table.
func CloneTags(in []string) []string {
	out := make([]string, len(in))
	copy(out, in)
	return out
}
