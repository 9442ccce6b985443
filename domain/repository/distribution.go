package repository

import (
	"context"
	"errors"
	"time"

	"github.com/FanzCEO/GirlFanz-sub003/domain/model"
)

var (
	// ErrTokenNotFound is returned when a creator has not connected a platform.
	ErrTokenNotFound = errors.New("oauth token not found")
	// ErrRecordNotFound is returned when no distribution record matches.
	ErrRecordNotFound = errors.New("distribution record not found")
)

// IOAuthToken persists per-creator platform credentials
type IOAuthToken interface {
	UpsertToken(ctx context.Context, t *model.OAuthToken) error
	GetToken(ctx context.Context, creatorID, platform string) (*model.OAuthToken, error)
	DeleteToken(ctx context.Context, creatorID, platform string) error
}

// IDistribution stores distribution records and their audit trail
type IDistribution interface {
	CreateRecord(ctx context.Context, rec *model.DistributionRecord) error
	UpdateRecordResult(ctx context.Context, recordID int64, status string, externalID, permalink, errMsg *string) error
	MarkDeleted(ctx context.Context, creatorID, platform, externalID string) error
	FindByScheduleID(ctx context.Context, scheduleID string) (*model.DistributionRecord, error)
	ListRecords(ctx context.Context, creatorID string, limit int) ([]*model.DistributionRecord, error)
	CreateAudit(ctx context.Context, audits []*model.DistributionAudit) error
}

// IScheduleQueue holds posts waiting for their publish time.
type IScheduleQueue interface {
	Enqueue(ctx context.Context, post *model.ScheduledPost) error
	PopDue(ctx context.Context, now time.Time, limit int) ([]*model.ScheduledPost, error)
	Cancel(ctx context.Context, id string) (bool, error)
}

// IDistributionPublisher fans distribution status events out to subscribers.
type IDistributionPublisher interface {
	Publish(ctx context.Context, evt model.DistributionEvent) error
	Close() error
}
