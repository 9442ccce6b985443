package repository

import (
	"context"
	"time"

	"github.com/FanzCEO/GirlFanz-sub003/domain/model"
)

// IPlatformAdapter is the contract every social platform client implements.
// Instances are bound to one creator's credentials and hold no cross-request state.
type IPlatformAdapter interface {
	Platform() model.Platform

	// OAuth
	GetAuthorizationURL(state string) (string, error)
	// ExchangeCodeForToken swaps an authorization code for tokens. state is only
	// consulted by flows that bind a verifier to it (Twitter PKCE).
	ExchangeCodeForToken(ctx context.Context, code, state string) (*model.TokenSet, error)

	// Publishing
	Publish(ctx context.Context, payload *model.ContentPayload) (*model.PublishResult, error)
	SchedulePost(ctx context.Context, payload *model.ContentPayload, at time.Time) (*model.ScheduledPost, error)
	DeletePost(ctx context.Context, postID string) (bool, error)

	// Analytics. A nil window uses the platform default.
	GetAnalytics(ctx context.Context, postID string, window *model.AnalyticsWindow) (*model.AnalyticsSnapshot, error)

	// Advisory calls never fail; they degrade to static defaults.
	GetTrendingTags(ctx context.Context) []string
	GetBestPostingTimes(ctx context.Context) []model.PostingTimeRecommendation

	ValidateMedia(ctx context.Context, mediaURL string, kind model.MediaKind) *model.MediaValidation
}

// ITokenRefresher is implemented by adapters whose platform issues refresh tokens.
type ITokenRefresher interface {
	RefreshAccessToken(ctx context.Context) (*model.TokenSet, error)
}

// IAdapterFactory builds a platform adapter for one creator's credentials.
type IAdapterFactory interface {
	New(platform model.Platform, cfg model.AdapterConfig) (IPlatformAdapter, error)
	Supported() []model.Platform
}
