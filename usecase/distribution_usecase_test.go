package usecase_test

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/FanzCEO/GirlFanz-sub003/domain/model"
	"github.com/FanzCEO/GirlFanz-sub003/domain/repository"
	"github.com/FanzCEO/GirlFanz-sub003/infrastructure/clients/platform"
	"github.com/FanzCEO/GirlFanz-sub003/usecase"
)

// Mock implementations

type MockTokens struct{ mock.Mock }

func (m *MockTokens) UpsertToken(ctx context.Context, t *model.OAuthToken) error {
	return m.Called(ctx, t).Error(0)
}

func (m *MockTokens) GetToken(ctx context.Context, creatorID, p string) (*model.OAuthToken, error) {
	args := m.Called(ctx, creatorID, p)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.OAuthToken), args.Error(1)
}

func (m *MockTokens) DeleteToken(ctx context.Context, creatorID, p string) error {
	return m.Called(ctx, creatorID, p).Error(0)
}

type MockRecords struct {
	mock.Mock
	mu     sync.Mutex
	nextID int64
}

func (m *MockRecords) CreateRecord(ctx context.Context, rec *model.DistributionRecord) error {
	m.mu.Lock()
	m.nextID++
	rec.ID = m.nextID
	m.mu.Unlock()
	return m.Called(ctx, rec).Error(0)
}

func (m *MockRecords) UpdateRecordResult(ctx context.Context, id int64, status string, externalID, permalink, errMsg *string) error {
	return m.Called(ctx, id, status, externalID, permalink, errMsg).Error(0)
}

func (m *MockRecords) MarkDeleted(ctx context.Context, creatorID, p, externalID string) error {
	return m.Called(ctx, creatorID, p, externalID).Error(0)
}

func (m *MockRecords) FindByScheduleID(ctx context.Context, id string) (*model.DistributionRecord, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.DistributionRecord), args.Error(1)
}

func (m *MockRecords) ListRecords(ctx context.Context, creatorID string, limit int) ([]*model.DistributionRecord, error) {
	args := m.Called(ctx, creatorID, limit)
	return args.Get(0).([]*model.DistributionRecord), args.Error(1)
}

func (m *MockRecords) CreateAudit(ctx context.Context, audits []*model.DistributionAudit) error {
	return m.Called(ctx, audits).Error(0)
}

type MockQueue struct{ mock.Mock }

func (m *MockQueue) Enqueue(ctx context.Context, post *model.ScheduledPost) error {
	return m.Called(ctx, post).Error(0)
}

func (m *MockQueue) PopDue(ctx context.Context, now time.Time, limit int) ([]*model.ScheduledPost, error) {
	args := m.Called(ctx, now, limit)
	return args.Get(0).([]*model.ScheduledPost), args.Error(1)
}

func (m *MockQueue) Cancel(ctx context.Context, id string) (bool, error) {
	args := m.Called(ctx, id)
	return args.Bool(0), args.Error(1)
}

type MockFactory struct {
	mock.Mock
	supported []model.Platform
}

func (m *MockFactory) New(p model.Platform, cfg model.AdapterConfig) (repository.IPlatformAdapter, error) {
	args := m.Called(p, cfg)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(repository.IPlatformAdapter), args.Error(1)
}

func (m *MockFactory) Supported() []model.Platform { return m.supported }

// fakeAdapter answers with canned functions; unset functions succeed trivially.
type fakeAdapter struct {
	platform model.Platform
	publish  func(ctx context.Context, p *model.ContentPayload) (*model.PublishResult, error)
	delete   func(ctx context.Context, id string) (bool, error)
	exchange func(ctx context.Context, code, state string) (*model.TokenSet, error)
	queue    repository.IScheduleQueue
}

func (f *fakeAdapter) Platform() model.Platform { return f.platform }

func (f *fakeAdapter) GetAuthorizationURL(state string) (string, error) {
	return "https://auth.example/" + string(f.platform) + "?state=" + state, nil
}

func (f *fakeAdapter) ExchangeCodeForToken(ctx context.Context, code, state string) (*model.TokenSet, error) {
	return f.exchange(ctx, code, state)
}

func (f *fakeAdapter) Publish(ctx context.Context, p *model.ContentPayload) (*model.PublishResult, error) {
	return f.publish(ctx, p)
}

func (f *fakeAdapter) SchedulePost(ctx context.Context, p *model.ContentPayload, at time.Time) (*model.ScheduledPost, error) {
	return platform.NewScheduledPost(ctx, f.queue, f.platform, p, at)
}

func (f *fakeAdapter) DeletePost(ctx context.Context, id string) (bool, error) {
	return f.delete(ctx, id)
}

func (f *fakeAdapter) GetAnalytics(_ context.Context, id string, _ *model.AnalyticsWindow) (*model.AnalyticsSnapshot, error) {
	return &model.AnalyticsSnapshot{PostID: id, Platform: f.platform, Likes: 3}, nil
}

func (f *fakeAdapter) GetTrendingTags(context.Context) []string { return []string{"#fyp"} }

func (f *fakeAdapter) GetBestPostingTimes(context.Context) []model.PostingTimeRecommendation {
	return []model.PostingTimeRecommendation{{Hour: 19, DayOfWeek: 2, Score: 1}}
}

func (f *fakeAdapter) ValidateMedia(context.Context, string, model.MediaKind) *model.MediaValidation {
	return &model.MediaValidation{Valid: true}
}

type refreshingAdapter struct {
	*fakeAdapter
	refreshed *model.TokenSet
	err       error
}

func (r *refreshingAdapter) RefreshAccessToken(context.Context) (*model.TokenSet, error) {
	return r.refreshed, r.err
}

type harness struct {
	tokens   *MockTokens
	records  *MockRecords
	queue    *MockQueue
	factory  *MockFactory
	events   []model.DistributionEvent
	eventsMu sync.Mutex
	uc       usecase.IDistributionUsecase
}

func newHarness(supported ...model.Platform) *harness {
	h := &harness{
		tokens:  new(MockTokens),
		records: new(MockRecords),
		queue:   new(MockQueue),
		factory: &MockFactory{supported: supported},
	}
	h.uc = usecase.NewDistributionUsecase(usecase.DistributionDeps{
		Adapters: h.factory,
		Tokens:   h.tokens,
		Records:  h.records,
		Queue:    h.queue,
		Broadcast: func(evt model.DistributionEvent) {
			h.eventsMu.Lock()
			h.events = append(h.events, evt)
			h.eventsMu.Unlock()
		},
		CallTimeout: time.Second,
	})
	return h
}

func strPtr(s string) *string { return &s }

func TestPublish_FansOutAndIsolatesFailures(t *testing.T) {
	h := newHarness(model.PlatformTwitter, model.PlatformTikTok)
	ctx := context.Background()

	tw := &fakeAdapter{platform: model.PlatformTwitter, publish: func(_ context.Context, p *model.ContentPayload) (*model.PublishResult, error) {
		assert.Equal(t, "creator-1", p.CreatorID)
		return &model.PublishResult{ID: "1500", Permalink: "https://x.com/i/status/1500"}, nil
	}}
	tt := &fakeAdapter{platform: model.PlatformTikTok, publish: func(context.Context, *model.ContentPayload) (*model.PublishResult, error) {
		return nil, &platform.PublishError{Platform: model.PlatformTikTok, Step: "upload", Err: errors.New("chunk rejected")}
	}}

	h.tokens.On("GetToken", mock.Anything, "creator-1", "twitter").Return(&model.OAuthToken{AccessToken: "tw-at"}, nil)
	h.tokens.On("GetToken", mock.Anything, "creator-1", "tiktok").Return(nil, repository.ErrTokenNotFound)
	h.factory.On("New", model.PlatformTwitter, model.AdapterConfig{AccessToken: "tw-at"}).Return(tw, nil)
	h.factory.On("New", model.PlatformTikTok, model.AdapterConfig{}).Return(tt, nil)
	h.records.On("CreateRecord", mock.Anything, mock.Anything).Return(nil)
	h.records.On("UpdateRecordResult", mock.Anything, mock.Anything, model.DistributionStatusSuccess, strPtr("1500"), strPtr("https://x.com/i/status/1500"), (*string)(nil)).Return(nil).Once()
	h.records.On("UpdateRecordResult", mock.Anything, mock.Anything, model.DistributionStatusFailed, (*string)(nil), (*string)(nil), mock.AnythingOfType("*string")).Return(nil).Once()
	h.records.On("CreateAudit", mock.Anything, mock.Anything).Return(nil)

	payload := &model.ContentPayload{Caption: "hello", MediaURLs: []string{"https://cdn/v.mp4"}, MediaKind: model.MediaKindVideo}
	results, err := h.uc.Publish(ctx, "creator-1", []model.Platform{model.PlatformTwitter, model.PlatformTikTok, model.PlatformTwitter}, payload)
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Equal(t, model.PlatformTwitter, results[0].Platform)
	assert.Equal(t, model.DistributionStatusSuccess, results[0].Status)
	assert.Equal(t, "1500", results[0].ID)

	assert.Equal(t, model.DistributionStatusFailed, results[1].Status)
	assert.Contains(t, results[1].Error, "chunk rejected")
	var pubErr *platform.PublishError
	assert.True(t, errors.As(results[1].Err(), &pubErr))

	assert.Empty(t, payload.CreatorID, "caller payload must not be mutated")
	assert.Len(t, h.events, 2)
	h.records.AssertNumberOfCalls(t, "CreateAudit", 2)
	h.records.AssertExpectations(t)
}

func TestPublish_RefreshesOnceOnUnauthorized(t *testing.T) {
	h := newHarness(model.PlatformYouTube)
	ctx := context.Background()

	stale := &refreshingAdapter{
		fakeAdapter: &fakeAdapter{platform: model.PlatformYouTube, publish: func(context.Context, *model.ContentPayload) (*model.PublishResult, error) {
			return nil, &platform.PublishError{Platform: model.PlatformYouTube, Step: "init_upload", Err: &platform.APIError{StatusCode: http.StatusUnauthorized, Status: "401 Unauthorized"}}
		}},
		refreshed: &model.TokenSet{AccessToken: "new-at"},
	}
	fresh := &fakeAdapter{platform: model.PlatformYouTube, publish: func(context.Context, *model.ContentPayload) (*model.PublishResult, error) {
		return &model.PublishResult{ID: "vid1", Permalink: "https://www.youtube.com/watch?v=vid1"}, nil
	}}

	h.tokens.On("GetToken", mock.Anything, "creator-1", "youtube").Return(&model.OAuthToken{CreatorID: "creator-1", Platform: "youtube", AccessToken: "old-at", RefreshToken: "rt"}, nil)
	h.tokens.On("UpsertToken", mock.Anything, mock.MatchedBy(func(tok *model.OAuthToken) bool {
		return tok.AccessToken == "new-at" && tok.RefreshToken == "rt"
	})).Return(nil).Once()
	h.factory.On("New", model.PlatformYouTube, model.AdapterConfig{AccessToken: "old-at", RefreshToken: "rt"}).Return(stale, nil).Once()
	h.factory.On("New", model.PlatformYouTube, model.AdapterConfig{AccessToken: "new-at", RefreshToken: "rt"}).Return(fresh, nil).Once()
	h.records.On("CreateRecord", mock.Anything, mock.Anything).Return(nil)
	h.records.On("UpdateRecordResult", mock.Anything, int64(1), model.DistributionStatusSuccess, strPtr("vid1"), mock.Anything, (*string)(nil)).Return(nil)
	h.records.On("CreateAudit", mock.Anything, mock.Anything).Return(nil)

	results, err := h.uc.Publish(ctx, "creator-1", []model.Platform{model.PlatformYouTube}, &model.ContentPayload{Caption: "c"})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "vid1", results[0].ID)
	h.tokens.AssertExpectations(t)
	h.factory.AssertExpectations(t)
}

func TestPublish_RejectsBadInput(t *testing.T) {
	h := newHarness(model.PlatformTwitter)
	_, err := h.uc.Publish(context.Background(), "creator-1", nil, &model.ContentPayload{})
	assert.ErrorIs(t, err, usecase.ErrNoPlatforms)
	_, err = h.uc.Publish(context.Background(), "creator-1", []model.Platform{model.PlatformTwitter}, nil)
	assert.ErrorIs(t, err, usecase.ErrEmptyPayload)
}

func TestPublish_UnsupportedPlatformFailsOnlyItself(t *testing.T) {
	h := newHarness(model.PlatformTwitter)
	h.records.On("CreateRecord", mock.Anything, mock.Anything).Return(nil)
	h.records.On("UpdateRecordResult", mock.Anything, mock.Anything, model.DistributionStatusFailed, mock.Anything, mock.Anything, mock.Anything).Return(nil)
	h.records.On("CreateAudit", mock.Anything, mock.Anything).Return(nil)

	results, err := h.uc.Publish(context.Background(), "creator-1", []model.Platform{model.PlatformInstagram}, &model.ContentPayload{Caption: "c"})
	require.NoError(t, err)
	assert.ErrorIs(t, results[0].Err(), usecase.ErrUnsupportedPlatform)
}

func TestSchedule_RecordsScheduleID(t *testing.T) {
	h := newHarness(model.PlatformInstagram)
	ig := &fakeAdapter{platform: model.PlatformInstagram, queue: h.queue}
	at := time.Now().Add(time.Hour)

	h.tokens.On("GetToken", mock.Anything, "creator-1", "instagram").Return(&model.OAuthToken{AccessToken: "ig"}, nil)
	h.factory.On("New", model.PlatformInstagram, mock.Anything).Return(ig, nil)
	h.queue.On("Enqueue", mock.Anything, mock.MatchedBy(func(p *model.ScheduledPost) bool {
		return p.CreatorID == "creator-1" && p.Platform == model.PlatformInstagram && p.ScheduledAt.Equal(at.UTC())
	})).Return(nil)
	h.records.On("CreateRecord", mock.Anything, mock.MatchedBy(func(r *model.DistributionRecord) bool {
		return r.Status == model.DistributionStatusScheduled && r.ScheduleID != nil
	})).Return(nil)
	h.records.On("CreateAudit", mock.Anything, mock.Anything).Return(nil)

	results, err := h.uc.Schedule(context.Background(), "creator-1", []model.Platform{model.PlatformInstagram}, &model.ContentPayload{Caption: "later"}, at)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, model.DistributionStatusScheduled, results[0].Status)
	assert.Len(t, results[0].ScheduleID, 36)
	h.queue.AssertExpectations(t)

	_, err = h.uc.Schedule(context.Background(), "creator-1", []model.Platform{model.PlatformInstagram}, &model.ContentPayload{}, time.Now().Add(-time.Minute))
	assert.ErrorIs(t, err, usecase.ErrScheduleInPast)
}

func TestProcessDueScheduled_PublishesOntoExistingRecord(t *testing.T) {
	h := newHarness(model.PlatformTwitter)
	now := time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)
	post := &model.ScheduledPost{ID: "sched-1", CreatorID: "creator-1", Platform: model.PlatformTwitter, Payload: model.ContentPayload{CreatorID: "creator-1", Caption: "due"}}
	tw := &fakeAdapter{platform: model.PlatformTwitter, publish: func(_ context.Context, p *model.ContentPayload) (*model.PublishResult, error) {
		assert.Equal(t, "due", p.Caption)
		return &model.PublishResult{ID: "1", Permalink: "https://x.com/i/status/1"}, nil
	}}

	h.queue.On("PopDue", mock.Anything, now, 10).Return([]*model.ScheduledPost{post}, nil)
	h.records.On("FindByScheduleID", mock.Anything, "sched-1").Return(&model.DistributionRecord{ID: 77, CreatorID: "creator-1", Platform: "twitter", Status: model.DistributionStatusScheduled, ScheduleID: strPtr("sched-1")}, nil)
	h.tokens.On("GetToken", mock.Anything, "creator-1", "twitter").Return(&model.OAuthToken{AccessToken: "tw"}, nil)
	h.factory.On("New", model.PlatformTwitter, mock.Anything).Return(tw, nil)
	h.records.On("UpdateRecordResult", mock.Anything, int64(77), model.DistributionStatusSuccess, strPtr("1"), mock.Anything, (*string)(nil)).Return(nil)
	h.records.On("CreateAudit", mock.Anything, mock.MatchedBy(func(a []*model.DistributionAudit) bool {
		return len(a) == 1 && a[0].Operation == usecase.OperationScheduledPublish && a[0].RecordID == 77
	})).Return(nil)

	n, err := h.uc.ProcessDueScheduled(context.Background(), now, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	h.records.AssertExpectations(t)
	h.records.AssertNotCalled(t, "CreateRecord", mock.Anything, mock.Anything)
}

func TestCancelScheduled(t *testing.T) {
	h := newHarness(model.PlatformTwitter)
	rec := &model.DistributionRecord{ID: 5, CreatorID: "creator-1", Platform: "twitter", Status: model.DistributionStatusScheduled, ScheduleID: strPtr("sched-1")}
	h.records.On("FindByScheduleID", mock.Anything, "sched-1").Return(rec, nil)
	h.records.On("FindByScheduleID", mock.Anything, "gone").Return(nil, repository.ErrRecordNotFound)
	h.queue.On("Cancel", mock.Anything, "sched-1").Return(true, nil).Once()
	h.records.On("UpdateRecordResult", mock.Anything, int64(5), model.DistributionStatusCancelled, (*string)(nil), (*string)(nil), (*string)(nil)).Return(nil)
	h.records.On("CreateAudit", mock.Anything, mock.Anything).Return(nil)

	ok, err := h.uc.CancelScheduled(context.Background(), "someone-else", "sched-1")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = h.uc.CancelScheduled(context.Background(), "creator-1", "gone")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = h.uc.CancelScheduled(context.Background(), "creator-1", "sched-1")
	require.NoError(t, err)
	assert.True(t, ok)
	h.queue.AssertExpectations(t)
}

func TestDelete_MarksRecordDeleted(t *testing.T) {
	h := newHarness(model.PlatformTikTok)
	tt := &fakeAdapter{platform: model.PlatformTikTok, delete: func(_ context.Context, id string) (bool, error) { return id == "v1", nil }}
	h.tokens.On("GetToken", mock.Anything, "creator-1", "tiktok").Return(&model.OAuthToken{AccessToken: "tt"}, nil)
	h.factory.On("New", model.PlatformTikTok, mock.Anything).Return(tt, nil)
	h.records.On("MarkDeleted", mock.Anything, "creator-1", "tiktok", "v1").Return(nil).Once()

	ok, err := h.uc.Delete(context.Background(), "creator-1", model.PlatformTikTok, "v1")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = h.uc.Delete(context.Background(), "creator-1", model.PlatformTikTok, "other")
	require.NoError(t, err)
	assert.False(t, ok)
	h.records.AssertExpectations(t)
	require.Len(t, h.events, 1)
	assert.Equal(t, model.DistributionStatusDeleted, h.events[0].Status)
}

func TestConnectAccount_StoresToken(t *testing.T) {
	h := newHarness(model.PlatformInstagram)
	exp := time.Now().Add(time.Hour).UTC()
	ig := &fakeAdapter{platform: model.PlatformInstagram, exchange: func(_ context.Context, code, _ string) (*model.TokenSet, error) {
		require.Equal(t, "the-code", code)
		return &model.TokenSet{AccessToken: "long-lived", ExternalID: "17841", ExpiresAt: &exp}, nil
	}}
	h.factory.On("New", model.PlatformInstagram, model.AdapterConfig{}).Return(ig, nil)
	h.tokens.On("UpsertToken", mock.Anything, mock.MatchedBy(func(tok *model.OAuthToken) bool {
		return tok.CreatorID == "creator-1" && tok.Platform == "instagram" && tok.AccessToken == "long-lived" && *tok.ExternalUserID == "17841"
	})).Return(nil)

	ts, err := h.uc.ConnectAccount(context.Background(), "creator-1", model.PlatformInstagram, "the-code", "state")
	require.NoError(t, err)
	assert.Equal(t, "long-lived", ts.AccessToken)
	h.tokens.AssertExpectations(t)
}

func TestAdvisoryPassThrough(t *testing.T) {
	h := newHarness(model.PlatformTikTok)
	tt := &fakeAdapter{platform: model.PlatformTikTok}
	h.tokens.On("GetToken", mock.Anything, "creator-1", "tiktok").Return(nil, repository.ErrTokenNotFound)
	h.factory.On("New", model.PlatformTikTok, model.AdapterConfig{}).Return(tt, nil)

	tags, err := h.uc.TrendingTags(context.Background(), "creator-1", model.PlatformTikTok)
	require.NoError(t, err)
	assert.Equal(t, []string{"#fyp"}, tags)

	recs, err := h.uc.BestPostingTimes(context.Background(), "creator-1", model.PlatformTikTok)
	require.NoError(t, err)
	assert.Len(t, recs, 1)

	v, err := h.uc.ValidateMedia(context.Background(), model.PlatformTikTok, "https://cdn/v.mp4", model.MediaKindVideo)
	require.NoError(t, err)
	assert.True(t, v.Valid)

	snap, err := h.uc.Analytics(context.Background(), "creator-1", model.PlatformTikTok, "v1", nil)
	require.NoError(t, err)
	assert.Equal(t, int64(3), snap.Likes)

	_, err = h.uc.TrendingTags(context.Background(), "creator-1", model.PlatformYouTube)
	assert.ErrorIs(t, err, usecase.ErrUnsupportedPlatform)
}
