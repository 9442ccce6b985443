package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/FanzCEO/GirlFanz-sub003/domain/model"
	"github.com/FanzCEO/GirlFanz-sub003/domain/repository"
	"github.com/FanzCEO/GirlFanz-sub003/infrastructure/clients/platform"
	"github.com/FanzCEO/GirlFanz-sub003/infrastructure/logger"
	"github.com/FanzCEO/GirlFanz-sub003/infrastructure/metrics"
)

const (
	OperationPublish          = "publish"
	OperationScheduledPublish = "scheduled_publish"
	OperationSchedule         = "schedule"
	OperationCancel           = "cancel"
	OperationDelete           = "delete"
	OperationAnalytics        = "analytics"
)

var (
	ErrUnsupportedPlatform = errors.New("unsupported platform")
	ErrNoPlatforms         = errors.New("at least one platform is required")
	ErrEmptyPayload        = errors.New("content payload is required")
	ErrScheduleInPast      = errors.New("scheduled time must be in the future")
)

// DistributionResult is the outcome of one platform in a multi-platform call.
type DistributionResult struct {
	Platform   model.Platform `json:"platform"`
	Status     string         `json:"status"`
	RecordID   int64          `json:"record_id,omitempty"`
	ID         string         `json:"id,omitempty"`
	Permalink  string         `json:"permalink,omitempty"`
	ScheduleID string         `json:"schedule_id,omitempty"`
	Error      string         `json:"error,omitempty"`
	err        error
}

// Err returns the adapter error behind a failed result.
func (r DistributionResult) Err() error { return r.err }

type IDistributionUsecase interface {
	AuthorizationURL(ctx context.Context, creatorID string, p model.Platform, state string) (string, error)
	ConnectAccount(ctx context.Context, creatorID string, p model.Platform, code, state string) (*model.TokenSet, error)
	DisconnectAccount(ctx context.Context, creatorID string, p model.Platform) error

	Publish(ctx context.Context, creatorID string, platforms []model.Platform, payload *model.ContentPayload) ([]DistributionResult, error)
	Schedule(ctx context.Context, creatorID string, platforms []model.Platform, payload *model.ContentPayload, at time.Time) ([]DistributionResult, error)
	CancelScheduled(ctx context.Context, creatorID, scheduleID string) (bool, error)
	Delete(ctx context.Context, creatorID string, p model.Platform, postID string) (bool, error)

	Analytics(ctx context.Context, creatorID string, p model.Platform, postID string, window *model.AnalyticsWindow) (*model.AnalyticsSnapshot, error)
	TrendingTags(ctx context.Context, creatorID string, p model.Platform) ([]string, error)
	BestPostingTimes(ctx context.Context, creatorID string, p model.Platform) ([]model.PostingTimeRecommendation, error)
	ValidateMedia(ctx context.Context, p model.Platform, mediaURL string, kind model.MediaKind) (*model.MediaValidation, error)

	ListRecords(ctx context.Context, creatorID string, limit int) ([]*model.DistributionRecord, error)
	ProcessDueScheduled(ctx context.Context, now time.Time, batch int) (int, error)
}

// DistributionDeps wires the orchestrator. Events and Broadcast are optional.
type DistributionDeps struct {
	Adapters    repository.IAdapterFactory
	Tokens      repository.IOAuthToken
	Records     repository.IDistribution
	Queue       repository.IScheduleQueue
	Events      repository.IDistributionPublisher
	Broadcast   func(model.DistributionEvent)
	CallTimeout time.Duration
}

type distributionUsecase struct {
	adapters    repository.IAdapterFactory
	tokens      repository.IOAuthToken
	records     repository.IDistribution
	queue       repository.IScheduleQueue
	events      repository.IDistributionPublisher
	broadcast   func(model.DistributionEvent)
	callTimeout time.Duration
}

func NewDistributionUsecase(d DistributionDeps) IDistributionUsecase {
	if d.CallTimeout <= 0 {
		d.CallTimeout = 5 * time.Minute
	}
	return &distributionUsecase{
		adapters:    d.Adapters,
		tokens:      d.Tokens,
		records:     d.Records,
		queue:       d.Queue,
		events:      d.Events,
		broadcast:   d.Broadcast,
		callTimeout: d.CallTimeout,
	}
}

func (u *distributionUsecase) supported(p model.Platform) bool {
	for _, s := range u.adapters.Supported() {
		if s == p {
			return true
		}
	}
	return false
}

// adapterFor builds an adapter bound to the creator's stored credentials. A
// creator without a stored token still gets an adapter; operations that need
// the token report a ConfigurationError.
func (u *distributionUsecase) adapterFor(ctx context.Context, creatorID string, p model.Platform) (repository.IPlatformAdapter, *model.OAuthToken, error) {
	if !u.supported(p) {
		return nil, nil, fmt.Errorf("%w: %s", ErrUnsupportedPlatform, p)
	}
	var cfg model.AdapterConfig
	var tok *model.OAuthToken
	if creatorID != "" {
		t, err := u.tokens.GetToken(ctx, creatorID, string(p))
		switch {
		case err == nil:
			tok = t
			cfg.AccessToken = t.AccessToken
			cfg.RefreshToken = t.RefreshToken
			cfg.AccessTokenSecret = t.AccessTokenSecret
		case errors.Is(err, repository.ErrTokenNotFound):
		default:
			return nil, nil, fmt.Errorf("load %s token: %w", p, err)
		}
	}
	adapter, err := u.adapters.New(p, cfg)
	if err != nil {
		return nil, nil, err
	}
	return adapter, tok, nil
}

// call runs fn against the creator's adapter under the per-call timeout. When
// fn fails with a 401 and the adapter can refresh, the token is refreshed and
// stored once and fn runs once more on a fresh adapter.
func (u *distributionUsecase) call(ctx context.Context, creatorID string, p model.Platform, op string, fn func(context.Context, repository.IPlatformAdapter) error) error {
	adapter, tok, err := u.adapterFor(ctx, creatorID, p)
	if err != nil {
		return err
	}
	start := time.Now()
	err = u.withTimeout(ctx, func(ctx context.Context) error { return fn(ctx, adapter) })
	if err != nil && platform.IsUnauthorized(err) {
		if fresh, ok := u.refresh(ctx, creatorID, p, adapter, tok); ok {
			err = u.withTimeout(ctx, func(ctx context.Context) error { return fn(ctx, fresh) })
		}
	}
	metrics.ObservePlatformCall(string(p), op, start, err)
	return err
}

func (u *distributionUsecase) withTimeout(ctx context.Context, fn func(context.Context) error) error {
	callCtx, cancel := context.WithTimeout(ctx, u.callTimeout)
	defer cancel()
	return fn(callCtx)
}

func (u *distributionUsecase) refresh(ctx context.Context, creatorID string, p model.Platform, adapter repository.IPlatformAdapter, tok *model.OAuthToken) (repository.IPlatformAdapter, bool) {
	refresher, ok := adapter.(repository.ITokenRefresher)
	if !ok || tok == nil || tok.RefreshToken == "" {
		return nil, false
	}
	lg := logger.GetLogger().WithField("creator_id", creatorID).WithField("platform", p)

	var ts *model.TokenSet
	err := u.withTimeout(ctx, func(ctx context.Context) error {
		var err error
		ts, err = refresher.RefreshAccessToken(ctx)
		return err
	})
	if err != nil {
		metrics.TokenRefreshTotal.WithLabelValues(string(p), "error").Inc()
		lg.WithError(err).Warn("token refresh after 401 failed")
		return nil, false
	}
	metrics.TokenRefreshTotal.WithLabelValues(string(p), "success").Inc()

	updated := *tok
	applyTokenSet(&updated, ts)
	if err := u.tokens.UpsertToken(ctx, &updated); err != nil {
		lg.WithError(err).Error("failed storing refreshed token")
	}
	fresh, err := u.adapters.New(p, model.AdapterConfig{
		AccessToken:  updated.AccessToken,
		RefreshToken: updated.RefreshToken,
	})
	if err != nil {
		return nil, false
	}
	lg.Info("access token refreshed after 401")
	return fresh, true
}

func applyTokenSet(t *model.OAuthToken, ts *model.TokenSet) {
	t.AccessToken = ts.AccessToken
	if ts.RefreshToken != "" {
		t.RefreshToken = ts.RefreshToken
	}
	t.AccessTokenSecret = ""
	t.ExpiresAt = ts.ExpiresAt
	if ts.Scope != "" {
		t.Scopes = ts.Scope
	}
	if ts.ExternalID != "" {
		id := ts.ExternalID
		t.ExternalUserID = &id
	}
}

func (u *distributionUsecase) AuthorizationURL(ctx context.Context, creatorID string, p model.Platform, state string) (string, error) {
	adapter, _, err := u.adapterFor(ctx, "", p)
	if err != nil {
		return "", err
	}
	return adapter.GetAuthorizationURL(state)
}

func (u *distributionUsecase) ConnectAccount(ctx context.Context, creatorID string, p model.Platform, code, state string) (*model.TokenSet, error) {
	if creatorID == "" || code == "" {
		return nil, errors.New("creator and code are required")
	}
	adapter, _, err := u.adapterFor(ctx, "", p)
	if err != nil {
		return nil, err
	}
	var ts *model.TokenSet
	err = u.withTimeout(ctx, func(ctx context.Context) error {
		var xerr error
		ts, xerr = adapter.ExchangeCodeForToken(ctx, code, state)
		return xerr
	})
	if err != nil {
		return nil, err
	}
	tok := &model.OAuthToken{CreatorID: creatorID, Platform: string(p)}
	applyTokenSet(tok, ts)
	if err := u.tokens.UpsertToken(ctx, tok); err != nil {
		return nil, fmt.Errorf("store %s token: %w", p, err)
	}
	logger.GetLogger().WithField("creator_id", creatorID).WithField("platform", p).Info("platform account connected")
	return ts, nil
}

func (u *distributionUsecase) DisconnectAccount(ctx context.Context, creatorID string, p model.Platform) error {
	return u.tokens.DeleteToken(ctx, creatorID, string(p))
}

func validateTargets(platforms []model.Platform, payload *model.ContentPayload) error {
	if len(platforms) == 0 {
		return ErrNoPlatforms
	}
	if payload == nil {
		return ErrEmptyPayload
	}
	return nil
}

// dedupe keeps the first occurrence of each platform.
func dedupe(platforms []model.Platform) []model.Platform {
	seen := make(map[model.Platform]bool, len(platforms))
	out := make([]model.Platform, 0, len(platforms))
	for _, p := range platforms {
		if !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}
	return out
}

// Publish fans out to every platform concurrently, one adapter per platform.
// A failing platform never fails the others; results keep the input order.
func (u *distributionUsecase) Publish(ctx context.Context, creatorID string, platforms []model.Platform, payload *model.ContentPayload) ([]DistributionResult, error) {
	if err := validateTargets(platforms, payload); err != nil {
		return nil, err
	}
	platforms = dedupe(platforms)
	body := *payload
	body.CreatorID = creatorID

	results := make([]DistributionResult, len(platforms))
	g, gctx := errgroup.WithContext(ctx)
	for i, p := range platforms {
		i, p := i, p
		g.Go(func() error {
			rec := &model.DistributionRecord{CreatorID: creatorID, Platform: string(p), Status: model.DistributionStatusPending}
			if err := u.records.CreateRecord(gctx, rec); err != nil {
				logger.GetLogger().WithField("platform", p).WithError(err).Error("failed creating distribution record")
			}
			results[i] = u.publishRecord(gctx, rec, p, &body, OperationPublish)
			return nil
		})
	}
	_ = g.Wait()
	return results, nil
}

// publishRecord publishes payload and stores the outcome on rec.
func (u *distributionUsecase) publishRecord(ctx context.Context, rec *model.DistributionRecord, p model.Platform, payload *model.ContentPayload, op string) DistributionResult {
	var res *model.PublishResult
	err := u.call(ctx, rec.CreatorID, p, op, func(ctx context.Context, a repository.IPlatformAdapter) error {
		var err error
		res, err = a.Publish(ctx, payload)
		return err
	})

	out := DistributionResult{Platform: p, RecordID: rec.ID}
	var externalID, permalink, errMsg *string
	if err != nil {
		msg := err.Error()
		errMsg = &msg
		rec.Status = model.DistributionStatusFailed
		out.Error = msg
		out.err = err
		logger.GetLogger().WithField("creator_id", rec.CreatorID).WithField("platform", p).WithError(err).Warn("publish failed")
	} else {
		externalID, permalink = &res.ID, &res.Permalink
		rec.Status = model.DistributionStatusSuccess
		out.ID, out.Permalink = res.ID, res.Permalink
	}
	out.Status = rec.Status
	rec.ExternalID, rec.Permalink, rec.ErrorMessage = externalID, permalink, errMsg

	u.finish(ctx, rec, op, externalID, permalink, errMsg)
	return out
}

// finish persists the record outcome, appends the audit row and emits the event.
// Storage failures are logged; the platform outcome has already happened.
func (u *distributionUsecase) finish(ctx context.Context, rec *model.DistributionRecord, op string, externalID, permalink, errMsg *string) {
	lg := logger.GetLogger().WithField("record_id", rec.ID).WithField("platform", rec.Platform)
	if rec.ID != 0 {
		if err := u.records.UpdateRecordResult(ctx, rec.ID, rec.Status, externalID, permalink, errMsg); err != nil {
			lg.WithError(err).Error("failed updating distribution record")
		}
		audit := &model.DistributionAudit{RecordID: rec.ID, CreatorID: rec.CreatorID, Platform: rec.Platform, Operation: op, Status: rec.Status, ErrorMessage: errMsg}
		if err := u.records.CreateAudit(ctx, []*model.DistributionAudit{audit}); err != nil {
			lg.WithError(err).Error("failed writing distribution audit")
		}
	}
	u.emit(ctx, model.NewDistributionEvent(rec))
}

func (u *distributionUsecase) emit(ctx context.Context, evt model.DistributionEvent) {
	if u.broadcast != nil {
		u.broadcast(evt)
	}
	if u.events != nil {
		if err := u.events.Publish(ctx, evt); err != nil {
			logger.GetLogger().WithField("platform", evt.Platform).WithError(err).Warn("failed publishing distribution event")
		}
	}
}

// Schedule hands the payload to each platform's scheduler and records the
// returned schedule id. Platforms are scheduled independently.
func (u *distributionUsecase) Schedule(ctx context.Context, creatorID string, platforms []model.Platform, payload *model.ContentPayload, at time.Time) ([]DistributionResult, error) {
	if err := validateTargets(platforms, payload); err != nil {
		return nil, err
	}
	if !at.After(time.Now()) {
		return nil, ErrScheduleInPast
	}
	body := *payload
	body.CreatorID = creatorID
	body.ScheduledAt = nil

	platforms = dedupe(platforms)
	results := make([]DistributionResult, len(platforms))
	g, gctx := errgroup.WithContext(ctx)
	for i, p := range platforms {
		i, p := i, p
		g.Go(func() error {
			results[i] = u.scheduleOne(gctx, creatorID, p, &body, at)
			return nil
		})
	}
	_ = g.Wait()
	return results, nil
}

func (u *distributionUsecase) scheduleOne(ctx context.Context, creatorID string, p model.Platform, payload *model.ContentPayload, at time.Time) DistributionResult {
	out := DistributionResult{Platform: p}
	var post *model.ScheduledPost
	err := u.call(ctx, creatorID, p, OperationSchedule, func(ctx context.Context, a repository.IPlatformAdapter) error {
		var err error
		post, err = a.SchedulePost(ctx, payload, at)
		return err
	})
	if err != nil {
		out.Status = model.DistributionStatusFailed
		out.Error = err.Error()
		out.err = err
		return out
	}

	scheduleID := post.ID
	rec := &model.DistributionRecord{CreatorID: creatorID, Platform: string(p), Status: model.DistributionStatusScheduled, ScheduleID: &scheduleID}
	if err := u.records.CreateRecord(ctx, rec); err != nil {
		logger.GetLogger().WithField("schedule_id", scheduleID).WithError(err).Error("failed creating scheduled record")
	} else {
		audit := &model.DistributionAudit{RecordID: rec.ID, CreatorID: creatorID, Platform: string(p), Operation: OperationSchedule, Status: rec.Status}
		if err := u.records.CreateAudit(ctx, []*model.DistributionAudit{audit}); err != nil {
			logger.GetLogger().WithField("schedule_id", scheduleID).WithError(err).Error("failed writing distribution audit")
		}
	}
	u.emit(ctx, model.NewDistributionEvent(rec))

	out.Status = rec.Status
	out.RecordID = rec.ID
	out.ScheduleID = scheduleID
	return out
}

// CancelScheduled removes a queued post owned by the creator. It reports false
// when the post was already published or never existed.
func (u *distributionUsecase) CancelScheduled(ctx context.Context, creatorID, scheduleID string) (bool, error) {
	rec, err := u.records.FindByScheduleID(ctx, scheduleID)
	if err != nil {
		if errors.Is(err, repository.ErrRecordNotFound) {
			return false, nil
		}
		return false, err
	}
	if rec.CreatorID != creatorID {
		return false, nil
	}
	removed, err := u.queue.Cancel(ctx, scheduleID)
	if err != nil || !removed {
		return false, err
	}
	rec.Status = model.DistributionStatusCancelled
	u.finish(ctx, rec, OperationCancel, nil, nil, nil)
	return true, nil
}

// ProcessDueScheduled publishes up to batch posts whose time has come and
// returns how many were attempted.
func (u *distributionUsecase) ProcessDueScheduled(ctx context.Context, now time.Time, batch int) (int, error) {
	due, err := u.queue.PopDue(ctx, now, batch)
	if err != nil && len(due) == 0 {
		return 0, err
	}
	for _, post := range due {
		rec, ferr := u.records.FindByScheduleID(ctx, post.ID)
		if ferr != nil {
			if !errors.Is(ferr, repository.ErrRecordNotFound) {
				logger.GetLogger().WithField("schedule_id", post.ID).WithError(ferr).Error("failed loading scheduled record")
			}
			id := post.ID
			rec = &model.DistributionRecord{CreatorID: post.CreatorID, Platform: string(post.Platform), Status: model.DistributionStatusPending, ScheduleID: &id}
			if cerr := u.records.CreateRecord(ctx, rec); cerr != nil {
				logger.GetLogger().WithField("schedule_id", post.ID).WithError(cerr).Error("failed creating distribution record")
			}
		}
		payload := post.Payload
		res := u.publishRecord(ctx, rec, post.Platform, &payload, OperationScheduledPublish)
		metrics.ScheduledPostsTotal.WithLabelValues(string(post.Platform), res.Status).Inc()
	}
	return len(due), err
}

func (u *distributionUsecase) Delete(ctx context.Context, creatorID string, p model.Platform, postID string) (bool, error) {
	if strings.TrimSpace(postID) == "" {
		return false, errors.New("post id is required")
	}
	var deleted bool
	err := u.call(ctx, creatorID, p, OperationDelete, func(ctx context.Context, a repository.IPlatformAdapter) error {
		var err error
		deleted, err = a.DeletePost(ctx, postID)
		return err
	})
	if err != nil || !deleted {
		return false, err
	}
	if err := u.records.MarkDeleted(ctx, creatorID, string(p), postID); err != nil {
		logger.GetLogger().WithField("post_id", postID).WithError(err).Error("failed marking record deleted")
	}
	id := postID
	u.emit(ctx, model.DistributionEvent{Type: "distribution_status", CreatorID: creatorID, Platform: string(p), Status: model.DistributionStatusDeleted, ExternalID: &id})
	return true, nil
}

func (u *distributionUsecase) Analytics(ctx context.Context, creatorID string, p model.Platform, postID string, window *model.AnalyticsWindow) (*model.AnalyticsSnapshot, error) {
	var snap *model.AnalyticsSnapshot
	err := u.call(ctx, creatorID, p, OperationAnalytics, func(ctx context.Context, a repository.IPlatformAdapter) error {
		var err error
		snap, err = a.GetAnalytics(ctx, postID, window)
		return err
	})
	return snap, err
}

func (u *distributionUsecase) TrendingTags(ctx context.Context, creatorID string, p model.Platform) ([]string, error) {
	adapter, _, err := u.adapterFor(ctx, creatorID, p)
	if err != nil {
		return nil, err
	}
	var tags []string
	_ = u.withTimeout(ctx, func(ctx context.Context) error {
		tags = adapter.GetTrendingTags(ctx)
		return nil
	})
	return tags, nil
}

func (u *distributionUsecase) BestPostingTimes(ctx context.Context, creatorID string, p model.Platform) ([]model.PostingTimeRecommendation, error) {
	adapter, _, err := u.adapterFor(ctx, creatorID, p)
	if err != nil {
		return nil, err
	}
	var recs []model.PostingTimeRecommendation
	_ = u.withTimeout(ctx, func(ctx context.Context) error {
		recs = adapter.GetBestPostingTimes(ctx)
		return nil
	})
	return recs, nil
}

func (u *distributionUsecase) ValidateMedia(ctx context.Context, p model.Platform, mediaURL string, kind model.MediaKind) (*model.MediaValidation, error) {
	adapter, _, err := u.adapterFor(ctx, "", p)
	if err != nil {
		return nil, err
	}
	var v *model.MediaValidation
	_ = u.withTimeout(ctx, func(ctx context.Context) error {
		v = adapter.ValidateMedia(ctx, mediaURL, kind)
		return nil
	})
	return v, nil
}

func (u *distributionUsecase) ListRecords(ctx context.Context, creatorID string, limit int) ([]*model.DistributionRecord, error) {
	return u.records.ListRecords(ctx, creatorID, limit)
}
