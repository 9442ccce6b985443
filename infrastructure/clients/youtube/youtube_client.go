package youtube

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/googleapi"
	gtransport "google.golang.org/api/googleapi/transport"
	"google.golang.org/api/option"
	"google.golang.org/api/youtube/v3"
	"google.golang.org/api/youtubeanalytics/v2"

	"github.com/FanzCEO/GirlFanz-sub003/domain/model"
	"github.com/FanzCEO/GirlFanz-sub003/domain/repository"
	"github.com/FanzCEO/GirlFanz-sub003/infrastructure/clients/platform"
	"github.com/FanzCEO/GirlFanz-sub003/infrastructure/logger"
)

const (
	uploadURL = "https://www.googleapis.com/upload/youtube/v3"

	maxTitleRunes       = 100
	maxDescriptionRunes = 5000
	defaultCategoryID   = "22"
	trendingRegion      = "US"
	trendingSampleSize  = 25
)

var defaultScopes = []string{
	youtube.YoutubeScope,
	youtube.YoutubeUploadScope,
	youtube.YoutubeForceSslScope,
	youtubeanalytics.YtAnalyticsReadonlyScope,
}

// analyticsMetrics are requested in this order and mapped by column header.
var analyticsMetrics = []string{
	"views", "likes", "comments", "shares",
	"estimatedMinutesWatched", "averageViewDuration", "subscribersGained", "cardClickRate",
}

var defaultTrendingTags = []string{
	"#shorts", "#youtube", "#vlog", "#tutorial", "#music",
	"#gaming", "#howto", "#review", "#trending", "#creator",
}

// peakHours are the hours of day paired with each ranked weekday.
var peakHours = []int{15, 18, 20}

var defaultBestTimes = []model.PostingTimeRecommendation{
	{Hour: 15, DayOfWeek: 4, Score: 0.95},
	{Hour: 15, DayOfWeek: 5, Score: 0.93},
	{Hour: 9, DayOfWeek: 6, Score: 0.9},
	{Hour: 9, DayOfWeek: 0, Score: 0.88},
	{Hour: 14, DayOfWeek: 3, Score: 0.8},
	{Hour: 12, DayOfWeek: 1, Score: 0.72},
}

// Client publishes through the resumable upload protocol and reads statistics
// from the YouTube Analytics API.
type Client struct {
	cfg    model.AdapterConfig
	deps   platform.Deps
	oauth  *oauth2.Config
	api    *platform.Client
	upload string
	// endpoint overrides the Google API root for both services when set.
	endpoint string
}

// NewYouTubeClient creates an adapter bound to one creator's channel credentials
func NewYouTubeClient(cfg model.AdapterConfig, deps platform.Deps) repository.IPlatformAdapter {
	return newClient(cfg, deps)
}

func newClient(cfg model.AdapterConfig, deps platform.Deps) *Client {
	deps = deps.Resolve()
	if len(cfg.Scopes) == 0 {
		cfg.Scopes = defaultScopes
	}
	endpoint := google.Endpoint
	if deps.BaseURL != "" {
		endpoint = oauth2.Endpoint{
			AuthURL:   deps.BaseURL + "/o/oauth2/auth",
			TokenURL:  deps.BaseURL + "/token",
			AuthStyle: oauth2.AuthStyleInParams,
		}
	}
	c := &Client{
		cfg:  cfg,
		deps: deps,
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURI,
			Scopes:       cfg.Scopes,
			Endpoint:     endpoint,
		},
		upload: deps.URL(uploadURL, "/upload/youtube/v3"),
	}
	if deps.BaseURL != "" {
		c.endpoint = deps.BaseURL + "/"
	}
	c.api = deps.NewAPIClient(platform.BearerToken{Token: cfg.AccessToken})
	return c
}

func (c *Client) Platform() model.Platform { return model.PlatformYouTube }

func (c *Client) GetAuthorizationURL(state string) (string, error) {
	if err := platform.RequireToken(model.PlatformYouTube, "client id", c.cfg.ClientID); err != nil {
		return "", err
	}
	if err := platform.RequireToken(model.PlatformYouTube, "redirect uri", c.cfg.RedirectURI); err != nil {
		return "", err
	}
	return c.oauth.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.SetAuthURLParam("prompt", "consent")), nil
}

func (c *Client) ExchangeCodeForToken(ctx context.Context, code, _ string) (*model.TokenSet, error) {
	if err := platform.RequireToken(model.PlatformYouTube, "client id", c.cfg.ClientID); err != nil {
		return nil, err
	}
	if err := platform.RequireToken(model.PlatformYouTube, "client secret", c.cfg.ClientSecret); err != nil {
		return nil, err
	}
	tok, err := c.oauth.Exchange(c.deps.OAuthContext(ctx), code)
	if err != nil {
		return nil, platform.AuthError(model.PlatformYouTube, err)
	}
	return platform.TokenSetFromOAuth(tok, ""), nil
}

// RefreshAccessToken forces a refresh and switches this client to the new
// token. It is called explicitly, never on a 401.
func (c *Client) RefreshAccessToken(ctx context.Context) (*model.TokenSet, error) {
	if err := platform.RequireToken(model.PlatformYouTube, "refresh token", c.cfg.RefreshToken); err != nil {
		return nil, err
	}
	tok, err := c.oauth.TokenSource(c.deps.OAuthContext(ctx), platform.OAuthToken(c.cfg)).Token()
	if err != nil {
		return nil, platform.AuthError(model.PlatformYouTube, err)
	}
	ts := platform.TokenSetFromOAuth(tok, "")
	c.cfg.AccessToken = ts.AccessToken
	if ts.RefreshToken != "" {
		c.cfg.RefreshToken = ts.RefreshToken
	}
	c.api = c.api.WithAuth(platform.BearerToken{Token: ts.AccessToken})
	logger.GetLogger().WithField("platform", model.PlatformYouTube).WithField("expiry", tok.Expiry).Info("token refreshed")
	return ts, nil
}

// httpClient authenticates Google service calls with the access token, or
// with the API key for read-only calls when no token is configured.
func (c *Client) httpClient(ctx context.Context) (*http.Client, error) {
	if c.cfg.AccessToken != "" {
		src := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: c.cfg.AccessToken, TokenType: "Bearer"})
		return oauth2.NewClient(c.deps.OAuthContext(ctx), src), nil
	}
	if c.cfg.APIKey != "" {
		return &http.Client{Transport: &gtransport.APIKey{Key: c.cfg.APIKey, Transport: c.deps.HTTPClient.Transport}}, nil
	}
	return nil, &platform.ConfigurationError{Platform: model.PlatformYouTube, Missing: "access token"}
}

func (c *Client) serviceOptions(ctx context.Context) ([]option.ClientOption, error) {
	hc, err := c.httpClient(ctx)
	if err != nil {
		return nil, err
	}
	opts := []option.ClientOption{option.WithHTTPClient(hc)}
	if c.endpoint != "" {
		opts = append(opts, option.WithEndpoint(c.endpoint))
	}
	return opts, nil
}

func (c *Client) dataService(ctx context.Context) (*youtube.Service, error) {
	opts, err := c.serviceOptions(ctx)
	if err != nil {
		return nil, err
	}
	return youtube.NewService(ctx, opts...)
}

func (c *Client) analyticsService(ctx context.Context) (*youtubeanalytics.Service, error) {
	opts, err := c.serviceOptions(ctx)
	if err != nil {
		return nil, err
	}
	return youtubeanalytics.NewService(ctx, opts...)
}

func buildTitle(p *model.ContentPayload) string {
	title := strings.TrimSpace(p.Title)
	if title == "" {
		title = strings.TrimSpace(strings.SplitN(p.Caption, "\n", 2)[0])
	}
	if title == "" {
		title = "Untitled"
	}
	return platform.TruncateRunes(title, maxTitleRunes)
}

// buildDescription is the caption, a blank line, then the hashtags.
func buildDescription(p *model.ContentPayload) string {
	desc := p.Caption
	if tags := platform.JoinHashtags(p.Hashtags); tags != "" {
		if desc == "" {
			desc = tags
		} else {
			desc += "\n\n" + tags
		}
	}
	return platform.TruncateRunes(desc, maxDescriptionRunes)
}

func videoTags(hashtags []string) []string {
	tags := platform.NormalizeHashtags(hashtags)
	out := make([]string, len(tags))
	for i, t := range tags {
		out[i] = strings.TrimPrefix(t, "#")
	}
	return out
}

func privacyStatus(s string) string {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "private", "self_only":
		return "private"
	case "unlisted":
		return "unlisted"
	}
	return "public"
}

// newVideoResource builds the metadata sent when the upload session opens. A
// future ScheduledAt becomes a private video with publishAt.
func newVideoResource(p *model.ContentPayload, now time.Time) *youtube.Video {
	category := p.CategoryID
	if category == "" {
		category = defaultCategoryID
	}
	v := &youtube.Video{
		Snippet: &youtube.VideoSnippet{
			Title:       buildTitle(p),
			Description: buildDescription(p),
			Tags:        videoTags(p.Hashtags),
			CategoryId:  category,
		},
		Status: &youtube.VideoStatus{
			PrivacyStatus:           privacyStatus(p.Privacy),
			SelfDeclaredMadeForKids: p.MadeForKids,
			ForceSendFields:         []string{"SelfDeclaredMadeForKids"},
		},
	}
	if p.ScheduledAt != nil && p.ScheduledAt.After(now) {
		v.Status.PrivacyStatus = "private"
		v.Status.PublishAt = p.ScheduledAt.UTC().Format(time.RFC3339)
	}
	return v
}

// Publish opens a resumable upload session, sends the video bytes to the
// session URL and then runs the best-effort thumbnail and playlist steps.
func (c *Client) Publish(ctx context.Context, payload *model.ContentPayload) (*model.PublishResult, error) {
	if err := platform.RequireToken(model.PlatformYouTube, "access token", c.cfg.AccessToken); err != nil {
		return nil, &platform.PublishError{Platform: model.PlatformYouTube, Step: "authenticate", Err: err}
	}
	if payload == nil || payload.PrimaryMediaURL() == "" {
		return nil, &platform.PublishError{Platform: model.PlatformYouTube, Step: "validate", Err: errors.New("a video url is required")}
	}
	if payload.MediaKind == model.MediaKindImage {
		return nil, &platform.PublishError{Platform: model.PlatformYouTube, Step: "validate", Err: errors.New("only video can be published")}
	}

	media, err := c.deps.Fetcher.Fetch(ctx, payload.PrimaryMediaURL())
	if err != nil {
		return nil, &platform.PublishError{Platform: model.PlatformYouTube, Step: "fetch_media", Err: err}
	}

	session, err := c.openSession(ctx, newVideoResource(payload, time.Now()), media)
	if err != nil {
		return nil, &platform.PublishError{Platform: model.PlatformYouTube, Step: "init_upload", Err: err}
	}
	videoID, err := c.sendBytes(ctx, session, media)
	if err != nil {
		c.deps.Compensator.Compensate(ctx, platform.DanglingState{Platform: model.PlatformYouTube, Step: "upload", RemoteID: session, Cause: err})
		return nil, &platform.PublishError{Platform: model.PlatformYouTube, Step: "upload", RemoteID: session, Err: err}
	}

	c.setThumbnail(ctx, videoID, payload.ThumbnailURL)
	c.addToPlaylist(ctx, videoID, payload.PlaylistID)

	return &model.PublishResult{ID: videoID, Permalink: "https://www.youtube.com/watch?v=" + videoID}, nil
}

func videoContentType(m *platform.Media) string {
	if strings.HasPrefix(m.ContentType, "video/") {
		return m.ContentType
	}
	return "video/*"
}

// openSession posts the video resource and returns the session URL from Location.
func (c *Client) openSession(ctx context.Context, video *youtube.Video, media *platform.Media) (string, error) {
	body, err := video.MarshalJSON()
	if err != nil {
		return "", err
	}
	u := c.upload + "/videos?uploadType=resumable&part=snippet,status"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json; charset=UTF-8")
	req.Header.Set("X-Upload-Content-Length", fmt.Sprint(media.Size()))
	req.Header.Set("X-Upload-Content-Type", videoContentType(media))
	resp, err := c.api.Do(req)
	if err != nil {
		return "", err
	}
	resp.Body.Close()
	location := resp.Header.Get("Location")
	if location == "" {
		return "", errors.New("upload session url missing from response")
	}
	return location, nil
}

func (c *Client) sendBytes(ctx context.Context, session string, media *platform.Media) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, session, bytes.NewReader(media.Data))
	if err != nil {
		return "", err
	}
	req.ContentLength = media.Size()
	req.Header.Set("Content-Type", videoContentType(media))
	resp, err := c.api.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	var video youtube.Video
	if err := json.NewDecoder(resp.Body).Decode(&video); err != nil {
		return "", fmt.Errorf("decode video: %w", err)
	}
	if video.Id == "" {
		return "", errors.New("video id missing from response")
	}
	return video.Id, nil
}

func (c *Client) setThumbnail(ctx context.Context, videoID, thumbnailURL string) {
	if thumbnailURL == "" {
		return
	}
	log := logger.GetLogger().WithField("platform", model.PlatformYouTube).WithField("video_id", videoID)
	thumb, err := c.deps.Fetcher.Fetch(ctx, thumbnailURL)
	if err != nil {
		log.WithError(err).Warn("thumbnail fetch failed")
		return
	}
	svc, err := c.dataService(ctx)
	if err != nil {
		log.WithError(err).Warn("thumbnail upload skipped")
		return
	}
	if _, err := svc.Thumbnails.Set(videoID).Media(bytes.NewReader(thumb.Data)).Context(ctx).Do(); err != nil {
		log.WithError(err).Warn("thumbnail upload failed")
	}
}

func (c *Client) addToPlaylist(ctx context.Context, videoID, playlistID string) {
	if playlistID == "" {
		return
	}
	log := logger.GetLogger().WithField("platform", model.PlatformYouTube).WithField("video_id", videoID).WithField("playlist_id", playlistID)
	svc, err := c.dataService(ctx)
	if err != nil {
		log.WithError(err).Warn("playlist insert skipped")
		return
	}
	item := &youtube.PlaylistItem{
		Snippet: &youtube.PlaylistItemSnippet{
			PlaylistId: playlistID,
			ResourceId: &youtube.ResourceId{Kind: "youtube#video", VideoId: videoID},
		},
	}
	if _, err := svc.PlaylistItems.Insert([]string{"snippet"}, item).Context(ctx).Do(); err != nil {
		log.WithError(err).Warn("playlist insert failed")
	}
}

// zeroSnapshot is returned whenever the Analytics API cannot answer; recent
// uploads routinely have no data yet.
func zeroSnapshot(postID string) *model.AnalyticsSnapshot {
	return &model.AnalyticsSnapshot{
		PostID:   postID,
		Platform: model.PlatformYouTube,
		Extras: map[string]float64{
			"watch_time_minutes":    0,
			"average_view_duration": 0,
			"subscribers_gained":    0,
			"click_through_rate":    0,
		},
		FetchedAt: time.Now().UTC(),
	}
}

// GetAnalytics reports per-video metrics for the window (28 days when nil).
// A missing token is an error; every API failure yields a zero snapshot.
func (c *Client) GetAnalytics(ctx context.Context, postID string, window *model.AnalyticsWindow) (*model.AnalyticsSnapshot, error) {
	if err := platform.RequireToken(model.PlatformYouTube, "access token", c.cfg.AccessToken); err != nil {
		return nil, &platform.AnalyticsError{Platform: model.PlatformYouTube, PostID: postID, Err: err}
	}
	if window == nil {
		w := model.DefaultAnalyticsWindow(time.Now().UTC())
		window = &w
	}
	log := logger.GetLogger().WithField("platform", model.PlatformYouTube).WithField("post_id", postID)
	if err := c.api.WaitAnalytics(ctx); err != nil {
		return nil, &platform.AnalyticsError{Platform: model.PlatformYouTube, PostID: postID, Err: err}
	}

	svc, err := c.analyticsService(ctx)
	if err != nil {
		log.WithError(err).Warn("analytics unavailable")
		return zeroSnapshot(postID), nil
	}
	resp, err := svc.Reports.Query().
		Ids("channel==MINE").
		StartDate(window.Start.Format("2006-01-02")).
		EndDate(window.End.Format("2006-01-02")).
		Metrics(strings.Join(analyticsMetrics, ",")).
		Filters("video==" + postID).
		Context(ctx).
		Do()
	if err != nil {
		log.WithError(err).Warn("analytics query failed, returning zero snapshot")
		return zeroSnapshot(postID), nil
	}
	if len(resp.Rows) == 0 {
		return zeroSnapshot(postID), nil
	}

	values := map[string]float64{}
	for i, h := range resp.ColumnHeaders {
		if i < len(resp.Rows[0]) {
			values[h.Name] = number(resp.Rows[0][i])
		}
	}
	snap := zeroSnapshot(postID)
	snap.Views = int64(values["views"])
	snap.Likes = int64(values["likes"])
	snap.Comments = int64(values["comments"])
	snap.Shares = int64(values["shares"])
	snap.Extras["watch_time_minutes"] = values["estimatedMinutesWatched"]
	snap.Extras["average_view_duration"] = values["averageViewDuration"]
	snap.Extras["subscribers_gained"] = values["subscribersGained"]
	snap.Extras["click_through_rate"] = values["cardClickRate"]
	return snap, nil
}

func number(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int64:
		return float64(n)
	case int:
		return float64(n)
	}
	return 0
}

// GetTrendingTags ranks the tags of the most popular videos in the US chart.
func (c *Client) GetTrendingTags(ctx context.Context) []string {
	log := logger.GetLogger().WithField("platform", model.PlatformYouTube)
	svc, err := c.dataService(ctx)
	if err != nil {
		return platform.CloneTags(defaultTrendingTags)
	}
	resp, err := svc.Videos.List([]string{"snippet"}).
		Chart("mostPopular").
		RegionCode(trendingRegion).
		MaxResults(trendingSampleSize).
		Context(ctx).
		Do()
	if err != nil {
		log.WithError(err).Warn("trending unavailable, using defaults")
		return platform.CloneTags(defaultTrendingTags)
	}
	var texts []string
	for _, v := range resp.Items {
		if v.Snippet == nil {
			continue
		}
		texts = append(texts, platform.JoinHashtags(v.Snippet.Tags))
	}
	tags := platform.RankTags(texts, len(defaultTrendingTags))
	if len(tags) == 0 {
		return platform.CloneTags(defaultTrendingTags)
	}
	return tags
}

// GetBestPostingTimes ranks weekdays by channel views over the last 28 days
// and pairs each with the usual peak hours.
func (c *Client) GetBestPostingTimes(ctx context.Context) []model.PostingTimeRecommendation {
	if c.cfg.AccessToken == "" {
		return platform.CloneRecommendations(defaultBestTimes)
	}
	log := logger.GetLogger().WithField("platform", model.PlatformYouTube)
	svc, err := c.analyticsService(ctx)
	if err != nil {
		return platform.CloneRecommendations(defaultBestTimes)
	}
	w := model.DefaultAnalyticsWindow(time.Now().UTC())
	resp, err := svc.Reports.Query().
		Ids("channel==MINE").
		StartDate(w.Start.Format("2006-01-02")).
		EndDate(w.End.Format("2006-01-02")).
		Metrics("views").
		Dimensions("day").
		Context(ctx).
		Do()
	if err != nil {
		log.WithError(err).Warn("activity unavailable, using defaults")
		return platform.CloneRecommendations(defaultBestTimes)
	}
	recs := rankWeekdays(resp.Rows)
	if len(recs) == 0 {
		return platform.CloneRecommendations(defaultBestTimes)
	}
	return recs
}

// rankWeekdays sums [day, views] rows per weekday and scores the top three
// against the busiest one.
func rankWeekdays(rows [][]any) []model.PostingTimeRecommendation {
	var totals [7]float64
	for _, row := range rows {
		if len(row) < 2 {
			continue
		}
		day, ok := row[0].(string)
		if !ok {
			continue
		}
		t, err := time.Parse("2006-01-02", day)
		if err != nil {
			continue
		}
		totals[t.Weekday()] += number(row[1])
	}
	days := []int{0, 1, 2, 3, 4, 5, 6}
	sort.SliceStable(days, func(i, j int) bool { return totals[days[i]] > totals[days[j]] })
	peak := totals[days[0]]
	if peak <= 0 {
		return nil
	}
	var recs []model.PostingTimeRecommendation
	for _, d := range days[:3] {
		if totals[d] <= 0 {
			break
		}
		for i, h := range peakHours {
			// later peak hours rank slightly below the first
			score := totals[d] / peak * (1 - 0.05*float64(i))
			recs = append(recs, model.PostingTimeRecommendation{Hour: h, DayOfWeek: d, Score: score})
		}
	}
	platform.SortRecommendations(recs)
	return recs
}

func (c *Client) ValidateMedia(ctx context.Context, mediaURL string, kind model.MediaKind) *model.MediaValidation {
	return platform.ValidateRemote(ctx, c.deps.Fetcher, platform.YouTubeConstraints, mediaURL, kind)
}

func (c *Client) SchedulePost(ctx context.Context, payload *model.ContentPayload, at time.Time) (*model.ScheduledPost, error) {
	return platform.NewScheduledPost(ctx, c.deps.Queue, model.PlatformYouTube, payload, at)
}

// DeletePost removes the video. A rejection by the API is reported as false.
func (c *Client) DeletePost(ctx context.Context, postID string) (bool, error) {
	if err := platform.RequireToken(model.PlatformYouTube, "access token", c.cfg.AccessToken); err != nil {
		return false, err
	}
	svc, err := c.dataService(ctx)
	if err != nil {
		return false, err
	}
	if err := svc.Videos.Delete(postID).Context(ctx).Do(); err != nil {
		var gErr *googleapi.Error
		if errors.As(err, &gErr) {
			logger.GetLogger().WithField("platform", model.PlatformYouTube).WithField("status", gErr.Code).WithField("post_id", postID).Warn("delete rejected")
			return false, nil
		}
		return false, err
	}
	return true, nil
}
