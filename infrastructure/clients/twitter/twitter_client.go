package twitter

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/go-querystring/query"
	"golang.org/x/oauth2"

	"github.com/FanzCEO/GirlFanz-sub003/domain/model"
	"github.com/FanzCEO/GirlFanz-sub003/domain/repository"
	"github.com/FanzCEO/GirlFanz-sub003/infrastructure/clients/platform"
	"github.com/FanzCEO/GirlFanz-sub003/infrastructure/logger"
)

const (
	authURL   = "https://twitter.com/i/oauth2/authorize"
	tokenURL  = "https://api.twitter.com/2/oauth2/token"
	apiURL    = "https://api.twitter.com"
	uploadURL = "https://upload.twitter.com/1.1/media/upload.json"

	// MaxTweetRunes is the tweet length limit applied to the composed text.
	MaxTweetRunes = 280
	// AppendSegmentSize is the size of one APPEND chunk.
	AppendSegmentSize = 4 << 20

	maxImages           = 4
	maxStatusChecks     = 30
	defaultCheckSeconds = 5
)

var defaultScopes = []string{"tweet.read", "tweet.write", "users.read", "offline.access"}

var defaultTrendingTags = []string{
	"#trending", "#viral", "#news", "#breaking", "#tech",
	"#music", "#sports", "#art", "#photography", "#creator",
}

var defaultBestTimes = []model.PostingTimeRecommendation{
	{Hour: 9, DayOfWeek: 3, Score: 0.95},
	{Hour: 12, DayOfWeek: 3, Score: 0.92},
	{Hour: 9, DayOfWeek: 2, Score: 0.9},
	{Hour: 12, DayOfWeek: 4, Score: 0.88},
	{Hour: 17, DayOfWeek: 1, Score: 0.82},
	{Hour: 8, DayOfWeek: 5, Score: 0.78},
	{Hour: 10, DayOfWeek: 6, Score: 0.6},
}

// Client talks to the X API v2 for tweets and to the v1.1 upload endpoint for media.
type Client struct {
	cfg    model.AdapterConfig
	deps   platform.Deps
	oauth  *oauth2.Config
	api    *platform.Client
	upload *platform.Client
	app    *platform.Client

	apiURL    string
	uploadURL string

	// sleep waits between media STATUS checks.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewTwitterClient creates an adapter bound to one creator's X credentials
func NewTwitterClient(cfg model.AdapterConfig, deps platform.Deps) repository.IPlatformAdapter {
	return newClient(cfg, deps)
}

func newClient(cfg model.AdapterConfig, deps platform.Deps) *Client {
	deps = deps.Resolve()
	if len(cfg.Scopes) == 0 {
		cfg.Scopes = defaultScopes
	}
	c := &Client{
		cfg:  cfg,
		deps: deps,
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURI,
			Scopes:       cfg.Scopes,
			Endpoint: oauth2.Endpoint{
				AuthURL:   deps.URL(authURL, "/i/oauth2/authorize"),
				TokenURL:  deps.URL(tokenURL, "/2/oauth2/token"),
				AuthStyle: oauth2.AuthStyleInHeader,
			},
		},
		apiURL:    deps.URL(apiURL, ""),
		uploadURL: deps.URL(uploadURL, "/1.1/media/upload.json"),
		sleep:     sleepCtx,
	}
	c.setCredentials()
	return c
}

// setCredentials binds the creator's user context. An access token with a token
// secret is OAuth 1.0a and is signed by an oauth1 transport; an access token on
// its own is an OAuth 2.0 user token sent as a bearer. The app bearer token only
// serves app-only reads and never stands in for the creator.
func (c *Client) setCredentials() {
	c.api = c.userClient()
	c.upload = c.api
	c.app = c.api
	if c.cfg.AppBearerToken != "" {
		c.app = c.deps.NewAPIClient(platform.BearerToken{Token: c.cfg.AppBearerToken})
	}
}

func (c *Client) userClient() *platform.Client {
	if c.cfg.AccessTokenSecret == "" {
		return c.deps.NewAPIClient(platform.BearerToken{Token: c.cfg.AccessToken})
	}
	if signed := oauth1HTTPClient(c.cfg, c.deps.HTTPClient); signed != nil {
		return c.deps.NewAPIClient(platform.Anonymous{}, platform.WithHTTPClient(signed))
	}
	// an OAuth 1.0a token without a consumer pair cannot be used
	return c.deps.NewAPIClient(platform.BearerToken{})
}

// authenticated reports whether the creator connected an account. Every
// user-context call checks it before any network I/O.
func (c *Client) authenticated() error {
	return platform.RequireToken(model.PlatformTwitter, "access token", c.cfg.AccessToken)
}

func (c *Client) Platform() model.Platform { return model.PlatformTwitter }

// GetAuthorizationURL starts an OAuth 2.0 PKCE flow. The verifier is kept
// against state until the callback exchanges it.
func (c *Client) GetAuthorizationURL(state string) (string, error) {
	if err := platform.RequireToken(model.PlatformTwitter, "client id", c.cfg.ClientID); err != nil {
		return "", err
	}
	if err := platform.RequireToken(model.PlatformTwitter, "redirect uri", c.cfg.RedirectURI); err != nil {
		return "", err
	}
	verifier := oauth2.GenerateVerifier()
	if err := c.deps.Verifiers.Save(context.Background(), state, verifier); err != nil {
		return "", fmt.Errorf("store pkce verifier: %w", err)
	}
	return c.oauth.AuthCodeURL(state, oauth2.S256ChallengeOption(verifier)), nil
}

func (c *Client) ExchangeCodeForToken(ctx context.Context, code, state string) (*model.TokenSet, error) {
	if err := platform.RequireToken(model.PlatformTwitter, "client id", c.cfg.ClientID); err != nil {
		return nil, err
	}
	verifier, ok, err := c.deps.Verifiers.Take(ctx, state)
	if err != nil {
		return nil, &platform.AuthExchangeError{Platform: model.PlatformTwitter, Status: err.Error()}
	}
	if !ok {
		return nil, &platform.AuthExchangeError{Platform: model.PlatformTwitter, StatusCode: http.StatusBadRequest, Status: "unknown or expired state"}
	}
	tok, err := c.oauth.Exchange(c.deps.OAuthContext(ctx), code, oauth2.VerifierOption(verifier))
	if err != nil {
		return nil, platform.AuthError(model.PlatformTwitter, err)
	}
	return platform.TokenSetFromOAuth(tok, ""), nil
}

// RefreshAccessToken trades the offline.access refresh token for a new user token.
func (c *Client) RefreshAccessToken(ctx context.Context) (*model.TokenSet, error) {
	if err := platform.RequireToken(model.PlatformTwitter, "refresh token", c.cfg.RefreshToken); err != nil {
		return nil, err
	}
	tok, err := c.oauth.TokenSource(c.deps.OAuthContext(ctx), platform.OAuthToken(c.cfg)).Token()
	if err != nil {
		return nil, platform.AuthError(model.PlatformTwitter, err)
	}
	ts := platform.TokenSetFromOAuth(tok, "")
	c.cfg.AccessToken = ts.AccessToken
	c.cfg.AccessTokenSecret = ""
	if ts.RefreshToken != "" {
		c.cfg.RefreshToken = ts.RefreshToken
	}
	c.setCredentials()
	return ts, nil
}

// buildTweetText is "@a @b caption", a blank line, the hashtags, cut to 280 runes.
func buildTweetText(p *model.ContentPayload) string {
	text := p.Caption
	if text == "" {
		text = p.Title
	}
	if mentions := platform.NormalizeMentions(p.Mentions); len(mentions) > 0 {
		prefix := strings.Join(mentions, " ")
		if text == "" {
			text = prefix
		} else {
			text = prefix + " " + text
		}
	}
	if tags := platform.JoinHashtags(p.Hashtags); tags != "" {
		if text == "" {
			text = tags
		} else {
			text += "\n\n" + tags
		}
	}
	return platform.TruncateRunes(text, MaxTweetRunes)
}

type tweetMedia struct {
	MediaIDs []string `json:"media_ids"`
}

type tweetPoll struct {
	Options         []string `json:"options"`
	DurationMinutes int      `json:"duration_minutes"`
}

type tweetReply struct {
	InReplyToTweetID string `json:"in_reply_to_tweet_id"`
}

type tweetGeo struct {
	PlaceID string `json:"place_id"`
}

type tweetRequest struct {
	Text         string      `json:"text"`
	Media        *tweetMedia `json:"media,omitempty"`
	Poll         *tweetPoll  `json:"poll,omitempty"`
	QuoteTweetID string      `json:"quote_tweet_id,omitempty"`
	Reply        *tweetReply `json:"reply,omitempty"`
	Geo          *tweetGeo   `json:"geo,omitempty"`
}

func newTweetRequest(p *model.ContentPayload, mediaIDs []string) tweetRequest {
	req := tweetRequest{Text: buildTweetText(p), QuoteTweetID: p.QuoteTweetID}
	if len(mediaIDs) > 0 {
		req.Media = &tweetMedia{MediaIDs: mediaIDs}
	} else if len(p.PollOptions) > 0 {
		// X rejects a poll combined with media
		minutes := p.PollDurationMinutes
		if minutes <= 0 {
			minutes = 1440
		}
		req.Poll = &tweetPoll{Options: p.PollOptions, DurationMinutes: minutes}
	}
	if p.ReplyToID != "" {
		req.Reply = &tweetReply{InReplyToTweetID: p.ReplyToID}
	}
	if p.PlaceID != "" {
		req.Geo = &tweetGeo{PlaceID: p.PlaceID}
	}
	return req
}

// Publish uploads any media through INIT/APPEND/FINALIZE and then creates the tweet.
func (c *Client) Publish(ctx context.Context, payload *model.ContentPayload) (*model.PublishResult, error) {
	if err := c.authenticated(); err != nil {
		return nil, &platform.PublishError{Platform: model.PlatformTwitter, Step: "authenticate", Err: err}
	}
	if payload == nil {
		return nil, &platform.PublishError{Platform: model.PlatformTwitter, Step: "validate", Err: errors.New("payload is required")}
	}

	if err := checkMediaCount(payload); err != nil {
		return nil, &platform.PublishError{Platform: model.PlatformTwitter, Step: "validate", Err: err}
	}

	mediaIDs := make([]string, 0, len(payload.MediaURLs))
	for _, u := range payload.MediaURLs {
		media, err := c.deps.Fetcher.Fetch(ctx, u)
		if err != nil {
			return nil, &platform.PublishError{Platform: model.PlatformTwitter, Step: "fetch_media", Err: err}
		}
		id, err := c.uploadMedia(ctx, media, payload.MediaKind)
		if err != nil {
			return nil, &platform.PublishError{Platform: model.PlatformTwitter, Step: "upload_media", Err: err}
		}
		mediaIDs = append(mediaIDs, id)
	}

	var out struct {
		Data struct {
			ID   string `json:"id"`
			Text string `json:"text"`
		} `json:"data"`
	}
	if err := c.api.DoJSON(ctx, http.MethodPost, c.apiURL+"/2/tweets", newTweetRequest(payload, mediaIDs), &out); err != nil {
		return nil, &platform.PublishError{Platform: model.PlatformTwitter, Step: "create_tweet", Err: err}
	}
	if out.Data.ID == "" {
		return nil, &platform.PublishError{Platform: model.PlatformTwitter, Step: "create_tweet", Err: errors.New("tweet id missing from response")}
	}
	return &model.PublishResult{ID: out.Data.ID, Permalink: "https://x.com/i/status/" + out.Data.ID}, nil
}

// checkMediaCount enforces the attachment limits of one tweet: a single video,
// or up to four images.
func checkMediaCount(p *model.ContentPayload) error {
	n := len(p.MediaURLs)
	if p.MediaKind == model.MediaKindVideo && n > 1 {
		return fmt.Errorf("a tweet carries one video, got %d", n)
	}
	if n > maxImages {
		return fmt.Errorf("a tweet carries at most %d images, got %d", maxImages, n)
	}
	return nil
}

type initForm struct {
	Command       string `url:"command"`
	TotalBytes    int64  `url:"total_bytes"`
	MediaType     string `url:"media_type"`
	MediaCategory string `url:"media_category"`
}

type processingInfo struct {
	State          string `json:"state"`
	CheckAfterSecs int    `json:"check_after_secs"`
	ProgressPct    int    `json:"progress_percent"`
	Error          *struct {
		Code    int    `json:"code"`
		Name    string `json:"name"`
		Message string `json:"message"`
	} `json:"error"`
}

type mediaResponse struct {
	MediaIDString  string          `json:"media_id_string"`
	ProcessingInfo *processingInfo `json:"processing_info"`
}

func mediaCategory(kind model.MediaKind, contentType string) string {
	switch {
	case kind == model.MediaKindVideo || strings.HasPrefix(contentType, "video/"):
		return "tweet_video"
	case contentType == "image/gif":
		return "tweet_gif"
	}
	return "tweet_image"
}

func (c *Client) uploadMedia(ctx context.Context, media *platform.Media, kind model.MediaKind) (string, error) {
	contentType := media.ContentType
	if contentType == "" {
		contentType = "image/jpeg"
		if kind == model.MediaKindVideo {
			contentType = "video/mp4"
		}
	}
	values, err := query.Values(initForm{
		Command:       "INIT",
		TotalBytes:    media.Size(),
		MediaType:     contentType,
		MediaCategory: mediaCategory(kind, contentType),
	})
	if err != nil {
		return "", err
	}
	var initResp mediaResponse
	if err := c.upload.PostForm(ctx, c.uploadURL, values, &initResp); err != nil {
		return "", fmt.Errorf("INIT: %w", err)
	}
	mediaID := initResp.MediaIDString
	if mediaID == "" {
		return "", errors.New("INIT: media id missing from response")
	}

	for i, start := 0, int64(0); start < media.Size(); i, start = i+1, start+AppendSegmentSize {
		end := start + AppendSegmentSize
		if end > media.Size() {
			end = media.Size()
		}
		if err := c.appendSegment(ctx, mediaID, i, media.Data[start:end]); err != nil {
			return "", fmt.Errorf("APPEND %d: %w", i, err)
		}
	}

	var fin mediaResponse
	if err := c.upload.PostForm(ctx, c.uploadURL, url.Values{"command": {"FINALIZE"}, "media_id": {mediaID}}, &fin); err != nil {
		return "", fmt.Errorf("FINALIZE: %w", err)
	}
	if err := c.awaitProcessing(ctx, mediaID, fin.ProcessingInfo); err != nil {
		return "", err
	}
	return mediaID, nil
}

func (c *Client) appendSegment(ctx context.Context, mediaID string, index int, data []byte) error {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	_ = w.WriteField("command", "APPEND")
	_ = w.WriteField("media_id", mediaID)
	_ = w.WriteField("segment_index", strconv.Itoa(index))
	part, err := w.CreateFormFile("media", "media")
	if err != nil {
		return err
	}
	if _, err := part.Write(data); err != nil {
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.uploadURL, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	resp, err := c.upload.Do(req)
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}

// awaitProcessing polls STATUS until asynchronous processing succeeds or fails.
// Images come back from FINALIZE without processing info.
func (c *Client) awaitProcessing(ctx context.Context, mediaID string, info *processingInfo) error {
	for attempt := 0; info != nil; attempt++ {
		switch info.State {
		case "succeeded", "":
			return nil
		case "failed":
			msg := "media processing failed"
			if info.Error != nil && info.Error.Message != "" {
				msg = info.Error.Message
			}
			return errors.New(msg)
		}
		if attempt >= maxStatusChecks {
			return fmt.Errorf("media %s still %s after %d checks", mediaID, info.State, attempt)
		}
		wait := info.CheckAfterSecs
		if wait <= 0 {
			wait = defaultCheckSeconds
		}
		if err := c.sleep(ctx, time.Duration(wait)*time.Second); err != nil {
			return err
		}
		var status mediaResponse
		u := c.uploadURL + "?" + url.Values{"command": {"STATUS"}, "media_id": {mediaID}}.Encode()
		if err := c.upload.DoJSON(ctx, http.MethodGet, u, nil, &status); err != nil {
			return fmt.Errorf("STATUS: %w", err)
		}
		info = status.ProcessingInfo
	}
	return nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

type publicMetrics struct {
	RetweetCount    int64 `json:"retweet_count"`
	ReplyCount      int64 `json:"reply_count"`
	LikeCount       int64 `json:"like_count"`
	QuoteCount      int64 `json:"quote_count"`
	BookmarkCount   int64 `json:"bookmark_count"`
	ImpressionCount int64 `json:"impression_count"`
}

// GetAnalytics reads the tweet's public metrics. X exposes lifetime counters
// only, so the window is not used.
func (c *Client) GetAnalytics(ctx context.Context, postID string, _ *model.AnalyticsWindow) (*model.AnalyticsSnapshot, error) {
	if err := c.authenticated(); err != nil {
		return nil, &platform.AnalyticsError{Platform: model.PlatformTwitter, PostID: postID, Err: err}
	}
	if err := c.api.WaitAnalytics(ctx); err != nil {
		return nil, &platform.AnalyticsError{Platform: model.PlatformTwitter, PostID: postID, Err: err}
	}
	var out struct {
		Data *struct {
			ID            string        `json:"id"`
			PublicMetrics publicMetrics `json:"public_metrics"`
		} `json:"data"`
		Errors []struct {
			Detail string `json:"detail"`
		} `json:"errors"`
	}
	u := fmt.Sprintf("%s/2/tweets/%s?tweet.fields=public_metrics", c.apiURL, url.PathEscape(postID))
	if err := c.api.DoJSON(ctx, http.MethodGet, u, nil, &out); err != nil {
		return nil, &platform.AnalyticsError{Platform: model.PlatformTwitter, PostID: postID, Err: err}
	}
	if out.Data == nil {
		msg := "tweet not found"
		if len(out.Errors) > 0 && out.Errors[0].Detail != "" {
			msg = out.Errors[0].Detail
		}
		return nil, &platform.AnalyticsError{Platform: model.PlatformTwitter, PostID: postID, Err: errors.New(msg)}
	}
	m := out.Data.PublicMetrics
	return &model.AnalyticsSnapshot{
		PostID:      postID,
		Platform:    model.PlatformTwitter,
		Impressions: m.ImpressionCount,
		Likes:       m.LikeCount,
		Comments:    m.ReplyCount,
		Shares:      m.RetweetCount,
		Extras: map[string]float64{
			"quotes":    float64(m.QuoteCount),
			"bookmarks": float64(m.BookmarkCount),
		},
		FetchedAt: time.Now().UTC(),
	}, nil
}

// GetTrendingTags returns worldwide trending hashtags, or the static list
// when trends are unavailable. The app bearer token is enough for this read.
func (c *Client) GetTrendingTags(ctx context.Context) []string {
	if c.cfg.AppBearerToken == "" && c.authenticated() != nil {
		return platform.CloneTags(defaultTrendingTags)
	}
	var out []struct {
		Trends []struct {
			Name        string `json:"name"`
			TweetVolume *int64 `json:"tweet_volume"`
		} `json:"trends"`
	}
	if err := c.app.DoJSON(ctx, http.MethodGet, c.apiURL+"/1.1/trends/place.json?id=1", nil, &out); err != nil {
		logger.GetLogger().WithField("platform", model.PlatformTwitter).WithError(err).Warn("trends unavailable, using defaults")
		return platform.CloneTags(defaultTrendingTags)
	}
	var tags []string
	for _, place := range out {
		for _, t := range place.Trends {
			if strings.HasPrefix(t.Name, "#") {
				tags = append(tags, t.Name)
			}
			if len(tags) == len(defaultTrendingTags) {
				return tags
			}
		}
	}
	if len(tags) == 0 {
		return platform.CloneTags(defaultTrendingTags)
	}
	return tags
}

// GetBestPostingTimes returns the static table; audience activity needs a paid tier.
func (c *Client) GetBestPostingTimes(context.Context) []model.PostingTimeRecommendation {
	return platform.CloneRecommendations(defaultBestTimes)
}

func (c *Client) ValidateMedia(ctx context.Context, mediaURL string, kind model.MediaKind) *model.MediaValidation {
	return platform.ValidateRemote(ctx, c.deps.Fetcher, platform.TwitterConstraints, mediaURL, kind)
}

func (c *Client) SchedulePost(ctx context.Context, payload *model.ContentPayload, at time.Time) (*model.ScheduledPost, error) {
	return platform.NewScheduledPost(ctx, c.deps.Queue, model.PlatformTwitter, payload, at)
}

func (c *Client) DeletePost(ctx context.Context, postID string) (bool, error) {
	if err := c.authenticated(); err != nil {
		return false, err
	}
	code, err := c.api.Status(ctx, http.MethodDelete, fmt.Sprintf("%s/2/tweets/%s", c.apiURL, url.PathEscape(postID)))
	if err != nil {
		return false, err
	}
	ok := code >= 200 && code < 300
	if !ok {
		logger.GetLogger().WithField("platform", model.PlatformTwitter).WithField("status", code).WithField("post_id", postID).Warn("delete rejected")
	}
	return ok, nil
}
