package tiktok

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/go-querystring/query"

	"github.com/FanzCEO/GirlFanz-sub003/domain/model"
	"github.com/FanzCEO/GirlFanz-sub003/domain/repository"
	"github.com/FanzCEO/GirlFanz-sub003/infrastructure/clients/platform"
	"github.com/FanzCEO/GirlFanz-sub003/infrastructure/logger"
)

const (
	authURL  = "https://www.tiktok.com/v2/auth/authorize/"
	tokenURL = "https://open.tiktokapis.com/v2/oauth/token/"
	apiURL   = "https://open.tiktokapis.com/v2"

	// DefaultChunkSize is the upload chunk size declared to TikTok.
	DefaultChunkSize = 10 << 20
	maxCaptionRunes  = 2200
)

var defaultScopes = []string{"user.info.basic", "video.upload", "video.publish", "video.list"}

var defaultTrendingTags = []string{
	"#fyp", "#foryou", "#foryoupage", "#viral", "#trending",
	"#duet", "#tiktok", "#dance", "#comedy", "#creator",
}

var defaultBestTimes = []model.PostingTimeRecommendation{
	{Hour: 19, DayOfWeek: 2, Score: 0.95},
	{Hour: 9, DayOfWeek: 4, Score: 0.9},
	{Hour: 12, DayOfWeek: 4, Score: 0.88},
	{Hour: 17, DayOfWeek: 5, Score: 0.85},
	{Hour: 6, DayOfWeek: 2, Score: 0.8},
	{Hour: 11, DayOfWeek: 6, Score: 0.75},
	{Hour: 16, DayOfWeek: 0, Score: 0.7},
}

// Client publishes videos through TikTok's resumable upload flow.
type Client struct {
	cfg      model.AdapterConfig
	deps     platform.Deps
	api      *platform.Client
	uploader *platform.Client
	authURL  string
	tokenURL string
	apiURL   string

	chunkSize int64
}

// NewTikTokClient creates an adapter bound to one creator's TikTok credentials
func NewTikTokClient(cfg model.AdapterConfig, deps platform.Deps) repository.IPlatformAdapter {
	return newClient(cfg, deps)
}

func newClient(cfg model.AdapterConfig, deps platform.Deps) *Client {
	deps = deps.Resolve()
	if len(cfg.Scopes) == 0 {
		cfg.Scopes = defaultScopes
	}
	return &Client{
		cfg:       cfg,
		deps:      deps,
		api:       deps.NewAPIClient(platform.BearerToken{Token: cfg.AccessToken}),
		uploader:  deps.NewAPIClient(platform.Anonymous{}),
		authURL:   deps.URL(authURL, "/auth/authorize/"),
		tokenURL:  deps.URL(tokenURL, "/oauth/token/"),
		apiURL:    deps.URL(apiURL, ""),
		chunkSize: DefaultChunkSize,
	}
}

func (c *Client) Platform() model.Platform { return model.PlatformTikTok }

type authQuery struct {
	ClientKey    string `url:"client_key"`
	Scope        string `url:"scope"`
	ResponseType string `url:"response_type"`
	RedirectURI  string `url:"redirect_uri"`
	State        string `url:"state"`
}

func (c *Client) GetAuthorizationURL(state string) (string, error) {
	if err := platform.RequireToken(model.PlatformTikTok, "client key", c.cfg.ClientID); err != nil {
		return "", err
	}
	if err := platform.RequireToken(model.PlatformTikTok, "redirect uri", c.cfg.RedirectURI); err != nil {
		return "", err
	}
	v, err := query.Values(authQuery{
		ClientKey:    c.cfg.ClientID,
		Scope:        strings.Join(c.cfg.Scopes, ","),
		ResponseType: "code",
		RedirectURI:  c.cfg.RedirectURI,
		State:        state,
	})
	if err != nil {
		return "", err
	}
	return c.authURL + "?" + v.Encode(), nil
}

type tokenForm struct {
	ClientKey    string `url:"client_key"`
	ClientSecret string `url:"client_secret"`
	GrantType    string `url:"grant_type"`
	Code         string `url:"code,omitempty"`
	RedirectURI  string `url:"redirect_uri,omitempty"`
	RefreshToken string `url:"refresh_token,omitempty"`
}

type tokenResponse struct {
	AccessToken      string `json:"access_token"`
	RefreshToken     string `json:"refresh_token"`
	ExpiresIn        int64  `json:"expires_in"`
	OpenID           string `json:"open_id"`
	Scope            string `json:"scope"`
	TokenType        string `json:"token_type"`
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

func (c *Client) ExchangeCodeForToken(ctx context.Context, code, _ string) (*model.TokenSet, error) {
	return c.token(ctx, tokenForm{
		GrantType:   "authorization_code",
		Code:        code,
		RedirectURI: c.cfg.RedirectURI,
	})
}

// RefreshAccessToken trades the refresh token for a new access token and
// switches this client to it. It is only called by the caller, never on a 401.
func (c *Client) RefreshAccessToken(ctx context.Context) (*model.TokenSet, error) {
	if err := platform.RequireToken(model.PlatformTikTok, "refresh token", c.cfg.RefreshToken); err != nil {
		return nil, err
	}
	ts, err := c.token(ctx, tokenForm{GrantType: "refresh_token", RefreshToken: c.cfg.RefreshToken})
	if err != nil {
		return nil, err
	}
	c.cfg.AccessToken = ts.AccessToken
	if ts.RefreshToken != "" {
		c.cfg.RefreshToken = ts.RefreshToken
	}
	c.api = c.api.WithAuth(platform.BearerToken{Token: ts.AccessToken})
	return ts, nil
}

func (c *Client) token(ctx context.Context, form tokenForm) (*model.TokenSet, error) {
	if err := platform.RequireToken(model.PlatformTikTok, "client key", c.cfg.ClientID); err != nil {
		return nil, err
	}
	if err := platform.RequireToken(model.PlatformTikTok, "client secret", c.cfg.ClientSecret); err != nil {
		return nil, err
	}
	form.ClientKey = c.cfg.ClientID
	form.ClientSecret = c.cfg.ClientSecret
	values, err := query.Values(form)
	if err != nil {
		return nil, err
	}

	var out tokenResponse
	if err := c.uploader.PostForm(ctx, c.tokenURL, values, &out); err != nil {
		var apiErr *platform.APIError
		if errors.As(err, &apiErr) {
			return nil, &platform.AuthExchangeError{Platform: model.PlatformTikTok, StatusCode: apiErr.StatusCode, Status: apiErr.Status, Body: apiErr.Message}
		}
		return nil, &platform.AuthExchangeError{Platform: model.PlatformTikTok, Status: err.Error()}
	}
	// TikTok reports some exchange failures with a 200 status
	if out.Error != "" || out.AccessToken == "" {
		return nil, &platform.AuthExchangeError{Platform: model.PlatformTikTok, StatusCode: http.StatusOK, Status: out.Error, Body: out.ErrorDescription}
	}

	ts := &model.TokenSet{
		AccessToken:  out.AccessToken,
		RefreshToken: out.RefreshToken,
		TokenType:    out.TokenType,
		Scope:        out.Scope,
		ExternalID:   out.OpenID,
	}
	if out.ExpiresIn > 0 {
		exp := time.Now().UTC().Add(time.Duration(out.ExpiresIn) * time.Second)
		ts.ExpiresAt = &exp
	}
	return ts, nil
}

type postInfo struct {
	Title          string `json:"title"`
	PrivacyLevel   string `json:"privacy_level"`
	DisableDuet    bool   `json:"disable_duet"`
	DisableStitch  bool   `json:"disable_stitch"`
	DisableComment bool   `json:"disable_comment"`
}

type sourceInfo struct {
	Source          string `json:"source"`
	VideoSize       int64  `json:"video_size"`
	ChunkSize       int64  `json:"chunk_size"`
	TotalChunkCount int64  `json:"total_chunk_count"`
}

type initRequest struct {
	PostInfo   postInfo   `json:"post_info"`
	SourceInfo sourceInfo `json:"source_info"`
}

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	LogID   string `json:"log_id"`
}

func (e apiError) err() error {
	if e.Code == "" || e.Code == "ok" {
		return nil
	}
	if e.Message != "" {
		return fmt.Errorf("%s: %s", e.Code, e.Message)
	}
	return errors.New(e.Code)
}

// uploadSession lives for one Publish call and is never resumed.
type uploadSession struct {
	PublishID  string
	UploadURL  string
	VideoSize  int64
	ChunkSize  int64
	ChunkCount int64
}

// newUploadSession splits size into chunkSize pieces. The last chunk absorbs
// the remainder, so there are floor(size/chunkSize) chunks (at least one).
func newUploadSession(size, chunkSize int64) *uploadSession {
	if size <= chunkSize {
		return &uploadSession{VideoSize: size, ChunkSize: size, ChunkCount: 1}
	}
	return &uploadSession{VideoSize: size, ChunkSize: chunkSize, ChunkCount: size / chunkSize}
}

// chunkRange returns the inclusive byte range of chunk i.
func (s *uploadSession) chunkRange(i int64) (start, end int64) {
	start = i * s.ChunkSize
	end = start + s.ChunkSize - 1
	if i == s.ChunkCount-1 {
		end = s.VideoSize - 1
	}
	return start, end
}

// Publish initializes an upload, PUTs every declared chunk and then commits
// the post. Remote state from a failed upload is reported to the compensator.
func (c *Client) Publish(ctx context.Context, payload *model.ContentPayload) (*model.PublishResult, error) {
	if err := platform.RequireToken(model.PlatformTikTok, "access token", c.cfg.AccessToken); err != nil {
		return nil, &platform.PublishError{Platform: model.PlatformTikTok, Step: "authenticate", Err: err}
	}
	if payload == nil || payload.PrimaryMediaURL() == "" {
		return nil, &platform.PublishError{Platform: model.PlatformTikTok, Step: "validate", Err: errors.New("a video url is required")}
	}
	if payload.MediaKind == model.MediaKindImage {
		return nil, &platform.PublishError{Platform: model.PlatformTikTok, Step: "validate", Err: errors.New("only video can be published")}
	}

	media, err := c.deps.Fetcher.Fetch(ctx, payload.PrimaryMediaURL())
	if err != nil {
		return nil, &platform.PublishError{Platform: model.PlatformTikTok, Step: "fetch_media", Err: err}
	}
	if media.Size() == 0 {
		return nil, &platform.PublishError{Platform: model.PlatformTikTok, Step: "fetch_media", Err: errors.New("video is empty")}
	}

	session, err := c.initUpload(ctx, payload, media.Size())
	if err != nil {
		return nil, &platform.PublishError{Platform: model.PlatformTikTok, Step: "init_upload", Err: err}
	}

	if err := c.uploadChunks(ctx, session, media); err != nil {
		return nil, c.dangling(ctx, "upload", session.PublishID, err)
	}

	res, err := c.commit(ctx, session.PublishID)
	if err != nil {
		return nil, c.dangling(ctx, "publish", session.PublishID, err)
	}
	return res, nil
}

func (c *Client) dangling(ctx context.Context, step, publishID string, err error) error {
	c.deps.Compensator.Compensate(ctx, platform.DanglingState{Platform: model.PlatformTikTok, Step: step, RemoteID: publishID, Cause: err})
	return &platform.PublishError{Platform: model.PlatformTikTok, Step: step, RemoteID: publishID, Err: err}
}

// buildCaption is the caption text, one space, then the space separated hashtags.
func buildCaption(p *model.ContentPayload) string {
	text := p.Caption
	if text == "" {
		text = p.Title
	}
	if tags := platform.JoinHashtags(p.Hashtags); tags != "" {
		if text == "" {
			text = tags
		} else {
			text += " " + tags
		}
	}
	return platform.TruncateRunes(text, maxCaptionRunes)
}

func privacyLevel(s string) string {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "public", "public_to_everyone":
		return "PUBLIC_TO_EVERYONE"
	case "friends", "mutual_follow_friends":
		return "MUTUAL_FOLLOW_FRIENDS"
	case "followers", "follower_of_creator":
		return "FOLLOWER_OF_CREATOR"
	case "private", "self_only":
		return "SELF_ONLY"
	}
	return strings.ToUpper(s)
}

func (c *Client) initUpload(ctx context.Context, p *model.ContentPayload, size int64) (*uploadSession, error) {
	session := newUploadSession(size, c.chunkSize)
	req := initRequest{
		PostInfo: postInfo{
			Title:          buildCaption(p),
			PrivacyLevel:   privacyLevel(p.Privacy),
			DisableDuet:    !p.DuetEnabled,
			DisableStitch:  !p.StitchEnabled,
			DisableComment: !p.CommentsEnabled,
		},
		SourceInfo: sourceInfo{
			Source:          "FILE_UPLOAD",
			VideoSize:       session.VideoSize,
			ChunkSize:       session.ChunkSize,
			TotalChunkCount: session.ChunkCount,
		},
	}
	var out struct {
		Data struct {
			PublishID string `json:"publish_id"`
			UploadURL string `json:"upload_url"`
		} `json:"data"`
		Error apiError `json:"error"`
	}
	if err := c.api.DoJSON(ctx, http.MethodPost, c.apiURL+"/video/upload/", req, &out); err != nil {
		return nil, err
	}
	if err := out.Error.err(); err != nil {
		return nil, err
	}
	if out.Data.PublishID == "" || out.Data.UploadURL == "" {
		return nil, errors.New("upload session missing from response")
	}
	session.PublishID = out.Data.PublishID
	session.UploadURL = out.Data.UploadURL
	return session, nil
}

func (c *Client) uploadChunks(ctx context.Context, s *uploadSession, media *platform.Media) error {
	contentType := media.ContentType
	if contentType == "" || !strings.HasPrefix(contentType, "video/") {
		contentType = "video/mp4"
	}
	for i := int64(0); i < s.ChunkCount; i++ {
		start, end := s.chunkRange(i)
		req, err := http.NewRequestWithContext(ctx, http.MethodPut, s.UploadURL, bytes.NewReader(media.Data[start:end+1]))
		if err != nil {
			return err
		}
		req.ContentLength = end - start + 1
		req.Header.Set("Content-Type", contentType)
		req.Header.Set("Content-Range", fmt.Sprintf("bytes %d-%d/%d", start, end, s.VideoSize))
		resp, err := c.uploader.Do(req)
		if err != nil {
			return fmt.Errorf("chunk %d/%d: %w", i+1, s.ChunkCount, err)
		}
		resp.Body.Close()
	}
	return nil
}

func (c *Client) commit(ctx context.Context, publishID string) (*model.PublishResult, error) {
	var out struct {
		Data struct {
			VideoID  string `json:"video_id"`
			ShareURL string `json:"share_url"`
		} `json:"data"`
		Error apiError `json:"error"`
	}
	if err := c.api.DoJSON(ctx, http.MethodPost, c.apiURL+"/video/publish/", map[string]string{"publish_id": publishID}, &out); err != nil {
		return nil, err
	}
	if err := out.Error.err(); err != nil {
		return nil, err
	}
	id := out.Data.VideoID
	if id == "" {
		id = publishID
	}
	permalink := out.Data.ShareURL
	if permalink == "" {
		permalink = "https://www.tiktok.com/video/" + url.PathEscape(id)
	}
	return &model.PublishResult{ID: id, Permalink: permalink}, nil
}

// GetAnalytics reads lifetime counters for one video. The window is not used.
func (c *Client) GetAnalytics(ctx context.Context, postID string, _ *model.AnalyticsWindow) (*model.AnalyticsSnapshot, error) {
	if err := platform.RequireToken(model.PlatformTikTok, "access token", c.cfg.AccessToken); err != nil {
		return nil, &platform.AnalyticsError{Platform: model.PlatformTikTok, PostID: postID, Err: err}
	}
	if err := c.api.WaitAnalytics(ctx); err != nil {
		return nil, &platform.AnalyticsError{Platform: model.PlatformTikTok, PostID: postID, Err: err}
	}
	var out struct {
		Data struct {
			Videos []struct {
				ID               string  `json:"id"`
				ViewCount        int64   `json:"view_count"`
				LikeCount        int64   `json:"like_count"`
				CommentCount     int64   `json:"comment_count"`
				ShareCount       int64   `json:"share_count"`
				CompletionRate   float64 `json:"completion_rate"`
				AverageWatchTime float64 `json:"average_watch_time"`
			} `json:"videos"`
		} `json:"data"`
		Error apiError `json:"error"`
	}
	u := c.apiURL + "/video/data/?video_ids=" + url.QueryEscape(postID)
	if err := c.api.DoJSON(ctx, http.MethodGet, u, nil, &out); err != nil {
		return nil, &platform.AnalyticsError{Platform: model.PlatformTikTok, PostID: postID, Err: err}
	}
	if err := out.Error.err(); err != nil {
		return nil, &platform.AnalyticsError{Platform: model.PlatformTikTok, PostID: postID, Err: err}
	}
	if len(out.Data.Videos) == 0 {
		return nil, &platform.AnalyticsError{Platform: model.PlatformTikTok, PostID: postID, Err: errors.New("video not found")}
	}
	v := out.Data.Videos[0]
	return &model.AnalyticsSnapshot{
		PostID:   postID,
		Platform: model.PlatformTikTok,
		Views:    v.ViewCount,
		Likes:    v.LikeCount,
		Comments: v.CommentCount,
		Shares:   v.ShareCount,
		Extras: map[string]float64{
			"completion_rate":    v.CompletionRate,
			"average_watch_time": v.AverageWatchTime,
		},
		FetchedAt: time.Now().UTC(),
	}, nil
}

// GetTrendingTags returns the static table; TikTok has no third party discovery endpoint.
func (c *Client) GetTrendingTags(context.Context) []string {
	return platform.CloneTags(defaultTrendingTags)
}

// GetBestPostingTimes returns the static table; TikTok has no third party audience insights.
func (c *Client) GetBestPostingTimes(context.Context) []model.PostingTimeRecommendation {
	return platform.CloneRecommendations(defaultBestTimes)
}

func (c *Client) ValidateMedia(ctx context.Context, mediaURL string, kind model.MediaKind) *model.MediaValidation {
	return platform.ValidateRemote(ctx, c.deps.Fetcher, platform.TikTokConstraints, mediaURL, kind)
}

func (c *Client) SchedulePost(ctx context.Context, payload *model.ContentPayload, at time.Time) (*model.ScheduledPost, error) {
	return platform.NewScheduledPost(ctx, c.deps.Queue, model.PlatformTikTok, payload, at)
}

func (c *Client) DeletePost(ctx context.Context, postID string) (bool, error) {
	if err := platform.RequireToken(model.PlatformTikTok, "access token", c.cfg.AccessToken); err != nil {
		return false, err
	}
	code, err := c.api.Status(ctx, http.MethodDelete, fmt.Sprintf("%s/video/%s/", c.apiURL, url.PathEscape(postID)))
	if err != nil {
		return false, err
	}
	ok := code >= 200 && code < 300
	if !ok {
		logger.GetLogger().WithField("platform", model.PlatformTikTok).WithField("status", code).WithField("post_id", postID).Warn("delete rejected")
	}
	return ok, nil
}
