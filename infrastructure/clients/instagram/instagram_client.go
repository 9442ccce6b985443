package instagram

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
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
	authURL  = "https://api.instagram.com/oauth/authorize"
	tokenURL = "https://api.instagram.com/oauth/access_token"
	graphURL = "https://graph.instagram.com"
)

var defaultScopes = []string{"user_profile", "user_media"}

var defaultTrendingTags = []string{
	"#instagood", "#photooftheday", "#reels", "#explore", "#love",
	"#fashion", "#beautiful", "#style", "#fitness", "#selfie",
}

var defaultBestTimes = []model.PostingTimeRecommendation{
	{Hour: 11, DayOfWeek: 3, Score: 0.95},
	{Hour: 13, DayOfWeek: 2, Score: 0.9},
	{Hour: 11, DayOfWeek: 5, Score: 0.88},
	{Hour: 19, DayOfWeek: 4, Score: 0.85},
	{Hour: 10, DayOfWeek: 1, Score: 0.8},
	{Hour: 9, DayOfWeek: 6, Score: 0.7},
	{Hour: 10, DayOfWeek: 0, Score: 0.65},
}

// Client publishes to Instagram through the Graph API container flow.
type Client struct {
	cfg      model.AdapterConfig
	deps     platform.Deps
	oauth    *oauth2.Config
	api      *platform.Client
	graphURL string

	statusPollInterval time.Duration
	statusPollAttempts int
}

// NewInstagramClient creates an adapter bound to one creator's Instagram credentials
func NewInstagramClient(cfg model.AdapterConfig, deps platform.Deps) repository.IPlatformAdapter {
	return newClient(cfg, deps)
}

func newClient(cfg model.AdapterConfig, deps platform.Deps) *Client {
	deps = deps.Resolve()
	scopes := cfg.Scopes
	if len(scopes) == 0 {
		scopes = defaultScopes
	}
	cfg.Scopes = scopes
	return &Client{
		cfg:  cfg,
		deps: deps,
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURI,
			Endpoint: oauth2.Endpoint{
				AuthURL:   deps.URL(authURL, "/oauth/authorize"),
				TokenURL:  deps.URL(tokenURL, "/oauth/access_token"),
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
		api:                deps.NewAPIClient(platform.QueryToken{Param: "access_token", Token: cfg.AccessToken}),
		graphURL:           deps.URL(graphURL, ""),
		statusPollInterval: 3 * time.Second,
		statusPollAttempts: 20,
	}
}

func (c *Client) Platform() model.Platform { return model.PlatformInstagram }

func (c *Client) GetAuthorizationURL(state string) (string, error) {
	if err := platform.RequireToken(model.PlatformInstagram, "client id", c.cfg.ClientID); err != nil {
		return "", err
	}
	if err := platform.RequireToken(model.PlatformInstagram, "redirect uri", c.cfg.RedirectURI); err != nil {
		return "", err
	}
	// Instagram expects comma separated scopes
	return c.oauth.AuthCodeURL(state,
		oauth2.SetAuthURLParam("scope", strings.Join(c.cfg.Scopes, ",")),
		oauth2.SetAuthURLParam("response_type", "code"),
	), nil
}

func (c *Client) ExchangeCodeForToken(ctx context.Context, code, _ string) (*model.TokenSet, error) {
	if err := platform.RequireToken(model.PlatformInstagram, "client secret", c.cfg.ClientSecret); err != nil {
		return nil, err
	}
	tok, err := c.oauth.Exchange(c.deps.OAuthContext(ctx), code)
	if err != nil {
		return nil, platform.AuthError(model.PlatformInstagram, err)
	}
	return platform.TokenSetFromOAuth(tok, "user_id"), nil
}

type containerForm struct {
	Caption        string `url:"caption,omitempty"`
	ImageURL       string `url:"image_url,omitempty"`
	VideoURL       string `url:"video_url,omitempty"`
	MediaType      string `url:"media_type,omitempty"`
	LocationID     string `url:"location_id,omitempty"`
	UserTags       string `url:"user_tags,omitempty"`
	IsCarouselItem bool   `url:"is_carousel_item,omitempty"`
	Children       string `url:"children,omitempty"`
}

type idResponse struct {
	ID string `json:"id"`
}

// Publish creates a media container and publishes it. A container that was
// created but could not be published is left on Instagram and reported to the
// compensator; nothing deletes it.
func (c *Client) Publish(ctx context.Context, payload *model.ContentPayload) (*model.PublishResult, error) {
	if err := platform.RequireToken(model.PlatformInstagram, "access token", c.cfg.AccessToken); err != nil {
		return nil, &platform.PublishError{Platform: model.PlatformInstagram, Step: "authenticate", Err: err}
	}
	if payload == nil || len(payload.MediaURLs) == 0 {
		return nil, &platform.PublishError{Platform: model.PlatformInstagram, Step: "validate", Err: errors.New("at least one media url is required")}
	}

	containerID, err := c.createContainer(ctx, payload)
	if err != nil {
		return nil, &platform.PublishError{Platform: model.PlatformInstagram, Step: "create_container", Err: err}
	}

	mediaID, err := c.publishContainer(ctx, containerID)
	if err != nil {
		c.deps.Compensator.Compensate(ctx, platform.DanglingState{
			Platform: model.PlatformInstagram,
			Step:     "publish_container",
			RemoteID: containerID,
			Cause:    err,
		})
		return nil, &platform.PublishError{Platform: model.PlatformInstagram, Step: "publish_container", RemoteID: containerID, Err: err}
	}

	permalink, err := c.fetchPermalink(ctx, mediaID)
	if err != nil {
		return nil, &platform.PublishError{Platform: model.PlatformInstagram, Step: "fetch_permalink", RemoteID: mediaID, Err: err}
	}
	return &model.PublishResult{ID: mediaID, Permalink: permalink}, nil
}

// buildCaption is the caption text, a blank line, then the space separated hashtags.
func buildCaption(p *model.ContentPayload) string {
	tags := platform.JoinHashtags(p.Hashtags)
	switch {
	case tags == "":
		return p.Caption
	case p.Caption == "":
		return tags
	}
	return p.Caption + "\n\n" + tags
}

func (c *Client) createContainer(ctx context.Context, p *model.ContentPayload) (string, error) {
	if len(p.MediaURLs) > 1 {
		return c.createCarousel(ctx, p)
	}
	form := containerForm{Caption: buildCaption(p), LocationID: p.LocationID}
	if p.MediaKind == model.MediaKindVideo {
		form.VideoURL = p.MediaURLs[0]
		form.MediaType = "REELS"
	} else {
		form.ImageURL = p.MediaURLs[0]
		tags, err := userTags(p.TaggedUsers)
		if err != nil {
			return "", err
		}
		form.UserTags = tags
	}
	id, err := c.postContainer(ctx, form)
	if err != nil {
		return "", err
	}
	if p.MediaKind == model.MediaKindVideo {
		if err := c.waitContainerReady(ctx, id); err != nil {
			return "", err
		}
	}
	return id, nil
}

func (c *Client) createCarousel(ctx context.Context, p *model.ContentPayload) (string, error) {
	children := make([]string, 0, len(p.MediaURLs))
	for _, u := range p.MediaURLs {
		form := containerForm{IsCarouselItem: true}
		if p.MediaKind == model.MediaKindVideo {
			form.VideoURL = u
			form.MediaType = "VIDEO"
		} else {
			form.ImageURL = u
		}
		id, err := c.postContainer(ctx, form)
		if err != nil {
			return "", fmt.Errorf("carousel item %s: %w", u, err)
		}
		if p.MediaKind == model.MediaKindVideo {
			if err := c.waitContainerReady(ctx, id); err != nil {
				return "", err
			}
		}
		children = append(children, id)
	}
	return c.postContainer(ctx, containerForm{
		Caption:    buildCaption(p),
		MediaType:  "CAROUSEL",
		LocationID: p.LocationID,
		Children:   strings.Join(children, ","),
	})
}

func (c *Client) postContainer(ctx context.Context, form containerForm) (string, error) {
	values, err := query.Values(form)
	if err != nil {
		return "", err
	}
	var out idResponse
	if err := c.api.PostForm(ctx, c.graphURL+"/me/media", values, &out); err != nil {
		return "", err
	}
	if out.ID == "" {
		return "", errors.New("container id missing from response")
	}
	return out.ID, nil
}

// waitContainerReady polls video containers until Instagram finishes processing them.
func (c *Client) waitContainerReady(ctx context.Context, id string) error {
	for i := 0; i < c.statusPollAttempts; i++ {
		var st struct {
			StatusCode string `json:"status_code"`
			Status     string `json:"status"`
		}
		u := fmt.Sprintf("%s/%s?fields=status_code,status", c.graphURL, url.PathEscape(id))
		if err := c.api.DoJSON(ctx, http.MethodGet, u, nil, &st); err != nil {
			return err
		}
		switch st.StatusCode {
		case "FINISHED", "PUBLISHED":
			return nil
		case "ERROR", "EXPIRED":
			return fmt.Errorf("container %s processing failed: %s", id, st.Status)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.statusPollInterval):
		}
	}
	return fmt.Errorf("container %s not ready after %d checks", id, c.statusPollAttempts)
}

func (c *Client) publishContainer(ctx context.Context, containerID string) (string, error) {
	var out idResponse
	if err := c.api.PostForm(ctx, c.graphURL+"/me/media_publish", url.Values{"creation_id": {containerID}}, &out); err != nil {
		return "", err
	}
	if out.ID == "" {
		return "", errors.New("media id missing from response")
	}
	return out.ID, nil
}

func (c *Client) fetchPermalink(ctx context.Context, mediaID string) (string, error) {
	var out struct {
		Permalink string `json:"permalink"`
	}
	u := fmt.Sprintf("%s/%s?fields=permalink", c.graphURL, url.PathEscape(mediaID))
	if err := c.api.DoJSON(ctx, http.MethodGet, u, nil, &out); err != nil {
		return "", err
	}
	return out.Permalink, nil
}

func userTags(users []model.TaggedUser) (string, error) {
	if len(users) == 0 {
		return "", nil
	}
	b, err := json.Marshal(users)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

type insightValue struct {
	Value   json.RawMessage `json:"value"`
	EndTime string          `json:"end_time"`
}

type insightsResponse struct {
	Data []struct {
		Name       string         `json:"name"`
		Values     []insightValue `json:"values"`
		TotalValue *struct {
			Value int64 `json:"value"`
		} `json:"total_value"`
	} `json:"data"`
}

// GetAnalytics reads lifetime media insights. The window is not used: media
// insights on Instagram are lifetime only.
func (c *Client) GetAnalytics(ctx context.Context, postID string, _ *model.AnalyticsWindow) (*model.AnalyticsSnapshot, error) {
	if err := platform.RequireToken(model.PlatformInstagram, "access token", c.cfg.AccessToken); err != nil {
		return nil, &platform.AnalyticsError{Platform: model.PlatformInstagram, PostID: postID, Err: err}
	}
	if err := c.api.WaitAnalytics(ctx); err != nil {
		return nil, &platform.AnalyticsError{Platform: model.PlatformInstagram, PostID: postID, Err: err}
	}
	u := fmt.Sprintf("%s/%s/insights?metric=impressions,reach,likes,comments,shares,saved", c.graphURL, url.PathEscape(postID))
	var out insightsResponse
	if err := c.api.DoJSON(ctx, http.MethodGet, u, nil, &out); err != nil {
		return nil, &platform.AnalyticsError{Platform: model.PlatformInstagram, PostID: postID, Err: err}
	}

	snap := &model.AnalyticsSnapshot{
		PostID:    postID,
		Platform:  model.PlatformInstagram,
		Extras:    map[string]float64{"reach": 0, "saved": 0},
		FetchedAt: time.Now().UTC(),
	}
	for _, m := range out.Data {
		var v int64
		if m.TotalValue != nil {
			v = m.TotalValue.Value
		} else if len(m.Values) > 0 {
			_ = json.Unmarshal(m.Values[0].Value, &v)
		}
		switch m.Name {
		case "impressions":
			snap.Impressions = v
		case "likes":
			snap.Likes = v
		case "comments":
			snap.Comments = v
		case "shares":
			snap.Shares = v
		case "reach", "saved":
			snap.Extras[m.Name] = float64(v)
		}
	}
	return snap, nil
}

// GetTrendingTags ranks the hashtags of the creator's recent captions.
func (c *Client) GetTrendingTags(ctx context.Context) []string {
	if c.cfg.AccessToken == "" {
		return platform.CloneTags(defaultTrendingTags)
	}
	var out struct {
		Data []struct {
			Caption string `json:"caption"`
		} `json:"data"`
	}
	if err := c.api.DoJSON(ctx, http.MethodGet, c.graphURL+"/me/media?fields=caption&limit=50", nil, &out); err != nil {
		logger.GetLogger().WithField("platform", model.PlatformInstagram).WithError(err).Warn("trending tags unavailable, using defaults")
		return platform.CloneTags(defaultTrendingTags)
	}
	captions := make([]string, 0, len(out.Data))
	for _, m := range out.Data {
		captions = append(captions, m.Caption)
	}
	tags := platform.RankTags(captions, 10)
	if len(tags) == 0 {
		return platform.CloneTags(defaultTrendingTags)
	}
	return tags
}

// GetBestPostingTimes ranks hours by the creator's online follower counts.
func (c *Client) GetBestPostingTimes(ctx context.Context) []model.PostingTimeRecommendation {
	if c.cfg.AccessToken == "" {
		return platform.CloneRecommendations(defaultBestTimes)
	}
	var out insightsResponse
	if err := c.api.DoJSON(ctx, http.MethodGet, c.graphURL+"/me/insights?metric=online_followers&period=lifetime", nil, &out); err != nil {
		logger.GetLogger().WithField("platform", model.PlatformInstagram).WithError(err).Warn("follower activity unavailable, using default posting times")
		return platform.CloneRecommendations(defaultBestTimes)
	}
	recs := parseOnlineFollowers(out, 5)
	if len(recs) == 0 {
		return platform.CloneRecommendations(defaultBestTimes)
	}
	return recs
}

// parseOnlineFollowers turns online_followers insight values (one hour->count
// map per day) into the top n (day, hour) slots scored relative to the busiest.
func parseOnlineFollowers(out insightsResponse, n int) []model.PostingTimeRecommendation {
	type slot struct{ day, hour int }
	totals := map[slot]float64{}
	for _, m := range out.Data {
		if m.Name != "online_followers" {
			continue
		}
		for _, v := range m.Values {
			end, err := time.Parse("2006-01-02T15:04:05-0700", v.EndTime)
			if err != nil {
				continue
			}
			// end_time marks the end of the day the counts belong to
			day := int(end.Add(-24 * time.Hour).Weekday())
			var hours map[string]float64
			if json.Unmarshal(v.Value, &hours) != nil {
				continue
			}
			for h, count := range hours {
				var hour int
				if _, err := fmt.Sscanf(h, "%d", &hour); err != nil || hour < 0 || hour > 23 {
					continue
				}
				totals[slot{day, hour}] += count
			}
		}
	}
	var peak float64
	for _, t := range totals {
		if t > peak {
			peak = t
		}
	}
	if peak == 0 {
		return nil
	}
	recs := make([]model.PostingTimeRecommendation, 0, len(totals))
	for s, t := range totals {
		recs = append(recs, model.PostingTimeRecommendation{Hour: s.hour, DayOfWeek: s.day, Score: t / peak})
	}
	platform.SortRecommendations(recs)
	if len(recs) > n {
		recs = recs[:n]
	}
	return recs
}

func (c *Client) ValidateMedia(ctx context.Context, mediaURL string, kind model.MediaKind) *model.MediaValidation {
	return platform.ValidateRemote(ctx, c.deps.Fetcher, platform.InstagramConstraints, mediaURL, kind)
}

func (c *Client) SchedulePost(ctx context.Context, payload *model.ContentPayload, at time.Time) (*model.ScheduledPost, error) {
	return platform.NewScheduledPost(ctx, c.deps.Queue, model.PlatformInstagram, payload, at)
}

func (c *Client) DeletePost(ctx context.Context, postID string) (bool, error) {
	if err := platform.RequireToken(model.PlatformInstagram, "access token", c.cfg.AccessToken); err != nil {
		return false, err
	}
	code, err := c.api.Status(ctx, http.MethodDelete, fmt.Sprintf("%s/%s", c.graphURL, url.PathEscape(postID)))
	if err != nil {
		return false, err
	}
	return code >= 200 && code < 300, nil
}
