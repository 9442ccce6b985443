package model

import (
	"strings"
	"time"
)

// Platform identifies an external social network a creator can distribute to.
type Platform string

const (
	PlatformInstagram Platform = "instagram"
	PlatformTikTok    Platform = "tiktok"
	PlatformTwitter   Platform = "twitter"
	PlatformYouTube   Platform = "youtube"
)

// Platforms lists every supported platform in a stable order.
var Platforms = []Platform{PlatformInstagram, PlatformTikTok, PlatformTwitter, PlatformYouTube}

// ParsePlatform normalizes a user supplied platform name. "x" is accepted as Twitter.
func ParsePlatform(s string) (Platform, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "instagram", "ig":
		return PlatformInstagram, true
	case "tiktok":
		return PlatformTikTok, true
	case "twitter", "x":
		return PlatformTwitter, true
	case "youtube", "yt":
		return PlatformYouTube, true
	}
	return "", false
}

type MediaKind string

const (
	MediaKindImage MediaKind = "IMAGE"
	MediaKindVideo MediaKind = "VIDEO"
)

// ParseMediaKind accepts "image"/"video" in any case. Unknown values default to image.
func ParseMediaKind(s string) MediaKind {
	if strings.EqualFold(strings.TrimSpace(s), string(MediaKindVideo)) {
		return MediaKindVideo
	}
	return MediaKindImage
}

// AdapterConfig carries the credentials of one creator on one platform.
// It is built by the credential store and owned by a single adapter instance.
type AdapterConfig struct {
	ClientID          string   `json:"client_id"`
	ClientSecret      string   `json:"client_secret"`
	RedirectURI       string   `json:"redirect_uri"`
	Scopes            []string `json:"scopes,omitempty"`
	AccessToken       string   `json:"-"`
	RefreshToken      string   `json:"-"`
	AccessTokenSecret string   `json:"-"`
	// AppBearerToken is the app-only token of the registration. It serves reads
	// that need no user context and is never used to act as the creator.
	AppBearerToken string `json:"-"`
	APIKey         string `json:"-"`
	APISecret      string `json:"-"`
}

// TaggedUser is an Instagram user tag placed on an image.
type TaggedUser struct {
	Username string  `json:"username"`
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
}

// ContentPayload is the content a creator distributes. Adapters never mutate it.
type ContentPayload struct {
	CreatorID    string    `json:"creator_id,omitempty"`
	Title        string    `json:"title,omitempty"`
	Caption      string    `json:"caption"`
	Hashtags     []string  `json:"hashtags,omitempty"`
	Mentions     []string  `json:"mentions,omitempty"`
	MediaURLs    []string  `json:"media_urls,omitempty"`
	MediaKind    MediaKind `json:"media_kind,omitempty"`
	ThumbnailURL string    `json:"thumbnail_url,omitempty"`

	// Instagram
	LocationID  string       `json:"location_id,omitempty"`
	TaggedUsers []TaggedUser `json:"tagged_users,omitempty"`

	// Twitter
	PollOptions         []string `json:"poll_options,omitempty"`
	PollDurationMinutes int      `json:"poll_duration_minutes,omitempty"`
	QuoteTweetID        string   `json:"quote_tweet_id,omitempty"`
	ReplyToID           string   `json:"reply_to_id,omitempty"`
	PlaceID             string   `json:"place_id,omitempty"`

	// TikTok / YouTube
	Privacy         string `json:"privacy,omitempty"`
	DuetEnabled     bool   `json:"duet_enabled"`
	StitchEnabled   bool   `json:"stitch_enabled"`
	CommentsEnabled bool   `json:"comments_enabled"`
	MadeForKids     bool   `json:"made_for_kids"`
	CategoryID      string `json:"category_id,omitempty"`
	PlaylistID      string `json:"playlist_id,omitempty"`

	ScheduledAt *time.Time `json:"scheduled_at,omitempty"`
}

// PrimaryMediaURL returns the first media URL or "".
func (p *ContentPayload) PrimaryMediaURL() string {
	if p == nil || len(p.MediaURLs) == 0 {
		return ""
	}
	return p.MediaURLs[0]
}

// PublishResult is produced only when a publish fully succeeded.
type PublishResult struct {
	ID        string `json:"id"`
	Permalink string `json:"permalink"`
}

// TokenSet is the outcome of an OAuth code exchange or refresh.
type TokenSet struct {
	AccessToken  string     `json:"access_token"`
	RefreshToken string     `json:"refresh_token,omitempty"`
	TokenType    string     `json:"token_type,omitempty"`
	Scope        string     `json:"scope,omitempty"`
	ExternalID   string     `json:"external_id,omitempty"`
	ExpiresAt    *time.Time `json:"expires_at,omitempty"`
}

// AnalyticsWindow bounds an analytics query. A nil window means the platform default.
type AnalyticsWindow struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// DefaultAnalyticsWindow is the last 28 days ending today.
func DefaultAnalyticsWindow(now time.Time) AnalyticsWindow {
	end := now.UTC()
	return AnalyticsWindow{Start: end.AddDate(0, 0, -28), End: end}
}

// AnalyticsSnapshot is a normalized, read-only view of a post's metrics.
type AnalyticsSnapshot struct {
	PostID      string             `json:"post_id"`
	Platform    Platform           `json:"platform"`
	Impressions int64              `json:"impressions"`
	Views       int64              `json:"views"`
	Likes       int64              `json:"likes"`
	Comments    int64              `json:"comments"`
	Shares      int64              `json:"shares"`
	Extras      map[string]float64 `json:"extras,omitempty"`
	FetchedAt   time.Time          `json:"fetched_at"`
}

// PostingTimeRecommendation ranks a publish window. DayOfWeek follows time.Weekday (0 = Sunday).
type PostingTimeRecommendation struct {
	Hour      int     `json:"hour"`
	DayOfWeek int     `json:"day_of_week"`
	Score     float64 `json:"score"`
}

type MediaValidation struct {
	Valid  bool     `json:"valid"`
	Errors []string `json:"errors,omitempty"`
}

type ScheduledPostStatus string

const (
	ScheduledPostStatusQueued    ScheduledPostStatus = "queued"
	ScheduledPostStatusPublished ScheduledPostStatus = "published"
	ScheduledPostStatusFailed    ScheduledPostStatus = "failed"
	ScheduledPostStatusCancelled ScheduledPostStatus = "cancelled"
)

// ScheduledPost is handed to the external scheduling queue by SchedulePost.
type ScheduledPost struct {
	ID          string              `json:"id"`
	CreatorID   string              `json:"creator_id"`
	Platform    Platform            `json:"platform"`
	Payload     ContentPayload      `json:"payload"`
	ScheduledAt time.Time           `json:"scheduled_at"`
	Status      ScheduledPostStatus `json:"status"`
	CreatedAt   time.Time           `json:"created_at"`
}
