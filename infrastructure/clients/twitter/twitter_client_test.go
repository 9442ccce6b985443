package twitter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/FanzCEO/GirlFanz-sub003/domain/model"
	"github.com/FanzCEO/GirlFanz-sub003/infrastructure/clients/platform"
)

func TestOAuth1ClientSignsFormRequests(t *testing.T) {
	var header, received string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header = r.Header.Get("Authorization")
		raw, err := io.ReadAll(r.Body)
		assert.NoError(t, err)
		received = string(raw)
	}))
	defer srv.Close()

	cfg := model.AdapterConfig{
		APIKey:            "xvz1evFS4wEEPTGEFPHBog",
		APISecret:         "kAcSOqF21Fu85e7zjz7ZN2U4ZRhfV3WpwPAoE3Z7kBw",
		AccessToken:       "370773112-GmHxMAgYyLbNEtIKZeRNFsMKPR9EyMZeS9weJAEb",
		AccessTokenSecret: "LswwdoUaIvS8ltyTt5jkRh4J50vUPVVHtR2YPi5kE",
	}
	hc := oauth1HTTPClient(cfg, srv.Client())
	require.NotNil(t, hc)

	body := url.Values{"status": {"Hello Ladies + Gentlemen, a signed OAuth request!"}}.Encode()
	resp, err := hc.Post(srv.URL+"/1.1/statuses/update.json?include_entities=true", "application/x-www-form-urlencoded", strings.NewReader(body))
	require.NoError(t, err)
	resp.Body.Close()

	assert.True(t, strings.HasPrefix(header, "OAuth "), header)
	assert.Contains(t, header, `oauth_consumer_key="xvz1evFS4wEEPTGEFPHBog"`)
	assert.Contains(t, header, `oauth_token="370773112-GmHxMAgYyLbNEtIKZeRNFsMKPR9EyMZeS9weJAEb"`)
	assert.Contains(t, header, `oauth_signature_method="HMAC-SHA1"`)
	assert.Contains(t, header, `oauth_signature="`)
	assert.Contains(t, header, `oauth_nonce="`)
	assert.Contains(t, header, `oauth_timestamp="`)
	assert.Equal(t, body, received, "the body reaches the server after signing")
}

func TestOAuth1ClientFallsBackToClientCredentials(t *testing.T) {
	var header string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header = r.Header.Get("Authorization")
	}))
	defer srv.Close()

	hc := oauth1HTTPClient(model.AdapterConfig{ClientID: "cid", ClientSecret: "cs", AccessToken: "tok", AccessTokenSecret: "ts"}, srv.Client())
	require.NotNil(t, hc)
	resp, err := hc.Get(srv.URL + "/2/users/me")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Contains(t, header, `oauth_consumer_key="cid"`)
}

func TestOAuth1ClientRequiresAllCredentials(t *testing.T) {
	assert.Nil(t, oauth1HTTPClient(model.AdapterConfig{APIKey: "ck", APISecret: "cs", AccessToken: "tok"}, nil))
	assert.Nil(t, oauth1HTTPClient(model.AdapterConfig{AccessToken: "tok", AccessTokenSecret: "ts"}, nil))
}

func TestBuildTweetText(t *testing.T) {
	got := buildTweetText(&model.ContentPayload{
		Caption:  "New drop",
		Mentions: []string{"alice", "@bob"},
		Hashtags: []string{"#Art", "design"},
	})
	assert.Equal(t, "@alice @bob New drop\n\n#Art #design", got)

	assert.Equal(t, "#only", buildTweetText(&model.ContentPayload{Hashtags: []string{"only"}}))
}

func TestBuildTweetTextTruncatesTo280(t *testing.T) {
	long := buildTweetText(&model.ContentPayload{Caption: strings.Repeat("A", 277), Hashtags: []string{"z"}})
	assert.Equal(t, MaxTweetRunes, utf8.RuneCountInString(long))
	assert.True(t, strings.HasSuffix(long, "..."))

	// 275 + "\n\n#z" is 279 runes and fits
	fits := buildTweetText(&model.ContentPayload{Caption: strings.Repeat("A", 275), Hashtags: []string{"z"}})
	assert.Equal(t, 279, utf8.RuneCountInString(fits))
	assert.True(t, strings.HasSuffix(fits, "\n\n#z"))
}

func TestNewTweetRequestOptionalFields(t *testing.T) {
	req := newTweetRequest(&model.ContentPayload{
		Caption:      "vote",
		PollOptions:  []string{"yes", "no"},
		QuoteTweetID: "q1",
		ReplyToID:    "r1",
		PlaceID:      "pl",
	}, nil)
	b, err := json.Marshal(req)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"text":"vote",
		"poll":{"options":["yes","no"],"duration_minutes":1440},
		"quote_tweet_id":"q1",
		"reply":{"in_reply_to_tweet_id":"r1"},
		"geo":{"place_id":"pl"}
	}`, string(b))

	withMedia := newTweetRequest(&model.ContentPayload{Caption: "pic", PollOptions: []string{"a", "b"}}, []string{"m1"})
	assert.Nil(t, withMedia.Poll)
	assert.Equal(t, []string{"m1"}, withMedia.Media.MediaIDs)
}

type fakeFetcher struct {
	data        []byte
	contentType string
}

func (f *fakeFetcher) Fetch(context.Context, string) (*platform.Media, error) {
	return &platform.Media{Data: f.data, ContentType: f.contentType}, nil
}

func (f *fakeFetcher) Probe(context.Context, string) (*platform.MediaInfo, error) {
	return &platform.MediaInfo{Size: int64(len(f.data)), ContentType: f.contentType}, nil
}

type fakeX struct {
	mu           sync.Mutex
	hits         int64
	commands     []string
	uploadAuth   []string
	tweetAuth    string
	tweet        tweetRequest
	appended     []byte
	processing   []string
	tweetStatus  int
	tweetFailure string
}

func (f *fakeX) handler(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&f.hits, 1)
		f.mu.Lock()
		defer f.mu.Unlock()
		switch r.URL.Path {
		case "/1.1/media/upload.json":
			if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/") {
				assert.NoError(t, r.ParseMultipartForm(1<<20))
			} else {
				assert.NoError(t, r.ParseForm())
			}
			cmd := r.FormValue("command")
			f.commands = append(f.commands, cmd)
			f.uploadAuth = append(f.uploadAuth, r.Header.Get("Authorization"))
			switch cmd {
			case "INIT":
				fmt.Fprint(w, `{"media_id_string":"m_1"}`)
			case "APPEND":
				assert.Equal(t, "m_1", r.FormValue("media_id"))
				file, _, err := r.FormFile("media")
				if assert.NoError(t, err) {
					b, _ := io.ReadAll(file)
					f.appended = append(f.appended, b...)
				}
				w.WriteHeader(http.StatusNoContent)
			case "FINALIZE", "STATUS":
				if len(f.processing) == 0 {
					fmt.Fprint(w, `{"media_id_string":"m_1"}`)
					return
				}
				state := f.processing[0]
				f.processing = f.processing[1:]
				if state == "failed" {
					fmt.Fprint(w, `{"media_id_string":"m_1","processing_info":{"state":"failed","error":{"code":1,"name":"InvalidMedia","message":"Unsupported video codec"}}}`)
					return
				}
				fmt.Fprintf(w, `{"media_id_string":"m_1","processing_info":{"state":%q,"check_after_secs":2}}`, state)
			default:
				t.Errorf("unexpected upload command %q", cmd)
			}
		case "/2/tweets":
			f.tweetAuth = r.Header.Get("Authorization")
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&f.tweet))
			if f.tweetStatus != 0 {
				w.WriteHeader(f.tweetStatus)
				fmt.Fprint(w, f.tweetFailure)
				return
			}
			w.WriteHeader(http.StatusCreated)
			fmt.Fprint(w, `{"data":{"id":"1500","text":"ok"}}`)
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}
}

var userContext = model.AdapterConfig{
	APIKey:            "ck",
	APISecret:         "cs",
	AccessToken:       "at",
	AccessTokenSecret: "ats",
	AppBearerToken:    "app",
}

func newFakeClient(t *testing.T, fake *fakeX, cfg model.AdapterConfig, fetcher platform.MediaFetcher) (*Client, *[]time.Duration) {
	srv := httptest.NewServer(fake.handler(t))
	t.Cleanup(srv.Close)
	c := newClient(cfg, platform.Deps{HTTPClient: srv.Client(), BaseURL: srv.URL, Fetcher: fetcher})
	var waits []time.Duration
	c.sleep = func(_ context.Context, d time.Duration) error {
		waits = append(waits, d)
		return nil
	}
	return c, &waits
}

func TestAuthenticatedCallsWithoutTokenMakeNoRequests(t *testing.T) {
	fake := &fakeX{}
	c, _ := newFakeClient(t, fake, model.AdapterConfig{ClientID: "cid"}, &fakeFetcher{})
	ctx := context.Background()
	var cfgErr *platform.ConfigurationError

	_, err := c.Publish(ctx, &model.ContentPayload{Caption: "hi"})
	assert.True(t, errors.As(err, &cfgErr))
	var pubErr *platform.PublishError
	assert.True(t, errors.As(err, &pubErr))
	_, err = c.GetAnalytics(ctx, "1", nil)
	assert.True(t, errors.As(err, &cfgErr))
	_, err = c.DeletePost(ctx, "1")
	assert.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, defaultTrendingTags, c.GetTrendingTags(ctx))

	assert.Equal(t, int64(0), atomic.LoadInt64(&fake.hits))
}

func TestCreatorTokenIsRequiredEvenWithAppBearer(t *testing.T) {
	fake := &fakeX{}
	c, _ := newFakeClient(t, fake, model.AdapterConfig{ClientID: "cid", AppBearerToken: "APP-BEARER"}, &fakeFetcher{data: []byte("jpeg")})
	ctx := context.Background()
	var cfgErr *platform.ConfigurationError

	_, err := c.Publish(ctx, &model.ContentPayload{Caption: "hi", MediaURLs: []string{"https://cdn/a.jpg"}})
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, "access token", cfgErr.Missing)
	_, err = c.GetAnalytics(ctx, "1", nil)
	assert.True(t, errors.As(err, &cfgErr))
	_, err = c.DeletePost(ctx, "1")
	assert.True(t, errors.As(err, &cfgErr))

	assert.Equal(t, int64(0), atomic.LoadInt64(&fake.hits))
}

func TestCredentialSelection(t *testing.T) {
	var seen []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = append(seen, r.Header.Get("Authorization"))
	}))
	defer srv.Close()
	ctx := context.Background()
	deps := platform.Deps{HTTPClient: srv.Client(), BaseURL: srv.URL}

	signed := newClient(userContext, deps)
	require.NoError(t, signed.api.DoJSON(ctx, http.MethodGet, srv.URL+"/2/users/me", nil, nil))
	require.NoError(t, signed.upload.DoJSON(ctx, http.MethodGet, srv.URL+"/1.1/media/upload.json", nil, nil))
	require.NoError(t, signed.app.DoJSON(ctx, http.MethodGet, srv.URL+"/1.1/trends/place.json", nil, nil))
	assert.True(t, strings.HasPrefix(seen[0], "OAuth "), seen[0])
	assert.True(t, strings.HasPrefix(seen[1], "OAuth "), seen[1])
	assert.Equal(t, "Bearer app", seen[2])

	userToken := newClient(model.AdapterConfig{AccessToken: "CREATOR-USER-TOKEN", AppBearerToken: "APP-BEARER"}, deps)
	require.NoError(t, userToken.api.DoJSON(ctx, http.MethodGet, srv.URL+"/2/users/me", nil, nil))
	require.NoError(t, userToken.upload.DoJSON(ctx, http.MethodGet, srv.URL+"/1.1/media/upload.json", nil, nil))
	assert.Equal(t, "Bearer CREATOR-USER-TOKEN", seen[3])
	assert.Equal(t, "Bearer CREATOR-USER-TOKEN", seen[4])

	appOnly := newClient(model.AdapterConfig{AppBearerToken: "APP-BEARER"}, deps)
	err := appOnly.api.DoJSON(ctx, http.MethodGet, srv.URL+"/2/users/me", nil, nil)
	assert.ErrorIs(t, err, platform.ErrNoAuthentication)

	noConsumer := newClient(model.AdapterConfig{AccessToken: "tok", AccessTokenSecret: "ts"}, deps)
	err = noConsumer.upload.DoJSON(ctx, http.MethodGet, srv.URL+"/1.1/media/upload.json", nil, nil)
	assert.ErrorIs(t, err, platform.ErrNoAuthentication)
	assert.Len(t, seen, 5)
}

func TestPublishUsesCreatorUserToken(t *testing.T) {
	fake := &fakeX{}
	c, _ := newFakeClient(t, fake, model.AdapterConfig{AccessToken: "CREATOR-USER-TOKEN", AppBearerToken: "APP-BEARER"}, &fakeFetcher{})

	res, err := c.Publish(context.Background(), &model.ContentPayload{Caption: "hello"})
	require.NoError(t, err)
	assert.Equal(t, "1500", res.ID)
	assert.Equal(t, "Bearer CREATOR-USER-TOKEN", fake.tweetAuth)
}

func TestPublishRejectsTooManyAttachments(t *testing.T) {
	tests := []struct {
		name    string
		payload *model.ContentPayload
		want    string
	}{
		{
			name:    "two videos",
			payload: &model.ContentPayload{MediaURLs: []string{"https://cdn/a.mp4", "https://cdn/b.mp4"}, MediaKind: model.MediaKindVideo},
			want:    "one video, got 2",
		},
		{
			name: "five images",
			payload: &model.ContentPayload{MediaURLs: []string{
				"https://cdn/1.jpg", "https://cdn/2.jpg", "https://cdn/3.jpg", "https://cdn/4.jpg", "https://cdn/5.jpg",
			}, MediaKind: model.MediaKindImage},
			want: "at most 4 images, got 5",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := &fakeX{}
			c, _ := newFakeClient(t, fake, userContext, &fakeFetcher{data: []byte("x")})

			_, err := c.Publish(context.Background(), tt.payload)
			var pubErr *platform.PublishError
			require.True(t, errors.As(err, &pubErr))
			assert.Equal(t, "validate", pubErr.Step)
			assert.Contains(t, err.Error(), tt.want)
			assert.Equal(t, int64(0), atomic.LoadInt64(&fake.hits))
		})
	}

	fake := &fakeX{}
	c, _ := newFakeClient(t, fake, userContext, &fakeFetcher{data: []byte("x"), contentType: "image/jpeg"})
	_, err := c.Publish(context.Background(), &model.ContentPayload{MediaURLs: []string{
		"https://cdn/1.jpg", "https://cdn/2.jpg", "https://cdn/3.jpg", "https://cdn/4.jpg",
	}})
	require.NoError(t, err)
	assert.Len(t, fake.tweet.Media.MediaIDs, 4)
}

func TestPublishWithImage(t *testing.T) {
	fake := &fakeX{}
	img := []byte("jpeg-bytes")
	c, waits := newFakeClient(t, fake, userContext, &fakeFetcher{data: img, contentType: "image/jpeg"})

	res, err := c.Publish(context.Background(), &model.ContentPayload{
		Caption:   "Look",
		Hashtags:  []string{"art"},
		MediaURLs: []string{"https://cdn/a.jpg"},
		MediaKind: model.MediaKindImage,
	})
	require.NoError(t, err)
	assert.Equal(t, &model.PublishResult{ID: "1500", Permalink: "https://x.com/i/status/1500"}, res)

	assert.Equal(t, []string{"INIT", "APPEND", "FINALIZE"}, fake.commands)
	for _, auth := range fake.uploadAuth {
		assert.True(t, strings.HasPrefix(auth, "OAuth "), auth)
	}
	assert.Equal(t, img, fake.appended)
	assert.Empty(t, *waits)

	assert.True(t, strings.HasPrefix(fake.tweetAuth, "OAuth "), fake.tweetAuth)
	assert.Equal(t, "Look\n\n#art", fake.tweet.Text)
	require.NotNil(t, fake.tweet.Media)
	assert.Equal(t, []string{"m_1"}, fake.tweet.Media.MediaIDs)
}

func TestPublishVideoWaitsForProcessing(t *testing.T) {
	fake := &fakeX{processing: []string{"pending", "in_progress", "succeeded"}}
	c, waits := newFakeClient(t, fake, userContext, &fakeFetcher{data: []byte("mp4"), contentType: "video/mp4"})

	_, err := c.Publish(context.Background(), &model.ContentPayload{
		Caption:   "clip",
		MediaURLs: []string{"https://cdn/v.mp4"},
		MediaKind: model.MediaKindVideo,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"INIT", "APPEND", "FINALIZE", "STATUS", "STATUS"}, fake.commands)
	assert.Equal(t, []time.Duration{2 * time.Second, 2 * time.Second}, *waits)
}

func TestPublishVideoProcessingFailure(t *testing.T) {
	fake := &fakeX{processing: []string{"pending", "failed"}}
	c, _ := newFakeClient(t, fake, userContext, &fakeFetcher{data: []byte("mp4"), contentType: "video/mp4"})

	_, err := c.Publish(context.Background(), &model.ContentPayload{MediaURLs: []string{"https://cdn/v.mp4"}, MediaKind: model.MediaKindVideo})
	var pubErr *platform.PublishError
	require.True(t, errors.As(err, &pubErr))
	assert.Equal(t, "upload_media", pubErr.Step)
	assert.Contains(t, err.Error(), "Unsupported video codec")
	assert.Empty(t, fake.tweet.Text, "no tweet is created after a failed upload")
}

func TestPublishTweetRejected(t *testing.T) {
	fake := &fakeX{tweetStatus: http.StatusForbidden, tweetFailure: `{"title":"Forbidden","detail":"You are not allowed to create a Tweet with duplicate content.","status":403}`}
	c, _ := newFakeClient(t, fake, userContext, &fakeFetcher{})

	_, err := c.Publish(context.Background(), &model.ContentPayload{Caption: "again"})
	var pubErr *platform.PublishError
	require.True(t, errors.As(err, &pubErr))
	assert.Equal(t, "create_tweet", pubErr.Step)
	var apiErr *platform.APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusForbidden, apiErr.StatusCode)
	assert.Equal(t, "You are not allowed to create a Tweet with duplicate content.", apiErr.Message)
}

func TestPKCEAuthorizationAndExchange(t *testing.T) {
	var form url.Values
	var basicUser string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/2/oauth2/token", r.URL.Path)
		assert.NoError(t, r.ParseForm())
		form = r.PostForm
		basicUser, _, _ = r.BasicAuth()
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"token_type":"bearer","access_token":"user-at","refresh_token":"user-rt","expires_in":7200,"scope":"tweet.read tweet.write"}`)
	}))
	defer srv.Close()

	cfg := model.AdapterConfig{ClientID: "cid", ClientSecret: "secret", RedirectURI: "https://app/cb"}
	deps := platform.Deps{HTTPClient: srv.Client(), BaseURL: srv.URL, Verifiers: platform.NewMemoryVerifierStore()}
	c := newClient(cfg, deps)

	raw, err := c.GetAuthorizationURL("st-1")
	require.NoError(t, err)
	u, err := url.Parse(raw)
	require.NoError(t, err)
	q := u.Query()
	assert.Equal(t, "/i/oauth2/authorize", u.Path)
	assert.Equal(t, "S256", q.Get("code_challenge_method"))
	assert.Equal(t, "st-1", q.Get("state"))
	assert.Equal(t, "tweet.read tweet.write users.read offline.access", q.Get("scope"))
	challenge := q.Get("code_challenge")
	require.NotEmpty(t, challenge)

	// a second adapter instance shares the verifier store
	ts, err := newClient(cfg, deps).ExchangeCodeForToken(context.Background(), "the-code", "st-1")
	require.NoError(t, err)
	assert.Equal(t, "user-at", ts.AccessToken)
	assert.Equal(t, "user-rt", ts.RefreshToken)
	assert.Equal(t, "tweet.read tweet.write", ts.Scope)
	require.NotNil(t, ts.ExpiresAt)

	assert.Equal(t, "cid", basicUser)
	assert.Equal(t, "the-code", form.Get("code"))
	assert.Equal(t, challenge, oauth2.S256ChallengeFromVerifier(form.Get("code_verifier")))

	// the verifier is single use
	_, err = c.ExchangeCodeForToken(context.Background(), "the-code", "st-1")
	var authErr *platform.AuthExchangeError
	assert.True(t, errors.As(err, &authErr))
}

func TestAuthorizationURLRequiresClient(t *testing.T) {
	c := newClient(model.AdapterConfig{RedirectURI: "https://app/cb"}, platform.Deps{})
	_, err := c.GetAuthorizationURL("s")
	var cfgErr *platform.ConfigurationError
	assert.True(t, errors.As(err, &cfgErr))
}

func TestRefreshAccessTokenSwitchesToBearer(t *testing.T) {
	var lastAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/2/oauth2/token":
			assert.NoError(t, r.ParseForm())
			assert.Equal(t, "refresh_token", r.PostForm.Get("grant_type"))
			assert.Equal(t, "old-rt", r.PostForm.Get("refresh_token"))
			w.Header().Set("Content-Type", "application/json")
			fmt.Fprint(w, `{"token_type":"bearer","access_token":"fresh","refresh_token":"new-rt","expires_in":7200}`)
		default:
			lastAuth = r.Header.Get("Authorization")
		}
	}))
	defer srv.Close()

	c := newClient(model.AdapterConfig{ClientID: "cid", ClientSecret: "s", AccessToken: "stale", RefreshToken: "old-rt"},
		platform.Deps{HTTPClient: srv.Client(), BaseURL: srv.URL})
	ts, err := c.RefreshAccessToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "fresh", ts.AccessToken)

	_, err = c.DeletePost(context.Background(), "1")
	require.NoError(t, err)
	assert.Equal(t, "Bearer fresh", lastAuth)
}

func TestGetAnalytics(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/2/tweets/1500":
			assert.Equal(t, "public_metrics", r.URL.Query().Get("tweet.fields"))
			fmt.Fprint(w, `{"data":{"id":"1500","public_metrics":{"retweet_count":3,"reply_count":4,"like_count":50,"quote_count":2,"bookmark_count":7,"impression_count":900}}}`)
		default:
			fmt.Fprint(w, `{"errors":[{"detail":"Could not find tweet with id: [404]."}]}`)
		}
	}))
	defer srv.Close()
	c := newClient(userContext, platform.Deps{HTTPClient: srv.Client(), BaseURL: srv.URL})

	snap, err := c.GetAnalytics(context.Background(), "1500", nil)
	require.NoError(t, err)
	assert.Equal(t, model.PlatformTwitter, snap.Platform)
	assert.Equal(t, int64(900), snap.Impressions)
	assert.Equal(t, int64(50), snap.Likes)
	assert.Equal(t, int64(4), snap.Comments)
	assert.Equal(t, int64(3), snap.Shares)
	assert.Equal(t, map[string]float64{"quotes": 2, "bookmarks": 7}, snap.Extras)

	_, err = c.GetAnalytics(context.Background(), "404", nil)
	var aErr *platform.AnalyticsError
	require.True(t, errors.As(err, &aErr))
	assert.Contains(t, err.Error(), "Could not find tweet")
}

func TestGetTrendingTags(t *testing.T) {
	var fail atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/1.1/trends/place.json", r.URL.Path)
		assert.Equal(t, "1", r.URL.Query().Get("id"))
		if fail.Load() {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		fmt.Fprint(w, `[{"trends":[{"name":"#GoLang","tweet_volume":1200},{"name":"Breaking story","tweet_volume":null},{"name":"#Fanz"}]}]`)
	}))
	defer srv.Close()
	c := newClient(userContext, platform.Deps{HTTPClient: srv.Client(), BaseURL: srv.URL})

	assert.Equal(t, []string{"#GoLang", "#Fanz"}, c.GetTrendingTags(context.Background()))

	fail.Store(true)
	assert.Equal(t, defaultTrendingTags, c.GetTrendingTags(context.Background()))
}

func TestBestPostingTimesAreCopies(t *testing.T) {
	c := newClient(model.AdapterConfig{}, platform.Deps{})
	got := c.GetBestPostingTimes(context.Background())
	require.Equal(t, defaultBestTimes, got)
	got[0].Score = 0
	assert.Equal(t, 0.95, c.GetBestPostingTimes(context.Background())[0].Score)
}

func TestDeletePost(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		if r.URL.Path == "/2/tweets/1500" {
			fmt.Fprint(w, `{"data":{"deleted":true}}`)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()
	c := newClient(userContext, platform.Deps{HTTPClient: srv.Client(), BaseURL: srv.URL})

	ok, err := c.DeletePost(context.Background(), "1500")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = c.DeletePost(context.Background(), "missing")
	require.NoError(t, err)
	assert.False(t, ok)
}
