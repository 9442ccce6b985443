package platform

import (
	"context"
	"net/http"
	"strings"

	"golang.org/x/oauth2"

	"github.com/FanzCEO/GirlFanz-sub003/domain/repository"
)

// Deps are the collaborators an adapter is built with. Zero values are
// replaced by working defaults in Resolve.
type Deps struct {
	HTTPClient     *http.Client
	Fetcher        MediaFetcher
	Queue          repository.IScheduleQueue
	Compensator    Compensator
	Verifiers      VerifierStore
	AnalyticsRate  float64
	AnalyticsBurst int
	// BaseURL replaces every platform host (auth, token and API) with one root.
	BaseURL string
}

func (d Deps) Resolve() Deps {
	if d.HTTPClient == nil {
		d.HTTPClient = http.DefaultClient
	}
	if d.Fetcher == nil {
		d.Fetcher = NewHTTPFetcher(d.HTTPClient)
	}
	if d.Compensator == nil {
		d.Compensator = LogCompensator{}
	}
	if d.Verifiers == nil {
		d.Verifiers = sharedVerifiers
	}
	d.BaseURL = strings.TrimRight(d.BaseURL, "/")
	return d
}

// URL returns BaseURL+path when a base override is set, otherwise def.
func (d Deps) URL(def, path string) string {
	if d.BaseURL == "" {
		return def
	}
	return d.BaseURL + path
}

// NewAPIClient builds a Client with the deps' transport and analytics rate.
func (d Deps) NewAPIClient(auth CredentialStrategy, opts ...Option) *Client {
	base := []Option{WithHTTPClient(d.HTTPClient)}
	if d.AnalyticsRate > 0 {
		base = append(base, WithAnalyticsRate(d.AnalyticsRate, d.AnalyticsBurst))
	}
	return NewClient(auth, append(base, opts...)...)
}

// OAuthContext makes golang.org/x/oauth2 use the deps' HTTP client.
func (d Deps) OAuthContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, d.HTTPClient)
}
