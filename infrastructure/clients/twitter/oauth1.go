package twitter

import (
	"context"
	"net/http"

	"github.com/dghubble/oauth1"

	"github.com/FanzCEO/GirlFanz-sub003/domain/model"
)

// oauth1HTTPClient returns a client whose transport signs every request with
// the creator's OAuth 1.0a user context (HMAC-SHA1) before handing it to base's
// transport. The consumer pair falls back to the OAuth 2.0 client credentials.
// It returns nil unless all four credentials are present.
func oauth1HTTPClient(cfg model.AdapterConfig, base *http.Client) *http.Client {
	key, secret := cfg.APIKey, cfg.APISecret
	if key == "" {
		key = cfg.ClientID
	}
	if secret == "" {
		secret = cfg.ClientSecret
	}
	if key == "" || secret == "" || cfg.AccessToken == "" || cfg.AccessTokenSecret == "" {
		return nil
	}
	ctx := context.Background()
	if base != nil {
		ctx = context.WithValue(ctx, oauth1.HTTPClient, base)
	}
	return oauth1.NewConfig(key, secret).Client(ctx, oauth1.NewToken(cfg.AccessToken, cfg.AccessTokenSecret))
}
