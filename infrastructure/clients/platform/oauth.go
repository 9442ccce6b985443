package platform

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"golang.org/x/oauth2"

	"github.com/FanzCEO/GirlFanz-sub003/domain/model"
)

// AuthError converts an oauth2 exchange failure into an AuthExchangeError
// carrying the upstream status text.
func AuthError(p model.Platform, err error) error {
	var re *oauth2.RetrieveError
	if errors.As(err, &re) && re.Response != nil {
		body := string(re.Body)
		if msg := DecodeErrorMessage(re.Body); msg != "" {
			body = msg
		}
		return &AuthExchangeError{
			Platform:   p,
			StatusCode: re.Response.StatusCode,
			Status:     re.Response.Status,
			Body:       body,
		}
	}
	return &AuthExchangeError{Platform: p, Status: err.Error()}
}

// TokenSetFromOAuth copies an oauth2 token. externalIDKey names the response
// field that identifies the account ("user_id", "open_id"); it may be empty.
func TokenSetFromOAuth(tok *oauth2.Token, externalIDKey string) *model.TokenSet {
	ts := &model.TokenSet{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		TokenType:    tok.TokenType,
	}
	if !tok.Expiry.IsZero() {
		exp := tok.Expiry.UTC()
		ts.ExpiresAt = &exp
	}
	if s := ExtraString(tok, "scope"); s != "" {
		ts.Scope = s
	}
	if externalIDKey != "" {
		ts.ExternalID = ExtraString(tok, externalIDKey)
	}
	return ts
}

// ExtraString reads a string or numeric field from a token response.
func ExtraString(tok *oauth2.Token, key string) string {
	switch v := tok.Extra(key).(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int64:
		return strconv.FormatInt(v, 10)
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

// OAuthToken builds an oauth2 token from stored credentials. An unknown expiry
// is treated as already expired so the token source refreshes on first use.
func OAuthToken(cfg model.AdapterConfig) *oauth2.Token {
	return &oauth2.Token{
		AccessToken:  cfg.AccessToken,
		RefreshToken: cfg.RefreshToken,
		TokenType:    "Bearer",
		Expiry:       time.Now().Add(-1 * time.Minute),
	}
}
