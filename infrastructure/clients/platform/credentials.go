package platform

import (
	"errors"
	"net/http"
)

// ErrNoAuthentication is returned by a strategy that holds no credentials.
var ErrNoAuthentication = errors.New("no authentication configured")

// CredentialStrategy authorizes an outgoing request, usually by setting the
// Authorization header for the request's method and URL.
type CredentialStrategy interface {
	Usable() bool
	Authorize(req *http.Request) error
}

// BearerToken sets "Authorization: Bearer <token>".
type BearerToken struct {
	Token string
}

func (b BearerToken) Usable() bool { return b.Token != "" }

func (b BearerToken) Authorize(req *http.Request) error {
	if !b.Usable() {
		return ErrNoAuthentication
	}
	req.Header.Set("Authorization", "Bearer "+b.Token)
	return nil
}

// QueryToken appends the token as a query parameter (Instagram Graph API style).
type QueryToken struct {
	Param string
	Token string
}

func (q QueryToken) Usable() bool { return q.Token != "" }

func (q QueryToken) Authorize(req *http.Request) error {
	if !q.Usable() {
		return ErrNoAuthentication
	}
	param := q.Param
	if param == "" {
		param = "access_token"
	}
	values := req.URL.Query()
	values.Set(param, q.Token)
	req.URL.RawQuery = values.Encode()
	return nil
}

// Anonymous leaves the request untouched. Used for token endpoints that carry
// client credentials in the body.
type Anonymous struct{}

func (Anonymous) Usable() bool                      { return true }
func (Anonymous) Authorize(req *http.Request) error { return nil }
