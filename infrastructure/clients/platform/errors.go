// Package platform holds the plumbing shared by the social platform clients:
// the error taxonomy, credential strategies, a rate-limited HTTP client and
// caption, media and scheduling helpers.
package platform

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/FanzCEO/GirlFanz-sub003/domain/model"
)

// ConfigurationError means a required credential is missing. It is returned
// before any network call is made.
type ConfigurationError struct {
	Platform model.Platform
	Missing  string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("%s: missing %s", e.Platform, e.Missing)
}

// RequireToken fails with a ConfigurationError when value is empty.
func RequireToken(p model.Platform, name, value string) error {
	if strings.TrimSpace(value) == "" {
		return &ConfigurationError{Platform: p, Missing: name}
	}
	return nil
}

// AuthExchangeError is returned when an OAuth code or refresh exchange fails.
type AuthExchangeError struct {
	Platform   model.Platform
	StatusCode int
	Status     string
	Body       string
}

func (e *AuthExchangeError) Error() string {
	msg := fmt.Sprintf("%s: token exchange failed: %s", e.Platform, e.Status)
	if e.Body != "" {
		msg += ": " + e.Body
	}
	return msg
}

// PublishError wraps the failure of one step of a publish workflow.
// RemoteID is set when the platform already holds state for the post
// (container id, publish id, upload session).
type PublishError struct {
	Platform model.Platform
	Step     string
	RemoteID string
	Err      error
}

func (e *PublishError) Error() string {
	return fmt.Sprintf("%s: publish failed at %s: %v", e.Platform, e.Step, e.Err)
}

func (e *PublishError) Unwrap() error { return e.Err }

// AnalyticsError wraps the failure of a post analytics lookup.
type AnalyticsError struct {
	Platform model.Platform
	PostID   string
	Err      error
}

func (e *AnalyticsError) Error() string {
	return fmt.Sprintf("%s: analytics for %s failed: %v", e.Platform, e.PostID, e.Err)
}

func (e *AnalyticsError) Unwrap() error { return e.Err }

// APIError is any non-2xx response from a platform. Message carries the
// platform's own error text when it could be decoded.
type APIError struct {
	StatusCode int
	Status     string
	Message    string
	Body       string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Status, e.Message)
	}
	return e.Status
}

// IsUnauthorized reports whether err carries an upstream 401.
func IsUnauthorized(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == http.StatusUnauthorized
	}
	var authErr *AuthExchangeError
	if errors.As(err, &authErr) {
		return authErr.StatusCode == http.StatusUnauthorized
	}
	return false
}

// HTTPStatus maps an adapter error to the status the API layer responds with.
func HTTPStatus(err error) int {
	if err == nil {
		return http.StatusOK
	}
	var cfgErr *ConfigurationError
	if errors.As(err, &cfgErr) {
		return http.StatusPreconditionFailed
	}
	var authErr *AuthExchangeError
	if errors.As(err, &authErr) {
		return http.StatusUnauthorized
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.StatusCode == http.StatusUnauthorized:
			return http.StatusUnauthorized
		case apiErr.StatusCode == http.StatusTooManyRequests:
			return http.StatusTooManyRequests
		case apiErr.StatusCode == http.StatusNotFound:
			return http.StatusNotFound
		case apiErr.StatusCode >= 400 && apiErr.StatusCode < 500:
			return http.StatusUnprocessableEntity
		}
		return http.StatusBadGateway
	}
	var pubErr *PublishError
	var anErr *AnalyticsError
	if errors.As(err, &pubErr) || errors.As(err, &anErr) {
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}
