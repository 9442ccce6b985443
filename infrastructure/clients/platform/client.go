package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/time/rate"
)

const maxErrorBody = 1 << 20

// ErrorDecoder extracts the platform's error text from a failed response body.
type ErrorDecoder func(body []byte) string

// Client is the HTTP plumbing shared by the platform adapters. It applies a
// credential strategy to every request and turns non-2xx responses into *APIError.
// It sets no timeout of its own; deadlines come from the request context.
type Client struct {
	httpClient *http.Client
	auth       CredentialStrategy
	decode     ErrorDecoder
	analytics  *rate.Limiter
	userAgent  string
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

func WithErrorDecoder(d ErrorDecoder) Option {
	return func(c *Client) {
		if d != nil {
			c.decode = d
		}
	}
}

// WithAnalyticsRate limits analytics calls to r per second with the given burst.
func WithAnalyticsRate(r float64, burst int) Option {
	return func(c *Client) {
		if r <= 0 {
			c.analytics = rate.NewLimiter(rate.Inf, 0)
			return
		}
		if burst < 1 {
			burst = 1
		}
		c.analytics = rate.NewLimiter(rate.Limit(r), burst)
	}
}

func WithUserAgent(ua string) Option {
	return func(c *Client) { c.userAgent = ua }
}

func NewClient(auth CredentialStrategy, opts ...Option) *Client {
	if auth == nil {
		auth = Anonymous{}
	}
	c := &Client{
		httpClient: http.DefaultClient,
		auth:       auth,
		decode:     DecodeErrorMessage,
		analytics:  rate.NewLimiter(rate.Limit(5), 5),
		userAgent:  "girlfanz-distribution/1.0",
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// WithAuth returns a copy of c using a different credential strategy.
func (c *Client) WithAuth(auth CredentialStrategy) *Client {
	cp := *c
	cp.auth = auth
	return &cp
}

// HTTPClient exposes the underlying client for SDKs that need one.
func (c *Client) HTTPClient() *http.Client { return c.httpClient }

// Do authorizes and sends req. On a non-2xx status the body is consumed and an
// *APIError returned; otherwise the caller owns resp.Body.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	if err := c.auth.Authorize(req); err != nil {
		return nil, err
	}
	if c.userAgent != "" && req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &APIError{
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Message:    c.decode(body),
			Body:       string(body),
		}
	}
	return resp, nil
}

// DoJSON sends in as a JSON body (when non-nil) and decodes the response into out (when non-nil).
func (c *Client) DoJSON(ctx context.Context, method, rawURL string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, rawURL, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json; charset=UTF-8")
	}
	req.Header.Set("Accept", "application/json")
	return c.send(req, out)
}

// PostForm sends values as application/x-www-form-urlencoded.
func (c *Client) PostForm(ctx context.Context, rawURL string, values url.Values, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, rawURL, strings.NewReader(values.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	return c.send(req, out)
}

// Status sends a body-less request and reports the response status without
// treating non-2xx as an error. Transport and credential failures are still errors.
func (c *Client) Status(ctx context.Context, method, rawURL string) (int, error) {
	req, err := http.NewRequestWithContext(ctx, method, rawURL, nil)
	if err != nil {
		return 0, err
	}
	resp, err := c.Do(req)
	if err != nil {
		if apiErr, ok := err.(*APIError); ok {
			return apiErr.StatusCode, nil
		}
		return 0, err
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	return resp.StatusCode, nil
}

// WaitAnalytics blocks until the analytics rate limiter admits one call.
func (c *Client) WaitAnalytics(ctx context.Context) error {
	return c.analytics.Wait(ctx)
}

func (c *Client) send(req *http.Request, out any) error {
	resp, err := c.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil && err != io.EOF {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// DecodeErrorMessage understands the error envelopes of the supported platforms:
// Graph/Google/TikTok {"error":{"message"}}, Twitter v2 {"detail"},
// OAuth {"error","error_description"} and v1.1 {"errors":[{"message"}]}.
func DecodeErrorMessage(body []byte) string {
	var env struct {
		Error            json.RawMessage `json:"error"`
		ErrorDescription string          `json:"error_description"`
		ErrorMessage     string          `json:"error_message"`
		Detail           string          `json:"detail"`
		Message          string          `json:"message"`
		Errors           []struct {
			Message string `json:"message"`
		} `json:"errors"`
	}
	if err := json.Unmarshal(body, &env); err != nil {
		return strings.TrimSpace(string(body))
	}
	if len(env.Error) > 0 {
		var nested struct {
			Message string `json:"message"`
			Code    any    `json:"code"`
		}
		if json.Unmarshal(env.Error, &nested) == nil && nested.Message != "" {
			return nested.Message
		}
		var s string
		if json.Unmarshal(env.Error, &s) == nil && s != "" {
			if env.ErrorDescription != "" {
				return s + ": " + env.ErrorDescription
			}
			return s
		}
	}
	switch {
	case env.Detail != "":
		return env.Detail
	case env.ErrorMessage != "":
		return env.ErrorMessage
	case len(env.Errors) > 0 && env.Errors[0].Message != "":
		return env.Errors[0].Message
	case env.Message != "":
		return env.Message
	}
	return ""
}
