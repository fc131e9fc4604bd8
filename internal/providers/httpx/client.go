// Package httpx is the retrying HTTP transport shared by provider adapters.
package httpx

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/example/resywatch/internal/reservation"
)

const (
	DefaultTimeout     = 20 * time.Second
	DefaultMaxTries    = 4
	DefaultBackoffBase = 2 * time.Second
	maxBodyLog         = 512
)

// Client retries transport errors and 5xx responses with exponential backoff.
// 4xx responses are not retried and surface as ProviderError.
type Client struct {
	hc          *http.Client
	maxTries    uint
	backoffBase time.Duration
	backoffMax  time.Duration
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option { return func(c *Client) { c.hc = hc } }

func WithMaxTries(n uint) Option { return func(c *Client) { c.maxTries = n } }

// WithBackoff sets the first retry delay; later delays double up to max.
func WithBackoff(base, max time.Duration) Option {
	return func(c *Client) {
		c.backoffBase = base
		c.backoffMax = max
	}
}

func New(opts ...Option) *Client {
	c := &Client{
		hc:          &http.Client{Timeout: DefaultTimeout},
		maxTries:    DefaultMaxTries,
		backoffBase: DefaultBackoffBase,
		backoffMax:  30 * time.Second,
	}
	for _, o := range opts {
		o(c)
	}
	if c.maxTries < 1 {
		c.maxTries = 1
	}
	return c
}

type Request struct {
	Provider reservation.Provider
	Venue    string

	Method      string
	URL         string
	Query       url.Values
	Header      http.Header
	ContentType string
	Body        []byte
}

// Response is a successful (2xx) response.
type Response struct {
	Status int
	Body   []byte
}

type retryableStatus struct {
	status int
	body   []byte
}

func (e *retryableStatus) Error() string { return fmt.Sprintf("http %d", e.status) }

// Do sends req, retrying as configured. Errors are *reservation.ProviderError
// or *reservation.TransientFetchError.
func (c *Client) Do(ctx context.Context, req Request) (Response, error) {
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = c.backoffBase
	eb.MaxInterval = c.backoffMax
	eb.Multiplier = 2

	op := func() (Response, error) {
		return c.once(ctx, req)
	}
	resp, err := backoff.Retry(ctx, op,
		backoff.WithBackOff(eb),
		backoff.WithMaxTries(c.maxTries),
	)
	if err == nil {
		return resp, nil
	}

	var pe *reservation.ProviderError
	if errors.As(err, &pe) {
		return Response{}, pe
	}
	te := &reservation.TransientFetchError{Provider: req.Provider, Venue: req.Venue, Err: err}
	var rs *retryableStatus
	if errors.As(err, &rs) {
		te.Status = rs.status
	}
	return Response{}, te
}

func (c *Client) once(ctx context.Context, req Request) (Response, error) {
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}
	var body io.Reader = http.NoBody
	if req.Body != nil {
		body = bytes.NewReader(req.Body)
	}
	hreq, err := http.NewRequestWithContext(ctx, method, req.URL, body)
	if err != nil {
		return Response{}, backoff.Permanent(&reservation.ProviderError{
			Provider: req.Provider, Venue: req.Venue, Err: fmt.Errorf("build request: %w", err),
		})
	}
	for k, vs := range req.Header {
		for _, v := range vs {
			hreq.Header.Add(k, v)
		}
	}
	if req.ContentType != "" {
		hreq.Header.Set("content-type", req.ContentType)
	}
	if len(req.Query) > 0 {
		q := hreq.URL.Query()
		for k, vs := range req.Query {
			for _, v := range vs {
				q.Add(k, v)
			}
		}
		hreq.URL.RawQuery = q.Encode()
	}

	res, err := c.hc.Do(hreq)
	if err != nil {
		if ctx.Err() != nil {
			return Response{}, backoff.Permanent(ctx.Err())
		}
		return Response{}, err
	}
	defer res.Body.Close()
	b, err := io.ReadAll(res.Body)
	if err != nil {
		return Response{}, fmt.Errorf("read body: %w", err)
	}

	switch {
	case res.StatusCode >= 500:
		return Response{}, &retryableStatus{status: res.StatusCode, body: b}
	case res.StatusCode < 200 || res.StatusCode >= 300:
		return Response{}, backoff.Permanent(&reservation.ProviderError{
			Provider: req.Provider,
			Venue:    req.Venue,
			Status:   res.StatusCode,
			Body:     reservation.Truncate(string(b), maxBodyLog),
			Err:      fmt.Errorf("unexpected status %d", res.StatusCode),
		})
	}
	return Response{Status: res.StatusCode, Body: b}, nil
}

// DecodeJSON unmarshals a response body, mapping failures to ProviderError.
func DecodeJSON(req Request, resp Response, v any) error {
	if err := json.Unmarshal(resp.Body, v); err != nil {
		return &reservation.ProviderError{
			Provider: req.Provider,
			Venue:    req.Venue,
			Status:   resp.Status,
			Body:     reservation.Truncate(string(resp.Body), maxBodyLog),
			Err:      fmt.Errorf("decode: %w", err),
		}
	}
	return nil
}
