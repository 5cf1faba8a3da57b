// Package transport delivers serialized request documents to the service
// over HTTP POST.
//
// Socket-level policy lives here, not in the protocol layer: timeouts come
// from the injected http.Client, and transient failures (network errors,
// 5xx) are retried with bounded exponential backoff.
package transport

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

const contentType = "text/xml; charset=utf-8"

// HTTP implements the transport collaborator over a single service endpoint.
type HTTP struct {
	endpoint   string
	client     *http.Client
	logger     *logrus.Logger
	maxRetries uint64
	newBackOff func() backoff.BackOff
}

// Option configures the HTTP transport.
type Option func(*HTTP)

// WithHTTPClient sets a custom HTTP client for requests.
func WithHTTPClient(c *http.Client) Option {
	return func(t *HTTP) { t.client = c }
}

// WithLogger sets a structured logger. The transport is silent by default.
func WithLogger(l *logrus.Logger) Option {
	return func(t *HTTP) { t.logger = l }
}

// WithMaxRetries bounds the number of retry attempts after the first send.
func WithMaxRetries(n uint64) Option {
	return func(t *HTTP) { t.maxRetries = n }
}

// WithBackOff replaces the retry schedule entirely. The factory is invoked
// once per Send.
func WithBackOff(f func() backoff.BackOff) Option {
	return func(t *HTTP) { t.newBackOff = f }
}

// New creates an HTTP transport posting to endpoint.
func New(endpoint string, opts ...Option) *HTTP {
	t := &HTTP{
		endpoint:   endpoint,
		client:     &http.Client{Timeout: 30 * time.Second},
		maxRetries: 3,
	}
	for _, o := range opts {
		o(t)
	}
	if t.logger == nil {
		t.logger = logrus.New()
		t.logger.SetOutput(io.Discard)
	}
	if t.newBackOff == nil {
		t.newBackOff = func() backoff.BackOff {
			return backoff.WithMaxRetries(backoff.NewExponentialBackOff(), t.maxRetries)
		}
	}
	return t
}

// Send posts payload to the service endpoint and returns the response body.
// Network errors and 5xx responses are retried per the configured schedule;
// any other non-200 status fails immediately.
func (t *HTTP) Send(ctx context.Context, payload []byte) ([]byte, error) {
	var body []byte
	attempt := 0

	op := func() error {
		attempt++
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.endpoint, bytes.NewReader(payload))
		if err != nil {
			return backoff.Permanent(errors.Wrap(err, "transport: building request"))
		}
		req.Header.Set("Content-Type", contentType)

		resp, err := t.client.Do(req)
		if err != nil {
			t.logger.WithFields(logrus.Fields{"attempt": attempt, "error": err}).Warn("request failed")
			return errors.Wrap(err, "transport: request failed")
		}
		defer func() { _ = resp.Body.Close() }()

		b, err := io.ReadAll(resp.Body)
		if err != nil {
			return errors.Wrap(err, "transport: reading response")
		}

		switch {
		case resp.StatusCode == http.StatusOK:
			body = b
			return nil
		case resp.StatusCode >= 500:
			t.logger.WithFields(logrus.Fields{"attempt": attempt, "status": resp.StatusCode}).Warn("server error")
			return errors.Errorf("transport: service returned HTTP %d", resp.StatusCode)
		default:
			return backoff.Permanent(errors.Errorf("transport: service returned HTTP %d", resp.StatusCode))
		}
	}

	if err := backoff.Retry(op, backoff.WithContext(t.newBackOff(), ctx)); err != nil {
		return nil, err
	}
	return body, nil
}
