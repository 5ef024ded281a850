// Package inference talks to the garment detection and comfort classifier
// model services over HTTP.
//
// Both services accept and return JSON. Every request carries the caller's
// context, so an expired dispatcher deadline aborts the call in flight.
package inference

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/okian/wearsense/pkg/logger"
	"github.com/okian/wearsense/pkg/metrics"
)

const (
	defaultUserAgent       = "wearsense"
	defaultMaxResponseSize = 32 << 20
	defaultMaxIdleConns    = 32
	defaultIdleConnTimeout = 90 * time.Second
	defaultDialTimeout     = 10 * time.Second
	errorBodyPreview       = 512
)

// client holds what the detector and classifier share.
type client struct {
	url       string
	http      *http.Client
	userAgent string
	log       logger.Logger
}

// Option configures an HTTP model client.
type Option func(*client)

// WithHTTPClient replaces the underlying *http.Client.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *client) {
		if c != nil {
			cl.http = c
		}
	}
}

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(cl *client) {
		if ua != "" {
			cl.userAgent = ua
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(l logger.Logger) Option {
	return func(cl *client) {
		if l != nil {
			cl.log = l
		}
	}
}

func newClient(url, stage string, opts ...Option) (*client, error) {
	if url == "" {
		return nil, fmt.Errorf("%s: %w", stage, ErrNoURL)
	}
	c := &client{
		url: url,
		http: &http.Client{
			// No client timeout: the dispatcher deadline travels in the context.
			Transport: &http.Transport{
				Proxy:               http.ProxyFromEnvironment,
				DialContext:         (&net.Dialer{Timeout: defaultDialTimeout}).DialContext,
				MaxIdleConns:        defaultMaxIdleConns,
				MaxIdleConnsPerHost: defaultMaxIdleConns,
				IdleConnTimeout:     defaultIdleConnTimeout,
			},
		},
		userAgent: defaultUserAgent,
		log:       logger.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.log = c.log.Named(stage)
	return c, nil
}

// post sends in as JSON and decodes the response into out.
func (c *client) post(ctx context.Context, stage string, in, out any) error {
	start := time.Now()
	defer func() {
		metrics.RecordInferenceLatency(stage, float64(time.Since(start).Milliseconds()))
	}()

	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("encode %s request: %w", stage, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build %s request: %w", stage, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		metrics.RecordInferenceError(stage)
		return fmt.Errorf("%s request: %w", stage, err)
	}
	defer func() { _ = resp.Body.Close() }()

	limited := io.LimitReader(resp.Body, defaultMaxResponseSize)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		preview, _ := io.ReadAll(io.LimitReader(limited, errorBodyPreview))
		metrics.RecordInferenceError(stage)
		c.log.Warn(ctx, "model service rejected request",
			logger.Int("status", resp.StatusCode),
			logger.String("body", string(preview)),
		)
		return fmt.Errorf("%w: %s: %d", ErrStatus, stage, resp.StatusCode)
	}
	if err := json.NewDecoder(limited).Decode(out); err != nil {
		metrics.RecordInferenceError(stage)
		return fmt.Errorf("%w: %s: %w", ErrResponse, stage, err)
	}
	return nil
}
