package loadgen

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/okian/wearsense/pkg/logger"
)

// HTTPClient wraps http.Client with the service base URL.
type HTTPClient struct {
	client  *http.Client
	baseURL string
}

// newHTTPClient creates a new HTTP client with timeout.
func newHTTPClient(baseURL string, timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		client:  &http.Client{Timeout: timeout},
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

// get performs a GET request and decodes a JSON body into out when non-nil.
func (c *HTTPClient) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, http.NoBody)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	return c.do(req, http.StatusOK, out)
}

// postForm performs a urlencoded POST and expects 201.
func (c *HTTPClient) postForm(ctx context.Context, path string, form url.Values) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return c.do(req, http.StatusCreated, nil)
}

func (c *HTTPClient) do(req *http.Request, want int, out any) error {
	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != want {
		return fmt.Errorf("%w: %s %s: %d %s", ErrStatus, req.Method, req.URL.Path, resp.StatusCode, strings.TrimSpace(string(body)))
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(body, out)
}

// submitPlans posts every session plan with cfg.Workers concurrent sessions.
// Individual request failures are counted, not returned.
func submitPlans(ctx context.Context, cfg *Config, client *HTTPClient, plans []SessionPlan, stats *Stats) error {
	log := logger.Get()
	log.Info(ctx, "submitting load", logger.Int("sessions", len(plans)), logger.Int("workers", cfg.Workers))

	var sensorsOK, sensorsFailed, votesOK, votesFailed int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(cfg.Workers, 1))
	for _, plan := range plans {
		g.Go(func() error {
			for _, r := range plan.Readings {
				err := client.postForm(gctx, "/api/sensor", url.Values{
					"secret":      {plan.Secret},
					"local_temp":  {strconv.FormatFloat(r.Temperature, 'f', -1, 64)},
					"local_humid": {strconv.FormatFloat(r.Humidity, 'f', -1, 64)},
				})
				if err != nil {
					atomic.AddInt64(&sensorsFailed, 1)
					if cfg.Verbose {
						log.Warn(gctx, "sensor submission failed", logger.String("secret", plan.Secret), logger.Error(err))
					}
					continue
				}
				atomic.AddInt64(&sensorsOK, 1)
			}
			if len(plan.Votes) == 0 {
				return gctx.Err()
			}
			err := client.postForm(gctx, "/api/comfort", url.Values{
				"secret":  {plan.Secret},
				"comfort": plan.Votes,
			})
			if err != nil {
				atomic.AddInt64(&votesFailed, int64(len(plan.Votes)))
				if cfg.Verbose {
					log.Warn(gctx, "comfort submission failed", logger.String("secret", plan.Secret), logger.Error(err))
				}
				return gctx.Err()
			}
			atomic.AddInt64(&votesOK, int64(len(plan.Votes)))
			return gctx.Err()
		})
	}
	err := g.Wait()

	stats.SensorsSubmitted = int(atomic.LoadInt64(&sensorsOK))
	stats.SensorsFailed = int(atomic.LoadInt64(&sensorsFailed))
	stats.VotesSubmitted = int(atomic.LoadInt64(&votesOK))
	stats.VotesFailed = int(atomic.LoadInt64(&votesFailed))

	log.Info(ctx, "submission completed",
		logger.Int("sensorsSubmitted", stats.SensorsSubmitted),
		logger.Int("sensorsFailed", stats.SensorsFailed),
		logger.Int("votesSubmitted", stats.VotesSubmitted),
		logger.Int("votesFailed", stats.VotesFailed))
	if err != nil {
		return fmt.Errorf("submission interrupted: %w", err)
	}
	return nil
}
