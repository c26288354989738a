// Package client provides the HTTP client for the remote backtest service.
// It speaks plain JSON over HTTP against a single base address and performs
// no caching, throttling or retries of its own; those policies belong to the
// probes and controllers built on top of it.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"stratlab-sync/internal/errors"
	"stratlab-sync/internal/logging"
)

// Authenticator is the seam to the external auth module. The layer never
// acquires credentials itself; it only consumes the authenticated signal and
// the ability to decorate outgoing requests.
type Authenticator interface {
	IsAuthenticated() bool
	Attach(req *http.Request)
}

// Config holds client configuration.
type Config struct {
	BaseURL        string
	SpecPath       string
	JobsPath       string
	RequestTimeout time.Duration
}

// Client is an HTTP client for the backtest service.
type Client struct {
	cfg  Config
	http *http.Client
	auth Authenticator
	log  zerolog.Logger
}

// New creates a new Client.
func New(cfg Config, auth Authenticator, logger zerolog.Logger) *Client {
	if cfg.SpecPath == "" {
		cfg.SpecPath = "/openapi.json"
	}
	if cfg.JobsPath == "" {
		cfg.JobsPath = "/api/backtests"
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 10 * time.Second
	}
	return &Client{
		cfg:  cfg,
		http: &http.Client{Timeout: cfg.RequestTimeout},
		auth: auth,
		log:  logger.With().Str("component", "client").Logger(),
	}
}

// IsAuthenticated reports the external auth module's signal.
func (c *Client) IsAuthenticated() bool {
	return c.auth != nil && c.auth.IsAuthenticated()
}

// ServiceSpec fetches the service's self-description document.
func (c *Client) ServiceSpec(ctx context.Context) (*ServiceSpec, error) {
	var spec ServiceSpec
	if err := c.get(ctx, "service_spec", c.cfg.SpecPath, &spec); err != nil {
		return nil, err
	}
	return &spec, nil
}

// SubmitJob submits a new backtest job.
func (c *Client) SubmitJob(ctx context.Context, body JobSubmission) (*SubmitReply, error) {
	var reply SubmitReply
	if err := c.post(ctx, "submit_job", c.cfg.JobsPath, body, &reply); err != nil {
		return nil, err
	}
	return &reply, nil
}

// JobStatus fetches the current status record for a job.
func (c *Client) JobStatus(ctx context.Context, jobID string) (*StatusDoc, error) {
	var doc StatusDoc
	path := fmt.Sprintf("%s/%s/status", c.cfg.JobsPath, url.PathEscape(jobID))
	if err := c.get(ctx, "job_status", path, &doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

// JobResults fetches the results document for a job. includeTrades and
// maxTrades bound the trade list only, never the summary payload.
func (c *Client) JobResults(ctx context.Context, jobID string, includeTrades bool, maxTrades int) (*ResultsDoc, error) {
	var doc ResultsDoc
	path := fmt.Sprintf("%s/%s/results?include_trades=%t&max_trades=%d",
		c.cfg.JobsPath, url.PathEscape(jobID), includeTrades, maxTrades)
	if err := c.get(ctx, "job_results", path, &doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

// CancelJob requests cancellation of a job. The request is best-effort; the
// authoritative status is only known via the next status fetch.
func (c *Client) CancelJob(ctx context.Context, jobID string) error {
	path := fmt.Sprintf("%s/%s/cancel", c.cfg.JobsPath, url.PathEscape(jobID))
	return c.post(ctx, "cancel_job", path, struct{}{}, nil)
}

// Count fetches a count endpoint used by readiness checks. The payload is
// interpreted loosely: {"count": n}, {"total": n} and a bare array all work.
func (c *Client) Count(ctx context.Context, path string) (int, error) {
	var raw json.RawMessage
	if err := c.get(ctx, "count", path, &raw); err != nil {
		return 0, err
	}
	return parseCount(raw)
}

func parseCount(raw json.RawMessage) (int, error) {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err == nil {
		for _, field := range []string{"count", "total", "length"} {
			if v, ok := obj[field]; ok {
				var n int
				if err := json.Unmarshal(v, &n); err == nil {
					return n, nil
				}
			}
		}
		for _, v := range obj {
			var arr []json.RawMessage
			if err := json.Unmarshal(v, &arr); err == nil {
				return len(arr), nil
			}
		}
		return 0, fmt.Errorf("no countable field in response")
	}
	var arr []json.RawMessage
	if err := json.Unmarshal(raw, &arr); err == nil {
		return len(arr), nil
	}
	return 0, fmt.Errorf("uncountable response payload")
}

func (c *Client) get(ctx context.Context, op, path string, target interface{}) error {
	return c.do(ctx, op, http.MethodGet, path, nil, target)
}

func (c *Client) post(ctx context.Context, op, path string, body, target interface{}) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}
	return c.do(ctx, op, http.MethodPost, path, data, target)
}

func (c *Client) do(ctx context.Context, op, method, path string, body []byte, target interface{}) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.cfg.BaseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())
	if c.auth != nil {
		c.auth.Attach(req)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	logging.LogAPICall(c.log, method, path, time.Since(start), err)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return errors.Wrapf(errors.ErrTimeout, "%s %s", method, path)
		}
		return errors.Wrapf(errors.ErrConnectionFailed, "%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.Wrapf(errors.ErrConnectionFailed, "%s %s: read body", method, path)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return errors.NewRemoteError(op, resp.StatusCode, truncate(string(data), 512))
	}

	if target == nil {
		return nil
	}
	if err := json.Unmarshal(data, target); err != nil {
		return fmt.Errorf("failed to parse %s response: %w", op, err)
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
