// Package backend talks to the issue-processing backend over HTTP.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/iksnae/cs-assist/internal"
)

const (
	// IdempotencyHeader carries one key per ProcessIssue call, reused across retries.
	IdempotencyHeader = "Idempotency-Key"

	userAgent       = "cs-assist"
	maxResponseSize = 10 * 1024 * 1024
)

// Client calls the backend with a bounded per-attempt timeout and retry policy.
type Client struct {
	cfg        internal.APIConfig
	httpClient *http.Client
	newKey     func() string
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithKeyGenerator overrides idempotency key generation
func WithKeyGenerator(fn func() string) Option {
	return func(c *Client) { c.newKey = fn }
}

// NewClient creates a backend client from the API settings.
func NewClient(cfg internal.APIConfig, opts ...Option) *Client {
	c := &Client{
		cfg:        cfg,
		httpClient: &http.Client{},
		newKey:     uuid.NewString,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the configured backend base URL
func (c *Client) BaseURL() string {
	return c.cfg.BaseURL
}

// ProcessIssue forwards one question and returns either the decoded answer or
// the reason there is none.
func (c *Client) ProcessIssue(ctx context.Context, req IssueRequest) ProcessResult {
	body, err := json.Marshal(newProcessPayload(req))
	if err != nil {
		return failure(fmt.Errorf("failed to encode request: %w", err), nil)
	}

	headers := http.Header{}
	headers.Set(IdempotencyHeader, c.newKey())

	internal.Logger().Info().Str("project", req.ProjectID).Msg("Sending question to backend")

	raw, err := c.do(ctx, http.MethodPost, c.cfg.ProcessURL(), body, headers)
	if err != nil {
		return failure(err, nil)
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return failure(fmt.Errorf("%w: %v", ErrInvalidResponse, err), nil)
	}
	if !env.Success {
		return failure(&BackendError{Message: env.Error}, env.Details)
	}

	var data processData
	if len(env.Data) > 0 && string(env.Data) != "null" {
		if err := json.Unmarshal(env.Data, &data); err != nil {
			return failure(fmt.Errorf("%w: %v", ErrInvalidResponse, err), nil)
		}
	}

	return ProcessResult{Success: &ProcessSuccess{
		Answer:          data.CommentContent,
		Classification:  data.Classification,
		QualityScore:    data.QualityScore,
		ProcessingTime:  data.ProcessingTime,
		WorkflowID:      data.WorkflowID,
		IssueKey:        data.IssueKey,
		Source:          data.Source,
		ProcessingSteps: data.ProcessingSteps,
	}}
}

// CheckHealth queries the health endpoint. Failures are reported in the result, never returned.
func (c *Client) CheckHealth(ctx context.Context) HealthStatus {
	raw, err := c.do(ctx, http.MethodGet, c.cfg.HealthURL(), nil, nil)
	if err != nil {
		return HealthStatus{Healthy: false, Error: err.Error()}
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return HealthStatus{Healthy: false, Error: fmt.Sprintf("%v: %v", ErrInvalidResponse, err)}
	}

	status := HealthStatus{Healthy: env.Success, Data: map[string]interface{}{}}
	if len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, &status.Data); err != nil {
			internal.LogDebug("Ignoring health data from %s: %v", c.cfg.HealthURL(), err)
			status.Data = map[string]interface{}{}
		}
	}
	if s, ok := status.Data["status"].(string); ok {
		status.Status = s
	}
	if up, ok := status.Data["uptime"].(float64); ok {
		status.Uptime = time.Duration(up * float64(time.Second))
	}
	if !env.Success && env.Error != "" {
		status.Error = env.Error
	}
	return status
}

// SystemInfo fetches the info endpoint. Failures are reported in the result, never returned.
func (c *Client) SystemInfo(ctx context.Context) SystemInfo {
	raw, err := c.do(ctx, http.MethodGet, c.cfg.InfoURL(), nil, nil)
	if err != nil {
		return SystemInfo{Error: err.Error()}
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return SystemInfo{Error: fmt.Sprintf("%v: %v", ErrInvalidResponse, err)}
	}

	info := SystemInfo{Data: map[string]interface{}{}}
	if len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, &info.Data); err != nil {
			return SystemInfo{Error: fmt.Sprintf("%v: %v", ErrInvalidResponse, err)}
		}
	}
	return info
}

// do runs one logical call: up to MaxRetries+1 attempts, retrying only timeouts.
func (c *Client) do(ctx context.Context, method, url string, body []byte, headers http.Header) ([]byte, error) {
	log := internal.Logger().With().Str("method", method).Str("url", url).Logger()

	for attempt := 0; attempt <= c.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			log.Warn().Int("attempt", attempt).Int("max_retries", c.cfg.MaxRetries).Msg("Request timed out, retrying")
			select {
			case <-time.After(c.cfg.RetryDelay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		raw, err := c.attempt(ctx, method, url, body, headers)
		if err == nil {
			return raw, nil
		}
		if !errors.Is(err, ErrTimeout) {
			log.Debug().Err(err).Int("attempt", attempt).Msg("Request failed")
			return nil, err
		}
	}

	return nil, fmt.Errorf("%w: %w after %d retries", ErrRetriesExhausted, ErrTimeout, c.cfg.MaxRetries)
}

// attempt performs a single HTTP exchange under its own timeout.
func (c *Client) attempt(ctx context.Context, method, url string, body []byte, headers http.Header) ([]byte, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(attemptCtx, method, url, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	for k, v := range headers {
		req.Header[k] = v
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, c.classify(ctx, attemptCtx, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, c.classify(ctx, attemptCtx, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		protoErr := &ProtocolError{StatusCode: resp.StatusCode}
		var env envelope
		if json.Unmarshal(raw, &env) == nil {
			protoErr.Message = env.Error
			protoErr.Details = env.Details
		}
		return nil, protoErr
	}

	return raw, nil
}

// classify maps a transport error to the client's error taxonomy.
func (c *Client) classify(parent, attemptCtx context.Context, err error) error {
	if parent.Err() != nil {
		return parent.Err()
	}
	if errors.Is(attemptCtx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	return fmt.Errorf("%w: %s: %v", ErrBackendUnavailable, c.cfg.BaseURL, err)
}

func isCanceled(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
