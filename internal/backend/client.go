// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/jeranaias/eyeq-tui/internal/config"
	"github.com/jeranaias/eyeq-tui/internal/model"
	"github.com/jeranaias/eyeq-tui/internal/util"
)

// =============================================================================
// CONSTANTS
// =============================================================================

const (
	// DefaultTimeout bounds non-streaming requests.
	DefaultTimeout = 60 * time.Second

	// MaxResponseSize caps non-streaming response bodies (10MB).
	MaxResponseSize = 10 * 1024 * 1024

	// MaxErrorBodySize caps how much of an error body is kept.
	MaxErrorBodySize = 4 * 1024

	// MaxFeedbackContent is how much of a message travels with feedback.
	MaxFeedbackContent = 500

	retryBaseDelay = 500 * time.Millisecond
	retryMaxDelay  = 8 * time.Second

	userAgent = "eyeq-tui/1.0"
)

// =============================================================================
// ERRORS
// =============================================================================

var (
	// ErrNotConfigured indicates no backend URL is set.
	ErrNotConfigured = errors.New("backend URL not configured")

	// ErrRateLimited indicates the backend returned 429.
	ErrRateLimited = errors.New("rate limited")

	// ErrEmptyStream indicates the stream ended without content or a done event.
	ErrEmptyStream = errors.New("stream ended without a response")

	// ErrIdleTimeout indicates no stream event arrived within the idle timeout.
	ErrIdleTimeout = errors.New("stream idle timeout")

	// ErrEmptyMaterial indicates a comprehensive review with no document text.
	ErrEmptyMaterial = errors.New("review material is empty")

	// ErrUnhealthy indicates the health endpoint answered but not "healthy".
	ErrUnhealthy = errors.New("backend unhealthy")
)

// StatusError is a non-2xx response. Message is the backend's error text.
type StatusError struct {
	Status  int
	Message string
}

// Error implements the error interface.
func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("backend error (HTTP %d)", e.Status)
	}
	return fmt.Sprintf("backend error (HTTP %d): %s", e.Status, e.Message)
}

// Is lets a 429 StatusError match ErrRateLimited.
func (e *StatusError) Is(target error) bool {
	return target == ErrRateLimited && e.Status == http.StatusTooManyRequests
}

// Retryable reports whether the request may succeed if repeated.
func (e *StatusError) Retryable() bool {
	return e.Status == http.StatusTooManyRequests || e.Status >= 500
}

// =============================================================================
// CLIENT
// =============================================================================

// Options configures a Client. Zero values fall back to defaults.
type Options struct {
	BaseURL      string
	AnalyzePath  string
	UploadPath   string
	FeedbackPath string
	HealthPath   string
	// ReviewPath and KnowledgePath serve the comprehensive review and
	// the regulatory knowledge search.
	ReviewPath    string
	KnowledgePath string

	RequestTimeout time.Duration
	// IdleTimeout settles a stream with ErrIdleTimeout when no bytes arrive
	// for this long. 0 disables the guard.
	IdleTimeout time.Duration
	MaxRetries  int
	// RateLimit is requests per second; 0 disables limiting.
	RateLimit float64

	// HTTPClient overrides the transport, mainly for tests.
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// OptionsFromConfig maps the [backend] config section to Options.
func OptionsFromConfig(cfg config.BackendConfig, logger *slog.Logger) Options {
	return Options{
		BaseURL:        cfg.URL,
		AnalyzePath:    cfg.AnalyzePath,
		UploadPath:     cfg.UploadPath,
		FeedbackPath:   cfg.FeedbackPath,
		HealthPath:     cfg.HealthPath,
		ReviewPath:     cfg.ReviewPath,
		KnowledgePath:  cfg.KnowledgePath,
		RequestTimeout: cfg.RequestTimeout(),
		IdleTimeout:    cfg.IdleTimeout(),
		MaxRetries:     cfg.MaxRetries,
		RateLimit:      cfg.RateLimitPerSec,
		Logger:         logger,
	}
}

// Client talks to the analysis backend. It is safe for concurrent use.
type Client struct {
	opts    Options
	http    *http.Client // non-streaming, bounded by RequestTimeout
	stream  *http.Client // streaming, bounded by context and idle timer
	limiter *rate.Limiter
	log     *slog.Logger
}

// New creates a Client.
func New(opts Options) *Client {
	if opts.AnalyzePath == "" {
		opts.AnalyzePath = "/api/analyze"
	}
	if opts.UploadPath == "" {
		opts.UploadPath = "/api/upload"
	}
	if opts.FeedbackPath == "" {
		opts.FeedbackPath = "/api/feedback"
	}
	if opts.HealthPath == "" {
		opts.HealthPath = "/api/health"
	}
	if opts.ReviewPath == "" {
		opts.ReviewPath = "/api/comprehensive-review"
	}
	if opts.KnowledgePath == "" {
		opts.KnowledgePath = "/api/knowledge"
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = DefaultTimeout
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	opts.BaseURL = strings.TrimRight(opts.BaseURL, "/")

	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	base := opts.HTTPClient
	if base == nil {
		base = &http.Client{
			Transport: &http.Transport{
				Proxy:               http.ProxyFromEnvironment,
				MaxIdleConns:        20,
				MaxIdleConnsPerHost: 4,
				IdleConnTimeout:     90 * time.Second,
				TLSHandshakeTimeout: 10 * time.Second,
			},
		}
	}

	c := &Client{
		opts:   opts,
		http:   &http.Client{Transport: base.Transport, Timeout: opts.RequestTimeout},
		stream: &http.Client{Transport: base.Transport},
		log:    logger.With("component", "backend"),
	}
	if opts.RateLimit > 0 {
		burst := int(opts.RateLimit)
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), burst)
	}
	return c
}

// BaseURL returns the configured backend URL.
func (c *Client) BaseURL() string {
	return c.opts.BaseURL
}

// IdleTimeout returns the stream idle timeout.
func (c *Client) IdleTimeout() time.Duration {
	return c.opts.IdleTimeout
}

func (c *Client) url(path string) string {
	return c.opts.BaseURL + path
}

// wait blocks until the rate limiter admits a request.
func (c *Client) wait(ctx context.Context) error {
	if c.limiter == nil {
		return nil
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}
	return nil
}

// =============================================================================
// RETRY LOGIC WITH EXPONENTIAL BACKOFF
// =============================================================================

// doWithRetry sends the request produced by build, retrying transport
// failures, 429 and 5xx. build is called per attempt so bodies are fresh.
// The caller owns the returned response body.
func (c *Client) doWithRetry(ctx context.Context, build func() (*http.Request, error)) (*http.Response, error) {
	if c.opts.BaseURL == "" {
		return nil, ErrNotConfigured
	}

	var lastErr error
	for attempt := 0; attempt <= c.opts.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := calculateBackoff(attempt)
			c.log.Debug("retrying request", "attempt", attempt, "delay", delay, "error", lastErr)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}

		if err := c.wait(ctx); err != nil {
			return nil, err
		}
		req, err := build()
		if err != nil {
			return nil, err
		}
		req.Header.Set("User-Agent", userAgent)

		start := time.Now()
		resp, err := c.http.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = fmt.Errorf("request failed: %w", err)
			continue
		}
		c.log.Debug("response", "method", req.Method, "url", req.URL.Path,
			"status", resp.StatusCode, "duration", time.Since(start))

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return resp, nil
		}

		statusErr := readStatusError(resp)
		resp.Body.Close()
		if !statusErr.Retryable() {
			return nil, statusErr
		}
		lastErr = statusErr
	}
	return nil, fmt.Errorf("max retries exceeded: %w", lastErr)
}

// calculateBackoff returns the delay before retry attempt n (n >= 1).
func calculateBackoff(attempt int) time.Duration {
	delay := retryBaseDelay * time.Duration(1<<uint(attempt-1))
	if delay > retryMaxDelay {
		delay = retryMaxDelay
	}
	return delay
}

// readStatusError converts a non-2xx response into a StatusError. JSON
// bodies of the form {"error": "..."} are unwrapped; anything else is kept
// as text.
func readStatusError(resp *http.Response) *StatusError {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, MaxErrorBodySize))
	msg := strings.TrimSpace(string(body))

	var apiErr struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Error != "" {
		msg = apiErr.Error
	}
	return &StatusError{Status: resp.StatusCode, Message: msg}
}

// readResponse reads a body with a size limit.
func readResponse(resp *http.Response) ([]byte, error) {
	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxResponseSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if len(body) > MaxResponseSize {
		return nil, fmt.Errorf("response exceeded maximum size of %d bytes", MaxResponseSize)
	}
	return body, nil
}

func (c *Client) postJSON(ctx context.Context, path string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}
	resp, err := c.doWithRetry(ctx, func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url(path), bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "application/json")
		return req, nil
	})
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return decodeInto(resp, out)
}

func decodeInto(resp *http.Response, out any) error {
	data, err := readResponse(resp)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}

// =============================================================================
// FEEDBACK
// =============================================================================

// FeedbackRequest is the body of POST /api/feedback.
type FeedbackRequest struct {
	MessageID      string         `json:"message_id"`
	MessageContent string         `json:"message_content"`
	FeedbackType   model.Feedback `json:"feedback_type"`
	ConversationID string         `json:"conversation_id"`
}

// Feedback records a liked/disliked verdict on an assistant message.
// MessageContent is trimmed to MaxFeedbackContent runes.
func (c *Client) Feedback(ctx context.Context, fb FeedbackRequest) error {
	if fb.MessageID == "" {
		return errors.New("feedback: message id is required")
	}
	if !fb.FeedbackType.Valid() {
		return fmt.Errorf("feedback: invalid type %q", fb.FeedbackType)
	}
	fb.MessageContent = util.TruncateRunes(fb.MessageContent, MaxFeedbackContent)

	if err := c.postJSON(ctx, c.opts.FeedbackPath, fb, nil); err != nil {
		return fmt.Errorf("feedback: %w", err)
	}
	return nil
}

// =============================================================================
// HEALTH
// =============================================================================

// HealthStatus is the body of GET /api/health.
type HealthStatus struct {
	Status    string `json:"status"`
	Agent     string `json:"agent,omitempty"`
	Database  string `json:"database,omitempty"`
	Error     string `json:"error,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`

	// Latency is measured client side.
	Latency time.Duration `json:"-"`
}

// Healthy reports whether the backend declared itself healthy.
func (h *HealthStatus) Healthy() bool {
	return strings.EqualFold(h.Status, "healthy") || strings.EqualFold(h.Status, "ok")
}

// Health queries the health endpoint. A reachable but unhealthy backend
// returns the status together with an error wrapping ErrUnhealthy.
func (c *Client) Health(ctx context.Context) (*HealthStatus, error) {
	start := time.Now()
	resp, err := c.doWithRetry(ctx, func() (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, c.url(c.opts.HealthPath), nil)
	})
	if err != nil {
		return nil, fmt.Errorf("health: %w", err)
	}
	defer resp.Body.Close()

	var status HealthStatus
	if err := decodeInto(resp, &status); err != nil {
		return nil, fmt.Errorf("health: %w", err)
	}
	status.Latency = time.Since(start)

	if !status.Healthy() {
		detail := status.Status
		if status.Error != "" {
			detail += ": " + status.Error
		}
		return &status, fmt.Errorf("%w: %s", ErrUnhealthy, detail)
	}
	return &status, nil
}
