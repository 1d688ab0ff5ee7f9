// Package spotify imports playlist metadata from the Spotify Web API.
package spotify

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/zmb3/spotify/v2"
	"golang.org/x/time/rate"
)

const (
	maxItemsPerPage = 100
	defaultAttempts = 3
)

// Client wraps the Spotify API client with paging, rate limiting and retries.
type Client struct {
	api      *spotify.Client
	limiter  *rate.Limiter
	attempts uint
	delay    time.Duration
	audioDir string
	logger   *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithRate limits page requests to one per interval.
func WithRate(interval time.Duration) Option {
	return func(c *Client) { c.limiter = rate.NewLimiter(rate.Every(interval), 1) }
}

// WithAttempts sets how many times a failed page request is tried.
func WithAttempts(n uint) Option {
	return func(c *Client) { c.attempts = n }
}

// WithRetryDelay sets the base backoff between attempts.
func WithRetryDelay(d time.Duration) Option {
	return func(c *Client) { c.delay = d }
}

// WithAudioDir sets the directory manifest sources point into.
func WithAudioDir(dir string) Option {
	return func(c *Client) { c.audioDir = dir }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// New creates a new Spotify client wrapper.
// The underlying client should already be authenticated.
func New(api *spotify.Client, opts ...Option) *Client {
	c := &Client{
		api:      api,
		limiter:  rate.NewLimiter(rate.Every(100*time.Millisecond), 1),
		attempts: defaultAttempts,
		delay:    time.Second,
		audioDir: "data/audio",
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// retryable reports whether a request failed in a way worth repeating:
// rate limiting, server errors, and transport failures.
func retryable(err error) bool {
	if errors.Is(err, spotify.ErrNoMorePages) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var apiErr spotify.Error
	if errors.As(err, &apiErr) {
		return apiErr.Status == http.StatusTooManyRequests || apiErr.Status >= 500
	}
	return true
}
