package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/zmb3/spotify/v2"
	spotifyauth "github.com/zmb3/spotify/v2/auth"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

// ErrMissingCredentials is returned when the client id or secret is empty.
var ErrMissingCredentials = errors.New("missing Spotify client id or secret (set SPOTIFY_ID and SPOTIFY_SECRET)")

// Authenticator obtains app tokens with the client-credentials grant.
// Playlist reads need no user consent, so there is no redirect flow.
type Authenticator struct {
	config *clientcredentials.Config
	cache  *TokenCache
	logger *slog.Logger
}

// Option configures an Authenticator.
type Option func(*Authenticator)

// WithTokenURL overrides the token endpoint.
func WithTokenURL(url string) Option {
	return func(a *Authenticator) { a.config.TokenURL = url }
}

// WithCache sets where tokens are persisted. Without it tokens live in memory.
func WithCache(cache *TokenCache) Option {
	return func(a *Authenticator) { a.cache = cache }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Authenticator) { a.logger = logger }
}

// New creates an Authenticator. Returns ErrMissingCredentials if either
// credential is empty.
func New(clientID, clientSecret string, opts ...Option) (*Authenticator, error) {
	if clientID == "" || clientSecret == "" {
		return nil, ErrMissingCredentials
	}

	a := &Authenticator{
		config: &clientcredentials.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			TokenURL:     spotifyauth.TokenURL,
		},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// Token returns a valid access token, preferring the cached one.
func (a *Authenticator) Token(ctx context.Context) (*oauth2.Token, error) {
	if a.cache != nil {
		cached, err := a.cache.Load(a.config.ClientID)
		if err != nil {
			return nil, fmt.Errorf("loading cached token: %w", err)
		}
		if cached.Valid() {
			return cached, nil
		}
	}

	token, err := a.config.Token(ctx)
	if err != nil {
		return nil, fmt.Errorf("requesting client credentials token: %w", err)
	}

	if a.cache != nil {
		if err := a.cache.Save(a.config.ClientID, token); err != nil {
			// Log but don't fail, the token is usable.
			a.logger.Warn("failed to cache token", "path", a.cache.Path(), "error", err)
		}
	}
	return token, nil
}

// HTTPClient returns a client that attaches a fresh token to every request.
func (a *Authenticator) HTTPClient(ctx context.Context) (*http.Client, error) {
	token, err := a.Token(ctx)
	if err != nil {
		return nil, err
	}
	src := oauth2.ReuseTokenSource(token, &cachingSource{ctx: ctx, auth: a})
	return oauth2.NewClient(ctx, src), nil
}

// Client returns an authenticated Spotify API client.
func (a *Authenticator) Client(ctx context.Context) (*spotify.Client, error) {
	httpClient, err := a.HTTPClient(ctx)
	if err != nil {
		return nil, err
	}
	return spotify.New(httpClient, spotify.WithRetry(true)), nil
}

// Logout removes the cached token.
func (a *Authenticator) Logout() error {
	if a.cache == nil {
		return nil
	}
	return a.cache.Delete()
}

// cachingSource refreshes through Token so renewed tokens reach the cache.
type cachingSource struct {
	ctx  context.Context
	auth *Authenticator
}

func (s *cachingSource) Token() (*oauth2.Token, error) {
	return s.auth.Token(s.ctx)
}
