// Package auth obtains Spotify app tokens and caches them on disk.
package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/oauth2"
)

const (
	configDirName = "mood-classifier"
	tokenFileName = "spotify-token.json"
)

// TokenCache persists the app token together with the client id it was
// issued to, so switching credentials never reuses a foreign token.
type TokenCache struct {
	path string
}

type cachedToken struct {
	ClientID string        `json:"client_id"`
	Token    *oauth2.Token `json:"token"`
}

// DefaultTokenCache returns a TokenCache under the user config directory:
// <config dir>/mood-classifier/spotify-token.json
func DefaultTokenCache() (*TokenCache, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return nil, fmt.Errorf("getting user config dir: %w", err)
	}
	return &TokenCache{path: filepath.Join(configDir, configDirName, tokenFileName)}, nil
}

// NewTokenCache creates a TokenCache with a custom path.
func NewTokenCache(path string) *TokenCache {
	return &TokenCache{path: path}
}

// Path returns the file path where tokens are stored.
func (c *TokenCache) Path() string {
	return c.path
}

// Load returns the token cached for clientID.
// Returns (nil, nil) if there is no file or it belongs to another client.
func (c *TokenCache) Load(clientID string) (*oauth2.Token, error) {
	data, err := os.ReadFile(c.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading token file: %w", err)
	}

	var entry cachedToken
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, fmt.Errorf("parsing token file: %w", err)
	}
	if entry.ClientID != clientID {
		return nil, nil
	}
	return entry.Token, nil
}

// Save writes the token for clientID. The file is replaced atomically and
// is readable by the owner only.
func (c *TokenCache) Save(clientID string, token *oauth2.Token) error {
	if token == nil {
		return errors.New("cannot save nil token")
	}

	dir := filepath.Dir(c.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := json.MarshalIndent(cachedToken{ClientID: clientID, Token: token}, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding token: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+tokenFileName+".*")
	if err != nil {
		return fmt.Errorf("creating token file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing token file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("writing token file: %w", err)
	}
	if err := os.Rename(tmp.Name(), c.path); err != nil {
		return fmt.Errorf("replacing token file: %w", err)
	}
	return nil
}

// Delete removes the cached token file.
// Returns nil if the file does not exist.
func (c *TokenCache) Delete() error {
	err := os.Remove(c.path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("removing token file: %w", err)
	}
	return nil
}
