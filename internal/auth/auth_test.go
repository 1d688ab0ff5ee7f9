package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"golang.org/x/oauth2"
)

func TestTokenCache_SaveAndLoad(t *testing.T) {
	tests := []struct {
		name     string
		saveFor  string
		loadFor  string
		wantNil  bool
		expireIn time.Duration
	}{
		{name: "same client", saveFor: "app", loadFor: "app", expireIn: time.Hour},
		{name: "other client", saveFor: "app", loadFor: "other", wantNil: true, expireIn: time.Hour},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cache := NewTokenCache(filepath.Join(t.TempDir(), "token.json"))
			token := &oauth2.Token{AccessToken: "test-access-token", TokenType: "Bearer", Expiry: time.Now().Add(tt.expireIn)}

			if err := cache.Save(tt.saveFor, token); err != nil {
				t.Fatalf("Save() error = %v", err)
			}
			loaded, err := cache.Load(tt.loadFor)
			if err != nil {
				t.Fatalf("Load() error = %v", err)
			}
			if tt.wantNil {
				if loaded != nil {
					t.Errorf("Load() = %v, want nil", loaded)
				}
				return
			}
			if loaded == nil || loaded.AccessToken != token.AccessToken || loaded.TokenType != token.TokenType {
				t.Errorf("Load() = %+v, want %+v", loaded, token)
			}
		})
	}
}

func TestTokenCache_LoadNonExistent(t *testing.T) {
	cache := NewTokenCache(filepath.Join(t.TempDir(), "nonexistent", "token.json"))
	token, err := cache.Load("app")
	if err != nil || token != nil {
		t.Errorf("Load() = %v, %v; want nil, nil", token, err)
	}
}

func TestTokenCache_SaveNilToken(t *testing.T) {
	cache := NewTokenCache(filepath.Join(t.TempDir(), "token.json"))
	if err := cache.Save("app", nil); err == nil {
		t.Error("Save(nil) should return error")
	}
}

func TestTokenCache_FilePermissionsAndDelete(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "token.json")
	cache := NewTokenCache(path)

	if err := cache.Save("app", &oauth2.Token{AccessToken: "secret-token"}); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Stat() error = %v", err)
	}
	if mode := info.Mode().Perm(); mode&0o077 != 0 {
		t.Errorf("File permissions = %o, want no group/other access", mode)
	}

	if err := cache.Delete(); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("Delete() did not remove token file")
	}
	if err := cache.Delete(); err != nil {
		t.Errorf("second Delete() error = %v, want nil", err)
	}
}

func TestNew_MissingCredentials(t *testing.T) {
	tests := []struct {
		name   string
		id     string
		secret string
	}{
		{"both missing", "", ""},
		{"id missing", "", "secret"},
		{"secret missing", "id", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New(tt.id, tt.secret); !errors.Is(err, ErrMissingCredentials) {
				t.Errorf("New() error = %v, want ErrMissingCredentials", err)
			}
		})
	}
}

func tokenServer(t *testing.T, calls *atomic.Int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := calls.Add(1)
		if err := r.ParseForm(); err != nil || r.Form.Get("grant_type") != "client_credentials" {
			http.Error(w, "bad grant", http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"access_token":"token-%d","token_type":"bearer","expires_in":3600}`, n)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestAuthenticator_TokenUsesCache(t *testing.T) {
	var calls atomic.Int32
	srv := tokenServer(t, &calls)
	cache := NewTokenCache(filepath.Join(t.TempDir(), "token.json"))

	first, err := New("app", "secret", WithTokenURL(srv.URL), WithCache(cache))
	if err != nil {
		t.Fatal(err)
	}
	tok, err := first.Token(context.Background())
	if err != nil {
		t.Fatalf("Token() error = %v", err)
	}
	if tok.AccessToken != "token-1" {
		t.Errorf("AccessToken = %q, want token-1", tok.AccessToken)
	}

	second, _ := New("app", "secret", WithTokenURL(srv.URL), WithCache(cache))
	tok, err = second.Token(context.Background())
	if err != nil {
		t.Fatalf("Token() error = %v", err)
	}
	if tok.AccessToken != "token-1" || calls.Load() != 1 {
		t.Errorf("cached token not reused: %q after %d calls", tok.AccessToken, calls.Load())
	}

	other, _ := New("other-app", "secret", WithTokenURL(srv.URL), WithCache(cache))
	if tok, _ = other.Token(context.Background()); tok.AccessToken != "token-2" {
		t.Errorf("other client got %q, want a fresh token", tok.AccessToken)
	}
}

func TestAuthenticator_ClientSendsBearer(t *testing.T) {
	var calls atomic.Int32
	tokens := tokenServer(t, &calls)

	var got string
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get("Authorization")
	}))
	defer api.Close()

	a, _ := New("app", "secret", WithTokenURL(tokens.URL))
	client, err := a.HTTPClient(context.Background())
	if err != nil {
		t.Fatalf("HTTPClient() error = %v", err)
	}
	resp, err := client.Get(api.URL)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()

	if got != "Bearer token-1" {
		t.Errorf("Authorization = %q, want Bearer token-1", got)
	}
}
