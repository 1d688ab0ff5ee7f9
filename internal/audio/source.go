package audio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/avast/retry-go"
)

const (
	defaultFetchAttempts = 3
	maxSourceBytes       = 256 << 20
)

// StatusError is returned when a remote source answers with a non-200 status.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("fetching %s: status %d", e.URL, e.StatusCode)
}

// Opener resolves source references to raw bytes.
// Local paths are read from disk, relative ones under AudioDir.
// http(s) URLs are fetched and retried on transport errors and 5xx answers.
type Opener struct {
	AudioDir   string
	HTTPClient *http.Client
	Attempts   uint
	RetryDelay time.Duration
}

// NewOpener creates an Opener rooted at audioDir.
func NewOpener(audioDir string, attempts uint) *Opener {
	return &Opener{
		AudioDir:   audioDir,
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
		Attempts:   attempts,
		RetryDelay: 500 * time.Millisecond,
	}
}

// Load opens a source and decodes it.
func (o *Opener) Load(ctx context.Context, source string) (Waveform, error) {
	name, data, err := o.Open(ctx, source)
	if err != nil {
		return Waveform{}, err
	}
	return Decode(name, data)
}

// Open returns a name usable for format detection and the source bytes.
func (o *Opener) Open(ctx context.Context, source string) (string, []byte, error) {
	if source == "" {
		return "", nil, errors.New("empty source reference")
	}
	if isRemote(source) {
		data, err := o.fetch(ctx, source)
		if err != nil {
			return "", nil, err
		}
		u, _ := url.Parse(source)
		return path.Base(u.Path), data, nil
	}

	p := source
	if !filepath.IsAbs(p) && o.AudioDir != "" {
		p = filepath.Join(o.AudioDir, p)
	}
	data, err := os.ReadFile(p)
	if err != nil {
		return "", nil, fmt.Errorf("reading %s: %w", p, err)
	}
	return p, data, nil
}

func (o *Opener) fetch(ctx context.Context, source string) ([]byte, error) {
	attempts := o.Attempts
	if attempts == 0 {
		attempts = defaultFetchAttempts
	}
	client := o.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, source, nil)
	if err != nil {
		return nil, fmt.Errorf("building request for %s: %w", source, err)
	}

	var data []byte
	err = retry.Do(
		func() error {
			resp, err := client.Do(req)
			if err != nil {
				return err
			}
			defer resp.Body.Close()

			if resp.StatusCode != http.StatusOK {
				return &StatusError{URL: source, StatusCode: resp.StatusCode}
			}
			data, err = io.ReadAll(io.LimitReader(resp.Body, maxSourceBytes))
			return err
		},
		retry.Context(ctx),
		retry.Attempts(attempts),
		retry.Delay(o.RetryDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(isRetryable),
	)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", source, err)
	}
	return data, nil
}

func isRemote(source string) bool {
	return strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://")
}

func isRetryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.StatusCode >= 500
	}
	return true
}
