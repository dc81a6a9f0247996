package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
)

// ErrTimeout reports that the remote server did not deliver the full
// response within the configured deadline.
var ErrTimeout = errors.New("fetch: deadline exceeded")

const defaultContentType = "image/jpeg"

// Config controls the fetcher's outbound HTTP behaviour.
type Config struct {
	// MaxBodyBytes caps the response body size; zero means no cap.
	MaxBodyBytes int64
}

// Result is a fully downloaded remote image.
type Result struct {
	Body        []byte
	ContentType string
}

// Fetcher downloads remote images over HTTP.
type Fetcher struct {
	client       *http.Client
	maxBodyBytes int64
}

// New constructs a Fetcher. The per-request deadline comes from the caller's
// context, so the underlying client carries no timeout of its own.
func New(cfg Config) *Fetcher {
	return &Fetcher{
		client:       &http.Client{},
		maxBodyBytes: cfg.MaxBodyBytes,
	}
}

// Fetch downloads the resource at url and reports its bytes and content
// type. A missing Content-Type header defaults to image/jpeg. Deadline
// expiry is distinguishable via errors.Is(err, ErrTimeout).
func (f *Fetcher) Fetch(ctx context.Context, url string) (*Result, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		if isTimeout(err) {
			return nil, fmt.Errorf("%w: %s", ErrTimeout, url)
		}
		return nil, fmt.Errorf("fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("fetch %s: unexpected status %d", url, resp.StatusCode)
	}

	reader := resp.Body
	if f.maxBodyBytes > 0 {
		reader = http.MaxBytesReader(nil, resp.Body, f.maxBodyBytes)
	}

	body, err := io.ReadAll(reader)
	if err != nil {
		if isTimeout(err) {
			return nil, fmt.Errorf("%w: %s", ErrTimeout, url)
		}
		return nil, fmt.Errorf("read body of %s: %w", url, err)
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = defaultContentType
	}

	return &Result{Body: body, ContentType: contentType}, nil
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
