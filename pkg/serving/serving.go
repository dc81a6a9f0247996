// Package serving wraps the external image-serving collaborator that turns
// a stored object into a long-lived, client-consumable URL.
package serving

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// The resolver's failure surface is closed: every failure maps onto exactly
// one of these sentinels and callers may match with errors.Is.
var (
	// ErrAccessDenied means the serving system lacks permission to read
	// the object. A configuration problem, not a fault of the request.
	ErrAccessDenied = errors.New("serving: access denied")

	// ErrObjectNotFound means no object exists at the given path.
	ErrObjectNotFound = errors.New("serving: object not found")

	// ErrTransformationFailed means the object exists but cannot be
	// turned into a servable representation (oversized, unsupported
	// format, or registered by a conflicting owner). Not recoverable
	// without re-uploading through a different path.
	ErrTransformationFailed = errors.New("serving: transformation failed")

	// ErrUnavailable covers every other failure mode of the collaborator.
	ErrUnavailable = errors.New("serving: resolver unavailable")
)

// Config locates the resolver service.
type Config struct {
	Endpoint string
}

// Resolver is an HTTP client for the serving-URL service.
type Resolver struct {
	endpoint string
	client   *http.Client
}

// New constructs a Resolver for the given endpoint.
func New(cfg Config) *Resolver {
	return &Resolver{
		endpoint: strings.TrimRight(cfg.Endpoint, "/"),
		client:   &http.Client{},
	}
}

// Resolve asks the serving system for a servable URL for the object at
// storagePath (bucket/folder/filename). The caller's context bounds the
// call.
func (r *Resolver) Resolve(ctx context.Context, storagePath string) (string, error) {
	u := fmt.Sprintf("%s/v1/serving-url?path=%s", r.endpoint, url.QueryEscape(storagePath))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusUnauthorized, http.StatusForbidden:
		return "", fmt.Errorf("%w: %s", ErrAccessDenied, storagePath)
	case http.StatusNotFound:
		return "", fmt.Errorf("%w: %s", ErrObjectNotFound, storagePath)
	case http.StatusBadRequest, http.StatusUnsupportedMediaType, http.StatusUnprocessableEntity:
		return "", fmt.Errorf("%w: %s", ErrTransformationFailed, storagePath)
	default:
		return "", fmt.Errorf("%w: unexpected status %d", ErrUnavailable, resp.StatusCode)
	}

	var payload struct {
		ServingURL string `json:"serving_url"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", fmt.Errorf("%w: decode response: %v", ErrUnavailable, err)
	}
	if payload.ServingURL == "" {
		return "", fmt.Errorf("%w: empty serving_url in response", ErrUnavailable)
	}

	return payload.ServingURL, nil
}
