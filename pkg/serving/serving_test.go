package serving

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func resolverFor(t *testing.T, handler http.HandlerFunc) (*Resolver, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(Config{Endpoint: srv.URL}), srv
}

func TestResolveSuccess(t *testing.T) {
	var gotPath string
	r, _ := resolverFor(t, func(w http.ResponseWriter, req *http.Request) {
		gotPath = req.URL.Query().Get("path")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"serving_url": "https://cdn.example.com/abc123"}`))
	})

	url, err := r.Resolve(context.Background(), "bucket/demo/pic.png")
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/abc123", url)
	assert.Equal(t, "bucket/demo/pic.png", gotPath)
}

func TestResolveStatusClassification(t *testing.T) {
	tests := []struct {
		name   string
		status int
		want   error
	}{
		{"unauthorized", http.StatusUnauthorized, ErrAccessDenied},
		{"forbidden", http.StatusForbidden, ErrAccessDenied},
		{"not found", http.StatusNotFound, ErrObjectNotFound},
		{"bad request", http.StatusBadRequest, ErrTransformationFailed},
		{"unsupported media type", http.StatusUnsupportedMediaType, ErrTransformationFailed},
		{"unprocessable entity", http.StatusUnprocessableEntity, ErrTransformationFailed},
		{"internal error", http.StatusInternalServerError, ErrUnavailable},
		{"bad gateway", http.StatusBadGateway, ErrUnavailable},
		{"too many requests", http.StatusTooManyRequests, ErrUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, _ := resolverFor(t, func(w http.ResponseWriter, req *http.Request) {
				w.WriteHeader(tt.status)
			})

			_, err := r.Resolve(context.Background(), "bucket/pic.png")
			require.ErrorIs(t, err, tt.want)
		})
	}
}

func TestResolveTransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {}))
	srv.Close()

	_, err := New(Config{Endpoint: srv.URL}).Resolve(context.Background(), "bucket/pic.png")
	require.ErrorIs(t, err, ErrUnavailable)
}

func TestResolveMalformedResponse(t *testing.T) {
	r, _ := resolverFor(t, func(w http.ResponseWriter, req *http.Request) {
		w.Write([]byte("not json"))
	})

	_, err := r.Resolve(context.Background(), "bucket/pic.png")
	require.ErrorIs(t, err, ErrUnavailable)
}

func TestResolveEmptyServingURL(t *testing.T) {
	r, _ := resolverFor(t, func(w http.ResponseWriter, req *http.Request) {
		w.Write([]byte(`{"serving_url": ""}`))
	})

	_, err := r.Resolve(context.Background(), "bucket/pic.png")
	require.ErrorIs(t, err, ErrUnavailable)
}

func TestResolvePathIsEscaped(t *testing.T) {
	var rawQuery string
	r, _ := resolverFor(t, func(w http.ResponseWriter, req *http.Request) {
		rawQuery = req.URL.RawQuery
		w.Write([]byte(`{"serving_url": "https://cdn.example.com/x"}`))
	})

	_, err := r.Resolve(context.Background(), "bucket/folder with space/pic.png")
	require.NoError(t, err)
	assert.NotContains(t, rawQuery, " ")
}
