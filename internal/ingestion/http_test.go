package ingestion

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/your-org/imagerelay/pkg/serving"
)

func newTestHandler(deps *testDeps, apiKey string) *HTTPHandler {
	return NewHTTPHandler(newTestService(deps, apiKey), zap.NewNop())
}

func doRequest(h *HTTPHandler, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.Router().ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]string {
	t.Helper()
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestHealthz(t *testing.T) {
	h := newTestHandler(newTestDeps(), testAPIKey)

	rec := doRequest(h, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decodeBody(t, rec)["status"])
}

func TestImageURLSuccess(t *testing.T) {
	deps := newTestDeps()
	h := newTestHandler(deps, testAPIKey)

	rec := doRequest(h, httptest.NewRequest(http.MethodGet, "/image-url?bucket=some-bucket&image=demo/pic.png", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Equal(t, "https://cdn.example.com/abc123", decodeBody(t, rec)["image_url"])
	assert.Equal(t, "some-bucket/demo/pic.png", deps.resolver.gotPath)
}

func TestImageURLMissingParams(t *testing.T) {
	tests := []struct {
		name   string
		target string
	}{
		{"no params", "/image-url"},
		{"missing image", "/image-url?bucket=some-bucket"},
		{"missing bucket", "/image-url?image=pic.png"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestHandler(newTestDeps(), testAPIKey)

			rec := doRequest(h, httptest.NewRequest(http.MethodGet, tt.target, nil))
			assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
			assert.NotEmpty(t, decodeBody(t, rec)["error"])
		})
	}
}

func TestImageURLResolverFailures(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"access denied", serving.ErrAccessDenied, http.StatusUnauthorized},
		{"not found", serving.ErrObjectNotFound, http.StatusNotFound},
		{"transformation failed", serving.ErrTransformationFailed, http.StatusBadRequest},
		{"unavailable", serving.ErrUnavailable, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			deps := newTestDeps()
			deps.resolver.err = tt.err
			h := newTestHandler(deps, testAPIKey)

			rec := doRequest(h, httptest.NewRequest(http.MethodGet, "/image-url?bucket=b&image=i.png", nil))
			assert.Equal(t, tt.status, rec.Code)
			assert.NotEmpty(t, decodeBody(t, rec)["error"])
		})
	}
}

func uploadJSONRequest(t *testing.T, apiKey string, payload map[string]string) *http.Request {
	t.Helper()
	body, err := json.Marshal(payload)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/upload", strings.NewReader(string(body)))
	req.Header.Set("Content-Type", "application/json")
	if apiKey != "" {
		req.Header.Set("X-API-Key", apiKey)
	}
	return req
}

func TestUploadSuccessJSON(t *testing.T) {
	deps := newTestDeps()
	h := newTestHandler(deps, testAPIKey)

	rec := doRequest(h, uploadJSONRequest(t, testAPIKey, map[string]string{
		"folder":    "demo",
		"image_url": "https://example.com/pic.png",
	}))
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	assert.Equal(t, "rec-1", body["id"])
	assert.Equal(t, "https://cdn.example.com/abc123", body["image_url"])
	assert.True(t, strings.HasSuffix(body["filename"], ".png"))
	assert.Equal(t, "test-bucket/demo/"+body["filename"], body["gcs_path"])
}

func TestUploadFieldAliases(t *testing.T) {
	deps := newTestDeps()
	h := newTestHandler(deps, testAPIKey)

	rec := doRequest(h, uploadJSONRequest(t, testAPIKey, map[string]string{
		"project": "demo",
		"url":     "https://example.com/pic.png",
	}))
	assert.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, deps.records.records, 1)
	assert.Equal(t, "demo", deps.records.records[0].Folder)
}

func TestUploadFormBody(t *testing.T) {
	deps := newTestDeps()
	h := newTestHandler(deps, testAPIKey)

	form := url.Values{}
	form.Set("folder", "demo")
	form.Set("image_url", "https://example.com/pic")
	req := httptest.NewRequest(http.MethodPost, "/upload", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("X-API-Key", testAPIKey)

	rec := doRequest(h, req)
	require.Equal(t, http.StatusOK, rec.Code)
	// No extension in the source URL, so the filename defaults to .jpg.
	assert.True(t, strings.HasSuffix(decodeBody(t, rec)["filename"], ".jpg"))
}

func TestUploadAPIKeyViaQueryParam(t *testing.T) {
	deps := newTestDeps()
	h := newTestHandler(deps, testAPIKey)

	form := url.Values{}
	form.Set("folder", "demo")
	form.Set("image_url", "https://example.com/pic.png")
	req := httptest.NewRequest(http.MethodPost, "/upload?api_key="+testAPIKey, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	rec := doRequest(h, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestUploadUnauthorized(t *testing.T) {
	h := newTestHandler(newTestDeps(), testAPIKey)

	rec := doRequest(h, uploadJSONRequest(t, "wrong-key", map[string]string{
		"folder":    "demo",
		"image_url": "https://example.com/pic.png",
	}))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestUploadServerMisconfigured(t *testing.T) {
	// No key configured server-side: 500 regardless of the supplied key.
	h := newTestHandler(newTestDeps(), "")

	rec := doRequest(h, uploadJSONRequest(t, "any-key", map[string]string{
		"folder":    "demo",
		"image_url": "https://example.com/pic.png",
	}))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestUploadMissingParams(t *testing.T) {
	tests := []struct {
		name    string
		payload map[string]string
	}{
		{"missing folder", map[string]string{"image_url": "https://example.com/pic.png"}},
		{"missing url", map[string]string{"folder": "demo"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestHandler(newTestDeps(), testAPIKey)

			rec := doRequest(h, uploadJSONRequest(t, testAPIKey, tt.payload))
			assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
		})
	}
}

func TestUploadInvalidJSON(t *testing.T) {
	h := newTestHandler(newTestDeps(), testAPIKey)

	req := httptest.NewRequest(http.MethodPost, "/upload", strings.NewReader("{not json"))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-Key", testAPIKey)

	rec := doRequest(h, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUploadResolverNotFoundAfterStore(t *testing.T) {
	deps := newTestDeps()
	deps.resolver.err = serving.ErrObjectNotFound
	h := newTestHandler(deps, testAPIKey)

	rec := doRequest(h, uploadJSONRequest(t, testAPIKey, map[string]string{
		"folder":    "demo",
		"image_url": "https://example.com/pic.png",
	}))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	// Object stored, no record: the documented partial-outcome window.
	assert.Len(t, deps.store.objects, 1)
	assert.Empty(t, deps.records.records)
}
