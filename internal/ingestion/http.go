package ingestion

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// HTTPHandler exposes the ingestion and lookup endpoints.
type HTTPHandler struct {
	service *Service
	logger  *zap.Logger
	router  chi.Router
}

// NewHTTPHandler constructs the HTTP handler and wires routes.
func NewHTTPHandler(service *Service, logger *zap.Logger) *HTTPHandler {
	h := &HTTPHandler{
		service: service,
		logger:  logger,
	}
	h.buildRouter()
	return h
}

func (h *HTTPHandler) buildRouter() {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(2 * time.Minute))

	r.Get("/healthz", h.handleHealth)
	r.Get("/image-url", h.handleImageURL)
	r.Post("/upload", h.handleUpload)

	h.router = r
}

// Router exposes the configured chi router.
func (h *HTTPHandler) Router() http.Handler {
	return h.router
}

func (h *HTTPHandler) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
	})
}

func (h *HTTPHandler) handleImageURL(w http.ResponseWriter, r *http.Request) {
	bucket := r.URL.Query().Get("bucket")
	image := r.URL.Query().Get("image")

	servingURL, err := h.service.Lookup(r.Context(), bucket, image)
	if err != nil {
		h.writeServiceError(w, "lookup failed", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"image_url": servingURL,
	})
}

type uploadBody struct {
	Folder   string `json:"folder"`
	Project  string `json:"project"`
	ImageURL string `json:"image_url"`
	URL      string `json:"url"`
}

func (h *HTTPHandler) handleUpload(w http.ResponseWriter, r *http.Request) {
	apiKey := r.Header.Get("X-API-Key")
	if apiKey == "" {
		apiKey = r.URL.Query().Get("api_key")
	}

	var folder, imageURL string
	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		var body uploadBody
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		folder = firstNonEmpty(body.Folder, body.Project)
		imageURL = firstNonEmpty(body.ImageURL, body.URL)
	} else {
		if err := r.ParseForm(); err != nil {
			writeError(w, http.StatusBadRequest, "invalid form body")
			return
		}
		folder = firstNonEmpty(r.PostFormValue("folder"), r.PostFormValue("project"))
		imageURL = firstNonEmpty(r.PostFormValue("image_url"), r.PostFormValue("url"))
	}

	// The pipeline runs to completion server-side even if the client goes
	// away mid-request; each stage still carries its own deadline.
	result, err := h.service.Ingest(context.WithoutCancel(r.Context()), IngestRequest{
		APIKey:    apiKey,
		Folder:    folder,
		SourceURL: imageURL,
	})
	if err != nil {
		h.writeServiceError(w, "upload failed", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"id":        result.ID,
		"image_url": result.ServingURL,
		"gcs_path":  result.StoragePath,
		"filename":  result.Filename,
	})
}

func (h *HTTPHandler) writeServiceError(w http.ResponseWriter, msg string, err error) {
	var svcErr *Error
	if !errors.As(err, &svcErr) {
		h.logger.Error(msg, zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	fields := []zap.Field{
		zap.Error(err),
		zap.String("kind", string(svcErr.Kind)),
	}
	if svcErr.StoragePath != "" {
		// Partial outcome: the object is in storage with no record.
		fields = append(fields, zap.String("storage_path", svcErr.StoragePath))
	}
	h.logger.Error(msg, fields...)

	writeError(w, svcErr.Status, svcErr.Message)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{
		"error": msg,
	})
}
