package ingestion

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/your-org/imagerelay/pkg/fetch"
	"github.com/your-org/imagerelay/pkg/serving"
	"github.com/your-org/imagerelay/pkg/storage/objectstore"
	"github.com/your-org/imagerelay/pkg/storage/recordstore"
)

// Fetcher downloads a remote image. Satisfied by *fetch.Fetcher.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (*fetch.Result, error)
}

// Resolver maps a storage path to a serving URL. Satisfied by
// *serving.Resolver.
type Resolver interface {
	Resolve(ctx context.Context, storagePath string) (string, error)
}

// Publisher emits ingestion events. Satisfied by *kafka.Producer.
type Publisher interface {
	Publish(ctx context.Context, key []byte, value []byte, headers map[string]string) error
	Close(ctx context.Context) error
}

// Timeouts bounds each external call the pipeline makes. Every stage that
// leaves the process runs under its own deadline.
type Timeouts struct {
	Fetch   time.Duration
	Store   time.Duration
	Resolve time.Duration
	Record  time.Duration
	Publish time.Duration
}

// Params collects the collaborators the Service composes.
type Params struct {
	Store    objectstore.Client
	Records  recordstore.Store
	Fetcher  Fetcher
	Resolver Resolver
	Producer Publisher
	Logger   *zap.Logger
	APIKey   string
	Timeouts Timeouts
}

// Service runs the ingestion pipeline: fetch an external image, write it to
// the object store, resolve its serving URL, and record the result. It also
// answers serving-URL lookups for already-stored objects.
type Service struct {
	store    objectstore.Client
	records  recordstore.Store
	fetcher  Fetcher
	resolver Resolver
	producer Publisher
	logger   *zap.Logger
	apiKey   string
	timeouts Timeouts
}

// NewService constructs a Service.
func NewService(p Params) *Service {
	return &Service{
		store:    p.Store,
		records:  p.Records,
		fetcher:  p.Fetcher,
		resolver: p.Resolver,
		producer: p.Producer,
		logger:   p.Logger,
		apiKey:   p.APIKey,
		timeouts: p.Timeouts,
	}
}

// IngestRequest carries the caller-supplied inputs for one pipeline run.
type IngestRequest struct {
	APIKey    string
	Folder    string
	SourceURL string
}

// IngestResult is returned on full success.
type IngestResult struct {
	ID          string
	ServingURL  string
	StoragePath string
	Filename    string
}

// Ingest runs the pipeline to completion or to the first failure. Stages
// execute strictly in order and nothing is retried; a failure after the
// object write returns an *Error whose StoragePath names the orphaned
// object.
func (s *Service) Ingest(ctx context.Context, req IngestRequest) (*IngestResult, error) {
	if s.apiKey == "" {
		return nil, newError(KindServerMisconfigured, http.StatusInternalServerError,
			"API key not configured on server", nil)
	}
	if req.APIKey == "" || req.APIKey != s.apiKey {
		return nil, newError(KindUnauthorized, http.StatusUnauthorized,
			"invalid or missing API key", nil)
	}
	if req.Folder == "" {
		return nil, newError(KindInvalidRequest, http.StatusUnprocessableEntity,
			"missing `folder` or `project` parameter", nil)
	}
	if req.SourceURL == "" {
		return nil, newError(KindInvalidRequest, http.StatusUnprocessableEntity,
			"missing `image_url` or `url` parameter", nil)
	}

	filename := uniqueFilename(req.SourceURL)

	fetchCtx, cancel := context.WithTimeout(ctx, s.timeouts.Fetch)
	defer cancel()
	image, err := s.fetcher.Fetch(fetchCtx, req.SourceURL)
	if err != nil {
		if errors.Is(err, fetch.ErrTimeout) {
			return nil, newError(KindDownloadTimeout, http.StatusBadRequest,
				"timed out downloading image from URL", err)
		}
		return nil, newError(KindDownloadFailed, http.StatusBadRequest,
			"failed to download image from URL", err)
	}

	objectKey := req.Folder + "/" + filename
	bucket := s.store.Bucket()
	storagePath := bucket + "/" + objectKey

	storeCtx, cancel := context.WithTimeout(ctx, s.timeouts.Store)
	defer cancel()
	if err := s.store.Put(storeCtx, objectKey, image.Body, image.ContentType); err != nil {
		return nil, newError(KindStorageWriteFailed, http.StatusInternalServerError,
			"failed to write image to object storage", err)
	}

	resolveCtx, cancel := context.WithTimeout(ctx, s.timeouts.Resolve)
	defer cancel()
	servingURL, err := s.resolver.Resolve(resolveCtx, storagePath)
	if err != nil {
		resErr := classifyResolveError(err, true)
		resErr.StoragePath = storagePath
		return nil, resErr
	}

	rec := &recordstore.Record{
		Filename:    filename,
		Folder:      req.Folder,
		Bucket:      bucket,
		StoragePath: storagePath,
		ServingURL:  servingURL,
		SourceURL:   req.SourceURL,
		ContentType: image.ContentType,
	}

	recordCtx, cancel := context.WithTimeout(ctx, s.timeouts.Record)
	defer cancel()
	id, err := s.records.Create(recordCtx, rec)
	if err != nil {
		return nil, &Error{
			Kind:        KindPersistenceFailed,
			Status:      http.StatusInternalServerError,
			Message:     "uploaded and resolved but failed to record ingestion metadata",
			StoragePath: storagePath,
			Err:         err,
		}
	}

	s.publishIngested(ctx, id, rec)

	return &IngestResult{
		ID:          id,
		ServingURL:  servingURL,
		StoragePath: storagePath,
		Filename:    filename,
	}, nil
}

// Lookup maps an existing (bucket, object) pair to a serving URL without
// ingesting anything.
func (s *Service) Lookup(ctx context.Context, bucket, object string) (string, error) {
	if bucket == "" || object == "" {
		return "", newError(KindInvalidRequest, http.StatusUnprocessableEntity,
			"missing `bucket` or `image` parameter", nil)
	}

	resolveCtx, cancel := context.WithTimeout(ctx, s.timeouts.Resolve)
	defer cancel()
	servingURL, err := s.resolver.Resolve(resolveCtx, bucket+"/"+object)
	if err != nil {
		return "", classifyResolveError(err, false)
	}
	return servingURL, nil
}

// classifyResolveError maps the resolver's closed error set onto the
// pipeline taxonomy. uploaded selects the messages that tell callers the
// object already sits in storage even though resolution failed.
func classifyResolveError(err error, uploaded bool) *Error {
	switch {
	case errors.Is(err, serving.ErrAccessDenied):
		msg := "ensure the service account has access to the object in storage"
		if uploaded {
			msg = "uploaded but failed to get serving URL: ensure the service account has access to the object"
		}
		return newError(KindAccessDenied, http.StatusUnauthorized, msg, err)
	case errors.Is(err, serving.ErrObjectNotFound):
		msg := "the object was not found"
		if uploaded {
			msg = "uploaded but object not found when resolving serving URL"
		}
		return newError(KindObjectNotFound, http.StatusNotFound, msg, err)
	case errors.Is(err, serving.ErrTransformationFailed):
		msg := "there was a problem transforming the image for serving"
		if uploaded {
			msg = "uploaded but there was a problem transforming the image for serving"
		}
		return newError(KindTransformationFailed, http.StatusBadRequest, msg, err)
	default:
		msg := "the serving URL resolver is unavailable"
		if uploaded {
			msg = "uploaded but the serving URL resolver was unavailable"
		}
		return newError(KindResolverUnavailable, http.StatusInternalServerError, msg, err)
	}
}

// publishIngested emits the ingested event. Failure to publish is logged
// and swallowed: the record is already durable and callers must not see a
// successful ingestion reported as failed.
func (s *Service) publishIngested(ctx context.Context, id string, rec *recordstore.Record) {
	if s.producer == nil {
		return
	}

	event := IngestedEvent{
		ID:          id,
		Bucket:      rec.Bucket,
		Folder:      rec.Folder,
		Filename:    rec.Filename,
		StoragePath: rec.StoragePath,
		ServingURL:  rec.ServingURL,
		SourceURL:   rec.SourceURL,
		ContentType: rec.ContentType,
		CreatedAt:   rec.CreatedAt,
	}

	payload, err := json.Marshal(event)
	if err != nil {
		s.logger.Error("marshal ingested event", zap.Error(err), zap.String("record_id", id))
		return
	}

	headers := map[string]string{
		"record_id":  id,
		"event_type": "image.ingested",
	}

	publishCtx, cancel := context.WithTimeout(ctx, s.timeouts.Publish)
	defer cancel()
	if err := s.producer.Publish(publishCtx, []byte(id), payload, headers); err != nil {
		s.logger.Warn("publish ingested event",
			zap.Error(err),
			zap.String("record_id", id),
			zap.String("storage_path", rec.StoragePath))
	}
}

// Close releases underlying resources.
func (s *Service) Close(ctx context.Context) error {
	var errs []error
	if s.producer != nil {
		if err := s.producer.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("close producer: %w", err))
		}
	}
	if err := s.records.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close record store: %w", err))
	}
	if err := s.store.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close object store: %w", err))
	}
	return errors.Join(errs...)
}
