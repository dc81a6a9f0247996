// Package recordstore persists one metadata record per ingested image in a
// Firestore collection.
package recordstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/google/uuid"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// ErrNotFound reports that no record matches the query.
var ErrNotFound = errors.New("recordstore: record not found")

// Record is the durable metadata for one successfully ingested image. It is
// created exactly once, after the object is written and its serving URL
// resolved, and is read-only thereafter.
type Record struct {
	ID          string    `json:"id" firestore:"id"`
	Filename    string    `json:"filename" firestore:"filename"`
	Folder      string    `json:"folder" firestore:"folder"`
	Bucket      string    `json:"bucket" firestore:"bucket"`
	StoragePath string    `json:"storage_path" firestore:"storagePath"`
	ServingURL  string    `json:"serving_url" firestore:"servingUrl"`
	SourceURL   string    `json:"source_url,omitempty" firestore:"sourceUrl"`
	ContentType string    `json:"content_type,omitempty" firestore:"contentType"`
	CreatedAt   time.Time `json:"created_at" firestore:"createdAt"`
	UpdatedAt   time.Time `json:"updated_at" firestore:"updatedAt"`
}

// Store is the capability the ingestion pipeline expects from the record
// store.
type Store interface {
	Create(ctx context.Context, rec *Record) (string, error)
	GetByStoragePath(ctx context.Context, storagePath string) (*Record, error)
	Close() error
}

// Config locates the Firestore project and collection.
type Config struct {
	ProjectID       string
	Collection      string
	CredentialsFile string
}

type firestoreStore struct {
	client     *firestore.Client
	collection string
}

// New connects to Firestore and returns a Store backed by cfg.Collection.
func New(ctx context.Context, cfg Config) (Store, error) {
	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}

	client, err := firestore.NewClient(ctx, cfg.ProjectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("init firestore client: %w", err)
	}

	return &firestoreStore{client: client, collection: cfg.Collection}, nil
}

// Create persists rec as a single new document and returns the assigned
// identifier. The write is atomic; a rejected write leaves no document.
func (s *firestoreStore) Create(ctx context.Context, rec *Record) (string, error) {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	rec.CreatedAt = now
	rec.UpdatedAt = now

	if _, err := s.client.Collection(s.collection).Doc(rec.ID).Create(ctx, rec); err != nil {
		return "", fmt.Errorf("create ingestion record: %w", err)
	}
	return rec.ID, nil
}

// GetByStoragePath fetches the record for a stored object, or ErrNotFound.
func (s *firestoreStore) GetByStoragePath(ctx context.Context, storagePath string) (*Record, error) {
	iter := s.client.Collection(s.collection).
		Where("storagePath", "==", storagePath).
		Limit(1).
		Documents(ctx)
	defer iter.Stop()

	doc, err := iter.Next()
	if err != nil {
		if err == iterator.Done || status.Code(err) == codes.NotFound {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("query ingestion record: %w", err)
	}

	var rec Record
	if err := doc.DataTo(&rec); err != nil {
		return nil, fmt.Errorf("decode ingestion record: %w", err)
	}
	return &rec, nil
}

func (s *firestoreStore) Close() error {
	return s.client.Close()
}
