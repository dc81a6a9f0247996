package ingestion

import "time"

// IngestedEvent is emitted after an image is stored, resolved, and
// recorded. Publishing is best-effort and never fails the pipeline.
type IngestedEvent struct {
	ID          string    `json:"id"`
	Bucket      string    `json:"bucket"`
	Folder      string    `json:"folder"`
	Filename    string    `json:"filename"`
	StoragePath string    `json:"storage_path"`
	ServingURL  string    `json:"serving_url"`
	SourceURL   string    `json:"source_url,omitempty"`
	ContentType string    `json:"content_type,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}
