package ingestion

import "fmt"

// Kind is the closed set of caller-visible failure classes. The pipeline
// crosses three independent external failure domains (network fetch, object
// store, serving resolver); every internal failure is mapped onto exactly
// one Kind so callers can tell which collaborator misbehaved.
type Kind string

const (
	KindInvalidRequest       Kind = "invalid_request"
	KindUnauthorized         Kind = "unauthorized"
	KindServerMisconfigured  Kind = "server_misconfigured"
	KindDownloadFailed       Kind = "download_failed"
	KindDownloadTimeout      Kind = "download_timeout"
	KindStorageWriteFailed   Kind = "storage_write_failed"
	KindAccessDenied         Kind = "access_denied"
	KindObjectNotFound       Kind = "object_not_found"
	KindTransformationFailed Kind = "transformation_failed"
	KindResolverUnavailable  Kind = "resolver_unavailable"
	KindPersistenceFailed    Kind = "persistence_failed"
)

// Error is the only error type the pipeline returns. Message is safe to
// show callers; Err holds the underlying cause for logs only.
//
// StoragePath distinguishes partial outcomes: when non-empty, the object
// was durably written before the failure and now sits in storage with no
// metadata record. No compensating delete is attempted.
type Error struct {
	Kind        Kind
	Status      int
	Message     string
	StoragePath string
	Err         error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(kind Kind, status int, message string, cause error) *Error {
	return &Error{Kind: kind, Status: status, Message: message, Err: cause}
}
