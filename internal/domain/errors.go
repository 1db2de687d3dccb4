package domain

import "github.com/m-mizutani/goerr/v2"

// Sentinel errors for the retrieval core. Callers dispatch with errors.Is.
var (
	// ErrInvalidInput marks a malformed ingest request (empty transcript,
	// missing identifying fields, out-of-order entries). Not retryable
	// without the caller fixing the input.
	ErrInvalidInput = goerr.New("invalid input")

	// ErrEmbeddingProvider marks a failed or unusable response from the
	// embedding provider. Retryable by the caller with backoff.
	ErrEmbeddingProvider = goerr.New("embedding provider failed")

	// ErrDimensionMismatch marks an embedding whose dimensionality disagrees
	// with the index's established dimensionality. Aborts the whole ingest.
	ErrDimensionMismatch = goerr.New("embedding dimension mismatch")

	// ErrIndexUnavailable marks persisted artifacts that are present but
	// unreadable. Recovery is a logged fallback to empty state.
	ErrIndexUnavailable = goerr.New("persisted index unavailable")

	// ErrAlreadyIndexed marks an ingest request for a video that already has
	// chunks in the index. There is no removal or update operation, so
	// re-ingesting would duplicate chunks.
	ErrAlreadyIndexed = goerr.New("video already indexed")

	// ErrOperationNotFound marks a status lookup for an unknown indexing
	// operation ID.
	ErrOperationNotFound = goerr.New("operation not found")
)
