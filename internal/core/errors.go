package core

import "errors"

// Sentinel errors shared across the ingestion and query pipelines.
// Infrastructure errors are wrapped with %w so callers can test these
// with errors.Is at the HTTP boundary.
var (
	// ErrNotFound indicates a requested document or user does not exist.
	ErrNotFound = errors.New("not found")

	// ErrNoStoragePath indicates a document row exists but has no
	// storage object behind it, so there is nothing to process.
	ErrNoStoragePath = errors.New("document has no storage path")

	// ErrEmptyDocument indicates extraction produced no text.
	ErrEmptyDocument = errors.New("document contains no extractable text")

	// ErrAlreadyProcessing indicates another worker holds the claim on
	// the document.
	ErrAlreadyProcessing = errors.New("document is already being processed")
)
