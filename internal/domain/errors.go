package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrExtractionFailed signals unreadable upload bytes. Fatal to that
	// document's ingestion only.
	ErrExtractionFailed = errors.New("text extraction failed")
	// ErrIndexingFailed signals an embedding or store-write failure during
	// ingestion. Safe to retry wholesale: section writes are idempotent.
	ErrIndexingFailed = errors.New("indexing failed")
	// ErrSynthesisFailed signals that the language model could not produce
	// an answer or report. Never papered over with a guessed answer.
	ErrSynthesisFailed = errors.New("answer synthesis failed")
	// ErrEmbeddingProviderError signals an embedding provider failure.
	ErrEmbeddingProviderError = errors.New("embedding provider error")
	// ErrModelProviderError signals a language model provider failure.
	ErrModelProviderError = errors.New("model provider error")
	// ErrVectorDimMismatch signals a vector dimension mismatch.
	ErrVectorDimMismatch = errors.New("vector dimension mismatch")
	// ErrDocumentNotFound signals a missing document.
	ErrDocumentNotFound = errors.New("document not found")
	// ErrEmptyDocument signals an upload with no extractable text.
	ErrEmptyDocument = errors.New("document has no text content")
)

// ScoreInvalidError reports a job-fit match score that is non-numeric or
// outside [0,100]. It is a synthesis failure, never silently clamped.
type ScoreInvalidError struct {
	Raw string
}

func (e *ScoreInvalidError) Error() string {
	return fmt.Sprintf("%s: invalid match score %q", ErrSynthesisFailed.Error(), e.Raw)
}

func (e *ScoreInvalidError) Unwrap() error { return ErrSynthesisFailed }

// NewScoreInvalid creates a score validation error.
func NewScoreInvalid(raw string) error {
	return &ScoreInvalidError{Raw: raw}
}
