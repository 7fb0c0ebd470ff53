// Package extract defines the text-extraction collaborator contract and a
// plain-text implementation. Extraction runs once per upload, before the
// fingerprinter and chunker; a failure here short-circuits that document's
// ingestion so no partial document is ever indexed.
package extract

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/cvlens/cvlens/internal/domain"
)

// Extractor turns uploaded file bytes into plain text.
type Extractor interface {
	Extract(ctx context.Context, filename string, data []byte) (string, error)
}

// PlainText extracts text from UTF-8 text uploads. Binary formats (PDF and
// friends) are served by other Extractor implementations wired at the edge.
type PlainText struct{}

// NewPlainText creates a plain-text extractor.
func NewPlainText() *PlainText { return &PlainText{} }

// Extract validates and normalizes the upload as UTF-8 text.
func (*PlainText) Extract(_ context.Context, filename string, data []byte) (string, error) {
	if len(data) == 0 {
		return "", fmt.Errorf("%s: empty file: %w", filename, domain.ErrExtractionFailed)
	}
	if !utf8.Valid(data) {
		return "", fmt.Errorf("%s: not valid UTF-8 text: %w", filename, domain.ErrExtractionFailed)
	}

	text := strings.ReplaceAll(string(data), "\r\n", "\n")
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("%s: %w: %w", filename, domain.ErrEmptyDocument, domain.ErrExtractionFailed)
	}
	return text, nil
}
