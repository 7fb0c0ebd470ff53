package ingest

import (
	"context"

	"github.com/cvlens/cvlens/internal/chunker"
	"github.com/cvlens/cvlens/internal/domain"
)

// Extractor turns an uploaded file into plain text.
type Extractor interface {
	Extract(ctx context.Context, filename string, data []byte) (string, error)
}

// Chunker structures raw text into labeled sections.
type Chunker interface {
	Chunk(ctx context.Context, rawText, nameHint string) (chunker.Result, error)
}

// Indexer defines the storage contract for document ingestion.
type Indexer interface {
	UpsertSections(ctx context.Context, doc domain.Document, sections []domain.Section) error
	Lookup(ctx context.Context, contentHash string) (candidateName string, found bool, err error)
	CountSections(ctx context.Context, contentHash string) (int, error)
}

// SessionRegistry tracks which documents belong to which session.
type SessionRegistry interface {
	Register(sessionID, contentHash, candidateName string)
	Has(sessionID, contentHash string) bool
}
