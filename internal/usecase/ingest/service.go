// Package ingest implements the document ingestion pipeline: extract text,
// fingerprint, structure into sections, vectorize, and index. Ingestion is
// idempotent on content: re-uploading a known document attaches it to the
// session without re-chunking or re-embedding.
package ingest

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/cvlens/cvlens/internal/domain"
	"github.com/cvlens/cvlens/internal/fingerprint"
)

// Status describes how a document entered the session.
type Status string

const (
	// StatusIndexed means the document was chunked, embedded, and written.
	StatusIndexed Status = "indexed"
	// StatusAlreadyInSession means the same content was uploaded to this
	// session before; nothing was written.
	StatusAlreadyInSession Status = "already_in_session"
	// StatusAlreadyIndexed means the content was indexed by an earlier
	// session; it was attached to this session without reprocessing.
	StatusAlreadyIndexed Status = "already_indexed"
)

// Outcome is the per-document ingestion result.
type Outcome struct {
	ContentHash   string
	CandidateName string
	SectionCount  int
	Status        Status
	Degraded      bool
}

// Service orchestrates the ingestion pipeline.
type Service struct {
	extract      Extractor
	chunk        Chunker
	embed        domain.Embedder
	index        Indexer
	sessions     SessionRegistry
	dimensions   int
	embedTimeout time.Duration

	sectionsIndexed prometheus.Counter
	logger          *zap.Logger
}

// New creates an ingestion service. sectionsIndexed may be nil; a zero
// embedTimeout leaves embedding bounded only by the request context.
func New(
	extract Extractor, chunk Chunker, embed domain.Embedder,
	index Indexer, sessions SessionRegistry,
	dimensions int, embedTimeout time.Duration,
	sectionsIndexed prometheus.Counter, logger *zap.Logger,
) *Service {
	return &Service{
		extract:         extract,
		chunk:           chunk,
		embed:           embed,
		index:           index,
		sessions:        sessions,
		dimensions:      dimensions,
		embedTimeout:    embedTimeout,
		sectionsIndexed: sectionsIndexed,
		logger:          logger,
	}
}

// Ingest processes one uploaded file for a session. The content hash is
// computed over the raw file bytes, so the same file under a different name
// is still the same document.
func (s *Service) Ingest(ctx context.Context, sessionID, filename string, data []byte) (Outcome, error) {
	text, err := s.extract.Extract(ctx, filename, data)
	if err != nil {
		return Outcome{}, fmt.Errorf("extract %q: %w", filename, err)
	}

	hash := fingerprint.Sum(data)

	if s.sessions.Has(sessionID, hash) {
		name, found, err := s.index.Lookup(ctx, hash)
		if err != nil {
			return Outcome{}, fmt.Errorf("lookup %s: %w", hash, err)
		}
		if !found {
			// Session knows the hash but the index lost it, e.g. the index
			// was recreated while sessions stayed in memory.
			return Outcome{}, fmt.Errorf("%w: %s", domain.ErrDocumentNotFound, hash)
		}
		count, err := s.index.CountSections(ctx, hash)
		if err != nil {
			return Outcome{}, fmt.Errorf("count sections %s: %w", hash, err)
		}
		return Outcome{
			ContentHash:   hash,
			CandidateName: name,
			SectionCount:  count,
			Status:        StatusAlreadyInSession,
		}, nil
	}

	name, found, err := s.index.Lookup(ctx, hash)
	if err != nil {
		return Outcome{}, fmt.Errorf("lookup %s: %w", hash, err)
	}
	if found {
		count, err := s.index.CountSections(ctx, hash)
		if err != nil {
			return Outcome{}, fmt.Errorf("count sections %s: %w", hash, err)
		}
		s.sessions.Register(sessionID, hash, name)
		s.logger.Info("Document already indexed, attached to session",
			zap.String("content_hash", hash),
			zap.String("session_id", sessionID))
		return Outcome{
			ContentHash:   hash,
			CandidateName: name,
			SectionCount:  count,
			Status:        StatusAlreadyIndexed,
		}, nil
	}

	result, err := s.chunk.Chunk(ctx, text, filename)
	if err != nil {
		return Outcome{}, fmt.Errorf("chunk %s: %w", hash, err)
	}

	sections, err := s.embedSections(ctx, result.Sections)
	if err != nil {
		return Outcome{}, fmt.Errorf("embed sections %s: %w", hash, err)
	}

	doc := domain.Document{
		ContentHash:   hash,
		CandidateName: result.CandidateName,
		RawText:       text,
	}

	if err := s.index.UpsertSections(ctx, doc, sections); err != nil {
		return Outcome{}, fmt.Errorf("%w: upsert %s: %w", domain.ErrIndexingFailed, hash, err)
	}

	if s.sectionsIndexed != nil {
		s.sectionsIndexed.Add(float64(len(sections)))
	}

	s.sessions.Register(sessionID, hash, result.CandidateName)

	s.logger.Info("Document indexed",
		zap.String("content_hash", hash),
		zap.String("candidate", result.CandidateName),
		zap.Int("sections", len(sections)),
		zap.Bool("degraded", result.Degraded))

	return Outcome{
		ContentHash:   hash,
		CandidateName: result.CandidateName,
		SectionCount:  len(sections),
		Status:        StatusIndexed,
		Degraded:      result.Degraded,
	}, nil
}

// embedSections vectorizes all sections of one document, batching when the
// provider supports it. Every vector must match the configured dimensionality:
// a mismatch would silently poison similarity search.
func (s *Service) embedSections(ctx context.Context, sections []domain.Section) ([]domain.Section, error) {
	texts := make([]string, len(sections))
	for i, sec := range sections {
		texts[i] = sec.Text
	}

	if s.embedTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.embedTimeout)
		defer cancel()
	}

	var (
		res domain.BatchEmbeddingResult
		err error
	)
	if be, ok := s.embed.(domain.BatchEmbedder); ok {
		res, err = be.BatchEmbed(ctx, texts)
	} else {
		res, err = domain.BatchFallback(ctx, s.embed, texts)
	}
	if err != nil {
		return nil, err
	}

	if len(res.Embeddings) != len(sections) {
		return nil, fmt.Errorf("%w: got %d vectors for %d sections",
			domain.ErrIndexingFailed, len(res.Embeddings), len(sections))
	}

	out := make([]domain.Section, len(sections))
	for i, sec := range sections {
		if len(res.Embeddings[i]) != s.dimensions {
			return nil, fmt.Errorf("%w: section %d has %d dimensions, index expects %d",
				domain.ErrVectorDimMismatch, sec.OrderIndex, len(res.Embeddings[i]), s.dimensions)
		}
		sec.Vector = res.Embeddings[i]
		out[i] = sec
	}
	return out, nil
}
