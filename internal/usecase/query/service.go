// Package query plans and executes retrieval for a session question: detect
// which candidates the question names, embed the question with the same model
// used at index time, and run a similarity search scoped to the session's
// documents.
package query

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/cvlens/cvlens/internal/domain"
)

// minNamePartLen guards against short name fragments ("Li", "Al") matching
// unrelated words in the question.
const minNamePartLen = 3

// Service retrieves session-scoped context for a question.
type Service struct {
	retriever    Retriever
	sessions     SessionReader
	embed        domain.Embedder
	topK         int
	embedTimeout time.Duration
	logger       *zap.Logger
}

// New creates a query service. A zero embedTimeout leaves the question embed
// bounded only by the request context.
func New(
	retriever Retriever, sessions SessionReader, embed domain.Embedder,
	topK int, embedTimeout time.Duration, logger *zap.Logger,
) *Service {
	return &Service{
		retriever:    retriever,
		sessions:     sessions,
		embed:        embed,
		topK:         topK,
		embedTimeout: embedTimeout,
		logger:       logger,
	}
}

// Retrieve returns the top sections relevant to the question among the
// session's documents. A session with no documents yields an empty result
// without touching the embedder or the store. A question that names one or
// more known candidates narrows the search to them; a question that names
// nobody recognizable searches the whole session.
func (s *Service) Retrieve(ctx context.Context, sessionID, question string) (domain.RetrievalResult, error) {
	hashes := s.sessions.ActiveHashes(sessionID)
	if len(hashes) == 0 {
		return domain.RetrievalResult{}, nil
	}

	matched := DetectCandidates(question, s.sessions.ActiveCandidates(sessionID))

	embedCtx := ctx
	if s.embedTimeout > 0 {
		var cancel context.CancelFunc
		embedCtx, cancel = context.WithTimeout(ctx, s.embedTimeout)
		defer cancel()
	}
	emb, err := s.embed.Embed(embedCtx, question)
	if err != nil {
		return domain.RetrievalResult{}, fmt.Errorf("vectorize question: %w", err)
	}

	sections, err := s.retriever.Retrieve(ctx, emb.Embedding, hashes, matched, s.topK)
	if err != nil {
		return domain.RetrievalResult{}, fmt.Errorf("retrieve sections: %w", err)
	}

	s.logger.Debug("Retrieval completed",
		zap.String("session_id", sessionID),
		zap.Int("documents", len(hashes)),
		zap.Strings("matched_candidates", matched),
		zap.Int("hits", len(sections)))

	return domain.RetrievalResult{
		Sections:          sections,
		MatchedCandidates: matched,
	}, nil
}

// DetectCandidates finds which of the known candidate names the question
// refers to. Matching is case-insensitive: either the full name appears in
// the question, or any single name part of at least minNamePartLen runes
// does. Placeholder names are never matched. No match means the question is
// not about anyone in particular, so the caller searches the whole session.
func DetectCandidates(question string, known []string) []string {
	q := strings.ToLower(question)

	var matched []string
	for _, name := range known {
		lowered := strings.ToLower(strings.TrimSpace(name))
		if lowered == "" || lowered == strings.ToLower(domain.CandidateUnknown) {
			continue
		}

		if strings.Contains(q, lowered) {
			matched = append(matched, name)
			continue
		}

		for _, part := range strings.Fields(lowered) {
			if len([]rune(part)) < minNamePartLen {
				continue
			}
			if strings.Contains(q, part) {
				matched = append(matched, name)
				break
			}
		}
	}
	return matched
}
