package query

import (
	"context"

	"github.com/cvlens/cvlens/internal/domain"
)

// Retriever defines the storage contract for scoped similarity search.
type Retriever interface {
	Retrieve(
		ctx context.Context, vector []float32,
		contentHashes, candidateNames []string, topK int,
	) ([]domain.RetrievedSection, error)
}

// SessionReader exposes the documents and candidates active in a session.
type SessionReader interface {
	ActiveHashes(sessionID string) []string
	ActiveCandidates(sessionID string) []string
}
