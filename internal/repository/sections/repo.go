// Package sections stores CV sections as vector points and serves the
// filtered similarity search over them.
package sections

import (
	"context"
	"fmt"
	"strings"

	"github.com/cvlens/cvlens/internal/db"
	"github.com/cvlens/cvlens/internal/domain"
	"github.com/cvlens/cvlens/internal/domain/filter"
)

// Metadata field names indexed for exact equality filtering.
const (
	FieldContentHash        = "content_hash"
	FieldCandidateName      = "candidate_name"
	FieldCandidateNameLower = "candidate_name_lower"
	FieldSectionLabel       = "section_label"
	FieldOrderIndex         = "order_index"
	fieldContent            = "__content"
	fieldVector             = "__vector"
)

// store is the consumer interface for section storage (ISP).
type store interface {
	HSetMulti(ctx context.Context, items []db.HashSetItem) error
	Del(ctx context.Context, key string) error
	SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error)
	SearchCount(ctx context.Context, index string, filters filter.Expression) (int, error)
	SearchFirst(ctx context.Context, index string, filters filter.Expression, fields []string) (*db.SearchEntry, error)
}

// Repo persists and retrieves section points for one collection.
type Repo struct {
	store      store
	keyPrefix  string
	collection string
}

// New creates a section repository.
func New(s store, keyPrefix, collection string) *Repo {
	return &Repo{store: s, keyPrefix: keyPrefix, collection: collection}
}

// UpsertSections writes all of a document's sections in one pipelined call.
// Keys derive from (content hash, order index), so re-indexing the same
// document overwrites points instead of duplicating them.
func (r *Repo) UpsertSections(ctx context.Context, doc domain.Document, sections []domain.Section) error {
	if len(sections) == 0 {
		return nil
	}

	items := make([]db.HashSetItem, 0, len(sections))
	for _, sec := range sections {
		items = append(items, db.HashSetItem{
			Key:    r.pointKey(doc.ContentHash, sec.OrderIndex),
			Fields: buildPointFields(doc, sec),
		})
	}

	if err := r.store.HSetMulti(ctx, items); err != nil {
		return fmt.Errorf("upsert sections for %s: %w", doc.ContentHash, err)
	}
	return nil
}

// Lookup returns the candidate name stored for a content hash, if the
// document is already indexed. Used to register a known document into a new
// session without re-chunking it.
func (r *Repo) Lookup(ctx context.Context, contentHash string) (string, bool, error) {
	cond, err := filter.NewMatchAny(FieldContentHash, contentHash)
	if err != nil {
		return "", false, fmt.Errorf("build lookup filter: %w", err)
	}

	entry, err := r.store.SearchFirst(
		ctx, r.indexName(), filter.NewExpression(cond),
		[]string{FieldCandidateName},
	)
	if err != nil {
		return "", false, fmt.Errorf("lookup %s: %w", contentHash, err)
	}
	if entry == nil {
		return "", false, nil
	}

	name := entry.Fields[FieldCandidateName]
	if name == "" {
		name = domain.CandidateUnknown
	}
	return name, true, nil
}

// CountSections returns the number of indexed sections for a content hash.
func (r *Repo) CountSections(ctx context.Context, contentHash string) (int, error) {
	cond, err := filter.NewMatchAny(FieldContentHash, contentHash)
	if err != nil {
		return 0, fmt.Errorf("build count filter: %w", err)
	}

	n, err := r.store.SearchCount(ctx, r.indexName(), filter.NewExpression(cond))
	if err != nil {
		return 0, fmt.Errorf("count sections for %s: %w", contentHash, err)
	}
	return n, nil
}

// SearchKNN runs a filtered top-K similarity search and returns hits in the
// store's order. Ties keep the store's natural return order.
func (r *Repo) SearchKNN(
	ctx context.Context, vector []float32, filters filter.Expression, topK int,
) ([]domain.RetrievedSection, error) {
	q := &db.KNNQuery{
		IndexName: r.indexName(),
		Filters:   filters,
		Vector:    vector,
		K:         topK,
		ReturnFields: []string{
			fieldContent, FieldContentHash, FieldCandidateName,
			FieldSectionLabel, FieldOrderIndex, "__vector_score",
		},
	}

	sr, err := r.store.SearchKNN(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("search knn %s: %w", r.collection, err)
	}
	if sr == nil || sr.Total == 0 {
		return nil, nil
	}

	hits := make([]domain.RetrievedSection, 0, len(sr.Entries))
	for _, entry := range sr.Entries {
		hits = append(hits, entryToSection(entry))
	}
	return hits, nil
}

// Retrieve runs a similarity search scoped to a set of documents, optionally
// narrowed to specific candidates. Candidate names are matched against the
// lowercase tag, so callers pass names in any case.
func (r *Repo) Retrieve(
	ctx context.Context, vector []float32, contentHashes, candidateNames []string, topK int,
) ([]domain.RetrievedSection, error) {
	if len(contentHashes) == 0 {
		return nil, nil
	}

	conds := make([]filter.Condition, 0, 2)

	hashCond, err := filter.NewMatchAny(FieldContentHash, contentHashes...)
	if err != nil {
		return nil, fmt.Errorf("build hash filter: %w", err)
	}
	conds = append(conds, hashCond)

	if len(candidateNames) > 0 {
		lowered := make([]string, len(candidateNames))
		for i, name := range candidateNames {
			lowered[i] = strings.ToLower(strings.TrimSpace(name))
		}
		nameCond, err := filter.NewMatchAny(FieldCandidateNameLower, lowered...)
		if err != nil {
			return nil, fmt.Errorf("build candidate filter: %w", err)
		}
		conds = append(conds, nameCond)
	}

	return r.SearchKNN(ctx, vector, filter.NewExpression(conds...), topK)
}

// DeleteSections removes every stored section of a document and returns how
// many points were deleted. Point keys derive from (content hash, order
// index), so the section count enumerates them exactly.
func (r *Repo) DeleteSections(ctx context.Context, contentHash string) (int, error) {
	count, err := r.CountSections(ctx, contentHash)
	if err != nil {
		return 0, err
	}

	for i := 0; i < count; i++ {
		if err := r.store.Del(ctx, r.pointKey(contentHash, i)); err != nil {
			return i, fmt.Errorf("delete section %d of %s: %w", i, contentHash, err)
		}
	}
	return count, nil
}

func (r *Repo) pointKey(contentHash string, orderIndex int) string {
	return fmt.Sprintf("%s%s:%s:%d", r.keyPrefix, r.collection, contentHash, orderIndex)
}

func (r *Repo) indexName() string {
	return fmt.Sprintf("%s%s:idx", r.keyPrefix, r.collection)
}

// Definition builds the FT index definition for a section collection.
// One-time administrative setup, not part of the per-request path.
func Definition(keyPrefix, collection string, dim, hnswM, hnswEFConstruct int) (*db.IndexDefinition, error) {
	prefix := fmt.Sprintf("%s%s:", keyPrefix, collection)
	return db.NewIndex(fmt.Sprintf("%sidx", prefix)).
		Prefix(prefix).
		Tag(FieldContentHash).
		Tag(FieldCandidateName).
		Tag(FieldCandidateNameLower).
		Tag(FieldSectionLabel).
		Numeric(FieldOrderIndex).
		Vector(fieldVector, dim, db.VectorHNSW, db.DistanceCosine).
		HNSWParams(hnswM, hnswEFConstruct).
		Build()
}
