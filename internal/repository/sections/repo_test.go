package sections

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/cvlens/cvlens/internal/db"
	"github.com/cvlens/cvlens/internal/domain"
	"github.com/cvlens/cvlens/internal/domain/filter"
)

// --- Mock store ---

type mockStore struct {
	hsetItems   []db.HashSetItem
	hsetErr     error
	knnQuery    *db.KNNQuery
	knnResult   *db.SearchResult
	knnErr      error
	countResult int
	countErr    error
	firstEntry  *db.SearchEntry
	firstErr    error
	firstFilter filter.Expression
	delKeys     []string
	delErr      error
}

func (m *mockStore) HSetMulti(_ context.Context, items []db.HashSetItem) error {
	m.hsetItems = items
	return m.hsetErr
}

func (m *mockStore) Del(_ context.Context, key string) error {
	if m.delErr != nil {
		return m.delErr
	}
	m.delKeys = append(m.delKeys, key)
	return nil
}

func (m *mockStore) SearchKNN(_ context.Context, q *db.KNNQuery) (*db.SearchResult, error) {
	m.knnQuery = q
	return m.knnResult, m.knnErr
}

func (m *mockStore) SearchCount(_ context.Context, _ string, _ filter.Expression) (int, error) {
	return m.countResult, m.countErr
}

func (m *mockStore) SearchFirst(
	_ context.Context, _ string, f filter.Expression, _ []string,
) (*db.SearchEntry, error) {
	m.firstFilter = f
	return m.firstEntry, m.firstErr
}

func testDoc() domain.Document {
	return domain.Document{
		ContentHash:   "hash-a",
		CandidateName: "Jane Roe",
		RawText:       "Jane Roe\nSkills: Go",
	}
}

func TestUpsertSections_DeterministicKeys(t *testing.T) {
	s := &mockStore{}
	repo := New(s, "cvlens:", "cv_sections")

	sections := []domain.Section{
		{DocumentHash: "hash-a", Label: domain.LabelSummary, OrderIndex: 0, Text: "Jane Roe", Vector: []float32{1, 0}},
		{DocumentHash: "hash-a", Label: domain.LabelSkills, OrderIndex: 1, Text: "Skills: Go", Vector: []float32{0, 1}},
	}

	if err := repo.UpsertSections(context.Background(), testDoc(), sections); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(s.hsetItems) != 2 {
		t.Fatalf("wrote %d items, want 2", len(s.hsetItems))
	}
	if s.hsetItems[0].Key != "cvlens:cv_sections:hash-a:0" {
		t.Errorf("key[0] = %q", s.hsetItems[0].Key)
	}
	if s.hsetItems[1].Key != "cvlens:cv_sections:hash-a:1" {
		t.Errorf("key[1] = %q", s.hsetItems[1].Key)
	}
}

func TestUpsertSections_IdempotentKeys(t *testing.T) {
	s := &mockStore{}
	repo := New(s, "cvlens:", "cv_sections")
	sections := []domain.Section{
		{OrderIndex: 0, Label: domain.LabelOther, Text: "full text", Vector: []float32{1}},
	}

	if err := repo.UpsertSections(context.Background(), testDoc(), sections); err != nil {
		t.Fatalf("first upsert: %v", err)
	}
	first := s.hsetItems[0].Key

	if err := repo.UpsertSections(context.Background(), testDoc(), sections); err != nil {
		t.Fatalf("second upsert: %v", err)
	}
	second := s.hsetItems[0].Key

	if first != second {
		t.Errorf("re-indexing must reuse keys: %q vs %q", first, second)
	}
}

func TestUpsertSections_Metadata(t *testing.T) {
	s := &mockStore{}
	repo := New(s, "cvlens:", "cv_sections")

	err := repo.UpsertSections(context.Background(), testDoc(), []domain.Section{
		{OrderIndex: 0, Label: domain.LabelSkills, Text: "Skills: Go", Vector: []float32{1, 0}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	fields := s.hsetItems[0].Fields
	if fields[FieldContentHash] != "hash-a" {
		t.Errorf("content_hash = %q", fields[FieldContentHash])
	}
	if fields[FieldCandidateName] != "Jane Roe" {
		t.Errorf("candidate_name = %q", fields[FieldCandidateName])
	}
	if fields[FieldCandidateNameLower] != "jane roe" {
		t.Errorf("candidate_name_lower = %q", fields[FieldCandidateNameLower])
	}
	if fields[FieldSectionLabel] != "Skills" {
		t.Errorf("section_label = %q", fields[FieldSectionLabel])
	}
	if len(fields[fieldVector]) != 8 {
		t.Errorf("vector bytes = %d, want 8 (2 float32)", len(fields[fieldVector]))
	}
}

func TestUpsertSections_WriteFailure(t *testing.T) {
	s := &mockStore{hsetErr: errors.New("connection reset")}
	repo := New(s, "cvlens:", "cv_sections")

	err := repo.UpsertSections(context.Background(), testDoc(), []domain.Section{
		{OrderIndex: 0, Text: "x", Vector: []float32{1}},
	})
	if err == nil || !strings.Contains(err.Error(), "hash-a") {
		t.Errorf("error should name the document hash, got %v", err)
	}
}

func TestLookup(t *testing.T) {
	t.Run("found", func(t *testing.T) {
		s := &mockStore{firstEntry: &db.SearchEntry{
			Key:    "cvlens:cv_sections:hash-a:0",
			Fields: map[string]string{FieldCandidateName: "Jane Roe"},
		}}
		repo := New(s, "cvlens:", "cv_sections")

		name, found, err := repo.Lookup(context.Background(), "hash-a")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !found || name != "Jane Roe" {
			t.Errorf("Lookup = (%q, %v), want (Jane Roe, true)", name, found)
		}
	})

	t.Run("missing", func(t *testing.T) {
		s := &mockStore{}
		repo := New(s, "cvlens:", "cv_sections")

		_, found, err := repo.Lookup(context.Background(), "hash-z")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if found {
			t.Error("missing hash reported as found")
		}
	})

	t.Run("blank name falls back to Unknown", func(t *testing.T) {
		s := &mockStore{firstEntry: &db.SearchEntry{Fields: map[string]string{}}}
		repo := New(s, "cvlens:", "cv_sections")

		name, found, err := repo.Lookup(context.Background(), "hash-a")
		if err != nil || !found {
			t.Fatalf("Lookup = (%v, %v)", found, err)
		}
		if name != domain.CandidateUnknown {
			t.Errorf("name = %q, want %q", name, domain.CandidateUnknown)
		}
	})
}

func TestSearchKNN_MapsEntries(t *testing.T) {
	s := &mockStore{knnResult: &db.SearchResult{
		Total: 1,
		Entries: []db.SearchEntry{{
			Key:   "cvlens:cv_sections:hash-a:1",
			Score: 0.91,
			Fields: map[string]string{
				fieldContent:       "Skills: Go, Kubernetes",
				FieldContentHash:   "hash-a",
				FieldCandidateName: "Jane Roe",
				FieldSectionLabel:  "Skills",
				FieldOrderIndex:    "1",
			},
		}},
	}}
	repo := New(s, "cvlens:", "cv_sections")

	hits, err := repo.SearchKNN(context.Background(), []float32{1, 0}, filter.Expression{}, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(hits) != 1 {
		t.Fatalf("got %d hits, want 1", len(hits))
	}

	hit := hits[0]
	if hit.DocumentHash != "hash-a" || hit.CandidateName != "Jane Roe" {
		t.Errorf("hit identity = %q/%q", hit.DocumentHash, hit.CandidateName)
	}
	if hit.Label != domain.LabelSkills || hit.OrderIndex != 1 {
		t.Errorf("hit section = %q/%d", hit.Label, hit.OrderIndex)
	}
	if hit.Score != 0.91 {
		t.Errorf("score = %v", hit.Score)
	}
	if s.knnQuery.K != 10 {
		t.Errorf("K = %d, want 10", s.knnQuery.K)
	}
}

func TestSearchKNN_EmptyResult(t *testing.T) {
	s := &mockStore{knnResult: &db.SearchResult{}}
	repo := New(s, "cvlens:", "cv_sections")

	hits, err := repo.SearchKNN(context.Background(), []float32{1}, filter.Expression{}, 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if hits != nil {
		t.Errorf("want nil hits, got %v", hits)
	}
}

func TestDefinition_DeclaresMetadataFields(t *testing.T) {
	def, err := Definition("cvlens:", "cv_sections", 384, 32, 400)
	if err != nil {
		t.Fatalf("Definition: %v", err)
	}

	if def.Name != "cvlens:cv_sections:idx" {
		t.Errorf("index name = %q", def.Name)
	}

	byName := map[string]db.IndexField{}
	for _, f := range def.Fields {
		byName[f.Name] = f
	}
	for _, tag := range []string{
		FieldContentHash, FieldCandidateName, FieldCandidateNameLower, FieldSectionLabel,
	} {
		if byName[tag].Type != db.IndexFieldTag {
			t.Errorf("field %q should be TAG", tag)
		}
	}
	vec := byName[fieldVector]
	if vec.VectorDim != 384 || vec.VectorDistance != db.DistanceCosine {
		t.Errorf("vector field = dim %d metric %s, want 384 COSINE", vec.VectorDim, vec.VectorDistance)
	}
}

func TestRetrieve_FilterComposition(t *testing.T) {
	s := &mockStore{knnResult: &db.SearchResult{}}
	repo := New(s, "cvlens:", "cv_sections")

	_, err := repo.Retrieve(context.Background(),
		[]float32{0.1, 0.2},
		[]string{"hash-a", "hash-b"},
		[]string{"Jane Roe", " Bob Smith "},
		10,
	)
	if err != nil {
		t.Fatalf("Retrieve failed: %v", err)
	}

	must := s.knnQuery.Filters.Must()
	if len(must) != 2 {
		t.Fatalf("expected 2 filter conditions, got %d", len(must))
	}

	if must[0].Key() != FieldContentHash {
		t.Errorf("first condition key = %q, expected %q", must[0].Key(), FieldContentHash)
	}
	if got := must[0].Values(); len(got) != 2 || got[0] != "hash-a" || got[1] != "hash-b" {
		t.Errorf("hash values = %v", got)
	}

	if must[1].Key() != FieldCandidateNameLower {
		t.Errorf("second condition key = %q, expected %q", must[1].Key(), FieldCandidateNameLower)
	}
	if got := must[1].Values(); len(got) != 2 || got[0] != "jane roe" || got[1] != "bob smith" {
		t.Errorf("candidate values = %v, expected lowercased trimmed names", got)
	}
}

func TestRetrieve_NoCandidateFilter(t *testing.T) {
	s := &mockStore{knnResult: &db.SearchResult{}}
	repo := New(s, "cvlens:", "cv_sections")

	_, err := repo.Retrieve(context.Background(), []float32{0.1}, []string{"hash-a"}, nil, 5)
	if err != nil {
		t.Fatalf("Retrieve failed: %v", err)
	}

	must := s.knnQuery.Filters.Must()
	if len(must) != 1 {
		t.Fatalf("expected only the hash condition, got %d conditions", len(must))
	}
	if must[0].Key() != FieldContentHash {
		t.Errorf("condition key = %q, expected %q", must[0].Key(), FieldContentHash)
	}
	if s.knnQuery.K != 5 {
		t.Errorf("K = %d, expected 5", s.knnQuery.K)
	}
}

func TestRetrieve_NoHashesSkipsStore(t *testing.T) {
	s := &mockStore{}
	repo := New(s, "cvlens:", "cv_sections")

	hits, err := repo.Retrieve(context.Background(), []float32{0.1}, nil, nil, 10)
	if err != nil {
		t.Fatalf("Retrieve failed: %v", err)
	}
	if hits != nil {
		t.Errorf("expected nil hits, got %v", hits)
	}
	if s.knnQuery != nil {
		t.Error("expected no store call without a session scope")
	}
}

func TestDeleteSections(t *testing.T) {
	s := &mockStore{countResult: 3}
	repo := New(s, "cvlens:", "cv_sections")

	n, err := repo.DeleteSections(context.Background(), "hash-a")
	if err != nil {
		t.Fatalf("DeleteSections failed: %v", err)
	}
	if n != 3 {
		t.Errorf("deleted = %d, want 3", n)
	}

	want := []string{
		"cvlens:cv_sections:hash-a:0",
		"cvlens:cv_sections:hash-a:1",
		"cvlens:cv_sections:hash-a:2",
	}
	if len(s.delKeys) != len(want) {
		t.Fatalf("deleted keys = %v, want %v", s.delKeys, want)
	}
	for i, k := range want {
		if s.delKeys[i] != k {
			t.Errorf("deleted key[%d] = %q, want %q", i, s.delKeys[i], k)
		}
	}
}

func TestDeleteSections_UnknownDocument(t *testing.T) {
	s := &mockStore{countResult: 0}
	repo := New(s, "cvlens:", "cv_sections")

	n, err := repo.DeleteSections(context.Background(), "missing")
	if err != nil {
		t.Fatalf("DeleteSections failed: %v", err)
	}
	if n != 0 {
		t.Errorf("deleted = %d, want 0", n)
	}
	if len(s.delKeys) != 0 {
		t.Errorf("expected no deletes for an unknown document, got %v", s.delKeys)
	}
}
