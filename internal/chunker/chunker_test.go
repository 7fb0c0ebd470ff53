package chunker

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/cvlens/cvlens/internal/domain"
)

const testCV = "Jane Roe\nSenior engineer with 8 years in Go.\nSkills: Go, Kubernetes, Redis\nEducation: BSc CS"

// mockCompleter returns queued responses/errors in order.
type mockCompleter struct {
	responses []string
	errs      []error
	calls     int
}

func (m *mockCompleter) Complete(ctx context.Context, _, _ string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	i := m.calls
	m.calls++
	var err error
	if i < len(m.errs) {
		err = m.errs[i]
	}
	var resp string
	if i < len(m.responses) {
		resp = m.responses[i]
	}
	return resp, err
}

func newChunker(c domain.Completer) *Chunker {
	return New(c, time.Second, nil, zap.NewNop())
}

func TestChunk_ValidResponse(t *testing.T) {
	resp := `{
		"candidate_name": "Jane Roe",
		"sections": [
			{"label": "Summary", "text": "Jane Roe\nSenior engineer with 8 years in Go.\n"},
			{"label": "Skills", "text": "Skills: Go, Kubernetes, Redis\n"},
			{"label": "Education", "text": "Education: BSc CS"}
		]
	}`
	c := newChunker(&mockCompleter{responses: []string{resp}})

	result, err := c.Chunk(context.Background(), testCV, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Degraded {
		t.Error("valid response must not degrade")
	}
	if result.CandidateName != "Jane Roe" {
		t.Errorf("candidate = %q", result.CandidateName)
	}
	if len(result.Sections) != 3 {
		t.Fatalf("got %d sections, want 3", len(result.Sections))
	}

	wantLabels := []domain.SectionLabel{domain.LabelSummary, domain.LabelSkills, domain.LabelEducation}
	for i, sec := range result.Sections {
		if sec.OrderIndex != i {
			t.Errorf("section %d has order index %d", i, sec.OrderIndex)
		}
		if sec.Label != wantLabels[i] {
			t.Errorf("section %d label = %q, want %q", i, sec.Label, wantLabels[i])
		}
	}
}

func TestChunk_CodeFencesTolerated(t *testing.T) {
	resp := "```json\n{\"candidate_name\": \"Jane Roe\", \"sections\": [{\"label\": \"Other\", \"text\": " +
		"\"Jane Roe\\nSenior engineer with 8 years in Go.\\nSkills: Go, Kubernetes, Redis\\nEducation: BSc CS\"}]}\n```"
	c := newChunker(&mockCompleter{responses: []string{resp}})

	result, err := c.Chunk(context.Background(), testCV, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Degraded {
		t.Error("fenced but valid JSON must not degrade")
	}
}

func TestChunk_UnknownLabelRemappedNotDropped(t *testing.T) {
	resp := `{
		"candidate_name": "Jane Roe",
		"sections": [
			{"label": "Haiku Collection", "text": "Jane Roe\nSenior engineer with 8 years in Go.\nSkills: Go, Kubernetes, Redis\nEducation: BSc CS"}
		]
	}`
	c := newChunker(&mockCompleter{responses: []string{resp}})

	result, err := c.Chunk(context.Background(), testCV, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Sections) != 1 || result.Sections[0].Label != domain.LabelOther {
		t.Errorf("unknown label should remap to Other, got %+v", result.Sections)
	}
	if result.Degraded {
		t.Error("label remapping is not a degradation")
	}
}

func TestChunk_FallbackOnMalformedJSON(t *testing.T) {
	c := newChunker(&mockCompleter{responses: []string{"I could not parse this CV, sorry!"}})

	result, err := c.Chunk(context.Background(), testCV, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	assertFallback(t, result)
}

func TestChunk_FallbackOnReconstructionFailure(t *testing.T) {
	// Parseable response whose text omits half the CV.
	resp := `{"candidate_name": "Jane Roe", "sections": [{"label": "Summary", "text": "Jane Roe"}]}`
	mock := &mockCompleter{responses: []string{resp}}
	c := newChunker(mock)

	result, err := c.Chunk(context.Background(), testCV, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	assertFallback(t, result)
	if mock.calls != 1 {
		t.Errorf("reconstruction failure must not retry, got %d calls", mock.calls)
	}
}

func TestChunk_RetryOnceOnTransportError(t *testing.T) {
	resp := `{"candidate_name": "Jane Roe", "sections": [{"label": "Other", "text": "Jane Roe\nSenior engineer with 8 years in Go.\nSkills: Go, Kubernetes, Redis\nEducation: BSc CS"}]}`
	mock := &mockCompleter{
		errs:      []error{errors.New("502 bad gateway"), nil},
		responses: []string{"", resp},
	}
	c := newChunker(mock)

	result, err := c.Chunk(context.Background(), testCV, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Degraded {
		t.Error("successful retry must not degrade")
	}
	if mock.calls != 2 {
		t.Errorf("got %d calls, want 2", mock.calls)
	}
}

func TestChunk_FallbackAfterSecondFailure(t *testing.T) {
	mock := &mockCompleter{errs: []error{errors.New("timeout"), errors.New("timeout")}}
	c := newChunker(mock)

	result, err := c.Chunk(context.Background(), testCV, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	assertFallback(t, result)
	if mock.calls != 2 {
		t.Errorf("got %d calls, want exactly 2 (one retry)", mock.calls)
	}
}

func TestChunk_CancellationIsNotDegradation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c := newChunker(&mockCompleter{})
	_, err := c.Chunk(ctx, testCV, "")
	if !errors.Is(err, context.Canceled) {
		t.Errorf("want context.Canceled, got %v", err)
	}
}

func TestChunk_PartitionInvariant(t *testing.T) {
	resp := `{
		"candidate_name": "Jane Roe",
		"sections": [
			{"label": "Summary", "text": "Jane Roe\nSenior engineer with 8 years in Go."},
			{"label": "Skills", "text": "Skills: Go, Kubernetes, Redis"},
			{"label": "Education", "text": "Education: BSc CS"}
		]
	}`
	c := newChunker(&mockCompleter{responses: []string{resp}})

	result, err := c.Chunk(context.Background(), testCV, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var rebuilt string
	for _, sec := range result.Sections {
		rebuilt += sec.Text
	}
	if stripWhitespace(rebuilt) != stripWhitespace(testCV) {
		t.Errorf("sections do not partition the source text:\n%q\nvs\n%q", rebuilt, testCV)
	}
}

func assertFallback(t *testing.T, result Result) {
	t.Helper()
	if !result.Degraded {
		t.Error("expected degraded result")
	}
	if len(result.Sections) != 1 {
		t.Fatalf("fallback must produce exactly one section, got %d", len(result.Sections))
	}
	sec := result.Sections[0]
	if sec.Label != domain.LabelOther {
		t.Errorf("fallback label = %q, want Other", sec.Label)
	}
	if sec.Text != testCV {
		t.Errorf("fallback must span the entire raw text")
	}
	if sec.OrderIndex != 0 {
		t.Errorf("fallback order index = %d", sec.OrderIndex)
	}
}
