package redis

import (
	"strings"
	"testing"

	"github.com/cvlens/cvlens/internal/db"
	"github.com/cvlens/cvlens/internal/domain/filter"
)

func mustMatchAny(t *testing.T, key string, values ...string) filter.Condition {
	t.Helper()
	c, err := filter.NewMatchAny(key, values...)
	if err != nil {
		t.Fatalf("NewMatchAny: %v", err)
	}
	return c
}

func TestBuildFilter_Empty(t *testing.T) {
	if got := buildFilter(filter.Expression{}); got != "" {
		t.Errorf("empty expression = %q, want empty string", got)
	}
}

func TestBuildFilter_SingleValue(t *testing.T) {
	expr := filter.NewExpression(mustMatchAny(t, "content_hash", "abc123"))
	if got := buildFilter(expr); got != "@content_hash:{abc123}" {
		t.Errorf("buildFilter = %q", got)
	}
}

func TestBuildFilter_MultiValueORed(t *testing.T) {
	expr := filter.NewExpression(mustMatchAny(t, "content_hash", "h1", "h2", "h3"))
	if got := buildFilter(expr); got != "@content_hash:{h1|h2|h3}" {
		t.Errorf("buildFilter = %q", got)
	}
}

func TestBuildFilter_ConditionsANDed(t *testing.T) {
	expr := filter.NewExpression(
		mustMatchAny(t, "content_hash", "h1", "h2"),
		mustMatchAny(t, "candidate_name_lower", "jane roe"),
	)
	got := buildFilter(expr)
	want := `@content_hash:{h1|h2} @candidate_name_lower:{jane\ roe}`
	if got != want {
		t.Errorf("buildFilter = %q, want %q", got, want)
	}
}

func TestBuildFilter_EscapesTagSpecials(t *testing.T) {
	expr := filter.NewExpression(mustMatchAny(t, "candidate_name_lower", "o'brien-smith"))
	got := buildFilter(expr)
	if !strings.Contains(got, `\'`) || !strings.Contains(got, `\-`) {
		t.Errorf("specials not escaped: %q", got)
	}
}

func TestBuildCreateArgs(t *testing.T) {
	def, err := db.NewIndex("cvlens:cv_sections:idx").
		Prefix("cvlens:cv_sections:").
		Tag("content_hash").
		Tag("candidate_name").
		Tag("candidate_name_lower").
		Tag("section_label").
		Numeric("order_index").
		Vector("__vector", 384, db.VectorHNSW, db.DistanceCosine).
		HNSWParams(32, 400).
		Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	args, err := buildCreateArgs(def)
	if err != nil {
		t.Fatalf("buildCreateArgs: %v", err)
	}

	joined := strings.Join(args, " ")
	for _, want := range []string{
		"cvlens:cv_sections:idx ON HASH PREFIX 1 cvlens:cv_sections:",
		"content_hash TAG",
		"candidate_name_lower TAG",
		"section_label TAG",
		"order_index NUMERIC",
		"__vector VECTOR HNSW",
		"DIM 384",
		"DISTANCE_METRIC COSINE",
		"M 32",
		"EF_CONSTRUCTION 400",
	} {
		if !strings.Contains(joined, want) {
			t.Errorf("args missing %q:\n%s", want, joined)
		}
	}
}

func TestBuildCreateArgs_InvalidDefinition(t *testing.T) {
	_, err := buildCreateArgs(&db.IndexDefinition{Name: ""})
	if err == nil {
		t.Error("expected error for empty index name")
	}
}

func TestVectorToBytes_LittleEndianFloat32(t *testing.T) {
	got := vectorToBytes([]float32{1.0})
	// 1.0 as float32 little-endian: 00 00 80 3f
	want := string([]byte{0x00, 0x00, 0x80, 0x3f})
	if got != want {
		t.Errorf("vectorToBytes = %x, want %x", got, want)
	}
	if len(vectorToBytes(make([]float32, 384))) != 384*4 {
		t.Error("byte length must be 4x dimension")
	}
}
