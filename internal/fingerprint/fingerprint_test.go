package fingerprint

import "testing"

func TestSum_Deterministic(t *testing.T) {
	data := []byte("John Doe\nSkills: Go, Kubernetes")

	first := Sum(data)
	second := Sum(data)
	if first != second {
		t.Errorf("same bytes must hash identically: %q vs %q", first, second)
	}
	if len(first) != 64 {
		t.Errorf("hash length = %d, want 64 hex chars", len(first))
	}
}

func TestSum_DistinguishesContent(t *testing.T) {
	a := Sum([]byte("candidate A"))
	b := Sum([]byte("candidate B"))
	if a == b {
		t.Error("different bytes must not collide")
	}
}

func TestSum_KnownVector(t *testing.T) {
	// sha256 of the empty input is a fixed, externally verifiable value.
	const want = "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"
	if got := Sum(nil); got != want {
		t.Errorf("Sum(nil) = %q, want %q", got, want)
	}
}
