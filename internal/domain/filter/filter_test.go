package filter

import (
	"strings"
	"testing"
)

func TestNewMatchAny_Valid(t *testing.T) {
	c, err := NewMatchAny("content_hash", "h1", "h2")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.Key() != "content_hash" {
		t.Errorf("key = %q, want content_hash", c.Key())
	}
	if len(c.Values()) != 2 {
		t.Errorf("values = %v, want 2 entries", c.Values())
	}
}

func TestNewMatchAny_CopiesValues(t *testing.T) {
	in := []string{"a", "b"}
	c, err := NewMatchAny("k", in...)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	in[0] = "mutated"
	if c.Values()[0] != "a" {
		t.Error("condition must not alias the caller's slice")
	}
}

func TestNewMatchAny_Invalid(t *testing.T) {
	tests := []struct {
		name   string
		key    string
		values []string
	}{
		{"empty key", "", []string{"v"}},
		{"no values", "k", nil},
		{"empty value", "k", []string{"v", ""}},
		{"too many values", "k", make([]string, MaxValuesPerCondition+1)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.name == "too many values" {
				for i := range tt.values {
					tt.values[i] = "v"
				}
			}
			if _, err := NewMatchAny(tt.key, tt.values...); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestExpression_Empty(t *testing.T) {
	if !(Expression{}).IsEmpty() {
		t.Error("zero expression should be empty")
	}

	c, err := NewMatchAny("k", "v")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	e := NewExpression(c)
	if e.IsEmpty() {
		t.Error("expression with a condition should not be empty")
	}
	if len(e.Must()) != 1 {
		t.Errorf("must = %d conditions, want 1", len(e.Must()))
	}
}

func TestNewMatchAny_ErrorNamesKey(t *testing.T) {
	_, err := NewMatchAny("candidate_name_lower")
	if err == nil || !strings.Contains(err.Error(), "candidate_name_lower") {
		t.Errorf("error should name the key, got %v", err)
	}
}
