// Package filter models the metadata pre-filter attached to a similarity
// search: a conjunction of tag-membership conditions.
package filter

import "fmt"

// MaxValuesPerCondition bounds the membership list of a single condition.
// A session's active hash set stays small; this is a sanity bound.
const MaxValuesPerCondition = 256

// Condition restricts a tag field to a set of allowed values.
// Multiple values are OR-ed; conditions in an Expression are AND-ed.
type Condition struct {
	key    string
	values []string
}

// NewMatchAny creates a membership condition: key must equal one of values.
func NewMatchAny(key string, values ...string) (Condition, error) {
	if key == "" {
		return Condition{}, fmt.Errorf("filter key is required")
	}
	if len(values) == 0 {
		return Condition{}, fmt.Errorf("at least one value is required for key %q", key)
	}
	if len(values) > MaxValuesPerCondition {
		return Condition{}, fmt.Errorf("too many values for key %q (max %d)", key, MaxValuesPerCondition)
	}
	for _, v := range values {
		if v == "" {
			return Condition{}, fmt.Errorf("empty value for key %q", key)
		}
	}
	vals := make([]string, len(values))
	copy(vals, values)
	return Condition{key: key, values: vals}, nil
}

// Key returns the field name.
func (c Condition) Key() string { return c.key }

// Values returns the allowed values.
func (c Condition) Values() []string { return c.values }

// Expression is a conjunction of conditions. The zero value matches everything.
type Expression struct {
	must []Condition
}

// NewExpression creates a filter expression from its conditions.
func NewExpression(must ...Condition) Expression {
	return Expression{must: must}
}

// Must returns the conjunction's conditions.
func (e Expression) Must() []Condition { return e.must }

// IsEmpty reports whether the expression has no conditions.
func (e Expression) IsEmpty() bool { return len(e.must) == 0 }
