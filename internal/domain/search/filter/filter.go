// Package filter describes the server-side pre-filter pushed to the vector
// store. Expressions are conjunctions: every condition must hold.
package filter

import "fmt"

// MaxConditions is the maximum number of conditions per expression.
const MaxConditions = 32

// Expression is a conjunction of conditions.
type Expression struct {
	must []Condition
}

// And validates and creates a conjunction of conditions.
func And(conds ...Condition) (Expression, error) {
	if len(conds) > MaxConditions {
		return Expression{}, fmt.Errorf("too many conditions (max %d)", MaxConditions)
	}
	return Expression{must: conds}, nil
}

// Must returns the conditions that all must hold.
func (e Expression) Must() []Condition { return e.must }

// IsEmpty reports whether the expression has no conditions.
func (e Expression) IsEmpty() bool { return len(e.must) == 0 }

// Condition is a single clause: either an exact tag match or a lower-bounded
// numeric range.
type Condition struct {
	key       string
	match     string
	rangeExpr *Range
}

// Equal creates an exact tag match condition.
func Equal(key, value string) (Condition, error) {
	if key == "" {
		return Condition{}, fmt.Errorf("filter key is required")
	}
	if value == "" {
		return Condition{}, fmt.Errorf("match value is required for key %q", key)
	}
	return Condition{key: key, match: value}, nil
}

// GreaterThanEqual creates an inclusive lower-bound numeric condition.
func GreaterThanEqual(key string, v float64) (Condition, error) {
	if key == "" {
		return Condition{}, fmt.Errorf("filter key is required")
	}
	return Condition{key: key, rangeExpr: &Range{gte: &v}}, nil
}

// Key returns the field name.
func (c Condition) Key() string { return c.key }

// Match returns the exact match value.
func (c Condition) Match() string { return c.match }

// Range returns the numeric range expression.
func (c Condition) Range() *Range { return c.rangeExpr }

// IsMatch reports whether this is a match condition.
func (c Condition) IsMatch() bool { return c.match != "" }

// IsRange reports whether this is a range condition.
func (c Condition) IsRange() bool { return c.rangeExpr != nil }

// Range is a numeric range with an inclusive lower bound and no upper bound.
type Range struct {
	gte *float64
}

// GTE returns the lower inclusive bound.
func (r Range) GTE() *float64 { return r.gte }
