// Package rating holds relevance rating values, the project rating scale
// and the optimistic rating controller.
package rating

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/kailas-cloud/esre-console/internal/domain"
)

// Value is an integer rating or unset.
type Value struct {
	n   int
	set bool
}

// Unset is the absence of a rating.
var Unset = Value{}

// Of returns a set rating.
func Of(n int) Value { return Value{n: n, set: true} }

// FromPtr converts an optional wire rating.
func FromPtr(p *int) Value {
	if p == nil {
		return Unset
	}
	return Of(*p)
}

// IsSet reports whether a rating is present.
func (v Value) IsSet() bool { return v.set }

// Int returns the rating; ok is false when unset.
func (v Value) Int() (n int, ok bool) { return v.n, v.set }

// Ptr returns the rating as an optional wire value.
func (v Value) Ptr() *int {
	if !v.set {
		return nil
	}
	n := v.n
	return &n
}

func (v Value) String() string {
	if !v.set {
		return "unset"
	}
	return strconv.Itoa(v.n)
}

// MarshalJSON encodes unset as null.
func (v Value) MarshalJSON() ([]byte, error) {
	if !v.set {
		return []byte("null"), nil
	}
	return []byte(strconv.Itoa(v.n)), nil
}

// UnmarshalJSON decodes null as unset.
func (v *Value) UnmarshalJSON(b []byte) error {
	var p *int
	if err := json.Unmarshal(b, &p); err != nil {
		return fmt.Errorf("decode rating: %w", err)
	}
	*v = FromPtr(p)
	return nil
}

// Scale is the inclusive [Min, Max] integer range of a project.
type Scale struct {
	Min int `json:"min" yaml:"min"`
	Max int `json:"max" yaml:"max"`
}

// DefaultScale is used when a project does not declare one.
var DefaultScale = Scale{Min: 0, Max: 4}

// Validate checks that the scale is non-empty.
func (s Scale) Validate() error {
	if s.Min > s.Max {
		return domain.Validationf("rating scale min %d exceeds max %d", s.Min, s.Max)
	}
	return nil
}

// Contains reports whether n lies within the scale.
func (s Scale) Contains(n int) bool { return n >= s.Min && n <= s.Max }

// Check returns ErrRatingOutOfRange when n lies outside the scale.
func (s Scale) Check(n int) error {
	if !s.Contains(n) {
		return fmt.Errorf("%w: %d not in [%d, %d]", domain.ErrRatingOutOfRange, n, s.Min, s.Max)
	}
	return nil
}
