// FILE: lixenwraith/pexconfig/range.go
package pexconfig

import (
	"cmp"
	"fmt"
	"reflect"
)

// Bounds describes the valid interval of a RangeField. A nil bound leaves the
// range open in that direction. The zero value of the flags gives the usual
// half-open interval [Min, Max).
type Bounds[T cmp.Ordered] struct {
	Min          *T
	Max          *T
	ExclusiveMin bool
	InclusiveMax bool
}

// Between returns the bounds [min, max)
func Between[T cmp.Ordered](min, max T) Bounds[T] {
	return Bounds[T]{Min: &min, Max: &max}
}

// AtLeast returns the bounds [min, inf)
func AtLeast[T cmp.Ordered](min T) Bounds[T] {
	return Bounds[T]{Min: &min}
}

// Below returns the bounds (-inf, max)
func Below[T cmp.Ordered](max T) Bounds[T] {
	return Bounds[T]{Max: &max}
}

// RangeField restricts an ordered value to an interval.
type RangeField[T cmp.Ordered] struct {
	*BasicField
	min          *T
	max          *T
	inclusiveMin bool
	inclusiveMax bool
	rangeString  string
}

// NewRangeField creates a field whose value must lie within b.
// Bounds given in the wrong order are swapped.
func NewRangeField[T cmp.Ordered](doc string, b Bounds[T], opts ...FieldOption) *RangeField[T] {
	if b.Min != nil && b.Max != nil && *b.Min > *b.Max {
		b.Min, b.Max = b.Max, b.Min
	}

	f := &RangeField[T]{
		min:          b.Min,
		max:          b.Max,
		inclusiveMin: !b.ExclusiveMin,
		inclusiveMax: b.InclusiveMax,
	}
	f.rangeString = f.describe()

	o := collectOptions(opts)
	f.BasicField = newBasicField("RangeField", doc+"\n\tValid Range = "+f.rangeString, reflect.TypeFor[T](), o)
	f.self = f
	return f
}

// describe renders the interval in [a,b) notation
func (f *RangeField[T]) describe() string {
	open, closeBr := "(", ")"
	if f.inclusiveMin {
		open = "["
	}
	if f.inclusiveMax {
		closeBr = "]"
	}
	lo, hi := "-inf", "inf"
	if f.min != nil {
		lo = fmt.Sprintf("%v", *f.min)
	}
	if f.max != nil {
		hi = fmt.Sprintf("%v", *f.max)
	}
	return open + lo + "," + hi + closeBr
}

// RangeString returns the interval description appended to the doc string
func (f *RangeField[T]) RangeString() string { return f.rangeString }

// Validate applies the base checks and then the interval bounds
func (f *RangeField[T]) Validate(c *Config) error {
	if err := f.BasicField.Validate(c); err != nil {
		return err
	}
	value := c.payload(f.name)
	if value == nil {
		return nil
	}
	v := value.(T)
	if !f.minOK(v) || !f.maxOK(v) {
		return newValidationError(f, c, value, "%v is outside of valid range %s", v, f.rangeString)
	}
	return nil
}

func (f *RangeField[T]) minOK(v T) bool {
	if f.min == nil {
		return true
	}
	if f.inclusiveMin {
		return v >= *f.min
	}
	return v > *f.min
}

func (f *RangeField[T]) maxOK(v T) bool {
	if f.max == nil {
		return true
	}
	if f.inclusiveMax {
		return v <= *f.max
	}
	return v < *f.max
}
