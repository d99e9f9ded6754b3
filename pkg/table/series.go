// Package table provides the in-memory tabular representation shared by all
// pipeline stages: fixed-type columns with an optional missing-value mask,
// plus readers and writers for the file formats the catalog declares.
package table

import (
	"fmt"
	"strconv"
)

// Kind identifies the element type of a Series.
type Kind int

const (
	KindString Kind = iota
	KindInt
	KindFloat
	KindBool
)

func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindBool:
		return "bool"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// A Series is a fixed-type one-dimensional column of values with an optional
// mask for missing values. The data slice is not copied.
type Series struct {
	Name string

	length  int
	kind    Kind
	data    any // []string, []int64, []float64 or []bool
	missing []bool
}

// NewSeries returns a Series over the given data slice. The missing mask may
// be nil when no values are missing; otherwise it must match the data length.
func NewSeries(name string, data any, missing []bool) (*Series, error) {
	var length int
	var kind Kind
	switch d := data.(type) {
	case []string:
		length, kind = len(d), KindString
	case []int64:
		length, kind = len(d), KindInt
	case []float64:
		length, kind = len(d), KindFloat
	case []bool:
		length, kind = len(d), KindBool
	default:
		return nil, fmt.Errorf("series %q: unsupported data type %T", name, data)
	}
	if missing != nil && len(missing) != length {
		return nil, fmt.Errorf("series %q: missing mask length %d != data length %d", name, len(missing), length)
	}
	return &Series{Name: name, length: length, kind: kind, data: data, missing: missing}, nil
}

// MustSeries is NewSeries for statically well-formed columns.
func MustSeries(name string, data any, missing []bool) *Series {
	s, err := NewSeries(name, data, missing)
	if err != nil {
		panic(err)
	}
	return s
}

func (s *Series) Len() int   { return s.length }
func (s *Series) Kind() Kind { return s.kind }

// IsMissing reports whether the value at position i is missing.
func (s *Series) IsMissing(i int) bool {
	return s.missing != nil && s.missing[i]
}

// Mask returns the missing-value mask, which may be nil.
func (s *Series) Mask() []bool { return s.missing }

// Strings returns the underlying data as a string slice.
func (s *Series) Strings() ([]string, bool) {
	d, ok := s.data.([]string)
	return d, ok
}

// Ints returns the underlying data as an int64 slice.
func (s *Series) Ints() ([]int64, bool) {
	d, ok := s.data.([]int64)
	return d, ok
}

// Floats returns the underlying data as a float64 slice.
func (s *Series) Floats() ([]float64, bool) {
	d, ok := s.data.([]float64)
	return d, ok
}

// Bools returns the underlying data as a bool slice.
func (s *Series) Bools() ([]bool, bool) {
	d, ok := s.data.([]bool)
	return d, ok
}

// Value returns the element at i, or nil when it is missing.
func (s *Series) Value(i int) any {
	if s.IsMissing(i) {
		return nil
	}
	switch d := s.data.(type) {
	case []string:
		return d[i]
	case []int64:
		return d[i]
	case []float64:
		return d[i]
	case []bool:
		return d[i]
	}
	return nil
}

// StringAt formats the element at i for text output. Missing values render
// as the empty string.
func (s *Series) StringAt(i int) string {
	if s.IsMissing(i) {
		return ""
	}
	switch d := s.data.(type) {
	case []string:
		return d[i]
	case []int64:
		return strconv.FormatInt(d[i], 10)
	case []float64:
		return strconv.FormatFloat(d[i], 'g', -1, 64)
	case []bool:
		return strconv.FormatBool(d[i])
	}
	return ""
}

// FloatAt returns the element at i coerced to float64. The second return is
// false when the value is missing or not numeric.
func (s *Series) FloatAt(i int) (float64, bool) {
	if s.IsMissing(i) {
		return 0, false
	}
	switch d := s.data.(type) {
	case []float64:
		return d[i], true
	case []int64:
		return float64(d[i]), true
	}
	return 0, false
}

// IntAt returns the element at i as int64 when the series holds integers.
func (s *Series) IntAt(i int) (int64, bool) {
	if s.IsMissing(i) {
		return 0, false
	}
	d, ok := s.data.([]int64)
	if !ok {
		return 0, false
	}
	return d[i], true
}
