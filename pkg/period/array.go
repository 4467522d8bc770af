/*
Copyright 2025 The llm-d Authors

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package period

import (
	"iter"
	"math"
	"slices"
)

// Array is a fixed-length, randomly indexable container keyed either by
// period index or by an inclusive year range. The zero value is an empty
// array.
//
// Note: Array is not thread-safe. Each Array is owned by exactly one model
// object and copies must go through Clone or CopyFrom.
type Array[T comparable] struct {
	data  []T
	start int
	years bool
}

// New creates an Array of exactly size slots keyed by position, all set to
// def.
func New[T comparable](size int, def T) (*Array[T], error) {
	if size < 0 {
		return nil, &InvalidSizeError{Size: size}
	}
	a := &Array[T]{data: make([]T, size)}
	a.fill(def)
	return a, nil
}

// NewYears creates an Array covering startYear through endYear inclusive,
// indexed by year.
func NewYears[T comparable](startYear, endYear int, def T) (*Array[T], error) {
	if endYear < startYear {
		return nil, &InvalidSizeError{Size: endYear - startYear + 1, StartYear: startYear, EndYear: endYear}
	}
	a := &Array[T]{
		data:  make([]T, endYear-startYear+1),
		start: startYear,
		years: true,
	}
	a.fill(def)
	return a, nil
}

// NewPeriods creates an Array with one slot per model period.
func NewPeriods[T comparable](mt Modeltime, def T) (*Array[T], error) {
	if err := mt.Validate(); err != nil {
		return nil, err
	}
	return New(mt.MaxPeriod(), def)
}

// MustPeriods is like NewPeriods but panics on an invalid Modeltime.
// Use when the Modeltime has already been validated.
func MustPeriods[T comparable](mt Modeltime, def T) Array[T] {
	a, err := NewPeriods(mt, def)
	if err != nil {
		panic(err)
	}
	return *a
}

// MustYears is like NewYears but panics on an inverted range.
func MustYears[T comparable](startYear, endYear int, def T) Array[T] {
	a, err := NewYears(startYear, endYear, def)
	if err != nil {
		panic(err)
	}
	return *a
}

func (a *Array[T]) fill(v T) {
	for i := range a.data {
		a.data[i] = v
	}
	if checkValues && len(a.data) > 0 {
		validate(0, v)
	}
}

// Len returns the number of slots.
func (a *Array[T]) Len() int {
	return len(a.data)
}

// IsYearKeyed reports whether indexes are calendar years.
func (a *Array[T]) IsYearKeyed() bool {
	return a.years
}

// StartYear returns the first year covered, or 0 for period-keyed arrays.
func (a *Array[T]) StartYear() int {
	return a.start
}

// EndYear returns the last year covered, or 0 for period-keyed arrays.
func (a *Array[T]) EndYear() int {
	if !a.years {
		return 0
	}
	return a.start + len(a.data) - 1
}

// pos translates an index into a slot, panicking with a RangeError when it
// is outside the array.
func (a *Array[T]) pos(i int) int {
	p := i - a.start
	if p < 0 || p >= len(a.data) {
		panic(&RangeError{Index: i, Lo: a.start, Hi: a.start + len(a.data) - 1, Years: a.years})
	}
	return p
}

// At returns the value at period index or year i.
func (a *Array[T]) At(i int) T {
	p := a.pos(i)
	if checkValues {
		validate(i, a.data[p])
	}
	return a.data[p]
}

// Set stores v at period index or year i.
func (a *Array[T]) Set(i int, v T) {
	p := a.pos(i)
	if checkValues {
		validate(i, v)
	}
	a.data[p] = v
}

// Ptr returns a mutable reference to the slot at i. The pointer is valid for
// the lifetime of the array.
func (a *Array[T]) Ptr(i int) *T {
	p := a.pos(i)
	if checkValues {
		validate(i, a.data[p])
	}
	return &a.data[p]
}

// Find returns the slot position of index i, or Len() when i is not covered.
// It never panics.
func (a *Array[T]) Find(i int) int {
	p := i - a.start
	if p < 0 || p >= len(a.data) {
		return len(a.data)
	}
	return p
}

// Assign sets the first n slots to v.
func (a *Array[T]) Assign(n int, v T) {
	if n > len(a.data) {
		panic(&RangeError{Index: n - 1 + a.start, Lo: a.start, Hi: a.start + len(a.data) - 1, Years: a.years})
	}
	if checkValues && n > 0 {
		validate(a.start, v)
	}
	for i := 0; i < n; i++ {
		a.data[i] = v
	}
}

// Last returns the value in the final slot. It panics on an empty array.
func (a *Array[T]) Last() T {
	if len(a.data) == 0 {
		panic(&RangeError{Index: a.start, Lo: a.start, Hi: a.start - 1, Years: a.years})
	}
	return a.data[len(a.data)-1]
}

// Values returns a copy of the backing storage in slot order.
func (a *Array[T]) Values() []T {
	return slices.Clone(a.data)
}

// All iterates over (index, value) pairs where index is a period or a year.
func (a *Array[T]) All() iter.Seq2[int, T] {
	return func(yield func(int, T) bool) {
		for p, v := range a.data {
			if !yield(p+a.start, v) {
				return
			}
		}
	}
}

// Clone returns a deep copy.
func (a *Array[T]) Clone() *Array[T] {
	return &Array[T]{
		data:  slices.Clone(a.data),
		start: a.start,
		years: a.years,
	}
}

// CopyFrom replaces the contents, size and keying of a with those of other.
// Copying an array onto itself is a no-op.
func (a *Array[T]) CopyFrom(other *Array[T]) {
	if a == other {
		return
	}
	a.data = slices.Clone(other.data)
	a.start = other.start
	a.years = other.years
}

// Equal reports whether both arrays have the same size and element values.
func (a *Array[T]) Equal(other *Array[T]) bool {
	return slices.Equal(a.data, other.data)
}

func validate[T comparable](i int, v T) {
	var f float64
	switch x := any(v).(type) {
	case float64:
		f = x
	case float32:
		f = float64(x)
	default:
		return
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		panic(&InvalidValueError{Index: i, Value: f})
	}
}
