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

import "fmt"

// RangeError reports an index or year outside the bounds of an Array.
// It is raised through panic: reaching it means a caller computed a bad
// index, which is treated as a data-integrity bug.
type RangeError struct {
	// Index is the position or year that was requested.
	Index int
	// Lo and Hi are the inclusive bounds of valid indexes.
	Lo, Hi int
	// Years is true when the array is keyed by year.
	Years bool
}

func (e *RangeError) Error() string {
	kind := "period"
	if e.Years {
		kind = "year"
	}
	if e.Hi < e.Lo {
		return fmt.Sprintf("%s %d out of range: array is empty", kind, e.Index)
	}
	return fmt.Sprintf("%s %d out of range [%d, %d]", kind, e.Index, e.Lo, e.Hi)
}

// InvalidSizeError reports an Array construction with a size that cannot
// hold the requested range.
type InvalidSizeError struct {
	Size      int
	StartYear int
	EndYear   int
}

func (e *InvalidSizeError) Error() string {
	if e.EndYear != 0 || e.StartYear != 0 {
		return fmt.Sprintf("invalid year range [%d, %d]: end year precedes start year", e.StartYear, e.EndYear)
	}
	return fmt.Sprintf("invalid array size %d", e.Size)
}

// InvalidValueError is raised (through panic) by builds tagged `periodcheck`
// when a non-finite number is read from or written to an Array.
type InvalidValueError struct {
	Index int
	Value float64
}

func (e *InvalidValueError) Error() string {
	return fmt.Sprintf("invalid number %v at index %d", e.Value, e.Index)
}
