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

package interfaces

import (
	"sync/atomic"
)

// UnitID is the stable identity of a solvable unit. It keys the world's
// fast lookup and the optional subset argument of a calc pass.
type UnitID string

// RunContext carries the run-wide settings consulted during one calc pass.
// It is passed explicitly instead of being read from process-wide state.
type RunContext struct {
	// CalibrationEnabled gates calibration scaling of share weights.
	CalibrationEnabled bool
	// CalAccuracy is the tolerance used when checking calibration targets.
	CalAccuracy float64
	// Iteration is the value of the calc counter for this pass.
	Iteration int64
	// PrintWarnings only affects diagnostic logging.
	PrintWarnings bool
}

// CalcCounter counts calc passes across a run. A single counter may be
// shared by several worlds.
type CalcCounter struct {
	n atomic.Int64
}

// NewCalcCounter returns a counter starting at zero.
func NewCalcCounter() *CalcCounter {
	return &CalcCounter{}
}

// Increment advances the counter and returns the new value.
func (c *CalcCounter) Increment() int64 {
	return c.n.Add(1)
}

// Value returns the current count.
func (c *CalcCounter) Value() int64 {
	return c.n.Load()
}

// Reset sets the counter back to zero.
func (c *CalcCounter) Reset() {
	c.n.Store(0)
}

// PriceSource resolves the price of a good in a period.
type PriceSource interface {
	// Price returns the price of good in period and whether it is known.
	Price(good string, period int) (float64, bool)
}

// UnitResult is what a unit reports back from one calc pass.
type UnitResult struct {
	// Calibrated is true when every calibration target of the unit was met
	// within the pass's accuracy (or no calibration was requested).
	Calibrated bool
	// Unattainable lists calibration targets that could not be approached.
	Unattainable []*CalibrationUnattainableError
	// Output is the total output of all markets in the unit.
	Output float64
	// LimitedSubsectors counts subsectors held at their capacity limit.
	LimitedSubsectors int
}
