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

package climate

import (
	"context"

	"github.com/llm-d/market-equilibrium/internal/emissions"
)

// Reader provides read-only access to the results of a climate model.
type Reader interface {
	// Cumulative returns the cumulative emissions of gas through year.
	// Returns 0 if the gas is unknown or the model has not run.
	Cumulative(gas string, year int) float64

	// Concentration returns the modelled concentration of gas in year.
	Concentration(gas string, year int) (float64, bool)

	// Gases returns the gases the model has emissions for, sorted.
	Gases() []string

	// HasRun reports whether Run completed since the last SetEmissions.
	HasRun() bool
}

// Writer provides write access to the inputs of a climate model.
type Writer interface {
	// SetEmissions stores the emissions curve of one region. A curve
	// replaces any earlier curve with the same gas and labels.
	SetEmissions(curve *emissions.Curve) error

	// Run computes the model results from the stored emissions.
	Run(ctx context.Context) error
}

// Model combines both read and write access to a climate model.
type Model interface {
	Reader
	Writer
}
