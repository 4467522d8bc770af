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
	"errors"
	"fmt"

	utilerrors "k8s.io/apimachinery/pkg/util/errors"
	"k8s.io/apimachinery/pkg/util/validation/field"
)

// ErrMissingPrice is returned when a technology needs the price of a good
// that no market in its unit supplies.
var ErrMissingPrice = errors.New("no price for good")

// ConfigurationError reports malformed or missing per-unit configuration.
// It is raised by CompleteInit, never during a solve pass.
type ConfigurationError struct {
	// Unit is the name of the object whose configuration is invalid.
	Unit string
	// Errs holds the individual field problems.
	Errs field.ErrorList
}

// NewConfigurationError returns nil when errs is empty.
func NewConfigurationError(unit string, errs field.ErrorList) error {
	if len(errs) == 0 {
		return nil
	}
	return &ConfigurationError{Unit: unit, Errs: errs}
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid configuration for %s: %v", e.Unit, e.Errs.ToAggregate())
}

// Unwrap exposes the aggregated field errors.
func (e *ConfigurationError) Unwrap() error {
	return e.Errs.ToAggregate()
}

// NumericDivergenceError reports a share, price or calibration scale that
// became negative, NaN or infinite during a solve pass.
type NumericDivergenceError struct {
	Unit   string
	Period int
	Field  string
	Value  float64
}

func (e *NumericDivergenceError) Error() string {
	return fmt.Sprintf("numeric divergence in %s at period %d: %s = %v", e.Unit, e.Period, e.Field, e.Value)
}

// CalibrationUnattainableError records that a calibration target cannot be
// approached for a period. It is stored on the owning object and queried
// through calibration checks rather than returned from a solve pass.
type CalibrationUnattainableError struct {
	Unit   string
	Period int
	Reason string
}

func (e *CalibrationUnattainableError) Error() string {
	return fmt.Sprintf("calibration unattainable for %s at period %d: %s", e.Unit, e.Period, e.Reason)
}

// AggregateErrors combines errs into one error. A single error is returned
// as is so that errors.As keeps working on it.
func AggregateErrors(errs []error) error {
	switch len(errs) {
	case 0:
		return nil
	case 1:
		return errs[0]
	default:
		return utilerrors.Flatten(utilerrors.NewAggregate(errs))
	}
}

// ConfigurationErrors returns every ConfigurationError contained in err,
// looking through aggregates.
func ConfigurationErrors(err error) []*ConfigurationError {
	if err == nil {
		return nil
	}
	var out []*ConfigurationError
	if agg, ok := err.(utilerrors.Aggregate); ok {
		for _, e := range agg.Errors() {
			out = append(out, ConfigurationErrors(e)...)
		}
		return out
	}
	var cfgErr *ConfigurationError
	if errors.As(err, &cfgErr) {
		return append(out, cfgErr)
	}
	var agg utilerrors.Aggregate
	if errors.As(err, &agg) {
		return ConfigurationErrors(agg)
	}
	return out
}
