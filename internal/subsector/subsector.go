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

package subsector

import (
	"context"
	"fmt"
	"math"

	"k8s.io/apimachinery/pkg/util/validation/field"
	ctrl "sigs.k8s.io/controller-runtime"

	"github.com/llm-d/market-equilibrium/internal/interfaces"
	"github.com/llm-d/market-equilibrium/internal/logging"
	"github.com/llm-d/market-equilibrium/pkg/period"
)

// CapLimitMode selects the value a share is frozen at once it reaches its
// capacity limit.
type CapLimitMode string

const (
	// CapLimitHard freezes the share exactly at the limit.
	CapLimitHard CapLimitMode = "hard"
	// CapLimitSmooth freezes the share at CapLimitTransform(limit, share).
	CapLimitSmooth CapLimitMode = "smooth"
)

// DefaultLogitExponent is used for periods without an explicit exponent.
const DefaultLogitExponent = -3.0

// Identity names a subsector and its placement.
type Identity struct {
	Name   string
	Region string
	Sector string
	// Unit is the label of the output unit, e.g. "EJ".
	Unit string
	// Fuel is the fuel type label of the subsector.
	Fuel string
}

// Subsector computes the shares of its competing technologies with a logit
// form, its own unnormalized share within the parent sector, capacity
// limiting and calibration of share weights.
//
// A Subsector is owned by exactly one sector and is not safe for concurrent
// use.
type Subsector struct {
	id           Identity
	mt           period.Modeltime
	capLimitMode CapLimitMode

	children   []interfaces.Technology
	childIndex map[string]int
	buildErrs  field.ErrorList

	tax                period.Array[float64]
	capLimit           period.Array[float64]
	capLimited         period.Array[bool]
	fixedShare         period.Array[float64]
	shareWeight        period.Array[float64]
	shareWeightInput   period.Array[bool]
	logitExponent      period.Array[float64]
	share              period.Array[float64]
	input              period.Array[float64]
	peCons             period.Array[float64]
	price              period.Array[float64]
	fuelPrice          period.Array[float64]
	output             period.Array[float64]
	carbonTaxPaid      period.Array[float64]
	fuelPrefElasticity period.Array[float64]
	calOutputValue     period.Array[float64]
	doCalibration      period.Array[bool]
	calibrationStatus  period.Array[bool]
	calibrated         period.Array[bool]
	unattainable       period.Array[*interfaces.CalibrationUnattainableError]
}

// New creates a subsector with one slot per model period. Share weights
// default to 1, capacity limits to 1 (unlimited) and logit exponents to
// DefaultLogitExponent.
func New(id Identity, mt period.Modeltime) (*Subsector, error) {
	if err := mt.Validate(); err != nil {
		return nil, fmt.Errorf("subsector %s: %w", id.Name, err)
	}
	return &Subsector{
		id:                 id,
		mt:                 mt,
		capLimitMode:       CapLimitHard,
		childIndex:         make(map[string]int),
		tax:                period.MustPeriods(mt, 0.0),
		capLimit:           period.MustPeriods(mt, 1.0),
		capLimited:         period.MustPeriods(mt, false),
		fixedShare:         period.MustPeriods(mt, 0.0),
		shareWeight:        period.MustPeriods(mt, 1.0),
		shareWeightInput:   period.MustPeriods(mt, false),
		logitExponent:      period.MustPeriods(mt, DefaultLogitExponent),
		share:              period.MustPeriods(mt, 0.0),
		input:              period.MustPeriods(mt, 0.0),
		peCons:             period.MustPeriods(mt, 0.0),
		price:              period.MustPeriods(mt, 0.0),
		fuelPrice:          period.MustPeriods(mt, 0.0),
		output:             period.MustPeriods(mt, 0.0),
		carbonTaxPaid:      period.MustPeriods(mt, 0.0),
		fuelPrefElasticity: period.MustPeriods(mt, 0.0),
		calOutputValue:     period.MustPeriods(mt, 0.0),
		doCalibration:      period.MustPeriods(mt, false),
		calibrationStatus:  period.MustPeriods(mt, false),
		calibrated:         period.MustPeriods(mt, false),
		unattainable:       period.MustPeriods[*interfaces.CalibrationUnattainableError](mt, nil),
	}, nil
}

// Name returns the subsector name.
func (s *Subsector) Name() string {
	return s.id.Name
}

// Identity returns the name and placement of the subsector.
func (s *Subsector) Identity() Identity {
	return s.id
}

// qualifiedName is used as the unit in error reports.
func (s *Subsector) qualifiedName() string {
	return fmt.Sprintf("%s/%s/%s", s.id.Region, s.id.Sector, s.id.Name)
}

// SetCapLimitMode selects hard or smooth freezing of capacity-limited shares.
func (s *Subsector) SetCapLimitMode(mode CapLimitMode) {
	s.capLimitMode = mode
}

// AddTechnology appends a competing technology. Duplicate names are
// reported by CompleteInit.
func (s *Subsector) AddTechnology(t interfaces.Technology) {
	if _, ok := s.childIndex[t.Name()]; ok {
		s.buildErrs = append(s.buildErrs, field.Duplicate(field.NewPath("technologies"), t.Name()))
		return
	}
	s.childIndex[t.Name()] = len(s.children)
	s.children = append(s.children, t)
}

// Technologies returns the technologies in insertion order.
func (s *Subsector) Technologies() []interfaces.Technology {
	return append([]interfaces.Technology(nil), s.children...)
}

// Technology returns the technology with the given name.
func (s *Subsector) Technology(name string) (interfaces.Technology, bool) {
	i, ok := s.childIndex[name]
	if !ok {
		return nil, false
	}
	return s.children[i], true
}

// SetShareWeightInput records an explicitly specified share weight for p.
// Periods without one are interpolated by InitCalc.
func (s *Subsector) SetShareWeightInput(p int, w float64) {
	s.shareWeight.Set(p, w)
	s.shareWeightInput.Set(p, true)
}

func (s *Subsector) SetLogitExponent(p int, v float64) {
	s.logitExponent.Set(p, v)
}

func (s *Subsector) SetCapacityLimit(p int, v float64) {
	s.capLimit.Set(p, v)
}

func (s *Subsector) SetFuelPrefElasticity(p int, v float64) {
	s.fuelPrefElasticity.Set(p, v)
}

// SetTax sets the per-unit tax (negative for a subsidy) added to the price.
func (s *Subsector) SetTax(p int, v float64) {
	s.tax.Set(p, v)
}

// SetCalibrationOutput sets the calibration target of the subsector's
// variable (non-fixed) output and requests calibration for p.
func (s *Subsector) SetCalibrationOutput(p int, v float64) {
	s.calOutputValue.Set(p, v)
	s.doCalibration.Set(p, true)
}

// CompleteInit validates the subsector and its technologies. Problems are
// aggregated and reported as configuration errors.
func (s *Subsector) CompleteInit(ctx context.Context) error {
	root := field.NewPath("subsector").Key(s.id.Name)
	errs := append(field.ErrorList(nil), s.buildErrs...)

	if s.id.Name == "" {
		errs = append(errs, field.Required(root.Child("name"), "subsector name is required"))
	}
	if len(s.children) == 0 {
		errs = append(errs, field.Required(root.Child("technologies"), "at least one technology is required"))
	}
	switch s.capLimitMode {
	case CapLimitHard, CapLimitSmooth:
	default:
		errs = append(errs, field.NotSupported(root.Child("capLimitMode"), s.capLimitMode, []CapLimitMode{CapLimitHard, CapLimitSmooth}))
	}
	for p := 0; p < s.mt.Periods; p++ {
		if v := s.capLimit.At(p); v < 0 || math.IsNaN(v) {
			errs = append(errs, field.Invalid(root.Child("capacityLimits").Index(p), v, "must be >= 0"))
		}
		if v := s.shareWeight.At(p); v < 0 || !isFinite(v) {
			errs = append(errs, field.Invalid(root.Child("shareWeights").Index(p), v, "must be a finite number >= 0"))
		}
		if v := s.logitExponent.At(p); !isFinite(v) {
			errs = append(errs, field.Invalid(root.Child("logitExponent").Index(p), v, "must be finite"))
		}
		if v := s.calOutputValue.At(p); v < 0 || !isFinite(v) {
			errs = append(errs, field.Invalid(root.Child("calibratedOutputs").Index(p), v, "must be a finite number >= 0"))
		}
	}

	all := []error{}
	if err := interfaces.NewConfigurationError(s.qualifiedName(), errs); err != nil {
		all = append(all, err)
	}
	for _, t := range s.children {
		if err := t.CompleteInit(ctx, s.mt); err != nil {
			all = append(all, err)
		}
	}
	if len(all) > 0 {
		return interfaces.AggregateErrors(all)
	}

	ctrl.LoggerFrom(ctx).V(logging.TRACE).Info("Subsector initialized",
		"subsector", s.qualifiedName(),
		"technologies", len(s.children),
		"capLimitMode", s.capLimitMode)
	return nil
}

// InitCalc prepares period p: technologies are initialized, share weights
// missing for p are interpolated toward the next explicit value (or carried
// forward), and per-period solve state is reset.
func (s *Subsector) InitCalc(ctx context.Context, p int) error {
	for _, t := range s.children {
		if err := t.InitCalc(ctx, p); err != nil {
			return fmt.Errorf("subsector %s: %w", s.qualifiedName(), err)
		}
	}
	if p > 0 && !s.shareWeightInput.At(p) {
		if next, ok := s.nextShareWeightInput(p); ok {
			s.ShareWeightInterp(p-1, next)
		} else {
			s.shareWeight.Set(p, s.shareWeight.At(p-1))
		}
	}
	s.capLimited.Set(p, false)
	s.calibrated.Set(p, false)
	s.unattainable.Set(p, nil)
	s.ResetFixedSupply(p)
	s.SetCalibrationStatus(p)
	return nil
}

func (s *Subsector) nextShareWeightInput(p int) (int, bool) {
	for q := p + 1; q < s.mt.Periods; q++ {
		if s.shareWeightInput.At(q) {
			return q, true
		}
	}
	return 0, false
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
