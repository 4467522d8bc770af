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

package sector

import (
	"context"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"k8s.io/apimachinery/pkg/util/validation/field"
	ctrl "sigs.k8s.io/controller-runtime"

	"github.com/llm-d/market-equilibrium/internal/engines/limiter"
	"github.com/llm-d/market-equilibrium/internal/interfaces"
	"github.com/llm-d/market-equilibrium/internal/logging"
	"github.com/llm-d/market-equilibrium/internal/subsector"
	"github.com/llm-d/market-equilibrium/pkg/period"
)

// Sector is the market for one good inside a region. It apportions an
// exogenous demand among its subsectors.
type Sector struct {
	name   string
	region string
	mt     period.Modeltime

	subsectors []*subsector.Subsector
	subIndex   map[string]int
	buildErrs  field.ErrorList
	limiter    limiter.Limiter

	demand period.Array[float64]
	price  period.Array[float64]
	output period.Array[float64]
	solved period.Array[bool]
}

// Result reports what happened during one sector solve.
type Result struct {
	// LimitedSubsectors is the number of subsectors frozen at their
	// capacity limit.
	LimitedSubsectors int
	// Feasible is false when capacity limits left part of the variable
	// demand unmet.
	Feasible bool
}

// New creates a sector selling the good name. A nil limiter selects the
// proportional strategy.
func New(name, region string, mt period.Modeltime, lim limiter.Limiter) (*Sector, error) {
	if err := mt.Validate(); err != nil {
		return nil, fmt.Errorf("sector %s: %w", name, err)
	}
	if lim == nil {
		var err error
		if lim, err = limiter.NewLimiter(limiter.ProportionalStrategy); err != nil {
			return nil, err
		}
	}
	return &Sector{
		name:     name,
		region:   region,
		mt:       mt,
		subIndex: make(map[string]int),
		limiter:  lim,
		demand:   period.MustPeriods(mt, 0.0),
		price:    period.MustPeriods(mt, 0.0),
		output:   period.MustPeriods(mt, 0.0),
		solved:   period.MustPeriods(mt, false),
	}, nil
}

// Name is also the name of the good the sector supplies.
func (s *Sector) Name() string {
	return s.name
}

func (s *Sector) qualifiedName() string {
	return s.region + "/" + s.name
}

// AddSubsector appends a subsector. Duplicate names are reported by
// CompleteInit.
func (s *Sector) AddSubsector(sub *subsector.Subsector) {
	if _, ok := s.subIndex[sub.Name()]; ok {
		s.buildErrs = append(s.buildErrs, field.Duplicate(field.NewPath("subsectors"), sub.Name()))
		return
	}
	s.subIndex[sub.Name()] = len(s.subsectors)
	s.subsectors = append(s.subsectors, sub)
}

// Subsectors returns the subsectors in insertion order.
func (s *Sector) Subsectors() []*subsector.Subsector {
	return append([]*subsector.Subsector(nil), s.subsectors...)
}

// Subsector returns the named subsector.
func (s *Sector) Subsector(name string) (*subsector.Subsector, bool) {
	i, ok := s.subIndex[name]
	if !ok {
		return nil, false
	}
	return s.subsectors[i], true
}

// SetDemand sets the exogenous demand for the good in period p.
func (s *Sector) SetDemand(p int, v float64) {
	s.demand.Set(p, v)
}

func (s *Sector) GetDemand(p int) float64 {
	return s.demand.At(p)
}

func (s *Sector) GetPrice(p int) float64 {
	return s.price.At(p)
}

func (s *Sector) GetOutput(p int) float64 {
	return s.output.At(p)
}

// Solved reports whether the sector price for p comes from a completed
// solve in the current period.
func (s *Sector) Solved(p int) bool {
	return s.solved.At(p)
}

// CompleteInit validates the sector and all subsectors.
func (s *Sector) CompleteInit(ctx context.Context) error {
	root := field.NewPath("sector").Key(s.name)
	errs := append(field.ErrorList(nil), s.buildErrs...)
	if s.name == "" {
		errs = append(errs, field.Required(root.Child("name"), "sector name is required"))
	}
	if len(s.subsectors) == 0 {
		errs = append(errs, field.Required(root.Child("subsectors"), "at least one subsector is required"))
	}
	for p, d := range s.demand.All() {
		if d < 0 || math.IsNaN(d) || math.IsInf(d, 0) {
			errs = append(errs, field.Invalid(root.Child("demand").Index(p), d, "must be a finite number >= 0"))
		}
	}

	all := []error{}
	if err := interfaces.NewConfigurationError(s.qualifiedName(), errs); err != nil {
		all = append(all, err)
	}
	for _, sub := range s.subsectors {
		if err := sub.CompleteInit(ctx); err != nil {
			all = append(all, err)
		}
	}
	return interfaces.AggregateErrors(all)
}

// InitCalc prepares every subsector for period p.
func (s *Sector) InitCalc(ctx context.Context, p int) error {
	s.solved.Set(p, false)
	for _, sub := range s.subsectors {
		if err := sub.InitCalc(ctx, p); err != nil {
			return err
		}
	}
	return nil
}

// ApplyCarbonTax passes the regional carbon tax to every subsector.
func (s *Sector) ApplyCarbonTax(tax float64, p int) {
	for _, sub := range s.subsectors {
		sub.ApplyCarbonTax(tax, p)
	}
}

// Calc solves the sector for period p: prices and shares of the
// subsectors, fixed supply, normalization, capacity limits, calibration and
// finally outputs.
func (s *Sector) Calc(
	ctx context.Context,
	rc interfaces.RunContext,
	p int,
	prices interfaces.PriceSource,
	referenceScale float64,
) (Result, error) {
	logger := ctrl.LoggerFrom(ctx)
	demand := s.demand.At(p)

	for _, sub := range s.subsectors {
		if err := sub.CalcPrice(ctx, p, prices); err != nil {
			return Result{}, err
		}
		if err := sub.CalcShare(ctx, p, referenceScale); err != nil {
			return Result{}, err
		}
	}

	totalFixed := s.accountFixedSupply(ctx, demand, p)

	var variable []limiter.Member
	sum := 0.0
	for _, sub := range s.subsectors {
		if !sub.AllOutputFixed(p) {
			sum += sub.GetShare(p)
		}
	}
	for _, sub := range s.subsectors {
		if !sub.AllOutputFixed(p) {
			sub.NormShare(sum, p)
			variable = append(variable, sub)
		}
	}

	limited, err := s.limiter.Limit(ctx, variable, p)
	if err != nil {
		return Result{}, fmt.Errorf("sector %s: %w", s.qualifiedName(), err)
	}
	feasible := limited.Feasible || len(variable) == 0 || demand <= totalFixed
	if !feasible {
		logger.Info("Capacity limits leave part of the demand unmet",
			"sector", s.qualifiedName(),
			"period", p,
			"limited", limited.Limited,
			"cappedShare", limited.CappedShare)
	}

	for _, sub := range s.subsectors {
		sub.AdjShares(demand, totalFixed, p)
	}

	if rc.CalibrationEnabled {
		totalCal := 0.0
		for _, sub := range s.subsectors {
			totalCal += sub.GetTotalCalOutputs(p)
		}
		for _, sub := range s.subsectors {
			if err := sub.AdjustForCalibration(ctx, rc, demand, totalFixed, totalCal, p); err != nil {
				return Result{}, err
			}
		}
	}

	shares := make([]float64, len(s.subsectors))
	subPrices := make([]float64, len(s.subsectors))
	outputs := make([]float64, len(s.subsectors))
	for i, sub := range s.subsectors {
		sub.SetOutput(demand*sub.GetShare(p), p)
		shares[i] = sub.GetShare(p)
		subPrices[i] = sub.GetPrice(p)
		outputs[i] = sub.GetOutput(p)
	}
	if total := floats.Sum(shares); total > 0 {
		s.price.Set(p, floats.Dot(shares, subPrices)/total)
	} else if len(subPrices) > 0 {
		s.price.Set(p, floats.Sum(subPrices)/float64(len(subPrices)))
	}
	s.output.Set(p, floats.Sum(outputs))
	s.solved.Set(p, true)

	logger.V(logging.DEBUG).Info("Sector solved",
		"sector", s.qualifiedName(),
		"period", p,
		"demand", demand,
		"price", s.price.At(p),
		"output", s.output.At(p))

	return Result{LimitedSubsectors: len(limited.Limited), Feasible: feasible}, nil
}

// accountFixedSupply scales fixed supply down when it exceeds demand and
// sets the fixed share of each subsector. It returns the total fixed supply
// after scaling.
func (s *Sector) accountFixedSupply(ctx context.Context, demand float64, p int) float64 {
	totalFixed := 0.0
	for _, sub := range s.subsectors {
		totalFixed += sub.GetFixedSupply(p)
	}
	if totalFixed > demand && totalFixed > 0 {
		ratio := math.Max(0, demand) / totalFixed
		ctrl.LoggerFrom(ctx).V(logging.DEBUG).Info("Fixed supply exceeds demand, scaling down",
			"sector", s.qualifiedName(), "period", p, "fixedSupply", totalFixed, "demand", demand)
		for _, sub := range s.subsectors {
			sub.ScaleFixedSupply(ratio, p)
		}
		totalFixed = math.Max(0, demand)
	}
	for _, sub := range s.subsectors {
		fixedShare := 0.0
		if demand > 0 {
			fixedShare = sub.GetFixedSupply(p) / demand
		}
		sub.SetFixedShare(p, fixedShare)
	}
	return totalFixed
}

// IsAllCalibrated reports whether every subsector meets its calibration
// targets in p, and lists the unattainable ones.
func (s *Sector) IsAllCalibrated(p int, accuracy float64) (bool, []*interfaces.CalibrationUnattainableError) {
	ok := true
	var unattainable []*interfaces.CalibrationUnattainableError
	for _, sub := range s.subsectors {
		if !sub.IsCalibrated(p, accuracy) {
			ok = false
		}
		if u := sub.UnattainableCalibration(p); u != nil {
			unattainable = append(unattainable, u)
		}
	}
	return ok, unattainable
}

// CheckCalConsistency verifies that calibrated plus fixed output does not
// exceed demand in p.
func (s *Sector) CheckCalConsistency(p int) error {
	totalCal, totalFixed := 0.0, 0.0
	for _, sub := range s.subsectors {
		totalCal += sub.GetTotalCalOutputs(p)
		totalFixed += sub.GetFixedSupply(p)
	}
	demand := s.demand.At(p)
	if totalCal > 0 && totalCal+totalFixed > demand*(1+1e-6) {
		return fmt.Errorf("sector %s period %d: calibrated output %.6g plus fixed supply %.6g exceeds demand %.6g",
			s.qualifiedName(), p, totalCal, totalFixed, demand)
	}
	return nil
}

// Emissions returns emissions by gas summed over subsectors.
func (s *Sector) Emissions(p int) map[string]float64 {
	out := make(map[string]float64)
	for _, sub := range s.subsectors {
		for gas, v := range sub.GetAllEmissions(p) {
			out[gas] += v
		}
	}
	return out
}

// GetTotalCarbonTaxPaid sums carbon tax paid over subsectors.
func (s *Sector) GetTotalCarbonTaxPaid(p int) float64 {
	total := 0.0
	for _, sub := range s.subsectors {
		total += sub.GetTotalCarbonTaxPaid(p)
	}
	return total
}
