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

package region

import (
	"context"
	"fmt"
	"math"
	"slices"

	"k8s.io/apimachinery/pkg/util/validation/field"
	ctrl "sigs.k8s.io/controller-runtime"

	"github.com/llm-d/market-equilibrium/internal/interfaces"
	"github.com/llm-d/market-equilibrium/internal/logging"
	"github.com/llm-d/market-equilibrium/internal/sector"
	"github.com/llm-d/market-equilibrium/pkg/period"
)

// Region is a geographic unit solved independently of every other region
// during a calc pass. It owns its sectors, the prices of goods traded from
// outside the model, a carbon tax series and a reference scale (e.g. GDP
// relative to the base year) used by fuel preference elasticities.
type Region struct {
	id   interfaces.UnitID
	name string
	mt   period.Modeltime

	sectors     []*sector.Sector
	sectorIndex map[string]int
	buildErrs   field.ErrorList

	fuelPrices     map[string]*fuelPrice
	carbonTax      period.Array[float64]
	referenceScale period.Array[float64]
}

var _ interfaces.PriceSource = (*Region)(nil)

type fuelPrice struct {
	value period.Array[float64]
	set   period.Array[bool]
}

// New creates a region. An empty id defaults to the name.
func New(id interfaces.UnitID, name string, mt period.Modeltime) (*Region, error) {
	if err := mt.Validate(); err != nil {
		return nil, fmt.Errorf("region %s: %w", name, err)
	}
	if id == "" {
		id = interfaces.UnitID(name)
	}
	return &Region{
		id:             id,
		name:           name,
		mt:             mt,
		sectorIndex:    make(map[string]int),
		fuelPrices:     make(map[string]*fuelPrice),
		carbonTax:      period.MustPeriods(mt, 0.0),
		referenceScale: period.MustPeriods(mt, 1.0),
	}, nil
}

func (r *Region) ID() interfaces.UnitID {
	return r.id
}

func (r *Region) Name() string {
	return r.name
}

// AddSector appends a sector. Sectors are solved in insertion order, so a
// sector consuming another sector's good should be added after it.
func (r *Region) AddSector(s *sector.Sector) {
	if _, ok := r.sectorIndex[s.Name()]; ok {
		r.buildErrs = append(r.buildErrs, field.Duplicate(field.NewPath("sectors"), s.Name()))
		return
	}
	r.sectorIndex[s.Name()] = len(r.sectors)
	r.sectors = append(r.sectors, s)
}

// Sectors returns the sectors in solve order.
func (r *Region) Sectors() []*sector.Sector {
	return slices.Clone(r.sectors)
}

// Sector returns the named sector.
func (r *Region) Sector(name string) (*sector.Sector, bool) {
	i, ok := r.sectorIndex[name]
	if !ok {
		return nil, false
	}
	return r.sectors[i], true
}

// SetFuelPrice sets the exogenous price of good in period p.
func (r *Region) SetFuelPrice(good string, p int, v float64) {
	fp, ok := r.fuelPrices[good]
	if !ok {
		fp = &fuelPrice{
			value: period.MustPeriods(r.mt, 0.0),
			set:   period.MustPeriods(r.mt, false),
		}
		r.fuelPrices[good] = fp
	}
	fp.value.Set(p, v)
	fp.set.Set(p, true)
}

func (r *Region) SetCarbonTax(p int, v float64) {
	r.carbonTax.Set(p, v)
}

func (r *Region) CarbonTax(p int) float64 {
	return r.carbonTax.At(p)
}

func (r *Region) SetReferenceScale(p int, v float64) {
	r.referenceScale.Set(p, v)
}

func (r *Region) ReferenceScale(p int) float64 {
	return r.referenceScale.At(p)
}

// Price returns the price of good in p: the solved price of the sector that
// supplies it, or else the exogenous price.
func (r *Region) Price(good string, p int) (float64, bool) {
	if i, ok := r.sectorIndex[good]; ok && r.sectors[i].Solved(p) {
		return r.sectors[i].GetPrice(p), true
	}
	if fp, ok := r.fuelPrices[good]; ok && fp.set.At(p) {
		return fp.value.At(p), true
	}
	return 0, false
}

// CompleteInit validates the region and everything it owns.
func (r *Region) CompleteInit(ctx context.Context) error {
	root := field.NewPath("region").Key(r.name)
	errs := append(field.ErrorList(nil), r.buildErrs...)
	if r.name == "" {
		errs = append(errs, field.Required(root.Child("name"), "region name is required"))
	}
	if len(r.sectors) == 0 {
		errs = append(errs, field.Required(root.Child("sectors"), "at least one sector is required"))
	}
	for p, v := range r.referenceScale.All() {
		if v <= 0 || math.IsInf(v, 0) || math.IsNaN(v) {
			errs = append(errs, field.Invalid(root.Child("gdpScale").Index(p), v, "must be a finite number > 0"))
		}
	}
	for good, fp := range r.fuelPrices {
		for p, v := range fp.value.All() {
			if v < 0 || math.IsInf(v, 0) {
				errs = append(errs, field.Invalid(root.Child("prices").Key(good).Index(p), v, "must be a finite number >= 0"))
			}
		}
	}

	all := []error{}
	if err := interfaces.NewConfigurationError(r.name, errs); err != nil {
		all = append(all, err)
	}
	for _, s := range r.sectors {
		if err := s.CompleteInit(ctx); err != nil {
			all = append(all, err)
		}
	}
	return interfaces.AggregateErrors(all)
}

// InitCalc prepares every sector for period p.
func (r *Region) InitCalc(ctx context.Context, p int) error {
	for _, s := range r.sectors {
		if err := s.InitCalc(ctx, p); err != nil {
			return fmt.Errorf("region %s: %w", r.name, err)
		}
	}
	return nil
}

// Calc solves every sector of the region for period p in order, making each
// solved sector price available to the sectors after it.
func (r *Region) Calc(ctx context.Context, rc interfaces.RunContext, p int) (interfaces.UnitResult, error) {
	logger := ctrl.LoggerFrom(ctx)
	result := interfaces.UnitResult{}
	tax := r.carbonTax.At(p)
	scale := r.referenceScale.At(p)

	for _, s := range r.sectors {
		s.ApplyCarbonTax(tax, p)
		res, err := s.Calc(ctx, rc, p, r, scale)
		if err != nil {
			return result, fmt.Errorf("region %s: %w", r.name, err)
		}
		result.LimitedSubsectors += res.LimitedSubsectors
		result.Output += s.GetOutput(p)
	}

	result.Calibrated = true
	for _, s := range r.sectors {
		ok, unattainable := s.IsAllCalibrated(p, rc.CalAccuracy)
		result.Calibrated = result.Calibrated && ok
		result.Unattainable = append(result.Unattainable, unattainable...)
	}

	logger.V(logging.DEBUG).Info("Region solved",
		"region", r.name,
		"period", p,
		"iteration", rc.Iteration,
		"calibrated", result.Calibrated)
	return result, nil
}

// PostCalc logs the period summary.
func (r *Region) PostCalc(ctx context.Context, p int) error {
	logger := ctrl.LoggerFrom(ctx)
	for _, s := range r.sectors {
		logger.V(logging.DEBUG).Info("Period complete",
			"region", r.name,
			"sector", s.Name(),
			"period", p,
			"price", s.GetPrice(p),
			"output", s.GetOutput(p),
			"carbonTaxPaid", s.GetTotalCarbonTaxPaid(p))
	}
	return nil
}

// IsAllCalibrated reports whether every sector meets its calibration
// targets in p.
func (r *Region) IsAllCalibrated(p int, accuracy float64, printWarnings bool) bool {
	all := true
	for _, s := range r.sectors {
		ok, unattainable := s.IsAllCalibrated(p, accuracy)
		if !ok {
			all = false
			if printWarnings {
				ctrl.Log.Info("Sector is not calibrated",
					"region", r.name, "sector", s.Name(), "period", p, "unattainable", len(unattainable))
			}
		}
	}
	return all
}

// CheckCalConsistency checks calibration data of every sector against its
// demand.
func (r *Region) CheckCalConsistency(p int) error {
	var errs []error
	for _, s := range r.sectors {
		if err := s.CheckCalConsistency(p); err != nil {
			errs = append(errs, err)
		}
	}
	return interfaces.AggregateErrors(errs)
}

// Emissions returns emissions by gas summed over sectors.
func (r *Region) Emissions(p int) map[string]float64 {
	out := make(map[string]float64)
	for _, s := range r.sectors {
		for gas, v := range s.Emissions(p) {
			out[gas] += v
		}
	}
	return out
}
