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

package scenario

import (
	"context"
	"fmt"

	"k8s.io/utils/ptr"
	ctrl "sigs.k8s.io/controller-runtime"

	"github.com/llm-d/market-equilibrium/api/v1alpha1"
	"github.com/llm-d/market-equilibrium/internal/interfaces"
	"github.com/llm-d/market-equilibrium/internal/logging"
	"github.com/llm-d/market-equilibrium/internal/region"
	"github.com/llm-d/market-equilibrium/internal/sector"
	"github.com/llm-d/market-equilibrium/internal/subsector"
	"github.com/llm-d/market-equilibrium/internal/technology"
	"github.com/llm-d/market-equilibrium/internal/world"
	"github.com/llm-d/market-equilibrium/pkg/period"
)

// BuildOptions configures the world built from a scenario.
type BuildOptions struct {
	World world.Config
	// CapLimitMode applies to subsectors that do not set their own.
	CapLimitMode subsector.CapLimitMode
}

// Build validates sc and builds a world in the Parsed state from it.
//
// Demand, prices, carbon tax, GDP scale, capacity limits, fuel preference
// elasticities, taxes and input coefficients carry their last given value
// forward to later periods. Share weights are interpolated by the
// subsectors themselves. Calibration data and fixed output apply only to
// the years they are given for.
func Build(ctx context.Context, sc *v1alpha1.Scenario, opts BuildOptions) (*world.World, error) {
	logger := ctrl.LoggerFrom(ctx)
	if err := interfaces.NewConfigurationError("scenario", sc.Validate()); err != nil {
		return nil, err
	}
	if opts.CapLimitMode == "" {
		opts.CapLimitMode = subsector.CapLimitHard
	}

	mt := period.Modeltime{
		StartYear: sc.Spec.Modeltime.StartYear,
		Timestep:  sc.Spec.Modeltime.Timestep,
		Periods:   sc.Spec.Modeltime.Periods,
	}
	w, err := world.New(mt, opts.World)
	if err != nil {
		return nil, err
	}

	registry := w.GetTechnologyRegistry()
	for _, ts := range sc.Spec.Technologies {
		t, err := technology.NewStandard(technologyConfig(ts), mt)
		if err != nil {
			return nil, err
		}
		if err := registry.Register(t); err != nil {
			return nil, err
		}
	}

	b := &builder{mt: mt, registry: registry, capLimitMode: opts.CapLimitMode}
	for _, rs := range sc.Spec.Regions {
		r, err := b.region(rs)
		if err != nil {
			return nil, err
		}
		if err := w.AddUnit(r); err != nil {
			return nil, err
		}
	}

	logger.V(logging.DEBUG).Info("Built world from scenario",
		"scenario", sc.Metadata.Name,
		"regions", len(sc.Spec.Regions),
		"technologies", registry.Len(),
		"periods", mt.Periods)
	return w, nil
}

func technologyConfig(ts v1alpha1.TechnologySpec) technology.Config {
	cfg := technology.Config{
		Name:         ts.Name,
		CapitalCost:  ts.CapitalCost,
		OMCost:       ts.OMCost,
		DiscountRate: ts.DiscountRate,
		Lifetime:     ts.Lifetime,
		Emissions:    ts.Emissions,
	}
	for _, in := range ts.Inputs {
		cfg.Inputs = append(cfg.Inputs, technology.InputConfig{Name: in.Name, Coefficient: in.Coefficient})
	}
	return cfg
}

type builder struct {
	mt           period.Modeltime
	registry     *technology.Registry
	capLimitMode subsector.CapLimitMode
}

// carryForward calls fn for every period from the first given year on,
// with the latest value given at or before that period.
func (b *builder) carryForward(s v1alpha1.Series, fn func(p int, v float64)) {
	have := false
	last := 0.0
	for p := 0; p < b.mt.Periods; p++ {
		if v, ok := s[b.mt.Year(p)]; ok {
			last, have = v, true
		}
		if have {
			fn(p, last)
		}
	}
}

// explicit calls fn for every period with a given value.
func (b *builder) explicit(s v1alpha1.Series, fn func(p int, v float64)) {
	for p := 0; p < b.mt.Periods; p++ {
		if v, ok := s[b.mt.Year(p)]; ok {
			fn(p, v)
		}
	}
}

func (b *builder) region(rs v1alpha1.RegionSpec) (*region.Region, error) {
	r, err := region.New(interfaces.UnitID(rs.RegionID()), rs.Name, b.mt)
	if err != nil {
		return nil, err
	}
	for good, prices := range rs.Prices {
		b.carryForward(prices, func(p int, v float64) { r.SetFuelPrice(good, p, v) })
	}
	b.carryForward(rs.CarbonTax, r.SetCarbonTax)
	b.carryForward(rs.GDPScale, r.SetReferenceScale)

	for _, ss := range rs.Sectors {
		s, err := sector.New(ss.Name, rs.Name, b.mt, nil)
		if err != nil {
			return nil, err
		}
		b.carryForward(ss.Demand, s.SetDemand)
		for _, subSpec := range ss.Subsectors {
			sub, err := b.subsector(rs.Name, ss.Name, subSpec)
			if err != nil {
				return nil, err
			}
			s.AddSubsector(sub)
		}
		r.AddSector(s)
	}
	return r, nil
}

func (b *builder) subsector(regionName, sectorName string, spec v1alpha1.SubsectorSpec) (*subsector.Subsector, error) {
	sub, err := subsector.New(subsector.Identity{
		Name:   spec.Name,
		Region: regionName,
		Sector: sectorName,
		Unit:   spec.Unit,
		Fuel:   spec.Fuel,
	}, b.mt)
	if err != nil {
		return nil, err
	}
	sub.SetCapLimitMode(subsector.CapLimitMode(ptr.Deref(spec.CapLimitMode, string(b.capLimitMode))))

	lexp := spec.EffectiveLogitExponent()
	for p := 0; p < b.mt.Periods; p++ {
		sub.SetLogitExponent(p, lexp)
	}
	b.explicit(spec.ShareWeights, sub.SetShareWeightInput)
	b.carryForward(spec.CapacityLimits, sub.SetCapacityLimit)
	b.carryForward(spec.FuelPrefElasticity, sub.SetFuelPrefElasticity)
	b.carryForward(spec.Tax, sub.SetTax)
	b.explicit(spec.CalOutput, sub.SetCalibrationOutput)

	for _, ref := range spec.Technologies {
		t, err := b.registry.Instantiate(ref.Template)
		if err != nil {
			return nil, fmt.Errorf("subsector %s/%s/%s: %w", regionName, sectorName, spec.Name, err)
		}
		if ref.Name != "" {
			t.Rename(ref.Name)
		}
		b.explicit(ref.ShareWeights, t.SetShareWeightInput)
		b.explicit(ref.FixedOutput, t.SetFixedOutput)
		b.explicit(ref.CalOutput, t.SetCalibrationOutput)
		for input, coefs := range ref.InputCoefficients {
			var setErr error
			b.carryForward(coefs, func(p int, v float64) {
				if err := t.SetInputCoefficient(input, p, v); err != nil && setErr == nil {
					setErr = err
				}
			})
			if setErr != nil {
				return nil, fmt.Errorf("subsector %s/%s/%s: %w", regionName, sectorName, spec.Name, setErr)
			}
		}
		sub.AddTechnology(t)
	}
	return sub, nil
}
