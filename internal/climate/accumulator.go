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
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"

	ctrl "sigs.k8s.io/controller-runtime"

	"github.com/llm-d/market-equilibrium/internal/emissions"
	"github.com/llm-d/market-equilibrium/internal/logging"
)

// ErrNilCurve is returned when SetEmissions is called without a curve.
var ErrNilCurve = errors.New("nil emissions curve")

// AccumulatorConfig configures the in-memory model.
type AccumulatorConfig struct {
	// Timestep is the number of years each curve point stands for.
	Timestep int
	// Airborne maps a gas to the fraction of cumulative emissions that stays
	// in the atmosphere. Gases not listed use DefaultAirborneFraction.
	Airborne map[string]float64
	// Preindustrial maps a gas to its concentration before any emissions.
	Preindustrial map[string]float64
}

// DefaultAirborneFraction applies to gases without a configured fraction.
const DefaultAirborneFraction = 0.45

// Accumulator is a simple climate model that integrates the global emissions
// of each gas and derives a concentration from a constant airborne fraction.
// It is safe for concurrent use.
type Accumulator struct {
	cfg AccumulatorConfig

	mu         sync.RWMutex
	curves     map[string]*emissions.Curve
	totals     map[string]*emissions.Curve
	cumulative map[string]*emissions.Curve
	ran        bool
}

var _ Model = (*Accumulator)(nil)

// NewAccumulator creates an empty model. A timestep <= 0 is treated as 1.
func NewAccumulator(cfg AccumulatorConfig) *Accumulator {
	if cfg.Timestep <= 0 {
		cfg.Timestep = 1
	}
	return &Accumulator{
		cfg:        cfg,
		curves:     make(map[string]*emissions.Curve),
		totals:     make(map[string]*emissions.Curve),
		cumulative: make(map[string]*emissions.Curve),
	}
}

func (a *Accumulator) SetEmissions(curve *emissions.Curve) error {
	if curve == nil {
		return ErrNilCurve
	}
	if curve.Gas == "" {
		return fmt.Errorf("emissions curve %q has no gas", curve.LabelSetKey())
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.curves[curve.Gas+"|"+curve.LabelSetKey()] = curve
	a.ran = false
	return nil
}

// Run sums the stored curves per gas and integrates the totals.
func (a *Accumulator) Run(ctx context.Context) error {
	logger := ctrl.LoggerFrom(ctx)
	if err := ctx.Err(); err != nil {
		return err
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	totals := make(map[string]*emissions.Curve)
	for _, key := range slices.Sorted(maps.Keys(a.curves)) {
		c := a.curves[key]
		if t, ok := totals[c.Gas]; ok {
			totals[c.Gas] = t.Add(c)
		} else {
			totals[c.Gas] = emissions.NewCurve(c.Gas, nil).Add(c)
		}
	}

	cumulative := make(map[string]*emissions.Curve, len(totals))
	for gas, t := range totals {
		cum := emissions.NewCurve(gas, nil)
		for _, year := range t.Years() {
			cum.Set(year, t.Integrate(year, a.cfg.Timestep))
		}
		cumulative[gas] = cum
		if last := cum.Latest(); last != nil {
			logger.V(logging.DEBUG).Info("Climate model integrated emissions",
				"gas", gas,
				"year", last.Year,
				"cumulative", last.Value)
		}
	}

	a.totals = totals
	a.cumulative = cumulative
	a.ran = true
	return nil
}

func (a *Accumulator) Cumulative(gas string, year int) float64 {
	a.mu.RLock()
	defer a.mu.RUnlock()
	t, ok := a.totals[gas]
	if !ok || !a.ran {
		return 0
	}
	return t.Integrate(year, a.cfg.Timestep)
}

// Concentration returns preindustrial + airborne fraction * cumulative
// emissions for years the model covers.
func (a *Accumulator) Concentration(gas string, year int) (float64, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	cum, ok := a.cumulative[gas]
	if !ok || !a.ran {
		return 0, false
	}
	if len(cum.Points) == 0 || year < cum.Points[0].Year {
		return 0, false
	}
	fraction, ok := a.cfg.Airborne[gas]
	if !ok {
		fraction = DefaultAirborneFraction
	}
	return a.cfg.Preindustrial[gas] + fraction*a.totals[gas].Integrate(year, a.cfg.Timestep), true
}

func (a *Accumulator) Gases() []string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	gases := make(map[string]struct{})
	for _, c := range a.curves {
		gases[c.Gas] = struct{}{}
	}
	return slices.Sorted(maps.Keys(gases))
}

func (a *Accumulator) HasRun() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.ran
}
