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

package technology

import (
	"context"
	"fmt"
	"maps"
	"math"
	"slices"

	"k8s.io/apimachinery/pkg/util/validation/field"
	ctrl "sigs.k8s.io/controller-runtime"

	"github.com/llm-d/market-equilibrium/internal/interfaces"
	"github.com/llm-d/market-equilibrium/internal/logging"
	"github.com/llm-d/market-equilibrium/pkg/funcutil"
	"github.com/llm-d/market-equilibrium/pkg/period"
)

// CarbonGas is the gas a carbon tax is levied on.
const CarbonGas = "CO2"

// InputConfig describes one production input.
type InputConfig struct {
	// Name of the consumed good. Its price is looked up by this name.
	Name string
	// Coefficient is the amount of input per unit of output.
	Coefficient float64
}

// Config holds the period-independent parameters of a Standard technology.
type Config struct {
	Name   string
	Inputs []InputConfig
	// CapitalCost is the overnight cost per unit of output capacity.
	CapitalCost float64
	// OMCost is the non-fuel operating cost per unit of output.
	OMCost       float64
	DiscountRate float64
	Lifetime     int
	// Emissions maps a gas to its emission coefficient per unit of input.
	Emissions map[string]float64
}

// Input is a period-indexed input of a Standard technology.
type Input struct {
	name   string
	coef   period.Array[float64]
	demand period.Array[float64]
}

var _ funcutil.Input = (*Input)(nil)

func (in *Input) Name() string                       { return in.name }
func (in *Input) Coefficient(p int) float64          { return in.coef.At(p) }
func (in *Input) SetCoefficient(p int, coef float64) { in.coef.Set(p, coef) }
func (in *Input) Demand(p int) float64               { return in.demand.At(p) }
func (in *Input) SetDemand(p int, demand float64)    { in.demand.Set(p, demand) }

// Standard is a single-output technology with a levelized cost built from
// input prices, annualized capital and O&M, plus any carbon tax on its
// emissions.
type Standard struct {
	cfg    Config
	mt     period.Modeltime
	inputs []*Input

	shareWeight      period.Array[float64]
	shareWeightInput period.Array[bool]
	share            period.Array[float64]
	price            period.Array[float64]
	fuelPrice        period.Array[float64]
	fixedOutputInput period.Array[float64]
	fixedOutput      period.Array[float64]
	output           period.Array[float64]
	calOutput        period.Array[float64]
	hasCalOutput     period.Array[bool]
	carbonTax        period.Array[float64]
}

var _ interfaces.Technology = (*Standard)(nil)

// NewStandard creates a technology sized to mt with a share weight of 1 in
// every period.
func NewStandard(cfg Config, mt period.Modeltime) (*Standard, error) {
	if err := mt.Validate(); err != nil {
		return nil, fmt.Errorf("technology %s: %w", cfg.Name, err)
	}
	t := &Standard{
		cfg:              cfg,
		mt:               mt,
		shareWeight:      period.MustPeriods(mt, 1.0),
		shareWeightInput: period.MustPeriods(mt, false),
		share:            period.MustPeriods(mt, 0.0),
		price:            period.MustPeriods(mt, 0.0),
		fuelPrice:        period.MustPeriods(mt, 0.0),
		fixedOutputInput: period.MustPeriods(mt, 0.0),
		fixedOutput:      period.MustPeriods(mt, 0.0),
		output:           period.MustPeriods(mt, 0.0),
		calOutput:        period.MustPeriods(mt, 0.0),
		hasCalOutput:     period.MustPeriods(mt, false),
		carbonTax:        period.MustPeriods(mt, 0.0),
	}
	t.cfg.Emissions = maps.Clone(cfg.Emissions)
	t.cfg.Inputs = append([]InputConfig(nil), cfg.Inputs...)
	for _, ic := range cfg.Inputs {
		t.inputs = append(t.inputs, &Input{
			name:   ic.Name,
			coef:   period.MustPeriods(mt, ic.Coefficient),
			demand: period.MustPeriods(mt, 0.0),
		})
	}
	return t, nil
}

// Clone returns a deep copy that shares no state with t.
func (t *Standard) Clone() *Standard {
	c := &Standard{
		cfg:              t.cfg,
		mt:               t.mt,
		shareWeight:      *t.shareWeight.Clone(),
		shareWeightInput: *t.shareWeightInput.Clone(),
		share:            *t.share.Clone(),
		price:            *t.price.Clone(),
		fuelPrice:        *t.fuelPrice.Clone(),
		fixedOutputInput: *t.fixedOutputInput.Clone(),
		fixedOutput:      *t.fixedOutput.Clone(),
		output:           *t.output.Clone(),
		calOutput:        *t.calOutput.Clone(),
		hasCalOutput:     *t.hasCalOutput.Clone(),
		carbonTax:        *t.carbonTax.Clone(),
	}
	c.cfg.Emissions = maps.Clone(t.cfg.Emissions)
	c.cfg.Inputs = append([]InputConfig(nil), t.cfg.Inputs...)
	for _, in := range t.inputs {
		c.inputs = append(c.inputs, &Input{
			name:   in.name,
			coef:   *in.coef.Clone(),
			demand: *in.demand.Clone(),
		})
	}
	return c
}

// Rename sets the technology name. Used when a registry template is placed
// under a different name.
func (t *Standard) Rename(name string) {
	t.cfg.Name = name
}

func (t *Standard) Name() string {
	return t.cfg.Name
}

// FuelName is the name of the first input, or empty when there is none.
func (t *Standard) FuelName() string {
	if len(t.inputs) == 0 {
		return ""
	}
	return t.inputs[0].name
}

// SetShareWeightInput records an explicitly specified share weight.
func (t *Standard) SetShareWeightInput(p int, w float64) {
	t.shareWeight.Set(p, w)
	t.shareWeightInput.Set(p, true)
}

// SetFixedOutput makes the technology produce a fixed amount in period p.
func (t *Standard) SetFixedOutput(p int, v float64) {
	t.fixedOutputInput.Set(p, v)
	t.fixedOutput.Set(p, v)
}

// SetCalibrationOutput sets the calibration target for period p.
func (t *Standard) SetCalibrationOutput(p int, v float64) {
	t.calOutput.Set(p, v)
	t.hasCalOutput.Set(p, true)
}

// SetInputCoefficient overrides the coefficient of a named input.
func (t *Standard) SetInputCoefficient(name string, p int, coef float64) error {
	in, ok := funcutil.GetInput(t.inputList(), name)
	if !ok {
		return fmt.Errorf("technology %s has no input %q", t.cfg.Name, name)
	}
	in.SetCoefficient(p, coef)
	return nil
}

func (t *Standard) inputList() []funcutil.Input {
	out := make([]funcutil.Input, len(t.inputs))
	for i, in := range t.inputs {
		out[i] = in
	}
	return out
}

func (t *Standard) CompleteInit(ctx context.Context, mt period.Modeltime) error {
	var errs field.ErrorList
	root := field.NewPath("technology").Key(t.cfg.Name)
	if t.cfg.Name == "" {
		errs = append(errs, field.Required(field.NewPath("technology", "name"), "technology name is required"))
	}
	if mt != t.mt {
		errs = append(errs, field.Invalid(root.Child("modeltime"), mt, "technology was sized for a different modeltime"))
	}
	if t.cfg.Lifetime < 0 {
		errs = append(errs, field.Invalid(root.Child("lifetime"), t.cfg.Lifetime, "must be >= 0"))
	}
	for _, c := range []struct {
		name  string
		value float64
	}{
		{"capitalCost", t.cfg.CapitalCost},
		{"omCost", t.cfg.OMCost},
		{"discountRate", t.cfg.DiscountRate},
	} {
		if c.value < 0 || !isFinite(c.value) {
			errs = append(errs, field.Invalid(root.Child(c.name), c.value, "must be a finite number >= 0"))
		}
	}
	for _, gas := range slices.Sorted(maps.Keys(t.cfg.Emissions)) {
		if v := t.cfg.Emissions[gas]; !isFinite(v) {
			errs = append(errs, field.Invalid(root.Child("emissions").Key(gas), v, "must be finite"))
		}
	}
	seen := make(map[string]bool, len(t.inputs))
	for i, in := range t.inputs {
		p := root.Child("inputs").Index(i)
		if seen[in.name] {
			errs = append(errs, field.Duplicate(p.Child("name"), in.name))
		}
		seen[in.name] = true
		for year, c := range in.coef.All() {
			if c < 0 || !isFinite(c) {
				errs = append(errs, field.Invalid(p.Child("coefficient"), c, fmt.Sprintf("period %d: must be a finite number >= 0", year)))
			}
		}
	}
	for p, w := range t.shareWeight.All() {
		if w < 0 || math.IsNaN(w) {
			errs = append(errs, field.Invalid(root.Child("shareWeights"), w, fmt.Sprintf("period %d: must be >= 0", p)))
		}
	}
	for p, v := range t.fixedOutputInput.All() {
		if v < 0 {
			errs = append(errs, field.Invalid(root.Child("fixedOutput"), v, fmt.Sprintf("period %d: must be >= 0", p)))
		}
	}
	if len(errs) == 0 {
		ctrl.LoggerFrom(ctx).V(logging.TRACE).Info("Technology initialized", "technology", t.cfg.Name, "inputs", len(t.inputs))
	}
	return interfaces.NewConfigurationError(t.cfg.Name, errs)
}

// InitCalc carries the previous period's share weight forward unless one was
// given for p, and restores the fixed output.
func (t *Standard) InitCalc(_ context.Context, p int) error {
	if p > 0 && !t.shareWeightInput.At(p) {
		t.shareWeight.Set(p, t.shareWeight.At(p-1))
	}
	t.fixedOutput.Set(p, t.fixedOutputInput.At(p))
	return nil
}

func (t *Standard) ShareWeight(p int) float64 {
	return t.shareWeight.At(p)
}

func (t *Standard) SetShareWeight(p int, w float64) {
	t.shareWeight.Set(p, w)
}

// CalcCost computes the levelized price per unit of output.
func (t *Standard) CalcCost(p int, prices interfaces.PriceSource) error {
	fuel := 0.0
	for _, in := range t.inputs {
		pr, ok := prices.Price(in.name, p)
		if !ok {
			return fmt.Errorf("%w %q (technology %s, period %d)", interfaces.ErrMissingPrice, in.name, t.cfg.Name, p)
		}
		fuel += in.coef.At(p) * pr
	}
	nonEnergy := t.cfg.OMCost
	if mult := funcutil.CalcNetPresentValueMult(t.cfg.DiscountRate, t.cfg.Lifetime); mult > 0 {
		nonEnergy += t.cfg.CapitalCost / mult
	}
	carbon := t.carbonTax.At(p) * t.cfg.Emissions[CarbonGas] * funcutil.GetCoefSum(t.inputList(), p)

	price := fuel + nonEnergy + carbon
	if !isFinite(fuel) {
		return &interfaces.NumericDivergenceError{Unit: t.cfg.Name, Period: p, Field: "fuelPrice", Value: fuel}
	}
	if !isFinite(price) {
		return &interfaces.NumericDivergenceError{Unit: t.cfg.Name, Period: p, Field: "price", Value: price}
	}
	t.fuelPrice.Set(p, fuel)
	t.price.Set(p, price)
	return nil
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func (t *Standard) Price(p int) float64 {
	return t.price.At(p)
}

func (t *Standard) FuelPrice(p int) float64 {
	return t.fuelPrice.At(p)
}

func (t *Standard) Share(p int) float64 {
	return t.share.At(p)
}

func (t *Standard) SetShare(p int, s float64) {
	t.share.Set(p, s)
}

func (t *Standard) IsFixed(p int) bool {
	return t.fixedOutputInput.At(p) > 0
}

func (t *Standard) FixedOutput(p int) float64 {
	return t.fixedOutput.At(p)
}

func (t *Standard) ScaleFixedOutput(p int, ratio float64) {
	t.fixedOutput.Set(p, t.fixedOutput.At(p)*ratio)
}

func (t *Standard) ResetFixedOutput(p int) {
	t.fixedOutput.Set(p, t.fixedOutputInput.At(p))
}

func (t *Standard) Production(p int, variableDemand float64) {
	out := t.fixedOutput.At(p)
	if !t.IsFixed(p) && variableDemand > 0 {
		out += t.share.At(p) * variableDemand
	}
	t.output.Set(p, out)
	for _, in := range t.inputs {
		in.SetDemand(p, out*in.coef.At(p))
	}
}

func (t *Standard) Output(p int) float64 {
	return t.output.At(p)
}

func (t *Standard) Input(p int) float64 {
	return funcutil.GetDemandSum(t.inputList(), p)
}

func (t *Standard) FuelConsumption(p int) map[string]float64 {
	out := make(map[string]float64, len(t.inputs))
	for _, in := range t.inputs {
		out[in.name] += in.Demand(p)
	}
	return out
}

func (t *Standard) CalibrationOutput(p int) (float64, bool) {
	return t.calOutput.At(p), t.hasCalOutput.At(p)
}

func (t *Standard) ApplyCarbonTax(p int, tax float64) {
	t.carbonTax.Set(p, tax)
}

func (t *Standard) CarbonTaxPaid(p int) float64 {
	return t.carbonTax.At(p) * t.cfg.Emissions[CarbonGas] * t.Input(p)
}

// Emissions returns emissions by gas, proportional to total input.
func (t *Standard) Emissions(p int) map[string]float64 {
	in := t.Input(p)
	out := make(map[string]float64, len(t.cfg.Emissions))
	for gas, coef := range t.cfg.Emissions {
		out[gas] = coef * in
	}
	return out
}
