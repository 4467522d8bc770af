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

	"gonum.org/v1/gonum/floats"
	ctrl "sigs.k8s.io/controller-runtime"

	"github.com/llm-d/market-equilibrium/internal/interfaces"
	"github.com/llm-d/market-equilibrium/internal/logging"
)

// capLimitSmoothing is the norm order of the smooth minimum used by
// CapLimitTransform. Larger values track min(share, limit) more closely.
const capLimitSmoothing = 8.0

// CapLimitTransform maps an uncapped share onto a capped one with a smooth
// minimum of the share and the limit:
//
//	f(s) = s / (1 + (s/L)^k)^(1/k)
//
// f(0) = 0, f is increasing in s, f(s) < L for every s, f(s) -> L as s
// grows, and f(s) is close to s while s is well below L. A limit of 1 or
// more means the share is not limited.
func CapLimitTransform(capLimit, originalShare float64) float64 {
	if capLimit >= 1 {
		return originalShare
	}
	if capLimit <= 0 || originalShare <= 0 || math.IsNaN(originalShare) {
		return 0
	}
	r := originalShare / capLimit
	if r <= 1 {
		return originalShare / math.Pow(1+math.Pow(r, capLimitSmoothing), 1/capLimitSmoothing)
	}
	// same function, arranged so that large ratios do not overflow
	return capLimit / math.Pow(1+math.Pow(r, -capLimitSmoothing), 1/capLimitSmoothing)
}

// CalcPrice computes the levelized cost of every technology for period p.
func (s *Subsector) CalcPrice(_ context.Context, p int, prices interfaces.PriceSource) error {
	for _, t := range s.children {
		if err := t.CalcCost(p, prices); err != nil {
			return fmt.Errorf("subsector %s: %w", s.qualifiedName(), err)
		}
	}
	return nil
}

// CalcShare computes the logit shares of the technologies, the subsector
// price and fuel price, and the subsector's own unnormalized share
//
//	shareWeight * price^logitExponent * referenceScale^fuelPrefElasticity
//
// which the parent normalizes across siblings with NormShare.
func (s *Subsector) CalcShare(ctx context.Context, p int, referenceScale float64) error {
	logger := ctrl.LoggerFrom(ctx)
	lexp := s.logitExponent.At(p)

	if err := s.calcTechShares(p, lexp); err != nil {
		return err
	}
	s.calcAggregatePrice(p)

	if s.AllOutputFixed(p) {
		s.share.Set(p, 0)
		return nil
	}
	sw := s.shareWeight.At(p)
	if sw == 0 {
		s.share.Set(p, 0)
		return nil
	}
	if !s.hasVariableShare(p) && !s.calibrating(p) {
		// a positive subsector share would produce no output
		return s.divergence(p, "technologies.shareWeights", 0)
	}
	price := s.price.At(p)
	if price <= 0 || !isFinite(price) {
		return s.divergence(p, "price", price)
	}
	scaleTerm := 1.0
	if fpe := s.fuelPrefElasticity.At(p); fpe != 0 {
		if referenceScale <= 0 || !isFinite(referenceScale) {
			return s.divergence(p, "referenceScale", referenceScale)
		}
		scaleTerm = math.Pow(referenceScale, fpe)
	}
	u := sw * math.Pow(price, lexp) * scaleTerm
	if u < 0 || !isFinite(u) {
		return s.divergence(p, "share", u)
	}
	s.share.Set(p, u)

	logger.V(logging.TRACE).Info("Computed subsector share",
		"subsector", s.qualifiedName(),
		"period", p,
		"price", price,
		"unnormalizedShare", u)
	return nil
}

// calcTechShares writes the normalized logit shares of the variable
// technologies. Fixed technologies get a zero share.
func (s *Subsector) calcTechShares(p int, lexp float64) error {
	weights := make([]float64, len(s.children))
	for i, t := range s.children {
		if t.IsFixed(p) {
			continue
		}
		sw := t.ShareWeight(p)
		if sw < 0 || math.IsNaN(sw) {
			return s.divergence(p, fmt.Sprintf("technologies[%s].shareWeight", t.Name()), sw)
		}
		if sw == 0 {
			continue
		}
		price := t.Price(p)
		if price < 0 || !isFinite(price) {
			return s.divergence(p, fmt.Sprintf("technologies[%s].price", t.Name()), price)
		}
		w := sw * math.Pow(price, lexp)
		if !isFinite(w) {
			return s.divergence(p, fmt.Sprintf("technologies[%s].logitWeight", t.Name()), w)
		}
		weights[i] = w
	}
	if sum := floats.Sum(weights); sum > 0 {
		floats.Scale(1/sum, weights)
	}
	for i, t := range s.children {
		t.SetShare(p, weights[i])
	}
	return nil
}

func (s *Subsector) hasVariableShare(p int) bool {
	for _, t := range s.children {
		if !t.IsFixed(p) && t.Share(p) > 0 {
			return true
		}
	}
	return false
}

// calibrating reports whether calibration in p may still restart a zero
// technology share weight.
func (s *Subsector) calibrating(p int) bool {
	if s.doCalibration.At(p) {
		return true
	}
	for _, t := range s.children {
		if _, ok := t.CalibrationOutput(p); ok {
			return true
		}
	}
	return false
}

// calcAggregatePrice sets price and fuel price as the share weighted average
// over variable technologies, falling back to fixed output weights and then
// a plain mean when no technology has a share.
func (s *Subsector) calcAggregatePrice(p int) {
	n := len(s.children)
	if n == 0 {
		return
	}
	shares := make([]float64, n)
	prices := make([]float64, n)
	fuelPrices := make([]float64, n)
	for i, t := range s.children {
		shares[i] = t.Share(p)
		prices[i] = t.Price(p)
		fuelPrices[i] = t.FuelPrice(p)
	}
	weights := shares
	if floats.Sum(weights) == 0 {
		weights = make([]float64, n)
		for i, t := range s.children {
			weights[i] = t.FixedOutput(p)
		}
	}
	if total := floats.Sum(weights); total > 0 {
		floats.Scale(1/total, weights)
	} else {
		for i := range weights {
			weights[i] = 1 / float64(n)
		}
	}
	s.price.Set(p, floats.Dot(weights, prices)+s.tax.At(p))
	s.fuelPrice.Set(p, floats.Dot(weights, fuelPrices))
}

// NormShare divides the unnormalized share by the sum over siblings.
func (s *Subsector) NormShare(sum float64, p int) {
	if sum > 0 {
		s.share.Set(p, s.share.At(p)/sum)
	} else {
		s.share.Set(p, 0)
	}
}

// LimitShares is one step of the sibling capacity-limit loop. The share is
// multiplied by multiplier; if the result reaches the capacity limit the
// subsector is flagged as limited and its share frozen. Shares already
// limited in p are left unchanged, and a zero multiplier zeroes every share
// that is not limited.
//
// In hard mode the frozen share is the limit itself. In smooth mode every
// step below a limit of 1 maps the scaled share through CapLimitTransform,
// whether or not the limit is reached, so the resulting share is continuous
// and increasing in the scaled share.
func (s *Subsector) LimitShares(multiplier float64, p int) {
	if s.capLimited.At(p) {
		return
	}
	if multiplier == 0 {
		s.share.Set(p, 0)
		return
	}
	limit := s.capLimit.At(p)
	candidate := s.share.At(p) * multiplier
	if limit >= 1 {
		s.share.Set(p, candidate)
		return
	}
	reached := candidate >= limit
	switch {
	case s.capLimitMode == CapLimitSmooth:
		s.share.Set(p, CapLimitTransform(limit, candidate))
	case reached:
		s.share.Set(p, limit)
	default:
		s.share.Set(p, candidate)
	}
	if reached {
		s.capLimited.Set(p, true)
	}
}

// AdjShares folds fixed supply into the normalized share. Subsectors whose
// output is entirely fixed take their fixed share; the others have their
// share scaled to the demand left after all fixed supply, plus their own
// fixed share.
func (s *Subsector) AdjShares(demand, totalFixedSupply float64, p int) {
	if demand <= 0 {
		return
	}
	if s.AllOutputFixed(p) {
		s.share.Set(p, s.fixedShare.At(p))
		return
	}
	ratio := math.Max(0, (demand-totalFixedSupply)/demand)
	s.share.Set(p, s.share.At(p)*ratio+s.fixedShare.At(p))
}

// SetOutput distributes demand (already multiplied by this subsector's
// share) to the technologies and aggregates their output, input and carbon
// tax paid.
func (s *Subsector) SetOutput(demand float64, p int) {
	variable := math.Max(0, demand-s.GetFixedSupply(p))
	var out, in, tax float64
	for _, t := range s.children {
		t.Production(p, variable)
		out += t.Output(p)
		in += t.Input(p)
		tax += t.CarbonTaxPaid(p)
	}
	s.output.Set(p, out)
	s.input.Set(p, in)
	s.peCons.Set(p, in)
	s.carbonTaxPaid.Set(p, tax)
}

// ShareWeightInterp linearly interpolates the share weight over the periods
// strictly between beginPeriod and endPeriod. The endpoint values are not
// modified.
func (s *Subsector) ShareWeightInterp(beginPeriod, endPeriod int) {
	if endPeriod <= beginPeriod {
		return
	}
	begin := s.shareWeight.At(beginPeriod)
	end := s.shareWeight.At(endPeriod)
	span := float64(endPeriod - beginPeriod)
	for p := beginPeriod + 1; p < endPeriod; p++ {
		s.shareWeight.Set(p, begin+(end-begin)*float64(p-beginPeriod)/span)
	}
}

// ShareWeightScale rescales the technology share weights so that the largest
// is 1. Technology shares are unchanged.
func (s *Subsector) ShareWeightScale(p int) {
	if len(s.children) == 0 {
		return
	}
	weights := make([]float64, len(s.children))
	for i, t := range s.children {
		weights[i] = t.ShareWeight(p)
	}
	maxWeight := floats.Max(weights)
	if maxWeight <= 0 {
		return
	}
	for _, t := range s.children {
		t.SetShareWeight(p, t.ShareWeight(p)/maxWeight)
	}
}

// ScaleShareWeight multiplies the subsector share weight by scale.
func (s *Subsector) ScaleShareWeight(scale float64, p int) {
	s.shareWeight.Set(p, s.shareWeight.At(p)*scale)
}

func (s *Subsector) divergence(p int, fieldName string, v float64) error {
	return &interfaces.NumericDivergenceError{
		Unit:   s.qualifiedName(),
		Period: p,
		Field:  fieldName,
		Value:  v,
	}
}
