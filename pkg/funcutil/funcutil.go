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

// Package funcutil provides the small numeric helpers used by technology
// cost and production functions.
package funcutil

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// Input is a named, period-indexed production input with a coefficient
// (input per unit of output) and a resulting demand.
type Input interface {
	Name() string
	Coefficient(period int) float64
	SetCoefficient(period int, coef float64)
	Demand(period int) float64
	SetDemand(period int, demand float64)
}

// CalcNetPresentValueMult returns the factor that converts a capital cost
// into an equal annual payment over lifetime years at the given discount
// rate. A zero rate returns the lifetime.
func CalcNetPresentValueMult(rate float64, lifetime int) float64 {
	if lifetime <= 0 {
		return 0
	}
	if rate == 0 {
		return float64(lifetime)
	}
	return (1 - math.Pow(1+rate, -float64(lifetime))) / rate
}

// GetRho converts an elasticity of substitution into the CES exponent rho.
func GetRho(sigma float64) float64 {
	if sigma == 0 {
		return math.Inf(-1)
	}
	return (sigma - 1) / sigma
}

// GetDemandSum returns the total demand of inputs in period.
func GetDemandSum(inputs []Input, period int) float64 {
	vals := make([]float64, len(inputs))
	for i, in := range inputs {
		vals[i] = in.Demand(period)
	}
	return floats.Sum(vals)
}

// GetCoefSum returns the sum of input coefficients in period.
func GetCoefSum(inputs []Input, period int) float64 {
	vals := make([]float64, len(inputs))
	for i, in := range inputs {
		vals[i] = in.Coefficient(period)
	}
	return floats.Sum(vals)
}

// ScaleCoefficientInputs multiplies every input coefficient by scale.
func ScaleCoefficientInputs(inputs []Input, scale float64, period int) {
	for _, in := range inputs {
		in.SetCoefficient(period, in.Coefficient(period)*scale)
	}
}

// ScaleDemandInputs multiplies every input demand by scale.
func ScaleDemandInputs(inputs []Input, scale float64, period int) {
	for _, in := range inputs {
		in.SetDemand(period, in.Demand(period)*scale)
	}
}

// GetInput returns the input with the given name.
func GetInput(inputs []Input, name string) (Input, bool) {
	for _, in := range inputs {
		if in.Name() == name {
			return in, true
		}
	}
	return nil, false
}
