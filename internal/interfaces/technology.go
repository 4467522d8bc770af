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
	"context"

	"github.com/llm-d/market-equilibrium/pkg/period"
)

// Technology is a competing alternative inside a subsector. Its cost and
// production functions are opaque to the share computation: the subsector
// only reads its price, share weight and calibration target, and writes its
// share.
type Technology interface {
	// Name identifies the technology within its subsector.
	Name() string
	// FuelName is the label of the primary input.
	FuelName() string

	// CompleteInit validates the technology and sizes its period state.
	CompleteInit(ctx context.Context, mt period.Modeltime) error
	// InitCalc prepares the technology for solving period.
	InitCalc(ctx context.Context, period int) error

	ShareWeight(period int) float64
	SetShareWeight(period int, weight float64)

	// CalcCost computes the levelized price of one unit of output.
	CalcCost(period int, prices PriceSource) error
	Price(period int) float64
	// FuelPrice is the input-cost component of Price.
	FuelPrice(period int) float64

	Share(period int) float64
	SetShare(period int, share float64)

	// IsFixed reports whether the output is set exogenously, in which case
	// the technology takes no part in the logit competition.
	IsFixed(period int) bool
	FixedOutput(period int) float64
	ScaleFixedOutput(period int, ratio float64)
	ResetFixedOutput(period int)

	// Production sets output to the fixed output plus share times the
	// variable demand of the owning subsector.
	Production(period int, variableDemand float64)
	Output(period int) float64
	Input(period int) float64
	FuelConsumption(period int) map[string]float64

	// CalibrationOutput returns the calibration target, if one is set.
	CalibrationOutput(period int) (float64, bool)

	ApplyCarbonTax(period int, tax float64)
	CarbonTaxPaid(period int) float64
	Emissions(period int) map[string]float64
}
