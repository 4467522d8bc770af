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

	"gonum.org/v1/gonum/floats/scalar"
	ctrl "sigs.k8s.io/controller-runtime"

	"github.com/llm-d/market-equilibrium/internal/interfaces"
	"github.com/llm-d/market-equilibrium/internal/logging"
)

// calTolerance is the relative slack allowed when comparing total calibrated
// output against the demand available to variable supply.
const calTolerance = 1e-6

// AdjustForCalibration scales share weights so that the next pass moves the
// subsector's variable output (and that of its calibrated technologies)
// toward the calibration targets, net of fixed supply.
//
// Nothing is scaled when calibration is off, when no target is active for p,
// or when totalCalOutputs is zero. Targets that cannot be approached are
// recorded as a CalibrationUnattainableError and do not fail the pass; a
// non-finite scale factor does.
func (s *Subsector) AdjustForCalibration(
	ctx context.Context,
	rc interfaces.RunContext,
	sectorDemand, totalFixedSupply, totalCalOutputs float64,
	p int,
) error {
	if !rc.CalibrationEnabled || !s.calibrationStatus.At(p) || s.AllOutputFixed(p) {
		return nil
	}
	logger := ctrl.LoggerFrom(ctx)
	if totalCalOutputs == 0 {
		logger.V(logging.DEBUG).Info("No calibrated output in sector, share weights left unscaled",
			"subsector", s.qualifiedName(), "period", p)
		return nil
	}

	available := sectorDemand - totalFixedSupply
	current := s.share.At(p)*sectorDemand - s.GetFixedSupply(p)
	target := current

	if s.doCalibration.At(p) {
		calOut := s.calOutputValue.At(p)
		switch {
		case available <= 0:
			s.recordUnattainable(p, "no demand is left after fixed supply")
			return nil
		case totalCalOutputs > available*(1+calTolerance):
			s.recordUnattainable(p, "calibrated outputs exceed the demand available to variable supply")
			return nil
		case current <= 0 && calOut > 0 && s.shareWeight.At(p) == 0:
			// restart from a unit weight, the next pass produces a share to scale
			s.shareWeight.Set(p, 1)
			return nil
		case current <= 0 && calOut > 0:
			s.recordUnattainable(p, "current share is zero")
			return nil
		case current > 0:
			scale := calOut / current
			if scale < 0 || !isFinite(scale) {
				return s.divergence(p, "calibrationScale", scale)
			}
			s.ScaleShareWeight(scale, p)
			logger.V(logging.DEBUG).Info("Scaled share weight toward calibration target",
				"subsector", s.qualifiedName(),
				"period", p,
				"target", calOut,
				"current", current,
				"scale", scale)
		}
		target = calOut
	}
	return s.adjustTechnologiesForCalibration(ctx, p, target)
}

// adjustTechnologiesForCalibration scales the share weight of each calibrated
// variable technology by the ratio of its target share of variableOutput to
// its current share.
func (s *Subsector) adjustTechnologiesForCalibration(ctx context.Context, p int, variableOutput float64) error {
	if variableOutput <= 0 {
		return nil
	}
	for _, t := range s.children {
		calOut, ok := t.CalibrationOutput(p)
		if !ok || t.IsFixed(p) {
			continue
		}
		desired := calOut / variableOutput
		current := t.Share(p)
		switch {
		case current > 0:
			scale := desired / current
			if scale < 0 || !isFinite(scale) {
				return s.divergence(p, "technologies["+t.Name()+"].calibrationScale", scale)
			}
			t.SetShareWeight(p, t.ShareWeight(p)*scale)
		case calOut > 0 && t.ShareWeight(p) == 0:
			t.SetShareWeight(p, 1)
		case calOut > 0:
			s.recordUnattainable(p, "technology "+t.Name()+" has a zero share")
		}
	}
	ctrl.LoggerFrom(ctx).V(logging.TRACE).Info("Adjusted technology share weights for calibration",
		"subsector", s.qualifiedName(), "period", p)
	return nil
}

func (s *Subsector) recordUnattainable(p int, reason string) {
	s.unattainable.Set(p, &interfaces.CalibrationUnattainableError{
		Unit:   s.qualifiedName(),
		Period: p,
		Reason: reason,
	})
}

// UnattainableCalibration returns the unattainable calibration recorded for
// p during the current period, or nil.
func (s *Subsector) UnattainableCalibration(p int) *interfaces.CalibrationUnattainableError {
	return s.unattainable.At(p)
}

// SetCalibrationStatus marks p as calibrating when the subsector or any of
// its technologies has a calibration target.
func (s *Subsector) SetCalibrationStatus(p int) {
	active := s.doCalibration.At(p)
	for _, t := range s.children {
		if _, ok := t.CalibrationOutput(p); ok {
			active = true
			break
		}
	}
	s.calibrationStatus.Set(p, active)
}

// GetCalibrationStatus reports whether calibration targets are active in p.
func (s *Subsector) GetCalibrationStatus(p int) bool {
	return s.calibrationStatus.At(p)
}

// IsCalibrated reports whether every active calibration target is met in p
// within accuracy, compared both absolutely and relatively. A recorded
// unattainable target makes the subsector uncalibrated.
func (s *Subsector) IsCalibrated(p int, accuracy float64) bool {
	ok := true
	switch {
	case s.unattainable.At(p) != nil:
		ok = false
	case !s.calibrationStatus.At(p):
	default:
		if s.doCalibration.At(p) {
			variable := s.output.At(p) - s.GetFixedSupply(p)
			ok = scalar.EqualWithinAbsOrRel(variable, s.calOutputValue.At(p), accuracy, accuracy)
		}
		for _, t := range s.children {
			calOut, has := t.CalibrationOutput(p)
			if !has || t.IsFixed(p) {
				continue
			}
			if !scalar.EqualWithinAbsOrRel(t.Output(p)-t.FixedOutput(p), calOut, accuracy, accuracy) {
				ok = false
			}
		}
	}
	s.calibrated.Set(p, ok)
	return ok
}

// GetTotalCalOutputs returns the calibrated variable output of the
// subsector in p: the subsector's own target if it has one, otherwise the
// sum of the technology targets when every variable technology has one.
func (s *Subsector) GetTotalCalOutputs(p int) float64 {
	if s.doCalibration.At(p) {
		return s.calOutputValue.At(p)
	}
	total := 0.0
	variable := 0
	for _, t := range s.children {
		if t.IsFixed(p) {
			continue
		}
		variable++
		calOut, ok := t.CalibrationOutput(p)
		if !ok {
			return 0
		}
		total += calOut
	}
	if variable == 0 {
		return 0
	}
	return total
}

// ScaleCalibrationInput multiplies the subsector calibration target by
// scale.
func (s *Subsector) ScaleCalibrationInput(p int, scale float64) {
	s.calOutputValue.Set(p, s.calOutputValue.At(p)*scale)
}
