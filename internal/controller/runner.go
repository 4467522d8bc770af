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

package controller

import (
	"context"
	"fmt"

	ctrl "sigs.k8s.io/controller-runtime"

	"github.com/llm-d/market-equilibrium/internal/interfaces"
	"github.com/llm-d/market-equilibrium/internal/logging"
	"github.com/llm-d/market-equilibrium/internal/metrics"
	"github.com/llm-d/market-equilibrium/internal/world"
)

// RunnerConfig controls the period and calibration loops.
type RunnerConfig struct {
	// MaxCalibrationIterations bounds the calc passes of one period.
	MaxCalibrationIterations int
	// CalAccuracy is the tolerance of the calibration check.
	CalAccuracy float64
	// PrintWarnings logs every uncalibrated sector after a period.
	PrintWarnings bool
	// Subset restricts calc passes to these units. Empty means all.
	Subset []interfaces.UnitID
	// SkipClimateModel leaves the world in PostCalc after the last period.
	SkipClimateModel bool
}

// PeriodReport summarizes one solved period.
type PeriodReport struct {
	Period       int
	Year         int
	Iterations   int
	Calibrated   bool
	Uncalibrated int
	Unattainable []*interfaces.CalibrationUnattainableError
	Output       float64
}

// RunReport summarizes a run.
type RunReport struct {
	Periods []PeriodReport
}

// Uncalibrated returns the periods that ended with an uncalibrated unit.
func (r *RunReport) Uncalibrated() []int {
	var out []int
	for _, p := range r.Periods {
		if !p.Calibrated {
			out = append(out, p.Period)
		}
	}
	return out
}

// Runner drives a world through every period of a run.
type Runner struct {
	world    *world.World
	cfg      RunnerConfig
	recorder *metrics.Recorder
}

// NewRunner creates a runner. A nil recorder records nothing.
func NewRunner(w *world.World, cfg RunnerConfig, recorder *metrics.Recorder) *Runner {
	if cfg.MaxCalibrationIterations < 1 {
		cfg.MaxCalibrationIterations = 1
	}
	w.SetRecorder(recorder)
	return &Runner{world: w, cfg: cfg, recorder: recorder}
}

// Run completes the world if needed, solves every period in order and runs
// the climate model. Within a period, calc passes repeat while calibration
// is on and some unit is not yet calibrated, up to MaxCalibrationIterations.
// Unattainable calibration targets are reported, not returned as errors.
func (r *Runner) Run(ctx context.Context) (*RunReport, error) {
	logger := ctrl.LoggerFrom(ctx)
	w := r.world

	if w.State() == world.StateParsed {
		if err := w.CompleteInit(ctx); err != nil {
			return nil, err
		}
	}

	report := &RunReport{}
	mt := w.Modeltime()
	for p := 0; p < mt.Periods; p++ {
		pr, err := r.runPeriod(ctx, p)
		if err != nil {
			return report, err
		}
		pr.Year = mt.Year(p)
		report.Periods = append(report.Periods, pr)

		logger.Info("Period solved",
			"period", p,
			"year", pr.Year,
			"iterations", pr.Iterations,
			"calibrated", pr.Calibrated,
			"output", pr.Output)
		for _, u := range pr.Unattainable {
			logger.Info("Calibration target unattainable",
				"unit", u.Unit,
				"period", u.Period,
				"reason", u.Reason)
		}
	}

	if r.cfg.SkipClimateModel {
		return report, nil
	}
	if err := w.RunClimateModel(ctx); err != nil {
		return report, err
	}
	return report, nil
}

func (r *Runner) runPeriod(ctx context.Context, p int) (PeriodReport, error) {
	logger := ctrl.LoggerFrom(ctx)
	w := r.world
	pr := PeriodReport{Period: p}

	if w.GetCalibrationSetting() {
		if err := w.CheckCalConsistency(p); err != nil {
			logger.Info("Calibration data is inconsistent with demand", "period", p, "error", err.Error())
		}
	}
	if err := w.InitCalc(ctx, p); err != nil {
		return pr, err
	}

	for pr.Iterations < r.cfg.MaxCalibrationIterations {
		if err := ctx.Err(); err != nil {
			return pr, err
		}
		if err := w.Calc(ctx, p, r.cfg.Subset...); err != nil {
			return pr, fmt.Errorf("period %d iteration %d: %w", p, pr.Iterations+1, err)
		}
		pr.Iterations++
		if !w.GetCalibrationSetting() || w.LastPass().Calibrated {
			break
		}
		logger.V(logging.TRACE).Info("Period not calibrated yet", "period", p, "iteration", pr.Iterations)
	}

	pass := w.LastPass()
	pr.Output = pass.Output
	pr.Unattainable = pass.Unattainable
	pr.Calibrated = w.IsAllCalibrated(p, r.cfg.CalAccuracy, r.cfg.PrintWarnings)
	if !pr.Calibrated {
		for _, u := range w.Units() {
			if !u.IsAllCalibrated(p, r.cfg.CalAccuracy, false) {
				pr.Uncalibrated++
			}
		}
	}
	r.recorder.SetCalibrationIterations(p, pr.Iterations)
	r.recorder.SetUncalibratedUnits(p, pr.Uncalibrated)

	if err := w.PostCalc(ctx, p); err != nil {
		return pr, err
	}
	return pr, nil
}
