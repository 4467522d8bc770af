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

package world

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"time"

	"golang.org/x/sync/errgroup"
	ctrl "sigs.k8s.io/controller-runtime"

	"github.com/llm-d/market-equilibrium/internal/climate"
	"github.com/llm-d/market-equilibrium/internal/emissions"
	"github.com/llm-d/market-equilibrium/internal/interfaces"
	"github.com/llm-d/market-equilibrium/internal/logging"
	"github.com/llm-d/market-equilibrium/internal/metrics"
	"github.com/llm-d/market-equilibrium/internal/technology"
	"github.com/llm-d/market-equilibrium/pkg/period"
)

// ErrInvalidState is returned when an operation is called out of order.
var ErrInvalidState = errors.New("invalid world state")

// Unit is a geographic unit the world solves. Units must not read each
// other's state during a calc pass.
type Unit interface {
	ID() interfaces.UnitID
	Name() string
	CompleteInit(ctx context.Context) error
	InitCalc(ctx context.Context, p int) error
	Calc(ctx context.Context, rc interfaces.RunContext, p int) (interfaces.UnitResult, error)
	PostCalc(ctx context.Context, p int) error
	IsAllCalibrated(p int, accuracy float64, printWarnings bool) bool
	CheckCalConsistency(p int) error
	Emissions(p int) map[string]float64
	CarbonTax(p int) float64
}

// State is the lifecycle position of a world within a run.
type State int

const (
	StateUninitialized State = iota
	StateParsed
	StateInitialized
	StateSolving
	StatePostCalc
	StateDone
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "Uninitialized"
	case StateParsed:
		return "Parsed"
	case StateInitialized:
		return "Initialized"
	case StateSolving:
		return "Solving"
	case StatePostCalc:
		return "PostCalc"
	case StateDone:
		return "Done"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Config holds the run settings of a world.
type Config struct {
	// Workers is the number of units solved concurrently. Values < 1 mean 1.
	Workers int
	// CalibrationEnabled is the initial calibration setting.
	CalibrationEnabled bool
	// CalAccuracy is the tolerance passed to units in the RunContext.
	CalAccuracy float64
	// PrintWarnings enables diagnostic logging of calibration misses.
	PrintWarnings bool
}

// PassResult is the merged outcome of the most recent calc pass.
type PassResult struct {
	Period            int
	Iteration         int64
	Units             int
	Calibrated        bool
	Unattainable      []*interfaces.CalibrationUnattainableError
	Output            float64
	LimitedSubsectors int
}

// World owns the units of a run and drives their solution period by period.
//
// Note: World is not safe for concurrent use. Calc solves units in parallel
// internally but returns only after all of them finish.
type World struct {
	cfg Config
	mt  period.Modeltime

	units     []Unit
	nameIndex map[string]int
	lookup    *Lookup

	state         State
	period        int
	lastCompleted int

	calibrationEnabled bool
	counter            *interfaces.CalcCounter
	climateModel       climate.Model
	registry           *technology.Registry
	recorder           *metrics.Recorder
	lastPass           PassResult
}

// New creates an empty world. Its climate model defaults to an Accumulator
// and its technology registry to an empty one.
func New(mt period.Modeltime, cfg Config) (*World, error) {
	if err := mt.Validate(); err != nil {
		return nil, fmt.Errorf("world: %w", err)
	}
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	return &World{
		cfg:                cfg,
		mt:                 mt,
		nameIndex:          make(map[string]int),
		state:              StateUninitialized,
		lastCompleted:      -1,
		calibrationEnabled: cfg.CalibrationEnabled,
		counter:            interfaces.NewCalcCounter(),
		climateModel:       climate.NewAccumulator(climate.AccumulatorConfig{Timestep: mt.Timestep}),
		registry:           technology.NewRegistry(),
	}, nil
}

func (w *World) Modeltime() period.Modeltime {
	return w.mt
}

func (w *World) State() State {
	return w.state
}

func (w *World) invalid(op string) error {
	return fmt.Errorf("%w: %s not allowed in state %s", ErrInvalidState, op, w.state)
}

// AddUnit appends a unit. Units can only be added before CompleteInit.
func (w *World) AddUnit(u Unit) error {
	if w.state != StateUninitialized && w.state != StateParsed {
		return w.invalid("AddUnit")
	}
	for _, existing := range w.units {
		if existing.ID() == u.ID() {
			return fmt.Errorf("%w %q", ErrDuplicateUnit, u.ID())
		}
	}
	w.units = append(w.units, u)
	w.state = StateParsed
	return nil
}

// Units returns the units in insertion order.
func (w *World) Units() []Unit {
	return slices.Clone(w.units)
}

// CompleteInit finalizes the unit set: it builds the name index and the
// lookup and completes every unit. It succeeds at most once.
func (w *World) CompleteInit(ctx context.Context) error {
	logger := ctrl.LoggerFrom(ctx)
	if w.state != StateParsed {
		return w.invalid("CompleteInit")
	}

	w.nameIndex = make(map[string]int, len(w.units))
	for i, u := range w.units {
		w.nameIndex[u.Name()] = i
	}
	if err := w.RebuildLookup(); err != nil {
		return err
	}

	var errs []error
	for _, u := range w.units {
		if err := u.CompleteInit(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if err := interfaces.AggregateErrors(errs); err != nil {
		return err
	}

	w.state = StateInitialized
	logger.V(logging.DEBUG).Info("World initialized",
		"units", len(w.units),
		"periods", w.mt.Periods,
		"workers", w.cfg.Workers)
	return nil
}

// RebuildLookup rebuilds the identity lookup from the current unit set.
func (w *World) RebuildLookup() error {
	if w.state == StateUninitialized {
		return w.invalid("RebuildLookup")
	}
	b := NewLookupBuilder()
	for i, u := range w.units {
		if err := b.Add(u.ID(), i); err != nil {
			return err
		}
	}
	w.lookup = b.Freeze()
	return nil
}

// InitCalc prepares every unit for period p. Periods are solved strictly in
// order, so p must follow the last completed period.
func (w *World) InitCalc(ctx context.Context, p int) error {
	if w.state != StateInitialized && w.state != StatePostCalc {
		return w.invalid("InitCalc")
	}
	if p != w.lastCompleted+1 || p >= w.mt.Periods {
		return fmt.Errorf("%w: period %d cannot start after period %d", ErrInvalidState, p, w.lastCompleted)
	}
	for _, u := range w.units {
		if err := u.InitCalc(ctx, p); err != nil {
			return fmt.Errorf("unit %s period %d: %w", u.ID(), p, err)
		}
	}
	w.period = p
	w.state = StateSolving
	return nil
}

// Calc runs one calc pass over the units named in subset, or every unit
// when subset is empty. Any unit failure aborts the pass.
func (w *World) Calc(ctx context.Context, p int, subset ...interfaces.UnitID) error {
	logger := ctrl.LoggerFrom(ctx)
	if w.state != StateSolving || p != w.period {
		return fmt.Errorf("%w: Calc(%d) in state %s for period %d", ErrInvalidState, p, w.state, w.period)
	}
	positions, err := w.lookup.Resolve(subset)
	if err != nil {
		return err
	}

	rc := interfaces.RunContext{
		CalibrationEnabled: w.calibrationEnabled,
		CalAccuracy:        w.cfg.CalAccuracy,
		Iteration:          w.counter.Increment(),
		PrintWarnings:      w.cfg.PrintWarnings,
	}

	start := time.Now()
	results := make([]interfaces.UnitResult, len(positions))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(w.cfg.Workers)
	for i, pos := range positions {
		u := w.units[pos]
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			res, err := u.Calc(gctx, rc, p)
			w.recorder.UnitSolved(err)
			if err != nil {
				return fmt.Errorf("unit %s period %d: %w", u.ID(), p, err)
			}
			results[i] = res
			return nil
		})
	}
	err = g.Wait()
	w.recorder.ObserveCalc(time.Since(start))
	if err != nil {
		return err
	}

	pass := PassResult{Period: p, Iteration: rc.Iteration, Units: len(results), Calibrated: true}
	for _, res := range results {
		pass.Calibrated = pass.Calibrated && res.Calibrated
		pass.Unattainable = append(pass.Unattainable, res.Unattainable...)
		pass.Output += res.Output
		pass.LimitedSubsectors += res.LimitedSubsectors
	}
	w.lastPass = pass
	w.recorder.CapacityLimited(pass.LimitedSubsectors)

	logger.V(logging.DEBUG).Info("Calc pass complete",
		"period", p,
		"iteration", rc.Iteration,
		"units", pass.Units,
		"calibrated", pass.Calibrated,
		"unattainable", len(pass.Unattainable),
		"duration", time.Since(start))
	return nil
}

// LastPass returns the merged result of the most recent Calc.
func (w *World) LastPass() PassResult {
	return w.lastPass
}

// PostCalc completes period p.
func (w *World) PostCalc(ctx context.Context, p int) error {
	if w.state != StateSolving || p != w.period {
		return fmt.Errorf("%w: PostCalc(%d) in state %s for period %d", ErrInvalidState, p, w.state, w.period)
	}
	for _, u := range w.units {
		if err := u.PostCalc(ctx, p); err != nil {
			return fmt.Errorf("unit %s period %d: %w", u.ID(), p, err)
		}
	}
	w.lastCompleted = p
	w.state = StatePostCalc
	return nil
}

// LastCompletedPeriod returns the last period finished with PostCalc, or -1.
func (w *World) LastCompletedPeriod() int {
	return w.lastCompleted
}

// IsAllCalibrated reports whether every unit is calibrated in p.
func (w *World) IsAllCalibrated(p int, accuracy float64, printWarnings bool) bool {
	all := true
	for _, u := range w.units {
		if !u.IsAllCalibrated(p, accuracy, printWarnings) {
			all = false
		}
	}
	return all
}

// CheckCalConsistency checks the calibration data of every unit in p.
func (w *World) CheckCalConsistency(p int) error {
	var errs []error
	for _, u := range w.units {
		if err := u.CheckCalConsistency(p); err != nil {
			errs = append(errs, err)
		}
	}
	return interfaces.AggregateErrors(errs)
}

// TurnCalibrationsOn enables calibration for subsequent calc passes.
func (w *World) TurnCalibrationsOn() {
	w.calibrationEnabled = true
}

// TurnCalibrationsOff disables calibration for subsequent calc passes.
func (w *World) TurnCalibrationsOff() {
	w.calibrationEnabled = false
}

func (w *World) GetCalibrationSetting() bool {
	return w.calibrationEnabled
}

// SetCalcCounter replaces the pass counter, e.g. to share one across worlds.
func (w *World) SetCalcCounter(c *interfaces.CalcCounter) {
	if c != nil {
		w.counter = c
	}
}

func (w *World) CalcCounter() *interfaces.CalcCounter {
	return w.counter
}

func (w *World) SetRecorder(r *metrics.Recorder) {
	w.recorder = r
}

func (w *World) SetTechnologyRegistry(r *technology.Registry) {
	w.registry = r
}

func (w *World) GetTechnologyRegistry() *technology.Registry {
	return w.registry
}

// SetClimateModel replaces the climate model. It must be set before
// RunClimateModel.
func (w *World) SetClimateModel(m climate.Model) {
	w.climateModel = m
}

func (w *World) GetClimateModel() climate.Model {
	return w.climateModel
}

// GetOutputRegionMap returns the position of every unit keyed by name.
func (w *World) GetOutputRegionMap() map[string]int {
	return maps.Clone(w.nameIndex)
}

// GetRegionIDs returns the unit identities in insertion order.
func (w *World) GetRegionIDs() []interfaces.UnitID {
	out := make([]interfaces.UnitID, len(w.units))
	for i, u := range w.units {
		out[i] = u.ID()
	}
	return out
}

// GetEmissionsQuantityCurves returns the emissions of gas per unit name over
// every completed period.
func (w *World) GetEmissionsQuantityCurves(gas string) map[string]*emissions.Curve {
	out := make(map[string]*emissions.Curve, len(w.units))
	for _, u := range w.units {
		c := emissions.NewCurve(gas, map[string]string{
			emissions.LabelRegion: u.Name(),
			emissions.LabelKind:   emissions.KindQuantity,
		})
		for p := 0; p <= w.lastCompleted; p++ {
			c.Set(w.mt.Year(p), u.Emissions(p)[gas])
		}
		out[u.Name()] = c
	}
	return out
}

// GetEmissionsPriceCurves returns the price of gas per unit name over every
// completed period. Only CO2 is priced; other gases get a zero curve.
func (w *World) GetEmissionsPriceCurves(gas string) map[string]*emissions.Curve {
	out := make(map[string]*emissions.Curve, len(w.units))
	for _, u := range w.units {
		c := emissions.NewCurve(gas, map[string]string{
			emissions.LabelRegion: u.Name(),
			emissions.LabelKind:   emissions.KindPrice,
		})
		for p := 0; p <= w.lastCompleted; p++ {
			v := 0.0
			if gas == technology.CarbonGas {
				v = u.CarbonTax(p)
			}
			c.Set(w.mt.Year(p), v)
		}
		out[u.Name()] = c
	}
	return out
}

// gases returns every gas any unit emitted in a completed period.
func (w *World) gases() []string {
	seen := make(map[string]struct{})
	for _, u := range w.units {
		for p := 0; p <= w.lastCompleted; p++ {
			for gas := range u.Emissions(p) {
				seen[gas] = struct{}{}
			}
		}
	}
	return slices.Sorted(maps.Keys(seen))
}

// RunClimateModel hands the emissions of every gas to the climate model and
// runs it. All periods must be complete; the world is done afterwards.
func (w *World) RunClimateModel(ctx context.Context) error {
	logger := ctrl.LoggerFrom(ctx)
	if w.state != StatePostCalc || w.lastCompleted != w.mt.Periods-1 {
		return w.invalid("RunClimateModel")
	}
	if w.climateModel == nil {
		return fmt.Errorf("%w: no climate model", ErrInvalidState)
	}
	gases := w.gases()
	for _, gas := range gases {
		curves := w.GetEmissionsQuantityCurves(gas)
		for _, name := range slices.Sorted(maps.Keys(curves)) {
			if err := w.climateModel.SetEmissions(curves[name]); err != nil {
				return fmt.Errorf("climate model: %w", err)
			}
		}
	}
	if err := w.climateModel.Run(ctx); err != nil {
		return fmt.Errorf("climate model: %w", err)
	}
	w.state = StateDone
	logger.Info("Climate model complete", "gases", gases)
	return nil
}
