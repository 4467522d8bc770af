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

package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "market_equilibrium"

// Outcome label values of the unit solve counter.
const (
	OutcomeSuccess = "success"
	OutcomeError   = "error"
)

// Recorder instruments calc passes. A nil *Recorder records nothing.
type Recorder struct {
	calcPasses            prometheus.Counter
	calcDuration          prometheus.Histogram
	unitSolves            *prometheus.CounterVec
	limitedSubsectors     prometheus.Counter
	calibrationIterations *prometheus.GaugeVec
	uncalibratedUnits     *prometheus.GaugeVec
}

// NewRecorder creates the collectors and registers them with reg.
func NewRecorder(reg prometheus.Registerer) (*Recorder, error) {
	r := &Recorder{
		calcPasses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "calc_passes_total",
			Help:      "Number of calc passes run over the world.",
		}),
		calcDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "calc_duration_seconds",
			Help:      "Wall time of one calc pass.",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 10),
		}),
		unitSolves: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "unit_solves_total",
			Help:      "Number of unit solves by outcome.",
		}, []string{"outcome"}),
		limitedSubsectors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "capacity_limited_subsectors_total",
			Help:      "Number of subsectors frozen at their capacity limit, summed over passes.",
		}),
		calibrationIterations: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "calibration_iterations",
			Help:      "Calc passes needed to calibrate a period.",
		}, []string{"period"}),
		uncalibratedUnits: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "uncalibrated_units",
			Help:      "Units not calibrated after the last calc pass of a period.",
		}, []string{"period"}),
	}
	for _, c := range []prometheus.Collector{
		r.calcPasses, r.calcDuration, r.unitSolves, r.limitedSubsectors,
		r.calibrationIterations, r.uncalibratedUnits,
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// ObserveCalc records one calc pass.
func (r *Recorder) ObserveCalc(d time.Duration) {
	if r == nil {
		return
	}
	r.calcPasses.Inc()
	r.calcDuration.Observe(d.Seconds())
}

// UnitSolved counts a unit solve, failed when err is not nil.
func (r *Recorder) UnitSolved(err error) {
	if r == nil {
		return
	}
	outcome := OutcomeSuccess
	if err != nil {
		outcome = OutcomeError
	}
	r.unitSolves.WithLabelValues(outcome).Inc()
}

// CapacityLimited adds n newly limited subsectors.
func (r *Recorder) CapacityLimited(n int) {
	if r == nil || n <= 0 {
		return
	}
	r.limitedSubsectors.Add(float64(n))
}

// SetCalibrationIterations records the passes used for period.
func (r *Recorder) SetCalibrationIterations(period, n int) {
	if r == nil {
		return
	}
	r.calibrationIterations.WithLabelValues(strconv.Itoa(period)).Set(float64(n))
}

// SetUncalibratedUnits records how many units missed calibration in period.
func (r *Recorder) SetUncalibratedUnits(period, n int) {
	if r == nil {
		return
	}
	r.uncalibratedUnits.WithLabelValues(strconv.Itoa(period)).Set(float64(n))
}
