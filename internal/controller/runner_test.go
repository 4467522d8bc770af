package controller

import (
	"context"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"github.com/llm-d/market-equilibrium/internal/interfaces"
	"github.com/llm-d/market-equilibrium/internal/metrics"
	"github.com/llm-d/market-equilibrium/internal/region"
	"github.com/llm-d/market-equilibrium/internal/scenario"
	"github.com/llm-d/market-equilibrium/internal/world"
)

const calibratedScenario = `
apiVersion: market-equilibrium/v1alpha1
kind: Scenario
metadata:
  name: calibrated
spec:
  modeltime: {startYear: 2005, timestep: 5, periods: 2}
  technologies:
    - name: coal-plant
      inputs: [{name: coal, coefficient: 1}]
      emissions: {CO2: 0.1}
    - name: gas-plant
      inputs: [{name: gas, coefficient: 1}]
  regions:
    - name: USA
      prices:
        coal: {2005: 1}
        gas: {2005: 2}
      sectors:
        - name: electricity
          demand: {2005: 100}
          subsectors:
            - name: coal
              logitExponent: -2
              shareWeights: {2005: 0.5}
              calOutput: {2005: 50}
              technologies: [{template: coal-plant}]
            - name: gas
              logitExponent: -2
              shareWeights: {2005: 0.5}
              calOutput: {2005: 50}
              technologies: [{template: gas-plant}]
`

func buildWorld(ctx context.Context, doc string, cfg world.Config) *world.World {
	sc, err := scenario.Decode(strings.NewReader(doc))
	Expect(err).NotTo(HaveOccurred())
	w, err := scenario.Build(ctx, sc, scenario.BuildOptions{World: cfg})
	Expect(err).NotTo(HaveOccurred())
	return w
}

func gaugeValue(reg *prometheus.Registry, name, period string) float64 {
	families, err := reg.Gather()
	Expect(err).NotTo(HaveOccurred())
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			if hasLabel(m, "period", period) {
				return m.GetGauge().GetValue()
			}
		}
	}
	Fail("metric " + name + " not found")
	return 0
}

func hasLabel(m *dto.Metric, name, value string) bool {
	for _, l := range m.GetLabel() {
		if l.GetName() == name && l.GetValue() == value {
			return true
		}
	}
	return false
}

func coalOutput(w *world.World, p int) float64 {
	r := w.Units()[0].(*region.Region)
	s, ok := r.Sector("electricity")
	Expect(ok).To(BeTrue())
	return s.Subsectors()[0].GetOutput(p)
}

var _ = Describe("Runner", func() {
	var (
		ctx context.Context
		reg *prometheus.Registry
		rec *metrics.Recorder
	)

	BeforeEach(func() {
		ctx = context.Background()
		reg = prometheus.NewRegistry()
		var err error
		rec, err = metrics.NewRecorder(reg)
		Expect(err).NotTo(HaveOccurred())
	})

	It("iterates until calibration targets are met", func() {
		w := buildWorld(ctx, calibratedScenario, world.Config{CalibrationEnabled: true, CalAccuracy: 1e-6})
		report, err := NewRunner(w, RunnerConfig{MaxCalibrationIterations: 10, CalAccuracy: 1e-6}, rec).Run(ctx)
		Expect(err).NotTo(HaveOccurred())

		Expect(report.Periods).To(HaveLen(2))
		Expect(report.Periods[0].Iterations).To(Equal(2))
		Expect(report.Periods[0].Calibrated).To(BeTrue())
		Expect(report.Periods[0].Year).To(Equal(2005))
		Expect(report.Uncalibrated()).To(BeEmpty())
		Expect(coalOutput(w, 0)).To(BeNumerically("~", 50, 1e-6))

		Expect(w.State()).To(Equal(world.StateDone))
		Expect(w.GetClimateModel().HasRun()).To(BeTrue())
		Expect(gaugeValue(reg, "market_equilibrium_calibration_iterations", "0")).To(Equal(2.0))
		Expect(gaugeValue(reg, "market_equilibrium_uncalibrated_units", "0")).To(Equal(0.0))
	})

	It("runs a single pass per period with calibration off", func() {
		w := buildWorld(ctx, calibratedScenario, world.Config{CalibrationEnabled: false, CalAccuracy: 1e-6})
		report, err := NewRunner(w, RunnerConfig{MaxCalibrationIterations: 10, CalAccuracy: 1e-6, SkipClimateModel: true}, rec).Run(ctx)
		Expect(err).NotTo(HaveOccurred())

		Expect(report.Periods[0].Iterations).To(Equal(1))
		Expect(coalOutput(w, 0)).To(BeNumerically("~", 80, 1e-9))
		Expect(report.Periods[0].Calibrated).To(BeFalse())
		Expect(report.Periods[0].Uncalibrated).To(Equal(1))
		Expect(report.Uncalibrated()).To(ContainElement(0))
		Expect(w.State()).To(Equal(world.StatePostCalc))
		Expect(gaugeValue(reg, "market_equilibrium_uncalibrated_units", "0")).To(Equal(1.0))
	})

	It("stops at the iteration limit", func() {
		w := buildWorld(ctx, calibratedScenario, world.Config{CalibrationEnabled: true, CalAccuracy: 1e-6})
		report, err := NewRunner(w, RunnerConfig{MaxCalibrationIterations: 1, CalAccuracy: 1e-6}, nil).Run(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(report.Periods[0].Iterations).To(Equal(1))
		Expect(report.Periods[0].Calibrated).To(BeFalse())
	})

	It("reports unattainable targets without failing", func() {
		doc := strings.Replace(calibratedScenario, "calOutput: {2005: 50}\n              technologies: [{template: gas-plant}]",
			"calOutput: {2005: 80}\n              technologies: [{template: gas-plant}]", 1)
		w := buildWorld(ctx, doc, world.Config{CalibrationEnabled: true, CalAccuracy: 1e-6})
		report, err := NewRunner(w, RunnerConfig{MaxCalibrationIterations: 3, CalAccuracy: 1e-6}, rec).Run(ctx)
		Expect(err).NotTo(HaveOccurred())

		Expect(report.Periods[0].Calibrated).To(BeFalse())
		Expect(report.Periods[0].Unattainable).NotTo(BeEmpty())
		Expect(report.Periods[0].Unattainable[0]).To(BeAssignableToTypeOf(&interfaces.CalibrationUnattainableError{}))
		Expect(report.Periods[0].Unattainable[0].Period).To(Equal(0))
	})

	It("returns cancellation", func() {
		w := buildWorld(ctx, calibratedScenario, world.Config{CalibrationEnabled: true, CalAccuracy: 1e-6})
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		_, err := NewRunner(w, RunnerConfig{MaxCalibrationIterations: 3}, nil).Run(cctx)
		Expect(err).To(MatchError(context.Canceled))
	})
})
