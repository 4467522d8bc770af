package e2e

import (
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/llm-d/market-equilibrium/internal/region"
	"github.com/llm-d/market-equilibrium/internal/technology"
	"github.com/llm-d/market-equilibrium/internal/world"
)

func subsectorValues(w *world.World, unit, sectorName string, get func(r *region.Region, i int) float64) []float64 {
	idx, ok := w.GetOutputRegionMap()[unit]
	Expect(ok).To(BeTrue(), "unit %s", unit)
	r := w.Units()[idx].(*region.Region)
	s, ok := r.Sector(sectorName)
	Expect(ok).To(BeTrue())
	out := make([]float64, len(s.Subsectors()))
	for i := range out {
		out[i] = get(r, i)
	}
	return out
}

func outputs(w *world.World, unit string, p int) []float64 {
	return subsectorValues(w, unit, "electricity", func(r *region.Region, i int) float64 {
		s, _ := r.Sector("electricity")
		return s.Subsectors()[i].GetOutput(p)
	})
}

func shares(w *world.World, unit string, p int) []float64 {
	return subsectorValues(w, unit, "electricity", func(r *region.Region, i int) float64 {
		s, _ := r.Sector("electricity")
		return s.Subsectors()[i].GetShare(p)
	})
}

var _ = Describe("Model runs", func() {
	var ctx context.Context

	BeforeEach(func() {
		ctx = context.Background()
	})

	Context("logit shares", func() {
		DescribeTable("splits demand by price in every region",
			func(workers string) {
				res, err := runScenario(ctx, "logit.yaml", "--workers", workers)
				Expect(err).NotTo(HaveOccurred())

				for _, unit := range []string{"USA", "EU"} {
					s := shares(res.world, unit, 0)
					Expect(s[0]).To(BeNumerically("~", 0.8, 1e-9))
					Expect(s[1]).To(BeNumerically("~", 0.2, 1e-9))

					out := outputs(res.world, unit, 0)
					Expect(out[0]).To(BeNumerically("~", 80, 1e-9))
					Expect(out[1]).To(BeNumerically("~", 20, 1e-9))
				}
				Expect(res.world.State()).To(Equal(world.StateDone))
			},
			Entry("sequentially", "1"),
			Entry("in parallel", "4"),
		)

		It("solves only the requested regions", func() {
			res, err := runScenario(ctx, "logit.yaml", "--regions", "EU", "--calibrationEnabled=false")
			Expect(err).NotTo(HaveOccurred())
			Expect(outputs(res.world, "EU", 0)[0]).To(BeNumerically("~", 80, 1e-9))
			Expect(outputs(res.world, "USA", 0)).To(Equal([]float64{0, 0}))
		})

		It("rejects unknown regions", func() {
			_, err := runScenario(ctx, "logit.yaml", "--regions", "Mars")
			Expect(err).To(MatchError(world.ErrUnknownUnit))
		})
	})

	Context("capacity limits", func() {
		It("redistributes the share above the limit proportionally", func() {
			res, err := runScenario(ctx, "caplimit.yaml")
			Expect(err).NotTo(HaveOccurred())

			s := shares(res.world, "USA", 0)
			Expect(s[0]).To(BeNumerically("~", 0.3, 1e-9))
			Expect(s[1]).To(BeNumerically("~", 0.35, 1e-9))
			Expect(s[2]).To(BeNumerically("~", 0.35, 1e-9))
			Expect(s[0] + s[1] + s[2]).To(BeNumerically("~", 1, 1e-9))

			Expect(readMetrics(res.metricsFile)).To(ContainSubstring("market_equilibrium_capacity_limited_subsectors_total 1"))
		})

		It("keeps a smooth limit below the cap", func() {
			res, err := runScenario(ctx, "caplimit.yaml", "--capLimitMode", "smooth")
			Expect(err).NotTo(HaveOccurred())
			s := shares(res.world, "USA", 0)
			Expect(s[0]).To(BeNumerically("<", 0.3))
			Expect(s[0] + s[1] + s[2]).To(BeNumerically("~", 1, 1e-9))
		})
	})

	Context("calibration", func() {
		It("converges to the calibrated outputs and hands emissions to the climate model", func() {
			res, err := runScenario(ctx, "calibration.yaml")
			Expect(err).NotTo(HaveOccurred())

			Expect(res.report.Periods[0].Calibrated).To(BeTrue())
			Expect(res.report.Periods[0].Iterations).To(Equal(2))
			out := outputs(res.world, "USA", 0)
			Expect(out[0]).To(BeNumerically("~", 40, 1e-6))
			Expect(out[1]).To(BeNumerically("~", 60, 1e-6))

			Expect(res.report.Periods).To(HaveLen(3))
			for _, p := range res.report.Periods[1:] {
				Expect(p.Iterations).To(Equal(1))
				Expect(p.Output).To(BeNumerically("~", 120, 1e-9))
			}

			prices := res.world.GetEmissionsPriceCurves(technology.CarbonGas)["USA"]
			v, ok := prices.Value(2010)
			Expect(ok).To(BeTrue())
			Expect(v).To(Equal(5.0))

			model := res.world.GetClimateModel()
			Expect(model.HasRun()).To(BeTrue())
			Expect(model.Gases()).To(Equal([]string{technology.CarbonGas}))
			// 2005: 0.2*40 + 0.1*60 = 14 per year over a five year step.
			Expect(model.Cumulative(technology.CarbonGas, 2005)).To(BeNumerically("~", 70, 1e-6))

			Expect(readMetrics(res.metricsFile)).To(ContainSubstring(`market_equilibrium_calibration_iterations{period="0"} 2`))
		})

		It("runs uncalibrated when calibration is turned off", func() {
			res, err := runScenario(ctx, "calibration.yaml", "--calibrationEnabled=false")
			Expect(err).NotTo(HaveOccurred())
			Expect(res.report.Periods[0].Iterations).To(Equal(1))
			Expect(res.report.Uncalibrated()).To(ContainElement(0))
			Expect(outputs(res.world, "USA", 0)[0]).To(BeNumerically("~", 800.0/9, 1e-9))
		})
	})
})
