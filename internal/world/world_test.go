package world

import (
	"context"
	"errors"
	"sync/atomic"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/llm-d/market-equilibrium/internal/emissions"
	"github.com/llm-d/market-equilibrium/internal/interfaces"
	"github.com/llm-d/market-equilibrium/internal/region"
	"github.com/llm-d/market-equilibrium/internal/sector"
	"github.com/llm-d/market-equilibrium/internal/subsector"
	"github.com/llm-d/market-equilibrium/internal/technology"
	"github.com/llm-d/market-equilibrium/pkg/period"
)

var mt = period.Modeltime{StartYear: 2005, Timestep: 5, Periods: 2}

type fakeUnit struct {
	id         interfaces.UnitID
	calibrated bool
	calcErr    error
	initErr    error
	calls      atomic.Int32
	lastRC     interfaces.RunContext
}

func (u *fakeUnit) ID() interfaces.UnitID                   { return u.id }
func (u *fakeUnit) Name() string                            { return string(u.id) }
func (u *fakeUnit) CompleteInit(context.Context) error      { return u.initErr }
func (u *fakeUnit) InitCalc(context.Context, int) error     { return nil }
func (u *fakeUnit) PostCalc(context.Context, int) error     { return nil }
func (u *fakeUnit) CheckCalConsistency(int) error           { return nil }
func (u *fakeUnit) CarbonTax(int) float64                   { return 10 }
func (u *fakeUnit) Emissions(p int) map[string]float64      { return map[string]float64{"CO2": float64(p + 1)} }
func (u *fakeUnit) IsAllCalibrated(int, float64, bool) bool { return u.calibrated }

func (u *fakeUnit) Calc(_ context.Context, rc interfaces.RunContext, _ int) (interfaces.UnitResult, error) {
	u.calls.Add(1)
	u.lastRC = rc
	if u.calcErr != nil {
		return interfaces.UnitResult{}, u.calcErr
	}
	return interfaces.UnitResult{Calibrated: u.calibrated, Output: 1}, nil
}

func newWorld(cfg Config, units ...Unit) *World {
	w, err := New(mt, cfg)
	Expect(err).NotTo(HaveOccurred())
	for _, u := range units {
		Expect(w.AddUnit(u)).To(Succeed())
	}
	return w
}

// newRegion builds a region with one electricity sector fed by two
// subsectors priced 1 and 2 with equal share weights.
func newRegion(name string, demand float64) *region.Region {
	r, err := region.New("", name, mt)
	Expect(err).NotTo(HaveOccurred())
	s, err := sector.New("electricity", name, mt, nil)
	Expect(err).NotTo(HaveOccurred())
	for _, sub := range []struct {
		name  string
		price float64
	}{{"coal", 1}, {"gas", 2}} {
		ss, err := subsector.New(subsector.Identity{Name: sub.name, Region: name, Sector: "electricity"}, mt)
		Expect(err).NotTo(HaveOccurred())
		tech, err := technology.NewStandard(technology.Config{
			Name:      sub.name + "-plant",
			OMCost:    sub.price,
			Inputs:    []technology.InputConfig{{Name: sub.name, Coefficient: 1}},
			Emissions: map[string]float64{technology.CarbonGas: 0.1},
		}, mt)
		Expect(err).NotTo(HaveOccurred())
		ss.AddTechnology(tech)
		for p := 0; p < mt.Periods; p++ {
			ss.SetShareWeightInput(p, 0.5)
			ss.SetLogitExponent(p, -2)
		}
		s.AddSubsector(ss)
	}
	for p := 0; p < mt.Periods; p++ {
		s.SetDemand(p, demand)
		r.SetFuelPrice("coal", p, 0)
		r.SetFuelPrice("gas", p, 0)
	}
	r.AddSector(s)
	return r
}

func subsectorOutputs(r *region.Region, p int) []float64 {
	s, ok := r.Sector("electricity")
	Expect(ok).To(BeTrue())
	out := []float64{}
	for _, sub := range s.Subsectors() {
		out = append(out, sub.GetOutput(p))
	}
	return out
}

var _ = Describe("World", func() {
	var ctx context.Context

	BeforeEach(func() {
		ctx = context.Background()
	})

	Context("state machine", func() {
		It("walks a run from Uninitialized to Done", func() {
			w, err := New(mt, Config{CalibrationEnabled: true})
			Expect(err).NotTo(HaveOccurred())
			Expect(w.State()).To(Equal(StateUninitialized))

			Expect(w.AddUnit(&fakeUnit{id: "USA", calibrated: true})).To(Succeed())
			Expect(w.State()).To(Equal(StateParsed))
			Expect(w.CompleteInit(ctx)).To(Succeed())
			Expect(w.State()).To(Equal(StateInitialized))

			for p := 0; p < mt.Periods; p++ {
				Expect(w.InitCalc(ctx, p)).To(Succeed())
				Expect(w.State()).To(Equal(StateSolving))
				Expect(w.Calc(ctx, p)).To(Succeed())
				Expect(w.PostCalc(ctx, p)).To(Succeed())
				Expect(w.State()).To(Equal(StatePostCalc))
			}
			Expect(w.RunClimateModel(ctx)).To(Succeed())
			Expect(w.State()).To(Equal(StateDone))
			Expect(w.GetClimateModel().HasRun()).To(BeTrue())
			Expect(w.GetClimateModel().Cumulative("CO2", 2010)).To(BeNumerically("~", 15, 1e-12))
		})

		It("rejects out of order calls", func() {
			w, err := New(mt, Config{})
			Expect(err).NotTo(HaveOccurred())
			Expect(w.CompleteInit(ctx)).To(MatchError(ErrInvalidState))
			Expect(w.RebuildLookup()).To(MatchError(ErrInvalidState))

			Expect(w.AddUnit(&fakeUnit{id: "USA"})).To(Succeed())
			Expect(w.InitCalc(ctx, 0)).To(MatchError(ErrInvalidState))
			Expect(w.CompleteInit(ctx)).To(Succeed())
			Expect(w.CompleteInit(ctx)).To(MatchError(ErrInvalidState), "CompleteInit runs once")
			Expect(w.AddUnit(&fakeUnit{id: "EU"})).To(MatchError(ErrInvalidState))

			Expect(w.Calc(ctx, 0)).To(MatchError(ErrInvalidState))
			Expect(w.InitCalc(ctx, 1)).To(MatchError(ErrInvalidState), "periods start in order")
			Expect(w.InitCalc(ctx, 0)).To(Succeed())
			Expect(w.Calc(ctx, 1)).To(MatchError(ErrInvalidState))
			Expect(w.RunClimateModel(ctx)).To(MatchError(ErrInvalidState))
			Expect(w.PostCalc(ctx, 0)).To(Succeed())
			Expect(w.InitCalc(ctx, 0)).To(MatchError(ErrInvalidState), "no period is solved twice")
			Expect(w.RunClimateModel(ctx)).To(MatchError(ErrInvalidState), "periods remain")
		})

		It("rejects duplicate unit identities", func() {
			w := newWorld(Config{}, &fakeUnit{id: "USA"})
			Expect(w.AddUnit(&fakeUnit{id: "USA"})).To(MatchError(ErrDuplicateUnit))
		})

		It("stays Parsed when a unit fails to complete", func() {
			w := newWorld(Config{}, &fakeUnit{id: "USA", initErr: errors.New("bad input")})
			Expect(w.CompleteInit(ctx)).To(MatchError(ContainSubstring("bad input")))
			Expect(w.State()).To(Equal(StateParsed))
		})
	})

	Context("Calc", func() {
		It("solves only the requested subset", func() {
			usa, china, eu := &fakeUnit{id: "USA"}, &fakeUnit{id: "China"}, &fakeUnit{id: "EU"}
			w := newWorld(Config{}, usa, china, eu)
			Expect(w.CompleteInit(ctx)).To(Succeed())
			Expect(w.InitCalc(ctx, 0)).To(Succeed())

			Expect(w.Calc(ctx, 0, "EU", "USA", "EU")).To(Succeed())
			Expect(usa.calls.Load()).To(Equal(int32(1)))
			Expect(china.calls.Load()).To(Equal(int32(0)))
			Expect(eu.calls.Load()).To(Equal(int32(1)))
			Expect(w.LastPass().Units).To(Equal(2))

			Expect(w.Calc(ctx, 0, "Mars")).To(MatchError(ErrUnknownUnit))
			Expect(w.Calc(ctx, 0)).To(Succeed())
			Expect(china.calls.Load()).To(Equal(int32(1)))
		})

		It("passes the calibration setting and pass counter to units", func() {
			u := &fakeUnit{id: "USA"}
			w := newWorld(Config{CalibrationEnabled: true, CalAccuracy: 0.01}, u)
			Expect(w.GetCalibrationSetting()).To(BeTrue())
			counter := interfaces.NewCalcCounter()
			w.SetCalcCounter(counter)
			Expect(w.CompleteInit(ctx)).To(Succeed())
			Expect(w.InitCalc(ctx, 0)).To(Succeed())

			Expect(w.Calc(ctx, 0)).To(Succeed())
			Expect(u.lastRC.CalibrationEnabled).To(BeTrue())
			Expect(u.lastRC.CalAccuracy).To(Equal(0.01))
			Expect(u.lastRC.Iteration).To(Equal(int64(1)))

			w.TurnCalibrationsOff()
			Expect(w.GetCalibrationSetting()).To(BeFalse())
			Expect(w.Calc(ctx, 0)).To(Succeed())
			Expect(u.lastRC.CalibrationEnabled).To(BeFalse())
			Expect(u.lastRC.Iteration).To(Equal(int64(2)))
			Expect(counter.Value()).To(Equal(int64(2)))

			w.TurnCalibrationsOn()
			Expect(w.GetCalibrationSetting()).To(BeTrue())
		})

		It("surfaces the first unit failure with its identity", func() {
			boom := errors.New("boom")
			w := newWorld(Config{Workers: 4}, &fakeUnit{id: "USA"}, &fakeUnit{id: "China", calcErr: boom})
			Expect(w.CompleteInit(ctx)).To(Succeed())
			Expect(w.InitCalc(ctx, 0)).To(Succeed())

			err := w.Calc(ctx, 0)
			Expect(err).To(MatchError(boom))
			Expect(err.Error()).To(ContainSubstring("unit China period 0"))
		})

		It("gives the same results sequentially and in parallel", func() {
			names := []string{"USA", "China", "EU", "India", "Brazil", "Japan"}
			solve := func(workers int) [][]float64 {
				w, err := New(mt, Config{Workers: workers, CalibrationEnabled: true, CalAccuracy: 1e-3})
				Expect(err).NotTo(HaveOccurred())
				regions := []*region.Region{}
				for i, name := range names {
					r := newRegion(name, float64(100*(i+1)))
					regions = append(regions, r)
					Expect(w.AddUnit(r)).To(Succeed())
				}
				Expect(w.CompleteInit(ctx)).To(Succeed())
				Expect(w.InitCalc(ctx, 0)).To(Succeed())
				Expect(w.Calc(ctx, 0)).To(Succeed())
				out := [][]float64{}
				for _, r := range regions {
					out = append(out, subsectorOutputs(r, 0))
				}
				return out
			}
			Expect(solve(4)).To(Equal(solve(1)))
		})
	})

	Context("two regions with two subsectors each", func() {
		It("splits demand by logit shares", func() {
			usa, china := newRegion("USA", 100), newRegion("China", 100)
			w := newWorld(Config{Workers: 2}, usa, china)
			Expect(w.CompleteInit(ctx)).To(Succeed())
			Expect(w.InitCalc(ctx, 0)).To(Succeed())
			Expect(w.Calc(ctx, 0)).To(Succeed())

			for _, r := range []*region.Region{usa, china} {
				out := subsectorOutputs(r, 0)
				Expect(out[0]).To(BeNumerically("~", 80, 1e-9))
				Expect(out[1]).To(BeNumerically("~", 20, 1e-9))
			}
			Expect(w.LastPass().Output).To(BeNumerically("~", 200, 1e-9))
			Expect(w.IsAllCalibrated(0, 1e-3, false)).To(BeTrue())
			Expect(w.CheckCalConsistency(0)).To(Succeed())

			Expect(w.GetOutputRegionMap()).To(Equal(map[string]int{"USA": 0, "China": 1}))
			Expect(w.GetRegionIDs()).To(Equal([]interfaces.UnitID{"USA", "China"}))
		})
	})

	Context("IsAllCalibrated", func() {
		It("is false when any unit is not calibrated", func() {
			w := newWorld(Config{}, &fakeUnit{id: "USA", calibrated: true}, &fakeUnit{id: "EU"})
			Expect(w.IsAllCalibrated(0, 1e-3, true)).To(BeFalse())

			w = newWorld(Config{}, &fakeUnit{id: "USA", calibrated: true}, &fakeUnit{id: "EU", calibrated: true})
			Expect(w.IsAllCalibrated(0, 1e-3, true)).To(BeTrue())
		})
	})

	Context("emissions curves", func() {
		It("covers completed periods only", func() {
			w := newWorld(Config{}, &fakeUnit{id: "USA"})
			Expect(w.CompleteInit(ctx)).To(Succeed())
			Expect(w.InitCalc(ctx, 0)).To(Succeed())
			Expect(w.Calc(ctx, 0)).To(Succeed())
			Expect(w.GetEmissionsQuantityCurves("CO2")["USA"].Points).To(BeEmpty())
			Expect(w.PostCalc(ctx, 0)).To(Succeed())

			q := w.GetEmissionsQuantityCurves("CO2")["USA"]
			Expect(q.Points).To(Equal([]emissions.Point{{Year: 2005, Value: 1}}))
			Expect(q.Labels[emissions.LabelKind]).To(Equal(emissions.KindQuantity))

			price := w.GetEmissionsPriceCurves("CO2")["USA"]
			Expect(price.Points).To(Equal([]emissions.Point{{Year: 2005, Value: 10}}))
			other := w.GetEmissionsPriceCurves("CH4")["USA"]
			Expect(other.Points).To(Equal([]emissions.Point{{Year: 2005, Value: 0}}))
		})
	})

	It("keeps a technology registry", func() {
		w := newWorld(Config{})
		Expect(w.GetTechnologyRegistry().Len()).To(Equal(0))
		reg := technology.NewRegistry()
		w.SetTechnologyRegistry(reg)
		Expect(w.GetTechnologyRegistry()).To(BeIdenticalTo(reg))
	})
})
