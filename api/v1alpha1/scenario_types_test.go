package v1alpha1

import (
	"strings"
	"testing"

	"k8s.io/utils/ptr"
)

// helper: build a valid Scenario
func makeValidScenario() *Scenario {
	return &Scenario{
		TypeMeta: TypeMeta{APIVersion: APIVersion, Kind: KindScenario},
		Metadata: ObjectMeta{Name: "reference"},
		Spec: ScenarioSpec{
			Modeltime: ModeltimeSpec{StartYear: 2005, Timestep: 5, Periods: 3},
			Technologies: []TechnologySpec{
				{Name: "coal-plant", Inputs: []InputSpec{{Name: "coal", Coefficient: 1}}, Emissions: map[string]float64{"CO2": 0.1}},
				{Name: "gas-plant", Inputs: []InputSpec{{Name: "gas", Coefficient: 1}}},
			},
			Regions: []RegionSpec{{
				Name:      "USA",
				Prices:    map[string]Series{"coal": {2005: 1}, "gas": {2005: 2}},
				CarbonTax: Series{2010: 5},
				Sectors: []SectorSpec{{
					Name:   "electricity",
					Demand: Series{2005: 100, 2010: 110, 2015: 120},
					Subsectors: []SubsectorSpec{
						{Name: "coal", ShareWeights: Series{2005: 0.5}, LogitExponent: ptr.To(-2.0),
							Technologies: []TechnologyRef{{Template: "coal-plant"}}},
						{Name: "gas", ShareWeights: Series{2005: 0.5}, CapacityLimits: Series{2005: 0.3},
							Technologies: []TechnologyRef{{Template: "gas-plant", FixedOutput: Series{2010: 5}}}},
					},
				}},
			}},
		},
	}
}

func TestScenario_Validate(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(s *Scenario)
		wantCount int
		wantField string
	}{
		{name: "Test case 1: Valid", mutate: func(*Scenario) {}},
		{name: "Test case 2: Wrong apiVersion", mutate: func(s *Scenario) { s.APIVersion = "v2" }, wantCount: 1, wantField: "apiVersion"},
		{name: "Test case 3: Bad modeltime stops early", mutate: func(s *Scenario) {
			s.Spec.Modeltime.Periods = 0
			s.Spec.Regions = nil
		}, wantCount: 1, wantField: "spec.modeltime.periods"},
		{name: "Test case 4: Year between periods", mutate: func(s *Scenario) {
			s.Spec.Regions[0].Sectors[0].Demand[2007] = 100
		}, wantCount: 1, wantField: "spec.regions[0].sectors[0].demand[2007]"},
		{name: "Test case 5: Unknown template", mutate: func(s *Scenario) {
			s.Spec.Regions[0].Sectors[0].Subsectors[0].Technologies[0].Template = "nuclear"
		}, wantCount: 1, wantField: "spec.regions[0].sectors[0].subsectors[0].technologies[0].template"},
		{name: "Test case 6: Duplicate subsector and bad mode", mutate: func(s *Scenario) {
			subs := s.Spec.Regions[0].Sectors[0].Subsectors
			subs[1].Name = "coal"
			subs[1].CapLimitMode = ptr.To("soft")
		}, wantCount: 2},
		{name: "Test case 7: Negative capacity limit", mutate: func(s *Scenario) {
			s.Spec.Regions[0].Sectors[0].Subsectors[1].CapacityLimits[2005] = -0.1
		}, wantCount: 1},
		{name: "Test case 8: Duplicate region id", mutate: func(s *Scenario) {
			dup := s.Spec.Regions[0]
			dup.Name = "US"
			dup.ID = "USA"
			s.Spec.Regions = append(s.Spec.Regions, dup)
		}, wantCount: 1, wantField: "spec.regions[1].id"},
		{name: "Test case 9: Negative carbon tax is allowed", mutate: func(s *Scenario) {
			s.Spec.Regions[0].CarbonTax[2010] = -1
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := makeValidScenario()
			tt.mutate(s)
			errs := s.Validate()
			if len(errs) != tt.wantCount {
				t.Fatalf("Validate() returned %d errors, want %d: %v", len(errs), tt.wantCount, errs.ToAggregate())
			}
			if tt.wantField != "" && !strings.HasPrefix(errs[0].Field, tt.wantField) {
				t.Errorf("first error field = %q, want prefix %q", errs[0].Field, tt.wantField)
			}
		})
	}
}

func TestModeltimeSpec_Period(t *testing.T) {
	mt := ModeltimeSpec{StartYear: 2005, Timestep: 5, Periods: 3}
	for year, want := range map[int]int{2005: 0, 2010: 1, 2015: 2} {
		p, ok := mt.Period(year)
		if !ok || p != want {
			t.Errorf("Period(%d) = %d, %v; want %d, true", year, p, ok, want)
		}
		if got := mt.Year(want); got != year {
			t.Errorf("Year(%d) = %d, want %d", want, got, year)
		}
	}
	for _, year := range []int{2000, 2007, 2020} {
		if _, ok := mt.Period(year); ok {
			t.Errorf("Period(%d) should not be a model year", year)
		}
	}
}

func TestDefaults(t *testing.T) {
	ref := TechnologyRef{Template: "coal-plant"}
	if ref.TechnologyName() != "coal-plant" {
		t.Errorf("TechnologyName() = %q", ref.TechnologyName())
	}
	ref.Name = "coal-plant-2"
	if ref.TechnologyName() != "coal-plant-2" {
		t.Errorf("TechnologyName() = %q", ref.TechnologyName())
	}
	if got := (SubsectorSpec{}).EffectiveLogitExponent(); got != DefaultLogitExponent {
		t.Errorf("EffectiveLogitExponent() = %v, want %v", got, DefaultLogitExponent)
	}
	if got := (RegionSpec{Name: "USA"}).RegionID(); got != "USA" {
		t.Errorf("RegionID() = %q", got)
	}
}
