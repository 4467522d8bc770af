package v1alpha1

import (
	"fmt"
	"math"
	"slices"

	"k8s.io/apimachinery/pkg/util/sets"
	"k8s.io/apimachinery/pkg/util/validation/field"
	"k8s.io/utils/ptr"
)

const (
	// APIVersion is the only accepted scenario version.
	APIVersion = "market-equilibrium/v1alpha1"
	// KindScenario is the kind of a scenario document.
	KindScenario = "Scenario"
	// DefaultLogitExponent applies to subsectors without a logitExponent.
	DefaultLogitExponent = -3.0
)

// TypeMeta identifies the schema of a document.
type TypeMeta struct {
	APIVersion string `yaml:"apiVersion" json:"apiVersion"`
	Kind       string `yaml:"kind" json:"kind"`
}

// ObjectMeta carries descriptive fields of a scenario.
type ObjectMeta struct {
	// +kubebuilder:validation:MinLength=1
	Name string `yaml:"name" json:"name"`
	// +optional
	Description string `yaml:"description,omitempty" json:"description,omitempty"`
}

// Scenario is the input of one model run.
type Scenario struct {
	TypeMeta `yaml:",inline" json:",inline"`
	Metadata ObjectMeta   `yaml:"metadata" json:"metadata"`
	Spec     ScenarioSpec `yaml:"spec" json:"spec"`
}

// Series maps calendar years to values. Years must coincide with model
// periods.
type Series map[int]float64

// ScenarioSpec describes the model time, the technology templates and the
// regions of a run.
type ScenarioSpec struct {
	Modeltime ModeltimeSpec `yaml:"modeltime" json:"modeltime"`

	// Technologies are templates instantiated by name from subsectors.
	Technologies []TechnologySpec `yaml:"technologies" json:"technologies"`

	// +kubebuilder:validation:MinItems=1
	Regions []RegionSpec `yaml:"regions" json:"regions"`
}

// ModeltimeSpec maps periods to years.
type ModeltimeSpec struct {
	StartYear int `yaml:"startYear" json:"startYear"`
	// +kubebuilder:validation:Minimum=1
	Timestep int `yaml:"timestep" json:"timestep"`
	// +kubebuilder:validation:Minimum=1
	Periods int `yaml:"periods" json:"periods"`
}

// Year returns the year of period p.
func (m ModeltimeSpec) Year(p int) int {
	return m.StartYear + p*m.Timestep
}

// Period returns the period of year and whether year is a model year.
func (m ModeltimeSpec) Period(year int) (int, bool) {
	if m.Timestep <= 0 || year < m.StartYear || (year-m.StartYear)%m.Timestep != 0 {
		return 0, false
	}
	p := (year - m.StartYear) / m.Timestep
	return p, p < m.Periods
}

// InputSpec is one input of a technology template.
type InputSpec struct {
	// Name of the consumed good; priced by the sector of the same name or
	// by the region's prices.
	Name string `yaml:"name" json:"name"`
	// +kubebuilder:validation:Minimum=0
	Coefficient float64 `yaml:"coefficient" json:"coefficient"`
}

// TechnologySpec is a technology template.
type TechnologySpec struct {
	Name   string      `yaml:"name" json:"name"`
	Inputs []InputSpec `yaml:"inputs,omitempty" json:"inputs,omitempty"`
	// +optional
	CapitalCost float64 `yaml:"capitalCost,omitempty" json:"capitalCost,omitempty"`
	// +optional
	OMCost float64 `yaml:"omCost,omitempty" json:"omCost,omitempty"`
	// +optional
	DiscountRate float64 `yaml:"discountRate,omitempty" json:"discountRate,omitempty"`
	// +optional
	Lifetime int `yaml:"lifetime,omitempty" json:"lifetime,omitempty"`
	// Emissions maps a gas to its coefficient per unit of input.
	// +optional
	Emissions map[string]float64 `yaml:"emissions,omitempty" json:"emissions,omitempty"`
}

// RegionSpec is a geographic unit.
type RegionSpec struct {
	Name string `yaml:"name" json:"name"`
	// ID defaults to Name.
	// +optional
	ID string `yaml:"id,omitempty" json:"id,omitempty"`
	// Prices of goods no sector of the region supplies, by good.
	// +optional
	Prices map[string]Series `yaml:"prices,omitempty" json:"prices,omitempty"`
	// +optional
	CarbonTax Series `yaml:"carbonTax,omitempty" json:"carbonTax,omitempty"`
	// GDPScale is the reference scale used by fuel preference elasticities.
	// Missing years default to 1.
	// +optional
	GDPScale Series `yaml:"gdpScale,omitempty" json:"gdpScale,omitempty"`
	// Sectors are solved in order.
	Sectors []SectorSpec `yaml:"sectors" json:"sectors"`
}

// SectorSpec is a market inside a region.
type SectorSpec struct {
	Name       string          `yaml:"name" json:"name"`
	Demand     Series          `yaml:"demand" json:"demand"`
	Subsectors []SubsectorSpec `yaml:"subsectors" json:"subsectors"`
}

// SubsectorSpec is one competitor for a sector's demand.
type SubsectorSpec struct {
	Name string `yaml:"name" json:"name"`
	// +optional
	Fuel string `yaml:"fuel,omitempty" json:"fuel,omitempty"`
	// +optional
	Unit string `yaml:"unit,omitempty" json:"unit,omitempty"`
	// LogitExponent defaults to DefaultLogitExponent.
	// +optional
	LogitExponent *float64 `yaml:"logitExponent,omitempty" json:"logitExponent,omitempty"`
	// CapLimitMode overrides the run's capacity limit mode.
	// +kubebuilder:validation:Enum=hard;smooth
	// +optional
	CapLimitMode *string `yaml:"capLimitMode,omitempty" json:"capLimitMode,omitempty"`
	// ShareWeights are explicit share weights. Periods without one are
	// interpolated or carried forward.
	// +optional
	ShareWeights Series `yaml:"shareWeights,omitempty" json:"shareWeights,omitempty"`
	// +optional
	CapacityLimits Series `yaml:"capacityLimits,omitempty" json:"capacityLimits,omitempty"`
	// +optional
	FuelPrefElasticity Series `yaml:"fuelPrefElasticity,omitempty" json:"fuelPrefElasticity,omitempty"`
	// +optional
	Tax Series `yaml:"tax,omitempty" json:"tax,omitempty"`
	// CalOutput is the calibrated variable output of the subsector.
	// +optional
	CalOutput    Series          `yaml:"calOutput,omitempty" json:"calOutput,omitempty"`
	Technologies []TechnologyRef `yaml:"technologies" json:"technologies"`
}

// TechnologyRef instantiates a technology template inside a subsector.
type TechnologyRef struct {
	// Template names a TechnologySpec.
	Template string `yaml:"template" json:"template"`
	// Name defaults to Template.
	// +optional
	Name string `yaml:"name,omitempty" json:"name,omitempty"`
	// +optional
	ShareWeights Series `yaml:"shareWeights,omitempty" json:"shareWeights,omitempty"`
	// +optional
	FixedOutput Series `yaml:"fixedOutput,omitempty" json:"fixedOutput,omitempty"`
	// +optional
	CalOutput Series `yaml:"calOutput,omitempty" json:"calOutput,omitempty"`
	// InputCoefficients override template coefficients by input and year.
	// +optional
	InputCoefficients map[string]Series `yaml:"inputCoefficients,omitempty" json:"inputCoefficients,omitempty"`
}

// TechnologyName returns the instance name of the reference.
func (r TechnologyRef) TechnologyName() string {
	if r.Name != "" {
		return r.Name
	}
	return r.Template
}

// RegionID returns the identity of the region.
func (r RegionSpec) RegionID() string {
	if r.ID != "" {
		return r.ID
	}
	return r.Name
}

// EffectiveLogitExponent returns the configured exponent or the default.
func (s SubsectorSpec) EffectiveLogitExponent() float64 {
	return ptr.Deref(s.LogitExponent, DefaultLogitExponent)
}

// Validate checks the scenario for structural problems. It does not check
// that prices exist for every input; that surfaces while solving.
func (s *Scenario) Validate() field.ErrorList {
	var errs field.ErrorList
	if s.APIVersion != APIVersion {
		errs = append(errs, field.NotSupported(field.NewPath("apiVersion"), s.APIVersion, []string{APIVersion}))
	}
	if s.Kind != KindScenario {
		errs = append(errs, field.NotSupported(field.NewPath("kind"), s.Kind, []string{KindScenario}))
	}
	if s.Metadata.Name == "" {
		errs = append(errs, field.Required(field.NewPath("metadata", "name"), ""))
	}

	spec := field.NewPath("spec")
	mt := s.Spec.Modeltime
	mtPath := spec.Child("modeltime")
	if mt.Timestep < 1 {
		errs = append(errs, field.Invalid(mtPath.Child("timestep"), mt.Timestep, "must be >= 1"))
	}
	if mt.Periods < 1 {
		errs = append(errs, field.Invalid(mtPath.Child("periods"), mt.Periods, "must be >= 1"))
	}
	if mt.Timestep < 1 || mt.Periods < 1 {
		// Years cannot be checked without a valid model time.
		return errs
	}

	templates := sets.New[string]()
	for i, t := range s.Spec.Technologies {
		p := spec.Child("technologies").Index(i)
		switch {
		case t.Name == "":
			errs = append(errs, field.Required(p.Child("name"), ""))
		case templates.Has(t.Name):
			errs = append(errs, field.Duplicate(p.Child("name"), t.Name))
		default:
			templates.Insert(t.Name)
		}
		for j, in := range t.Inputs {
			if in.Name == "" {
				errs = append(errs, field.Required(p.Child("inputs").Index(j).Child("name"), ""))
			}
			if in.Coefficient < 0 {
				errs = append(errs, field.Invalid(p.Child("inputs").Index(j).Child("coefficient"), in.Coefficient, "must be >= 0"))
			}
		}
		if t.Lifetime < 0 {
			errs = append(errs, field.Invalid(p.Child("lifetime"), t.Lifetime, "must be >= 0"))
		}
	}

	if len(s.Spec.Regions) == 0 {
		errs = append(errs, field.Required(spec.Child("regions"), "at least one region is required"))
	}
	regionIDs := sets.New[string]()
	for i, r := range s.Spec.Regions {
		p := spec.Child("regions").Index(i)
		if r.Name == "" {
			errs = append(errs, field.Required(p.Child("name"), ""))
		}
		if regionIDs.Has(r.RegionID()) {
			errs = append(errs, field.Duplicate(p.Child("id"), r.RegionID()))
		}
		regionIDs.Insert(r.RegionID())
		for _, good := range sortedKeys(r.Prices) {
			errs = append(errs, validateSeries(mt, p.Child("prices").Key(good), r.Prices[good], true)...)
		}
		errs = append(errs, validateSeries(mt, p.Child("carbonTax"), r.CarbonTax, false)...)
		errs = append(errs, validateSeries(mt, p.Child("gdpScale"), r.GDPScale, true)...)
		for _, y := range sortedKeys(r.GDPScale) {
			if r.GDPScale[y] == 0 {
				errs = append(errs, field.Invalid(p.Child("gdpScale").Key(fmt.Sprint(y)), 0.0, "must be > 0"))
			}
		}
		errs = append(errs, validateSectors(mt, p.Child("sectors"), r.Sectors, templates)...)
	}
	return errs
}

func validateSectors(mt ModeltimeSpec, path *field.Path, sectors []SectorSpec, templates sets.Set[string]) field.ErrorList {
	var errs field.ErrorList
	names := sets.New[string]()
	if len(sectors) == 0 {
		errs = append(errs, field.Required(path, "at least one sector is required"))
	}
	for i, s := range sectors {
		p := path.Index(i)
		if s.Name == "" {
			errs = append(errs, field.Required(p.Child("name"), ""))
		} else if names.Has(s.Name) {
			errs = append(errs, field.Duplicate(p.Child("name"), s.Name))
		}
		names.Insert(s.Name)
		errs = append(errs, validateSeries(mt, p.Child("demand"), s.Demand, true)...)

		subNames := sets.New[string]()
		for j, sub := range s.Subsectors {
			sp := p.Child("subsectors").Index(j)
			if sub.Name == "" {
				errs = append(errs, field.Required(sp.Child("name"), ""))
			} else if subNames.Has(sub.Name) {
				errs = append(errs, field.Duplicate(sp.Child("name"), sub.Name))
			}
			subNames.Insert(sub.Name)
			if sub.CapLimitMode != nil && !slices.Contains([]string{"hard", "smooth"}, *sub.CapLimitMode) {
				errs = append(errs, field.NotSupported(sp.Child("capLimitMode"), *sub.CapLimitMode, []string{"hard", "smooth"}))
			}
			if e := sub.EffectiveLogitExponent(); math.IsNaN(e) || math.IsInf(e, 0) {
				errs = append(errs, field.Invalid(sp.Child("logitExponent"), e, "must be finite"))
			}
			errs = append(errs, validateSeries(mt, sp.Child("shareWeights"), sub.ShareWeights, true)...)
			errs = append(errs, validateSeries(mt, sp.Child("capacityLimits"), sub.CapacityLimits, true)...)
			errs = append(errs, validateSeries(mt, sp.Child("fuelPrefElasticity"), sub.FuelPrefElasticity, false)...)
			errs = append(errs, validateSeries(mt, sp.Child("tax"), sub.Tax, false)...)
			errs = append(errs, validateSeries(mt, sp.Child("calOutput"), sub.CalOutput, true)...)

			if len(sub.Technologies) == 0 {
				errs = append(errs, field.Required(sp.Child("technologies"), "at least one technology is required"))
			}
			for k, ref := range sub.Technologies {
				tp := sp.Child("technologies").Index(k)
				if !templates.Has(ref.Template) {
					errs = append(errs, field.NotFound(tp.Child("template"), ref.Template))
				}
				errs = append(errs, validateSeries(mt, tp.Child("shareWeights"), ref.ShareWeights, true)...)
				errs = append(errs, validateSeries(mt, tp.Child("fixedOutput"), ref.FixedOutput, true)...)
				errs = append(errs, validateSeries(mt, tp.Child("calOutput"), ref.CalOutput, true)...)
				for _, in := range sortedKeys(ref.InputCoefficients) {
					errs = append(errs, validateSeries(mt, tp.Child("inputCoefficients").Key(in), ref.InputCoefficients[in], true)...)
				}
			}
		}
	}
	return errs
}

// validateSeries checks that every year is a model year and every value is
// finite, and non-negative when nonNegative is set.
func validateSeries(mt ModeltimeSpec, path *field.Path, s Series, nonNegative bool) field.ErrorList {
	var errs field.ErrorList
	for _, year := range sortedKeys(s) {
		v := s[year]
		p := path.Key(fmt.Sprint(year))
		if _, ok := mt.Period(year); !ok {
			errs = append(errs, field.Invalid(p, year, fmt.Sprintf("not a model year (start %d, timestep %d, %d periods)",
				mt.StartYear, mt.Timestep, mt.Periods)))
			continue
		}
		if math.IsNaN(v) || math.IsInf(v, 0) {
			errs = append(errs, field.Invalid(p, v, "must be finite"))
		} else if nonNegative && v < 0 {
			errs = append(errs, field.Invalid(p, v, "must be >= 0"))
		}
	}
	return errs
}

func sortedKeys[K int | string, V any](m map[K]V) []K {
	keys := make([]K, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
