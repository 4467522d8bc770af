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

// GetShare returns the share of the subsector within its sector.
func (s *Subsector) GetShare(p int) float64 {
	return s.share.At(p)
}

// SetShare overwrites the share for p.
func (s *Subsector) SetShare(p int, share float64) {
	s.share.Set(p, share)
}

func (s *Subsector) GetCapacityLimit(p int) float64 {
	return s.capLimit.At(p)
}

func (s *Subsector) GetCapLimitStatus(p int) bool {
	return s.capLimited.At(p)
}

func (s *Subsector) SetCapLimitStatus(limited bool, p int) {
	s.capLimited.Set(p, limited)
}

func (s *Subsector) GetShareWeight(p int) float64 {
	return s.shareWeight.At(p)
}

func (s *Subsector) GetLogitExponent(p int) float64 {
	return s.logitExponent.At(p)
}

func (s *Subsector) GetFixedShare(p int) float64 {
	return s.fixedShare.At(p)
}

// SetFixedShare sets the share of sector demand met by this subsector's
// fixed supply.
func (s *Subsector) SetFixedShare(p int, share float64) {
	s.fixedShare.Set(p, share)
}

// SetShareToFixedValue makes the fixed share the whole share.
func (s *Subsector) SetShareToFixedValue(p int) {
	s.share.Set(p, s.fixedShare.At(p))
}

// AllOutputFixed reports whether every technology has fixed output in p.
func (s *Subsector) AllOutputFixed(p int) bool {
	if len(s.children) == 0 {
		return false
	}
	for _, t := range s.children {
		if !t.IsFixed(p) {
			return false
		}
	}
	return true
}

// GetFixedSupply returns the total fixed output of the technologies.
func (s *Subsector) GetFixedSupply(p int) float64 {
	total := 0.0
	for _, t := range s.children {
		total += t.FixedOutput(p)
	}
	return total
}

// ScaleFixedSupply scales the fixed output of every technology by ratio.
func (s *Subsector) ScaleFixedSupply(ratio float64, p int) {
	for _, t := range s.children {
		t.ScaleFixedOutput(p, ratio)
	}
}

// ResetFixedSupply restores the configured fixed outputs.
func (s *Subsector) ResetFixedSupply(p int) {
	for _, t := range s.children {
		t.ResetFixedOutput(p)
	}
}

// ApplyCarbonTax passes the carbon tax on to every technology.
func (s *Subsector) ApplyCarbonTax(tax float64, p int) {
	for _, t := range s.children {
		t.ApplyCarbonTax(p, tax)
	}
}

func (s *Subsector) GetOutput(p int) float64 {
	return s.output.At(p)
}

func (s *Subsector) GetInput(p int) float64 {
	return s.input.At(p)
}

// GetPrimaryEnergyConsumption returns the primary energy consumed in p.
func (s *Subsector) GetPrimaryEnergyConsumption(p int) float64 {
	return s.peCons.At(p)
}

func (s *Subsector) GetPrice(p int) float64 {
	return s.price.At(p)
}

func (s *Subsector) GetFuelPrice(p int) float64 {
	return s.fuelPrice.At(p)
}

func (s *Subsector) GetTotalCarbonTaxPaid(p int) float64 {
	return s.carbonTaxPaid.At(p)
}

// GetEmissions returns the emissions of gas summed over technologies.
func (s *Subsector) GetEmissions(gas string, p int) float64 {
	total := 0.0
	for _, t := range s.children {
		total += t.Emissions(p)[gas]
	}
	return total
}

// GetAllEmissions returns emissions of every gas summed over technologies.
func (s *Subsector) GetAllEmissions(p int) map[string]float64 {
	out := make(map[string]float64)
	for _, t := range s.children {
		for gas, v := range t.Emissions(p) {
			out[gas] += v
		}
	}
	return out
}

// GetFuelConsumption returns input demand by fuel summed over technologies.
func (s *Subsector) GetFuelConsumption(p int) map[string]float64 {
	out := make(map[string]float64)
	for _, t := range s.children {
		for fuel, v := range t.FuelConsumption(p) {
			out[fuel] += v
		}
	}
	return out
}

// GetEmissionsByFuel attributes the emissions of gas to the primary fuel of
// each technology.
func (s *Subsector) GetEmissionsByFuel(gas string, p int) map[string]float64 {
	out := make(map[string]float64)
	for _, t := range s.children {
		if v := t.Emissions(p)[gas]; v != 0 {
			out[t.FuelName()] += v
		}
	}
	return out
}
