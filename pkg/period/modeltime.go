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

package period

import "fmt"

// Modeltime maps model periods to calendar years. Period p covers the year
// StartYear + p*Timestep.
type Modeltime struct {
	StartYear int `yaml:"startYear" json:"startYear"`
	Timestep  int `yaml:"timestep" json:"timestep"`
	Periods   int `yaml:"periods" json:"periods"`
}

// Validate checks that the mapping describes at least one period.
func (mt Modeltime) Validate() error {
	if mt.Periods <= 0 {
		return &InvalidSizeError{Size: mt.Periods}
	}
	if mt.Timestep <= 0 {
		return fmt.Errorf("timestep must be > 0, got %d", mt.Timestep)
	}
	return nil
}

// MaxPeriod returns the number of model periods.
func (mt Modeltime) MaxPeriod() int {
	return mt.Periods
}

// EndYear returns the year of the final period.
func (mt Modeltime) EndYear() int {
	return mt.Year(mt.Periods - 1)
}

// Year returns the calendar year of period p.
func (mt Modeltime) Year(p int) int {
	return mt.StartYear + p*mt.Timestep
}

// Period returns the period whose year is exactly year.
func (mt Modeltime) Period(year int) (int, bool) {
	if mt.Timestep <= 0 || year < mt.StartYear {
		return 0, false
	}
	offset := year - mt.StartYear
	if offset%mt.Timestep != 0 {
		return 0, false
	}
	p := offset / mt.Timestep
	if p >= mt.Periods {
		return 0, false
	}
	return p, true
}

// Years returns the year of every period in order.
func (mt Modeltime) Years() []int {
	out := make([]int, mt.Periods)
	for p := range out {
		out[p] = mt.Year(p)
	}
	return out
}
