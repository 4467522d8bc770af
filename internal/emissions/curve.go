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

package emissions

import (
	"fmt"
	"slices"
	"sort"
	"strings"
)

// Point is a single value of a curve.
type Point struct {
	// Year is the calendar year of the value.
	Year int

	// Value is the quantity or price in that year.
	Value float64
}

// Curve is a year-indexed series of one gas for one region, either an
// emitted quantity or a price.
// Note: Curve is not thread-safe. Producers hand finished curves to their
// consumers.
type Curve struct {
	// Gas is the emitted gas the curve describes.
	Gas string

	// Labels identify the curve, e.g. its region.
	Labels map[string]string

	// Points are kept sorted by year with at most one point per year.
	Points []Point
}

// NewCurve creates an empty curve.
func NewCurve(gas string, labels map[string]string) *Curve {
	return &Curve{
		Gas:    gas,
		Labels: labels,
		Points: make([]Point, 0),
	}
}

// Set stores value for year, replacing an existing point for that year.
func (c *Curve) Set(year int, value float64) {
	i, found := slices.BinarySearchFunc(c.Points, year, func(p Point, y int) int {
		return p.Year - y
	})
	if found {
		c.Points[i].Value = value
		return
	}
	c.Points = slices.Insert(c.Points, i, Point{Year: year, Value: value})
}

// Value returns the value for year and whether the curve has one.
func (c *Curve) Value(year int) (float64, bool) {
	i, found := slices.BinarySearchFunc(c.Points, year, func(p Point, y int) int {
		return p.Year - y
	})
	if !found {
		return 0, false
	}
	return c.Points[i].Value, true
}

// Latest returns the point with the highest year, or nil if empty.
func (c *Curve) Latest() *Point {
	if len(c.Points) == 0 {
		return nil
	}
	return &c.Points[len(c.Points)-1]
}

// Years returns the years of all points in order.
func (c *Curve) Years() []int {
	out := make([]int, len(c.Points))
	for i, p := range c.Points {
		out[i] = p.Year
	}
	return out
}

// Integrate returns the area under the curve from its first point through
// year, treating each point as a step that holds until the next one. The
// last point holds for timestep years.
func (c *Curve) Integrate(year, timestep int) float64 {
	total := 0.0
	for i, p := range c.Points {
		if p.Year > year {
			break
		}
		width := timestep
		if i+1 < len(c.Points) {
			width = c.Points[i+1].Year - p.Year
		}
		if p.Year+width > year+timestep {
			width = year + timestep - p.Year
		}
		total += p.Value * float64(width)
	}
	return total
}

// Add returns a new curve with the pointwise sum of c and other. Years
// present in only one curve keep that curve's value.
func (c *Curve) Add(other *Curve) *Curve {
	out := NewCurve(c.Gas, nil)
	for _, p := range c.Points {
		out.Set(p.Year, p.Value)
	}
	for _, p := range other.Points {
		v, _ := out.Value(p.Year)
		out.Set(p.Year, v+p.Value)
	}
	return out
}

// LabelSetKey returns a string key representing the label set.
func (c *Curve) LabelSetKey() string {
	return LabelSetToKey(c.Labels)
}

// LabelSetToKey converts a label map to a deterministic string key.
func LabelSetToKey(labels map[string]string) string {
	if len(labels) == 0 {
		return ""
	}
	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s=%s", k, labels[k])
	}
	return strings.Join(parts, ",")
}

// Label keys set on curves produced by the world.
const (
	LabelRegion = "region"
	LabelKind   = "kind"
)

// Curve kinds.
const (
	KindQuantity = "quantity"
	KindPrice    = "price"
)
