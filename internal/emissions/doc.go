// Package emissions provides year-indexed curves of emitted quantities and
// emission prices, the form in which the world hands its results to a
// climate model.
package emissions
