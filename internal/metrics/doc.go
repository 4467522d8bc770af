// Package metrics provides Prometheus instrumentation of the solve loop.
//
// # Metrics
//
//   - market_equilibrium_calc_passes_total
//   - market_equilibrium_calc_duration_seconds
//   - market_equilibrium_unit_solves_total{outcome}
//   - market_equilibrium_capacity_limited_subsectors_total
//   - market_equilibrium_calibration_iterations{period}
//   - market_equilibrium_uncalibrated_units{period}
//
// The command writes the gathered families to a text file in the Prometheus
// exposition format at the end of a run.
package metrics
