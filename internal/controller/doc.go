// Package controller drives a world through a model run.
//
// # Run Flow
//
// For every period in order the Runner:
//  1. checks calibration data against demand (warning only)
//  2. calls World.InitCalc
//  3. repeats World.Calc until every unit is calibrated, calibration is off,
//     or the iteration limit is reached
//  4. records the iterations and uncalibrated units as metrics
//  5. calls World.PostCalc
//
// After the last period the world's climate model is run.
//
// A unit failure (for example a numeric divergence) aborts the run and is
// returned with the period and iteration. Unattainable calibration targets
// are collected in the RunReport instead.
package controller
