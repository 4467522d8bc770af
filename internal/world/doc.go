// Package world implements the top of the model hierarchy: a World owns the
// geographic units of a run and drives them through the run lifecycle
//
//	Uninitialized -> Parsed -> Initialized -> Solving(p) -> PostCalc(p) -> ... -> Done
//
// Units are independent within a calc pass, so Calc solves them on up to
// Config.Workers goroutines. The identity lookup used to resolve a subset
// is built once by a LookupBuilder and frozen; it is only read while
// solving. Calibration on/off and the pass counter are handed to units in an
// explicit interfaces.RunContext.
package world
