// Package climate defines the interface between the world and a climate
// model, split into a Writer the world feeds emissions curves into and a
// Reader for the model results.
//
// Accumulator is a small in-memory model integrating global emissions per
// gas. It is what runs when a scenario names no other model and is used by
// tests.
package climate
