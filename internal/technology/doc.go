// Package technology provides the standard single-output technology that
// competes for market share inside a subsector, and the registry of global
// technology templates that scenario loading instantiates from.
package technology
