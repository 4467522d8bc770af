// Package region implements the solvable unit of the world: a region owning
// a set of sectors. Regions are independent of each other within a calc
// pass, which is what allows the world to solve them in parallel.
//
// Inside a region, sectors are solved in order and each solved sector
// publishes its price under its own name, so technologies of later sectors
// can consume its good. Goods no sector supplies are priced from the
// region's exogenous price table.
package region
