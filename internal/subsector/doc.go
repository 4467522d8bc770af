// Package subsector computes market shares for one group of competing
// technologies.
//
// # Share Computation
//
// Within a subsector, technology i receives the logit share
//
//	w_i     = shareWeight_i * price_i^logitExponent
//	share_i = w_i / sum(w)
//
// Technologies with fixed output take no part in the competition. The
// subsector's own unnormalized share in its sector is
//
//	shareWeight * price^logitExponent * referenceScale^fuelPrefElasticity
//
// # Solve Pass
//
// The owning sector drives one pass as follows:
//
//  1. CalcPrice and CalcShare on every subsector
//  2. NormShare over subsectors that are not entirely fixed
//  3. LimitShares on every sibling until no new capacity limit is hit
//     (see internal/engines/limiter)
//  4. AdjShares to fold in fixed supply
//  5. AdjustForCalibration when calibration is enabled
//  6. SetOutput
//
// All state is held in period-indexed arrays and every operation touches a
// single period.
package subsector
