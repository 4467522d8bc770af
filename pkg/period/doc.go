// Package period provides the fixed-size, time-indexed containers that every
// per-period quantity of the equilibrium engine is stored in.
//
// An Array is keyed either by model period (0 .. MaxPeriod-1) or by an
// explicit, inclusive year range. Its size never changes after construction
// and copies are always deep:
//
//	mt := period.Modeltime{StartYear: 2005, Timestep: 5, Periods: 10}
//
//	// Keyed by period index
//	share := period.MustPeriods(mt, 0.0)
//	share.Set(3, 0.25)
//
//	// Keyed by calendar year
//	emissions := period.MustYears(2005, 2050, 0.0)
//	emissions.Set(2020, 12.5)
//
//	// Lookups that may miss return an end marker instead of panicking
//	if pos := emissions.Find(2100); pos == emissions.Len() {
//	    // not covered
//	}
//
// Out-of-range access is a programming error and panics with a *RangeError.
// Builds tagged with `periodcheck` additionally verify on every access that
// floating point values are finite.
package period
