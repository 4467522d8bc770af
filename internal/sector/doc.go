// Package sector implements the market for one good in one region. A
// sector normalizes the shares of its subsectors, accounts for fixed supply,
// runs the capacity limiter over the subsectors that compete, applies
// calibration and distributes demand as output.
package sector
