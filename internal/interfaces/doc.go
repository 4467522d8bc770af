// Package interfaces holds the contracts and error types shared by the
// market packages: technologies, price sources, the run context passed into
// every calc pass and the unit identity type.
//
// # Errors
//
//   - ConfigurationError: malformed input, reported by CompleteInit
//   - NumericDivergenceError: non-finite or negative share, price or scale;
//     aborts the calc pass that produced it
//   - CalibrationUnattainableError: recorded per unit and period, never
//     returned from a calc pass
//
// Index errors on period arrays are panics (see pkg/period).
package interfaces
