//go:build !periodcheck

package period

// checkValues gates the per-access finiteness check. Release builds only
// bounds-check.
const checkValues = false
