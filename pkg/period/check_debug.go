//go:build periodcheck

package period

// checkValues gates the per-access finiteness check. Enabled with
// `go test -tags periodcheck`.
const checkValues = true
