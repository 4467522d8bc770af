package limiter

import (
	"context"
	"fmt"
)

// Member is one sibling of a set whose shares must sum to 1 while each stays
// within its capacity limit.
type Member interface {
	Name() string
	GetShare(period int) float64
	GetCapLimitStatus(period int) bool
	SetCapLimitStatus(limited bool, period int)
	SetShare(period int, share float64)
	// LimitShares multiplies the share by multiplier unless the member is
	// already limited, freezing it at its cap value when the limit is reached.
	LimitShares(multiplier float64, period int)
}

// Result summarizes one limiting run over a sibling set.
type Result struct {
	// Passes is the number of redistribution passes performed.
	Passes int
	// CappedShare is the share mass held by limited members.
	CappedShare float64
	// Limited lists the names of limited members in member order.
	Limited []string
	// Feasible is false when the limits cannot absorb the whole share mass,
	// i.e. the shares do not sum to 1 after limiting.
	Feasible bool
}

// Limiter redistributes share mass among siblings subject to capacity limits
type Limiter interface {
	// Limit updates the shares of members for period in place
	Limit(ctx context.Context, members []Member, period int) (Result, error)
}

// LimiterStrategy is an enumeration of the different strategies that can be used by the Limiter
type LimiterStrategy int

// enumeration of LimiterStrategy
const (
	ProportionalStrategy LimiterStrategy = iota
)

// LimiterConfig holds settings common to all limiters
type LimiterConfig struct {
	// MaxPasses bounds the number of redistribution passes. Zero means one
	// more pass than there are members, which is always enough.
	MaxPasses int
	// Tolerance is the absolute tolerance of the shares-sum-to-one check.
	Tolerance float64
}

// DefaultTolerance is used when LimiterConfig.Tolerance is zero.
const DefaultTolerance = 1e-9

// NewLimiter is a factory that creates a new Limiter based on the provided strategy
func NewLimiter(strategy LimiterStrategy) (Limiter, error) {
	switch strategy {
	case ProportionalStrategy:
		return NewProportionalLimiter(&ProportionalLimiterConfig{})
	default:
		return nil, fmt.Errorf("unsupported limiter strategy: %v", strategy)
	}
}
