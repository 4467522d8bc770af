package limiter

import (
	"context"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats/scalar"
	ctrl "sigs.k8s.io/controller-runtime"

	"github.com/llm-d/market-equilibrium/internal/logging"
)

// ProportionalLimiterConfig holds configuration for the ProportionalLimiter
type ProportionalLimiterConfig struct {
	LimiterConfig
}

// ProportionalLimiter freezes members that reach their capacity limit and
// spreads the freed share mass over the remaining members in proportion to
// their current shares, repeating until a pass limits no new member.
type ProportionalLimiter struct {
	config *ProportionalLimiterConfig
}

// NewProportionalLimiter creates a new ProportionalLimiter instance.
func NewProportionalLimiter(config *ProportionalLimiterConfig) (*ProportionalLimiter, error) {
	if config == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if config.MaxPasses < 0 {
		return nil, fmt.Errorf("maxPasses must be >= 0, got %d", config.MaxPasses)
	}
	if config.Tolerance == 0 {
		config.Tolerance = DefaultTolerance
	}
	return &ProportionalLimiter{
		config: config,
	}, nil
}

// Limit runs the redistribution loop. Limit status left over from an earlier
// call for the same period is cleared first.
func (l *ProportionalLimiter) Limit(ctx context.Context, members []Member, period int) (Result, error) {
	logger := ctrl.LoggerFrom(ctx)
	if len(members) == 0 {
		return Result{Feasible: true}, nil
	}

	for _, m := range members {
		m.SetCapLimitStatus(false, period)
	}

	maxPasses := l.config.MaxPasses
	if maxPasses == 0 {
		maxPasses = len(members) + 1
	}

	result := Result{}
	converged := false
	for result.Passes < maxPasses {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		result.Passes++

		capped, uncapped := SplitShares(members, period)
		if uncapped <= 0 {
			break
		}
		multiplier := math.Max(0, (1-capped)/uncapped)

		newlyLimited := 0
		for _, m := range members {
			was := m.GetCapLimitStatus(period)
			m.LimitShares(multiplier, period)
			if !was && m.GetCapLimitStatus(period) {
				newlyLimited++
			}
		}
		logger.V(logging.TRACE).Info("Capacity limit pass",
			"period", period,
			"pass", result.Passes,
			"multiplier", multiplier,
			"newlyLimited", newlyLimited)
		if newlyLimited == 0 {
			converged = true
			break
		}
	}
	if converged {
		renormalize(members, period, l.config.Tolerance)
	}

	result.CappedShare, _ = SplitShares(members, period)
	for _, m := range members {
		if m.GetCapLimitStatus(period) {
			result.Limited = append(result.Limited, m.Name())
		}
	}
	result.Feasible = scalar.EqualWithinAbs(TotalShare(members, period), 1, l.config.Tolerance)

	if len(result.Limited) > 0 {
		logger.V(logging.DEBUG).Info("Capacity limits applied",
			"period", period,
			"limited", result.Limited,
			"cappedShare", result.CappedShare,
			"passes", result.Passes,
			"feasible", result.Feasible)
	}
	return result, nil
}

// renormalize scales the members that are not limited so that all shares sum
// to 1 again. A smooth cap shrinks members still below their limit, which
// leaves the total short after the last pass.
func renormalize(members []Member, period int, tolerance float64) {
	capped, uncapped := SplitShares(members, period)
	if uncapped <= 0 || capped >= 1 {
		return
	}
	scale := (1 - capped) / uncapped
	if scalar.EqualWithinAbs(scale, 1, tolerance) {
		return
	}
	for _, m := range members {
		if !m.GetCapLimitStatus(period) {
			m.SetShare(period, m.GetShare(period)*scale)
		}
	}
}
