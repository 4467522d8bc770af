package limiter

// SplitShares returns the share mass held by limited members and by the
// remaining members.
func SplitShares(members []Member, period int) (capped, uncapped float64) {
	for _, m := range members {
		if m.GetCapLimitStatus(period) {
			capped += m.GetShare(period)
		} else {
			uncapped += m.GetShare(period)
		}
	}
	return capped, uncapped
}

// AvailableShare is the share mass not held by limited members, i.e. what
// is left to distribute among the members that can still grow. It is never
// negative.
func AvailableShare(members []Member, period int) float64 {
	capped, _ := SplitShares(members, period)
	if capped >= 1 {
		return 0
	}
	return 1 - capped
}

// TotalShare returns the sum of member shares.
func TotalShare(members []Member, period int) float64 {
	capped, uncapped := SplitShares(members, period)
	return capped + uncapped
}
