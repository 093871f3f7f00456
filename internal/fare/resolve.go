// internal/fare/resolve.go
package fare

import (
	"math"
	"sort"

	"github.com/solatis/farekeeper/internal/types"
)

/*
 * Rate ladder resolution.
 *
 * Turns a FarePolicy into an ascending ladder of segments, each priced at
 * one constant marginal rate. The first segment [0, baseDistance) is flat:
 * it is covered by baseFare rather than a per-unit rate.
 *
 * Resolution workflow:
 *   1. Validate numeric invariants (ErrInvalidPolicy)
 *   2. Stable-sort breakpoints by ascending threshold
 *   3. Walk breakpoints, replacing the active rate and opening a new
 *      segment at every threshold strictly beyond the previous boundary
 *   4. Close the ladder with an open-ended tail segment
 *
 * Tie-break law: breakpoints apply in ascending threshold order, equal
 * thresholds in insertion order, and every applied breakpoint replaces the
 * active rate. A threshold at or below baseDistance opens no boundary; its
 * rate only replaces the rate of the first post-base segment. Breakpoints
 * sharing a threshold collapse into one boundary priced at the last one
 * applied.
 */

// Segment is a half-open distance interval [Start, End) priced at Rate per unit.
// End is +Inf for the tail segment.
type Segment struct {
	Start float64
	End   float64
	Rate  float64
	Flat  bool // covered by the base fare, Rate is unused
}

// Ladder is an ordered, gap-free sequence of segments starting at zero.
type Ladder []Segment

// Resolve builds the rate ladder for a policy.
func Resolve(policy types.FarePolicy) (Ladder, error) {
	if err := policy.Validate(); err != nil {
		return nil, err
	}

	sorted := make([]types.RateBreakpoint, len(policy.Breakpoints))
	copy(sorted, policy.Breakpoints)

	// Stable sort: equal thresholds keep insertion order (tie-break law)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].ThresholdDistance < sorted[j].ThresholdDistance
	})

	ladder := make(Ladder, 0, len(sorted)+2)
	ladder = append(ladder, Segment{Start: 0, End: policy.BaseDistance, Flat: true})

	start := policy.BaseDistance
	rate := policy.BaseMarginalRate
	for _, bp := range sorted {
		if bp.ThresholdDistance > start {
			ladder = append(ladder, Segment{Start: start, End: bp.ThresholdDistance, Rate: rate})
			start = bp.ThresholdDistance
		}
		rate = bp.MarginalRatePerUnit
	}
	ladder = append(ladder, Segment{Start: start, End: math.Inf(1), Rate: rate})

	return ladder, nil
}

// Boundaries returns the distinct positive rate-change coordinates of the
// policy: baseDistance and every breakpoint threshold, ascending.
func Boundaries(policy types.FarePolicy) []float64 {
	seen := make(map[float64]bool, len(policy.Breakpoints)+1)
	var out []float64
	add := func(d float64) {
		if d <= 0 || seen[d] {
			return
		}
		seen[d] = true
		out = append(out, d)
	}

	add(policy.BaseDistance)
	for _, bp := range policy.Breakpoints {
		add(bp.ThresholdDistance)
	}
	sort.Float64s(out)
	return out
}
