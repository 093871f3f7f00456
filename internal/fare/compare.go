package fare

import (
	"fmt"
	"math"
	"strings"

	"github.com/solatis/farekeeper/internal/types"
)

// ComparisonRow holds the fares of two policies at one distance.
// Differences are B minus A.
type ComparisonRow struct {
	Distance              float64 `json:"distance"`
	FareA                 float64 `json:"fareA"`
	FareB                 float64 `json:"fareB"`
	Difference            float64 `json:"difference"`
	FarePerUnitA          float64 `json:"farePerUnitA"`
	FarePerUnitB          float64 `json:"farePerUnitB"`
	FarePerUnitDifference float64 `json:"farePerUnitDifference"`
}

// FieldDifference names a policy field whose value differs between two policies.
type FieldDifference struct {
	Field string `json:"field"`
	A     any    `json:"a"`
	B     any    `json:"b"`
}

// DefaultCompareDistances returns the distances 1..50 used when a caller
// supplies none.
func DefaultCompareDistances() []float64 {
	out := make([]float64, 50)
	for i := range out {
		out[i] = float64(i + 1)
	}
	return out
}

// Compare evaluates both policies at every distance.
// Distances must be positive and finite; rows keep the caller's order.
func Compare(a, b types.FarePolicy, distances []float64) ([]ComparisonRow, error) {
	ladderA, err := Resolve(a)
	if err != nil {
		return nil, fmt.Errorf("policy A: %w", err)
	}
	ladderB, err := Resolve(b)
	if err != nil {
		return nil, fmt.Errorf("policy B: %w", err)
	}

	rows := make([]ComparisonRow, 0, len(distances))
	for _, d := range distances {
		if math.IsNaN(d) || math.IsInf(d, 0) || d <= 0 {
			return nil, fmt.Errorf("%w: comparison distance must be positive and finite, got %v", types.ErrInvalidInput, d)
		}
		fareA := ladderA.fare(d, a.FlatFare())
		fareB := ladderB.fare(d, b.FlatFare())
		rows = append(rows, ComparisonRow{
			Distance:              d,
			FareA:                 Round2(fareA),
			FareB:                 Round2(fareB),
			Difference:            Round2(fareB - fareA),
			FarePerUnitA:          Round2(fareA / d),
			FarePerUnitB:          Round2(fareB / d),
			FarePerUnitDifference: Round2(fareB/d - fareA/d),
		})
	}
	return rows, nil
}

// Diff lists the scalar fields that differ between a and b, followed by a
// "breakpoints" entry when the breakpoints price distance differently.
func Diff(a, b types.FarePolicy) []FieldDifference {
	var out []FieldDifference
	add := func(field string, va, vb any) {
		if va != vb {
			out = append(out, FieldDifference{Field: field, A: va, B: vb})
		}
	}

	add("city", a.City, b.City)
	add("vehicleClass", a.VehicleClass, b.VehicleClass)
	add("zone", a.Zone, b.Zone)
	add("baseDistance", a.BaseDistance, b.BaseDistance)
	add("baseFare", a.BaseFare, b.BaseFare)
	add("baseMarginalRate", a.BaseMarginalRate, b.BaseMarginalRate)
	add("pickupSurcharge", a.PickupSurcharge, b.PickupSurcharge)
	add("peakSurchargePercent", a.PeakSurchargePercent, b.PeakSurchargePercent)

	if !sameBreakpoints(a, b) {
		out = append(out, FieldDifference{Field: "breakpoints", A: a.Breakpoints, B: b.Breakpoints})
	}
	return out
}

// sameBreakpoints compares the ladders the breakpoints alone produce, so
// ordering and same-threshold duplicates do not count as differences.
func sameBreakpoints(a, b types.FarePolicy) bool {
	la, errA := Resolve(types.FarePolicy{Breakpoints: a.Breakpoints})
	lb, errB := Resolve(types.FarePolicy{Breakpoints: b.Breakpoints})
	if errA != nil || errB != nil || len(la) != len(lb) {
		return false
	}
	for i := range la {
		if la[i] != lb[i] {
			return false
		}
	}
	return true
}

// DefaultPolicyName derives a short name such as "BAN_SED_AIR" from the
// policy's selectors. Unset selectors contribute "XXX".
func DefaultPolicyName(policy types.FarePolicy) string {
	return strings.Join([]string{
		prefix3(string(policy.City)),
		prefix3(string(policy.VehicleClass)),
		prefix3(string(policy.Zone)),
	}, "_")
}

func prefix3(s string) string {
	if s == "" {
		return "XXX"
	}
	r := []rune(s)
	if len(r) > 3 {
		r = r[:3]
	}
	return strings.ToUpper(string(r))
}
