// internal/fare/engine.go
package fare

import (
	"fmt"
	"math"

	"github.com/solatis/farekeeper/internal/types"
)

/*
 * Fare evaluation.
 *
 * ComputeFare walks the resolved ladder from baseDistance forward and
 * accumulates (min(distance, end) - start) * rate per covered segment.
 * Trips at or inside the base radius, including non-positive distances,
 * pay the flat fare (baseFare + pickupSurcharge).
 *
 * Accumulation is unrounded. Rounding to cents happens only when samples
 * are produced for presentation (series.go, compare.go), so rounding error
 * never compounds across segments.
 *
 * The engine holds no state; every function is safe for concurrent use.
 */

// Engine is the dependency-injection handle for services that compute fares.
// Stateless; the zero value is ready to use.
type Engine struct{}

// NewEngine creates a new fare engine instance.
func NewEngine() *Engine {
	return &Engine{}
}

// Fare computes the unrounded fare for a trip of the given distance.
func (e *Engine) Fare(distance float64, policy types.FarePolicy) (float64, error) {
	return ComputeFare(distance, policy)
}

// Series computes the rounded fare series for a policy.
func (e *Engine) Series(policy types.FarePolicy, maxDistance float64, opts ...SeriesOption) ([]types.FareSample, error) {
	return ComputeSeries(policy, maxDistance, opts...)
}

// Compare tabulates two policies side by side.
func (e *Engine) Compare(a, b types.FarePolicy, distances []float64) ([]ComparisonRow, error) {
	return Compare(a, b, distances)
}

// ComputeFare returns the total fare for distance under policy.
func ComputeFare(distance float64, policy types.FarePolicy) (float64, error) {
	if math.IsNaN(distance) || math.IsInf(distance, 0) {
		return 0, fmt.Errorf("%w: distance must be a finite number, got %v", types.ErrInvalidInput, distance)
	}

	ladder, err := Resolve(policy)
	if err != nil {
		return 0, err
	}

	return ladder.fare(distance, policy.FlatFare()), nil
}

// fare evaluates a resolved ladder. Split from ComputeFare so series
// generation resolves the policy once.
func (l Ladder) fare(distance, flat float64) float64 {
	total := flat
	for _, seg := range l {
		if seg.Flat {
			continue
		}
		if distance <= seg.Start {
			break
		}
		end := math.Min(distance, seg.End)
		total += (end - seg.Start) * seg.Rate
	}
	return total
}

// PeakFare applies the policy's peak surcharge to an already computed fare.
func PeakFare(fare float64, policy types.FarePolicy) float64 {
	return fare * (1 + policy.PeakSurchargePercent/100)
}

// Round2 rounds a money figure to two decimal places.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}
