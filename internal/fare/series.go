// internal/fare/series.go
package fare

import (
	"fmt"
	"math"
	"sort"

	"github.com/solatis/farekeeper/internal/types"
)

// seriesConfig holds the grid descriptor for ComputeSeries.
type seriesConfig struct {
	start float64
	step  float64
}

// SeriesOption adjusts the sample grid of ComputeSeries.
type SeriesOption func(*seriesConfig)

// WithStart sets the first grid distance (default 2).
func WithStart(start float64) SeriesOption {
	return func(c *seriesConfig) { c.start = start }
}

// WithStep sets the grid spacing (default 1).
func WithStep(step float64) SeriesOption {
	return func(c *seriesConfig) { c.step = step }
}

// ComputeSeries samples the fare function of policy on the grid
// start, start+step, ... up to maxDistance, plus one sample at every rate
// boundary in (0, maxDistance] that is not already a grid point.
//
// Samples are rounded to cents, deduplicated by distance and sorted
// ascending. The result is a pure function of its inputs.
func ComputeSeries(policy types.FarePolicy, maxDistance float64, opts ...SeriesOption) ([]types.FareSample, error) {
	cfg := seriesConfig{start: types.DefaultSeriesStart, step: types.DefaultSeriesStep}
	for _, opt := range opts {
		opt(&cfg)
	}

	n, err := gridSize(maxDistance, cfg)
	if err != nil {
		return nil, err
	}

	ladder, err := Resolve(policy)
	if err != nil {
		return nil, err
	}
	flat := policy.FlatFare()

	byDistance := make(map[float64]types.FareSample, n+len(policy.Breakpoints)+1)
	for k := 0; k < n; k++ {
		// Multiply rather than accumulate so grid points stay exact for integral steps
		d := cfg.start + float64(k)*cfg.step
		byDistance[d] = sample(d, ladder.fare(d, flat), policy)
	}

	// Boundary samples overwrite colliding grid samples
	for _, b := range Boundaries(policy) {
		if b > maxDistance {
			break
		}
		byDistance[b] = sample(b, ladder.fare(b, flat), policy)
	}

	samples := make([]types.FareSample, 0, len(byDistance))
	for _, s := range byDistance {
		samples = append(samples, s)
	}
	sort.Slice(samples, func(i, j int) bool {
		return samples[i].Distance < samples[j].Distance
	})

	return samples, nil
}

// gridSize validates the range descriptor and returns the number of grid points.
func gridSize(maxDistance float64, cfg seriesConfig) (int, error) {
	for name, v := range map[string]float64{"maxDistance": maxDistance, "startDistance": cfg.start, "step": cfg.step} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return 0, fmt.Errorf("%w: %s must be a finite number, got %v", types.ErrInvalidInput, name, v)
		}
	}
	if cfg.start <= 0 {
		return 0, fmt.Errorf("%w: startDistance must be positive, got %v", types.ErrInvalidInput, cfg.start)
	}
	if cfg.step <= 0 {
		return 0, fmt.Errorf("%w: step must be positive, got %v", types.ErrInvalidInput, cfg.step)
	}
	if maxDistance < cfg.start {
		return 0, fmt.Errorf("%w: maxDistance %v is below startDistance %v", types.ErrInvalidInput, maxDistance, cfg.start)
	}

	span := math.Floor((maxDistance-cfg.start)/cfg.step) + 1
	if span > types.MaxSeriesSamples {
		return 0, fmt.Errorf("%w: series of %.0f samples exceeds maximum of %d", types.ErrInvalidInput, span, types.MaxSeriesSamples)
	}
	n := int(span)

	// Guard against floor rounding one step past maxDistance
	if n > 0 && cfg.start+float64(n-1)*cfg.step > maxDistance {
		n--
	}
	return n, nil
}

// sample derives the presentation figures for one distance.
// Per-unit figures divide the unrounded fare; every output is rounded once.
func sample(distance, fare float64, policy types.FarePolicy) types.FareSample {
	peak := PeakFare(fare, policy)
	return types.FareSample{
		Distance:                distance,
		Fare:                    Round2(fare),
		FarePerUnitDistance:     Round2(fare / distance),
		PeakFare:                Round2(peak),
		PeakFarePerUnitDistance: Round2(peak / distance),
	}
}
