package fare

import (
	"errors"
	"math"
	"reflect"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/solatis/farekeeper/internal/types"
)

func distancesOf(samples []types.FareSample) []float64 {
	out := make([]float64, len(samples))
	for i, s := range samples {
		out[i] = s.Distance
	}
	return out
}

func TestComputeSeries_DefaultGrid(t *testing.T) {
	samples, err := ComputeSeries(referencePolicy(), 10)
	if err != nil {
		t.Fatalf("ComputeSeries() error = %v", err)
	}

	want := []float64{2, 3, 4, 5, 6, 7, 8, 9, 10}
	if got := distancesOf(samples); !reflect.DeepEqual(got, want) {
		t.Fatalf("distances = %v, want %v", got, want)
	}

	last := samples[len(samples)-1]
	wantLast := types.FareSample{
		Distance:                10,
		Fare:                    244,
		FarePerUnitDistance:     24.4,
		PeakFare:                268.4,
		PeakFarePerUnitDistance: 26.84,
	}
	if last != wantLast {
		t.Errorf("sample at 10 = %+v, want %+v", last, wantLast)
	}
}

func TestComputeSeries_BoundaryPoints(t *testing.T) {
	policy := referencePolicy(
		types.RateBreakpoint{ThresholdDistance: 6.5, MarginalRatePerUnit: 17},
		types.RateBreakpoint{ThresholdDistance: 12, MarginalRatePerUnit: 15},
		types.RateBreakpoint{ThresholdDistance: 6.5, MarginalRatePerUnit: 16},
	)
	policy.BaseDistance = 1.5

	samples, err := ComputeSeries(policy, 10)
	if err != nil {
		t.Fatalf("ComputeSeries() error = %v", err)
	}

	// 1.5 lies below the grid start but inside (0, max]; 12 lies beyond max
	want := []float64{1.5, 2, 3, 4, 5, 6, 6.5, 7, 8, 9, 10}
	if got := distancesOf(samples); !reflect.DeepEqual(got, want) {
		t.Errorf("distances = %v, want %v", got, want)
	}
}

func TestComputeSeries_CustomGrid(t *testing.T) {
	samples, err := ComputeSeries(referencePolicy(), 9, WithStart(1), WithStep(2.5))
	if err != nil {
		t.Fatalf("ComputeSeries() error = %v", err)
	}

	want := []float64{1, 3.5, 4, 6, 8.5}
	if got := distancesOf(samples); !reflect.DeepEqual(got, want) {
		t.Errorf("distances = %v, want %v", got, want)
	}
}

func TestComputeSeries_SinglePoint(t *testing.T) {
	samples, err := ComputeSeries(referencePolicy(), 2)
	if err != nil {
		t.Fatalf("ComputeSeries() error = %v", err)
	}
	if len(samples) != 1 || samples[0].Distance != 2 || samples[0].Fare != 130 {
		t.Errorf("ComputeSeries() = %+v, want single flat sample at 2", samples)
	}
	if samples[0].FarePerUnitDistance != 65 {
		t.Errorf("FarePerUnitDistance = %v, want 65", samples[0].FarePerUnitDistance)
	}
}

func TestComputeSeries_Restartable(t *testing.T) {
	policy := referencePolicy(types.RateBreakpoint{ThresholdDistance: 10.25, MarginalRatePerUnit: 17})

	first, err := ComputeSeries(policy, 30)
	if err != nil {
		t.Fatalf("ComputeSeries() error = %v", err)
	}
	second, err := ComputeSeries(policy, 30)
	if err != nil {
		t.Fatalf("ComputeSeries() error = %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Error("ComputeSeries() is not deterministic across calls")
	}
}

func TestComputeSeries_Errors(t *testing.T) {
	tests := []struct {
		name    string
		policy  types.FarePolicy
		maxDist float64
		opts    []SeriesOption
		wantErr error
	}{
		{"zero start", referencePolicy(), 10, []SeriesOption{WithStart(0)}, types.ErrInvalidInput},
		{"negative start", referencePolicy(), 10, []SeriesOption{WithStart(-1)}, types.ErrInvalidInput},
		{"max below start", referencePolicy(), 1, nil, types.ErrInvalidInput},
		{"zero step", referencePolicy(), 10, []SeriesOption{WithStep(0)}, types.ErrInvalidInput},
		{"NaN max", referencePolicy(), math.NaN(), nil, types.ErrInvalidInput},
		{"infinite max", referencePolicy(), math.Inf(1), nil, types.ErrInvalidInput},
		{"too many samples", referencePolicy(), 1e6, nil, types.ErrInvalidInput},
		{"invalid policy", types.FarePolicy{PickupSurcharge: -5}, 10, nil, types.ErrInvalidPolicy},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ComputeSeries(tt.policy, tt.maxDist, tt.opts...)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("ComputeSeries() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

// Property-based test: every sample agrees with ComputeFare
func TestComputeSeries_PropertyFareConsistency(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("sample.fare == round2(ComputeFare(sample.distance))", prop.ForAll(
		func(policy types.FarePolicy, maxDist int) bool {
			samples, err := ComputeSeries(policy, float64(maxDist))
			if err != nil {
				return false
			}
			for i, s := range samples {
				fare, err := ComputeFare(s.Distance, policy)
				if err != nil || s.Fare != Round2(fare) {
					return false
				}
				if i > 0 && samples[i-1].Distance >= s.Distance {
					return false
				}
			}
			return true
		},
		genPolicy(),
		gen.IntRange(2, 100),
	))

	properties.TestingRun(t)
}
