// Package types provides domain models shared across farekeeper components.
//
// Types here are plain value objects with JSON tags matching the on-disk
// policy document. Validation lives next to the types so both the fare
// engine and the policy store enforce the same numeric invariants.
package types

import (
	"fmt"
	"math"
	"time"
)

// City selects the market a policy applies to.
type City string

const (
	CityBangalore       City = "Bangalore"
	CityMysore          City = "Mysore"
	CityTumkur          City = "Tumkur"
	CityChennai         City = "Chennai"
	CityTrichy          City = "Trichy"
	CityHyderabad       City = "Hyderabad"
	CityKolkata         City = "Kolkata"
	CityTamilNaduCities City = "TamilNaduCities"
)

// VehicleClass selects the vehicle variant a policy prices.
type VehicleClass string

const (
	VehicleAutoRickshaw VehicleClass = "AUTO_RICKSHAW"
	VehicleHatchback    VehicleClass = "HATCHBACK"
	VehicleSedan        VehicleClass = "SEDAN"
	VehicleSUV          VehicleClass = "SUV"
	VehicleSUVPlus      VehicleClass = "SUV_PLUS"
)

// Zone selects the pickup area a policy applies to.
type Zone string

const (
	ZoneDefault        Zone = "default"
	ZoneAirport        Zone = "airport"
	ZoneRailwayStation Zone = "railway station"
	ZoneMetroStations  Zone = "metro stations"
	ZoneHospitals      Zone = "hospitals"
	ZoneParks          Zone = "parks"
)

var (
	knownCities = map[City]bool{
		CityBangalore: true, CityMysore: true, CityTumkur: true, CityChennai: true,
		CityTrichy: true, CityHyderabad: true, CityKolkata: true, CityTamilNaduCities: true,
	}
	knownVehicles = map[VehicleClass]bool{
		VehicleAutoRickshaw: true, VehicleHatchback: true, VehicleSedan: true,
		VehicleSUV: true, VehicleSUVPlus: true,
	}
	knownZones = map[Zone]bool{
		ZoneDefault: true, ZoneAirport: true, ZoneRailwayStation: true,
		ZoneMetroStations: true, ZoneHospitals: true, ZoneParks: true,
	}
)

// RateBreakpoint charges MarginalRatePerUnit for every unit of distance
// travelled beyond ThresholdDistance.
type RateBreakpoint struct {
	ThresholdDistance   float64 `json:"thresholdDistance"`
	MarginalRatePerUnit float64 `json:"marginalRatePerUnit"`
}

// FarePolicy is a complete segmented pricing rule.
// Breakpoints may arrive empty or unsorted; consumers must not assume order.
type FarePolicy struct {
	City                 City             `json:"city,omitempty"`
	VehicleClass         VehicleClass     `json:"vehicleClass,omitempty"`
	Zone                 Zone             `json:"zone,omitempty"`
	Description          string           `json:"description"`
	BaseDistance         float64          `json:"baseDistance"`
	BaseFare             float64          `json:"baseFare"`
	BaseMarginalRate     float64          `json:"baseMarginalRate"`
	PickupSurcharge      float64          `json:"pickupSurcharge"`
	Breakpoints          []RateBreakpoint `json:"breakpoints"`
	PeakSurchargePercent float64          `json:"peakSurchargePercent"`
}

// FlatFare is the charge applied to any trip that stays inside the base radius.
func (p FarePolicy) FlatFare() float64 {
	return p.BaseFare + p.PickupSurcharge
}

// Validate checks the numeric invariants of a policy.
// Returns an error wrapping ErrInvalidPolicy naming the first offending field.
func (p FarePolicy) Validate() error {
	fields := []struct {
		name  string
		value float64
	}{
		{"baseDistance", p.BaseDistance},
		{"baseFare", p.BaseFare},
		{"baseMarginalRate", p.BaseMarginalRate},
		{"pickupSurcharge", p.PickupSurcharge},
		{"peakSurchargePercent", p.PeakSurchargePercent},
	}
	for _, f := range fields {
		if err := checkNonNegative(f.name, f.value); err != nil {
			return err
		}
	}

	for i, bp := range p.Breakpoints {
		if err := checkNonNegative(fmt.Sprintf("breakpoints[%d].thresholdDistance", i), bp.ThresholdDistance); err != nil {
			return err
		}
		if err := checkNonNegative(fmt.Sprintf("breakpoints[%d].marginalRatePerUnit", i), bp.MarginalRatePerUnit); err != nil {
			return err
		}
	}

	if p.City != "" && !knownCities[p.City] {
		return fmt.Errorf("%w: unknown city %q", ErrInvalidPolicy, p.City)
	}
	if p.VehicleClass != "" && !knownVehicles[p.VehicleClass] {
		return fmt.Errorf("%w: unknown vehicle class %q", ErrInvalidPolicy, p.VehicleClass)
	}
	if p.Zone != "" && !knownZones[p.Zone] {
		return fmt.Errorf("%w: unknown zone %q", ErrInvalidPolicy, p.Zone)
	}
	return nil
}

func checkNonNegative(name string, v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return fmt.Errorf("%w: %s must be finite, got %v", ErrInvalidPolicy, name, v)
	}
	if v < 0 {
		return fmt.Errorf("%w: %s must be non-negative, got %v", ErrInvalidPolicy, name, v)
	}
	return nil
}

// FareSample is one derived point of a fare series. Never persisted.
type FareSample struct {
	Distance                float64 `json:"distance"`
	Fare                    float64 `json:"fare"`
	FarePerUnitDistance     float64 `json:"farePerUnitDistance"`
	PeakFare                float64 `json:"peakFare"`
	PeakFarePerUnitDistance float64 `json:"peakFarePerUnitDistance"`
}

// SavedPolicy is a named policy as held by the policy store.
type SavedPolicy struct {
	Name    string     `json:"name"`
	Policy  FarePolicy `json:"policy"`
	SavedAt time.Time  `json:"savedAt"`
}

// Validate checks that the entry is storable.
func (s SavedPolicy) Validate() error {
	if s.Name == "" {
		return fmt.Errorf("%w: policy name is required", ErrInvalidInput)
	}
	if err := s.Policy.Validate(); err != nil {
		return fmt.Errorf("%w: policy %q: %v", ErrInvalidInput, s.Name, err)
	}
	return nil
}

// PolicyCollection is the full ordered set of saved policies.
// Names are not required to be unique; lookups return the first match.
type PolicyCollection []SavedPolicy

// Find returns the first policy with the given name.
func (c PolicyCollection) Find(name string) (SavedPolicy, bool) {
	for _, p := range c {
		if p.Name == name {
			return p, true
		}
	}
	return SavedPolicy{}, false
}

// Without returns a copy of the collection with every entry named name removed.
func (c PolicyCollection) Without(name string) PolicyCollection {
	out := make(PolicyCollection, 0, len(c))
	for _, p := range c {
		if p.Name != name {
			out = append(out, p)
		}
	}
	return out
}

// Append returns a copy of the collection with p added at the end.
// The receiver is left untouched so callers can keep the committed view
// until the store confirms the write.
func (c PolicyCollection) Append(p SavedPolicy) PolicyCollection {
	out := make(PolicyCollection, len(c), len(c)+1)
	copy(out, c)
	return append(out, p)
}

// Resource limits enforced by the fare engine.
const (
	// MaxSeriesSamples caps the grid of a single series request.
	MaxSeriesSamples = 10000

	// DefaultSeriesStart is the first grid distance when none is given.
	DefaultSeriesStart = 2.0

	// DefaultSeriesStep is the grid spacing when none is given.
	DefaultSeriesStep = 1.0
)
