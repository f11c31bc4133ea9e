package scoring

import (
	"math"
	"strings"

	"dealscout/models"
)

// NeutralScore is returned whenever an input needed by a component is
// missing: a data-quality gap is never an error, it just stops moving
// the needle.
const NeutralScore = 50.0

// PriceVsSegment scores a price against its cohort's weighted
// distribution: cheap relative to peers scores high. An empty or fully
// decayed segment has no comparables and scores neutral.
func PriceVsSegment(price int, seg *SegmentStats) float64 {
	pct, ok := seg.Percentile(price)
	if !ok {
		return NeutralScore
	}
	return math.Round(100 - pct)
}

// MarketEvaluation maps the source's coarse price flag to a score.
// ABOVE maps to 10: listings priced over market keep a token residual
// value rather than zeroing the component.
func MarketEvaluation(eval string) float64 {
	switch strings.ToUpper(strings.TrimSpace(eval)) {
	case models.MarketEvalBelow:
		return 100
	case models.MarketEvalIn:
		return 50
	case models.MarketEvalAbove:
		return 10
	default:
		return NeutralScore
	}
}

// expectedKmPerYear is the assumed annual mileage per fuel type.
// Diesels are driven the most, city gasoline cars the least.
var expectedKmPerYear = map[string]int{
	models.FuelDiesel:       20000,
	models.FuelGasoline:     12000,
	models.FuelElectric:     15000,
	models.FuelHybrid:       15000,
	models.FuelPluginHybrid: 15000,
	models.FuelLPG:          18000,
}

// ExpectedAnnualKm returns the expected yearly mileage for a fuel type,
// defaulting to the gasoline rate for unknown fuels.
func ExpectedAnnualKm(fuelType string) int {
	if km, ok := expectedKmPerYear[fuelType]; ok {
		return km
	}
	return expectedKmPerYear[models.FuelGasoline]
}

// MileageQuality scores actual mileage against the expected total for
// the vehicle's age and fuel type. Returns the score, the expected
// total, and the actual/expected ratio; neutral with zero extras when
// year or mileage is missing.
func MileageQuality(year int, mileage *int, fuelType string, currentYear int) (float64, int, float64) {
	if year == 0 || mileage == nil {
		return NeutralScore, 0, 0
	}
	age := currentYear - year
	if age < 1 {
		age = 1
	}
	expected := age * ExpectedAnnualKm(fuelType)
	ratio := float64(*mileage) / float64(expected)
	switch {
	case ratio <= 0.4:
		return 100, expected, ratio
	case ratio <= 0.6:
		return 90, expected, ratio
	case ratio <= 0.8:
		return 80, expected, ratio
	case ratio <= 1.0:
		return 70, expected, ratio
	case ratio <= 1.2:
		return 55, expected, ratio
	case ratio <= 1.4:
		return 40, expected, ratio
	case ratio <= 1.6:
		return 25, expected, ratio
	default:
		return 10, expected, ratio
	}
}

// PricePerKm scores the asking price per driven kilometer. Returns the
// score and the ratio; neutral with a zero ratio when mileage is
// missing or zero.
func PricePerKm(price int, mileage *int) (float64, float64) {
	if mileage == nil || *mileage <= 0 {
		return NeutralScore, 0
	}
	perKm := float64(price) / float64(*mileage)
	switch {
	case perKm <= 0.05:
		return 100, perKm
	case perKm <= 0.08:
		return 90, perKm
	case perKm <= 0.12:
		return 75, perKm
	case perKm <= 0.18:
		return 60, perKm
	case perKm <= 0.25:
		return 45, perKm
	case perKm <= 0.35:
		return 30, perKm
	default:
		return 15, perKm
	}
}
