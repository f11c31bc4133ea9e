package models

// ScoreBreakdown explains a deal score: one entry per weighted component
// plus the additive price-drop bonus. Written alongside deal_score, never
// read back by the engine.
type ScoreBreakdown struct {
	PriceVsSegment  PriceVsSegmentScore  `json:"price_vs_segment"`
	PriceEvaluation PriceEvaluationScore `json:"price_evaluation"`
	MileageQuality  MileageQualityScore  `json:"mileage_quality"`
	PricePerKm      PricePerKmScore      `json:"price_per_km"`
	PriceDropBonus  PriceDropBonus       `json:"price_drop_bonus"`
}

// PriceVsSegmentScore is the weighted-percentile component. Segment is
// empty when the listing could not be placed in a cohort.
type PriceVsSegmentScore struct {
	Score      float64 `json:"score"`
	Weight     float64 `json:"weight"`
	Value      int     `json:"value"` // asking price compared
	Percentile float64 `json:"percentile"`
	Segment    string  `json:"segment,omitempty"`
}

type PriceEvaluationScore struct {
	Score  float64 `json:"score"`
	Weight float64 `json:"weight"`
	Value  string  `json:"value"` // BELOW, IN, ABOVE or UNKNOWN
}

// MileageQualityScore compares actual mileage against the fuel-type
// expectation for the vehicle's age. Expected and Ratio are zero when
// year or mileage was missing.
type MileageQualityScore struct {
	Score    float64 `json:"score"`
	Weight   float64 `json:"weight"`
	Value    *int    `json:"value"` // actual mileage, nil when unknown
	Expected int     `json:"expected,omitempty"`
	Ratio    float64 `json:"ratio,omitempty"`
}

type PricePerKmScore struct {
	Score  float64 `json:"score"`
	Weight float64 `json:"weight"`
	Value  float64 `json:"value"` // euros per km, 0 when mileage unknown
}

// PriceDropBonus is additive on top of the weighted blend, capped at +10
// points before the final clamp.
type PriceDropBonus struct {
	Score           float64 `json:"score"` // raw tier score 0-100
	Bonus           float64 `json:"bonus"` // points added to the total
	DropPercent     float64 `json:"drop_percent,omitempty"`
	DaysSinceChange int     `json:"days_since_change,omitempty"`
}
