package scoring

import (
	"math"
	"strings"
	"time"

	"dealscout/models"
)

// Scorer evaluates listings against a fixed set of segment statistics,
// a fixed weight configuration and a single temporal baseline. Build
// one per recompute run so every listing is scored against the same
// "now"; Score is safe for concurrent use once constructed.
type Scorer struct {
	weights  models.AlgorithmWeights
	segments map[SegmentKey]*SegmentStats
	now      time.Time
	year     int
}

// NewScorer snapshots the inputs for one scoring pass.
func NewScorer(weights models.AlgorithmWeights, segments map[SegmentKey]*SegmentStats, now time.Time) *Scorer {
	return &Scorer{
		weights:  weights,
		segments: segments,
		now:      now,
		year:     now.Year(),
	}
}

// Score computes the blended deal score and its breakdown for one
// listing. History must be ordered most-recent-first. The breakdown
// carries per-component scores rounded to one decimal; the blend itself
// uses the unrounded values so rounding never compounds.
func (s *Scorer) Score(l *models.Listing, history []models.PriceHistoryRecord) (float64, models.ScoreBreakdown) {
	var seg *SegmentStats
	var segName string
	if key, ok := KeyFor(l); ok {
		if seg = s.segments[key]; seg != nil {
			segName = key.String()
		}
	}

	segScore := PriceVsSegment(l.Price, seg)
	percentile, _ := seg.Percentile(l.Price)

	evalScore := MarketEvaluation(l.MarketEvaluation)
	mileageScore, expected, ratio := MileageQuality(l.Year, l.Mileage, l.FuelType, s.year)
	perKmScore, perKm := PricePerKm(l.Price, l.Mileage)
	bonus := DropBonus(history, s.now)

	base := segScore*s.weights.PriceVsSegment +
		evalScore*s.weights.PriceEvaluation +
		mileageScore*s.weights.MileageQuality +
		perKmScore*s.weights.PricePerKm

	total := clamp(base + bonus.Bonus)

	eval := strings.ToUpper(strings.TrimSpace(l.MarketEvaluation))
	switch eval {
	case models.MarketEvalBelow, models.MarketEvalIn, models.MarketEvalAbove:
	default:
		eval = "UNKNOWN"
	}

	breakdown := models.ScoreBreakdown{
		PriceVsSegment: models.PriceVsSegmentScore{
			Score:      round1(segScore),
			Weight:     s.weights.PriceVsSegment,
			Value:      l.Price,
			Percentile: round1(percentile),
			Segment:    segName,
		},
		PriceEvaluation: models.PriceEvaluationScore{
			Score:  round1(evalScore),
			Weight: s.weights.PriceEvaluation,
			Value:  eval,
		},
		MileageQuality: models.MileageQualityScore{
			Score:    round1(mileageScore),
			Weight:   s.weights.MileageQuality,
			Value:    l.Mileage,
			Expected: expected,
			Ratio:    round2(ratio),
		},
		PricePerKm: models.PricePerKmScore{
			Score:  round1(perKmScore),
			Weight: s.weights.PricePerKm,
			Value:  round4(perKm),
		},
		PriceDropBonus: bonus,
	}

	return round1(total), breakdown
}

func clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}
