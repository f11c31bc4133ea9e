package scoring

import (
	"time"

	"dealscout/models"
)

const (
	// MaxBonusPoints caps the additive price-drop adjustment.
	MaxBonusPoints = 10.0

	// defaultDaysSinceChange stands in when a history record carries no
	// timestamp: old enough to land in the low tiers.
	defaultDaysSinceChange = 30
)

// DropBonus rewards a recent, sizeable price reduction. History must be
// ordered most-recent-first; fewer than two records means no observed
// change and no bonus. The tier score (0-100) is converted to at most
// MaxBonusPoints additive points, applied after component weighting.
func DropBonus(history []models.PriceHistoryRecord, now time.Time) models.PriceDropBonus {
	if len(history) < 2 {
		return models.PriceDropBonus{}
	}
	current := history[0].Price
	previous := history[1].Price
	if previous <= 0 {
		return models.PriceDropBonus{}
	}

	changePct := float64(current-previous) / float64(previous) * 100
	if changePct >= 0 {
		// No drop, or a price increase.
		return models.PriceDropBonus{}
	}
	dropPct := -changePct

	days := defaultDaysSinceChange
	if !history[0].RecordedAt.IsZero() {
		// A future timestamp yields negative days and lands in the most
		// recent tiers, mirroring the decay-weight treatment of skew.
		days = int(now.Sub(history[0].RecordedAt).Hours() / 24)
	}

	var score float64
	switch {
	case dropPct >= 20 && days <= 7:
		score = 100
	case dropPct >= 10 && days <= 14:
		score = 80
	case dropPct >= 5 && days <= 30:
		score = 60
	case days <= 30:
		score = 40
	}

	return models.PriceDropBonus{
		Score:           score,
		Bonus:           score / 100 * MaxBonusPoints,
		DropPercent:     round1(dropPct),
		DaysSinceChange: days,
	}
}
