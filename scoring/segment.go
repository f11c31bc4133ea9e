package scoring

import (
	"fmt"
	"sort"
	"time"

	"dealscout/models"
)

// MaxHistoryDays bounds the historical window: listings last seen more
// than this many days ago contribute nothing to segment statistics.
const MaxHistoryDays = 90

// SegmentKey identifies a comparability cohort: same make, model, fuel
// type and 3-year manufacture band. Exact equality only, no fuzzy match.
type SegmentKey struct {
	Make     string
	Model    string
	FuelType string
	YearBand int
}

func (k SegmentKey) String() string {
	return fmt.Sprintf("%s|%s|%s|%d", k.Make, k.Model, k.FuelType, k.YearBand)
}

// YearBand maps a manufacture year to the start of its 3-year band.
func YearBand(year int) int {
	return (year / 3) * 3
}

// KeyFor returns the segment key for a listing. The second return is
// false when make, model, fuel type or year is missing; such listings
// are not comparable to anything and score neutral on price-vs-segment.
func KeyFor(l *models.Listing) (SegmentKey, bool) {
	if l.Make == "" || l.Model == "" || l.FuelType == "" || l.Year == 0 {
		return SegmentKey{}, false
	}
	return SegmentKey{
		Make:     l.Make,
		Model:    l.Model,
		FuelType: l.FuelType,
		YearBand: YearBand(l.Year),
	}, true
}

type weightedPrice struct {
	price  int
	weight float64
}

// SegmentStats is the weighted price multiset of one cohort, ordered
// ascending by price once built.
type SegmentStats struct {
	prices      []weightedPrice
	totalWeight float64
}

// TotalWeight returns the summed contribution weight of the segment.
func (s *SegmentStats) TotalWeight() float64 {
	if s == nil {
		return 0
	}
	return s.totalWeight
}

// Size returns the number of contributing listings.
func (s *SegmentStats) Size() int {
	if s == nil {
		return 0
	}
	return len(s.prices)
}

// Percentile returns the weighted percentile of a price within the
// segment: the share of total weight priced strictly below, plus half
// the weight priced exactly equal. The half-weight tie rule keeps a
// listing neutral against duplicates and against its own contribution.
// Returns false when the segment carries no weight.
func (s *SegmentStats) Percentile(price int) (float64, bool) {
	if s == nil || s.totalWeight == 0 {
		return 0, false
	}
	var below, equal float64
	for _, wp := range s.prices {
		if wp.price < price {
			below += wp.weight
		} else if wp.price == price {
			equal += wp.weight
		} else {
			break
		}
	}
	return (below + equal/2) / s.totalWeight * 100, true
}

// DecayWeight returns a listing's contribution weight to its segment.
// Active listings count fully; inactive ones decay with days since last
// observation and drop out past MaxHistoryDays. A future last-seen
// timestamp (clock skew) counts as full weight.
func DecayWeight(l *models.Listing, now time.Time) float64 {
	if l.IsActive {
		return 1.0
	}
	if l.LastSeenAt == nil {
		return 0
	}
	days := now.Sub(*l.LastSeenAt).Hours() / 24
	switch {
	case days < 0:
		return 1.0
	case days <= 30:
		return 1.0
	case days <= 60:
		return 0.75
	case days <= 90:
		return 0.5
	default:
		return 0
	}
}

// BuildSegments groups the historical window of listings into cohorts
// and accumulates each cohort's time-decay-weighted price multiset. The
// result is read-only once returned; build it fully before scoring.
func BuildSegments(listings []models.Listing, now time.Time) map[SegmentKey]*SegmentStats {
	segments := make(map[SegmentKey]*SegmentStats)
	for i := range listings {
		l := &listings[i]
		key, ok := KeyFor(l)
		if !ok {
			continue
		}
		weight := DecayWeight(l, now)
		if weight <= 0 {
			continue
		}
		seg := segments[key]
		if seg == nil {
			seg = &SegmentStats{}
			segments[key] = seg
		}
		seg.prices = append(seg.prices, weightedPrice{price: l.Price, weight: weight})
		seg.totalWeight += weight
	}
	for _, seg := range segments {
		sort.Slice(seg.prices, func(i, j int) bool {
			return seg.prices[i].price < seg.prices[j].price
		})
	}
	return segments
}
