package matching

import (
	"sort"

	"github.com/oceanline/broker/engine/domain"
)

// capacityModifier scores how well a cargo's quantity range fits a ship's
// capacity. Unspecified cargo quantity is a small penalty, not a hard
// filter failure, since the hard filter already dropped anything outside
// the ±20% band.
func capacityModifier(ship domain.Ship, cargo domain.Cargo) float64 {
	if ship.CapacityInt == nil {
		return 0
	}
	if cargo.QuantityMinInt == nil || cargo.QuantityMaxInt == nil {
		return -2
	}

	capacity := float64(*ship.CapacityInt)
	qMin := float64(*cargo.QuantityMinInt)
	qMax := float64(*cargo.QuantityMaxInt)

	if capacity < qMin*0.90 {
		return -5
	}

	result := 0.0
	if capacity > qMin {
		result += 1
	}
	if capacity > qMax*0.85 {
		result += 2
	}
	if capacity >= qMax*0.95 && capacity <= qMax*1.10 {
		result += 4
	}
	if capacity > qMax*1.5 {
		result -= 2
	}
	if capacity > qMax*2 {
		result -= 5
	}
	return result
}

// monthModifier scores laycan proximity between ship and cargo.
func monthModifier(ship domain.Ship, cargo domain.Cargo) float64 {
	if ship.MonthInt == nil {
		return 0
	}
	if cargo.MonthInt == nil {
		return -2
	}

	diff := *ship.MonthInt - *cargo.MonthInt
	if diff < 0 {
		diff = -diff
	}
	switch diff {
	case 0:
		return 3
	case 1:
		return 0
	default:
		return -5
	}
}

// commissionModifier scores the broker fee: the tighter the better, with a
// cliff above 5% since the hard filter already excludes those.
func commissionModifier(cargo domain.Cargo) float64 {
	c := cargo.CommissionFloat
	switch {
	case c == 0:
		return 0
	case c <= 1.25:
		return 6
	case c <= 2.5:
		return 3
	case c <= 3.75:
		return 1
	case c <= 4:
		return 0
	case c <= 5:
		return -1
	default:
		return -6
	}
}

// timestampCreatedModifier rewards fresh cargoes relative to when the ship
// was first seen.
func timestampCreatedModifier(ship domain.Ship, cargo domain.Cargo) float64 {
	days := ship.TimestampCreated.Sub(cargo.TimestampCreated).Hours() / 24
	switch {
	case days <= 3:
		return 5
	case days <= 7:
		return 2
	case days <= 14:
		return 0
	case days <= 30:
		return -2
	default:
		return -5
	}
}

// score sums every signal for one (ship, cargo) pair.
func score(ship domain.Ship, cargo domain.Cargo) float64 {
	return capacityModifier(ship, cargo) +
		monthModifier(ship, cargo) +
		commissionModifier(cargo) +
		timestampCreatedModifier(ship, cargo)
}

// minMaxScaleRobust rescales raw scores into [minVal, maxVal] using the
// median and interquartile range rather than the min/max, so a single
// outlier score doesn't compress the rest of the distribution.
func minMaxScaleRobust(data []float64, minVal, maxVal float64) []float64 {
	out := make([]float64, len(data))
	if len(data) == 0 {
		return out
	}
	if len(data) == 1 {
		out[0] = (minVal + maxVal) / 2
		return out
	}

	median := percentile(data, 50)
	q25 := percentile(data, 25)
	q75 := percentile(data, 75)
	iqr := q75 - q25
	if iqr == 0 {
		iqr = 1
	}

	for i, v := range data {
		scaled := (v - median) / iqr
		if scaled > 1 {
			scaled = 1
		}
		if scaled < -1 {
			scaled = -1
		}
		out[i] = 0.5*(scaled+1)*(maxVal-minVal) + minVal
	}
	return out
}

// percentile computes the linear-interpolation percentile p (0-100) of
// data without mutating the caller's slice.
func percentile(data []float64, p float64) float64 {
	sorted := append([]float64(nil), data...)
	sort.Float64s(sorted)

	if len(sorted) == 1 {
		return sorted[0]
	}
	rank := p / 100 * float64(len(sorted)-1)
	lo := int(rank)
	hi := lo + 1
	if hi >= len(sorted) {
		return sorted[lo]
	}
	frac := rank - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}
