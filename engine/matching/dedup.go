package matching

import (
	"fmt"

	"github.com/oceanline/broker/engine/domain"
)

// dedupKey identifies cargoes that are effectively the same fixture
// re-extracted from different emails (or re-sent by the provider): same
// name, quantity range, month, and commission.
func dedupKey(c domain.Cargo) string {
	minVal, maxVal, monthVal := -1, -1, -1
	if c.QuantityMinInt != nil {
		minVal = *c.QuantityMinInt
	}
	if c.QuantityMaxInt != nil {
		maxVal = *c.QuantityMaxInt
	}
	if c.MonthInt != nil {
		monthVal = *c.MonthInt
	}
	return fmt.Sprintf("%s|%d|%d|%d|%.4f", c.Name, minVal, maxVal, monthVal, c.CommissionFloat)
}

// dedupCargoes keeps the first occurrence of each distinct fixture,
// preserving the candidate list's order (nearest-first, since it comes
// straight out of the $near geospatial query).
func dedupCargoes(cargoes []domain.Cargo) []domain.Cargo {
	seen := make(map[string]struct{}, len(cargoes))
	out := make([]domain.Cargo, 0, len(cargoes))
	for _, c := range cargoes {
		key := dedupKey(c)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, c)
	}
	return out
}
