package scan

import (
	"math"

	"github.com/shopspring/decimal"

	"snapscan/internal"
)

const weightPlaces = 3

// Compute derives list totals from the per-line counters. Weight accrues
// only for scanned units. Returns have no partial state, so every return
// line counts as processed in full.
func Compute(items []internal.LineItem, ctx internal.ListContext) internal.Summary {
	var s internal.Summary
	totalWeight := decimal.Zero
	processedWeight := decimal.Zero

	for _, it := range items {
		processed := it.ScannedCount
		if ctx == internal.ContextReturn {
			processed = it.Quantity
		}
		if processed < 0 {
			processed = 0
		}

		s.TotalItems++
		if processed >= it.Quantity {
			s.ProcessedItems++
		}
		s.TotalQuantity += it.Quantity
		s.ProcessedQuantity += processed

		w := decimal.NewFromFloat(it.Weight)
		totalWeight = totalWeight.Add(w.Mul(decimal.NewFromInt(int64(it.Quantity))))
		processedWeight = processedWeight.Add(w.Mul(decimal.NewFromInt(int64(processed))))
	}

	s.TotalWeight = totalWeight.Round(weightPlaces).InexactFloat64()
	s.ProcessedWeight = processedWeight.Round(weightPlaces).InexactFloat64()
	s.Percentage = percentage(s.ProcessedQuantity, s.TotalQuantity)
	return s
}

func percentage(processed, total int) int {
	if total <= 0 {
		return 0
	}
	p := int(math.Round(100 * float64(processed) / float64(total)))
	switch {
	case p < 0:
		return 0
	case p > 100:
		return 100
	}
	return p
}
