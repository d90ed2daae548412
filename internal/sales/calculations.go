package sales

import (
	"fmt"
	"math"
)

// Totals is the computed document total breakdown.
type Totals struct {
	Subtotal       float64
	DiscountAmount float64
	TaxableBase    float64
	TaxAmount      float64
	Total          float64
}

// round2 rounds money amounts to cents.
func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// lineSubtotal applies the line discount to qty × price.
func lineSubtotal(qty, unitPrice, discountPct float64) float64 {
	return round2(qty * unitPrice * (1 - discountPct/100))
}

// computeTotals runs the document pipeline: line discounts first, then the
// global discount on the discounted subtotal, then tax on the remaining
// base. Line subtotals are written back into lines.
func computeTotals(lines []SaleLine, globalDiscountPct, taxPct float64) (Totals, error) {
	if len(lines) == 0 {
		return Totals{}, fmt.Errorf("no lines: %w", ErrInvalidLine)
	}
	if globalDiscountPct < 0 || globalDiscountPct > 100 {
		return Totals{}, fmt.Errorf("global discount %.2f%%: %w", globalDiscountPct, ErrInvalidLine)
	}
	if taxPct < 0 || taxPct > 100 {
		return Totals{}, fmt.Errorf("tax %.2f%%: %w", taxPct, ErrInvalidLine)
	}

	var totals Totals
	for i := range lines {
		line := &lines[i]
		if line.Qty <= 0 {
			return Totals{}, fmt.Errorf("product %d qty %.3f: %w", line.ProductID, line.Qty, ErrInvalidLine)
		}
		if line.UnitPrice < 0 {
			return Totals{}, fmt.Errorf("product %d price %.2f: %w", line.ProductID, line.UnitPrice, ErrInvalidLine)
		}
		if line.DiscountPct < 0 || line.DiscountPct > 100 {
			return Totals{}, fmt.Errorf("product %d discount %.2f%%: %w", line.ProductID, line.DiscountPct, ErrInvalidLine)
		}
		line.Subtotal = lineSubtotal(line.Qty, line.UnitPrice, line.DiscountPct)
		totals.Subtotal += line.Subtotal
	}
	totals.Subtotal = round2(totals.Subtotal)
	totals.DiscountAmount = round2(totals.Subtotal * globalDiscountPct / 100)
	totals.TaxableBase = round2(totals.Subtotal - totals.DiscountAmount)
	totals.TaxAmount = round2(totals.TaxableBase * taxPct / 100)
	totals.Total = round2(totals.TaxableBase + totals.TaxAmount)
	return totals, nil
}
