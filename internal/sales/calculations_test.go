package sales

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTotalsPipeline(t *testing.T) {
	lines := []SaleLine{{ProductID: 1, Qty: 10, UnitPrice: 100, DiscountPct: 10}}

	totals, err := computeTotals(lines, 5, 12)
	require.NoError(t, err)
	require.InDelta(t, 900.0, lines[0].Subtotal, 0.001)
	require.InDelta(t, 900.0, totals.Subtotal, 0.001)
	require.InDelta(t, 45.0, totals.DiscountAmount, 0.001)
	require.InDelta(t, 855.0, totals.TaxableBase, 0.001)
	require.InDelta(t, 102.60, totals.TaxAmount, 0.001)
	require.InDelta(t, 957.60, totals.Total, 0.001)
}

func TestTotalsMultipleLines(t *testing.T) {
	lines := []SaleLine{
		{ProductID: 1, Qty: 2, UnitPrice: 19.99},
		{ProductID: 2, Qty: 1, UnitPrice: 45.50, DiscountPct: 20},
	}
	totals, err := computeTotals(lines, 0, 18)
	require.NoError(t, err)
	require.InDelta(t, 39.98, lines[0].Subtotal, 0.001)
	require.InDelta(t, 36.40, lines[1].Subtotal, 0.001)
	require.InDelta(t, 76.38, totals.Subtotal, 0.001)
	require.InDelta(t, 0.0, totals.DiscountAmount, 0.001)
	require.InDelta(t, 13.75, totals.TaxAmount, 0.005)
	require.InDelta(t, 90.13, totals.Total, 0.005)
}

func TestTotalsRejectInvalidInput(t *testing.T) {
	_, err := computeTotals(nil, 0, 0)
	require.ErrorIs(t, err, ErrInvalidLine)

	_, err = computeTotals([]SaleLine{{ProductID: 1, Qty: 0, UnitPrice: 10}}, 0, 0)
	require.ErrorIs(t, err, ErrInvalidLine)

	_, err = computeTotals([]SaleLine{{ProductID: 1, Qty: 1, UnitPrice: -1}}, 0, 0)
	require.ErrorIs(t, err, ErrInvalidLine)

	_, err = computeTotals([]SaleLine{{ProductID: 1, Qty: 1, UnitPrice: 10, DiscountPct: 120}}, 0, 0)
	require.ErrorIs(t, err, ErrInvalidLine)

	_, err = computeTotals([]SaleLine{{ProductID: 1, Qty: 1, UnitPrice: 10}}, 101, 0)
	require.ErrorIs(t, err, ErrInvalidLine)

	_, err = computeTotals([]SaleLine{{ProductID: 1, Qty: 1, UnitPrice: 10}}, 0, -3)
	require.ErrorIs(t, err, ErrInvalidLine)
}

func TestTotalsFullDiscount(t *testing.T) {
	lines := []SaleLine{{ProductID: 1, Qty: 3, UnitPrice: 50, DiscountPct: 100}}
	totals, err := computeTotals(lines, 0, 12)
	require.NoError(t, err)
	require.InDelta(t, 0.0, totals.Total, 0.001)
}
