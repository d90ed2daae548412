package numbering

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAdvanceFormatsAndIncrements(t *testing.T) {
	s := Series{DocType: "INV", Prefix: "INV", NextNumber: 41, Padding: 6, Active: true}

	number, next, err := advance(s)
	require.NoError(t, err)
	require.Equal(t, "INV-000041", number)
	require.Equal(t, int64(42), next.NextNumber)

	number, _, err = advance(next)
	require.NoError(t, err)
	require.Equal(t, "INV-000042", number)
}

func TestAdvanceDefaultPadding(t *testing.T) {
	number, _, err := advance(Series{DocType: "RET", Prefix: "RET", NextNumber: 7, Active: true})
	require.NoError(t, err)
	require.Equal(t, "RET-000007", number)
}

func TestAdvanceInactiveSeries(t *testing.T) {
	_, _, err := advance(Series{DocType: "INV", Prefix: "INV", NextNumber: 1})
	require.ErrorIs(t, err, ErrNoActiveSeries)
}

func TestAdvanceExhaustedSeries(t *testing.T) {
	s := Series{DocType: "INV", Prefix: "INV", NextNumber: 100, MaxNumber: 99, Active: true}
	_, _, err := advance(s)
	require.ErrorIs(t, err, ErrSeriesExhausted)

	// The last number in range still allocates.
	s.NextNumber = 99
	number, next, err := advance(s)
	require.NoError(t, err)
	require.Equal(t, "INV-000099", number)
	_, _, err = advance(next)
	require.ErrorIs(t, err, ErrSeriesExhausted)
}
