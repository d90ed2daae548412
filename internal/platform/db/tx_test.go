package db

import (
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/require"
)

// Lock waiters under repeatable read abort with a serialization failure
// when the lock holder commits, so concurrent postings against the same
// balance row would surface 40001 instead of InsufficientStock.
func TestTxOptionsStayReadCommitted(t *testing.T) {
	require.Equal(t, pgx.ReadCommitted, txOptions.IsoLevel)
}
