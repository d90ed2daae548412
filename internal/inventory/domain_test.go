package inventory

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMovementDirections(t *testing.T) {
	inbound := []MovementType{MovementPurchase, MovementTransferIn, MovementReturn, MovementProductionOutput, MovementAdjustIn}
	for _, mt := range inbound {
		dir, err := mt.Direction()
		require.NoError(t, err, mt)
		require.Equal(t, DirectionIn, dir, mt)
	}

	outbound := []MovementType{MovementSale, MovementTransferOut, MovementProductionConsumption, MovementAdjustOut}
	for _, mt := range outbound {
		dir, err := mt.Direction()
		require.NoError(t, err, mt)
		require.Equal(t, DirectionOut, dir, mt)
	}

	_, err := MovementType("").Direction()
	require.ErrorIs(t, err, ErrInvalidMovementType)
	_, err = MovementType("purchase").Direction()
	require.ErrorIs(t, err, ErrInvalidMovementType)
}
