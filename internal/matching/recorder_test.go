package matching

import (
	"context"
	"testing"
	"time"

	"stockexchange/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorder_Record(t *testing.T) {
	now := time.Now()
	buy := order(1, models.Buy, "10", 50, now)
	sell := order(2, models.Sell, "10", 30, now)
	otherInstrument := order(3, models.Sell, "10", 30, now)
	otherInstrument.InstrumentID = 2

	tests := []struct {
		name      string
		buyOrder  *models.Order
		sellOrder *models.Order
		qty       int
		price     string
		expectErr bool
	}{
		{
			name:      "Success",
			buyOrder:  &buy,
			sellOrder: &sell,
			qty:       30,
			price:     "10",
		},
		{
			name:      "MissingBuyOrder",
			buyOrder:  nil,
			sellOrder: &sell,
			qty:       10,
			price:     "10",
			expectErr: true,
		},
		{
			name:      "DifferentInstruments",
			buyOrder:  &buy,
			sellOrder: &otherInstrument,
			qty:       10,
			price:     "10",
			expectErr: true,
		},
		{
			name:      "ZeroQuantity",
			buyOrder:  &buy,
			sellOrder: &sell,
			qty:       0,
			price:     "10",
			expectErr: true,
		},
		{
			name:      "QuantityExceedsSellRemaining",
			buyOrder:  &buy,
			sellOrder: &sell,
			qty:       40,
			price:     "10",
			expectErr: true,
		},
		{
			name:      "NonPositivePrice",
			buyOrder:  &buy,
			sellOrder: &sell,
			qty:       10,
			price:     "0",
			expectErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newFakeStore()
			recorder := NewRecorder(store)

			execution, err := recorder.Record(context.Background(), tt.buyOrder, tt.sellOrder,
				tt.qty, decimal.RequireFromString(tt.price))

			if tt.expectErr {
				require.Error(t, err)
				var validationErr *models.ValidationError
				assert.ErrorAs(t, err, &validationErr)
				assert.Empty(t, store.executions, "failed validation must not persist anything")
				return
			}

			require.NoError(t, err)
			assert.NotZero(t, execution.ID)
			assert.Equal(t, buy.ID, execution.BuyOrderID)
			assert.Equal(t, sell.ID, execution.SellOrderID)
			assert.Equal(t, tt.qty, execution.Quantity)
			assert.True(t, execution.Price.Equal(decimal.RequireFromString(tt.price)))
			// Recording never touches order state.
			assert.Equal(t, 0, buy.Executed)
			assert.Equal(t, 0, sell.Executed)
		})
	}
}
