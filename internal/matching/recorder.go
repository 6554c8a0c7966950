package matching

import (
	"context"

	"stockexchange/internal/models"

	"github.com/shopspring/decimal"
)

// Recorder creates immutable execution records. It validates the pair
// and persists the record but never mutates order state; applying
// fills is the engine's job.
type Recorder struct {
	store Store
}

func NewRecorder(store Store) *Recorder {
	return &Recorder{store: store}
}

// Record validates and persists one execution between buyOrder and
// sellOrder for qty shares at price.
func (r *Recorder) Record(ctx context.Context, buyOrder, sellOrder *models.Order, qty int, price decimal.Decimal) (*models.Execution, error) {
	if buyOrder == nil || sellOrder == nil {
		return nil, &models.ValidationError{Reason: "both buy and sell orders are required"}
	}
	if buyOrder.InstrumentID != sellOrder.InstrumentID {
		return nil, &models.ValidationError{Reason: "orders on different instruments cannot be matched"}
	}
	if qty < 1 {
		return nil, &models.ValidationError{Reason: "execution quantity must be at least 1"}
	}
	if qty > buyOrder.Remaining || qty > sellOrder.Remaining {
		return nil, &models.ValidationError{Reason: "execution quantity exceeds an order's remaining quantity"}
	}
	if !price.IsPositive() {
		return nil, &models.ValidationError{Reason: "execution price must be positive"}
	}

	execution := &models.Execution{
		InstrumentID: buyOrder.InstrumentID,
		BuyOrderID:   buyOrder.ID,
		SellOrderID:  sellOrder.ID,
		Quantity:     qty,
		Price:        price,
	}
	return r.store.CreateExecution(ctx, execution)
}
