package models

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func pendingOrder(qty int) Order {
	return Order{
		ID:        1,
		Side:      Buy,
		Price:     decimal.NewFromInt(100),
		Quantity:  qty,
		Remaining: qty,
		Status:    StatusPending,
	}
}

func TestOrder_ApplyFill(t *testing.T) {
	now := time.Now()

	t.Run("PartialFill", func(t *testing.T) {
		order := pendingOrder(100)
		if err := order.ApplyFill(40, now); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if order.Remaining != 60 || order.Executed != 40 {
			t.Errorf("remaining=%d executed=%d, want 60/40", order.Remaining, order.Executed)
		}
		if order.Status != StatusPending {
			t.Errorf("partial fill must stay PENDING, got %s", order.Status)
		}
	})

	t.Run("FullFill", func(t *testing.T) {
		order := pendingOrder(100)
		if err := order.ApplyFill(100, now); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if order.Status != StatusCompleted {
			t.Errorf("full fill must complete the order, got %s", order.Status)
		}
	})

	t.Run("FillInSteps", func(t *testing.T) {
		order := pendingOrder(100)
		for _, qty := range []int{40, 30, 30} {
			if err := order.ApplyFill(qty, now); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if order.Remaining+order.Executed != order.Quantity {
				t.Fatalf("invariant broken: remaining=%d executed=%d quantity=%d",
					order.Remaining, order.Executed, order.Quantity)
			}
		}
		if order.Status != StatusCompleted {
			t.Errorf("expected COMPLETED after final fill, got %s", order.Status)
		}
	})

	t.Run("ExceedsRemaining", func(t *testing.T) {
		order := pendingOrder(10)
		err := order.ApplyFill(11, now)
		var validationErr *ValidationError
		if !errors.As(err, &validationErr) {
			t.Fatalf("expected ValidationError, got %v", err)
		}
		if order.Remaining != 10 || order.Executed != 0 {
			t.Errorf("failed fill must not change state: remaining=%d executed=%d", order.Remaining, order.Executed)
		}
	})

	t.Run("ZeroQuantity", func(t *testing.T) {
		order := pendingOrder(10)
		if err := order.ApplyFill(0, now); err == nil {
			t.Fatal("expected error for zero fill")
		}
	})
}

func TestOrder_ModificationGuards(t *testing.T) {
	tests := []struct {
		name      string
		status    Status
		executed  int
		canModify bool
	}{
		{"PendingUnfilled", StatusPending, 0, true},
		{"PendingPartiallyFilled", StatusPending, 5, false},
		{"Completed", StatusCompleted, 10, false},
		{"Cancelled", StatusCancelled, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			order := Order{Status: tt.status, Executed: tt.executed}
			if order.CanModify() != tt.canModify {
				t.Errorf("CanModify() = %v, want %v", order.CanModify(), tt.canModify)
			}
			// Cancellation follows the same rule: any fill locks the order.
			if order.CanCancel() != tt.canModify {
				t.Errorf("CanCancel() = %v, want %v", order.CanCancel(), tt.canModify)
			}
		})
	}
}

func TestOrder_Crosses(t *testing.T) {
	buy := Order{Side: Buy, Price: decimal.NewFromInt(10)}
	tests := []struct {
		name      string
		order     Order
		counter   Order
		expectHit bool
	}{
		{"BuyAboveAsk", buy, Order{Side: Sell, Price: decimal.NewFromInt(8)}, true},
		{"BuyEqualsAsk", buy, Order{Side: Sell, Price: decimal.NewFromInt(10)}, true},
		{"BuyBelowAsk", buy, Order{Side: Sell, Price: decimal.NewFromInt(12)}, false},
		{"SellBelowBid", Order{Side: Sell, Price: decimal.NewFromInt(9)}, Order{Side: Buy, Price: decimal.NewFromInt(10)}, true},
		{"SellAboveBid", Order{Side: Sell, Price: decimal.NewFromInt(11)}, Order{Side: Buy, Price: decimal.NewFromInt(10)}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.order.Crosses(&tt.counter); got != tt.expectHit {
				t.Errorf("Crosses() = %v, want %v", got, tt.expectHit)
			}
		})
	}
}

func TestSide_Opposite(t *testing.T) {
	if Buy.Opposite() != Sell || Sell.Opposite() != Buy {
		t.Error("Opposite() must swap sides")
	}
	if Side("HOLD").Valid() {
		t.Error("unknown side must be invalid")
	}
}

func TestTradingWindow_Contains(t *testing.T) {
	window := TradingWindow{Open: 9 * 60, Close: 15*60 + 20}
	day := func(hour, minute int) time.Time {
		return time.Date(2024, 3, 15, hour, minute, 0, 0, time.UTC)
	}

	tests := []struct {
		name   string
		at     time.Time
		inside bool
	}{
		{"BeforeOpen", day(8, 59), false},
		{"AtOpen", day(9, 0), true},
		{"MidDay", day(12, 30), true},
		{"AtClose", day(15, 20), true},
		{"AfterClose", day(15, 21), false},
		{"Midnight", day(0, 0), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := window.Contains(tt.at); got != tt.inside {
				t.Errorf("Contains(%s) = %v, want %v", tt.at, got, tt.inside)
			}
		})
	}
}
