package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Side is the direction of an order.
type Side string

const (
	Buy  Side = "BUY"
	Sell Side = "SELL"
)

// Opposite returns the counter side used when searching for matches.
func (s Side) Opposite() Side {
	if s == Buy {
		return Sell
	}
	return Buy
}

// Valid reports whether s is one of the two known sides.
func (s Side) Valid() bool {
	return s == Buy || s == Sell
}

// Status is the lifecycle state of an order. PENDING is the initial
// state; COMPLETED and CANCELLED are terminal.
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusCompleted Status = "COMPLETED"
	StatusCancelled Status = "CANCELLED"
)

// User represents a registered trader.
type User struct {
	ID           int64
	Username     string
	PasswordHash string
	CreatedAt    time.Time
}

// Instrument is a listed security that orders reference.
type Instrument struct {
	ID        int64     `json:"id"`
	Symbol    string    `json:"symbol"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// Order represents a resting limit order. Remaining+Executed always
// equals Quantity.
type Order struct {
	ID           int64           `json:"id"`
	UserID       int64           `json:"user_id"`
	InstrumentID int64           `json:"instrument_id"`
	Side         Side            `json:"side"`
	Price        decimal.Decimal `json:"price"`
	Quantity     int             `json:"quantity"`
	Remaining    int             `json:"remaining"`
	Executed     int             `json:"executed"`
	Status       Status          `json:"status"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// Executable reports whether the order can still participate in a
// match: it must be pending with quantity left to fill.
func (o *Order) Executable() bool {
	return o.Status == StatusPending && o.Remaining > 0
}

// CanModify reports whether the owner may still edit the order. Any
// executed quantity locks the order.
func (o *Order) CanModify() bool {
	return o.Status == StatusPending && o.Executed == 0
}

// CanCancel reports whether the owner may still cancel the order.
func (o *Order) CanCancel() bool {
	return o.Status == StatusPending && o.Executed == 0
}

// ApplyFill moves qty from remaining to executed and completes the
// order once nothing remains. Only the matching engine calls this.
func (o *Order) ApplyFill(qty int, now time.Time) error {
	if qty < 1 {
		return &ValidationError{Reason: "fill quantity must be at least 1"}
	}
	if qty > o.Remaining {
		return &ValidationError{Reason: "fill quantity exceeds remaining quantity"}
	}
	o.Executed += qty
	o.Remaining -= qty
	if o.Remaining == 0 {
		o.Status = StatusCompleted
	}
	o.UpdatedAt = now
	return nil
}

// Crosses reports whether the order's limit price allows a trade
// against the counter order: buy price >= sell price.
func (o *Order) Crosses(counter *Order) bool {
	if o.Side == Buy {
		return counter.Price.LessThanOrEqual(o.Price)
	}
	return counter.Price.GreaterThanOrEqual(o.Price)
}

// Execution is an immutable trade record linking a buy and a sell
// order on the same instrument.
type Execution struct {
	ID           int64           `json:"id"`
	InstrumentID int64           `json:"instrument_id"`
	BuyOrderID   int64           `json:"buy_order_id"`
	SellOrderID  int64           `json:"sell_order_id"`
	Quantity     int             `json:"quantity"`
	Price        decimal.Decimal `json:"price"`
	CreatedAt    time.Time       `json:"created_at"`
}

// TradingWindow is the daily interval, in venue-local minutes from
// midnight, during which orders may be created and matched. Both ends
// are inclusive.
type TradingWindow struct {
	Open  int
	Close int
}

// Contains reports whether t (already in venue time) falls inside the
// window.
func (w TradingWindow) Contains(t time.Time) bool {
	m := t.Hour()*60 + t.Minute()
	return m >= w.Open && m <= w.Close
}
