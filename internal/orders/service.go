// Package orders implements the order lifecycle: creation under the
// trading-hours gate, owner-scoped edit and cancel, and lookups.
package orders

import (
	"context"
	"fmt"
	"time"

	"stockexchange/internal/clock"
	"stockexchange/internal/models"

	"github.com/shopspring/decimal"
)

// Store is the persistence capability the lifecycle service needs.
type Store interface {
	GetInstrument(ctx context.Context, id int64) (*models.Instrument, error)
	CreateOrder(ctx context.Context, order *models.Order) (*models.Order, error)
	GetUserOrder(ctx context.Context, orderID, userID int64) (*models.Order, error)
	ListUserOrders(ctx context.Context, userID int64) ([]models.Order, error)
	UpdateOrderTerms(ctx context.Context, orderID, userID int64, price decimal.Decimal, quantity int) (*models.Order, error)
	CancelOrder(ctx context.Context, orderID, userID int64) error
}

// Service validates and applies owner-driven order state changes. Fill
// state is owned by the matching engine and never touched here.
type Service struct {
	store    Store
	clock    clock.Clock
	location *time.Location
	window   models.TradingWindow
}

func NewService(store Store, clk clock.Clock, location *time.Location, window models.TradingWindow) *Service {
	return &Service{store: store, clock: clk, location: location, window: window}
}

// CreateRequest carries the trader's input for a new order.
type CreateRequest struct {
	UserID       int64
	InstrumentID int64
	Side         models.Side
	Price        decimal.Decimal
	Quantity     int
}

func validateTerms(price decimal.Decimal, quantity int) error {
	if !price.IsPositive() {
		return &models.ValidationError{Reason: "price must be positive"}
	}
	if quantity < 1 {
		return &models.ValidationError{Reason: "quantity must be at least 1"}
	}
	return nil
}

// Create registers a new pending order. The instrument must exist and
// the venue-local time must fall inside the trading window.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*models.Order, error) {
	if req.UserID == 0 {
		return nil, &models.ValidationError{Reason: "an identified owner is required"}
	}
	if !req.Side.Valid() {
		return nil, &models.ValidationError{Reason: "side must be BUY or SELL"}
	}
	if err := validateTerms(req.Price, req.Quantity); err != nil {
		return nil, err
	}

	now := s.clock.Now().In(s.location)
	if !s.window.Contains(now) {
		return nil, &models.ValidationError{Reason: "orders can only be placed during trading hours"}
	}

	if _, err := s.store.GetInstrument(ctx, req.InstrumentID); err != nil {
		return nil, fmt.Errorf("look up instrument %d: %w", req.InstrumentID, err)
	}

	order := &models.Order{
		UserID:       req.UserID,
		InstrumentID: req.InstrumentID,
		Side:         req.Side,
		Price:        req.Price,
		Quantity:     req.Quantity,
		Remaining:    req.Quantity,
		Executed:     0,
		Status:       models.StatusPending,
	}
	return s.store.CreateOrder(ctx, order)
}

// Edit replaces the order's price and quantity, resetting its
// remaining quantity to the new total. Orders with any fills can no
// longer be edited.
func (s *Service) Edit(ctx context.Context, orderID, userID int64, price decimal.Decimal, quantity int) (*models.Order, error) {
	if err := validateTerms(price, quantity); err != nil {
		return nil, err
	}
	return s.store.UpdateOrderTerms(ctx, orderID, userID, price, quantity)
}

// Cancel moves the order to its terminal CANCELLED state. Orders with
// any fills can no longer be cancelled.
func (s *Service) Cancel(ctx context.Context, orderID, userID int64) error {
	return s.store.CancelOrder(ctx, orderID, userID)
}

// Get retrieves one of the user's orders.
func (s *Service) Get(ctx context.Context, orderID, userID int64) (*models.Order, error) {
	return s.store.GetUserOrder(ctx, orderID, userID)
}

// List retrieves all of the user's orders, newest first.
func (s *Service) List(ctx context.Context, userID int64) ([]models.Order, error) {
	return s.store.ListUserOrders(ctx, userID)
}
