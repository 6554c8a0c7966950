// Package matching implements the continuous double-auction core: it
// pairs crossing buy and sell limit orders under price-time priority,
// records executions, and drives order fill state.
package matching

import (
	"context"
	"fmt"
	"sync"
	"time"

	"stockexchange/internal/clock"
	"stockexchange/internal/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Store is the persistence capability the engine needs. All writes are
// explicit; the engine never assumes implicit flushing.
type Store interface {
	GetOrder(ctx context.Context, id int64) (*models.Order, error)
	PendingOrders(ctx context.Context) ([]models.Order, error)
	CrossingCounterOrders(ctx context.Context, instrumentID int64, side models.Side, price decimal.Decimal) ([]models.Order, error)
	SaveOrderFill(ctx context.Context, order *models.Order) error
	CreateExecution(ctx context.Context, execution *models.Execution) (*models.Execution, error)
}

// Config carries the venue parameters for the engine.
type Config struct {
	Location *time.Location
	Window   models.TradingWindow
	// SweepTimeout bounds a single sweep. Zero means no deadline.
	// The abort happens between orders, never mid-trade.
	SweepTimeout time.Duration
}

// SweepResult summarizes one matching pass over all pending orders.
type SweepResult struct {
	Attempted int  `json:"attempted"`
	Matched   int  `json:"matched"`
	Skipped   bool `json:"skipped"`
}

// Engine matches orders against the store. One sweep runs at a time;
// a tick arriving while a sweep is still in flight is skipped.
type Engine struct {
	store    Store
	recorder *Recorder
	clock    clock.Clock
	log      *zap.Logger
	cfg      Config

	sweepMu sync.Mutex
}

func NewEngine(store Store, clk clock.Clock, log *zap.Logger, cfg Config) *Engine {
	return &Engine{
		store:    store,
		recorder: NewRecorder(store),
		clock:    clk,
		log:      log,
		cfg:      cfg,
	}
}

// AttemptMatch tries to fill the order against crossing counter-orders
// on the same instrument, best price first, earliest first at equal
// price. Each trade is recorded and both sides' fills saved eagerly
// before the next candidate is considered. It reports whether at least
// one trade occurred.
//
// Orders that are not pending or have nothing left to fill are a
// no-op, which makes repeated calls on an unmatched order idempotent.
func (e *Engine) AttemptMatch(ctx context.Context, order *models.Order) (bool, error) {
	if order == nil {
		return false, &models.ValidationError{Reason: "order is required"}
	}
	if !order.Executable() {
		return false, nil
	}

	// Re-read the trigger: an earlier match in the same sweep may have
	// already consumed it, and a stale snapshot here would double-fill.
	order, err := e.store.GetOrder(ctx, order.ID)
	if err != nil {
		return false, fmt.Errorf("refresh order: %w", err)
	}
	if !order.Executable() {
		return false, nil
	}

	counters, err := e.store.CrossingCounterOrders(ctx, order.InstrumentID, order.Side.Opposite(), order.Price)
	if err != nil {
		return false, fmt.Errorf("find counter orders for order %d: %w", order.ID, err)
	}

	executed := false
	for i := range counters {
		if order.Remaining == 0 {
			break
		}
		counter := &counters[i]
		// Re-check eligibility: earlier iterations never touch a
		// candidate, but the query snapshot may be stale.
		if !counter.Executable() || !order.Crosses(counter) {
			continue
		}

		if err := e.executeTrade(ctx, order, counter); err != nil {
			return executed, err
		}
		executed = true
	}
	return executed, nil
}

// executeTrade records one execution between the trigger and a
// crossing counter-order, then applies and saves both fills.
func (e *Engine) executeTrade(ctx context.Context, order, counter *models.Order) error {
	buyOrder, sellOrder := order, counter
	if order.Side == models.Sell {
		buyOrder, sellOrder = counter, order
	}

	qty := order.Remaining
	if counter.Remaining < qty {
		qty = counter.Remaining
	}
	// Trades always price at the sell order's limit, regardless of
	// which side triggered the match.
	price := sellOrder.Price

	execution, err := e.recorder.Record(ctx, buyOrder, sellOrder, qty, price)
	if err != nil {
		return err
	}

	now := e.clock.Now().In(e.cfg.Location)
	if err := buyOrder.ApplyFill(qty, now); err != nil {
		return fmt.Errorf("apply fill to buy order %d: %w", buyOrder.ID, err)
	}
	if err := sellOrder.ApplyFill(qty, now); err != nil {
		return fmt.Errorf("apply fill to sell order %d: %w", sellOrder.ID, err)
	}
	if err := e.store.SaveOrderFill(ctx, buyOrder); err != nil {
		return fmt.Errorf("save buy order %d: %w", buyOrder.ID, err)
	}
	if err := e.store.SaveOrderFill(ctx, sellOrder); err != nil {
		return fmt.Errorf("save sell order %d: %w", sellOrder.ID, err)
	}

	e.log.Info("trade executed",
		zap.Int64("execution_id", execution.ID),
		zap.Int64("instrument_id", execution.InstrumentID),
		zap.Int64("buy_order_id", buyOrder.ID),
		zap.Int64("sell_order_id", sellOrder.ID),
		zap.Int("quantity", qty),
		zap.String("price", price.String()),
	)
	return nil
}

// RunSweep performs one matching pass: outside trading hours it is a
// no-op, otherwise every pending order is offered to AttemptMatch in
// creation order. A failure on one order is logged and does not stop
// the sweep; only a failure to fetch the pending set aborts it.
func (e *Engine) RunSweep(ctx context.Context) (SweepResult, error) {
	if !e.sweepMu.TryLock() {
		e.log.Warn("sweep already in flight, skipping tick")
		return SweepResult{Skipped: true}, nil
	}
	defer e.sweepMu.Unlock()

	now := e.clock.Now().In(e.cfg.Location)
	if !e.cfg.Window.Contains(now) {
		e.log.Debug("outside trading hours, skipping sweep", zap.Time("venue_time", now))
		return SweepResult{}, nil
	}

	log := e.log.With(zap.String("sweep_id", uuid.NewString()))

	if e.cfg.SweepTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.cfg.SweepTimeout)
		defer cancel()
	}

	pending, err := e.store.PendingOrders(ctx)
	if err != nil {
		return SweepResult{}, fmt.Errorf("fetch pending orders: %w", err)
	}

	var result SweepResult
	for i := range pending {
		if err := ctx.Err(); err != nil {
			log.Warn("sweep aborted",
				zap.Int("attempted", result.Attempted),
				zap.Int("pending", len(pending)),
				zap.Error(err))
			break
		}

		order := &pending[i]
		result.Attempted++
		matched, err := e.AttemptMatch(ctx, order)
		if err != nil {
			// One bad order must not block the rest of the sweep.
			log.Error("match attempt failed",
				zap.Int64("order_id", order.ID),
				zap.Error(err))
			continue
		}
		if matched {
			result.Matched++
		}
	}

	log.Info("sweep finished",
		zap.Int("attempted", result.Attempted),
		zap.Int("matched", result.Matched))
	return result, nil
}
