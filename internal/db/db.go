package db

import (
	"context"
	"errors"
	"fmt"

	"stockexchange/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// ErrUnavailable marks a transient persistence failure. Callers such
// as the sweep scheduler may retry on their next tick; the error is
// never surfaced to traders as their fault.
var ErrUnavailable = errors.New("store unavailable")

const orderColumns = "id, user_id, instrument_id, side, price, quantity, remaining, executed, status, created_at, updated_at"

// DB wraps a PostgreSQL connection pool.
type DB struct {
	Pool *pgxpool.Pool
}

// NewDB initializes a new database connection pool.
func NewDB(ctx context.Context, connString string) (*DB, error) {
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	return &DB{Pool: pool}, nil
}

// Close closes the database connection pool.
func (db *DB) Close(ctx context.Context) error {
	db.Pool.Close()
	return nil
}

func scanOrder(row pgx.Row) (*models.Order, error) {
	order := &models.Order{}
	err := row.Scan(
		&order.ID,
		&order.UserID,
		&order.InstrumentID,
		&order.Side,
		&order.Price,
		&order.Quantity,
		&order.Remaining,
		&order.Executed,
		&order.Status,
		&order.CreatedAt,
		&order.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return order, nil
}

func collectOrders(rows pgx.Rows) ([]models.Order, error) {
	defer rows.Close()

	var orders []models.Order
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		orders = append(orders, *order)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return orders, nil
}

// CreateUser inserts a new user.
func (db *DB) CreateUser(ctx context.Context, username, passwordHash string) (*models.User, error) {
	user := &models.User{}
	err := db.Pool.QueryRow(ctx,
		"INSERT INTO users (username, password_hash) VALUES ($1, $2) RETURNING id, username, password_hash, created_at",
		username, passwordHash).Scan(&user.ID, &user.Username, &user.PasswordHash, &user.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	return user, nil
}

// GetUserByUsername retrieves a user by username.
func (db *DB) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	user := &models.User{}
	err := db.Pool.QueryRow(ctx,
		"SELECT id, username, password_hash, created_at FROM users WHERE username = $1",
		username).Scan(&user.ID, &user.Username, &user.PasswordHash, &user.CreatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, models.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

// CreateInstrument inserts a new tradable instrument.
func (db *DB) CreateInstrument(ctx context.Context, symbol, name string) (*models.Instrument, error) {
	instrument := &models.Instrument{}
	err := db.Pool.QueryRow(ctx,
		"INSERT INTO instruments (symbol, name) VALUES ($1, $2) RETURNING id, symbol, name, created_at",
		symbol, name).Scan(&instrument.ID, &instrument.Symbol, &instrument.Name, &instrument.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create instrument: %w", err)
	}
	return instrument, nil
}

// GetInstrument retrieves an instrument by id.
func (db *DB) GetInstrument(ctx context.Context, id int64) (*models.Instrument, error) {
	instrument := &models.Instrument{}
	err := db.Pool.QueryRow(ctx,
		"SELECT id, symbol, name, created_at FROM instruments WHERE id = $1",
		id).Scan(&instrument.ID, &instrument.Symbol, &instrument.Name, &instrument.CreatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, models.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get instrument: %w", err)
	}
	return instrument, nil
}

// ListInstruments retrieves all listed instruments.
func (db *DB) ListInstruments(ctx context.Context) ([]models.Instrument, error) {
	rows, err := db.Pool.Query(ctx, "SELECT id, symbol, name, created_at FROM instruments ORDER BY symbol")
	if err != nil {
		return nil, fmt.Errorf("failed to list instruments: %w", err)
	}
	defer rows.Close()

	var instruments []models.Instrument
	for rows.Next() {
		var instrument models.Instrument
		if err := rows.Scan(&instrument.ID, &instrument.Symbol, &instrument.Name, &instrument.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan instrument: %w", err)
		}
		instruments = append(instruments, instrument)
	}
	return instruments, rows.Err()
}

// CreateOrder inserts a new order.
func (db *DB) CreateOrder(ctx context.Context, order *models.Order) (*models.Order, error) {
	row := db.Pool.QueryRow(ctx,
		"INSERT INTO orders (user_id, instrument_id, side, price, quantity, remaining, executed, status) "+
			"VALUES ($1, $2, $3, $4, $5, $6, $7, $8) RETURNING "+orderColumns,
		order.UserID, order.InstrumentID, order.Side, order.Price, order.Quantity,
		order.Remaining, order.Executed, order.Status)
	created, err := scanOrder(row)
	if err != nil {
		return nil, fmt.Errorf("failed to create order: %w", err)
	}
	return created, nil
}

// GetOrder retrieves an order by id.
func (db *DB) GetOrder(ctx context.Context, id int64) (*models.Order, error) {
	order, err := scanOrder(db.Pool.QueryRow(ctx,
		"SELECT "+orderColumns+" FROM orders WHERE id = $1", id))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, models.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get order: %w", err)
	}
	return order, nil
}

// GetUserOrder retrieves an order by id, scoped to its owner.
func (db *DB) GetUserOrder(ctx context.Context, orderID, userID int64) (*models.Order, error) {
	order, err := scanOrder(db.Pool.QueryRow(ctx,
		"SELECT "+orderColumns+" FROM orders WHERE id = $1 AND user_id = $2", orderID, userID))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, models.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get order: %w", err)
	}
	return order, nil
}

// ListUserOrders retrieves all orders for a user, newest first.
func (db *DB) ListUserOrders(ctx context.Context, userID int64) ([]models.Order, error) {
	rows, err := db.Pool.Query(ctx,
		"SELECT "+orderColumns+" FROM orders WHERE user_id = $1 ORDER BY created_at DESC",
		userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get user orders: %w", err)
	}
	return collectOrders(rows)
}

// UpdateOrderTerms replaces an order's price and quantity, resetting
// the remaining quantity. Allowed only while the order is pending with
// no fills; the row is locked so a concurrent sweep cannot fill the
// order mid-edit.
func (db *DB) UpdateOrderTerms(ctx context.Context, orderID, userID int64, price decimal.Decimal, quantity int) (*models.Order, error) {
	tx, err := db.Pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w: %w", ErrUnavailable, err)
	}
	defer tx.Rollback(ctx)

	order, err := scanOrder(tx.QueryRow(ctx,
		"SELECT "+orderColumns+" FROM orders WHERE id = $1 AND user_id = $2 FOR UPDATE",
		orderID, userID))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, models.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get order: %w", err)
	}

	if !order.CanModify() {
		return nil, models.ErrNotModifiable
	}

	updated, err := scanOrder(tx.QueryRow(ctx,
		"UPDATE orders SET price = $1, quantity = $2, remaining = $2, updated_at = NOW() WHERE id = $3 RETURNING "+orderColumns,
		price, quantity, orderID))
	if err != nil {
		return nil, fmt.Errorf("failed to update order: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w: %w", ErrUnavailable, err)
	}
	return updated, nil
}

// CancelOrder cancels an order if it belongs to the user and is still
// pending with no fills. Cancellation is a terminal status change, not
// a row deletion.
func (db *DB) CancelOrder(ctx context.Context, orderID, userID int64) error {
	tx, err := db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w: %w", ErrUnavailable, err)
	}
	defer tx.Rollback(ctx)

	// Lock the row for update to prevent concurrent modifications
	order, err := scanOrder(tx.QueryRow(ctx,
		"SELECT "+orderColumns+" FROM orders WHERE id = $1 AND user_id = $2 FOR UPDATE",
		orderID, userID))
	if err != nil {
		if err == pgx.ErrNoRows {
			return models.ErrNotFound
		}
		return fmt.Errorf("failed to get order: %w", err)
	}

	if !order.CanCancel() {
		return models.ErrNotCancellable
	}

	tag, err := tx.Exec(ctx,
		"UPDATE orders SET status = $1, updated_at = NOW() WHERE id = $2",
		models.StatusCancelled, orderID)
	if err != nil {
		return fmt.Errorf("failed to cancel order: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w: %w", ErrUnavailable, err)
	}
	return nil
}

// PendingOrders retrieves all pending orders, oldest first, so earlier
// orders get matching priority as triggers.
func (db *DB) PendingOrders(ctx context.Context) ([]models.Order, error) {
	rows, err := db.Pool.Query(ctx,
		"SELECT "+orderColumns+" FROM orders WHERE status = $1 ORDER BY created_at ASC",
		models.StatusPending)
	if err != nil {
		return nil, fmt.Errorf("failed to get pending orders: %w: %w", ErrUnavailable, err)
	}
	return collectOrders(rows)
}

// CrossingCounterOrders retrieves pending counter-side orders on the
// instrument whose limit price crosses the given price, best price
// first (lowest ask for a buy trigger, highest bid for a sell
// trigger), ties broken by earliest creation time.
func (db *DB) CrossingCounterOrders(ctx context.Context, instrumentID int64, side models.Side, price decimal.Decimal) ([]models.Order, error) {
	var priceCond, priceSort string
	if side == models.Buy {
		priceCond, priceSort = "price >= $4", "price DESC"
	} else {
		priceCond, priceSort = "price <= $4", "price ASC"
	}

	rows, err := db.Pool.Query(ctx,
		"SELECT "+orderColumns+" FROM orders "+
			"WHERE instrument_id = $1 AND side = $2 AND status = $3 AND remaining > 0 AND "+priceCond+
			" ORDER BY "+priceSort+", created_at ASC",
		instrumentID, side, models.StatusPending, price)
	if err != nil {
		return nil, fmt.Errorf("failed to get counter orders: %w: %w", ErrUnavailable, err)
	}
	return collectOrders(rows)
}

// SaveOrderFill persists fill state previously applied to the order in
// memory. Every mutation goes through an explicit save; nothing relies
// on implicit flushing.
func (db *DB) SaveOrderFill(ctx context.Context, order *models.Order) error {
	tag, err := db.Pool.Exec(ctx,
		"UPDATE orders SET remaining = $1, executed = $2, status = $3, updated_at = $4 WHERE id = $5",
		order.Remaining, order.Executed, order.Status, order.UpdatedAt, order.ID)
	if err != nil {
		return fmt.Errorf("failed to save order fill: %w: %w", ErrUnavailable, err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

// CreateExecution inserts a new trade record.
func (db *DB) CreateExecution(ctx context.Context, execution *models.Execution) (*models.Execution, error) {
	created := &models.Execution{}
	err := db.Pool.QueryRow(ctx,
		"INSERT INTO executions (instrument_id, buy_order_id, sell_order_id, quantity, price) "+
			"VALUES ($1, $2, $3, $4, $5) RETURNING id, instrument_id, buy_order_id, sell_order_id, quantity, price, created_at",
		execution.InstrumentID, execution.BuyOrderID, execution.SellOrderID,
		execution.Quantity, execution.Price).Scan(
		&created.ID, &created.InstrumentID, &created.BuyOrderID, &created.SellOrderID,
		&created.Quantity, &created.Price, &created.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create execution: %w: %w", ErrUnavailable, err)
	}
	return created, nil
}

// ListUserExecutions retrieves all executions touching any of the
// user's orders, newest first.
func (db *DB) ListUserExecutions(ctx context.Context, userID int64) ([]models.Execution, error) {
	rows, err := db.Pool.Query(ctx,
		"SELECT DISTINCT e.id, e.instrument_id, e.buy_order_id, e.sell_order_id, e.quantity, e.price, e.created_at "+
			"FROM executions e JOIN orders o ON e.buy_order_id = o.id OR e.sell_order_id = o.id "+
			"WHERE o.user_id = $1 ORDER BY e.created_at DESC",
		userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get user executions: %w", err)
	}
	defer rows.Close()

	var executions []models.Execution
	for rows.Next() {
		var execution models.Execution
		if err := rows.Scan(&execution.ID, &execution.InstrumentID, &execution.BuyOrderID,
			&execution.SellOrderID, &execution.Quantity, &execution.Price, &execution.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan execution: %w", err)
		}
		executions = append(executions, execution)
	}
	return executions, rows.Err()
}
