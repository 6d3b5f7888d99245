package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/mfalcone/wasabi-takeaway/internal/domain/order"
)

const (
	insertOrderSQL = `INSERT INTO orders (id, customer_id, pickup_time, status, discount, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`

	insertOrderLineSQL = `INSERT INTO order_lines (id, order_id, dish_id, dish_name, quantity, unit_price)
		VALUES ($1, $2, $3, $4, $5, $6)`

	getOrderSQL = `SELECT id, customer_id, pickup_time, status, discount, created_at
		FROM orders WHERE id = $1`

	getOrderForUpdateSQL = getOrderSQL + ` FOR UPDATE`

	getOrderLinesSQL = `SELECT id, dish_id, dish_name, quantity, unit_price
		FROM order_lines WHERE order_id = $1 ORDER BY dish_name`

	setOrderStatusSQL = `UPDATE orders SET status = $2 WHERE id = $1`

	deleteOrderSQL = `DELETE FROM orders WHERE id = $1`

	listOrdersSQL = `SELECT id, customer_id, pickup_time, status, discount, created_at
		FROM orders ORDER BY pickup_time`

	listOrdersByCustomerSQL = `SELECT id, customer_id, pickup_time, status, discount, created_at
		FROM orders WHERE customer_id = $1 ORDER BY pickup_time`
)

var _ order.Repository = (*OrderRepository)(nil)

// OrderRepository implements order.Repository backed by PostgreSQL. Lines are
// stored in their own table so order history survives catalog changes.
type OrderRepository struct {
	db Querier
}

// NewOrderRepository returns an OrderRepository that uses the given querier.
func NewOrderRepository(db Querier) *OrderRepository {
	return &OrderRepository{db: db}
}

// Create persists a new order and all its lines. Callers that need the order
// and its lines to appear atomically must invoke this inside a transaction.
func (r *OrderRepository) Create(ctx context.Context, o *order.Order) error {
	_, err := r.db.Exec(ctx, insertOrderSQL,
		o.ID, o.CustomerID, o.PickupTime, string(o.Status), o.Discount, o.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("creating order %q: %w", o.ID, err)
	}

	for _, l := range o.Lines {
		_, err := r.db.Exec(ctx, insertOrderLineSQL,
			l.ID, o.ID, l.DishID, l.DishName, l.Quantity, l.UnitPrice,
		)
		if err != nil {
			return fmt.Errorf("creating line for order %q: %w", o.ID, err)
		}
	}
	return nil
}

// GetByID returns an order with its lines.
func (r *OrderRepository) GetByID(ctx context.Context, id string) (*order.Order, error) {
	return r.get(ctx, id, getOrderSQL)
}

// GetForUpdate returns the order with its row locked until the surrounding
// transaction ends.
func (r *OrderRepository) GetForUpdate(ctx context.Context, id string) (*order.Order, error) {
	return r.get(ctx, id, getOrderForUpdateSQL)
}

func (r *OrderRepository) get(ctx context.Context, id, query string) (*order.Order, error) {
	rows, err := r.db.Query(ctx, query, id)
	if err != nil {
		return nil, fmt.Errorf("getting order %q: %w", id, err)
	}

	o, err := pgx.CollectExactlyOneRow(rows, scanOrder)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrNotFound
		}
		return nil, fmt.Errorf("getting order %q: %w", id, err)
	}

	lineRows, err := r.db.Query(ctx, getOrderLinesSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting lines for order %q: %w", id, err)
	}
	o.Lines, err = pgx.CollectRows(lineRows, scanOrderLine)
	if err != nil {
		return nil, fmt.Errorf("getting lines for order %q: %w", id, err)
	}
	return &o, nil
}

// SetStatus writes a new status for the order.
func (r *OrderRepository) SetStatus(ctx context.Context, id string, status order.Status) error {
	tag, err := r.db.Exec(ctx, setOrderStatusSQL, id, string(status))
	if err != nil {
		return fmt.Errorf("setting status of order %q: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return order.ErrNotFound
	}
	return nil
}

// Delete removes an order; its lines go with it via ON DELETE CASCADE.
func (r *OrderRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, deleteOrderSQL, id)
	if err != nil {
		return fmt.Errorf("deleting order %q: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return order.ErrNotFound
	}
	return nil
}

// ListByCustomer returns a customer's orders ordered by pickup time, without lines.
func (r *OrderRepository) ListByCustomer(ctx context.Context, customerID string) ([]order.Order, error) {
	rows, err := r.db.Query(ctx, listOrdersByCustomerSQL, customerID)
	if err != nil {
		return nil, fmt.Errorf("listing orders for %q: %w", customerID, err)
	}
	return pgx.CollectRows(rows, scanOrder)
}

// List returns all orders ordered by pickup time, without lines.
func (r *OrderRepository) List(ctx context.Context) ([]order.Order, error) {
	rows, err := r.db.Query(ctx, listOrdersSQL)
	if err != nil {
		return nil, fmt.Errorf("listing orders: %w", err)
	}
	return pgx.CollectRows(rows, scanOrder)
}

func scanOrder(row pgx.CollectableRow) (order.Order, error) {
	var (
		o        order.Order
		status   string
		discount decimal.Decimal
		pickup   time.Time
		created  time.Time
	)
	err := row.Scan(&o.ID, &o.CustomerID, &pickup, &status, &discount, &created)
	o.PickupTime = pickup
	o.Status = order.Status(status)
	o.Discount = discount
	o.CreatedAt = created
	return o, err
}

func scanOrderLine(row pgx.CollectableRow) (order.Line, error) {
	var (
		l     order.Line
		price decimal.Decimal
	)
	err := row.Scan(&l.ID, &l.DishID, &l.DishName, &l.Quantity, &price)
	l.UnitPrice = price
	return l, err
}
