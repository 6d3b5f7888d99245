package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/mfalcone/wasabi-takeaway/internal/domain/cart"
)

const (
	ensureCartSQL = `INSERT INTO carts (customer_id) VALUES ($1)
		ON CONFLICT (customer_id) DO NOTHING`

	// Cart lines join the live catalog so the view always reflects current
	// dish prices.
	getCartLinesSQL = `SELECT cl.id, cl.dish_id, d.name, d.price, cl.quantity
		FROM cart_lines cl
		JOIN dishes d ON d.id = cl.dish_id
		WHERE cl.customer_id = $1
		ORDER BY d.name`

	upsertCartLineSQL = `INSERT INTO cart_lines (id, customer_id, dish_id, quantity)
		VALUES ($1, $2, $3, 1)
		ON CONFLICT (customer_id, dish_id) DO UPDATE SET quantity = cart_lines.quantity + 1`

	deleteLineByDishSQL = `DELETE FROM cart_lines WHERE customer_id = $1 AND dish_id = $2`

	setLineQuantitySQL = `UPDATE cart_lines SET quantity = $3
		WHERE customer_id = $1 AND id = $2`

	deleteLineSQL = `DELETE FROM cart_lines WHERE customer_id = $1 AND id = $2`

	clearCartSQL = `DELETE FROM cart_lines WHERE customer_id = $1`
)

var _ cart.Repository = (*CartRepository)(nil)

// CartRepository implements cart.Repository backed by PostgreSQL.
type CartRepository struct {
	db Querier
}

// NewCartRepository returns a CartRepository that uses the given querier.
func NewCartRepository(db Querier) *CartRepository {
	return &CartRepository{db: db}
}

// Ensure creates the customer's cart row if it does not exist yet.
func (r *CartRepository) Ensure(ctx context.Context, customerID string) error {
	if _, err := r.db.Exec(ctx, ensureCartSQL, customerID); err != nil {
		return fmt.Errorf("ensuring cart for %q: %w", customerID, err)
	}
	return nil
}

// Get returns the customer's cart with lines priced from the live catalog.
func (r *CartRepository) Get(ctx context.Context, customerID string) (*cart.Cart, error) {
	rows, err := r.db.Query(ctx, getCartLinesSQL, customerID)
	if err != nil {
		return nil, fmt.Errorf("loading cart for %q: %w", customerID, err)
	}

	lines, err := pgx.CollectRows(rows, scanCartLine)
	if err != nil {
		return nil, fmt.Errorf("loading cart for %q: %w", customerID, err)
	}
	return &cart.Cart{CustomerID: customerID, Lines: lines}, nil
}

// UpsertLine adds a line with quantity 1 or bumps the existing line by 1.
func (r *CartRepository) UpsertLine(ctx context.Context, customerID, dishID string) error {
	_, err := r.db.Exec(ctx, upsertCartLineSQL, uuid.New().String(), customerID, dishID)
	if err != nil {
		return fmt.Errorf("upserting cart line (%q, %q): %w", customerID, dishID, err)
	}
	return nil
}

// DeleteLineByDish removes the line for the given dish; absent lines are a no-op.
func (r *CartRepository) DeleteLineByDish(ctx context.Context, customerID, dishID string) error {
	_, err := r.db.Exec(ctx, deleteLineByDishSQL, customerID, dishID)
	if err != nil {
		return fmt.Errorf("deleting cart line (%q, %q): %w", customerID, dishID, err)
	}
	return nil
}

// SetLineQuantity updates a line's quantity, scoped to the owning customer.
func (r *CartRepository) SetLineQuantity(ctx context.Context, customerID, lineID string, quantity int) error {
	tag, err := r.db.Exec(ctx, setLineQuantitySQL, customerID, lineID, quantity)
	if err != nil {
		return fmt.Errorf("updating cart line %q: %w", lineID, err)
	}
	if tag.RowsAffected() == 0 {
		return cart.ErrLineNotFound
	}
	return nil
}

// DeleteLine removes a line by ID, scoped to the owning customer.
func (r *CartRepository) DeleteLine(ctx context.Context, customerID, lineID string) error {
	tag, err := r.db.Exec(ctx, deleteLineSQL, customerID, lineID)
	if err != nil {
		return fmt.Errorf("deleting cart line %q: %w", lineID, err)
	}
	if tag.RowsAffected() == 0 {
		return cart.ErrLineNotFound
	}
	return nil
}

// Clear removes all of the customer's cart lines; the cart row stays.
func (r *CartRepository) Clear(ctx context.Context, customerID string) error {
	if _, err := r.db.Exec(ctx, clearCartSQL, customerID); err != nil {
		return fmt.Errorf("clearing cart for %q: %w", customerID, err)
	}
	return nil
}

func scanCartLine(row pgx.CollectableRow) (cart.Line, error) {
	var (
		l     cart.Line
		price decimal.Decimal
	)
	err := row.Scan(&l.ID, &l.DishID, &l.DishName, &price, &l.Quantity)
	l.UnitPrice = price
	return l, err
}
