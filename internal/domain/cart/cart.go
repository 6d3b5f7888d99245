package cart

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrLineNotFound is returned when a cart line does not exist or does not
// belong to the acting customer.
var ErrLineNotFound = errors.New("cart line not found")

// Line is a single (dish, quantity) entry in a customer's cart. UnitPrice is
// the dish's current catalog price, read live at query time: carts always
// reflect catalog price changes, unlike order lines.
type Line struct {
	ID        string
	DishID    string
	DishName  string
	UnitPrice decimal.Decimal
	Quantity  int
}

// Subtotal returns the live price of the line (unit price times quantity).
func (l Line) Subtotal() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// Cart is a customer's in-progress selection of dishes.
type Cart struct {
	CustomerID string
	Lines      []Line
}

// Total returns the sum of line subtotals.
func (c *Cart) Total() decimal.Decimal {
	total := decimal.Zero
	for _, l := range c.Lines {
		total = total.Add(l.Subtotal())
	}
	return total
}

// Repository defines persistence operations for carts and their lines.
// The cart row itself is created lazily by Ensure and never deleted; clearing
// a cart removes only its lines.
type Repository interface {
	// Ensure creates the customer's cart row if it does not exist yet.
	Ensure(ctx context.Context, customerID string) error
	// Get returns the customer's cart with lines joined against live dish
	// prices. A customer without a cart row gets an empty cart.
	Get(ctx context.Context, customerID string) (*Cart, error)
	// UpsertLine adds a line for (customer, dish) with quantity 1, or
	// increments the existing line's quantity by 1.
	UpsertLine(ctx context.Context, customerID, dishID string) error
	// DeleteLineByDish removes the line for the given dish. Removing an
	// absent line is not an error.
	DeleteLineByDish(ctx context.Context, customerID, dishID string) error
	// SetLineQuantity updates a line's quantity. Returns ErrLineNotFound when
	// the line does not exist or belongs to another customer.
	SetLineQuantity(ctx context.Context, customerID, lineID string, quantity int) error
	// DeleteLine removes a line by its ID with the same ownership rule.
	DeleteLine(ctx context.Context, customerID, lineID string) error
	// Clear removes all lines from the customer's cart.
	Clear(ctx context.Context, customerID string) error
}
