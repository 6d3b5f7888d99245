package order

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Status is the lifecycle state of an order. Orders start pending and move to
// exactly one terminal state; terminal states are permanently frozen.
type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

// Valid reports whether the status is one of the known lifecycle states.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// Terminal reports whether the status permits no further transitions.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// Sentinel errors for order workflows.
var (
	// ErrEmptyCart is returned when checkout is attempted with no cart lines.
	ErrEmptyCart = errors.New("cart is empty")
	// ErrNotFound is returned when a requested order does not exist.
	ErrNotFound = errors.New("order not found")
)

// PickupTimeError indicates the requested pickup time is not acceptable.
type PickupTimeError struct {
	PickupTime time.Time
}

func (e *PickupTimeError) Error() string {
	return fmt.Sprintf("pickup time %s is in the past", e.PickupTime.Format(time.RFC3339))
}

// StatusFrozenError indicates an attempt to change the status of an order
// whose persisted status is no longer pending. Re-setting the same terminal
// value is also rejected.
type StatusFrozenError struct {
	Current Status
}

func (e *StatusFrozenError) Error() string {
	return fmt.Sprintf("order status is %s and can no longer change", e.Current)
}

// Line is a snapshot of one cart line at checkout time. UnitPrice is frozen:
// later catalog price changes never affect a placed order.
type Line struct {
	ID        string
	DishID    string
	DishName  string
	Quantity  int
	UnitPrice decimal.Decimal
}

// Subtotal returns the frozen price of the line.
func (l Line) Subtotal() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// Order is an immutable-after-creation snapshot of a checkout.
type Order struct {
	ID         string
	CustomerID string
	PickupTime time.Time
	Status     Status
	Discount   decimal.Decimal
	CreatedAt  time.Time
	Lines      []Line
}

// Total returns the sum of line subtotals before discount.
func (o *Order) Total() decimal.Decimal {
	total := decimal.Zero
	for _, l := range o.Lines {
		total = total.Add(l.Subtotal())
	}
	return total
}

// DiscountedTotal returns the amount the customer actually pays.
func (o *Order) DiscountedTotal() decimal.Decimal {
	return o.Total().Sub(o.Discount)
}

// Repository defines persistence operations for orders.
type Repository interface {
	// Create persists a new order together with all its lines.
	Create(ctx context.Context, o *Order) error
	// GetByID returns an order with its lines.
	GetByID(ctx context.Context, id string) (*Order, error)
	// GetForUpdate returns the order with its row locked for the duration of
	// the surrounding transaction, so concurrent status updates serialize.
	GetForUpdate(ctx context.Context, id string) (*Order, error)
	// SetStatus writes a new status for the order.
	SetStatus(ctx context.Context, id string, status Status) error
	// Delete removes an order together with its lines.
	Delete(ctx context.Context, id string) error
	// ListByCustomer returns a customer's orders ordered by pickup time.
	ListByCustomer(ctx context.Context, customerID string) ([]Order, error)
	// List returns all orders ordered by pickup time.
	List(ctx context.Context) ([]Order, error)
}
