package loyalty

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrInsufficientPoints is returned when a debit would take an account's
// balance below zero. Checkout only debits points it has already verified
// against the policy threshold, so hitting this means the policy changed
// underneath the workflow or the account was mutated concurrently.
var ErrInsufficientPoints = errors.New("insufficient loyalty points")

// Account is a customer's loyalty card: a non-negative point balance earned
// on completed orders and spent on checkout discounts.
type Account struct {
	CustomerID string
	Points     int64
}

// Policy is the single global discount rule: customers holding at least
// PointsRequired points may redeem them for DiscountValue off an order.
type Policy struct {
	PointsRequired int64
	DiscountValue  decimal.Decimal
}

// Repository defines persistence operations for loyalty accounts and the
// discount policy. Ensure and the FOR-UPDATE variants exist so workflows can
// serialize balance mutations per account.
type Repository interface {
	// Ensure creates the customer's account with zero points if absent.
	Ensure(ctx context.Context, customerID string) error
	// Get returns the customer's account. A customer without an account row
	// gets a zero-balance account.
	Get(ctx context.Context, customerID string) (*Account, error)
	// GetForUpdate returns the account with its row locked for the duration
	// of the surrounding transaction. The account must already exist.
	GetForUpdate(ctx context.Context, customerID string) (*Account, error)
	// Credit adds points to the balance. Amount must be non-negative.
	Credit(ctx context.Context, customerID string, points int64) error
	// Debit subtracts points from the balance, failing with
	// ErrInsufficientPoints when the balance would go negative.
	Debit(ctx context.Context, customerID string, points int64) error

	// Policy returns the current discount policy.
	Policy(ctx context.Context) (Policy, error)
	// SetPolicy replaces the discount policy.
	SetPolicy(ctx context.Context, p Policy) error
}
