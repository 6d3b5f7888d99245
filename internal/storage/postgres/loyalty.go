package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/mfalcone/wasabi-takeaway/internal/domain/loyalty"
)

const (
	ensureAccountSQL = `INSERT INTO loyalty_accounts (customer_id, points) VALUES ($1, 0)
		ON CONFLICT (customer_id) DO NOTHING`

	getAccountSQL = `SELECT customer_id, points FROM loyalty_accounts WHERE customer_id = $1`

	getAccountForUpdateSQL = getAccountSQL + ` FOR UPDATE`

	creditPointsSQL = `UPDATE loyalty_accounts SET points = points + $2 WHERE customer_id = $1`

	// The balance guard in the WHERE clause makes the non-negative invariant
	// hold even if the policy was reconfigured mid-workflow.
	debitPointsSQL = `UPDATE loyalty_accounts SET points = points - $2
		WHERE customer_id = $1 AND points >= $2`

	getPolicySQL = `SELECT points_required, discount_value FROM discount_policy WHERE id`

	setPolicySQL = `INSERT INTO discount_policy (id, points_required, discount_value)
		VALUES (TRUE, $1, $2)
		ON CONFLICT (id) DO UPDATE SET points_required = $1, discount_value = $2`
)

var _ loyalty.Repository = (*LoyaltyRepository)(nil)

// LoyaltyRepository implements loyalty.Repository backed by PostgreSQL.
type LoyaltyRepository struct {
	db Querier
}

// NewLoyaltyRepository returns a LoyaltyRepository that uses the given querier.
func NewLoyaltyRepository(db Querier) *LoyaltyRepository {
	return &LoyaltyRepository{db: db}
}

// Ensure creates the customer's account with zero points if absent.
func (r *LoyaltyRepository) Ensure(ctx context.Context, customerID string) error {
	if _, err := r.db.Exec(ctx, ensureAccountSQL, customerID); err != nil {
		return fmt.Errorf("ensuring loyalty account for %q: %w", customerID, err)
	}
	return nil
}

// Get returns the customer's account; customers without a row get a
// zero-balance account.
func (r *LoyaltyRepository) Get(ctx context.Context, customerID string) (*loyalty.Account, error) {
	a, err := r.get(ctx, customerID, getAccountSQL)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return &loyalty.Account{CustomerID: customerID}, nil
		}
		return nil, err
	}
	return a, nil
}

// GetForUpdate returns the account with its row locked until the surrounding
// transaction ends. The account must exist.
func (r *LoyaltyRepository) GetForUpdate(ctx context.Context, customerID string) (*loyalty.Account, error) {
	return r.get(ctx, customerID, getAccountForUpdateSQL)
}

func (r *LoyaltyRepository) get(ctx context.Context, customerID, query string) (*loyalty.Account, error) {
	a := loyalty.Account{CustomerID: customerID}
	err := r.db.QueryRow(ctx, query, customerID).Scan(&a.CustomerID, &a.Points)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("loading loyalty account for %q: %w", customerID, err)
	}
	return &a, nil
}

// Credit adds points to the balance.
func (r *LoyaltyRepository) Credit(ctx context.Context, customerID string, points int64) error {
	if points < 0 {
		return errors.Errorf("credit amount %d is negative", points)
	}
	if _, err := r.db.Exec(ctx, creditPointsSQL, customerID, points); err != nil {
		return fmt.Errorf("crediting %d points to %q: %w", points, customerID, err)
	}
	return nil
}

// Debit subtracts points, failing with loyalty.ErrInsufficientPoints when the
// balance would go negative.
func (r *LoyaltyRepository) Debit(ctx context.Context, customerID string, points int64) error {
	tag, err := r.db.Exec(ctx, debitPointsSQL, customerID, points)
	if err != nil {
		return fmt.Errorf("debiting %d points from %q: %w", points, customerID, err)
	}
	if tag.RowsAffected() == 0 {
		return loyalty.ErrInsufficientPoints
	}
	return nil
}

// Policy returns the single discount policy row.
func (r *LoyaltyRepository) Policy(ctx context.Context) (loyalty.Policy, error) {
	var (
		p     loyalty.Policy
		value decimal.Decimal
	)
	err := r.db.QueryRow(ctx, getPolicySQL).Scan(&p.PointsRequired, &value)
	if err != nil {
		return loyalty.Policy{}, fmt.Errorf("loading discount policy: %w", err)
	}
	p.DiscountValue = value
	return p, nil
}

// SetPolicy replaces the discount policy.
func (r *LoyaltyRepository) SetPolicy(ctx context.Context, p loyalty.Policy) error {
	if _, err := r.db.Exec(ctx, setPolicySQL, p.PointsRequired, p.DiscountValue); err != nil {
		return fmt.Errorf("updating discount policy: %w", err)
	}
	return nil
}
