// Package postgres implements the domain repositories on top of PostgreSQL
// using pgx. All repositories run against a Querier, which both the shared
// pool and an open transaction satisfy, so the same repository code serves
// plain reads and the atomic workflow transactions.
package postgres

import (
	"context"
	"fmt"

	pgxdecimal "github.com/jackc/pgx-shopspring-decimal"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mfalcone/wasabi-takeaway/db"
	"github.com/mfalcone/wasabi-takeaway/internal/domain/cart"
	"github.com/mfalcone/wasabi-takeaway/internal/domain/loyalty"
	"github.com/mfalcone/wasabi-takeaway/internal/domain/order"
)

// Querier is the subset of pgx operations the repositories use. It is
// satisfied by *pgxpool.Pool and pgx.Tx.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// NewPool creates a pgxpool.Pool configured with shopspring/decimal support
// for NUMERIC columns.
func NewPool(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing database config: %w", err)
	}

	cfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		pgxdecimal.Register(conn.TypeMap())
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	return pool, nil
}

// RunMigrations executes the embedded DDL schema against the pool.
func RunMigrations(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, db.Schema)
	if err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	return nil
}

// Store bundles all repositories over one Querier and implements
// order.Store. The zero transaction nesting rule applies: InTx must only be
// called on a pool-backed Store.
type Store struct {
	pool    *pgxpool.Pool
	carts   *CartRepository
	orders  *OrderRepository
	loyalty *LoyaltyRepository
}

var _ order.Store = (*Store)(nil)
var _ order.Tx = (*Store)(nil)

// NewStore creates a Store bound to the pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{
		pool:    pool,
		carts:   NewCartRepository(pool),
		orders:  NewOrderRepository(pool),
		loyalty: NewLoyaltyRepository(pool),
	}
}

// Carts returns the cart repository.
func (s *Store) Carts() cart.Repository { return s.carts }

// Orders returns the order repository.
func (s *Store) Orders() order.Repository { return s.orders }

// Loyalty returns the loyalty repository.
func (s *Store) Loyalty() loyalty.Repository { return s.loyalty }

// InTx runs fn with a Store whose repositories are all bound to a single
// transaction. The transaction commits when fn returns nil and rolls back
// otherwise, so workflow steps are visible together or not at all.
func (s *Store) InTx(ctx context.Context, fn func(tx order.Tx) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	bound := &Store{
		carts:   NewCartRepository(tx),
		orders:  NewOrderRepository(tx),
		loyalty: NewLoyaltyRepository(tx),
	}
	if err := fn(bound); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}
