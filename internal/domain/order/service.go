package order

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mfalcone/wasabi-takeaway/internal/domain/cart"
	"github.com/mfalcone/wasabi-takeaway/internal/domain/loyalty"
)

// ErrInvalidStatus is returned when a status update names an unknown state.
var ErrInvalidStatus = errors.New("unknown order status")

// Tx exposes the repositories bound to a single storage transaction. Every
// repository call made through a Tx commits or rolls back together.
type Tx interface {
	Carts() cart.Repository
	Orders() Repository
	Loyalty() loyalty.Repository
}

// Store provides transactional access to the repositories the order
// workflows touch. Orders gives plain (non-transactional) read access.
type Store interface {
	InTx(ctx context.Context, fn func(tx Tx) error) error
	Orders() Repository
}

// Event describes an order lifecycle change for downstream consumers.
type Event struct {
	Type       string          `json:"type"`
	OrderID    string          `json:"order_id"`
	CustomerID string          `json:"customer_id"`
	Status     Status          `json:"status"`
	Total      decimal.Decimal `json:"total"`
	PickupTime time.Time       `json:"pickup_time"`
	OccurredAt time.Time       `json:"occurred_at"`
}

// Event types published on order lifecycle changes.
const (
	EventCreated   = "order.created"
	EventCompleted = "order.completed"
	EventCancelled = "order.cancelled"
)

// Publisher delivers order events to interested consumers. Publishing is
// best-effort and happens only after the owning transaction has committed.
type Publisher interface {
	Publish(ctx context.Context, e Event)
}

// NopPublisher drops all events, used when event publishing is disabled.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) {}

// Service orchestrates the checkout and status-update workflows.
type Service struct {
	store  Store
	events Publisher
	now    func() time.Time
}

// NewService creates an order Service. Pass NopPublisher{} when event
// publishing is disabled.
func NewService(store Store, events Publisher) *Service {
	if events == nil {
		events = NopPublisher{}
	}
	return &Service{
		store:  store,
		events: events,
		now:    time.Now,
	}
}

// Checkout converts the customer's cart into a pending order in one atomic
// transaction: it snapshots cart lines at current catalog prices, applies the
// loyalty discount the customer is eligible for, debits the redeemed points,
// and clears the cart. Nothing is written when any step fails.
func (s *Service) Checkout(ctx context.Context, customerID string, pickupTime time.Time) (*Order, error) {
	if pickupTime.Before(s.now()) {
		return nil, &PickupTimeError{PickupTime: pickupTime}
	}

	var placed *Order
	err := s.store.InTx(ctx, func(tx Tx) error {
		c, err := tx.Carts().Get(ctx, customerID)
		if err != nil {
			return errors.Wrap(err, "load cart")
		}
		if len(c.Lines) == 0 {
			return ErrEmptyCart
		}

		policy, err := tx.Loyalty().Policy(ctx)
		if err != nil {
			return errors.Wrap(err, "load discount policy")
		}

		// The account row is locked so two checkouts racing on the same
		// customer cannot both redeem the same points.
		if err := tx.Loyalty().Ensure(ctx, customerID); err != nil {
			return errors.Wrap(err, "ensure loyalty account")
		}
		account, err := tx.Loyalty().GetForUpdate(ctx, customerID)
		if err != nil {
			return errors.Wrap(err, "load loyalty account")
		}

		discount := loyalty.EligibleDiscount(policy, account.Points, c.Total())

		o := &Order{
			ID:         uuid.New().String(),
			CustomerID: customerID,
			PickupTime: pickupTime,
			Status:     StatusPending,
			Discount:   discount,
			CreatedAt:  s.now(),
			Lines:      snapshotLines(c.Lines),
		}
		if err := tx.Orders().Create(ctx, o); err != nil {
			return errors.Wrap(err, "create order")
		}

		if discount.IsPositive() {
			if err := tx.Loyalty().Debit(ctx, customerID, policy.PointsRequired); err != nil {
				return errors.Wrap(err, "debit loyalty points")
			}
		}

		if err := tx.Carts().Clear(ctx, customerID); err != nil {
			return errors.Wrap(err, "clear cart")
		}

		placed = o
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.events.Publish(ctx, s.event(EventCreated, placed))
	return placed, nil
}

// UpdateStatus transitions an order to a new status. The persisted status is
// re-read under a row lock inside the same transaction, so an order that has
// left pending can never change again and the completion credit is applied
// exactly once even under concurrent submissions.
func (s *Service) UpdateStatus(ctx context.Context, id string, next Status) (*Order, error) {
	if !next.Valid() {
		return nil, ErrInvalidStatus
	}

	var (
		updated   *Order
		completed bool
	)
	err := s.store.InTx(ctx, func(tx Tx) error {
		o, err := tx.Orders().GetForUpdate(ctx, id)
		if err != nil {
			return err
		}

		if o.Status != StatusPending {
			return &StatusFrozenError{Current: o.Status}
		}

		if err := tx.Orders().SetStatus(ctx, id, next); err != nil {
			return errors.Wrap(err, "set status")
		}

		if next == StatusCompleted {
			points := loyalty.AccruedPoints(o.DiscountedTotal())
			if err := tx.Loyalty().Ensure(ctx, o.CustomerID); err != nil {
				return errors.Wrap(err, "ensure loyalty account")
			}
			if err := tx.Loyalty().Credit(ctx, o.CustomerID, points); err != nil {
				return errors.Wrap(err, "credit loyalty points")
			}
			completed = true
		}

		o.Status = next
		updated = o
		return nil
	})
	if err != nil {
		return nil, err
	}

	switch {
	case completed:
		s.events.Publish(ctx, s.event(EventCompleted, updated))
	case updated.Status == StatusCancelled:
		s.events.Publish(ctx, s.event(EventCancelled, updated))
	}
	return updated, nil
}

// Get returns an order with its lines.
func (s *Service) Get(ctx context.Context, id string) (*Order, error) {
	return s.store.Orders().GetByID(ctx, id)
}

// Delete permanently removes an order and its lines. Loyalty points already
// credited for the order are kept.
func (s *Service) Delete(ctx context.Context, id string) error {
	return s.store.Orders().Delete(ctx, id)
}

// ListByCustomer returns a customer's orders ordered by pickup time.
func (s *Service) ListByCustomer(ctx context.Context, customerID string) ([]Order, error) {
	return s.store.Orders().ListByCustomer(ctx, customerID)
}

// List returns all orders ordered by pickup time.
func (s *Service) List(ctx context.Context) ([]Order, error) {
	return s.store.Orders().List(ctx)
}

func (s *Service) event(typ string, o *Order) Event {
	return Event{
		Type:       typ,
		OrderID:    o.ID,
		CustomerID: o.CustomerID,
		Status:     o.Status,
		Total:      o.DiscountedTotal(),
		PickupTime: o.PickupTime,
		OccurredAt: s.now(),
	}
}

// snapshotLines freezes cart lines into order lines at their current prices.
func snapshotLines(lines []cart.Line) []Line {
	out := make([]Line, len(lines))
	for i, l := range lines {
		out[i] = Line{
			ID:        uuid.New().String(),
			DishID:    l.DishID,
			DishName:  l.DishName,
			Quantity:  l.Quantity,
			UnitPrice: l.UnitPrice,
		}
	}
	return out
}
