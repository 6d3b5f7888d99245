package cart

import (
	"context"

	"github.com/go-faster/errors"

	"github.com/mfalcone/wasabi-takeaway/internal/domain/menu"
)

// Service encapsulates cart mutation and viewing logic for a single customer.
type Service struct {
	carts  Repository
	dishes menu.Repository
}

// NewService creates a cart Service.
func NewService(carts Repository, dishes menu.Repository) *Service {
	return &Service{carts: carts, dishes: dishes}
}

// View returns the customer's cart, creating the cart row on first access.
func (s *Service) View(ctx context.Context, customerID string) (*Cart, error) {
	if err := s.carts.Ensure(ctx, customerID); err != nil {
		return nil, errors.Wrap(err, "ensure cart")
	}
	return s.carts.Get(ctx, customerID)
}

// AddDish puts one unit of the dish into the customer's cart. Adding a dish
// already present increments its quantity by one.
func (s *Service) AddDish(ctx context.Context, customerID, dishID string) error {
	// Verify the dish exists before touching the cart: an unknown dish is a
	// not-found, not a foreign key violation.
	if _, err := s.dishes.GetByID(ctx, dishID); err != nil {
		return err
	}
	if err := s.carts.Ensure(ctx, customerID); err != nil {
		return errors.Wrap(err, "ensure cart")
	}
	return s.carts.UpsertLine(ctx, customerID, dishID)
}

// RemoveDish deletes the dish's line from the cart. Removing a dish that is
// not in the cart is a no-op.
func (s *Service) RemoveDish(ctx context.Context, customerID, dishID string) error {
	if _, err := s.dishes.GetByID(ctx, dishID); err != nil {
		return err
	}
	return s.carts.DeleteLineByDish(ctx, customerID, dishID)
}

// UpdateQuantity sets a cart line's quantity. A quantity below one removes
// the line. The line must belong to the acting customer.
func (s *Service) UpdateQuantity(ctx context.Context, customerID, lineID string, quantity int) error {
	if quantity < 1 {
		return s.carts.DeleteLine(ctx, customerID, lineID)
	}
	return s.carts.SetLineQuantity(ctx, customerID, lineID, quantity)
}
