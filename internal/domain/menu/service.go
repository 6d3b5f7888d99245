package menu

import (
	"context"
	"sort"
	"strings"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
)

// Cache holds a rendered copy of the unfiltered menu listing. Implementations
// must tolerate being disabled (all methods become no-ops returning a miss).
type Cache interface {
	Get(ctx context.Context) ([]Dish, bool)
	Set(ctx context.Context, dishes []Dish)
	Invalidate(ctx context.Context)
}

// NopCache is a Cache that never hits, used when caching is disabled.
type NopCache struct{}

func (NopCache) Get(context.Context) ([]Dish, bool) { return nil, false }
func (NopCache) Set(context.Context, []Dish)        {}
func (NopCache) Invalidate(context.Context)         {}

// Service encapsulates catalog management and listing logic.
type Service struct {
	dishes Repository
	cache  Cache
}

// NewService creates a menu Service. Pass NopCache{} when caching is disabled.
func NewService(dishes Repository, cache Cache) *Service {
	if cache == nil {
		cache = NopCache{}
	}
	return &Service{dishes: dishes, cache: cache}
}

// List returns dishes matching the filter, sorted by course serving order and
// then by name. The unfiltered listing is served from cache when possible.
func (s *Service) List(ctx context.Context, f Filter) ([]Dish, error) {
	unfiltered := f.Course == "" && f.Diet == ""
	if unfiltered {
		if dishes, ok := s.cache.Get(ctx); ok {
			return dishes, nil
		}
	}

	dishes, err := s.dishes.List(ctx, f)
	if err != nil {
		return nil, errors.Wrap(err, "list dishes")
	}

	sort.SliceStable(dishes, func(i, j int) bool {
		if dishes[i].Course.Rank() != dishes[j].Course.Rank() {
			return dishes[i].Course.Rank() < dishes[j].Course.Rank()
		}
		return dishes[i].Name < dishes[j].Name
	})

	if unfiltered {
		s.cache.Set(ctx, dishes)
	}
	return dishes, nil
}

// Get returns a single dish by ID.
func (s *Service) Get(ctx context.Context, id string) (*Dish, error) {
	return s.dishes.GetByID(ctx, id)
}

// Create validates and persists a new dish, assigning it an ID.
func (s *Service) Create(ctx context.Context, d *Dish) error {
	if err := validate(d); err != nil {
		return err
	}
	if d.ID == "" {
		d.ID = uuid.New().String()
	}

	if err := s.dishes.Create(ctx, d); err != nil {
		if errors.Is(err, ErrDuplicateName) {
			return &ValidationError{Field: "name", Message: "a dish with this name already exists"}
		}
		return errors.Wrap(err, "create dish")
	}

	s.cache.Invalidate(ctx)
	return nil
}

// Update validates and persists changes to an existing dish.
func (s *Service) Update(ctx context.Context, d *Dish) error {
	if err := validate(d); err != nil {
		return err
	}

	if err := s.dishes.Update(ctx, d); err != nil {
		if errors.Is(err, ErrDuplicateName) {
			return &ValidationError{Field: "name", Message: "a dish with this name already exists"}
		}
		return err
	}

	s.cache.Invalidate(ctx)
	return nil
}

// Delete removes a dish from the catalog.
func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.dishes.Delete(ctx, id); err != nil {
		return err
	}
	s.cache.Invalidate(ctx)
	return nil
}

func validate(d *Dish) error {
	if strings.TrimSpace(d.Name) == "" {
		return &ValidationError{Field: "name", Message: "name is required"}
	}
	if d.Price.IsNegative() {
		return &ValidationError{Field: "price", Message: "price must not be negative"}
	}
	if !d.Course.Valid() {
		return &ValidationError{Field: "course", Message: "unknown course"}
	}
	if !d.Diet.Valid() {
		return &ValidationError{Field: "diet", Message: "unknown diet"}
	}
	return nil
}
