package menu

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when a requested dish does not exist.
var ErrNotFound = errors.New("dish not found")

// ErrDuplicateName is returned when another dish already uses the same name.
var ErrDuplicateName = errors.New("dish name already taken")

// Course identifies the menu course a dish belongs to. Courses have a fixed
// serving order used when listing the menu.
type Course string

const (
	CourseAntipasto Course = "antipasto"
	CoursePrimo     Course = "primo"
	CourseSecondo   Course = "secondo"
	CourseDessert   Course = "dessert"
)

// courseRank defines the serving order of courses on the menu.
var courseRank = map[Course]int{
	CourseAntipasto: 1,
	CoursePrimo:     2,
	CourseSecondo:   3,
	CourseDessert:   4,
}

// Rank returns the serving position of the course, or 0 for unknown courses.
func (c Course) Rank() int {
	return courseRank[c]
}

// Valid reports whether the course is one of the known menu courses.
func (c Course) Valid() bool {
	_, ok := courseRank[c]
	return ok
}

// Diet tags a dish with its main dietary classification.
type Diet string

const (
	DietCarne       Diet = "carne"
	DietPesce       Diet = "pesce"
	DietVegano      Diet = "vegano"
	DietVegetariano Diet = "vegetariano"
)

// Valid reports whether the diet tag is one of the known classifications.
func (d Diet) Valid() bool {
	switch d {
	case DietCarne, DietPesce, DietVegano, DietVegetariano:
		return true
	}
	return false
}

// Dish represents a sellable menu item.
type Dish struct {
	ID          string
	Name        string
	Description string
	Price       decimal.Decimal
	Course      Course
	Diet        Diet
	Photo       string
}

// ValidationError reports a field-level validation failure on dish input.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Filter narrows a menu listing. Zero values mean "all".
type Filter struct {
	Course Course
	Diet   Diet
}

// Repository defines persistence operations for the dish catalog.
type Repository interface {
	List(ctx context.Context, f Filter) ([]Dish, error)
	GetByID(ctx context.Context, id string) (*Dish, error)
	Create(ctx context.Context, d *Dish) error
	Update(ctx context.Context, d *Dish) error
	Delete(ctx context.Context, id string) error
}
