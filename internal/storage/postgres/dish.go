package postgres

import (
	"fmt"

	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"

	"github.com/mfalcone/wasabi-takeaway/internal/domain/menu"
)

const (
	listDishesSQL = `SELECT id, name, description, price, course, diet, photo
		FROM dishes
		WHERE ($1 = '' OR course = $1) AND ($2 = '' OR diet = $2)
		ORDER BY name`

	getDishByIDSQL = `SELECT id, name, description, price, course, diet, photo
		FROM dishes WHERE id = $1`

	insertDishSQL = `INSERT INTO dishes (id, name, description, price, course, diet, photo)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	updateDishSQL = `UPDATE dishes
		SET name = $2, description = $3, price = $4, course = $5, diet = $6, photo = $7
		WHERE id = $1`

	deleteDishSQL = `DELETE FROM dishes WHERE id = $1`
)

var _ menu.Repository = (*DishRepository)(nil)

// DishRepository implements menu.Repository backed by PostgreSQL.
type DishRepository struct {
	db Querier
}

// NewDishRepository returns a DishRepository that uses the given querier.
func NewDishRepository(db Querier) *DishRepository {
	return &DishRepository{db: db}
}

// List returns dishes matching the filter, ordered by name. Course ordering
// is applied by the menu service.
func (r *DishRepository) List(ctx context.Context, f menu.Filter) ([]menu.Dish, error) {
	rows, err := r.db.Query(ctx, listDishesSQL, string(f.Course), string(f.Diet))
	if err != nil {
		return nil, fmt.Errorf("listing dishes: %w", err)
	}
	return pgx.CollectRows(rows, scanDish)
}

// GetByID returns a single dish by its identifier.
func (r *DishRepository) GetByID(ctx context.Context, id string) (*menu.Dish, error) {
	rows, err := r.db.Query(ctx, getDishByIDSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting dish %q: %w", id, err)
	}

	d, err := pgx.CollectExactlyOneRow(rows, scanDish)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, menu.ErrNotFound
		}
		return nil, fmt.Errorf("getting dish %q: %w", id, err)
	}
	return &d, nil
}

// Create inserts a new dish. A unique-index violation on the name maps to
// menu.ErrDuplicateName.
func (r *DishRepository) Create(ctx context.Context, d *menu.Dish) error {
	_, err := r.db.Exec(ctx, insertDishSQL,
		d.ID, d.Name, d.Description, d.Price, string(d.Course), string(d.Diet), d.Photo,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return menu.ErrDuplicateName
		}
		return fmt.Errorf("creating dish %q: %w", d.Name, err)
	}
	return nil
}

// Update rewrites an existing dish, with the same duplicate-name mapping as
// Create. Updating a missing dish returns menu.ErrNotFound.
func (r *DishRepository) Update(ctx context.Context, d *menu.Dish) error {
	tag, err := r.db.Exec(ctx, updateDishSQL,
		d.ID, d.Name, d.Description, d.Price, string(d.Course), string(d.Diet), d.Photo,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return menu.ErrDuplicateName
		}
		return fmt.Errorf("updating dish %q: %w", d.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return menu.ErrNotFound
	}
	return nil
}

// Delete removes a dish. Deleting a missing dish returns menu.ErrNotFound.
func (r *DishRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, deleteDishSQL, id)
	if err != nil {
		return fmt.Errorf("deleting dish %q: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return menu.ErrNotFound
	}
	return nil
}

func scanDish(row pgx.CollectableRow) (menu.Dish, error) {
	var (
		d      menu.Dish
		price  decimal.Decimal
		course string
		diet   string
	)
	err := row.Scan(&d.ID, &d.Name, &d.Description, &price, &course, &diet, &d.Photo)
	d.Price = price
	d.Course = menu.Course(course)
	d.Diet = menu.Diet(diet)
	return d, err
}

// isUniqueViolation reports whether err is a PostgreSQL unique-index
// violation (SQLSTATE 23505).
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
