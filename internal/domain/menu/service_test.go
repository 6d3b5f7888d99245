package menu

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memRepo struct {
	dishes    []Dish
	listCalls int
	created   []*Dish
	updated   []*Dish
	deleted   []string
	createErr error
	updateErr error
}

func (m *memRepo) List(_ context.Context, f Filter) ([]Dish, error) {
	m.listCalls++
	var out []Dish
	for _, d := range m.dishes {
		if f.Course != "" && d.Course != f.Course {
			continue
		}
		if f.Diet != "" && d.Diet != f.Diet {
			continue
		}
		out = append(out, d)
	}
	return out, nil
}

func (m *memRepo) GetByID(_ context.Context, id string) (*Dish, error) {
	for _, d := range m.dishes {
		if d.ID == id {
			return &d, nil
		}
	}
	return nil, ErrNotFound
}

func (m *memRepo) Create(_ context.Context, d *Dish) error {
	if m.createErr != nil {
		return m.createErr
	}
	m.created = append(m.created, d)
	return nil
}

func (m *memRepo) Update(_ context.Context, d *Dish) error {
	if m.updateErr != nil {
		return m.updateErr
	}
	m.updated = append(m.updated, d)
	return nil
}

func (m *memRepo) Delete(_ context.Context, id string) error {
	m.deleted = append(m.deleted, id)
	return nil
}

type memCache struct {
	dishes      []Dish
	hit         bool
	sets        int
	invalidates int
}

func (c *memCache) Get(_ context.Context) ([]Dish, bool) {
	if !c.hit {
		return nil, false
	}
	return c.dishes, true
}

func (c *memCache) Set(_ context.Context, dishes []Dish) {
	c.dishes = dishes
	c.hit = true
	c.sets++
}

func (c *memCache) Invalidate(_ context.Context) {
	c.hit = false
	c.invalidates++
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func sampleMenu() []Dish {
	return []Dish{
		{ID: "d1", Name: "Tiramisu", Price: dec("5.50"), Course: CourseDessert, Diet: DietVegetariano},
		{ID: "d2", Name: "Branzino al forno", Price: dec("16.50"), Course: CourseSecondo, Diet: DietPesce},
		{ID: "d3", Name: "Bruschetta al pomodoro", Price: dec("4.50"), Course: CourseAntipasto, Diet: DietVegano},
		{ID: "d4", Name: "Carpaccio di manzo", Price: dec("9.00"), Course: CourseAntipasto, Diet: DietCarne},
		{ID: "d5", Name: "Tagliatelle al ragu", Price: dec("11.00"), Course: CoursePrimo, Diet: DietCarne},
	}
}

func TestList_CourseOrdering(t *testing.T) {
	repo := &memRepo{dishes: sampleMenu()}
	svc := NewService(repo, NopCache{})

	dishes, err := svc.List(context.Background(), Filter{})
	require.NoError(t, err)

	var got []string
	for _, d := range dishes {
		got = append(got, d.ID)
	}
	// Antipasti alphabetically, then primo, secondo, dessert.
	assert.Equal(t, []string{"d3", "d4", "d5", "d2", "d1"}, got)
}

func TestList_Filters(t *testing.T) {
	repo := &memRepo{dishes: sampleMenu()}
	svc := NewService(repo, NopCache{})

	dishes, err := svc.List(context.Background(), Filter{Course: CourseAntipasto})
	require.NoError(t, err)
	assert.Len(t, dishes, 2)

	dishes, err = svc.List(context.Background(), Filter{Course: CourseAntipasto, Diet: DietVegano})
	require.NoError(t, err)
	require.Len(t, dishes, 1)
	assert.Equal(t, "d3", dishes[0].ID)
}

func TestList_CachesUnfilteredOnly(t *testing.T) {
	repo := &memRepo{dishes: sampleMenu()}
	cache := &memCache{}
	svc := NewService(repo, cache)

	_, err := svc.List(context.Background(), Filter{})
	require.NoError(t, err)
	assert.Equal(t, 1, repo.listCalls)
	assert.Equal(t, 1, cache.sets)

	// Second unfiltered listing is served from cache.
	_, err = svc.List(context.Background(), Filter{})
	require.NoError(t, err)
	assert.Equal(t, 1, repo.listCalls)

	// Filtered listings bypass the cache entirely.
	_, err = svc.List(context.Background(), Filter{Diet: DietCarne})
	require.NoError(t, err)
	assert.Equal(t, 2, repo.listCalls)
	assert.Equal(t, 1, cache.sets)
}

func TestCreate_ValidationAndID(t *testing.T) {
	repo := &memRepo{}
	svc := NewService(repo, NopCache{})

	d := &Dish{Name: "Panna cotta", Price: dec("5.00"), Course: CourseDessert, Diet: DietVegetariano}
	require.NoError(t, svc.Create(context.Background(), d))
	assert.NotEmpty(t, d.ID)
	require.Len(t, repo.created, 1)
}

func TestCreate_Invalid(t *testing.T) {
	svc := NewService(&memRepo{}, NopCache{})

	tests := []struct {
		name  string
		dish  Dish
		field string
	}{
		{"missing name", Dish{Price: dec("1.00"), Course: CoursePrimo, Diet: DietCarne}, "name"},
		{"blank name", Dish{Name: "   ", Price: dec("1.00"), Course: CoursePrimo, Diet: DietCarne}, "name"},
		{"negative price", Dish{Name: "x", Price: dec("-1.00"), Course: CoursePrimo, Diet: DietCarne}, "price"},
		{"unknown course", Dish{Name: "x", Price: dec("1.00"), Course: "brunch", Diet: DietCarne}, "course"},
		{"unknown diet", Dish{Name: "x", Price: dec("1.00"), Course: CoursePrimo, Diet: "keto"}, "diet"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := svc.Create(context.Background(), &tt.dish)
			var vErr *ValidationError
			require.ErrorAs(t, err, &vErr)
			assert.Equal(t, tt.field, vErr.Field)
		})
	}
}

func TestCreate_DuplicateName(t *testing.T) {
	repo := &memRepo{createErr: ErrDuplicateName}
	svc := NewService(repo, NopCache{})

	err := svc.Create(context.Background(), &Dish{
		Name: "Tiramisu", Price: dec("5.50"), Course: CourseDessert, Diet: DietVegetariano,
	})

	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "name", vErr.Field)
}

func TestMutationsInvalidateCache(t *testing.T) {
	repo := &memRepo{dishes: sampleMenu()}
	cache := &memCache{}
	svc := NewService(repo, cache)

	_, err := svc.List(context.Background(), Filter{})
	require.NoError(t, err)
	require.True(t, cache.hit)

	require.NoError(t, svc.Create(context.Background(), &Dish{
		Name: "Panna cotta", Price: dec("5.00"), Course: CourseDessert, Diet: DietVegetariano,
	}))
	assert.False(t, cache.hit)
	assert.Equal(t, 1, cache.invalidates)

	_, err = svc.List(context.Background(), Filter{})
	require.NoError(t, err)
	require.NoError(t, svc.Update(context.Background(), &Dish{
		ID: "d1", Name: "Tiramisu", Price: dec("6.00"), Course: CourseDessert, Diet: DietVegetariano,
	}))
	require.NoError(t, svc.Delete(context.Background(), "d1"))
	assert.Equal(t, 3, cache.invalidates)
}

func TestCourseRank(t *testing.T) {
	assert.Less(t, CourseAntipasto.Rank(), CoursePrimo.Rank())
	assert.Less(t, CoursePrimo.Rank(), CourseSecondo.Rank())
	assert.Less(t, CourseSecondo.Rank(), CourseDessert.Rank())
	assert.Zero(t, Course("brunch").Rank())
}
