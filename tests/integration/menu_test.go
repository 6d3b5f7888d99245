//go:build integration

package integration

import (
	"net/http"
	"testing"
)

func TestMenuRequiresAPIKey(t *testing.T) {
	resp := doGet(t, "/api/dishes")
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusUnauthorized)
	}
}

func TestListDishes(t *testing.T) {
	resp := doReq(t, http.MethodGet, "/api/dishes", customerKey, nil)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	dishes := decodeJSON[[]dishResponse](t, resp)
	if len(dishes) != seededCount {
		t.Fatalf("len(dishes) = %d, want %d", len(dishes), seededCount)
	}

	// Course ordering: antipasti first, desserts last.
	rank := map[string]int{"antipasto": 0, "primo": 1, "secondo": 2, "dessert": 3}
	for i := 1; i < len(dishes); i++ {
		if rank[dishes[i-1].Course] > rank[dishes[i].Course] {
			t.Fatalf("dishes not ordered by course: %q (%s) before %q (%s)",
				dishes[i-1].Name, dishes[i-1].Course, dishes[i].Name, dishes[i].Course)
		}
	}

	for _, d := range dishes {
		if d.ID == "" || d.Name == "" {
			t.Errorf("dish missing id or name: %+v", d)
		}
		if d.Price <= 0 {
			t.Errorf("dish %q has non-positive price %v", d.Name, d.Price)
		}
	}
}

func TestListDishesFiltered(t *testing.T) {
	resp := doReq(t, http.MethodGet, "/api/dishes?course=dessert", customerKey, nil)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	dishes := decodeJSON[[]dishResponse](t, resp)
	if len(dishes) == 0 {
		t.Fatal("no desserts in seeded menu")
	}
	for _, d := range dishes {
		if d.Course != "dessert" {
			t.Errorf("dish %q has course %q, want dessert", d.Name, d.Course)
		}
	}

	resp = doReq(t, http.MethodGet, "/api/dishes?diet=vegano", customerKey, nil)
	defer resp.Body.Close()

	vegan := decodeJSON[[]dishResponse](t, resp)
	for _, d := range vegan {
		if d.Diet != "vegano" {
			t.Errorf("dish %q has diet %q, want vegano", d.Name, d.Diet)
		}
	}
}

func TestGetDish(t *testing.T) {
	listResp := doReq(t, http.MethodGet, "/api/dishes", customerKey, nil)
	dishes := decodeJSON[[]dishResponse](t, listResp)
	listResp.Body.Close()
	if len(dishes) == 0 {
		t.Fatal("empty menu")
	}

	resp := doReq(t, http.MethodGet, "/api/dishes/"+dishes[0].ID, customerKey, nil)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	got := decodeJSON[dishResponse](t, resp)
	if got.ID != dishes[0].ID || got.Name != dishes[0].Name {
		t.Errorf("got %+v, want %+v", got, dishes[0])
	}
}

func TestGetDishNotFound(t *testing.T) {
	resp := doReq(t, http.MethodGet, "/api/dishes/no-such-dish", customerKey, nil)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusNotFound)
	}

	errResp := decodeJSON[errorResponse](t, resp)
	if errResp.Code != http.StatusNotFound {
		t.Errorf("error code = %d, want %d", errResp.Code, http.StatusNotFound)
	}
}

func TestDishLifecycleStaffOnly(t *testing.T) {
	newDish := map[string]any{
		"name":        "Integration spritz",
		"description": "Test aperitivo",
		"price":       7.50,
		"course":      "antipasto",
		"diet":        "vegano",
	}

	// Customers cannot create dishes.
	resp := doReq(t, http.MethodPost, "/api/dishes", customerKey, newDish)
	resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("customer create status = %d, want %d", resp.StatusCode, http.StatusForbidden)
	}

	resp = doReq(t, http.MethodPost, "/api/dishes", staffKey, newDish)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create status = %d, want %d", resp.StatusCode, http.StatusCreated)
	}
	created := decodeJSON[dishResponse](t, resp)
	resp.Body.Close()
	if created.ID == "" {
		t.Fatal("created dish has no id")
	}

	// Update the price.
	update := newDish
	update["price"] = 8.00
	resp = doReq(t, http.MethodPut, "/api/dishes/"+created.ID, staffKey, update)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("update status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
	updated := decodeJSON[dishResponse](t, resp)
	resp.Body.Close()
	if updated.Price != 8.00 {
		t.Errorf("updated price = %v, want 8.00", updated.Price)
	}

	resp = doReq(t, http.MethodDelete, "/api/dishes/"+created.ID, staffKey, nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("delete status = %d, want %d", resp.StatusCode, http.StatusNoContent)
	}

	resp = doReq(t, http.MethodGet, "/api/dishes/"+created.ID, customerKey, nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("get deleted status = %d, want %d", resp.StatusCode, http.StatusNotFound)
	}
}

func TestCreateDishValidation(t *testing.T) {
	tests := []struct {
		name string
		body map[string]any
	}{
		{"missing name", map[string]any{"price": 5.0, "course": "primo", "diet": "vegano"}},
		{"negative price", map[string]any{"name": "Bad", "price": -1.0, "course": "primo", "diet": "vegano"}},
		{"unknown course", map[string]any{"name": "Bad", "price": 5.0, "course": "brunch", "diet": "vegano"}},
		{"unknown diet", map[string]any{"name": "Bad", "price": 5.0, "course": "primo", "diet": "keto"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := doReq(t, http.MethodPost, "/api/dishes", staffKey, tt.body)
			defer resp.Body.Close()

			if resp.StatusCode != http.StatusBadRequest {
				t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusBadRequest)
			}
		})
	}
}
