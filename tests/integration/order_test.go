//go:build integration

package integration

import (
	"context"
	"io"
	"math"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"
)

func futurePickup() time.Time {
	return time.Now().Add(2 * time.Hour).UTC().Truncate(time.Second)
}

// clearCart empties the shared customer cart so tests do not leak lines into
// each other.
func clearCart(t *testing.T) {
	t.Helper()

	resp := doReq(t, http.MethodGet, "/api/cart", customerKey, nil)
	c := decodeJSON[cartResponse](t, resp)
	resp.Body.Close()

	for _, l := range c.Lines {
		r := doReq(t, http.MethodDelete, "/api/cart/dishes/"+l.DishID, customerKey, nil)
		r.Body.Close()
	}
}

func findDish(t *testing.T, name string) dishResponse {
	t.Helper()

	resp := doReq(t, http.MethodGet, "/api/dishes", customerKey, nil)
	defer resp.Body.Close()
	dishes := decodeJSON[[]dishResponse](t, resp)

	for _, d := range dishes {
		if d.Name == name {
			return d
		}
	}
	t.Fatalf("seeded dish %q not found", name)
	return dishResponse{}
}

func loyaltyPoints(t *testing.T) int64 {
	t.Helper()

	resp := doReq(t, http.MethodGet, "/api/loyalty", customerKey, nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("loyalty status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
	return decodeJSON[accountResponse](t, resp).Points
}

func TestCartFlow(t *testing.T) {
	clearCart(t)

	tiramisu := findDish(t, "Tiramisu")
	bruschetta := findDish(t, "Bruschetta al pomodoro")

	// Add tiramisu twice and bruschetta once.
	for _, dishID := range []string{tiramisu.ID, tiramisu.ID, bruschetta.ID} {
		resp := doReq(t, http.MethodPost, "/api/cart/dishes/"+dishID, customerKey, nil)
		resp.Body.Close()
		if resp.StatusCode != http.StatusNoContent {
			t.Fatalf("add dish status = %d, want %d", resp.StatusCode, http.StatusNoContent)
		}
	}

	resp := doReq(t, http.MethodGet, "/api/cart", customerKey, nil)
	c := decodeJSON[cartResponse](t, resp)
	resp.Body.Close()

	if len(c.Lines) != 2 {
		t.Fatalf("len(lines) = %d, want 2", len(c.Lines))
	}
	wantTotal := 2*tiramisu.Price + bruschetta.Price
	if math.Abs(c.Total-wantTotal) > 1e-9 {
		t.Errorf("total = %v, want %v", c.Total, wantTotal)
	}

	var tiramisuLine cartLineResponse
	for _, l := range c.Lines {
		if l.DishID == tiramisu.ID {
			tiramisuLine = l
		}
	}
	if tiramisuLine.Quantity != 2 {
		t.Errorf("tiramisu quantity = %d, want 2", tiramisuLine.Quantity)
	}

	// Bump the tiramisu line to 3.
	resp = doReq(t, http.MethodPatch, "/api/cart/lines/"+tiramisuLine.ID, customerKey,
		map[string]any{"quantity": 3})
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("patch status = %d, want %d", resp.StatusCode, http.StatusNoContent)
	}

	// Zero quantity removes the line.
	resp = doReq(t, http.MethodPatch, "/api/cart/lines/"+tiramisuLine.ID, customerKey,
		map[string]any{"quantity": 0})
	resp.Body.Close()

	resp = doReq(t, http.MethodGet, "/api/cart", customerKey, nil)
	c = decodeJSON[cartResponse](t, resp)
	resp.Body.Close()

	if len(c.Lines) != 1 || c.Lines[0].DishID != bruschetta.ID {
		t.Fatalf("cart after removals = %+v, want only bruschetta", c.Lines)
	}

	clearCart(t)
}

func TestCartStaffForbidden(t *testing.T) {
	resp := doReq(t, http.MethodGet, "/api/cart", staffKey, nil)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusForbidden)
	}
}

func TestAddUnknownDish(t *testing.T) {
	resp := doReq(t, http.MethodPost, "/api/cart/dishes/no-such-dish", customerKey, nil)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusNotFound)
	}
}

func TestCheckoutEmptyCart(t *testing.T) {
	clearCart(t)

	resp := doReq(t, http.MethodPost, "/api/checkout", customerKey,
		map[string]any{"pickupTime": futurePickup()})
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusConflict)
	}

	body := decodeJSON[struct {
		Redirect string `json:"redirect"`
	}](t, resp)
	if body.Redirect != "/dishes" {
		t.Errorf("redirect = %q, want /dishes", body.Redirect)
	}
}

func TestCheckoutPastPickupTime(t *testing.T) {
	clearCart(t)
	dish := findDish(t, "Tiramisu")
	resp := doReq(t, http.MethodPost, "/api/cart/dishes/"+dish.ID, customerKey, nil)
	resp.Body.Close()

	resp = doReq(t, http.MethodPost, "/api/checkout", customerKey,
		map[string]any{"pickupTime": time.Now().Add(-time.Hour).UTC()})
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusBadRequest)
	}

	clearCart(t)
}

func TestOrderLifecycle(t *testing.T) {
	clearCart(t)
	dish := findDish(t, "Branzino al forno")

	resp := doReq(t, http.MethodPost, "/api/cart/dishes/"+dish.ID, customerKey, nil)
	resp.Body.Close()

	pointsBefore := loyaltyPoints(t)
	pickup := futurePickup()

	resp = doReq(t, http.MethodPost, "/api/checkout", customerKey,
		map[string]any{"pickupTime": pickup})
	if resp.StatusCode != http.StatusCreated {
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		t.Fatalf("checkout status = %d, want %d (%s)", resp.StatusCode, http.StatusCreated, body)
	}
	placed := decodeJSON[orderResponse](t, resp)
	resp.Body.Close()

	if placed.Status != "pending" {
		t.Errorf("status = %q, want pending", placed.Status)
	}
	if len(placed.Lines) != 1 || placed.Lines[0].DishID != dish.ID {
		t.Fatalf("order lines = %+v, want single %s line", placed.Lines, dish.Name)
	}
	if placed.Total == nil || math.Abs(*placed.Total-dish.Price) > 1e-9 {
		t.Errorf("total = %v, want %v", placed.Total, dish.Price)
	}
	if placed.DiscountedTotal == nil {
		t.Fatal("discountedTotal missing")
	}
	paid := *placed.DiscountedTotal

	// Checkout clears the cart.
	resp = doReq(t, http.MethodGet, "/api/cart", customerKey, nil)
	c := decodeJSON[cartResponse](t, resp)
	resp.Body.Close()
	if len(c.Lines) != 0 {
		t.Errorf("cart not cleared after checkout: %+v", c.Lines)
	}

	// Snapshot isolation: a staff price change must not touch the order.
	resp = doReq(t, http.MethodPut, "/api/dishes/"+dish.ID, staffKey, map[string]any{
		"name":        dish.Name,
		"description": dish.Description,
		"price":       dish.Price + 10,
		"course":      dish.Course,
		"diet":        dish.Diet,
	})
	resp.Body.Close()
	t.Cleanup(func() {
		r := doReq(t, http.MethodPut, "/api/dishes/"+dish.ID, staffKey, map[string]any{
			"name":        dish.Name,
			"description": dish.Description,
			"price":       dish.Price,
			"course":      dish.Course,
			"diet":        dish.Diet,
		})
		r.Body.Close()
	})

	resp = doReq(t, http.MethodGet, "/api/orders/"+placed.ID, customerKey, nil)
	got := decodeJSON[orderResponse](t, resp)
	resp.Body.Close()
	if math.Abs(got.Lines[0].UnitPrice-dish.Price) > 1e-9 {
		t.Errorf("snapshot price = %v, want %v", got.Lines[0].UnitPrice, dish.Price)
	}

	// Customers cannot change order status.
	resp = doReq(t, http.MethodPatch, "/api/orders/"+placed.ID+"/status", customerKey,
		map[string]any{"status": "completed"})
	resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("customer status change = %d, want %d", resp.StatusCode, http.StatusForbidden)
	}

	// Staff completes the order; loyalty points accrue on the paid amount.
	resp = doReq(t, http.MethodPatch, "/api/orders/"+placed.ID+"/status", staffKey,
		map[string]any{"status": "completed"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("complete status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
	completed := decodeJSON[orderResponse](t, resp)
	resp.Body.Close()
	if completed.Status != "completed" {
		t.Errorf("status = %q, want completed", completed.Status)
	}

	wantAccrued := int64(math.Floor(paid))
	if diff := loyaltyPoints(t) - pointsBefore; diff != wantAccrued {
		t.Errorf("points accrued = %d, want %d", diff, wantAccrued)
	}

	// Terminal orders are frozen, even for the same status.
	for _, status := range []string{"cancelled", "pending", "completed"} {
		resp = doReq(t, http.MethodPatch, "/api/orders/"+placed.ID+"/status", staffKey,
			map[string]any{"status": status})
		resp.Body.Close()
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("transition to %q = %d, want %d", status, resp.StatusCode, http.StatusBadRequest)
		}
	}

	// The second attempt must not credit points again.
	if diff := loyaltyPoints(t) - pointsBefore; diff != wantAccrued {
		t.Errorf("points after frozen transitions = %d, want %d", diff, wantAccrued)
	}
}

func TestConcurrentCompletionCreditsOnce(t *testing.T) {
	clearCart(t)
	dish := findDish(t, "Sorbetto al limone")

	resp := doReq(t, http.MethodPost, "/api/cart/dishes/"+dish.ID, customerKey, nil)
	resp.Body.Close()

	pointsBefore := loyaltyPoints(t)

	resp = doReq(t, http.MethodPost, "/api/checkout", customerKey,
		map[string]any{"pickupTime": futurePickup()})
	placed := decodeJSON[orderResponse](t, resp)
	resp.Body.Close()
	if placed.DiscountedTotal == nil {
		t.Fatal("discountedTotal missing")
	}
	paid := *placed.DiscountedTotal

	// Race several identical completion requests. The row lock must let
	// exactly one through; the rest see a frozen order.
	const workers = 4
	var (
		wg    sync.WaitGroup
		start = make(chan struct{})
		codes = make(chan int, workers)
		fails = make(chan error, workers)
	)
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			req, err := http.NewRequestWithContext(context.Background(), http.MethodPatch,
				baseURL+"/api/orders/"+placed.ID+"/status",
				strings.NewReader(`{"status": "completed"}`))
			if err != nil {
				fails <- err
				return
			}
			req.Header.Set("Content-Type", "application/json")
			req.Header.Set("api_key", staffKey)

			<-start
			r, err := httpClient.Do(req)
			if err != nil {
				fails <- err
				return
			}
			r.Body.Close()
			codes <- r.StatusCode
		}()
	}
	close(start)
	wg.Wait()
	close(codes)
	close(fails)

	for err := range fails {
		t.Fatalf("completion request: %v", err)
	}

	var completed, frozen int
	for code := range codes {
		switch code {
		case http.StatusOK:
			completed++
		case http.StatusBadRequest:
			frozen++
		default:
			t.Errorf("unexpected status %d", code)
		}
	}
	if completed != 1 {
		t.Errorf("successful completions = %d, want 1", completed)
	}
	if frozen != workers-1 {
		t.Errorf("frozen rejections = %d, want %d", frozen, workers-1)
	}

	wantAccrued := int64(math.Floor(paid))
	if diff := loyaltyPoints(t) - pointsBefore; diff != wantAccrued {
		t.Errorf("points accrued = %d, want %d (credited exactly once)", diff, wantAccrued)
	}
}

func TestCancelledOrderDoesNotAccrue(t *testing.T) {
	clearCart(t)
	dish := findDish(t, "Panna cotta")

	resp := doReq(t, http.MethodPost, "/api/cart/dishes/"+dish.ID, customerKey, nil)
	resp.Body.Close()

	pointsBefore := loyaltyPoints(t)

	resp = doReq(t, http.MethodPost, "/api/checkout", customerKey,
		map[string]any{"pickupTime": futurePickup()})
	placed := decodeJSON[orderResponse](t, resp)
	resp.Body.Close()

	resp = doReq(t, http.MethodPatch, "/api/orders/"+placed.ID+"/status", staffKey,
		map[string]any{"status": "cancelled"})
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("cancel status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	if got := loyaltyPoints(t); got != pointsBefore {
		t.Errorf("points = %d, want unchanged %d", got, pointsBefore)
	}
}

func TestUpdateOrderStatusUnknown(t *testing.T) {
	clearCart(t)
	dish := findDish(t, "Tiramisu")

	resp := doReq(t, http.MethodPost, "/api/cart/dishes/"+dish.ID, customerKey, nil)
	resp.Body.Close()

	resp = doReq(t, http.MethodPost, "/api/checkout", customerKey,
		map[string]any{"pickupTime": futurePickup()})
	placed := decodeJSON[orderResponse](t, resp)
	resp.Body.Close()

	resp = doReq(t, http.MethodPatch, "/api/orders/"+placed.ID+"/status", staffKey,
		map[string]any{"status": "burnt"})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusBadRequest)
	}
}

func TestListOrders(t *testing.T) {
	resp := doReq(t, http.MethodGet, "/api/orders", customerKey, nil)
	orders := decodeJSON[[]orderResponse](t, resp)
	resp.Body.Close()

	for _, o := range orders {
		if o.CustomerID != "integration-customer" {
			t.Errorf("customer listing leaked order for %q", o.CustomerID)
		}
		// Listings skip line loading, so totals are omitted.
		if o.Total != nil {
			t.Errorf("order %s listing carries total", o.ID)
		}
	}

	resp = doReq(t, http.MethodGet, "/api/orders", staffKey, nil)
	staffOrders := decodeJSON[[]orderResponse](t, resp)
	resp.Body.Close()

	if len(staffOrders) < len(orders) {
		t.Errorf("staff sees %d orders, customer sees %d", len(staffOrders), len(orders))
	}
}

func TestOrderQR(t *testing.T) {
	clearCart(t)
	dish := findDish(t, "Tiramisu")

	resp := doReq(t, http.MethodPost, "/api/cart/dishes/"+dish.ID, customerKey, nil)
	resp.Body.Close()

	resp = doReq(t, http.MethodPost, "/api/checkout", customerKey,
		map[string]any{"pickupTime": futurePickup()})
	placed := decodeJSON[orderResponse](t, resp)
	resp.Body.Close()

	resp = doReq(t, http.MethodGet, "/api/orders/"+placed.ID+"/qr", customerKey, nil)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "image/png" {
		t.Errorf("Content-Type = %q, want image/png", ct)
	}
	png, err := io.ReadAll(resp.Body)
	if err != nil || len(png) == 0 {
		t.Fatalf("empty QR body (err: %v)", err)
	}
}

func TestStaffDeletesOrder(t *testing.T) {
	clearCart(t)
	dish := findDish(t, "Insalata caprese")

	resp := doReq(t, http.MethodPost, "/api/cart/dishes/"+dish.ID, customerKey, nil)
	resp.Body.Close()

	resp = doReq(t, http.MethodPost, "/api/checkout", customerKey,
		map[string]any{"pickupTime": futurePickup()})
	placed := decodeJSON[orderResponse](t, resp)
	resp.Body.Close()

	// Customers cannot delete orders, not even their own.
	resp = doReq(t, http.MethodDelete, "/api/orders/"+placed.ID, customerKey, nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("customer delete status = %d, want %d", resp.StatusCode, http.StatusForbidden)
	}

	resp = doReq(t, http.MethodDelete, "/api/orders/"+placed.ID, staffKey, nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("staff delete status = %d, want %d", resp.StatusCode, http.StatusNoContent)
	}

	resp = doReq(t, http.MethodGet, "/api/orders/"+placed.ID, staffKey, nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("get deleted order status = %d, want %d", resp.StatusCode, http.StatusNotFound)
	}
}

func TestLoyaltyPolicy(t *testing.T) {
	resp := doReq(t, http.MethodGet, "/api/loyalty/policy", customerKey, nil)
	orig := decodeJSON[policyResponse](t, resp)
	resp.Body.Close()

	// Customers cannot change the policy.
	resp = doReq(t, http.MethodPut, "/api/loyalty/policy", customerKey,
		map[string]any{"pointsRequired": 1, "discountValue": 99.0})
	resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("customer policy update = %d, want %d", resp.StatusCode, http.StatusForbidden)
	}

	resp = doReq(t, http.MethodPut, "/api/loyalty/policy", staffKey,
		map[string]any{"pointsRequired": 50, "discountValue": 2.50})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("staff policy update = %d, want %d", resp.StatusCode, http.StatusOK)
	}
	resp.Body.Close()

	t.Cleanup(func() {
		r := doReq(t, http.MethodPut, "/api/loyalty/policy", staffKey,
			map[string]any{"pointsRequired": orig.PointsRequired, "discountValue": orig.DiscountValue})
		r.Body.Close()
	})

	resp = doReq(t, http.MethodGet, "/api/loyalty/policy", staffKey, nil)
	got := decodeJSON[policyResponse](t, resp)
	resp.Body.Close()

	if got.PointsRequired != 50 || got.DiscountValue != 2.50 {
		t.Errorf("policy = %+v, want {50 2.5}", got)
	}
}
