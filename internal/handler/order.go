package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	qrcode "github.com/skip2/go-qrcode"

	"github.com/mfalcone/wasabi-takeaway/internal/domain/order"
)

type orderLineResponse struct {
	ID        string  `json:"id"`
	DishID    string  `json:"dishId"`
	DishName  string  `json:"dishName"`
	Quantity  int     `json:"quantity"`
	UnitPrice float64 `json:"unitPrice"`
	Subtotal  float64 `json:"subtotal"`
}

type orderResponse struct {
	ID              string              `json:"id"`
	CustomerID      string              `json:"customerId"`
	PickupTime      time.Time           `json:"pickupTime"`
	Status          string              `json:"status"`
	Discount        float64             `json:"discount"`
	Total           *float64            `json:"total,omitempty"`
	DiscountedTotal *float64            `json:"discountedTotal,omitempty"`
	CreatedAt       time.Time           `json:"createdAt"`
	Lines           []orderLineResponse `json:"lines,omitempty"`
}

type checkoutRequest struct {
	PickupTime time.Time `json:"pickupTime"`
}

type statusRequest struct {
	Status string `json:"status"`
}

// checkout converts the caller's cart into a pending order.
func (h *Handler) checkout(w http.ResponseWriter, r *http.Request) {
	id, _ := IdentityFromContext(r.Context())

	var req checkoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.PickupTime.IsZero() {
		writeError(w, http.StatusBadRequest, "pickupTime is required")
		return
	}

	o, err := h.orders.Checkout(r.Context(), id.CustomerID, req.PickupTime)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, orderToResponse(o, true))
}

func (h *Handler) listOrders(w http.ResponseWriter, r *http.Request) {
	id, _ := IdentityFromContext(r.Context())

	var (
		orders []order.Order
		err    error
	)
	if id.IsStaff() {
		orders, err = h.orders.List(r.Context())
	} else {
		orders, err = h.orders.ListByCustomer(r.Context(), id.CustomerID)
	}
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	out := make([]orderResponse, len(orders))
	for i := range orders {
		out[i] = orderToResponse(&orders[i], false)
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	o, ok := h.loadOwnedOrder(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, orderToResponse(o, true))
}

// orderQR renders the order ID as a QR code PNG for the pickup desk.
func (h *Handler) orderQR(w http.ResponseWriter, r *http.Request) {
	o, ok := h.loadOwnedOrder(w, r)
	if !ok {
		return
	}

	png, err := qrcode.Encode(o.ID, qrcode.Medium, 256)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(png)
}

func (h *Handler) updateOrderStatus(w http.ResponseWriter, r *http.Request) {
	var req statusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	o, err := h.orders.UpdateStatus(r.Context(), mux.Vars(r)["id"], order.Status(req.Status))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, orderToResponse(o, true))
}

// deleteOrder removes an order from the books entirely, for staff cleaning up
// mistaken or abandoned orders.
func (h *Handler) deleteOrder(w http.ResponseWriter, r *http.Request) {
	if err := h.orders.Delete(r.Context(), mux.Vars(r)["id"]); err != nil {
		writeDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// loadOwnedOrder fetches the order and enforces ownership: customers only see
// their own orders, and a foreign order is indistinguishable from a missing one.
func (h *Handler) loadOwnedOrder(w http.ResponseWriter, r *http.Request) (*order.Order, bool) {
	id, _ := IdentityFromContext(r.Context())

	o, err := h.orders.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeDomainError(w, r, err)
		return nil, false
	}
	if !id.IsStaff() && o.CustomerID != id.CustomerID {
		writeError(w, http.StatusNotFound, order.ErrNotFound.Error())
		return nil, false
	}
	return o, true
}

func orderToResponse(o *order.Order, withLines bool) orderResponse {
	resp := orderResponse{
		ID:         o.ID,
		CustomerID: o.CustomerID,
		PickupTime: o.PickupTime,
		Status:     string(o.Status),
		Discount:   o.Discount.InexactFloat64(),
		CreatedAt:  o.CreatedAt,
	}
	// Totals are derived from lines, so listings (which skip line loading)
	// leave them out.
	if withLines {
		total := o.Total().InexactFloat64()
		discounted := o.DiscountedTotal().InexactFloat64()
		resp.Total = &total
		resp.DiscountedTotal = &discounted
		resp.Lines = make([]orderLineResponse, len(o.Lines))
		for i, l := range o.Lines {
			resp.Lines[i] = orderLineResponse{
				ID:        l.ID,
				DishID:    l.DishID,
				DishName:  l.DishName,
				Quantity:  l.Quantity,
				UnitPrice: l.UnitPrice.InexactFloat64(),
				Subtotal:  l.Subtotal().InexactFloat64(),
			}
		}
	}
	return resp
}
