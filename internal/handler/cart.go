package handler

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/mfalcone/wasabi-takeaway/internal/domain/cart"
)

type cartLineResponse struct {
	ID        string  `json:"id"`
	DishID    string  `json:"dishId"`
	DishName  string  `json:"dishName"`
	UnitPrice float64 `json:"unitPrice"`
	Quantity  int     `json:"quantity"`
	Subtotal  float64 `json:"subtotal"`
}

type cartResponse struct {
	Lines []cartLineResponse `json:"lines"`
	Total float64            `json:"total"`
}

func (h *Handler) viewCart(w http.ResponseWriter, r *http.Request) {
	id, _ := IdentityFromContext(r.Context())

	c, err := h.carts.View(r.Context(), id.CustomerID)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cartToResponse(c))
}

func (h *Handler) addToCart(w http.ResponseWriter, r *http.Request) {
	id, _ := IdentityFromContext(r.Context())

	if err := h.carts.AddDish(r.Context(), id.CustomerID, mux.Vars(r)["dishId"]); err != nil {
		writeDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) removeFromCart(w http.ResponseWriter, r *http.Request) {
	id, _ := IdentityFromContext(r.Context())

	if err := h.carts.RemoveDish(r.Context(), id.CustomerID, mux.Vars(r)["dishId"]); err != nil {
		writeDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// updateCartLine sets a line's quantity. A malformed or non-numeric quantity
// is deliberately a silent no-op, not an error.
func (h *Handler) updateCartLine(w http.ResponseWriter, r *http.Request) {
	id, _ := IdentityFromContext(r.Context())

	quantity, ok := parseQuantity(r.Body)
	if !ok {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	err := h.carts.UpdateQuantity(r.Context(), id.CustomerID, mux.Vars(r)["lineId"], quantity)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// parseQuantity decodes {"quantity": N} leniently: any body that does not
// contain an integral quantity reports !ok instead of failing.
func parseQuantity(body io.Reader) (int, bool) {
	var req struct {
		Quantity json.Number `json:"quantity"`
	}
	if err := json.NewDecoder(body).Decode(&req); err != nil {
		return 0, false
	}
	n, err := req.Quantity.Int64()
	if err != nil {
		return 0, false
	}
	return int(n), true
}

func cartToResponse(c *cart.Cart) cartResponse {
	lines := make([]cartLineResponse, len(c.Lines))
	for i, l := range c.Lines {
		lines[i] = cartLineResponse{
			ID:        l.ID,
			DishID:    l.DishID,
			DishName:  l.DishName,
			UnitPrice: l.UnitPrice.InexactFloat64(),
			Quantity:  l.Quantity,
			Subtotal:  l.Subtotal().InexactFloat64(),
		}
	}
	return cartResponse{Lines: lines, Total: c.Total().InexactFloat64()}
}
