// Package handler exposes the takeaway workflows as a JSON HTTP API.
package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/mfalcone/wasabi-takeaway/internal/domain/cart"
	"github.com/mfalcone/wasabi-takeaway/internal/domain/loyalty"
	"github.com/mfalcone/wasabi-takeaway/internal/domain/menu"
	"github.com/mfalcone/wasabi-takeaway/internal/domain/order"
)

// Config holds non-dependency configuration for the Handler.
type Config struct {
	// PhotoBaseURL is prepended to relative dish photo paths in responses.
	// When empty, photo paths are returned as stored.
	PhotoBaseURL string
}

// Handler wires the HTTP surface to the domain services.
type Handler struct {
	menu     *menu.Service
	carts    *cart.Service
	orders   *order.Service
	loyalty  loyalty.Repository
	security *Security
	photoURL string
}

// New constructs a Handler with the required domain dependencies.
func New(
	cfg Config,
	menuSvc *menu.Service,
	cartSvc *cart.Service,
	orderSvc *order.Service,
	loyaltyRepo loyalty.Repository,
	security *Security,
) *Handler {
	return &Handler{
		menu:     menuSvc,
		carts:    cartSvc,
		orders:   orderSvc,
		loyalty:  loyaltyRepo,
		security: security,
		photoURL: cfg.PhotoBaseURL,
	}
}

// Router builds the API route table. All routes require an authenticated
// identity; mutation routes are additionally gated by role.
func (h *Handler) Router() *mux.Router {
	r := mux.NewRouter()

	// Menu browsing is open to any authenticated identity.
	r.Handle("/dishes", h.security.Authenticate(http.HandlerFunc(h.listDishes))).Methods(http.MethodGet)
	r.Handle("/dishes/{id}", h.security.Authenticate(http.HandlerFunc(h.getDish))).Methods(http.MethodGet)

	// Menu management is staff-only.
	r.Handle("/dishes", h.staff(h.createDish)).Methods(http.MethodPost)
	r.Handle("/dishes/{id}", h.staff(h.updateDish)).Methods(http.MethodPut)
	r.Handle("/dishes/{id}", h.staff(h.deleteDish)).Methods(http.MethodDelete)

	// Cart and checkout belong to customers.
	r.Handle("/cart", h.customer(h.viewCart)).Methods(http.MethodGet)
	r.Handle("/cart/dishes/{dishId}", h.customer(h.addToCart)).Methods(http.MethodPost)
	r.Handle("/cart/dishes/{dishId}", h.customer(h.removeFromCart)).Methods(http.MethodDelete)
	r.Handle("/cart/lines/{lineId}", h.customer(h.updateCartLine)).Methods(http.MethodPatch)
	r.Handle("/checkout", h.customer(h.checkout)).Methods(http.MethodPost)

	// Orders: customers see their own, staff see everything.
	r.Handle("/orders", h.security.Authenticate(http.HandlerFunc(h.listOrders))).Methods(http.MethodGet)
	r.Handle("/orders/{id}", h.security.Authenticate(http.HandlerFunc(h.getOrder))).Methods(http.MethodGet)
	r.Handle("/orders/{id}/qr", h.security.Authenticate(http.HandlerFunc(h.orderQR))).Methods(http.MethodGet)
	r.Handle("/orders/{id}/status", h.staff(h.updateOrderStatus)).Methods(http.MethodPatch)
	r.Handle("/orders/{id}", h.staff(h.deleteOrder)).Methods(http.MethodDelete)

	// Loyalty account and policy.
	r.Handle("/loyalty", h.customer(h.getLoyaltyAccount)).Methods(http.MethodGet)
	r.Handle("/loyalty/policy", h.security.Authenticate(http.HandlerFunc(h.getPolicy))).Methods(http.MethodGet)
	r.Handle("/loyalty/policy", h.staff(h.updatePolicy)).Methods(http.MethodPut)

	return r
}

func (h *Handler) staff(fn http.HandlerFunc) http.Handler {
	return h.security.Authenticate(h.security.RequireStaff(fn))
}

func (h *Handler) customer(fn http.HandlerFunc) http.Handler {
	return h.security.Authenticate(h.security.RequireCustomer(fn))
}

// errorBody is the uniform JSON error envelope.
type errorBody struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorBody{Code: status, Message: msg})
}

// writeDomainError maps domain failures onto the API error taxonomy. Unknown
// errors are logged and surface as an undecomposed 500.
func writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		validationErr *menu.ValidationError
		pickupErr     *order.PickupTimeError
		frozenErr     *order.StatusFrozenError
	)

	switch {
	case errors.As(err, &validationErr):
		writeError(w, http.StatusBadRequest, validationErr.Error())
	case errors.As(err, &pickupErr):
		writeError(w, http.StatusBadRequest, pickupErr.Error())
	case errors.As(err, &frozenErr):
		writeError(w, http.StatusBadRequest, frozenErr.Error())
	case errors.Is(err, order.ErrInvalidStatus):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, order.ErrEmptyCart):
		// The cart is empty: the client should send the customer back to the
		// menu rather than treat this as a hard failure.
		writeJSON(w, http.StatusConflict, struct {
			Code     int    `json:"code"`
			Message  string `json:"message"`
			Redirect string `json:"redirect"`
		}{http.StatusConflict, err.Error(), "/dishes"})
	case errors.Is(err, menu.ErrNotFound),
		errors.Is(err, order.ErrNotFound),
		errors.Is(err, cart.ErrLineNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	default:
		zctx.From(r.Context()).Error("request failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
