package handler

import (
	"encoding/json"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/mfalcone/wasabi-takeaway/internal/domain/loyalty"
)

type accountResponse struct {
	CustomerID string `json:"customerId"`
	Points     int64  `json:"points"`
}

type policyResponse struct {
	PointsRequired int64   `json:"pointsRequired"`
	DiscountValue  float64 `json:"discountValue"`
}

type policyRequest struct {
	PointsRequired int64           `json:"pointsRequired"`
	DiscountValue  decimal.Decimal `json:"discountValue"`
}

func (h *Handler) getLoyaltyAccount(w http.ResponseWriter, r *http.Request) {
	id, _ := IdentityFromContext(r.Context())

	a, err := h.loyalty.Get(r.Context(), id.CustomerID)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, accountResponse{CustomerID: a.CustomerID, Points: a.Points})
}

func (h *Handler) getPolicy(w http.ResponseWriter, r *http.Request) {
	p, err := h.loyalty.Policy(r.Context())
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, policyResponse{
		PointsRequired: p.PointsRequired,
		DiscountValue:  p.DiscountValue.InexactFloat64(),
	})
}

func (h *Handler) updatePolicy(w http.ResponseWriter, r *http.Request) {
	var req policyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.PointsRequired < 0 || req.DiscountValue.IsNegative() {
		writeError(w, http.StatusBadRequest, "policy values must not be negative")
		return
	}

	p := loyalty.Policy{PointsRequired: req.PointsRequired, DiscountValue: req.DiscountValue}
	if err := h.loyalty.SetPolicy(r.Context(), p); err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, policyResponse{
		PointsRequired: p.PointsRequired,
		DiscountValue:  p.DiscountValue.InexactFloat64(),
	})
}
