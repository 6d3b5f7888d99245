package handler

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"

	"github.com/mfalcone/wasabi-takeaway/internal/domain/menu"
)

// dishResponse is the wire form of a dish.
type dishResponse struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Price       float64 `json:"price"`
	Course      string  `json:"course"`
	Diet        string  `json:"diet"`
	Photo       string  `json:"photo,omitempty"`
}

type dishRequest struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Course      string          `json:"course"`
	Diet        string          `json:"diet"`
	Photo       string          `json:"photo"`
}

func (h *Handler) listDishes(w http.ResponseWriter, r *http.Request) {
	f := menu.Filter{
		Course: menu.Course(r.URL.Query().Get("course")),
		Diet:   menu.Diet(r.URL.Query().Get("diet")),
	}

	dishes, err := h.menu.List(r.Context(), f)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	out := make([]dishResponse, len(dishes))
	for i, d := range dishes {
		out[i] = h.dishToResponse(d)
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) getDish(w http.ResponseWriter, r *http.Request) {
	d, err := h.menu.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.dishToResponse(*d))
}

func (h *Handler) createDish(w http.ResponseWriter, r *http.Request) {
	var req dishRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	d := req.toDish("")
	if err := h.menu.Create(r.Context(), &d); err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, h.dishToResponse(d))
}

func (h *Handler) updateDish(w http.ResponseWriter, r *http.Request) {
	var req dishRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	d := req.toDish(mux.Vars(r)["id"])
	if err := h.menu.Update(r.Context(), &d); err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.dishToResponse(d))
}

func (h *Handler) deleteDish(w http.ResponseWriter, r *http.Request) {
	if err := h.menu.Delete(r.Context(), mux.Vars(r)["id"]); err != nil {
		writeDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (r dishRequest) toDish(id string) menu.Dish {
	return menu.Dish{
		ID:          id,
		Name:        strings.TrimSpace(r.Name),
		Description: r.Description,
		Price:       r.Price,
		Course:      menu.Course(r.Course),
		Diet:        menu.Diet(r.Diet),
		Photo:       r.Photo,
	}
}

func (h *Handler) dishToResponse(d menu.Dish) dishResponse {
	photo := d.Photo
	if photo != "" && h.photoURL != "" && !strings.HasPrefix(photo, "http") {
		photo = strings.TrimSuffix(h.photoURL, "/") + "/" + strings.TrimPrefix(photo, "/")
	}
	return dishResponse{
		ID:          d.ID,
		Name:        d.Name,
		Description: d.Description,
		Price:       d.Price.InexactFloat64(),
		Course:      string(d.Course),
		Diet:        string(d.Diet),
		Photo:       photo,
	}
}
