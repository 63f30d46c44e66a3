package handlers

import (
	"net/http"
	"strconv"

	"github.com/shelfwise/lending/internal/domain"
	"github.com/shelfwise/lending/internal/http/middleware"
	"github.com/shelfwise/lending/internal/http/response"
)

// Borrow opens a loan for the authenticated patron.
func (h *Handlers) Borrow(w http.ResponseWriter, r *http.Request) {
	editionID, ok := editionParam(w, r)
	if !ok {
		return
	}

	email, ok := middleware.EmailFromContext(r.Context())
	if !ok {
		response.Unauthorized(w, "Authentication required")
		return
	}

	loan, err := h.lendingService.Borrow(r.Context(), editionID, email)
	if err != nil {
		response.FromError(w, err)
		return
	}

	response.WriteJSON(w, http.StatusCreated, loan)
}

// Return closes the patron's active loan.
func (h *Handlers) Return(w http.ResponseWriter, r *http.Request) {
	editionID, ok := editionParam(w, r)
	if !ok {
		return
	}

	email, ok := middleware.EmailFromContext(r.Context())
	if !ok {
		response.Unauthorized(w, "Authentication required")
		return
	}

	loan, err := h.lendingService.Return(r.Context(), editionID, email)
	if err != nil {
		response.FromError(w, err)
		return
	}

	response.WriteJSON(w, http.StatusOK, loan)
}

// ListLoans returns the authenticated patron's lending history.
func (h *Handlers) ListLoans(w http.ResponseWriter, r *http.Request) {
	email, ok := middleware.EmailFromContext(r.Context())
	if !ok {
		response.Unauthorized(w, "Authentication required")
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	if offset < 0 {
		offset = 0
	}

	loans, err := h.lendingService.ListLoans(r.Context(), email, limit, offset)
	if err != nil {
		response.FromError(w, err)
		return
	}

	if loans == nil {
		loans = []domain.Loan{}
	}
	response.WriteJSON(w, http.StatusOK, loans)
}
