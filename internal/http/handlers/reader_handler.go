package handlers

import (
	"io"
	"net/http"

	"github.com/shelfwise/lending/internal/http/middleware"
	"github.com/shelfwise/lending/internal/http/response"
	"github.com/shelfwise/lending/pkg/logger"
)

// Read streams an item's file. Open-access items come from the public
// bucket with no authentication; lending-required items need a valid
// session and an active loan, and stream from the protected bucket.
func (h *Handlers) Read(w http.ResponseWriter, r *http.Request) {
	editionID, ok := editionParam(w, r)
	if !ok {
		return
	}

	item, err := h.catalogService.Get(r.Context(), editionID)
	if err != nil {
		response.FromError(w, err)
		return
	}

	if !item.LendingRequired {
		rc, err := h.catalogService.OpenPublic(r.Context(), item)
		if err != nil {
			response.FromError(w, err)
			return
		}
		defer rc.Close()
		h.stream(w, r, item.Formats.ContentType(), rc)
		return
	}

	cookie, err := r.Cookie(middleware.SessionCookieName)
	if err != nil || cookie.Value == "" {
		response.Unauthorized(w, "Authentication required")
		return
	}
	email, err := h.authService.ValidateSession(cookie.Value)
	if err != nil {
		response.Unauthorized(w, "Authentication failed")
		return
	}

	loan, err := h.lendingService.ActiveLoan(r.Context(), editionID, email)
	if err != nil {
		response.FromError(w, err)
		return
	}
	if loan == nil {
		response.WriteError(w, http.StatusForbidden, "Borrow this item before reading it", response.CodeForbidden)
		return
	}

	rc, err := h.catalogService.OpenProtected(r.Context(), item)
	if err != nil {
		response.FromError(w, err)
		return
	}
	defer rc.Close()
	h.stream(w, r, item.Formats.ContentType(), rc)
}

func (h *Handlers) stream(w http.ResponseWriter, r *http.Request, contentType string, rc io.Reader) {
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, rc); err != nil {
		logger.WarnContext(r.Context(), "Stream interrupted", "error", err)
	}
}
