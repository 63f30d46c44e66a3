package handlers

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/shelfwise/lending/internal/domain"
	"github.com/shelfwise/lending/internal/http/response"
)

// Upload accepts a multipart form with an edition id, a lending flag
// and an EPUB or PDF file, and registers the item in the catalog.
func (h *Handlers) Upload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		response.BadRequest(w, "Invalid multipart form")
		return
	}

	editionID, err := strconv.ParseInt(r.FormValue("edition_id"), 10, 64)
	if err != nil || editionID <= 0 {
		response.BadRequest(w, "edition_id must be a positive integer")
		return
	}

	lendingRequired := true
	if v := r.FormValue("lending_required"); v != "" {
		parsed, err := strconv.ParseBool(v)
		if err != nil {
			response.BadRequest(w, "lending_required must be a boolean")
			return
		}
		lendingRequired = parsed
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		response.BadRequest(w, "Missing file")
		return
	}
	defer file.Close()

	req := &domain.UploadRequest{
		EditionID:       editionID,
		LendingRequired: lendingRequired,
		Filename:        header.Filename,
		Size:            header.Size,
	}

	item, err := h.catalogService.Upload(r.Context(), req, file)
	if err != nil {
		response.FromError(w, err)
		return
	}

	response.WriteJSON(w, http.StatusCreated, item)
}

// ListItems returns a page of the catalog.
func (h *Handlers) ListItems(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	items, err := h.catalogService.List(r.Context(), limit, offset)
	if err != nil {
		response.FromError(w, err)
		return
	}

	if items == nil {
		items = []domain.Item{}
	}
	response.WriteJSON(w, http.StatusOK, items)
}

// DeleteItem removes an item and its stored files.
func (h *Handlers) DeleteItem(w http.ResponseWriter, r *http.Request) {
	editionID, ok := editionParam(w, r)
	if !ok {
		return
	}

	if err := h.catalogService.Delete(r.Context(), editionID); err != nil {
		response.FromError(w, err)
		return
	}

	response.WriteJSON(w, http.StatusOK, map[string]string{"message": "Item deleted"})
}

func editionParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	editionID, err := strconv.ParseInt(chi.URLParam(r, "edition"), 10, 64)
	if err != nil || editionID <= 0 {
		response.BadRequest(w, "Invalid edition id")
		return 0, false
	}
	return editionID, true
}
