package server

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/sells-group/cellneigh/internal/export"
	"github.com/sells-group/cellneigh/internal/store"
)

const maxListLimit = 1000

type gridResponse struct {
	Grid store.GridRecord `json:"grid"`
	export.Document
}

func (h *handler) listGrids(w http.ResponseWriter, r *http.Request) {
	limit := 100
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			badRequest(w, "invalid_limit", "limit must be a positive integer")
			return
		}
		limit = min(n, maxListLimit)
	}

	grids, err := h.store.ListGrids(r.Context(), limit)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if grids == nil {
		grids = []store.GridRecord{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"grids": grids})
}

func (h *handler) getGrid(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	rec, err := h.store.GetGrid(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	nb, err := h.store.LoadNeighborhood(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, gridResponse{Grid: *rec, Document: export.NewDocument(nb)})
}

func (h *handler) deleteGrid(w http.ResponseWriter, r *http.Request) {
	if err := h.store.DeleteGrid(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
