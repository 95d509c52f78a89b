package server

import (
	"context"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/sells-group/cellneigh/internal/grid"
	"github.com/sells-group/cellneigh/internal/store"
)

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

var errorKinds = []struct {
	target error
	kind   string
	status int
}{
	{grid.ErrInvalidExtent, "invalid_extent", http.StatusBadRequest},
	{grid.ErrInvalidCellSize, "invalid_cell_size", http.StatusBadRequest},
	{grid.ErrInvalidRank, "invalid_rank", http.StatusBadRequest},
	{grid.ErrDegenerateGrid, "degenerate_grid", http.StatusBadRequest},
	{grid.ErrGridTooLarge, "grid_too_large", http.StatusRequestEntityTooLarge},
	{store.ErrNotFound, "not_found", http.StatusNotFound},
	{store.ErrCorrupt, "corrupt_grid", http.StatusInternalServerError},
	{context.DeadlineExceeded, "timeout", http.StatusGatewayTimeout},
}

// classify maps err to an error kind and HTTP status.
func classify(err error) (string, int) {
	for _, k := range errorKinds {
		if errors.Is(err, k.target) {
			return k.kind, k.status
		}
	}
	return "internal", http.StatusInternalServerError
}

func (h *handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	kind, status := classify(err)
	log := h.log.With(zap.String("path", r.URL.Path), zap.String("kind", kind), zap.Error(err))
	if status >= http.StatusInternalServerError {
		log.Error("request failed")
	} else {
		log.Debug("request rejected")
	}
	writeJSON(w, status, errorBody{Error: kind, Message: err.Error()})
}

func badRequest(w http.ResponseWriter, kind, msg string) {
	writeJSON(w, http.StatusBadRequest, errorBody{Error: kind, Message: msg})
}
