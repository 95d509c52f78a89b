package server

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/sells-group/cellneigh/internal/export"
	"github.com/sells-group/cellneigh/internal/grid"
)

type neighborsRequest struct {
	Extent   grid.Extent `json:"extent"`
	CellSize float64     `json:"cell_size"`
	// Unit of CellSize: "m" (default, same unit as Extent) or "km" for a
	// metre extent with a kilometre cell size.
	Unit string `json:"unit"`
	Rank *int   `json:"rank"`
	Save bool   `json:"save"`
}

type neighborsResponse struct {
	export.Document
	GridID string `json:"grid_id,omitempty"`
}

func (h *handler) neighbors(w http.ResponseWriter, r *http.Request) {
	var req neighborsRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, h.cfg.MaxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		badRequest(w, "invalid_body", "invalid request body: "+err.Error())
		return
	}

	cellSize := req.CellSize
	switch req.Unit {
	case "", "m":
	case "km":
		cellSize = grid.KilometersToMeters(cellSize)
	default:
		badRequest(w, "invalid_unit", `unit must be "m" or "km"`)
		return
	}

	rank := h.cfg.DefaultRank
	if req.Rank != nil {
		rank = *req.Rank
	}

	if req.Save && h.store == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorBody{Error: "store_unavailable", Message: "no store configured"})
		return
	}

	l, err := grid.NewLattice(req.Extent, cellSize)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	nb, err := h.compute(r, l, rank)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	resp := neighborsResponse{Document: export.NewDocument(nb)}
	if req.Save {
		id, err := h.store.SaveNeighborhood(r.Context(), nb)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		resp.GridID = id
	}

	h.log.Debug("computed neighbourhood",
		zap.Int("rows", l.Rows),
		zap.Int("cols", l.Cols),
		zap.Int("rank", rank),
		zap.Int("total", nb.Total()),
		zap.String("grid_id", resp.GridID),
	)
	writeJSON(w, http.StatusOK, resp)
}

// compute returns the neighbourhood of l at rank, from the cache when one
// is configured.
func (h *handler) compute(r *http.Request, l grid.Lattice, rank int) (*grid.Neighborhood, error) {
	opts := grid.Options{Workers: h.cfg.Workers, MaxCells: h.cfg.MaxCells, MaxIndices: h.cfg.MaxIndices}
	if h.cache == nil {
		return grid.ComputeContext(r.Context(), l, rank, opts)
	}

	key := cacheKey(l, rank)
	if nb := h.cache.get(key); nb != nil {
		return nb, nil
	}
	nb, err := grid.ComputeContext(r.Context(), l, rank, opts)
	if err != nil {
		return nil, err
	}
	h.cache.put(key, nb)
	return nb, nil
}
