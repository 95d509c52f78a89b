package export

import "github.com/sells-group/cellneigh/internal/grid"

// Document is the JSON and YAML shape of a neighbourhood.
type Document struct {
	Rows     int         `json:"rows" yaml:"rows"`
	Cols     int         `json:"cols" yaml:"cols"`
	CellSize float64     `json:"cell_size" yaml:"cell_size"`
	Rank     int         `json:"rank" yaml:"rank"`
	Extent   grid.Extent `json:"extent" yaml:"extent"`
	NNeigh   []int       `json:"nneigh" yaml:"nneigh"`
	Adj      []int       `json:"adj" yaml:"adj"`
}

// NewDocument flattens nb. The slices alias nb.
func NewDocument(nb *grid.Neighborhood) Document {
	adj := nb.Indices
	if adj == nil {
		adj = []int{}
	}
	return Document{
		Rows:     nb.Lattice.Rows,
		Cols:     nb.Lattice.Cols,
		CellSize: nb.Lattice.CellSize,
		Rank:     nb.Rank,
		Extent:   nb.Lattice.Extent,
		NNeigh:   nb.Counts,
		Adj:      adj,
	}
}
