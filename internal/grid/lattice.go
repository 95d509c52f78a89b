package grid

import (
	"math"

	"github.com/rotisserie/eris"
)

// maxDimension bounds Rows and Cols so that coordinates stay representable
// on 32-bit platforms.
const maxDimension = math.MaxInt32

// Lattice is the grid of square cells covering an Extent. It is derived by
// NewLattice and never mutated.
type Lattice struct {
	Extent   Extent  `json:"extent" yaml:"extent"`
	CellSize float64 `json:"cell_size" yaml:"cell_size"`
	Rows     int     `json:"rows" yaml:"rows"`
	Cols     int     `json:"cols" yaml:"cols"`
}

// NewLattice validates its inputs and derives
// Cols = ceil(width/cellSize) and Rows = ceil(height/cellSize).
// cellSize must be in the same unit as extent.
func NewLattice(extent Extent, cellSize float64) (Lattice, error) {
	if err := extent.Validate(); err != nil {
		return Lattice{}, err
	}
	if !(cellSize > 0) || math.IsInf(cellSize, 1) {
		return Lattice{}, eris.Wrapf(ErrInvalidCellSize, "cell size %g", cellSize)
	}

	cols, err := cellsAlong(extent.Width(), cellSize)
	if err != nil {
		return Lattice{}, eris.Wrapf(err, "columns for width %g", extent.Width())
	}
	rows, err := cellsAlong(extent.Height(), cellSize)
	if err != nil {
		return Lattice{}, eris.Wrapf(err, "rows for height %g", extent.Height())
	}
	if mulOverflows(rows, cols) {
		return Lattice{}, eris.Wrapf(ErrGridTooLarge, "%d x %d cells", rows, cols)
	}

	return Lattice{Extent: extent, CellSize: cellSize, Rows: rows, Cols: cols}, nil
}

func cellsAlong(span, cellSize float64) (int, error) {
	n := math.Ceil(span / cellSize)
	switch {
	case math.IsNaN(n) || n < 1:
		return 0, ErrDegenerateGrid
	case n > maxDimension:
		return 0, ErrGridTooLarge
	}
	return int(n), nil
}

func mulOverflows(a, b int) bool {
	return a > 0 && b > math.MaxInt/a
}

// Len is the number of cells, Rows*Cols.
func (l Lattice) Len() int {
	return l.Rows * l.Cols
}

// InBounds reports whether (row, col) lies on the lattice.
func (l Lattice) InBounds(row, col int) bool {
	return row >= 0 && row < l.Rows && col >= 0 && col < l.Cols
}

// Index maps (row, col) to the row-major flat index row*Cols + col.
func (l Lattice) Index(row, col int) int {
	return row*l.Cols + col
}

// Coordinate converts a flat index back to (row, col).
func (l Lattice) Coordinate(idx int) (row, col int) {
	return idx / l.Cols, idx % l.Cols
}

// CellExtent returns the rectangle covered by cell idx. Cells in the last
// row or column may extend past the lattice extent when its size is not a
// multiple of CellSize.
func (l Lattice) CellExtent(idx int) Extent {
	row, col := l.Coordinate(idx)
	xmin := l.Extent.XMin + float64(col)*l.CellSize
	ymax := l.Extent.YMax - float64(row)*l.CellSize
	return Extent{
		XMin: xmin,
		XMax: xmin + l.CellSize,
		YMin: ymax - l.CellSize,
		YMax: ymax,
	}
}

// CellCenter returns the centre point of cell idx.
func (l Lattice) CellCenter(idx int) (x, y float64) {
	c := l.CellExtent(idx)
	return (c.XMin + c.XMax) / 2, (c.YMin + c.YMax) / 2
}

// window clips [pos-rank, pos+rank] to [0, n-1] without overflowing for
// large ranks.
func window(pos, rank, n int) (lo, hi int) {
	lo, hi = 0, n-1
	if rank < pos {
		lo = pos - rank
	}
	if rank < n-1-pos {
		hi = pos + rank
	}
	return lo, hi
}
