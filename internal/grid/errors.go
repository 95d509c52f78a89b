package grid

import "github.com/rotisserie/eris"

// Sentinel errors. Returned errors wrap these; match with errors.Is.
var (
	// ErrInvalidExtent indicates bounds that do not enclose a positive area.
	ErrInvalidExtent = eris.New("grid: extent must satisfy xmax > xmin and ymax > ymin")
	// ErrInvalidCellSize indicates a cell size that is not a positive finite number.
	ErrInvalidCellSize = eris.New("grid: cell size must be positive")
	// ErrInvalidRank indicates a negative neighbourhood rank.
	ErrInvalidRank = eris.New("grid: rank must be non-negative")
	// ErrDegenerateGrid indicates a lattice with zero rows or zero columns.
	ErrDegenerateGrid = eris.New("grid: lattice has no rows or no columns")
	// ErrGridTooLarge indicates a lattice whose cell or neighbour count cannot be represented.
	ErrGridTooLarge = eris.New("grid: lattice too large")
	// ErrInconsistent indicates neighbour counts and indices that disagree with the lattice.
	ErrInconsistent = eris.New("grid: neighbour data inconsistent with lattice")
)
