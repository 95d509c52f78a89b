// Package grid derives the square-cell lattice covering a rectangular extent
// and enumerates, for every cell, the neighbouring cells within a Chebyshev
// distance ("rank") of it.
//
// Cells are addressed by (row, col) or by the row-major flat index
// row*Cols + col. Row 0 is the northernmost row of the extent and column 0
// the westernmost. Neighbour lists are emitted in row-major cell order, and
// within a cell in ascending candidate-row then candidate-column order,
// skipping the cell itself.
//
// Units: the extent and the cell size must share one linear unit. The
// package never rescales; callers that express cell sizes in kilometres
// against an extent in metres convert with KilometersToMeters first.
//
// Errors:
//
//   - ErrInvalidExtent: non-finite bounds, xmax <= xmin or ymax <= ymin.
//   - ErrInvalidCellSize: cell size is zero, negative, NaN or infinite.
//   - ErrInvalidRank: rank is negative.
//   - ErrDegenerateGrid: the lattice would have zero rows or columns.
//   - ErrGridTooLarge: the lattice or its neighbour list would overflow int,
//     or exceeds Options.MaxCells or Options.MaxIndices.
//   - ErrInconsistent: Assemble was given counts and indices that do not
//     describe a neighbourhood of the lattice.
//
// Complexity: Compute is O(R×C×(2·rank+1)²) time and O(R×C×(2·rank+1)²)
// memory for the index list.
package grid
