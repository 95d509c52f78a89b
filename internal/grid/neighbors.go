package grid

import (
	"context"
	"math"

	"github.com/rotisserie/eris"
	"golang.org/x/sync/errgroup"
)

// Options tunes Compute. The zero value runs single-threaded with no cell
// limit.
type Options struct {
	// Workers is the number of goroutines filling the index list. Values
	// below 2 run the scan on the calling goroutine.
	Workers int
	// MaxCells rejects lattices with more cells than this with
	// ErrGridTooLarge. Zero disables the limit.
	MaxCells int
	// MaxIndices rejects neighbourhoods emitting more indices than this
	// with ErrGridTooLarge, before the index list is allocated. Zero
	// disables the limit.
	MaxIndices int
}

// Build derives the lattice for extent and cellSize and returns, in
// row-major cell order, the neighbour count of every cell and the
// concatenated flat indices of every cell's neighbours within Chebyshev
// distance rank. cellSize must be in the same unit as extent.
//
// On error both slices are nil.
func Build(extent Extent, cellSize float64, rank int) (counts, indices []int, err error) {
	l, err := NewLattice(extent, cellSize)
	if err != nil {
		return nil, nil, err
	}
	nb, err := Compute(l, rank, Options{})
	if err != nil {
		return nil, nil, err
	}
	return nb.Counts, nb.Indices, nil
}

// Compute enumerates the rank neighbourhood of every cell of l.
func Compute(l Lattice, rank int, opts Options) (*Neighborhood, error) {
	return ComputeContext(context.Background(), l, rank, opts)
}

// ComputeContext is Compute with cancellation, checked once per lattice row.
//
// Counts are derived first from the clipped window sizes; their running sum
// assigns every cell a disjoint window of the pre-sized index list, so
// workers fill rows independently and the result does not depend on
// opts.Workers.
func ComputeContext(ctx context.Context, l Lattice, rank int, opts Options) (*Neighborhood, error) {
	if l.Rows < 1 || l.Cols < 1 {
		return nil, eris.Wrapf(ErrDegenerateGrid, "%d x %d cells", l.Rows, l.Cols)
	}
	if rank < 0 {
		return nil, eris.Wrapf(ErrInvalidRank, "rank %d", rank)
	}
	if mulOverflows(l.Rows, l.Cols) {
		return nil, eris.Wrapf(ErrGridTooLarge, "%d x %d cells", l.Rows, l.Cols)
	}
	n := l.Len()
	if opts.MaxCells > 0 && n > opts.MaxCells {
		return nil, eris.Wrapf(ErrGridTooLarge, "%d cells exceeds limit of %d", n, opts.MaxCells)
	}

	counts := make([]int, n)
	offsets := make([]int, n+1)
	total := 0
	for row := 0; row < l.Rows; row++ {
		rlo, rhi := window(row, rank, l.Rows)
		for col := 0; col < l.Cols; col++ {
			clo, chi := window(col, rank, l.Cols)
			c := (rhi-rlo+1)*(chi-clo+1) - 1
			if total > math.MaxInt-c {
				return nil, eris.Wrapf(ErrGridTooLarge, "neighbour list for %d cells at rank %d", n, rank)
			}
			i := l.Index(row, col)
			counts[i] = c
			offsets[i] = total
			total += c
		}
	}
	offsets[n] = total
	if opts.MaxIndices > 0 && total > opts.MaxIndices {
		return nil, eris.Wrapf(ErrGridTooLarge, "%d neighbour indices exceeds limit of %d", total, opts.MaxIndices)
	}

	nb := &Neighborhood{
		Lattice: l,
		Rank:    rank,
		Counts:  counts,
		Indices: make([]int, total),
		offsets: offsets,
	}

	if opts.Workers < 2 || l.Rows < 2 {
		if err := nb.fillRows(ctx, 0, l.Rows); err != nil {
			return nil, err
		}
		return nb, nil
	}

	workers := min(opts.Workers, l.Rows)
	rowsPerWorker := (l.Rows + workers - 1) / workers

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for start := 0; start < l.Rows; start += rowsPerWorker {
		start := start
		end := min(start+rowsPerWorker, l.Rows)
		g.Go(func() error {
			return nb.fillRows(gctx, start, end)
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return nb, nil
}

// fillRows writes the neighbour indices of every cell in rows [start, end).
// Each cell writes only Indices[offsets[i]:offsets[i+1]].
func (nb *Neighborhood) fillRows(ctx context.Context, start, end int) error {
	l := nb.Lattice
	for row := start; row < end; row++ {
		if err := ctx.Err(); err != nil {
			return eris.Wrapf(err, "grid: fill row %d", row)
		}
		rlo, rhi := window(row, nb.Rank, l.Rows)
		for col := 0; col < l.Cols; col++ {
			clo, chi := window(col, nb.Rank, l.Cols)
			k := nb.offsets[l.Index(row, col)]
			for cr := rlo; cr <= rhi; cr++ {
				for cc := clo; cc <= chi; cc++ {
					if cr == row && cc == col {
						continue
					}
					nb.Indices[k] = l.Index(cr, cc)
					k++
				}
			}
		}
	}
	return nil
}
