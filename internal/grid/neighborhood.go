package grid

import "github.com/rotisserie/eris"

// Neighborhood is the result of Compute: per-cell neighbour counts and the
// concatenated neighbour indices, both in row-major cell order.
type Neighborhood struct {
	Lattice Lattice `json:"lattice" yaml:"lattice"`
	Rank    int     `json:"rank" yaml:"rank"`
	Counts  []int   `json:"nneigh" yaml:"nneigh"`
	Indices []int   `json:"adj" yaml:"adj"`

	// offsets[i] is the position of cell i's first neighbour in Indices;
	// offsets[len(Counts)] == len(Indices).
	offsets []int
}

// Len is the number of cells.
func (nb *Neighborhood) Len() int { return len(nb.Counts) }

// Total is the number of emitted neighbour indices, the sum of Counts.
func (nb *Neighborhood) Total() int { return len(nb.Indices) }

// Neighbors returns the neighbour indices of cell idx, or nil when idx is
// off the lattice. The slice aliases Indices and must not be modified.
func (nb *Neighborhood) Neighbors(idx int) []int {
	if idx < 0 || idx >= len(nb.Counts) {
		return nil
	}
	lo, hi := nb.offsets[idx], nb.offsets[idx+1]
	return nb.Indices[lo:hi:hi]
}

// Assemble rebuilds a Neighborhood from counts and indices produced
// elsewhere, typically read back from storage. It checks that the data
// fits the lattice but not that it matches what Compute would emit.
func Assemble(l Lattice, rank int, counts, indices []int) (*Neighborhood, error) {
	if l.Rows < 1 || l.Cols < 1 {
		return nil, eris.Wrapf(ErrDegenerateGrid, "%d x %d cells", l.Rows, l.Cols)
	}
	if rank < 0 {
		return nil, eris.Wrapf(ErrInvalidRank, "rank %d", rank)
	}
	n := l.Len()
	if len(counts) != n {
		return nil, eris.Wrapf(ErrInconsistent, "%d counts for %d cells", len(counts), n)
	}

	offsets := make([]int, n+1)
	total := 0
	for i, c := range counts {
		if c < 0 || c >= n {
			return nil, eris.Wrapf(ErrInconsistent, "cell %d has %d neighbours", i, c)
		}
		offsets[i] = total
		total += c
	}
	offsets[n] = total
	if total != len(indices) {
		return nil, eris.Wrapf(ErrInconsistent, "counts sum to %d, have %d indices", total, len(indices))
	}

	for i := 0; i < n; i++ {
		for _, k := range indices[offsets[i]:offsets[i+1]] {
			if k < 0 || k >= n || k == i {
				return nil, eris.Wrapf(ErrInconsistent, "cell %d lists neighbour %d", i, k)
			}
		}
	}

	return &Neighborhood{
		Lattice: l,
		Rank:    rank,
		Counts:  counts,
		Indices: indices,
		offsets: offsets,
	}, nil
}
