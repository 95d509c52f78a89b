// Package store persists computed neighbourhoods so downstream jobs can
// join neighbour lists with per-cell data by flat index.
package store

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/cellneigh/internal/grid"
)

var (
	// ErrNotFound indicates an unknown grid ID.
	ErrNotFound = eris.New("store: grid not found")
	// ErrCorrupt indicates stored rows that no longer describe a valid neighbourhood.
	ErrCorrupt = eris.New("store: stored grid is inconsistent")
)

// GridRecord is the header row of a stored neighbourhood.
type GridRecord struct {
	ID        string      `json:"id" yaml:"id"`
	Extent    grid.Extent `json:"extent" yaml:"extent"`
	CellSize  float64     `json:"cell_size" yaml:"cell_size"`
	Rank      int         `json:"rank" yaml:"rank"`
	Rows      int         `json:"rows" yaml:"rows"`
	Cols      int         `json:"cols" yaml:"cols"`
	Total     int         `json:"total" yaml:"total"`
	CreatedAt time.Time   `json:"created_at" yaml:"created_at"`
}

// Store defines the persistence interface for neighbourhoods.
type Store interface {
	SaveNeighborhood(ctx context.Context, nb *grid.Neighborhood) (string, error)
	GetGrid(ctx context.Context, id string) (*GridRecord, error)
	LoadNeighborhood(ctx context.Context, id string) (*grid.Neighborhood, error)
	ListGrids(ctx context.Context, limit int) ([]GridRecord, error)
	DeleteGrid(ctx context.Context, id string) error

	Migrate(ctx context.Context) error
	Close() error
}

// Config selects and configures a Store backend.
type Config struct {
	Driver      string      `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string      `yaml:"database_url" mapstructure:"database_url"`
	Pool        *PoolConfig `yaml:"pool" mapstructure:"pool"`
}

// New opens the backend named by cfg.Driver and migrates it.
func New(ctx context.Context, cfg Config) (Store, error) {
	var (
		s   Store
		err error
	)
	switch cfg.Driver {
	case "", "sqlite":
		dsn := cfg.DatabaseURL
		if dsn == "" {
			dsn = "cellneigh.db"
		}
		s, err = NewSQLite(dsn)
	case "postgres":
		s, err = NewPostgres(ctx, cfg.DatabaseURL, cfg.Pool)
	default:
		return nil, eris.Errorf("store: unsupported driver %q", cfg.Driver)
	}
	if err != nil {
		return nil, err
	}
	if err := s.Migrate(ctx); err != nil {
		_ = s.Close()
		return nil, err
	}
	return s, nil
}

func newRecord(id string, nb *grid.Neighborhood, now time.Time) GridRecord {
	l := nb.Lattice
	return GridRecord{
		ID:        id,
		Extent:    l.Extent,
		CellSize:  l.CellSize,
		Rank:      nb.Rank,
		Rows:      l.Rows,
		Cols:      l.Cols,
		Total:     nb.Total(),
		CreatedAt: now,
	}
}

// lattice re-derives the lattice of a stored grid and checks it against the
// stored dimensions.
func (r GridRecord) lattice() (grid.Lattice, error) {
	l, err := grid.NewLattice(r.Extent, r.CellSize)
	if err != nil {
		return grid.Lattice{}, eris.Wrapf(ErrCorrupt, "grid %s: %v", r.ID, err)
	}
	if l.Rows != r.Rows || l.Cols != r.Cols {
		return grid.Lattice{}, eris.Wrapf(ErrCorrupt, "grid %s: stored %d x %d, derived %d x %d",
			r.ID, r.Rows, r.Cols, l.Rows, l.Cols)
	}
	return l, nil
}

// assemble validates loaded counts and indices against the record.
func (r GridRecord) assemble(counts, indices []int) (*grid.Neighborhood, error) {
	l, err := r.lattice()
	if err != nil {
		return nil, err
	}
	if len(indices) != r.Total {
		return nil, eris.Wrapf(ErrCorrupt, "grid %s: %d indices, header says %d", r.ID, len(indices), r.Total)
	}
	nb, err := grid.Assemble(l, r.Rank, counts, indices)
	if err != nil {
		return nil, eris.Wrapf(ErrCorrupt, "grid %s: %v", r.ID, err)
	}
	return nb, nil
}
