package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/cellneigh/internal/grid"
)

func newTestSQLite(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	require.NoError(t, s.Migrate(context.Background()))
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func computeNeighborhood(t *testing.T, ext grid.Extent, cellSize float64, rank int) *grid.Neighborhood {
	t.Helper()
	l, err := grid.NewLattice(ext, cellSize)
	require.NoError(t, err)
	nb, err := grid.Compute(l, rank, grid.Options{})
	require.NoError(t, err)
	return nb
}

func TestSQLiteStore_SaveAndLoad(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()
	nb := computeNeighborhood(t, grid.Extent{XMin: 0, XMax: 3, YMin: 0, YMax: 3}, 1, 1)

	id, err := s.SaveNeighborhood(ctx, nb)
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	rec, err := s.GetGrid(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, id, rec.ID)
	assert.Equal(t, 3, rec.Rows)
	assert.Equal(t, 3, rec.Cols)
	assert.Equal(t, 1, rec.Rank)
	assert.Equal(t, 40, rec.Total)
	assert.Equal(t, nb.Lattice.Extent, rec.Extent)
	assert.False(t, rec.CreatedAt.IsZero())

	got, err := s.LoadNeighborhood(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, nb.Lattice, got.Lattice)
	assert.Equal(t, nb.Counts, got.Counts)
	assert.Equal(t, nb.Indices, got.Indices)
	assert.Equal(t, []int{0, 1, 2, 3, 5, 6, 7, 8}, got.Neighbors(4))
}

func TestSQLiteStore_RankZero(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()
	nb := computeNeighborhood(t, grid.Extent{XMin: 0, XMax: 2000, YMin: 0, YMax: 1000}, 1000, 0)

	id, err := s.SaveNeighborhood(ctx, nb)
	require.NoError(t, err)

	got, err := s.LoadNeighborhood(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 0}, got.Counts)
	assert.Empty(t, got.Indices)
}

func TestSQLiteStore_NotFound(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	_, err := s.GetGrid(ctx, "missing")
	assert.True(t, errors.Is(err, ErrNotFound))

	_, err = s.LoadNeighborhood(ctx, "missing")
	assert.True(t, errors.Is(err, ErrNotFound))

	err = s.DeleteGrid(ctx, "missing")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestSQLiteStore_ListAndDelete(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()
	nb := computeNeighborhood(t, grid.Extent{XMin: 0, XMax: 2000, YMin: 0, YMax: 1000}, 1000, 1)

	id1, err := s.SaveNeighborhood(ctx, nb)
	require.NoError(t, err)
	id2, err := s.SaveNeighborhood(ctx, nb)
	require.NoError(t, err)

	list, err := s.ListGrids(ctx, 0)
	require.NoError(t, err)
	require.Len(t, list, 2)
	ids := []string{list[0].ID, list[1].ID}
	assert.ElementsMatch(t, []string{id1, id2}, ids)

	limited, err := s.ListGrids(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)

	require.NoError(t, s.DeleteGrid(ctx, id1))
	_, err = s.LoadNeighborhood(ctx, id1)
	assert.True(t, errors.Is(err, ErrNotFound))

	var cells int
	require.NoError(t, s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM grid_cells WHERE grid_id = ?`, id1).Scan(&cells))
	assert.Equal(t, 0, cells)

	list, err = s.ListGrids(ctx, 10)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, id2, list[0].ID)
}

func TestSQLiteStore_CorruptHeader(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()
	nb := computeNeighborhood(t, grid.Extent{XMin: 0, XMax: 3, YMin: 0, YMax: 3}, 1, 1)

	id, err := s.SaveNeighborhood(ctx, nb)
	require.NoError(t, err)

	_, err = s.db.ExecContext(ctx, `UPDATE grids SET grid_rows = 4 WHERE id = ?`, id)
	require.NoError(t, err)

	_, err = s.LoadNeighborhood(ctx, id)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrCorrupt))
}

func TestSQLiteStore_MissingAdjacency(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()
	nb := computeNeighborhood(t, grid.Extent{XMin: 0, XMax: 3, YMin: 0, YMax: 3}, 1, 1)

	id, err := s.SaveNeighborhood(ctx, nb)
	require.NoError(t, err)

	_, err = s.db.ExecContext(ctx, `DELETE FROM grid_adjacency WHERE grid_id = ? AND cell = 4`, id)
	require.NoError(t, err)

	_, err = s.LoadNeighborhood(ctx, id)
	assert.True(t, errors.Is(err, ErrCorrupt))
}

func TestNew_SQLite(t *testing.T) {
	ctx := context.Background()
	s, err := New(ctx, Config{Driver: "sqlite", DatabaseURL: filepath.Join(t.TempDir(), "new.db")})
	require.NoError(t, err)
	defer func() { _ = s.Close() }()

	list, err := s.ListGrids(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestNew_UnsupportedDriver(t *testing.T) {
	_, err := New(context.Background(), Config{Driver: "mysql"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported driver")
}
