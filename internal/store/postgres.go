package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/cellneigh/internal/db"
	"github.com/sells-group/cellneigh/internal/grid"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

var (
	cellColumns      = []string{"grid_id", "cell", "nneigh"}
	adjacencyColumns = []string{"grid_id", "cell", "ord", "neighbor"}
)

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS grids (
	id         TEXT PRIMARY KEY,
	x_min      DOUBLE PRECISION NOT NULL,
	x_max      DOUBLE PRECISION NOT NULL,
	y_min      DOUBLE PRECISION NOT NULL,
	y_max      DOUBLE PRECISION NOT NULL,
	cell_size  DOUBLE PRECISION NOT NULL,
	grid_rank  INTEGER NOT NULL,
	grid_rows  INTEGER NOT NULL,
	grid_cols  INTEGER NOT NULL,
	total      BIGINT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS grid_cells (
	grid_id TEXT NOT NULL REFERENCES grids(id) ON DELETE CASCADE,
	cell    INTEGER NOT NULL,
	nneigh  INTEGER NOT NULL,
	PRIMARY KEY (grid_id, cell)
);

CREATE TABLE IF NOT EXISTS grid_adjacency (
	grid_id  TEXT NOT NULL REFERENCES grids(id) ON DELETE CASCADE,
	cell     INTEGER NOT NULL,
	ord      INTEGER NOT NULL,
	neighbor INTEGER NOT NULL,
	PRIMARY KEY (grid_id, cell, ord)
);

CREATE INDEX IF NOT EXISTS idx_grids_created_at ON grids(created_at);
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) SaveNeighborhood(ctx context.Context, nb *grid.Neighborhood) (string, error) {
	rec := newRecord(uuid.New().String(), nb, time.Now().UTC())
	log := zap.L().With(zap.String("grid_id", rec.ID))

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return "", eris.Wrap(err, "postgres: begin save")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	_, err = tx.Exec(ctx,
		`INSERT INTO grids (id, x_min, x_max, y_min, y_max, cell_size, grid_rank, grid_rows, grid_cols, total, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		rec.ID, rec.Extent.XMin, rec.Extent.XMax, rec.Extent.YMin, rec.Extent.YMax,
		rec.CellSize, rec.Rank, rec.Rows, rec.Cols, rec.Total, rec.CreatedAt,
	)
	if err != nil {
		return "", eris.Wrap(err, "postgres: insert grid")
	}

	cells, err := db.CopyFrom(ctx, tx, "grid_cells", cellColumns, len(nb.Counts), func(i int) ([]any, error) {
		return []any{rec.ID, i, nb.Counts[i]}, nil
	})
	if err != nil {
		return "", eris.Wrap(err, "postgres: copy cells")
	}

	adj, err := db.CopyFrom(ctx, tx, "grid_adjacency", adjacencyColumns, len(nb.Indices), adjacencyRows(rec.ID, nb))
	if err != nil {
		return "", eris.Wrap(err, "postgres: copy adjacency")
	}

	if err := tx.Commit(ctx); err != nil {
		return "", eris.Wrap(err, "postgres: commit save")
	}
	log.Debug("postgres: saved neighbourhood", zap.Int64("cells", cells), zap.Int64("adjacency", adj))
	return rec.ID, nil
}

// adjacencyRows yields (grid_id, cell, ord, neighbor) for each flat position
// of nb.Indices. pgx consumes the source strictly in order.
func adjacencyRows(id string, nb *grid.Neighborhood) func(int) ([]any, error) {
	cell, ord := 0, 0
	return func(i int) ([]any, error) {
		for cell < len(nb.Counts) && ord >= nb.Counts[cell] {
			cell++
			ord = 0
		}
		if cell >= len(nb.Counts) {
			return nil, eris.Errorf("postgres: adjacency row %d past last cell", i)
		}
		row := []any{id, cell, ord, nb.Indices[i]}
		ord++
		return row, nil
	}
}

const postgresGridColumns = `id, x_min, x_max, y_min, y_max, cell_size, grid_rank, grid_rows, grid_cols, total, created_at`

func (s *PostgresStore) GetGrid(ctx context.Context, id string) (*GridRecord, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+postgresGridColumns+` FROM grids WHERE id = $1`, id)
	rec, err := scanGrid(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "id %s", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get grid %s", id)
	}
	return rec, nil
}

func (s *PostgresStore) LoadNeighborhood(ctx context.Context, id string) (*grid.Neighborhood, error) {
	rec, err := s.GetGrid(ctx, id)
	if err != nil {
		return nil, err
	}

	rows, err := s.pool.Query(ctx, `SELECT nneigh FROM grid_cells WHERE grid_id = $1 ORDER BY cell`, id)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: query cells %s", id)
	}
	counts, err := pgx.CollectRows(rows, pgx.RowTo[int])
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: collect cells %s", id)
	}

	rows, err = s.pool.Query(ctx, `SELECT neighbor FROM grid_adjacency WHERE grid_id = $1 ORDER BY cell, ord`, id)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: query adjacency %s", id)
	}
	indices, err := pgx.CollectRows(rows, pgx.RowTo[int])
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: collect adjacency %s", id)
	}
	if indices == nil {
		indices = []int{}
	}

	return rec.assemble(counts, indices)
}

func (s *PostgresStore) ListGrids(ctx context.Context, limit int) ([]GridRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.pool.Query(ctx,
		`SELECT `+postgresGridColumns+` FROM grids ORDER BY created_at DESC, id LIMIT $1`, limit)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list grids")
	}
	defer rows.Close()

	var out []GridRecord
	for rows.Next() {
		rec, err := scanGrid(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan grid")
		}
		out = append(out, *rec)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list grids iterate")
}

func (s *PostgresStore) DeleteGrid(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM grids WHERE id = $1`, id)
	if err != nil {
		return eris.Wrapf(err, "postgres: delete grid %s", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "id %s", id)
	}
	return nil
}
