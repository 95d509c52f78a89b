package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/cellneigh/internal/grid"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS grids (
	id         TEXT PRIMARY KEY,
	x_min      REAL NOT NULL,
	x_max      REAL NOT NULL,
	y_min      REAL NOT NULL,
	y_max      REAL NOT NULL,
	cell_size  REAL NOT NULL,
	grid_rank  INTEGER NOT NULL,
	grid_rows  INTEGER NOT NULL,
	grid_cols  INTEGER NOT NULL,
	total      INTEGER NOT NULL,
	created_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS grid_cells (
	grid_id TEXT NOT NULL REFERENCES grids(id),
	cell    INTEGER NOT NULL,
	nneigh  INTEGER NOT NULL,
	PRIMARY KEY (grid_id, cell)
);

CREATE TABLE IF NOT EXISTS grid_adjacency (
	grid_id  TEXT NOT NULL REFERENCES grids(id),
	cell     INTEGER NOT NULL,
	ord      INTEGER NOT NULL,
	neighbor INTEGER NOT NULL,
	PRIMARY KEY (grid_id, cell, ord)
);

CREATE INDEX IF NOT EXISTS idx_grids_created_at ON grids(created_at);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) SaveNeighborhood(ctx context.Context, nb *grid.Neighborhood) (string, error) {
	rec := newRecord(uuid.New().String(), nb, time.Now().UTC())

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", eris.Wrap(err, "sqlite: begin save")
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO grids (id, x_min, x_max, y_min, y_max, cell_size, grid_rank, grid_rows, grid_cols, total, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.Extent.XMin, rec.Extent.XMax, rec.Extent.YMin, rec.Extent.YMax,
		rec.CellSize, rec.Rank, rec.Rows, rec.Cols, rec.Total, rec.CreatedAt,
	)
	if err != nil {
		return "", eris.Wrap(err, "sqlite: insert grid")
	}

	cellStmt, err := tx.PrepareContext(ctx, `INSERT INTO grid_cells (grid_id, cell, nneigh) VALUES (?, ?, ?)`)
	if err != nil {
		return "", eris.Wrap(err, "sqlite: prepare cells")
	}
	defer func() { _ = cellStmt.Close() }()

	adjStmt, err := tx.PrepareContext(ctx, `INSERT INTO grid_adjacency (grid_id, cell, ord, neighbor) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return "", eris.Wrap(err, "sqlite: prepare adjacency")
	}
	defer func() { _ = adjStmt.Close() }()

	for cell, count := range nb.Counts {
		if _, err := cellStmt.ExecContext(ctx, rec.ID, cell, count); err != nil {
			return "", eris.Wrapf(err, "sqlite: insert cell %d", cell)
		}
		for ord, neighbor := range nb.Neighbors(cell) {
			if _, err := adjStmt.ExecContext(ctx, rec.ID, cell, ord, neighbor); err != nil {
				return "", eris.Wrapf(err, "sqlite: insert adjacency %d/%d", cell, ord)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return "", eris.Wrap(err, "sqlite: commit save")
	}
	return rec.ID, nil
}

const sqliteGridColumns = `id, x_min, x_max, y_min, y_max, cell_size, grid_rank, grid_rows, grid_cols, total, created_at`

func (s *SQLiteStore) GetGrid(ctx context.Context, id string) (*GridRecord, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+sqliteGridColumns+` FROM grids WHERE id = ?`, id)
	rec, err := scanGrid(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "id %s", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get grid %s", id)
	}
	return rec, nil
}

func (s *SQLiteStore) LoadNeighborhood(ctx context.Context, id string) (*grid.Neighborhood, error) {
	rec, err := s.GetGrid(ctx, id)
	if err != nil {
		return nil, err
	}

	counts := make([]int, 0, rec.Rows*rec.Cols)
	rows, err := s.db.QueryContext(ctx, `SELECT nneigh FROM grid_cells WHERE grid_id = ? ORDER BY cell`, id)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: query cells %s", id)
	}
	for rows.Next() {
		var c int
		if err := rows.Scan(&c); err != nil {
			_ = rows.Close()
			return nil, eris.Wrap(err, "sqlite: scan cell")
		}
		counts = append(counts, c)
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return nil, eris.Wrap(err, "sqlite: iterate cells")
	}
	_ = rows.Close()

	indices := make([]int, 0, rec.Total)
	rows, err = s.db.QueryContext(ctx, `SELECT neighbor FROM grid_adjacency WHERE grid_id = ? ORDER BY cell, ord`, id)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: query adjacency %s", id)
	}
	defer func() { _ = rows.Close() }()
	for rows.Next() {
		var k int
		if err := rows.Scan(&k); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan adjacency")
		}
		indices = append(indices, k)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "sqlite: iterate adjacency")
	}

	return rec.assemble(counts, indices)
}

func (s *SQLiteStore) ListGrids(ctx context.Context, limit int) ([]GridRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+sqliteGridColumns+` FROM grids ORDER BY created_at DESC, id LIMIT ?`, limit)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list grids")
	}
	defer func() { _ = rows.Close() }()

	var out []GridRecord
	for rows.Next() {
		rec, err := scanGrid(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan grid")
		}
		out = append(out, *rec)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list grids iterate")
}

func (s *SQLiteStore) DeleteGrid(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin delete")
	}
	defer func() { _ = tx.Rollback() }()

	for _, table := range []string{"grid_adjacency", "grid_cells"} {
		if _, err := tx.ExecContext(ctx, `DELETE FROM `+table+` WHERE grid_id = ?`, id); err != nil {
			return eris.Wrapf(err, "sqlite: delete %s %s", table, id)
		}
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM grids WHERE id = ?`, id)
	if err != nil {
		return eris.Wrapf(err, "sqlite: delete grid %s", id)
	}
	if err := checkRowsAffected(res, id); err != nil {
		return err
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit delete")
}

func checkRowsAffected(res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "sqlite: rows affected")
	}
	if n == 0 {
		return eris.Wrapf(ErrNotFound, "id %s", id)
	}
	return nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanGrid(row scannable) (*GridRecord, error) {
	var r GridRecord
	err := row.Scan(&r.ID, &r.Extent.XMin, &r.Extent.XMax, &r.Extent.YMin, &r.Extent.YMax,
		&r.CellSize, &r.Rank, &r.Rows, &r.Cols, &r.Total, &r.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &r, nil
}
