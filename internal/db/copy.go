package db

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
)

// CopyFrom bulk-inserts n rows into table using the PostgreSQL COPY
// protocol. row(i) produces the values of row i on demand so large
// neighbour lists are streamed rather than materialised.
func CopyFrom(ctx context.Context, c Copier, table string, columns []string, n int, row func(i int) ([]any, error)) (int64, error) {
	if n == 0 {
		return 0, nil
	}

	copied, err := c.CopyFrom(ctx, pgx.Identifier{table}, columns, pgx.CopyFromSlice(n, row))
	if err != nil {
		return 0, eris.Wrapf(err, "db: COPY INTO %s", table)
	}
	if copied != int64(n) {
		return copied, eris.Errorf("db: COPY INTO %s: copied %d of %d rows", table, copied, n)
	}
	return copied, nil
}
