package pgxdb

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"
)

// QueryAndScan executes a query on the pinned connection and maps each row with scanFunc.
//
// Arguments:
//   - driver: The driver whose pinned connection runs the query, inside its current transaction if any.
//   - ctx: The context for the query execution.
//   - scanFunc: A function that maps each row (pgx.Rows) to the desired type (T).
//   - query: The SQL query to be executed.
//   - args: The variadic arguments for the SQL query, if any.
//
// Returns:
//   - []T: The mapped results.
//   - error: Any error encountered during query execution or row scanning.
func QueryAndScan[T any](driver *PostgresDriver, ctx context.Context, scanFunc func(rows pgx.Rows) (T, error), query string, args ...any) ([]T, error) {
	rows, err := driver.Query(ctx, query, args...)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	defer rows.Close()

	var results []T
	for rows.Next() {
		result, err := scanFunc(rows)
		if err != nil {
			return nil, errors.WithStack(err)
		}
		results = append(results, result)
	}

	if err := rows.Err(); err != nil {
		return nil, errors.WithStack(err)
	}

	return results, nil
}

// QueryAndMap uses pgx's struct scanning to map rows directly to a slice of structs.
//
// Columns are matched to fields by name, or by the `db` tag when present.
func QueryAndMap[T any](driver *PostgresDriver, ctx context.Context, query string, args ...any) ([]T, error) {
	rows, err := driver.Query(ctx, query, args...)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	results, err := pgx.CollectRows(rows, pgx.RowToStructByName[T])
	if err != nil {
		return nil, errors.WithStack(err)
	}

	return results, nil
}
