package pgxdb

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/marcodd23/go-subatomic/pkg/dbx"
	"github.com/marcodd23/go-subatomic/pkg/errorx"
	"github.com/marcodd23/go-subatomic/pkg/logx"
	"github.com/pkg/errors"
)

//###################################
//#     Postgres dbx.Driver         #
//###################################

// PostgresDriver - Postgres session pinned on one pooled connection.
// It Implements dbx.Driver.
//
// Every transaction-control statement of the owning dbx.Connection, and every query issued through Exec and
// Query, runs on the same *pgxpool.Conn, so they all share the server-side transaction.
type PostgresDriver struct {
	alias  string
	pool   *pgxpool.Pool
	conn   *pgxpool.Conn
	dbConf dbx.ConnConfig
}

var _ dbx.Driver = (*PostgresDriver)(nil)

// Connect - acquire the pinned connection from the pool.
func (d *PostgresDriver) Connect(ctx context.Context) error {
	if d.conn != nil {
		return nil
	}

	if d.pool == nil {
		return errorx.NewDatabaseError("error, Connection Pool To DB not initialized").OnConnection(d.alias)
	}

	conn, err := d.pool.Acquire(ctx)
	if err != nil {
		logx.GetLogger().LogError(ctx, "Error acquiring connection from pool", err)
		return errors.Wrap(err, "Error acquiring connection from pool")
	}

	d.conn = conn

	return nil
}

// Connected - report whether a connection is pinned, without acquiring one.
func (d *PostgresDriver) Connected() bool {
	return d.conn != nil
}

// Execute - run a transaction-control statement on the pinned connection.
func (d *PostgresDriver) Execute(ctx context.Context, stmt string) error {
	if d.conn == nil {
		return errorx.NewDatabaseError("cannot execute %s: not connected", stmt).OnConnection(d.alias)
	}

	if _, err := d.conn.Exec(ctx, stmt); err != nil {
		return errors.Wrapf(err, "error executing '%s'", stmt)
	}

	return nil
}

// Close - release the pinned connection to the pool.
// A connection released in the middle of a transaction is destroyed by the pool instead of reused.
func (d *PostgresDriver) Close(ctx context.Context) error {
	if d.conn != nil {
		d.conn.Release()
		d.conn = nil
	}

	return nil
}

// ClosePool - release the pinned connection and close the pool.
func (d *PostgresDriver) ClosePool() {
	_ = d.Close(context.TODO())

	if d.pool != nil {
		d.pool.Close()
		logx.GetLogger().LogInfo(context.TODO(), fmt.Sprintf("DB Connection Pool of %s Successfully Closed!", d.alias))
	}
}

// GetConnectionConfig - get Db Connection config.
func (d *PostgresDriver) GetConnectionConfig() dbx.ConnConfig {
	return d.dbConf
}

// Exec executes a SQL command on the pinned connection and returns the number of rows affected.
//
// The command takes part in whatever transaction the owning dbx.Connection has open; outside of one it is
// committed on its own. The connection is acquired first if needed.
//
// Example Usage:
//
//	rowsAffected, err := driver.Exec(ctx, "UPDATE users SET last_login = now() WHERE id = $1", userID)
//	if err != nil {
//	    return err
//	}
func (d *PostgresDriver) Exec(ctx context.Context, execQuery string, args ...any) (int64, error) {
	if err := d.Connect(ctx); err != nil {
		return 0, err
	}

	result, err := d.conn.Exec(ctx, execQuery, args...)
	if err != nil {
		logx.GetLogger().LogError(ctx, fmt.Sprintf("Error executing query '%s'", execQuery), err)

		return 0, errorx.NewDatabaseErrorWrapper(err, "Error executing query '%s'", execQuery).OnConnection(d.alias)
	}

	return result.RowsAffected(), nil
}

// Query executes a SQL query on the pinned connection.
//
// The returned rows must be closed before any other statement runs on the connection.
func (d *PostgresDriver) Query(ctx context.Context, query string, args ...any) (pgx.Rows, error) {
	if err := d.Connect(ctx); err != nil {
		return nil, err
	}

	rows, err := d.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, errorx.NewDatabaseErrorWrapper(err, "Error executing query '%s'", query).OnConnection(d.alias)
	}

	return rows, nil
}
