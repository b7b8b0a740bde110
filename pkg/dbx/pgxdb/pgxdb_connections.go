package pgxdb

import (
	"context"
	"fmt"
	"runtime"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/marcodd23/go-subatomic/pkg/configmgr"
	"github.com/marcodd23/go-subatomic/pkg/dbx"
	"github.com/marcodd23/go-subatomic/pkg/errorx"
	"github.com/marcodd23/go-subatomic/pkg/logx"
	"github.com/marcodd23/go-subatomic/pkg/validator"
)

// SetupPostgresConnections - create one pool per alias and register a pinned PostgresDriver for each of them.
//
// Prepared statements are prepared on every physical connection right after it is opened.
// No connection is acquired here: drivers connect on first use.
func SetupPostgresConnections(ctx context.Context, dbConfs []dbx.ConnConfig, preparedStatements ...dbx.PreparedStatement) (*dbx.Connections, error) {
	drivers := make(map[string]dbx.Driver, len(dbConfs))

	for _, dbConf := range dbConfs {
		if _, exists := drivers[dbConf.Alias]; exists {
			closeDrivers(drivers)
			return nil, errorx.NewDatabaseError("duplicated connection alias '%s'", dbConf.Alias)
		}

		pool, err := newConnectionPool(ctx, dbConf, preparedStatements...)
		if err != nil {
			closeDrivers(drivers)
			return nil, err
		}

		logx.
			GetLogger().
			LogInfo(ctx, fmt.Sprintf("Created new Connection Pool: ALIAS=%s, DB=%s, HOST=%s, PORT=%d",
				dbConf.Alias,
				pool.Config().ConnConfig.Database,
				pool.Config().ConnConfig.Host,
				pool.Config().ConnConfig.Port))

		drivers[dbConf.Alias] = &PostgresDriver{alias: dbConf.Alias, pool: pool, dbConf: dbConf}
	}

	return dbx.NewConnections(drivers), nil
}

// ConnConfigsFromConfig - map the databases section of the configuration to connection configs.
func ConnConfigsFromConfig(databases map[string]*configmgr.DatabaseConfig) []dbx.ConnConfig {
	dbConfs := make([]dbx.ConnConfig, 0, len(databases))

	for alias, db := range databases {
		if db == nil {
			continue
		}

		dbConfs = append(dbConfs, dbx.ConnConfig{
			Alias:               alias,
			VpcDirectConnection: db.VpcDirectConnection,
			Host:                db.Host,
			Port:                db.Port,
			DBName:              db.Name,
			User:                db.User,
			Password:            db.Password,
			MaxConn:             db.MaxConn,
			IsLocalEnv:          db.LocalEnv,
		})
	}

	return dbConfs
}

// DriverFor - return the PostgresDriver registered under alias.
func DriverFor(conns *dbx.Connections, alias string) (*PostgresDriver, error) {
	conn, err := conns.Get(alias)
	if err != nil {
		return nil, err
	}

	driver, ok := conn.Driver().(*PostgresDriver)
	if !ok {
		return nil, errorx.NewDatabaseError("connection is not backed by Postgres").OnConnection(conn.Alias())
	}

	return driver, nil
}

// Shutdown - close every connection and every pool.
func Shutdown(ctx context.Context, conns *dbx.Connections) error {
	err := conns.Close(ctx)

	for _, conn := range conns.All() {
		if driver, ok := conn.Driver().(*PostgresDriver); ok {
			driver.ClosePool()
		}
	}

	return err
}

func closeDrivers(drivers map[string]dbx.Driver) {
	for _, d := range drivers {
		if driver, ok := d.(*PostgresDriver); ok {
			driver.ClosePool()
		}
	}
}

func newConnectionPool(ctx context.Context, dbConf dbx.ConnConfig, preparedStatements ...dbx.PreparedStatement) (*pgxpool.Pool, error) {
	poolConfig, err := createConnectionConfiguration(dbConf)
	if err != nil {
		return nil, err
	}

	// Setup prepared statements
	poolConfig.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return setupPreparedStatements(ctx, conn, preparedStatements...)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, errorx.NewDatabaseErrorWrapper(err, "Error creating New Connection Pool").OnConnection(dbConf.Alias)
	}

	return pool, nil
}

func createConnectionConfiguration(dbConf dbx.ConnConfig) (*pgxpool.Config, error) {
	if err := validator.NewValidator().Validate(dbConf); err != nil {
		return nil, errorx.NewDatabaseErrorWrapper(err, "Error creating Connection Pool ConnConfig").OnConnection(dbConf.Alias)
	}

	poolConfig, err := pgxpool.ParseConfig("")
	if err != nil {
		return nil, errorx.NewDatabaseErrorWrapper(err, "Error creating Connection Pool ConnConfig").OnConnection(dbConf.Alias)
	}

	poolConfig.ConnConfig.Database = dbConf.DBName
	poolConfig.ConnConfig.User = dbConf.User
	poolConfig.ConnConfig.Password = dbConf.Password
	poolConfig.MaxConns = int32(runtime.NumCPU()) * dbConf.MaxConn
	poolConfig.MinConns = 0

	if dbConf.IsLocalEnv || dbConf.VpcDirectConnection {
		// If local we need to specify the port, if not local
		// the port is defined in the Unix Socket configuration
		// mounted in the container at runtime (5432)
		logx.
			GetLogger().
			LogInfo(context.TODO(), fmt.Sprintf("Connecting to DB on HOST:%s and PORT:%d",
				dbConf.Host,
				uint16(dbConf.Port)))
		poolConfig.ConnConfig.Port = uint16(dbConf.Port)
		poolConfig.ConnConfig.Host = dbConf.Host
	} else {
		logx.GetLogger().LogInfo(context.TODO(), "Connecting to DB trough CLOUD SQL PROXY")
		poolConfig.ConnConfig.Host = fmt.Sprintf("/cloudsql/%s", dbConf.Host)
	}

	return poolConfig, nil
}

func setupPreparedStatements(ctx context.Context, conn *pgx.Conn, preparesStatements ...dbx.PreparedStatement) error {
	for _, stmt := range preparesStatements {
		_, err := conn.Prepare(ctx, stmt.GetName(), stmt.GetQuery())
		if err != nil {
			return errorx.NewDatabaseErrorWrapper(err, "Failed to prepare statement '%s'", stmt.GetName())
		}
	}

	return nil
}
