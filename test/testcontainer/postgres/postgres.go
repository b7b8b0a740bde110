package postgres

import (
	"context"
	"fmt"
	"log"
	"path/filepath"
	"testing"
	"time"

	"github.com/docker/go-connections/nat"
	"github.com/marcodd23/go-subatomic/pkg/dbx"
	"github.com/marcodd23/go-subatomic/pkg/dbx/pgxdb"
	"github.com/marcodd23/go-subatomic/pkg/logx"
	"github.com/marcodd23/go-subatomic/test"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

const (
	postgresContainerImage = "docker.io/postgres:16-alpine"
	postgresContainerPort  = "5432/tcp"

	MainDbName     = "main-db"
	MainDbUser     = "postgres"
	MainDbPassword = "password"

	TestSnapshotId = "test-snapshot"
)

// PostgresContainer represents the postgres Container type used in the module.
type PostgresContainer struct {
	Container      *postgres.PostgresContainer
	MappedPort     nat.Port
	Host           string
	DbName         string
	DbUser         string
	DbPassword     string
	PrepStatements []dbx.PreparedStatement
}

// StartPostgresContainer - start a postgres container initialised with test/testcontainer/postgres/init_schema.sql.
func StartPostgresContainer(ctx context.Context, t *testing.T, preparesStatements []dbx.PreparedStatement) *PostgresContainer {
	return StartPostgresContainerWithInitScript(ctx, t, filepath.Join("test", "testcontainer", "postgres", "init_schema.sql"), preparesStatements)
}

// StartPostgresContainerWithInitScript - start a postgres container initialised with the given script,
// relative to the project root.
func StartPostgresContainerWithInitScript(ctx context.Context, t *testing.T, initScriptPath string, preparesStatements []dbx.PreparedStatement) *PostgresContainer {
	pg, err := postgres.Run(ctx,
		postgresContainerImage,
		postgres.WithInitScripts(test.Path(initScriptPath)),
		postgres.WithDatabase(MainDbName),
		postgres.WithUsername(MainDbUser),
		postgres.WithPassword(MainDbPassword),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(10*time.Second)),
	)

	require.NoError(t, err)
	require.NotNil(t, pg)

	mappedPort, err := pg.MappedPort(ctx, postgresContainerPort)
	require.NoError(t, err)

	host, err := pg.Host(ctx)
	require.NoError(t, err)

	log.Printf("Postgres running at %s:%s", host, mappedPort.Port())

	// Create a snapshot of the database to restore between tests
	err = pg.Snapshot(ctx, postgres.WithSnapshotName(TestSnapshotId))
	require.NoError(t, err)

	return &PostgresContainer{
		Container:      pg,
		MappedPort:     mappedPort,
		Host:           host,
		DbName:         MainDbName,
		DbUser:         MainDbUser,
		DbPassword:     MainDbPassword,
		PrepStatements: preparesStatements,
	}
}

// Restore - restore the database to the snapshot taken at startup.
func (c *PostgresContainer) Restore(ctx context.Context, t *testing.T) {
	require.NoError(t, c.Container.Restore(ctx, postgres.WithSnapshotName(TestSnapshotId)))
}

func (c *PostgresContainer) StopContainer(ctx context.Context, t *testing.T) error {
	logx.GetLogger().LogInfo(ctx, "Terminating the Container ....")

	timeout := time.Second * 3

	err := c.Container.Stop(ctx, &timeout)
	if err != nil {
		require.NoError(t, err, fmt.Sprintf("error stopping the Container %v", err))
		return err
	}

	return nil
}

// ConnConfig - connection config for this container, registered under alias.
func (c *PostgresContainer) ConnConfig(alias string) dbx.ConnConfig {
	return dbx.ConnConfig{
		Alias:      alias,
		IsLocalEnv: true,
		Host:       c.Host,
		Port:       int32(c.MappedPort.Int()),
		DBName:     c.DbName,
		User:       c.DbUser,
		Password:   c.DbPassword,
		MaxConn:    1,
	}
}

// SetupDatabaseConnections - register one Postgres connection per alias, each with its own session on the container.
// Pools are closed at the end of the test.
func SetupDatabaseConnections(ctx context.Context, t *testing.T, container *PostgresContainer, aliases ...string) *dbx.Connections {
	if len(aliases) == 0 {
		aliases = []string{dbx.DefaultAlias}
	}

	dbConfs := make([]dbx.ConnConfig, 0, len(aliases))
	for _, alias := range aliases {
		dbConfs = append(dbConfs, container.ConnConfig(alias))
	}

	conns, err := pgxdb.SetupPostgresConnections(ctx, dbConfs, container.PrepStatements...)
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = pgxdb.Shutdown(context.Background(), conns)
	})

	return conns
}
