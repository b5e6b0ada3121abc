package postgres

import (
	"context"
	"fmt"
	"log"
	"path/filepath"
	"testing"
	"time"

	"github.com/docker/go-connections/nat"
	"github.com/marcodd23/go-micro-dbfunc/pkg/dbx"
	"github.com/marcodd23/go-micro-dbfunc/pkg/dbx/pgxdb"
	"github.com/marcodd23/go-micro-dbfunc/pkg/logx"
	"github.com/marcodd23/go-micro-dbfunc/test"
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

	// Schema holding the test stored functions and collection types.
	Schema = "sales"
)

// PostgresContainer represents the postgres Container type used in the module.
type PostgresContainer struct {
	Container  *postgres.PostgresContainer
	MappedPort nat.Port
	Host       string
	DbName     string
	DbUser     string
	DbPassword string
}

// StartPostgresContainer - start a postgres container initialized with the default test schema.
func StartPostgresContainer(ctx context.Context, t *testing.T) *PostgresContainer {
	return StartPostgresContainerWithInitScript(ctx, t, filepath.Join("test/testcontainer/postgres", "init_schema.sql"))
}

// StartPostgresContainerWithInitScript - start a postgres container initialized with the given script,
// relative to the project root.
func StartPostgresContainerWithInitScript(ctx context.Context, t *testing.T, initScriptPath string) *PostgresContainer {
	test.ConfigTestRootPath()

	pg, err := postgres.Run(ctx,
		postgresContainerImage,
		postgres.WithInitScripts(filepath.Clean(initScriptPath)),
		postgres.WithDatabase(MainDbName),
		postgres.WithUsername(MainDbUser),
		postgres.WithPassword(MainDbPassword),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)

	require.NoError(t, err)
	require.NotNil(t, pg)

	mappedPort, err := pg.MappedPort(ctx, postgresContainerPort)
	require.NoError(t, err)

	host, err := pg.Host(ctx)
	require.NoError(t, err)

	log.Printf("Postgres running at %s:%s", host, mappedPort.Port())

	return &PostgresContainer{
		Container:  pg,
		MappedPort: mappedPort,
		Host:       host,
		DbName:     MainDbName,
		DbUser:     MainDbUser,
		DbPassword: MainDbPassword,
	}
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

// DSN - connection string of the container database.
func (c *PostgresContainer) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
		c.DbUser, c.DbPassword, c.Host, c.MappedPort.Port(), c.DbName)
}

// PoolConfig - pool configuration pointing to the container database.
func (c *PostgresContainer) PoolConfig(maxConn int32) dbx.PoolConfig {
	return dbx.PoolConfig{
		DSN:      c.DSN(),
		MaxConn:  maxConn,
		Threaded: true,
	}
}

// SetupProvider - initialize a connection provider on the container database and wait for it to be ready.
func SetupProvider(ctx context.Context, t *testing.T, c *PostgresContainer, maxConn int32) *pgxdb.PostgresProvider {
	provider := pgxdb.NewPostgresProvider()
	require.True(t, provider.InitializePool(ctx, c.PoolConfig(maxConn)))

	for retries := 0; retries < 20; retries++ {
		conn, err := provider.Acquire(ctx)
		if err == nil {
			provider.Release(ctx, conn)
			return provider
		}

		t.Log("Waiting for database to be ready...", err)
		time.Sleep(time.Second)
	}

	t.Fatal("Database is not ready after waiting")

	return nil
}
