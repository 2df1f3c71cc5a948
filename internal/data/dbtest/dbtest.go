// Package dbtest contains supporting code for running tests that hit the DB
// or the cache.
package dbtest

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"runtime/debug"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib" // Postgres stdlib driver, used for migrations.
	"github.com/redis/go-redis/v9"
	"github.com/rschio/bank/internal/data/dbschema"
	db "github.com/rschio/bank/internal/data/dbsql/pgx"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

type dbContainer struct {
	Container  *postgres.PostgresContainer
	ConnString string
}

func (c *dbContainer) DumpLogs() string {
	return dumpLogs(c.Container)
}

func dumpLogs(c testcontainers.Container) string {
	logs, err := c.Logs(context.Background())
	if err != nil {
		return fmt.Sprintf("failed to dump container logs: %v", err)
	}
	b, err := io.ReadAll(logs)
	if err != nil {
		return fmt.Sprintf("failed to read container logs: %v", err)
	}
	return string(b)
}

func startDB(ctx context.Context) (*dbContainer, error) {
	c, err := postgres.RunContainer(ctx,
		testcontainers.WithImage("postgres:16-alpine"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(20*time.Second),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("run container err: %w", err)
	}

	connStr, err := c.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		c.Terminate(ctx)
		return nil, fmt.Errorf("connString err: %w", err)
	}

	return &dbContainer{
		Container:  c,
		ConnString: connStr,
	}, nil
}

// testLogger returns a logger writing to buf. The buffer is printed at
// teardown so logs only show up next to the test that produced them.
func testLogger() (*slog.Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	return slog.New(slog.NewTextHandler(&buf, nil)), &buf
}

func printLogs(buf *bytes.Buffer) {
	fmt.Println("******************** LOGS ********************")
	fmt.Print(buf.String())
	fmt.Println("******************** LOGS ********************")
}

// NewUnit creates a test database inside a Docker container. It gives options
// to migrate the database. It returns the database to use as well as a
// function to call at the end of the test.
func NewUnit(t *testing.T, options ...Option) (*slog.Logger, *pgxpool.Pool, func()) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	c, err := startDB(ctx)
	if err != nil {
		t.Fatalf("starting DB container: %v", err)
	}

	log, buf := testLogger()

	database, err := db.OpenConnString(ctx, c.ConnString)
	if err != nil {
		t.Fatalf("Opening database connection: %v", err)
	}

	for _, option := range options {
		if err := option(ctx, t, database, c); err != nil {
			t.Logf("Logs for %s\n%s:", c.Container.GetContainerID(), c.DumpLogs())
			t.Fatal(err)
		}
	}

	t.Log("Ready for testing...")

	// teardown is the function that should be invoked when the caller is done
	// with the database.
	teardown := func() {
		if r := recover(); r != nil {
			t.Log(r)
			t.Error(string(debug.Stack()))
		}

		t.Helper()
		database.Close()
		c.Container.Terminate(context.Background())
		printLogs(buf)
	}

	return log, database, teardown
}

// Option configures the database started by NewUnit.
type Option func(context.Context, *testing.T, *pgxpool.Pool, *dbContainer) error

// WithMigrations applies the schema migrations.
func WithMigrations() Option {
	return func(ctx context.Context, t *testing.T, _ *pgxpool.Pool, c *dbContainer) error {
		t.Log("Migrating database...")

		sqlDB, err := sql.Open("pgx", c.ConnString)
		if err != nil {
			return fmt.Errorf("failed to open DB for migration: %w", err)
		}
		defer sqlDB.Close()

		if err := dbschema.Migrate(ctx, sqlDB); err != nil {
			return fmt.Errorf("migrating error: %w", err)
		}

		return nil
	}
}

// NewRedis starts a Redis container and returns a client connected to it
// and a teardown function.
func NewRedis(t *testing.T) (*slog.Logger, *redis.Client, func()) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	c, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(20 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		t.Fatalf("starting redis container: %v", err)
	}

	addr, err := c.Endpoint(ctx, "")
	if err != nil {
		t.Logf("Logs for %s\n%s:", c.GetContainerID(), dumpLogs(c))
		t.Fatalf("redis endpoint: %v", err)
	}

	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		t.Fatalf("ping redis: %v", err)
	}

	log, buf := testLogger()

	teardown := func() {
		t.Helper()
		client.Close()
		c.Terminate(context.Background())
		printLogs(buf)
	}

	return log, client, teardown
}
