// Package dbtest contains supporting code for running tests that hit the
// journal databases.
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
	"github.com/rschio/ledger/internal/data/dbschema"
	db "github.com/rschio/ledger/internal/data/dbsql/pgx"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

type logsReader interface {
	Logs(ctx context.Context) (io.ReadCloser, error)
}

func dumpLogs(c logsReader) string {
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

type dbContainer struct {
	Container  *postgres.PostgresContainer
	ConnString string
}

func startDB() (*dbContainer, error) {
	ctx := context.Background()

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
		return nil, fmt.Errorf("connString err: %w", err)
	}

	return &dbContainer{
		Container:  c,
		ConnString: connStr,
	}, nil
}

func newLog() (*slog.Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	return slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})), &buf
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

	c, err := startDB()
	if err != nil {
		t.Fatalf("starting DB container: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	log, buf := newLog()

	database, err := db.OpenConnString(ctx, c.ConnString)
	if err != nil {
		t.Fatalf("Opening database connection: %v", err)
	}

	for _, option := range options {
		if err := option(ctx, t, database, c); err != nil {
			t.Logf("Logs for %s\n%s:", c.Container.GetContainerID(), dumpLogs(c.Container))
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

// Option configures the database created by NewUnit.
type Option func(context.Context, *testing.T, *pgxpool.Pool, *dbContainer) error

// WithMigrations migrates the database to the latest schema.
func WithMigrations() Option {
	return func(ctx context.Context, t *testing.T, _ *pgxpool.Pool, c *dbContainer) error {
		t.Log("Migrating database...")

		db, err := sql.Open("pgx", c.ConnString)
		if err != nil {
			return fmt.Errorf("failed to open DB for migration: %w", err)
		}
		defer db.Close()

		if err := dbschema.Migrate(db); err != nil {
			return fmt.Errorf("migrating error: %w", err)
		}

		return nil
	}
}

// NewRedis starts a Redis server inside a Docker container and returns a
// client connected to it as well as a function to call at the end of the
// test.
func NewRedis(t *testing.T) (*slog.Logger, *redis.Client, func()) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
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
		c.Terminate(context.Background())
		t.Fatalf("redis endpoint: %v", err)
	}

	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		t.Logf("Logs for %s\n%s:", c.GetContainerID(), dumpLogs(c))
		c.Terminate(context.Background())
		t.Fatalf("redis ping: %v", err)
	}

	log, buf := newLog()

	teardown := func() {
		t.Helper()
		client.Close()
		c.Terminate(context.Background())

		printLogs(buf)
	}

	return log, client, teardown
}
