// Package db provides support to access a PostgreSQL database.
package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"reflect"
	"regexp"
	"strings"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rschio/ledger/internal/logger"
	"github.com/rschio/ledger/internal/web"
	"go.opentelemetry.io/otel/attribute"
)

// Set of error variables for CRUD operations.
var (
	ErrDBNotFound        = sql.ErrNoRows
	ErrDBDuplicatedEntry = errors.New("duplicated entry")
	ErrUndefinedTable    = errors.New("undefined table")
)

// Config is the required properties to use the database.
type Config struct {
	User         string
	Password     string
	Host         string
	Name         string
	Schema       string
	MaxOpenConns int
	DisableTLS   bool
}

// ConnString creates a postgres connection string with config values.
func ConnString(cfg Config) string {
	sslMode := "require"
	if cfg.DisableTLS {
		sslMode = "disable"
	}

	q := make(url.Values)
	q.Set("sslmode", sslMode)
	q.Set("timezone", "utc")
	if cfg.Schema != "" {
		q.Set("search_path", cfg.Schema)
	}
	if cfg.MaxOpenConns > 0 {
		q.Set("pool_max_conns", fmt.Sprint(cfg.MaxOpenConns))
	}

	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(cfg.User, cfg.Password),
		Host:     cfg.Host,
		Path:     cfg.Name,
		RawQuery: q.Encode(),
	}

	return u.String()
}

// Open knows how to open a database connection based on the configuration.
func Open(ctx context.Context, cfg Config) (*pgxpool.Pool, error) {
	return OpenConnString(ctx, ConnString(cfg))
}

// OpenConnString open a database connection using the connString.
func OpenConnString(ctx context.Context, connString string) (*pgxpool.Pool, error) {
	pgCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, err
	}
	return pgxpool.NewWithConfig(ctx, pgCfg)
}

// StatusCheck returns nil if it can successfully talk to the database. It
// returns a non-nil error otherwise.
func StatusCheck(ctx context.Context, db *pgxpool.Pool) error {
	for attempts := 1; ; attempts++ {
		if err := db.Ping(ctx); err == nil {
			break
		}
		time.Sleep(time.Duration(attempts) * 100 * time.Millisecond)
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}

	// Run a simple query to determine connectivity.
	// Running this query forces a round trip through the database.
	const q = `SELECT true`
	var tmp bool
	return db.QueryRow(ctx, q).Scan(&tmp)
}

// DB is an interface used to support both *pgxpool.Pool and pgx.Tx.
type DB interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, arguments ...any) (commandTag pgconn.CommandTag, err error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// NamedExec is a helper function to execute a CUD operation with
// logging and tracing where field replacement is necessary.
func NamedExec(ctx context.Context, log *slog.Logger, db DB, query string, data any) error {
	ctx, span := web.AddSpan(ctx, "internal.data.dbsql.pgx.NamedExec")
	defer span.End()

	args, err := toNamedArgs(data)
	if err != nil {
		return fmt.Errorf("failed to parse arguments: %w", err)
	}

	q := queryString(query, args)
	logger.LogcCtx(ctx, log, slog.LevelDebug, 3, "db.NamedExec", "query", q)
	span.SetAttributes(attribute.String("query", q))

	if _, err := db.Exec(ctx, query, args); err != nil {
		return mapError(err)
	}

	return nil
}

// NamedQuerySlice is a helper function for executing queries that return a
// collection of data to be unmarshalled into a slice where field replacement is
// necessary.
func NamedQuerySlice[T any](ctx context.Context, log *slog.Logger, db DB, query string, data any) ([]T, error) {
	ctx, span := web.AddSpan(ctx, "internal.data.dbsql.pgx.NamedQuerySlice")
	defer span.End()

	args, err := toNamedArgs(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse arguments: %w", err)
	}

	q := queryString(query, args)
	logger.LogcCtx(ctx, log, slog.LevelDebug, 3, "db.NamedQuerySlice", "query", q)
	span.SetAttributes(attribute.String("query", q))

	rows, err := db.Query(ctx, query, args)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	out, err := pgx.CollectRows(rows, pgx.RowToStructByName[T])
	if err != nil {
		return nil, mapError(err)
	}

	return out, nil
}

func mapError(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrDBNotFound
	}

	var pgerr *pgconn.PgError
	if errors.As(err, &pgerr) {
		switch pgerr.Code {
		case pgerrcode.UndefinedTable:
			return ErrUndefinedTable
		case pgerrcode.UniqueViolation:
			return ErrDBDuplicatedEntry
		}
	}

	return err
}

func toNamedArgs(value any) (pgx.NamedArgs, error) {
	s := reflect.ValueOf(value)
	if s.Kind() == reflect.Ptr {
		s = s.Elem()
	}
	if s.Kind() != reflect.Struct {
		return nil, fmt.Errorf("invalid struct")
	}
	typ := s.Type()

	args := make(pgx.NamedArgs, s.NumField())
	for i := range s.NumField() {
		field := typ.Field(i)
		tag := field.Tag.Get("db")
		if !field.IsExported() || tag == "-" {
			continue
		}
		if tag == "" {
			tag = field.Name
		}
		args[tag] = s.Field(i).Interface()
	}

	return args, nil
}

var reDBQueryArg = regexp.MustCompile(`@\w+`)

// queryString renders query with its arguments for logs and spans.
func queryString(query string, args map[string]any) string {
	query = reDBQueryArg.ReplaceAllStringFunc(query, func(s string) string {
		val, ok := args[s[1:]]
		if !ok {
			return s
		}
		switch v := val.(type) {
		case []byte, string:
			return fmt.Sprintf("'%s'", v)
		default:
			return fmt.Sprintf("%v", v)
		}
	})
	query = strings.ReplaceAll(query, "\t", "")
	query = strings.ReplaceAll(query, "\n", " ")
	return strings.TrimSpace(query)
}
