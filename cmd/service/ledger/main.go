package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ardanlabs/conf/v3"
	_ "github.com/jackc/pgx/v5/stdlib" // Postgres stdlib driver, used for migrations.
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/rschio/ledger/internal/core/account"
	"github.com/rschio/ledger/internal/core/account/journal"
	"github.com/rschio/ledger/internal/core/account/journal/journaldb"
	"github.com/rschio/ledger/internal/core/account/journal/journalredis"
	"github.com/rschio/ledger/internal/core/account/store/accountmem"
	"github.com/rschio/ledger/internal/data/dbschema"
	db "github.com/rschio/ledger/internal/data/dbsql/pgx"
	"github.com/rschio/ledger/internal/handlers"
	"github.com/rschio/ledger/internal/logger"
	"github.com/rschio/ledger/internal/trace"
)

var build = "develop"

type config struct {
	conf.Version
	Env string `conf:"default:DEV"`
	Log struct {
		Level string `conf:"default:INFO"`
	}
	Web struct {
		Port            int           `conf:"default:8080"`
		ReadTimeout     time.Duration `conf:"default:5s"`
		WriteTimeout    time.Duration `conf:"default:10s"`
		IdleTimeout     time.Duration `conf:"default:120s"`
		ShutdownTimeout time.Duration `conf:"default:20s"`
	}
	Accounts struct {
		Table []string `conf:"default:1:100000;2:80000;3:1000000;4:10000000;5:500000"`
		File  string
	}
	Tempo struct {
		Endpoint       string  `conf:"default:tempo:4317"`
		SampleFraction float64 `conf:"default:0.05"`
		Discard        bool    `conf:"default:true"`
	}
	Journal struct {
		Postgres      bool          `conf:"default:false"`
		Redis         bool          `conf:"default:false"`
		BufferSize    int           `conf:"default:4096"`
		BatchSize     int           `conf:"default:100"`
		FlushInterval time.Duration `conf:"default:1s"`
	}
	DB struct {
		User         string `conf:"default:postgres"`
		Password     string `conf:"default:postgres,mask"`
		Host         string `conf:"default:postgres:5432"`
		Name         string `conf:"default:postgres"`
		MaxOpenConns int    `conf:"default:4"`
		DisableTLS   bool   `conf:"default:true"`
	}
	Redis struct {
		Addr     string `conf:"default:redis:6379"`
		Password string `conf:"mask"`
		Stream   string `conf:"default:ledger:transactions"`
		MaxLen   int64  `conf:"default:100000"`
	}
}

func main() {
	log := logger.New(os.Stdout, slog.LevelInfo, "LEDGER")

	if err := run(log); err != nil {
		log.Error("startup", "ERROR", err)
		os.Exit(1)
	}
}

func run(log *slog.Logger) error {
	ctx := context.Background()

	// =========================================================================
	// Configuration

	cfg := config{
		Version: conf.Version{
			Build: build,
			Desc:  "in-memory account ledger",
		},
	}

	if err := loadEnvFile(envFile()); err != nil {
		return fmt.Errorf("loading env file: %w", err)
	}

	const prefix = "LEDGER"
	help, err := conf.Parse(prefix, &cfg)
	if err != nil {
		if errors.Is(err, conf.ErrHelpWanted) {
			fmt.Println(help)
			return nil
		}
		return fmt.Errorf("parsing config: %w", err)
	}

	level, err := logger.ParseLevel(cfg.Log.Level)
	if err != nil {
		return fmt.Errorf("parsing log level: %w", err)
	}
	log = logger.New(os.Stdout, level, "LEDGER")

	// =========================================================================
	// App Starting

	log.Info("starting service", "version", build)
	defer log.Info("shutdown complete")

	out, err := conf.String(&cfg)
	if err != nil {
		return fmt.Errorf("generating config for output: %w", err)
	}
	log.Info("startup", "config", out)

	// =========================================================================
	// Start Tracing Support

	log.Info("startup", "status", "initializing OT/Tempo tracing support")

	provider, err := trace.NewProvider(ctx, trace.Config{
		Env:            cfg.Env,
		Endpoint:       cfg.Tempo.Endpoint,
		Service:        "ledger",
		Build:          build,
		SampleFraction: cfg.Tempo.SampleFraction,
		DiscardTraces:  cfg.Tempo.Discard,
	})
	if err != nil {
		return fmt.Errorf("starting tracing: %w", err)
	}
	defer provider.Shutdown(context.Background())

	tracer := provider.Tracer("ledger")

	// =========================================================================
	// Account Provisioning

	provisions, err := loadProvisions(cfg.Accounts.Table, cfg.Accounts.File)
	if err != nil {
		return fmt.Errorf("loading accounts: %w", err)
	}
	log.Info("startup", "status", "accounts provisioned", "accounts", len(provisions))

	// =========================================================================
	// Journal Support

	var options []account.Option
	var sinks []journal.Sink

	if cfg.Journal.Postgres {
		sink, closeDB, err := openDBSink(ctx, log, cfg)
		if err != nil {
			return err
		}
		defer closeDB()
		sinks = append(sinks, sink)
	}

	if cfg.Journal.Redis {
		sink, closeRedis, err := openRedisSink(ctx, log, cfg)
		if err != nil {
			return err
		}
		defer closeRedis()
		sinks = append(sinks, sink)
	}

	if len(sinks) > 0 {
		j := journal.New(log, journal.Multi(sinks...), journal.Config{
			BufferSize:    cfg.Journal.BufferSize,
			BatchSize:     cfg.Journal.BatchSize,
			FlushInterval: cfg.Journal.FlushInterval,
		})
		j.Start(ctx)
		defer func() {
			log.Info("shutdown", "status", "flushing journal")
			j.Close()
			log.Info("shutdown", "status", "journal flushed", "written", j.Written(), "dropped", j.Dropped())
		}()

		options = append(options, account.WithRecorder(j))
	}

	// =========================================================================
	// Start API Service

	log.Info("startup", "status", "initializing LEDGER API support")

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	core := account.NewCore(accountmem.NewStore(log, provisions), options...)
	srv := handlers.NewServer(log, core)
	mux := handlers.APIMux(srv, tracer)

	api := http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Web.Port),
		Handler:      mux,
		ReadTimeout:  cfg.Web.ReadTimeout,
		WriteTimeout: cfg.Web.WriteTimeout,
		IdleTimeout:  cfg.Web.IdleTimeout,
		ErrorLog:     slog.NewLogLogger(log.Handler(), slog.LevelError),
	}

	serverErrors := make(chan error, 1)
	go func() {
		log.Info("startup", "status", "api router started", "host", api.Addr)
		serverErrors <- api.ListenAndServe()
	}()

	// =========================================================================
	// Shutdown

	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)

	case sig := <-shutdown:
		log.Info("shutdown", "status", "shutdown started", "signal", sig)
		defer log.Info("shutdown", "status", "shutdown complete", "signal", sig)

		ctx, cancel := context.WithTimeout(context.Background(), cfg.Web.ShutdownTimeout)
		defer cancel()

		if err := api.Shutdown(ctx); err != nil {
			api.Close()
			return fmt.Errorf("could not stop server gracefully: %w", err)
		}
	}

	return nil
}

// envFile returns the env file to load. It is read before the rest of the
// configuration, so it can only be changed through the environment.
func envFile() string {
	if f, ok := os.LookupEnv("LEDGER_ENV_FILE"); ok {
		return f
	}
	return ".env"
}

func loadEnvFile(path string) error {
	err := godotenv.Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

func loadProvisions(table []string, file string) ([]account.Provision, error) {
	if file == "" {
		return account.ParseProvisions(table)
	}

	f, err := os.Open(file)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return account.DecodeProvisions(f)
}

func openDBSink(ctx context.Context, log *slog.Logger, cfg config) (*journaldb.Sink, func(), error) {
	log.Info("startup", "status", "initializing journal database support", "host", cfg.DB.Host)

	dbCfg := db.Config{
		User:         cfg.DB.User,
		Password:     cfg.DB.Password,
		Host:         cfg.DB.Host,
		Name:         cfg.DB.Name,
		MaxOpenConns: cfg.DB.MaxOpenConns,
		DisableTLS:   cfg.DB.DisableTLS,
	}
	database, err := db.Open(ctx, dbCfg)
	if err != nil {
		return nil, nil, fmt.Errorf("connecting to db: %w", err)
	}
	closeDB := func() {
		log.Info("shutdown", "status", "stopping journal database support", "host", cfg.DB.Host)
		database.Close()
	}

	ctxWithTimeout, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := db.StatusCheck(ctxWithTimeout, database); err != nil {
		closeDB()
		return nil, nil, fmt.Errorf("database not health: %w", err)
	}

	stdDB, err := sql.Open("pgx", db.ConnString(dbCfg))
	if err != nil {
		closeDB()
		return nil, nil, fmt.Errorf("failed to open DB for migration: %w", err)
	}
	defer stdDB.Close()

	if err := dbschema.Migrate(stdDB); err != nil {
		closeDB()
		return nil, nil, fmt.Errorf("migrating error: %w", err)
	}

	return journaldb.NewSink(log, database), closeDB, nil
}

func openRedisSink(ctx context.Context, log *slog.Logger, cfg config) (*journalredis.Sink, func(), error) {
	log.Info("startup", "status", "initializing journal redis support", "addr", cfg.Redis.Addr)

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
	})
	closeRedis := func() {
		log.Info("shutdown", "status", "stopping journal redis support", "addr", cfg.Redis.Addr)
		client.Close()
	}

	ctxWithTimeout, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := client.Ping(ctxWithTimeout).Err(); err != nil {
		closeRedis()
		return nil, nil, fmt.Errorf("redis not health: %w", err)
	}

	return journalredis.NewSink(log, client, cfg.Redis.Stream, cfg.Redis.MaxLen), closeRedis, nil
}
