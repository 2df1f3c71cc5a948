package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ardanlabs/conf/v3"
	_ "github.com/jackc/pgx/v5/stdlib" // Postgres stdlib driver, used for migrations.
	"github.com/redis/go-redis/v9"
	"github.com/rschio/bank/internal/core/bank"
	"github.com/rschio/bank/internal/core/bank/store/bankcache"
	"github.com/rschio/bank/internal/core/bank/store/bankdb"
	"github.com/rschio/bank/internal/core/bank/store/bankfile"
	"github.com/rschio/bank/internal/data/dbschema"
	db "github.com/rschio/bank/internal/data/dbsql/pgx"
	"github.com/rschio/bank/internal/handlers"
	"github.com/rschio/bank/internal/logger"
	"github.com/rschio/bank/internal/trace"
)

var build = "develop"

const service = "BANK"

func main() {
	log := logger.New(service)

	if err := run(log); err != nil {
		log.Error("startup", "ERROR", err)
		os.Exit(1)
	}
}

type config struct {
	conf.Version
	Env string `conf:"default:DEV"`
	Log struct {
		Level string `conf:"default:info"`
	}
	Web struct {
		Port            int           `conf:"default:8080"`
		ShutdownTimeout time.Duration `conf:"default:20s"`
	}
	Store struct {
		Kind        string `conf:"default:file,help:file|postgres|redis"`
		File        string `conf:"default:data/bank.dat"`
		Report      string `conf:"default:data/reports"`
		LoadOnStart bool   `conf:"default:false"`
	}
	DB struct {
		User         string `conf:"default:postgres"`
		Password     string `conf:"default:postgres,mask"`
		Host         string `conf:"default:0.0.0.0:5432"`
		Name         string `conf:"default:postgres"`
		MaxOpenConns int    `conf:"default:10"`
		DisableTLS   bool   `conf:"default:true"`
	}
	Redis struct {
		Addr     string `conf:"default:0.0.0.0:6379"`
		Password string `conf:"mask"`
		DB       int    `conf:"default:0"`
		Key      string `conf:"default:bank:snapshot"`
	}
	Tempo struct {
		Endpoint       string  `conf:"default:0.0.0.0:4317"`
		SampleFraction float64 `conf:"default:0.05"`
		DiscardTraces  bool    `conf:"default:true"`
	}
}

func run(log *slog.Logger) error {
	ctx := context.Background()

	// =========================================================================
	// Configuration

	cfg := config{
		Version: conf.Version{
			Build: build,
		},
	}

	help, err := conf.Parse(service, &cfg)
	if err != nil {
		if errors.Is(err, conf.ErrHelpWanted) {
			fmt.Println(help)
			return nil
		}
		return fmt.Errorf("parsing config: %w", err)
	}

	log = logger.NewWithWriter(os.Stdout, service, logger.ParseLevel(cfg.Log.Level))

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
	// Tracing Support

	log.Info("startup", "status", "initializing tracing support", "endpoint", cfg.Tempo.Endpoint)

	provider, err := trace.NewProvider(ctx, trace.Config{
		Env:            cfg.Env,
		Endpoint:       cfg.Tempo.Endpoint,
		Service:        service,
		Build:          build,
		SampleFraction: cfg.Tempo.SampleFraction,
		DiscardTraces:  cfg.Tempo.DiscardTraces,
	})
	if err != nil {
		return fmt.Errorf("starting tracing: %w", err)
	}
	defer provider.Shutdown(context.Background())

	tracer := provider.Tracer(service)

	// =========================================================================
	// Store Support

	store, closeStore, err := openStore(ctx, log, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	b := bank.New()
	if cfg.Store.LoadOnStart {
		switch err := b.Import(ctx, store); {
		case errors.Is(err, bank.ErrNoSnapshot):
			log.Info("startup", "status", "no snapshot to load", "store", cfg.Store.Kind)
		case err != nil:
			return fmt.Errorf("loading bank: %w", err)
		default:
			log.Info("startup", "status", "bank loaded", "store", cfg.Store.Kind)
		}
	}

	// =========================================================================
	// Start API Service

	log.Info("startup", "status", "initializing BANK API support")

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	srv := handlers.NewServer(log, b, store, cfg.Store.Report)
	mux := handlers.APIMux(srv, tracer)

	api := http.Server{
		Addr:     fmt.Sprintf(":%d", cfg.Web.Port),
		Handler:  mux,
		ErrorLog: slog.NewLogLogger(log.Handler(), slog.LevelInfo),
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

// openStore builds the configured store. The returned func releases it.
func openStore(ctx context.Context, log *slog.Logger, cfg config) (bank.Store, func(), error) {
	switch cfg.Store.Kind {
	case "file":
		log.Info("startup", "status", "initializing file store", "path", cfg.Store.File)
		return bankfile.NewStore(log, cfg.Store.File), func() {}, nil

	case "postgres":
		return openDB(ctx, log, cfg)

	case "redis":
		log.Info("startup", "status", "initializing redis support", "addr", cfg.Redis.Addr)

		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})

		pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		if err := client.Ping(pingCtx).Err(); err != nil {
			client.Close()
			return nil, nil, fmt.Errorf("redis not healthy: %w", err)
		}

		closeFn := func() {
			log.Info("shutdown", "status", "stopping redis support", "addr", cfg.Redis.Addr)
			client.Close()
		}
		return bankcache.NewStore(log, client, cfg.Redis.Key), closeFn, nil
	}

	return nil, nil, fmt.Errorf("unknown store kind %q", cfg.Store.Kind)
}

func openDB(ctx context.Context, log *slog.Logger, cfg config) (bank.Store, func(), error) {
	log.Info("startup", "status", "initializing database support", "host", cfg.DB.Host)

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
	closeFn := func() {
		log.Info("shutdown", "status", "stopping database support", "host", cfg.DB.Host)
		database.Close()
	}

	ctxWithTimeout, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := db.StatusCheck(ctxWithTimeout, database); err != nil {
		closeFn()
		return nil, nil, fmt.Errorf("database not health: %w", err)
	}

	stdDB, err := sql.Open("pgx", db.ConnString(dbCfg))
	if err != nil {
		closeFn()
		return nil, nil, fmt.Errorf("failed to open DB for migration: %w", err)
	}
	defer stdDB.Close()

	if err := dbschema.Migrate(ctxWithTimeout, stdDB); err != nil {
		closeFn()
		return nil, nil, fmt.Errorf("migrating error: %w", err)
	}

	return bankdb.NewStore(log, database), closeFn, nil
}
