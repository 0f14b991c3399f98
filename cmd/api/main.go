package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"backend-steersafe/internal/config"
	"backend-steersafe/internal/db"
	"backend-steersafe/internal/logger"
	"backend-steersafe/internal/server"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

const serviceName = "steersafe-api"

var mainDepsProvider = defaultDeps
var mainRunner = realMain

func main() {
	mainRunner(mainDepsProvider())
}

type mainDeps struct {
	loadConfig      func() config.Config
	newLogger       func(config.Config) *slog.Logger
	connectPostgres func(config.Config) (*pgxpool.Pool, error)
	ensureSchema    func(context.Context, *pgxpool.Pool) error
	connectRedis    func(config.Config) *redis.Client
	notify          func(chan<- os.Signal, ...os.Signal)
	run             func(context.Context, config.Config, *pgxpool.Pool, *redis.Client, <-chan os.Signal, ListenFunc) error
}

func defaultDeps() mainDeps {
	return mainDeps{
		loadConfig: config.Load,
		newLogger: func(cfg config.Config) *slog.Logger {
			return logger.New(serviceName, cfg.LogLevel)
		},
		connectPostgres: db.ConnectPostgres,
		ensureSchema: func(ctx context.Context, pool *pgxpool.Pool) error {
			return db.EnsureSchema(ctx, pool)
		},
		connectRedis: db.ConnectRedis,
		notify:       signal.Notify,
		run:          Run,
	}
}

func realMain(deps mainDeps) {
	cfg := deps.loadConfig()
	log := deps.newLogger(cfg)
	slog.SetDefault(log)

	pg, err := deps.connectPostgres(cfg)
	if err != nil {
		log.Error("postgres connection failed", "error", err)
	}
	if pg != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := deps.ensureSchema(ctx, pg); err != nil {
			log.Error("schema setup failed", "error", err)
		}
		cancel()
	}

	rdb := deps.connectRedis(cfg)

	signals := make(chan os.Signal, 1)
	deps.notify(signals, syscall.SIGINT, syscall.SIGTERM)

	if err := deps.run(context.Background(), cfg, pg, rdb, signals, nil); err != nil {
		log.Error("server exited with error", "error", err)
	}
}

type ListenFunc func(app *fiber.App, addr string) error

var defaultListen ListenFunc = func(app *fiber.App, addr string) error {
	return app.Listen(addr)
}

var newServer = server.NewServer

var shutdownFn = func(app *fiber.App, ctx context.Context) error {
	return app.ShutdownWithContext(ctx)
}

// Run starts the HTTP server and waits for termination signals. Running
// drives are stopped and their summaries flushed before connections close.
func Run(ctx context.Context, cfg config.Config, pg *pgxpool.Pool, rdb *redis.Client, signals <-chan os.Signal, listen ListenFunc) error {
	srv := newServer(cfg, pg, rdb, slog.Default())

	if listen == nil {
		listen = defaultListen
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- listen(srv.App, cfg.ServerPort)
	}()

	select {
	case <-signals:
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			_ = srv.Close()
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	shutdownErr := shutdownFn(srv.App, shutdownCtx)
	if err := srv.Close(); err != nil {
		srv.Log.Warn("event hub close failed", "error", err)
	}
	if shutdownErr != nil {
		return shutdownErr
	}
	if pg != nil {
		pg.Close()
	}
	if rdb != nil {
		_ = rdb.Close()
	}
	return nil
}
