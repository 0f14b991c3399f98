package server

import (
	"log/slog"

	"backend-steersafe/internal/auth"
	"backend-steersafe/internal/config"
	"backend-steersafe/internal/db"
	"backend-steersafe/internal/drive"
	"backend-steersafe/internal/history"
	"backend-steersafe/internal/logger"
	"backend-steersafe/internal/speedlimit"
	"backend-steersafe/internal/stats"
	"backend-steersafe/internal/stream"

	"github.com/gofiber/fiber/v2"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

type Server struct {
	App     *fiber.App
	Cfg     config.Config
	DB      *pgxpool.Pool
	Redis   *redis.Client
	Stream  *stream.Hub
	Drives  *drive.Service
	Stats   *stats.Store
	History *history.Store
	Log     *slog.Logger
}

func NewServer(cfg config.Config, pg *pgxpool.Pool, redisClient *redis.Client, log *slog.Logger) *Server {
	if log == nil {
		log = logger.Discard()
	}

	app := fiber.New()
	app.Use(recover.New())
	app.Use(fiberlogger.New())

	s := &Server{
		App:    app,
		Cfg:    cfg,
		DB:     pg,
		Redis:  redisClient,
		Stream: stream.NewHub(redisClient, log),
		Log:    log,
	}
	q := s.querier()
	s.Stats = stats.NewStore(q)
	s.History = history.NewStore(q)

	deps := drive.Deps{
		SpeedLimits: speedlimit.NewCachedProvider(
			speedlimit.NewClient(cfg.SpeedLimitBaseURL, cfg.SpeedLimitAPIKey, cfg.SpeedLimitTimeout),
			redisClient, cfg.SpeedLimitCacheTTL, log,
		),
		Notifier: s.Stream,
		Logger:   log,
	}
	if q != nil {
		deps.Recorder = drive.Recorders{s.Stats, s.History}
	} else {
		log.Warn("postgres unavailable, drive summaries will not be persisted")
	}
	s.Drives = drive.NewService(deps, drive.Options{
		LookupTimeout:  cfg.SpeedLimitTimeout,
		PersistTimeout: cfg.PersistTimeout,
	})

	registerRoutes(s)
	return s
}

func registerRoutes(s *Server) {
	s.App.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	jwtMiddleware := auth.JWTMiddleware(s.Cfg.JWTSecret)

	auth.RegisterRoutes(s.App.Group("/auth"), auth.NewService(s.Cfg.JWTSecret, s.querier()))
	drive.RegisterRoutes(s.App.Group("/drives"), s.Drives, jwtMiddleware)
	stats.RegisterRoutes(s.App.Group("/stats"), s.Stats, jwtMiddleware)
	history.RegisterRoutes(s.App.Group("/history"), s.History, jwtMiddleware)
	stream.RegisterRoutes(s.App.Group("/stream"), s.Stream, auth.JWTQueryMiddleware(s.Cfg.JWTSecret))
}

// querier keeps a nil pool from turning into a non-nil interface.
func (s *Server) querier() db.Querier {
	if s.DB == nil {
		return nil
	}
	return s.DB
}

// Close ends every running drive and flushes pending stats writes before the
// event hub goes away.
func (s *Server) Close() error {
	s.Drives.Close()
	return s.Stream.Close()
}
