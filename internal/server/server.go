package server

import (
	"backend-trailscope/internal/auth"
	"backend-trailscope/internal/config"
	"backend-trailscope/internal/db"
	"backend-trailscope/internal/decode"
	"backend-trailscope/internal/ledger"
	"backend-trailscope/internal/stream"
	"backend-trailscope/internal/workspace"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

type Server struct {
	App        *fiber.App
	Cfg        config.Config
	DB         *pgxpool.Pool
	Redis      *redis.Client
	Stream     *stream.Hub
	Ledger     *ledger.Service
	Workspaces *workspace.Service
}

func NewServer(cfg config.Config, pool *pgxpool.Pool, redisClient *redis.Client) *Server {
	app := fiber.New(fiber.Config{
		AppName:   "trailscope",
		BodyLimit: cfg.BodyLimit(),
	})
	app.Use(recover.New())
	app.Use(logger.New())

	// A nil *pgxpool.Pool must not reach the ledger as a non-nil interface.
	var querier db.Querier
	if pool != nil {
		querier = pool
	}

	hub := stream.NewHub(redisClient)
	ledgerSvc := ledger.NewService(querier)

	s := &Server{
		App:    app,
		Cfg:    cfg,
		DB:     pool,
		Redis:  redisClient,
		Stream: hub,
		Ledger: ledgerSvc,
		Workspaces: workspace.NewService(
			decode.DefaultRegistry(),
			auth.NewService(cfg.JWTSecret),
			ledgerSvc,
			hub,
			cfg.ExplorerPageSize,
		),
	}

	registerRoutes(s)
	return s
}

func registerRoutes(s *Server) {
	s.App.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "ok",
			"ledger": s.Ledger.Enabled(),
			"redis":  s.Redis != nil,
		})
	})

	jwtMiddleware := auth.JWTMiddleware(s.Cfg.JWTSecret)

	workspace.RegisterRoutes(s.App.Group("/workspaces"), s.Workspaces, jwtMiddleware)
	stream.RegisterRoutes(s.App.Group("/stream"), s.Stream, auth.QueryTokenMiddleware(s.Cfg.JWTSecret, "workspaceID"))
}
