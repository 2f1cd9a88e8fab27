package server

import (
	"backend-buswatch/internal/auth"
	"backend-buswatch/internal/config"
	"backend-buswatch/internal/issue"
	"backend-buswatch/internal/location"
	"backend-buswatch/internal/notify"
	"backend-buswatch/internal/route"
	"backend-buswatch/internal/school"
	"backend-buswatch/internal/session"
	"backend-buswatch/internal/stream"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

type Server struct {
	App    *fiber.App
	Cfg    config.Config
	DB     *pgxpool.Pool
	Redis  *redis.Client
	Stream *stream.Hub
}

func NewServer(cfg config.Config, db *pgxpool.Pool, redisClient *redis.Client) *Server {
	app := fiber.New()
	app.Use(recover.New())
	app.Use(logger.New())

	s := &Server{
		App:    app,
		Cfg:    cfg,
		DB:     db,
		Redis:  redisClient,
		Stream: stream.NewHub(redisClient),
	}

	registerRoutes(s)
	return s
}

func registerRoutes(s *Server) {
	s.App.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok", "viewers": s.Stream.ClientCount()})
	})

	jwtMiddleware := auth.JWTMiddleware(s.Cfg.JWTSecret)
	adminOnly := auth.RequireRole(auth.RoleAdmin)

	authSvc := auth.NewService(s.Cfg.JWTSecret, s.DB)
	auth.RegisterRoutes(s.App.Group("/auth"), authSvc)

	school.RegisterRoutes(s.App.Group("/schools"), school.NewService(s.DB), jwtMiddleware, adminOnly)
	route.RegisterRoutes(s.App.Group("/routes"), route.NewService(s.DB), jwtMiddleware, adminOnly)

	locSvc := location.NewService(s.DB, s.Redis, s.Cfg.LocationStaleness, s.Cfg.ActiveDriversCacheTTL)
	detector := location.NewDetector(s.DB, s.Cfg.ArrivalRadiusM, s.Cfg.ArrivalDwell, s.Cfg.ArrivalWindowPoints)
	ingestor := location.NewIngestor(locSvc, detector, s.Stream, s.Cfg.BroadcastThrottle)
	simulator := location.NewSimulator(s.DB, ingestor, s.Cfg.SimSegments, s.Cfg.SimTick)
	location.RegisterRoutes(s.App.Group("/tracking"), locSvc, ingestor, simulator, jwtMiddleware)

	sessions := s.App.Group("/sessions")
	session.RegisterRoutes(sessions, session.NewService(s.DB, s.Stream), jwtMiddleware)
	sessions.Get("/:id/path", location.PathHandler(locSvc))

	dispatcher := notify.NewDispatcher(s.Cfg.SMSTimeout,
		notify.Channel{Sender: notify.NewTextbelt(s.Cfg.TextbeltKey, "")},
		notify.Channel{Sender: notify.NewTwilio(s.Cfg.TwilioAccountSID, s.Cfg.TwilioAuthToken, s.Cfg.TwilioFromNumber)},
		notify.Channel{Sender: notify.NewEmailGateway(s.Cfg.SendgridKey, s.Cfg.SendgridFromEmail, s.Cfg.SMSGatewayDomain), Async: true},
	)
	issueSvc := issue.NewService(s.DB, s.Stream, dispatcher, authSvc, s.Cfg.NotifyMinPriority, s.Cfg.AdminPhones)
	issue.RegisterRoutes(s.App.Group("/issues"), issueSvc, jwtMiddleware, adminOnly)

	stream.RegisterRoutes(s.App.Group("/stream"), s.Stream, authSvc)
}
