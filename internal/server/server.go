// Package server wires the HTTP API, the WebSocket endpoint and their middleware.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"gatehouse/internal/cache"
	"gatehouse/internal/config"
	"gatehouse/internal/database"
	"gatehouse/internal/identity"
	"gatehouse/internal/middleware"
	"gatehouse/internal/models"
	"gatehouse/internal/notifications"
	"gatehouse/internal/realtime"
	"gatehouse/internal/repository"
	"gatehouse/internal/service"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// SendLimit and SendWindow bound REST sends per participant. The socket
// send_message event shares the same bucket.
const (
	SendLimit  = realtime.SendLimit
	SendWindow = realtime.SendWindow
)

type Server struct {
	config         *config.Config
	db             *gorm.DB
	redis          *redis.Client
	app            *fiber.App
	promMiddleware *fiberprometheus.FiberPrometheus
	shutdownCtx    context.Context
	shutdownFn     context.CancelFunc
	verifier       *middleware.TokenVerifier
	resolver       *identity.Resolver
	messaging      *service.MessagingService
	directory      *service.DirectoryService
	hub            *notifications.RoomHub
	fanout         *notifications.Fanout
	online         *notifications.OnlineRegistry
	gateway        *realtime.Gateway
}

// NewServer connects to Postgres and Redis and builds the server. A missing
// Redis is tolerated: fan-out stays local and presence stays in memory.
func NewServer(cfg *config.Config) (*Server, error) {
	db, err := database.Connect(cfg)
	if err != nil {
		return nil, fmt.Errorf("database connection failed: %w", err)
	}

	cache.InitRedis(cfg.RedisURL)
	return NewServerWithDeps(cfg, db, cache.GetClient())
}

// NewServerWithDeps builds the server over existing connections. redisClient may be nil.
func NewServerWithDeps(cfg *config.Config, db *gorm.DB, redisClient *redis.Client) (*Server, error) {
	if db == nil {
		return nil, fmt.Errorf("database is required")
	}

	residents := repository.NewResidentRepository(db)
	guards := repository.NewGuardRepository(db)
	resolver := identity.NewResolver(redisClient,
		identity.NewResidentDirectory(residents),
		identity.NewGuardDirectory(guards),
	)

	hub := notifications.NewRoomHub()
	fanout := notifications.NewFanout(hub, notifications.NewNotifier(redisClient))
	online := notifications.NewOnlineRegistry(redisClient)
	verifier := middleware.NewTokenVerifier(cfg.JWTSecret, cfg.JWTIssuer, cfg.JWTAudience, redisClient)

	messaging := service.NewMessagingService(
		resolver,
		repository.NewConversationRepository(db),
		repository.NewMessageRepository(db),
		repository.NewTransactor(db),
		realtime.NewPublisher(fanout),
	)

	server := &Server{
		config:         cfg,
		db:             db,
		redis:          redisClient,
		promMiddleware: middleware.InitMetrics("gatehouse-api"),
		verifier:       verifier,
		resolver:       resolver,
		messaging:      messaging,
		directory:      service.NewDirectoryService(residents, guards),
		hub:            hub,
		fanout:         fanout,
		online:         online,
	}
	server.gateway = realtime.NewGateway(verifier, resolver, messaging, fanout, online, realtime.NewRedisRateLimiter(redisClient))

	return server, nil
}

// SetupMiddleware installs the global middleware chain.
func (s *Server) SetupMiddleware(app *fiber.App) {
	app.Use(recover.New())
	app.Use(requestid.New())

	if s.config.TracingEnabled {
		app.Use(middleware.TracingMiddleware())
	}
	app.Use(middleware.ContextMiddleware())

	if s.promMiddleware != nil {
		app.Use(middleware.MetricsMiddleware(s.promMiddleware))
	}

	app.Use(helmet.New())
	app.Use(middleware.StructuredLogger())

	origins := s.config.AllowedOrigins
	if origins == "" {
		origins = "http://localhost:5173,http://localhost:3000"
	}

	app.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, Upgrade, Connection, Sec-WebSocket-Key, Sec-WebSocket-Version",
		AllowCredentials: origins != "*",
		MaxAge:           86400,
	}))

	app.Use(limiter.New(limiter.Config{
		Max:        100,
		Expiration: 1 * time.Minute,
		Next: func(c *fiber.Ctx) bool {
			return c.Method() == fiber.MethodOptions || s.config.Env == "test"
		},
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return models.RespondWithError(c, fiber.StatusTooManyRequests, models.NewRateLimitedError())
		},
	}))
}

// SetupRoutes registers every route on app.
func (s *Server) SetupRoutes(app *fiber.App) {
	app.Get("/health/live", s.LivenessCheck)
	app.Get("/health/ready", s.ReadinessCheck)

	if s.promMiddleware != nil {
		s.promMiddleware.RegisterAt(app, "/metrics")
	}

	api := app.Group("/api")
	auth := middleware.AuthRequired(s.verifier)

	messages := api.Group("/guard-messages", auth)
	messages.Get("/conversations", s.ListConversations)
	messages.Get("/conversations/:id", s.GetMessages)
	messages.Put("/conversations/:id/read", s.MarkConversationRead)
	messages.Post("/conversation", s.StartConversation)
	messages.Post("/send", middleware.RateLimit(
		s.redis, SendLimit, SendWindow, realtime.SendResource), s.SendMessage)
	messages.Get("/unread-count", s.UnreadCount)
	messages.Get("/security-list", s.ListGuards)
	messages.Get("/tenant-list", s.ListResidents)
	// Generic /:messageId route must be last
	messages.Put("/:messageId/read", s.MarkMessageRead)

	api.Post("/ws/ticket", auth, s.IssueWSTicket)
	api.Get("/ws", s.WebSocketUpgrade(), s.WebSocketHandler())
}

// App builds the Fiber application once. Start and tests share it.
func (s *Server) App() *fiber.App {
	if s.app != nil {
		return s.app
	}

	app := fiber.New(fiber.Config{
		AppName: "Gatehouse API",
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			if fe, ok := err.(*fiber.Error); ok {
				return c.Status(fe.Code).JSON(models.ErrorResponse{Error: fe.Message, Code: models.CodeValidation})
			}
			middleware.Logger.ErrorContext(c.UserContext(), "unhandled request error", slog.String("error", err.Error()))
			return models.RespondWithAppError(c, models.NewInternalError(err))
		},
	})
	s.app = app

	s.SetupMiddleware(app)
	s.SetupRoutes(app)
	return app
}

// Start subscribes to cross-process fan-out and listens on the configured port.
func (s *Server) Start() error {
	ctx, cancel := context.WithCancel(context.Background())
	s.shutdownCtx = ctx
	s.shutdownFn = cancel

	app := s.App()

	if err := s.fanout.Start(s.shutdownCtx); err != nil {
		middleware.Logger.Warn("fan-out subscriber unavailable, delivering locally only",
			slog.String("error", err.Error()))
	}

	middleware.Logger.Info("Server starting", slog.String("port", s.config.Port))
	return app.Listen(":" + s.config.Port)
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	if s.shutdownFn != nil {
		s.shutdownFn()
	}

	if s.app != nil {
		if err := s.app.ShutdownWithContext(ctx); err != nil {
			middleware.Logger.Error("error shutting down HTTP server", slog.String("error", err.Error()))
		}
	}

	s.hub.Shutdown()

	if sqlDB, err := s.db.DB(); err == nil {
		if cerr := sqlDB.Close(); cerr != nil {
			middleware.Logger.Error("error closing sql DB", slog.String("error", cerr.Error()))
		}
	}

	if s.redis != nil {
		if rerr := s.redis.Close(); rerr != nil {
			middleware.Logger.Error("error closing redis", slog.String("error", rerr.Error()))
		}
	}

	middleware.Logger.Info("Server shutdown complete")
	return nil
}
