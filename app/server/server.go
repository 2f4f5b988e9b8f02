package server

import (
	"context"
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"

	"docchat/app/api"
	"docchat/app/middleware"
)

type Server struct {
	listenAddr string
	logger     *slog.Logger
	app        *fiber.App
}

func NewServer(c *Components, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	var (
		app = fiber.New(fiber.Config{
			ErrorHandler: api.ErrorHandler,
			BodyLimit:    c.Config.BodyLimitMB * 1024 * 1024,
		})
		checkHandler   = api.NewCheckHandler(c.Store)
		uploadHandler  = api.NewUploadHandler(c.Config.UploadDir, c.Ingester, logger)
		sessionHandler = api.NewSessionHandler(c.Sessions)
		eventHandler   = api.NewEventHandler(c.Engine, c.Translator, c.Sessions, c.Config.UploadDir, logger)
	)

	app.Use(cors.New())
	app.Use(middleware.RequestLogger(logger, "/ws"))

	check := app.Group("/check")
	check.Get("/healthy", checkHandler.HandleHealthy)

	apiGroup := app.Group("/api")
	apiGroup.Post("/upload", uploadHandler.HandleUpload)
	apiGroup.Get("/chats", sessionHandler.HandleList)
	apiGroup.Post("/chats", sessionHandler.HandleCreate)
	apiGroup.Get("/chats/:id", sessionHandler.HandleGet)

	app.Use("/ws", api.RequireUpgrade)
	app.Get("/ws", eventHandler.HandleWS())

	return &Server{
		listenAddr: c.Config.ServerAddr,
		logger:     logger,
		app:        app,
	}
}

func (s *Server) App() *fiber.App {
	return s.app
}

// Run blocks until the server is stopped.
func (s *Server) Run() error {
	s.logger.Info("server listening", "addr", s.listenAddr)
	return s.app.Listen(s.listenAddr)
}

func (s *Server) Stop(ctx context.Context) error {
	err := s.app.ShutdownWithContext(ctx)
	s.logger.Info("server stopped")
	return err
}
