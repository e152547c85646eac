package server

import (
	"context"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"comicinsights/pkg/flight"
	"comicinsights/pkg/inference"
	"comicinsights/pkg/queue"
	"comicinsights/pkg/session"
	"comicinsights/pkg/styles"
	"comicinsights/pkg/telemetry"
)

type Server struct {
	Echo       *echo.Echo
	Inferencer inference.Inferencer
	Sessions   *session.Store
	Styles     *styles.Manager
	Queue      queue.Queue
	Ctx        context.Context

	genFlight *flight.Cache[string, generated]
	genParams *paramMap
}

func NewServer(ctx context.Context, inf inference.Inferencer, sessions *session.Store, presets *styles.Manager, q queue.Queue) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Logger())
	e.Use(middleware.CORS())

	s := &Server{
		Echo:       e,
		Inferencer: inf,
		Sessions:   sessions,
		Styles:     presets,
		Queue:      q,
		Ctx:        ctx,
		genParams:  newParamMap(),
	}
	s.genFlight = flight.NewCache(s.generatePanel)

	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.Echo.GET("/", s.handleGetRoot)
	s.Echo.GET("/healthz", s.handleGetHealth)
	s.Echo.GET("/metrics", echo.WrapHandler(telemetry.Handler()))
	s.Echo.Static("/images", s.Sessions.ExportDir())

	api := s.Echo.Group("/api")

	api.POST("/sessions", s.handleCreateSession)
	api.GET("/sessions/:id/history", s.handleGetHistory)
	api.POST("/sessions/:id/export", s.handleExportSession)

	api.POST("/story/summary", s.handlePostSummary)
	api.POST("/story/correct", s.handlePostCorrect)
	api.POST("/story/refine", s.handlePostRefine)

	api.POST("/sessions/:id/characters/extract", s.handleExtractCharacters)
	api.GET("/sessions/:id/characters", s.handleGetCharacters)
	api.PUT("/sessions/:id/characters", s.handleSetCharacters)
	api.POST("/sessions/:id/characters", s.handleAddCharacter)
	api.PATCH("/sessions/:id/characters/:charID", s.handleUpdateCharacter)
	api.DELETE("/sessions/:id/characters/:charID", s.handleDeleteCharacter)
	api.POST("/sessions/:id/characters/confirm", s.handleConfirmCharacters)
	api.POST("/sessions/:id/characters/export", s.handleExportCharacters)
	api.POST("/characters/tags", s.handleRegenerateTags)

	api.GET("/styles", s.handleGetStyles)
	api.POST("/sessions/:id/generate", s.handleGenerate)
}

func (s *Server) Start(addr string) error {
	return s.Echo.Start(addr)
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.Queue != nil {
		s.Queue.Stop()
	}
	return s.Echo.Shutdown(ctx)
}

func cancelled(c echo.Context) bool {
	select {
	case <-c.Request().Context().Done():
		return true
	default:
		return false
	}
}
