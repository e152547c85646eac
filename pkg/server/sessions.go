package server

import (
	"errors"
	"net/http"

	"github.com/charmbracelet/log"
	"github.com/labstack/echo/v4"

	"comicinsights/pkg/session"
	"comicinsights/pkg/telemetry"
)

func (s *Server) handleGetRoot(c echo.Context) error {
	return c.HTML(http.StatusOK, indexHTML)
}

func (s *Server) handleGetHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"service": "Comic Insights",
		"status":  "ok",
	})
}

// POST /api/sessions
func (s *Server) handleCreateSession(c echo.Context) error {
	id := s.Sessions.Create()
	telemetry.ActiveSessions.Inc()
	return c.JSON(http.StatusCreated, map[string]string{"session_id": id})
}

// GET /api/sessions/:id/history
func (s *Server) handleGetHistory(c echo.Context) error {
	history, err := s.Sessions.History(c.Param("id"))
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "session not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]any{"history": history})
}

// POST /api/sessions/:id/export
func (s *Server) handleExportSession(c echo.Context) error {
	id := c.Param("id")
	path, err := s.Sessions.Export(id)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "session not found")
		}
		log.Error("session export failed", "session", id, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "export failed")
	}
	return c.JSON(http.StatusOK, map[string]string{"path": path})
}
