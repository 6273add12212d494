package server

import (
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func (s *Server) registerRoutes() {
	s.echo.GET("/healthz", s.handleHealth)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	s.echo.GET("/themes", s.handleThemes)

	s.echo.POST("/games", s.handleCreateGame)
	s.echo.GET("/games/:id", s.handleGetGame)
	s.echo.DELETE("/games/:id", s.handleDeleteGame)
	s.echo.POST("/games/:id/answer", s.handleAnswer)
	s.echo.POST("/games/:id/verdict", s.handleVerdict)
	s.echo.POST("/games/:id/undo", s.handleUndo)
}
