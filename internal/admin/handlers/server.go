package handlers

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Server owns the echo instance and its lifecycle.
type Server struct {
	router *echo.Echo
	logger *zap.Logger
	addr   string
}

func NewServer(port int, logger *zap.Logger) *Server {
	router := echo.New()
	router.HideBanner = true
	router.Use(middleware.Recover())

	router.GET("/healthz", func(c echo.Context) error {
		return c.JSON(http.StatusOK, echo.Map{"status": "ok"})
	})
	router.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	return &Server{
		router: router,
		logger: logger.Named("http_server"),
		addr:   fmt.Sprintf(":%d", port),
	}
}

// Register attaches the admin routes.
func (s *Server) Register(h *Handler) {
	h.Register(s.router)
}

// Start serves HTTP until Stop is called. Blocks.
func (s *Server) Start() error {
	s.logger.Info("HTTP server listening", zap.String("addr", s.addr))
	if err := s.router.Start(s.addr); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Stop shuts the server down gracefully.
func (s *Server) Stop() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.router.Shutdown(ctx); err != nil {
		s.logger.Error("failed to shut down HTTP server", zap.Error(err))
	}
}
