package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"cinecritic/config"
	"cinecritic/internal/handler"
	"cinecritic/internal/middleware"
	"cinecritic/internal/transport/httpdto"
	"cinecritic/internal/websocket"
	"cinecritic/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const shutdownTimeout = 5 * time.Second

type Server struct {
	httpServer *http.Server
	engine     *gin.Engine
	config     *config.Config
	logger     *logger.Logger
}

var (
	ReleaseMode = "release"
	DebugMode   = "debug"
	TestMode    = "test"
)

type Handlers struct {
	Auth     *handler.AuthHandler
	Movies   *handler.MovieHandler
	Comments *handler.CommentHandler
	Hub      *websocket.Handler
}

// Dependencies are the cross-cutting collaborators routes need. Limiter and
// Gatherer may be nil.
type Dependencies struct {
	Tokens   middleware.TokenParser
	Limiter  middleware.Limiter
	Health   func(ctx context.Context) error
	Gatherer prometheus.Gatherer
}

func New(cfg *config.Config, l *logger.Logger) *Server {
	if cfg.AppMode == ReleaseMode {
		gin.SetMode(gin.ReleaseMode)
	} else if cfg.AppMode == TestMode {
		gin.SetMode(gin.TestMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	engine := gin.New()
	engine.Use(gin.Recovery())

	return &Server{
		httpServer: &http.Server{
			Addr:              fmt.Sprintf(":%s", cfg.AppPort),
			Handler:           engine,
			ReadHeaderTimeout: 10 * time.Second,
		},
		engine: engine,
		config: cfg,
		logger: l,
	}
}

// Engine exposes the router, mainly for tests.
func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) SetupRoutes(h *Handlers, deps Dependencies) {
	s.engine.Use(middleware.RequestIDMiddleware())
	s.engine.Use(middleware.LoggingMiddleware(s.logger))
	s.engine.Use(middleware.ErrorHandler(s.logger))

	s.engine.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, httpdto.NewSuccessResponse(gin.H{"message": "pong"}))
	})

	s.engine.GET("/health", func(c *gin.Context) {
		if deps.Health != nil {
			if err := deps.Health(c.Request.Context()); err != nil {
				c.JSON(http.StatusServiceUnavailable, httpdto.NewErrorResponse(err.Error(), httpdto.CodeUnavailable))
				return
			}
		}
		c.JSON(http.StatusOK, httpdto.NewSuccessResponse(gin.H{"status": "healthy"}))
	})

	if deps.Gatherer != nil {
		s.engine.GET("/metrics", gin.WrapH(promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{})))
	}

	authenticated := middleware.AuthMiddleware(deps.Tokens)
	adminOnly := middleware.RequireAdmin()

	auth := s.engine.Group("/v1/auth", middleware.RefreshRateLimitMiddleware(deps.Limiter))
	{
		auth.POST("/refresh", h.Auth.Refresh)
		auth.POST("/logout", h.Auth.Logout)
	}

	movies := s.engine.Group("/v1/movies")
	{
		movies.GET("", h.Movies.List)
		movies.GET("/:id", h.Movies.Get)
		movies.POST("", authenticated, adminOnly, h.Movies.Create)
		movies.DELETE("/:id", authenticated, adminOnly, h.Movies.Delete)

		movies.GET("/:id/comments", h.Comments.List)
		movies.GET("/:id/comments/stats", h.Comments.Stats)
		movies.POST("/:id/comments", authenticated, middleware.CommentRateLimitMiddleware(deps.Limiter), h.Comments.Add)

		moderation := movies.Group("/:id/comments/:commentId", authenticated, adminOnly)
		{
			moderation.POST("/approve", h.Comments.Approve)
			moderation.POST("/reject", h.Comments.Reject)
			moderation.POST("/reset", h.Comments.Reset)
			moderation.DELETE("", h.Comments.Delete)
		}
	}

	// The hub authenticates the handshake itself so the token can come from
	// the query string.
	s.engine.GET("/hubs/notifications", h.Hub.Connect)
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.log().Info("starting server", zap.String("port", s.config.AppPort))
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	s.log().Info("shutdown signal received", zap.Duration("timeout", shutdownTimeout))
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		s.log().Error("graceful shutdown failed", zap.Error(err))
		return err
	}
	s.log().Info("server stopped gracefully")
	return nil
}

func (s *Server) log() *zap.Logger {
	if s.logger == nil {
		return zap.NewNop()
	}
	return s.logger.Named("server")
}
